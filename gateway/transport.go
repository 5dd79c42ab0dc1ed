package gateway

import (
	"net/http"
	"time"

	"github.com/google/uuid"
	"golang.org/x/oauth2"
)

type anonymousKey struct{}

// credential sources, reported in debug logs
const (
	sourceNone     = "none"
	sourceOverride = "override"
	sourceDefault  = "default"
	sourceStore    = "store"
)

// authTransport attaches the credential and a request id to every outgoing request.
type authTransport struct {
	base   http.RoundTripper
	client *Client
}

func (t *authTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	// RoundTrippers must not modify the caller's request
	req = req.Clone(req.Context())

	requestID := req.Header.Get(headerRequestID)
	if requestID == "" {
		requestID = uuid.New().String()
		req.Header.Set(headerRequestID, requestID)
	}
	if req.Header.Get(headerUserAgent) == "" {
		req.Header.Set(headerUserAgent, t.client.userAgent)
	}

	source := t.attach(req)

	start := time.Now()
	resp, err := t.base.RoundTrip(req)
	event := t.client.logger.Debug().
		Str("method", req.Method).
		Str("path", req.URL.Path).
		Str("request_id", requestID).
		Str("credential", source).
		Dur("elapsed", time.Since(start))
	if err != nil {
		event.Err(err).Msg("gateway request failed")
		return nil, err
	}
	event.Int("status", resp.StatusCode).Msg("gateway request")
	return resp, nil
}

func (t *authTransport) attach(req *http.Request) string {
	if anon, _ := req.Context().Value(anonymousKey{}).(bool); anon {
		req.Header.Del(headerAuthorization)
		return sourceNone
	}
	if req.Header.Get(headerAuthorization) != "" {
		return sourceOverride
	}
	if token, ok := t.client.Credential(); ok {
		(&oauth2.Token{AccessToken: token}).SetAuthHeader(req)
		return sourceDefault
	}
	if t.client.tokens == nil {
		return sourceNone
	}
	tok, err := t.client.tokens.Token()
	if err != nil || tok == nil || tok.AccessToken == "" {
		if err != nil {
			t.client.logger.Debug().Err(err).Msg("gateway: no stored credential to attach")
		}
		return sourceNone
	}
	tok.SetAuthHeader(req)
	return sourceStore
}
