package gateway

import "net/http"

type requestOptions struct {
	header    http.Header
	bearer    string
	anonymous bool
}

// RequestOption adjusts a single request.
type RequestOption func(*requestOptions)

// WithHeader sets a header on this request, replacing any default value.
func WithHeader(key, value string) RequestOption {
	return func(o *requestOptions) {
		o.header.Set(key, value)
	}
}

// WithBearer attaches token to this request, overriding the default credential.
func WithBearer(token string) RequestOption {
	return func(o *requestOptions) {
		o.bearer = token
	}
}

// WithoutCredential sends the request with no Authorization header at all. The client's own
// calls never use it; every request they make carries the current credential.
func WithoutCredential() RequestOption {
	return func(o *requestOptions) {
		o.anonymous = true
	}
}
