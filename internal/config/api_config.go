package config

import (
	"strings"
	"time"

	"github.com/jrsteele09/go-auth-client/internal/utils"
)

const (
	apiBaseURLVar = "API_BASE_URL"
	apiTimeoutVar = "API_TIMEOUT"

	defaultAPIBaseURL = "http://localhost:8000"
	defaultAPITimeout = 15 * time.Second
)

type APIConfig interface {
	GetAPIBaseURL() string
	GetAPITimeout() time.Duration
}

type API struct {
	file *File
}

var _ APIConfig = API{}

// GetAPIBaseURL returns the backend base URL without a trailing slash.
func (a API) GetAPIBaseURL() string {
	return strings.TrimRight(GetEnv(apiBaseURLVar, utils.FirstNonEmpty(a.file.API.BaseURL, defaultAPIBaseURL)), "/")
}

// GetAPITimeout is applied by the transport to every request. Unparseable values fall back to the default.
func (a API) GetAPITimeout() time.Duration {
	raw := GetEnv(apiTimeoutVar, a.file.API.Timeout)
	if raw == "" {
		return defaultAPITimeout
	}
	d, err := time.ParseDuration(raw)
	if err != nil || d < 0 {
		return defaultAPITimeout
	}
	return d
}
