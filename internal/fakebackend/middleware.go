package fakebackend

import (
	"fmt"
	"net/http"
	"runtime/debug"
	"time"
)

const (
	green      = "\033[32m"
	blue       = "\033[34m"
	gray       = "\033[90m"
	resetColor = "\033[0m"
)

var methodColors = map[string]string{
	http.MethodGet:  green,
	http.MethodPost: blue,
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)

		method := r.Method
		if s.colour {
			color, ok := methodColors[r.Method]
			if !ok {
				color = gray
			}
			method = color + fmt.Sprintf("%-4s", r.Method) + resetColor
		}
		s.logger.Info().
			Str("method", method).
			Str("path", r.URL.Path).
			Int("status", rec.status).
			Str("request_id", r.Header.Get("X-Request-ID")).
			Dur("elapsed", time.Since(start)).
			Msg("request")
	})
}

func (s *Server) recoverMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if p := recover(); p != nil {
				s.logger.Error().Interface("panic", p).Bytes("stack", debug.Stack()).Msg("handler panicked")
				writeDetail(w, http.StatusInternalServerError, "Internal server error")
			}
		}()
		next.ServeHTTP(w, r)
	})
}
