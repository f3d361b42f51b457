package api

import (
	"context"
	"net/http"
	"strings"

	"github.com/tendant/sealed-content/pkg/sealedcontent"
)

// Middleware is a function that wraps an http.Handler
type Middleware func(http.Handler) http.Handler

// Context keys for middleware
type contextKey string

const accountKey contextKey = "account"

// AccountFromContext returns the account attached by Authenticate.
func AccountFromContext(ctx context.Context) (*sealedcontent.Account, bool) {
	account, ok := ctx.Value(accountKey).(*sealedcontent.Account)
	return account, ok && account != nil
}

// BearerToken extracts the token from an Authorization header. Both a bare
// token and "Bearer <token>" are accepted.
func BearerToken(r *http.Request) string {
	header := strings.TrimSpace(r.Header.Get("Authorization"))
	if len(header) > 7 && strings.EqualFold(header[:7], "bearer ") {
		return strings.TrimSpace(header[7:])
	}
	return header
}

// Authenticate resolves the bearer token to an account and rejects the
// request with 401 when it does not resolve.
func Authenticate(service sealedcontent.Service) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			account, err := service.Authenticate(r.Context(), BearerToken(r))
			if err != nil {
				status, message := statusFor(err)
				writeError(w, r, status, message)
				return
			}

			ctx := context.WithValue(r.Context(), accountKey, account)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequestSizeLimit limits the size of request bodies
func RequestSizeLimit(maxBytes int64) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			r.Body = http.MaxBytesReader(w, r.Body, maxBytes)
			next.ServeHTTP(w, r)
		})
	}
}

// NoCache marks responses as not cacheable.
func NoCache(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Cache-Control", "no-cache")
		next.ServeHTTP(w, r)
	})
}

// responseWriter captures the status code for metrics
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func newResponseWriter(w http.ResponseWriter) *responseWriter {
	return &responseWriter{
		ResponseWriter: w,
		statusCode:     http.StatusOK,
	}
}

func (rw *responseWriter) WriteHeader(statusCode int) {
	rw.statusCode = statusCode
	rw.ResponseWriter.WriteHeader(statusCode)
}

// Unwrap lets http.ResponseController reach the underlying writer.
func (rw *responseWriter) Unwrap() http.ResponseWriter {
	return rw.ResponseWriter
}
