package middleware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func TestRequestIDSources(t *testing.T) {
	tests := []struct {
		name    string
		headers map[string]string
		want    string
	}{
		{name: "request header", headers: map[string]string{RequestIDHeader: "req-123"}, want: "req-123"},
		{name: "correlation header", headers: map[string]string{CorrelationIDHeader: "corr-9"}, want: "corr-9"},
		{name: "request header wins", headers: map[string]string{RequestIDHeader: "a", CorrelationIDHeader: "b"}, want: "a"},
		{name: "control characters replaced", headers: map[string]string{RequestIDHeader: "bad\tid"}},
		{name: "oversized replaced", headers: map[string]string{RequestIDHeader: strings.Repeat("x", maxRequestIDLength+1)}},
		{name: "generated"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var seen string
			handler := RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				seen = GetRequestID(r.Context())
			}))

			req := httptest.NewRequest(http.MethodGet, "/v1/admission", nil)
			for k, v := range tt.headers {
				req.Header.Set(k, v)
			}
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)

			assert.Equal(t, seen, rec.Header().Get(RequestIDHeader))
			if tt.want != "" {
				assert.Equal(t, tt.want, seen)
				return
			}
			_, err := uuid.Parse(seen)
			assert.NoError(t, err)
		})
	}
}

func TestGetRequestIDWithoutMiddleware(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	assert.Empty(t, GetRequestID(req.Context()))
	assert.Empty(t, GetRequestID(nil)) //nolint:staticcheck // nil context is tolerated
}
