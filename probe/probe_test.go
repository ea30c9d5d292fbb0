package probe

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCheck(t *testing.T) {
	t.Run("up", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
		}))
		defer srv.Close()

		result := Check(context.Background(), srv.URL)

		assert.True(t, result.Up())
		assert.Equal(t, http.StatusOK, result.StatusCode)
		assert.Empty(t, result.ErrorMessage)
		assert.Greater(t, result.ResponseTime.Nanoseconds(), int64(0))
	})

	t.Run("non_200_is_down", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
		}))
		defer srv.Close()

		result := Check(context.Background(), srv.URL)

		assert.False(t, result.Up())
		assert.Equal(t, "HTTP 503", result.ErrorMessage)
	})

	t.Run("unreachable_is_down", func(t *testing.T) {
		srv := httptest.NewServer(http.NotFoundHandler())
		srv.Close()

		result := Check(context.Background(), srv.URL)

		assert.False(t, result.Up())
		assert.NotEmpty(t, result.ErrorMessage)
	})

	t.Run("bare_domain_gets_https", func(t *testing.T) {
		// No scheme defaults to https; the dial fails but must not panic.
		result := Check(context.Background(), "localhost:0")

		assert.False(t, result.Up())
		assert.NotEmpty(t, result.ErrorMessage)
	})
}
