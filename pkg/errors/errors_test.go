package errors

import (
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHTTPStatusCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"wrapped oracle failure", fmt.Errorf("job 7: %w", ErrOracleUnavailable), http.StatusServiceUnavailable},
		{"not provisioned", ErrNotProvisioned, http.StatusServiceUnavailable},
		{"timeout", ErrTimeout, http.StatusGatewayTimeout},
		{"invalid input", ErrInvalidInput, http.StatusBadRequest},
		{"app error wins", Newf(ErrInternal, http.StatusTeapot, "%d", 1), http.StatusTeapot},
		{"unknown", fmt.Errorf("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, HTTPStatusCode(tt.err))
		})
	}
}

func TestAppErrorUnwrap(t *testing.T) {
	err := New(ErrMissingData, http.StatusInternalServerError, "job 1 title")
	assert.ErrorIs(t, err, ErrMissingData)
	assert.Equal(t, "missing precomputed word data: job 1 title", err.Error())
}

func TestPublicMessage(t *testing.T) {
	assert.Equal(t, "no job catalog loaded",
		PublicMessage(fmt.Errorf("filter: %w", New(ErrNotProvisioned, http.StatusServiceUnavailable, "no job catalog loaded"))))
	assert.Equal(t, "Service Unavailable", PublicMessage(fmt.Errorf("redis down: %w", ErrOracleUnavailable)))
	assert.Equal(t, "Internal Server Error", PublicMessage(fmt.Errorf("boom")))
}
