package apperr

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExtractionErrors(t *testing.T) {
	cause := errors.New("boom")

	tests := []struct {
		name   string
		err    *AppError
		code   string
		status int
	}{
		{"strategy failure", StrategyFailure("semantic", cause), CodeStrategyFailure, http.StatusUnprocessableEntity},
		{"upstream with status", UpstreamTransient("llm", http.StatusTooManyRequests, cause), CodeUpstreamTransient, http.StatusTooManyRequests},
		{"upstream without status", UpstreamTransient("llm", 0, cause), CodeUpstreamTransient, http.StatusBadGateway},
		{"fatal input", FatalInput("e1"), CodeFatalInput, http.StatusUnprocessableEntity},
		{"malformed", MalformedResponse("not json", cause), CodeMalformedResponse, http.StatusUnprocessableEntity},
		{"circuit open", CircuitOpen("llm", cause), CodeCircuitOpen, http.StatusServiceUnavailable},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.code, tt.err.Code)
			assert.Equal(t, tt.status, tt.err.HTTPStatus())
		})
	}
}

func TestHelpers_UnwrapThroughWrapping(t *testing.T) {
	cause := errors.New("connection reset")
	err := fmt.Errorf("extract: %w", UpstreamTransient("llm", http.StatusServiceUnavailable, cause))

	assert.True(t, IsCode(err, CodeUpstreamTransient))
	assert.False(t, IsCode(err, CodeFatalInput))
	assert.Equal(t, http.StatusServiceUnavailable, GetHTTPStatus(err))
	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "[UPSTREAM_TRANSIENT]")

	plain := errors.New("plain")
	assert.Equal(t, http.StatusInternalServerError, GetHTTPStatus(plain))
	assert.Equal(t, CodeInternalError, AsAppError(plain).Code)
}

func TestWithDetail(t *testing.T) {
	err := BadRequest("bad").WithDetail("field", "email_ids")
	assert.Equal(t, "email_ids", err.Details["field"])
}
