package errors

import (
	"context"
	stderrors "errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want Outcome
	}{
		{"nil", nil, OutcomeSuccess},
		{"auth", New(ErrorTypeAuth, 401, "login_required"), OutcomeCredentialExpired},
		{"wrapped auth", fmt.Errorf("fetch stories: %w", New(ErrorTypeAuth, 403, "nope")), OutcomeCredentialExpired},
		{"network", Wrap(ErrorTypeNetwork, stderrors.New("reset"), "request failed"), OutcomeRecoverable},
		{"rate limit", New(ErrorTypeRateLimit, 429, "slow down"), OutcomeRecoverable},
		{"not found", New(ErrorTypeNotFound, 404, "gone"), OutcomeRecoverable},
		{"transmission", New(ErrorTypeTransmission, 400, "bad request"), OutcomeRecoverable},
		{"challenge", New(ErrorTypeChallenge, 400, "checkpoint_required"), OutcomeRecoverable},
		{"storage", Wrap(ErrorTypeStorage, stderrors.New("disk full"), "record"), OutcomeFatal},
		{"untyped", stderrors.New("boom"), OutcomeFatal},
		{"canceled", context.Canceled, OutcomeFatal},
		{"deadline", context.DeadlineExceeded, OutcomeFatal},
		{"client timeout", Wrap(ErrorTypeNetwork, fmt.Errorf("Get: %w", context.DeadlineExceeded), "request failed"), OutcomeRecoverable},
		{"forbidden", New(ErrorTypeForbidden, 403, "access forbidden"), OutcomeRecoverable},
		{"client error", New(ErrorTypeClient, 400, "unexpected status code: 400"), OutcomeRecoverable},
		{"unknown", New(ErrorTypeUnknown, 0, "failed to create request"), OutcomeFatal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Classify(tt.err))
		})
	}
}

func TestErrorUnwrap(t *testing.T) {
	cause := stderrors.New("connection refused")
	err := Wrap(ErrorTypeNetwork, cause, "request failed")

	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "network error")
	assert.Contains(t, err.Error(), "connection refused")
	assert.Equal(t, ErrorTypeNetwork, TypeOf(fmt.Errorf("outer: %w", err)))
}

func TestIsCredentialExpired(t *testing.T) {
	assert.True(t, IsCredentialExpired(New(ErrorTypeAuth, 401, "expired")))
	assert.False(t, IsCredentialExpired(New(ErrorTypeNetwork, 0, "timeout")))
	assert.False(t, IsCredentialExpired(nil))
}

func TestIsRetryableStatusCode(t *testing.T) {
	assert.True(t, IsRetryableStatusCode(0))
	assert.True(t, IsRetryableStatusCode(429))
	assert.True(t, IsRetryableStatusCode(502))
	assert.False(t, IsRetryableStatusCode(401))
	assert.False(t, IsRetryableStatusCode(404))
	assert.False(t, IsRetryableStatusCode(400))
}

func TestOutcomeString(t *testing.T) {
	assert.Equal(t, "credential_expired", OutcomeCredentialExpired.String())
	assert.Equal(t, "outcome(9)", Outcome(9).String())
}
