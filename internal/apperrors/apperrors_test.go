package apperrors

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDefaultRetryability(t *testing.T) {
	cases := []struct {
		kind      Kind
		retryable bool
	}{
		{KindValidation, false},
		{KindPortUnresolved, true},
		{KindTemplateError, true},
		{KindUnauthorizedWebhook, false},
		{KindStaleExecution, false},
		{KindCancelled, false},
		{KindInternalError, true},
	}
	for _, tt := range cases {
		t.Run(string(tt.kind), func(t *testing.T) {
			err := New(tt.kind, "op", "boom")
			require.Equal(t, tt.retryable, err.Retryable())
		})
	}
}

func TestWrapPreservesCauseChain(t *testing.T) {
	cause := errors.New("dial tcp: timeout")
	err := Wrap(KindProviderError, "llm.call", cause)
	require.ErrorIs(t, err, cause)
	require.Equal(t, cause.Error(), err.Error()[len(err.Error())-len(cause.Error()):])
}

func TestKindOfUnclassifiedError(t *testing.T) {
	require.Equal(t, KindInternalError, KindOf(errors.New("boom")))
	require.Equal(t, Kind(""), KindOf(nil))
}

func TestIsMatchesByKindNotIdentity(t *testing.T) {
	a := New(KindPortUnresolved, "node-1", "missing input")
	b := New(KindPortUnresolved, "node-2", "different message")
	require.True(t, errors.Is(a, b))

	c := New(KindEvalError, "node-3", "threw")
	require.False(t, errors.Is(a, c))
}

func TestWithRetryableOverridesDefault(t *testing.T) {
	err := New(KindValidation, "op", "boom").WithRetryable(true)
	require.True(t, err.Retryable())
}

func TestWithRetryAfterHint(t *testing.T) {
	err := New(KindProviderError, "op", "rate limited").WithRetryAfter(30)
	require.Equal(t, 30, err.RetryAfterSeconds())
}
