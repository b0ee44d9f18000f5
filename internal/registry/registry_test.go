package registry

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/iota-uz/foundry-sub005/internal/apperrors"
)

func TestPortsOfKnownKinds(t *testing.T) {
	r := New()
	for _, kind := range AllKinds() {
		t.Run(string(kind), func(t *testing.T) {
			_, err := r.PortsOf(kind)
			require.NoError(t, err)
		})
	}
}

func TestPortsOfUnknownKindIsValidationError(t *testing.T) {
	r := New()
	_, err := r.PortsOf(NodeKind("frobnicate"))
	require.Error(t, err)
	require.Equal(t, apperrors.KindValidation, apperrors.KindOf(err))
}

func TestTriggerAndEndDeclareNoFixedPorts(t *testing.T) {
	r := New()
	trigger, err := r.PortsOf(KindTrigger)
	require.NoError(t, err)
	require.Empty(t, trigger.Inputs)
	require.Empty(t, trigger.Outputs)

	end, err := r.PortsOf(KindEnd)
	require.NoError(t, err)
	require.Empty(t, end.Inputs)
	require.Empty(t, end.Outputs)
}

func TestLLMDeclaresRequiredPromptInput(t *testing.T) {
	r := New()
	ports, err := r.PortsOf(KindLLM)
	require.NoError(t, err)
	in, ok := ports.InputByName("prompt")
	require.True(t, ok)
	require.True(t, in.Required)
	require.Equal(t, TypeString, in.Type)
}

func TestCompatible(t *testing.T) {
	r := New()
	cases := []struct {
		name          string
		out, in       PortType
		wantCompatible bool
	}{
		{"equal types", TypeString, TypeString, true},
		{"mismatched types", TypeString, TypeNumber, false},
		{"any output", TypeAny, TypeObject, true},
		{"any input", TypeArray, TypeAny, true},
		{"both any", TypeAny, TypeAny, true},
	}
	for _, tt := range cases {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.wantCompatible, r.Compatible(tt.out, tt.in))
		})
	}
}

func TestIsKnownKind(t *testing.T) {
	r := New()
	require.True(t, r.IsKnownKind(KindHTTP))
	require.False(t, r.IsKnownKind(NodeKind("unknown")))
}

func TestValidPortType(t *testing.T) {
	require.True(t, ValidPortType(TypeObject))
	require.False(t, ValidPortType(PortType("binary")))
}
