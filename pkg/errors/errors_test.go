package errors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestError_Error(t *testing.T) {
	tests := []struct {
		name     string
		err      *Error
		expected string
	}{
		{
			name: "error without detail",
			err: &Error{
				Kind:    KindConfiguration,
				Code:    CodeEoaRequired,
				Message: "delegate key required",
			},
			expected: "eoa_required: delegate key required",
		},
		{
			name: "error with provider and detail",
			err: &Error{
				Kind:     KindConfiguration,
				Code:     CodeUnsupportedForProvider,
				Provider: "safe",
				Message:  "delegation is not supported",
				Detail:   "7702 requested",
			},
			expected: "unsupported_for_provider: delegation is not supported [provider=safe] (7702 requested)",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.err.Error())
		})
	}
}

func TestExecution_PreservesCause(t *testing.T) {
	cause := errors.New("execution reverted: 0x08c379a0")
	err := Execution(CodeExecutionReverted, "eth_call failed", cause)

	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "execution reverted")
}

func TestWithProviderAndStage_DoNotMutate(t *testing.T) {
	base := Configuration(CodeFactoryArgsUnavailable, "incomplete deploy args")
	annotated := base.WithProvider("kernel").WithStage("deploy_args")

	assert.Empty(t, base.Provider)
	assert.Empty(t, base.Stage)
	assert.Equal(t, "kernel", annotated.Provider)
	assert.Equal(t, "deploy_args", annotated.Stage)
}

func TestIsKindAndIsCode(t *testing.T) {
	t.Run("direct error", func(t *testing.T) {
		err := UnsupportedForProvider("simple7702", "module installation")

		assert.True(t, IsKind(err, KindConfiguration))
		assert.True(t, IsCode(err, CodeUnsupportedForProvider))
		assert.False(t, IsKind(err, KindExecution))
	})

	t.Run("wrapped error", func(t *testing.T) {
		err := fmt.Errorf("building install calls: %w", ErrSigningUnsupported)

		assert.True(t, IsKind(err, KindCapability))
		assert.True(t, IsCode(err, CodeSigningUnsupported))
	})

	t.Run("plain error", func(t *testing.T) {
		err := errors.New("plain")

		assert.False(t, IsKind(err, KindConfiguration))
		typed, ok := AsError(err)
		assert.False(t, ok)
		assert.Nil(t, typed)
	})
}

func TestPredefinedErrors(t *testing.T) {
	tests := []struct {
		name string
		err  *Error
		kind Kind
		code string
	}{
		{"ErrEoaRequired", ErrEoaRequired, KindConfiguration, CodeEoaRequired},
		{"ErrFactoryArgsUnavailable", ErrFactoryArgsUnavailable, KindConfiguration, CodeFactoryArgsUnavailable},
		{"ErrSigningUnsupported", ErrSigningUnsupported, KindCapability, CodeSigningUnsupported},
		{"ErrExistingDelegation", ErrExistingDelegation, KindStateConflict, CodeExistingDelegation},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.NotNil(t, tt.err)
			assert.Equal(t, tt.kind, tt.err.Kind)
			assert.Equal(t, tt.code, tt.err.Code)
			assert.NotEmpty(t, tt.err.Message)
		})
	}
}

func TestNotImplemented(t *testing.T) {
	err := NotImplemented("UNSAFE_ENABLE session mode")

	assert.True(t, IsKind(err, KindNotImplemented))
	assert.Equal(t, CodeSessionModeUnimplemented, err.Code)
}
