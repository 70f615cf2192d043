package errors

import (
	"errors"
	"fmt"
)

// Kind classifies an error into one of the failure families callers are
// expected to branch on.
type Kind string

const (
	// KindConfiguration covers invalid or incomplete account configurations:
	// missing delegate/deployer keys for a deployment mode, unsupported
	// provider/feature combinations, malformed externally supplied init data.
	KindConfiguration Kind = "configuration"

	// KindCapability covers missing runtime capabilities: a key reference
	// with no signer attached, a module that is not installed on-chain.
	KindCapability Kind = "capability"

	// KindStateConflict covers on-chain state that contradicts the requested
	// operation, such as an existing delegation with a foreign storage layout.
	KindStateConflict Kind = "state_conflict"

	// KindExecution covers chain-level failures: reverted calls and failed
	// submissions. These are surfaced verbatim and never retried internally.
	KindExecution Kind = "execution"

	// KindNotImplemented marks operations that are named by the wire format
	// but deliberately not supported rather than guessed at.
	KindNotImplemented Kind = "not_implemented"
)

// Error codes
const (
	CodeUnsupportedConfiguration = "unsupported_configuration"
	CodeFactoryArgsUnavailable   = "factory_args_unavailable"
	CodeUnsupportedForProvider   = "unsupported_for_provider"
	CodeEoaRequired              = "eoa_required"
	CodeSigningUnsupported       = "signing_unsupported"
	CodeExistingDelegation       = "existing_delegation_not_supported"
	CodeSessionModeUnimplemented = "session_mode_not_implemented"
	CodeModuleNotInstalled       = "module_not_installed"
	CodeExecutionReverted        = "execution_reverted"
	CodeSubmissionFailed         = "submission_failed"
	CodeDeploymentTimeout        = "deployment_timeout"
)

// Error is the typed error returned by every operation in this module. It
// names the failure kind and code, and where relevant the provider and stage
// that produced it, so a caller never has to parse message text.
type Error struct {
	Kind     Kind   `json:"kind"`
	Code     string `json:"code"`
	Provider string `json:"provider,omitempty"`
	Stage    string `json:"stage,omitempty"`
	Message  string `json:"message"`
	Detail   string `json:"detail,omitempty"`

	// Err carries the underlying cause (for example a reverted eth_call),
	// propagated verbatim.
	Err error `json:"-"`
}

func (e *Error) Error() string {
	msg := fmt.Sprintf("%s: %s", e.Code, e.Message)
	if e.Provider != "" {
		msg = fmt.Sprintf("%s [provider=%s]", msg, e.Provider)
	}
	if e.Detail != "" {
		msg = fmt.Sprintf("%s (%s)", msg, e.Detail)
	}
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

// Unwrap exposes the underlying cause to errors.Is/errors.As.
func (e *Error) Unwrap() error {
	return e.Err
}

// WithProvider returns a copy of the error annotated with the provider name.
func (e *Error) WithProvider(provider string) *Error {
	clone := *e
	clone.Provider = provider
	return &clone
}

// WithStage returns a copy of the error annotated with the pipeline stage
// (for example "deploy_args" or "pack_signature").
func (e *Error) WithStage(stage string) *Error {
	clone := *e
	clone.Stage = stage
	return &clone
}

// Configuration creates a configuration error.
func Configuration(code, message string) *Error {
	return &Error{Kind: KindConfiguration, Code: code, Message: message}
}

// ConfigurationDetail creates a configuration error with detail text.
func ConfigurationDetail(code, message, detail string) *Error {
	return &Error{Kind: KindConfiguration, Code: code, Message: message, Detail: detail}
}

// Capability creates a capability error.
func Capability(code, message string) *Error {
	return &Error{Kind: KindCapability, Code: code, Message: message}
}

// StateConflict creates a state-conflict error.
func StateConflict(code, message string) *Error {
	return &Error{Kind: KindStateConflict, Code: code, Message: message}
}

// Execution wraps a chain-level failure. The cause is preserved for
// errors.Is/errors.As and printed verbatim.
func Execution(code, message string, cause error) *Error {
	return &Error{Kind: KindExecution, Code: code, Message: message, Err: cause}
}

// NotImplemented marks a deliberately unsupported operation.
func NotImplemented(message string) *Error {
	return &Error{Kind: KindNotImplemented, Code: CodeSessionModeUnimplemented, Message: message}
}

// Predefined errors for the common eager-validation failures.
var (
	// ErrEoaRequired is returned when a delegation-style operation is
	// requested without a delegate key in the configuration.
	ErrEoaRequired = Configuration(CodeEoaRequired, "delegated deployment requires an EOA delegate key")

	// ErrFactoryArgsUnavailable is returned when deploy args are requested
	// for a configuration whose provider exposes no complete factory call.
	ErrFactoryArgsUnavailable = Configuration(CodeFactoryArgsUnavailable, "factory deployment args are not available for this configuration")

	// ErrSigningUnsupported is returned when a signer set names a key that
	// exposes no signing capability.
	ErrSigningUnsupported = Capability(CodeSigningUnsupported, "key exposes no signing capability")

	// ErrExistingDelegation is returned when an account already carries a
	// delegation marker this module did not place and cannot safely reuse.
	ErrExistingDelegation = StateConflict(CodeExistingDelegation, "account has an existing delegation with an unknown storage layout")
)

// UnsupportedForProvider creates the error returned when a feature is
// requested on a provider that does not implement it.
func UnsupportedForProvider(provider, feature string) *Error {
	return &Error{
		Kind:     KindConfiguration,
		Code:     CodeUnsupportedForProvider,
		Provider: provider,
		Message:  fmt.Sprintf("%s is not supported", feature),
	}
}

// UnsupportedConfiguration creates the error returned when externally
// supplied init data matches no known factory-call schema.
func UnsupportedConfiguration(provider, detail string) *Error {
	return &Error{
		Kind:     KindConfiguration,
		Code:     CodeUnsupportedConfiguration,
		Provider: provider,
		Message:  "init data matches no known factory call for this provider",
		Detail:   detail,
	}
}

// AsError extracts a typed *Error from err, unwrapping as needed.
func AsError(err error) (*Error, bool) {
	var typed *Error
	if errors.As(err, &typed) {
		return typed, true
	}
	return nil, false
}

// IsKind reports whether err (or anything it wraps) is a typed error of the
// given kind.
func IsKind(err error, kind Kind) bool {
	typed, ok := AsError(err)
	return ok && typed.Kind == kind
}

// IsCode reports whether err (or anything it wraps) carries the given code.
func IsCode(err error, code string) bool {
	typed, ok := AsError(err)
	return ok && typed.Code == code
}
