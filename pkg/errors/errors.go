// Package errors provides structured error handling for the Ledger
// subprovider. It defines sentinel errors for every named failure kind,
// exit codes for the CLI, and helpers for adding context and details.
//
//nolint:revive // Package name intentionally shadows stdlib for domain-specific error handling
package errors

import (
	"errors"
	"fmt"
	"sort"
)

// Exit codes for the CLI.
const (
	ExitSuccess  = 0 // Successful execution
	ExitGeneral  = 1 // General/unknown error
	ExitInput    = 2 // Invalid input
	ExitNotFound = 3 // Resource not found
	ExitDevice   = 4 // Device communication failed
)

// ProviderError is the structured error type for the subprovider.
type ProviderError struct {
	Code     string            // Machine-readable error code
	Message  string            // Human-readable message
	Details  map[string]string // Additional context
	Cause    error             // Underlying error
	ExitCode int               // Exit code for CLI
}

func (e *ProviderError) Error() string {
	msg := e.Message

	// Include details in error message (sorted for deterministic output)
	if len(e.Details) > 0 {
		keys := make([]string, 0, len(e.Details))
		for k := range e.Details {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			msg = fmt.Sprintf("%s (%s: %s)", msg, k, e.Details[k])
		}
	}

	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", msg, e.Cause)
	}
	return msg
}

func (e *ProviderError) Unwrap() error {
	return e.Cause
}

// Is implements errors.Is for ProviderError.
func (e *ProviderError) Is(target error) bool {
	var t *ProviderError
	if errors.As(target, &t) {
		return e.Code == t.Code
	}
	return false
}

// Sentinel errors.
var (
	// Configuration errors - rejected before any device call.
	ErrInvalidKeyMaterial = &ProviderError{
		Code:     "INVALID_KEY_MATERIAL",
		Message:  "malformed public key or chain code",
		ExitCode: ExitInput,
	}

	ErrInvalidTransactionParams = &ProviderError{
		Code:     "INVALID_TRANSACTION_PARAMS",
		Message:  "transaction parameters are missing or invalid",
		ExitCode: ExitInput,
	}

	ErrFromAddressInvalid = &ProviderError{
		Code:     "FROM_ADDRESS_MISSING_OR_INVALID",
		Message:  "from address is missing or not a valid address",
		ExitCode: ExitInput,
	}

	ErrDataMissingForSignPersonalMessage = &ProviderError{
		Code:     "DATA_MISSING_FOR_SIGN_PERSONAL_MESSAGE",
		Message:  "no data provided to sign",
		ExitCode: ExitInput,
	}

	ErrInvalidDerivationPath = &ProviderError{
		Code:     "INVALID_DERIVATION_PATH",
		Message:  "derivation path is malformed",
		ExitCode: ExitInput,
	}

	ErrConfigInvalid = &ProviderError{
		Code:     "CONFIG_INVALID",
		Message:  "configuration is invalid",
		ExitCode: ExitInput,
	}

	// Protocol violation - indicates a bug in the orchestration layer.
	ErrMultipleOpenConnections = &ProviderError{
		Code:     "MULTIPLE_OPEN_CONNECTIONS_DISALLOWED",
		Message:  "a device connection is already open",
		ExitCode: ExitGeneral,
	}

	// Lookup failure - recoverable by widening the search bound.
	ErrAddressNotFound = &ProviderError{
		Code:     "ADDRESS_NOT_FOUND",
		Message:  "address not found among derived accounts",
		ExitCode: ExitNotFound,
	}

	// Validation failures - the signed artifact is discarded.
	ErrWrongSigner = &ProviderError{
		Code:     "WRONG_SIGNER",
		Message:  "recovered signer does not match the requested from address",
		ExitCode: ExitGeneral,
	}

	ErrWrongSignature = &ProviderError{
		Code:     "WRONG_SIGNATURE",
		Message:  "device returned an invalid signature",
		ExitCode: ExitGeneral,
	}

	// Device transport failures - opaque passthrough, never interpreted.
	ErrDeviceCommunication = &ProviderError{
		Code:     "DEVICE_COMMUNICATION_ERROR",
		Message:  "device communication failed",
		ExitCode: ExitDevice,
	}

	ErrNoDeviceFound = &ProviderError{
		Code:     "NO_DEVICE_FOUND",
		Message:  "no Ledger device found",
		ExitCode: ExitDevice,
	}

	// Unsupported operation - permanent, not retryable.
	ErrMethodNotSupported = &ProviderError{
		Code:     "METHOD_NOT_SUPPORTED",
		Message:  "method is not supported by the device firmware",
		ExitCode: ExitInput,
	}
)

// New creates a new ProviderError with the given code and message.
func New(code, message string) *ProviderError {
	return &ProviderError{
		Code:     code,
		Message:  message,
		ExitCode: ExitGeneral,
	}
}

// Wrap wraps an error with additional context, preserving the code and
// exit code of an underlying ProviderError.
func Wrap(err error, format string, args ...any) error {
	if err == nil {
		return nil
	}

	msg := fmt.Sprintf(format, args...)

	var pe *ProviderError
	if errors.As(err, &pe) {
		return &ProviderError{
			Code:     pe.Code,
			Message:  fmt.Sprintf("%s: %s", msg, pe.Message),
			Details:  pe.Details,
			Cause:    err,
			ExitCode: pe.ExitCode,
		}
	}

	return &ProviderError{
		Code:     "GENERAL_ERROR",
		Message:  msg,
		Cause:    err,
		ExitCode: ExitGeneral,
	}
}

// WithDetails adds details to an error.
func WithDetails(err error, details map[string]string) error {
	if err == nil {
		return nil
	}

	var pe *ProviderError
	if errors.As(err, &pe) {
		return &ProviderError{
			Code:     pe.Code,
			Message:  pe.Message,
			Details:  details,
			Cause:    pe.Cause,
			ExitCode: pe.ExitCode,
		}
	}

	return &ProviderError{
		Code:     "GENERAL_ERROR",
		Message:  err.Error(),
		Details:  details,
		Cause:    err,
		ExitCode: ExitGeneral,
	}
}

// Device tags an error as a device communication failure while keeping
// the transport error as the cause. ProviderError causes pass through
// untouched so validation failures are not re-tagged.
func Device(err error) error {
	if err == nil {
		return nil
	}

	var pe *ProviderError
	if errors.As(err, &pe) {
		return err
	}

	return &ProviderError{
		Code:     ErrDeviceCommunication.Code,
		Message:  ErrDeviceCommunication.Message,
		Cause:    err,
		ExitCode: ExitDevice,
	}
}

// ExitCode returns the appropriate exit code for an error.
func ExitCode(err error) int {
	if err == nil {
		return ExitSuccess
	}

	var pe *ProviderError
	if errors.As(err, &pe) {
		return pe.ExitCode
	}

	return ExitGeneral
}

// Code returns the error code for an error.
func Code(err error) string {
	var pe *ProviderError
	if errors.As(err, &pe) {
		return pe.Code
	}
	return "GENERAL_ERROR"
}

// Is wraps errors.Is for convenience.
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As wraps errors.As for convenience.
func As(err error, target any) bool {
	return errors.As(err, target)
}
