package identity

import (
	"fmt"

	"github.com/pkg/errors"
)

// Code classifies a provider failure
type Code string

const (
	CodeUnknown          Code = "unknown"
	CodeNetwork          Code = "network"
	CodeNotAuthorized    Code = "not_authorized"
	CodeUserNotFound     Code = "user_not_found"
	CodeUserNotConfirmed Code = "user_not_confirmed"
	CodeCodeMismatch     Code = "code_mismatch"
	CodeExpiredCode      Code = "expired_code"
	CodeInvalidPassword  Code = "invalid_password"
	CodeUsernameExists   Code = "username_exists"
	CodeLimitExceeded    Code = "limit_exceeded"
	CodeInvalidParameter Code = "invalid_parameter"
	CodeAlreadyConfirmed Code = "already_confirmed"
)

// ProviderError is returned by gateways for failures reported by the provider
// or by the transport underneath it.
type ProviderError struct {
	Code    Code
	Message string
	Err     error
}

func (e *ProviderError) Error() string {
	msg := e.Message
	if msg == "" {
		msg = string(e.Code)
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, msg, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, msg)
}

func (e *ProviderError) Unwrap() error {
	return e.Err
}

// NewProviderError builds a ProviderError
func NewProviderError(code Code, message string, err error) *ProviderError {
	return &ProviderError{Code: code, Message: message, Err: err}
}

// CodeOf returns the provider code carried in err's chain, or CodeUnknown
func CodeOf(err error) Code {
	var pe *ProviderError
	if errors.As(err, &pe) {
		return pe.Code
	}
	return CodeUnknown
}

// ParseCode maps a wire error code onto a Code
func ParseCode(s string) Code {
	switch Code(s) {
	case CodeNetwork, CodeNotAuthorized, CodeUserNotFound, CodeUserNotConfirmed,
		CodeCodeMismatch, CodeExpiredCode, CodeInvalidPassword, CodeUsernameExists,
		CodeLimitExceeded, CodeInvalidParameter, CodeAlreadyConfirmed:
		return Code(s)
	}
	switch s {
	case "invalid_grant", "access_denied", "unauthorized":
		return CodeNotAuthorized
	case "invalid_request":
		return CodeInvalidParameter
	case "too_many_requests", "slow_down":
		return CodeLimitExceeded
	}
	return CodeUnknown
}
