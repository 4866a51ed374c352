package auth

import (
	"context"
	"net"
	"net/url"

	"github.com/jrsteele09/go-certprep-session/identity"
	"github.com/pkg/errors"
)

// MapError converts a gateway error into a Failure. It never returns nil for a non-nil err.
func MapError(err error) *Failure {
	if err == nil {
		return nil
	}

	var f *Failure
	if errors.As(err, &f) {
		return f
	}

	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return &Failure{Kind: KindNetworkUnavailable, Message: msgNetworkUnavailable, Err: err}
	}

	var pe *identity.ProviderError
	if errors.As(err, &pe) {
		return mapProviderError(pe, err)
	}

	var netErr net.Error
	var urlErr *url.Error
	if errors.As(err, &netErr) || errors.As(err, &urlErr) {
		return &Failure{Kind: KindNetworkUnavailable, Message: msgNetworkUnavailable, Err: err}
	}

	return &Failure{Kind: KindUnknownProviderError, Message: msgUnknownProviderError, Err: err}
}

func mapProviderError(pe *identity.ProviderError, err error) *Failure {
	f := &Failure{Err: err}
	switch pe.Code {
	case identity.CodeNetwork:
		f.Kind, f.Message = KindNetworkUnavailable, msgNetworkUnavailable
	case identity.CodeNotAuthorized, identity.CodeUserNotFound:
		f.Kind, f.Message = KindInvalidCredentials, msgInvalidCredentials
	case identity.CodeUserNotConfirmed:
		f.Kind, f.Message = KindUnconfirmedAccount, msgUnconfirmedAccount
	case identity.CodeCodeMismatch:
		f.Kind, f.Message = KindInvalidConfirmationCode, msgInvalidCode
	case identity.CodeAlreadyConfirmed:
		f.Kind, f.Message = KindInvalidConfirmationCode, msgAlreadyConfirmed
	case identity.CodeExpiredCode:
		f.Kind, f.Message = KindExpiredCode, msgExpiredCode
	case identity.CodeInvalidPassword:
		// The provider's policy text is more useful than a generic message
		f.Kind, f.Message = KindWeakPassword, msgWeakPassword
		if pe.Message != "" {
			f.Message = pe.Message
		}
	case identity.CodeUsernameExists:
		f.Kind, f.Message = KindAccountExists, msgAccountExists
	case identity.CodeLimitExceeded:
		f.Kind, f.Message = KindRateLimited, msgRateLimited
	case identity.CodeInvalidParameter:
		f.Kind, f.Message = KindInvalidInput, msgInvalidInput
	default:
		f.Kind, f.Message = KindUnknownProviderError, msgUnknownProviderError
	}
	return f
}
