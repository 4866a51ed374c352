package auth

import "fmt"

// ErrorKind classifies why a coordinator operation failed
type ErrorKind string

const (
	KindNone                        ErrorKind = "none"
	KindNetworkUnavailable          ErrorKind = "network_unavailable"
	KindInvalidCredentials          ErrorKind = "invalid_credentials"
	KindUnconfirmedAccount          ErrorKind = "unconfirmed_account"
	KindAdditionalChallengeRequired ErrorKind = "additional_challenge_required"
	KindInvalidConfirmationCode     ErrorKind = "invalid_confirmation_code"
	KindExpiredCode                 ErrorKind = "expired_code"
	KindWeakPassword                ErrorKind = "weak_password"
	KindPasswordMismatch            ErrorKind = "password_mismatch"
	KindAlreadyAuthenticated        ErrorKind = "already_authenticated"
	KindUnknownProviderError        ErrorKind = "unknown_provider_error"
	KindInvalidInput                ErrorKind = "invalid_input"
	KindAccountExists               ErrorKind = "account_exists"
	KindRateLimited                 ErrorKind = "rate_limited"
	KindOperationInProgress         ErrorKind = "operation_in_progress"
	KindInvalidFlowState            ErrorKind = "invalid_flow_state"
	KindSuperseded                  ErrorKind = "superseded"
)

// Challenge identifies the secondary step behind KindAdditionalChallengeRequired
type Challenge string

const (
	ChallengeNone          Challenge = ""
	ChallengeMFACode       Challenge = "mfa_code"
	ChallengeNewPassword   Challenge = "new_password"
	ChallengeResetPassword Challenge = "reset_password"
	ChallengeOther         Challenge = "other"
)

// User facing messages
const (
	msgNetworkUnavailable   = "Unable to reach the server. Check your connection and try again."
	msgInvalidCredentials   = "Incorrect email or password."
	msgUnconfirmedAccount   = "Please confirm your email address. Enter the code we sent to your inbox."
	msgMFACode              = "Enter the verification code from your authenticator app."
	msgNewPassword          = "You need to choose a new password before signing in."
	msgResetPassword        = "Your password must be reset. Use Forgot Password to continue."
	msgOtherChallenge       = "Additional verification is required to sign in."
	msgInvalidCode          = "The code you entered is incorrect."
	msgAlreadyConfirmed     = "This account is already confirmed. Sign in instead."
	msgExpiredCode          = "That code has expired. Request a new one."
	msgWeakPassword         = "Password does not meet the requirements."
	msgPasswordMismatch     = "Passwords do not match."
	msgAccountExists        = "An account with this email already exists."
	msgRateLimited          = "Too many attempts. Please wait a moment and try again."
	msgInvalidInput         = "Please check the details you entered."
	msgEmailRequired        = "Enter a valid email address."
	msgPasswordRequired     = "Enter your password."
	msgCodeRequired         = "Enter the code we sent to your email."
	msgOperationInProgress  = "Another request is already in progress."
	msgResetNotStarted      = "Request a reset code before choosing a new password."
	msgResetEmailMismatch   = "Use the email address the reset code was sent to."
	msgSuperseded           = "You were signed out while signing in. Please try again."
	msgUnknownProviderError = "Something went wrong. Please try again."
)

// Failure is the mapped result of a failed operation.
// Message is safe to show to the user; Err keeps the detail for logs.
type Failure struct {
	Kind      ErrorKind
	Challenge Challenge
	Message   string
	Err       error
}

func (f *Failure) Error() string {
	if f.Err != nil {
		return fmt.Sprintf("%s: %s: %v", f.Kind, f.Message, f.Err)
	}
	return fmt.Sprintf("%s: %s", f.Kind, f.Message)
}

func (f *Failure) Unwrap() error {
	return f.Err
}

func newFailure(kind ErrorKind, message string) *Failure {
	return &Failure{Kind: kind, Message: message}
}

func challengeFailure(challenge Challenge) *Failure {
	f := &Failure{Kind: KindAdditionalChallengeRequired, Challenge: challenge}
	switch challenge {
	case ChallengeMFACode:
		f.Message = msgMFACode
	case ChallengeNewPassword:
		f.Message = msgNewPassword
	case ChallengeResetPassword:
		f.Message = msgResetPassword
	default:
		f.Challenge = ChallengeOther
		f.Message = msgOtherChallenge
	}
	return f
}
