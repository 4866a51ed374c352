package identity

import "context"

// NextStep is what the provider needs before a sign-in is complete.
type NextStep string

const (
	NextStepDone              NextStep = "done"
	NextStepConfirmSignUp     NextStep = "confirm_sign_up"
	NextStepMFACode           NextStep = "mfa_code"
	NextStepNewPassword       NextStep = "new_password_required"
	NextStepResetPassword     NextStep = "reset_password"
	NextStepContinueChallenge NextStep = "continue_challenge"
)

// Session is the provider's view of the current device session
type Session struct {
	IsSignedIn bool
}

// User identifies the signed in user
type User struct {
	UserID   string
	Username string
}

// Attributes are sent with a sign-up
type Attributes struct {
	Email string
	Name  string
}

type SignUpResult struct {
	IsComplete bool
}

type ConfirmSignUpResult struct {
	IsComplete bool
}

type SignInResult struct {
	IsSignedIn bool
	NextStep   NextStep
}

// Gateway is the capability set consumed from the identity provider SDK.
// Implementations own their retry and network semantics.
type Gateway interface {
	// FetchSession reports whether the device holds an active session
	FetchSession(ctx context.Context) (Session, error)

	// GetCurrentUser returns the user behind the active session
	GetCurrentUser(ctx context.Context) (User, error)

	// SignUp registers a new account
	SignUp(ctx context.Context, username, password string, attributes Attributes) (SignUpResult, error)

	// ConfirmSignUp redeems the confirmation code sent after sign-up
	ConfirmSignUp(ctx context.Context, username, code string) (ConfirmSignUpResult, error)

	// ResendConfirmationCode sends a fresh confirmation code
	ResendConfirmationCode(ctx context.Context, username string) error

	// SignIn authenticates with username and password
	SignIn(ctx context.Context, username, password string) (SignInResult, error)

	// SignOut ends the device session
	SignOut(ctx context.Context) error

	// RequestPasswordReset sends a reset code
	RequestPasswordReset(ctx context.Context, username string) error

	// ConfirmPasswordReset sets a new password using a reset code
	ConfirmPasswordReset(ctx context.Context, username, newPassword, code string) error
}
