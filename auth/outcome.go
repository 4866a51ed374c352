package auth

import "github.com/jrsteele09/go-certprep-session/identity"

// NextStep tells the caller which flow to route to after an operation
type NextStep string

const (
	StepDone          NextStep = "done"
	StepConfirmSignUp NextStep = "confirm_sign_up"
	StepMFACode       NextStep = "mfa_code"
	StepNewPassword   NextStep = "new_password"
	StepResetPassword NextStep = "reset_password"
	StepOther         NextStep = "other"
)

// Outcome is returned by every coordinator operation.
// Failure is nil on success.
type Outcome struct {
	NextStep NextStep
	Failure  *Failure
}

func (o Outcome) OK() bool {
	return o.Failure == nil
}

func (o Outcome) Kind() ErrorKind {
	if o.Failure == nil {
		return KindNone
	}
	return o.Failure.Kind
}

func (o Outcome) Message() string {
	if o.Failure == nil {
		return ""
	}
	return o.Failure.Message
}

// Err returns the failure as an error, or nil on success
func (o Outcome) Err() error {
	if o.Failure == nil {
		return nil
	}
	return o.Failure
}

func succeeded(step NextStep) Outcome {
	return Outcome{NextStep: step}
}

func failed(f *Failure) Outcome {
	return Outcome{NextStep: StepDone, Failure: f}
}

// signInStep translates the provider's next step for a sign-in that is not complete
func signInStep(step identity.NextStep) (NextStep, *Failure) {
	switch step {
	case identity.NextStepConfirmSignUp:
		return StepConfirmSignUp, newFailure(KindUnconfirmedAccount, msgUnconfirmedAccount)
	case identity.NextStepMFACode:
		return StepMFACode, challengeFailure(ChallengeMFACode)
	case identity.NextStepNewPassword:
		return StepNewPassword, challengeFailure(ChallengeNewPassword)
	case identity.NextStepResetPassword:
		return StepResetPassword, challengeFailure(ChallengeResetPassword)
	}
	return StepOther, challengeFailure(ChallengeOther)
}
