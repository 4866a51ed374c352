package auth

import (
	"time"

	"github.com/pkg/errors"
)

// PendingConfirmation is an outstanding email confirmation challenge
type PendingConfirmation struct {
	Email     string
	CreatedAt time.Time
}

// ResetStep is the position within a password reset
type ResetStep int

const (
	AwaitingEmail ResetStep = iota
	CodeSent
	AwaitingNewPassword
	Completed
)

func (s ResetStep) String() string {
	switch s {
	case AwaitingEmail:
		return "awaiting_email"
	case CodeSent:
		return "code_sent"
	case AwaitingNewPassword:
		return "awaiting_new_password"
	case Completed:
		return "completed"
	}
	return "unknown"
}

// PasswordResetFlow tracks one password reset from email entry to completion
type PasswordResetFlow struct {
	Email     string
	Step      ResetStep
	StartedAt time.Time
}

// resetTransitions lists the allowed moves. Re-entering CodeSent covers a resent code.
var resetTransitions = map[ResetStep][]ResetStep{
	AwaitingEmail:       {CodeSent},
	CodeSent:            {CodeSent, AwaitingNewPassword},
	AwaitingNewPassword: {AwaitingNewPassword, Completed},
}

func (f *PasswordResetFlow) advance(to ResetStep) error {
	for _, allowed := range resetTransitions[f.Step] {
		if allowed == to {
			f.Step = to
			return nil
		}
	}
	return errors.Errorf("password reset cannot move from %s to %s", f.Step, to)
}
