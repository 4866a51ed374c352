package auth

import (
	"context"
	"strings"
)

// ResetPassword asks the provider to send a reset code and moves the reset
// flow to CodeSent. A failure leaves the flow at AwaitingEmail.
func (c *Coordinator) ResetPassword(ctx context.Context, email string) Outcome {
	op, rejected := c.begin(ClassReset)
	if rejected != nil {
		return failed(rejected)
	}

	username := normalizeEmail(email)

	c.mu.Lock()
	if c.reset == nil || c.reset.Step == Completed {
		c.reset = &PasswordResetFlow{Step: AwaitingEmail, StartedAt: c.nowTime()}
	} else if !strings.EqualFold(c.reset.Email, username) {
		// A different address restarts the flow
		c.reset = &PasswordResetFlow{Step: AwaitingEmail, StartedAt: c.nowTime()}
	}
	c.mu.Unlock()

	if f := validateEmail(username); f != nil {
		return c.fail(op, f)
	}

	if err := c.gateway.RequestPasswordReset(ctx, username); err != nil {
		return c.fail(op, MapError(err))
	}

	c.mu.Lock()
	if c.reset != nil {
		c.reset.Email = username
		if err := c.reset.advance(CodeSent); err != nil {
			// AwaitingNewPassword asked for a fresh code; start over at CodeSent
			c.reset = &PasswordResetFlow{Email: username, Step: CodeSent, StartedAt: c.reset.StartedAt}
		}
	}
	c.mu.Unlock()

	return c.finish(op, succeeded(StepDone), false)
}

// ConfirmResetPassword sets the new password with the emailed code. It is
// rejected without a provider call unless a code has been sent. Success
// completes the flow but does not sign the user in.
func (c *Coordinator) ConfirmResetPassword(ctx context.Context, email, newPassword, code string) Outcome {
	op, rejected := c.begin(ClassReset)
	if rejected != nil {
		return failed(rejected)
	}

	username := normalizeEmail(email)
	code = strings.TrimSpace(code)

	c.mu.Lock()
	flow := c.reset
	if flow == nil || flow.Step == AwaitingEmail || flow.Step == Completed {
		c.mu.Unlock()
		return c.fail(op, newFailure(KindInvalidFlowState, msgResetNotStarted))
	}
	if username == "" {
		username = flow.Email
	}
	if !strings.EqualFold(flow.Email, username) {
		c.mu.Unlock()
		return c.fail(op, newFailure(KindInvalidFlowState, msgResetEmailMismatch))
	}
	if err := flow.advance(AwaitingNewPassword); err != nil {
		op.logger.Error().Err(err).Msg("password reset flow not advanced")
	}
	c.mu.Unlock()

	if f := validateCode(code); f != nil {
		return c.fail(op, f)
	}
	if f := validatePassword(c.policy, newPassword); f != nil {
		return c.fail(op, f)
	}

	if err := c.gateway.ConfirmPasswordReset(ctx, flow.Email, newPassword, code); err != nil {
		return c.fail(op, MapError(err))
	}

	c.mu.Lock()
	if c.reset == flow {
		if err := flow.advance(Completed); err != nil {
			op.logger.Error().Err(err).Msg("password reset flow not completed")
		}
	}
	c.mu.Unlock()

	return c.finish(op, succeeded(StepDone), false)
}
