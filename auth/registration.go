package auth

import (
	"context"
	"strings"

	"github.com/jrsteele09/go-certprep-session/identity"
)

// SignUp registers a new account. It never changes the session state: the new
// account is not authenticated. A password that fails the local policy is
// rejected before any provider call.
func (c *Coordinator) SignUp(ctx context.Context, email, password, fullName string) Outcome {
	op, rejected := c.begin(ClassSignUp)
	if rejected != nil {
		return failed(rejected)
	}

	username := normalizeEmail(email)
	if f := validateEmail(username); f != nil {
		return c.fail(op, f)
	}
	if f := validatePassword(c.policy, password); f != nil {
		return c.fail(op, f)
	}

	result, err := c.gateway.SignUp(ctx, username, password, identity.Attributes{
		Email: username,
		Name:  strings.TrimSpace(fullName),
	})
	if err != nil {
		return c.fail(op, MapError(err))
	}

	if result.IsComplete {
		return c.finish(op, succeeded(StepDone), false)
	}

	c.startPendingConfirmation(username)
	return c.finish(op, succeeded(StepConfirmSignUp), false)
}

// ConfirmSignUp redeems a confirmation code. Success does not sign the user in;
// a separate SignIn is required. Failure keeps the pending confirmation for a retry.
func (c *Coordinator) ConfirmSignUp(ctx context.Context, email, code string) Outcome {
	op, rejected := c.begin(ClassConfirm)
	if rejected != nil {
		return failed(rejected)
	}

	username := normalizeEmail(email)
	code = strings.TrimSpace(code)
	if f := validateEmail(username); f != nil {
		return c.fail(op, f)
	}
	if f := validateCode(code); f != nil {
		return c.fail(op, f)
	}

	if _, err := c.gateway.ConfirmSignUp(ctx, username, code); err != nil {
		return c.fail(op, MapError(err))
	}

	c.mu.Lock()
	if c.pending != nil && strings.EqualFold(c.pending.Email, username) {
		c.pending = nil
	}
	c.mu.Unlock()

	return c.finish(op, succeeded(StepDone), false)
}

// ResendConfirmationCode asks the provider for a new code. It is best effort:
// it takes no in-flight token, failures are only logged and the store is left alone.
// Requests faster than the resend interval are dropped.
func (c *Coordinator) ResendConfirmationCode(ctx context.Context, email string) Outcome {
	logger := c.logger.With().Str("op", string(ClassResend)).Logger()
	started := c.nowTime()

	username := normalizeEmail(email)
	if f := validateEmail(username); f != nil {
		logger.Debug().Msg("resend skipped, no email")
		return failed(f)
	}

	if !c.resendLimiter.Allow() {
		logger.Info().Msg("resend throttled")
		c.metrics.RecordOperation(string(ClassResend), string(KindRateLimited), 0)
		return failed(newFailure(KindRateLimited, msgRateLimited))
	}

	if err := c.gateway.ResendConfirmationCode(ctx, username); err != nil {
		f := MapError(err)
		logger.Warn().Err(err).Str("kind", string(f.Kind)).Msg("resend failed")
		c.metrics.RecordOperation(string(ClassResend), string(f.Kind), c.nowTime().Sub(started))
		return failed(f)
	}

	c.metrics.RecordOperation(string(ClassResend), string(KindNone), c.nowTime().Sub(started))
	logger.Debug().Msg("confirmation code resent")
	return succeeded(StepConfirmSignUp)
}
