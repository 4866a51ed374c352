package auth

import (
	"context"

	"github.com/jrsteele09/go-certprep-session/sessions"
)

// SignIn authenticates with email and password.
//
// A device already signed in as the same user (case-insensitive) short-circuits
// to success without calling the provider's sign-in. A device signed in as a
// different user is signed out first. A sign-in that needs another step
// (confirmation, MFA, new password) fails with a kind naming that step and
// leaves the session anonymous; the caller routes to the matching flow.
func (c *Coordinator) SignIn(ctx context.Context, email, password string) Outcome {
	op, rejected := c.begin(ClassSignIn)
	if rejected != nil {
		return failed(rejected)
	}

	username := normalizeEmail(email)
	if f := validateEmail(username); f != nil {
		return c.fail(op, f)
	}
	if password == "" {
		return c.fail(op, newFailure(KindInvalidInput, msgPasswordRequired))
	}

	if c.ensureSignedOutBeforeSignIn(ctx, op, username) {
		op.logger.Debug().Str("kind", string(KindAlreadyAuthenticated)).Msg("sign-in skipped")
		return c.finish(op, succeeded(StepDone), false)
	}

	c.setStateIfCurrent(op, sessions.AuthenticatingState())

	result, err := c.gateway.SignIn(ctx, username, password)
	if err != nil {
		f := MapError(err)
		outcome := failed(f)
		if f.Kind == KindUnconfirmedAccount {
			c.startPendingConfirmation(username)
			outcome.NextStep = StepConfirmSignUp
		}
		c.setStateIfCurrent(op, sessions.AnonymousState())
		return c.finish(op, outcome, true)
	}

	if !result.IsSignedIn {
		step, f := signInStep(result.NextStep)
		if f.Kind == KindUnconfirmedAccount {
			c.startPendingConfirmation(username)
		}
		c.setStateIfCurrent(op, sessions.AnonymousState())
		return c.finish(op, Outcome{NextStep: step, Failure: f}, true)
	}

	user, err := c.currentUser(ctx)
	if err != nil || user == nil {
		// Signed in remotely but the user cannot be read back; do not keep a half session
		c.signOutQuietly(ctx, op)
		c.setStateIfCurrent(op, sessions.AnonymousState())
		if err == nil {
			return c.fail(op, newFailure(KindUnknownProviderError, msgUnknownProviderError))
		}
		return c.fail(op, MapError(err))
	}

	if !c.setStateIfCurrent(op, sessions.SignedInState(*user)) {
		c.signOutQuietly(ctx, op)
		return c.fail(op, newFailure(KindSuperseded, msgSuperseded))
	}

	op.logger.Info().Str("user_id", user.UserID).Msg("signed in")
	return c.finish(op, succeeded(StepDone), false)
}

// ensureSignedOutBeforeSignIn returns true when the device is already signed in as username.
// Failing to read the provider session is treated as signed out.
func (c *Coordinator) ensureSignedOutBeforeSignIn(ctx context.Context, op *operation, username string) bool {
	session, err := c.gateway.FetchSession(ctx)
	if err != nil {
		op.logger.Debug().Err(err).Msg("could not read session before sign-in")
		return false
	}
	if !session.IsSignedIn {
		return false
	}

	current, err := c.gateway.GetCurrentUser(ctx)
	if err == nil {
		identity := sessions.UserIdentity{UserID: current.UserID, Username: current.Username}
		if identity.SameUsername(username) {
			op.logger.Info().Str("user_id", identity.UserID).Msg("already signed in as this user")
			c.setStateIfCurrent(op, sessions.SignedInState(identity))
			return true
		}
		op.logger.Info().Str("user_id", identity.UserID).Msg("signing out previous user before sign-in")
	} else {
		op.logger.Debug().Err(err).Msg("session without readable user, signing out before sign-in")
	}

	c.signOutQuietly(ctx, op)
	c.setStateIfCurrent(op, sessions.AnonymousState())
	return false
}

func (c *Coordinator) signOutQuietly(ctx context.Context, op *operation) {
	if err := c.gateway.SignOut(ctx); err != nil {
		op.logger.Warn().Err(err).Msg("remote sign-out failed")
	}
}

func (c *Coordinator) startPendingConfirmation(username string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.pending = &PendingConfirmation{Email: username, CreatedAt: c.nowTime()}
}
