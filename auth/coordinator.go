package auth

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jrsteele09/go-certprep-session/identity"
	"github.com/jrsteele09/go-certprep-session/internal/metrics"
	"github.com/jrsteele09/go-certprep-session/sessions"
	"github.com/jrsteele09/go-certprep-session/users"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"
)

// OperationClass scopes the in-flight guard and labels metrics
type OperationClass string

const (
	ClassBootstrap OperationClass = "bootstrap"
	ClassSignIn    OperationClass = "sign_in"
	ClassSignUp    OperationClass = "sign_up"
	ClassConfirm   OperationClass = "confirm"
	ClassResend    OperationClass = "resend"
	ClassReset     OperationClass = "reset"
	ClassSignOut   OperationClass = "sign_out"
)

const defaultResendInterval = 30 * time.Second

// operation is the in-flight token. generation is the sign-out count when it started.
type operation struct {
	id         uuid.UUID
	class      OperationClass
	started    time.Time
	generation uint64
	logger     zerolog.Logger
}

// Coordinator is the only component allowed to call the identity gateway
// and to change the session store.
type Coordinator struct {
	gateway        identity.Gateway
	store          *sessions.Store
	logger         zerolog.Logger
	metrics        metrics.Recorder
	policy         users.PasswordPolicy
	nowTime        func() time.Time
	resendInterval time.Duration
	resendLimiter  *rate.Limiter

	mu         sync.Mutex
	inflight   *operation
	generation uint64
	active     int
	signingOut int
	// bootstrapDue is set when a bootstrap was turned away; the op holding the token settles it
	bootstrapDue bool
	pending      *PendingConfirmation
	reset        *PasswordResetFlow
}

// Option modifies the Coordinator
type Option func(*Coordinator)

func WithLogger(logger zerolog.Logger) Option {
	return func(c *Coordinator) {
		c.logger = logger
	}
}

// WithNowTime sets the now time function (primarily for testing)
func WithNowTime(nowFunc func() time.Time) Option {
	return func(c *Coordinator) {
		c.nowTime = nowFunc
	}
}

func WithMetrics(recorder metrics.Recorder) Option {
	return func(c *Coordinator) {
		c.metrics = recorder
	}
}

func WithPasswordPolicy(policy users.PasswordPolicy) Option {
	return func(c *Coordinator) {
		c.policy = policy
	}
}

// WithResendInterval sets the minimum gap between confirmation code resends.
// Zero or negative disables throttling.
func WithResendInterval(interval time.Duration) Option {
	return func(c *Coordinator) {
		c.resendInterval = interval
	}
}

// NewCoordinator creates the session coordinator. It owns a fresh store in the
// anonymous, not yet bootstrapped state.
func NewCoordinator(gateway identity.Gateway, options ...Option) (*Coordinator, error) {
	if gateway == nil {
		return nil, errors.New("[NewCoordinator] gateway is required")
	}

	c := &Coordinator{
		gateway:        gateway,
		logger:         log.Logger,
		metrics:        metrics.Nop{},
		policy:         users.DefaultPasswordPolicy(),
		nowTime:        time.Now,
		resendInterval: defaultResendInterval,
	}

	for _, opt := range options {
		opt(c)
	}

	if c.policy.MinLength <= 0 {
		return nil, errors.New("[NewCoordinator] password policy needs a minimum length")
	}

	c.logger = c.logger.With().Str("component", "auth").Logger()
	c.store = sessions.NewStore(func(s sessions.Snapshot) {
		c.metrics.RecordSessionState(s.State.Status.String())
	})

	limit := rate.Inf
	if c.resendInterval > 0 {
		limit = rate.Every(c.resendInterval)
	}
	c.resendLimiter = rate.NewLimiter(limit, 1)

	return c, nil
}

// Store returns the read side of the session store for observers
func (c *Coordinator) Store() sessions.Reader {
	return c.store
}

// PendingConfirmation returns the outstanding email confirmation, if any
func (c *Coordinator) PendingConfirmation() (PendingConfirmation, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.pending == nil {
		return PendingConfirmation{}, false
	}
	return *c.pending, true
}

// AbandonConfirmation drops the pending confirmation when the user leaves the flow
func (c *Coordinator) AbandonConfirmation() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.pending = nil
}

// PasswordResetFlow returns the current password reset, if any
func (c *Coordinator) PasswordResetFlow() (PasswordResetFlow, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.reset == nil {
		return PasswordResetFlow{}, false
	}
	return *c.reset, true
}

// BeginPasswordReset starts a reset at the email entry step, replacing any previous one
func (c *Coordinator) BeginPasswordReset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.reset = &PasswordResetFlow{Step: AwaitingEmail, StartedAt: c.nowTime()}
}

// CancelPasswordReset drops the current password reset
func (c *Coordinator) CancelPasswordReset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.reset = nil
}

// BootstrapSession restores the session the provider holds for this device.
// Every failure means "not signed in"; error detail is logged, never surfaced.
func (c *Coordinator) BootstrapSession(ctx context.Context) Outcome {
	op, rejected := c.begin(ClassBootstrap)
	if rejected != nil {
		return failed(rejected)
	}

	c.setStateIfCurrent(op, sessions.AuthenticatingState())

	state := sessions.AnonymousState()
	if user, err := c.currentUser(ctx); err != nil {
		op.logger.Debug().Err(err).Msg("no session restored")
	} else if user != nil {
		state = sessions.SignedInState(*user)
		op.logger.Info().Str("user_id", user.UserID).Msg("session restored")
	}

	c.mu.Lock()
	current := op.generation == c.generation
	c.store.Apply(func(m *sessions.Mutation) {
		if current {
			m.SetState(state)
		}
		m.MarkBootstrapped()
	})
	c.mu.Unlock()

	return c.finish(op, succeeded(StepDone), false)
}

// currentUser returns nil, nil when the provider reports no active session
func (c *Coordinator) currentUser(ctx context.Context) (*sessions.UserIdentity, error) {
	session, err := c.gateway.FetchSession(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "[Coordinator.currentUser] FetchSession")
	}
	if !session.IsSignedIn {
		return nil, nil
	}
	user, err := c.gateway.GetCurrentUser(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "[Coordinator.currentUser] GetCurrentUser")
	}
	return &sessions.UserIdentity{UserID: user.UserID, Username: user.Username}, nil
}

// SignOut always leaves the store anonymous. The provider call is best effort.
// It is never rejected, and any operation already in flight can no longer sign a user in.
func (c *Coordinator) SignOut(ctx context.Context) Outcome {
	started := c.nowTime()

	c.mu.Lock()
	c.generation++
	c.active++
	c.signingOut++
	c.store.Apply(func(m *sessions.Mutation) {
		m.SetState(sessions.SigningOutState())
		m.SetLoading(true)
		m.ClearLastError()
	})
	c.mu.Unlock()

	kind := KindNone
	if err := c.gateway.SignOut(ctx); err != nil {
		kind = MapError(err).Kind
		c.logger.Warn().Err(err).Str("op", string(ClassSignOut)).Msg("remote sign-out failed, local session cleared anyway")
	}

	c.mu.Lock()
	c.active--
	c.signingOut--
	c.bootstrapDue = false
	loading := c.active > 0
	c.store.Apply(func(m *sessions.Mutation) {
		m.SetState(sessions.AnonymousState())
		m.SetLoading(loading)
		m.MarkBootstrapped()
	})
	c.mu.Unlock()

	c.metrics.RecordOperation(string(ClassSignOut), string(kind), c.nowTime().Sub(started))
	c.logger.Info().Str("op", string(ClassSignOut)).Msg("signed out")
	return succeeded(StepDone)
}

// begin takes the in-flight token. Only one guarded operation runs at a time
// and none starts while a sign-out is in progress; a rejected call touches
// neither the store nor the gateway.
func (c *Coordinator) begin(class OperationClass) (*operation, *Failure) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.inflight != nil || c.signingOut > 0 {
		busyWith := ClassSignOut
		if c.inflight != nil {
			busyWith = c.inflight.class
			if class == ClassBootstrap {
				c.bootstrapDue = true
			}
		}
		c.metrics.RecordRejected(string(class))
		c.logger.Debug().
			Str("op", string(class)).
			Str("busy_with", string(busyWith)).
			Msg("operation rejected, another is in flight")
		return nil, newFailure(KindOperationInProgress, msgOperationInProgress)
	}

	id := uuid.New()
	op := &operation{
		id:         id,
		class:      class,
		started:    c.nowTime(),
		generation: c.generation,
		logger:     c.logger.With().Str("op", string(class)).Str("op_id", id.String()).Logger(),
	}
	c.inflight = op
	c.active++

	c.store.Apply(func(m *sessions.Mutation) {
		m.SetLoading(true)
		m.ClearLastError()
	})
	return op, nil
}

// finish releases the token and publishes the loading flag and, when report is set, the error message
func (c *Coordinator) finish(op *operation, outcome Outcome, report bool) Outcome {
	c.mu.Lock()
	if c.inflight == op {
		c.inflight = nil
	}
	c.active--
	loading := c.active > 0
	bootstrapped := c.bootstrapDue
	c.bootstrapDue = false
	c.store.Apply(func(m *sessions.Mutation) {
		m.SetLoading(loading)
		if report && outcome.Failure != nil {
			m.SetLastError(outcome.Failure.Message)
		}
		if bootstrapped {
			m.MarkBootstrapped()
		}
	})
	c.mu.Unlock()

	c.metrics.RecordOperation(string(op.class), string(outcome.Kind()), c.nowTime().Sub(op.started))

	if f := outcome.Failure; f != nil {
		evt := op.logger.Info()
		if f.Kind == KindUnknownProviderError {
			evt = op.logger.Error()
		}
		evt.Err(f.Err).Str("kind", string(f.Kind)).Str("challenge", string(f.Challenge)).Msg("operation failed")
	} else {
		op.logger.Debug().Str("next_step", string(outcome.NextStep)).Msg("operation succeeded")
	}
	return outcome
}

// fail maps err and finishes op with the failure reported to the store
func (c *Coordinator) fail(op *operation, f *Failure) Outcome {
	return c.finish(op, failed(f), true)
}

// setStateIfCurrent writes state unless a sign-out happened after op started.
// Holding c.mu orders the write against SignOut.
func (c *Coordinator) setStateIfCurrent(op *operation, state sessions.State) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if op.generation != c.generation {
		return false
	}
	c.store.Apply(func(m *sessions.Mutation) {
		m.SetState(state)
		if state.IsSignedIn() {
			m.MarkBootstrapped()
		}
	})
	return true
}
