// Package navigation picks the top level route from the session store and
// the onboarding flag, and does the first-sign-in bookkeeping for each user.
package navigation

import (
	"context"
	"sync"
	"time"

	"github.com/jrsteele09/go-certprep-session/internal/errors"
	"github.com/jrsteele09/go-certprep-session/onboarding"
	"github.com/jrsteele09/go-certprep-session/sessions"
	"github.com/jrsteele09/go-certprep-session/users"
	pkgerrors "github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

type Route string

const (
	RouteSplash     Route = "splash"
	RouteLogin      Route = "login"
	RouteOnboarding Route = "onboarding"
	RouteMain       Route = "main"
)

// Decide maps a session snapshot and the onboarding flag onto a route.
// Nothing but the splash screen is shown until the first bootstrap finishes.
func Decide(snapshot sessions.Snapshot, onboardingComplete bool) Route {
	if !snapshot.Bootstrapped {
		return RouteSplash
	}
	if snapshot.State.Status != sessions.SignedIn {
		return RouteLogin
	}
	if !onboardingComplete {
		return RouteOnboarding
	}
	return RouteMain
}

// Gate evaluates routes for the UI and owns the per-user onboarding reset
type Gate struct {
	sessions   sessions.Reader
	onboarding onboarding.Store
	profiles   users.ProfileRepo
	logger     zerolog.Logger
	nowTime    func() time.Time

	mu          sync.Mutex
	currentUser string
	refresh     chan struct{}
}

type Option func(*Gate)

func WithLogger(logger zerolog.Logger) Option {
	return func(g *Gate) {
		g.logger = logger
	}
}

// WithNowTime sets the now time function (primarily for testing)
func WithNowTime(nowFunc func() time.Time) Option {
	return func(g *Gate) {
		g.nowTime = nowFunc
	}
}

func NewGate(reader sessions.Reader, store onboarding.Store, profiles users.ProfileRepo, options ...Option) (*Gate, error) {
	if reader == nil {
		return nil, pkgerrors.New("[NewGate] session reader is required")
	}
	if store == nil {
		return nil, pkgerrors.New("[NewGate] onboarding store is required")
	}
	if profiles == nil {
		return nil, pkgerrors.New("[NewGate] profile repo is required")
	}

	g := &Gate{
		sessions:   reader,
		onboarding: store,
		profiles:   profiles,
		logger:     log.Logger,
		nowTime:    time.Now,
		refresh:    make(chan struct{}, 1),
	}
	for _, opt := range options {
		opt(g)
	}
	g.logger = g.logger.With().Str("component", "navigation").Logger()
	return g, nil
}

// Evaluate returns the route for the current snapshot
func (g *Gate) Evaluate(ctx context.Context) (Route, error) {
	return g.route(ctx, g.sessions.Snapshot())
}

// Run calls emit with the current route and again each time it changes,
// until ctx is done or the store subscription closes.
func (g *Gate) Run(ctx context.Context, emit func(Route)) error {
	updates, unsubscribe := g.sessions.Subscribe()
	defer unsubscribe()

	var (
		last     Route
		snapshot sessions.Snapshot
		ok       bool
	)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case snapshot, ok = <-updates:
			if !ok {
				return nil
			}
		case <-g.refresh:
			snapshot = g.sessions.Snapshot()
		}

		route, err := g.route(ctx, snapshot)
		if err != nil {
			g.logger.Error().Err(err).Str("route", string(route)).Msg("route evaluated with errors")
		}
		if route != last {
			g.logger.Debug().Str("from", string(last)).Str("to", string(route)).Msg("route changed")
			last = route
			emit(route)
		}
	}
}

// CompleteOnboarding records that the signed in user finished onboarding
func (g *Gate) CompleteOnboarding(ctx context.Context) error {
	if err := g.onboarding.SetCompleted(ctx, true); err != nil {
		return pkgerrors.Wrap(err, "[Gate.CompleteOnboarding] SetCompleted")
	}
	select {
	case g.refresh <- struct{}{}:
	default:
	}
	return nil
}

// route never fails to produce a route. An unreadable onboarding flag is
// treated as not completed.
func (g *Gate) route(ctx context.Context, snapshot sessions.Snapshot) (Route, error) {
	user := snapshot.State.User()
	if user == nil {
		g.forgetUser()
		return Decide(snapshot, false), nil
	}

	if err := g.firstSignIn(ctx, *user); err != nil {
		return Decide(snapshot, false), err
	}

	completed, err := g.onboarding.IsCompleted(ctx)
	if err != nil {
		return Decide(snapshot, false), pkgerrors.Wrap(err, "[Gate.route] IsCompleted")
	}
	return Decide(snapshot, completed), nil
}

func (g *Gate) forgetUser() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.currentUser = ""
}

// firstSignIn runs once per transition into SignedIn for a user id. It creates
// the local profile, and for a user id never seen on this device it clears any
// onboarding flag left by someone else.
func (g *Gate) firstSignIn(ctx context.Context, user sessions.UserIdentity) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.currentUser == user.UserID {
		return nil
	}

	logger := g.logger.With().Str("user_id", user.UserID).Logger()
	now := g.nowTime()

	profile, err := g.profiles.GetByID(user.UserID)
	switch {
	case errors.Is(err, errors.ErrNotFound):
		profile = users.NewProfile(user, now)
		logger.Info().Msg("creating local profile")
	case err != nil:
		return pkgerrors.Wrap(err, "[Gate.firstSignIn] GetByID")
	default:
		profile.LastSeen = now
	}
	if err := g.profiles.Upsert(profile); err != nil {
		return pkgerrors.Wrap(err, "[Gate.firstSignIn] Upsert")
	}

	existed, err := g.onboarding.HasUserExisted(ctx, user.UserID)
	if err != nil {
		return pkgerrors.Wrap(err, "[Gate.firstSignIn] HasUserExisted")
	}
	if !existed {
		logger.Info().Msg("new user on this device, onboarding required")
		if err := g.onboarding.SetCompleted(ctx, false); err != nil {
			return pkgerrors.Wrap(err, "[Gate.firstSignIn] SetCompleted")
		}
		if err := g.onboarding.MarkUserExisted(ctx, user.UserID); err != nil {
			return pkgerrors.Wrap(err, "[Gate.firstSignIn] MarkUserExisted")
		}
	}

	g.currentUser = user.UserID
	return nil
}
