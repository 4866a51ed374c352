package main

import (
	"context"
	"time"

	"github.com/jrsteele09/go-certprep-session/auth"
	"github.com/jrsteele09/go-certprep-session/identity"
	fakegateway "github.com/jrsteele09/go-certprep-session/identity/gatewayfake"
	"github.com/jrsteele09/go-certprep-session/identity/oidcgateway"
	"github.com/jrsteele09/go-certprep-session/internal/config"
	"github.com/jrsteele09/go-certprep-session/internal/metrics"
	"github.com/jrsteele09/go-certprep-session/navigation"
	"github.com/jrsteele09/go-certprep-session/onboarding"
	"github.com/jrsteele09/go-certprep-session/sessions"
	"github.com/jrsteele09/go-certprep-session/users"
	fakeprofilerepo "github.com/jrsteele09/go-certprep-session/users/repofake"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

const (
	demoEmail    = "demo@example.com"
	demoPassword = "password123"
)

// app is the wired object graph behind the shell
type app struct {
	coordinator *auth.Coordinator
	gate        *navigation.Gate
	registry    *prometheus.Registry
	demo        *fakegateway.FakeGateway
	redis       *redis.Client
}

func newApp(ctx context.Context, c config.Config, logger zerolog.Logger) (*app, error) {
	a := &app{registry: prometheus.NewRegistry()}

	gateway, err := a.gateway(ctx, c, logger)
	if err != nil {
		return nil, err
	}

	store, err := a.onboardingStore(ctx, c, logger)
	if err != nil {
		return nil, err
	}

	statuses := make([]string, 0, len(sessions.Statuses))
	for _, s := range sessions.Statuses {
		statuses = append(statuses, s.String())
	}

	policy := users.DefaultPasswordPolicy()
	policy.MinLength = c.GetMinPasswordLength()

	a.coordinator, err = auth.NewCoordinator(gateway,
		auth.WithLogger(logger),
		auth.WithMetrics(metrics.NewCollector(a.registry, statuses...)),
		auth.WithPasswordPolicy(policy),
		auth.WithResendInterval(c.GetResendInterval()),
	)
	if err != nil {
		a.Close()
		return nil, errors.Wrap(err, "[newApp] coordinator")
	}

	a.gate, err = navigation.NewGate(a.coordinator.Store(), store, fakeprofilerepo.NewFakeProfileRepo(), navigation.WithLogger(logger))
	if err != nil {
		a.Close()
		return nil, errors.Wrap(err, "[newApp] gate")
	}
	return a, nil
}

// gateway is the OIDC provider when an issuer is configured, otherwise the in-memory demo provider
func (a *app) gateway(ctx context.Context, c config.Config, logger zerolog.Logger) (identity.Gateway, error) {
	if c.GetIssuerURL() == "" {
		a.demo = fakegateway.NewFakeGateway(fakegateway.WithMinPasswordLength(c.GetMinPasswordLength()))
		if _, err := a.demo.AddUser(demoEmail, demoPassword, true); err != nil {
			return nil, errors.Wrap(err, "[newApp] demo user")
		}
		logger.Warn().Msg("no ISSUER_URL, using the in-memory demo provider")
		return a.demo, nil
	}

	g, err := oidcgateway.New(ctx, oidcgateway.Config{
		IssuerURL:     c.GetIssuerURL(),
		ClientID:      c.GetClientID(),
		ClientSecret:  c.GetClientSecret(),
		AccountAPIURL: c.GetAccountAPIURL(),
		Timeout:       c.GetRequestTimeout(),
	}, oidcgateway.WithLogger(logger))
	if err != nil {
		return nil, errors.Wrap(err, "[newApp] identity provider")
	}
	logger.Info().Str("issuer", c.GetIssuerURL()).Msg("identity provider discovered")
	return g, nil
}

func (a *app) onboardingStore(ctx context.Context, c config.Config, logger zerolog.Logger) (onboarding.Store, error) {
	if c.GetRedisAddr() == "" {
		return onboarding.NewInMemoryStore(), nil
	}

	a.redis = redis.NewClient(&redis.Options{Addr: c.GetRedisAddr()})
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := a.redis.Ping(pingCtx).Err(); err != nil {
		a.Close()
		return nil, errors.Wrap(err, "[newApp] redis ping")
	}
	logger.Info().Str("addr", c.GetRedisAddr()).Msg("onboarding state in redis")
	return onboarding.NewRedisStore(a.redis, c.GetRedisPrefix()), nil
}

func (a *app) Close() {
	if a.redis != nil {
		_ = a.redis.Close()
		a.redis = nil
	}
}
