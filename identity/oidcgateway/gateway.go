// Package oidcgateway implements identity.Gateway against an OpenID Connect
// provider. Sign-in uses the resource owner password grant; account
// registration and password reset go to the provider's JSON account API.
package oidcgateway

import (
	"context"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/coreos/go-oidc/v3/oidc"
	"github.com/jrsteele09/go-certprep-session/identity"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/oauth2"
)

var _ identity.Gateway = (*Gateway)(nil)

const defaultTimeout = 15 * time.Second

// Config describes the provider and this app's client registration
type Config struct {
	IssuerURL     string
	ClientID      string
	ClientSecret  string
	AccountAPIURL string // defaults to IssuerURL
	Scopes        []string
	Timeout       time.Duration
	HTTPClient    *http.Client
}

// Gateway holds the device session (the token set) in memory
type Gateway struct {
	oauth         *oauth2.Config
	verifier      *oidc.IDTokenVerifier
	revocationURL string
	accountURL    string
	httpClient    *http.Client
	logger        zerolog.Logger

	mu         sync.Mutex
	token      *oauth2.Token
	rawIDToken string
}

type Option func(*Gateway)

func WithLogger(logger zerolog.Logger) Option {
	return func(g *Gateway) {
		g.logger = logger
	}
}

// New runs OIDC discovery against cfg.IssuerURL
func New(ctx context.Context, cfg Config, options ...Option) (*Gateway, error) {
	if cfg.IssuerURL == "" {
		return nil, errors.New("[oidcgateway.New] issuer URL is required")
	}
	if cfg.ClientID == "" {
		return nil, errors.New("[oidcgateway.New] client ID is required")
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = defaultTimeout
		}
		httpClient = &http.Client{Timeout: timeout}
	}

	provider, err := oidc.NewProvider(oidc.ClientContext(ctx, httpClient), cfg.IssuerURL)
	if err != nil {
		return nil, errors.Wrap(err, "[oidcgateway.New] discovery")
	}

	var discovery struct {
		RevocationEndpoint string `json:"revocation_endpoint"`
	}
	if err := provider.Claims(&discovery); err != nil {
		return nil, errors.Wrap(err, "[oidcgateway.New] discovery claims")
	}

	scopes := cfg.Scopes
	if len(scopes) == 0 {
		scopes = []string{oidc.ScopeOpenID, "profile", "email", oidc.ScopeOfflineAccess}
	}

	// Public mobile client: credentials go in the form body
	endpoint := provider.Endpoint()
	endpoint.AuthStyle = oauth2.AuthStyleInParams

	accountURL := cfg.AccountAPIURL
	if accountURL == "" {
		accountURL = cfg.IssuerURL
	}

	g := &Gateway{
		oauth: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			Endpoint:     endpoint,
			Scopes:       scopes,
		},
		verifier:      provider.Verifier(&oidc.Config{ClientID: cfg.ClientID}),
		revocationURL: discovery.RevocationEndpoint,
		accountURL:    strings.TrimRight(accountURL, "/"),
		httpClient:    httpClient,
		logger:        log.Logger,
	}
	for _, opt := range options {
		opt(g)
	}
	g.logger = g.logger.With().Str("component", "oidcgateway").Logger()
	return g, nil
}

// clientContext routes oauth2 and go-oidc traffic through the gateway's client
func (g *Gateway) clientContext(ctx context.Context) context.Context {
	return oidc.ClientContext(context.WithValue(ctx, oauth2.HTTPClient, g.httpClient), g.httpClient)
}

func (g *Gateway) session() (*oauth2.Token, string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.token, g.rawIDToken
}

func (g *Gateway) setSession(token *oauth2.Token, rawIDToken string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.token = token
	g.rawIDToken = rawIDToken
}

// clearSession drops the tokens and returns what was held
func (g *Gateway) clearSession() *oauth2.Token {
	g.mu.Lock()
	defer g.mu.Unlock()
	token := g.token
	g.token = nil
	g.rawIDToken = ""
	return token
}
