package oidcgateway

import (
	"context"
	"net/http"
	"net/url"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"github.com/jrsteele09/go-certprep-session/identity"
	ierrors "github.com/jrsteele09/go-certprep-session/internal/errors"
	"github.com/pkg/errors"
	"golang.org/x/oauth2"
)

// Token endpoint error codes that mean "not yet" rather than "no"
var signInSteps = map[string]identity.NextStep{
	"user_not_confirmed":      identity.NextStepConfirmSignUp,
	"mfa_required":            identity.NextStepMFACode,
	"new_password_required":   identity.NextStepNewPassword,
	"password_reset_required": identity.NextStepResetPassword,
	"challenge_required":      identity.NextStepContinueChallenge,
}

type idTokenClaims struct {
	Email             string `json:"email,omitempty"`
	PreferredUsername string `json:"preferred_username,omitempty"`
	jwt.RegisteredClaims
}

func (g *Gateway) SignIn(ctx context.Context, username, password string) (identity.SignInResult, error) {
	ctx = g.clientContext(ctx)

	token, err := g.oauth.PasswordCredentialsToken(ctx, username, password)
	if err != nil {
		var re *oauth2.RetrieveError
		if errors.As(err, &re) {
			if step, ok := signInSteps[re.ErrorCode]; ok {
				return identity.SignInResult{NextStep: step}, nil
			}
			return identity.SignInResult{}, retrieveError(re)
		}
		return identity.SignInResult{}, errors.Wrap(err, "[Gateway.SignIn] token request")
	}

	rawIDToken, err := g.verifyIDToken(ctx, token)
	if err != nil {
		return identity.SignInResult{}, errors.Wrap(err, "[Gateway.SignIn]")
	}

	g.setSession(token, rawIDToken)
	return identity.SignInResult{IsSignedIn: true, NextStep: identity.NextStepDone}, nil
}

// FetchSession refreshes an expired access token. A refresh the provider
// refuses ends the session; transport failures are returned.
func (g *Gateway) FetchSession(ctx context.Context) (identity.Session, error) {
	token, rawIDToken := g.session()
	if token == nil {
		return identity.Session{}, nil
	}
	if token.Valid() {
		return identity.Session{IsSignedIn: true}, nil
	}
	if token.RefreshToken == "" {
		g.clearSession()
		return identity.Session{}, nil
	}

	ctx = g.clientContext(ctx)
	refreshed, err := g.oauth.TokenSource(ctx, token).Token()
	if err != nil {
		var re *oauth2.RetrieveError
		if errors.As(err, &re) {
			g.logger.Info().Str("error_code", re.ErrorCode).Msg("refresh refused, session ended")
			g.clearSession()
			return identity.Session{}, nil
		}
		return identity.Session{}, errors.Wrap(err, "[Gateway.FetchSession] refresh")
	}

	if _, ok := refreshed.Extra("id_token").(string); ok {
		if rawIDToken, err = g.verifyIDToken(ctx, refreshed); err != nil {
			return identity.Session{}, errors.Wrap(err, "[Gateway.FetchSession]")
		}
	}
	g.setSession(refreshed, rawIDToken)
	return identity.Session{IsSignedIn: true}, nil
}

// GetCurrentUser reads the cached ID token. Its signature was checked when it was stored.
func (g *Gateway) GetCurrentUser(_ context.Context) (identity.User, error) {
	_, rawIDToken := g.session()
	if rawIDToken == "" {
		return identity.User{}, identity.NewProviderError(identity.CodeNotAuthorized, "", ierrors.ErrNotSignedIn)
	}

	var claims idTokenClaims
	if _, _, err := jwt.NewParser().ParseUnverified(rawIDToken, &claims); err != nil {
		return identity.User{}, errors.Wrap(ierrors.ErrInvalidToken, err.Error())
	}
	if claims.Subject == "" {
		return identity.User{}, ierrors.ErrMissingIdentity
	}

	username := claims.PreferredUsername
	if username == "" {
		username = claims.Email
	}
	if username == "" {
		username = claims.Subject
	}
	return identity.User{UserID: claims.Subject, Username: username}, nil
}

// SignOut forgets the tokens first so the device is signed out whatever the
// revocation call returns
func (g *Gateway) SignOut(ctx context.Context) error {
	token := g.clearSession()
	if token == nil {
		return nil
	}
	if g.revocationURL == "" {
		g.logger.Debug().Msg("no revocation endpoint, tokens dropped locally")
		return nil
	}

	value, hint := token.RefreshToken, "refresh_token"
	if value == "" {
		value, hint = token.AccessToken, "access_token"
	}
	form := url.Values{
		"token":           {value},
		"token_type_hint": {hint},
		"client_id":       {g.oauth.ClientID},
	}
	if g.oauth.ClientSecret != "" {
		form.Set("client_secret", g.oauth.ClientSecret)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.revocationURL, strings.NewReader(form.Encode()))
	if err != nil {
		return errors.Wrap(err, "[Gateway.SignOut] build request")
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return identity.NewProviderError(identity.CodeNetwork, "revocation request failed", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode/100 != 2 {
		return decodeAPIError(resp)
	}
	return nil
}

func (g *Gateway) verifyIDToken(ctx context.Context, token *oauth2.Token) (string, error) {
	raw, ok := token.Extra("id_token").(string)
	if !ok || raw == "" {
		return "", identity.NewProviderError(identity.CodeUnknown, "", ierrors.ErrNoIDToken)
	}
	if _, err := g.verifier.Verify(ctx, raw); err != nil {
		return "", identity.NewProviderError(identity.CodeUnknown, "id token rejected", errors.Wrap(ierrors.ErrInvalidToken, err.Error()))
	}
	return raw, nil
}

func retrieveError(re *oauth2.RetrieveError) error {
	code := identity.ParseCode(re.ErrorCode)
	if code == identity.CodeUnknown && re.Response != nil && re.Response.StatusCode == http.StatusTooManyRequests {
		code = identity.CodeLimitExceeded
	}
	return identity.NewProviderError(code, re.ErrorDescription, re)
}
