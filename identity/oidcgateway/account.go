package oidcgateway

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"

	"github.com/jrsteele09/go-certprep-session/identity"
	ierrors "github.com/jrsteele09/go-certprep-session/internal/errors"
	"github.com/pkg/errors"
)

// Account API paths, relative to Config.AccountAPIURL
const (
	PathSignUp          = "/signup"
	PathConfirmSignUp   = "/signup/confirm"
	PathResendCode      = "/signup/resend"
	PathForgotPassword  = "/password/forgot"
	PathConfirmPassword = "/password/confirm"
)

// maxErrorBody caps how much of an error response is read
const maxErrorBody = 64 << 10

type signUpRequest struct {
	ClientID string `json:"client_id"`
	Username string `json:"username"`
	Password string `json:"password"`
	Email    string `json:"email,omitempty"`
	Name     string `json:"name,omitempty"`
}

type signUpResponse struct {
	UserConfirmed bool   `json:"user_confirmed"`
	UserSub       string `json:"user_sub,omitempty"`
}

type codeRequest struct {
	ClientID string `json:"client_id"`
	Username string `json:"username"`
	Code     string `json:"code,omitempty"`
	Password string `json:"password,omitempty"`
}

type apiError struct {
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description"`
}

func (g *Gateway) SignUp(ctx context.Context, username, password string, attributes identity.Attributes) (identity.SignUpResult, error) {
	var resp signUpResponse
	err := g.postJSON(ctx, PathSignUp, signUpRequest{
		ClientID: g.oauth.ClientID,
		Username: username,
		Password: password,
		Email:    attributes.Email,
		Name:     attributes.Name,
	}, &resp)
	if err != nil {
		return identity.SignUpResult{}, errors.Wrap(err, "[Gateway.SignUp]")
	}
	return identity.SignUpResult{IsComplete: resp.UserConfirmed}, nil
}

func (g *Gateway) ConfirmSignUp(ctx context.Context, username, code string) (identity.ConfirmSignUpResult, error) {
	err := g.postJSON(ctx, PathConfirmSignUp, codeRequest{ClientID: g.oauth.ClientID, Username: username, Code: code}, nil)
	if err != nil {
		return identity.ConfirmSignUpResult{}, errors.Wrap(err, "[Gateway.ConfirmSignUp]")
	}
	return identity.ConfirmSignUpResult{IsComplete: true}, nil
}

func (g *Gateway) ResendConfirmationCode(ctx context.Context, username string) error {
	err := g.postJSON(ctx, PathResendCode, codeRequest{ClientID: g.oauth.ClientID, Username: username}, nil)
	return errors.Wrap(err, "[Gateway.ResendConfirmationCode]")
}

func (g *Gateway) RequestPasswordReset(ctx context.Context, username string) error {
	err := g.postJSON(ctx, PathForgotPassword, codeRequest{ClientID: g.oauth.ClientID, Username: username}, nil)
	return errors.Wrap(err, "[Gateway.RequestPasswordReset]")
}

func (g *Gateway) ConfirmPasswordReset(ctx context.Context, username, newPassword, code string) error {
	err := g.postJSON(ctx, PathConfirmPassword, codeRequest{
		ClientID: g.oauth.ClientID,
		Username: username,
		Code:     code,
		Password: newPassword,
	}, nil)
	return errors.Wrap(err, "[Gateway.ConfirmPasswordReset]")
}

// postJSON sends body and decodes a 2xx response into out when out is not nil
func (g *Gateway) postJSON(ctx context.Context, path string, body, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return errors.Wrap(err, "encode request")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.accountURL+path, bytes.NewReader(payload))
	if err != nil {
		return errors.Wrap(err, "build request")
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return identity.NewProviderError(identity.CodeNetwork, "", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode/100 != 2 {
		return decodeAPIError(resp)
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil && !errors.Is(err, io.EOF) {
		return identity.NewProviderError(identity.CodeUnknown, "", errors.Wrap(ierrors.ErrInvalidResponse, err.Error()))
	}
	return nil
}

// decodeAPIError reads an {"error","error_description"} body into a ProviderError
func decodeAPIError(resp *http.Response) error {
	statusErr := errors.Wrapf(ierrors.ErrUnexpectedStatus, "status %d", resp.StatusCode)

	var body apiError
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxErrorBody)).Decode(&body); err != nil || body.Error == "" {
		code := identity.CodeUnknown
		if resp.StatusCode == http.StatusTooManyRequests {
			code = identity.CodeLimitExceeded
		}
		return identity.NewProviderError(code, "", statusErr)
	}

	code := identity.ParseCode(body.Error)
	if code == identity.CodeUnknown && resp.StatusCode == http.StatusTooManyRequests {
		code = identity.CodeLimitExceeded
	}
	return identity.NewProviderError(code, body.ErrorDescription, statusErr)
}
