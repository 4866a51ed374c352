package auth

import (
	"strings"

	"github.com/jrsteele09/go-certprep-session/users"
)

// normalizeEmail trims surrounding whitespace. Case is left to the provider,
// which compares usernames case-insensitively.
func normalizeEmail(email string) string {
	return strings.TrimSpace(email)
}

func validateEmail(email string) *Failure {
	if email == "" || strings.ContainsAny(email, " \t\r\n") {
		return newFailure(KindInvalidInput, msgEmailRequired)
	}
	at := strings.LastIndex(email, "@")
	if at <= 0 || at == len(email)-1 {
		return newFailure(KindInvalidInput, msgEmailRequired)
	}
	return nil
}

func validateCode(code string) *Failure {
	if code == "" {
		return newFailure(KindInvalidInput, msgCodeRequired)
	}
	return nil
}

func validatePassword(policy users.PasswordPolicy, password string) *Failure {
	if err := policy.ValidatePasswordStrength(password); err != nil {
		return &Failure{Kind: KindWeakPassword, Message: capitalize(err.Error()), Err: err}
	}
	return nil
}

// ValidatePasswordPair is the form level check for a new password and its confirmation
func (c *Coordinator) ValidatePasswordPair(password, confirmation string) *Failure {
	if password != confirmation {
		return newFailure(KindPasswordMismatch, msgPasswordMismatch)
	}
	return validatePassword(c.policy, password)
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:] + "."
}
