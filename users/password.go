package users

import (
	"fmt"
	"unicode"
)

// PasswordPolicy is the local password check run before any provider call.
// The provider may enforce more; its rejections are mapped separately.
type PasswordPolicy struct {
	MinLength     int
	RequireUpper  bool
	RequireLower  bool
	RequireNumber bool
}

// DefaultPasswordPolicy only enforces the minimum length
func DefaultPasswordPolicy() PasswordPolicy {
	return PasswordPolicy{MinLength: 8}
}

// ValidatePasswordStrength checks password against the policy.
// Length counts characters, not bytes.
func (p PasswordPolicy) ValidatePasswordStrength(password string) error {
	if len([]rune(password)) < p.MinLength {
		return fmt.Errorf("password must be at least %d characters long", p.MinLength)
	}

	var (
		hasUpper  bool
		hasLower  bool
		hasNumber bool
	)

	for _, char := range password {
		if unicode.IsUpper(char) {
			hasUpper = true
		} else if unicode.IsLower(char) {
			hasLower = true
		} else if unicode.IsDigit(char) {
			hasNumber = true
		}
	}

	if p.RequireUpper && !hasUpper {
		return fmt.Errorf("password must contain at least one uppercase letter")
	}
	if p.RequireLower && !hasLower {
		return fmt.Errorf("password must contain at least one lowercase letter")
	}
	if p.RequireNumber && !hasNumber {
		return fmt.Errorf("password must contain at least one number")
	}

	return nil
}

// ValidatePasswordStrength checks password against the default policy
func ValidatePasswordStrength(password string) error {
	return DefaultPasswordPolicy().ValidatePasswordStrength(password)
}
