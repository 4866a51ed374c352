package users

import (
	"strings"
	"time"

	"github.com/jrsteele09/go-certprep-session/sessions"
)

// Profile is the local profile kept for a signed in identity
type Profile struct {
	ID          string    `json:"id,omitempty"`           // Provider assigned user id
	Email       string    `json:"email,omitempty"`        // User's email address
	Username    string    `json:"username,omitempty"`     // Provider username (the email for this app)
	DisplayName string    `json:"display_name,omitempty"` // Name shown in the UI
	DateJoined  time.Time `json:"date_joined,omitempty"`  // When the profile was first created on this device
	LastSeen    time.Time `json:"last_seen,omitempty"`    // Last sign-in on this device
}

// NewProfile builds a profile from the identity copied out of the session store
func NewProfile(identity sessions.UserIdentity, now time.Time) *Profile {
	p := &Profile{
		ID:         identity.UserID,
		Username:   identity.Username,
		DateJoined: now,
		LastSeen:   now,
	}
	if strings.Contains(identity.Username, "@") {
		p.Email = identity.Username
	}
	p.DisplayName = defaultDisplayName(identity.Username)
	return p
}

// defaultDisplayName is the local part of an email, or the username as is
func defaultDisplayName(username string) string {
	if at := strings.Index(username, "@"); at > 0 {
		return username[:at]
	}
	return username
}
