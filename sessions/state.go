package sessions

import "strings"

// Status is the authentication status of the device
type Status int

const (
	Anonymous Status = iota
	Authenticating
	SignedIn
	SigningOut
)

// Statuses lists every status, in declaration order
var Statuses = []Status{Anonymous, Authenticating, SignedIn, SigningOut}

func (s Status) String() string {
	switch s {
	case Anonymous:
		return "anonymous"
	case Authenticating:
		return "authenticating"
	case SignedIn:
		return "signed_in"
	case SigningOut:
		return "signing_out"
	}
	return "unknown"
}

// UserIdentity is the provider assigned identity of the signed in user
type UserIdentity struct {
	UserID   string
	Username string
}

// SameUsername compares usernames the way the provider does: case-insensitive, ignoring surrounding space
func (u UserIdentity) SameUsername(username string) bool {
	return strings.EqualFold(strings.TrimSpace(u.Username), strings.TrimSpace(username))
}

// State is the tagged session state. Build it with the constructors below so that
// User is set exactly when Status is SignedIn.
type State struct {
	Status Status
	user   *UserIdentity
}

func AnonymousState() State {
	return State{Status: Anonymous}
}

func AuthenticatingState() State {
	return State{Status: Authenticating}
}

func SignedInState(user UserIdentity) State {
	return State{Status: SignedIn, user: &user}
}

func SigningOutState() State {
	return State{Status: SigningOut}
}

// User returns a copy of the signed in identity, or nil unless SignedIn
func (s State) User() *UserIdentity {
	if s.Status != SignedIn || s.user == nil {
		return nil
	}
	u := *s.user
	return &u
}

func (s State) IsSignedIn() bool {
	return s.Status == SignedIn
}

func (s State) String() string {
	if u := s.User(); u != nil {
		return s.Status.String() + "(" + u.UserID + ")"
	}
	return s.Status.String()
}
