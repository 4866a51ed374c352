package onboarding

import "context"

// Store persists the onboarding-completed flag for the device and a
// per-user marker recording that a user id has signed in here before.
type Store interface {
	IsCompleted(ctx context.Context) (bool, error)
	SetCompleted(ctx context.Context, completed bool) error
	HasUserExisted(ctx context.Context, userID string) (bool, error)
	MarkUserExisted(ctx context.Context, userID string) error
}
