package users_test

import (
	"testing"
	"time"

	"github.com/jrsteele09/go-certprep-session/internal/errors"
	"github.com/jrsteele09/go-certprep-session/sessions"
	"github.com/jrsteele09/go-certprep-session/users"
	fakeprofilerepo "github.com/jrsteele09/go-certprep-session/users/repofake"
	"github.com/stretchr/testify/require"
)

func TestDefaultPolicyOnlyChecksLength(t *testing.T) {
	require.Error(t, users.ValidatePasswordStrength("short"))
	require.Error(t, users.ValidatePasswordStrength("1234567"))
	require.NoError(t, users.ValidatePasswordStrength("12345678"))
	require.NoError(t, users.ValidatePasswordStrength("alllowercase"))
}

func TestLengthCountsCharacters(t *testing.T) {
	// 7 characters, more than 8 bytes
	require.Error(t, users.ValidatePasswordStrength("ééééééé"))
}

func TestStrictPolicy(t *testing.T) {
	policy := users.PasswordPolicy{MinLength: 8, RequireUpper: true, RequireLower: true, RequireNumber: true}

	tests := []struct {
		password string
		wantErr  string
	}{
		{"password1", "uppercase"},
		{"PASSWORD1", "lowercase"},
		{"Pass1", "at least 8"},
		{"Passwords", "number"},
		{"Password1", ""},
	}
	for _, tt := range tests {
		err := policy.ValidatePasswordStrength(tt.password)
		if tt.wantErr == "" {
			require.NoError(t, err, tt.password)
			continue
		}
		require.ErrorContains(t, err, tt.wantErr, tt.password)
	}
}

func TestNewProfile(t *testing.T) {
	now := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	p := users.NewProfile(sessions.UserIdentity{UserID: "u-1", Username: "jane.doe@example.com"}, now)

	require.Equal(t, "u-1", p.ID)
	require.Equal(t, "jane.doe@example.com", p.Email)
	require.Equal(t, "jane.doe", p.DisplayName)
	require.Equal(t, now, p.DateJoined)

	p = users.NewProfile(sessions.UserIdentity{UserID: "u-2", Username: "jane"}, now)
	require.Empty(t, p.Email)
	require.Equal(t, "jane", p.DisplayName)
}

func TestFakeProfileRepo(t *testing.T) {
	repo := fakeprofilerepo.NewFakeProfileRepo()

	require.ErrorIs(t, repo.Upsert(&users.Profile{}), errors.ErrIDRequired)

	require.NoError(t, repo.Upsert(&users.Profile{ID: "u-1", DisplayName: "Jane"}))
	p, err := repo.GetByID("u-1")
	require.NoError(t, err)
	require.Equal(t, "Jane", p.DisplayName)

	// Returned profiles are copies
	p.DisplayName = "changed"
	p, _ = repo.GetByID("u-1")
	require.Equal(t, "Jane", p.DisplayName)

	require.NoError(t, repo.Delete("u-1"))
	_, err = repo.GetByID("u-1")
	require.ErrorIs(t, err, errors.ErrNotFound)
	require.ErrorIs(t, repo.Delete("u-1"), errors.ErrNotFound)
}
