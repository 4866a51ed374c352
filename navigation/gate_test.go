package navigation_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jrsteele09/go-certprep-session/navigation"
	"github.com/jrsteele09/go-certprep-session/onboarding"
	"github.com/jrsteele09/go-certprep-session/sessions"
	fakeprofilerepo "github.com/jrsteele09/go-certprep-session/users/repofake"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

var (
	testNow   = time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	userAlice = sessions.UserIdentity{UserID: "user-alice", Username: "alice@example.com"}
	userBob   = sessions.UserIdentity{UserID: "user-bob", Username: "bob@example.com"}
)

type testFixture struct {
	store      *sessions.Store
	onboarding *onboarding.InMemoryStore
	profiles   *fakeprofilerepo.FakeProfileRepo
	gate       *navigation.Gate
}

func setupTestFixture(t *testing.T) *testFixture {
	t.Helper()

	store := sessions.NewStore(nil)
	ob := onboarding.NewInMemoryStore()
	profiles := fakeprofilerepo.NewFakeProfileRepo()

	gate, err := navigation.NewGate(store, ob, profiles,
		navigation.WithLogger(zerolog.Nop()),
		navigation.WithNowTime(func() time.Time { return testNow }),
	)
	require.NoError(t, err)

	return &testFixture{store: store, onboarding: ob, profiles: profiles, gate: gate}
}

func (f *testFixture) signIn(user sessions.UserIdentity) {
	f.store.Apply(func(m *sessions.Mutation) {
		m.SetState(sessions.SignedInState(user))
		m.MarkBootstrapped()
	})
}

func (f *testFixture) signOut() {
	f.store.Apply(func(m *sessions.Mutation) {
		m.SetState(sessions.AnonymousState())
		m.MarkBootstrapped()
	})
}

func TestDecide(t *testing.T) {
	signedIn := sessions.SignedInState(userAlice)

	tests := []struct {
		name      string
		snapshot  sessions.Snapshot
		completed bool
		want      navigation.Route
	}{
		{name: "not bootstrapped", snapshot: sessions.Snapshot{State: sessions.AnonymousState()}, want: navigation.RouteSplash},
		{name: "authenticating before bootstrap", snapshot: sessions.Snapshot{State: sessions.AuthenticatingState()}, want: navigation.RouteSplash},
		{name: "signed in before bootstrap", snapshot: sessions.Snapshot{State: signedIn}, completed: true, want: navigation.RouteSplash},
		{name: "anonymous", snapshot: sessions.Snapshot{State: sessions.AnonymousState(), Bootstrapped: true}, want: navigation.RouteLogin},
		{name: "anonymous ignores flag", snapshot: sessions.Snapshot{State: sessions.AnonymousState(), Bootstrapped: true}, completed: true, want: navigation.RouteLogin},
		{name: "authenticating after bootstrap", snapshot: sessions.Snapshot{State: sessions.AuthenticatingState(), Bootstrapped: true}, want: navigation.RouteLogin},
		{name: "signing out", snapshot: sessions.Snapshot{State: sessions.SigningOutState(), Bootstrapped: true}, completed: true, want: navigation.RouteLogin},
		{name: "signed in, onboarding pending", snapshot: sessions.Snapshot{State: signedIn, Bootstrapped: true}, want: navigation.RouteOnboarding},
		{name: "signed in, onboarded", snapshot: sessions.Snapshot{State: signedIn, Bootstrapped: true}, completed: true, want: navigation.RouteMain},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.want, navigation.Decide(tt.snapshot, tt.completed))
		})
	}
}

func TestNewGateValidation(t *testing.T) {
	store := sessions.NewStore(nil)
	ob := onboarding.NewInMemoryStore()
	profiles := fakeprofilerepo.NewFakeProfileRepo()

	_, err := navigation.NewGate(nil, ob, profiles)
	require.Error(t, err)
	_, err = navigation.NewGate(store, nil, profiles)
	require.Error(t, err)
	_, err = navigation.NewGate(store, ob, nil)
	require.Error(t, err)
}

func TestFirstSignInCreatesProfileAndForcesOnboarding(t *testing.T) {
	f := setupTestFixture(t)
	ctx := context.Background()

	// Stale flag left by a previous user of the device
	require.NoError(t, f.onboarding.SetCompleted(ctx, true))

	f.signIn(userAlice)
	route, err := f.gate.Evaluate(ctx)
	require.NoError(t, err)
	require.Equal(t, navigation.RouteOnboarding, route)

	profile, err := f.profiles.GetByID(userAlice.UserID)
	require.NoError(t, err)
	require.Equal(t, "alice@example.com", profile.Email)
	require.Equal(t, "alice", profile.DisplayName)
	require.Equal(t, testNow, profile.DateJoined)

	existed, err := f.onboarding.HasUserExisted(ctx, userAlice.UserID)
	require.NoError(t, err)
	require.True(t, existed)
}

func TestReturningUserKeepsOnboarding(t *testing.T) {
	f := setupTestFixture(t)
	ctx := context.Background()

	f.signIn(userAlice)
	_, err := f.gate.Evaluate(ctx)
	require.NoError(t, err)
	require.NoError(t, f.gate.CompleteOnboarding(ctx))

	route, err := f.gate.Evaluate(ctx)
	require.NoError(t, err)
	require.Equal(t, navigation.RouteMain, route)

	f.signOut()
	route, err = f.gate.Evaluate(ctx)
	require.NoError(t, err)
	require.Equal(t, navigation.RouteLogin, route)

	f.signIn(userAlice)
	route, err = f.gate.Evaluate(ctx)
	require.NoError(t, err)
	require.Equal(t, navigation.RouteMain, route)
	require.Equal(t, 1, f.profiles.Count())
}

func TestNewUserDoesNotInheritOnboarding(t *testing.T) {
	f := setupTestFixture(t)
	ctx := context.Background()

	f.signIn(userAlice)
	_, err := f.gate.Evaluate(ctx)
	require.NoError(t, err)
	require.NoError(t, f.gate.CompleteOnboarding(ctx))
	f.signOut()
	_, err = f.gate.Evaluate(ctx)
	require.NoError(t, err)

	f.signIn(userBob)
	route, err := f.gate.Evaluate(ctx)
	require.NoError(t, err)
	require.Equal(t, navigation.RouteOnboarding, route)
	require.Equal(t, 2, f.profiles.Count())
}

func TestRunEmitsOnlyOnRouteChange(t *testing.T) {
	f := setupTestFixture(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	routes := make(chan navigation.Route, 16)
	done := make(chan error, 1)
	go func() {
		done <- f.gate.Run(ctx, func(r navigation.Route) { routes <- r })
	}()

	require.Equal(t, navigation.RouteSplash, receiveRoute(t, routes))

	f.signOut()
	require.Equal(t, navigation.RouteLogin, receiveRoute(t, routes))

	// Loading toggles do not change the route
	f.store.SetLoading(true)
	f.store.SetLoading(false)

	f.signIn(userAlice)
	require.Equal(t, navigation.RouteOnboarding, receiveRoute(t, routes))

	require.NoError(t, f.gate.CompleteOnboarding(context.Background()))
	require.Equal(t, navigation.RouteMain, receiveRoute(t, routes))

	cancel()
	require.ErrorIs(t, <-done, context.Canceled)

	select {
	case r := <-routes:
		t.Fatalf("unexpected route %s", r)
	default:
	}
}

func TestOnboardingReadFailureFallsBackToOnboarding(t *testing.T) {
	store := sessions.NewStore(nil)
	ob := &failingStore{Store: onboarding.NewInMemoryStore(), err: errors.New("storage offline")}
	gate, err := navigation.NewGate(store, ob, fakeprofilerepo.NewFakeProfileRepo(), navigation.WithLogger(zerolog.Nop()))
	require.NoError(t, err)

	store.Apply(func(m *sessions.Mutation) {
		m.SetState(sessions.SignedInState(userAlice))
		m.MarkBootstrapped()
	})

	route, err := gate.Evaluate(context.Background())
	require.Error(t, err)
	require.Equal(t, navigation.RouteOnboarding, route)
}

func receiveRoute(t *testing.T, routes <-chan navigation.Route) navigation.Route {
	t.Helper()
	select {
	case r := <-routes:
		return r
	case <-time.After(5 * time.Second):
		t.Fatal("no route emitted")
		return ""
	}
}

type failingStore struct {
	onboarding.Store
	err error
}

func (s *failingStore) IsCompleted(context.Context) (bool, error) {
	return false, s.err
}

func (s *failingStore) HasUserExisted(context.Context, string) (bool, error) {
	return false, s.err
}
