package auth_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/jrsteele09/go-certprep-session/auth"
	"github.com/jrsteele09/go-certprep-session/identity"
	fakegateway "github.com/jrsteele09/go-certprep-session/identity/gatewayfake"
	"github.com/jrsteele09/go-certprep-session/internal/metrics"
	"github.com/jrsteele09/go-certprep-session/sessions"
	"github.com/jrsteele09/go-certprep-session/users"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

const (
	testEmail        = "jane.doe@example.com"
	testPassword     = "password123"
	testName         = "Jane Doe"
	otherEmail       = "sam.smith@example.com"
	otherPassword    = "secret-pass-2"
	testNewPassword  = "newPassword456"
	wrongCode        = "000000"
	operationTimeout = 5 * time.Second
)

var testNow = time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

// testFixture holds all test dependencies
type testFixture struct {
	gateway     *fakegateway.FakeGateway
	metrics     *recordingMetrics
	coordinator *auth.Coordinator
	store       sessions.Reader
}

// setupTestFixture creates a coordinator over an empty in-memory provider
func setupTestFixture(t *testing.T, options ...auth.Option) *testFixture {
	t.Helper()

	gw := fakegateway.NewFakeGateway(fakegateway.WithNowTime(func() time.Time { return testNow }))
	rec := newRecordingMetrics()

	opts := append([]auth.Option{
		auth.WithLogger(zerolog.Nop()),
		auth.WithNowTime(func() time.Time { return testNow }),
		auth.WithMetrics(rec),
	}, options...)

	c, err := auth.NewCoordinator(gw, opts...)
	require.NoError(t, err)

	return &testFixture{
		gateway:     gw,
		metrics:     rec,
		coordinator: c,
		store:       c.Store(),
	}
}

// addUser registers a confirmed account and returns its id
func (f *testFixture) addUser(t *testing.T, email, password string) string {
	t.Helper()
	id, err := f.gateway.AddUser(email, password, true)
	require.NoError(t, err)
	return id
}

func (f *testFixture) requireAnonymous(t *testing.T) {
	t.Helper()
	state := f.store.CurrentState()
	require.Equal(t, sessions.Anonymous, state.Status)
	require.Nil(t, state.User())
	require.False(t, f.store.IsLoading())
}

func (f *testFixture) requireSignedInAs(t *testing.T, userID, email string) {
	t.Helper()
	state := f.store.CurrentState()
	require.Equal(t, sessions.SignedIn, state.Status)
	require.NotNil(t, state.User())
	require.Equal(t, userID, state.User().UserID)
	require.Equal(t, email, state.User().Username)
	require.False(t, f.store.IsLoading())
}

type recordedOperation struct {
	class string
	kind  string
}

type recordingMetrics struct {
	lock       sync.Mutex
	operations []recordedOperation
	rejected   []string
	states     []string
}

func newRecordingMetrics() *recordingMetrics {
	return &recordingMetrics{}
}

func (m *recordingMetrics) RecordOperation(class string, kind string, _ time.Duration) {
	m.lock.Lock()
	defer m.lock.Unlock()
	m.operations = append(m.operations, recordedOperation{class: class, kind: kind})
}

func (m *recordingMetrics) RecordRejected(class string) {
	m.lock.Lock()
	defer m.lock.Unlock()
	m.rejected = append(m.rejected, class)
}

func (m *recordingMetrics) RecordSessionState(status string) {
	m.lock.Lock()
	defer m.lock.Unlock()
	m.states = append(m.states, status)
}

func (m *recordingMetrics) operationsFor(class auth.OperationClass) []string {
	m.lock.Lock()
	defer m.lock.Unlock()
	var kinds []string
	for _, op := range m.operations {
		if op.class == string(class) {
			kinds = append(kinds, op.kind)
		}
	}
	return kinds
}

func (m *recordingMetrics) rejectedClasses() []string {
	m.lock.Lock()
	defer m.lock.Unlock()
	return append([]string(nil), m.rejected...)
}

func TestNewCoordinatorValidation(t *testing.T) {
	_, err := auth.NewCoordinator(nil)
	require.Error(t, err)

	_, err = auth.NewCoordinator(fakegateway.NewFakeGateway(), auth.WithPasswordPolicy(users.PasswordPolicy{}))
	require.Error(t, err)

	c, err := auth.NewCoordinator(fakegateway.NewFakeGateway())
	require.NoError(t, err)

	snap := c.Store().Snapshot()
	require.Equal(t, sessions.Anonymous, snap.State.Status)
	require.False(t, snap.Bootstrapped)
	require.False(t, snap.Loading)
	require.Empty(t, snap.LastError)
}

func TestBootstrapRestoresActiveSession(t *testing.T) {
	f := setupTestFixture(t)
	id := f.addUser(t, testEmail, testPassword)
	f.gateway.StartSession(testEmail)

	out := f.coordinator.BootstrapSession(context.Background())
	require.True(t, out.OK())
	require.True(t, f.store.Bootstrapped())
	f.requireSignedInAs(t, id, testEmail)
}

func TestBootstrapFollowsLastProviderAnswer(t *testing.T) {
	f := setupTestFixture(t)
	id := f.addUser(t, testEmail, testPassword)
	ctx := context.Background()

	f.gateway.StartSession(testEmail)
	f.coordinator.BootstrapSession(ctx)
	f.requireSignedInAs(t, id, testEmail)

	f.gateway.EndSession()
	f.coordinator.BootstrapSession(ctx)
	f.requireAnonymous(t)

	f.gateway.StartSession(testEmail)
	f.coordinator.BootstrapSession(ctx)
	f.requireSignedInAs(t, id, testEmail)
}

func TestBootstrapTreatsErrorsAsSignedOut(t *testing.T) {
	tests := []struct {
		name  string
		setup func(f *testFixture)
	}{
		{
			name: "no session",
			setup: func(f *testFixture) {
				f.gateway.EndSession()
			},
		},
		{
			name: "network down",
			setup: func(f *testFixture) {
				f.gateway.SetOffline(true)
			},
		},
		{
			name: "malformed token",
			setup: func(f *testFixture) {
				f.gateway.FailNext(fakegateway.MethodFetchSession,
					identity.NewProviderError(identity.CodeUnknown, "malformed token", nil))
			},
		},
		{
			name: "user lookup fails",
			setup: func(f *testFixture) {
				f.gateway.FailNext(fakegateway.MethodGetCurrentUser,
					identity.NewProviderError(identity.CodeNotAuthorized, "token revoked", nil))
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := setupTestFixture(t)
			f.addUser(t, testEmail, testPassword)
			f.gateway.StartSession(testEmail)
			tt.setup(f)

			out := f.coordinator.BootstrapSession(context.Background())
			require.True(t, out.OK())
			require.True(t, f.store.Bootstrapped())
			require.Empty(t, f.store.LastError())
			f.requireAnonymous(t)
		})
	}
}

func TestSignOutAlwaysEndsAnonymous(t *testing.T) {
	tests := []struct {
		name  string
		setup func(f *testFixture)
	}{
		{name: "remote sign-out succeeds", setup: func(f *testFixture) {}},
		{
			name: "remote sign-out fails",
			setup: func(f *testFixture) {
				f.gateway.SetSignOutError(identity.NewProviderError(identity.CodeUnknown, "revocation failed", nil))
			},
		},
		{
			name: "network down",
			setup: func(f *testFixture) {
				f.gateway.SetOffline(true)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := setupTestFixture(t)
			f.addUser(t, testEmail, testPassword)
			ctx := context.Background()

			require.True(t, f.coordinator.SignIn(ctx, testEmail, testPassword).OK())
			tt.setup(f)

			out := f.coordinator.SignOut(ctx)
			require.True(t, out.OK())
			require.True(t, f.store.Bootstrapped())
			f.requireAnonymous(t)
		})
	}
}

func TestSignOutBeforeBootstrapMarksBootstrapped(t *testing.T) {
	f := setupTestFixture(t)

	f.coordinator.SignOut(context.Background())
	require.True(t, f.store.Bootstrapped())
	f.requireAnonymous(t)
}

func TestSameClassCallIsRejectedWhileInFlight(t *testing.T) {
	f := setupTestFixture(t)
	f.addUser(t, testEmail, testPassword)
	ctx := context.Background()

	entered, release := f.gateway.Block(fakegateway.MethodSignIn)
	defer release()

	first := make(chan auth.Outcome, 1)
	go func() {
		first <- f.coordinator.SignIn(ctx, testEmail, testPassword)
	}()
	<-entered
	require.True(t, f.store.IsLoading())

	second := f.coordinator.SignIn(ctx, testEmail, testPassword)
	require.Equal(t, auth.KindOperationInProgress, second.Kind())
	require.Empty(t, f.store.LastError())
	require.Equal(t, 1, f.gateway.Calls(fakegateway.MethodSignIn))

	release()
	select {
	case out := <-first:
		require.True(t, out.OK())
	case <-time.After(operationTimeout):
		t.Fatal("sign-in did not finish")
	}

	require.False(t, f.store.IsLoading())
	require.Equal(t, []string{string(auth.ClassSignIn)}, f.metrics.rejectedClasses())
}

func TestCrossClassCallIsRejectedWhileInFlight(t *testing.T) {
	f := setupTestFixture(t)
	f.addUser(t, testEmail, testPassword)
	ctx := context.Background()

	entered, release := f.gateway.Block(fakegateway.MethodSignIn)
	defer release()

	done := make(chan auth.Outcome, 1)
	go func() {
		done <- f.coordinator.SignIn(ctx, testEmail, testPassword)
	}()
	<-entered

	require.Equal(t, auth.KindOperationInProgress, f.coordinator.SignUp(ctx, otherEmail, otherPassword, testName).Kind())
	require.Equal(t, auth.KindOperationInProgress, f.coordinator.ResetPassword(ctx, otherEmail).Kind())
	require.Equal(t, auth.KindOperationInProgress, f.coordinator.BootstrapSession(ctx).Kind())
	require.Equal(t, 0, f.gateway.Calls(fakegateway.MethodSignUp))
	require.Equal(t, 0, f.gateway.Calls(fakegateway.MethodRequestPasswordReset))
	require.False(t, f.store.Bootstrapped())

	release()
	<-done
	require.True(t, f.store.Bootstrapped())
}

func TestRejectedBootstrapSettlesWhenInFlightSignInFails(t *testing.T) {
	f := setupTestFixture(t)
	f.addUser(t, testEmail, testPassword)
	ctx := context.Background()

	entered, release := f.gateway.Block(fakegateway.MethodSignIn)
	defer release()

	done := make(chan auth.Outcome, 1)
	go func() {
		done <- f.coordinator.SignIn(ctx, testEmail, "wrong-password")
	}()
	<-entered

	require.Equal(t, auth.KindOperationInProgress, f.coordinator.BootstrapSession(ctx).Kind())

	release()
	select {
	case out := <-done:
		require.Equal(t, auth.KindInvalidCredentials, out.Kind())
	case <-time.After(operationTimeout):
		t.Fatal("sign-in did not finish")
	}

	require.True(t, f.store.Bootstrapped())
	f.requireAnonymous(t)
}

func TestSignOutDuringSignInWins(t *testing.T) {
	f := setupTestFixture(t)
	f.addUser(t, testEmail, testPassword)
	ctx := context.Background()

	entered, release := f.gateway.Block(fakegateway.MethodSignIn)
	defer release()

	done := make(chan auth.Outcome, 1)
	go func() {
		done <- f.coordinator.SignIn(ctx, testEmail, testPassword)
	}()
	<-entered
	require.Equal(t, sessions.Authenticating, f.store.CurrentState().Status)

	require.True(t, f.coordinator.SignOut(ctx).OK())
	require.Equal(t, sessions.Anonymous, f.store.CurrentState().Status)
	require.True(t, f.store.IsLoading())

	release()
	var out auth.Outcome
	select {
	case out = <-done:
	case <-time.After(operationTimeout):
		t.Fatal("sign-in did not finish")
	}

	require.Equal(t, auth.KindSuperseded, out.Kind())
	f.requireAnonymous(t)

	_, signedIn := f.gateway.SessionUser()
	require.False(t, signedIn)
	require.Equal(t, 2, f.gateway.Calls(fakegateway.MethodSignOut))
}

func TestGuardedCallsRejectedWhileSigningOut(t *testing.T) {
	f := setupTestFixture(t)
	f.addUser(t, testEmail, testPassword)
	ctx := context.Background()

	entered, release := f.gateway.Block(fakegateway.MethodSignOut)
	defer release()

	done := make(chan auth.Outcome, 1)
	go func() {
		done <- f.coordinator.SignOut(ctx)
	}()
	<-entered
	require.Equal(t, sessions.SigningOut, f.store.CurrentState().Status)

	require.Equal(t, auth.KindOperationInProgress, f.coordinator.SignIn(ctx, testEmail, testPassword).Kind())
	require.Equal(t, auth.KindOperationInProgress, f.coordinator.ResetPassword(ctx, testEmail).Kind())
	require.Equal(t, 0, f.gateway.Calls(fakegateway.MethodSignIn))
	require.Equal(t, 0, f.gateway.Calls(fakegateway.MethodRequestPasswordReset))

	release()
	select {
	case out := <-done:
		require.True(t, out.OK())
	case <-time.After(operationTimeout):
		t.Fatal("sign-out did not finish")
	}
	f.requireAnonymous(t)
	_, signedIn := f.gateway.SessionUser()
	require.False(t, signedIn)
	require.Equal(t, []string{string(auth.ClassSignIn), string(auth.ClassReset)}, f.metrics.rejectedClasses())

	out := f.coordinator.SignIn(ctx, testEmail, testPassword)
	require.True(t, out.OK())
	require.Equal(t, sessions.SignedIn, f.store.CurrentState().Status)
}

func TestLastErrorClearedWhenNextOperationStarts(t *testing.T) {
	f := setupTestFixture(t)
	f.addUser(t, testEmail, testPassword)
	ctx := context.Background()

	out := f.coordinator.SignIn(ctx, testEmail, "wrong-password")
	require.Equal(t, auth.KindInvalidCredentials, out.Kind())
	require.Equal(t, out.Message(), f.store.LastError())

	entered, release := f.gateway.Block(fakegateway.MethodSignIn)
	done := make(chan auth.Outcome, 1)
	go func() {
		done <- f.coordinator.SignIn(ctx, testEmail, testPassword)
	}()
	<-entered
	require.Empty(t, f.store.LastError())
	release()
	require.True(t, (<-done).OK())
}

func TestObserversSeeLoadingThenResult(t *testing.T) {
	f := setupTestFixture(t)
	id := f.addUser(t, testEmail, testPassword)

	updates, unsubscribe := f.store.Subscribe()
	defer unsubscribe()
	<-updates

	entered, release := f.gateway.Block(fakegateway.MethodSignIn)
	done := make(chan auth.Outcome, 1)
	go func() {
		done <- f.coordinator.SignIn(context.Background(), testEmail, testPassword)
	}()
	<-entered

	snap := <-updates
	require.True(t, snap.Loading)

	release()
	require.True(t, (<-done).OK())

	snap = <-updates
	require.False(t, snap.Loading)
	require.Equal(t, sessions.SignedIn, snap.State.Status)
	require.Equal(t, id, snap.State.User().UserID)
}

func TestMetricsRecordedPerClassAndKind(t *testing.T) {
	f := setupTestFixture(t)
	f.addUser(t, testEmail, testPassword)
	ctx := context.Background()

	f.coordinator.BootstrapSession(ctx)
	f.coordinator.SignIn(ctx, testEmail, "wrong-password")
	f.coordinator.SignIn(ctx, testEmail, testPassword)
	f.coordinator.SignOut(ctx)

	require.Equal(t, []string{string(auth.KindNone)}, f.metrics.operationsFor(auth.ClassBootstrap))
	require.Equal(t, []string{string(auth.KindInvalidCredentials), string(auth.KindNone)}, f.metrics.operationsFor(auth.ClassSignIn))
	require.Equal(t, []string{string(auth.KindNone)}, f.metrics.operationsFor(auth.ClassSignOut))
	require.Contains(t, f.metrics.states, sessions.SignedIn.String())
}

func TestPrometheusCollector(t *testing.T) {
	reg := prometheus.NewRegistry()
	statuses := make([]string, 0, len(sessions.Statuses))
	for _, s := range sessions.Statuses {
		statuses = append(statuses, s.String())
	}
	collector := metrics.NewCollector(reg, statuses...)

	f := setupTestFixture(t, auth.WithMetrics(collector))
	f.addUser(t, testEmail, testPassword)
	ctx := context.Background()

	f.coordinator.SignIn(ctx, testEmail, testPassword)
	f.coordinator.SignOut(ctx)

	count, err := testutil.GatherAndCount(reg, "certprep_session_operations_total")
	require.NoError(t, err)
	require.Equal(t, 2, count)

	count, err = testutil.GatherAndCount(reg, "certprep_session_state")
	require.NoError(t, err)
	require.Equal(t, len(statuses), count)
}
