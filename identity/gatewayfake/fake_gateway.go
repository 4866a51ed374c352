package fakegateway

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jrsteele09/go-certprep-session/identity"
	"github.com/jrsteele09/go-certprep-session/internal/errors"
	"golang.org/x/crypto/bcrypt"
)

var _ identity.Gateway = (*FakeGateway)(nil)

// Method names used for call counts, injected failures and blocking hooks
const (
	MethodFetchSession           = "FetchSession"
	MethodGetCurrentUser         = "GetCurrentUser"
	MethodSignUp                 = "SignUp"
	MethodConfirmSignUp          = "ConfirmSignUp"
	MethodResendConfirmationCode = "ResendConfirmationCode"
	MethodSignIn                 = "SignIn"
	MethodSignOut                = "SignOut"
	MethodRequestPasswordReset   = "RequestPasswordReset"
	MethodConfirmPasswordReset   = "ConfirmPasswordReset"
)

const (
	defaultCodeTTL           = 24 * time.Hour
	defaultMinPasswordLength = 8
)

type account struct {
	id           string
	username     string
	name         string
	passwordHash []byte
	confirmed    bool
	nextStep     identity.NextStep

	confirmCode    string
	confirmExpires time.Time
	resetCode      string
	resetExpires   time.Time
}

type hook struct {
	entered chan struct{}
	release chan struct{}
	once    sync.Once
}

// FakeGateway is an in-memory identity provider. It keeps one device session
// and behaves like a hosted user pool: unconfirmed sign-ups, emailed codes with
// expiry, and password resets.
type FakeGateway struct {
	mu          sync.Mutex
	accounts    map[string]*account
	sessionUser string
	nowTime     func() time.Time
	codeTTL     time.Duration
	minLength   int
	autoConfirm bool
	codeSeq     int

	calls      map[string]int
	failNext   map[string]error
	offline    bool
	signOutErr error
	hooks      map[string]*hook
}

type Option func(*FakeGateway)

// WithNowTime sets the now time function used for code expiry
func WithNowTime(nowFunc func() time.Time) Option {
	return func(g *FakeGateway) {
		g.nowTime = nowFunc
	}
}

func WithCodeTTL(ttl time.Duration) Option {
	return func(g *FakeGateway) {
		g.codeTTL = ttl
	}
}

// WithMinPasswordLength sets the provider side password rule
func WithMinPasswordLength(n int) Option {
	return func(g *FakeGateway) {
		g.minLength = n
	}
}

// WithAutoConfirm completes sign-ups without a confirmation code
func WithAutoConfirm() Option {
	return func(g *FakeGateway) {
		g.autoConfirm = true
	}
}

func NewFakeGateway(options ...Option) *FakeGateway {
	g := &FakeGateway{
		accounts:  make(map[string]*account),
		nowTime:   time.Now,
		codeTTL:   defaultCodeTTL,
		minLength: defaultMinPasswordLength,
		calls:     make(map[string]int),
		failNext:  make(map[string]error),
		hooks:     make(map[string]*hook),
	}
	for _, opt := range options {
		opt(g)
	}
	return g
}

// AddUser registers an account directly and returns its user id
func (g *FakeGateway) AddUser(username, password string, confirmed bool) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	if err != nil {
		return "", errors.Wrapf(err, "[FakeGateway.AddUser] hash password")
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	key := userKey(username)
	if _, exists := g.accounts[key]; exists {
		return "", identity.NewProviderError(identity.CodeUsernameExists, "User already exists", nil)
	}
	a := &account{
		id:           uuid.NewString(),
		username:     strings.TrimSpace(username),
		passwordHash: hash,
		confirmed:    confirmed,
	}
	if !confirmed {
		g.issueConfirmCode(a)
	}
	g.accounts[key] = a
	return a.id, nil
}

// StartSession signs username in on the device without a sign-in call
func (g *FakeGateway) StartSession(username string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.sessionUser = userKey(username)
}

// EndSession drops the device session without a sign-out call
func (g *FakeGateway) EndSession() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.sessionUser = ""
}

// SessionUser returns the username holding the device session
func (g *FakeGateway) SessionUser() (string, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	a, ok := g.accounts[g.sessionUser]
	if !ok {
		return "", false
	}
	return a.username, true
}

// UserID returns the id of username, or "" when unknown
func (g *FakeGateway) UserID(username string) string {
	g.mu.Lock()
	defer g.mu.Unlock()
	if a, ok := g.accounts[userKey(username)]; ok {
		return a.id
	}
	return ""
}

// IsConfirmed reports whether username has confirmed its email
func (g *FakeGateway) IsConfirmed(username string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	a, ok := g.accounts[userKey(username)]
	return ok && a.confirmed
}

// Name returns the name attribute given at sign-up
func (g *FakeGateway) Name(username string) string {
	g.mu.Lock()
	defer g.mu.Unlock()
	if a, ok := g.accounts[userKey(username)]; ok {
		return a.name
	}
	return ""
}

// ConfirmationCode is the code that was "emailed" to username after sign-up
func (g *FakeGateway) ConfirmationCode(username string) string {
	g.mu.Lock()
	defer g.mu.Unlock()
	if a, ok := g.accounts[userKey(username)]; ok {
		return a.confirmCode
	}
	return ""
}

// ResetCode is the code that was "emailed" to username for a password reset
func (g *FakeGateway) ResetCode(username string) string {
	g.mu.Lock()
	defer g.mu.Unlock()
	if a, ok := g.accounts[userKey(username)]; ok {
		return a.resetCode
	}
	return ""
}

// SetNextStep makes every sign-in for username stop at step
func (g *FakeGateway) SetNextStep(username string, step identity.NextStep) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if a, ok := g.accounts[userKey(username)]; ok {
		a.nextStep = step
	}
}

// FailNext makes the next call to method return err
func (g *FakeGateway) FailNext(method string, err error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.failNext[method] = err
}

// SetOffline makes every call fail with a network error until cleared.
// SignOut still clears the local session.
func (g *FakeGateway) SetOffline(offline bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.offline = offline
}

// SetSignOutError makes SignOut fail after clearing the local session
func (g *FakeGateway) SetSignOutError(err error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.signOutErr = err
}

// Block holds the next calls to method until release is called. entered
// receives once a call is waiting.
func (g *FakeGateway) Block(method string) (entered <-chan struct{}, release func()) {
	h := &hook{
		entered: make(chan struct{}, 1),
		release: make(chan struct{}),
	}
	g.mu.Lock()
	g.hooks[method] = h
	g.mu.Unlock()

	return h.entered, func() {
		h.once.Do(func() {
			g.mu.Lock()
			if g.hooks[method] == h {
				delete(g.hooks, method)
			}
			g.mu.Unlock()
			close(h.release)
		})
	}
}

// Calls returns how many times method was invoked
func (g *FakeGateway) Calls(method string) int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.calls[method]
}

func (g *FakeGateway) FetchSession(ctx context.Context) (identity.Session, error) {
	if err := g.enter(ctx, MethodFetchSession); err != nil {
		return identity.Session{}, err
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	_, ok := g.accounts[g.sessionUser]
	return identity.Session{IsSignedIn: ok}, nil
}

func (g *FakeGateway) GetCurrentUser(ctx context.Context) (identity.User, error) {
	if err := g.enter(ctx, MethodGetCurrentUser); err != nil {
		return identity.User{}, err
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	a, ok := g.accounts[g.sessionUser]
	if !ok {
		return identity.User{}, identity.NewProviderError(identity.CodeNotAuthorized, "No current user", errors.ErrNotSignedIn)
	}
	return identity.User{UserID: a.id, Username: a.username}, nil
}

func (g *FakeGateway) SignUp(ctx context.Context, username, password string, attributes identity.Attributes) (identity.SignUpResult, error) {
	if err := g.enter(ctx, MethodSignUp); err != nil {
		return identity.SignUpResult{}, err
	}
	if len([]rune(password)) < g.minLength {
		return identity.SignUpResult{}, g.passwordPolicyError()
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	if err != nil {
		return identity.SignUpResult{}, identity.NewProviderError(identity.CodeInvalidPassword, "Password could not be stored", err)
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	key := userKey(username)
	if _, exists := g.accounts[key]; exists {
		return identity.SignUpResult{}, identity.NewProviderError(identity.CodeUsernameExists, "User already exists", nil)
	}
	a := &account{
		id:           uuid.NewString(),
		username:     strings.TrimSpace(username),
		name:         attributes.Name,
		passwordHash: hash,
		confirmed:    g.autoConfirm,
	}
	if !a.confirmed {
		g.issueConfirmCode(a)
	}
	g.accounts[key] = a
	return identity.SignUpResult{IsComplete: a.confirmed}, nil
}

func (g *FakeGateway) ConfirmSignUp(ctx context.Context, username, code string) (identity.ConfirmSignUpResult, error) {
	if err := g.enter(ctx, MethodConfirmSignUp); err != nil {
		return identity.ConfirmSignUpResult{}, err
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	a, ok := g.accounts[userKey(username)]
	if !ok {
		return identity.ConfirmSignUpResult{}, identity.NewProviderError(identity.CodeUserNotFound, "User does not exist", nil)
	}
	if a.confirmed {
		return identity.ConfirmSignUpResult{}, identity.NewProviderError(identity.CodeAlreadyConfirmed, "User is already confirmed", nil)
	}
	if a.confirmCode == "" || a.confirmCode != code {
		return identity.ConfirmSignUpResult{}, identity.NewProviderError(identity.CodeCodeMismatch, "Invalid verification code provided", nil)
	}
	if g.nowTime().After(a.confirmExpires) {
		return identity.ConfirmSignUpResult{}, identity.NewProviderError(identity.CodeExpiredCode, "Invalid code provided, please request a code again", nil)
	}

	a.confirmed = true
	a.confirmCode = ""
	return identity.ConfirmSignUpResult{IsComplete: true}, nil
}

func (g *FakeGateway) ResendConfirmationCode(ctx context.Context, username string) error {
	if err := g.enter(ctx, MethodResendConfirmationCode); err != nil {
		return err
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	a, ok := g.accounts[userKey(username)]
	if !ok {
		return identity.NewProviderError(identity.CodeUserNotFound, "User does not exist", nil)
	}
	if a.confirmed {
		return identity.NewProviderError(identity.CodeInvalidParameter, "User is already confirmed", nil)
	}
	g.issueConfirmCode(a)
	return nil
}

func (g *FakeGateway) SignIn(ctx context.Context, username, password string) (identity.SignInResult, error) {
	if err := g.enter(ctx, MethodSignIn); err != nil {
		return identity.SignInResult{}, err
	}

	g.mu.Lock()
	a, ok := g.accounts[userKey(username)]
	var hash []byte
	if ok {
		hash = a.passwordHash
	}
	g.mu.Unlock()
	if !ok {
		return identity.SignInResult{}, identity.NewProviderError(identity.CodeUserNotFound, "User does not exist", nil)
	}
	if err := bcrypt.CompareHashAndPassword(hash, []byte(password)); err != nil {
		return identity.SignInResult{}, identity.NewProviderError(identity.CodeNotAuthorized, "Incorrect username or password", nil)
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	if !a.confirmed {
		return identity.SignInResult{NextStep: identity.NextStepConfirmSignUp}, nil
	}
	if a.nextStep != "" && a.nextStep != identity.NextStepDone {
		return identity.SignInResult{NextStep: a.nextStep}, nil
	}
	g.sessionUser = userKey(a.username)
	return identity.SignInResult{IsSignedIn: true, NextStep: identity.NextStepDone}, nil
}

// SignOut always clears the device session, even when it then reports an error
func (g *FakeGateway) SignOut(ctx context.Context) error {
	g.mu.Lock()
	g.sessionUser = ""
	signOutErr := g.signOutErr
	g.mu.Unlock()

	if err := g.enter(ctx, MethodSignOut); err != nil {
		return err
	}
	return signOutErr
}

func (g *FakeGateway) RequestPasswordReset(ctx context.Context, username string) error {
	if err := g.enter(ctx, MethodRequestPasswordReset); err != nil {
		return err
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	a, ok := g.accounts[userKey(username)]
	if !ok {
		return identity.NewProviderError(identity.CodeUserNotFound, "User does not exist", nil)
	}
	a.resetCode = g.nextCode()
	a.resetExpires = g.nowTime().Add(g.codeTTL)
	return nil
}

func (g *FakeGateway) ConfirmPasswordReset(ctx context.Context, username, newPassword, code string) error {
	if err := g.enter(ctx, MethodConfirmPasswordReset); err != nil {
		return err
	}

	g.mu.Lock()
	a, ok := g.accounts[userKey(username)]
	if !ok {
		g.mu.Unlock()
		return identity.NewProviderError(identity.CodeUserNotFound, "User does not exist", nil)
	}
	if a.resetCode == "" || a.resetCode != code {
		g.mu.Unlock()
		return identity.NewProviderError(identity.CodeCodeMismatch, "Invalid verification code provided", nil)
	}
	if g.nowTime().After(a.resetExpires) {
		g.mu.Unlock()
		return identity.NewProviderError(identity.CodeExpiredCode, "Invalid code provided, please request a code again", nil)
	}
	g.mu.Unlock()

	if len([]rune(newPassword)) < g.minLength {
		return g.passwordPolicyError()
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(newPassword), bcrypt.MinCost)
	if err != nil {
		return identity.NewProviderError(identity.CodeInvalidPassword, "Password could not be stored", err)
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	a.passwordHash = hash
	a.resetCode = ""
	a.nextStep = ""
	return nil
}

// enter counts the call, waits on any blocking hook, then applies offline mode
// and injected failures
func (g *FakeGateway) enter(ctx context.Context, method string) error {
	g.mu.Lock()
	g.calls[method]++
	h := g.hooks[method]
	g.mu.Unlock()

	if h != nil {
		select {
		case h.entered <- struct{}{}:
		default:
		}
		select {
		case <-h.release:
		case <-ctx.Done():
			return identity.NewProviderError(identity.CodeNetwork, "request cancelled", ctx.Err())
		}
	}

	if err := ctx.Err(); err != nil {
		return identity.NewProviderError(identity.CodeNetwork, "request cancelled", err)
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	if g.offline {
		return identity.NewProviderError(identity.CodeNetwork, "network unavailable", nil)
	}
	if err, ok := g.failNext[method]; ok {
		delete(g.failNext, method)
		return err
	}
	return nil
}

// issueConfirmCode must be called with g.mu held
func (g *FakeGateway) issueConfirmCode(a *account) {
	a.confirmCode = g.nextCode()
	a.confirmExpires = g.nowTime().Add(g.codeTTL)
}

func (g *FakeGateway) nextCode() string {
	g.codeSeq++
	return fmt.Sprintf("%06d", 100000+g.codeSeq)
}

func (g *FakeGateway) passwordPolicyError() error {
	return identity.NewProviderError(identity.CodeInvalidPassword,
		fmt.Sprintf("Password must be at least %d characters long.", g.minLength), nil)
}

func userKey(username string) string {
	return strings.ToLower(strings.TrimSpace(username))
}
