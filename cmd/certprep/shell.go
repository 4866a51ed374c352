package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/jrsteele09/go-certprep-session/auth"
)

const usage = `commands:
  signup <email> <password> [full name]
  confirm <email> <code>
  resend <email>
  signin <email> <password>
  signout
  reset <email>
  confirm-reset <email> <code> <new password>
  cancel-reset
  onboarded
  status
  help
  quit`

// shell drives the coordinator from line based input
type shell struct {
	app *app
	out io.Writer
}

func newShell(a *app, out io.Writer) *shell {
	return &shell{app: a, out: out}
}

// Run reads commands until quit, end of input or ctx is done
func (s *shell) Run(ctx context.Context, in io.Reader) error {
	scanner := bufio.NewScanner(in)
	s.printf("type 'help' for commands\n")
	for scanner.Scan() {
		if ctx.Err() != nil {
			return nil
		}
		if quit := s.exec(ctx, strings.Fields(scanner.Text())); quit {
			return nil
		}
	}
	return scanner.Err()
}

// exec runs one command and reports whether the shell should stop
func (s *shell) exec(ctx context.Context, args []string) bool {
	if len(args) == 0 {
		return false
	}
	c := s.app.coordinator

	switch cmd, args := strings.ToLower(args[0]), args[1:]; cmd {
	case "signup":
		if !s.need(args, 2, "signup <email> <password> [full name]") {
			return false
		}
		s.report(c.SignUp(ctx, args[0], args[1], strings.Join(args[2:], " ")))
		s.showCode(args[0], false)
	case "confirm":
		if s.need(args, 2, "confirm <email> <code>") {
			s.report(c.ConfirmSignUp(ctx, args[0], args[1]))
		}
	case "resend":
		if s.need(args, 1, "resend <email>") {
			s.report(c.ResendConfirmationCode(ctx, args[0]))
			s.showCode(args[0], false)
		}
	case "signin":
		if s.need(args, 2, "signin <email> <password>") {
			s.report(c.SignIn(ctx, args[0], args[1]))
		}
	case "signout":
		s.report(c.SignOut(ctx))
	case "reset":
		if s.need(args, 1, "reset <email>") {
			s.report(c.ResetPassword(ctx, args[0]))
			s.showCode(args[0], true)
		}
	case "confirm-reset":
		if s.need(args, 3, "confirm-reset <email> <code> <new password>") {
			s.report(c.ConfirmResetPassword(ctx, args[0], args[2], args[1]))
		}
	case "cancel-reset":
		c.CancelPasswordReset()
		s.printf("ok\n")
	case "onboarded":
		if err := s.app.gate.CompleteOnboarding(ctx); err != nil {
			s.printf("error: %v\n", err)
			return false
		}
		s.printf("ok\n")
	case "status":
		s.status(ctx)
	case "help":
		s.printf("%s\n", usage)
	case "quit", "exit":
		return true
	default:
		s.printf("unknown command %q, type 'help'\n", cmd)
	}
	return false
}

func (s *shell) need(args []string, n int, form string) bool {
	if len(args) < n {
		s.printf("usage: %s\n", form)
		return false
	}
	return true
}

func (s *shell) report(out auth.Outcome) {
	if out.OK() {
		s.printf("ok (next: %s)\n", out.NextStep)
		return
	}
	f := out.Failure
	if f.Challenge != auth.ChallengeNone {
		s.printf("error [%s/%s]: %s\n", f.Kind, f.Challenge, f.Message)
		return
	}
	s.printf("error [%s]: %s\n", f.Kind, f.Message)
}

// showCode prints the code the demo provider "emailed"
func (s *shell) showCode(email string, reset bool) {
	if s.app.demo == nil {
		return
	}
	code := s.app.demo.ConfirmationCode(email)
	if reset {
		code = s.app.demo.ResetCode(email)
	}
	if code != "" {
		s.printf("(demo) code for %s: %s\n", email, code)
	}
}

func (s *shell) status(ctx context.Context) {
	c := s.app.coordinator
	snap := c.Store().Snapshot()

	s.printf("state: %s\n", snap.State)
	if u := snap.State.User(); u != nil {
		s.printf("user: %s (%s)\n", u.Username, u.UserID)
	}
	s.printf("loading: %t  bootstrapped: %t\n", snap.Loading, snap.Bootstrapped)
	if snap.LastError != "" {
		s.printf("last error: %s\n", snap.LastError)
	}
	if p, ok := c.PendingConfirmation(); ok {
		s.printf("pending confirmation: %s\n", p.Email)
	}
	if r, ok := c.PasswordResetFlow(); ok {
		s.printf("password reset: %s %s\n", r.Email, r.Step)
	}

	route, err := s.app.gate.Evaluate(ctx)
	if err != nil {
		s.printf("route: %s (%v)\n", route, err)
		return
	}
	s.printf("route: %s\n", route)
}

func (s *shell) printf(format string, args ...any) {
	fmt.Fprintf(s.out, format, args...)
}
