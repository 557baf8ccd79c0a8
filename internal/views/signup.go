package views

import (
	"context"
	"log/slog"
)

// SignupFailedMessage is shown for any failed signup.
const SignupFailedMessage = "Signup failed"

type Registrar interface {
	Signup(ctx context.Context, email, password string) error
}

// SignupView registers an account and sends the user to the login route.
type SignupView struct {
	form
	api    Registrar
	router Router
	logger *slog.Logger
}

func NewSignupView(api Registrar, router Router, logger *slog.Logger) *SignupView {
	return &SignupView{api: api, router: router, logger: logger}
}

// Submit attempts a signup and reports whether it succeeded.
func (v *SignupView) Submit(ctx context.Context, email, password string) bool {
	if !v.begin() {
		return false
	}
	if err := v.api.Signup(ctx, email, password); err != nil {
		v.logger.Info("signup failed", "email", email, "error", err)
		v.finish(SignupFailedMessage)
		return false
	}
	v.finish("")
	v.router.Navigate(RouteLogin)
	return true
}
