package views

import (
	"context"
	"log/slog"
)

// LoginFailedMessage is shown for any failed login.
const LoginFailedMessage = "Invalid credentials"

type Authenticator interface {
	Login(ctx context.Context, email, password string) error
}

// LoginView collects credentials and, on success, reloads the application
// into the dashboard.
type LoginView struct {
	form
	api    Authenticator
	router Router
	logger *slog.Logger
}

func NewLoginView(api Authenticator, router Router, logger *slog.Logger) *LoginView {
	return &LoginView{api: api, router: router, logger: logger}
}

// Submit attempts a login. It reports whether the login succeeded; the
// failure detail is logged, never shown.
func (v *LoginView) Submit(ctx context.Context, email, password string) bool {
	if !v.begin() {
		return false
	}
	if err := v.api.Login(ctx, email, password); err != nil {
		v.logger.Info("login failed", "email", email, "error", err)
		v.finish(LoginFailedMessage)
		return false
	}
	v.finish("")
	v.router.Reload(RouteDashboard)
	return true
}
