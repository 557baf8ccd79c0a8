// Package views holds the login, signup and dashboard views and the
// navigation layer that moves between them.
package views

import (
	"context"
	"log/slog"
	"sync"
)

// API is the full backend surface the views need.
type API interface {
	Authenticator
	Registrar
	JobService
}

// App owns one instance of each view. A reload rebuilds all of them.
type App struct {
	Nav *Navigator

	api    API
	alert  Alerter
	logger *slog.Logger

	mu        sync.Mutex
	login     *LoginView
	signup    *SignupView
	dashboard *DashboardView
	resets    int
}

func NewApp(api API, alert Alerter, logger *slog.Logger) *App {
	if logger == nil {
		logger = slog.Default()
	}
	a := &App{api: api, alert: alert, logger: logger}
	a.Nav = NewNavigator(RouteLogin, logger)
	a.Nav.OnReset(a.reset)
	a.build()
	return a
}

func (a *App) build() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.login = NewLoginView(a.api, a.Nav, a.logger)
	a.signup = NewSignupView(a.api, a.Nav, a.logger)
	a.dashboard = NewDashboardView(a.api, a.alert, a.logger)
}

func (a *App) reset() {
	a.build()
	a.mu.Lock()
	a.resets++
	n := a.resets
	a.mu.Unlock()
	a.logger.Debug("application state reset", "count", n)
}

// Resets returns how many times the application state has been rebuilt.
func (a *App) Resets() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.resets
}

func (a *App) Login() *LoginView {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.login
}

func (a *App) Signup() *SignupView {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.signup
}

func (a *App) Dashboard() *DashboardView {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.dashboard
}

// OpenDashboard navigates to the dashboard and mounts it.
func (a *App) OpenDashboard(ctx context.Context) *DashboardView {
	a.Nav.Navigate(RouteDashboard)
	d := a.Dashboard()
	d.Mount(ctx)
	return d
}
