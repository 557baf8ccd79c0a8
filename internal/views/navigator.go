package views

import (
	"log/slog"
	"sync"
)

// Route identifies a view.
type Route string

const (
	RouteLogin     Route = "/"
	RouteSignup    Route = "/signup"
	RouteDashboard Route = "/dashboard"
)

// Router is what views use to move between routes.
type Router interface {
	// Navigate moves to route keeping application state.
	Navigate(route Route)
	// Reload resets all application state and then moves to route.
	Reload(route Route)
}

// Navigator tracks the current route and owns the application reset hook.
type Navigator struct {
	mu      sync.Mutex
	current Route
	reset   func()
	logger  *slog.Logger
}

// NewNavigator returns a navigator positioned at start.
func NewNavigator(start Route, logger *slog.Logger) *Navigator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Navigator{current: start, logger: logger}
}

// OnReset registers the function Reload runs before switching routes.
func (n *Navigator) OnReset(fn func()) {
	n.mu.Lock()
	n.reset = fn
	n.mu.Unlock()
}

// Navigate moves to route without touching view state.
func (n *Navigator) Navigate(route Route) {
	n.mu.Lock()
	from := n.current
	n.current = route
	n.mu.Unlock()
	n.logger.Debug("navigate", "from", from, "to", route)
}

// Reload runs the reset hook, if any, and then navigates to route.
func (n *Navigator) Reload(route Route) {
	n.mu.Lock()
	reset := n.reset
	n.mu.Unlock()

	if reset != nil {
		reset()
	}
	n.Navigate(route)
}

// Current returns the active route.
func (n *Navigator) Current() Route {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.current
}
