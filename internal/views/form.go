package views

import "sync"

// FormState is the state of a credentials form.
type FormState int

const (
	FormIdle FormState = iota
	FormPending
)

func (s FormState) String() string {
	if s == FormPending {
		return "pending"
	}
	return "idle"
}

// form holds the state shared by the login and signup views.
type form struct {
	mu    sync.Mutex
	state FormState
	err   string
}

// begin moves the form to pending. It returns false if a submission is
// already in flight.
func (f *form) begin() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.state == FormPending {
		return false
	}
	f.state = FormPending
	return true
}

func (f *form) finish(errMsg string) {
	f.mu.Lock()
	f.state = FormIdle
	f.err = errMsg
	f.mu.Unlock()
}

func (f *form) State() FormState {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state
}

// Error returns the message shown under the form, or "".
func (f *form) Error() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.err
}
