package views

import (
	"context"
	"errors"
	"sync"

	"github.com/aiimage/imgdash/internal/imageapi"
)

var errUnauthorized = &imageapi.RequestError{Op: "list jobs", StatusCode: 401}

// fakeAPI is a scripted API that records the order of calls.
type fakeAPI struct {
	mu        sync.Mutex
	calls     []string
	loginErr  error
	signupErr error
	uploadErr error
	jobsErr   error
	jobs      []imageapi.Job
	uploaded  []imageapi.UploadFile

	// When set, the call signals started and blocks until release is closed.
	uploadStarted chan struct{}
	uploadRelease chan struct{}

	// GetJobs call n (from 0) signals jobsStarted and then waits for
	// jobsGates[n] to close. Calls past the end of jobsGates do not block.
	jobsStarted chan struct{}
	jobsGates   []chan struct{}
	jobsCalls   int
}

func (f *fakeAPI) record(call string) {
	f.mu.Lock()
	f.calls = append(f.calls, call)
	f.mu.Unlock()
}

func (f *fakeAPI) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

func (f *fakeAPI) count(call string) int {
	n := 0
	for _, c := range f.Calls() {
		if c == call {
			n++
		}
	}
	return n
}

func (f *fakeAPI) Login(ctx context.Context, email, password string) error {
	f.record("login")
	return f.loginErr
}

func (f *fakeAPI) Signup(ctx context.Context, email, password string) error {
	f.record("signup")
	return f.signupErr
}

func (f *fakeAPI) UploadImage(ctx context.Context, file imageapi.UploadFile) (imageapi.UploadResult, error) {
	f.record("upload")
	if f.uploadStarted != nil {
		f.uploadStarted <- struct{}{}
		<-f.uploadRelease
	}
	if f.uploadErr != nil {
		return imageapi.UploadResult{}, f.uploadErr
	}
	f.mu.Lock()
	f.uploaded = append(f.uploaded, file)
	f.jobs = append(f.jobs, imageapi.Job{ID: "new", Status: "queued"})
	f.mu.Unlock()
	return imageapi.UploadResult{JobID: "new"}, nil
}

// GetJobs answers with the state at the time the request is issued, like a
// server that has already built its response when it is slow to send it.
func (f *fakeAPI) GetJobs(ctx context.Context) ([]imageapi.Job, error) {
	f.record("jobs")
	f.mu.Lock()
	n := f.jobsCalls
	f.jobsCalls++
	jobs := append([]imageapi.Job{}, f.jobs...)
	err := f.jobsErr
	var gate chan struct{}
	if n < len(f.jobsGates) {
		gate = f.jobsGates[n]
	}
	f.mu.Unlock()

	if gate != nil {
		f.jobsStarted <- struct{}{}
		<-gate
	}
	if err != nil {
		return nil, err
	}
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}
	return jobs, nil
}

// recordingAlerter collects alert messages.
type recordingAlerter struct {
	mu   sync.Mutex
	msgs []string
}

func (a *recordingAlerter) Alert(msg string) {
	a.mu.Lock()
	a.msgs = append(a.msgs, msg)
	a.mu.Unlock()
}

func (a *recordingAlerter) Messages() []string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]string(nil), a.msgs...)
}

var errBoom = errors.New("boom")
