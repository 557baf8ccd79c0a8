package views

import (
	"bytes"
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/aiimage/imgdash/internal/imageapi"
	"github.com/aiimage/imgdash/internal/logging"
)

var testPNG = imageapi.UploadFile{
	Name: "cat.png",
	Data: []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR\x00\x00\x00\x01\x00\x00\x00\x01\x08\x02\x00\x00\x00"),
}

func newTestDashboard(api *fakeAPI) (*DashboardView, *recordingAlerter) {
	alerts := &recordingAlerter{}
	return NewDashboardView(api, alerts, logging.Discard()), alerts
}

func render(t *testing.T, d *DashboardView) string {
	t.Helper()
	var buf bytes.Buffer
	if err := d.Render(&buf); err != nil {
		t.Fatalf("Render: %v", err)
	}
	return buf.String()
}

func TestMountEmptyShowsNoJobs(t *testing.T) {
	d, _ := newTestDashboard(&fakeAPI{})
	d.Mount(ctx)

	out := render(t, d)
	if !strings.Contains(out, EmptyJobsMessage) {
		t.Errorf("output missing %q:\n%s", EmptyJobsMessage, out)
	}
	if strings.Contains(out, "Job ID:") {
		t.Errorf("output has job cards:\n%s", out)
	}
	if d.Error() != "" {
		t.Errorf("error = %q, want empty", d.Error())
	}
}

func TestMountUnauthorizedShowsReauth(t *testing.T) {
	d, _ := newTestDashboard(&fakeAPI{jobsErr: errUnauthorized})
	d.Mount(ctx)

	if d.Error() != ReauthMessage {
		t.Errorf("error = %q, want %q", d.Error(), ReauthMessage)
	}
	if len(d.Jobs()) != 0 {
		t.Errorf("jobs = %v, want empty", d.Jobs())
	}
	if out := render(t, d); !strings.Contains(out, ReauthMessage) {
		t.Errorf("output missing reauth message:\n%s", out)
	}
}

func TestMountFailureKeepsPreviousJobs(t *testing.T) {
	api := &fakeAPI{jobs: []imageapi.Job{{ID: "1", Status: "queued"}}}
	d, _ := newTestDashboard(api)
	d.Mount(ctx)

	api.jobsErr = errBoom
	d.Mount(ctx)

	if len(d.Jobs()) != 1 {
		t.Errorf("jobs = %v, want previous list kept", d.Jobs())
	}
}

func TestUploadWithoutSelectionIsNoop(t *testing.T) {
	api := &fakeAPI{}
	d, alerts := newTestDashboard(api)

	if got := d.Upload(ctx); got != UploadSkipped {
		t.Errorf("outcome = %v, want skipped", got)
	}
	if calls := api.Calls(); len(calls) != 0 {
		t.Errorf("calls = %v, want none", calls)
	}
	if len(alerts.Messages()) != 0 {
		t.Errorf("alerts = %v", alerts.Messages())
	}
}

func TestUploadSuccessReloadsOnceAndClearsSelection(t *testing.T) {
	api := &fakeAPI{}
	d, _ := newTestDashboard(api)
	d.Mount(ctx)

	if !d.Select(testPNG) {
		t.Error("png not accepted")
	}
	if got := d.Upload(ctx); got != UploadDone {
		t.Fatalf("outcome = %v, want done", got)
	}

	calls := api.Calls()
	want := []string{"jobs", "upload", "jobs"}
	if strings.Join(calls, ",") != strings.Join(want, ",") {
		t.Errorf("calls = %v, want %v", calls, want)
	}
	if _, ok := d.Selected(); ok {
		t.Error("selection not cleared")
	}
	if d.Loading() {
		t.Error("loading still true")
	}
	jobs := d.Jobs()
	if len(jobs) != 1 || jobs[0].ID != "new" {
		t.Errorf("jobs = %v, want the fresh fetch", jobs)
	}
	if res, ok := d.LastUpload(); !ok || res.JobID != "new" {
		t.Errorf("LastUpload = %+v, %v", res, ok)
	}
	if len(api.uploaded) != 1 || api.uploaded[0].Name != "cat.png" {
		t.Errorf("uploaded = %v", api.uploaded)
	}
}

func TestUploadFailureKeepsSelection(t *testing.T) {
	api := &fakeAPI{uploadErr: errBoom}
	d, alerts := newTestDashboard(api)

	d.Select(testPNG)
	if got := d.Upload(ctx); got != UploadFailed {
		t.Fatalf("outcome = %v, want failed", got)
	}

	sel, ok := d.Selected()
	if !ok || sel.Name != "cat.png" {
		t.Errorf("selection = %v, %v; want cat.png kept", sel, ok)
	}
	if d.Loading() {
		t.Error("loading still true")
	}
	if msgs := alerts.Messages(); len(msgs) != 1 || msgs[0] != UploadFailedMessage {
		t.Errorf("alerts = %v, want [%q]", msgs, UploadFailedMessage)
	}
	if api.count("jobs") != 0 {
		t.Error("jobs reloaded after failed upload")
	}
}

func TestUploadReloadFailureStillClearsSelection(t *testing.T) {
	api := &fakeAPI{jobsErr: errUnauthorized}
	d, alerts := newTestDashboard(api)

	d.Select(testPNG)
	if got := d.Upload(ctx); got != UploadDone {
		t.Fatalf("outcome = %v, want done", got)
	}
	if _, ok := d.Selected(); ok {
		t.Error("selection not cleared")
	}
	if d.Error() != ReauthMessage {
		t.Errorf("error = %q, want %q", d.Error(), ReauthMessage)
	}
	if len(alerts.Messages()) != 0 {
		t.Errorf("alerts = %v, want none", alerts.Messages())
	}
}

func TestUploadWhileLoadingIsBusy(t *testing.T) {
	api := &fakeAPI{
		uploadStarted: make(chan struct{}),
		uploadRelease: make(chan struct{}),
	}
	d, _ := newTestDashboard(api)
	d.Select(testPNG)

	done := make(chan UploadOutcome, 1)
	go func() { done <- d.Upload(ctx) }()

	<-api.uploadStarted
	if !d.Loading() {
		t.Error("loading = false during upload")
	}
	if out := render(t, d); !strings.Contains(out, "Uploading...") {
		t.Errorf("output missing Uploading...:\n%s", out)
	}
	if got := d.Upload(ctx); got != UploadBusy {
		t.Errorf("second outcome = %v, want busy", got)
	}

	close(api.uploadRelease)
	if got := <-done; got != UploadDone {
		t.Errorf("first outcome = %v, want done", got)
	}
	if api.count("upload") != 1 {
		t.Errorf("uploads = %d, want 1", api.count("upload"))
	}
}

func TestSelectNonImageWarnsButKeeps(t *testing.T) {
	d, _ := newTestDashboard(&fakeAPI{})

	if d.Select(imageapi.UploadFile{Name: "notes.txt", Data: []byte("hello")}) {
		t.Error("text file reported as accepted")
	}
	if sel, ok := d.Selected(); !ok || sel.Name != "notes.txt" {
		t.Errorf("selection = %v, %v", sel, ok)
	}
}

func TestOverlappingMountsShareOneFetch(t *testing.T) {
	release := make(chan struct{})
	api := &fakeAPI{
		jobs:        []imageapi.Job{{ID: "1", Status: "queued"}},
		jobsStarted: make(chan struct{}, 2),
		jobsGates:   []chan struct{}{release},
	}
	d, _ := newTestDashboard(api)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() { defer wg.Done(); d.Mount(ctx) }()
	<-api.jobsStarted

	wg.Add(1)
	go func() { defer wg.Done(); d.Mount(ctx) }()
	// Give the second Mount time to join the in-flight fetch.
	time.Sleep(50 * time.Millisecond)

	close(release)
	wg.Wait()

	if n := api.count("jobs"); n != 1 {
		t.Errorf("GetJobs calls = %d, want 1", n)
	}
	if len(d.Jobs()) != 1 {
		t.Errorf("jobs = %v", d.Jobs())
	}
}

func TestUploadDuringMountFetchesFreshJobs(t *testing.T) {
	tests := []struct {
		name       string
		staleFirst bool
	}{
		{"mount answers after reload", false},
		{"mount answers before reload", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mountGate, reloadGate := make(chan struct{}), make(chan struct{})
			api := &fakeAPI{
				jobsStarted: make(chan struct{}, 2),
				jobsGates:   []chan struct{}{mountGate, reloadGate},
			}
			d, _ := newTestDashboard(api)

			mounted := make(chan struct{})
			go func() { d.Mount(ctx); close(mounted) }()
			// The mount's request is issued before the upload exists.
			<-api.jobsStarted

			d.Select(testPNG)
			uploaded := make(chan UploadOutcome, 1)
			go func() { uploaded <- d.Upload(ctx) }()
			<-api.jobsStarted

			var outcome UploadOutcome
			if tt.staleFirst {
				close(mountGate)
				<-mounted
				close(reloadGate)
				outcome = <-uploaded
			} else {
				close(reloadGate)
				outcome = <-uploaded
				close(mountGate)
				<-mounted
			}

			if outcome != UploadDone {
				t.Fatalf("outcome = %v, want done", outcome)
			}
			want := []string{"jobs", "upload", "jobs"}
			if calls := api.Calls(); strings.Join(calls, ",") != strings.Join(want, ",") {
				t.Errorf("calls = %v, want %v", calls, want)
			}
			jobs := d.Jobs()
			if len(jobs) != 1 || jobs[0].ID != "new" {
				t.Errorf("jobs = %v, want the uploaded job", jobs)
			}
		})
	}
}

func TestMountCallerCancelDoesNotFailSharedFetch(t *testing.T) {
	release := make(chan struct{})
	api := &fakeAPI{
		jobs:        []imageapi.Job{{ID: "1", Status: "queued"}},
		jobsStarted: make(chan struct{}, 1),
		jobsGates:   []chan struct{}{release},
	}
	d, _ := newTestDashboard(api)

	firstCtx, cancel := context.WithCancel(ctx)
	first := make(chan struct{})
	go func() { d.Mount(firstCtx); close(first) }()
	<-api.jobsStarted

	second := make(chan struct{})
	go func() { d.Mount(ctx); close(second) }()
	time.Sleep(50 * time.Millisecond)

	cancel()
	select {
	case <-first:
	case <-time.After(time.Second):
		t.Fatal("cancelled Mount did not return")
	}

	close(release)
	<-second

	if d.Error() != "" {
		t.Errorf("error = %q, want none", d.Error())
	}
	if jobs := d.Jobs(); len(jobs) != 1 || jobs[0].ID != "1" {
		t.Errorf("jobs = %v, want the shared fetch result", jobs)
	}
}

func TestRenderJobArtifacts(t *testing.T) {
	api := &fakeAPI{jobs: []imageapi.Job{
		{ID: "1", Status: "queued"},
		{ID: "2", Status: "succeeded", OriginalURL: "http://x/o.png", OutputURL: "http://x/d.png", CSVURL: "http://x/a.csv"},
	}}
	d, _ := newTestDashboard(api)
	d.Mount(ctx)

	out := render(t, d)
	cards := strings.Split(out, "Job ID: ")[1:]
	if len(cards) != 2 {
		t.Fatalf("cards = %d, want 2:\n%s", len(cards), out)
	}

	first := cards[0]
	if !strings.HasPrefix(first, "1\nStatus: queued\n") {
		t.Errorf("first card = %q", first)
	}
	for _, label := range []string{"Original:", "Detected:", "Download CSV:"} {
		if strings.Contains(first, label) {
			t.Errorf("first card has %q without a URL: %q", label, first)
		}
	}

	second := cards[1]
	for _, line := range []string{
		"Original: http://x/o.png\n",
		"Detected: http://x/d.png\n",
		"Download CSV: http://x/a.csv\n",
	} {
		if !strings.Contains(second, line) {
			t.Errorf("second card missing %q: %q", line, second)
		}
	}
	if strings.Contains(out, EmptyJobsMessage) {
		t.Error("empty message shown with jobs present")
	}
}

func TestUploadOutcomeString(t *testing.T) {
	for o, want := range map[UploadOutcome]string{
		UploadSkipped: "skipped",
		UploadBusy:    "busy",
		UploadDone:    "done",
		UploadFailed:  "failed",
		9:             "UploadOutcome(9)",
	} {
		if o.String() != want {
			t.Errorf("%d.String() = %q, want %q", int(o), o.String(), want)
		}
	}
}
