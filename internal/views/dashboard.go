package views

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"golang.org/x/sync/singleflight"

	"github.com/aiimage/imgdash/internal/imageapi"
)

const (
	ReauthMessage       = "Please login again"
	UploadFailedMessage = "Upload failed"
	EmptyJobsMessage    = "No jobs yet. Upload an image."
)

type JobService interface {
	UploadImage(ctx context.Context, f imageapi.UploadFile) (imageapi.UploadResult, error)
	GetJobs(ctx context.Context) ([]imageapi.Job, error)
}

// Alerter shows a blocking message to the user.
type Alerter interface {
	Alert(msg string)
}

type AlertFunc func(msg string)

func (f AlertFunc) Alert(msg string) { f(msg) }

// UploadOutcome is the result of DashboardView.Upload.
type UploadOutcome int

const (
	UploadSkipped UploadOutcome = iota // nothing selected
	UploadBusy                         // another upload is running
	UploadDone
	UploadFailed
)

func (o UploadOutcome) String() string {
	switch o {
	case UploadSkipped:
		return "skipped"
	case UploadBusy:
		return "busy"
	case UploadDone:
		return "done"
	case UploadFailed:
		return "failed"
	}
	return fmt.Sprintf("UploadOutcome(%d)", int(o))
}

// DashboardView lists the user's jobs and uploads one selected file at a time.
type DashboardView struct {
	api    JobService
	alert  Alerter
	logger *slog.Logger

	// mounts coalesces overlapping Mount calls into one fetch.
	mounts singleflight.Group

	mu         sync.Mutex
	selected   *imageapi.UploadFile
	jobs       []imageapi.Job
	loading    bool
	err        string
	lastUpload *imageapi.UploadResult
	// issued numbers fetches as they start; applied is the newest one whose
	// result is shown.
	issued  uint64
	applied uint64
}

func NewDashboardView(api JobService, alert Alerter, logger *slog.Logger) *DashboardView {
	return &DashboardView{api: api, alert: alert, logger: logger, jobs: []imageapi.Job{}}
}

// Mount fetches the job list. On failure the error message is set and the
// current list is kept.
//
// Mounts that overlap share one request. The request is not tied to any
// one caller's context; a caller whose context ends stops waiting and
// leaves the shared fetch to finish for the others.
func (d *DashboardView) Mount(ctx context.Context) {
	detached := context.WithoutCancel(ctx)
	ch := d.mounts.DoChan("jobs", func() (any, error) {
		return nil, d.fetchJobs(detached)
	})
	select {
	case res := <-ch:
		if res.Shared {
			d.logger.Debug("joined in-flight job fetch")
		}
	case <-ctx.Done():
		d.logger.Debug("stopped waiting for jobs", "error", ctx.Err())
	}
}

// fetchJobs issues one GetJobs. Its result replaces the shown list unless a
// fetch issued later has already been applied.
func (d *DashboardView) fetchJobs(ctx context.Context) error {
	d.mu.Lock()
	d.issued++
	seq := d.issued
	d.mu.Unlock()

	jobs, err := d.api.GetJobs(ctx)

	d.mu.Lock()
	defer d.mu.Unlock()
	if err != nil {
		d.logger.Info("loading jobs failed", "error", err)
		d.err = ReauthMessage
		return err
	}
	if seq < d.applied {
		d.logger.Debug("dropping stale job list", "fetch", seq, "shown", d.applied)
		return nil
	}
	d.applied = seq
	d.jobs = append([]imageapi.Job(nil), jobs...)
	d.logger.Debug("jobs loaded", "count", len(jobs), "fetch", seq)
	return nil
}

// Select replaces the selected file. It reports whether the file matches
// the accepted image types; a mismatch is only a warning.
func (d *DashboardView) Select(f imageapi.UploadFile) bool {
	ok := f.Accepted()
	if !ok {
		d.logger.Debug("selection outside accepted types", "file", f.Name, "type", f.ContentType())
	}
	d.mu.Lock()
	d.selected = &f
	d.mu.Unlock()
	return ok
}

// Upload sends the selected file. On success the job list is reloaded and
// the selection cleared; on failure the alert is raised and the selection
// kept. Loading is reset in every case.
func (d *DashboardView) Upload(ctx context.Context) UploadOutcome {
	d.mu.Lock()
	if d.selected == nil {
		d.mu.Unlock()
		return UploadSkipped
	}
	if d.loading {
		d.mu.Unlock()
		return UploadBusy
	}
	f := *d.selected
	d.loading = true
	d.mu.Unlock()

	defer func() {
		d.mu.Lock()
		d.loading = false
		d.mu.Unlock()
	}()

	res, err := d.api.UploadImage(ctx, f)
	if err != nil {
		d.logger.Info("upload failed", "file", f.Name, "error", err)
		d.alert.Alert(UploadFailedMessage)
		return UploadFailed
	}

	// Always a fresh request: a fetch already in flight predates the upload.
	d.fetchJobs(ctx)

	d.mu.Lock()
	d.selected = nil
	d.lastUpload = &res
	d.mu.Unlock()
	return UploadDone
}

// Jobs returns the current job list in backend order.
func (d *DashboardView) Jobs() []imageapi.Job {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]imageapi.Job{}, d.jobs...)
}

// Selected returns the selected file, if any.
func (d *DashboardView) Selected() (imageapi.UploadFile, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.selected == nil {
		return imageapi.UploadFile{}, false
	}
	return *d.selected, true
}

func (d *DashboardView) Loading() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.loading
}

// Error returns the page-level error message, or "".
func (d *DashboardView) Error() string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.err
}

// LastUpload returns the result of the most recent successful upload.
func (d *DashboardView) LastUpload() (imageapi.UploadResult, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.lastUpload == nil {
		return imageapi.UploadResult{}, false
	}
	return *d.lastUpload, true
}

// Render writes the dashboard as plain text.
func (d *DashboardView) Render(w io.Writer) error {
	d.mu.Lock()
	jobs := append([]imageapi.Job(nil), d.jobs...)
	loading, errMsg := d.loading, d.err
	var selected string
	if d.selected != nil {
		selected = d.selected.Name
	}
	d.mu.Unlock()

	var b bytes.Buffer
	b.WriteString("AI Image Dashboard\n\n")

	switch {
	case loading:
		b.WriteString("Uploading...\n")
	case selected != "":
		fmt.Fprintf(&b, "Selected: %s\n", selected)
	}
	if errMsg != "" {
		fmt.Fprintf(&b, "Error: %s\n", errMsg)
	}

	b.WriteString("\nYour Jobs\n")
	if len(jobs) == 0 {
		b.WriteString(EmptyJobsMessage + "\n")
	}
	for _, j := range jobs {
		b.WriteString("\n")
		renderJob(&b, j)
	}

	_, err := w.Write(b.Bytes())
	return err
}

func renderJob(b *bytes.Buffer, j imageapi.Job) {
	fmt.Fprintf(b, "Job ID: %s\n", j.ID)
	fmt.Fprintf(b, "Status: %s\n", j.Status)
	if j.HasOriginal() {
		fmt.Fprintf(b, "Original: %s\n", j.OriginalURL)
	}
	if j.HasOutput() {
		fmt.Fprintf(b, "Detected: %s\n", j.OutputURL)
	}
	if j.HasCSV() {
		fmt.Fprintf(b, "Download CSV: %s\n", j.CSVURL)
	}
}
