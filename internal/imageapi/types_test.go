package imageapi

import (
	"encoding/json"
	"errors"
	"testing"
)

func TestJobUnmarshal(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want Job
	}{
		{
			name: "numeric id",
			in:   `{"id":12,"status":"queued"}`,
			want: Job{ID: "12", Status: "queued"},
		},
		{
			name: "string id with artifacts",
			in:   `{"id":"job-1","status":"succeeded","original_url":"http://x/o.png","output_url":"http://x/d.png","csv_url":"http://x/a.csv"}`,
			want: Job{ID: "job-1", Status: "succeeded", OriginalURL: "http://x/o.png", OutputURL: "http://x/d.png", CSVURL: "http://x/a.csv"},
		},
		{
			name: "missing status",
			in:   `{"id":1}`,
			want: Job{ID: "1", Status: StatusUnknown},
		},
		{
			name: "null and blank urls are absent",
			in:   `{"id":1,"status":"queued","original_url":null,"csv_url":"  "}`,
			want: Job{ID: "1", Status: "queued"},
		},
		{
			name: "unknown fields ignored",
			in:   `{"id":1,"status":"queued","user_id":4,"model_name":"yolov8n"}`,
			want: Job{ID: "1", Status: "queued"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got Job
			if err := json.Unmarshal([]byte(tt.in), &got); err != nil {
				t.Fatalf("Unmarshal: %v", err)
			}
			if got != tt.want {
				t.Errorf("got %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestJobUnmarshalRejects(t *testing.T) {
	for _, in := range []string{
		`{"status":"queued"}`,
		`{"id":null}`,
		`{"id":""}`,
		`{"id":true}`,
		`{"id":{"x":1}}`,
	} {
		var j Job
		if err := json.Unmarshal([]byte(in), &j); err == nil {
			t.Errorf("Unmarshal(%s) succeeded, want error", in)
		}
	}
}

func TestJobArtifacts(t *testing.T) {
	j := Job{ID: "1", CSVURL: "http://x/a.csv"}
	if j.HasOriginal() || j.HasOutput() {
		t.Error("unexpected artifacts")
	}
	if !j.HasCSV() {
		t.Error("HasCSV = false")
	}
}

func TestUploadResultUnmarshal(t *testing.T) {
	var r UploadResult
	if err := json.Unmarshal([]byte(`{"job_id":42}`), &r); err != nil {
		t.Fatal(err)
	}
	if r.JobID != "42" {
		t.Errorf("JobID = %q", r.JobID)
	}

	var empty UploadResult
	if err := json.Unmarshal([]byte(`{"message":"ok"}`), &empty); err != nil {
		t.Fatal(err)
	}
	if empty.JobID != "" || string(empty.Raw) != `{"message":"ok"}` {
		t.Errorf("got %+v", empty)
	}
}

func TestRequestErrorMessage(t *testing.T) {
	e := &RequestError{Op: "list jobs", StatusCode: 401, Body: `{"detail":"Invalid token"}`}
	want := `list jobs failed: server returned 401: {"detail":"Invalid token"}`
	if e.Error() != want {
		t.Errorf("Error() = %q, want %q", e.Error(), want)
	}
	if !errors.Is(e, ErrRequest) {
		t.Error("errors.Is(e, ErrRequest) = false")
	}

	cause := errors.New("dial tcp: refused")
	wrapped := &RequestError{Op: "login", Err: cause}
	if !errors.Is(wrapped, cause) {
		t.Error("cause not unwrapped")
	}
}

func TestUploadFileAccepted(t *testing.T) {
	png := UploadFile{Name: "a.png", Data: []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR")}
	jpg := UploadFile{Name: "a.jpg", Data: []byte("\xff\xd8\xff\xe0\x00\x10JFIF\x00")}
	txt := UploadFile{Name: "a.png", Data: []byte("just text")}

	if !png.Accepted() || png.ContentType() != "image/png" {
		t.Errorf("png: accepted=%v type=%q", png.Accepted(), png.ContentType())
	}
	if !jpg.Accepted() || jpg.ContentType() != "image/jpeg" {
		t.Errorf("jpg: accepted=%v type=%q", jpg.Accepted(), jpg.ContentType())
	}
	if txt.Accepted() {
		t.Error("text file accepted by name alone")
	}
}
