package imageapi

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// StatusUnknown is used for job records the backend sent without a status.
const StatusUnknown = "unknown"

// Credentials is the body of /signup and /login.
type Credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Job is a backend-tracked unit of image processing work. Empty URL fields
// mean the artifact is not available.
type Job struct {
	ID          string `json:"id"`
	Status      string `json:"status"`
	OriginalURL string `json:"original_url,omitempty"`
	OutputURL   string `json:"output_url,omitempty"`
	CSVURL      string `json:"csv_url,omitempty"`
}

func (j Job) HasOriginal() bool { return j.OriginalURL != "" }
func (j Job) HasOutput() bool   { return j.OutputURL != "" }
func (j Job) HasCSV() bool      { return j.CSVURL != "" }

// UnmarshalJSON accepts numeric or string ids, defaults a missing status and
// drops blank URLs. A record without an id is rejected.
func (j *Job) UnmarshalJSON(data []byte) error {
	var wire struct {
		ID          json.RawMessage `json:"id"`
		Status      *string         `json:"status"`
		OriginalURL *string         `json:"original_url"`
		OutputURL   *string         `json:"output_url"`
		CSVURL      *string         `json:"csv_url"`
	}
	if err := json.Unmarshal(data, &wire); err != nil {
		return err
	}

	id, err := parseID(wire.ID)
	if err != nil {
		return fmt.Errorf("job id: %w", err)
	}

	*j = Job{
		ID:          id,
		Status:      StatusUnknown,
		OriginalURL: optional(wire.OriginalURL),
		OutputURL:   optional(wire.OutputURL),
		CSVURL:      optional(wire.CSVURL),
	}
	if s := optional(wire.Status); s != "" {
		j.Status = s
	}
	return nil
}

// UploadResult is the job metadata returned by /upload.
type UploadResult struct {
	JobID string
	// Raw is the full response body.
	Raw json.RawMessage
}

func (r *UploadResult) UnmarshalJSON(data []byte) error {
	var wire struct {
		JobID json.RawMessage `json:"job_id"`
	}
	if err := json.Unmarshal(data, &wire); err != nil {
		return err
	}
	r.Raw = append(json.RawMessage(nil), data...)
	r.JobID = ""
	if len(wire.JobID) > 0 && !bytes.Equal(wire.JobID, []byte("null")) {
		id, err := parseID(wire.JobID)
		if err != nil {
			return fmt.Errorf("job_id: %w", err)
		}
		r.JobID = id
	}
	return nil
}

var errMissingID = errors.New("missing")

func parseID(raw json.RawMessage) (string, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return "", errMissingID
	}
	if raw[0] == '"' {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return "", err
		}
		if s = strings.TrimSpace(s); s == "" {
			return "", errMissingID
		}
		return s, nil
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err != nil {
		return "", fmt.Errorf("want number or string, got %s", raw)
	}
	return n.String(), nil
}

func optional(s *string) string {
	if s == nil {
		return ""
	}
	return strings.TrimSpace(*s)
}
