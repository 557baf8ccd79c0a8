package imageapi

import (
	"bytes"
	"fmt"
	"mime/multipart"
	"net/textproto"
	"os"
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"
)

// AcceptedImageTypes is the advisory filter offered when picking a file.
// The backend, not the client, decides what it accepts.
var AcceptedImageTypes = []string{"image/png", "image/jpeg"}

// UploadFile is a single file selected for upload.
type UploadFile struct {
	Name string
	Data []byte
}

// OpenUploadFile reads the file at path.
func OpenUploadFile(path string) (UploadFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return UploadFile{}, fmt.Errorf("reading %s: %w", path, err)
	}
	return UploadFile{Name: filepath.Base(path), Data: data}, nil
}

// ContentType sniffs the MIME type from the file content.
func (f UploadFile) ContentType() string {
	return mimetype.Detect(f.Data).String()
}

// Accepted reports whether the file matches AcceptedImageTypes.
func (f UploadFile) Accepted() bool {
	m := mimetype.Detect(f.Data)
	for _, t := range AcceptedImageTypes {
		if m.Is(t) {
			return true
		}
	}
	return false
}

var quoteEscaper = strings.NewReplacer("\\", "\\\\", `"`, "\\\"")

// multipartBody encodes f under the form field "file". The part carries the
// sniffed content type since the backend checks it.
func multipartBody(f UploadFile) (*bytes.Buffer, string, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename="%s"`, quoteEscaper.Replace(f.Name)))
	h.Set("Content-Type", f.ContentType())

	part, err := w.CreatePart(h)
	if err != nil {
		return nil, "", fmt.Errorf("creating form part: %w", err)
	}
	if _, err := part.Write(f.Data); err != nil {
		return nil, "", fmt.Errorf("writing form part: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, "", fmt.Errorf("closing multipart body: %w", err)
	}
	return &buf, w.FormDataContentType(), nil
}
