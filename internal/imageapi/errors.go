package imageapi

import (
	"errors"
	"fmt"
)

// ErrRequest matches every *RequestError via errors.Is.
var ErrRequest = errors.New("request failed")

// RequestError is returned for every failed call: non-2xx responses,
// transport failures, and undecodable response bodies alike.
type RequestError struct {
	Op         string // "signup", "login", "upload", "list jobs"
	StatusCode int    // 0 when no response was received
	Body       string // response body, truncated
	Err        error
}

func (e *RequestError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s failed: %v", e.Op, e.Err)
	}
	msg := fmt.Sprintf("%s failed: server returned %d", e.Op, e.StatusCode)
	if e.Body != "" {
		msg += ": " + e.Body
	}
	return msg
}

func (e *RequestError) Unwrap() error { return e.Err }

func (e *RequestError) Is(target error) bool { return target == ErrRequest }
