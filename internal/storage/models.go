package storage

import (
	"errors"
	"time"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("not found")

// Session is the bearer token held for one API origin.
type Session struct {
	Origin    string
	Token     string
	UpdatedAt time.Time
}
