// Package session holds the bearer token an API client authenticates with.
//
// A Session is created once per process and handed to the API client at
// construction; nothing else reads or writes the token.
package session

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"sync"

	"github.com/aiimage/imgdash/internal/storage"
)

// Session reads and replaces the current bearer token.
type Session interface {
	// Token returns the stored token, or "" when none has been stored.
	Token() (string, error)
	// SetToken replaces the stored token.
	SetToken(token string) error
}

// TokenStore is the durable storage a Persistent session writes through to.
type TokenStore interface {
	GetSessionToken(origin string) (string, error)
	SaveSessionToken(origin, token string) error
	DeleteSession(origin string) error
}

// Persistent is a Session backed by a TokenStore and scoped to one API origin.
type Persistent struct {
	store  TokenStore
	origin string
}

// NewPersistent returns a session for the origin of baseURL.
func NewPersistent(store TokenStore, baseURL string) (*Persistent, error) {
	origin, err := Origin(baseURL)
	if err != nil {
		return nil, err
	}
	return &Persistent{store: store, origin: origin}, nil
}

func (p *Persistent) Origin() string { return p.origin }

func (p *Persistent) Token() (string, error) {
	tok, err := p.store.GetSessionToken(p.origin)
	if errors.Is(err, storage.ErrNotFound) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("reading session token: %w", err)
	}
	return tok, nil
}

func (p *Persistent) SetToken(token string) error {
	if err := p.store.SaveSessionToken(p.origin, token); err != nil {
		return fmt.Errorf("saving session token: %w", err)
	}
	return nil
}

// Clear removes the stored token. Clearing an empty session is not an error.
func (p *Persistent) Clear() error {
	err := p.store.DeleteSession(p.origin)
	if err != nil && !errors.Is(err, storage.ErrNotFound) {
		return fmt.Errorf("clearing session token: %w", err)
	}
	return nil
}

// Memory is a process-local Session.
type Memory struct {
	mu    sync.RWMutex
	token string
}

func NewMemory(token string) *Memory {
	return &Memory{token: token}
}

func (m *Memory) Token() (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.token, nil
}

func (m *Memory) SetToken(token string) error {
	m.mu.Lock()
	m.token = token
	m.mu.Unlock()
	return nil
}

// Origin reduces a base URL to scheme://host[:port], lower-cased, with the
// default port for the scheme dropped.
func Origin(baseURL string) (string, error) {
	u, err := url.Parse(strings.TrimSpace(baseURL))
	if err != nil {
		return "", fmt.Errorf("parsing base URL: %w", err)
	}
	if u.Scheme == "" || u.Host == "" {
		return "", fmt.Errorf("base URL %q has no scheme or host", baseURL)
	}
	scheme := strings.ToLower(u.Scheme)
	host := strings.ToLower(u.Hostname())
	port := u.Port()
	if (scheme == "http" && port == "80") || (scheme == "https" && port == "443") {
		port = ""
	}
	if strings.Contains(host, ":") {
		host = "[" + host + "]"
	}
	if port != "" {
		return scheme + "://" + host + ":" + port, nil
	}
	return scheme + "://" + host, nil
}
