// Package apitest runs an in-memory stand-in for the image backend so
// client and view code can be exercised end to end.
package apitest

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

// Request is one request as seen by the server.
type Request struct {
	Method    string
	Path      string
	Auth      string
	RequestID string
	Body      []byte

	// Set for /upload requests that carried a "file" part.
	Filename        string
	FileContentType string
}

type response struct {
	status int
	body   string
}

// Server is a fake backend. Routes are keyed as "METHOD /path", e.g. "GET /jobs".
type Server struct {
	*httptest.Server

	mu        sync.Mutex
	users     map[string]string           // email -> password
	tokens    map[string]string           // token -> email
	jobs      map[string][]map[string]any // email -> job records
	nextJobID int
	requests  []Request
	failNext  map[string][]int
	overrides map[string]response
	gates     map[string]chan struct{}
}

// New starts a server that is closed when t finishes.
func New(t testing.TB) *Server {
	t.Helper()
	s := &Server{
		users:     make(map[string]string),
		tokens:    make(map[string]string),
		jobs:      make(map[string][]map[string]any),
		nextJobID: 1,
		failNext:  make(map[string][]int),
		overrides: make(map[string]response),
		gates:     make(map[string]chan struct{}),
	}

	r := chi.NewRouter()
	r.Use(s.record)
	r.Post("/signup", s.handleSignup)
	r.Post("/login", s.handleLogin)
	r.Group(func(r chi.Router) {
		r.Use(s.requireToken)
		r.Post("/upload", s.handleUpload)
		r.Get("/jobs", s.handleJobs)
	})

	s.Server = httptest.NewServer(r)
	t.Cleanup(s.Close)
	return s
}

// AddUser registers an account directly.
func (s *Server) AddUser(email, password string) {
	s.mu.Lock()
	s.users[email] = password
	s.mu.Unlock()
}

// IssueToken returns a valid token for email without going through /login.
func (s *Server) IssueToken(email string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	tok := uuid.NewString()
	s.tokens[tok] = email
	return tok
}

// SetJobs replaces the job records returned to email.
func (s *Server) SetJobs(email string, jobs ...map[string]any) {
	s.mu.Lock()
	s.jobs[email] = jobs
	s.mu.Unlock()
}

// FailNext makes the next request to route fail with status.
func (s *Server) FailNext(route string, status int) {
	s.mu.Lock()
	s.failNext[route] = append(s.failNext[route], status)
	s.mu.Unlock()
}

// Respond makes every request to route return status and body verbatim.
func (s *Server) Respond(route string, status int, body string) {
	s.mu.Lock()
	s.overrides[route] = response{status: status, body: body}
	s.mu.Unlock()
}

// Gate blocks requests to route until the returned function is called.
func (s *Server) Gate(route string) (release func()) {
	ch := make(chan struct{})
	s.mu.Lock()
	s.gates[route] = ch
	s.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			delete(s.gates, route)
			s.mu.Unlock()
			close(ch)
		})
	}
}

// Requests returns a copy of every request received so far.
func (s *Server) Requests() []Request {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Request(nil), s.requests...)
}

// Count returns how many requests hit route.
func (s *Server) Count(route string) int {
	n := 0
	for _, r := range s.Requests() {
		if r.Method+" "+r.Path == route {
			n++
		}
	}
	return n
}

// record logs the request, then applies gates, one-shot failures and
// overrides before the real handler runs.
func (s *Server) record(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		r.Body = io.NopCloser(strings.NewReader(string(body)))

		req := Request{
			Method:    r.Method,
			Path:      r.URL.Path,
			Auth:      r.Header.Get("Authorization"),
			RequestID: r.Header.Get("X-Request-ID"),
			Body:      body,
		}
		route := r.Method + " " + r.URL.Path
		if route == "POST /upload" {
			if err := r.ParseMultipartForm(32 << 20); err == nil {
				if fhs := r.MultipartForm.File["file"]; len(fhs) > 0 {
					req.Filename = fhs[0].Filename
					req.FileContentType = fhs[0].Header.Get("Content-Type")
				}
			}
		}

		s.mu.Lock()
		s.requests = append(s.requests, req)
		gate := s.gates[route]
		var fail int
		if q := s.failNext[route]; len(q) > 0 {
			fail, s.failNext[route] = q[0], q[1:]
		}
		override, hasOverride := s.overrides[route]
		s.mu.Unlock()

		if gate != nil {
			select {
			case <-gate:
			case <-r.Context().Done():
				return
			}
		}
		if fail != 0 {
			writeDetail(w, fail, http.StatusText(fail))
			return
		}
		if hasOverride {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(override.status)
			io.WriteString(w, override.body)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) requireToken(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		tok, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
		s.mu.Lock()
		email, known := s.tokens[tok]
		s.mu.Unlock()
		if !ok || !known {
			writeDetail(w, http.StatusUnauthorized, "Invalid token")
			return
		}
		next.ServeHTTP(w, r.WithContext(withEmail(r.Context(), email)))
	})
}

type credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func decodeCredentials(w http.ResponseWriter, r *http.Request) (credentials, bool) {
	var c credentials
	if err := json.NewDecoder(r.Body).Decode(&c); err != nil || c.Email == "" || c.Password == "" {
		writeDetail(w, http.StatusUnprocessableEntity, "email and password are required")
		return credentials{}, false
	}
	return c, true
}

func (s *Server) handleSignup(w http.ResponseWriter, r *http.Request) {
	c, ok := decodeCredentials(w, r)
	if !ok {
		return
	}
	s.mu.Lock()
	_, exists := s.users[c.Email]
	if !exists {
		s.users[c.Email] = c.Password
	}
	s.mu.Unlock()

	if exists {
		writeDetail(w, http.StatusBadRequest, "Email exists")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "Created"})
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	c, ok := decodeCredentials(w, r)
	if !ok {
		return
	}
	s.mu.Lock()
	pw, exists := s.users[c.Email]
	s.mu.Unlock()

	if !exists || pw != c.Password {
		writeDetail(w, http.StatusBadRequest, "Invalid credentials")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"access_token": s.IssueToken(c.Email)})
}

func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	f, fh, err := r.FormFile("file")
	if err != nil {
		writeDetail(w, http.StatusUnprocessableEntity, "file is required")
		return
	}
	f.Close()

	ct := fh.Header.Get("Content-Type")
	if ct != "image/jpeg" && ct != "image/png" {
		writeDetail(w, http.StatusBadRequest, "Only JPG/PNG allowed")
		return
	}

	email := emailFrom(r.Context())
	s.mu.Lock()
	id := s.nextJobID
	s.nextJobID++
	s.jobs[email] = append(s.jobs[email], map[string]any{
		"id":           id,
		"status":       "queued",
		"original_url": fmt.Sprintf("%s/files/%d/%s", s.URL, id, fh.Filename),
	})
	s.mu.Unlock()

	writeJSON(w, http.StatusOK, map[string]int{"job_id": id})
}

func (s *Server) handleJobs(w http.ResponseWriter, r *http.Request) {
	email := emailFrom(r.Context())
	s.mu.Lock()
	jobs := append([]map[string]any{}, s.jobs[email]...)
	s.mu.Unlock()
	writeJSON(w, http.StatusOK, jobs)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeDetail(w http.ResponseWriter, status int, detail string) {
	writeJSON(w, status, map[string]string{"detail": detail})
}
