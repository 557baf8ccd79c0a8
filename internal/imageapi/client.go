// Package imageapi is the HTTP client for the image processing backend.
package imageapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/aiimage/imgdash/internal/session"
)

const maxErrorBody = 512

// Client calls the four backend endpoints. It never retries.
type Client struct {
	baseURL    string
	session    session.Session
	httpClient *http.Client
	logger     *slog.Logger
	requestID  func() string
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithTimeout bounds every request. Zero leaves requests unbounded.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		hc := *c.httpClient
		hc.Timeout = d
		c.httpClient = &hc
	}
}

// WithLogger sets the logger used for per-request debug lines.
func WithLogger(l *slog.Logger) Option {
	return func(c *Client) { c.logger = l }
}

// New creates a client for baseURL that authenticates with sess.
func New(baseURL string, sess session.Session, opts ...Option) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		session:    sess,
		httpClient: &http.Client{},
		logger:     slog.Default(),
		requestID:  uuid.NewString,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Signup registers a new account.
func (c *Client) Signup(ctx context.Context, email, password string) error {
	resp, err := c.postJSON(ctx, "signup", "/signup", Credentials{Email: email, Password: password})
	if err != nil {
		return err
	}
	drain(resp)
	return nil
}

// Login exchanges credentials for a token and stores it in the session,
// replacing any previous token. Nothing is stored on failure.
func (c *Client) Login(ctx context.Context, email, password string) error {
	resp, err := c.postJSON(ctx, "login", "/login", Credentials{Email: email, Password: password})
	if err != nil {
		return err
	}

	var body struct {
		AccessToken *string `json:"access_token"`
	}
	if err := decodeJSON(resp, "login", &body); err != nil {
		return err
	}

	token := ""
	if body.AccessToken != nil {
		token = *body.AccessToken
	} else {
		c.logger.Warn("login response has no access_token")
	}
	return c.session.SetToken(token)
}

// UploadImage sends f as multipart field "file" and returns the created job.
func (c *Client) UploadImage(ctx context.Context, f UploadFile) (UploadResult, error) {
	body, contentType, err := multipartBody(f)
	if err != nil {
		return UploadResult{}, &RequestError{Op: "upload", Err: err}
	}

	resp, err := c.do(ctx, "upload", http.MethodPost, "/upload", body, contentType, true)
	if err != nil {
		return UploadResult{}, err
	}

	var result UploadResult
	if err := decodeJSON(resp, "upload", &result); err != nil {
		return UploadResult{}, err
	}
	return result, nil
}

// GetJobs lists the caller's jobs in backend order.
func (c *Client) GetJobs(ctx context.Context) ([]Job, error) {
	resp, err := c.do(ctx, "list jobs", http.MethodGet, "/jobs", nil, "", true)
	if err != nil {
		return nil, err
	}

	var jobs []Job
	if err := decodeJSON(resp, "list jobs", &jobs); err != nil {
		return nil, err
	}
	if jobs == nil {
		jobs = []Job{}
	}
	return jobs, nil
}

func (c *Client) postJSON(ctx context.Context, op, path string, v any) (*http.Response, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, &RequestError{Op: op, Err: fmt.Errorf("marshalling request: %w", err)}
	}
	return c.do(ctx, op, http.MethodPost, path, bytes.NewReader(data), "application/json", false)
}

// do sends one request. Any response outside 2xx is closed and turned into
// a *RequestError.
func (c *Client) do(ctx context.Context, op, method, path string, body io.Reader, contentType string, auth bool) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, &RequestError{Op: op, Err: err}
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if auth {
		// The token is read per request so a new login applies immediately.
		token, err := c.session.Token()
		if err != nil {
			return nil, &RequestError{Op: op, Err: err}
		}
		req.Header.Set("Authorization", "Bearer "+token)
	}
	reqID := c.requestID()
	req.Header.Set("X-Request-ID", reqID)

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Debug("request failed", "op", op, "request_id", reqID, "error", err)
		return nil, &RequestError{Op: op, Err: fmt.Errorf("server not reachable: %w", err)}
	}
	c.logger.Debug("request done",
		"op", op,
		"method", method,
		"path", path,
		"status", resp.StatusCode,
		"request_id", reqID,
		"duration", time.Since(start),
	)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		defer resp.Body.Close()
		data, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return nil, &RequestError{
			Op:         op,
			StatusCode: resp.StatusCode,
			Body:       strings.TrimSpace(string(data)),
		}
	}
	return resp, nil
}

func decodeJSON(resp *http.Response, op string, v any) error {
	defer resp.Body.Close()
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		return &RequestError{Op: op, StatusCode: resp.StatusCode, Err: fmt.Errorf("decoding response: %w", err)}
	}
	return nil
}

func drain(resp *http.Response) {
	io.Copy(io.Discard, resp.Body)
	resp.Body.Close()
}
