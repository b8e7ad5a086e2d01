// Package httpdoc is a remote document store client for the cbudget document
// server: an anonymous token handshake, whole-document PUT writes and a
// Server-Sent Events change feed.
package httpdoc

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/theirongolddev/cbudget/internal/model"
	"github.com/theirongolddev/cbudget/internal/remote"
)

const (
	requestTimeout = 10 * time.Second
	maxBodySize    = 8 << 20
	apiKeyHeader   = "X-API-Key"
)

var (
	// ErrUnauthorized indicates the key or token was rejected.
	ErrUnauthorized = errors.New("httpdoc: unauthorized")
	// ErrNotConnected indicates Write or Subscribe ran before Connect.
	ErrNotConnected = errors.New("httpdoc: not connected")
	// ErrStreamClosed indicates the server ended the change feed.
	ErrStreamClosed = errors.New("httpdoc: stream closed")
)

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient sets the HTTP client. Its timeout must be zero so streams
// can stay open; requests are bounded per call instead.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Client) { c.log = l }
}

// WithBackoff sets the reconnect delay bounds for the change feed.
func WithBackoff(minDelay, maxDelay time.Duration) Option {
	return func(c *Client) {
		c.minBackoff = minDelay
		c.maxBackoff = maxDelay
	}
}

// Client talks to one document on a document server.
type Client struct {
	baseURL    string
	apiKey     string
	path       string
	http       *http.Client
	log        *slog.Logger
	minBackoff time.Duration
	maxBackoff time.Duration

	mu    sync.Mutex
	token string
}

var _ remote.DocumentStore = (*Client)(nil)

// New returns a client for the document at docPath on baseURL.
func New(baseURL, apiKey, docPath string, opts ...Option) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     strings.TrimSpace(apiKey),
		path:       strings.Trim(docPath, "/"),
		http:       &http.Client{},
		log:        slog.New(slog.DiscardHandler),
		minBackoff: time.Second,
		maxBackoff: 30 * time.Second,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Connect obtains an anonymous session token.
func (c *Client) Connect(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, requestTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/auth/anonymous", nil)
	if err != nil {
		return fmt.Errorf("httpdoc: creating request: %w", err)
	}
	if c.apiKey != "" {
		req.Header.Set(apiKeyHeader, c.apiKey)
	}

	body, err := c.do(req)
	if err != nil {
		return err
	}

	var auth struct {
		Token string `json:"token"`
		UID   string `json:"uid"`
	}
	if err := json.Unmarshal(body, &auth); err != nil {
		return fmt.Errorf("httpdoc: parsing auth response: %w", err)
	}
	if auth.Token == "" {
		return fmt.Errorf("httpdoc: empty token in auth response")
	}

	c.mu.Lock()
	c.token = auth.Token
	c.mu.Unlock()
	c.log.Debug("remote session acquired", "uid", auth.UID)
	return nil
}

// Write replaces the document.
func (c *Client) Write(ctx context.Context, projects []model.Project, updatedAt time.Time) error {
	token := c.currentToken()
	if token == "" {
		return ErrNotConnected
	}

	payload, err := json.Marshal(remote.NewDocument(projects, updatedAt))
	if err != nil {
		return fmt.Errorf("httpdoc: encoding document: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, requestTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPut, c.docURL("docs"), bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("httpdoc: creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)

	_, err = c.do(req)
	return err
}

// Fetch returns the current document. ok is false when none exists yet.
func (c *Client) Fetch(ctx context.Context) (doc remote.Document, ok bool, err error) {
	token := c.currentToken()
	if token == "" {
		return remote.Document{}, false, ErrNotConnected
	}

	ctx, cancel := context.WithTimeout(ctx, requestTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.docURL("docs"), nil)
	if err != nil {
		return remote.Document{}, false, fmt.Errorf("httpdoc: creating request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)

	body, err := c.do(req)
	var se *StatusError
	if errors.As(err, &se) && se.Code == http.StatusNotFound {
		return remote.Document{}, false, nil
	}
	if err != nil {
		return remote.Document{}, false, err
	}
	doc, err = remote.DecodeDocument(body)
	if err != nil {
		return remote.Document{}, false, err
	}
	return doc, true, nil
}

// Subscribe follows the change feed until the returned function is called,
// reconnecting with exponential backoff. Every stream failure is reported to
// onError before the next attempt. The returned function blocks until the
// feed goroutine has stopped, so it must not be called from a callback.
func (c *Client) Subscribe(onData func([]model.Project), onError func(error)) func() {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})

	go func() {
		defer close(done)
		delay := c.minBackoff
		for {
			delivered, err := c.stream(ctx, onData)
			if ctx.Err() != nil {
				return
			}
			if delivered {
				delay = c.minBackoff
			}
			c.log.Warn("change feed interrupted", "err", err, "retry_in", delay)
			onError(err)

			select {
			case <-ctx.Done():
				return
			case <-time.After(delay):
			}
			delay = min(delay*2, c.maxBackoff)

			if errors.Is(err, ErrUnauthorized) {
				if err := c.Connect(ctx); err != nil {
					c.log.Warn("re-authenticating", "err", err)
				}
			}
		}
	}()

	var once sync.Once
	return func() {
		once.Do(func() {
			cancel()
			<-done
		})
	}
}

// stream reads one connection of the change feed. delivered reports whether
// any snapshot arrived before it ended.
func (c *Client) stream(ctx context.Context, onData func([]model.Project)) (delivered bool, err error) {
	token := c.currentToken()
	if token == "" {
		return false, ErrNotConnected
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.docURL("stream"), nil)
	if err != nil {
		return false, fmt.Errorf("httpdoc: creating request: %w", err)
	}
	req.Header.Set("Accept", "text/event-stream")
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := c.http.Do(req)
	if err != nil {
		return false, fmt.Errorf("httpdoc: stream request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()
	if err := checkStatus(resp); err != nil {
		return false, err
	}

	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 64*1024), maxBodySize)

	var event string
	var data strings.Builder
	for scanner.Scan() {
		line := scanner.Text()
		switch {
		case line == "":
			if event == "snapshot" && data.Len() > 0 {
				doc, err := remote.DecodeDocument([]byte(data.String()))
				if err != nil {
					c.log.Warn("skipping undecodable snapshot", "err", err)
				} else {
					onData(doc.Projects())
					delivered = true
				}
			}
			event = ""
			data.Reset()
		case strings.HasPrefix(line, ":"):
			// comment / keep-alive
		case strings.HasPrefix(line, "event:"):
			event = strings.TrimSpace(strings.TrimPrefix(line, "event:"))
		case strings.HasPrefix(line, "data:"):
			if data.Len() > 0 {
				data.WriteByte('\n')
			}
			data.WriteString(strings.TrimPrefix(strings.TrimPrefix(line, "data:"), " "))
		}
	}
	if err := scanner.Err(); err != nil {
		return delivered, fmt.Errorf("httpdoc: reading stream: %w", err)
	}
	return delivered, ErrStreamClosed
}

// StatusError reports an unexpected HTTP status.
type StatusError struct {
	Code int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("httpdoc: unexpected status %d", e.Code)
}

func (c *Client) do(req *http.Request) ([]byte, error) {
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("httpdoc: request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if err := checkStatus(resp); err != nil {
		return nil, err
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return nil, fmt.Errorf("httpdoc: reading response: %w", err)
	}
	return body, nil
}

func checkStatus(resp *http.Response) error {
	switch {
	case resp.StatusCode == http.StatusUnauthorized, resp.StatusCode == http.StatusForbidden:
		return ErrUnauthorized
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		return &StatusError{Code: resp.StatusCode}
	}
	return nil
}

func (c *Client) docURL(kind string) string {
	return c.baseURL + "/v1/" + kind + "/" + c.path
}

func (c *Client) currentToken() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.token
}
