// Package docserver serves shared budget documents over HTTP with a
// Server-Sent Events change feed. It is the reference backend for the
// httpdoc remote client.
package docserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/theirongolddev/cbudget/internal/remote"
	"github.com/theirongolddev/cbudget/internal/store"
)

const (
	// APIKeyHeader carries the server key on the anonymous handshake.
	APIKeyHeader = "X-API-Key"

	maxBodySize    = 8 << 20
	keepAlive      = 25 * time.Second
	slotPrefix     = "doc:"
	defaultAddr    = "127.0.0.1:8787"
	defaultBacklog = 200
)

// Config controls the server.
type Config struct {
	Addr         string
	APIKey       string
	EventsBuffer int
	Logger       *slog.Logger
	// Persist, when set, keeps documents across restarts.
	Persist *store.Cache
}

// Event records one accepted document write.
type Event struct {
	ID        int64     `json:"id"`
	Type      string    `json:"type"`
	Timestamp time.Time `json:"timestamp"`
	Path      string    `json:"path"`
	Projects  int       `json:"projects"`
}

// Status is served at /v1/status.
type Status struct {
	StartedAt       time.Time `json:"started_at"`
	LastWriteAt     time.Time `json:"last_write_at,omitempty"`
	Documents       int       `json:"documents"`
	Writes          int64     `json:"writes"`
	Sessions        int       `json:"sessions"`
	Persistent      bool      `json:"persistent"`
	LastError       string    `json:"last_error,omitempty"`
	EventCount      int       `json:"event_count"`
	SubscriberCount int       `json:"subscriber_count"`
}

// AuthResponse is returned by the anonymous handshake.
type AuthResponse struct {
	Token string `json:"token"`
	UID   string `json:"uid"`
}

type subscriber struct {
	path string
	ch   chan []byte
}

// Server holds documents in memory and fans writes out to stream readers.
type Server struct {
	cfg Config
	log *slog.Logger

	mu          sync.RWMutex
	startedAt   time.Time
	lastWriteAt time.Time
	writes      int64
	lastError   string
	docs        map[string][]byte
	tokens      map[string]string
	nextEventID int64
	events      []Event

	nextSubID int
	subs      map[int]subscriber
}

// New returns a server, restoring persisted documents when cfg.Persist is set.
func New(cfg Config) (*Server, error) {
	if cfg.EventsBuffer < 1 {
		cfg.EventsBuffer = defaultBacklog
	}
	if cfg.Addr == "" {
		cfg.Addr = defaultAddr
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	s := &Server{
		cfg:       cfg,
		log:       logger,
		startedAt: time.Now(),
		docs:      make(map[string][]byte),
		tokens:    make(map[string]string),
		subs:      make(map[int]subscriber),
	}

	if cfg.Persist != nil {
		slots, err := cfg.Persist.List(slotPrefix)
		if err != nil {
			return nil, fmt.Errorf("restoring documents: %w", err)
		}
		for _, slot := range slots {
			s.docs[strings.TrimPrefix(slot.Key, slotPrefix)] = []byte(slot.Value)
		}
		s.log.Info("restored documents", "count", len(slots))
	}
	return s, nil
}

// Addr returns the listen address.
func (s *Server) Addr() string { return s.cfg.Addr }

// Handler returns the HTTP API.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /v1/status", s.handleStatus)
	mux.HandleFunc("GET /v1/events", s.handleEvents)
	mux.HandleFunc("POST /v1/auth/anonymous", s.handleAuth)
	mux.HandleFunc("GET /v1/docs/{path...}", s.handleGet)
	mux.HandleFunc("PUT /v1/docs/{path...}", s.handlePut)
	mux.HandleFunc("GET /v1/stream/{path...}", s.handleStream)
	return mux
}

// Run serves until ctx is canceled.
func (s *Server) Run(ctx context.Context) error {
	server := &http.Server{
		Addr:              s.cfg.Addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
		BaseContext:       func(_ net.Listener) context.Context { return ctx },
	}

	errCh := make(chan error, 1)
	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()
	s.log.Info("document server listening", "addr", s.cfg.Addr, "auth", s.cfg.APIKey != "")

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	case err := <-errCh:
		return fmt.Errorf("document server: %w", err)
	}
}

// Put stores a document and notifies stream readers of path. The durable
// copy and the in-memory copy are replaced under one lock.
func (s *Server) Put(path string, doc remote.Document) error {
	body, err := json.Marshal(doc)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cfg.Persist != nil {
		if err := s.cfg.Persist.Put(slotPrefix+path, string(body)); err != nil {
			s.lastError = err.Error()
			s.log.Error("persisting document", "path", path, "err", err)
			return err
		}
	}

	now := time.Now()
	s.docs[path] = body
	s.writes++
	s.lastWriteAt = now
	s.nextEventID++
	s.events = append(s.events, Event{
		ID:        s.nextEventID,
		Type:      "write",
		Timestamp: now,
		Path:      path,
		Projects:  len(doc.List),
	})
	if len(s.events) > s.cfg.EventsBuffer {
		s.events = s.events[len(s.events)-s.cfg.EventsBuffer:]
	}
	for _, sub := range s.subs {
		if sub.path == path {
			sendLatest(sub.ch, body)
		}
	}

	s.log.Debug("document written", "path", path, "projects", len(doc.List))
	return nil
}

// sendLatest delivers body without blocking. A full channel drops its
// oldest document so a slow reader always ends on the newest one.
func sendLatest(ch chan []byte, body []byte) {
	select {
	case ch <- body:
		return
	default:
	}
	select {
	case <-ch:
	default:
	}
	select {
	case ch <- body:
	default:
	}
}

// Document returns the stored document at path.
func (s *Server) Document(path string) ([]byte, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	body, ok := s.docs[path]
	return body, ok
}

func (s *Server) snapshotStatus() Status {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return Status{
		StartedAt:       s.startedAt,
		LastWriteAt:     s.lastWriteAt,
		Documents:       len(s.docs),
		Writes:          s.writes,
		Sessions:        len(s.tokens),
		Persistent:      s.cfg.Persist != nil,
		LastError:       s.lastError,
		EventCount:      len(s.events),
		SubscriberCount: len(s.subs),
	}
}

func (s *Server) authorized(r *http.Request) bool {
	token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
	if !ok || token == "" {
		return false
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok = s.tokens[token]
	return ok
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = w.Write([]byte("ok\n"))
}

func (s *Server) handleStatus(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.snapshotStatus())
}

func (s *Server) handleEvents(w http.ResponseWriter, _ *http.Request) {
	s.mu.RLock()
	events := make([]Event, len(s.events))
	copy(events, s.events)
	s.mu.RUnlock()

	writeJSON(w, http.StatusOK, events)
}

func (s *Server) handleAuth(w http.ResponseWriter, r *http.Request) {
	if s.cfg.APIKey != "" && r.Header.Get(APIKeyHeader) != s.cfg.APIKey {
		http.Error(w, "invalid api key", http.StatusUnauthorized)
		return
	}

	resp := AuthResponse{Token: uuid.NewString(), UID: uuid.NewString()}
	s.mu.Lock()
	s.tokens[resp.Token] = resp.UID
	s.mu.Unlock()

	s.log.Info("anonymous session issued", "uid", resp.UID)
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleGet(w http.ResponseWriter, r *http.Request) {
	if !s.authorized(r) {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}
	body, ok := s.Document(r.PathValue("path"))
	if !ok {
		http.Error(w, "not found", http.StatusNotFound)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write(body)
}

func (s *Server) handlePut(w http.ResponseWriter, r *http.Request) {
	if !s.authorized(r) {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	data, err := io.ReadAll(io.LimitReader(r.Body, maxBodySize+1))
	if err != nil {
		http.Error(w, "reading body", http.StatusBadRequest)
		return
	}
	if len(data) > maxBodySize {
		http.Error(w, "document too large", http.StatusRequestEntityTooLarge)
		return
	}
	doc, err := remote.DecodeDocument(data)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	doc.List = doc.Projects()

	if err := s.Put(r.PathValue("path"), doc); err != nil {
		http.Error(w, "storing document", http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	if !s.authorized(r) {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	path := r.PathValue("path")
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	ch := make(chan []byte, 16)
	id := s.addSubscriber(path, ch)
	defer s.removeSubscriber(id)

	// Send the current document immediately.
	if body, ok := s.Document(path); ok {
		writeSSE(w, "snapshot", body)
	}
	flusher.Flush()

	ticker := time.NewTicker(keepAlive)
	defer ticker.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case body := <-ch:
			writeSSE(w, "snapshot", body)
			flusher.Flush()
		case <-ticker.C:
			_, _ = io.WriteString(w, ": ping\n\n")
			flusher.Flush()
		}
	}
}

func writeSSE(w io.Writer, event string, data []byte) {
	_, _ = fmt.Fprintf(w, "event: %s\n", event)
	_, _ = fmt.Fprintf(w, "data: %s\n\n", data)
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func (s *Server) addSubscriber(path string, ch chan []byte) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextSubID++
	id := s.nextSubID
	s.subs[id] = subscriber{path: path, ch: ch}
	return id
}

func (s *Server) removeSubscriber(id int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.subs, id)
}
