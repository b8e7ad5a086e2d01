// Package reconcile owns the authoritative project list. It merges optimistic
// local imports with snapshots from a remote document store and mirrors every
// accepted list into the durable local cache.
//
// Updates follow last-write-wins: whichever of an import or a remote snapshot
// reaches the store last replaces the list. The mutex only makes each
// replacement atomic; it never orders or rejects updates.
package reconcile

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/theirongolddev/cbudget/internal/model"
	"github.com/theirongolddev/cbudget/internal/pipeline"
	"github.com/theirongolddev/cbudget/internal/remote"
)

// DefaultCacheKey is the cache slot holding the project list.
const DefaultCacheKey = "construction_projects_cache"

var (
	// ErrMalformedCache means the cache slot held something other than a project list.
	ErrMalformedCache = errors.New("reconcile: malformed local cache")
	// ErrAuthFailed means the remote handshake failed.
	ErrAuthFailed = errors.New("reconcile: remote authentication failed")
	// ErrRemoteWrite means a remote write failed after the local list was replaced.
	ErrRemoteWrite = errors.New("reconcile: remote write failed")
	// ErrCacheWrite means the durable cache could not be updated.
	ErrCacheWrite = errors.New("reconcile: local cache write failed")
	// ErrClosed is returned by operations on a closed store.
	ErrClosed = errors.New("reconcile: store closed")
)

// LocalCache is a durable keyed string slot.
type LocalCache interface {
	Get(key string) (value string, ok bool, err error)
	Put(key, value string) error
}

// SyncState is a snapshot of the store.
type SyncState struct {
	Projects  []model.Project
	Status    Status
	Writing   bool
	LastError error
	UpdatedAt time.Time
}

// Label returns the status line for the state.
func (st SyncState) Label() string { return st.Status.Label() }

// Option configures a Store.
type Option func(*Store)

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Store) {
		if l != nil {
			s.log = l
		}
	}
}

// WithClock sets the clock used for update timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		if now != nil {
			s.now = now
		}
	}
}

// WithCacheKey overrides the cache slot key.
func WithCacheKey(key string) Option {
	return func(s *Store) {
		if key != "" {
			s.cacheKey = key
		}
	}
}

// WithWriteTimeout bounds each remote write.
func WithWriteTimeout(d time.Duration) Option {
	return func(s *Store) {
		if d > 0 {
			s.writeTimeout = d
		}
	}
}

// Store holds the authoritative project list and its sync state.
type Store struct {
	cache        LocalCache
	remote       remote.DocumentStore
	log          *slog.Logger
	now          func() time.Time
	cacheKey     string
	writeTimeout time.Duration

	mu          sync.Mutex
	projects    []model.Project
	status      Status
	writing     int
	lastErr     error
	updatedAt   time.Time
	localLoaded bool
	remoteReady bool
	closed      bool
	unsubscribe func()
	settled     chan struct{}
	settledOnce bool

	nextSubID int
	subs      map[int]chan SyncState

	// writeMu is held across each remote write so writes reach the
	// remote in import order. writeGen is the newest import; older
	// writes still queued behind writeMu are skipped.
	writeMu  sync.Mutex
	writeGen uint64
	writes   sync.WaitGroup
}

// New returns a store over cache and rem. A nil rem means no remote is
// configured and the store runs offline.
func New(cache LocalCache, rem remote.DocumentStore, opts ...Option) *Store {
	s := &Store{
		cache:        cache,
		remote:       rem,
		log:          slog.New(slog.DiscardHandler),
		now:          time.Now,
		cacheKey:     DefaultCacheKey,
		writeTimeout: 30 * time.Second,
		projects:     []model.Project{},
		status:       Uninitialized,
		settled:      make(chan struct{}),
		subs:         make(map[int]chan SyncState),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start loads the local cache, then connects to the remote in the background.
func (s *Store) Start(ctx context.Context) {
	s.LoadLocal()
	go func() { _ = s.Connect(ctx) }()
}

// LoadLocal publishes the cached list, if there is a readable one. A
// malformed slot is logged and ignored.
func (s *Store) LoadLocal() bool {
	if s.cache == nil {
		return false
	}
	raw, ok, err := s.cache.Get(s.cacheKey)
	if err != nil {
		s.log.Warn("reading local cache", "key", s.cacheKey, "err", err)
		s.setError(fmt.Errorf("%w: %w", ErrMalformedCache, err))
		return false
	}
	if !ok {
		return false
	}

	var list []model.Project
	if err := json.Unmarshal([]byte(raw), &list); err != nil {
		s.log.Warn("discarding malformed local cache", "key", s.cacheKey, "err", err)
		s.setError(fmt.Errorf("%w: %w", ErrMalformedCache, err))
		return false
	}
	if list == nil {
		list = []model.Project{}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.projects = list
	s.localLoaded = true
	s.status = LocalLoaded
	s.publishLocked()
	s.log.Debug("loaded local cache", "projects", len(list))
	return true
}

// Connect performs the remote handshake and subscribes to the change feed.
// Without a remote it settles offline and returns nil.
func (s *Store) Connect(ctx context.Context) error {
	if s.remote == nil {
		s.mu.Lock()
		if s.localLoaded {
			s.status = OfflineCached
		} else {
			s.status = Offline
		}
		s.publishLocked()
		s.mu.Unlock()
		return nil
	}

	if err := s.remote.Connect(ctx); err != nil {
		err = fmt.Errorf("%w: %w", ErrAuthFailed, err)
		s.log.Warn("remote handshake failed", "err", err)
		s.mu.Lock()
		s.status = AuthFailed
		s.lastErr = err
		s.publishLocked()
		s.mu.Unlock()
		return err
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrClosed
	}
	s.remoteReady = true
	s.status = Connecting
	s.publishLocked()
	s.mu.Unlock()

	unsub := s.remote.Subscribe(s.applySnapshot, s.applyFeedError)

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		unsub()
		return ErrClosed
	}
	s.unsubscribe = unsub
	s.mu.Unlock()
	return nil
}

func (s *Store) applySnapshot(list []model.Project) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}

	if len(list) > 0 {
		list = model.Clone(list)
		s.projects = list
		s.updatedAt = s.now()
		if err := s.writeCacheLocked(list); err != nil {
			s.lastErr = err
		}
	}
	s.status = Synced
	s.publishLocked()
	s.log.Debug("remote snapshot", "projects", len(list))
}

func (s *Store) applyFeedError(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.log.Warn("remote feed error", "err", err)
	s.status = FeedError
	s.lastErr = err
	s.publishLocked()
}

// ImportBatch replaces the list and writes it to the local cache, then writes
// it to the remote in the background when the remote handshake has
// succeeded. A failed remote write is reported through the status and never
// rolls the list back. The returned error only reports a failed cache write;
// the list is replaced either way.
func (s *Store) ImportBatch(list []model.Project) error {
	list = model.Clone(list)
	if list == nil {
		list = []model.Project{}
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrClosed
	}
	s.projects = list
	s.updatedAt = s.now()
	updatedAt := s.updatedAt

	cacheErr := s.writeCacheLocked(list)
	if cacheErr != nil {
		s.lastErr = cacheErr
	}

	toRemote := s.remoteReady
	var gen uint64
	if toRemote {
		s.status = Saving
		s.writing++
		s.writeGen++
		gen = s.writeGen
		s.writes.Add(1)
	} else {
		s.status = SavedLocal
	}
	s.publishLocked()
	s.mu.Unlock()

	if toRemote {
		go s.writeRemote(list, updatedAt, gen)
	}
	return cacheErr
}

func (s *Store) writeRemote(list []model.Project, updatedAt time.Time, gen uint64) {
	defer s.writes.Done()

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	s.mu.Lock()
	if gen != s.writeGen {
		s.writing--
		s.publishLocked()
		s.mu.Unlock()
		s.log.Debug("skipping superseded remote write", "projects", len(list))
		return
	}
	s.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), s.writeTimeout)
	defer cancel()
	err := s.remote.Write(ctx, list, updatedAt)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.writing--
	if gen != s.writeGen {
		// A newer import is queued; its write reports the status.
		if err != nil {
			s.log.Warn("remote write failed", "projects", len(list), "err", err)
		}
		s.publishLocked()
		return
	}
	if err != nil {
		err = fmt.Errorf("%w: %w", ErrRemoteWrite, err)
		s.log.Warn("remote write failed", "projects", len(list), "err", err)
		s.status = SaveFailed
		s.lastErr = err
	} else {
		s.status = Saved
	}
	s.publishLocked()
}

func (s *Store) writeCacheLocked(list []model.Project) error {
	if s.cache == nil {
		return nil
	}
	data, err := json.Marshal(list)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrCacheWrite, err)
	}
	if err := s.cache.Put(s.cacheKey, string(data)); err != nil {
		s.log.Warn("writing local cache", "key", s.cacheKey, "err", err)
		return fmt.Errorf("%w: %w", ErrCacheWrite, err)
	}
	return nil
}

func (s *Store) setError(err error) {
	s.mu.Lock()
	s.lastErr = err
	s.mu.Unlock()
}

// Wait blocks until every remote write started so far has finished.
func (s *Store) Wait() {
	s.writes.Wait()
}

// WaitSynced blocks until the first remote snapshot arrives or the store
// settles without one (offline, handshake failure, feed error). It returns
// false if ctx ends first.
func (s *Store) WaitSynced(ctx context.Context) bool {
	select {
	case <-s.settled:
		return true
	case <-ctx.Done():
		return false
	}
}

// Projects returns a copy of the current list.
func (s *Store) Projects() []model.Project {
	s.mu.Lock()
	defer s.mu.Unlock()
	return model.Clone(s.projects)
}

// State returns a snapshot of the store.
func (s *Store) State() SyncState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stateLocked()
}

// Summary aggregates the current list.
func (s *Store) Summary() model.PortfolioSummary {
	return pipeline.Aggregate(s.Projects())
}

// Subscribe returns a channel receiving the state after every change. Slow
// readers lose intermediate states but always get the latest one. Channels
// are closed by cancel or Close.
func (s *Store) Subscribe() (<-chan SyncState, func()) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ch := make(chan SyncState, 8)
	if s.closed {
		close(ch)
		return ch, func() {}
	}
	s.nextSubID++
	id := s.nextSubID
	s.subs[id] = ch

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			s.mu.Lock()
			defer s.mu.Unlock()
			if c, ok := s.subs[id]; ok {
				delete(s.subs, id)
				close(c)
			}
		})
	}
}

// Close stops the remote subscription and closes subscriber channels.
// Remote writes already started still run to completion.
func (s *Store) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	unsub := s.unsubscribe
	s.unsubscribe = nil
	for id, ch := range s.subs {
		delete(s.subs, id)
		close(ch)
	}
	s.mu.Unlock()

	if unsub != nil {
		unsub()
	}
}

func (s *Store) stateLocked() SyncState {
	return SyncState{
		Projects:  model.Clone(s.projects),
		Status:    s.status,
		Writing:   s.writing > 0,
		LastError: s.lastErr,
		UpdatedAt: s.updatedAt,
	}
}

func (s *Store) publishLocked() {
	if !s.settledOnce && s.status.settles() {
		s.settledOnce = true
		close(s.settled)
	}
	if len(s.subs) == 0 {
		return
	}

	st := s.stateLocked()
	for _, ch := range s.subs {
		select {
		case ch <- st:
		default:
			// Drop the oldest queued state to make room for the newest.
			select {
			case <-ch:
			default:
			}
			select {
			case ch <- st:
			default:
			}
		}
	}
}
