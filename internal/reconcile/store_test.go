package reconcile

import (
	"context"
	"encoding/json"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/theirongolddev/cbudget/internal/model"
	"github.com/theirongolddev/cbudget/internal/store"
)

type memCache struct {
	mu     sync.Mutex
	slots  map[string]string
	putErr error
}

func newMemCache() *memCache {
	return &memCache{slots: make(map[string]string)}
}

func (c *memCache) Get(key string) (string, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.slots[key]
	return v, ok, nil
}

func (c *memCache) Put(key, value string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.putErr != nil {
		return c.putErr
	}
	c.slots[key] = value
	return nil
}

func (c *memCache) list(t *testing.T) []model.Project {
	t.Helper()
	raw, ok, _ := c.Get(DefaultCacheKey)
	require.True(t, ok, "cache slot empty")
	var out []model.Project
	require.NoError(t, json.Unmarshal([]byte(raw), &out))
	return out
}

type fakeRemote struct {
	mu           sync.Mutex
	connectErr   error
	writeErr     error
	gate         chan struct{}
	entered      chan struct{}
	writes       [][]model.Project
	onData       func([]model.Project)
	onError      func(error)
	unsubscribed bool
}

func (f *fakeRemote) Connect(context.Context) error { return f.connectErr }

func (f *fakeRemote) Write(ctx context.Context, projects []model.Project, _ time.Time) error {
	if f.entered != nil {
		f.entered <- struct{}{}
	}
	if f.gate != nil {
		select {
		case <-f.gate:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.writes = append(f.writes, projects)
	return f.writeErr
}

func (f *fakeRemote) Subscribe(onData func([]model.Project), onError func(error)) func() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.onData = onData
	f.onError = onError
	return func() {
		f.mu.Lock()
		f.unsubscribed = true
		f.mu.Unlock()
	}
}

func (f *fakeRemote) push(list []model.Project) {
	f.mu.Lock()
	fn := f.onData
	f.mu.Unlock()
	fn(list)
}

func (f *fakeRemote) fail(err error) {
	f.mu.Lock()
	fn := f.onError
	f.mu.Unlock()
	fn(err)
}

func projects(names ...string) []model.Project {
	out := make([]model.Project, len(names))
	for i, n := range names {
		out[i] = model.Project{ID: model.ID(n), Name: n, Area: 1, ExecBudget: 10}
	}
	return out
}

func names(list []model.Project) []string {
	out := make([]string, len(list))
	for i, p := range list {
		out[i] = p.Name
	}
	return out
}

func connected(t *testing.T, cache LocalCache, rem *fakeRemote) *Store {
	t.Helper()
	s := New(cache, rem)
	require.NoError(t, s.Connect(context.Background()))
	require.Equal(t, Connecting, s.State().Status)
	return s
}

func TestLoadLocal(t *testing.T) {
	cache := newMemCache()
	require.NoError(t, cache.Put(DefaultCacheKey, `[{"id":1,"name":"A","area":5}]`))

	s := New(cache, nil)
	assert.Equal(t, Uninitialized, s.State().Status)
	require.True(t, s.LoadLocal())

	st := s.State()
	assert.Equal(t, LocalLoaded, st.Status)
	assert.Equal(t, "載入本地存檔", st.Label())
	require.Len(t, st.Projects, 1)
	assert.Equal(t, model.ID("1"), st.Projects[0].ID)
}

func TestLoadLocal_Malformed(t *testing.T) {
	cache := newMemCache()
	require.NoError(t, cache.Put(DefaultCacheKey, `{not json`))

	s := New(cache, nil)
	assert.False(t, s.LoadLocal())

	st := s.State()
	assert.Equal(t, Uninitialized, st.Status)
	assert.Empty(t, st.Projects)
	assert.ErrorIs(t, st.LastError, ErrMalformedCache)

	require.NoError(t, s.Connect(context.Background()))
	assert.Equal(t, Offline, s.State().Status)
}

func TestLoadLocal_Missing(t *testing.T) {
	s := New(newMemCache(), nil)
	assert.False(t, s.LoadLocal())
	assert.Equal(t, Uninitialized, s.State().Status)
}

func TestConnect_NoRemote(t *testing.T) {
	cache := newMemCache()
	require.NoError(t, cache.Put(DefaultCacheKey, `[]`))

	s := New(cache, nil)
	s.LoadLocal()
	require.NoError(t, s.Connect(context.Background()))
	assert.Equal(t, OfflineCached, s.State().Status)
	assert.True(t, s.WaitSynced(context.Background()))
}

func TestConnect_AuthFailed(t *testing.T) {
	cache := newMemCache()
	require.NoError(t, cache.Put(DefaultCacheKey, `[{"id":"a","name":"A"}]`))
	rem := &fakeRemote{connectErr: errors.New("denied")}

	s := New(cache, rem)
	s.LoadLocal()
	err := s.Connect(context.Background())
	require.ErrorIs(t, err, ErrAuthFailed)

	st := s.State()
	assert.Equal(t, AuthFailed, st.Status)
	assert.Equal(t, []string{"A"}, names(st.Projects))

	// Imports after a failed handshake stay local.
	require.NoError(t, s.ImportBatch(projects("B")))
	s.Wait()
	assert.Equal(t, SavedLocal, s.State().Status)
	assert.Empty(t, rem.writes)
}

func TestSnapshotReplacesListAndCache(t *testing.T) {
	cache := newMemCache()
	rem := &fakeRemote{}
	s := connected(t, cache, rem)

	rem.push(projects("R1", "R2"))

	st := s.State()
	assert.Equal(t, Synced, st.Status)
	assert.Equal(t, []string{"R1", "R2"}, names(st.Projects))
	assert.Equal(t, []string{"R1", "R2"}, names(cache.list(t)))
	assert.True(t, s.WaitSynced(context.Background()))
}

func TestEmptySnapshotKeepsList(t *testing.T) {
	cache := newMemCache()
	rem := &fakeRemote{}
	s := connected(t, cache, rem)

	rem.push(projects("A"))
	rem.push(nil)
	rem.push([]model.Project{})

	st := s.State()
	assert.Equal(t, Synced, st.Status)
	assert.Equal(t, []string{"A"}, names(st.Projects))
	assert.Equal(t, []string{"A"}, names(cache.list(t)))
}

func TestFeedErrorKeepsList(t *testing.T) {
	rem := &fakeRemote{}
	s := connected(t, newMemCache(), rem)
	rem.push(projects("A"))

	rem.fail(errors.New("stream reset"))

	st := s.State()
	assert.Equal(t, FeedError, st.Status)
	assert.Equal(t, "雲端連線失敗", st.Label())
	assert.Equal(t, []string{"A"}, names(st.Projects))
	assert.EqualError(t, st.LastError, "stream reset")
}

func TestImportBatch_Offline(t *testing.T) {
	cache := newMemCache()
	s := New(cache, nil)
	require.NoError(t, s.Connect(context.Background()))

	require.NoError(t, s.ImportBatch(projects("A", "B")))

	st := s.State()
	assert.Equal(t, SavedLocal, st.Status)
	assert.False(t, st.Writing)
	assert.Equal(t, []string{"A", "B"}, names(st.Projects))
	assert.Equal(t, []string{"A", "B"}, names(cache.list(t)))
}

func TestImportBatch_RemoteSuccess(t *testing.T) {
	cache := newMemCache()
	rem := &fakeRemote{gate: make(chan struct{})}
	s := connected(t, cache, rem)

	require.NoError(t, s.ImportBatch(projects("A")))

	st := s.State()
	assert.Equal(t, Saving, st.Status)
	assert.True(t, st.Writing)
	assert.Equal(t, []string{"A"}, names(st.Projects))
	assert.Equal(t, []string{"A"}, names(cache.list(t)))

	close(rem.gate)
	s.Wait()

	st = s.State()
	assert.Equal(t, Saved, st.Status)
	assert.False(t, st.Writing)
	require.Len(t, rem.writes, 1)
	assert.Equal(t, []string{"A"}, names(rem.writes[0]))
}

func TestImportBatch_RemoteFailureDoesNotRollBack(t *testing.T) {
	cache := newMemCache()
	rem := &fakeRemote{writeErr: errors.New("permission denied")}
	s := connected(t, cache, rem)
	rem.push(projects("OLD"))

	require.NoError(t, s.ImportBatch(projects("NEW1", "NEW2")))
	s.Wait()

	st := s.State()
	assert.Equal(t, SaveFailed, st.Status)
	assert.Equal(t, "存檔失敗", st.Label())
	assert.ErrorIs(t, st.LastError, ErrRemoteWrite)
	assert.Equal(t, []string{"NEW1", "NEW2"}, names(st.Projects))
	assert.Equal(t, []string{"NEW1", "NEW2"}, names(cache.list(t)))
}

func TestImportBatch_CacheFailureStillReplaces(t *testing.T) {
	cache := newMemCache()
	cache.putErr = errors.New("disk full")
	s := New(cache, nil)

	err := s.ImportBatch(projects("A"))
	require.ErrorIs(t, err, ErrCacheWrite)
	assert.Equal(t, []string{"A"}, names(s.Projects()))
}

func TestLastWriteWins(t *testing.T) {
	rem := &fakeRemote{gate: make(chan struct{})}
	s := connected(t, newMemCache(), rem)

	// A snapshot arriving while an import is in flight replaces it.
	require.NoError(t, s.ImportBatch(projects("LOCAL")))
	rem.push(projects("REMOTE"))
	assert.Equal(t, []string{"REMOTE"}, names(s.Projects()))

	// An import after a snapshot replaces the snapshot.
	require.NoError(t, s.ImportBatch(projects("LOCAL2")))
	assert.Equal(t, []string{"LOCAL2"}, names(s.Projects()))

	close(rem.gate)
	s.Wait()
	assert.Equal(t, []string{"LOCAL2"}, names(s.Projects()))
}

func TestImportBatch_RemoteWritesKeepImportOrder(t *testing.T) {
	rem := &fakeRemote{gate: make(chan struct{}), entered: make(chan struct{}, 2)}
	s := connected(t, newMemCache(), rem)

	require.NoError(t, s.ImportBatch(projects("FIRST")))
	<-rem.entered

	require.NoError(t, s.ImportBatch(projects("SECOND")))
	select {
	case <-rem.entered:
		t.Fatal("second remote write started while the first was in flight")
	case <-time.After(50 * time.Millisecond):
	}

	close(rem.gate)
	s.Wait()

	require.Len(t, rem.writes, 2)
	assert.Equal(t, []string{"FIRST"}, names(rem.writes[0]))
	assert.Equal(t, []string{"SECOND"}, names(rem.writes[1]))
	st := s.State()
	assert.Equal(t, Saved, st.Status)
	assert.False(t, st.Writing)
	assert.Equal(t, []string{"SECOND"}, names(st.Projects))
}

func TestImportBatch_SkipsSupersededWrite(t *testing.T) {
	rem := &fakeRemote{gate: make(chan struct{}), entered: make(chan struct{}, 3)}
	s := connected(t, newMemCache(), rem)

	require.NoError(t, s.ImportBatch(projects("A")))
	<-rem.entered
	require.NoError(t, s.ImportBatch(projects("B")))
	require.NoError(t, s.ImportBatch(projects("C")))

	close(rem.gate)
	s.Wait()

	// B was superseded by C before it reached the remote.
	require.Len(t, rem.writes, 2)
	assert.Equal(t, []string{"A"}, names(rem.writes[0]))
	assert.Equal(t, []string{"C"}, names(rem.writes[1]))
	assert.False(t, s.State().Writing)
}

func TestProjectsReturnsCopy(t *testing.T) {
	s := New(newMemCache(), nil)
	require.NoError(t, s.ImportBatch(projects("A")))

	got := s.Projects()
	got[0].Name = "mutated"
	assert.Equal(t, "A", s.Projects()[0].Name)
}

func TestCloseUnsubscribesAndIgnoresEvents(t *testing.T) {
	rem := &fakeRemote{}
	s := connected(t, newMemCache(), rem)
	rem.push(projects("A"))

	ch, _ := s.Subscribe()
	s.Close()
	assert.True(t, rem.unsubscribed)

	rem.push(projects("B"))
	rem.fail(errors.New("late"))
	assert.Equal(t, []string{"A"}, names(s.Projects()))
	assert.Equal(t, Synced, s.State().Status)

	_, open := <-ch
	assert.False(t, open)
	assert.ErrorIs(t, s.ImportBatch(projects("C")), ErrClosed)
}

func TestSubscribe(t *testing.T) {
	s := New(newMemCache(), nil)
	ch, cancel := s.Subscribe()

	require.NoError(t, s.ImportBatch(projects("A")))

	select {
	case st := <-ch:
		assert.Equal(t, SavedLocal, st.Status)
		assert.Equal(t, []string{"A"}, names(st.Projects))
	case <-time.After(time.Second):
		t.Fatal("no state delivered")
	}

	cancel()
	cancel()
	_, open := <-ch
	assert.False(t, open)
}

func TestSubscribe_SlowReaderGetsLatest(t *testing.T) {
	s := New(newMemCache(), nil)
	ch, cancel := s.Subscribe()
	defer cancel()

	for i := 0; i < 50; i++ {
		require.NoError(t, s.ImportBatch(projects("P", string(rune('a'+i%26)))))
	}
	require.NoError(t, s.ImportBatch(projects("LAST")))

	var last SyncState
	for {
		select {
		case st := <-ch:
			last = st
			continue
		default:
		}
		break
	}
	assert.Equal(t, []string{"LAST"}, names(last.Projects))
}

func TestWaitSynced_Timeout(t *testing.T) {
	rem := &fakeRemote{}
	s := connected(t, newMemCache(), rem)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	assert.False(t, s.WaitSynced(ctx))
}

func TestStart(t *testing.T) {
	cache := newMemCache()
	require.NoError(t, cache.Put(DefaultCacheKey, `[{"id":"a","name":"A"}]`))
	rem := &fakeRemote{}

	s := New(cache, rem)
	s.Start(context.Background())
	defer s.Close()

	assert.Equal(t, []string{"A"}, names(s.Projects()))
	require.Eventually(t, func() bool {
		return s.State().Status == Connecting
	}, time.Second, 5*time.Millisecond)
}

func TestWithSQLiteCache(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cache.db")
	c, err := store.Open(path)
	require.NoError(t, err)
	defer c.Close()

	s := New(c, nil, WithCacheKey("custom"))
	require.NoError(t, s.ImportBatch(projects("A", "B")))

	reloaded := New(c, nil, WithCacheKey("custom"))
	require.True(t, reloaded.LoadLocal())
	assert.Equal(t, []string{"A", "B"}, names(reloaded.Projects()))
}

func TestStatusLabels(t *testing.T) {
	for s := Uninitialized; s <= SaveFailed; s++ {
		assert.NotEmpty(t, s.Label(), s.String())
		assert.NotEqual(t, "unknown", s.String())
	}
	assert.Equal(t, "unknown", Status(99).String())
	assert.True(t, SaveFailed.Failed())
	assert.False(t, Saved.Failed())
}
