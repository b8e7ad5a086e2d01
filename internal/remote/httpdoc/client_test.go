package httpdoc

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/theirongolddev/cbudget/internal/docserver"
	"github.com/theirongolddev/cbudget/internal/model"
	"github.com/theirongolddev/cbudget/internal/reconcile"
)

const testPath = "artifacts/test-app/public/data/projects/main"

func newServer(t *testing.T, apiKey string) *httptest.Server {
	t.Helper()
	srv, err := docserver.New(docserver.Config{APIKey: apiKey})
	require.NoError(t, err)
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(func() {
		ts.CloseClientConnections()
		ts.Close()
	})
	return ts
}

func newClient(ts *httptest.Server, key string) *Client {
	return New(ts.URL, key, testPath, WithBackoff(10*time.Millisecond, 50*time.Millisecond))
}

type recorder struct {
	mu     sync.Mutex
	data   [][]model.Project
	errors []error
}

func (r *recorder) onData(list []model.Project) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.data = append(r.data, list)
}

func (r *recorder) onError(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.errors = append(r.errors, err)
}

func (r *recorder) snapshots() [][]model.Project {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([][]model.Project(nil), r.data...)
}

func TestConnect_RejectsWrongKey(t *testing.T) {
	ts := newServer(t, "secret")

	err := newClient(ts, "wrong").Connect(context.Background())
	require.ErrorIs(t, err, ErrUnauthorized)

	require.NoError(t, newClient(ts, "secret").Connect(context.Background()))
}

func TestWriteBeforeConnect(t *testing.T) {
	ts := newServer(t, "")
	err := newClient(ts, "").Write(context.Background(), nil, time.Now())
	require.ErrorIs(t, err, ErrNotConnected)
}

func TestWriteAndFetch(t *testing.T) {
	ts := newServer(t, "")
	c := newClient(ts, "")
	ctx := context.Background()
	require.NoError(t, c.Connect(ctx))

	_, ok, err := c.Fetch(ctx)
	require.NoError(t, err)
	assert.False(t, ok)

	at := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	list := []model.Project{{ID: "1", Name: "A", Area: 10, ExecBudget: 100}}
	require.NoError(t, c.Write(ctx, list, at))

	doc, ok, err := c.Fetch(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, list, doc.List)
	assert.Equal(t, "2024-06-01T12:00:00Z", doc.UpdatedAt)
}

func TestSubscribe_DeliversSnapshots(t *testing.T) {
	ts := newServer(t, "")
	ctx := context.Background()

	writer := newClient(ts, "")
	require.NoError(t, writer.Connect(ctx))
	require.NoError(t, writer.Write(ctx, []model.Project{{ID: "1", Name: "first"}}, time.Now()))

	reader := newClient(ts, "")
	require.NoError(t, reader.Connect(ctx))
	rec := &recorder{}
	unsub := reader.Subscribe(rec.onData, rec.onError)
	defer unsub()

	require.Eventually(t, func() bool { return len(rec.snapshots()) == 1 }, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, "first", rec.snapshots()[0][0].Name)

	require.NoError(t, writer.Write(ctx, []model.Project{{ID: "2", Name: "second"}}, time.Now()))
	require.Eventually(t, func() bool { return len(rec.snapshots()) == 2 }, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, "second", rec.snapshots()[1][0].Name)
}

func TestSubscribe_ReportsErrorsAndReconnects(t *testing.T) {
	var mu sync.Mutex
	fail := true
	srv, err := docserver.New(docserver.Config{})
	require.NoError(t, err)
	inner := srv.Handler()
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		f := fail
		mu.Unlock()
		if f && r.Method == http.MethodGet {
			http.Error(w, "boom", http.StatusBadGateway)
			return
		}
		inner.ServeHTTP(w, r)
	}))
	t.Cleanup(func() {
		ts.CloseClientConnections()
		ts.Close()
	})

	ctx := context.Background()
	c := newClient(ts, "")
	require.NoError(t, c.Connect(ctx))
	require.NoError(t, c.Write(ctx, []model.Project{{ID: "1", Name: "A"}}, time.Now()))

	rec := &recorder{}
	unsub := c.Subscribe(rec.onData, rec.onError)
	defer unsub()

	require.Eventually(t, func() bool {
		rec.mu.Lock()
		defer rec.mu.Unlock()
		return len(rec.errors) > 0
	}, 2*time.Second, 10*time.Millisecond)

	rec.mu.Lock()
	var se *StatusError
	assert.True(t, errors.As(rec.errors[0], &se))
	rec.mu.Unlock()

	mu.Lock()
	fail = false
	mu.Unlock()

	require.Eventually(t, func() bool { return len(rec.snapshots()) > 0 }, 2*time.Second, 10*time.Millisecond)
}

func TestUnsubscribeStopsFeed(t *testing.T) {
	ts := newServer(t, "")
	ctx := context.Background()
	c := newClient(ts, "")
	require.NoError(t, c.Connect(ctx))

	rec := &recorder{}
	unsub := c.Subscribe(rec.onData, rec.onError)
	unsub()
	unsub()

	require.NoError(t, c.Write(ctx, []model.Project{{ID: "1", Name: "A"}}, time.Now()))
	time.Sleep(50 * time.Millisecond)
	assert.Empty(t, rec.snapshots())
}

func TestStoresConvergeThroughServer(t *testing.T) {
	ts := newServer(t, "")
	ctx := context.Background()

	a := reconcile.New(nil, newClient(ts, ""))
	b := reconcile.New(nil, newClient(ts, ""))
	defer a.Close()
	defer b.Close()
	require.NoError(t, a.Connect(ctx))
	require.NoError(t, b.Connect(ctx))

	require.NoError(t, a.ImportBatch([]model.Project{{ID: "1", Name: "Tower", ExecBudget: 10}}))
	a.Wait()
	// a may already have seen its own write come back on the feed.
	assert.Contains(t, []reconcile.Status{reconcile.Saved, reconcile.Synced}, a.State().Status)
	assert.NoError(t, a.State().LastError)

	syncCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	require.True(t, b.WaitSynced(syncCtx))
	require.Eventually(t, func() bool {
		p := b.Projects()
		return len(p) == 1 && p[0].Name == "Tower"
	}, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, reconcile.Synced, b.State().Status)
}
