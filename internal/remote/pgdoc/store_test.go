package pgdoc

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/theirongolddev/cbudget/internal/model"
)

// testDSN reads CBUDGET_TEST_DATABASE_URL, loading the repository .env first.
func testDSN(t *testing.T) string {
	t.Helper()
	_, file, _, _ := runtime.Caller(0)
	root := filepath.Join(filepath.Dir(file), "..", "..", "..")
	_ = godotenv.Load(filepath.Join(root, ".env"))

	dsn := os.Getenv("CBUDGET_TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("CBUDGET_TEST_DATABASE_URL not set")
	}
	return dsn
}

func TestWriteBeforeConnect(t *testing.T) {
	s := New("postgres://unused", "p")
	err := s.Write(context.Background(), nil, time.Now())
	assert.ErrorIs(t, err, ErrNotConnected)
}

func TestConnectBadDSN(t *testing.T) {
	s := New("not a dsn ::", "p")
	assert.Error(t, s.Connect(context.Background()))
}

func TestRoundTripAndNotify(t *testing.T) {
	dsn := testDSN(t)
	ctx := context.Background()
	path := "artifacts/test-" + uuid.NewString() + "/public/data/projects/main"

	writer := New(dsn, path)
	require.NoError(t, writer.Connect(ctx))
	defer writer.Close()

	_, ok, err := writer.Fetch(ctx)
	require.NoError(t, err)
	assert.False(t, ok)

	reader := New(dsn, path, WithBackoff(10*time.Millisecond, 100*time.Millisecond))
	require.NoError(t, reader.Connect(ctx))
	defer reader.Close()

	var mu sync.Mutex
	var got [][]model.Project
	unsub := reader.Subscribe(func(list []model.Project) {
		mu.Lock()
		got = append(got, list)
		mu.Unlock()
	}, func(error) {})
	defer unsub()

	// Give LISTEN a moment before writing.
	time.Sleep(100 * time.Millisecond)
	list := []model.Project{{ID: "1", Name: "Tower", Area: 12, ExecBudget: 300}}
	require.NoError(t, writer.Write(ctx, list, time.Now()))

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(got) > 0
	}, 5*time.Second, 20*time.Millisecond)

	mu.Lock()
	assert.Equal(t, list, got[len(got)-1])
	mu.Unlock()
}
