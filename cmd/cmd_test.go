package cmd

import (
	"log/slog"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/theirongolddev/cbudget/internal/config"
	"github.com/theirongolddev/cbudget/internal/model"
)

func TestFilterDetachArg(t *testing.T) {
	got := filterDetachArg([]string{"serve", "--detach", "--addr", ":9000", "--detach=true"})
	want := []string{"serve", "--addr", ":9000"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("filterDetachArg = %v, want %v", got, want)
	}
}

func TestPIDRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "serve.pid")
	if err := writePID(path, 4242); err != nil {
		t.Fatal(err)
	}
	pid, err := readPID(path)
	if err != nil {
		t.Fatal(err)
	}
	if pid != 4242 {
		t.Errorf("readPID = %d, want 4242", pid)
	}

	if err := ensureServerNotRunning(filepath.Join(t.TempDir(), "missing.pid")); err != nil {
		t.Errorf("missing pid file should not be an error: %v", err)
	}
}

func TestNewLoggerLevels(t *testing.T) {
	tests := []struct {
		level   string
		verbose bool
		want    slog.Level
	}{
		{"", false, slog.LevelWarn},
		{"info", false, slog.LevelInfo},
		{"ERROR", false, slog.LevelError},
		{"warn", true, slog.LevelDebug},
	}
	for _, tt := range tests {
		l := newLogger(tt.level, tt.verbose)
		if !l.Enabled(t.Context(), tt.want) {
			t.Errorf("newLogger(%q, %v) should enable %v", tt.level, tt.verbose, tt.want)
		}
		if tt.want > slog.LevelDebug && l.Enabled(t.Context(), tt.want-4) {
			t.Errorf("newLogger(%q, %v) enables below %v", tt.level, tt.verbose, tt.want)
		}
	}
}

func TestBuildRemote(t *testing.T) {
	logger = slog.New(slog.DiscardHandler)
	t.Cleanup(func() { flagOffline = false })

	cfg = config.DefaultConfig()
	rem, cleanup, err := buildRemote()
	if err != nil || rem != nil {
		t.Fatalf("no backend: rem=%v err=%v", rem, err)
	}
	cleanup()

	cfg.Remote.Backend = config.BackendHTTP
	cfg.Remote.URL = "http://127.0.0.1:1"
	rem, cleanup, err = buildRemote()
	if err != nil || rem == nil {
		t.Fatalf("http backend: rem=%v err=%v", rem, err)
	}
	cleanup()

	flagOffline = true
	rem, _, err = buildRemote()
	if err != nil || rem != nil {
		t.Errorf("--offline should disable the remote, got %v", rem)
	}

	flagOffline = false
	cfg.Remote.Backend = "ftp"
	if _, _, err := buildRemote(); err == nil {
		t.Error("unknown backend should fail")
	}
}

func TestProjectTableMarksOverBilled(t *testing.T) {
	table := projectTable([]model.Project{
		{ID: "1", Name: "A", ExecBudget: 100, Paid: 50},
		{ID: "2", Name: "B", ExecBudget: 100, Paid: 150},
	})
	if len(table.Rows) != 2 || len(table.Headers) != 7 {
		t.Fatalf("table shape = %d rows, %d headers", len(table.Rows), len(table.Headers))
	}
	if table.Rows[0][6] != "50%" {
		t.Errorf("ratio = %q, want 50%%", table.Rows[0][6])
	}
	if table.Rows[1][4] != "0%" {
		t.Errorf("variance = %q, want 0%%", table.Rows[1][4])
	}
}
