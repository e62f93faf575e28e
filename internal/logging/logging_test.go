package logging

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultLogPath(t *testing.T) {
	path := DefaultLogPath()
	assert.Equal(t, "docqa.log", filepath.Base(path))
	assert.Contains(t, path, ".docqa")
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	assert.Equal(t, "info", cfg.Level)
	assert.Empty(t, cfg.FilePath)
	assert.True(t, cfg.WriteToStderr)

	debug := DebugConfig()
	assert.Equal(t, "debug", debug.Level)
	assert.Equal(t, DefaultLogPath(), debug.FilePath)
}

func TestLevelFromString(t *testing.T) {
	tests := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		"INFO":    slog.LevelInfo,
		"warn":    slog.LevelWarn,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
		"bogus":   slog.LevelInfo,
	}
	for in, want := range tests {
		assert.Equal(t, want, LevelFromString(in), in)
	}
}

func TestSetup_WritesToFileAndStderr(t *testing.T) {
	// Given: a config with both outputs enabled
	logPath := filepath.Join(t.TempDir(), "test.log")
	var stderr bytes.Buffer
	cfg := Config{Level: "debug", Format: "json", FilePath: logPath, MaxSizeMB: 1, MaxFiles: 2, WriteToStderr: true}

	// When: logging one line
	logger, cleanup, err := setup(cfg, &stderr)
	require.NoError(t, err)
	logger.Debug("rebuild started", slog.Int("files", 3))
	cleanup()

	// Then: both outputs carry the JSON record
	data, err := os.ReadFile(logPath)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"msg":"rebuild started"`)
	assert.Contains(t, stderr.String(), `"files":3`)
}

func TestSetup_LevelFilters(t *testing.T) {
	var stderr bytes.Buffer
	logger, cleanup, err := setup(Config{Level: "warn", WriteToStderr: true}, &stderr)
	require.NoError(t, err)
	defer cleanup()

	logger.Info("hidden")
	logger.Warn("shown")

	assert.NotContains(t, stderr.String(), "hidden")
	assert.Contains(t, stderr.String(), "shown")
}

func TestSetup_NoOutputsDiscards(t *testing.T) {
	logger, cleanup, err := setup(Config{Level: "info"}, nil)
	require.NoError(t, err)
	defer cleanup()

	assert.NotPanics(t, func() { logger.Info("nowhere") })
}

func TestRotatingWriter_Rotation(t *testing.T) {
	// Given: a writer that already holds more than its limit
	path := filepath.Join(t.TempDir(), "docqa.log")
	w, err := NewRotatingWriter(path, 1, 2)
	require.NoError(t, err)
	w.maxSize = 10

	// When: writing three times
	for i := 0; i < 3; i++ {
		_, err := fmt.Fprintf(w, "line-%d-xxxxxxxx\n", i)
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())

	// Then: the newest line is current and at most two rotated files exist
	current, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "line-2-xxxxxxxx\n", string(current))

	first, err := os.ReadFile(path + ".1")
	require.NoError(t, err)
	assert.Equal(t, "line-1-xxxxxxxx\n", string(first))
	assert.FileExists(t, path+".2")
	assert.NoFileExists(t, path+".3")
}

func TestRotatingWriter_WriteAfterClose(t *testing.T) {
	w, err := NewRotatingWriter(filepath.Join(t.TempDir(), "a.log"), 1, 1)
	require.NoError(t, err)
	require.NoError(t, w.Close())
	require.NoError(t, w.Close())

	_, err = w.Write([]byte("x"))
	assert.ErrorIs(t, err, os.ErrClosed)
}

func TestRotatingWriter_ConcurrentWrites(t *testing.T) {
	path := filepath.Join(t.TempDir(), "c.log")
	w, err := NewRotatingWriter(path, 1, 3)
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			for j := 0; j < 20; j++ {
				_, _ = fmt.Fprintf(w, "worker %d line %d\n", n, j)
			}
		}(i)
	}
	wg.Wait()
	require.NoError(t, w.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, 160, strings.Count(string(data), "\n"))
}

func TestFindLogFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "x.log")
	require.NoError(t, os.WriteFile(path, []byte("{}\n"), 0o644))

	got, err := FindLogFile(path)
	require.NoError(t, err)
	assert.Equal(t, path, got)

	_, err = FindLogFile(path + ".missing")
	assert.Error(t, err)
}

func writeLog(t *testing.T, lines ...string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "docqa.log")
	require.NoError(t, os.WriteFile(path, []byte(strings.Join(lines, "\n")+"\n"), 0o644))
	return path
}

func TestViewer_TailFiltersByLevelAndPattern(t *testing.T) {
	// Given: a log with mixed levels
	path := writeLog(t,
		`{"time":"2026-01-02T03:04:05Z","level":"DEBUG","msg":"embedding batch","size":12}`,
		`{"time":"2026-01-02T03:04:06Z","level":"WARN","msg":"skipping corrupt document","path":"a.docx"}`,
		`not json`,
		`{"time":"2026-01-02T03:04:07Z","level":"ERROR","msg":"rebuild failed"}`,
	)

	// When: tailing warn and above
	v := NewViewer(ViewerConfig{Level: "warn", NoColor: true}, &bytes.Buffer{})
	entries, err := v.Tail(path, 10)
	require.NoError(t, err)

	// Then: debug is dropped while unparseable lines pass through
	require.Len(t, entries, 3)
	assert.Equal(t, "skipping corrupt document", entries[0].Msg)
	assert.False(t, entries[1].IsValid)

	pat := NewViewer(ViewerConfig{Pattern: regexp.MustCompile(`rebuild`), NoColor: true}, &bytes.Buffer{})
	entries, err = pat.Tail(path, 10)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "ERROR", entries[0].Level)
}

func TestViewer_TailKeepsLastN(t *testing.T) {
	path := writeLog(t, `{"msg":"a"}`, `{"msg":"b"}`, `{"msg":"c"}`)
	v := NewViewer(ViewerConfig{NoColor: true}, &bytes.Buffer{})

	entries, err := v.Tail(path, 2)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "b", entries[0].Msg)
	assert.Equal(t, "c", entries[1].Msg)
}

func TestViewer_FormatEntry(t *testing.T) {
	var out bytes.Buffer
	v := NewViewer(ViewerConfig{NoColor: true}, &out)
	entry := ParseLine(`{"time":"2026-01-02T03:04:05.5Z","level":"INFO","msg":"index rebuilt","files":2,"chunks":9}`)

	v.Print([]LogEntry{entry})

	assert.Equal(t, "03:04:05.500 INFO  index rebuilt chunks=9 files=2\n", out.String())
}

func TestViewer_Follow(t *testing.T) {
	path := writeLog(t, `{"msg":"old"}`)
	v := NewViewer(ViewerConfig{NoColor: true}, &bytes.Buffer{})
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	entries := make(chan LogEntry, 1)
	done := make(chan error, 1)
	go func() { done <- v.Follow(ctx, path, entries) }()

	time.Sleep(150 * time.Millisecond)
	f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0o644)
	require.NoError(t, err)
	_, err = f.WriteString(`{"msg":"new"}` + "\n")
	require.NoError(t, err)
	require.NoError(t, f.Close())

	select {
	case e := <-entries:
		assert.Equal(t, "new", e.Msg)
	case <-ctx.Done():
		t.Fatal("no entry followed")
	}
	cancel()
	assert.NoError(t, <-done)
}
