package watch

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/danielpatrickdp/ecc-analyzer/internal/system"
)

type outcome struct {
	rep system.Report
	err error
}

func startWatch(t *testing.T, sys *system.System, path string) <-chan outcome {
	t.Helper()
	out := make(chan outcome, 8)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- Run(ctx, sys, path, Options{Debounce: 20 * time.Millisecond}, func(rep system.Report, err error) {
			out <- outcome{rep, err}
		})
	}()
	t.Cleanup(func() {
		cancel()
		assert.NoError(t, <-done)
	})
	// let the watcher register before the test writes
	time.Sleep(50 * time.Millisecond)
	return out
}

// replace swaps the file in by rename so the watcher never sees a partial write.
func replace(t *testing.T, path, body string) {
	t.Helper()
	tmp := path + ".tmp"
	require.NoError(t, os.WriteFile(tmp, []byte(body), 0o644))
	require.NoError(t, os.Rename(tmp, path))
}

func next(t *testing.T, ch <-chan outcome) outcome {
	t.Helper()
	select {
	case o := <-ch:
		return o
	case <-time.After(5 * time.Second):
		t.Fatal("no reload within 5s")
		return outcome{}
	}
}

func TestRun_ReloadsOnWrite(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "layout.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"type":"Source","fault":"SBE","rate":50}`), 0o644))
	sys, err := system.FromFile("w", 1000, path)
	require.NoError(t, err)

	ch := startWatch(t, sys, path)
	replace(t, path, `{"type":"Source","fault":"SBE","rate":5}`)

	o := next(t, ch)
	require.NoError(t, o.err)
	assert.InDelta(t, 5.0, o.rep.Metrics.ResidualFIT, 1e-12)
	assert.Equal(t, "ASIL D", o.rep.Metrics.Verdict)
}

func TestRun_BadWriteKeepsLayout(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "layout.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"type":"Source","fault":"SBE","rate":50}`), 0o644))
	sys, err := system.FromFile("w", 1000, path)
	require.NoError(t, err)
	before := sys.Layout()

	ch := startWatch(t, sys, path)
	replace(t, path, `{"type":"Source","fault":"NOPE","rate":1}`)

	o := next(t, ch)
	assert.Error(t, o.err)
	assert.Same(t, before, sys.Layout())
}

func TestRun_IgnoresOtherFiles(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "layout.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"type":"Source","fault":"SBE","rate":50}`), 0o644))
	sys, err := system.FromFile("w", 1000, path)
	require.NoError(t, err)

	ch := startWatch(t, sys, path)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "other.json"), []byte(`{}`), 0o644))

	select {
	case o := <-ch:
		t.Fatalf("unexpected reload: %+v", o)
	case <-time.After(200 * time.Millisecond):
	}
}

func TestRun_MissingDirectory(t *testing.T) {
	sys := system.New("w", 1)
	err := Run(context.Background(), sys, filepath.Join(t.TempDir(), "nope", "layout.json"), DefaultOptions(), func(system.Report, error) {})
	assert.Error(t, err)
}
