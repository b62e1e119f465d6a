package watcher

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestDebouncer_CoalescesRapidTriggers(t *testing.T) {
	d := NewDebouncer(50 * time.Millisecond)

	var calls atomic.Int32
	for i := 0; i < 10; i++ {
		d.Trigger(func() { calls.Add(1) })
		time.Sleep(10 * time.Millisecond)
	}
	time.Sleep(150 * time.Millisecond)

	if n := calls.Load(); n != 1 {
		t.Errorf("expected 1 callback invocation, got %d", n)
	}
}

func TestDebouncer_LastTriggerWins(t *testing.T) {
	d := NewDebouncer(30 * time.Millisecond)

	var got atomic.Int32
	d.Trigger(func() { got.Store(1) })
	d.Trigger(func() { got.Store(2) })
	time.Sleep(100 * time.Millisecond)

	if v := got.Load(); v != 2 {
		t.Errorf("ran trigger %d, want 2", v)
	}
}

func TestDebouncer_Cancel(t *testing.T) {
	d := NewDebouncer(50 * time.Millisecond)

	var called atomic.Bool
	d.Trigger(func() { called.Store(true) })
	d.Cancel()
	time.Sleep(100 * time.Millisecond)

	if called.Load() {
		t.Error("callback should not run after cancel")
	}
}

func TestDebouncer_DefaultDuration(t *testing.T) {
	if d := NewDebouncer(0); d.Duration() != DefaultDebounceDuration {
		t.Errorf("expected default duration %v, got %v", DefaultDebounceDuration, d.Duration())
	}
}

func writeConfig(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}
}

// replaceConfig saves the way config.Manager does: temp file plus rename.
func replaceConfig(t *testing.T, path, content string) {
	t.Helper()
	tmp := path + ".tmp"
	writeConfig(t, tmp, content)
	if err := os.Rename(tmp, path); err != nil {
		t.Fatal(err)
	}
}

func waitChanged(t *testing.T, w *Watcher, timeout time.Duration) bool {
	t.Helper()
	select {
	case <-w.Changed():
		return true
	case <-time.After(timeout):
		return false
	}
}

func startWatcher(t *testing.T, path string, opts ...Option) *Watcher {
	t.Helper()
	w, err := New(path, opts...)
	if err != nil {
		t.Fatal(err)
	}
	if err := w.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(w.Stop)
	return w
}

func TestWatcher_DetectsAtomicSave(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	writeConfig(t, path, "github:\n  token: a\n")

	var mu sync.Mutex
	changes := 0
	w := startWatcher(t, path,
		WithDebounceDuration(50*time.Millisecond),
		WithOnChange(func() {
			mu.Lock()
			changes++
			mu.Unlock()
		}),
	)
	time.Sleep(100 * time.Millisecond)

	replaceConfig(t, path, "github:\n  token: b\n")

	if !waitChanged(t, w, 2*time.Second) {
		t.Fatal("expected change to be detected")
	}
	mu.Lock()
	defer mu.Unlock()
	if changes != 1 {
		t.Errorf("onChange ran %d times, want 1", changes)
	}
}

func TestWatcher_IgnoresSiblingFiles(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	writeConfig(t, path, "a")

	w := startWatcher(t, path, WithDebounceDuration(30*time.Millisecond))
	time.Sleep(100 * time.Millisecond)

	writeConfig(t, filepath.Join(dir, "other.yaml"), "b")
	if waitChanged(t, w, 300*time.Millisecond) {
		t.Error("a sibling file should not count as a settings change")
	}
}

func TestWatcher_PollingFallback(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	writeConfig(t, path, "initial")

	w := startWatcher(t, path,
		WithForcePoll(true),
		WithPollInterval(50*time.Millisecond),
		WithDebounceDuration(20*time.Millisecond),
	)
	if !w.IsPolling() {
		t.Fatal("expected polling mode")
	}

	time.Sleep(100 * time.Millisecond)
	writeConfig(t, path, "modified content, longer")

	if !waitChanged(t, w, 2*time.Second) {
		t.Error("polling should detect the change")
	}
}

func TestWatcher_PollingSeesFileCreatedLater(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")

	w := startWatcher(t, path,
		WithForcePoll(true),
		WithPollInterval(30*time.Millisecond),
		WithDebounceDuration(10*time.Millisecond),
	)
	time.Sleep(60 * time.Millisecond)
	writeConfig(t, path, "first save")

	if !waitChanged(t, w, 2*time.Second) {
		t.Error("creating the file should count as a change")
	}
}

func TestWatcher_EnvForcePoll(t *testing.T) {
	t.Setenv(ForcePollEnv, "yes")
	path := filepath.Join(t.TempDir(), "config.yaml")
	writeConfig(t, path, "x")

	w := startWatcher(t, path)
	if !w.IsPolling() {
		t.Error("expected polling when " + ForcePollEnv + " is set")
	}
}

func TestWatcher_MissingDirectoryPolls(t *testing.T) {
	path := filepath.Join(t.TempDir(), "not-yet", "config.yaml")
	w := startWatcher(t, path)
	if !w.IsPolling() {
		t.Error("an unwatchable directory should fall back to polling")
	}
}

func TestWatcher_FileRemoved(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	writeConfig(t, path, "x")

	errCh := make(chan error, 4)
	startWatcher(t, path,
		WithForcePoll(true),
		WithPollInterval(30*time.Millisecond),
		WithOnError(func(err error) {
			select {
			case errCh <- err:
			default:
			}
		}),
	)
	time.Sleep(60 * time.Millisecond)
	if err := os.Remove(path); err != nil {
		t.Fatal(err)
	}

	select {
	case err := <-errCh:
		if !errors.Is(err, ErrFileRemoved) {
			t.Errorf("got %v, want ErrFileRemoved", err)
		}
	case <-time.After(time.Second):
		t.Error("removal was not reported")
	}
}

func TestWatcher_StartStop(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	w, err := New(path)
	if err != nil {
		t.Fatal(err)
	}
	if w.IsStarted() {
		t.Error("new watcher should not be started")
	}
	if err := w.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	if err := w.Start(context.Background()); !errors.Is(err, ErrAlreadyStarted) {
		t.Errorf("second Start = %v, want ErrAlreadyStarted", err)
	}
	w.Stop()
	w.Stop()
	if w.IsStarted() {
		t.Error("watcher should be stopped")
	}
	if err := w.Start(context.Background()); err != nil {
		t.Errorf("restart after Stop: %v", err)
	}
	w.Stop()
}

func TestWatcher_ContextCancelStopsLoop(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	writeConfig(t, path, "x")
	w, err := New(path, WithForcePoll(true), WithPollInterval(20*time.Millisecond), WithDebounceDuration(10*time.Millisecond))
	if err != nil {
		t.Fatal(err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	if err := w.Start(ctx); err != nil {
		t.Fatal(err)
	}
	cancel()
	time.Sleep(60 * time.Millisecond)

	writeConfig(t, path, "changed after cancel")
	if waitChanged(t, w, 200*time.Millisecond) {
		t.Error("no change should be reported after the context is cancelled")
	}
	w.Stop()
}

func TestWatcher_PathIsAbsolute(t *testing.T) {
	w, err := New("config.yaml")
	if err != nil {
		t.Fatal(err)
	}
	if !filepath.IsAbs(w.Path()) {
		t.Errorf("path %q is not absolute", w.Path())
	}
	if w.PollInterval() != DefaultPollInterval {
		t.Errorf("poll interval = %v", w.PollInterval())
	}
}

func TestEnvBool(t *testing.T) {
	tests := []struct {
		value string
		want  bool
	}{
		{"1", true},
		{"true", true},
		{" YES ", true},
		{"on", true},
		{"0", false},
		{"false", false},
		{"", false},
		{"maybe", false},
	}
	for _, tt := range tests {
		t.Setenv("GHTREE_TEST_BOOL", tt.value)
		if got := envBool("GHTREE_TEST_BOOL"); got != tt.want {
			t.Errorf("envBool(%q) = %v, want %v", tt.value, got, tt.want)
		}
	}
}
