package watchers

import (
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"
)

func TestWatchDeliversDebouncedNotification(t *testing.T) {
	dir := t.TempDir()
	var notified atomic.Int32
	svc := NewService(func(path string) {
		if path == dir {
			notified.Add(1)
		}
	}, nil)
	t.Cleanup(svc.Close)

	if err := svc.Watch(dir); err != nil {
		t.Fatalf("Watch: %v", err)
	}

	// A burst of writes should coalesce into one notification.
	for i := 0; i < 5; i++ {
		if err := os.WriteFile(filepath.Join(dir, "file.txt"), []byte("x"), 0o644); err != nil {
			t.Fatalf("write: %v", err)
		}
		time.Sleep(10 * time.Millisecond)
	}

	deadline := time.Now().Add(3 * time.Second)
	for notified.Load() == 0 && time.Now().Before(deadline) {
		time.Sleep(20 * time.Millisecond)
	}
	if got := notified.Load(); got != 1 {
		t.Fatalf("notifications = %d, want 1", got)
	}
}

func TestIgnoredDirectoriesAreSilent(t *testing.T) {
	dir := t.TempDir()
	if err := os.MkdirAll(filepath.Join(dir, "node_modules"), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}

	var notified atomic.Int32
	svc := NewService(func(string) { notified.Add(1) }, nil)
	t.Cleanup(svc.Close)

	if err := svc.Watch(dir); err != nil {
		t.Fatalf("Watch: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "node_modules", "pkg.js"), []byte("x"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	time.Sleep(2 * debounceWindow)
	if got := notified.Load(); got != 0 {
		t.Fatalf("notifications = %d, want 0 for ignored directory", got)
	}
}

func TestUnwatchStopsNotifications(t *testing.T) {
	dir := t.TempDir()
	var notified atomic.Int32
	svc := NewService(func(string) { notified.Add(1) }, nil)

	if err := svc.Watch(dir); err != nil {
		t.Fatalf("Watch: %v", err)
	}
	svc.Unwatch(dir)

	if err := os.WriteFile(filepath.Join(dir, "file.txt"), []byte("x"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	time.Sleep(2 * debounceWindow)
	if got := notified.Load(); got != 0 {
		t.Fatalf("notifications = %d, want 0 after unwatch", got)
	}
}
