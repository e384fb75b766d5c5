package flock

import (
	"os"
	"path/filepath"
	"testing"
)

func openLockFile(t *testing.T) *os.File {
	t.Helper()
	f, err := os.Create(filepath.Join(t.TempDir(), "test.lock"))
	if err != nil {
		t.Fatalf("create lock file: %v", err)
	}
	t.Cleanup(func() { f.Close() })
	return f
}

func TestLockCycle(t *testing.T) {
	f := openLockFile(t)

	// Shared, upgrade to exclusive, downgrade back, release. fcntl locks
	// convert in place, so none of these may block within one process.
	for _, mode := range []Mode{Shared, Exclusive, Shared, Unlock} {
		if err := Lock(f.Fd(), mode); err != nil {
			t.Fatalf("Lock(%v) returned error: %v", mode, err)
		}
	}
}

func TestUnlockWithoutLock(t *testing.T) {
	f := openLockFile(t)
	if err := Lock(f.Fd(), Unlock); err != nil {
		t.Errorf("Unlock on an unlocked file returned error: %v", err)
	}
}

func TestLockBadDescriptor(t *testing.T) {
	f := openLockFile(t)
	fd := f.Fd()
	f.Close()
	if err := Lock(fd, Shared); err == nil {
		t.Errorf("expected Lock on a closed descriptor to fail")
	}
}

func TestModeString(t *testing.T) {
	tests := []struct {
		mode Mode
		want string
	}{
		{Shared, "shared"},
		{Exclusive, "exclusive"},
		{Unlock, "unlock"},
		{Mode(42), "unknown"},
	}
	for _, tc := range tests {
		if got := tc.mode.String(); got != tc.want {
			t.Errorf("Mode(%d).String() = %q, want %q", tc.mode, got, tc.want)
		}
	}
}
