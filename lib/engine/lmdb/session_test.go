package lmdb

import (
	"bytes"
	"errors"
	"fmt"
	"math"
	"path/filepath"
	"testing"

	"github.com/lmdict/lmdict/lib/engine"
)

func testConfig() engine.Config {
	return engine.Config{
		InitialMapSize: 8192,
		SizeIncrement:  2,
		MaxMapSize:     math.MaxInt64,
		APIRetryLimit:  2,
		BulkRetryLimit: 128,
	}
}

func openTestSession(t testing.TB, cfg engine.Config) (engine.Session, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.lmdb")
	s, err := Open(path, cfg)
	if err != nil {
		t.Fatalf("Open returned error: %v", err)
	}
	return s, path
}

func TestPutGetDelete(t *testing.T) {
	s, _ := openTestSession(t, testConfig())
	defer s.Close()

	key := []byte("test-key")
	value := []byte("test-value")

	if err := s.Put(key, value, false); err != nil {
		t.Fatalf("Put returned error: %v", err)
	}

	got, err := s.Get(key)
	if err != nil {
		t.Fatalf("Get returned error: %v", err)
	}
	if !bytes.Equal(got, value) {
		t.Errorf("Get = %q, want %q", got, value)
	}

	// Overwrite refused without the overwrite flag.
	if err := s.Put(key, []byte("other"), false); !errors.Is(err, engine.ErrKeyExists) {
		t.Errorf("Put without overwrite = %v, want ErrKeyExists", err)
	}

	// Overwrite allowed with it.
	if err := s.Put(key, []byte("other"), true); err != nil {
		t.Fatalf("Put with overwrite returned error: %v", err)
	}

	if err := s.Delete(key); err != nil {
		t.Fatalf("Delete returned error: %v", err)
	}
	if _, err := s.Get(key); !errors.Is(err, engine.ErrNotFound) {
		t.Errorf("Get after Delete = %v, want ErrNotFound", err)
	}
	if err := s.Delete(key); !errors.Is(err, engine.ErrNotFound) {
		t.Errorf("second Delete = %v, want ErrNotFound", err)
	}
}

func TestCursor(t *testing.T) {
	s, _ := openTestSession(t, testConfig())
	defer s.Close()

	want := map[string]string{
		"key-a": "value-a",
		"key-b": "value-b",
		"key-c": "value-c",
	}
	for k, v := range want {
		if err := s.Put([]byte(k), []byte(v), false); err != nil {
			t.Fatalf("Put(%s) returned error: %v", k, err)
		}
	}

	seen := make(map[string]string)
	op := engine.First
	for {
		key, value, err := s.CursorGet(op)
		if errors.Is(err, engine.ErrNotFound) {
			break
		}
		if err != nil {
			t.Fatalf("CursorGet returned error: %v", err)
		}
		seen[string(key)] = string(value)
		op = engine.Next
	}
	if len(seen) != len(want) {
		t.Errorf("cursor visited %d entries, want %d", len(seen), len(want))
	}
	for k, v := range want {
		if seen[k] != v {
			t.Errorf("cursor saw %q=%q, want %q", k, seen[k], v)
		}
	}

	// The cursor survives the end of the keyspace; First repositions it.
	if key, _, err := s.CursorGet(engine.First); err != nil || string(key) != "key-a" {
		t.Errorf("CursorGet(First) after end = %q, %v", key, err)
	}
}

func TestMapGrowth(t *testing.T) {
	var growth int
	cfg := testConfig()
	cfg.Notify = func(ev engine.Event) {
		if ev.Reason == engine.EventMapFull {
			growth++
		}
	}

	s, _ := openTestSession(t, cfg)
	defer s.Close()

	// Push well past the initial 8 KiB map. Each call may double the map
	// up to the API retry limit; across many calls the map grows as far
	// as needed.
	value := bytes.Repeat([]byte("x"), 1024)
	for i := 0; i < 100; i++ {
		key := []byte(fmt.Sprintf("test-key-%03d", i))
		if err := s.Put(key, value, false); err != nil {
			t.Fatalf("Put #%d returned error: %v", i, err)
		}
	}

	if growth == 0 {
		t.Errorf("expected at least one map growth notification")
	}

	info, err := s.Info()
	if err != nil {
		t.Fatalf("Info returned error: %v", err)
	}
	if info.MapSize <= 8192 {
		t.Errorf("map size %d did not grow past the initial size", info.MapSize)
	}
	if info.Entries != 100 {
		t.Errorf("entries = %d, want 100", info.Entries)
	}

	// Everything written across growth retries must be readable.
	for i := 0; i < 100; i++ {
		key := []byte(fmt.Sprintf("test-key-%03d", i))
		got, err := s.Get(key)
		if err != nil {
			t.Fatalf("Get #%d returned error: %v", i, err)
		}
		if !bytes.Equal(got, value) {
			t.Fatalf("Get #%d returned wrong value", i)
		}
	}
}

func TestBulkRestart(t *testing.T) {
	cfg := testConfig()
	cfg.Bulk = true

	path := filepath.Join(t.TempDir(), "test.lmdb")
	s, err := Open(path, cfg)
	if err != nil {
		t.Fatalf("Open returned error: %v", err)
	}

	value := bytes.Repeat([]byte("x"), 1024)
	load := func() error {
		for i := 0; i < 200; i++ {
			key := []byte(fmt.Sprintf("test-key-%03d", i))
			if err := s.Put(key, value, true); err != nil {
				return err
			}
		}
		return nil
	}

	// 200 KiB into an 8 KiB map: the batch must be restarted several
	// times while the map doubles.
	restarts := 0
	for {
		err := load()
		if err == nil {
			break
		}
		if !errors.Is(err, engine.ErrRestartBulk) {
			t.Fatalf("bulk load returned %v, want ErrRestartBulk", err)
		}
		restarts++
		if restarts > cfg.BulkRetryLimit {
			t.Fatalf("bulk load did not converge after %d restarts", restarts)
		}
	}
	if restarts == 0 {
		t.Errorf("expected the bulk transaction to restart at least once")
	}

	if err := s.Close(); err != nil {
		t.Fatalf("Close returned error: %v", err)
	}

	// The committed batch must be fully visible to a fresh session.
	check, err := Open(path, testConfig())
	if err != nil {
		t.Fatalf("reopen returned error: %v", err)
	}
	defer check.Close()
	for i := 0; i < 200; i++ {
		key := []byte(fmt.Sprintf("test-key-%03d", i))
		if _, err := check.Get(key); err != nil {
			t.Fatalf("Get #%d after bulk load returned error: %v", i, err)
		}
	}
}

func TestOpenMissingReadOnly(t *testing.T) {
	cfg := testConfig()
	cfg.ReadOnly = true
	if _, err := Open(filepath.Join(t.TempDir(), "missing.lmdb"), cfg); err == nil {
		t.Errorf("expected read-only open of a missing file to fail")
	}
}
