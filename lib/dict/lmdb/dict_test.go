package lmdb

import (
	"bytes"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/lmdict/lmdict/lib/dict"
	dbtesting "github.com/lmdict/lmdict/lib/dict/testing"
	"github.com/lmdict/lmdict/lib/engine"
	lmdbengine "github.com/lmdict/lmdict/lib/engine/lmdb"
)

// openTestDict opens a fresh database in a test temp directory and fails
// the test if the open degrades to a surrogate.
func openTestDict(tb testing.TB, dictFlags dict.Flags) dict.Dictionary {
	tb.Helper()
	name := filepath.Join(tb.TempDir(), "test")
	d := Open(name, os.O_RDWR|os.O_CREATE, dictFlags)
	if _, ok := d.(*dictImpl); !ok {
		tb.Fatalf("Open(%s) returned a degraded handle", name)
	}
	return d
}

func TestDictionary(t *testing.T) {
	dbtesting.RunDictionaryTests(t, DictType, openTestDict)
}

func BenchmarkDictionary(b *testing.B) {
	dbtesting.RunDictionaryBenchmarks(b, DictType, openTestDict)
}

// --------------------------------------------------------------------------
// Encoding Probes
// --------------------------------------------------------------------------

// countingSession counts engine reads so the tests can observe how many
// encoding probes an operation issued.
type countingSession struct {
	engine.Session
	gets    int
	deletes int
}

func (c *countingSession) Get(key []byte) ([]byte, error) {
	c.gets++
	return c.Session.Get(key)
}

func (c *countingSession) Delete(key []byte) error {
	c.deletes++
	return c.Session.Delete(key)
}

func openCountingDict(t *testing.T, writerFlags, readerFlags dict.Flags, readOnly bool) (*dictImpl, *countingSession) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test") + Suffix

	// Seed the database with a writer pinned to one encoding.
	sess, err := lmdbengine.Open(path, engine.Config{
		InitialMapSize: DefaultMapSize,
		SizeIncrement:  sizeIncrement,
		MaxMapSize:     math.MaxInt64,
		APIRetryLimit:  apiRetryLimit,
		BulkRetryLimit: bulkRetryLimit,
	})
	if err != nil {
		t.Fatalf("engine open returned error: %v", err)
	}
	writer := newDictionary("test", sess, writerFlags, 0)
	if _, err := writer.Update("test-key", []byte("test-value")); err != nil {
		t.Fatalf("seed Update returned error: %v", err)
	}
	if err := writer.Close(); err != nil {
		t.Fatalf("seed Close returned error: %v", err)
	}

	sess, err = lmdbengine.Open(path, engine.Config{
		InitialMapSize: DefaultMapSize,
		SizeIncrement:  sizeIncrement,
		MaxMapSize:     math.MaxInt64,
		APIRetryLimit:  apiRetryLimit,
		BulkRetryLimit: bulkRetryLimit,
		ReadOnly:       readOnly,
	})
	if err != nil {
		t.Fatalf("engine reopen returned error: %v", err)
	}
	cs := &countingSession{Session: sess}
	d := newDictionary("test", cs, readerFlags, 0)
	t.Cleanup(func() { d.Close() })
	return d, cs
}

func TestLookupResolvesEncoding(t *testing.T) {
	// The database holds keys without the sentinel byte, but the reader
	// probes the sentinel layout first. The first lookup needs both
	// probes; every lookup after the hit must issue exactly one read.
	d, cs := openCountingDict(t, dict.FlagTryNoSentinel,
		dict.FlagTrySentinel|dict.FlagTryNoSentinel, true)

	if _, found, err := d.Lookup("test-key"); err != nil || !found {
		t.Fatalf("Lookup = found=%v err=%v", found, err)
	}
	if cs.gets != 2 {
		t.Errorf("first Lookup issued %d reads, want 2 (both probes)", cs.gets)
	}

	cs.gets = 0
	if _, found, err := d.Lookup("test-key"); err != nil || !found {
		t.Fatalf("second Lookup = found=%v err=%v", found, err)
	}
	if cs.gets != 1 {
		t.Errorf("Lookup after resolution issued %d reads, want 1", cs.gets)
	}

	if d.Flags()&dict.FlagTrySentinel != 0 {
		t.Errorf("sentinel probe flag still set after a no-sentinel hit")
	}
}

func TestCrossWriterFallback(t *testing.T) {
	// A reader probing both layouts must find entries regardless of which
	// encoding the writer used.
	for _, tc := range []struct {
		name        string
		writerFlags dict.Flags
	}{
		{"SentinelWriter", dict.FlagTrySentinel},
		{"NoSentinelWriter", dict.FlagTryNoSentinel},
	} {
		t.Run(tc.name, func(t *testing.T) {
			d, _ := openCountingDict(t, tc.writerFlags,
				dict.FlagTrySentinel|dict.FlagTryNoSentinel, true)

			value, found, err := d.Lookup("test-key")
			if err != nil {
				t.Fatalf("Lookup returned error: %v", err)
			}
			if !found {
				t.Fatalf("Expected the fallback probe to find the key")
			}
			if !bytes.Equal(value, []byte("test-value")) {
				t.Errorf("Lookup = %q, want %q", value, "test-value")
			}
		})
	}
}

func TestDeleteResolvesEncoding(t *testing.T) {
	d, cs := openCountingDict(t, dict.FlagTryNoSentinel,
		dict.FlagTrySentinel|dict.FlagTryNoSentinel, false)

	// Seed resolution through a lookup and check that the later delete
	// skips the dead probe.
	if _, found, _ := d.Lookup("test-key"); !found {
		t.Fatalf("Expected seeded key to be found")
	}
	cs.deletes = 0
	_, _ = d.Delete("nonexistent-key")
	if cs.deletes != 1 {
		t.Errorf("Delete after resolution issued %d probes, want 1", cs.deletes)
	}
}

func TestUpdateFixesDefaultEncoding(t *testing.T) {
	d := openTestDict(t, 0).(*dictImpl)
	defer d.Close()

	if d.enc != encUnknown {
		t.Fatalf("expected a fresh handle with both probe flags to start undetermined")
	}
	if _, err := d.Update("test-key", []byte("test-value")); err != nil {
		t.Fatalf("Update returned error: %v", err)
	}
	if d.enc != defaultEncoding {
		t.Errorf("first write resolved encoding %d, want platform default %d",
			d.enc, defaultEncoding)
	}
}

// --------------------------------------------------------------------------
// Degraded Opens
// --------------------------------------------------------------------------

func TestDegradedOpen(t *testing.T) {
	// A missing database opened read-only cannot be created. The handle
	// must come back usable, with every operation failing the same way,
	// and the process must stay alive.
	name := filepath.Join(t.TempDir(), "no", "such", "dir", "test")
	d := Open(name, os.O_RDONLY, 0)

	if _, ok := d.(*dictImpl); ok {
		t.Fatalf("expected a degraded handle for an unopenable database")
	}
	if d.Type() != DictType || d.Name() != name {
		t.Errorf("degraded handle identifies as %s:%s, want %s:%s",
			d.Type(), d.Name(), DictType, name)
	}

	_, _, lookupErr := d.Lookup("test-key")
	_, updateErr := d.Update("test-key", []byte("test-value"))
	_, deleteErr := d.Delete("test-key")
	_, _, _, seqErr := d.Sequence(dict.SeqFirst)

	for op, err := range map[string]error{
		"Lookup":   lookupErr,
		"Update":   updateErr,
		"Delete":   deleteErr,
		"Sequence": seqErr,
	} {
		if err == nil {
			t.Errorf("%s on a degraded handle returned nil error", op)
		}
	}

	// Lookup also reports not-found alongside the error.
	if _, found, _ := d.Lookup("test-key"); found {
		t.Errorf("Lookup on a degraded handle reported found=true")
	}

	if err := d.Close(); err != nil {
		t.Errorf("Close on a degraded handle returned error: %v", err)
	}
}

// --------------------------------------------------------------------------
// Bulk Mode
// --------------------------------------------------------------------------

func TestBulkLoadRestart(t *testing.T) {
	dir := t.TempDir()
	name := filepath.Join(dir, "test")

	d := Open(name, os.O_RDWR|os.O_CREATE, dict.FlagBulkUpdate|dict.FlagDupReplace)
	if _, ok := d.(*dictImpl); !ok {
		t.Fatalf("bulk Open returned a degraded handle")
	}

	value := bytes.Repeat([]byte("x"), 1024)
	load := func() error {
		for i := 0; i < 200; i++ {
			key := fmt.Sprintf("test-key-%03d", i)
			if _, err := d.Update(key, value); err != nil {
				return err
			}
		}
		return nil
	}

	// The batch exceeds the initial map by far; the loader replays it on
	// every restart request until the map has grown enough.
	restarts := 0
	for {
		err := load()
		if err == nil {
			break
		}
		if !errors.Is(err, dict.ErrRestartBulk) {
			t.Fatalf("bulk load returned %v, want ErrRestartBulk", err)
		}
		restarts++
		if restarts > bulkRetryLimit {
			t.Fatalf("bulk load did not converge after %d restarts", restarts)
		}
	}
	if restarts == 0 {
		t.Errorf("expected the bulk load to be restarted at least once")
	}
	if err := d.Close(); err != nil {
		t.Fatalf("Close returned error: %v", err)
	}

	// Reopen and verify the committed batch.
	check := Open(name, os.O_RDONLY, 0)
	defer check.Close()
	for i := 0; i < 200; i++ {
		key := fmt.Sprintf("test-key-%03d", i)
		got, found, err := check.Lookup(key)
		if err != nil || !found {
			t.Fatalf("Lookup(%s) after bulk load = found=%v err=%v", key, found, err)
		}
		if !bytes.Equal(got, value) {
			t.Fatalf("Lookup(%s) returned wrong value", key)
		}
	}
}

// --------------------------------------------------------------------------
// Registry and Locking
// --------------------------------------------------------------------------

func TestOpenViaRegistry(t *testing.T) {
	name := filepath.Join(t.TempDir(), "test")
	d := dict.Open(DictType+":"+name, os.O_RDWR|os.O_CREATE, dict.FlagLock)
	defer d.Close()

	if d.Type() != DictType {
		t.Errorf("registry open returned type %q, want %q", d.Type(), DictType)
	}
	if _, err := d.Update("test-key", []byte("test-value")); err != nil {
		t.Fatalf("Update returned error: %v", err)
	}
	if _, found, err := d.Lookup("test-key"); err != nil || !found {
		t.Fatalf("Lookup = found=%v err=%v", found, err)
	}
}

func TestLockedOperations(t *testing.T) {
	// With FlagLock every operation brackets itself with an advisory lock
	// on the database file. The exercise here is that the lock/unlock
	// cycle is balanced, so consecutive operations never deadlock.
	d := openTestDict(t, dict.FlagLock|dict.FlagDupReplace)
	defer d.Close()

	for i := 0; i < 10; i++ {
		key := fmt.Sprintf("test-key-%d", i)
		if _, err := d.Update(key, []byte("test-value")); err != nil {
			t.Fatalf("Update #%d returned error: %v", i, err)
		}
		if _, found, err := d.Lookup(key); err != nil || !found {
			t.Fatalf("Lookup #%d = found=%v err=%v", i, found, err)
		}
	}
	if found, err := d.Delete("test-key-0"); err != nil || !found {
		t.Fatalf("Delete = found=%v err=%v", found, err)
	}
	if _, _, ok, err := d.Sequence(dict.SeqFirst); err != nil || !ok {
		t.Fatalf("Sequence = ok=%v err=%v", ok, err)
	}
}

func TestSuffixAppended(t *testing.T) {
	dir := t.TempDir()
	name := filepath.Join(dir, "test")
	d := openTestDictAt(t, name)
	defer d.Close()

	if _, err := os.Stat(name + Suffix); err != nil {
		t.Errorf("expected database file %s%s to exist: %v", name, Suffix, err)
	}
	if _, err := os.Stat(name); err == nil {
		t.Errorf("expected no database file at the bare name %s", name)
	}
}

func openTestDictAt(tb testing.TB, name string) dict.Dictionary {
	tb.Helper()
	d := Open(name, os.O_RDWR|os.O_CREATE, 0)
	if _, ok := d.(*dictImpl); !ok {
		tb.Fatalf("Open(%s) returned a degraded handle", name)
	}
	return d
}
