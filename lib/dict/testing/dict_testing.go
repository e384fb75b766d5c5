package testing

import (
	"bytes"
	"fmt"
	"testing"

	"github.com/lmdict/lmdict/lib/dict"
	"github.com/lmdict/lmdict/lib/logging"
)

// DictFactory opens a fresh, empty dictionary with the given flags. Each
// call must yield an independent database (a new file in a test temp
// directory); the suite closes what it opens.
type DictFactory func(tb testing.TB, dictFlags dict.Flags) dict.Dictionary

// RunDictionaryTests runs the conformance suite for a dictionary
// implementation.
func RunDictionaryTests(t *testing.T, name string, factory DictFactory) {
	t.Run(name, func(t *testing.T) {
		t.Run("UpdateLookup", func(t *testing.T) {
			testUpdateLookup(t, factory)
		})

		t.Run("LookupMissing", func(t *testing.T) {
			testLookupMissing(t, factory)
		})

		t.Run("DuplicateIgnore", func(t *testing.T) {
			testDuplicateIgnore(t, factory)
		})

		t.Run("DuplicateReplace", func(t *testing.T) {
			testDuplicateReplace(t, factory)
		})

		t.Run("DuplicateFatal", func(t *testing.T) {
			testDuplicateFatal(t, factory)
		})

		t.Run("Delete", func(t *testing.T) {
			testDelete(t, factory)
		})

		t.Run("DeleteMissing", func(t *testing.T) {
			testDeleteMissing(t, factory)
		})

		t.Run("FoldKey", func(t *testing.T) {
			testFoldKey(t, factory)
		})

		t.Run("Sequence", func(t *testing.T) {
			testSequence(t, factory)
		})

		t.Run("SequenceEmpty", func(t *testing.T) {
			testSequenceEmpty(t, factory)
		})

		t.Run("SequenceInvalidFunc", func(t *testing.T) {
			testSequenceInvalidFunc(t, factory)
		})

		t.Run("EdgeCases", func(t *testing.T) {
			testEdgeCases(t, factory)
		})

		t.Run("RealisticUsage", func(t *testing.T) {
			testRealisticUsage(t, factory)
		})
	})
}

// --------------------------------------------------------------------------
// Helper functions
// --------------------------------------------------------------------------

type fatalCall struct {
	msg string
}

// CatchFatal runs fn with the logging fatal hook replaced, so that a
// would-be process termination is reported back to the test instead.
func CatchFatal(tb testing.TB, fn func()) (msg string, fired bool) {
	tb.Helper()
	prev := logging.FatalfHook
	logging.FatalfHook = func(_ logging.ILogger, format string, args ...interface{}) {
		panic(fatalCall{msg: fmt.Sprintf(format, args...)})
	}
	defer func() { logging.FatalfHook = prev }()
	defer func() {
		if r := recover(); r != nil {
			fc, ok := r.(fatalCall)
			if !ok {
				panic(r)
			}
			msg = fc.msg
			fired = true
		}
	}()
	fn()
	return
}

func mustUpdate(tb testing.TB, d dict.Dictionary, key, value string) {
	tb.Helper()
	status, err := d.Update(key, []byte(value))
	if err != nil {
		tb.Fatalf("Update(%q) returned error: %v", key, err)
	}
	if status != dict.StatusSuccess {
		tb.Fatalf("Update(%q) returned status %v, want success", key, status)
	}
}

// --------------------------------------------------------------------------
// Test functions
// --------------------------------------------------------------------------

func testUpdateLookup(t *testing.T, factory DictFactory) {
	// The round trip must hold regardless of the encoding in effect.
	for _, tc := range []struct {
		name  string
		flags dict.Flags
	}{
		{"DefaultEncoding", 0},
		{"SentinelEncoding", dict.FlagTrySentinel},
		{"NoSentinelEncoding", dict.FlagTryNoSentinel},
	} {
		t.Run(tc.name, func(t *testing.T) {
			d := factory(t, tc.flags)
			defer d.Close()

			mustUpdate(t, d, "test-key", "test-value1")

			value, found, err := d.Lookup("test-key")
			if err != nil {
				t.Fatalf("Lookup returned error: %v", err)
			}
			if !found {
				t.Fatalf("Expected key to exist after Update")
			}
			if !bytes.Equal(value, []byte("test-value1")) {
				t.Errorf("Expected value %q, got %q", "test-value1", value)
			}

			// The returned buffer must be owned by the caller.
			value[0] = 'X'
			value, _, _ = d.Lookup("test-key")
			if !bytes.Equal(value, []byte("test-value1")) {
				t.Errorf("Lookup result aliases internal state")
			}
		})
	}
}

func testLookupMissing(t *testing.T, factory DictFactory) {
	d := factory(t, 0)
	defer d.Close()

	value, found, err := d.Lookup("nonexistent-key")
	if err != nil {
		t.Fatalf("Lookup returned error: %v", err)
	}
	if found {
		t.Errorf("Expected nonexistent key to return found=false, got value %q", value)
	}
}

func testDuplicateIgnore(t *testing.T, factory DictFactory) {
	d := factory(t, dict.FlagDupIgnore)
	defer d.Close()

	mustUpdate(t, d, "test-key", "original")

	status, err := d.Update("test-key", []byte("replacement"))
	if err != nil {
		t.Fatalf("duplicate Update returned error: %v", err)
	}
	if status != dict.StatusDuplicate {
		t.Errorf("Expected duplicate status, got %v", status)
	}

	value, _, _ := d.Lookup("test-key")
	if !bytes.Equal(value, []byte("original")) {
		t.Errorf("Expected original value to be retained, got %q", value)
	}
}

func testDuplicateReplace(t *testing.T, factory DictFactory) {
	d := factory(t, dict.FlagDupReplace)
	defer d.Close()

	mustUpdate(t, d, "test-key", "original")
	mustUpdate(t, d, "test-key", "replacement")

	value, _, _ := d.Lookup("test-key")
	if !bytes.Equal(value, []byte("replacement")) {
		t.Errorf("Expected replacement value, got %q", value)
	}
}

func testDuplicateFatal(t *testing.T, factory DictFactory) {
	d := factory(t, 0)
	defer d.Close()

	mustUpdate(t, d, "test-key", "original")

	msg, fired := CatchFatal(t, func() {
		_, _ = d.Update("test-key", []byte("replacement"))
	})
	if !fired {
		t.Fatalf("Expected duplicate update without a duplicate policy to be fatal")
	}
	if msg == "" {
		t.Errorf("Expected a diagnostic message on the fatal path")
	}
}

func testDelete(t *testing.T, factory DictFactory) {
	d := factory(t, 0)
	defer d.Close()

	mustUpdate(t, d, "test-key", "test-value")

	found, err := d.Delete("test-key")
	if err != nil {
		t.Fatalf("Delete returned error: %v", err)
	}
	if !found {
		t.Errorf("Expected Delete to find the key")
	}

	if _, found, _ := d.Lookup("test-key"); found {
		t.Errorf("Expected key to be gone after Delete")
	}
}

func testDeleteMissing(t *testing.T, factory DictFactory) {
	// A missing key is a benign outcome for every encoding configuration.
	for _, tc := range []struct {
		name  string
		flags dict.Flags
	}{
		{"DefaultEncoding", 0},
		{"SentinelEncoding", dict.FlagTrySentinel},
		{"NoSentinelEncoding", dict.FlagTryNoSentinel},
	} {
		t.Run(tc.name, func(t *testing.T) {
			d := factory(t, tc.flags)
			defer d.Close()

			found, err := d.Delete("nonexistent-key")
			if err != nil {
				t.Fatalf("Delete returned error: %v", err)
			}
			if found {
				t.Errorf("Expected Delete of a missing key to report found=false")
			}
		})
	}
}

func testFoldKey(t *testing.T, factory DictFactory) {
	d := factory(t, dict.FlagFoldKey)
	defer d.Close()

	mustUpdate(t, d, "Test-Key", "test-value")

	if _, found, _ := d.Lookup("TEST-KEY"); !found {
		t.Errorf("Expected folded lookup to find the key")
	}
	if _, found, _ := d.Lookup("test-key"); !found {
		t.Errorf("Expected lowercase lookup to find the key")
	}
}

func testSequence(t *testing.T, factory DictFactory) {
	d := factory(t, 0)
	defer d.Close()

	want := map[string]string{
		"key-a": "value-a",
		"key-b": "value-b",
		"key-c": "value-c",
	}
	for k, v := range want {
		mustUpdate(t, d, k, v)
	}

	// FIRST then repeated NEXT must visit every entry exactly once.
	seen := make(map[string]string)
	fn := dict.SeqFirst
	for {
		key, value, ok, err := d.Sequence(fn)
		if err != nil {
			t.Fatalf("Sequence returned error: %v", err)
		}
		if !ok {
			break
		}
		if _, dup := seen[key]; dup {
			t.Errorf("Sequence visited key %q twice", key)
		}
		seen[key] = string(value)
		fn = dict.SeqNext
	}

	if len(seen) != len(want) {
		t.Errorf("Sequence visited %d entries, want %d", len(seen), len(want))
	}
	for k, v := range want {
		if seen[k] != v {
			t.Errorf("Sequence saw %q=%q, want %q", k, seen[k], v)
		}
	}
}

func testSequenceEmpty(t *testing.T, factory DictFactory) {
	d := factory(t, 0)
	defer d.Close()

	if _, _, ok, err := d.Sequence(dict.SeqFirst); err != nil || ok {
		t.Errorf("Expected end-of-scan on an empty dictionary, got ok=%v err=%v", ok, err)
	}
}

func testSequenceInvalidFunc(t *testing.T, factory DictFactory) {
	d := factory(t, 0)
	defer d.Close()

	defer func() {
		if recover() == nil {
			t.Errorf("Expected an invalid sequence function to panic")
		}
	}()
	_, _, _, _ = d.Sequence(dict.SeqFunc(42))
}

func testEdgeCases(t *testing.T, factory DictFactory) {
	d := factory(t, dict.FlagDupReplace)
	defer d.Close()

	// Empty value.
	mustUpdate(t, d, "empty-value", "")
	if _, found, _ := d.Lookup("empty-value"); !found {
		t.Errorf("Expected key with empty value to be found")
	}

	// Value with embedded zero bytes.
	binVal := "with\x00zero"
	mustUpdate(t, d, "binary-value", binVal)
	if value, _, _ := d.Lookup("binary-value"); !bytes.Equal(value, []byte(binVal)) {
		t.Errorf("Expected value %q, got %q", binVal, value)
	}

	// Large value spanning several pages.
	large := bytes.Repeat([]byte("x"), 64*1024)
	if status, err := d.Update("large-value", large); err != nil || status != dict.StatusSuccess {
		t.Fatalf("Update of large value failed: status=%v err=%v", status, err)
	}
	if value, _, _ := d.Lookup("large-value"); !bytes.Equal(value, large) {
		t.Errorf("Large value round trip failed")
	}
}

func testRealisticUsage(t *testing.T, factory DictFactory) {
	d := factory(t, 0)
	defer d.Close()

	mustUpdate(t, d, "alice", "1")
	mustUpdate(t, d, "bob", "2")

	value, found, err := d.Lookup("alice")
	if err != nil || !found {
		t.Fatalf("Lookup(alice) = found=%v err=%v", found, err)
	}
	if !bytes.Equal(value, []byte("1")) {
		t.Errorf("Lookup(alice) = %q, want \"1\"", value)
	}

	found, err = d.Delete("bob")
	if err != nil || !found {
		t.Fatalf("Delete(bob) = found=%v err=%v", found, err)
	}

	key, value, ok, err := d.Sequence(dict.SeqFirst)
	if err != nil || !ok {
		t.Fatalf("Sequence(FIRST) = ok=%v err=%v", ok, err)
	}
	if key != "alice" || !bytes.Equal(value, []byte("1")) {
		t.Errorf("Sequence(FIRST) = %q=%q, want alice=1", key, value)
	}

	if _, _, ok, _ := d.Sequence(dict.SeqNext); ok {
		t.Errorf("Expected end-of-scan after the only remaining entry")
	}
}
