package testing

import (
	"fmt"
	"testing"

	"github.com/lmdict/lmdict/lib/dict"
)

// RunDictionaryBenchmarks runs all benchmarks for a dictionary
// implementation. Dictionaries are single-goroutine objects, so unlike a
// concurrent store benchmark everything here runs serially.
func RunDictionaryBenchmarks(b *testing.B, name string, factory DictFactory) {

	b.Run("Update", func(b *testing.B) {
		benchmarkUpdate(b, factory(b, dict.FlagDupReplace))
	})

	b.Run("UpdateExisting", func(b *testing.B) {
		benchmarkUpdateExisting(b, factory(b, dict.FlagDupReplace))
	})

	b.Run("Lookup", func(b *testing.B) {
		benchmarkLookup(b, factory(b, dict.FlagDupReplace))
	})

	b.Run("Lookup(miss)", func(b *testing.B) {
		benchmarkLookupMiss(b, factory(b, dict.FlagDupReplace))
	})

	b.Run("Delete", func(b *testing.B) {
		benchmarkDelete(b, factory(b, dict.FlagDupReplace))
	})

	b.Run("Sequence", func(b *testing.B) {
		benchmarkSequence(b, factory(b, dict.FlagDupReplace))
	})
}

// --------------------------------------------------------------------------
// Benchmark functions
// --------------------------------------------------------------------------

func benchmarkUpdate(b *testing.B, d dict.Dictionary) {
	b.Cleanup(func() {
		d.Close()
	})

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		key := fmt.Sprintf("test-key-%d", i)
		value := []byte(fmt.Sprintf("test-value-%d", i))
		if _, err := d.Update(key, value); err != nil {
			b.Fatal(err)
		}
	}
}

func benchmarkUpdateExisting(b *testing.B, d dict.Dictionary) {
	b.Cleanup(func() {
		d.Close()
	})

	if _, err := d.Update("test-key", []byte("test-value")); err != nil {
		b.Fatal(err)
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		value := []byte(fmt.Sprintf("test-value-%d", i))
		if _, err := d.Update("test-key", value); err != nil {
			b.Fatal(err)
		}
	}
}

func benchmarkLookup(b *testing.B, d dict.Dictionary) {
	b.Cleanup(func() {
		d.Close()
	})

	numKeys := 1000
	for i := 0; i < numKeys; i++ {
		key := fmt.Sprintf("test-key-%d", i)
		value := []byte(fmt.Sprintf("test-value-%d", i))
		if _, err := d.Update(key, value); err != nil {
			b.Fatal(err)
		}
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		key := fmt.Sprintf("test-key-%d", i%numKeys)
		if _, found, _ := d.Lookup(key); !found {
			b.Fatalf("key %s not found", key)
		}
	}
}

func benchmarkLookupMiss(b *testing.B, d dict.Dictionary) {
	b.Cleanup(func() {
		d.Close()
	})

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, found, _ := d.Lookup("nonexistent-key"); found {
			b.Fatal("unexpected hit")
		}
	}
}

func benchmarkDelete(b *testing.B, d dict.Dictionary) {
	b.Cleanup(func() {
		d.Close()
	})

	b.StopTimer()
	for i := 0; i < b.N; i++ {
		key := fmt.Sprintf("test-key-%d", i)
		if _, err := d.Update(key, []byte("test-value")); err != nil {
			b.Fatal(err)
		}
	}
	b.StartTimer()

	for i := 0; i < b.N; i++ {
		key := fmt.Sprintf("test-key-%d", i)
		if found, _ := d.Delete(key); !found {
			b.Fatalf("key %s not found", key)
		}
	}
}

func benchmarkSequence(b *testing.B, d dict.Dictionary) {
	b.Cleanup(func() {
		d.Close()
	})

	numKeys := 1000
	for i := 0; i < numKeys; i++ {
		key := fmt.Sprintf("test-key-%d", i)
		if _, err := d.Update(key, []byte("test-value")); err != nil {
			b.Fatal(err)
		}
	}

	b.ResetTimer()
	fn := dict.SeqFirst
	for i := 0; i < b.N; i++ {
		_, _, ok, err := d.Sequence(fn)
		if err != nil {
			b.Fatal(err)
		}
		if ok {
			fn = dict.SeqNext
		} else {
			fn = dict.SeqFirst
		}
	}
}
