package dict_test

import (
	"errors"
	"strings"
	"testing"

	"github.com/lmdict/lmdict/lib/dict"
	dbtesting "github.com/lmdict/lmdict/lib/dict/testing"
)

// memImpl is a map-backed dictionary used to exercise the registry without
// pulling in a database adapter.
type memImpl struct {
	name    string
	flags   dict.Flags
	entries map[string]string
}

func newMem(name string, _ int, dictFlags dict.Flags) dict.Dictionary {
	return &memImpl{name: name, flags: dictFlags, entries: make(map[string]string)}
}

func (m *memImpl) Type() string      { return "memtest" }
func (m *memImpl) Name() string      { return m.name }
func (m *memImpl) Flags() dict.Flags { return m.flags }

func (m *memImpl) Lookup(key string) ([]byte, bool, error) {
	v, ok := m.entries[key]
	if !ok {
		return nil, false, nil
	}
	return []byte(v), true, nil
}

func (m *memImpl) Update(key string, value []byte) (dict.Status, error) {
	m.entries[key] = string(value)
	return dict.StatusSuccess, nil
}

func (m *memImpl) Delete(key string) (bool, error) {
	_, ok := m.entries[key]
	delete(m.entries, key)
	return ok, nil
}

func (m *memImpl) Sequence(dict.SeqFunc) (string, []byte, bool, error) {
	return "", nil, false, nil
}

func (m *memImpl) Close() error { return nil }

func init() {
	dict.Register("memtest", newMem)
}

// --------------------------------------------------------------------------
// Registry
// --------------------------------------------------------------------------

func TestOpenRoutesToRegisteredType(t *testing.T) {
	d := dict.Open("memtest:example", 0, dict.FlagFoldKey)
	defer d.Close()

	if d.Type() != "memtest" {
		t.Errorf("Type = %q, want %q", d.Type(), "memtest")
	}
	if d.Name() != "example" {
		t.Errorf("Name = %q, want %q", d.Name(), "example")
	}
	if d.Flags() != dict.FlagFoldKey {
		t.Errorf("Flags = %v, want %v", d.Flags(), dict.FlagFoldKey)
	}
}

func TestOpenKeepsColonsInName(t *testing.T) {
	// Only the first colon separates type from name; the name itself may
	// contain more.
	d := dict.Open("memtest:host:port", 0, 0)
	defer d.Close()

	if d.Name() != "host:port" {
		t.Errorf("Name = %q, want %q", d.Name(), "host:port")
	}
}

func TestOpenUnknownType(t *testing.T) {
	msg, fired := dbtesting.CatchFatal(t, func() {
		_ = dict.Open("no-such-type:example", 0, 0)
	})
	if !fired {
		t.Fatalf("expected an unknown dictionary type to be fatal")
	}
	if !strings.Contains(msg, "no-such-type") {
		t.Errorf("diagnostic %q does not name the offending type", msg)
	}
}

func TestOpenBadSpec(t *testing.T) {
	for _, spec := range []string{"plainname", ":name", "type:", ""} {
		if _, fired := dbtesting.CatchFatal(t, func() {
			_ = dict.Open(spec, 0, 0)
		}); !fired {
			t.Errorf("expected spec %q to be rejected", spec)
		}
	}
}

func TestRegisterDuplicate(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Errorf("expected duplicate registration to panic")
		}
	}()
	dict.Register("memtest", newMem)
}

func TestTypes(t *testing.T) {
	for _, name := range dict.Types() {
		if name == "memtest" {
			return
		}
	}
	t.Errorf("Types() = %v, missing %q", dict.Types(), "memtest")
}

// --------------------------------------------------------------------------
// Surrogate
// --------------------------------------------------------------------------

func TestSurrogate(t *testing.T) {
	d := dict.NewSurrogate("memtest", "example", 0, dict.FlagLock,
		"open database %s: %v", "example.db", errors.New("permission denied"))

	if d.Type() != "memtest" || d.Name() != "example" {
		t.Errorf("surrogate identifies as %s:%s, want memtest:example", d.Type(), d.Name())
	}
	if d.Flags() != dict.FlagLock {
		t.Errorf("Flags = %v, want %v", d.Flags(), dict.FlagLock)
	}

	_, _, lookupErr := d.Lookup("key")
	_, updateErr := d.Update("key", []byte("value"))
	_, deleteErr := d.Delete("key")
	_, _, _, seqErr := d.Sequence(dict.SeqFirst)

	for op, err := range map[string]error{
		"lookup":   lookupErr,
		"update":   updateErr,
		"delete":   deleteErr,
		"sequence": seqErr,
	} {
		if err == nil {
			t.Errorf("%s returned nil error", op)
			continue
		}
		if !strings.Contains(err.Error(), "permission denied") {
			t.Errorf("%s error %q does not carry the open failure", op, err)
		}
		if !strings.Contains(err.Error(), op) {
			t.Errorf("%s error %q does not name the operation", op, err)
		}
	}

	if err := d.Close(); err != nil {
		t.Errorf("Close returned error: %v", err)
	}
}

// --------------------------------------------------------------------------
// Flags and Status
// --------------------------------------------------------------------------

func TestFlagsString(t *testing.T) {
	tests := []struct {
		flags dict.Flags
		want  string
	}{
		{0, "none"},
		{dict.FlagLock, "lock"},
		{dict.FlagLock | dict.FlagFoldKey, "lock|fold_key"},
		{dict.FlagTrySentinel | dict.FlagTryNoSentinel, "try_sentinel|try_no_sentinel"},
	}
	for _, tc := range tests {
		if got := tc.flags.String(); got != tc.want {
			t.Errorf("Flags(%d).String() = %q, want %q", tc.flags, got, tc.want)
		}
	}
}

func TestStatusString(t *testing.T) {
	if got := dict.StatusSuccess.String(); got != "success" {
		t.Errorf("StatusSuccess.String() = %q", got)
	}
	if got := dict.StatusDuplicate.String(); got != "duplicate" {
		t.Errorf("StatusDuplicate.String() = %q", got)
	}
}
