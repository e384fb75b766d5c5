package dict

import (
	"errors"
	"strings"
)

// --------------------------------------------------------------------------
// Dictionary Flags
// --------------------------------------------------------------------------

// Flags is the bit-set of dictionary options passed to Open.
type Flags uint32

const (
	FlagLock          Flags = 1 << iota // wrap operations in advisory file locks
	FlagFoldKey                         // fold keys to lowercase
	FlagDupIgnore                       // silently ignore duplicate updates
	FlagDupWarn                         // warn about duplicate updates, then ignore
	FlagDupReplace                      // let duplicate updates replace the value
	FlagBulkUpdate                      // bulk-load session (one long transaction)
	FlagWorldRead                       // database will be world-readable
	FlagTrySentinel                     // try the trailing-sentinel key/value encoding
	FlagTryNoSentinel                   // try the encoding without trailing sentinel
)

func (f Flags) String() string {
	names := []struct {
		flag Flags
		name string
	}{
		{FlagLock, "lock"},
		{FlagFoldKey, "fold_key"},
		{FlagDupIgnore, "dup_ignore"},
		{FlagDupWarn, "dup_warn"},
		{FlagDupReplace, "dup_replace"},
		{FlagBulkUpdate, "bulk_update"},
		{FlagWorldRead, "world_read"},
		{FlagTrySentinel, "try_sentinel"},
		{FlagTryNoSentinel, "try_no_sentinel"},
	}
	var set []string
	for _, n := range names {
		if f&n.flag != 0 {
			set = append(set, n.name)
		}
	}
	if len(set) == 0 {
		return "none"
	}
	return strings.Join(set, "|")
}

// --------------------------------------------------------------------------
// Helper Types
// --------------------------------------------------------------------------

// SeqFunc selects the traversal step performed by Sequence.
type SeqFunc int

const (
	SeqFirst SeqFunc = iota // position at the first entry
	SeqNext                 // advance to the next entry
)

// Status is the tri-state outcome of Update: success, or a benign
// duplicate skip under the configured duplicate policy. All other write
// failures are fatal by design and never surface as a Status.
type Status int

const (
	StatusSuccess Status = iota
	StatusDuplicate
)

func (s Status) String() string {
	switch s {
	case StatusSuccess:
		return "success"
	case StatusDuplicate:
		return "duplicate"
	default:
		return "unknown"
	}
}

// ErrRestartBulk is returned by Update on a bulk-mode dictionary after the
// engine had to enlarge its memory map. The caller owns the batch and must
// replay it from the start; the retry budget is enforced by the engine.
var ErrRestartBulk = errors.New("dict: bulk update must be restarted")

// --------------------------------------------------------------------------
// Interface Definition
// --------------------------------------------------------------------------

// Dictionary is the generic contract implemented by every dictionary type.
//
// Expected negative outcomes (key not found, end of scan, duplicate skip)
// are ordinary return values. A non-nil error is only ever returned by a
// degraded handle produced by a failed Open, and by Update in bulk mode
// (ErrRestartBulk); environment failures on a healthy open dictionary
// terminate the process instead.
//
// Implementations are not safe for concurrent use from multiple
// goroutines. Callers needing concurrency must open separate handles or
// serialize externally.
type Dictionary interface {
	// Type returns the dictionary type name, e.g. "lmdb".
	Type() string
	// Name returns the logical name the dictionary was opened with.
	Name() string
	// Flags returns the current option bits. Adapters may clear encoding
	// probe bits as the on-disk layout becomes known.
	Flags() Flags

	// Lookup returns the value stored under key. found is false when the
	// key does not exist.
	Lookup(key string) (value []byte, found bool, err error)

	// Update stores value under key. The duplicate policy flags decide
	// what happens when the key already exists.
	Update(key string, value []byte) (Status, error)

	// Delete removes the entry stored under key. found is false when no
	// entry existed; that is not an error.
	Delete(key string) (found bool, err error)

	// Sequence traverses the dictionary: SeqFirst positions at the first
	// entry, SeqNext advances. ok is false at the end of the keyspace.
	Sequence(fn SeqFunc) (key string, value []byte, ok bool, err error)

	// Close releases the handle. Calling Close twice is undefined.
	Close() error
}
