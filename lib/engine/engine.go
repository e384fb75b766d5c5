package engine

import (
	"errors"
)

// --------------------------------------------------------------------------
// Errors
// --------------------------------------------------------------------------

var (
	// ErrNotFound is returned by Get, Delete and CursorGet when no entry
	// matches. For CursorGet it marks the end of the keyspace.
	ErrNotFound = errors.New("engine: key not found")

	// ErrKeyExists is returned by Put without overwrite when the key is
	// already present.
	ErrKeyExists = errors.New("engine: key already exists")

	// ErrRestartBulk is returned by Put in bulk mode after the memory map
	// has been enlarged. The bulk transaction was aborted and the caller
	// must replay the whole batch from the start.
	ErrRestartBulk = errors.New("engine: bulk transaction must be restarted")
)

// --------------------------------------------------------------------------
// Helper Types
// --------------------------------------------------------------------------

// CursorOp selects the cursor movement for CursorGet.
type CursorOp int

const (
	First CursorOp = iota // position at the first entry
	Next                  // advance to the next entry
)

// EventReason identifies why the engine emitted a notification.
type EventReason int

const (
	EventOpenSize     EventReason = iota // initial map sizing during open
	EventMapFull                         // map grown after a map-full condition
	EventMapResized                      // map growth observed from another process
	EventReadersFull                     // out of reader slots, pausing
)

// Event carries a diagnostic notification from the engine. Size is the
// current map size limit; it is zero for EventReadersFull.
type Event struct {
	Reason EventReason
	Size   int64
}

// NotifyFunc receives diagnostic events. It must not call back into the
// session.
type NotifyFunc func(Event)

// Info reports metadata about an open session. Values are a snapshot and
// may be stale by the time the caller inspects them.
type Info struct {
	MapSize    int64  `json:"map_size"`
	PageSize   int    `json:"page_size"`
	Entries    uint64 `json:"entries"`
	LastTxnID  int64  `json:"last_txn_id"`
	MaxReaders uint   `json:"max_readers"`
}

// --------------------------------------------------------------------------
// Configuration
// --------------------------------------------------------------------------

// Config carries the session policy fixed at open time.
type Config struct {
	// Map size policy: the map starts at InitialMapSize bytes and is
	// multiplied by SizeIncrement on every map-full retry, never exceeding
	// MaxMapSize.
	InitialMapSize int64
	SizeIncrement  int64
	MaxMapSize     int64

	// APIRetryLimit bounds the transparent retries of a single-call
	// operation. BulkRetryLimit bounds the restarts of a bulk transaction
	// and should be proportional to the address-space width, since the map
	// can double once per address bit before sizes stop being
	// representable.
	APIRetryLimit  int
	BulkRetryLimit int

	// Open modes.
	ReadOnly bool // open the environment read-only
	WriteMap bool // use a writable memory map instead of malloc'd pages
	Bulk     bool // one long-lived write transaction, committed at Close

	// Notify, when set, receives diagnostic events.
	Notify NotifyFunc
}

// --------------------------------------------------------------------------
// Session Interface
// --------------------------------------------------------------------------

// Session is the narrow call surface of an embedded key-value engine. A
// session owns one open database and is not safe for concurrent use; the
// dictionary layer above provides all locking.
type Session interface {
	// Get retrieves the value stored under key, or ErrNotFound.
	Get(key []byte) (value []byte, err error)

	// Put stores value under key. With overwrite false an existing key
	// yields ErrKeyExists. In bulk mode a grown map yields ErrRestartBulk.
	Put(key, value []byte, overwrite bool) error

	// Delete removes the entry stored under key, or returns ErrNotFound.
	Delete(key []byte) error

	// CursorGet moves the session cursor (First or Next) and returns the
	// entry at the new position. The end of the keyspace is reported as
	// ErrNotFound; the cursor stays usable afterwards. The returned slices
	// are only valid until the next session call.
	CursorGet(op CursorOp) (key, value []byte, err error)

	// Fd returns the file descriptor of the backing database file, for use
	// with advisory locking and stat.
	Fd() (uintptr, error)

	// Info returns a metadata snapshot of the open database.
	Info() (Info, error)

	// SetNotify installs or replaces the diagnostic notification hook.
	SetNotify(fn NotifyFunc)

	// Close commits any pending bulk transaction and releases the session.
	Close() error
}
