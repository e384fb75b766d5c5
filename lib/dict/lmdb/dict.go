package lmdb

import (
	"errors"
	"math"
	"math/bits"
	"os"
	"strings"
	"syscall"
	"time"

	"github.com/VictoriaMetrics/metrics"

	"github.com/lmdict/lmdict/lib/dict"
	"github.com/lmdict/lmdict/lib/engine"
	lmdbengine "github.com/lmdict/lmdict/lib/engine/lmdb"
	"github.com/lmdict/lmdict/lib/flock"
	"github.com/lmdict/lmdict/lib/logging"
)

// --------------------------------------------------------------------------
// Constants
// --------------------------------------------------------------------------

const (
	// DictType is the type name this adapter registers under.
	DictType = "lmdb"

	// Suffix is appended to the logical name to form the database filename.
	Suffix = ".lmdb"

	// sentinel is the single byte some writers append to stored keys and
	// values. Whether it is present is a per-database encoding choice that
	// must be detected, never assumed.
	sentinel byte = 0

	// sizeIncrement doubles the map on every map-full retry (one address
	// bit per attempt).
	sizeIncrement = 2

	// apiRetryLimit bounds retries per single API call; bulkRetryLimit
	// bounds bulk-transaction restarts and covers the worst case of one
	// doubling per address bit.
	apiRetryLimit  = 2
	bulkRetryLimit = 2 * bits.UintSize

	// staleSlack is how much newer the source file must be before the
	// out-of-date warning fires; writes within the last staleSlack are
	// presumed to be an import still in progress.
	staleSlack = 100 * time.Second
)

// DefaultMapSize is the initial memory map size in bytes. Smaller initial
// maps fault on the first page touch. When a map becomes full its size is
// doubled, and other processes pick up the size change.
var DefaultMapSize int64 = 8192

// --------------------------------------------------------------------------
// Metrics
// --------------------------------------------------------------------------

var (
	lookupHits   = metrics.NewCounter(`lmdict_lookup_total{type="lmdb",result="hit"}`)
	lookupMisses = metrics.NewCounter(`lmdict_lookup_total{type="lmdb",result="miss"}`)
	updateCount  = metrics.NewCounter(`lmdict_update_total{type="lmdb"}`)
	deleteCount  = metrics.NewCounter(`lmdict_delete_total{type="lmdb"}`)
	mapGrowth    = metrics.NewCounter(`lmdict_map_growth_total{type="lmdb"}`)
)

// --------------------------------------------------------------------------
// Encoding State
// --------------------------------------------------------------------------

// encoding is the resolved key/value layout of the open database. It
// starts undetermined when both probe flags are set and collapses to one
// variant on the first confirmed hit or the first write.
type encoding int

const (
	encUnknown    encoding = iota // probe both layouts
	encSentinel                   // keys and values carry a trailing sentinel byte
	encNoSentinel                 // keys and values are stored verbatim
)

func encodingFromFlags(f dict.Flags) encoding {
	both := dict.FlagTrySentinel | dict.FlagTryNoSentinel
	switch f & both {
	case dict.FlagTrySentinel:
		return encSentinel
	case dict.FlagTryNoSentinel:
		return encNoSentinel
	default:
		return encUnknown
	}
}

// --------------------------------------------------------------------------
// Dictionary Implementation
// --------------------------------------------------------------------------

type dictImpl struct {
	name  string
	flags dict.Flags
	enc   encoding
	sess  engine.Session

	// lockFd is the descriptor of the database file, used for the
	// advisory locks and for the stat metadata below.
	lockFd   uintptr
	mtime    time.Time
	ownerUID uint32

	logger logging.ILogger
}

// Open opens the named LMDB database and makes it available through the
// generic dictionary contract. On any engine-open failure it returns a
// degraded stand-in handle instead of terminating the process; every
// later failure on the open handle is fatal by the package's error
// policy.
func Open(name string, openFlags int, dictFlags dict.Flags) dict.Dictionary {
	path := name + Suffix

	d := &dictImpl{
		name:   name,
		logger: logging.GetLogger("dict/lmdb"),
	}

	cfg := engine.Config{
		InitialMapSize: DefaultMapSize,
		SizeIncrement:  sizeIncrement,
		MaxMapSize:     math.MaxInt64,
		APIRetryLimit:  apiRetryLimit,
		BulkRetryLimit: bulkRetryLimit,
		ReadOnly:       openFlags&(os.O_RDWR|os.O_WRONLY) == 0,

		// A world-readable database forces the write-back map mode.
		// Without it the engine may flush chunks of unrelated malloc'd
		// memory, up to a page at a time, into a file that unprivileged
		// processes can read.
		WriteMap: dictFlags&dict.FlagWorldRead != 0,

		Bulk:   dictFlags&dict.FlagBulkUpdate != 0,
		Notify: d.onEvent,
	}

	sess, err := lmdbengine.Open(path, cfg)
	if err != nil {
		return dict.NewSurrogate(DictType, name, openFlags, dictFlags,
			"open database %s: %v", path, err)
	}
	d.sess = sess

	// From here on the database is known to be openable; failures are
	// fatal, not degradable.
	fd, err := sess.Fd()
	if err != nil {
		d.logger.Fatalf("open %s: no file descriptor: %v", path, err)
	}
	d.lockFd = fd

	// A bulk-load session momentarily takes the exclusive lock and
	// immediately downgrades to shared. Holding the exclusive lock
	// establishes that no reader still references transaction snapshots
	// whose pages copy-on-write reuse is about to reclaim; the shared
	// lock kept afterwards holds off other bulk writers without blocking
	// plain readers.
	if dictFlags&dict.FlagBulkUpdate != 0 {
		if err := flock.Lock(fd, flock.Exclusive); err != nil {
			d.logger.Fatalf("%s: lock dictionary: %v", path, err)
		}
		if err := flock.Lock(fd, flock.Shared); err != nil {
			d.logger.Fatalf("%s: unlock dictionary: %v", path, err)
		}
	}

	fi, err := os.Stat(path)
	if err != nil {
		d.logger.Fatalf("open %s: stat: %v", path, err)
	}
	d.mtime = fi.ModTime()
	if st, ok := fi.Sys().(*syscall.Stat_t); ok {
		d.ownerUID = st.Uid
	}

	// Warn if the source file is newer than the database, except when the
	// source changed only moments ago.
	if dictFlags&dict.FlagLock != 0 {
		if src, err := os.Stat(name); err == nil &&
			src.ModTime().After(d.mtime) &&
			src.ModTime().Before(time.Now().Add(-staleSlack)) {
			d.logger.Warningf("database %s is older than source file %s", path, name)
		}
	}

	if dictFlags&(dict.FlagTrySentinel|dict.FlagTryNoSentinel) == 0 {
		dictFlags |= dict.FlagTrySentinel | dict.FlagTryNoSentinel
	}
	d.flags = dictFlags
	d.enc = encodingFromFlags(dictFlags)

	return d
}

// newDictionary wires a handle around an existing session. It exists as a
// seam for the package tests, which inject instrumented sessions.
func newDictionary(name string, sess engine.Session, dictFlags dict.Flags, lockFd uintptr) *dictImpl {
	if dictFlags&(dict.FlagTrySentinel|dict.FlagTryNoSentinel) == 0 {
		dictFlags |= dict.FlagTrySentinel | dict.FlagTryNoSentinel
	}
	return &dictImpl{
		name:   name,
		flags:  dictFlags,
		enc:    encodingFromFlags(dictFlags),
		sess:   sess,
		lockFd: lockFd,
		logger: logging.GetLogger("dict/lmdb"),
	}
}

func init() {
	dict.Register(DictType, Open)
}

// --------------------------------------------------------------------------
// Internal Helpers
// --------------------------------------------------------------------------

// onEvent logs engine diagnostics and counts map growth.
func (d *dictImpl) onEvent(ev engine.Event) {
	switch ev.Reason {
	case engine.EventOpenSize:
		d.logger.Debugf("database %s:%s: using size limit %d during open",
			DictType, d.name, ev.Size)
	case engine.EventMapFull:
		mapGrowth.Inc()
		d.logger.Debugf("database %s:%s: using size limit %d after map full",
			DictType, d.name, ev.Size)
	case engine.EventMapResized:
		d.logger.Debugf("database %s:%s: using size limit %d after map resized by another process",
			DictType, d.name, ev.Size)
	case engine.EventReadersFull:
		d.logger.Debugf("database %s:%s: pausing after readers full",
			DictType, d.name)
	}
}

// checkEncodingFlags panics when the caller cleared both probe flags.
// That is a misconfiguration, not a runtime condition.
func (d *dictImpl) checkEncodingFlags(op string) {
	if d.flags&(dict.FlagTrySentinel|dict.FlagTryNoSentinel) == 0 {
		d.logger.Panicf("%s %s:%s: no sentinel encoding flag", op, DictType, d.name)
	}
}

// resolve records the confirmed on-disk encoding and stops probing the
// other one.
func (d *dictImpl) resolve(enc encoding) {
	d.enc = enc
	if enc == encSentinel {
		d.flags &^= dict.FlagTryNoSentinel
	} else {
		d.flags &^= dict.FlagTrySentinel
	}
}

func (d *dictImpl) foldKey(key string) string {
	if d.flags&dict.FlagFoldKey != 0 {
		return strings.ToLower(key)
	}
	return key
}

// lock acquires the advisory lock in the given mode and returns the
// matching release function. With FlagLock unset both are no-ops. Lock
// failures on an open dictionary are fatal; they mean OS resource
// trouble, not contention.
func (d *dictImpl) lock(mode flock.Mode) func() {
	if d.flags&dict.FlagLock == 0 {
		return func() {}
	}
	if err := flock.Lock(d.lockFd, mode); err != nil {
		d.logger.Fatalf("%s: lock dictionary: %v", d.name, err)
	}
	return func() {
		if err := flock.Lock(d.lockFd, flock.Unlock); err != nil {
			d.logger.Fatalf("%s: unlock dictionary: %v", d.name, err)
		}
	}
}

func copyBytes(v []byte) []byte {
	out := make([]byte, len(v))
	copy(out, v)
	return out
}

// stripSentinel copies v and drops the stored trailing sentinel byte.
func stripSentinel(v []byte) []byte {
	out := copyBytes(v)
	if n := len(out); n > 0 && out[n-1] == sentinel {
		out = out[:n-1]
	}
	return out
}

// --------------------------------------------------------------------------
// Dictionary Interface Methods (docu see dict/interface.go)
// --------------------------------------------------------------------------

func (d *dictImpl) Type() string {
	return DictType
}

func (d *dictImpl) Name() string {
	return d.name
}

func (d *dictImpl) Flags() dict.Flags {
	return d.flags
}

func (d *dictImpl) Lookup(key string) ([]byte, bool, error) {
	d.checkEncodingFlags("lookup")
	key = d.foldKey(key)

	unlock := d.lock(flock.Shared)
	defer unlock()

	// See if this database was written with one sentinel byte appended to
	// key and value.
	if d.flags&dict.FlagTrySentinel != 0 {
		val, err := d.sess.Get(append([]byte(key), sentinel))
		switch {
		case err == nil:
			d.resolve(encSentinel)
			lookupHits.Inc()
			return stripSentinel(val), true, nil
		case !errors.Is(err, engine.ErrNotFound):
			d.logger.Fatalf("error reading %s:%s: %v", DictType, d.name, err)
		}
	}

	// See if this database was written with no sentinel byte appended to
	// key and value.
	if d.flags&dict.FlagTryNoSentinel != 0 {
		val, err := d.sess.Get([]byte(key))
		switch {
		case err == nil:
			d.resolve(encNoSentinel)
			lookupHits.Inc()
			return copyBytes(val), true, nil
		case !errors.Is(err, engine.ErrNotFound):
			d.logger.Fatalf("error reading %s:%s: %v", DictType, d.name, err)
		}
	}

	lookupMisses.Inc()
	return nil, false, nil
}

func (d *dictImpl) Update(key string, value []byte) (dict.Status, error) {
	d.checkEncodingFlags("update")
	key = d.foldKey(key)

	// If undecided between the two encodings, the first write fixes the
	// platform default for this handle.
	if d.enc == encUnknown {
		d.resolve(defaultEncoding)
	}

	k := []byte(key)
	v := copyBytes(value)
	if d.enc == encSentinel {
		k = append(k, sentinel)
		v = append(v, sentinel)
	}

	unlock := d.lock(flock.Exclusive)
	defer unlock()

	err := d.sess.Put(k, v, d.flags&dict.FlagDupReplace != 0)
	switch {
	case err == nil:
		updateCount.Inc()
		return dict.StatusSuccess, nil
	case errors.Is(err, engine.ErrKeyExists):
		switch {
		case d.flags&dict.FlagDupIgnore != 0:
			// keep the stored value
		case d.flags&dict.FlagDupWarn != 0:
			d.logger.Warningf("%s:%s: duplicate entry: %q", DictType, d.name, key)
		default:
			d.logger.Fatalf("%s:%s: duplicate entry: %q", DictType, d.name, key)
		}
		return dict.StatusDuplicate, nil
	case errors.Is(err, engine.ErrRestartBulk):
		return dict.StatusSuccess, dict.ErrRestartBulk
	default:
		d.logger.Fatalf("error updating %s:%s: %v", DictType, d.name, err)
	}
	return dict.StatusSuccess, nil // unreached, Fatalf does not return
}

func (d *dictImpl) Delete(key string) (bool, error) {
	d.checkEncodingFlags("delete")
	key = d.foldKey(key)

	unlock := d.lock(flock.Exclusive)
	defer unlock()

	found := false

	if d.flags&dict.FlagTrySentinel != 0 {
		err := d.sess.Delete(append([]byte(key), sentinel))
		switch {
		case err == nil:
			d.resolve(encSentinel)
			found = true
		case !errors.Is(err, engine.ErrNotFound):
			d.logger.Fatalf("error deleting from %s:%s: %v", DictType, d.name, err)
		}
	}

	if !found && d.flags&dict.FlagTryNoSentinel != 0 {
		err := d.sess.Delete([]byte(key))
		switch {
		case err == nil:
			d.resolve(encNoSentinel)
			found = true
		case !errors.Is(err, engine.ErrNotFound):
			d.logger.Fatalf("error deleting from %s:%s: %v", DictType, d.name, err)
		}
	}

	if found {
		deleteCount.Inc()
	}
	return found, nil
}

func (d *dictImpl) Sequence(fn dict.SeqFunc) (string, []byte, bool, error) {
	var op engine.CursorOp
	switch fn {
	case dict.SeqFirst:
		op = engine.First
	case dict.SeqNext:
		op = engine.Next
	default:
		d.logger.Panicf("sequence %s:%s: invalid function %d", DictType, d.name, fn)
	}

	unlock := d.lock(flock.Shared)
	defer unlock()

	k, v, err := d.sess.CursorGet(op)
	switch {
	case err == nil:
	case errors.Is(err, engine.ErrNotFound):
		// End of database. The cursor is not closed here; its lifecycle
		// belongs to the engine session.
		return "", nil, false, nil
	default:
		d.logger.Fatalf("error seeking %s:%s: %v", DictType, d.name, err)
	}

	// Copy out of the engine's buffers before the next call invalidates
	// them, stripping the sentinel when that encoding is in play.
	key := copyBytes(k)
	var val []byte
	if len(v) > 0 {
		val = copyBytes(v)
	}
	if d.flags&dict.FlagTrySentinel != 0 {
		if n := len(key); n > 0 && key[n-1] == sentinel {
			key = key[:n-1]
			if m := len(val); m > 0 && val[m-1] == sentinel {
				val = val[:m-1]
			}
		}
	}
	return string(key), val, true, nil
}

func (d *dictImpl) Close() error {
	if err := d.sess.Close(); err != nil {
		d.logger.Fatalf("close %s:%s: %v", DictType, d.name, err)
	}
	return nil
}

// Info reports engine metadata for the open database. It is not part of
// the generic dictionary contract; the stats command type-asserts for it.
func (d *dictImpl) Info() (engine.Info, error) {
	unlock := d.lock(flock.Shared)
	defer unlock()
	return d.sess.Info()
}
