package lmdb

import (
	"fmt"
	"runtime"
	"time"

	mdb "github.com/PowerDNS/lmdb-go/lmdb"

	"github.com/lmdict/lmdict/lib/engine"
)

// --------------------------------------------------------------------------
// Constants
// --------------------------------------------------------------------------

const (
	// fileMode is used when the environment creates the database file.
	fileMode = 0644

	// readersFullPause is how long a call sleeps before retrying after the
	// engine ran out of reader slots.
	readersFullPause = time.Second
)

// --------------------------------------------------------------------------
// Session Implementation
// --------------------------------------------------------------------------

// sessionImpl wraps one LMDB environment opened on a single database file.
// The environment is always opened with NoSubdir and NoLock: all
// inter-process synchronization is provided by the dictionary layer's
// advisory file locks.
type sessionImpl struct {
	env   *mdb.Env
	dbi   mdb.DBI
	cfg   engine.Config
	limit int64 // current map size

	// bulk mode: one long-lived write transaction
	bulkTxn     *mdb.Txn
	bulkRetries int

	// cursor state for CursorGet, lazily created
	cursorTxn *mdb.Txn
	cursor    *mdb.Cursor

	notify engine.NotifyFunc
}

// Open opens (and for read-write sessions, creates if absent) the database
// file at path. The session is not safe for concurrent use.
func Open(path string, cfg engine.Config) (engine.Session, error) {
	env, err := mdb.NewEnv()
	if err != nil {
		return nil, err
	}

	if cfg.InitialMapSize > 0 {
		if err := env.SetMapSize(cfg.InitialMapSize); err != nil {
			_ = env.Close()
			return nil, err
		}
	}

	flags := uint(mdb.NoSubdir | mdb.NoLock)
	if cfg.ReadOnly {
		flags |= mdb.Readonly
	}
	if cfg.WriteMap {
		flags |= mdb.WriteMap
	}

	if err := env.Open(path, flags, fileMode); err != nil {
		_ = env.Close()
		return nil, err
	}

	s := &sessionImpl{
		env:    env,
		cfg:    cfg,
		notify: cfg.Notify,
	}

	if info, err := env.Info(); err == nil {
		s.limit = info.MapSize
	}

	if err := s.openRoot(); err != nil {
		_ = env.Close()
		return nil, err
	}

	s.emit(engine.Event{Reason: engine.EventOpenSize, Size: s.limit})
	return s, nil
}

// openRoot opens the unnamed root database of the environment.
func (s *sessionImpl) openRoot() error {
	open := func(txn *mdb.Txn) (err error) {
		s.dbi, err = txn.OpenRoot(0)
		return err
	}
	if s.cfg.ReadOnly {
		return s.env.View(open)
	}
	return s.env.Update(open)
}

// emit delivers a diagnostic event if a hook is installed.
func (s *sessionImpl) emit(ev engine.Event) {
	if s.notify != nil {
		s.notify(ev)
	}
}

// --------------------------------------------------------------------------
// Map Growth
// --------------------------------------------------------------------------

// grow doubles the memory map, clamped to the configured maximum. It must
// only be called while no transaction is active in this process.
func (s *sessionImpl) grow() error {
	incr := s.cfg.SizeIncrement
	if incr < 2 {
		incr = 2
	}
	next := s.limit * incr
	if next <= 0 || next > s.cfg.MaxMapSize {
		next = s.cfg.MaxMapSize
	}
	if next <= s.limit {
		return fmt.Errorf("lmdb: memory map already at maximum size %d", s.limit)
	}
	if err := s.env.SetMapSize(next); err != nil {
		return err
	}
	s.limit = next
	s.emit(engine.Event{Reason: engine.EventMapFull, Size: next})
	return nil
}

// adoptSize picks up a map enlargement performed by another process.
func (s *sessionImpl) adoptSize() error {
	if err := s.env.SetMapSize(0); err != nil {
		return err
	}
	if info, err := s.env.Info(); err == nil {
		s.limit = info.MapSize
	}
	s.emit(engine.Event{Reason: engine.EventMapResized, Size: s.limit})
	return nil
}

// --------------------------------------------------------------------------
// Transaction Runners
// --------------------------------------------------------------------------

// classify translates LMDB status codes into the engine's sentinel errors.
func classify(err error) error {
	switch {
	case err == nil:
		return nil
	case mdb.IsNotFound(err):
		return engine.ErrNotFound
	case mdb.IsErrno(err, mdb.KeyExist):
		return engine.ErrKeyExists
	default:
		return err
	}
}

// update runs one write operation with the transparent single-call retry
// protocol: a full map is doubled, a map resized by another process is
// adopted, and reader-slot exhaustion pauses, each followed by a retry up
// to the API retry limit.
func (s *sessionImpl) update(fn mdb.TxnOp) error {
	if s.cfg.Bulk && !s.cfg.ReadOnly {
		return s.bulkUpdate(fn)
	}
	var err error
	for retries := 0; retries <= s.cfg.APIRetryLimit; retries++ {
		err = s.env.Update(fn)
		switch {
		case err == nil:
			return nil
		case mdb.IsMapFull(err):
			if gerr := s.grow(); gerr != nil {
				return gerr
			}
		case mdb.IsMapResized(err):
			if aerr := s.adoptSize(); aerr != nil {
				return aerr
			}
		case mdb.IsErrno(err, mdb.ReadersFull):
			s.emit(engine.Event{Reason: engine.EventReadersFull})
			time.Sleep(readersFullPause)
		default:
			return err
		}
	}
	return err
}

// bulkUpdate applies one write inside the session's long-lived bulk
// transaction. A full map aborts the transaction, grows the map and
// reports ErrRestartBulk so the caller can replay the batch; the number of
// restarts is bounded by the bulk retry limit.
func (s *sessionImpl) bulkUpdate(fn mdb.TxnOp) error {
	if s.bulkTxn == nil {
		// Write transactions are bound to an OS thread for their entire
		// lifetime, so the goroutine driving a bulk session is pinned
		// until commit or abort.
		runtime.LockOSThread()
		txn, err := s.env.BeginTxn(nil, 0)
		if err != nil {
			runtime.UnlockOSThread()
			return err
		}
		s.bulkTxn = txn
	}

	err := fn(s.bulkTxn)
	switch {
	case err == nil:
		return nil
	case mdb.IsMapFull(err):
		s.abortBulk()
		s.bulkRetries++
		if s.bulkRetries > s.cfg.BulkRetryLimit {
			return fmt.Errorf("lmdb: bulk transaction aborted %d times: %w", s.bulkRetries, err)
		}
		if gerr := s.grow(); gerr != nil {
			return gerr
		}
		return engine.ErrRestartBulk
	case mdb.IsMapResized(err):
		s.abortBulk()
		if aerr := s.adoptSize(); aerr != nil {
			return aerr
		}
		return engine.ErrRestartBulk
	default:
		return err
	}
}

// abortBulk abandons the bulk transaction and unpins the OS thread.
func (s *sessionImpl) abortBulk() {
	if s.bulkTxn != nil {
		s.bulkTxn.Abort()
		s.bulkTxn = nil
		runtime.UnlockOSThread()
	}
}

// view runs one read operation, adopting foreign map growth and pausing on
// reader-slot exhaustion like update does.
func (s *sessionImpl) view(fn mdb.TxnOp) error {
	var err error
	for retries := 0; retries <= s.cfg.APIRetryLimit; retries++ {
		err = s.env.View(fn)
		switch {
		case mdb.IsMapResized(err):
			if aerr := s.adoptSize(); aerr != nil {
				return aerr
			}
		case mdb.IsErrno(err, mdb.ReadersFull):
			s.emit(engine.Event{Reason: engine.EventReadersFull})
			time.Sleep(readersFullPause)
		default:
			return err
		}
	}
	return err
}

// --------------------------------------------------------------------------
// Session Interface Methods (docu see engine/engine.go)
// --------------------------------------------------------------------------

func (s *sessionImpl) Get(key []byte) ([]byte, error) {
	// A bulk session reads through its own transaction so it sees its own
	// uncommitted writes.
	if s.bulkTxn != nil {
		val, err := s.bulkTxn.Get(s.dbi, key)
		return val, classify(err)
	}
	var val []byte
	err := s.view(func(txn *mdb.Txn) (err error) {
		val, err = txn.Get(s.dbi, key)
		return err
	})
	if err != nil {
		return nil, classify(err)
	}
	return val, nil
}

func (s *sessionImpl) Put(key, value []byte, overwrite bool) error {
	flags := uint(0)
	if !overwrite {
		flags = mdb.NoOverwrite
	}
	err := s.update(func(txn *mdb.Txn) error {
		return txn.Put(s.dbi, key, value, flags)
	})
	return classify(err)
}

func (s *sessionImpl) Delete(key []byte) error {
	err := s.update(func(txn *mdb.Txn) error {
		return txn.Del(s.dbi, key, nil)
	})
	return classify(err)
}

func (s *sessionImpl) CursorGet(op engine.CursorOp) ([]byte, []byte, error) {
	var mop uint
	switch op {
	case engine.First:
		mop = mdb.First
	case engine.Next:
		mop = mdb.Next
	default:
		return nil, nil, fmt.Errorf("lmdb: invalid cursor operation %d", op)
	}

	if s.cursor == nil {
		txn, err := s.env.BeginTxn(nil, mdb.Readonly)
		if err != nil {
			return nil, nil, classify(err)
		}
		cursor, err := txn.OpenCursor(s.dbi)
		if err != nil {
			txn.Abort()
			return nil, nil, classify(err)
		}
		s.cursorTxn = txn
		s.cursor = cursor
	}

	key, val, err := s.cursor.Get(nil, nil, mop)
	if err != nil {
		// End of keyspace. The cursor stays open; a later First call
		// repositions it.
		return nil, nil, classify(err)
	}
	return key, val, nil
}

func (s *sessionImpl) Fd() (uintptr, error) {
	return s.env.FD()
}

func (s *sessionImpl) Info() (engine.Info, error) {
	envInfo, err := s.env.Info()
	if err != nil {
		return engine.Info{}, err
	}
	stat, err := s.env.Stat()
	if err != nil {
		return engine.Info{}, err
	}
	return engine.Info{
		MapSize:    envInfo.MapSize,
		PageSize:   int(stat.PSize),
		Entries:    stat.Entries,
		LastTxnID:  envInfo.LastTxnID,
		MaxReaders: uint(envInfo.MaxReaders),
	}, nil
}

func (s *sessionImpl) SetNotify(fn engine.NotifyFunc) {
	s.notify = fn
}

func (s *sessionImpl) Close() error {
	if s.cursor != nil {
		s.cursor.Close()
		s.cursorTxn.Abort()
		s.cursor = nil
		s.cursorTxn = nil
	}

	var commitErr error
	if s.bulkTxn != nil {
		commitErr = s.bulkTxn.Commit()
		s.bulkTxn = nil
		runtime.UnlockOSThread()
	}

	closeErr := s.env.Close()
	if commitErr != nil {
		return commitErr
	}
	return closeErr
}
