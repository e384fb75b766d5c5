// Package lmdb implements the engine.Session contract on top of OpenLDAP
// LMDB via the github.com/PowerDNS/lmdb-go binding.
//
// The package hides the parts of LMDB that are unreasonable to expose to a
// dictionary adapter:
//
//   - Map sizing. An LMDB memory map has a fixed capacity per open. When a
//     write returns MDB_MAP_FULL the session doubles the map (bounded by
//     the configured maximum) and retries the operation transparently, a
//     small fixed number of times per call. When another process grew the
//     map (MDB_MAP_RESIZED) the session adopts the new size and retries.
//     When the reader table is exhausted the session pauses briefly and
//     retries.
//
//   - Bulk transactions. In bulk mode all writes share one long-lived
//     write transaction that commits at Close. A full map cannot be
//     recovered mid-transaction: the session aborts, grows the map and
//     returns engine.ErrRestartBulk, and the caller replays its batch.
//     The restart budget is proportional to the address-space width since
//     the map can double once per address bit at most.
//
//   - Locking. The environment is opened with MDB_NOLOCK unconditionally.
//     An engine-managed lock file would need to be world-writable to span
//     privileged writers and unprivileged readers; the dictionary layer
//     provides advisory fcntl locks instead. MDB_NOSUBDIR is always set so
//     one dictionary is exactly one file.
//
// Sessions are single-goroutine objects. A bulk session additionally pins
// its goroutine to an OS thread between the first write and Close, as
// required for a live LMDB write transaction.
package lmdb
