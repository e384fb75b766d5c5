// Package lmdb adapts OpenLDAP LMDB databases to the generic dictionary
// contract of the dict package. One dictionary is one database file,
// named by appending ".lmdb" to the logical name.
//
// Beyond the plain call-through to the engine session, the adapter owns
// four protocols the engine deliberately does not:
//
//   - Advisory locking. The engine runs with its own locking disabled;
//     the adapter brackets every lookup and scan with a shared fcntl lock
//     and every update and delete with an exclusive one. A bulk-load open
//     additionally performs a momentary exclusive-then-shared handshake
//     to flush out stale readers before copy-on-write page reuse.
//
//   - Legacy encoding detection. Databases in the wild were written
//     either with or without one trailing sentinel byte on keys and
//     values. Reads probe the enabled encodings in order and lock onto
//     the first one that produces a hit; the first write on an
//     undetermined handle fixes the platform default.
//
//   - Growth retries. Map-full and map-resized conditions are absorbed by
//     the engine session for single calls; for bulk sessions the adapter
//     surfaces dict.ErrRestartBulk so the loader replays its batch.
//
//   - Degraded opens. A database that cannot be opened yields a surrogate
//     handle rather than a dead process.
//
// A note on scans: Sequence iterates a snapshot taken when the first
// cursor call ran. Entries inserted while a scan is in progress may or
// may not be visible to that scan; only entries inserted before SeqFirst
// are guaranteed visible.
package lmdb
