// Package flock implements advisory whole-file locks with fcntl range
// locking. It is the only inter-process ordering mechanism used by the
// dictionary adapters: the embedded engine is always opened with its own
// locking disabled, because an engine-managed lock file would have to be
// world-writable to work across privilege-separated writer and reader
// processes.
//
// fcntl locks are chosen over BSD flock because they interoperate across
// NFS and because a downgrade from exclusive to shared is atomic, which
// the bulk-mode open handshake relies on.
package flock
