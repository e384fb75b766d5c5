// Package engine defines the contract between dictionary adapters and the
// embedded key-value engines backing them. It mirrors the structure of the
// dict layer: a narrow Session interface, sentinel errors for the expected
// negative outcomes, and a Config struct fixing the map-size and retry
// policy at open time.
//
// The package focuses on:
//   - A minimal primitive set (Get, Put, Delete, CursorGet, Close) that any
//     transactional engine can satisfy
//   - An explicit growth/retry policy instead of engine-internal magic:
//     sessions grow their memory map and retry transparently for single
//     calls, and signal ErrRestartBulk for bulk transactions
//   - Diagnostic notifications (map sizing, growth, reader-slot
//     exhaustion) decoupled from the data path
//
// Implementations:
//
//	The only implementation in this repository is the LMDB session in the
//	"github.com/lmdict/lmdict/lib/engine/lmdb" package. The interface is
//	nevertheless kept engine-agnostic so the dictionary layer and its test
//	suites can wrap or substitute sessions (the adapter tests inject a
//	counting session to observe probe behavior).
package engine
