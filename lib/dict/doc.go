// Package dict defines the generic dictionary contract and the registry
// that routes "type:name" specs to concrete adapters. It serves the same
// role for dictionaries that database/sql serves for SQL drivers: callers
// program against the Dictionary interface and stay agnostic of the
// storage technology behind it.
//
// The package focuses on:
//   - A uniform lookup/update/delete/sequence/close contract with typed
//     option flags and a tri-state update status
//   - Self-registration of adapters from their init functions
//   - A degraded stand-in handle (surrogate) for dictionaries that failed
//     to open, so one broken table never aborts the process
//
// Error-surfacing policy:
//
//	Expected negative outcomes are data, not errors: a missing key, the
//	end of a scan and a policy-permitted duplicate all come back as
//	ordinary return values. Environment failures on a dictionary that is
//	known to have opened are fatal, on the grounds that an open database
//	failing mid-operation means corruption or resource exhaustion that
//	the caller cannot repair locally. Only degraded handles and bulk
//	restarts return errors as data.
//
// Implementations:
//
//	The LMDB adapter in "github.com/lmdict/lmdict/lib/dict/lmdb" is the
//	only adapter in this repository. The factory-driven conformance suite
//	in "github.com/lmdict/lmdict/lib/dict/testing" applies to any future
//	adapter as well.
package dict
