// Package testing provides a factory-driven conformance suite and
// benchmark set for dict.Dictionary implementations. Adapter packages run
// the whole suite from a single test function by passing a factory that
// opens fresh dictionaries in a test temp directory.
//
// The suite covers the generic contract only: round trips, duplicate
// policies, deletes of missing keys, sequence traversal and the panic on
// invalid sequence functions. Adapter-specific behavior (encoding probes,
// degraded opens, bulk restarts) belongs in the adapter's own tests.
//
// CatchFatal is exported for those adapter tests: it intercepts the
// logging package's process-terminating path and reports it back as data.
package testing
