// Package logging provides the leveled loggers used throughout lmdict.
//
// Loggers are named per package (e.g. "dict/lmdb") and share a common
// format. The terminal paths Fatalf and Panicf implement the library's
// error-surfacing policy: Fatalf is for environment failures on an
// already-open dictionary (the process terminates, there is nothing the
// caller can safely do), Panicf is for caller bugs such as invalid
// operation modes. Both run through swappable hooks so the test suites
// can assert on conditions that would otherwise end the test binary.
package logging
