// Package cmd implements the command-line interface for the lmdict
// dictionary maintenance tool. It provides a hierarchical command structure
// for creating, querying and updating LMDB-backed dictionaries.
//
// The package is organized into several subpackages:
//
//   - db: Commands for dictionary operations (get, put, del, scan, create, etc.)
//   - util: Shared utilities for command-line processing and configuration (internal use)
//
// See lmdict -help for a list of all commands.
package cmd
