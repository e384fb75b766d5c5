//go:build freebsd || openbsd || netbsd || darwin

package lmdb

// The BSD family historically stored keys and values verbatim.
const defaultEncoding = encNoSentinel
