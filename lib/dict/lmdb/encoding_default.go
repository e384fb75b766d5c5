//go:build !freebsd && !openbsd && !netbsd && !darwin

package lmdb

// Historic writers on these platforms appended a sentinel byte to keys
// and values, so fresh databases follow suit for interoperability.
const defaultEncoding = encSentinel
