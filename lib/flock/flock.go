package flock

import (
	"golang.org/x/sys/unix"
)

// Mode selects the lock operation applied to a file descriptor.
type Mode int

const (
	// Shared acquires a read lock. Multiple processes may hold it at once.
	Shared Mode = iota
	// Exclusive acquires a write lock, excluding all other lock holders.
	Exclusive
	// Unlock releases whatever lock the descriptor holds.
	Unlock
)

func (m Mode) String() string {
	switch m {
	case Shared:
		return "shared"
	case Exclusive:
		return "exclusive"
	case Unlock:
		return "unlock"
	default:
		return "unknown"
	}
}

// lockType maps a Mode to the corresponding fcntl lock type.
func lockType(m Mode) int16 {
	switch m {
	case Shared:
		return unix.F_RDLCK
	case Exclusive:
		return unix.F_WRLCK
	default:
		return unix.F_UNLCK
	}
}

// Lock applies an advisory whole-file fcntl range lock to fd. The call
// blocks until the lock is granted and retries when interrupted by a
// signal. Locks acquired this way cooperate across processes and are
// released automatically when the descriptor is closed or the process
// exits.
func Lock(fd uintptr, mode Mode) error {
	lk := unix.Flock_t{
		Type:   lockType(mode),
		Whence: unix.SEEK_SET,
		Start:  0,
		Len:    0, // zero length locks the whole file
	}
	for {
		err := unix.FcntlFlock(fd, unix.F_SETLKW, &lk)
		if err == unix.EINTR {
			continue
		}
		return err
	}
}
