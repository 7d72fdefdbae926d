package event

import (
	"os"

	"golang.org/x/sys/unix"
)

// lockExclusive takes an advisory exclusive lock on f, blocking until
// it is acquired, mirroring the original writer's fcntl.flock usage.
// The returned func releases the lock.
func lockExclusive(f *os.File) (func(), error) {
	fd := int(f.Fd())
	if err := unix.Flock(fd, unix.LOCK_EX); err != nil {
		return nil, err
	}
	return func() {
		_ = unix.Flock(fd, unix.LOCK_UN)
	}, nil
}
