package monitor

import (
	"errors"

	"golang.org/x/sys/unix"
)

// errnoOf extracts the underlying errno from a wrapped ptrace/syscall
// failure, or 0 if err doesn't carry one (pkg/errors.Wrapf preserves the
// Unwrap chain, so errors.As still finds it under the wrapping).
func errnoOf(err error) unix.Errno {
	var errno unix.Errno
	if errors.As(err, &errno) {
		return errno
	}
	return 0
}
