//go:build unix

package retry

import "golang.org/x/sys/unix"

// connErrnos are socket errors worth another attempt.
var connErrnos = []error{
	unix.ECONNRESET,
	unix.ECONNREFUSED,
	unix.ECONNABORTED,
	unix.EPIPE,
}
