//go:build windows

package retry

import "golang.org/x/sys/windows"

// connErrnos are socket errors worth another attempt. Winsock reports its
// own codes, not the POSIX values syscall defines for Windows.
var connErrnos = []error{
	windows.WSAECONNRESET,
	windows.WSAECONNREFUSED,
	windows.WSAECONNABORTED,
	windows.ERROR_BROKEN_PIPE,
}
