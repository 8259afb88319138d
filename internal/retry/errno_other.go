//go:build !unix && !windows

package retry

var connErrnos []error
