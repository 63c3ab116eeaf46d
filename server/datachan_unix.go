//go:build unix

package server

import (
	"syscall"

	"golang.org/x/sys/unix"
)

// dataSocketControl marks the data socket SO_REUSEADDR so the fixed data
// port can be bound again while earlier connections sit in TIME_WAIT.
func dataSocketControl(_, _ string, c syscall.RawConn) error {
	var sockErr error
	err := c.Control(func(fd uintptr) {
		sockErr = unix.SetsockoptInt(int(fd), unix.SOL_SOCKET, unix.SO_REUSEADDR, 1)
	})
	if err != nil {
		return err
	}
	return sockErr
}
