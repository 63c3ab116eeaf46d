//go:build !unix

package server

import "syscall"

func dataSocketControl(_, _ string, _ syscall.RawConn) error {
	return nil
}
