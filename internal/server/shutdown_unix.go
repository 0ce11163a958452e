//go:build unix

package server

import "golang.org/x/sys/unix"

// shutdownWrite closes the sending side of the socket, so the peer observes the end of
// the stream while still being able to send.
func shutdownWrite(fd int) error {
	return unix.Shutdown(fd, unix.SHUT_WR)
}
