//go:build !unix

package server

import "errors"

var errNoHalfClose = errors.New("half-close is not supported on this platform")

func shutdownWrite(int) error {
	return errNoHalfClose
}
