package http

import "io"

// Body is the reading side of a request body. Read blocks until a piece of body arrives,
// the body is complete (io.EOF) or the connection faults.
type Body interface {
	io.Reader
	// Bytes reads the whole body.
	Bytes() ([]byte, error)
	// String reads the whole body and returns it as a string.
	String() (string, error)
	// Discard reads the rest of the body, throwing it away.
	Discard() error
}

// Output is where a response body is written to. Writes are never blocking: they're passed
// to the connection immediately and a failure of an asynchronous write is returned by any of
// the following calls.
type Output interface {
	Write(b []byte) error
	// Flush asks the connection to push the written bytes to the peer.
	Flush() error
}
