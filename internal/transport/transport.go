// Package transport describes what the request framing expects from the connection it is
// running on.
package transport

import "github.com/indigo-web/framer/task"

// EndKind tells the connection what to do once a request cycle is over (or partially over).
type EndKind uint8

const (
	// HalfCloseSend stops sending: no more application data follows, however the
	// connection is still read from.
	HalfCloseSend EndKind = iota + 1
	// Disconnect closes the connection completely.
	Disconnect
	// KeepAlive reuses the connection for the next request.
	KeepAlive
)

func (e EndKind) String() string {
	switch e {
	case HalfCloseSend:
		return "half-close"
	case Disconnect:
		return "disconnect"
	case KeepAlive:
		return "keep-alive"
	default:
		return "unknown"
	}
}

// Transport is the sending side of a connection. Every primitive reports whether it has
// completed inline (task.Done) or not (task.Pending).
type Transport interface {
	// Write passes the bytes to the connection. task.Pending means the bytes are being
	// applied asynchronously, so the caller must wait for the upcoming Flush to complete.
	// The slice may be reused right after the call returns.
	Write(b []byte) (task.Status, error)
	// Flush pushes everything written so far. If task.Pending is returned, resume is called
	// exactly once when it's done.
	Flush(resume func(error)) (task.Status, error)
	// End finishes the connection (or its sending side) or marks it ready for the next request.
	End(kind EndKind)
}
