package http

import (
	"context"
	"net"

	"github.com/indigo-web/framer/http/proto"
	"github.com/indigo-web/framer/kv"
)

var zeroContext = context.Background()

type Headers = *kv.Storage

// Request represents an HTTP request. Its string fields are views over the connection's
// arena, so they must be copied if retained after the response is sent.
type Request struct {
	// Method is the first token of the request line, as is.
	Method string
	// RequestURI is the raw request target.
	RequestURI string
	// Path is the request target up to the first question mark, or the whole target if there's none.
	Path string
	// Query is everything after the first question mark. Empty if there's none.
	Query string
	// Proto is the version token of the request line, as is.
	Proto string
	// Protocol is the parsed version. Unknown for anything but HTTP/1.0 and HTTP/1.1.
	Protocol proto.Proto
	// Headers holds non-normalized header pairs, even though lookup is case-insensitive. Values
	// of repeating keys accumulate in order of arrival.
	Headers Headers
	// Body provides access to the message body. Reads block until the data arrives, so it must
	// never be consumed from the connection's own flow.
	Body Body
	// Remote holds the remote address.
	Remote net.Addr
	// Ctx is user-managed context which lives as long as the request does.
	Ctx context.Context
}

func NewRequest(headers Headers, remote net.Addr) *Request {
	return &Request{
		Headers: headers,
		Remote:  remote,
		Ctx:     zeroContext,
	}
}

// Respond returns a fresh response builder with the status code set to 200 OK.
func (r *Request) Respond() *Response {
	return NewResponse()
}

// Reset clears the request so it can be reused by the next request of the connection.
func (r *Request) Reset() {
	r.Method, r.RequestURI, r.Path, r.Query, r.Proto = "", "", "", "", ""
	r.Protocol = proto.Unknown
	r.Headers.Clear()
	r.Body = nil
	r.Ctx = zeroContext
}
