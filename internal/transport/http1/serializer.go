package http1

import (
	"github.com/indigo-web/framer/http"
	"github.com/indigo-web/framer/http/proto"
	"github.com/indigo-web/framer/http/status"
	"github.com/indigo-web/utils/strcomp"
)

const (
	connectionClose     = "Connection: close\r\n"
	connectionKeepAlive = "Connection: keep-alive\r\n"
)

var continueResponse = []byte("HTTP/1.1 100 Continue\r\n\r\n")

// Serializer renders response headers into a reusable buffer.
type Serializer struct {
	buff []byte
}

func NewSerializer(buff []byte) *Serializer {
	return &Serializer{buff: buff[:0]}
}

// Header renders the status line and the header section. While doing so, the keep-alive
// decision may only be downgraded: when the response asks to close the connection, or
// when it carries no framing, so its end is told by closing the connection. The rendered
// bytes stay valid until the next call.
func (s *Serializer) Header(
	protocol proto.Proto, fields *http.Fields, keepAlive bool,
) (header []byte, stillKeepAlive bool) {
	s.buff = s.buff[:0]
	s.renderProtocol(protocol)
	s.renderStatusLine(fields)

	var hasConnection, hasFraming bool
	for key, value := range fields.Headers.Pairs() {
		switch {
		case strcomp.EqualFold(key, "connection"):
			// every value counts, as the peer honours any of them
			hasConnection = true
			if containsFold(value, "close") {
				keepAlive = false
			}
		case strcomp.EqualFold(key, "content-length"), strcomp.EqualFold(key, "transfer-encoding"):
			hasFraming = true
		}

		s.renderHeader(key, value)
	}

	if !hasFraming {
		keepAlive = false
	}

	switch {
	case hasConnection:
	case !keepAlive && protocol == proto.HTTP11:
		s.buff = append(s.buff, connectionClose...)
	case keepAlive && protocol != proto.HTTP11:
		s.buff = append(s.buff, connectionKeepAlive...)
	}

	s.crlf()

	return s.buff, keepAlive
}

func (s *Serializer) renderProtocol(protocol proto.Proto) {
	if protocol != proto.HTTP11 {
		// anything but HTTP/1.1 is answered the way HTTP/1.0 is
		protocol = proto.HTTP10
	}

	s.buff = append(s.buff, protocol.String()...)
	s.sp()
}

func (s *Serializer) renderStatusLine(fields *http.Fields) {
	reason := fields.Reason
	if len(reason) == 0 {
		reason = status.Text(fields.Code)
	}

	s.buff = append(s.buff, status.StringCode(fields.Code)...)
	s.sp()
	s.buff = append(s.buff, reason...)
	s.crlf()
}

func (s *Serializer) renderHeader(key, value string) {
	s.buff = append(s.buff, key...)
	s.colonsp()
	s.buff = append(s.buff, value...)
	s.crlf()
}

func (s *Serializer) sp() {
	s.buff = append(s.buff, ' ')
}

func (s *Serializer) colonsp() {
	s.buff = append(s.buff, ':', ' ')
}

func (s *Serializer) crlf() {
	s.buff = append(s.buff, '\r', '\n')
}

// containsFold reports whether substr is within s, ignoring ASCII case.
func containsFold(s, substr string) bool {
	for i := 0; i+len(substr) <= len(s); i++ {
		if strcomp.EqualFold(s[i:i+len(substr)], substr) {
			return true
		}
	}

	return false
}
