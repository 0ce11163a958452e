package http1

import (
	"bytes"

	"github.com/indigo-web/framer/config"
	"github.com/indigo-web/framer/http"
	"github.com/indigo-web/framer/http/proto"
	"github.com/indigo-web/framer/http/status"
	"github.com/indigo-web/framer/internal/buffer"
)

// Progress is the outcome of a single tokenizer step.
type Progress uint8

const (
	// Insufficient means the available bytes aren't enough to make a decision. Nothing
	// was consumed.
	Insufficient Progress = iota
	// Parsed means a token was extracted and consumed.
	Parsed
	// HeadersEnd means the empty line terminating the header section was consumed.
	HeadersEnd
)

var crlf = []byte("\r\n")

// Parser tokenizes the request line and header fields. Until a whole line is available,
// nothing is consumed, so the next call receives the same bytes extended by the newly
// arrived ones; only the position the search for the line end stopped at is remembered.
// Decoded values are copied into the arenas, therefore they outlive the bytes they were
// parsed from.
type Parser struct {
	request       *http.Request
	startLine     *buffer.Buffer
	headerSpace   *buffer.Buffer
	cfg           *config.Config
	headersNumber int
	// scanned is the offset within the pending line the search for its end resumes from
	scanned int
}

func NewParser(cfg *config.Config, request *http.Request) *Parser {
	return &Parser{
		request: request,
		startLine: buffer.New(
			cfg.URI.RequestLineSize.Default, cfg.URI.RequestLineSize.Maximal,
		),
		headerSpace: buffer.New(
			cfg.Headers.Space.Default, cfg.Headers.Space.Maximal,
		),
		cfg: cfg,
	}
}

// RequestLine extracts method, request target and version out of the first line. The request
// target is split into path and query by the first question mark.
func (p *Parser) RequestLine(data []byte) (n int, progress Progress, err error) {
	lineEnd := p.lineEnd(data)
	if lineEnd == -1 {
		if len(data) > p.cfg.URI.RequestLineSize.Maximal {
			return 0, Insufficient, status.ErrTooLongRequestLine
		}

		return 0, Insufficient, nil
	}

	p.scanned = 0

	line := data[:lineEnd]
	sp := bytes.IndexByte(line, ' ')
	if sp == -1 {
		return 0, Insufficient, status.ErrNoVersion
	}

	method, rest := line[:sp], line[sp+1:]
	sp = bytes.IndexByte(rest, ' ')
	if sp == -1 {
		return 0, Insufficient, status.ErrNoVersion
	}

	target, version := rest[:sp], rest[sp+1:]
	if len(method) == 0 || len(target) == 0 {
		return 0, Insufficient, status.ErrBadRequest
	}

	request := p.request
	if !p.startLine.Append(method) {
		return 0, Insufficient, status.ErrTooLongRequestLine
	}
	request.Method = p.startLine.FinishString()

	if !p.startLine.Append(target) {
		return 0, Insufficient, status.ErrTooLongRequestLine
	}
	request.RequestURI = p.startLine.FinishString()
	request.Path, request.Query = request.RequestURI, ""
	if q := bytes.IndexByte(target, '?'); q != -1 {
		request.Path, request.Query = request.RequestURI[:q], request.RequestURI[q+1:]
	}

	if !p.startLine.Append(version) {
		return 0, Insufficient, status.ErrTooLongRequestLine
	}
	request.Proto = p.startLine.FinishString()
	request.Protocol = proto.FromString(request.Proto)

	return lineEnd + len(crlf), Parsed, nil
}

// HeaderField extracts a single header field, or consumes the empty line terminating the
// header section. A line break followed by a space or a tab is an obsolete line folding,
// so the field continues on the next line; the break is replaced by a single space.
func (p *Parser) HeaderField(data []byte) (n int, progress Progress, err error) {
	if len(data) < len(crlf) {
		return 0, Insufficient, nil
	}

	if data[0] == '\r' && data[1] == '\n' {
		p.scanned = 0
		return len(crlf), HeadersEnd, nil
	}

	lineEnd := p.fieldEnd(data)
	if lineEnd == -1 {
		if len(data) > p.cfg.Headers.Space.Maximal {
			return 0, Insufficient, status.ErrHeaderFieldsTooLarge
		}

		return 0, Insufficient, nil
	}

	p.scanned = 0

	line := data[:lineEnd]
	colon := bytes.IndexByte(line, ':')
	switch colon {
	case -1:
		return 0, Insufficient, status.ErrNoColon
	case 0:
		return 0, Insufficient, status.ErrEmptyHeaderName
	}

	if p.headersNumber++; p.headersNumber > p.cfg.Headers.Number.Maximal {
		return 0, Insufficient, status.ErrTooManyHeaders
	}

	if !p.headerSpace.Append(line[:colon]) {
		return 0, Insufficient, status.ErrHeaderFieldsTooLarge
	}
	key := p.headerSpace.FinishString()

	if !p.appendFolded(line[colon+1:]) {
		return 0, Insufficient, status.ErrHeaderFieldsTooLarge
	}

	p.request.Headers.Add(key, p.headerSpace.FinishString())

	return lineEnd + len(crlf), Parsed, nil
}

// lineEnd returns the index of the first line break, or -1 if there's none yet.
func (p *Parser) lineEnd(data []byte) int {
	offset := p.resumeAt(data)
	if lf := bytes.Index(data[offset:], crlf); lf != -1 {
		return offset + lf
	}

	p.suspendAt(data)
	return -1
}

// fieldEnd returns the index of the line break terminating the field, or -1 if it can't be
// told yet.
func (p *Parser) fieldEnd(data []byte) int {
	for offset := p.resumeAt(data); ; {
		lf := bytes.Index(data[offset:], crlf)
		if lf == -1 {
			p.suspendAt(data)
			return -1
		}

		end := offset + lf
		if end+len(crlf) >= len(data) {
			// can't tell whether the next line is a continuation
			p.scanned = end
			return -1
		}

		if c := data[end+len(crlf)]; c != ' ' && c != '\t' {
			return end
		}

		offset = end + len(crlf)
	}
}

func (p *Parser) resumeAt(data []byte) int {
	if p.scanned > len(data) {
		return 0
	}

	return p.scanned
}

// suspendAt remembers that no line break is within data, except one possibly split
// right after its last byte.
func (p *Parser) suspendAt(data []byte) {
	p.scanned = max(len(data)-len(crlf)+1, 0)
}

// appendFolded writes the trimmed value into the header space. Folded lines are trimmed
// as well and joined by a single space.
func (p *Parser) appendFolded(value []byte) (ok bool) {
	first := true
	for len(value) > 0 {
		var line []byte
		if lf := bytes.Index(value, crlf); lf == -1 {
			line, value = value, nil
		} else {
			line, value = value[:lf], value[lf+len(crlf):]
		}

		line = trimSpaces(line)
		if len(line) == 0 {
			continue
		}

		if !first && !p.headerSpace.AppendByte(' ') {
			return false
		}

		if !p.headerSpace.Append(line) {
			return false
		}

		first = false
	}

	return true
}

// Reset clears the arenas. Strings produced before are invalidated.
func (p *Parser) Reset() {
	p.startLine.Clear()
	p.headerSpace.Clear()
	p.headersNumber = 0
	p.scanned = 0
}

func trimSpaces(b []byte) []byte {
	for len(b) > 0 && (b[0] == ' ' || b[0] == '\t') {
		b = b[1:]
	}

	for len(b) > 0 && (b[len(b)-1] == ' ' || b[len(b)-1] == '\t') {
		b = b[:len(b)-1]
	}

	return b
}
