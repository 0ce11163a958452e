package http1

import (
	"strings"
	"testing"

	"github.com/dchest/uniuri"
	"github.com/indigo-web/framer/config"
	"github.com/indigo-web/framer/http"
	"github.com/indigo-web/framer/http/proto"
	"github.com/indigo-web/framer/http/status"
	"github.com/indigo-web/framer/kv"
	"github.com/stretchr/testify/require"
)

func getParser(cfg *config.Config) (*Parser, *http.Request) {
	if cfg == nil {
		cfg = config.Default()
	}

	request := http.NewRequest(kv.New(), nil)
	return NewParser(cfg, request), request
}

// parseHead runs the tokenizers over the data until the end of the header section,
// returning the number of consumed bytes.
func parseHead(p *Parser, data []byte) (consumed int, err error) {
	n, progress, err := p.RequestLine(data)
	if err != nil || progress == Insufficient {
		return 0, err
	}

	consumed += n
	for {
		n, progress, err = p.HeaderField(data[consumed:])
		if err != nil || progress == Insufficient {
			return consumed, err
		}

		consumed += n
		if progress == HeadersEnd {
			return consumed, nil
		}
	}
}

func TestRequestLine(t *testing.T) {
	tcs := []struct {
		Name, Line                        string
		Method, URI, Path, Query, Version string
		Protocol                          proto.Proto
	}{
		{
			Name: "simple", Line: "GET / HTTP/1.1\r\n",
			Method: "GET", URI: "/", Path: "/", Version: "HTTP/1.1", Protocol: proto.HTTP11,
		},
		{
			Name: "query", Line: "GET /a?b=1 HTTP/1.1\r\n",
			Method: "GET", URI: "/a?b=1", Path: "/a", Query: "b=1", Version: "HTTP/1.1", Protocol: proto.HTTP11,
		},
		{
			Name: "only first question mark splits", Line: "POST /a?b?c HTTP/1.0\r\n",
			Method: "POST", URI: "/a?b?c", Path: "/a", Query: "b?c", Version: "HTTP/1.0", Protocol: proto.HTTP10,
		},
		{
			Name: "empty query", Line: "GET /? HTTP/1.1\r\n",
			Method: "GET", URI: "/?", Path: "/", Version: "HTTP/1.1", Protocol: proto.HTTP11,
		},
		{
			Name: "unknown version", Line: "GET / HTTP/2.7\r\n",
			Method: "GET", URI: "/", Path: "/", Version: "HTTP/2.7", Protocol: proto.Unknown,
		},
		{
			Name: "extended method", Line: "PROPFIND /dav HTTP/1.1\r\n",
			Method: "PROPFIND", URI: "/dav", Path: "/dav", Version: "HTTP/1.1", Protocol: proto.HTTP11,
		},
	}

	for _, tc := range tcs {
		t.Run(tc.Name, func(t *testing.T) {
			p, request := getParser(nil)
			n, progress, err := p.RequestLine([]byte(tc.Line + "Host: x\r\n"))
			require.NoError(t, err)
			require.Equal(t, Parsed, progress)
			require.Equal(t, len(tc.Line), n)
			require.Equal(t, tc.Method, request.Method)
			require.Equal(t, tc.URI, request.RequestURI)
			require.Equal(t, tc.Path, request.Path)
			require.Equal(t, tc.Query, request.Query)
			require.Equal(t, tc.Version, request.Proto)
			require.Equal(t, tc.Protocol, request.Protocol)
		})
	}

	t.Run("random tokens", func(t *testing.T) {
		for range 100 {
			method, path, query := uniuri.NewLen(7), "/"+uniuri.New(), uniuri.NewLen(20)
			p, request := getParser(nil)
			line := method + " " + path + "?" + query + " HTTP/1.1\r\n"
			_, progress, err := p.RequestLine([]byte(line))
			require.NoError(t, err)
			require.Equal(t, Parsed, progress)
			require.Equal(t, method, request.Method)
			require.Equal(t, path, request.Path)
			require.Equal(t, query, request.Query)
		}
	})

	t.Run("insufficient data", func(t *testing.T) {
		p, request := getParser(nil)
		for _, line := range []string{"", "GET", "GET / HTTP/1.1", "GET / HTTP/1.1\r"} {
			n, progress, err := p.RequestLine([]byte(line))
			require.NoError(t, err)
			require.Equal(t, Insufficient, progress)
			require.Zero(t, n)
			require.Empty(t, request.Method)
		}
	})

	t.Run("no version", func(t *testing.T) {
		for _, line := range []string{"GET /\r\n", "GET\r\n", "\r\n", "GET /index.html\r\nHost: x\r\n\r\n"} {
			p, _ := getParser(nil)
			_, _, err := p.RequestLine([]byte(line))
			require.EqualError(t, err, status.ErrNoVersion.Error(), line)
		}
	})

	t.Run("empty tokens", func(t *testing.T) {
		p, _ := getParser(nil)
		_, _, err := p.RequestLine([]byte(" / HTTP/1.1\r\n"))
		require.ErrorIs(t, err, status.ErrBadRequest)

		p, _ = getParser(nil)
		_, _, err = p.RequestLine([]byte("GET  HTTP/1.1\r\n"))
		require.ErrorIs(t, err, status.ErrBadRequest)
	})

	t.Run("too long", func(t *testing.T) {
		cfg := config.Default()
		cfg.URI.RequestLineSize.Maximal = 64
		p, _ := getParser(cfg)
		_, _, err := p.RequestLine([]byte("GET /" + strings.Repeat("a", 100)))
		require.ErrorIs(t, err, status.ErrTooLongRequestLine)

		p, _ = getParser(cfg)
		_, _, err = p.RequestLine([]byte("GET /" + strings.Repeat("a", 60) + " HTTP/1.1\r\n"))
		require.ErrorIs(t, err, status.ErrTooLongRequestLine)
	})
}

func TestHeaderField(t *testing.T) {
	t.Run("simple", func(t *testing.T) {
		p, request := getParser(nil)
		raw := "GET / HTTP/1.1\r\nHost: example.com\r\nContent-Type:text/plain  \r\n\r\nbody"
		n, err := parseHead(p, []byte(raw))
		require.NoError(t, err)
		require.Equal(t, len(raw)-len("body"), n)
		require.Equal(t, "example.com", request.Headers.Value("host"))
		require.Equal(t, "text/plain", request.Headers.Value("content-type"))
	})

	t.Run("values accumulate", func(t *testing.T) {
		p, request := getParser(nil)
		raw := "GET / HTTP/1.1\r\nAccept: text/html\r\nX-Other: 1\r\naccept: */*\r\nACCEPT: a, b\r\n\r\n"
		_, err := parseHead(p, []byte(raw))
		require.NoError(t, err)
		require.Equal(t, []string{"text/html", "*/*", "a, b"}, request.Headers.Values("Accept"))
		require.Equal(t, 2, request.Headers.Len())
	})

	t.Run("obsolete line folding", func(t *testing.T) {
		p, request := getParser(nil)
		raw := "GET / HTTP/1.1\r\nX-Folded: first \r\n second\r\n\t  third\r\nHost: x\r\n\r\n"
		_, err := parseHead(p, []byte(raw))
		require.NoError(t, err)
		require.Equal(t, "first second third", request.Headers.Value("x-folded"))
		require.Equal(t, "x", request.Headers.Value("host"))
		require.Equal(t, 2, request.Headers.Len())
	})

	t.Run("lookahead is required", func(t *testing.T) {
		p, request := getParser(nil)
		for _, data := range []string{"H", "Host: x", "Host: x\r", "Host: x\r\n"} {
			n, progress, err := p.HeaderField([]byte(data))
			require.NoError(t, err)
			require.Equal(t, Insufficient, progress, data)
			require.Zero(t, n)
		}

		require.True(t, request.Headers.Empty())
	})

	t.Run("end of headers", func(t *testing.T) {
		p, _ := getParser(nil)
		n, progress, err := p.HeaderField([]byte("\r\nGET"))
		require.NoError(t, err)
		require.Equal(t, HeadersEnd, progress)
		require.Equal(t, 2, n)
	})

	t.Run("no colon", func(t *testing.T) {
		p, _ := getParser(nil)
		_, _, err := p.HeaderField([]byte("Host example.com\r\n\r\n"))
		require.ErrorIs(t, err, status.ErrNoColon)
	})

	t.Run("empty name", func(t *testing.T) {
		p, _ := getParser(nil)
		_, _, err := p.HeaderField([]byte(": value\r\n\r\n"))
		require.ErrorIs(t, err, status.ErrEmptyHeaderName)
	})

	t.Run("empty value", func(t *testing.T) {
		p, request := getParser(nil)
		_, progress, err := p.HeaderField([]byte("X-Empty:\r\n\r\n"))
		require.NoError(t, err)
		require.Equal(t, Parsed, progress)
		require.True(t, request.Headers.Has("x-empty"))
		require.Empty(t, request.Headers.Value("x-empty"))
	})

	t.Run("too many headers", func(t *testing.T) {
		cfg := config.Default()
		cfg.Headers.Number.Maximal = 2
		p, _ := getParser(cfg)
		_, err := parseHead(p, []byte("GET / HTTP/1.1\r\nA: 1\r\nB: 2\r\nC: 3\r\n\r\n"))
		require.ErrorIs(t, err, status.ErrTooManyHeaders)
	})

	t.Run("too large headers", func(t *testing.T) {
		cfg := config.Default()
		cfg.Headers.Space.Maximal = 32
		p, _ := getParser(cfg)
		_, err := parseHead(p, []byte("GET / HTTP/1.1\r\nCookie: "+strings.Repeat("a", 64)+"\r\n\r\n"))
		require.ErrorIs(t, err, status.ErrHeaderFieldsTooLarge)

		p, _ = getParser(cfg)
		_, _, err = p.HeaderField([]byte("Cookie: " + strings.Repeat("a", 64)))
		require.ErrorIs(t, err, status.ErrHeaderFieldsTooLarge)
	})

	t.Run("reset", func(t *testing.T) {
		p, request := getParser(nil)
		_, err := parseHead(p, []byte("GET /first HTTP/1.1\r\nA: 1\r\n\r\n"))
		require.NoError(t, err)

		p.Reset()
		request.Reset()
		_, err = parseHead(p, []byte("GET /second HTTP/1.1\r\nB: 2\r\n\r\n"))
		require.NoError(t, err)
		require.Equal(t, "/second", request.Path)
		require.False(t, request.Headers.Has("A"))
		require.Equal(t, "2", request.Headers.Value("b"))
	})
}

func TestIncrementalScan(t *testing.T) {
	t.Run("request line", func(t *testing.T) {
		p, request := getParser(nil)
		line := "GET /" + strings.Repeat("a", 1000) + " HTTP/1.1\r\n"
		for i := 1; i < len(line); i++ {
			_, progress, err := p.RequestLine([]byte(line[:i]))
			require.NoError(t, err)
			require.Equal(t, Insufficient, progress)
			// the bytes that were searched through aren't searched again
			require.Equal(t, i-1, p.scanned, "prefix length %d", i)
		}

		n, progress, err := p.RequestLine([]byte(line))
		require.NoError(t, err)
		require.Equal(t, Parsed, progress)
		require.Equal(t, len(line), n)
		require.Len(t, request.Path, 1001)
		require.Zero(t, p.scanned)
	})

	t.Run("header field", func(t *testing.T) {
		p, request := getParser(nil)
		field := "Cookie: " + strings.Repeat("x", 2000) + "\r\n\tfolded\r\n\r\n"
		var (
			n        int
			progress Progress
			err      error
		)
		for i := 2; i <= len(field) && progress == Insufficient; i++ {
			n, progress, err = p.HeaderField([]byte(field[:i]))
			require.NoError(t, err)
			require.LessOrEqual(t, p.scanned, i)
		}

		require.Equal(t, Parsed, progress)
		require.Equal(t, len(field)-len("\r\n"), n)
		require.Equal(t, strings.Repeat("x", 2000)+" folded", request.Headers.Value("cookie"))
		require.Zero(t, p.scanned)
	})

	t.Run("line break split between feeds", func(t *testing.T) {
		p, request := getParser(nil)
		_, progress, err := p.RequestLine([]byte("GET / HTTP/1.1\r"))
		require.NoError(t, err)
		require.Equal(t, Insufficient, progress)

		n, progress, err := p.RequestLine([]byte("GET / HTTP/1.1\r\n"))
		require.NoError(t, err)
		require.Equal(t, Parsed, progress)
		require.Equal(t, 16, n)
		require.Equal(t, "HTTP/1.1", request.Proto)
	})

	t.Run("reset forgets the position", func(t *testing.T) {
		p, _ := getParser(nil)
		_, _, err := p.RequestLine([]byte("GET /long-path-without-end"))
		require.NoError(t, err)
		require.NotZero(t, p.scanned)

		p.Reset()
		require.Zero(t, p.scanned)
		n, progress, err := p.RequestLine([]byte("GET / HTTP/1.1\r\n"))
		require.NoError(t, err)
		require.Equal(t, Parsed, progress)
		require.Equal(t, 16, n)
	})
}
