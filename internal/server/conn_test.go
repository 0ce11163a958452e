package server

import (
	"strings"
	"testing"

	"github.com/indigo-web/framer/config"
	"github.com/indigo-web/framer/http"
	"github.com/indigo-web/framer/internal/metrics"
	"github.com/indigo-web/framer/task"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func echoPath(r *http.Request) *task.Future[*http.Response] {
	return task.Resolved(http.NewResponse().String(r.Path))
}

func newTestConn(handler http.Handler) (*conn, *fakeSocket, *[]int, *metrics.Metrics) {
	sock := new(fakeSocket)
	m := metrics.New()
	c := newConn(config.Default(), sock, nil, handler, zap.NewNop(), m)
	shutdowns := new([]int)
	c.transport.shutdown = func(fd int) error {
		*shutdowns = append(*shutdowns, fd)
		return nil
	}

	return c, sock, shutdowns, m
}

func counterValue(t *testing.T, m *metrics.Metrics, name string) (sum float64) {
	families, err := m.Registry().Gather()
	require.NoError(t, err)

	for _, family := range families {
		if family.GetName() != name {
			continue
		}

		for _, metric := range family.GetMetric() {
			sum += metric.GetCounter().GetValue()
		}
	}

	return sum
}

func TestConn(t *testing.T) {
	t.Run("pipelined requests", func(t *testing.T) {
		c, sock, _, m := newTestConn(echoPath)
		c.Feed([]byte("GET /first HTTP/1.1\r\n\r\nGET /second HTTP/1.1\r\n\r\nGET /thi"))
		sock.complete()
		c.Feed([]byte("rd HTTP/1.1\r\n\r\n"))
		sock.complete()

		require.Equal(t,
			"HTTP/1.1 200 OK\r\nContent-Length: 6\r\n\r\n/first"+
				"HTTP/1.1 200 OK\r\nContent-Length: 7\r\n\r\n/second"+
				"HTTP/1.1 200 OK\r\nContent-Length: 6\r\n\r\n/third",
			sock.Data(),
		)
		require.Zero(t, sock.Closed())
		require.Equal(t, 3.0, counterValue(t, m, "framer_requests_total"))
		require.Equal(t, 3.0, counterValue(t, m, "framer_request_cycle_ends_total"))
	})

	t.Run("byte by byte", func(t *testing.T) {
		c, sock, _, _ := newTestConn(echoPath)
		for _, char := range []byte("GET /index HTTP/1.1\r\nHost: localhost\r\n\r\n") {
			c.Feed([]byte{char})
		}

		sock.complete()
		require.Equal(t, "HTTP/1.1 200 OK\r\nContent-Length: 6\r\n\r\n/index", sock.Data())
	})

	t.Run("request body", func(t *testing.T) {
		c, sock, _, _ := newTestConn(func(r *http.Request) *task.Future[*http.Response] {
			// the body has fully arrived along with the headers, so reading doesn't block
			body, err := r.Body.String()
			if err != nil {
				return task.Failed[*http.Response](err)
			}

			return task.Resolved(http.NewResponse().String(strings.ToUpper(body)))
		})
		c.Feed([]byte("POST / HTTP/1.1\r\nContent-Length: 5\r\n\r\nhello"))
		sock.complete()
		require.Equal(t, "HTTP/1.1 200 OK\r\nContent-Length: 5\r\n\r\nHELLO", sock.Data())
	})

	t.Run("malformed request", func(t *testing.T) {
		c, sock, _, _ := newTestConn(echoPath)
		c.Feed([]byte("GET /\r\n\r\n"))
		sock.complete()
		require.Equal(t, 1, sock.Closed())
		require.Empty(t, sock.Data())

		c.Feed([]byte("GET / HTTP/1.1\r\n\r\n"))
		sock.complete()
		require.Empty(t, sock.Data())
	})

	t.Run("connection close", func(t *testing.T) {
		c, sock, shutdowns, _ := newTestConn(echoPath)
		c.Feed([]byte("GET /bye HTTP/1.1\r\nConnection: close\r\n\r\n"))
		sock.complete()
		require.Equal(t, "HTTP/1.1 200 OK\r\nContent-Length: 4\r\nConnection: close\r\n\r\n/bye", sock.Data())
		require.Equal(t, []int{42}, *shutdowns)
		require.Zero(t, sock.Closed())

		// the peer closes its side too, completing the close-delimited request body
		c.Close()
		require.True(t, c.done)
		require.Zero(t, sock.Closed())
	})

	t.Run("peer gone mid-request", func(t *testing.T) {
		c, sock, _, _ := newTestConn(echoPath)
		c.Feed([]byte("GET / HTTP/1.1\r\nHost: loc"))
		c.Close()
		require.True(t, c.done)
		require.Empty(t, sock.Data())

		c.Feed([]byte("alhost\r\n\r\n"))
		require.Empty(t, sock.Data())
	})
}
