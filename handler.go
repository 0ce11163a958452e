package framer

import (
	"errors"

	"github.com/indigo-web/framer/http"
	"github.com/indigo-web/framer/task"
)

var ErrNotServing = errors.New("framer: the app isn't serving")

// HandlerFunc produces a response synchronously.
type HandlerFunc func(request *http.Request) (*http.Response, error)

// Sync adapts the function, calling it right on the connection's flow. It must not block:
// in particular, it mustn't read a request body that hasn't fully arrived yet. Use
// App.Offload for such handlers.
func Sync(fn HandlerFunc) http.Handler {
	return func(request *http.Request) *task.Future[*http.Response] {
		response, err := fn(request)
		if err != nil {
			return task.Failed[*http.Response](err)
		}

		return task.Resolved(response)
	}
}

// Offload runs the function on the worker pool, so it may freely block.
func (a *App) Offload(fn HandlerFunc) http.Handler {
	return func(request *http.Request) *task.Future[*http.Response] {
		pool := a.executor()
		if pool == nil {
			return task.Failed[*http.Response](ErrNotServing)
		}

		return task.Submit(pool, func() (*http.Response, error) {
			return fn(request)
		})
	}
}
