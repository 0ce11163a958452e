package http

import (
	"strconv"

	"github.com/indigo-web/framer/http/status"
	"github.com/indigo-web/framer/kv"
	"github.com/indigo-web/framer/task"
	"github.com/indigo-web/utils/uf"
	json "github.com/json-iterator/go"
)

// BodyWriter writes the response body into the output. The returned future resolves once
// the body is completely written; failing it tears the connection down.
type BodyWriter func(out Output) *task.Future[struct{}]

// Handler turns a request into a deferred response.
type Handler func(request *Request) *task.Future[*Response]

// why 7? Same as for requests: a typical response rarely carries more.
const preallocRespHeaders = 7

// Fields are the values collected by the builder.
type Fields struct {
	Code status.Code
	// Reason overrides the default reason phrase of the code.
	Reason  string
	Headers *kv.Storage
	// Body is nil if the response has no body.
	Body BodyWriter
}

type Response struct {
	fields *Fields
}

// NewResponse returns a new instance of the Response object with status code set to 200 OK
// and pre-allocated space for response headers.
func NewResponse() *Response {
	return &Response{
		&Fields{
			Code:    status.OK,
			Headers: kv.NewPrealloc(preallocRespHeaders),
		},
	}
}

// Code sets a response code.
func (r *Response) Code(code status.Code) *Response {
	r.fields.Code = code
	return r
}

// Reason sets a custom reason phrase. If not set, the default one for the code is used.
func (r *Response) Reason(reason string) *Response {
	r.fields.Reason = reason
	return r
}

// Header adds the values to the key. Already present values are kept.
func (r *Response) Header(key string, values ...string) *Response {
	for _, value := range values {
		r.fields.Headers.Add(key, value)
	}

	return r
}

// Headers merges passed headers into the response.
func (r *Response) Headers(headers map[string][]string) *Response {
	for key, values := range headers {
		r.Header(key, values...)
	}

	return r
}

// ContentType sets the Content-Type header value.
func (r *Response) ContentType(value string) *Response {
	r.fields.Headers.Set("Content-Type", value)
	return r
}

// String sets the response's body to the passed string.
func (r *Response) String(body string) *Response {
	return r.Bytes(uf.S2B(body))
}

// Bytes sets the response's body to passed slice WITHOUT COPYING. Content-Length is set
// accordingly.
func (r *Response) Bytes(body []byte) *Response {
	r.fields.Headers.Set("Content-Length", strconv.Itoa(len(body)))
	if len(body) == 0 {
		r.fields.Body = nil
		return r
	}

	r.fields.Body = func(out Output) *task.Future[struct{}] {
		if err := out.Write(body); err != nil {
			return task.Failed[struct{}](err)
		}

		return task.Resolved(struct{}{})
	}

	return r
}

// Writer sets a custom body writer. Framing headers (Content-Length or Transfer-Encoding)
// are up to the caller; without them the connection is closed after the response.
func (r *Response) Writer(writer BodyWriter) *Response {
	r.fields.Body = writer
	return r
}

// TryJSON receives a model and serializes it into the body, returning an error if the
// serialization failed.
func (r *Response) TryJSON(model any) (*Response, error) {
	body, err := json.ConfigDefault.Marshal(model)
	if err != nil {
		return r, err
	}

	return r.ContentType("application/json").Bytes(body), nil
}

// JSON does the same as TryJSON does, except returned error is being implicitly wrapped
// by Error.
func (r *Response) JSON(model any) *Response {
	resp, err := r.TryJSON(model)
	if err != nil {
		return r.Error(err)
	}

	return resp
}

// Error returns a response builder with an error set. If passed err is nil, nothing will happen.
// If an instance of status.HTTPError is passed, error code will be automatically set. Custom
// codes can be passed, however only first will be used. By default, the code is 500.
func (r *Response) Error(err error, code ...status.Code) *Response {
	if err == nil {
		return r
	}

	if http, ok := err.(status.HTTPError); ok {
		return r.Code(http.Code).String(http.Message)
	}

	c := status.InternalServerError
	if len(code) > 0 {
		// peek the first, ignore the rest
		c = code[0]
	}

	return r.
		Code(c).
		String(err.Error())
}

// Reveal returns a struct with values, filled by builder. Used mostly in internal purposes.
func (r *Response) Reveal() *Fields {
	return r.fields
}

// Respond wraps the response into an already resolved future, as handlers return.
func Respond(response *Response) *task.Future[*Response] {
	return task.Resolved(response)
}
