package status

type HTTPError struct {
	Message string
	Code    Code
}

func NewError(code Code, message string) error {
	return HTTPError{
		Code:    code,
		Message: message,
	}
}

func (h HTTPError) Error() string {
	return h.Message
}

var (
	ErrBadRequest           = NewError(BadRequest, "bad request")
	ErrNoVersion            = NewError(BadRequest, "request line has no protocol version")
	ErrNoColon              = NewError(BadRequest, "header line has no colon")
	ErrEmptyHeaderName      = NewError(BadRequest, "header name is empty")
	ErrTooLongRequestLine   = NewError(RequestURITooLong, "request line is too long")
	ErrHeaderFieldsTooLarge = NewError(RequestHeaderFieldsTooLarge, "too large headers section")
	ErrTooManyHeaders       = NewError(RequestHeaderFieldsTooLarge, "too many headers")
	ErrBadContentLength     = NewError(BadRequest, "malformed Content-Length value")
	ErrBadChunk             = NewError(BadRequest, "malformed chunk-encoded data")
	ErrBodyTooLarge         = NewError(RequestEntityTooLarge, "request body is too large")
	ErrUnexpectedEOF        = NewError(BadRequest, "connection closed before the body was complete")
	ErrUnsupportedEncoding  = NewError(NotImplemented, "unsupported transfer encoding")
	ErrNotFound             = NewError(NotFound, "not found")
	ErrInternalServerError  = NewError(InternalServerError, "internal server error")
)
