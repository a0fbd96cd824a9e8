package errors

import (
	"errors"
	"fmt"
	"net/http"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

type Code codes.Code

const (
	CodeInvalidArgument = Code(codes.InvalidArgument)
	CodeNotFound        = Code(codes.NotFound)
	CodeConflict        = Code(codes.FailedPrecondition)
	CodeAlreadyExists   = Code(codes.AlreadyExists)
	CodeInternal        = Code(codes.Internal)
)

type mapping struct {
	http int
	kind string
}

var internalMapping = mapping{http: http.StatusInternalServerError, kind: "server_error"}

var mappings = map[Code]mapping{
	CodeInvalidArgument: {http: http.StatusBadRequest, kind: "invalid_input"},
	CodeNotFound:        {http: http.StatusNotFound, kind: "not_found"},
	CodeConflict:        {http: http.StatusConflict, kind: "conflict"},
	CodeAlreadyExists:   {http: http.StatusConflict, kind: "conflict"},
	CodeInternal:        internalMapping,
}

func (c Code) lookup() mapping {
	if m, ok := mappings[c]; ok {
		return m
	}

	return internalMapping
}

type Error struct {
	Code    Code   `json:"code"`
	Message string `json:"message"`
	err     error
}

func New(code Code, opts ...Option) *Error {
	e := &Error{
		Code:    code,
		Message: codes.Code(code).String(),
	}

	for _, opt := range opts {
		opt.apply(e)
	}

	return e
}

func (e *Error) Error() string {
	if e.err == nil {
		return e.Kind() + ": " + e.Message
	}

	return fmt.Sprintf("%s: %s: %v", e.Kind(), e.Message, e.err)
}

func (e *Error) Unwrap() error {
	return e.err
}

func (e *Error) GRPCStatus() *status.Status {
	return status.New(codes.Code(e.Code), e.Message)
}

func (e *Error) HTTPStatusCode() int {
	return e.Code.lookup().http
}

// Kind is the stable, transport independent name of the error code.
func (e *Error) Kind() string {
	return e.Code.lookup().kind
}

func Convert(err error) *Error {
	var e *Error
	if !errors.As(err, &e) {
		return Internal(err)
	}

	return e
}

// Is reports whether err carries the given code anywhere in its chain.
func Is(err error, code Code) bool {
	var e *Error
	return errors.As(err, &e) && e.Code == code
}

func Internal(err error) *Error {
	return New(CodeInternal, WithCause(err))
}

func InvalidArgument(format string, args ...any) *Error {
	return New(CodeInvalidArgument, WithMessagef(format, args...))
}

func NotFound(format string, args ...any) *Error {
	return New(CodeNotFound, WithMessagef(format, args...))
}

func Conflict(format string, args ...any) *Error {
	return New(CodeConflict, WithMessagef(format, args...))
}

type Option interface {
	apply(*Error)
}

type optionFunc func(*Error)

func (f optionFunc) apply(e *Error) {
	f(e)
}

func WithCause(err error) Option {
	return optionFunc(func(e *Error) {
		e.err = err
	})
}

func WithMessagef(format string, args ...any) Option {
	return optionFunc(func(e *Error) {
		e.Message = fmt.Sprintf(format, args...)
	})
}
