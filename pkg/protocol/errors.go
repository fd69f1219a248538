package protocol

import (
	"fmt"
	"strings"

	"github.com/pkg/errors"
)

// Code classifies a failure for the client.
type Code string

const (
	// CodeInvalidArgument means the request was well formed but its
	// arguments were not acceptable. The connection stays open.
	CodeInvalidArgument Code = "invalid_argument"
	// CodeProtocol means the frame could not be decoded or named an unknown
	// op. The server closes the connection after replying.
	CodeProtocol Code = "protocol_error"
	// CodeTransport means reading or writing the connection failed.
	CodeTransport Code = "transport_error"
	// CodeInternal is anything else.
	CodeInternal Code = "internal"
)

// Error is a failure with a Code attached.
type Error struct {
	Code Code
	Msg  string
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Msg)
}

// InvalidArgumentf builds a CodeInvalidArgument error.
func InvalidArgumentf(format string, args ...interface{}) error {
	return errors.WithStack(&Error{Code: CodeInvalidArgument, Msg: fmt.Sprintf(format, args...)})
}

// ProtocolErrorf builds a CodeProtocol error.
func ProtocolErrorf(format string, args ...interface{}) error {
	return errors.WithStack(&Error{Code: CodeProtocol, Msg: fmt.Sprintf(format, args...)})
}

// TransportError wraps an I/O failure on a connection.
func TransportError(err error, msg string) error {
	return errors.WithStack(&Error{Code: CodeTransport, Msg: errors.Wrap(err, msg).Error()})
}

// CodeOf returns the Code carried by err, or CodeInternal.
func CodeOf(err error) Code {
	if e, ok := errors.Cause(err).(*Error); ok {
		return e.Code
	}
	return CodeInternal
}

// ClosesConnection reports whether the server must drop the connection
// after err.
func ClosesConnection(err error) bool {
	switch CodeOf(err) {
	case CodeProtocol, CodeTransport:
		return true
	}
	return false
}

// RemoteError rebuilds the error carried by a failed response.
func RemoteError(resp Response) error {
	if resp.OK {
		return nil
	}

	code := resp.Code
	if code == "" {
		code = CodeInternal
	}
	return &Error{Code: code, Msg: strings.TrimPrefix(resp.Error, string(code)+": ")}
}
