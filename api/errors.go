// Package api
// Author: momentics <momentics@gmail.com>
//
// Common error types and error handling utilities for wsgate.

package api

import (
	"errors"
	"fmt"
)

// Common errors used across the library.
var (
	ErrConnectionClosed = fmt.Errorf("connection is closed")
	ErrTransportClosed  = fmt.Errorf("transport is closed")
	ErrInvalidArgument  = fmt.Errorf("invalid argument")
	ErrNotSupported     = fmt.Errorf("operation not supported")
)

// ErrorCode classifies failures surfaced by a connection.
type ErrorCode int

const (
	ErrCodeOK ErrorCode = iota
	ErrCodeHandshake
	ErrCodeProtocol
	ErrCodeTransport
	ErrCodeInvalidArgument
	ErrCodeInternal
)

func (c ErrorCode) String() string {
	switch c {
	case ErrCodeOK:
		return "ok"
	case ErrCodeHandshake:
		return "handshake"
	case ErrCodeProtocol:
		return "protocol"
	case ErrCodeTransport:
		return "transport"
	case ErrCodeInvalidArgument:
		return "invalid argument"
	default:
		return "internal"
	}
}

// Error represents a structured error with code and context.
// CloseCode carries the WebSocket status code the failure maps to, or 0.
type Error struct {
	Code      ErrorCode
	CloseCode int
	Message   string
	Context   map[string]any
	Err       error
}

// Error implements the error interface.
func (e *Error) Error() string {
	msg := e.Message
	if e.Err != nil {
		msg = msg + ": " + e.Err.Error()
	}
	if len(e.Context) == 0 {
		return msg
	}
	return fmt.Sprintf("%s (context: %+v)", msg, e.Context)
}

// Unwrap exposes the underlying cause.
func (e *Error) Unwrap() error {
	return e.Err
}

// NewError creates a new structured error.
func NewError(code ErrorCode, message string) *Error {
	return &Error{
		Code:    code,
		Message: message,
	}
}

// WithContext adds context information to the error.
func (e *Error) WithContext(key string, value any) *Error {
	if e.Context == nil {
		e.Context = make(map[string]any)
	}
	e.Context[key] = value
	return e
}

// WithCloseCode sets the WebSocket status code associated with the error.
func (e *Error) WithCloseCode(code int) *Error {
	e.CloseCode = code
	return e
}

// WithCause attaches the underlying error.
func (e *Error) WithCause(err error) *Error {
	e.Err = err
	return e
}

// CodeOf returns the ErrorCode of err, or ErrCodeInternal when err does not
// carry one.
func CodeOf(err error) ErrorCode {
	if err == nil {
		return ErrCodeOK
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ErrCodeInternal
}

// CloseCodeOf returns the WebSocket status code carried by err, or 0.
func CloseCodeOf(err error) int {
	var e *Error
	if errors.As(err, &e) {
		return e.CloseCode
	}
	return 0
}

// IsHandshakeError reports whether err aborted an opening handshake.
func IsHandshakeError(err error) bool {
	return CodeOf(err) == ErrCodeHandshake
}

// IsProtocolError reports whether err is a framing or protocol violation.
func IsProtocolError(err error) bool {
	return CodeOf(err) == ErrCodeProtocol
}
