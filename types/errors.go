package types

import (
	"encoding/hex"
	"errors"
	"fmt"
)

// Statement and data errors reported by the compilers, the entity codec and
// the request signer. They indicate a defect in the statement or its
// parameters and must not be retried.
const (
	// ErrCodeMalformedQuery when a statement cannot be parsed.
	ErrCodeMalformedQuery = "MalformedQuery"
	// ErrCodeUnsupportedStatement when the leading keyword is not one of
	// SELECT, INSERT, UPDATE or DELETE.
	ErrCodeUnsupportedStatement = "UnsupportedStatement"
	// ErrCodeUnsupportedClause when a statement contains JOIN or ORDER BY.
	ErrCodeUnsupportedClause = "UnsupportedClause"
	// ErrCodeColumnValueMismatch when an INSERT column count differs from its
	// value count.
	ErrCodeColumnValueMismatch = "ColumnValueMismatch"
	// ErrCodeParameterOutOfRange when a placeholder index exceeds the number
	// of supplied parameters.
	ErrCodeParameterOutOfRange = "ParameterOutOfRange"
	// ErrCodeMissingWhereClause when an UPDATE or DELETE has no WHERE clause.
	ErrCodeMissingWhereClause = "MissingWhereClause"
	// ErrCodeMissingKeyField when PartitionKey or RowKey is absent.
	ErrCodeMissingKeyField = "MissingKeyField"
	// ErrCodeUnsupportedPredicate when a write WHERE clause contains anything
	// beyond the two key equalities.
	ErrCodeUnsupportedPredicate = "UnsupportedPredicate"
	// ErrCodeInvalidKeyType when a key value is not a non-null string.
	ErrCodeInvalidKeyType = "InvalidKeyType"
	// ErrCodeUnsupportedParameterType when a parameter has no literal syntax.
	ErrCodeUnsupportedParameterType = "UnsupportedParameterType"
	// ErrCodeNumericOverflow when a value does not fit its target type.
	ErrCodeNumericOverflow = "NumericOverflow"
	// ErrCodeInvalidEncoding when a wire value cannot be decoded.
	ErrCodeInvalidEncoding = "InvalidEncoding"
	// ErrCodeUnsupportedType when a wire type tag is not recognized.
	ErrCodeUnsupportedType = "UnsupportedType"
	// ErrCodeMissingTypeMetadata when a required type tag is absent.
	ErrCodeMissingTypeMetadata = "MissingTypeMetadata"
	// ErrCodeInvalidKey when the account key is not valid base64.
	ErrCodeInvalidKey = "InvalidKey"
	// ErrCodeRequestFailure when the store rejects a request.
	ErrCodeRequestFailure = "RequestFailure"
)

// An Error wraps lower level errors with code, message and an original error.
// The underlying concrete error type may also satisfy other interfaces which
// can be used to obtain more specific information about the error.
type Error interface {
	error

	Code() string
	Message() string
	OrigErr() error
}

// NewError returns an Error object described by the code, message, and
// origErr.
func NewError(code, message string, origErr error) Error {
	return &baseError{
		code:    code,
		message: message,
		origErr: origErr,
	}
}

// IsCode reports whether err or any error it wraps carries the given code.
func IsCode(err error, code string) bool {
	var typed Error
	if errors.As(err, &typed) {
		return typed.Code() == code
	}

	return false
}

// A RequestFailure is an interface to extract request failure information
// from an Error, such as the status code and the request ID returned by the
// store.
type RequestFailure interface {
	Error
	StatusCode() int
	RequestID() string
}

// NewRequestFailure returns a wrapped error with additional information for
// the response status code and the service request ID.
func NewRequestFailure(err Error, statusCode int, reqID string) RequestFailure {
	return &requestError{
		storeError: err,
		statusCode: statusCode,
		requestID:  reqID,
	}
}

// UnmarshalError provides the interface for a failure to decode wire data.
type UnmarshalError interface {
	Error
	Bytes() []byte
}

// NewUnmarshalError returns an Error carrying the bytes that failed to
// decode.
func NewUnmarshalError(code, message string, b []byte, origErr error) UnmarshalError {
	return &unmarshalError{
		storeError: NewError(code, message, origErr),
		bytes:      b,
	}
}

// SprintError returns a string of the formatted error code.
func SprintError(code, message, extra string, origErr error) string {
	msg := fmt.Sprintf("%s: %s", code, message)
	if extra != "" {
		msg = fmt.Sprintf("%s\n\t%s", msg, extra)
	}

	if origErr != nil {
		msg = fmt.Sprintf("%s\ncaused by: %s", msg, origErr.Error())
	}

	return msg
}

// A baseError wraps the code and message which defines an error. It also can
// be used to wrap an original error object.
type baseError struct {
	code    string
	message string
	origErr error
}

// Error returns the string representation of the error.
func (b baseError) Error() string {
	return SprintError(b.code, b.message, "", b.origErr)
}

// String returns the string representation of the error.
// Alias for Error to satisfy the stringer interface.
func (b baseError) String() string {
	return b.Error()
}

// Code returns the short phrase depicting the classification of the error.
func (b baseError) Code() string {
	return b.code
}

// Message returns the error details message.
func (b baseError) Message() string {
	return b.message
}

// OrigErr returns the original error if one was set. Nil is returned if no
// error was set.
func (b baseError) OrigErr() error {
	return b.origErr
}

// Unwrap exposes the original error to the errors package.
func (b baseError) Unwrap() error {
	return b.origErr
}

// So that the Error interface type can be included as an anonymous field in
// the wrapping structs and not conflict with the error.Error() method.
type storeError Error

// A requestError wraps a failed store response.
type requestError struct {
	storeError
	statusCode int
	requestID  string
}

// Error returns the string representation of the error.
// Satisfies the error interface.
func (r requestError) Error() string {
	extra := fmt.Sprintf("status code: %d, request id: %s",
		r.statusCode, r.requestID)
	return SprintError(r.Code(), r.Message(), extra, r.OrigErr())
}

// String returns the string representation of the error.
// Alias for Error to satisfy the stringer interface.
func (r requestError) String() string {
	return r.Error()
}

// StatusCode returns the wrapped status code for the error
func (r requestError) StatusCode() int {
	return r.statusCode
}

// RequestID returns the wrapped requestID
func (r requestError) RequestID() string {
	return r.requestID
}

type unmarshalError struct {
	storeError
	bytes []byte
}

// Error returns the string representation of the error.
// Satisfies the error interface.
func (e unmarshalError) Error() string {
	extra := hex.Dump(e.bytes)
	return SprintError(e.Code(), e.Message(), extra, e.OrigErr())
}

// String returns the string representation of the error.
// Alias for Error to satisfy the stringer interface.
func (e unmarshalError) String() string {
	return e.Error()
}

// Bytes returns the bytes that failed to unmarshal.
func (e unmarshalError) Bytes() []byte {
	return e.bytes
}
