// Copyright (c) 2026 The gopql Authors. All rights reserved.

package gopql

import (
	"context"
	"errors"
	"fmt"
)

// ErrorKind classifies a QueryError.
type ErrorKind int

const (
	// InvalidClause is structural misuse of the builder, detected locally at build time.
	InvalidClause ErrorKind = iota + 1
	// MalformedQuery is a query that violates compiler invariants before submission.
	MalformedQuery
	// RemoteQuery is a non-success response from the remote engine.
	RemoteQuery
	// Timeout is a deadline exceeded while talking to the remote engine.
	Timeout
	// Configuration is a session, credential or connection file problem.
	Configuration
)

func (k ErrorKind) String() string {
	switch k {
	case InvalidClause:
		return "InvalidClauseError"
	case MalformedQuery:
		return "MalformedQueryError"
	case RemoteQuery:
		return "RemoteQueryError"
	case Timeout:
		return "TimeoutError"
	case Configuration:
		return "ConfigurationError"
	default:
		return "UnknownError"
	}
}

// QueryError is an error type including the gopql error number, its kind and,
// for remote failures, the HTTP status and payload returned by the engine.
type QueryError struct {
	Number      int
	Kind        ErrorKind
	StatusCode  int
	Payload     string
	Message     string
	MessageArgs []interface{}
	Err         error
}

func (qe *QueryError) Error() string {
	message := qe.Message
	if len(qe.MessageArgs) > 0 {
		message = fmt.Sprintf(qe.Message, qe.MessageArgs...)
	}
	if qe.StatusCode != 0 {
		message = fmt.Sprintf("%s (status %d)", message, qe.StatusCode)
	}
	if qe.Err != nil {
		message = fmt.Sprintf("%s: %v", message, qe.Err)
	}
	return fmt.Sprintf("%06d (%s): %s", qe.Number, qe.Kind, message)
}

// Unwrap returns the underlying cause, if any.
func (qe *QueryError) Unwrap() error {
	return qe.Err
}

// Is matches a kind sentinel (a QueryError with only Kind set) against any
// error of that kind, and numbered errors by number.
func (qe *QueryError) Is(target error) bool {
	t, ok := target.(*QueryError)
	if !ok {
		return false
	}
	if t.Number == 0 {
		return t.Kind == qe.Kind
	}
	return t.Number == qe.Number
}

const (
	// builder

	// ErrCodeGroupByTwice is an error code for a second GroupBy on one chain.
	ErrCodeGroupByTwice = 270001
	// ErrCodeEmptyGroupBy is an error code for a GroupBy without columns.
	ErrCodeEmptyGroupBy = 270002
	// ErrCodeHavingWithoutGroupBy is an error code for a Having that has no preceding GroupBy.
	ErrCodeHavingWithoutGroupBy = 270003
	// ErrCodeNegativeLimit is an error code for a negative limit.
	ErrCodeNegativeLimit = 270004
	// ErrCodeLimitTwice is an error code for a second Limit on one chain.
	ErrCodeLimitTwice = 270005
	// ErrCodeNegativeOffset is an error code for a negative offset.
	ErrCodeNegativeOffset = 270006
	// ErrCodeOffsetTwice is an error code for a second Offset on one chain.
	ErrCodeOffsetTwice = 270007
	// ErrCodeUnknownColumn is an error code for a column reference the schema does not know.
	ErrCodeUnknownColumn = 270008
	// ErrCodeEmptyPredicate is an error code for a Filter or Having with a blank predicate.
	ErrCodeEmptyPredicate = 270009
	// ErrCodeEmptyColumn is an error code for a blank GroupBy or OrderBy column.
	ErrCodeEmptyColumn = 270010
	// ErrCodeInvalidChunkSize is an error code for IterChunks with a non positive chunk size.
	ErrCodeInvalidChunkSize = 270011

	// compiler

	// ErrCodeEmptySelect is an error code for a query without select items.
	ErrCodeEmptySelect = 271001
	// ErrCodeUnparsableSelect is an error code for a select list with unbalanced brackets or quotes.
	ErrCodeUnparsableSelect = 271002
	// ErrCodeInvariantViolated is an error code for a clause list that breaks a query invariant.
	ErrCodeInvariantViolated = 271003

	// remote

	// ErrCodeRemoteFailure is an error code for a non-success response from the engine.
	ErrCodeRemoteFailure = 272001
	// ErrCodePermissionDenied is an error code for 401 and 403 responses.
	ErrCodePermissionDenied = 272002
	// ErrCodeNotFound is an error code for 404 responses.
	ErrCodeNotFound = 272003
	// ErrCodeExportFailed is an error code for an export job that ended FAILED or EXPIRED.
	ErrCodeExportFailed = 272004
	// ErrCodeUnsupportedChunkFormat is an error code for a result chunk in an unknown format.
	ErrCodeUnsupportedChunkFormat = 272005
	// ErrCodeTransportFailure is an error code for a transport failure without a status.
	ErrCodeTransportFailure = 272006
	// ErrCodeInvalidPageToken is an error code for a page token the transport did not issue.
	ErrCodeInvalidPageToken = 272007
	// ErrCodeCanceled is an error code for a query whose context was canceled by the caller.
	ErrCodeCanceled = 272008

	// ErrCodeTimeout is an error code for a deadline exceeded in the transport.
	ErrCodeTimeout = 273001

	// configuration

	// ErrCodeEmptyURL is an error code for a session without base URL.
	ErrCodeEmptyURL = 274001
	// ErrCodeEmptyCredentials is an error code for a session without API token or OAuth client.
	ErrCodeEmptyCredentials = 274002
	// ErrCodeInvalidKeyType is an error code for an unknown key type.
	ErrCodeInvalidKeyType = 274003
	// ErrCodeExpiredToken is an error code for a bearer token whose exp claim is in the past.
	ErrCodeExpiredToken = 274004
	// ErrCodeMissingDataModel is an error code for a query sent over HTTP without data model id.
	ErrCodeMissingDataModel = 274005
	// ErrCodeInvalidConfigFile is an error code for an unreadable or invalid connection file.
	ErrCodeInvalidConfigFile = 274006
	// ErrCodeInvalidConfigValue is an error code for an out of range configuration value.
	ErrCodeInvalidConfigValue = 274007
	// ErrCodeConnectionNotFound is an error code for a missing named connection.
	ErrCodeConnectionNotFound = 274008
	// ErrCodeNoConnectionFile is an error code for a config directory without connection file.
	ErrCodeNoConnectionFile = 274009
	// ErrCodeClientConfigFailed is an error code for an unusable client config file.
	ErrCodeClientConfigFailed = 274010
)

const (
	errMsgGroupByTwice         = "group by may be specified only once per query"
	errMsgEmptyGroupBy         = "group by requires at least one column"
	errMsgHavingWithoutGroupBy = "having requires a preceding group by"
	errMsgNegativeLimit        = "limit must not be negative: %v"
	errMsgLimitTwice           = "limit may be specified only once per query"
	errMsgNegativeOffset       = "offset must not be negative: %v"
	errMsgOffsetTwice          = "offset may be specified only once per query"
	errMsgUnknownColumn        = "column %v is not part of the data model"
	errMsgEmptyPredicate       = "%v predicate must not be empty"
	errMsgEmptyColumn          = "%v column must not be empty"
	errMsgInvalidChunkSize     = "chunk size must be positive: %v"
	errMsgEmptySelect          = "select list must not be empty"
	errMsgUnparsableSelect     = "select list cannot be parsed: %v"
	errMsgInvariantViolated    = "query is malformed: %v"
	errMsgRemoteFailure        = "remote query failed"
	errMsgPermissionDenied     = "permission denied for %v"
	errMsgNotFound             = "resource not found: %v"
	errMsgExportFailed         = "export %v ended with status %v: %v"
	errMsgUnsupportedFormat    = "unsupported result chunk format: %v"
	errMsgTransportFailure     = "transport failed"
	errMsgInvalidPageToken     = "invalid page token: %v"
	errMsgTimeout              = "query timed out"
	errMsgCanceled             = "query canceled"
	errMsgEmptyURL             = "base URL is empty"
	errMsgEmptyCredentials     = "either an API token or an OAuth client id and secret is required"
	errMsgInvalidKeyType       = "invalid key type: %v"
	errMsgExpiredToken         = "API token expired at %v"
	errMsgMissingDataModel     = "query has no data model id"
	errMsgInvalidConfigFile    = "invalid connection file %v"
	errMsgInvalidConfigValue   = "invalid value for %v: %v"
	errMsgConnectionNotFound   = "connection %v not found"
	errMsgNoConnectionFile     = "no %v found in %v"
	errMsgClientConfigFailed   = "client config could not be applied: %v"
)

var (
	// kind sentinels, matched with errors.Is against any QueryError of the same kind

	// ErrInvalidClause matches every InvalidClause error.
	ErrInvalidClause = &QueryError{Kind: InvalidClause}
	// ErrMalformedQuery matches every MalformedQuery error.
	ErrMalformedQuery = &QueryError{Kind: MalformedQuery}
	// ErrRemoteQuery matches every RemoteQuery error.
	ErrRemoteQuery = &QueryError{Kind: RemoteQuery}
	// ErrTimeout matches every Timeout error.
	ErrTimeout = &QueryError{Kind: Timeout}
	// ErrConfiguration matches every Configuration error.
	ErrConfiguration = &QueryError{Kind: Configuration}
)

func newInvalidClauseError(number int, message string, args ...interface{}) *QueryError {
	return &QueryError{Number: number, Kind: InvalidClause, Message: message, MessageArgs: args}
}

func newMalformedQueryError(number int, message string, args ...interface{}) *QueryError {
	return &QueryError{Number: number, Kind: MalformedQuery, Message: message, MessageArgs: args}
}

func newConfigurationError(number int, message string, args ...interface{}) *QueryError {
	return &QueryError{Number: number, Kind: Configuration, Message: message, MessageArgs: args}
}

// NewRemoteQueryError builds the error a Transport returns for a non-success
// response. The status and payload are kept verbatim.
func NewRemoteQueryError(statusCode int, payload string) *QueryError {
	return &QueryError{
		Number:     ErrCodeRemoteFailure,
		Kind:       RemoteQuery,
		StatusCode: statusCode,
		Payload:    payload,
		Message:    errMsgRemoteFailure,
	}
}

func newCanceledError(cause error) *QueryError {
	return &QueryError{
		Number:  ErrCodeCanceled,
		Kind:    RemoteQuery,
		Message: errMsgCanceled,
		Err:     cause,
	}
}

// contextError maps an exceeded deadline to a TimeoutError and a canceled
// context to ErrCodeCanceled. Both keep the context error as cause.
func contextError(err error) *QueryError {
	if errors.Is(err, context.Canceled) {
		return newCanceledError(err)
	}
	return NewTimeoutError(err)
}

// NewTimeoutError builds the error a Transport returns when a deadline was exceeded.
func NewTimeoutError(cause error) *QueryError {
	return &QueryError{
		Number:  ErrCodeTimeout,
		Kind:    Timeout,
		Message: errMsgTimeout,
		Err:     cause,
	}
}
