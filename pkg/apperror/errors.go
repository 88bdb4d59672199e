package apperror

import (
	"errors"
	"fmt"
	"net/http"
)

type Kind string

const (
	KindValidation          Kind = "validation"
	KindNotFound            Kind = "not_found"
	KindUpstreamUnavailable Kind = "upstream_unavailable"
	KindUploadRejected      Kind = "upload_rejected"
	KindSubmission          Kind = "submission"
	KindConflict            Kind = "conflict"
)

// Sentinels for errors.Is. Any *Error of the same kind matches.
var (
	ErrValidation          = &Error{Kind: KindValidation}
	ErrNotFound            = &Error{Kind: KindNotFound}
	ErrUpstreamUnavailable = &Error{Kind: KindUpstreamUnavailable}
	ErrUploadRejected      = &Error{Kind: KindUploadRejected}
	ErrSubmission          = &Error{Kind: KindSubmission}
	ErrConflict            = &Error{Kind: KindConflict}
)

// Error carries the failure kind plus the upstream status and body, when there is one.
type Error struct {
	Kind   Kind
	Op     string
	Status int
	Detail string
	Err    error
}

func (e *Error) Error() string {
	msg := string(e.Kind)
	if e.Op != "" {
		msg = e.Op + ": " + msg
	}
	if e.Status != 0 {
		msg = fmt.Sprintf("%s: HTTP %d", msg, e.Status)
	}
	if e.Detail != "" {
		msg += ": " + e.Detail
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

func Validation(op, detail string) *Error {
	return &Error{Kind: KindValidation, Op: op, Detail: detail}
}

func NotFound(op, detail string) *Error {
	return &Error{Kind: KindNotFound, Op: op, Detail: detail}
}

func Conflict(op, detail string) *Error {
	return &Error{Kind: KindConflict, Op: op, Detail: detail}
}

func Upstream(op string, status int, detail string, err error) *Error {
	return &Error{Kind: KindUpstreamUnavailable, Op: op, Status: status, Detail: detail, Err: err}
}

func UploadRejected(op string, status int, body string) *Error {
	return &Error{Kind: KindUploadRejected, Op: op, Status: status, Detail: body}
}

func Submission(op string, status int, body string) *Error {
	return &Error{Kind: KindSubmission, Op: op, Status: status, Detail: body}
}

// KindOf returns the kind of the first *Error in the chain, or "" if there is none.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// HTTPStatus maps an error to the status the endpoint layer reports.
func HTTPStatus(err error) int {
	switch KindOf(err) {
	case KindValidation:
		return http.StatusBadRequest
	case KindNotFound:
		return http.StatusNotFound
	case KindConflict:
		return http.StatusConflict
	case KindUpstreamUnavailable, KindUploadRejected, KindSubmission:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// Detail returns the message shown to callers: the detail of the first *Error, else err.Error().
func Detail(err error) string {
	var e *Error
	if errors.As(err, &e) {
		if e.Detail != "" {
			return e.Detail
		}
		if e.Err != nil {
			return e.Err.Error()
		}
		return string(e.Kind)
	}
	return err.Error()
}
