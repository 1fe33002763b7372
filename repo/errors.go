package repo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	gogithub "github.com/google/go-github/v75/github"
)

// Kind classifies why a repository operation failed.
type Kind int

const (
	KindUnknown Kind = iota
	KindUnauthenticated
	KindNotFound
	KindConflict
	KindRemoteUnavailable
	KindMalformedResponse
	KindEncryptionUnavailable
	KindInvalid
)

// Sentinels for use with errors.Is. Every *Error matches the sentinel of its Kind.
var (
	ErrUnauthenticated       = errors.New("unauthenticated")
	ErrNotFound              = errors.New("not found")
	ErrConflict              = errors.New("conflict")
	ErrRemoteUnavailable     = errors.New("remote unavailable")
	ErrMalformedResponse     = errors.New("malformed response")
	ErrEncryptionUnavailable = errors.New("encryption unavailable")
	ErrInvalid               = errors.New("invalid request")
)

func (k Kind) String() string {
	if s := k.sentinel(); s != nil {
		return s.Error()
	}
	return "unknown"
}

func (k Kind) sentinel() error {
	switch k {
	case KindUnauthenticated:
		return ErrUnauthenticated
	case KindNotFound:
		return ErrNotFound
	case KindConflict:
		return ErrConflict
	case KindRemoteUnavailable:
		return ErrRemoteUnavailable
	case KindMalformedResponse:
		return ErrMalformedResponse
	case KindEncryptionUnavailable:
		return ErrEncryptionUnavailable
	case KindInvalid:
		return ErrInvalid
	default:
		return nil
	}
}

// Error is returned by every Client operation that fails.
type Error struct {
	Op   string
	Kind Kind
	Err  error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s", e.Op, e.Kind)
	}
	return fmt.Sprintf("%s: %s: %v", e.Op, e.Kind, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Is reports whether target is the sentinel for e.Kind.
func (e *Error) Is(target error) bool {
	s := e.Kind.sentinel()
	return s != nil && target == s
}

// KindOf returns the Kind carried by err, or KindUnknown.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

// Succeeded is the single-bit view of an operation result.
func Succeeded(err error) bool {
	return err == nil
}

func fail(op string, kind Kind, err error) error {
	return &Error{Op: op, Kind: kind, Err: err}
}

// classify maps a go-github or transport error onto a Kind.
func classify(op string, err error) error {
	if err == nil {
		return nil
	}
	var already *Error
	if errors.As(err, &already) {
		return err
	}

	var (
		rateErr   *gogithub.RateLimitError
		abuseErr  *gogithub.AbuseRateLimitError
		respErr   *gogithub.ErrorResponse
		syntaxErr *json.SyntaxError
		typeErr   *json.UnmarshalTypeError
	)
	switch {
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return fail(op, KindRemoteUnavailable, err)
	case errors.As(err, &rateErr), errors.As(err, &abuseErr):
		return fail(op, KindRemoteUnavailable, err)
	case errors.As(err, &respErr):
		code := 0
		if respErr.Response != nil {
			code = respErr.Response.StatusCode
		}
		return fail(op, statusKind(code), err)
	case errors.As(err, &syntaxErr), errors.As(err, &typeErr):
		return fail(op, KindMalformedResponse, err)
	default:
		return fail(op, KindRemoteUnavailable, err)
	}
}

func statusKind(code int) Kind {
	switch {
	case code == http.StatusUnauthorized, code == http.StatusForbidden:
		return KindUnauthenticated
	case code == http.StatusNotFound:
		return KindNotFound
	case code == http.StatusConflict:
		return KindConflict
	case code >= 500:
		return KindRemoteUnavailable
	case code >= 400:
		return KindInvalid
	default:
		return KindMalformedResponse
	}
}

// staleWrite reclassifies a 422 from a contents PUT. GitHub answers that way
// when the file appeared after the revision lookup and no sha was sent.
func staleWrite(err error) error {
	var respErr *gogithub.ErrorResponse
	if errors.As(err, &respErr) && respErr.Response != nil &&
		respErr.Response.StatusCode == http.StatusUnprocessableEntity {
		if e, ok := err.(*Error); ok {
			return fail(e.Op, KindConflict, e.Err)
		}
	}
	return err
}

// expectStatus rejects 2xx answers other than the ones the endpoint documents.
func expectStatus(op string, resp *gogithub.Response, codes ...int) error {
	if resp == nil || resp.Response == nil {
		return fail(op, KindMalformedResponse, errors.New("no response"))
	}
	for _, c := range codes {
		if resp.StatusCode == c {
			return nil
		}
	}
	return fail(op, KindMalformedResponse, fmt.Errorf("unexpected status %d", resp.StatusCode))
}
