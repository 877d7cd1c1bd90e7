package errors

import (
	stderrors "errors"
	"fmt"
)

// Kind classifies a failure by the stage that produced it
type Kind string

const (
	// KindExtraction means a chapter page did not yield the expected script or manifest shape
	KindExtraction Kind = "extraction"
	// KindTransport means an HTTP fetch failed (network, non-2xx, cancellation)
	KindTransport Kind = "transport"
	// KindPersistence means a ledger or image write could not be completed
	KindPersistence Kind = "persistence"
	// KindUnknown is reported for errors that carry no kind
	KindUnknown Kind = "unknown"
)

// Error is a classified failure. None of the kinds are recovered from.
type Error struct {
	Kind Kind
	Op   string
	URL  string
	Code int
	Err  error
}

func (e *Error) Error() string {
	msg := string(e.Kind) + " error"
	if e.Op != "" {
		msg += " during " + e.Op
	}
	if e.Code != 0 {
		msg += fmt.Sprintf(" (code %d)", e.Code)
	}
	if e.URL != "" {
		msg += " [" + e.URL + "]"
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Extraction wraps err as an extraction failure
func Extraction(op, url string, err error) *Error {
	return &Error{Kind: KindExtraction, Op: op, URL: url, Err: err}
}

// Transport wraps err as a transport failure
func Transport(op, url string, err error) *Error {
	return &Error{Kind: KindTransport, Op: op, URL: url, Err: err}
}

// TransportStatus reports a non-2xx response
func TransportStatus(op, url string, code int) *Error {
	return &Error{
		Kind: KindTransport,
		Op:   op,
		URL:  url,
		Code: code,
		Err:  fmt.Errorf("unexpected status %d", code),
	}
}

// Persistence wraps err as a persistence failure. path is stored in URL.
func Persistence(op, path string, err error) *Error {
	return &Error{Kind: KindPersistence, Op: op, URL: path, Err: err}
}

// KindOf returns the kind of the first classified error in err's chain
func KindOf(err error) Kind {
	var e *Error
	if stderrors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

// IsExtraction reports whether err is an extraction failure
func IsExtraction(err error) bool { return KindOf(err) == KindExtraction }

// IsTransport reports whether err is a transport failure
func IsTransport(err error) bool { return KindOf(err) == KindTransport }

// IsPersistence reports whether err is a persistence failure
func IsPersistence(err error) bool { return KindOf(err) == KindPersistence }

// Classified returns err unchanged if it already carries a kind, otherwise it wraps it with kind.
func Classified(kind Kind, op, url string, err error) error {
	if err == nil {
		return nil
	}
	if KindOf(err) != KindUnknown {
		return err
	}
	return &Error{Kind: kind, Op: op, URL: url, Err: err}
}
