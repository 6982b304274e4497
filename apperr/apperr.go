// Package apperr defines the closed set of failures the timetable backend
// can produce below the HTTP layer.
package apperr

import (
	"errors"
	"fmt"
)

// Kind classifies an Error.
type Kind int

const (
	// KindNetwork: the timetable site did not answer or answered with a
	// transport-level failure (including non-2xx statuses).
	KindNetwork Kind = iota + 1
	// KindParsing: the page did not have the structure we scrape.
	KindParsing
	// KindCodec: a calendar query token matched neither query schema.
	KindCodec
)

func (k Kind) String() string {
	switch k {
	case KindNetwork:
		return "network error"
	case KindParsing:
		return "parsing error"
	case KindCodec:
		return "codec error"
	default:
		return "unknown error"
	}
}

// Sentinels for errors.Is. Any *Error of the same kind matches.
var (
	ErrNetwork = &Error{Kind: KindNetwork}
	ErrParsing = &Error{Kind: KindParsing}
	ErrCodec   = &Error{Kind: KindCodec}
)

// Error carries the kind, the operation that failed and the cause.
type Error struct {
	Kind Kind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	switch {
	case e.Op != "" && e.Err != nil:
		return fmt.Sprintf("%s: %s: %v", e.Op, e.Kind, e.Err)
	case e.Op != "":
		return fmt.Sprintf("%s: %s", e.Op, e.Kind)
	case e.Err != nil:
		return fmt.Sprintf("%s: %v", e.Kind, e.Err)
	default:
		return e.Kind.String()
	}
}

func (e *Error) Unwrap() error { return e.Err }

// Is reports kind equality so that errors.Is(err, ErrParsing) works for any
// parsing failure.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

// Network wraps err as a network failure of op.
func Network(op string, err error) error {
	return &Error{Kind: KindNetwork, Op: op, Err: err}
}

// Parsing wraps err as a parsing failure of op. err may be nil.
func Parsing(op string, err error) error {
	return &Error{Kind: KindParsing, Op: op, Err: err}
}

// Parsingf builds a parsing failure from a formatted message.
func Parsingf(op, format string, args ...any) error {
	return &Error{Kind: KindParsing, Op: op, Err: fmt.Errorf(format, args...)}
}

// Codec wraps err as a calendar query codec failure of op.
func Codec(op string, err error) error {
	return &Error{Kind: KindCodec, Op: op, Err: err}
}

// KindOf returns the kind of the first *Error in err's chain, or 0.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return 0
}
