package assets

import (
	"context"
	"errors"
	"fmt"
)

// Kind classifies failures of DataManager operations.
type Kind uint8

const (
	KindOpen Kind = iota + 1
	KindIO
	KindEncoding
	KindStorage
	KindExhaustedNamespace
	KindIntegrity
	KindNotFound
	KindInvalidClass
)

// Sentinels matched by errors.Is against any *Error of the same kind.
var (
	ErrOpen               = errors.New("index cannot be opened")
	ErrIO                 = errors.New("blob file i/o failed")
	ErrEncoding           = errors.New("encoding failed")
	ErrStorage            = errors.New("index storage failed")
	ErrExhaustedNamespace = errors.New("no unused storage file name found")
	ErrIntegrity          = errors.New("blob digest mismatch")
	ErrNotFound           = errors.New("blob not found")
	ErrInvalidClass       = errors.New("invalid blob class")
)

var kindSentinels = map[Kind]error{
	KindOpen:               ErrOpen,
	KindIO:                 ErrIO,
	KindEncoding:           ErrEncoding,
	KindStorage:            ErrStorage,
	KindExhaustedNamespace: ErrExhaustedNamespace,
	KindIntegrity:          ErrIntegrity,
	KindNotFound:           ErrNotFound,
	KindInvalidClass:       ErrInvalidClass,
}

var kindNames = map[Kind]string{
	KindOpen:               "open",
	KindIO:                 "io",
	KindEncoding:           "encoding",
	KindStorage:            "storage",
	KindExhaustedNamespace: "exhausted_namespace",
	KindIntegrity:          "integrity",
	KindNotFound:           "not_found",
	KindInvalidClass:       "invalid_class",
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("kind(%d)", uint8(k))
}

// Error is the failure type of index, allocation, and blob operations.
// Context cancellation is returned unwrapped.
type Error struct {
	Kind Kind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	cause := e.Err
	if cause == nil {
		cause = kindSentinels[e.Kind]
	}
	if e.Op == "" {
		return cause.Error()
	}
	return fmt.Sprintf("%s: %v", e.Op, cause)
}

func (e *Error) Unwrap() error { return e.Err }

func (e *Error) Is(target error) bool {
	sentinel, ok := kindSentinels[e.Kind]
	return ok && sentinel == target
}

// KindOf returns the kind of the first *Error in err's chain, or 0.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return 0
}

// wrap tags err with kind and op unless it already carries a kind or is a
// context error.
func wrap(kind Kind, op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	var e *Error
	if errors.As(err, &e) {
		return err
	}
	return &Error{Kind: kind, Op: op, Err: err}
}
