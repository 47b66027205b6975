package util

import (
	"fmt"

	"github.com/pkg/errors"
)

type ErrorKind int

const (
	KindIo ErrorKind = iota + 1
	KindCorruptPage
	KindNotAllocated
	KindInvalidEntry
	KindFreed
	KindDuplicate
)

var (
	ErrIo           = &StoreError{Kind: KindIo, Message: "io error"}
	ErrCorruptPage  = &StoreError{Kind: KindCorruptPage, Message: "corrupt page"}
	ErrNotAllocated = &StoreError{Kind: KindNotAllocated, Message: "node has no page"}
	ErrInvalidEntry = &StoreError{Kind: KindInvalidEntry, Message: "invalid entry"}
	ErrFreed        = &StoreError{Kind: KindFreed, Message: "node was freed"}
	ErrDuplicate    = &StoreError{Kind: KindDuplicate, Message: "page already cached"}
)

func (k ErrorKind) String() string {
	switch k {
	case KindIo:
		return "io"
	case KindCorruptPage:
		return "corrupt page"
	case KindNotAllocated:
		return "not allocated"
	case KindInvalidEntry:
		return "invalid entry"
	case KindFreed:
		return "freed"
	case KindDuplicate:
		return "duplicate"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// IoError wraps a channel failure. The cause stays reachable through Unwrap
// and errors.Cause.
func IoError(err error, format string, args ...any) *StoreError {
	return &StoreError{
		Kind:    KindIo,
		Message: fmt.Sprintf(format, args...),
		Err:     errors.Wrapf(err, format, args...),
	}
}

func CorruptPage(format string, args ...any) *StoreError {
	return &StoreError{Kind: KindCorruptPage, Message: fmt.Sprintf(format, args...)}
}

func NotAllocated(format string, args ...any) *StoreError {
	return &StoreError{Kind: KindNotAllocated, Message: fmt.Sprintf(format, args...)}
}

func InvalidEntry(format string, args ...any) *StoreError {
	return &StoreError{Kind: KindInvalidEntry, Message: fmt.Sprintf(format, args...)}
}

func Freed(format string, args ...any) *StoreError {
	return &StoreError{Kind: KindFreed, Message: fmt.Sprintf(format, args...)}
}

func Duplicate(format string, args ...any) *StoreError {
	return &StoreError{Kind: KindDuplicate, Message: fmt.Sprintf(format, args...)}
}

// KindOf returns the kind of the first StoreError in err's chain, or 0.
func KindOf(err error) ErrorKind {
	var se *StoreError
	if errors.As(err, &se) {
		return se.Kind
	}
	return 0
}

func (e *StoreError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, errors.Cause(e.Err))
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *StoreError) Unwrap() error {
	return e.Err
}

// Is matches any StoreError of the same kind, so the package sentinels can be
// used with errors.Is.
func (e *StoreError) Is(target error) bool {
	t, ok := target.(*StoreError)
	if !ok {
		return false
	}
	return e.Kind == t.Kind
}

type StoreError struct {
	Kind    ErrorKind
	Message string
	Err     error
}
