package settings

import (
	"errors"
	"fmt"
)

// ErrorKind classifies an update failure.
type ErrorKind int

const (
	UnknownSubject ErrorKind = iota + 1
	NoEdit
	WriteConflict
	WriteFailed
)

func (k ErrorKind) String() string {
	switch k {
	case UnknownSubject:
		return "unknown subject"
	case NoEdit:
		return "no edit"
	case WriteConflict:
		return "write conflict"
	case WriteFailed:
		return "write failed"
	default:
		return fmt.Sprintf("ErrorKind(%d)", int(k))
	}
}

// Sentinels matched by errors.Is against *Error. Backends wrap or match
// ErrWriteConflict for stale revisions.
var (
	ErrUnknownSubject = errors.New("unknown settings subject")
	ErrNoEdit         = errors.New("no edit specified")
	ErrWriteConflict  = errors.New("settings were changed concurrently")
	ErrWriteFailed    = errors.New("writing settings failed")
)

// ErrInvalidKeyPath is returned for structural paths with segments that are
// neither strings nor integers.
var ErrInvalidKeyPath = errors.New("invalid key path")

// Error is returned by Updater operations.
type Error struct {
	Kind      ErrorKind
	SubjectID string
	Err       error
}

func (e *Error) Error() string {
	switch e.Kind {
	case UnknownSubject:
		return fmt.Sprintf("unknown settings subject %q", e.SubjectID)
	case NoEdit:
		if e.Err != nil {
			return fmt.Sprintf("no edit specified: %v", e.Err)
		}
		return "no edit specified"
	case WriteConflict:
		return fmt.Sprintf("settings for %s were changed concurrently; reload and retry", e.SubjectID)
	default:
		return fmt.Sprintf("writing settings for %s: %v", e.SubjectID, e.Err)
	}
}

func (e *Error) Unwrap() error { return e.Err }

// Is reports whether target is the sentinel for e's kind.
func (e *Error) Is(target error) bool {
	switch e.Kind {
	case UnknownSubject:
		return target == ErrUnknownSubject
	case NoEdit:
		return target == ErrNoEdit
	case WriteConflict:
		return target == ErrWriteConflict
	case WriteFailed:
		return target == ErrWriteFailed
	}
	return false
}
