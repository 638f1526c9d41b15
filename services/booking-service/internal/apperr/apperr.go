// Package apperr classifies every failure the booking core can report.
package apperr

import (
	"errors"
	"fmt"

	"github.com/md-rashed-zaman/clinicbook/services/booking-service/internal/storage"
)

type Kind int

const (
	// StoreFailure is the zero value: anything unclassified is treated as a
	// transient persistence failure.
	StoreFailure Kind = iota
	InvalidRequest
	SlotAlreadyStarted
	SlotConflict
	NotFound
	VersionConflict
)

func (k Kind) String() string {
	switch k {
	case InvalidRequest:
		return "invalid_request"
	case SlotAlreadyStarted:
		return "slot_already_started"
	case SlotConflict:
		return "slot_conflict"
	case NotFound:
		return "not_found"
	case VersionConflict:
		return "version_conflict"
	default:
		return "store_failure"
	}
}

type Error struct {
	Kind   Kind
	Detail string
	Err    error
}

func (e *Error) Error() string {
	switch {
	case e.Err != nil && e.Detail != "":
		return e.Kind.String() + ": " + e.Detail + ": " + e.Err.Error()
	case e.Err != nil:
		return e.Kind.String() + ": " + e.Err.Error()
	case e.Detail != "":
		return e.Kind.String() + ": " + e.Detail
	default:
		return e.Kind.String()
	}
}

func (e *Error) Unwrap() error { return e.Err }

func New(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Detail: fmt.Sprintf(format, args...)}
}

func Wrap(kind Kind, err error, detail string) *Error {
	return &Error{Kind: kind, Detail: detail, Err: err}
}

// KindOf returns the kind of err. Errors that are not *Error are StoreFailure.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return StoreFailure
}

// DetailOf returns the human readable detail, or a generic message for store failures.
func DetailOf(err error) string {
	var e *Error
	if errors.As(err, &e) && e.Detail != "" && e.Kind != StoreFailure {
		return e.Detail
	}
	return "temporary storage failure, retry the request"
}

// FromStore converts storage sentinels into classified errors. what names the
// entity in NotFound details ("practitioner p-1").
func FromStore(err error, what string) error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		return err
	}
	switch {
	case errors.Is(err, storage.ErrNotFound):
		return Wrap(NotFound, err, what+" not found")
	case errors.Is(err, storage.ErrSlotTaken):
		return Wrap(SlotConflict, err, "slot is no longer available")
	case errors.Is(err, storage.ErrStaleVersion):
		return Wrap(VersionConflict, err, what+" was modified by someone else; reload and retry")
	default:
		return Wrap(StoreFailure, err, "")
	}
}
