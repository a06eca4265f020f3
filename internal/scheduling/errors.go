package scheduling

import (
	"errors"
	"fmt"

	"github.com/RobinCoderZhao/mcp-apps/internal/directory"
)

// Error categories. A *Failure matches exactly one of them with errors.Is.
var (
	ErrNotFound     = errors.New("not found")
	ErrAmbiguous    = errors.New("ambiguous reference")
	ErrUnavailable  = errors.New("slot unavailable")
	ErrStoreFailure = errors.New("store failure")
	ErrValidation   = errors.New("invalid input")
)

// ErrSlotNotFound is returned by the slot resolver when no available slot
// matches. It wraps ErrNotFound.
var ErrSlotNotFound = fmt.Errorf("no available slot: %w", ErrNotFound)

// Reason identifies the step at which a booking stopped.
type Reason string

const (
	ReasonInvalidInput        Reason = "invalid_input"
	ReasonDoctorNotFound      Reason = "doctor_not_found"
	ReasonDoctorAmbiguous     Reason = "doctor_ambiguous"
	ReasonSlotNotFound        Reason = "slot_not_found"
	ReasonSlotUpdateFailed    Reason = "slot_update_failed"
	ReasonBookingInsertFailed Reason = "booking_insert_failed"
	ReasonStoreFailure        Reason = "store_failure"
)

// Category returns the sentinel the reason is reported under. A slot that
// cannot be resolved for booking is unavailable from the caller's point of
// view whether it was never there or was booked already.
func (r Reason) Category() error {
	switch r {
	case ReasonInvalidInput:
		return ErrValidation
	case ReasonDoctorNotFound:
		return ErrNotFound
	case ReasonDoctorAmbiguous:
		return ErrAmbiguous
	case ReasonSlotNotFound, ReasonSlotUpdateFailed:
		return ErrUnavailable
	default:
		return ErrStoreFailure
	}
}

// Failure is returned by Booker.Book for every unsuccessful booking.
type Failure struct {
	Reason Reason
	// Candidates is set for ReasonDoctorAmbiguous.
	Candidates []directory.Practitioner
	// Practitioner is the resolved practitioner once step one succeeded.
	Practitioner *directory.Practitioner
	// SlotOrphaned reports that the slot was marked unavailable but no
	// booking was recorded for it.
	SlotOrphaned bool
	Err          error
}

func (f *Failure) Error() string {
	if f.Err == nil {
		return string(f.Reason)
	}
	return fmt.Sprintf("%s: %v", f.Reason, f.Err)
}

func (f *Failure) Unwrap() error { return f.Err }

// Is matches the reason's category.
func (f *Failure) Is(target error) bool {
	return target == f.Reason.Category()
}

// AsFailure extracts a *Failure from err.
func AsFailure(err error) (*Failure, bool) {
	var f *Failure
	if errors.As(err, &f) {
		return f, true
	}
	return nil, false
}
