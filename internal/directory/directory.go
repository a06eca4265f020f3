// Package directory holds practitioners, their bookable time slots and the
// bookings created against them.
//
// Three Store implementations are provided: an in-memory store seeded from
// embedded fixtures, a SQLite store on top of pkg/storage and a Postgres store
// on pgx. All of them apply availability changes as a conditional update so a
// slot can only be flipped from available to booked once.
package directory

import (
	"context"
	"errors"
	"strings"
	"time"
)

var (
	// ErrNotFound is returned when a practitioner or slot does not exist, or
	// when an available slot was requested and the slot is already booked.
	ErrNotFound = errors.New("directory: not found")

	// ErrSlotConflict is returned by SetSlotAvailability when the slot is
	// already in the requested state, typically because a concurrent booking won.
	ErrSlotConflict = errors.New("directory: slot availability already set")
)

// Coordinates is a WGS84 position.
type Coordinates struct {
	Lat float64 `json:"lat" yaml:"lat"`
	Lng float64 `json:"lng" yaml:"lng"`
}

// Practitioner is a bookable doctor.
type Practitioner struct {
	ID          string       `json:"id" yaml:"id"`
	Name        string       `json:"name" yaml:"name"`
	Specialty   string       `json:"specialty" yaml:"specialty"`
	Address     string       `json:"address" yaml:"address"`
	City        string       `json:"city" yaml:"city"`
	State       string       `json:"state" yaml:"state"`
	ImageURL    string       `json:"image_url,omitempty" yaml:"image_url"`
	Coordinates *Coordinates `json:"coordinates,omitempty" yaml:"coordinates"`
}

// Slot is a time unit owned by one practitioner. Time is kept as the
// timestamp string the store returns so free-text queries can match on it.
type Slot struct {
	ID             string `json:"id"`
	PractitionerID string `json:"doctor_id"`
	Time           string `json:"slot_time"`
	Available      bool   `json:"is_available"`
}

// Booking is an appointment created for a slot. ScheduledAt is a copy of
// the slot time at creation.
type Booking struct {
	ID             string    `json:"id"`
	PractitionerID string    `json:"doctor_id"`
	ScheduledAt    string    `json:"scheduled_at"`
	PatientName    string    `json:"patient_name"`
	PatientPhone   string    `json:"patient_phone"`
	CreatedAt      time.Time `json:"created_at"`
}

// NewBooking carries the fields needed to record a booking.
type NewBooking struct {
	PractitionerID string
	ScheduledAt    string
	PatientName    string
	PatientPhone   string
}

// Filters narrows ListPractitioners. Empty fields match everything. Name and
// Specialty are case-insensitive substring matches, City is a case-insensitive
// equality and State is compared upper-cased.
type Filters struct {
	Name      string
	Specialty string
	City      string
	State     string
}

// IsZero reports whether no filter is set.
func (f Filters) IsZero() bool {
	return f.Name == "" && f.Specialty == "" && f.City == "" && f.State == ""
}

// Matches applies the filter semantics to p in memory.
func (f Filters) Matches(p Practitioner) bool {
	if f.Name != "" && !containsFold(p.Name, f.Name) {
		return false
	}
	if f.Specialty != "" && !containsFold(p.Specialty, f.Specialty) {
		return false
	}
	if f.City != "" && !strings.EqualFold(strings.TrimSpace(p.City), strings.TrimSpace(f.City)) {
		return false
	}
	if f.State != "" && p.State != strings.ToUpper(strings.TrimSpace(f.State)) {
		return false
	}
	return true
}

func containsFold(s, substr string) bool {
	return strings.Contains(strings.ToLower(s), strings.ToLower(substr))
}

// Store is the persistence contract consumed by the scheduling core.
type Store interface {
	// ListPractitioners returns practitioners matching f in store order.
	ListPractitioners(ctx context.Context, f Filters) ([]Practitioner, error)
	// GetPractitioner returns ErrNotFound when id is unknown.
	GetPractitioner(ctx context.Context, id string) (*Practitioner, error)
	// ListAvailableSlots returns the open slots of a practitioner ordered by time.
	ListAvailableSlots(ctx context.Context, practitionerID string) ([]Slot, error)
	// GetAvailableSlot returns ErrNotFound unless the slot exists and is available.
	GetAvailableSlot(ctx context.Context, id string) (*Slot, error)
	// SetSlotAvailability flips the flag only if it differs from available;
	// ErrSlotConflict is returned otherwise, ErrNotFound for unknown slots.
	SetSlotAvailability(ctx context.Context, id string, available bool) error
	// InsertBooking records a booking and returns the stored row.
	InsertBooking(ctx context.Context, b NewBooking) (*Booking, error)
}

// Seeder is implemented by stores that can be loaded with fixtures.
type Seeder interface {
	Seed(ctx context.Context, fx *Fixtures) error
}
