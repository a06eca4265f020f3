package directory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryStore is a Store backed by process memory.
type MemoryStore struct {
	mu            sync.RWMutex
	practitioners []Practitioner
	slots         []Slot
	bookings      []Booking

	now   func() time.Time
	newID func() string
}

// NewMemoryStore creates an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		now:   time.Now,
		newID: uuid.NewString,
	}
}

// NewMemoryStoreWith creates a store seeded with practitioners and slots.
func NewMemoryStoreWith(practitioners []Practitioner, slots []Slot) *MemoryStore {
	s := NewMemoryStore()
	s.practitioners = append(s.practitioners, practitioners...)
	s.slots = append(s.slots, slots...)
	return s
}

// Seed replaces the store content with fx.
func (s *MemoryStore) Seed(_ context.Context, fx *Fixtures) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.practitioners = append([]Practitioner(nil), fx.Practitioners...)
	s.slots = append([]Slot(nil), fx.Slots...)
	s.bookings = nil
	return nil
}

func (s *MemoryStore) ListPractitioners(_ context.Context, f Filters) ([]Practitioner, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]Practitioner, 0, len(s.practitioners))
	for _, p := range s.practitioners {
		if f.Matches(p) {
			out = append(out, p)
		}
	}
	return out, nil
}

func (s *MemoryStore) GetPractitioner(_ context.Context, id string) (*Practitioner, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, p := range s.practitioners {
		if p.ID == id {
			p := p
			return &p, nil
		}
	}
	return nil, ErrNotFound
}

func (s *MemoryStore) ListAvailableSlots(_ context.Context, practitionerID string) ([]Slot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []Slot
	for _, sl := range s.slots {
		if sl.PractitionerID == practitionerID && sl.Available {
			out = append(out, sl)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Time < out[j].Time })
	return out, nil
}

func (s *MemoryStore) GetAvailableSlot(_ context.Context, id string) (*Slot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, sl := range s.slots {
		if sl.ID == id && sl.Available {
			sl := sl
			return &sl, nil
		}
	}
	return nil, ErrNotFound
}

func (s *MemoryStore) SetSlotAvailability(_ context.Context, id string, available bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.slots {
		if s.slots[i].ID != id {
			continue
		}
		if s.slots[i].Available == available {
			return ErrSlotConflict
		}
		s.slots[i].Available = available
		return nil
	}
	return ErrNotFound
}

func (s *MemoryStore) InsertBooking(_ context.Context, b NewBooking) (*Booking, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	row := Booking{
		ID:             s.newID(),
		PractitionerID: b.PractitionerID,
		ScheduledAt:    b.ScheduledAt,
		PatientName:    b.PatientName,
		PatientPhone:   b.PatientPhone,
		CreatedAt:      s.now().UTC(),
	}
	s.bookings = append(s.bookings, row)
	return &row, nil
}

// Bookings returns a copy of the recorded bookings.
func (s *MemoryStore) Bookings() []Booking {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]Booking(nil), s.bookings...)
}

// Slot returns a slot regardless of its availability.
func (s *MemoryStore) Slot(id string) (Slot, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, sl := range s.slots {
		if sl.ID == id {
			return sl, true
		}
	}
	return Slot{}, false
}
