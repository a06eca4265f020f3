package scheduling

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/RobinCoderZhao/mcp-apps/internal/directory"
)

// spyStore counts availability updates and can fail the insert.
type spyStore struct {
	*directory.MemoryStore
	updates   int
	insertErr error
	updateErr error
}

func (s *spyStore) SetSlotAvailability(ctx context.Context, id string, available bool) error {
	s.updates++
	if s.updateErr != nil {
		return s.updateErr
	}
	return s.MemoryStore.SetSlotAvailability(ctx, id, available)
}

func (s *spyStore) InsertBooking(ctx context.Context, b directory.NewBooking) (*directory.Booking, error) {
	if s.insertErr != nil {
		return nil, s.insertErr
	}
	return s.MemoryStore.InsertBooking(ctx, b)
}

type fakeRecorder struct {
	mu       sync.Mutex
	outcomes []string
	orphaned int
}

func (r *fakeRecorder) ObserveBooking(outcome string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.outcomes = append(r.outcomes, outcome)
}

func (r *fakeRecorder) ObserveOrphanedSlot() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.orphaned++
}

func carlos(slot SlotReference) BookingRequest {
	return BookingRequest{
		Practitioner: Reference{ID: "d1"},
		Slot:         slot,
		PatientName:  "Carlos",
		PatientPhone: "+5511999990000",
	}
}

func TestBook_Success(t *testing.T) {
	store := &spyStore{MemoryStore: clinic()}
	rec := &fakeRecorder{}
	b := NewBooker(store, WithRecorder(rec))

	c, err := b.Book(context.Background(), carlos(SlotReference{ID: "s1"}))
	require.NoError(t, err)

	assert.Equal(t, "d1", c.Booking.PractitionerID)
	assert.Equal(t, "2024-05-01T09:00:00", c.Booking.ScheduledAt)
	assert.Equal(t, "Carlos", c.Booking.PatientName)
	assert.Equal(t, "Ana Silva", c.Practitioner.Name)
	assert.Equal(t, 1, store.updates)

	sl, ok := store.Slot("s1")
	require.True(t, ok)
	assert.False(t, sl.Available)
	assert.Len(t, store.Bookings(), 1)
	assert.Equal(t, []string{"booked"}, rec.outcomes)
}

func TestBook_TwiceInSequence(t *testing.T) {
	store := &spyStore{MemoryStore: clinic()}
	b := NewBooker(store)
	ctx := context.Background()

	_, err := b.Book(ctx, carlos(SlotReference{ID: "s1"}))
	require.NoError(t, err)

	_, err = b.Book(ctx, carlos(SlotReference{ID: "s1"}))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUnavailable)

	f, ok := AsFailure(err)
	require.True(t, ok)
	assert.Equal(t, ReasonSlotNotFound, f.Reason)
	assert.Len(t, store.Bookings(), 1, "no second booking")
	assert.Equal(t, 1, store.updates, "unavailable slot is never updated")
}

func TestBook_ByNameAndTime(t *testing.T) {
	store := &spyStore{MemoryStore: clinic()}
	b := NewBooker(store)

	c, err := b.Book(context.Background(), BookingRequest{
		Practitioner: Reference{Name: "ana", Specialty: "cardio"},
		Slot:         SlotReference{Time: "14h30"},
		PatientName:  "Carlos",
		PatientPhone: "+5511999990000",
	})
	require.NoError(t, err)
	assert.Equal(t, "s2", c.Slot.ID)
	assert.Equal(t, "2024-05-01T14:30:00", c.Booking.ScheduledAt)
}

func TestBook_AlreadyUnavailableSlotNeverUpdates(t *testing.T) {
	store := &spyStore{MemoryStore: clinic()}
	b := NewBooker(store)

	_, err := b.Book(context.Background(), carlos(SlotReference{ID: "s3"}))
	assert.ErrorIs(t, err, ErrUnavailable)
	assert.Zero(t, store.updates)
	assert.Empty(t, store.Bookings())
}

func TestBook_Failures(t *testing.T) {
	tests := []struct {
		name     string
		req      BookingRequest
		reason   Reason
		category error
	}{
		{
			name:     "missing doctor",
			req:      BookingRequest{Slot: SlotReference{ID: "s1"}, PatientName: "Carlos", PatientPhone: "+5511"},
			reason:   ReasonInvalidInput,
			category: ErrValidation,
		},
		{
			name:     "missing slot",
			req:      BookingRequest{Practitioner: Reference{ID: "d1"}, PatientName: "Carlos", PatientPhone: "+5511"},
			reason:   ReasonInvalidInput,
			category: ErrValidation,
		},
		{
			name:     "missing patient",
			req:      BookingRequest{Practitioner: Reference{ID: "d1"}, Slot: SlotReference{ID: "s1"}, PatientPhone: "+5511"},
			reason:   ReasonInvalidInput,
			category: ErrValidation,
		},
		{
			name:     "unknown doctor",
			req:      BookingRequest{Practitioner: Reference{Name: "Nobody"}, Slot: SlotReference{ID: "s1"}, PatientName: "Carlos", PatientPhone: "+5511"},
			reason:   ReasonDoctorNotFound,
			category: ErrNotFound,
		},
		{
			name:     "ambiguous doctor",
			req:      BookingRequest{Practitioner: Reference{Name: "Ana Silva"}, Slot: SlotReference{ID: "s1"}, PatientName: "Carlos", PatientPhone: "+5511"},
			reason:   ReasonDoctorAmbiguous,
			category: ErrAmbiguous,
		},
		{
			name:     "no slot at that time",
			req:      BookingRequest{Practitioner: Reference{ID: "d1"}, Slot: SlotReference{Time: "18h"}, PatientName: "Carlos", PatientPhone: "+5511"},
			reason:   ReasonSlotNotFound,
			category: ErrUnavailable,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := &spyStore{MemoryStore: clinic()}
			rec := &fakeRecorder{}
			_, err := NewBooker(store, WithRecorder(rec)).Book(context.Background(), tt.req)

			f, ok := AsFailure(err)
			require.True(t, ok, "got %v", err)
			assert.Equal(t, tt.reason, f.Reason)
			assert.ErrorIs(t, err, tt.category)
			assert.Zero(t, store.updates)
			assert.Empty(t, store.Bookings())
			assert.Equal(t, []string{string(tt.reason)}, rec.outcomes)
		})
	}
}

func TestBook_AmbiguousCarriesCandidates(t *testing.T) {
	_, err := NewBooker(clinic()).Book(context.Background(), BookingRequest{
		Practitioner: Reference{Name: "Ana"},
		Slot:         SlotReference{Time: "9h"},
		PatientName:  "Carlos",
		PatientPhone: "+5511999990000",
	})

	f, ok := AsFailure(err)
	require.True(t, ok)
	require.Len(t, f.Candidates, 2)
	assert.Equal(t, "Cardiologista", f.Candidates[0].Specialty)
	assert.Equal(t, "Pediatra", f.Candidates[1].Specialty)
}

func TestBook_LostUpdateRace(t *testing.T) {
	store := &spyStore{MemoryStore: clinic(), updateErr: directory.ErrSlotConflict}

	_, err := NewBooker(store).Book(context.Background(), carlos(SlotReference{ID: "s1"}))

	f, ok := AsFailure(err)
	require.True(t, ok)
	assert.Equal(t, ReasonSlotUpdateFailed, f.Reason)
	assert.ErrorIs(t, err, ErrUnavailable)
	assert.ErrorIs(t, err, directory.ErrSlotConflict)
	assert.Empty(t, store.Bookings())
}

// The slot stays reserved without a booking when the insert fails after
// the flip. Nothing compensates for it.
func TestBook_InsertFailureOrphansSlot(t *testing.T) {
	boom := errors.New("insert timeout")
	store := &spyStore{MemoryStore: clinic(), insertErr: boom}
	rec := &fakeRecorder{}
	var logs bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&logs, nil))

	_, err := NewBooker(store, WithRecorder(rec), WithLogger(logger)).Book(context.Background(), carlos(SlotReference{ID: "s1"}))

	f, ok := AsFailure(err)
	require.True(t, ok)
	assert.Equal(t, ReasonBookingInsertFailed, f.Reason)
	assert.True(t, f.SlotOrphaned)
	assert.ErrorIs(t, err, ErrStoreFailure)
	assert.ErrorIs(t, err, boom)

	sl, ok := store.Slot("s1")
	require.True(t, ok)
	assert.False(t, sl.Available, "slot remains unavailable")
	assert.Empty(t, store.Bookings(), "no booking references the slot")

	assert.Equal(t, 1, rec.orphaned)
	assert.Contains(t, logs.String(), `"slot_orphaned":true`)
}

func TestBook_ConcurrentBookingsOfOneSlot(t *testing.T) {
	store := clinic()
	b := NewBooker(store)

	const n = 8
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		successes int
	)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := b.Book(context.Background(), carlos(SlotReference{ID: "s1"})); err == nil {
				mu.Lock()
				successes++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, successes)
	assert.Len(t, store.Bookings(), 1)
}

type fakeNotifier struct {
	err   error
	calls []*Confirmation
}

func (n *fakeNotifier) BookingCreated(_ context.Context, c *Confirmation) error {
	n.calls = append(n.calls, c)
	return n.err
}

func TestBook_NotifiesOnSuccessOnly(t *testing.T) {
	n := &fakeNotifier{}
	b := NewBooker(clinic(), WithNotifier(n))
	ctx := context.Background()

	c, err := b.Book(ctx, carlos(SlotReference{ID: "s1"}))
	require.NoError(t, err)
	require.Len(t, n.calls, 1)
	assert.Equal(t, c.Booking.ID, n.calls[0].Booking.ID)

	_, err = b.Book(ctx, carlos(SlotReference{ID: "s1"}))
	require.Error(t, err)
	assert.Len(t, n.calls, 1)
}

func TestBook_NotificationErrorDoesNotFailBooking(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))
	n := &fakeNotifier{err: errors.New("webhook down")}

	c, err := NewBooker(clinic(), WithNotifier(n), WithLogger(logger)).
		Book(context.Background(), carlos(SlotReference{ID: "s1"}))
	require.NoError(t, err)
	assert.NotNil(t, c)
	assert.Contains(t, buf.String(), "booking notification failed")
}
