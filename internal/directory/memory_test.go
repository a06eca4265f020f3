package directory

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/RobinCoderZhao/mcp-apps/pkg/storage"
)

func sampleDoctors() []Practitioner {
	return []Practitioner{
		{ID: "d1", Name: "Ana Silva", Specialty: "Cardiologista", City: "São Paulo", State: "SP"},
		{ID: "d2", Name: "Ana Silva", Specialty: "Pediatra", City: "São Paulo", State: "SP"},
		{ID: "d3", Name: "Luis Costa", Specialty: "Dermatologista", City: "Rio de Janeiro", State: "RJ"},
	}
}

func TestFiltersMatches(t *testing.T) {
	doc := sampleDoctors()[0]

	tests := []struct {
		name string
		f    Filters
		want bool
	}{
		{"empty matches everything", Filters{}, true},
		{"name substring case-insensitive", Filters{Name: "silva"}, true},
		{"specialty substring", Filters{Specialty: "CARDIO"}, true},
		{"city equality ignores case", Filters{City: "são paulo"}, true},
		{"city is not a substring match", Filters{City: "Paulo"}, false},
		{"state upper-cased", Filters{State: "sp"}, true},
		{"all filters must match", Filters{Name: "Ana", Specialty: "Pediatra"}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.f.Matches(doc))
		})
	}
}

func TestMemoryStore_ListPractitionersKeepsOrder(t *testing.T) {
	store := NewMemoryStoreWith(sampleDoctors(), nil)

	got, err := store.ListPractitioners(context.Background(), Filters{Name: "ana"})
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "d1", got[0].ID)
	assert.Equal(t, "d2", got[1].ID)
}

func TestMemoryStore_GetPractitionerNotFound(t *testing.T) {
	store := NewMemoryStoreWith(sampleDoctors(), nil)

	_, err := store.GetPractitioner(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryStore_SlotsAndConditionalUpdate(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStoreWith(sampleDoctors(), []Slot{
		{ID: "s2", PractitionerID: "d1", Time: "2024-05-01T14:00:00", Available: true},
		{ID: "s1", PractitionerID: "d1", Time: "2024-05-01T09:00:00", Available: true},
		{ID: "s3", PractitionerID: "d1", Time: "2024-05-01T10:00:00", Available: false},
		{ID: "s4", PractitionerID: "d2", Time: "2024-05-01T09:00:00", Available: true},
	})

	slots, err := store.ListAvailableSlots(ctx, "d1")
	require.NoError(t, err)
	require.Len(t, slots, 2)
	assert.Equal(t, "s1", slots[0].ID, "slots ordered by time")
	assert.Equal(t, "s2", slots[1].ID)

	_, err = store.GetAvailableSlot(ctx, "s3")
	assert.ErrorIs(t, err, ErrNotFound, "booked slots are not returned")

	require.NoError(t, store.SetSlotAvailability(ctx, "s1", false))
	assert.ErrorIs(t, store.SetSlotAvailability(ctx, "s1", false), ErrSlotConflict)
	assert.ErrorIs(t, store.SetSlotAvailability(ctx, "nope", false), ErrNotFound)

	sl, ok := store.Slot("s1")
	require.True(t, ok)
	assert.False(t, sl.Available)
}

func TestMemoryStore_InsertBooking(t *testing.T) {
	store := NewMemoryStore()
	fixed := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	store.now = func() time.Time { return fixed }
	store.newID = func() string { return "b1" }

	b, err := store.InsertBooking(context.Background(), NewBooking{
		PractitionerID: "d1",
		ScheduledAt:    "2024-05-01T09:00:00",
		PatientName:    "Carlos",
		PatientPhone:   "+5511999990000",
	})
	require.NoError(t, err)
	assert.Equal(t, "b1", b.ID)
	assert.Equal(t, fixed, b.CreatedAt)
	assert.Len(t, store.Bookings(), 1)
}

func TestLoadFixtures(t *testing.T) {
	// Friday: the next five weekdays skip the weekend.
	now := time.Date(2024, 5, 3, 8, 0, 0, 0, time.UTC)

	fx, err := LoadFixtures(now)
	require.NoError(t, err)
	require.NotEmpty(t, fx.Practitioners)

	for _, p := range fx.Practitioners {
		_, err := uuid.Parse(p.ID)
		assert.NoError(t, err, "fixture doctor ids are uuids")
	}

	perDoctor := len(fx.Slots) / len(fx.Practitioners)
	assert.Equal(t, 5*4, perDoctor)

	first := fx.Slots[0]
	assert.Equal(t, "2024-05-06T09:00:00", first.Time)
	assert.True(t, first.Available)

	again, err := LoadFixtures(now)
	require.NoError(t, err)
	assert.Equal(t, fx.Slots[0].ID, again.Slots[0].ID, "slot ids are deterministic")

	for _, sl := range fx.Slots {
		at, err := ParseSlotTime(sl.Time)
		require.NoError(t, err)
		assert.NotEqual(t, time.Saturday, at.Weekday())
		assert.NotEqual(t, time.Sunday, at.Weekday())
	}
}

func TestOpen_MemoryDriverIsSeeded(t *testing.T) {
	h, err := Open(context.Background(), storage.Config{Driver: Memory}, nil)
	require.NoError(t, err)
	defer h.Close()

	docs, err := h.Store.ListPractitioners(context.Background(), Filters{Specialty: "pediatra"})
	require.NoError(t, err)
	assert.Len(t, docs, 1)
}
