package directory

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/RobinCoderZhao/mcp-apps/pkg/storage"
)

func newSQLiteStore(t *testing.T) *SQLStore {
	t.Helper()
	ctx := context.Background()
	db, err := storage.Open(ctx, storage.Config{Driver: storage.SQLite, DSN: ":memory:"})
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	store := NewSQLStore(db)
	require.NoError(t, store.Migrate(ctx))
	require.NoError(t, store.Seed(ctx, &Fixtures{
		Practitioners: []Practitioner{
			{ID: "d1", Name: "Ana Silva", Specialty: "Cardiologista", City: "São Paulo", State: "SP",
				ImageURL: "https://img.test/d1.jpg", Coordinates: &Coordinates{Lat: -23.56, Lng: -46.65}},
			{ID: "d2", Name: "Ana Silva", Specialty: "Pediatra", City: "São Paulo", State: "SP"},
			{ID: "d3", Name: "Luis Costa", Specialty: "Dermatologista", City: "Rio de Janeiro", State: "RJ"},
		},
		Slots: []Slot{
			{ID: "s2", PractitionerID: "d1", Time: "2024-05-01T14:00:00", Available: true},
			{ID: "s1", PractitionerID: "d1", Time: "2024-05-01T09:00:00", Available: true},
			{ID: "s3", PractitionerID: "d1", Time: "2024-05-01T10:00:00", Available: false},
		},
	}))
	return store
}

func TestSQLStore_ListPractitioners(t *testing.T) {
	store := newSQLiteStore(t)
	ctx := context.Background()

	all, err := store.ListPractitioners(ctx, Filters{})
	require.NoError(t, err)
	assert.Len(t, all, 3)

	anas, err := store.ListPractitioners(ctx, Filters{Name: "ANA"})
	require.NoError(t, err)
	require.Len(t, anas, 2)
	assert.Equal(t, "d1", anas[0].ID)
	assert.Equal(t, "d2", anas[1].ID)

	one, err := store.ListPractitioners(ctx, Filters{Name: "ana", Specialty: "pedia"})
	require.NoError(t, err)
	require.Len(t, one, 1)
	assert.Equal(t, "d2", one[0].ID)

	rj, err := store.ListPractitioners(ctx, Filters{State: "rj"})
	require.NoError(t, err)
	require.Len(t, rj, 1)
	assert.Equal(t, "d3", rj[0].ID)
}

func TestSQLStore_ListPractitionersMatchesMemoryStore(t *testing.T) {
	ctx := context.Background()
	db, err := storage.Open(ctx, storage.Config{Driver: storage.SQLite, DSN: ":memory:"})
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	fx := &Fixtures{Practitioners: []Practitioner{
		{ID: "d1", Name: "Dra. Ângela Moura", Specialty: "Clínica Geral", City: "São Paulo", State: "SP"},
		{ID: "d2", Name: "Dr. Luis Costa", Specialty: "Dermatologista", City: "Rio de Janeiro", State: "RJ"},
		{ID: "d3", Name: "Dr. Ênio 100%", Specialty: "Ortopedista", City: "Recife", State: "PE"},
	}}
	sqlStore := NewSQLStore(db)
	require.NoError(t, sqlStore.Migrate(ctx))
	require.NoError(t, sqlStore.Seed(ctx, fx))
	memStore := NewMemoryStoreWith(fx.Practitioners, nil)

	tests := []struct {
		name   string
		filter Filters
		want   []string
	}{
		{"accented initial lower-cased", Filters{Name: "ângela"}, []string{"d1"}},
		{"accented initial upper-cased", Filters{Name: "ÂNGELA"}, []string{"d1"}},
		{"accented specialty", Filters{Specialty: "CLÍNICA"}, []string{"d1"}},
		{"accented city", Filters{City: "SÃO PAULO"}, []string{"d1"}},
		{"underscore is literal", Filters{Name: "_"}, nil},
		{"percent is literal", Filters{Name: "%"}, []string{"d3"}},
		{"plain substring", Filters{Name: "dr"}, []string{"d1", "d2", "d3"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for name, store := range map[string]Store{"sqlite": sqlStore, "memory": memStore} {
				got, err := store.ListPractitioners(ctx, tt.filter)
				require.NoError(t, err)
				var ids []string
				for _, p := range got {
					ids = append(ids, p.ID)
				}
				assert.Equal(t, tt.want, ids, name)
			}
		})
	}
}

func TestSQLStore_GetPractitioner(t *testing.T) {
	store := newSQLiteStore(t)
	ctx := context.Background()

	p, err := store.GetPractitioner(ctx, "d1")
	require.NoError(t, err)
	assert.Equal(t, "https://img.test/d1.jpg", p.ImageURL)
	require.NotNil(t, p.Coordinates)
	assert.InDelta(t, -23.56, p.Coordinates.Lat, 1e-9)

	p2, err := store.GetPractitioner(ctx, "d2")
	require.NoError(t, err)
	assert.Nil(t, p2.Coordinates)

	_, err = store.GetPractitioner(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSQLStore_SlotLifecycle(t *testing.T) {
	store := newSQLiteStore(t)
	ctx := context.Background()

	slots, err := store.ListAvailableSlots(ctx, "d1")
	require.NoError(t, err)
	require.Len(t, slots, 2)
	assert.Equal(t, "s1", slots[0].ID)

	_, err = store.GetAvailableSlot(ctx, "s3")
	assert.ErrorIs(t, err, ErrNotFound)

	sl, err := store.GetAvailableSlot(ctx, "s1")
	require.NoError(t, err)
	assert.True(t, sl.Available)

	require.NoError(t, store.SetSlotAvailability(ctx, "s1", false))
	assert.ErrorIs(t, store.SetSlotAvailability(ctx, "s1", false), ErrSlotConflict)
	assert.ErrorIs(t, store.SetSlotAvailability(ctx, "missing", false), ErrNotFound)

	_, err = store.GetAvailableSlot(ctx, "s1")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSQLStore_InsertBooking(t *testing.T) {
	store := newSQLiteStore(t)
	ctx := context.Background()

	b, err := store.InsertBooking(ctx, NewBooking{
		PractitionerID: "d1",
		ScheduledAt:    "2024-05-01T09:00:00",
		PatientName:    "Carlos",
		PatientPhone:   "+5511999990000",
	})
	require.NoError(t, err)
	assert.NotEmpty(t, b.ID)

	var count int
	require.NoError(t, store.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM appointments WHERE doctor_id = ? AND scheduled_at = ?",
		"d1", "2024-05-01T09:00:00").Scan(&count))
	assert.Equal(t, 1, count)

	_, err = store.InsertBooking(ctx, NewBooking{PractitionerID: "unknown", ScheduledAt: "x", PatientName: "A", PatientPhone: "B"})
	assert.Error(t, err, "foreign key on doctor_id")
}
