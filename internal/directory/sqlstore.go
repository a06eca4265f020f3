package directory

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/RobinCoderZhao/mcp-apps/pkg/storage"
)

// SQLiteSchema creates the directory tables on SQLite. Postgres databases are
// provisioned through the embedded migrations instead.
const SQLiteSchema = `
CREATE TABLE IF NOT EXISTS doctors (
    id         TEXT PRIMARY KEY,
    name       TEXT NOT NULL,
    specialty  TEXT NOT NULL,
    address    TEXT NOT NULL DEFAULT '',
    city       TEXT NOT NULL DEFAULT '',
    state      TEXT NOT NULL DEFAULT '',
    image_url  TEXT,
    lat        REAL,
    lng        REAL
);

CREATE TABLE IF NOT EXISTS time_slots (
    id           TEXT PRIMARY KEY,
    doctor_id    TEXT NOT NULL REFERENCES doctors(id),
    slot_time    TEXT NOT NULL,
    is_available INTEGER NOT NULL DEFAULT 1
);

CREATE TABLE IF NOT EXISTS appointments (
    id            TEXT PRIMARY KEY,
    doctor_id     TEXT NOT NULL REFERENCES doctors(id),
    patient_name  TEXT NOT NULL,
    patient_phone TEXT NOT NULL,
    scheduled_at  TEXT NOT NULL,
    created_at    TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_time_slots_doctor ON time_slots(doctor_id, is_available, slot_time);
CREATE INDEX IF NOT EXISTS idx_appointments_doctor ON appointments(doctor_id);
`

const doctorCols = `id, name, specialty, address, city, state, image_url, lat, lng`

// SQLStore is a Store over a SQLite database opened through pkg/storage.
type SQLStore struct {
	db    *storage.DB
	now   func() time.Time
	newID func() string
}

// NewSQLStore wraps db. Call Migrate before first use on a fresh SQLite file.
func NewSQLStore(db *storage.DB) *SQLStore {
	return &SQLStore{db: db, now: time.Now, newID: uuid.NewString}
}

// Migrate creates the SQLite schema.
func (s *SQLStore) Migrate(ctx context.Context) error {
	return s.db.Migrate(ctx, SQLiteSchema)
}

func (s *SQLStore) ListPractitioners(ctx context.Context, f Filters) ([]Practitioner, error) {
	var (
		where []string
		args  []any
	)
	// instr over folded text: plain substring match, no LIKE wildcards.
	if f.Name != "" {
		where = append(where, "instr("+storage.FoldFunc+"(name), ?) > 0")
		args = append(args, strings.ToLower(f.Name))
	}
	if f.Specialty != "" {
		where = append(where, "instr("+storage.FoldFunc+"(specialty), ?) > 0")
		args = append(args, strings.ToLower(f.Specialty))
	}
	if f.City != "" {
		where = append(where, storage.FoldFunc+"(city) = ?")
		args = append(args, strings.ToLower(strings.TrimSpace(f.City)))
	}
	if f.State != "" {
		where = append(where, "state = ?")
		args = append(args, strings.ToUpper(strings.TrimSpace(f.State)))
	}

	query := "SELECT " + doctorCols + " FROM doctors"
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY rowid"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list doctors: %w", err)
	}
	defer rows.Close()

	var out []Practitioner
	for rows.Next() {
		p, err := scanPractitioner(rows)
		if err != nil {
			return nil, fmt.Errorf("scan doctor: %w", err)
		}
		out = append(out, *p)
	}
	return out, rows.Err()
}

func (s *SQLStore) GetPractitioner(ctx context.Context, id string) (*Practitioner, error) {
	row := s.db.QueryRowContext(ctx, "SELECT "+doctorCols+" FROM doctors WHERE id = ?", id)
	p, err := scanPractitioner(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get doctor %s: %w", id, err)
	}
	return p, nil
}

func (s *SQLStore) ListAvailableSlots(ctx context.Context, practitionerID string) ([]Slot, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, doctor_id, slot_time, is_available
		FROM time_slots
		WHERE doctor_id = ? AND is_available = ?
		ORDER BY slot_time ASC
	`, practitionerID, true)
	if err != nil {
		return nil, fmt.Errorf("list slots for doctor %s: %w", practitionerID, err)
	}
	defer rows.Close()

	var out []Slot
	for rows.Next() {
		var sl Slot
		if err := rows.Scan(&sl.ID, &sl.PractitionerID, &sl.Time, &sl.Available); err != nil {
			return nil, fmt.Errorf("scan slot: %w", err)
		}
		out = append(out, sl)
	}
	return out, rows.Err()
}

func (s *SQLStore) GetAvailableSlot(ctx context.Context, id string) (*Slot, error) {
	var sl Slot
	err := s.db.QueryRowContext(ctx, `
		SELECT id, doctor_id, slot_time, is_available
		FROM time_slots
		WHERE id = ? AND is_available = ?
	`, id, true).Scan(&sl.ID, &sl.PractitionerID, &sl.Time, &sl.Available)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get slot %s: %w", id, err)
	}
	return &sl, nil
}

func (s *SQLStore) SetSlotAvailability(ctx context.Context, id string, available bool) error {
	res, err := s.db.ExecContext(ctx,
		"UPDATE time_slots SET is_available = ? WHERE id = ? AND is_available <> ?",
		available, id, available)
	if err != nil {
		return fmt.Errorf("update slot %s: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update slot %s: %w", id, err)
	}
	if n == 1 {
		return nil
	}

	var exists int
	err = s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM time_slots WHERE id = ?", id).Scan(&exists)
	if err != nil {
		return fmt.Errorf("check slot %s: %w", id, err)
	}
	if exists == 0 {
		return ErrNotFound
	}
	return ErrSlotConflict
}

func (s *SQLStore) InsertBooking(ctx context.Context, b NewBooking) (*Booking, error) {
	row := Booking{
		ID:             s.newID(),
		PractitionerID: b.PractitionerID,
		ScheduledAt:    b.ScheduledAt,
		PatientName:    b.PatientName,
		PatientPhone:   b.PatientPhone,
		CreatedAt:      s.now().UTC().Truncate(time.Second),
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO appointments (id, doctor_id, patient_name, patient_phone, scheduled_at, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, row.ID, row.PractitionerID, row.PatientName, row.PatientPhone, row.ScheduledAt, row.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("insert appointment: %w", err)
	}
	return &row, nil
}

// Seed inserts fx, skipping rows whose id already exists.
func (s *SQLStore) Seed(ctx context.Context, fx *Fixtures) error {
	return s.db.Transaction(ctx, func(tx *sql.Tx) error {
		for _, p := range fx.Practitioners {
			var lat, lng sql.NullFloat64
			if p.Coordinates != nil {
				lat = sql.NullFloat64{Float64: p.Coordinates.Lat, Valid: true}
				lng = sql.NullFloat64{Float64: p.Coordinates.Lng, Valid: true}
			}
			_, err := tx.ExecContext(ctx, `
				INSERT INTO doctors (`+doctorCols+`)
				VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
				ON CONFLICT (id) DO NOTHING
			`, p.ID, p.Name, p.Specialty, p.Address, p.City, p.State,
				sql.NullString{String: p.ImageURL, Valid: p.ImageURL != ""}, lat, lng)
			if err != nil {
				return fmt.Errorf("seed doctor %s: %w", p.ID, err)
			}
		}
		for _, sl := range fx.Slots {
			_, err := tx.ExecContext(ctx, `
				INSERT INTO time_slots (id, doctor_id, slot_time, is_available)
				VALUES (?, ?, ?, ?)
				ON CONFLICT (id) DO NOTHING
			`, sl.ID, sl.PractitionerID, sl.Time, sl.Available)
			if err != nil {
				return fmt.Errorf("seed slot %s: %w", sl.ID, err)
			}
		}
		return nil
	})
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanPractitioner(row rowScanner) (*Practitioner, error) {
	var (
		p        Practitioner
		imageURL sql.NullString
		lat, lng sql.NullFloat64
	)
	if err := row.Scan(&p.ID, &p.Name, &p.Specialty, &p.Address, &p.City, &p.State, &imageURL, &lat, &lng); err != nil {
		return nil, err
	}
	p.ImageURL = imageURL.String
	if lat.Valid && lng.Valid {
		p.Coordinates = &Coordinates{Lat: lat.Float64, Lng: lng.Float64}
	}
	return &p, nil
}
