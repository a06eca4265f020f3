package directory

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PgxConn is the subset of *pgxpool.Pool used by PostgresStore.
type PgxConn interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Begin(ctx context.Context) (pgx.Tx, error)
}

// NewPool opens a pgx pool and verifies the connection.
func NewPool(ctx context.Context, databaseURL string, maxConns int32) (*pgxpool.Pool, error) {
	cfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse database url: %w", err)
	}
	if maxConns > 0 {
		cfg.MaxConns = maxConns
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("create connection pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return pool, nil
}

// PostgresStore is a Store over Postgres. Slot timestamps are stored as
// timestamptz and rendered back in UTC using SlotTimeLayout.
type PostgresStore struct {
	conn PgxConn
}

// NewPostgresStore wraps a pool (or a pgxmock pool in tests).
func NewPostgresStore(conn PgxConn) *PostgresStore {
	return &PostgresStore{conn: conn}
}

const pgDoctorCols = `id::text, name, specialty, address, city, state, image_url, lat, lng`

func (s *PostgresStore) ListPractitioners(ctx context.Context, f Filters) ([]Practitioner, error) {
	var (
		where []string
		args  []any
	)
	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}
	if f.Name != "" {
		where = append(where, "name ILIKE "+arg("%"+escapeLike(f.Name)+"%")+` ESCAPE '\'`)
	}
	if f.Specialty != "" {
		where = append(where, "specialty ILIKE "+arg("%"+escapeLike(f.Specialty)+"%")+` ESCAPE '\'`)
	}
	if f.City != "" {
		where = append(where, "city ILIKE "+arg(escapeLike(strings.TrimSpace(f.City)))+` ESCAPE '\'`)
	}
	if f.State != "" {
		where = append(where, "state = "+arg(strings.ToUpper(strings.TrimSpace(f.State))))
	}

	query := "SELECT " + pgDoctorCols + " FROM doctors"
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY created_at, id"

	rows, err := s.conn.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list doctors: %w", err)
	}
	defer rows.Close()

	var out []Practitioner
	for rows.Next() {
		p, err := scanPgPractitioner(rows)
		if err != nil {
			return nil, fmt.Errorf("scan doctor: %w", err)
		}
		out = append(out, *p)
	}
	return out, rows.Err()
}

func (s *PostgresStore) GetPractitioner(ctx context.Context, id string) (*Practitioner, error) {
	p, err := scanPgPractitioner(s.conn.QueryRow(ctx, "SELECT "+pgDoctorCols+" FROM doctors WHERE id = $1", id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get doctor %s: %w", id, err)
	}
	return p, nil
}

func (s *PostgresStore) ListAvailableSlots(ctx context.Context, practitionerID string) ([]Slot, error) {
	rows, err := s.conn.Query(ctx, `
		SELECT id::text, doctor_id::text, slot_time, is_available
		FROM time_slots
		WHERE doctor_id = $1 AND is_available = TRUE
		ORDER BY slot_time ASC`, practitionerID)
	if err != nil {
		return nil, fmt.Errorf("list slots for doctor %s: %w", practitionerID, err)
	}
	defer rows.Close()

	var out []Slot
	for rows.Next() {
		sl, err := scanPgSlot(rows)
		if err != nil {
			return nil, fmt.Errorf("scan slot: %w", err)
		}
		out = append(out, *sl)
	}
	return out, rows.Err()
}

func (s *PostgresStore) GetAvailableSlot(ctx context.Context, id string) (*Slot, error) {
	sl, err := scanPgSlot(s.conn.QueryRow(ctx, `
		SELECT id::text, doctor_id::text, slot_time, is_available
		FROM time_slots
		WHERE id = $1 AND is_available = TRUE`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get slot %s: %w", id, err)
	}
	return sl, nil
}

func (s *PostgresStore) SetSlotAvailability(ctx context.Context, id string, available bool) error {
	tag, err := s.conn.Exec(ctx,
		`UPDATE time_slots SET is_available = $2 WHERE id = $1 AND is_available <> $2`, id, available)
	if err != nil {
		return fmt.Errorf("update slot %s: %w", id, err)
	}
	if tag.RowsAffected() == 1 {
		return nil
	}

	var exists bool
	if err := s.conn.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM time_slots WHERE id = $1)`, id).Scan(&exists); err != nil {
		return fmt.Errorf("check slot %s: %w", id, err)
	}
	if !exists {
		return ErrNotFound
	}
	return ErrSlotConflict
}

func (s *PostgresStore) InsertBooking(ctx context.Context, b NewBooking) (*Booking, error) {
	at, err := ParseSlotTime(b.ScheduledAt)
	if err != nil {
		return nil, fmt.Errorf("insert appointment: %w", err)
	}

	row := Booking{
		PractitionerID: b.PractitionerID,
		ScheduledAt:    b.ScheduledAt,
		PatientName:    b.PatientName,
		PatientPhone:   b.PatientPhone,
	}
	err = s.conn.QueryRow(ctx, `
		INSERT INTO appointments (doctor_id, patient_name, patient_phone, scheduled_at)
		VALUES ($1, $2, $3, $4)
		RETURNING id::text, created_at`,
		b.PractitionerID, b.PatientName, b.PatientPhone, at,
	).Scan(&row.ID, &row.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("insert appointment: %w", err)
	}
	return &row, nil
}

// Seed inserts fx in one transaction, skipping existing ids.
func (s *PostgresStore) Seed(ctx context.Context, fx *Fixtures) error {
	return pgx.BeginFunc(ctx, s.conn, func(tx pgx.Tx) error {
		for _, p := range fx.Practitioners {
			var lat, lng *float64
			if p.Coordinates != nil {
				lat, lng = &p.Coordinates.Lat, &p.Coordinates.Lng
			}
			var imageURL *string
			if p.ImageURL != "" {
				imageURL = &p.ImageURL
			}
			_, err := tx.Exec(ctx, `
				INSERT INTO doctors (id, name, specialty, address, city, state, image_url, lat, lng)
				VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
				ON CONFLICT (id) DO NOTHING`,
				p.ID, p.Name, p.Specialty, p.Address, p.City, p.State, imageURL, lat, lng)
			if err != nil {
				return fmt.Errorf("seed doctor %s: %w", p.ID, err)
			}
		}
		for _, sl := range fx.Slots {
			at, err := ParseSlotTime(sl.Time)
			if err != nil {
				return fmt.Errorf("seed slot %s: %w", sl.ID, err)
			}
			_, err = tx.Exec(ctx, `
				INSERT INTO time_slots (id, doctor_id, slot_time, is_available)
				VALUES ($1, $2, $3, $4)
				ON CONFLICT (id) DO NOTHING`,
				sl.ID, sl.PractitionerID, at, sl.Available)
			if err != nil {
				return fmt.Errorf("seed slot %s: %w", sl.ID, err)
			}
		}
		return nil
	})
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// escapeLike makes s match literally inside an ILIKE pattern.
func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}

func scanPgPractitioner(row pgx.Row) (*Practitioner, error) {
	var (
		p        Practitioner
		imageURL *string
		lat, lng *float64
	)
	if err := row.Scan(&p.ID, &p.Name, &p.Specialty, &p.Address, &p.City, &p.State, &imageURL, &lat, &lng); err != nil {
		return nil, err
	}
	if imageURL != nil {
		p.ImageURL = *imageURL
	}
	if lat != nil && lng != nil {
		p.Coordinates = &Coordinates{Lat: *lat, Lng: *lng}
	}
	return &p, nil
}

func scanPgSlot(row pgx.Row) (*Slot, error) {
	var (
		sl Slot
		at time.Time
	)
	if err := row.Scan(&sl.ID, &sl.PractitionerID, &at, &sl.Available); err != nil {
		return nil, err
	}
	sl.Time = at.UTC().Format(SlotTimeLayout)
	return &sl, nil
}
