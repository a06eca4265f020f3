package scheduling

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/RobinCoderZhao/mcp-apps/internal/directory"
)

// Reference identifies a practitioner. ID wins over Name and Specialty.
type Reference struct {
	ID        string
	Name      string
	Specialty string
}

// SlotReference identifies a slot either by ID or by a free-text time such
// as "9h", "14h30" or "2024-05-01T09:00".
type SlotReference struct {
	ID   string
	Time string
}

// Resolver maps references onto directory records. It has no side effects.
type Resolver struct {
	store directory.Store
}

// NewResolver creates a Resolver over store.
func NewResolver(store directory.Store) *Resolver {
	return &Resolver{store: store}
}

// ResolvePractitioner looks up ref by id, or by case-insensitive substring
// on name and specialty. Store errors are wrapped in ErrStoreFailure.
func (r *Resolver) ResolvePractitioner(ctx context.Context, ref Reference) (Resolution, error) {
	if ref.ID != "" {
		p, err := r.store.GetPractitioner(ctx, ref.ID)
		if errors.Is(err, directory.ErrNotFound) {
			return NotFound{}, nil
		}
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrStoreFailure, err)
		}
		return Unique{Practitioner: *p}, nil
	}

	matches, err := r.store.ListPractitioners(ctx, directory.Filters{
		Name:      ref.Name,
		Specialty: ref.Specialty,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrStoreFailure, err)
	}

	switch len(matches) {
	case 0:
		return NotFound{}, nil
	case 1:
		return Unique{Practitioner: matches[0]}, nil
	default:
		return Ambiguous{Candidates: matches}, nil
	}
}

// CheckSlot returns the slot if it exists and is still available.
func (r *Resolver) CheckSlot(ctx context.Context, slotID string) (directory.Slot, error) {
	sl, err := r.store.GetAvailableSlot(ctx, slotID)
	if errors.Is(err, directory.ErrNotFound) {
		return directory.Slot{}, ErrSlotNotFound
	}
	if err != nil {
		return directory.Slot{}, fmt.Errorf("%w: %w", ErrStoreFailure, err)
	}
	return *sl, nil
}

// ResolveSlot finds an available slot of practitionerID. With ref.ID the
// slot must exist, be available and belong to the practitioner. Otherwise
// the first available slot whose time contains the normalized query, or the
// raw query, is returned. Several slots may contain the query; the earliest
// one wins.
func (r *Resolver) ResolveSlot(ctx context.Context, practitionerID string, ref SlotReference) (directory.Slot, error) {
	if ref.ID != "" {
		sl, err := r.CheckSlot(ctx, ref.ID)
		if err != nil {
			return directory.Slot{}, err
		}
		if practitionerID != "" && sl.PractitionerID != practitionerID {
			return directory.Slot{}, ErrSlotNotFound
		}
		return sl, nil
	}

	raw := strings.ToLower(strings.TrimSpace(ref.Time))
	if raw == "" {
		return directory.Slot{}, ErrSlotNotFound
	}

	slots, err := r.store.ListAvailableSlots(ctx, practitionerID)
	if err != nil {
		return directory.Slot{}, fmt.Errorf("%w: %w", ErrStoreFailure, err)
	}

	query := NormalizeTimeQuery(raw)
	for _, sl := range slots {
		t := strings.ToLower(sl.Time)
		if strings.Contains(t, query) || strings.Contains(t, raw) {
			return sl, nil
		}
	}
	return directory.Slot{}, ErrSlotNotFound
}

var hourShorthand = regexp.MustCompile(`(\d{1,2})h(\d{2})?`)

// NormalizeTimeQuery lower-cases q and rewrites the "9h" and "14h30" hour
// shorthands to "9:00" and "14:30".
func NormalizeTimeQuery(q string) string {
	q = strings.ToLower(strings.TrimSpace(q))
	return hourShorthand.ReplaceAllStringFunc(q, func(m string) string {
		parts := hourShorthand.FindStringSubmatch(m)
		minutes := parts[2]
		if minutes == "" {
			minutes = "00"
		}
		return parts[1] + ":" + minutes
	})
}
