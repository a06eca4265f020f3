package scheduling

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/RobinCoderZhao/mcp-apps/internal/directory"
)

var bookingTracer = otel.Tracer("mcp-apps/scheduling")

// Recorder receives booking outcomes.
type Recorder interface {
	ObserveBooking(outcome string)
	ObserveOrphanedSlot()
}

// Notifier is told about every confirmed booking.
type Notifier interface {
	BookingCreated(ctx context.Context, c *Confirmation) error
}

// BookingRequest is the input of Book.
type BookingRequest struct {
	Practitioner Reference
	Slot         SlotReference
	PatientName  string
	PatientPhone string
}

// Confirmation is a successful booking together with the records it was
// made against.
type Confirmation struct {
	Booking      directory.Booking
	Practitioner directory.Practitioner
	Slot         directory.Slot
}

// Booker runs the resolve, reserve and record sequence.
type Booker struct {
	store    directory.Store
	resolver *Resolver
	logger   *slog.Logger
	tracer   trace.Tracer
	recorder Recorder
	notifier Notifier
}

// Option configures a Booker.
type Option func(*Booker)

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(b *Booker) {
		if l != nil {
			b.logger = l
		}
	}
}

// WithTracer overrides the OpenTelemetry tracer.
func WithTracer(t trace.Tracer) Option {
	return func(b *Booker) {
		if t != nil {
			b.tracer = t
		}
	}
}

// WithRecorder reports outcomes to r.
func WithRecorder(r Recorder) Option {
	return func(b *Booker) { b.recorder = r }
}

// WithNotifier calls n after each successful booking. Notification errors
// are logged and never fail the booking.
func WithNotifier(n Notifier) Option {
	return func(b *Booker) { b.notifier = n }
}

// NewBooker creates a Booker over store.
func NewBooker(store directory.Store, opts ...Option) *Booker {
	b := &Booker{
		store:    store,
		resolver: NewResolver(store),
		logger:   slog.Default(),
		tracer:   bookingTracer,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Resolver returns the resolver used for step one and two.
func (b *Booker) Resolver() *Resolver { return b.resolver }

// Book resolves the practitioner and slot, marks the slot unavailable and
// records the booking. Every failure is a *Failure.
//
// The availability flip and the insert are two store calls. When the insert
// fails the slot stays unavailable without a booking; the Failure reports it
// with SlotOrphaned and nothing is rolled back.
func (b *Booker) Book(ctx context.Context, req BookingRequest) (*Confirmation, error) {
	ctx, span := b.tracer.Start(ctx, "scheduling.book")
	defer span.End()
	span.SetAttributes(
		attribute.String("doctor.id", req.Practitioner.ID),
		attribute.String("slot.id", req.Slot.ID),
	)

	c, err := b.book(ctx, req)
	if err != nil {
		f, _ := AsFailure(err)
		span.SetAttributes(attribute.String("booking.outcome", string(f.Reason)))
		span.SetStatus(codes.Error, string(f.Reason))
		b.observe(string(f.Reason))
		return nil, err
	}

	span.SetAttributes(
		attribute.String("booking.outcome", "booked"),
		attribute.String("booking.id", c.Booking.ID),
	)
	b.observe("booked")
	b.logger.Info("appointment booked",
		"booking_id", c.Booking.ID,
		"doctor_id", c.Practitioner.ID,
		"slot_id", c.Slot.ID,
		"scheduled_at", c.Booking.ScheduledAt,
	)
	b.notify(ctx, c)
	return c, nil
}

func (b *Booker) notify(ctx context.Context, c *Confirmation) {
	if b.notifier == nil {
		return
	}
	if err := b.notifier.BookingCreated(ctx, c); err != nil {
		b.logger.Warn("booking notification failed", "booking_id", c.Booking.ID, "error", err)
	}
}

func (b *Booker) book(ctx context.Context, req BookingRequest) (*Confirmation, error) {
	if err := validate(req); err != nil {
		return nil, &Failure{Reason: ReasonInvalidInput, Err: err}
	}

	res, err := b.resolver.ResolvePractitioner(ctx, req.Practitioner)
	if err != nil {
		return nil, &Failure{Reason: ReasonStoreFailure, Err: err}
	}

	var doc directory.Practitioner
	switch r := res.(type) {
	case NotFound:
		return nil, &Failure{Reason: ReasonDoctorNotFound}
	case Ambiguous:
		return nil, &Failure{Reason: ReasonDoctorAmbiguous, Candidates: r.Candidates}
	case Unique:
		doc = r.Practitioner
	}

	slot, err := b.resolver.ResolveSlot(ctx, doc.ID, req.Slot)
	if errors.Is(err, ErrSlotNotFound) {
		return nil, &Failure{Reason: ReasonSlotNotFound, Practitioner: &doc}
	}
	if err != nil {
		return nil, &Failure{Reason: ReasonStoreFailure, Practitioner: &doc, Err: err}
	}

	if err := b.store.SetSlotAvailability(ctx, slot.ID, false); err != nil {
		b.logger.Warn("slot update failed", "slot_id", slot.ID, "doctor_id", doc.ID, "error", err)
		return nil, &Failure{Reason: ReasonSlotUpdateFailed, Practitioner: &doc, Err: err}
	}

	booking, err := b.store.InsertBooking(ctx, directory.NewBooking{
		PractitionerID: doc.ID,
		ScheduledAt:    slot.Time,
		PatientName:    strings.TrimSpace(req.PatientName),
		PatientPhone:   strings.TrimSpace(req.PatientPhone),
	})
	if err != nil {
		b.logger.Error("booking insert failed after slot was reserved",
			"slot_id", slot.ID,
			"doctor_id", doc.ID,
			"slot_orphaned", true,
			"error", err,
		)
		if b.recorder != nil {
			b.recorder.ObserveOrphanedSlot()
		}
		return nil, &Failure{Reason: ReasonBookingInsertFailed, Practitioner: &doc, SlotOrphaned: true, Err: err}
	}

	return &Confirmation{Booking: *booking, Practitioner: doc, Slot: slot}, nil
}

func (b *Booker) observe(outcome string) {
	if b.recorder != nil {
		b.recorder.ObserveBooking(outcome)
	}
}

func validate(req BookingRequest) error {
	switch {
	case req.Practitioner.ID == "" && req.Practitioner.Name == "":
		return errors.New("missing doctor identifier")
	case req.Slot.ID == "" && strings.TrimSpace(req.Slot.Time) == "":
		return errors.New("missing slot identifier")
	case strings.TrimSpace(req.PatientName) == "":
		return errors.New("missing patient name")
	case strings.TrimSpace(req.PatientPhone) == "":
		return errors.New("missing patient phone")
	}
	return nil
}
