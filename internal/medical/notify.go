package medical

import (
	"context"
	"fmt"
	"strings"

	"github.com/RobinCoderZhao/mcp-apps/internal/scheduling"
	"github.com/RobinCoderZhao/mcp-apps/pkg/notify"
)

// EventBookingCreated is the notification event for a confirmed booking.
const EventBookingCreated = "booking.created"

// Sender delivers a message to every configured channel.
type Sender interface {
	SendAll(ctx context.Context, msg notify.Message) error
}

// BookingNotifier turns confirmed bookings into clinic notifications.
type BookingNotifier struct {
	sender Sender
	format *Formatter
}

// NewBookingNotifier creates a scheduling.Notifier backed by sender.
func NewBookingNotifier(sender Sender, format *Formatter) *BookingNotifier {
	return &BookingNotifier{sender: sender, format: format}
}

var _ scheduling.Notifier = (*BookingNotifier)(nil)

// BookingCreated sends the "Nova consulta agendada" message for c.
func (n *BookingNotifier) BookingCreated(ctx context.Context, c *scheduling.Confirmation) error {
	return n.sender.SendAll(ctx, n.Message(c))
}

// Message builds the notification for c.
func (n *BookingNotifier) Message(c *scheduling.Confirmation) notify.Message {
	doc := c.Practitioner
	when := n.format.LongDate(c.Slot.Time)

	var b strings.Builder
	fmt.Fprintf(&b, "%s (%s)\n", doc.Name, doc.Specialty)
	fmt.Fprintf(&b, "%s\n", when)
	fmt.Fprintf(&b, "Paciente: %s, %s", c.Booking.PatientName, c.Booking.PatientPhone)
	if doc.Address != "" {
		fmt.Fprintf(&b, "\n%s", doc.Address)
	}

	return notify.Message{
		Event: EventBookingCreated,
		Title: "Nova consulta agendada",
		Body:  b.String(),
		Data: map[string]any{
			"bookingId":     c.Booking.ID,
			"doctorId":      doc.ID,
			"doctorName":    doc.Name,
			"specialty":     doc.Specialty,
			"slotId":        c.Slot.ID,
			"scheduledAt":   c.Slot.Time,
			"formattedDate": when,
			"patientName":   c.Booking.PatientName,
			"patientPhone":  c.Booking.PatientPhone,
		},
	}
}
