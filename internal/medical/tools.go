// Package medical exposes doctor search, slot listing and appointment
// booking as MCP tools and widget resources.
package medical

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/RobinCoderZhao/mcp-apps/internal/directory"
	"github.com/RobinCoderZhao/mcp-apps/internal/scheduling"
	"github.com/RobinCoderZhao/mcp-apps/pkg/mcpserver"
)

// WidgetURI is the output template every tool renders into.
const WidgetURI = "ui://widget/medical-app.html"

const (
	minPatientName  = 2
	minPatientPhone = 8
)

func widgetMeta(invoking, invoked string) map[string]any {
	return map[string]any{
		"openai/outputTemplate":          WidgetURI,
		"openai/toolInvocation/invoking": invoking,
		"openai/toolInvocation/invoked":  invoked,
		"openai/widgetAccessible":        true,
	}
}

func stringProp(desc string) map[string]any {
	return map[string]any{"type": "string", "description": desc}
}

func uuidProp(desc string) map[string]any {
	return map[string]any{"type": "string", "format": "uuid", "description": desc}
}

func stringArg(args map[string]any, key string) string {
	v, _ := args[key].(string)
	return strings.TrimSpace(v)
}

func validUUID(field, v string) error {
	if v == "" {
		return nil
	}
	if _, err := uuid.Parse(v); err != nil {
		return fmt.Errorf("%s must be a valid UUID", field)
	}
	return nil
}

// SearchDoctorsTool lists doctors matching optional filters.
type SearchDoctorsTool struct {
	mcpserver.BaseTool
	store  directory.Store
	format *Formatter
}

// NewSearchDoctorsTool creates the search_doctors tool.
func NewSearchDoctorsTool(store directory.Store, format *Formatter) *SearchDoctorsTool {
	return &SearchDoctorsTool{
		BaseTool: mcpserver.BaseTool{
			ToolName:        "search_doctors",
			ToolTitle:       "Search Doctors",
			ToolDescription: "Use this when the user wants to find doctors. Searches by name, specialty, or city. All filters are optional and can be combined.",
			ToolSchema: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"name":      stringProp("Doctor's name or part of it (e.g., 'Silva', 'Dr. Luis')"),
					"specialty": stringProp("Medical specialty (e.g., 'Cardiologista', 'Pediatra', 'Dermatologista')"),
					"city":      stringProp("City name (e.g., 'São Paulo', 'Rio de Janeiro')"),
				},
			},
			ToolMeta: widgetMeta("Searching for doctors...", "Found doctors"),
		},
		store:  store,
		format: format,
	}
}

func (t *SearchDoctorsTool) Execute(ctx context.Context, args map[string]any) (*mcpserver.ToolCallResult, error) {
	filters := directory.Filters{
		Name:      stringArg(args, "name"),
		Specialty: stringArg(args, "specialty"),
		City:      stringArg(args, "city"),
	}
	doctors, err := t.store.ListPractitioners(ctx, filters)
	if err != nil {
		return t.format.StoreError("Error searching doctors", err), nil
	}
	return t.format.Doctors(filters, doctors), nil
}

// AvailableSlotsTool lists the open slots of one doctor.
type AvailableSlotsTool struct {
	mcpserver.BaseTool
	store    directory.Store
	resolver *scheduling.Resolver
	format   *Formatter
}

// NewAvailableSlotsTool creates the get_available_slots tool.
func NewAvailableSlotsTool(store directory.Store, resolver *scheduling.Resolver, format *Formatter) *AvailableSlotsTool {
	return &AvailableSlotsTool{
		BaseTool: mcpserver.BaseTool{
			ToolName:        "get_available_slots",
			ToolTitle:       "View Available Slots",
			ToolDescription: "Use this when the user wants to see available appointment times for a doctor. Pass doctor ID or name (with optional specialty to disambiguate).",
			ToolSchema: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"doctorId":   uuidProp("The doctor's UUID (if you have it from search_doctors)"),
					"doctorName": stringProp("The doctor's name or part of it (e.g., 'Silva', 'Dr. Luis')"),
					"specialty":  stringProp("Medical specialty to disambiguate when multiple doctors have similar names"),
				},
			},
			ToolMeta: widgetMeta("Checking availability...", "Availability loaded"),
		},
		store:    store,
		resolver: resolver,
		format:   format,
	}
}

func (t *AvailableSlotsTool) Execute(ctx context.Context, args map[string]any) (*mcpserver.ToolCallResult, error) {
	ref := scheduling.Reference{
		ID:        stringArg(args, "doctorId"),
		Name:      stringArg(args, "doctorName"),
		Specialty: stringArg(args, "specialty"),
	}
	if ref.ID == "" && ref.Name == "" {
		return t.format.MissingDoctor(), nil
	}
	if err := validUUID("doctorId", ref.ID); err != nil {
		return t.format.InvalidInput(err.Error()), nil
	}

	res, err := t.resolver.ResolvePractitioner(ctx, ref)
	if err != nil {
		return t.format.StoreError("Error fetching slots", err), nil
	}

	switch r := res.(type) {
	case scheduling.NotFound:
		return t.format.DoctorNotFound(ref), nil
	case scheduling.Ambiguous:
		return t.format.Ambiguous(ref, r.Candidates, true), nil
	case scheduling.Unique:
		slots, err := t.store.ListAvailableSlots(ctx, r.Practitioner.ID)
		if err != nil {
			return t.format.StoreError("Error fetching slots", err), nil
		}
		return t.format.Slots(r.Practitioner, slots), nil
	}
	return t.format.StoreError("Error fetching slots", errors.New("unexpected resolution")), nil
}

// ScheduleAppointmentTool books a slot for a patient.
type ScheduleAppointmentTool struct {
	mcpserver.BaseTool
	booker *scheduling.Booker
	format *Formatter
}

// NewScheduleAppointmentTool creates the schedule_appointment tool.
func NewScheduleAppointmentTool(booker *scheduling.Booker, format *Formatter) *ScheduleAppointmentTool {
	return &ScheduleAppointmentTool{
		BaseTool: mcpserver.BaseTool{
			ToolName:        "schedule_appointment",
			ToolTitle:       "Schedule Appointment",
			ToolDescription: "Use this to book an appointment. Identify doctor by ID or name+specialty, and slot by ID or time (e.g., '09:00'). Requires patient name and phone.",
			ToolSchema: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"doctorId":     uuidProp("The doctor's UUID"),
					"doctorName":   stringProp("The doctor's name (e.g., 'Silva', 'Dr. Luis')"),
					"specialty":    stringProp("Medical specialty to disambiguate when multiple doctors have similar names"),
					"slotId":       uuidProp("The time slot's UUID (from get_available_slots)"),
					"slotTime":     stringProp("The desired time (e.g., '09:00', '9h', '14:00'). Will find matching available slot."),
					"patientName":  map[string]any{"type": "string", "minLength": minPatientName, "description": "Patient's full name"},
					"patientPhone": map[string]any{"type": "string", "minLength": minPatientPhone, "description": "Patient's phone number for contact"},
				},
				"required": []string{"patientName", "patientPhone"},
			},
			ToolMeta: widgetMeta("Scheduling appointment...", "Appointment scheduled"),
		},
		booker: booker,
		format: format,
	}
}

func (t *ScheduleAppointmentTool) Execute(ctx context.Context, args map[string]any) (*mcpserver.ToolCallResult, error) {
	req := scheduling.BookingRequest{
		Practitioner: scheduling.Reference{
			ID:        stringArg(args, "doctorId"),
			Name:      stringArg(args, "doctorName"),
			Specialty: stringArg(args, "specialty"),
		},
		Slot: scheduling.SlotReference{
			ID:   stringArg(args, "slotId"),
			Time: stringArg(args, "slotTime"),
		},
		PatientName:  stringArg(args, "patientName"),
		PatientPhone: stringArg(args, "patientPhone"),
	}

	if req.Practitioner.ID == "" && req.Practitioner.Name == "" {
		return t.format.MissingDoctor(), nil
	}
	if req.Slot.ID == "" && req.Slot.Time == "" {
		return t.format.MissingSlot(), nil
	}
	if err := validateBooking(req); err != nil {
		return t.format.InvalidInput(err.Error()), nil
	}

	c, err := t.booker.Book(ctx, req)
	if err != nil {
		return t.format.BookingFailure(req, err), nil
	}
	return t.format.Confirmation(c), nil
}

func validateBooking(req scheduling.BookingRequest) error {
	if err := validUUID("doctorId", req.Practitioner.ID); err != nil {
		return err
	}
	if err := validUUID("slotId", req.Slot.ID); err != nil {
		return err
	}
	if utf8.RuneCountInString(req.PatientName) < minPatientName {
		return fmt.Errorf("patientName must contain at least %d characters", minPatientName)
	}
	if utf8.RuneCountInString(req.PatientPhone) < minPatientPhone {
		return fmt.Errorf("patientPhone must contain at least %d characters", minPatientPhone)
	}
	return nil
}
