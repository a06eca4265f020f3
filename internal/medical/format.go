package medical

import (
	"fmt"
	"strings"
	"time"

	"github.com/RobinCoderZhao/mcp-apps/internal/directory"
	"github.com/RobinCoderZhao/mcp-apps/internal/scheduling"
	"github.com/RobinCoderZhao/mcp-apps/pkg/mcpserver"
)

// Widget views.
const (
	ViewDoctorsList    = "doctors-list"
	ViewSlotsList      = "slots-list"
	ViewConfirmation   = "confirmation"
	ViewDisambiguation = "disambiguation"
)

var (
	weekdaysLong  = [...]string{"domingo", "segunda-feira", "terça-feira", "quarta-feira", "quinta-feira", "sexta-feira", "sábado"}
	weekdaysShort = [...]string{"dom.", "seg.", "ter.", "qua.", "qui.", "sex.", "sáb."}
	monthsLong    = [...]string{"janeiro", "fevereiro", "março", "abril", "maio", "junho", "julho", "agosto", "setembro", "outubro", "novembro", "dezembro"}
	monthsShort   = [...]string{"jan.", "fev.", "mar.", "abr.", "mai.", "jun.", "jul.", "ago.", "set.", "out.", "nov.", "dez."}
)

// Formatter renders outcomes as tool results. Slot times without an offset
// are read as wall-clock times in loc.
type Formatter struct {
	loc *time.Location
}

// NewFormatter creates a Formatter for the given display location.
func NewFormatter(loc *time.Location) *Formatter {
	if loc == nil {
		loc = time.UTC
	}
	return &Formatter{loc: loc}
}

func (f *Formatter) parse(slotTime string) (time.Time, bool) {
	if t, err := time.Parse(time.RFC3339, slotTime); err == nil {
		return t.In(f.loc), true
	}
	if t, err := time.ParseInLocation(directory.SlotTimeLayout, slotTime, f.loc); err == nil {
		return t, true
	}
	return time.Time{}, false
}

// LongDate renders "quarta-feira, 1 de maio às 09:00".
func (f *Formatter) LongDate(slotTime string) string {
	t, ok := f.parse(slotTime)
	if !ok {
		return slotTime
	}
	return fmt.Sprintf("%s, %d de %s às %02d:%02d",
		weekdaysLong[t.Weekday()], t.Day(), monthsLong[t.Month()-1], t.Hour(), t.Minute())
}

// ShortDate renders "qua., 1 de mai., 09:00".
func (f *Formatter) ShortDate(slotTime string) string {
	t, ok := f.parse(slotTime)
	if !ok {
		return slotTime
	}
	return fmt.Sprintf("%s, %d de %s, %02d:%02d",
		weekdaysShort[t.Weekday()], t.Day(), monthsShort[t.Month()-1], t.Hour(), t.Minute())
}

// Payloads. Field names follow the widget contract.

type doctorSummary struct {
	Name      string `json:"name"`
	Specialty string `json:"specialty"`
	City      string `json:"city,omitempty"`
	State     string `json:"state,omitempty"`
}

type doctorCard struct {
	ID          string                 `json:"id"`
	Name        string                 `json:"name"`
	Specialty   string                 `json:"specialty"`
	Address     string                 `json:"address"`
	City        string                 `json:"city"`
	State       string                 `json:"state"`
	ImageURL    string                 `json:"imageUrl,omitempty"`
	Coordinates *directory.Coordinates `json:"coordinates,omitempty"`
}

type doctorRef struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Specialty string `json:"specialty"`
	Address   string `json:"address,omitempty"`
}

func toCard(p directory.Practitioner, withCoordinates bool) doctorCard {
	c := doctorCard{
		ID:        p.ID,
		Name:      p.Name,
		Specialty: p.Specialty,
		Address:   p.Address,
		City:      p.City,
		State:     p.State,
		ImageURL:  p.ImageURL,
	}
	if withCoordinates {
		c.Coordinates = p.Coordinates
	}
	return c
}

type doctorsView struct {
	View    string       `json:"view"`
	Doctors []doctorCard `json:"doctors"`
}

type searchPayload struct {
	Success bool            `json:"success"`
	Count   int             `json:"count"`
	Doctors []doctorSummary `json:"doctors"`
	Meta    *doctorsView    `json:"_meta,omitempty"`
}

type slotSummary struct {
	Time string `json:"time"`
}

type slotCard struct {
	ID            string `json:"id"`
	Time          string `json:"time"`
	FormattedTime string `json:"formattedTime"`
}

type slotsView struct {
	View   string     `json:"view"`
	Doctor doctorCard `json:"doctor"`
	Slots  []slotCard `json:"slots"`
}

type slotsPayload struct {
	Success bool          `json:"success"`
	Doctor  doctorRef     `json:"doctor"`
	Count   int           `json:"count"`
	Slots   []slotSummary `json:"slots"`
	Meta    *slotsView    `json:"_meta,omitempty"`
}

type disambiguationView struct {
	View    string      `json:"view"`
	Matches []doctorRef `json:"matches"`
}

type failurePayload struct {
	Success   bool                `json:"success"`
	Error     string              `json:"error,omitempty"`
	Ambiguous bool                `json:"ambiguous,omitempty"`
	Matches   []doctorRef         `json:"matches,omitempty"`
	Meta      *disambiguationView `json:"_meta,omitempty"`
}

type patientCard struct {
	Name  string `json:"name"`
	Phone string `json:"phone"`
}

type appointmentCard struct {
	ID            string      `json:"id"`
	Doctor        doctorCard  `json:"doctor"`
	ScheduledAt   string      `json:"scheduledAt"`
	FormattedDate string      `json:"formattedDate"`
	Patient       patientCard `json:"patient"`
}

type confirmationView struct {
	View        string          `json:"view"`
	Appointment appointmentCard `json:"appointment"`
}

type appointmentSummary struct {
	DoctorName  string `json:"doctorName"`
	Specialty   string `json:"specialty"`
	ScheduledAt string `json:"scheduledAt"`
	PatientName string `json:"patientName"`
}

type confirmationPayload struct {
	Success     bool               `json:"success"`
	Appointment appointmentSummary `json:"appointment"`
	Meta        *confirmationView  `json:"_meta,omitempty"`
}

func fail(text, errMsg string) *mcpserver.ToolCallResult {
	return mcpserver.StructuredResult(text, failurePayload{Success: false, Error: errMsg})
}

// Doctors renders a search_doctors result.
func (f *Formatter) Doctors(filters directory.Filters, doctors []directory.Practitioner) *mcpserver.ToolCallResult {
	if len(doctors) == 0 {
		return mcpserver.StructuredResult("No doctors found with the given filters.",
			searchPayload{Success: true, Count: 0, Doctors: []doctorSummary{}})
	}

	summary := make([]doctorSummary, 0, len(doctors))
	cards := make([]doctorCard, 0, len(doctors))
	for _, d := range doctors {
		summary = append(summary, doctorSummary{Name: d.Name, Specialty: d.Specialty, City: d.City, State: d.State})
		cards = append(cards, toCard(d, true))
	}

	var parts []string
	for _, v := range []string{filters.Name, filters.Specialty, filters.City} {
		if v != "" {
			parts = append(parts, v)
		}
	}
	desc := strings.Join(parts, ", ")
	if desc == "" {
		desc = "all"
	}

	return mcpserver.StructuredResult(
		fmt.Sprintf("Found %d doctor(s) matching: %s.", len(doctors), desc),
		searchPayload{
			Success: true,
			Count:   len(doctors),
			Doctors: summary,
			Meta:    &doctorsView{View: ViewDoctorsList, Doctors: cards},
		},
	)
}

// Slots renders a get_available_slots result for a resolved doctor.
func (f *Formatter) Slots(doc directory.Practitioner, slots []directory.Slot) *mcpserver.ToolCallResult {
	ref := doctorRef{ID: doc.ID, Name: doc.Name, Specialty: doc.Specialty}
	if len(slots) == 0 {
		return mcpserver.StructuredResult(
			fmt.Sprintf("%s has no available slots at the moment.", doc.Name),
			slotsPayload{Success: true, Doctor: ref, Count: 0, Slots: []slotSummary{}},
		)
	}

	summary := make([]slotSummary, 0, len(slots))
	cards := make([]slotCard, 0, len(slots))
	for _, sl := range slots {
		summary = append(summary, slotSummary{Time: f.ShortDate(sl.Time)})
		cards = append(cards, slotCard{ID: sl.ID, Time: sl.Time, FormattedTime: f.LongDate(sl.Time)})
	}

	return mcpserver.StructuredResult(
		fmt.Sprintf("%s (%s) has %d available slot(s).", doc.Name, doc.Specialty, len(slots)),
		slotsPayload{
			Success: true,
			Doctor:  doctorRef{Name: doc.Name, Specialty: doc.Specialty},
			Count:   len(slots),
			Slots:   summary,
			Meta:    &slotsView{View: ViewSlotsList, Doctor: toCard(doc, false), Slots: cards},
		},
	)
}

// MissingDoctor is returned when neither id nor name was given.
func (f *Formatter) MissingDoctor() *mcpserver.ToolCallResult {
	return fail("Please provide the doctor's ID or name.", "Missing doctor identifier")
}

// MissingSlot is returned when neither slot id nor time was given.
func (f *Formatter) MissingSlot() *mcpserver.ToolCallResult {
	return fail("Please provide the slot ID or desired time.", "Missing slot identifier")
}

// InvalidInput reports an argument that failed validation.
func (f *Formatter) InvalidInput(msg string) *mcpserver.ToolCallResult {
	return fail("Invalid input: "+msg, "Invalid input")
}

// DoctorNotFound renders the not-found outcome for ref.
func (f *Formatter) DoctorNotFound(ref scheduling.Reference) *mcpserver.ToolCallResult {
	if ref.ID != "" {
		return fail(fmt.Sprintf("Doctor not found with ID: %s", ref.ID), "Doctor not found")
	}
	text := fmt.Sprintf("No doctor found with name %q", ref.Name)
	if ref.Specialty != "" {
		text += fmt.Sprintf(" (%s)", ref.Specialty)
	}
	return fail(text+".", "Doctor not found")
}

// Ambiguous lists the candidates so the caller can pick one. The
// disambiguation view is attached only when withView is set.
func (f *Formatter) Ambiguous(ref scheduling.Reference, candidates []directory.Practitioner, withView bool) *mcpserver.ToolCallResult {
	matches := make([]doctorRef, 0, len(candidates))
	detailed := make([]doctorRef, 0, len(candidates))
	for _, c := range candidates {
		matches = append(matches, doctorRef{ID: c.ID, Name: c.Name, Specialty: c.Specialty})
		detailed = append(detailed, doctorRef{ID: c.ID, Name: c.Name, Specialty: c.Specialty, Address: c.Address})
	}
	payload := failurePayload{Success: false, Ambiguous: true, Matches: matches}
	if withView {
		payload.Meta = &disambiguationView{View: ViewDisambiguation, Matches: detailed}
	}
	return mcpserver.StructuredResult(
		fmt.Sprintf("Found %d doctors named %q. Please specify which one.", len(candidates), ref.Name),
		payload,
	)
}

// StoreError renders an unexpected failure with the operation prefix, e.g.
// "Error fetching slots".
func (f *Formatter) StoreError(prefix string, err error) *mcpserver.ToolCallResult {
	return fail(fmt.Sprintf("%s: %v", prefix, err), err.Error())
}

// Confirmation renders a successful booking.
func (f *Formatter) Confirmation(c *scheduling.Confirmation) *mcpserver.ToolCallResult {
	formatted := f.LongDate(c.Slot.Time)
	doc := c.Practitioner
	return mcpserver.StructuredResult(
		fmt.Sprintf("Appointment confirmed with %s (%s) on %s.", doc.Name, doc.Specialty, formatted),
		confirmationPayload{
			Success: true,
			Appointment: appointmentSummary{
				DoctorName:  doc.Name,
				Specialty:   doc.Specialty,
				ScheduledAt: formatted,
				PatientName: c.Booking.PatientName,
			},
			Meta: &confirmationView{
				View: ViewConfirmation,
				Appointment: appointmentCard{
					ID:            c.Booking.ID,
					Doctor:        toCard(doc, false),
					ScheduledAt:   c.Slot.Time,
					FormattedDate: formatted,
					Patient:       patientCard{Name: c.Booking.PatientName, Phone: c.Booking.PatientPhone},
				},
			},
		},
	)
}

// BookingFailure maps a *scheduling.Failure from Booker.Book.
func (f *Formatter) BookingFailure(req scheduling.BookingRequest, err error) *mcpserver.ToolCallResult {
	failure, ok := scheduling.AsFailure(err)
	if !ok {
		return f.StoreError("Error scheduling", err)
	}

	switch failure.Reason {
	case scheduling.ReasonInvalidInput:
		return f.InvalidInput(failure.Err.Error())
	case scheduling.ReasonDoctorNotFound:
		return f.DoctorNotFound(req.Practitioner)
	case scheduling.ReasonDoctorAmbiguous:
		return f.Ambiguous(req.Practitioner, failure.Candidates, false)
	case scheduling.ReasonSlotNotFound:
		if req.Slot.Time != "" && failure.Practitioner != nil {
			return fail(fmt.Sprintf("Time %s is not available for %s.", req.Slot.Time, failure.Practitioner.Name), "Slot not available")
		}
		return fail("This slot is no longer available.", "Slot not available")
	case scheduling.ReasonSlotUpdateFailed:
		return fail("This slot is no longer available.", "Slot not available")
	case scheduling.ReasonBookingInsertFailed:
		return fail("Failed to create appointment. Please try again.", "Failed to create appointment")
	default:
		if failure.Err != nil {
			return f.StoreError("Error scheduling", failure.Err)
		}
		return f.StoreError("Error scheduling", failure)
	}
}
