package directory

import (
	"embed"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"
)

//go:embed fixtures/clinic.yaml
var fixtureFS embed.FS

// SlotTimeLayout is the layout of generated slot timestamps.
const SlotTimeLayout = "2006-01-02T15:04:05"

var slotNamespace = uuid.MustParse("5b0f3c8e-2d9a-4e61-9f1b-7a4c2e8d1f30")

// Fixtures is a directory snapshot used to seed stores.
type Fixtures struct {
	Practitioners []Practitioner
	Slots         []Slot
}

type fixtureFile struct {
	Schedule struct {
		DaysAhead int      `yaml:"days_ahead"`
		Hours     []string `yaml:"hours"`
	} `yaml:"schedule"`
	Doctors []Practitioner `yaml:"doctors"`
}

// LoadFixtures parses the embedded clinic fixture and generates available
// slots for the weekdays following now. Slot ids are derived from the doctor
// id and slot time so repeated loads for the same day are stable.
func LoadFixtures(now time.Time) (*Fixtures, error) {
	raw, err := fixtureFS.ReadFile("fixtures/clinic.yaml")
	if err != nil {
		return nil, fmt.Errorf("read fixtures: %w", err)
	}
	var file fixtureFile
	if err := yaml.Unmarshal(raw, &file); err != nil {
		return nil, fmt.Errorf("parse fixtures: %w", err)
	}

	fx := &Fixtures{Practitioners: file.Doctors}
	days := weekdaysAfter(now, file.Schedule.DaysAhead)
	for _, doc := range file.Doctors {
		for _, day := range days {
			for _, hour := range file.Schedule.Hours {
				clock, err := time.Parse("15:04", hour)
				if err != nil {
					return nil, fmt.Errorf("fixture hour %q: %w", hour, err)
				}
				at := time.Date(day.Year(), day.Month(), day.Day(), clock.Hour(), clock.Minute(), 0, 0, time.UTC)
				ts := at.Format(SlotTimeLayout)
				fx.Slots = append(fx.Slots, Slot{
					ID:             uuid.NewSHA1(slotNamespace, []byte(doc.ID+"/"+ts)).String(),
					PractitionerID: doc.ID,
					Time:           ts,
					Available:      true,
				})
			}
		}
	}
	return fx, nil
}

func weekdaysAfter(now time.Time, n int) []time.Time {
	days := make([]time.Time, 0, n)
	for d := now.AddDate(0, 0, 1); len(days) < n; d = d.AddDate(0, 0, 1) {
		if d.Weekday() == time.Saturday || d.Weekday() == time.Sunday {
			continue
		}
		days = append(days, d)
	}
	return days
}

// ParseSlotTime parses slot timestamps in SlotTimeLayout (as UTC) or RFC 3339.
func ParseSlotTime(s string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	t, err := time.Parse(SlotTimeLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse slot time %q: %w", s, err)
	}
	return t, nil
}
