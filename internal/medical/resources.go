package medical

import (
	"bytes"
	"context"
	_ "embed"
	"encoding/json"
	"fmt"
	"html/template"

	"github.com/RobinCoderZhao/mcp-apps/internal/directory"
	"github.com/RobinCoderZhao/mcp-apps/pkg/mcpserver"
)

const (
	mimeSkybridge = "text/html+skybridge"
	mimeJSON      = "application/json"
	mimeText      = "text/plain"

	doctorListURI      = "doctor://list"
	doctorSlotsPattern = "doctor://{id}/slots"
)

//go:embed web/widget.html
var widgetSource string

var widgetTemplate = template.Must(template.New("widget").Parse(widgetSource))

// WidgetOptions configures the widget shell served at WidgetURI.
type WidgetOptions struct {
	// WebAppURL serves the widget bundle.
	WebAppURL string
	// ExtraDomains are appended to the widget CSP.
	ExtraDomains []string
}

// RenderWidget returns the widget HTML shell loading the bundle from
// opts.WebAppURL.
func RenderWidget(opts WidgetOptions) (string, error) {
	var buf bytes.Buffer
	if err := widgetTemplate.Execute(&buf, opts); err != nil {
		return "", fmt.Errorf("render widget: %w", err)
	}
	return buf.String(), nil
}

func widgetContentMeta(opts WidgetOptions) map[string]any {
	domains := append([]string{opts.WebAppURL}, opts.ExtraDomains...)
	return map[string]any{
		"openai/widgetPrefersBorder": true,
		"openai/widgetCSP": map[string]any{
			"connect_domains":  domains,
			"resource_domains": domains,
		},
	}
}

type slotEntry struct {
	ID        string `json:"id"`
	Time      string `json:"time"`
	Available bool   `json:"available"`
}

type slotsResource struct {
	DoctorID string      `json:"doctorId"`
	Count    int         `json:"count"`
	Slots    []slotEntry `json:"slots"`
}

func jsonContents(uri string, v any) []mcpserver.ResourceContents {
	raw, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return errorContents(uri, err)
	}
	return []mcpserver.ResourceContents{{URI: uri, MimeType: mimeJSON, Text: string(raw)}}
}

// Store errors are reported inside the contents rather than as protocol errors.
func errorContents(uri string, err error) []mcpserver.ResourceContents {
	return []mcpserver.ResourceContents{{URI: uri, MimeType: mimeText, Text: "Error: " + err.Error()}}
}

// RegisterResources registers the widget shell, the doctor list and the
// per-doctor slots template.
func RegisterResources(s *mcpserver.Server, store directory.Store, opts WidgetOptions) error {
	html, err := RenderWidget(opts)
	if err != nil {
		return err
	}
	meta := widgetContentMeta(opts)

	s.RegisterResource(mcpserver.Resource{
		URI:         WidgetURI,
		Name:        "medical-app-widget",
		Title:       "Medical Appointment Widget",
		Description: "Interactive widget for searching doctors and scheduling appointments",
		MimeType:    mimeSkybridge,
	}, func(_ context.Context, req mcpserver.ResourceRequest) ([]mcpserver.ResourceContents, error) {
		return []mcpserver.ResourceContents{{URI: req.URI, MimeType: mimeSkybridge, Text: html, Meta: meta}}, nil
	})

	s.RegisterResource(mcpserver.Resource{
		URI:         doctorListURI,
		Name:        "list-doctors",
		Title:       "List of Doctors",
		Description: "Returns all doctors registered in the system",
		MimeType:    mimeJSON,
	}, func(ctx context.Context, req mcpserver.ResourceRequest) ([]mcpserver.ResourceContents, error) {
		doctors, err := store.ListPractitioners(ctx, directory.Filters{})
		if err != nil {
			return errorContents(req.URI, err), nil
		}
		return jsonContents(req.URI, doctors), nil
	})

	s.RegisterResourceTemplate(mcpserver.ResourceTemplate{
		URITemplate: doctorSlotsPattern,
		Name:        "doctor-available-slots",
		Title:       "Available Slots",
		Description: "Lists available appointment slots for a specific doctor",
		MimeType:    mimeJSON,
	}, func(ctx context.Context, req mcpserver.ResourceRequest) ([]mcpserver.ResourceContents, error) {
		doctorID := req.Vars["id"]
		slots, err := store.ListAvailableSlots(ctx, doctorID)
		if err != nil {
			return errorContents(req.URI, err), nil
		}
		out := slotsResource{DoctorID: doctorID, Count: len(slots), Slots: make([]slotEntry, 0, len(slots))}
		for _, sl := range slots {
			out.Slots = append(out.Slots, slotEntry{ID: sl.ID, Time: sl.Time, Available: sl.Available})
		}
		return jsonContents(req.URI, out), nil
	})
	return nil
}
