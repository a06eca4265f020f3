package realestate

import (
	"bytes"
	"context"
	_ "embed"
	"fmt"
	"html/template"
	"net/http"

	"github.com/RobinCoderZhao/mcp-apps/pkg/mcpserver"
)

const mimeSkybridge = "text/html+skybridge"

// Banner is served on GET / by the HTTP transports.
const Banner = "Real Estate Map MCP Server"

var (
	cspConnect  = []string{"https://maps.googleapis.com", "https://maps.gstatic.com"}
	cspResource = []string{
		"https://maps.googleapis.com",
		"https://maps.gstatic.com",
		"https://*.googleapis.com",
		"https://*.gstatic.com",
	}
)

//go:embed web/widget.html
var widgetSource string

var widgetTemplate = template.Must(template.New("widget").Parse(widgetSource))

// WidgetOptions configures the map widget.
type WidgetOptions struct {
	GoogleMapsAPIKey string
	// BaseURL hosts the listing images and is added to the widget CSP.
	BaseURL string
}

// RenderWidget returns the map widget HTML.
func RenderWidget(opts WidgetOptions) (string, error) {
	var buf bytes.Buffer
	if err := widgetTemplate.Execute(&buf, opts); err != nil {
		return "", fmt.Errorf("render widget: %w", err)
	}
	return buf.String(), nil
}

func widgetContentMeta(opts WidgetOptions) map[string]any {
	meta := descriptorMeta("Searching properties...", "Properties found")
	resources := cspResource
	if opts.BaseURL != "" {
		resources = append(append([]string(nil), cspResource...), opts.BaseURL)
	}
	meta["openai/widgetPrefersBorder"] = true
	meta["openai/widgetDescription"] = "Interactive map showing real estate properties"
	meta["openai/widgetCSP"] = map[string]any{
		"connect_domains":  cspConnect,
		"resource_domains": resources,
	}
	return meta
}

// Register adds the property tools and the widget resource to s.
func Register(s *mcpserver.Server, catalog *Catalog, opts WidgetOptions) error {
	html, err := RenderWidget(opts)
	if err != nil {
		return err
	}
	listMeta := descriptorMeta("Searching properties...", "Properties found")
	contentMeta := widgetContentMeta(opts)

	s.RegisterResource(mcpserver.Resource{
		URI:         WidgetURI,
		Name:        "Real Estate Widget",
		Description: "Interactive property map widget",
		MimeType:    mimeSkybridge,
		Meta:        listMeta,
	}, func(_ context.Context, req mcpserver.ResourceRequest) ([]mcpserver.ResourceContents, error) {
		return []mcpserver.ResourceContents{{URI: req.URI, MimeType: mimeSkybridge, Text: html, Meta: contentMeta}}, nil
	})
	s.RegisterResourceTemplate(mcpserver.ResourceTemplate{
		URITemplate: WidgetURI,
		Name:        "Real Estate Widget Template",
		Description: "Interactive property map widget",
		MimeType:    mimeSkybridge,
		Meta:        listMeta,
	}, nil)

	s.RegisterTools(
		NewSearchPropertiesTool(catalog),
		NewFilterByPriceTool(catalog),
	)
	return nil
}

// BannerHandler answers GET / with a plain text banner.
func BannerHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain")
		fmt.Fprint(w, Banner)
	})
}
