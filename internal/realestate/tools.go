package realestate

import (
	"context"
	"fmt"

	"github.com/RobinCoderZhao/mcp-apps/pkg/mcpserver"
)

// WidgetURI is the map widget every tool renders into.
const WidgetURI = "ui://widget/real-estate.html"

func descriptorMeta(invoking, invoked string) map[string]any {
	return map[string]any{
		"openai/outputTemplate":          WidgetURI,
		"openai/toolInvocation/invoking": invoking,
		"openai/toolInvocation/invoked":  invoked,
		"openai/widgetAccessible":        true,
	}
}

var readOnly = &mcpserver.ToolAnnotations{
	ReadOnlyHint:    true,
	DestructiveHint: false,
	OpenWorldHint:   false,
}

type propertyView struct {
	Property
	FormattedPrice string `json:"formattedPrice"`
	ShortPrice     string `json:"shortPrice"`
	Details        string `json:"details"`
}

type propertiesPayload struct {
	Properties []propertyView `json:"properties"`
}

func reply(meta map[string]any, properties []Property, text string) *mcpserver.ToolCallResult {
	views := make([]propertyView, 0, len(properties))
	for _, p := range properties {
		views = append(views, propertyView{
			Property:       p,
			FormattedPrice: FormatPrice(float64(p.Price)),
			ShortPrice:     FormatPriceShort(p.Price),
			Details:        FormatDetails(p),
		})
	}
	res := mcpserver.StructuredResult(text, propertiesPayload{Properties: views})
	res.Meta = meta
	return res
}

func invalid(err error) *mcpserver.ToolCallResult {
	res := mcpserver.TextResult("Invalid input: " + err.Error())
	res.IsError = true
	return res
}

// SearchPropertiesTool lists properties, optionally by type.
type SearchPropertiesTool struct {
	mcpserver.BaseTool
	catalog *Catalog
}

// NewSearchPropertiesTool creates the search_properties tool.
func NewSearchPropertiesTool(catalog *Catalog) *SearchPropertiesTool {
	return &SearchPropertiesTool{
		BaseTool: mcpserver.BaseTool{
			ToolName:        "search_properties",
			ToolTitle:       "Search Properties",
			ToolDescription: "Search for real estate properties. Can filter by type (casa or apartamento).",
			ToolSchema: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"filter": map[string]any{
						"type":        "string",
						"enum":        []string{FilterAll, string(TypeCasa), string(TypeApartamento)},
						"description": "Filter by property type",
					},
				},
				"additionalProperties": false,
			},
			ToolAnnotations: readOnly,
			ToolMeta:        descriptorMeta("Searching properties...", "Properties found"),
		},
		catalog: catalog,
	}
}

func (t *SearchPropertiesTool) Execute(_ context.Context, args map[string]any) (*mcpserver.ToolCallResult, error) {
	filter := FilterAll
	if v, ok := args["filter"]; ok && v != nil {
		s, ok := v.(string)
		if !ok {
			return invalid(ErrInvalidFilter), nil
		}
		if s != "" {
			filter = s
		}
	}

	properties, err := t.catalog.ByType(filter)
	if err != nil {
		return invalid(err), nil
	}
	return reply(t.Meta(), properties, typeMessage(filter, len(properties))), nil
}

// FilterByPriceTool lists properties within an inclusive price range.
type FilterByPriceTool struct {
	mcpserver.BaseTool
	catalog *Catalog
}

// NewFilterByPriceTool creates the filter_by_price tool.
func NewFilterByPriceTool(catalog *Catalog) *FilterByPriceTool {
	return &FilterByPriceTool{
		BaseTool: mcpserver.BaseTool{
			ToolName:        "filter_by_price",
			ToolTitle:       "Filter by Price",
			ToolDescription: "Filter properties by price range in BRL. Both bounds are optional and inclusive.",
			ToolSchema: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"minPrice": map[string]any{
						"type":             "number",
						"exclusiveMinimum": 0,
						"description":      "Minimum price in BRL",
					},
					"maxPrice": map[string]any{
						"type":             "number",
						"exclusiveMinimum": 0,
						"description":      "Maximum price in BRL",
					},
				},
				"additionalProperties": false,
			},
			ToolAnnotations: readOnly,
			ToolMeta:        descriptorMeta("Filtering by price...", "Filtered properties"),
		},
		catalog: catalog,
	}
}

func (t *FilterByPriceTool) Execute(_ context.Context, args map[string]any) (*mcpserver.ToolCallResult, error) {
	var r PriceRange
	var err error
	if r.Min, err = priceArg(args, "minPrice"); err != nil {
		return invalid(err), nil
	}
	if r.Max, err = priceArg(args, "maxPrice"); err != nil {
		return invalid(err), nil
	}
	if r.Min != nil && r.Max != nil && *r.Min > *r.Max {
		return invalid(fmt.Errorf("minPrice %s exceeds maxPrice %s", FormatPrice(*r.Min), FormatPrice(*r.Max))), nil
	}

	properties := t.catalog.ByPrice(r)
	return reply(t.Meta(), properties, priceMessage(r, len(properties))), nil
}

func priceArg(args map[string]any, key string) (*float64, error) {
	v, ok := args[key]
	if !ok || v == nil {
		return nil, nil
	}
	var f float64
	switch n := v.(type) {
	case float64:
		f = n
	case int:
		f = float64(n)
	case int64:
		f = float64(n)
	default:
		return nil, fmt.Errorf("%s must be a number", key)
	}
	if f <= 0 {
		return nil, fmt.Errorf("%s must be positive", key)
	}
	return &f, nil
}
