// Package realestate serves a fixed catalog of property listings as MCP
// tools rendered into a map widget.
package realestate

import (
	"embed"
	"errors"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed fixtures/properties.yaml
var fixtureFS embed.FS

// PropertyType is the kind of listing.
type PropertyType string

const (
	TypeCasa        PropertyType = "casa"
	TypeApartamento PropertyType = "apartamento"
)

// FilterAll matches every property type.
const FilterAll = "all"

// ErrInvalidFilter is returned for filters outside all, casa and apartamento.
var ErrInvalidFilter = errors.New("filter must be one of all, casa, apartamento")

// Property is one listing.
type Property struct {
	ID          string       `json:"id" yaml:"id"`
	Title       string       `json:"title" yaml:"title"`
	Price       int64        `json:"price" yaml:"price"`
	Type        PropertyType `json:"type" yaml:"type"`
	Address     string       `json:"address" yaml:"address"`
	Bedrooms    int          `json:"bedrooms" yaml:"bedrooms"`
	Bathrooms   int          `json:"bathrooms" yaml:"bathrooms"`
	Area        int          `json:"area" yaml:"area"`
	Lat         float64      `json:"lat" yaml:"lat"`
	Lng         float64      `json:"lng" yaml:"lng"`
	Image       string       `json:"image" yaml:"image"`
	Description string       `json:"description" yaml:"description"`
}

// Catalog is an immutable, ordered set of properties.
type Catalog struct {
	properties []Property
}

// NewCatalog wraps properties in the given order.
func NewCatalog(properties []Property) *Catalog {
	return &Catalog{properties: append([]Property(nil), properties...)}
}

// LoadCatalog parses the embedded listings. Image file names are resolved
// to baseURL + "/images/<name>".
func LoadCatalog(baseURL string) (*Catalog, error) {
	raw, err := fixtureFS.ReadFile("fixtures/properties.yaml")
	if err != nil {
		return nil, fmt.Errorf("read properties: %w", err)
	}
	var file struct {
		Properties []Property `yaml:"properties"`
	}
	if err := yaml.Unmarshal(raw, &file); err != nil {
		return nil, fmt.Errorf("parse properties: %w", err)
	}

	base := strings.TrimRight(baseURL, "/")
	for i := range file.Properties {
		p := &file.Properties[i]
		if p.Type != TypeCasa && p.Type != TypeApartamento {
			return nil, fmt.Errorf("property %s: unknown type %q", p.ID, p.Type)
		}
		if p.Image != "" && !strings.Contains(p.Image, "://") {
			p.Image = base + "/images/" + p.Image
		}
	}
	return &Catalog{properties: file.Properties}, nil
}

// All returns every property.
func (c *Catalog) All() []Property {
	return append([]Property(nil), c.properties...)
}

// ByType returns the properties of the given filter. An empty filter is
// treated as FilterAll.
func (c *Catalog) ByType(filter string) ([]Property, error) {
	switch filter {
	case "", FilterAll:
		return c.All(), nil
	case string(TypeCasa), string(TypeApartamento):
	default:
		return nil, ErrInvalidFilter
	}

	out := make([]Property, 0, len(c.properties))
	for _, p := range c.properties {
		if string(p.Type) == filter {
			out = append(out, p)
		}
	}
	return out, nil
}

// PriceRange bounds a price search. Nil bounds are open; both ends are
// inclusive.
type PriceRange struct {
	Min *float64
	Max *float64
}

// Contains reports whether price lies within r.
func (r PriceRange) Contains(price int64) bool {
	p := float64(price)
	if r.Min != nil && p < *r.Min {
		return false
	}
	if r.Max != nil && p > *r.Max {
		return false
	}
	return true
}

// ByPrice returns the properties priced within r.
func (c *Catalog) ByPrice(r PriceRange) []Property {
	out := make([]Property, 0, len(c.properties))
	for _, p := range c.properties {
		if r.Contains(p.Price) {
			out = append(out, p)
		}
	}
	return out
}
