package mcpserver

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// ErrResourceNotFound is returned when no resource or template matches a URI.
var ErrResourceNotFound = errors.New("resource not found")

// ResourceRequest is passed to a ResourceReader. Vars holds the values bound
// to the template placeholders, e.g. {"id": "42"} for "doctor://{id}/slots".
type ResourceRequest struct {
	URI  string
	Vars map[string]string
}

// ResourceReader produces the contents of a resource.
type ResourceReader func(ctx context.Context, req ResourceRequest) ([]ResourceContents, error)

type resourceEntry struct {
	resource Resource
	read     ResourceReader
}

type templateEntry struct {
	template ResourceTemplate
	pattern  *regexp.Regexp
	names    []string
	read     ResourceReader
}

var placeholder = regexp.MustCompile(`\{([A-Za-z0-9_]+)\}`)

// compileTemplate turns "doctor://{id}/slots" into ^doctor://([^/]+)/slots$.
func compileTemplate(uriTemplate string) (*regexp.Regexp, []string) {
	var (
		b     strings.Builder
		names []string
		last  int
	)
	b.WriteString("^")
	for _, loc := range placeholder.FindAllStringSubmatchIndex(uriTemplate, -1) {
		b.WriteString(regexp.QuoteMeta(uriTemplate[last:loc[0]]))
		b.WriteString("([^/]+)")
		names = append(names, uriTemplate[loc[2]:loc[3]])
		last = loc[1]
	}
	b.WriteString(regexp.QuoteMeta(uriTemplate[last:]))
	b.WriteString("$")
	return regexp.MustCompile(b.String()), names
}

func (t *templateEntry) match(uri string) (map[string]string, bool) {
	m := t.pattern.FindStringSubmatch(uri)
	if m == nil {
		return nil, false
	}
	vars := make(map[string]string, len(t.names))
	for i, name := range t.names {
		vars[name] = m[i+1]
	}
	return vars, true
}

// RegisterResource adds a resource with a fixed URI.
func (s *Server) RegisterResource(r Resource, read ResourceReader) {
	s.resources = append(s.resources, resourceEntry{resource: r, read: read})
	s.logger.Info("registered resource", "uri", r.URI)
}

// RegisterResourceTemplate adds a parameterised resource. read may be nil
// for templates that only advertise a fixed resource.
func (s *Server) RegisterResourceTemplate(t ResourceTemplate, read ResourceReader) {
	pattern, names := compileTemplate(t.URITemplate)
	s.templates = append(s.templates, templateEntry{template: t, pattern: pattern, names: names, read: read})
	s.logger.Info("registered resource template", "uri_template", t.URITemplate)
}

// ReadResource resolves uri against fixed resources first, then templates.
func (s *Server) ReadResource(ctx context.Context, uri string) (*ReadResourceResult, error) {
	for _, e := range s.resources {
		if e.resource.URI == uri {
			contents, err := e.read(ctx, ResourceRequest{URI: uri})
			if err != nil {
				return nil, err
			}
			return &ReadResourceResult{Contents: contents}, nil
		}
	}
	for i := range s.templates {
		t := &s.templates[i]
		if t.read == nil {
			continue
		}
		if vars, ok := t.match(uri); ok {
			contents, err := t.read(ctx, ResourceRequest{URI: uri, Vars: vars})
			if err != nil {
				return nil, err
			}
			return &ReadResourceResult{Contents: contents}, nil
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrResourceNotFound, uri)
}

func (s *Server) handleResourcesList() *ResourcesListResult {
	out := make([]Resource, 0, len(s.resources))
	for _, e := range s.resources {
		out = append(out, e.resource)
	}
	return &ResourcesListResult{Resources: out}
}

func (s *Server) handleResourceTemplatesList() *ResourceTemplatesListResult {
	out := make([]ResourceTemplate, 0, len(s.templates))
	for _, t := range s.templates {
		out = append(out, t.template)
	}
	return &ResourceTemplatesListResult{ResourceTemplates: out}
}
