// Package templates maps event names to provider templates and checks the
// variables supplied for them.
package templates

import (
	_ "embed"
	"fmt"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed default_catalog.yaml
var defaultCatalog []byte

// Template is the immutable definition of one event email.
type Template struct {
	EventName    string            `json:"event_name"`
	TemplateName string            `json:"template_name"`
	Subject      string            `json:"subject"`
	Variables    map[string]string `json:"variables"`
	Tags         []string          `json:"tags"`
	Metadata     map[string]string `json:"metadata"`
}

type catalogFile struct {
	Events map[string]eventDef `yaml:"events"`
}

type eventDef struct {
	Template  string            `yaml:"template"`
	Subject   string            `yaml:"subject"`
	Tags      []string          `yaml:"tags"`
	Metadata  map[string]string `yaml:"metadata"`
	Variables map[string]string `yaml:"variables"`
	Body      string            `yaml:"body"`
}

// Catalog holds every configured event. It is read-only after loading.
type Catalog struct {
	templates map[string]Template
	bodies    map[string]string
}

// LoadCatalog reads the catalog at path, or the embedded default when path is empty.
func LoadCatalog(path string) (*Catalog, error) {
	if strings.TrimSpace(path) == "" {
		return ParseCatalog(defaultCatalog)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read template catalog: %w", err)
	}
	return ParseCatalog(data)
}

// ParseCatalog decodes a YAML catalog document.
func ParseCatalog(data []byte) (*Catalog, error) {
	var file catalogFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse template catalog: %w", err)
	}

	c := &Catalog{
		templates: make(map[string]Template, len(file.Events)),
		bodies:    make(map[string]string),
	}
	for event, def := range file.Events {
		if def.Template == "" {
			return nil, fmt.Errorf("template catalog: event %q has no template", event)
		}
		c.templates[event] = Template{
			EventName:    event,
			TemplateName: def.Template,
			Subject:      def.Subject,
			Variables:    def.Variables,
			Tags:         def.Tags,
			Metadata:     def.Metadata,
		}
		if def.Body != "" {
			c.bodies[def.Template] = def.Body
		}
	}
	return c, nil
}

// Lookup returns the definition configured for event.
func (c *Catalog) Lookup(event string) (Template, bool) {
	if c == nil {
		return Template{}, false
	}
	t, ok := c.templates[event]
	return t, ok
}

// Body returns the local HTML body for a template, used when rendering
// without the hosted provider.
func (c *Catalog) Body(templateName string) (string, bool) {
	if c == nil {
		return "", false
	}
	body, ok := c.bodies[templateName]
	return body, ok
}

// Events lists configured event names in sorted order.
func (c *Catalog) Events() []string {
	if c == nil {
		return nil
	}
	out := make([]string, 0, len(c.templates))
	for event := range c.templates {
		out = append(out, event)
	}
	sort.Strings(out)
	return out
}
