// Package catalog loads the server's tool manifest: the declarative list of
// tool descriptors (name, description, JSON Schema for arguments) embedded in
// the binary. The manifest is parsed and validated once at startup; each
// tool's input schema is compiled so that argument validation at call time is
// a schema check against a typed value, never best-effort coercion.
package catalog

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"
	"gopkg.in/yaml.v3"
)

// SpecVersion is the manifest apiVersion this build understands.
const SpecVersion = "thinktool/v1"

//go:embed tools.yaml
var manifestYAML []byte

// Manifest is the raw decoded form of the tool manifest.
type Manifest struct {
	APIVersion string     `yaml:"apiVersion"`
	Tools      []ToolSpec `yaml:"tools"`
}

// ToolSpec is one declarative tool descriptor from the manifest.
type ToolSpec struct {
	Name        string                 `yaml:"name"`
	Description string                 `yaml:"description"`
	InputSchema map[string]interface{} `yaml:"inputSchema"`
}

// Tool is a validated, compiled tool descriptor. InputSchema carries the
// wire-facing structural description; Schema is its compiled form used to
// validate call arguments.
type Tool struct {
	Name        string
	Description string
	InputSchema map[string]interface{}
	Schema      *jsonschema.Schema
}

// Catalog holds all compiled tool descriptors, immutable after load.
type Catalog struct {
	tools  []Tool
	byName map[string]int
}

// Load parses the embedded manifest. It is the canonical entry point for
// server startup.
func Load() (*Catalog, error) {
	return Parse(manifestYAML)
}

// Parse decodes a manifest YAML document, validates it, and compiles each
// tool's input schema.
func Parse(data []byte) (*Catalog, error) {
	var m Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("catalog parse: %w", err)
	}
	if err := validate(&m); err != nil {
		return nil, err
	}

	c := &Catalog{byName: make(map[string]int, len(m.Tools))}
	for _, spec := range m.Tools {
		schema, err := compileSchema(spec.Name, spec.InputSchema)
		if err != nil {
			return nil, fmt.Errorf("catalog: tool %q: %w", spec.Name, err)
		}
		c.byName[spec.Name] = len(c.tools)
		c.tools = append(c.tools, Tool{
			Name:        spec.Name,
			Description: spec.Description,
			InputSchema: spec.InputSchema,
			Schema:      schema,
		})
	}
	return c, nil
}

// Tools returns the descriptors in manifest order.
func (c *Catalog) Tools() []Tool {
	out := make([]Tool, len(c.tools))
	copy(out, c.tools)
	return out
}

// Get returns the descriptor registered under name.
func (c *Catalog) Get(name string) (Tool, bool) {
	i, ok := c.byName[name]
	if !ok {
		return Tool{}, false
	}
	return c.tools[i], true
}

// validate checks a decoded manifest for structural correctness. It returns
// the first validation error encountered, or nil if the manifest is valid.
func validate(m *Manifest) error {
	if m.APIVersion != SpecVersion {
		return fmt.Errorf("apiVersion must be %q, got %q", SpecVersion, m.APIVersion)
	}
	if len(m.Tools) == 0 {
		return fmt.Errorf("tools must not be empty")
	}

	seen := make(map[string]struct{}, len(m.Tools))
	for i, tool := range m.Tools {
		if strings.TrimSpace(tool.Name) == "" {
			return fmt.Errorf("tools[%d]: name must not be empty", i)
		}
		if _, dup := seen[tool.Name]; dup {
			return fmt.Errorf("tools[%d]: duplicate name %q", i, tool.Name)
		}
		seen[tool.Name] = struct{}{}
		if len(tool.InputSchema) == 0 {
			return fmt.Errorf("tools[%d] (%q): inputSchema must not be empty", i, tool.Name)
		}
	}
	return nil
}

// compileSchema round-trips the YAML-decoded schema through JSON and compiles
// it. The JSON round trip normalizes the value tree into what the validator
// expects at call time (json.Unmarshal output).
func compileSchema(name string, schema map[string]interface{}) (*jsonschema.Schema, error) {
	raw, err := json.Marshal(schema)
	if err != nil {
		return nil, fmt.Errorf("marshal input schema: %w", err)
	}
	compiler := jsonschema.NewCompiler()
	url := "manifest:///" + name + ".json"
	if err := compiler.AddResource(url, bytes.NewReader(raw)); err != nil {
		return nil, fmt.Errorf("add schema resource: %w", err)
	}
	compiled, err := compiler.Compile(url)
	if err != nil {
		return nil, fmt.Errorf("compile input schema: %w", err)
	}
	return compiled, nil
}
