package catalog_test

import (
	"strings"
	"testing"

	"github.com/modelkit/mcp-think-tool/internal/thinktool/catalog"
)

func TestLoad_EmbeddedManifest(t *testing.T) {
	c, err := catalog.Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	think, ok := c.Get("think")
	if !ok {
		t.Fatal("manifest must declare the think tool")
	}
	if think.Description == "" {
		t.Error("think tool has no description")
	}
	if think.Schema == nil {
		t.Fatal("think tool schema not compiled")
	}

	required, _ := think.InputSchema["required"].([]interface{})
	if len(required) != 1 || required[0] != "thought" {
		t.Errorf("expected required [thought], got %v", required)
	}
}

func TestLoad_SchemaValidation(t *testing.T) {
	c, err := catalog.Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	think, _ := c.Get("think")

	valid := map[string]interface{}{
		"thought":    "check the inputs first",
		"pattern":    "analytical",
		"confidence": 0.8,
	}
	if err := think.Schema.Validate(valid); err != nil {
		t.Errorf("valid args rejected: %v", err)
	}

	missing := map[string]interface{}{"pattern": "analytical"}
	if err := think.Schema.Validate(missing); err == nil {
		t.Error("args without thought must be rejected")
	}

	wrongType := map[string]interface{}{"thought": float64(42)}
	if err := think.Schema.Validate(wrongType); err == nil {
		t.Error("non-string thought must be rejected")
	}

	outOfRange := map[string]interface{}{"thought": "x", "confidence": float64(2)}
	if err := think.Schema.Validate(outOfRange); err == nil {
		t.Error("confidence above 1 must be rejected")
	}
}

func TestParse_RejectsWrongAPIVersion(t *testing.T) {
	_, err := catalog.Parse([]byte(`
apiVersion: thinktool/v999
tools:
  - name: think
    inputSchema:
      type: object
`))
	if err == nil || !strings.Contains(err.Error(), "apiVersion") {
		t.Errorf("expected apiVersion error, got %v", err)
	}
}

func TestParse_RejectsDuplicateNames(t *testing.T) {
	_, err := catalog.Parse([]byte(`
apiVersion: thinktool/v1
tools:
  - name: think
    inputSchema:
      type: object
  - name: think
    inputSchema:
      type: object
`))
	if err == nil || !strings.Contains(err.Error(), "duplicate") {
		t.Errorf("expected duplicate name error, got %v", err)
	}
}

func TestParse_RejectsEmptySchema(t *testing.T) {
	_, err := catalog.Parse([]byte(`
apiVersion: thinktool/v1
tools:
  - name: think
`))
	if err == nil || !strings.Contains(err.Error(), "inputSchema") {
		t.Errorf("expected inputSchema error, got %v", err)
	}
}
