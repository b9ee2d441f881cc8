package mcp_test

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/modelkit/mcp-think-tool/internal/thinktool/mcp"
)

func TestDecodeRequest_Valid(t *testing.T) {
	req, err := mcp.DecodeRequest([]byte(`{"jsonrpc":"2.0","id":1,"method":"tools/call","params":{"name":"think"}}`))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if req.Method != "tools/call" {
		t.Errorf("unexpected method: %q", req.Method)
	}
	if req.IsNotification() {
		t.Error("request with id must not be a notification")
	}
	if string(req.ID) != "1" {
		t.Errorf("unexpected id: %s", req.ID)
	}
}

func TestDecodeRequest_Notification(t *testing.T) {
	req, err := mcp.DecodeRequest([]byte(`{"jsonrpc":"2.0","method":"notifications/initialized"}`))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !req.IsNotification() {
		t.Error("request without id must be a notification")
	}
}

func TestDecodeRequest_InvalidJSON(t *testing.T) {
	req, err := mcp.DecodeRequest([]byte(`{"jsonrpc":`))
	var decodeErr *mcp.DecodeError
	if !errors.As(err, &decodeErr) {
		t.Fatalf("expected DecodeError, got %v", err)
	}
	if req != nil {
		t.Error("expected nil request for unparseable frame")
	}
}

func TestDecodeRequest_MissingMethod(t *testing.T) {
	req, err := mcp.DecodeRequest([]byte(`{"jsonrpc":"2.0","id":7}`))
	var decodeErr *mcp.DecodeError
	if !errors.As(err, &decodeErr) {
		t.Fatalf("expected DecodeError, got %v", err)
	}
	if req == nil || string(req.ID) != "7" {
		t.Error("structural errors must keep the partially decoded request for id correlation")
	}
}

func TestDecodeRequest_WrongVersion(t *testing.T) {
	_, err := mcp.DecodeRequest([]byte(`{"jsonrpc":"1.0","id":1,"method":"ping"}`))
	if err == nil {
		t.Fatal("expected error for jsonrpc 1.0")
	}
}

func TestEncodeResponse_PreservesStringID(t *testing.T) {
	resp := mcp.NewResult(json.RawMessage(`"abc-1"`), map[string]string{"ok": "yes"})
	data, err := mcp.EncodeResponse(resp)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(string(data), `"id":"abc-1"`) {
		t.Errorf("string id not preserved: %s", data)
	}
}

func TestNewError_NilIDEncodesNull(t *testing.T) {
	resp := mcp.NewError(nil, mcp.CodeParseError, "parse error", nil)
	data, err := mcp.EncodeResponse(resp)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(string(data), `"id":null`) {
		t.Errorf("expected null id, got: %s", data)
	}
	if !strings.Contains(string(data), `"code":-32700`) {
		t.Errorf("expected parse error code, got: %s", data)
	}
}

func TestCanonicalID(t *testing.T) {
	if got := mcp.CanonicalID(json.RawMessage(" 42 ")); got != "42" {
		t.Errorf("expected 42, got %q", got)
	}
	if got := mcp.CanonicalID(json.RawMessage(`"a"`)); got != `"a"` {
		t.Errorf("expected %q, got %q", `"a"`, got)
	}
}
