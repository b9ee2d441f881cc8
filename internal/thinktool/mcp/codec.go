package mcp

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// DecodeError reports malformed wire data: invalid JSON, a wrong jsonrpc
// version tag, or a request without a method. It is a per-line condition; the
// transport recovers by resynchronizing on the next newline frame.
type DecodeError struct {
	Reason string
	Err    error
}

func (e *DecodeError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("decode: %s: %v", e.Reason, e.Err)
	}
	return "decode: " + e.Reason
}

func (e *DecodeError) Unwrap() error { return e.Err }

// DecodeRequest parses one newline frame into a Request. The frame must be a
// single JSON object tagged jsonrpc 2.0 with a non-empty method. For frames
// that parse as JSON but fail the structural checks, the partially decoded
// request is returned alongside the error so the caller can still correlate
// the error response by id.
func DecodeRequest(line []byte) (*Request, error) {
	var req Request
	if err := json.Unmarshal(line, &req); err != nil {
		return nil, &DecodeError{Reason: "invalid JSON", Err: err}
	}
	if req.JSONRPC != Version {
		return &req, &DecodeError{Reason: fmt.Sprintf("unsupported jsonrpc version %q", req.JSONRPC)}
	}
	if req.Method == "" {
		return &req, &DecodeError{Reason: "request has no method"}
	}
	return &req, nil
}

// EncodeResponse serializes a Response to a single frame without the trailing
// newline. It never fails for well-formed internal values; a marshal error
// here indicates a programming bug in a result payload.
func EncodeResponse(resp *Response) ([]byte, error) {
	data, err := json.Marshal(resp)
	if err != nil {
		return nil, fmt.Errorf("encode response: %w", err)
	}
	return data, nil
}

// NewResult builds a success response echoing the request identifier.
func NewResult(id json.RawMessage, result interface{}) *Response {
	return &Response{JSONRPC: Version, ID: normalizeID(id), Result: result}
}

// NewError builds an error response echoing the request identifier. Pass a nil
// id for errors that cannot be correlated to a request (e.g. parse errors).
func NewError(id json.RawMessage, code int, message string, data interface{}) *Response {
	return &Response{
		JSONRPC: Version,
		ID:      normalizeID(id),
		Error:   &ResponseError{Code: code, Message: message, Data: data},
	}
}

// CanonicalID compacts a raw identifier so that equivalent encodings compare
// equal as map keys (e.g. ` 42 ` and `42`).
func CanonicalID(id json.RawMessage) string {
	var buf bytes.Buffer
	if err := json.Compact(&buf, id); err != nil {
		return string(bytes.TrimSpace(id))
	}
	return buf.String()
}

// normalizeID maps an absent identifier to the JSON null literal, which the
// response envelope requires for uncorrelated errors.
func normalizeID(id json.RawMessage) json.RawMessage {
	if len(id) == 0 {
		return json.RawMessage("null")
	}
	return id
}
