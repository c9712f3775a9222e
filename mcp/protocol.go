package mcp

import (
	"encoding/json"
	"fmt"
	"strconv"
)

// Version is the MCP protocol version spoken by this client.
const Version = "2024-11-05"

// JSON-RPC error codes this client reacts to.
const codeMethodNotFound = -32601

// Message is a JSON-RPC 2.0 message (request, response or notification).
type Message struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      any             `json:"id,omitempty"`
	Method  string          `json:"method,omitempty"`
	Params  map[string]any  `json:"params,omitempty"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *RPCError       `json:"error,omitempty"`
}

// RPCError is a JSON-RPC 2.0 error object.
type RPCError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

func (e *RPCError) Error() string {
	return fmt.Sprintf("rpc error %d: %s", e.Code, e.Message)
}

func newRequest(id any, method string, params map[string]any) *Message {
	return &Message{JSONRPC: "2.0", ID: id, Method: method, Params: params}
}

func newNotification(method string, params map[string]any) *Message {
	return &Message{JSONRPC: "2.0", Method: method, Params: params}
}

// idKey normalizes a JSON-RPC id for map lookups: request ids are written
// as int64 while decoded response ids arrive as float64.
func idKey(id any) string {
	switch v := id.(type) {
	case int64:
		return strconv.FormatInt(v, 10)
	case int:
		return strconv.Itoa(v)
	case float64:
		return strconv.FormatInt(int64(v), 10)
	case string:
		return v
	default:
		return fmt.Sprint(v)
	}
}

// ToolDefinition is a tool descriptor as advertised by an MCP server.
// Synthesized resource__ and prompt__ tools use the same shape.
type ToolDefinition struct {
	Name        string         `json:"name"`
	Description string         `json:"description,omitempty"`
	InputSchema map[string]any `json:"inputSchema,omitempty"`
}

// Content is one item of a tools/call result. It stays a raw map because
// servers attach arbitrary per-type fields and normalization renders
// unknown items verbatim.
type Content map[string]any

// Type returns the item's "type" tag, or "" when absent.
func (c Content) Type() string {
	t, _ := c["type"].(string)
	return t
}

// Text returns the item's "text" payload, or "" when absent.
func (c Content) Text() string {
	t, _ := c["text"].(string)
	return t
}

// Resource returns the item's nested "resource" payload, or nil.
func (c Content) Resource() map[string]any {
	r, _ := c["resource"].(map[string]any)
	return r
}

// Typed result payloads.
type toolsListResult struct {
	Tools []ToolDefinition `json:"tools"`
}

type toolsCallResult struct {
	Content []Content `json:"content"`
}

type resourcesListResult struct {
	Resources []map[string]any `json:"resources"`
}

type resourceTemplatesResult struct {
	ResourceTemplates []map[string]any `json:"resourceTemplates"`
}

type resourcesReadResult struct {
	Contents []map[string]any `json:"contents"`
}

type promptsListResult struct {
	Prompts []map[string]any `json:"prompts"`
}

type promptMessage struct {
	Role    string         `json:"role"`
	Content map[string]any `json:"content"`
}

type promptsGetResult struct {
	Messages []promptMessage `json:"messages"`
}
