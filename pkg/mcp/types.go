// Package mcp provides the Model Context Protocol gateway over HTTP.
//
// The gateway is an echo middleware that owns a path prefix. Requests under
// the prefix are authenticated with a bearer presence check, parsed as
// JSON-RPC 2.0, dispatched into the task operation catalogue, and answered
// with exactly one captured reply. Everything outside the prefix passes
// through to the surrounding application.
//
// Example usage:
//
//	gw := mcp.NewGateway(mcp.NewDispatcher(catalogue, logger), resolver, cfg, logger)
//	e.Use(gw.Middleware())
package mcp

import (
	"encoding/json"
	"errors"
)

// JSONRPCVersion is the only protocol version accepted on the wire.
const JSONRPCVersion = "2.0"

// Request represents a JSON-RPC 2.0 request or notification.
type Request struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id,omitempty"` // absent for notifications
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
}

// IsNotification reports whether the request expects no reply.
func (r Request) IsNotification() bool {
	return len(r.ID) == 0
}

// Response represents a JSON-RPC 2.0 response. Exactly one of Result and
// Error is set.
type Response struct {
	JSONRPC string          `json:"jsonrpc"`
	Result  any             `json:"result,omitempty"`
	Error   *ErrorDetail    `json:"error,omitempty"`
	ID      json.RawMessage `json:"id"`
}

// ErrorDetail is the error member of a JSON-RPC response.
type ErrorDetail struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

// JSON-RPC 2.0 standard error codes.
const (
	ParseError     = -32700 // Invalid JSON
	InvalidRequest = -32600 // Invalid Request object
	MethodNotFound = -32601 // Unknown method or endpoint
	InvalidParams  = -32602 // Invalid method params
	InternalError  = -32603 // Internal server error
)

// AuthRequired is returned when the bearer gate rejects a request.
const AuthRequired = -32001

var nullID = json.RawMessage("null")

// Success builds a result response for id.
func Success(id json.RawMessage, result any) Response {
	return Response{JSONRPC: JSONRPCVersion, ID: normalizeID(id), Result: result}
}

// Failure builds an error response for id.
func Failure(id json.RawMessage, code int, message string) Response {
	return Response{
		JSONRPC: JSONRPCVersion,
		ID:      normalizeID(id),
		Error:   &ErrorDetail{Code: code, Message: message},
	}
}

func normalizeID(id json.RawMessage) json.RawMessage {
	if len(id) == 0 {
		return nullID
	}
	return id
}

// ErrReplySent is returned by a Sender that has already delivered its one reply.
var ErrReplySent = errors.New("reply already sent")

// ClientInfo identifies the MCP client.
type ClientInfo struct {
	Name    string `json:"name"`
	Version string `json:"version"`
}

// InitializeParams contains parameters for the initialize method.
type InitializeParams struct {
	ProtocolVersion string         `json:"protocolVersion"`
	Capabilities    map[string]any `json:"capabilities,omitempty"`
	ClientInfo      ClientInfo     `json:"clientInfo"`
}

// InitializeResult contains the result of the initialize method.
type InitializeResult struct {
	ProtocolVersion string             `json:"protocolVersion"`
	Capabilities    ServerCapabilities `json:"capabilities"`
	ServerInfo      ServerInfo         `json:"serverInfo"`
}

// ServerCapabilities describes what the server supports.
type ServerCapabilities struct {
	Tools map[string]any `json:"tools"`
}

// ServerInfo contains information about the MCP server.
type ServerInfo struct {
	Name    string `json:"name"`
	Version string `json:"version"`
}

// Tool is one entry of a tools/list result.
type Tool struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	InputSchema map[string]any `json:"inputSchema"`
}

// ToolsListResult is the result of tools/list.
type ToolsListResult struct {
	Tools []Tool `json:"tools"`
}

// ToolsCallParams contains parameters for the tools/call method.
type ToolsCallParams struct {
	Name      string          `json:"name"`
	Arguments json.RawMessage `json:"arguments,omitempty"`
}

// Content is a single content block of a tool result.
type Content struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

// CallToolResult is the result of tools/call.
type CallToolResult struct {
	Content           []Content      `json:"content"`
	IsError           bool           `json:"isError"`
	StructuredContent map[string]any `json:"structuredContent,omitempty"`
}
