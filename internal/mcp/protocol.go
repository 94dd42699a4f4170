// Package mcp implements the tool dispatcher and tool surface of spec
// §4.7: the MCP `initialize`/`tools/list`/`tools/call` method vocabulary,
// the unified dry-run contract, argument whitelist validation, and the
// translation of internal/errs failures into JSON-RPC errors. It drives
// the same sourcegraph/jsonrpc2 connection the internal/lsp supervisor
// uses on its client side, but here devbridge plays the server role:
// one Dispatcher per connected agent session, built from
// jsonrpc2.HandlerWithError exactly the way the teacher's LSP client
// wires up its own incoming-request handler.
package mcp

import (
	"encoding/json"
)

// ProtocolVersion is the MCP wire version this dispatcher speaks.
const ProtocolVersion = "2025-06-18"

// InitializeParams is the subset of MCP's initialize request this core
// consumes.
type InitializeParams struct {
	ProtocolVersion string          `json:"protocolVersion"`
	ClientInfo      ClientInfo      `json:"clientInfo"`
	Capabilities    json.RawMessage `json:"capabilities,omitempty"`
	AuthToken       string          `json:"authToken,omitempty"`
}

// ClientInfo identifies the connecting agent.
type ClientInfo struct {
	Name    string `json:"name"`
	Version string `json:"version"`
}

// InitializeResult answers a successful initialize.
type InitializeResult struct {
	ProtocolVersion string     `json:"protocolVersion"`
	ServerInfo      ClientInfo `json:"serverInfo"`
	Capabilities    ServerCaps `json:"capabilities"`
}

// ServerCaps advertises the MCP-level capabilities of this server; kept
// minimal since the tool surface itself is discovered via tools/list.
type ServerCaps struct {
	Tools ToolsCaps `json:"tools"`
}

// ToolsCaps signals that the tool list can be large enough that agents
// should not assume it is small or static across restarts.
type ToolsCaps struct {
	ListChanged bool `json:"listChanged"`
}

// ToolDescriptor is one entry of tools/list's response.
type ToolDescriptor struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	InputSchema json.RawMessage `json:"inputSchema"`
}

// ToolsListResult is tools/list's response shape.
type ToolsListResult struct {
	Tools []ToolDescriptor `json:"tools"`
}

// ToolCallParams is tools/call's request shape (spec §6 "Each tools/call
// takes {name, arguments}").
type ToolCallParams struct {
	Name      string          `json:"name"`
	Arguments json.RawMessage `json:"arguments"`
}

// ContentBlock is one element of a tool result's content array. devbridge
// only ever emits the "text" variant, embedding the structured JSON
// result as its text so both a human operator and a parsing agent can
// consume the same payload.
type ContentBlock struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

// ToolCallResult is tools/call's response shape (spec §6).
type ToolCallResult struct {
	Content []ContentBlock `json:"content"`
	IsError bool           `json:"isError,omitempty"`
}

// textResult wraps any JSON-marshalable payload into the single-block
// text rendering every tool handler returns, per spec §4.7 "Response
// shaping": a status field plus tool-specific payload, serialized once
// into the wire text.
func textResult(payload any) (*ToolCallResult, error) {
	body, err := json.MarshalIndent(payload, "", "  ")
	if err != nil {
		return nil, err
	}
	return &ToolCallResult{Content: []ContentBlock{{Type: "text", Text: string(body)}}}, nil
}

// CommonOptions is embedded by every refactoring tool's argument struct
// (spec §6 "All refactoring tools accept options.dryRun ..."). DryRun
// defaults to true when the field is entirely absent from the incoming
// JSON, which callers implement by decoding into a *CommonOptions whose
// zero value they first set to the spec defaults before unmarshaling.
type CommonOptions struct {
	DryRun            bool   `json:"dryRun"`
	ValidateChecksums bool   `json:"validateChecksums"`
	CreateBackup      bool   `json:"createBackup"`
	Scope             string `json:"scope,omitempty"`
}

// DefaultCommonOptions returns the spec's documented defaults, to be
// overwritten field-by-field by whatever the caller actually sent.
func DefaultCommonOptions() CommonOptions {
	return CommonOptions{DryRun: true, ValidateChecksums: true}
}
