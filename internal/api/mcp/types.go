// Package mcp implements the Model Context Protocol (MCP) server for
// osintgraph. It exposes the correlation session as JSON-RPC 2.0 tools so
// an assistant can ingest findings and query the entity graph.
package mcp

import (
	"encoding/json"
	"strings"

	"github.com/scrypster/osintgraph/internal/engine"
	"github.com/scrypster/osintgraph/internal/storage"
	"github.com/scrypster/osintgraph/pkg/types"
)

// ProcessFindingsArgs contains arguments for the process_findings tool.
// Either Findings (a JSON list of finding objects) or Document (a JSON,
// JSON Lines or YAML text in Format) must be set.
type ProcessFindingsArgs struct {
	Findings json.RawMessage `json:"findings,omitempty"` // List of findings
	Document string          `json:"document,omitempty"` // Raw findings document
	Format   string          `json:"format,omitempty"`   // Document format: json, jsonl, yaml (default json)
}

// UnmarshalJSON handles clients that send the findings list as a
// JSON-encoded string ("[{...}]") rather than a JSON array. Both forms are
// accepted.
func (a *ProcessFindingsArgs) UnmarshalJSON(data []byte) error {
	type Alias ProcessFindingsArgs
	aux := &struct{ *Alias }{Alias: (*Alias)(a)}
	if err := json.Unmarshal(data, aux); err != nil {
		return err
	}
	var s string
	if len(a.Findings) > 0 && json.Unmarshal(a.Findings, &s) == nil {
		s = strings.TrimSpace(s)
		if s == "" {
			a.Findings = nil
		} else {
			a.Findings = json.RawMessage(s)
		}
	}
	return nil
}

// ProcessFindingsResult summarises the session after an ingestion.
type ProcessFindingsResult struct {
	Processed         int     `json:"processed"`          // Findings in the batch
	Entities          int     `json:"entities"`           // Entities in the session
	Relationships     int     `json:"relationships"`      // Relationships in the session
	Clusters          int     `json:"clusters"`           // Clusters in the session
	ConfidenceAverage float64 `json:"confidence_average"` // Mean relationship confidence
	Summary           string  `json:"summary"`            // Human-readable summary
}

// ListEntitiesArgs contains arguments for the list_entities tool.
type ListEntitiesArgs struct {
	Kind  string `json:"kind,omitempty"`  // Filter by entity kind
	Limit int    `json:"limit,omitempty"` // Max results (default 50)
}

// ListEntitiesResult contains the result of listing entities.
type ListEntitiesResult struct {
	Entities []*types.Entity `json:"entities"`
	Total    int             `json:"total"`    // Matches before the limit
	HasMore  bool            `json:"has_more"` // Whether the limit cut the list
}

// GetEntityArgs contains arguments for the get_entity tool.
type GetEntityArgs struct {
	ID string `json:"id"` // Entity ID (required)
}

// GetEntityResult contains an entity and every relationship touching it.
type GetEntityResult struct {
	Found         bool                  `json:"found"`
	Entity        *types.Entity         `json:"entity,omitempty"`
	Relationships []*types.Relationship `json:"relationships,omitempty"`
}

// ListRelationshipsArgs contains arguments for the list_relationships tool.
type ListRelationshipsArgs struct {
	EntityID      string  `json:"entity_id,omitempty"`
	Kind          string  `json:"kind,omitempty"`
	MinConfidence float64 `json:"min_confidence,omitempty"`
}

// ListRelationshipsResult contains the matching relationships.
type ListRelationshipsResult struct {
	Relationships []*types.Relationship `json:"relationships"`
	Total         int                   `json:"total"`
}

// FindPathArgs contains arguments for the find_path tool.
type FindPathArgs struct {
	From string `json:"from"` // Source entity ID (required)
	To   string `json:"to"`   // Target entity ID (required)
}

// FindPathResult contains the shortest path, if any.
type FindPathResult struct {
	Found bool               `json:"found"`
	Path  *engine.PathResult `json:"path,omitempty"`
}

// CentralEntitiesArgs contains arguments for the central_entities tool.
type CentralEntitiesArgs struct {
	Top int `json:"top,omitempty"` // Number of entities (default 10)
}

// CentralEntitiesResult lists entities by degree centrality.
type CentralEntitiesResult struct {
	Entities []engine.Centrality `json:"entities"`
}

// SnapshotArgs names a snapshot for the snapshot tools.
type SnapshotArgs struct {
	Name string `json:"name,omitempty"` // Snapshot name (default: the server's snapshot)
}

// SaveSnapshotResult contains the stored snapshot's metadata.
type SaveSnapshotResult struct {
	Snapshot storage.SnapshotInfo `json:"snapshot"`
}

// LoadSnapshotResult summarises the restored session.
type LoadSnapshotResult struct {
	Name          string `json:"name"`
	Entities      int    `json:"entities"`
	Relationships int    `json:"relationships"`
	Clusters      int    `json:"clusters"`
}

// ListSnapshotsResult lists stored snapshots.
type ListSnapshotsResult struct {
	Snapshots []storage.SnapshotInfo `json:"snapshots"`
}

// ResetSessionResult acknowledges a reset.
type ResetSessionResult struct {
	Reset bool `json:"reset"`
}

// JSONRPCRequest represents a JSON-RPC 2.0 request.
type JSONRPCRequest struct {
	JSONRPC string      `json:"jsonrpc"` // Must be "2.0"
	Method  string      `json:"method"`  // Method name
	Params  interface{} `json:"params"`  // Method parameters
	ID      interface{} `json:"id"`      // Request ID (string, number, or null)
}

// JSONRPCResponse represents a JSON-RPC 2.0 response.
type JSONRPCResponse struct {
	JSONRPC string        `json:"jsonrpc"`          // Must be "2.0"
	Result  interface{}   `json:"result,omitempty"` // Result (if successful)
	Error   *JSONRPCError `json:"error,omitempty"`  // Error (if failed)
	ID      interface{}   `json:"id"`               // Request ID
}

// JSONRPCError represents a JSON-RPC 2.0 error.
type JSONRPCError struct {
	Code    int         `json:"code"`           // Error code
	Message string      `json:"message"`        // Error message
	Data    interface{} `json:"data,omitempty"` // Additional error data
}

// JSON-RPC error codes
const (
	ErrCodeParseError     = -32700 // Invalid JSON
	ErrCodeInvalidRequest = -32600 // Invalid request object
	ErrCodeMethodNotFound = -32601 // Method not found
	ErrCodeInvalidParams  = -32602 // Invalid method parameters
	ErrCodeInternalError  = -32603 // Internal JSON-RPC error
	ErrCodeServerError    = -32000 // Server error
)

// MCPInitializeParams holds the parameters sent by an MCP client in the
// initialize request.
type MCPInitializeParams struct {
	ProtocolVersion string                 `json:"protocolVersion"`
	Capabilities    map[string]interface{} `json:"capabilities,omitempty"`
	ClientInfo      MCPClientInfo          `json:"clientInfo"`
}

// MCPClientInfo identifies the connecting MCP client.
type MCPClientInfo struct {
	Name    string `json:"name"`
	Version string `json:"version"`
}

// MCPServerInfo identifies this MCP server.
type MCPServerInfo struct {
	Name    string `json:"name"`
	Version string `json:"version"`
}

// MCPServerCapabilities describes what this server supports.
type MCPServerCapabilities struct {
	Tools *MCPToolsCapability `json:"tools,omitempty"`
}

// MCPToolsCapability signals that the server exposes tools.
type MCPToolsCapability struct{}

// MCPInitializeResult is the response to the initialize request.
type MCPInitializeResult struct {
	ProtocolVersion string                `json:"protocolVersion"`
	Capabilities    MCPServerCapabilities `json:"capabilities"`
	ServerInfo      MCPServerInfo         `json:"serverInfo"`
}

// MCPTool describes a single tool exposed via the MCP tools/list endpoint.
type MCPTool struct {
	Name        string                 `json:"name"`
	Description string                 `json:"description"`
	InputSchema map[string]interface{} `json:"inputSchema"`
}

// MCPToolsListResult is the response to the tools/list request.
type MCPToolsListResult struct {
	Tools []MCPTool `json:"tools"`
}

// MCPToolCallParams holds the parameters sent in a tools/call request.
type MCPToolCallParams struct {
	Name      string                 `json:"name"`
	Arguments map[string]interface{} `json:"arguments"`
}

// MCPToolCallContent is a single content block in a tool call response.
type MCPToolCallContent struct {
	Type string `json:"type"` // always "text" for now
	Text string `json:"text"`
}

// MCPToolCallResult is the response to a tools/call request.
type MCPToolCallResult struct {
	Content []MCPToolCallContent `json:"content"`
	IsError bool                 `json:"isError,omitempty"`
}
