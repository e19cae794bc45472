package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strings"

	"github.com/google/uuid"

	"github.com/scrypster/osintgraph/internal/engine"
	"github.com/scrypster/osintgraph/internal/importer"
	"github.com/scrypster/osintgraph/internal/services"
	"github.com/scrypster/osintgraph/internal/storage"
	"github.com/scrypster/osintgraph/pkg/types"
)

const (
	protocolVersion     = "2024-11-05"
	serverVersion       = "1.0.0"
	defaultEntityLimit  = 50
	maxEntityLimit      = 500
	defaultCentralLimit = 10
)

// toolHandler runs one tool with its raw JSON arguments.
type toolHandler func(s *Server, ctx context.Context, params interface{}) (interface{}, error)

// tools maps tool names to handlers. Every tool is also callable as a
// native JSON-RPC method of the same name.
var tools = map[string]toolHandler{
	"process_findings":   (*Server).handleProcessFindings,
	"get_result":         (*Server).handleGetResult,
	"list_entities":      (*Server).handleListEntities,
	"get_entity":         (*Server).handleGetEntity,
	"list_relationships": (*Server).handleListRelationships,
	"find_path":          (*Server).handleFindPath,
	"central_entities":   (*Server).handleCentralEntities,
	"graph_stats":        (*Server).handleGraphStats,
	"save_snapshot":      (*Server).handleSaveSnapshot,
	"load_snapshot":      (*Server).handleLoadSnapshot,
	"list_snapshots":     (*Server).handleListSnapshots,
	"reset_session":      (*Server).handleResetSession,
}

// Server implements the Model Context Protocol (MCP) for osintgraph.
type Server struct {
	session         *services.SessionService
	defaultSnapshot string // snapshot used when a snapshot tool omits name
	sessionID       string // unique ID generated once per MCP server lifetime
}

// ServerOption is a functional option for configuring a Server.
type ServerOption func(*Server)

// WithDefaultSnapshot sets the snapshot used by save_snapshot and
// load_snapshot when no name is given.
func WithDefaultSnapshot(name string) ServerOption {
	return func(s *Server) {
		s.defaultSnapshot = name
	}
}

// NewServer creates a new MCP server over session.
func NewServer(session *services.SessionService, opts ...ServerOption) *Server {
	s := &Server{
		session:   session,
		sessionID: uuid.New().String(),
	}
	for _, opt := range opts {
		opt(s)
	}
	log.Printf("mcp: session ID: %s", s.sessionID)
	return s
}

// SessionID returns the ID generated for this server's lifetime.
func (s *Server) SessionID() string {
	return s.sessionID
}

// HandleRequest processes a JSON-RPC 2.0 request and returns a response.
// This is the main entry point for MCP protocol handling.
func (s *Server) HandleRequest(ctx context.Context, requestJSON []byte) ([]byte, error) {
	var req JSONRPCRequest
	if err := json.Unmarshal(requestJSON, &req); err != nil {
		return s.errorResponse(nil, ErrCodeParseError, "Parse error", err.Error())
	}

	// Validate JSON-RPC version
	if req.JSONRPC != "2.0" {
		return s.errorResponse(req.ID, ErrCodeInvalidRequest, "Invalid JSON-RPC version", nil)
	}

	var result interface{}
	var err error

	switch req.Method {
	// Standard MCP protocol methods
	case "initialize":
		result = s.initializeResult()
	case "initialized", "notifications/initialized":
		// Notification; no response body required.
		result = map[string]interface{}{}
	case "tools/list":
		result = MCPToolsListResult{Tools: buildToolsList()}
	case "tools/call":
		result, err = s.handleToolsCall(ctx, req.Params)
	default:
		handler, ok := tools[req.Method]
		if !ok {
			return s.errorResponse(req.ID, ErrCodeMethodNotFound, fmt.Sprintf("Method not found: %s", req.Method), nil)
		}
		result, err = handler(s, ctx, req.Params)
	}

	if err != nil {
		var invalid *invalidParamsError
		if errors.As(err, &invalid) {
			return s.errorResponse(req.ID, ErrCodeInvalidParams, invalid.Error(), nil)
		}
		return s.errorResponse(req.ID, ErrCodeServerError, err.Error(), nil)
	}

	return s.successResponse(req.ID, result)
}

func (s *Server) initializeResult() MCPInitializeResult {
	return MCPInitializeResult{
		ProtocolVersion: protocolVersion,
		Capabilities: MCPServerCapabilities{
			Tools: &MCPToolsCapability{},
		},
		ServerInfo: MCPServerInfo{
			Name:    "osintgraph",
			Version: serverVersion,
		},
	}
}

// handleToolsCall dispatches a tools/call request to the tool handler and
// wraps the result in the MCP content envelope. Tool failures are reported
// in the envelope, not as JSON-RPC errors.
func (s *Server) handleToolsCall(ctx context.Context, params interface{}) (interface{}, error) {
	var p MCPToolCallParams
	if err := unmarshalParams(params, &p); err != nil {
		return nil, err
	}

	handler, ok := tools[p.Name]
	if !ok {
		return &MCPToolCallResult{
			Content: []MCPToolCallContent{{Type: "text", Text: fmt.Sprintf("unknown tool: %s", p.Name)}},
			IsError: true,
		}, nil
	}

	var args interface{} = p.Arguments
	if p.Arguments == nil {
		args = map[string]interface{}{}
	}
	result, err := handler(s, ctx, args)
	if err != nil {
		return &MCPToolCallResult{
			Content: []MCPToolCallContent{{Type: "text", Text: err.Error()}},
			IsError: true,
		}, nil
	}

	text, err := json.Marshal(result)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal result: %w", err)
	}
	return &MCPToolCallResult{
		Content: []MCPToolCallContent{{Type: "text", Text: string(text)}},
	}, nil
}

// invalidParamsError marks argument validation failures.
type invalidParamsError struct{ msg string }

func (e *invalidParamsError) Error() string { return e.msg }

func invalidParams(format string, args ...interface{}) error {
	return &invalidParamsError{msg: fmt.Sprintf(format, args...)}
}

func (s *Server) handleProcessFindings(ctx context.Context, params interface{}) (interface{}, error) {
	var args ProcessFindingsArgs
	if err := unmarshalParams(params, &args); err != nil {
		return nil, err
	}

	var (
		findings []types.Finding
		err      error
	)
	switch {
	case len(args.Findings) > 0 && args.Document != "":
		return nil, invalidParams("findings and document are mutually exclusive")
	case len(args.Findings) > 0:
		findings, err = importer.ParseFindings(args.Findings, importer.FormatJSON)
	case args.Document != "":
		format := importer.FormatJSON
		if args.Format != "" {
			if format, err = importer.ParseFormat(args.Format); err != nil {
				return nil, invalidParams("%v", err)
			}
		}
		findings, err = importer.ParseFindings([]byte(args.Document), format)
	default:
		return nil, invalidParams("findings or document is required")
	}
	if err != nil {
		return nil, invalidParams("invalid findings: %v", err)
	}

	result := s.session.ProcessFindings(findings)
	return &ProcessFindingsResult{
		Processed:         len(findings),
		Entities:          len(result.Entities),
		Relationships:     len(result.Relationships),
		Clusters:          len(result.Clusters),
		ConfidenceAverage: result.ConfidenceAverage,
		Summary:           result.Summary,
	}, nil
}

func (s *Server) handleGetResult(ctx context.Context, params interface{}) (interface{}, error) {
	return s.session.Result(), nil
}

func (s *Server) handleListEntities(ctx context.Context, params interface{}) (interface{}, error) {
	var args ListEntitiesArgs
	if err := unmarshalParams(params, &args); err != nil {
		return nil, err
	}
	if args.Limit < 0 {
		return nil, invalidParams("limit must be non-negative")
	}
	limit := args.Limit
	if limit == 0 {
		limit = defaultEntityLimit
	}
	if limit > maxEntityLimit {
		limit = maxEntityLimit
	}

	kind := types.EntityKind(strings.ToLower(strings.TrimSpace(args.Kind)))
	matched := make([]*types.Entity, 0)
	for _, e := range s.session.Entities() {
		if kind == "" || e.Kind == kind {
			matched = append(matched, e)
		}
	}

	result := &ListEntitiesResult{Entities: matched, Total: len(matched)}
	if len(matched) > limit {
		result.Entities = matched[:limit]
		result.HasMore = true
	}
	return result, nil
}

func (s *Server) handleGetEntity(ctx context.Context, params interface{}) (interface{}, error) {
	var args GetEntityArgs
	if err := unmarshalParams(params, &args); err != nil {
		return nil, err
	}
	if args.ID == "" {
		return nil, invalidParams("id is required")
	}

	entity, ok := s.session.Entity(args.ID)
	if !ok {
		return &GetEntityResult{Found: false}, nil
	}
	return &GetEntityResult{
		Found:         true,
		Entity:        entity,
		Relationships: s.session.Relationships(engine.RelationshipFilter{EntityID: args.ID}),
	}, nil
}

func (s *Server) handleListRelationships(ctx context.Context, params interface{}) (interface{}, error) {
	var args ListRelationshipsArgs
	if err := unmarshalParams(params, &args); err != nil {
		return nil, err
	}

	filter := engine.RelationshipFilter{EntityID: args.EntityID, MinConfidence: args.MinConfidence}
	if args.MinConfidence < 0 || args.MinConfidence > 100 {
		return nil, invalidParams("min_confidence must be in [0, 100]")
	}
	if args.Kind != "" {
		kind, err := types.ParseRelationshipKind(args.Kind)
		if err != nil {
			return nil, invalidParams("%v", err)
		}
		filter.Kind = kind
	}

	rels := s.session.Relationships(filter)
	if rels == nil {
		rels = []*types.Relationship{}
	}
	return &ListRelationshipsResult{Relationships: rels, Total: len(rels)}, nil
}

func (s *Server) handleFindPath(ctx context.Context, params interface{}) (interface{}, error) {
	var args FindPathArgs
	if err := unmarshalParams(params, &args); err != nil {
		return nil, err
	}
	if args.From == "" || args.To == "" {
		return nil, invalidParams("from and to are required")
	}

	path, ok := s.session.ShortestPath(args.From, args.To)
	if !ok {
		return &FindPathResult{Found: false}, nil
	}
	return &FindPathResult{Found: true, Path: &path}, nil
}

func (s *Server) handleCentralEntities(ctx context.Context, params interface{}) (interface{}, error) {
	var args CentralEntitiesArgs
	if err := unmarshalParams(params, &args); err != nil {
		return nil, err
	}
	top := args.Top
	if top <= 0 {
		top = defaultCentralLimit
	}
	return &CentralEntitiesResult{Entities: s.session.CentralEntities(top)}, nil
}

func (s *Server) handleGraphStats(ctx context.Context, params interface{}) (interface{}, error) {
	return s.session.GraphStatistics(), nil
}

// snapshotName resolves the snapshot a tool call refers to.
func (s *Server) snapshotName(params interface{}) (string, error) {
	var args SnapshotArgs
	if err := unmarshalParams(params, &args); err != nil {
		return "", err
	}
	name := strings.TrimSpace(args.Name)
	if name == "" {
		name = s.defaultSnapshot
	}
	if name == "" {
		return "", invalidParams("name is required")
	}
	return name, nil
}

func (s *Server) handleSaveSnapshot(ctx context.Context, params interface{}) (interface{}, error) {
	name, err := s.snapshotName(params)
	if err != nil {
		return nil, err
	}
	info, err := s.session.SaveSnapshot(ctx, name)
	if err != nil {
		return nil, err
	}
	return &SaveSnapshotResult{Snapshot: info}, nil
}

func (s *Server) handleLoadSnapshot(ctx context.Context, params interface{}) (interface{}, error) {
	name, err := s.snapshotName(params)
	if err != nil {
		return nil, err
	}
	if err := s.session.LoadSnapshot(ctx, name); err != nil {
		return nil, err
	}
	result := s.session.Result()
	return &LoadSnapshotResult{
		Name:          name,
		Entities:      len(result.Entities),
		Relationships: len(result.Relationships),
		Clusters:      len(result.Clusters),
	}, nil
}

func (s *Server) handleListSnapshots(ctx context.Context, params interface{}) (interface{}, error) {
	infos, err := s.session.ListSnapshots(ctx)
	if err != nil {
		return nil, err
	}
	if infos == nil {
		infos = []storage.SnapshotInfo{}
	}
	return &ListSnapshotsResult{Snapshots: infos}, nil
}

func (s *Server) handleResetSession(ctx context.Context, params interface{}) (interface{}, error) {
	s.session.Reset()
	return &ResetSessionResult{Reset: true}, nil
}

// unmarshalParams unmarshals JSON-RPC parameters into a typed struct. Absent
// params decode as an empty object.
func unmarshalParams(params interface{}, dest interface{}) error {
	if params == nil {
		return nil
	}
	data, err := json.Marshal(params)
	if err != nil {
		return fmt.Errorf("failed to marshal params: %w", err)
	}
	if err := json.Unmarshal(data, dest); err != nil {
		return invalidParams("invalid params: %v", err)
	}
	return nil
}

// successResponse creates a JSON-RPC success response.
func (s *Server) successResponse(id interface{}, result interface{}) ([]byte, error) {
	resp := JSONRPCResponse{
		JSONRPC: "2.0",
		Result:  result,
		ID:      id,
	}
	return json.Marshal(resp)
}

// errorResponse creates a JSON-RPC error response.
func (s *Server) errorResponse(id interface{}, code int, message string, data interface{}) ([]byte, error) {
	resp := JSONRPCResponse{
		JSONRPC: "2.0",
		Error: &JSONRPCError{
			Code:    code,
			Message: message,
			Data:    data,
		},
		ID: id,
	}
	return json.Marshal(resp)
}
