// Stdio framing for the osintgraph MCP server: one JSON-RPC message per
// line in each direction. Logs go to stderr; stdout carries responses only.

package mcp

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"os"
)

// maxRequestBytes bounds one request line. process_findings calls carry
// whole probe exports, so this is well above typical MCP traffic.
const maxRequestBytes = 16 * 1024 * 1024

// StdioTransport reads line-delimited JSON-RPC 2.0 requests from an io.Reader
// and writes responses to an io.Writer for one Server.
type StdioTransport struct {
	server *Server
	in     io.Reader
	out    io.Writer
	logger *log.Logger
}

// NewStdioTransport constructs a StdioTransport that reads from in and writes
// to out. Log messages go to stderr.
func NewStdioTransport(srv *Server, in io.Reader, out io.Writer) *StdioTransport {
	return NewStdioTransportWithLogger(srv, in, out, log.New(os.Stderr, "osintgraph-mcp: ", log.LstdFlags))
}

// NewStdioTransportWithLogger is NewStdioTransport with a caller-supplied
// logger. The logger must not write to out.
func NewStdioTransportWithLogger(srv *Server, in io.Reader, out io.Writer, logger *log.Logger) *StdioTransport {
	return &StdioTransport{
		server: srv,
		in:     in,
		out:    out,
		logger: logger,
	}
}

// Serve answers requests in arrival order until in is exhausted or ctx is
// cancelled. Correlation calls mutate one session, so requests are never
// handled concurrently.
func (t *StdioTransport) Serve(ctx context.Context) error {
	lines := bufio.NewScanner(t.in)
	lines.Buffer(make([]byte, 0, 64*1024), maxRequestBytes)

	served := 0
	for {
		if err := ctx.Err(); err != nil {
			t.logger.Printf("stopping after %d requests: %v", served, err)
			return err
		}
		if !lines.Scan() {
			if err := lines.Err(); err != nil {
				t.logger.Printf("read failed after %d requests: %v", served, err)
				return fmt.Errorf("read request: %w", err)
			}
			t.logger.Printf("stdin closed after %d requests", served)
			return nil
		}

		request := lines.Bytes()
		if len(request) == 0 {
			continue
		}
		if err := t.answer(ctx, request); err != nil {
			return err
		}
		served++
	}
}

// answer handles one request line and writes its response line. Handler
// failures still produce a response carrying the request id.
func (t *StdioTransport) answer(ctx context.Context, request []byte) error {
	resp, err := t.server.HandleRequest(ctx, request)
	if err != nil {
		t.logger.Printf("request failed: %v", err)
		resp = internalErrorResponse(request, err)
	}
	if _, err := fmt.Fprintf(t.out, "%s\n", resp); err != nil {
		t.logger.Printf("write failed: %v", err)
		return fmt.Errorf("write response: %w", err)
	}
	return nil
}

// internalErrorResponse reports handlerErr as an internal error, echoing the
// request id when the line still parses that far.
func internalErrorResponse(request []byte, handlerErr error) []byte {
	var envelope struct {
		ID interface{} `json:"id"`
	}
	_ = json.Unmarshal(request, &envelope)

	data, err := json.Marshal(JSONRPCResponse{
		JSONRPC: "2.0",
		ID:      envelope.ID,
		Error:   &JSONRPCError{Code: ErrCodeInternalError, Message: handlerErr.Error()},
	})
	if err != nil {
		return []byte(`{"jsonrpc":"2.0","id":null,"error":{"code":-32603,"message":"internal error"}}`)
	}
	return data
}
