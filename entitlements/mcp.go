// CLAUDE:SUMMARY Registers the entitlements MCP tools: read the stored snapshot, replace it, fetch the published sheet.
package entitlements

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/hazyhaar/entitlemate/kit"
	"github.com/hazyhaar/entitlemate/snapshot"
)

// RegisterMCP registers the entitlements tools on an MCP server.
func (s *Service) RegisterMCP(srv *mcp.Server) {
	s.registerGetTool(srv)
	s.registerReplaceTool(srv)
	s.registerFetchSheetTool(srv)
}

func inputSchema(properties map[string]any, required []string) map[string]any {
	sc := map[string]any{
		"type":       "object",
		"properties": properties,
	}
	if len(required) > 0 {
		sc["required"] = required
	}
	return sc
}

func noArgs(*mcp.CallToolRequest) (*kit.MCPDecodeResult, error) {
	return &kit.MCPDecodeResult{}, nil
}

func (s *Service) wrap(op string, e kit.Endpoint) kit.Endpoint {
	return kit.Chain(kit.Logging(s.logger, op))(e)
}

// --- entitlements_get ---

func (s *Service) registerGetTool(srv *mcp.Server) {
	tool := &mcp.Tool{
		Name:        "entitlements_get",
		Description: "Return the stored entitlement snapshot as a JSON array. Empty when nothing has been posted yet.",
		InputSchema: inputSchema(map[string]any{}, nil),
	}
	endpoint := func(ctx context.Context, _ any) (any, error) {
		return s.Snapshot(ctx)
	}
	kit.RegisterMCPTool(srv, tool, s.wrap(tool.Name, endpoint), noArgs)
}

// --- entitlements_replace ---

type replaceRequest struct {
	Records json.RawMessage `json:"records"`
}

type replaceResponse struct {
	Records int `json:"records"`
}

func (s *Service) registerReplaceTool(srv *mcp.Server) {
	tool := &mcp.Tool{
		Name:        "entitlements_replace",
		Description: "Replace the stored snapshot. records is one entitlement object (stored as a one-element list) or an array of them. An empty array clears the snapshot.",
		InputSchema: inputSchema(map[string]any{
			"records": map[string]any{
				"description": "Entitlement object or array of entitlement objects",
				"type":        []any{"object", "array"},
			},
		}, []string{"records"}),
	}

	endpoint := func(ctx context.Context, req any) (any, error) {
		rr := req.(*replaceRequest)
		p, err := snapshot.ParsePayload(rr.Records)
		if err != nil {
			return nil, errors.New("records is required")
		}
		snap, err := p.Normalize()
		if err != nil {
			return nil, errors.New(msgNotContainer)
		}
		n, err := s.Replace(ctx, snap)
		if err != nil {
			return nil, err
		}
		return replaceResponse{Records: n}, nil
	}

	decode := func(req *mcp.CallToolRequest) (*kit.MCPDecodeResult, error) {
		var rr replaceRequest
		if err := kit.DecodeArgs(req, &rr); err != nil {
			return nil, err
		}
		return &kit.MCPDecodeResult{Request: &rr}, nil
	}

	kit.RegisterMCPTool(srv, tool, s.wrap(tool.Name, endpoint), decode)
}

// --- entitlements_fetch_sheet ---

func (s *Service) registerFetchSheetTool(srv *mcp.Server) {
	tool := &mcp.Tool{
		Name:        "entitlements_fetch_sheet",
		Description: "Fetch the published entitlement sheet and return its rows as JSON objects keyed by the header row. Does not modify the stored snapshot.",
		InputSchema: inputSchema(map[string]any{}, nil),
	}
	endpoint := func(ctx context.Context, _ any) (any, error) {
		return s.FetchSheet(ctx)
	}
	kit.RegisterMCPTool(srv, tool, s.wrap(tool.Name, endpoint), noArgs)
}
