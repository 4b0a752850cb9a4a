package api

import (
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/sheria-labs/registries/pkg/kit"
)

// NewMCPServer builds the MCP server exposing the registry tools. It is
// mounted on the HTTP mux via the streamable-HTTP transport.
func NewMCPServer(svc *Service) *server.MCPServer {
	srv := server.NewMCPServer("registries", "1.0.0",
		server.WithToolCapabilities(false))
	registerListRegistries(srv, svc)
	registerSearchRecords(srv, svc)
	registerBatchStatus(srv, svc)
	return srv
}

func registerListRegistries(srv *server.MCPServer, svc *Service) {
	tool := mcp.NewTool("list_registries",
		mcp.WithDescription("List the configured registries (marriages, legal cases, societies, public-trustee estates) with field and record counts."),
	)

	kit.RegisterMCPTool(srv, tool, instrumented(svc, listRegistriesEndpoint(svc)),
		func(_ mcp.CallToolRequest) (*kit.MCPDecodeResult, error) {
			return &kit.MCPDecodeResult{Request: nil}, nil
		})
}

func registerSearchRecords(srv *server.MCPServer, svc *Service) {
	tool := mcp.NewTool("search_records",
		mcp.WithDescription("Search imported records in one registry by natural key or display fields (accent-insensitive)."),
		mcp.WithString("registry", mcp.Required(), mcp.Description("Registry ID (e.g. marriages, trustees)")),
		mcp.WithString("query", mcp.Description("Search text; empty lists the most recent imports")),
		mcp.WithNumber("limit", mcp.Description("Maximum results (default 50)")),
	)

	kit.RegisterMCPTool(srv, tool, instrumented(svc, searchEndpoint(svc)),
		func(req mcp.CallToolRequest) (*kit.MCPDecodeResult, error) {
			args := req.GetArguments()
			registry, _ := args["registry"].(string)
			query, _ := args["query"].(string)
			limit, _ := args["limit"].(float64)
			return &kit.MCPDecodeResult{Request: &searchReq{
				Registry: registry,
				Query:    query,
				Limit:    int(limit),
			}}, nil
		})
}

func registerBatchStatus(srv *server.MCPServer, svc *Service) {
	tool := mcp.NewTool("batch_status",
		mcp.WithDescription("Show import batch history, or one batch's terminal status and counters by ID."),
		mcp.WithString("id", mcp.Description("Batch ID; empty lists recent batches")),
	)

	kit.RegisterMCPTool(srv, tool, instrumented(svc, batchStatusEndpoint(svc)),
		func(req mcp.CallToolRequest) (*kit.MCPDecodeResult, error) {
			args := req.GetArguments()
			id, _ := args["id"].(string)
			return &kit.MCPDecodeResult{Request: &batchReq{ID: id}}, nil
		})
}
