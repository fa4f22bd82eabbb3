package mcp

import (
	"context"
	"log/slog"
	"os"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/rendis/ivrflow/internal/export"
	"github.com/rendis/ivrflow/internal/ingest"
	"github.com/rendis/ivrflow/internal/store"
	"github.com/rendis/ivrflow/internal/voice"
	"github.com/rendis/ivrflow/pkg/schema"
)

// Syncer triggers one remote voice-snapshot refresh. Satisfied by the voice
// sync service.
type Syncer interface {
	Sync(ctx context.Context) (*schema.SyncRun, error)
}

// FlowServerDeps holds the dependencies for creating a FlowServer.
type FlowServerDeps struct {
	Ingestor *ingest.Ingestor
	Registry *ingest.Registry
	Resolver *voice.Resolver
	Store    store.Store
	Syncer   Syncer
	Query    *export.QueryEngine
	Logger   *slog.Logger
}

// FlowServer wraps an MCP server with call-flow tool handlers.
type FlowServer struct {
	ingestor  *ingest.Ingestor
	registry  *ingest.Registry
	resolver  *voice.Resolver
	store     store.Store
	syncer    Syncer
	query     *export.QueryEngine
	sessions  *SessionRegistry
	logger    *slog.Logger
	mcpServer *server.MCPServer
}

// NewFlowServer creates a new FlowServer with all 5 tools registered.
func NewFlowServer(deps FlowServerDeps) *FlowServer {
	logger := deps.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))
	}

	query := deps.Query
	if query == nil {
		query = export.NewQueryEngine()
	}

	s := &FlowServer{
		ingestor: deps.Ingestor,
		registry: deps.Registry,
		resolver: deps.Resolver,
		store:    deps.Store,
		syncer:   deps.Syncer,
		query:    query,
		sessions: NewSessionRegistry(),
		logger:   logger,
	}

	mcpSrv := server.NewMCPServer(
		"ivrflow",
		"1.0.0",
		server.WithToolCapabilities(false),
		server.WithRecovery(),
		server.WithInstructions("ivrflow compiles flowchart diagrams into IVR call flows. Use ivrflow.compile to turn diagram or document text into call-flow records, ivrflow.resolve to map a transcript fragment to a voice prompt, ivrflow.query to list voice records/sync runs/callout types, ivrflow.inspect to run jq expressions over a compiled flow, and ivrflow.sync to refresh the voice snapshot."),
	)

	mcpSrv.AddTools(s.tools()...)
	s.mcpServer = mcpSrv
	return s
}

// Serve starts the stdio transport and blocks until ctx is cancelled or stdin closes.
func (s *FlowServer) Serve(ctx context.Context) error {
	stdio := server.NewStdioServer(s.mcpServer)
	return stdio.Listen(ctx, os.Stdin, os.Stdout)
}

// MCPServer returns the underlying MCPServer for testing or custom transports.
func (s *FlowServer) MCPServer() *server.MCPServer {
	return s.mcpServer
}

// tools returns the 5 registered MCP tools as ServerTool entries.
func (s *FlowServer) tools() []server.ServerTool {
	return []server.ServerTool{
		{Tool: compileTool(), Handler: s.handleCompile},
		{Tool: resolveTool(), Handler: s.handleResolve},
		{Tool: queryTool(), Handler: s.handleQuery},
		{Tool: inspectTool(), Handler: s.handleInspect},
		{Tool: syncTool(), Handler: s.handleSync},
	}
}

// --- Tool definitions ---

func compileTool() mcp.Tool {
	return mcp.NewTool("ivrflow.compile",
		mcp.WithDescription("Compile flowchart diagram or document text into IVR call-flow records"),
		mcp.WithString("source", mcp.Required(), mcp.Description("Diagram source or multi-page document text")),
		mcp.WithString("organization", mcp.Description("Organization whose voice records take priority")),
		mcp.WithString("category", mcp.Description("Callout category ID (default: per-page advisory)")),
		mcp.WithString("format", mcp.Enum("json", "javascript"), mcp.Description("Output format (default: json)")),
		mcp.WithString("schema", mcp.Description("Schema prefix override for output filenames")),
	)
}

func resolveTool() mcp.Tool {
	return mcp.NewTool("ivrflow.resolve",
		mcp.WithDescription("Resolve a transcript fragment to a voice prompt identifier"),
		mcp.WithString("fragment", mcp.Required(), mcp.Description("Spoken text to match against voice records")),
		mcp.WithString("organization", mcp.Description("Organization whose records outrank foundation records")),
	)
}

func queryTool() mcp.Tool {
	return mcp.NewTool("ivrflow.query",
		mcp.WithDescription("Query voice records, sync runs, or callout types"),
		mcp.WithString("resource", mcp.Required(),
			mcp.Enum("voice_records", "sync_runs", "callout_types"),
			mcp.Description("Type of resource to query"),
		),
		mcp.WithObject("filter", mcp.Description("Filter criteria (organization, direction, limit)")),
	)
}

func inspectTool() mcp.Tool {
	return mcp.NewTool("ivrflow.inspect",
		mcp.WithDescription("Run a jq expression over compiled call-flow records"),
		mcp.WithString("expression", mcp.Required(), mcp.Description("jq expression, e.g. '.[] | select(.getDigits) | .label'")),
		mcp.WithString("records", mcp.Required(), mcp.Description("JSON array of call-flow records to inspect")),
	)
}

func syncTool() mcp.Tool {
	return mcp.NewTool("ivrflow.sync",
		mcp.WithDescription("Refresh the local voice-record snapshot from the remote endpoint"),
	)
}
