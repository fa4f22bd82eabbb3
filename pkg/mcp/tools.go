package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/rendis/ivrflow/internal/export"
	"github.com/rendis/ivrflow/internal/ingest"
	"github.com/rendis/ivrflow/pkg/schema"
)

// handleCompile compiles diagram or document text into call-flow records.
func (s *FlowServer) handleCompile(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	source, err := req.RequireString("source")
	if err != nil {
		return mcp.NewToolResultError("source is required"), nil
	}
	organization := req.GetString("organization", "")
	category := req.GetString("category", "")
	format := req.GetString("format", "json")
	schemaOverride := req.GetString("schema", "")

	if organization != "" {
		s.captureSession(ctx, organization)
	}

	flows, ingErr := s.ingestor.Ingest(ctx, source, organization, category)
	if ingErr != nil {
		return mcp.NewToolResultError(fmt.Sprintf("compilation failed: %v", ingErr)), nil
	}

	switch format {
	case "json":
		return marshalResult(map[string]any{"flows": flows})
	case "javascript":
		out := make([]map[string]any, 0, len(flows))
		for _, pf := range flows {
			js, jsErr := export.JavaScript(pf.Flow.Records, pf.Flow.Category)
			if jsErr != nil {
				return mcp.NewToolResultError(fmt.Sprintf("javascript render failed: %v", jsErr)), nil
			}
			out = append(out, map[string]any{
				"page":     pf.Page,
				"filename": s.filenameFor(pf.Flow.Category, pf.Page, schemaOverride),
				"source":   js,
			})
		}
		return marshalResult(map[string]any{"files": out})
	default:
		return mcp.NewToolResultError(fmt.Sprintf("unknown format: %s", format)), nil
	}
}

// handleResolve maps a transcript fragment to a voice prompt identifier.
func (s *FlowServer) handleResolve(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	fragment, err := req.RequireString("fragment")
	if err != nil {
		return mcp.NewToolResultError("fragment is required"), nil
	}
	organization := req.GetString("organization", "")

	if organization != "" {
		s.captureSession(ctx, organization)
	}

	promptID, confidence := s.resolver.Resolve(fragment, organization)
	return marshalResult(map[string]any{
		"prompt_id":   promptID,
		"confidence":  confidence,
		"placeholder": promptID == schema.PromptPlaceholder,
	})
}

// handleQuery lists voice records, sync runs, or callout types.
func (s *FlowServer) handleQuery(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	resource, err := req.RequireString("resource")
	if err != nil {
		return mcp.NewToolResultError("resource is required"), nil
	}

	filter := mcp.ParseStringMap(req, "filter", nil)

	switch resource {
	case "voice_records":
		return s.queryVoiceRecords(ctx, filter)
	case "sync_runs":
		return s.querySyncRuns(ctx, filter)
	case "callout_types":
		return s.queryCalloutTypes(filter)
	default:
		return mcp.NewToolResultError(fmt.Sprintf("unknown resource type: %s", resource)), nil
	}
}

// handleInspect runs a jq expression over a compiled record sequence.
func (s *FlowServer) handleInspect(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	expression, err := req.RequireString("expression")
	if err != nil {
		return mcp.NewToolResultError("expression is required"), nil
	}
	recordsJSON, err := req.RequireString("records")
	if err != nil {
		return mcp.NewToolResultError("records is required"), nil
	}

	var records []schema.CallFlowRecord
	if unmarshalErr := json.Unmarshal([]byte(recordsJSON), &records); unmarshalErr != nil {
		return mcp.NewToolResultError(fmt.Sprintf("invalid records: %v", unmarshalErr)), nil
	}

	value, queryErr := s.query.Query(ctx, expression, records)
	if queryErr != nil {
		return mcp.NewToolResultError(fmt.Sprintf("query failed: %v", queryErr)), nil
	}
	return marshalResult(map[string]any{"result": value})
}

// handleSync triggers a voice-snapshot refresh and notifies connected sessions.
func (s *FlowServer) handleSync(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if s.syncer == nil {
		return mcp.NewToolResultError("no remote sync endpoint configured"), nil
	}

	run, err := s.syncer.Sync(ctx)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("sync failed: %v", err)), nil
	}

	s.notifySnapshotRefreshed(ctx, run)

	return marshalResult(map[string]any{
		"run_id":  run.ID,
		"status":  run.Status,
		"records": run.RecordCount,
	})
}

// --- Query helpers ---

func (s *FlowServer) queryVoiceRecords(ctx context.Context, filter map[string]any) (*mcp.CallToolResult, error) {
	records, err := s.store.ListVoiceRecords(ctx)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("query failed: %v", err)), nil
	}

	if org, ok := filter["organization"].(string); ok && org != "" {
		filtered := records[:0]
		for _, rec := range records {
			if rec.Organization == org || rec.Organization == schema.FoundationScope {
				filtered = append(filtered, rec)
			}
		}
		records = filtered
	}

	total := len(records)
	if limit := extractInt(filter, "limit", 100); limit > 0 && len(records) > limit {
		records = records[:limit]
	}
	return marshalResult(map[string]any{"total": total, "records": records})
}

func (s *FlowServer) querySyncRuns(ctx context.Context, filter map[string]any) (*mcp.CallToolResult, error) {
	runs, err := s.store.ListSyncRuns(ctx, extractInt(filter, "limit", 20))
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("query failed: %v", err)), nil
	}
	return marshalResult(map[string]any{"runs": runs})
}

func (s *FlowServer) queryCalloutTypes(filter map[string]any) (*mcp.CallToolResult, error) {
	types := s.registry.All()
	if dir, ok := filter["direction"].(string); ok && dir != "" {
		types = s.registry.ByDirection(ingest.Direction(dir))
	}
	return marshalResult(map[string]any{"callout_types": types})
}

// --- Internal helpers ---

// filenameFor derives the output filename for a page. Categories missing
// from the registry fall back to a page-numbered name.
func (s *FlowServer) filenameFor(category string, page int, schemaOverride string) string {
	if ct, ok := s.registry.Get(category); ok {
		return ct.Filename(schemaOverride)
	}
	prefix := schemaOverride
	if prefix == "" {
		prefix = "FLOW"
	}
	return fmt.Sprintf("%s_page%d.js", strings.ToUpper(prefix), page)
}

// notifySnapshotRefreshed tells every connected session that the voice
// snapshot changed and compiled prompt IDs may be stale. Best-effort.
func (s *FlowServer) notifySnapshotRefreshed(ctx context.Context, run *schema.SyncRun) {
	notifier := NewMCPNotifier(s.mcpServer, s.sessions)
	payload := map[string]any{
		"event":   "voice_snapshot_refreshed",
		"run_id":  run.ID,
		"records": run.RecordCount,
	}
	for _, org := range s.sessions.Organizations() {
		if err := notifier.Notify(ctx, org, payload); err != nil {
			s.logger.Warn("failed to notify session",
				"organization", org,
				"error", err.Error(),
			)
		}
	}
}

// captureSession maps the organization to its current MCP session for
// snapshot-refresh notifications.
func (s *FlowServer) captureSession(ctx context.Context, organization string) {
	if session := server.ClientSessionFromContext(ctx); session != nil {
		s.sessions.Register(organization, session.SessionID())
	}
}

// marshalResult converts a value to a JSON text tool result.
func marshalResult(v any) (*mcp.CallToolResult, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to marshal result: %v", err)), nil
	}
	return mcp.NewToolResultJSON(json.RawMessage(data))
}

// extractInt safely extracts an integer from a filter map.
func extractInt(filter map[string]any, key string, defaultVal int) int {
	if filter == nil {
		return defaultVal
	}
	v, ok := filter[key]
	if !ok {
		return defaultVal
	}
	switch val := v.(type) {
	case float64:
		return int(val)
	case int:
		return val
	case string:
		if n, err := strconv.Atoi(val); err == nil {
			return n
		}
	}
	return defaultVal
}
