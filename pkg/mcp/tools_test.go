package mcp

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rendis/ivrflow/internal/compiler"
	"github.com/rendis/ivrflow/internal/ingest"
	"github.com/rendis/ivrflow/internal/store"
	"github.com/rendis/ivrflow/internal/validation"
	"github.com/rendis/ivrflow/internal/voice"
	"github.com/rendis/ivrflow/pkg/schema"
)

// --- Mock store ---

type mockStore struct {
	store.Store // embed for unimplemented methods

	records []schema.VoiceRecord
	runs    []*schema.SyncRun
	listErr error
}

func (m *mockStore) ListVoiceRecords(context.Context) ([]schema.VoiceRecord, error) {
	if m.listErr != nil {
		return nil, m.listErr
	}
	return m.records, nil
}

func (m *mockStore) ListSyncRuns(_ context.Context, limit int) ([]*schema.SyncRun, error) {
	runs := m.runs
	if limit > 0 && len(runs) > limit {
		runs = runs[:limit]
	}
	return runs, nil
}

// --- Mock syncer ---

type mockSyncer struct {
	run *schema.SyncRun
	err error
}

func (m *mockSyncer) Sync(context.Context) (*schema.SyncRun, error) {
	if m.err != nil {
		return nil, m.err
	}
	return m.run, nil
}

// --- Helpers ---

func newTestServer(ms store.Store, syncer Syncer) *FlowServer {
	resolver := voice.NewResolver(voice.BuiltinRecords(), nil)
	comp := compiler.New(compiler.DefaultConfig(), resolver, nil)
	registry := ingest.NewRegistry()
	ingestor := ingest.NewIngestor(registry, comp, validation.NewFlowValidator(nil), nil)

	return NewFlowServer(FlowServerDeps{
		Ingestor: ingestor,
		Registry: registry,
		Resolver: resolver,
		Store:    ms,
		Syncer:   syncer,
	})
}

func buildRequest(toolName string, args map[string]any) mcp.CallToolRequest {
	return mcp.CallToolRequest{
		Params: mcp.CallToolParams{
			Name:      toolName,
			Arguments: args,
		},
	}
}

func extractText(t *testing.T, result *mcp.CallToolResult) string {
	t.Helper()
	require.NotEmpty(t, result.Content)
	return mcp.GetTextFromContent(result.Content[0])
}

func unmarshalResult(t *testing.T, result *mcp.CallToolResult, target any) {
	t.Helper()
	require.NoError(t, json.Unmarshal([]byte(extractText(t, result)), target))
}

const sampleDiagram = "flowchart TD\n" +
	"A[Please enter your four digit PIN] --> B{Correct PIN?}\n" +
	"B -->|yes| C[Goodbye]\n" +
	"B -->|no| D[Invalid entry]\n"

// --- Compile ---

func TestCompileTool(t *testing.T) {
	s := newTestServer(&mockStore{}, nil)

	req := buildRequest("ivrflow.compile", map[string]any{
		"source":       sampleDiagram,
		"organization": "acme",
	})

	result, err := s.handleCompile(context.Background(), req)
	require.NoError(t, err)
	assert.False(t, result.IsError)

	var out struct {
		Flows []ingest.PageFlow `json:"flows"`
	}
	unmarshalResult(t, result, &out)
	require.Len(t, out.Flows, 1)
	assert.NotEmpty(t, out.Flows[0].Flow.Records)
	// Bare diagram with a PIN prompt classifies as PIN verification.
	assert.Equal(t, "1001", out.Flows[0].Flow.Category)
}

func TestCompileToolJavaScriptFormat(t *testing.T) {
	s := newTestServer(&mockStore{}, nil)

	req := buildRequest("ivrflow.compile", map[string]any{
		"source": sampleDiagram,
		"format": "javascript",
		"schema": "ACME",
	})

	result, err := s.handleCompile(context.Background(), req)
	require.NoError(t, err)
	assert.False(t, result.IsError)

	var out struct {
		Files []struct {
			Page     int    `json:"page"`
			Filename string `json:"filename"`
			Source   string `json:"source"`
		} `json:"files"`
	}
	unmarshalResult(t, result, &out)
	require.Len(t, out.Files, 1)
	assert.Equal(t, "ACME_1001_ib.js", out.Files[0].Filename)
	assert.Contains(t, out.Files[0].Source, "module.exports = [")
}

func TestCompileToolMissingSource(t *testing.T) {
	s := newTestServer(&mockStore{}, nil)

	result, err := s.handleCompile(context.Background(), buildRequest("ivrflow.compile", map[string]any{}))
	require.NoError(t, err)
	assert.True(t, result.IsError)
}

func TestCompileToolNoDiagrams(t *testing.T) {
	s := newTestServer(&mockStore{}, nil)

	req := buildRequest("ivrflow.compile", map[string]any{"source": "plain prose"})
	result, err := s.handleCompile(context.Background(), req)
	require.NoError(t, err)
	assert.True(t, result.IsError)
}

// --- Resolve ---

func TestResolveTool(t *testing.T) {
	s := newTestServer(&mockStore{}, nil)

	req := buildRequest("ivrflow.resolve", map[string]any{
		"fragment": "Please enter your four digit PIN",
	})

	result, err := s.handleResolve(context.Background(), req)
	require.NoError(t, err)
	assert.False(t, result.IsError)

	var out struct {
		PromptID    string  `json:"prompt_id"`
		Confidence  float64 `json:"confidence"`
		Placeholder bool    `json:"placeholder"`
	}
	unmarshalResult(t, result, &out)
	assert.Equal(t, "callflow:1008", out.PromptID)
	assert.Equal(t, 1.0, out.Confidence)
	assert.False(t, out.Placeholder)
}

func TestResolveToolNoMatch(t *testing.T) {
	s := newTestServer(&mockStore{}, nil)

	req := buildRequest("ivrflow.resolve", map[string]any{
		"fragment": "zebra quantum discombobulation",
	})

	result, err := s.handleResolve(context.Background(), req)
	require.NoError(t, err)

	var out struct {
		PromptID    string `json:"prompt_id"`
		Placeholder bool   `json:"placeholder"`
	}
	unmarshalResult(t, result, &out)
	assert.Equal(t, schema.PromptPlaceholder, out.PromptID)
	assert.True(t, out.Placeholder)
}

func TestResolveToolMissingFragment(t *testing.T) {
	s := newTestServer(&mockStore{}, nil)

	result, err := s.handleResolve(context.Background(), buildRequest("ivrflow.resolve", map[string]any{}))
	require.NoError(t, err)
	assert.True(t, result.IsError)
}

// --- Query ---

func TestQueryToolVoiceRecords(t *testing.T) {
	ms := &mockStore{records: []schema.VoiceRecord{
		{Organization: schema.FoundationScope, PromptID: "callflow:1", Transcript: "Goodbye", Tier: schema.TierFoundation},
		{Organization: "acme", PromptID: "acme:2", Transcript: "Welcome", Tier: schema.TierOrganization},
		{Organization: "other", PromptID: "other:3", Transcript: "Hello", Tier: schema.TierOrganization},
	}}
	s := newTestServer(ms, nil)

	req := buildRequest("ivrflow.query", map[string]any{
		"resource": "voice_records",
		"filter":   map[string]any{"organization": "acme"},
	})

	result, err := s.handleQuery(context.Background(), req)
	require.NoError(t, err)
	assert.False(t, result.IsError)

	var out struct {
		Total   int                  `json:"total"`
		Records []schema.VoiceRecord `json:"records"`
	}
	unmarshalResult(t, result, &out)
	assert.Equal(t, 2, out.Total)
	for _, rec := range out.Records {
		assert.NotEqual(t, "other", rec.Organization)
	}
}

func TestQueryToolSyncRuns(t *testing.T) {
	now := time.Now().UTC()
	ms := &mockStore{runs: []*schema.SyncRun{
		{ID: "run-2", StartedAt: now, Status: "ok"},
		{ID: "run-1", StartedAt: now.Add(-time.Hour), Status: "failed"},
	}}
	s := newTestServer(ms, nil)

	req := buildRequest("ivrflow.query", map[string]any{
		"resource": "sync_runs",
		"filter":   map[string]any{"limit": 1},
	})

	result, err := s.handleQuery(context.Background(), req)
	require.NoError(t, err)

	var out struct {
		Runs []*schema.SyncRun `json:"runs"`
	}
	unmarshalResult(t, result, &out)
	require.Len(t, out.Runs, 1)
	assert.Equal(t, "run-2", out.Runs[0].ID)
}

func TestQueryToolCalloutTypes(t *testing.T) {
	s := newTestServer(&mockStore{}, nil)

	req := buildRequest("ivrflow.query", map[string]any{
		"resource": "callout_types",
		"filter":   map[string]any{"direction": "ob"},
	})

	result, err := s.handleQuery(context.Background(), req)
	require.NoError(t, err)

	text := extractText(t, result)
	assert.Contains(t, text, "FILL_SHIFT")
	assert.NotContains(t, text, "EMPLOYEE_VERIFY")
}

func TestQueryToolUnknownResource(t *testing.T) {
	s := newTestServer(&mockStore{}, nil)

	req := buildRequest("ivrflow.query", map[string]any{"resource": "agents"})
	result, err := s.handleQuery(context.Background(), req)
	require.NoError(t, err)
	assert.True(t, result.IsError)
}

// --- Inspect ---

func TestInspectTool(t *testing.T) {
	s := newTestServer(&mockStore{}, nil)

	records := []schema.CallFlowRecord{
		{Label: "Live Answer", Input: &schema.InputSpec{NumDigits: 1}},
		{Label: "Goodbye"},
	}
	data, err := json.Marshal(records)
	require.NoError(t, err)

	req := buildRequest("ivrflow.inspect", map[string]any{
		"expression": `.[] | select(.getDigits) | .label`,
		"records":    string(data),
	})

	result, handleErr := s.handleInspect(context.Background(), req)
	require.NoError(t, handleErr)
	assert.False(t, result.IsError)

	var out struct {
		Result any `json:"result"`
	}
	unmarshalResult(t, result, &out)
	assert.Equal(t, "Live Answer", out.Result)
}

func TestInspectToolInvalidRecords(t *testing.T) {
	s := newTestServer(&mockStore{}, nil)

	req := buildRequest("ivrflow.inspect", map[string]any{
		"expression": ".[]",
		"records":    "not json",
	})

	result, err := s.handleInspect(context.Background(), req)
	require.NoError(t, err)
	assert.True(t, result.IsError)
}

func TestInspectToolBadExpression(t *testing.T) {
	s := newTestServer(&mockStore{}, nil)

	req := buildRequest("ivrflow.inspect", map[string]any{
		"expression": ".[ broken",
		"records":    "[]",
	})

	result, err := s.handleInspect(context.Background(), req)
	require.NoError(t, err)
	assert.True(t, result.IsError)
}

// --- Sync ---

func TestSyncTool(t *testing.T) {
	syncer := &mockSyncer{run: &schema.SyncRun{ID: "run-9", RecordCount: 42, Status: "ok"}}
	s := newTestServer(&mockStore{}, syncer)

	result, err := s.handleSync(context.Background(), buildRequest("ivrflow.sync", nil))
	require.NoError(t, err)
	assert.False(t, result.IsError)

	var out struct {
		RunID   string `json:"run_id"`
		Status  string `json:"status"`
		Records int    `json:"records"`
	}
	unmarshalResult(t, result, &out)
	assert.Equal(t, "run-9", out.RunID)
	assert.Equal(t, 42, out.Records)
}

func TestSyncToolFailure(t *testing.T) {
	syncer := &mockSyncer{err: assert.AnError}
	s := newTestServer(&mockStore{}, syncer)

	result, err := s.handleSync(context.Background(), buildRequest("ivrflow.sync", nil))
	require.NoError(t, err)
	assert.True(t, result.IsError)
}

func TestSyncToolNoSyncerConfigured(t *testing.T) {
	s := newTestServer(&mockStore{}, nil)

	result, err := s.handleSync(context.Background(), buildRequest("ivrflow.sync", nil))
	require.NoError(t, err)
	assert.True(t, result.IsError)
}
