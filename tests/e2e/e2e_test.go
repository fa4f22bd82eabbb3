package e2e

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rendis/ivrflow/internal/compiler"
	"github.com/rendis/ivrflow/internal/expressions"
	"github.com/rendis/ivrflow/internal/export"
	"github.com/rendis/ivrflow/internal/ingest"
	"github.com/rendis/ivrflow/internal/store"
	"github.com/rendis/ivrflow/internal/validation"
	"github.com/rendis/ivrflow/internal/voice"
	"github.com/rendis/ivrflow/pkg/schema"
)

// --- Test harness ---

type harness struct {
	t        *testing.T
	store    *store.LibSQLStore
	schemas  *validation.JSONSchemaValidator
	resolver *voice.Resolver
	ingestor *ingest.Ingestor
	registry *ingest.Registry
}

func newHarness(t *testing.T, loaders ...voice.Loader) *harness {
	t.Helper()

	dbPath := filepath.Join(t.TempDir(), "e2e.db")
	s, err := store.NewLibSQLStore("file:" + dbPath)
	require.NoError(t, err)
	require.NoError(t, s.Migrate(context.Background()))
	t.Cleanup(func() { _ = s.Close() })

	schemas, err := validation.NewJSONSchemaValidator()
	require.NoError(t, err)

	if len(loaders) == 0 {
		loaders = []voice.Loader{voice.NewBulkLoader(s), &voice.BuiltinLoader{}}
	}
	resolver, err := voice.Init(context.Background(), nil, loaders...)
	require.NoError(t, err)

	engine, err := expressions.New("expr")
	require.NoError(t, err)

	registry := ingest.NewRegistry()
	comp := compiler.New(compiler.DefaultConfig(), resolver, nil)
	validator := validation.NewFlowValidator(engine)

	return &harness{
		t:        t,
		store:    s,
		schemas:  schemas,
		resolver: resolver,
		ingestor: ingest.NewIngestor(registry, comp, validator, nil),
		registry: registry,
	}
}

const electricCallout = "flowchart TD\n" +
	"A[This is an electric callout. Press 1 if you can respond] --> B[Please enter your four digit PIN]\n" +
	"B --> C{Correct PIN?}\n" +
	"C -->|yes| D[Your accepted response has been recorded]\n" +
	"C -->|no| E[Invalid entry. Please try again]\n" +
	"E --> B\n" +
	"D --> F[Goodbye]\n"

// --- Full pipeline ---

func TestCompileDocumentEndToEnd(t *testing.T) {
	h := newHarness(t)

	doc := "```mermaid\n" + electricCallout + "```\n"
	flows, err := h.ingestor.Ingest(context.Background(), doc, "acme", "")
	require.NoError(t, err)
	require.Len(t, flows, 1)

	flow := flows[0].Flow
	require.NotNil(t, flow)
	assert.NotEmpty(t, flow.RunID)

	// PIN-entry content classifies as employee verification.
	assert.Equal(t, "1001", flow.Category)

	byLabel := make(map[string]schema.CallFlowRecord, len(flow.Records))
	for _, rec := range flow.Records {
		byLabel[rec.Label] = rec
	}

	// Built-in foundation records resolved the canonical prompts.
	live, ok := byLabel["Live Answer"]
	require.True(t, ok)
	assert.NotContains(t, live.PromptSequence, schema.PromptPlaceholder)

	pin, ok := byLabel["Enter PIN"]
	require.True(t, ok)
	assert.Equal(t, []string{"callflow:1008"}, pin.PromptSequence)

	// Decision branches: 1-based keys plus the fixed fallbacks.
	check, ok := byLabel["Check PIN"]
	require.True(t, ok)
	require.NotNil(t, check.Input)
	assert.Equal(t, "Accept", check.Branch["1"])
	assert.Equal(t, "Invalid Entry", check.Branch["2"])
	assert.Equal(t, "Problems", check.Branch["error"])
	assert.Equal(t, "Problems", check.Branch["none"])

	// Accept records the result via the gosub side effect.
	accept := byLabel["Accept"]
	require.NotNil(t, accept.SubCall)
	assert.Equal(t, "SaveCallResult", accept.SubCall.Name)

	// The fixed fallback record closes the sequence.
	problems, ok := byLabel["Problems"]
	require.True(t, ok)
	assert.True(t, problems.NoBarge)
	assert.Equal(t, "hangup", problems.Goto)

	// Structural validation is clean.
	require.NotNil(t, flow.Findings)
	assert.True(t, flow.Findings.Valid())
}

func TestExportedArtifactsEndToEnd(t *testing.T) {
	h := newHarness(t)

	flows, err := h.ingestor.Ingest(context.Background(), electricCallout, "acme", "1001")
	require.NoError(t, err)
	records := flows[0].Flow.Records

	// JSON export passes the embedded call-flow schema.
	data, err := export.JSON(records, h.schemas)
	require.NoError(t, err)

	// JavaScript export wraps the same payload as a CommonJS module.
	js, err := export.JavaScript(records, "1001")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(js, "/**"))
	assert.Contains(t, js, "module.exports = [")

	// jq queries work over the exported shape.
	var roundTrip []schema.CallFlowRecord
	require.NoError(t, json.Unmarshal(data, &roundTrip))
	out, err := export.NewQueryEngine().Query(context.Background(), `[.[] | .label] | length`, roundTrip)
	require.NoError(t, err)
	assert.EqualValues(t, len(records), out)

	// Registry-derived filename for the compiled category.
	ct, ok := h.registry.Get("1001")
	require.True(t, ok)
	assert.Equal(t, "EMPLOYEE_VERIFY_1001_ib.js", ct.Filename(""))
}

// --- Sync and tier fallback ---

func TestRemoteSyncFeedsBulkTier(t *testing.T) {
	snapshot := voice.Snapshot{
		GeneratedAt: time.Now().UTC(),
		Records: []schema.VoiceRecord{
			{Organization: schema.FoundationScope, Category: "callflow", PromptID: "callflow:9001",
				Transcript: "Thank you for calling the outage line", Tier: schema.TierFoundation},
			{Organization: "acme", Category: "callflow", PromptID: "acme:77",
				Transcript: "Thank you for calling the Acme outage line", Tier: schema.TierOrganization},
		},
	}
	body, err := json.Marshal(snapshot)
	require.NoError(t, err)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write(body)
	}))
	t.Cleanup(srv.Close)

	h := newHarness(t)

	remote := voice.NewRemoteLoader(srv.URL, "", 5*time.Second, h.schemas)
	sync := voice.NewSyncService(remote, h.store, nil)

	run, err := sync.Sync(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "ok", run.Status)
	assert.Equal(t, 2, run.RecordCount)

	// The bulk tier now serves the synced snapshot.
	resolver, err := voice.Init(context.Background(), nil, voice.NewBulkLoader(h.store), &voice.BuiltinLoader{})
	require.NoError(t, err)
	assert.Equal(t, 2, resolver.Count())

	// Organization record outranks the foundation one for Acme.
	id, confidence := resolver.Resolve("Thank you for calling the Acme outage line", "acme")
	assert.Equal(t, "acme:77", id)
	assert.Equal(t, 1.0, confidence)

	// Other organizations only see the foundation record.
	id, _ = resolver.Resolve("Thank you for calling the outage line", "globex")
	assert.Equal(t, "callflow:9001", id)

	// The run is on the store's sync history.
	latest, err := h.store.LatestSyncRun(context.Background())
	require.NoError(t, err)
	assert.Equal(t, run.ID, latest.ID)
}

func TestUnreachableRemoteFallsBackToBuiltin(t *testing.T) {
	h := newHarness(t)

	remote := voice.NewRemoteLoader("http://127.0.0.1:1", "", 500*time.Millisecond, h.schemas)
	resolver, err := voice.Init(context.Background(), nil, remote, voice.NewBulkLoader(h.store), &voice.BuiltinLoader{})
	require.NoError(t, err)

	// Built-in set answers despite the dead remote and empty cache.
	id, _ := resolver.Resolve("Please enter your four digit PIN", "")
	assert.Equal(t, "callflow:1008", id)
}
