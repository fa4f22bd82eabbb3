package ingest

import (
	"context"
	"log/slog"
	"regexp"
	"strings"

	"github.com/google/uuid"

	"github.com/rendis/ivrflow/internal/compiler"
	"github.com/rendis/ivrflow/internal/diagram"
	"github.com/rendis/ivrflow/internal/logging"
	"github.com/rendis/ivrflow/internal/validation"
	"github.com/rendis/ivrflow/pkg/schema"
)

// maxConcurrentPages bounds parallel page compilation. Pages share one
// read-only resolver, so the limit only guards memory, not correctness.
const maxConcurrentPages = 4

var (
	fenceOpenRe  = regexp.MustCompile("^```\\s*mermaid\\s*$")
	fenceCloseRe = regexp.MustCompile("^```\\s*$")
	bareHeaderRe = regexp.MustCompile(`^(?:flowchart|graph)\s+\w+`)
)

// Page is one diagram source extracted from a document, tagged with the
// 1-based page it came from. A page holding several diagrams yields several
// entries with the same Number.
type Page struct {
	Number int
	Source string
}

// ExtractDiagrams splits document text into pages on form feeds and pulls
// the diagram sources out of each page. Fenced ```mermaid blocks win; a page
// without fences is scanned for bare flowchart/graph headers, each starting
// a diagram that runs to the next header or the end of the page. Pages with
// neither contribute nothing.
func ExtractDiagrams(text string) []Page {
	var pages []Page
	for i, pageText := range strings.Split(text, "\f") {
		for _, src := range extractFromPage(pageText) {
			pages = append(pages, Page{Number: i + 1, Source: src})
		}
	}
	return pages
}

func extractFromPage(text string) []string {
	lines := strings.Split(text, "\n")

	var fenced []string
	inFence := false
	var block []string
	for _, line := range lines {
		trimmed := strings.TrimSpace(line)
		switch {
		case !inFence && fenceOpenRe.MatchString(trimmed):
			inFence = true
			block = block[:0]
		case inFence && fenceCloseRe.MatchString(trimmed):
			inFence = false
			if src := strings.TrimSpace(strings.Join(block, "\n")); src != "" {
				fenced = append(fenced, src)
			}
		case inFence:
			block = append(block, line)
		}
	}
	if len(fenced) > 0 {
		return fenced
	}

	// No fences: treat each bare header as the start of a diagram.
	var bare []string
	var current []string
	for _, line := range lines {
		trimmed := strings.TrimSpace(line)
		if bareHeaderRe.MatchString(trimmed) {
			if len(current) > 0 {
				bare = append(bare, strings.Join(current, "\n"))
			}
			current = []string{trimmed}
			continue
		}
		if len(current) > 0 {
			current = append(current, line)
		}
	}
	if len(current) > 0 {
		bare = append(bare, strings.Join(current, "\n"))
	}
	return bare
}

// PageFlow is the compiled result for one extracted diagram.
type PageFlow struct {
	Page     int             `json:"page"`
	Advisory schema.Advisory `json:"advisory"`
	Flow     *schema.CompiledFlow
}

// Ingestor compiles every diagram found in a document. The compiler and its
// resolver are shared across pages; each page gets its own graph and record
// sequence, so pages compile concurrently.
type Ingestor struct {
	registry  *Registry
	compiler  *compiler.Compiler
	validator *validation.FlowValidator
	logger    *slog.Logger
}

// NewIngestor creates an ingestor. A nil logger falls back to slog.Default.
func NewIngestor(registry *Registry, comp *compiler.Compiler, validator *validation.FlowValidator, logger *slog.Logger) *Ingestor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Ingestor{registry: registry, compiler: comp, validator: validator, logger: logger}
}

// Ingest extracts and compiles every diagram in the document. The explicit
// category, when non-empty, applies to every page; otherwise each page's
// advisory supplies its default. Results keep extraction order regardless of
// which page finishes first. Cancelling the context aborts the whole ingest
// with the context error; partial results are never returned.
func (ing *Ingestor) Ingest(ctx context.Context, text, organization, category string) ([]PageFlow, error) {
	pages := ExtractDiagrams(text)
	if len(pages) == 0 {
		return nil, schema.NewError(schema.ErrCodeParse, "no diagrams found in document")
	}

	results := make([]PageFlow, len(pages))
	pool := newCompilePool(maxConcurrentPages)
	for i, page := range pages {
		i, page := i, page
		if err := pool.Submit(ctx, func() {
			results[i] = ing.compilePage(ctx, page, organization, category)
		}); err != nil {
			// Cancelled while waiting for a slot. Drain the in-flight
			// pages and report the cancellation rather than handing the
			// caller a partially-filled result set.
			pool.Wait()
			return nil, err
		}
	}
	pool.Wait()

	// Pages skipped mid-flight by cancellation are not usable output.
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if n := pool.Panics(); n > 0 {
		ing.logger.Error("page compilation panicked", slog.Int64("pages", n))
	}

	return results, nil
}

func (ing *Ingestor) compilePage(ctx context.Context, page Page, organization, category string) PageFlow {
	advisory := ing.registry.Suggest(page.Source)

	pageCategory := category
	if pageCategory == "" {
		pageCategory = advisory.CategoryID
	}

	flow := &schema.CompiledFlow{
		RunID:    uuid.NewString(),
		Category: pageCategory,
	}
	ctx = logging.WithIDs(ctx, flow.RunID, organization, pageCategory)

	if ctx.Err() == nil {
		g := diagram.Parse(page.Source)
		flow.Records = ing.compiler.Compile(g, organization)
		if ing.validator != nil {
			flow.Findings = ing.validator.Validate(flow.Records)
		}
		logging.LogWith(ctx, ing.logger).Info("compiled document page",
			slog.Int("page", page.Number),
			slog.Int("records", len(flow.Records)))
	}

	return PageFlow{Page: page.Number, Advisory: advisory, Flow: flow}
}
