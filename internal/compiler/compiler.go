package compiler

import (
	"log/slog"
	"strconv"
	"strings"

	"github.com/rendis/ivrflow/internal/diagram"
	"github.com/rendis/ivrflow/pkg/schema"
)

// guardPrefix marks a label line carrying a suppression expression instead
// of spoken text.
const guardPrefix = "guard:"

// fallbackApology is the fixed spoken text of the appended fallback record.
const fallbackApology = "I'm sorry you are having problems."

// PromptResolver maps a transcript fragment to a prompt identifier and a
// match confidence in [0,1]. A zero confidence means the returned identifier
// is a placeholder.
type PromptResolver interface {
	Resolve(fragment, organization string) (promptID string, confidence float64)
}

// Compiler turns a diagram graph into an ordered call-flow record sequence.
// A Compiler holds no per-graph state and may be shared across compilations
// as long as the resolver it consults is itself read-only.
type Compiler struct {
	cfg      Config
	resolver PromptResolver
	logger   *slog.Logger
}

// New creates a Compiler. A nil resolver disables prompt resolution; every
// prompt then compiles to the placeholder identifier.
func New(cfg Config, resolver PromptResolver, logger *slog.Logger) *Compiler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Compiler{cfg: cfg, resolver: resolver, logger: logger}
}

// Compile traverses the graph depth-first from its start nodes and emits one
// record per node in traversal order, then appends the fixed fallback record.
// Compilation is total: structural defects surface as validator findings on
// the output, never as a failed compile.
func (c *Compiler) Compile(g *diagram.Graph, organization string) []schema.CallFlowRecord {
	labels := assignLabels(g)
	order := traversalOrder(g)

	records := make([]schema.CallFlowRecord, 0, len(order)+1)
	for _, id := range order {
		records = append(records, c.compileNode(g, g.Node(id), labels, organization))
	}

	if !hasLabel(records, c.cfg.FallbackLabel) {
		records = append(records, c.fallbackRecord(organization))
	}

	c.logger.Debug("flow compiled",
		slog.Int("nodes", len(order)),
		slog.Int("records", len(records)))
	return records
}

// traversalOrder visits depth-first from each start node in declaration
// order, then sweeps up any node still unvisited in table order. The sweep
// covers graphs with no entry point, such as pure cycles. The visited set
// guarantees each node compiles exactly once even when cycles are present.
func traversalOrder(g *diagram.Graph) []string {
	visited := make(map[string]bool, len(g.Order))
	order := make([]string, 0, len(g.Order))

	var visit func(id string)
	visit = func(id string) {
		if visited[id] || g.Node(id) == nil {
			return
		}
		visited[id] = true
		order = append(order, id)
		for _, e := range g.Outgoing(id) {
			visit(e.Target)
		}
	}

	for _, id := range g.StartNodes() {
		visit(id)
	}
	for _, id := range g.Order {
		visit(id)
	}
	return order
}

func (c *Compiler) compileNode(g *diagram.Graph, node *diagram.Node, labels map[string]string, organization string) schema.CallFlowRecord {
	spoken, guard := splitGuard(node.Lines())

	rec := schema.CallFlowRecord{
		Label:          labels[node.ID],
		SpokenLog:      spoken,
		PromptSequence: c.resolvePrompts(spoken, organization),
		Guard:          guard,
		SubCall:        DeriveSubCall(node.RawLabel),
		NoBarge:        node.Kind == diagram.NodeKindTerminal,
	}

	out := g.Outgoing(node.ID)
	switch {
	case node.Kind == diagram.NodeKindDecision:
		rec.Input, rec.Branch = c.decisionSpec(out, labels)

	case len(out) == 1:
		rec.Goto = resolveTarget(out[0].Target, labels)
		if out[0].Target == node.ID {
			// A direct self-edge is a bounded repeat, not an infinite spin.
			rec.Loop = &schema.LoopSpec{
				Name:     rec.Label,
				MaxIter:  c.cfg.MaxTries,
				Overflow: c.cfg.FallbackLabel,
			}
		}
	}
	return rec
}

// decisionSpec assigns each outgoing edge a 1-based sequential choice key in
// declaration order and routes the fixed error and none keys to the fallback
// terminal. A decision with no outgoing edges keeps only the fixed keys; the
// validator reports it as a warning.
func (c *Compiler) decisionSpec(out []diagram.Edge, labels map[string]string) (*schema.InputSpec, schema.BranchMap) {
	branch := make(schema.BranchMap, len(out)+2)
	keys := make([]string, 0, len(out))
	for i, e := range out {
		key := strconv.Itoa(i + 1)
		branch[key] = resolveTarget(e.Target, labels)
		keys = append(keys, key)
	}
	branch["error"] = c.cfg.FallbackLabel
	branch["none"] = c.cfg.FallbackLabel

	return &schema.InputSpec{
		NumDigits:     c.cfg.NumDigits,
		MaxTries:      c.cfg.MaxTries,
		MaxTime:       c.cfg.MaxTime,
		ValidChoices:  strings.Join(keys, "|"),
		ErrorPrompt:   c.cfg.ErrorPrompt,
		TimeoutPrompt: c.cfg.TimeoutPrompt,
	}, branch
}

// resolvePrompts produces one prompt identifier per spoken segment. The two
// slices stay parallel; a resolution miss yields the placeholder, never a
// shorter sequence.
func (c *Compiler) resolvePrompts(spoken []string, organization string) []string {
	prompts := make([]string, len(spoken))
	for i, segment := range spoken {
		if c.resolver == nil {
			prompts[i] = schema.PromptPlaceholder
			continue
		}
		id, confidence := c.resolver.Resolve(segment, organization)
		prompts[i] = id
		if confidence == 0 {
			c.logger.Debug("no voice match for segment", slog.String("segment", segment))
		}
	}
	return prompts
}

// fallbackRecord is the fixed terminal appended to every compiled sequence:
// a generic apology with barge-in suppressed, then call termination.
func (c *Compiler) fallbackRecord(organization string) schema.CallFlowRecord {
	return schema.CallFlowRecord{
		Label:          c.cfg.FallbackLabel,
		SpokenLog:      []string{fallbackApology},
		PromptSequence: c.resolvePrompts([]string{fallbackApology}, organization),
		NoBarge:        true,
		Goto:           string(schema.TerminalHangup),
	}
}

// splitGuard separates guard-prefixed label lines from spoken text. Only the
// first guard line is kept; any further ones are dropped.
func splitGuard(lines []string) (spoken []string, guard string) {
	spoken = make([]string, 0, len(lines))
	for _, line := range lines {
		if expr, ok := cutGuard(line); ok {
			if guard == "" {
				guard = expr
			}
			continue
		}
		spoken = append(spoken, line)
	}
	return spoken, guard
}

func cutGuard(line string) (string, bool) {
	if len(line) < len(guardPrefix) || !strings.EqualFold(line[:len(guardPrefix)], guardPrefix) {
		return "", false
	}
	return strings.TrimSpace(line[len(guardPrefix):]), true
}

// resolveTarget maps a node ID to its compiled label. Unknown IDs pass
// through unchanged so the validator can report them as dangling references.
func resolveTarget(id string, labels map[string]string) string {
	if label, ok := labels[id]; ok {
		return label
	}
	return id
}

func hasLabel(records []schema.CallFlowRecord, label string) bool {
	for _, r := range records {
		if r.Label == label {
			return true
		}
	}
	return false
}
