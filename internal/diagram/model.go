package diagram

import "strings"

// NodeKind classifies a diagram node by the bracket style of its declaration.
type NodeKind string

const (
	NodeKindProcess    NodeKind = "process"    // A["text"]
	NodeKindDecision   NodeKind = "decision"   // A{"text"}
	NodeKindTerminal   NodeKind = "terminal"   // A("text")
	NodeKindSubroutine NodeKind = "subroutine" // A(("text"))
)

// Node is a single declared node. Immutable after graph build; the first
// declaration of an ID wins and later redeclarations are discarded.
type Node struct {
	ID       string
	Kind     NodeKind
	RawLabel string // normalized label, embedded line breaks preserved as \n
	GroupID  string // owning group, "" when top-level
	Class    string // style class name, "" when unset
}

// Lines splits the label into its original line segments, trimmed, with
// empty segments dropped.
func (n *Node) Lines() []string {
	parts := strings.Split(n.RawLabel, "\n")
	lines := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			lines = append(lines, p)
		}
	}
	return lines
}

// Edge is a directed connection between two node IDs. Label carries the
// transition condition text, "" when the arrow was unlabeled.
type Edge struct {
	Source string
	Target string
	Label  string
}

// Group is a subgraph block. Direction is a layout hint retained for
// round-trip fidelity only.
type Group struct {
	ID        string
	Title     string
	Direction string
	Members   []string
}

// Graph is the merged result of one diagram source: a node table with
// declaration order, an edge list, and resolved groups. Cycles are legal.
type Graph struct {
	Nodes     map[string]*Node
	Order     []string // node IDs in first-declaration order
	Edges     []Edge
	Groups    []*Group
	Direction string // top-level flowchart direction hint
}

// Node returns the node with the given ID, or nil.
func (g *Graph) Node(id string) *Node {
	return g.Nodes[id]
}

// Outgoing returns the edges whose source is id, in declaration order.
func (g *Graph) Outgoing(id string) []Edge {
	var out []Edge
	for _, e := range g.Edges {
		if e.Source == id {
			out = append(out, e)
		}
	}
	return out
}

// StartNodes returns the IDs with no incoming edge, in declaration order.
// Self-loops do not disqualify a node from being a start node.
func (g *Graph) StartNodes() []string {
	incoming := make(map[string]bool, len(g.Edges))
	for _, e := range g.Edges {
		if e.Source != e.Target {
			incoming[e.Target] = true
		}
	}
	var starts []string
	for _, id := range g.Order {
		if !incoming[id] {
			starts = append(starts, id)
		}
	}
	return starts
}
