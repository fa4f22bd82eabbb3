package diagram

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// --- Node declarations ---

func TestParse_NodeKinds(t *testing.T) {
	g := Parse(`
		flowchart TD
		A["Welcome"]
		B{"Valid PIN?"}
		C("Goodbye")
		D(("SaveResult"))
	`)

	require.Len(t, g.Order, 4)
	assert.Equal(t, NodeKindProcess, g.Node("A").Kind)
	assert.Equal(t, NodeKindDecision, g.Node("B").Kind)
	assert.Equal(t, NodeKindTerminal, g.Node("C").Kind)
	assert.Equal(t, NodeKindSubroutine, g.Node("D").Kind)
	assert.Equal(t, "TD", g.Direction)
}

func TestParse_UnknownBracketStyleDefaultsToProcess(t *testing.T) {
	g := Parse(`
		A[["stadium"]]
		B[("database")]
		C{{"hexagon"}}
	`)

	require.Len(t, g.Order, 3)
	for _, id := range g.Order {
		assert.Equal(t, NodeKindProcess, g.Node(id).Kind, id)
	}
}

func TestParse_LabelNormalization(t *testing.T) {
	g := Parse(`A["Welcome<br/>Press 1, if this is<br>the employee"]`)

	node := g.Node("A")
	require.NotNil(t, node)
	assert.Equal(t, "Welcome\nPress 1, if this is\nthe employee", node.RawLabel)
	assert.Equal(t, []string{"Welcome", "Press 1, if this is", "the employee"}, node.Lines())
}

func TestParse_QuoteStripping(t *testing.T) {
	g := Parse(`A["Hello"]` + "\n" + `B['Bye']`)

	assert.Equal(t, "Hello", g.Node("A").RawLabel)
	assert.Equal(t, "Bye", g.Node("B").RawLabel)
}

func TestParse_FirstDeclarationWins(t *testing.T) {
	g := Parse(`
		X["first label"]
		X["second label"]
	`)

	require.Len(t, g.Order, 1)
	assert.Equal(t, "first label", g.Node("X").RawLabel)
}

// --- Edges ---

func TestParse_EdgeWithLabel(t *testing.T) {
	g := Parse(`
		A["Hello"]
		B["Bye"]
		A -->|"1"| B
	`)

	require.Len(t, g.Edges, 1)
	assert.Equal(t, Edge{Source: "A", Target: "B", Label: "1"}, g.Edges[0])
}

func TestParse_EdgeWithInlineDeclarations(t *testing.T) {
	g := Parse(`A["Hello"] -->|yes| B{"Continue?"}`)

	require.Len(t, g.Order, 2)
	assert.Equal(t, NodeKindProcess, g.Node("A").Kind)
	assert.Equal(t, NodeKindDecision, g.Node("B").Kind)
	require.Len(t, g.Edges, 1)
	assert.Equal(t, "yes", g.Edges[0].Label)
}

func TestParse_InlineDeclarationFirstWins(t *testing.T) {
	g := Parse(`
		A["original"]
		A["shadow"] --> B["next"]
	`)

	assert.Equal(t, "original", g.Node("A").RawLabel)
	require.Len(t, g.Edges, 1)
	assert.Equal(t, "A", g.Edges[0].Source)
}

func TestParse_EdgeChain(t *testing.T) {
	g := Parse(`A["one"] --> B["two"] --> C["three"]`)

	require.Len(t, g.Edges, 2)
	assert.Equal(t, "A", g.Edges[0].Source)
	assert.Equal(t, "B", g.Edges[0].Target)
	assert.Equal(t, "B", g.Edges[1].Source)
	assert.Equal(t, "C", g.Edges[1].Target)
}

func TestParse_DottedAndThickArrows(t *testing.T) {
	g := Parse(`
		A["a"] -.-> B["b"]
		B ==> C["c"]
	`)

	require.Len(t, g.Edges, 2)
	assert.Equal(t, "B", g.Edges[0].Target)
	assert.Equal(t, "C", g.Edges[1].Target)
}

func TestParse_EdgeToUndeclaredID(t *testing.T) {
	// The edge is kept even though Z is never declared; the validator
	// reports the dangling reference after compilation.
	g := Parse(`
		A["a"]
		A --> Z
	`)

	require.Len(t, g.Edges, 1)
	assert.Equal(t, "Z", g.Edges[0].Target)
	assert.Nil(t, g.Node("Z"))
}

// --- Groups, classes, tolerance ---

func TestParse_GroupWithDirection(t *testing.T) {
	g := Parse(`
		subgraph menu["Main Menu"]
		direction LR
		A["Option one"]
		B["Option two"]
		end
		C["Outside"]
	`)

	require.Len(t, g.Groups, 1)
	grp := g.Groups[0]
	assert.Equal(t, "menu", grp.ID)
	assert.Equal(t, "Main Menu", grp.Title)
	assert.Equal(t, "LR", grp.Direction)
	assert.Equal(t, []string{"A", "B"}, grp.Members)
	assert.Equal(t, "menu", g.Node("A").GroupID)
	assert.Equal(t, "", g.Node("C").GroupID)
}

func TestParse_GroupTitleDefaultsToID(t *testing.T) {
	g := Parse(`
		subgraph intro
		A["hi"]
		end
	`)

	require.Len(t, g.Groups, 1)
	assert.Equal(t, "intro", g.Groups[0].Title)
}

func TestParse_ClassAssignment(t *testing.T) {
	g := Parse(`
		A["hello"]
		class A highlighted
		class Ghost highlighted
	`)

	assert.Equal(t, "highlighted", g.Node("A").Class)
	assert.Nil(t, g.Node("Ghost"))
}

func TestParse_SkipsCommentsAndLayoutLines(t *testing.T) {
	g := Parse(`
		%% this is a comment
		flowchart TD
		classDef highlighted fill:#f96
		style A fill:#ccc
		linkStyle 0 stroke:red
		A["only node"]
	`)

	require.Len(t, g.Order, 1)
	assert.Empty(t, g.Edges)
}

func TestParse_EmptySource(t *testing.T) {
	g := Parse("")

	assert.Empty(t, g.Order)
	assert.Empty(t, g.Edges)
	assert.Empty(t, g.Groups)
}

// --- Graph queries ---

func TestGraph_StartNodes(t *testing.T) {
	g := Parse(`
		A["start"] --> B["mid"]
		B --> C["end"]
		D["island"]
	`)

	assert.Equal(t, []string{"A", "D"}, g.StartNodes())
}

func TestGraph_StartNodes_PureCycle(t *testing.T) {
	g := Parse(`
		A["a"] --> B["b"]
		B --> A
	`)

	assert.Empty(t, g.StartNodes())
}

func TestGraph_StartNodes_SelfLoopStillStarts(t *testing.T) {
	g := Parse(`A["repeat me"] --> A`)

	assert.Equal(t, []string{"A"}, g.StartNodes())
}

func TestGraph_Outgoing_PreservesDeclarationOrder(t *testing.T) {
	g := Parse(`
		B{"choose"}
		B -->|1| C["c"]
		B -->|2| D["d"]
		B -->|3| E["e"]
	`)

	out := g.Outgoing("B")
	require.Len(t, out, 3)
	assert.Equal(t, []string{"C", "D", "E"}, []string{out[0].Target, out[1].Target, out[2].Target})
}
