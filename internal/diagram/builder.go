package diagram

// Parse tokenizes diagram source text and merges the declarations into a
// single Graph. Parsing is total: malformed lines are dropped, never fatal.
func Parse(source string) *Graph {
	return buildGraph(parseSource(source))
}

// buildGraph merges an ordered declaration list into one Graph. Node
// registration is first-wins: later redeclarations of a known ID, including
// inline declarations inside edges, are discarded after their ID is taken.
// No cycle detection happens here; cycles model interactive repeat loops.
func buildGraph(decls []decl) *Graph {
	g := &Graph{Nodes: make(map[string]*Node)}

	var openGroup *Group

	register := func(node *Node) {
		if _, known := g.Nodes[node.ID]; known {
			return
		}
		if openGroup != nil {
			node.GroupID = openGroup.ID
			openGroup.Members = append(openGroup.Members, node.ID)
		}
		g.Nodes[node.ID] = node
		g.Order = append(g.Order, node.ID)
	}

	for _, d := range decls {
		switch d.typ {
		case declNode:
			register(d.node)

		case declEdge:
			g.Edges = append(g.Edges, *d.edge)

		case declGroupOpen:
			openGroup = d.group
			g.Groups = append(g.Groups, d.group)

		case declGroupClose:
			openGroup = nil

		case declDirection:
			if openGroup != nil {
				openGroup.Direction = d.direction
			} else {
				g.Direction = d.direction
			}

		case declClass:
			if node, ok := g.Nodes[d.classNode]; ok {
				node.Class = d.className
			}
		}
	}

	return g
}
