package diagram

import (
	"regexp"
	"strings"
)

// declType discriminates the raw declarations the parser emits.
type declType int

const (
	declNode declType = iota
	declEdge
	declGroupOpen
	declGroupClose
	declDirection
	declClass
)

// decl is one raw declaration in source order. Inline node declarations found
// inside an edge are emitted as declNode entries immediately before the edge,
// so the builder never has to re-enter the edge parser.
type decl struct {
	typ       declType
	node      *Node
	edge      *Edge
	group     *Group
	direction string
	classNode string
	className string
}

var (
	idRe       = regexp.MustCompile(`^\w[\w.-]*$`)
	headerRe   = regexp.MustCompile(`^(?:flowchart|graph)\s+(\w+)`)
	subgraphRe = regexp.MustCompile(`^subgraph\s+(\w[\w.-]*)(?:\s*\[(.*?)\])?\s*$`)
	classRe    = regexp.MustCompile(`^class\s+(\w[\w.-]*)\s+(\w[\w.-]*)\s*;?$`)
	arrowRe    = regexp.MustCompile(`-->|-\.->|==>`)
	lineBrkRe  = regexp.MustCompile(`(?i)<br\s*/?>`)
	edgeLblRe  = regexp.MustCompile(`^\|([^|]*)\|\s*`)
)

// parseSource tokenizes diagram source text into an ordered declaration list.
// Lines matching no production are silently skipped: diagram sources are
// frequently hand-edited and may contain layout-only lines.
func parseSource(source string) []decl {
	var decls []decl

	for _, raw := range strings.Split(source, "\n") {
		line := strings.TrimSpace(raw)
		if line == "" || strings.HasPrefix(line, "%%") {
			continue
		}

		if m := headerRe.FindStringSubmatch(line); m != nil {
			decls = append(decls, decl{typ: declDirection, direction: m[1]})
			continue
		}

		if m := subgraphRe.FindStringSubmatch(line); m != nil {
			title := strings.TrimSpace(m[2])
			if title == "" {
				title = m[1]
			}
			decls = append(decls, decl{typ: declGroupOpen, group: &Group{
				ID:    m[1],
				Title: normalizeLabel(title),
			}})
			continue
		}

		if fields := strings.Fields(line); len(fields) == 2 && fields[0] == "direction" {
			decls = append(decls, decl{typ: declDirection, direction: fields[1]})
			continue
		}

		if line == "end" {
			decls = append(decls, decl{typ: declGroupClose})
			continue
		}

		if arrowRe.MatchString(line) {
			decls = append(decls, parseEdgeLine(line)...)
			continue
		}

		if m := classRe.FindStringSubmatch(line); m != nil {
			decls = append(decls, decl{typ: declClass, classNode: m[1], className: m[2]})
			continue
		}

		if node, ok := parseNodeToken(line); ok {
			decls = append(decls, decl{typ: declNode, node: node})
			continue
		}
		// Unrecognized line: tolerated, not an error.
	}

	return decls
}

// parseEdgeLine splits an edge line on its arrow tokens and emits a declNode
// for every inline endpoint declaration followed by the edge itself. Chains
// (A --> B --> C) produce one edge per adjacent pair.
func parseEdgeLine(line string) []decl {
	segments := arrowRe.Split(line, -1)
	if len(segments) < 2 {
		return nil
	}

	var decls []decl
	prevID := ""

	for i, seg := range segments {
		seg = strings.TrimSpace(seg)
		label := ""
		if i > 0 {
			if m := edgeLblRe.FindStringSubmatch(seg); m != nil {
				label = normalizeLabel(m[1])
				seg = strings.TrimSpace(seg[len(m[0]):])
			}
		}

		id, nodeDecl := parseEndpoint(seg)
		if id == "" {
			return nil // malformed endpoint: skip the whole line
		}
		if nodeDecl != nil {
			decls = append(decls, decl{typ: declNode, node: nodeDecl})
		}
		if i > 0 {
			decls = append(decls, decl{typ: declEdge, edge: &Edge{
				Source: prevID,
				Target: id,
				Label:  label,
			}})
		}
		prevID = id
	}

	return decls
}

// parseEndpoint resolves an edge endpoint token: either a bare node ID or a
// full inline declaration, which is extracted and returned for registration.
func parseEndpoint(token string) (string, *Node) {
	if node, ok := parseNodeToken(token); ok {
		return node.ID, node
	}
	if idRe.MatchString(token) {
		return token, nil
	}
	return "", nil
}

// bracketStyles maps declaration opener/closer pairs to node kinds, checked
// longest-opener first. Unknown doubled styles fall back to process.
var bracketStyles = []struct {
	open, close string
	kind        NodeKind
}{
	{"((", "))", NodeKindSubroutine},
	{"[[", "]]", NodeKindProcess},
	{"[(", ")]", NodeKindProcess},
	{"{{", "}}", NodeKindProcess},
	{"[", "]", NodeKindProcess},
	{"{", "}", NodeKindDecision},
	{"(", ")", NodeKindTerminal},
}

// parseNodeToken parses an `ID[label]`-style declaration, deriving the node
// kind from the bracket style.
func parseNodeToken(token string) (*Node, bool) {
	token = strings.TrimSpace(token)
	i := strings.IndexAny(token, "[({")
	if i <= 0 {
		return nil, false
	}

	id := strings.TrimSpace(token[:i])
	if !idRe.MatchString(id) {
		return nil, false
	}

	rest := token[i:]
	for _, style := range bracketStyles {
		if !strings.HasPrefix(rest, style.open) || !strings.HasSuffix(rest, style.close) {
			continue
		}
		if len(rest) < len(style.open)+len(style.close) {
			continue
		}
		content := rest[len(style.open) : len(rest)-len(style.close)]
		return &Node{
			ID:       id,
			Kind:     style.kind,
			RawLabel: normalizeLabel(content),
		}, true
	}
	return nil, false
}

// normalizeLabel converts HTML-style line breaks and escaped newlines to real
// newlines, strips surrounding quotes, and trims whitespace.
func normalizeLabel(s string) string {
	s = lineBrkRe.ReplaceAllString(s, "\n")
	s = strings.ReplaceAll(s, `\n`, "\n")
	s = strings.TrimSpace(s)
	if len(s) >= 2 {
		if (s[0] == '"' && s[len(s)-1] == '"') || (s[0] == '\'' && s[len(s)-1] == '\'') {
			s = s[1 : len(s)-1]
		}
	}
	return strings.TrimSpace(s)
}
