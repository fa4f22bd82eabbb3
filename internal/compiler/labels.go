package compiler

import (
	"fmt"
	"strings"

	"github.com/rendis/ivrflow/internal/diagram"
	"github.com/rendis/ivrflow/pkg/schema"
)

// DeriveLabel maps node text to the production step label used in deployed
// call flows. The phrase rules mirror the naming conventions of the existing
// flow library; text matching no rule falls back to an ID-derived label.
func DeriveLabel(text, id string) string {
	t := strings.ToLower(text)
	has := func(phrases ...string) bool {
		for _, p := range phrases {
			if !strings.Contains(t, p) {
				return false
			}
		}
		return true
	}

	switch {
	case has("this is an electric callout", "press 1"):
		return "Live Answer"
	case has("enter your", "pin"):
		return "Enter PIN"
	case has("available", "work this callout"):
		return "Available For Callout"
	case has("accepted response"):
		return "Accept"
	case has("decline", "recorded"):
		return "Decline"
	case has("not home"):
		return "Not Home"
	case has("invalid"):
		return "Invalid Entry"
	case has("goodbye"):
		return "Goodbye"
	case has("30-second") || has("press any key"):
		return "Sleep"
	case has("qualified"):
		return "Qualified No"
	case has("problems"):
		return "Problems"
	case has("correct", "pin"):
		return "Check PIN"
	case has("disconnect"):
		return "hangup"
	}
	return "Node_" + id
}

// assignLabels derives one unique label per node, in declaration order.
// Colliding labels get a numeric suffix; records are never dropped to
// restore uniqueness.
func assignLabels(g *diagram.Graph) map[string]string {
	labels := make(map[string]string, len(g.Order))
	used := make(map[string]bool, len(g.Order))

	for _, id := range g.Order {
		base := DeriveLabel(g.Node(id).RawLabel, id)
		label := base
		for n := 2; used[label]; n++ {
			label = fmt.Sprintf("%s %d", base, n)
		}
		used[label] = true
		labels[id] = label
	}
	return labels
}

// DeriveSubCall inspects node text for result-recording phrasing and returns
// the matching side-effect invocation, or nil when the node records nothing.
func DeriveSubCall(text string) *schema.SubCallSpec {
	t := strings.ToLower(text)

	recording := false
	for _, p := range []string{"response has been", "recorded", "accepted", "decline", "not home"} {
		if strings.Contains(t, p) {
			recording = true
			break
		}
	}
	if !recording {
		return nil
	}

	switch {
	case strings.Contains(t, "accept"):
		return &schema.SubCallSpec{Name: "SaveCallResult", Args: []any{1001, "Accept"}}
	case strings.Contains(t, "decline"):
		return &schema.SubCallSpec{Name: "SaveCallResult", Args: []any{1002, "Decline"}}
	case strings.Contains(t, "qualified"):
		return &schema.SubCallSpec{Name: "SaveCallResult", Args: []any{1145, "QualNo"}}
	case strings.Contains(t, "not home"):
		return &schema.SubCallSpec{Name: "SaveCallResult", Args: []any{1006, "NotHome"}}
	}
	return nil
}
