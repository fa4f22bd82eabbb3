package ingest

import (
	"fmt"
	"sort"
	"strings"

	"github.com/rendis/ivrflow/pkg/schema"
)

// Direction tells whether a callout type answers incoming calls or places
// outgoing ones. Only inbound flows carry the "_ib" filename suffix.
type Direction string

const (
	DirectionInbound  Direction = "ib"
	DirectionOutbound Direction = "ob"
)

// CalloutType describes one deployable flow category: the numeric category
// id, a display name, call direction, the schema prefix used in output
// filenames, and the feature tags the category implies.
type CalloutType struct {
	ID           string
	Name         string
	Description  string
	Direction    Direction
	SchemaPrefix string
	Features     []string
}

// Filename derives the output artifact name for this callout type. A
// non-empty schema overrides the type's own prefix. Inbound flows get the
// "_ib" suffix; outbound flows use the base name.
func (t CalloutType) Filename(schemaOverride string) string {
	prefix := t.SchemaPrefix
	if schemaOverride != "" {
		prefix = schemaOverride
	}
	suffix := ""
	if t.Direction == DirectionInbound {
		suffix = "_ib"
	}
	return fmt.Sprintf("%s_%s%s.js", prefix, t.ID, suffix)
}

// DisplayName is the human-readable form used in logs and tool output.
func (t CalloutType) DisplayName() string {
	return fmt.Sprintf("%s (%s)", t.Name, t.ID)
}

// Registry holds the known callout types and answers content-based category
// suggestions. The zero value is unusable; construct with NewRegistry.
type Registry struct {
	types map[string]CalloutType
}

// NewRegistry creates a registry seeded with the built-in callout types.
func NewRegistry() *Registry {
	r := &Registry{types: make(map[string]CalloutType, len(builtinCalloutTypes))}
	for _, t := range builtinCalloutTypes {
		r.types[t.ID] = t
	}
	return r
}

// Get returns the callout type registered under id.
func (r *Registry) Get(id string) (CalloutType, bool) {
	t, ok := r.types[id]
	return t, ok
}

// All returns every registered callout type ordered by id.
func (r *Registry) All() []CalloutType {
	out := make([]CalloutType, 0, len(r.types))
	for _, t := range r.types {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// ByDirection returns the registered types matching dir, ordered by id.
func (r *Registry) ByDirection(dir Direction) []CalloutType {
	var out []CalloutType
	for _, t := range r.All() {
		if t.Direction == dir {
			out = append(out, t)
		}
	}
	return out
}

// Register adds or replaces a callout type. Custom types with an id already
// in the registry overwrite the built-in entry.
func (r *Registry) Register(t CalloutType) {
	r.types[t.ID] = t
}

// suggestRule pairs a content predicate with the category it indicates and
// the confidence to report when it fires. Rules are checked in order and the
// first match wins, so more specific patterns come first.
type suggestRule struct {
	categoryID string
	confidence float64
	match      func(content string) bool
}

var suggestRules = []suggestRule{
	{"2050", 0.9, func(c string) bool { return has(c, "test") && has(c, "callout") }},
	{"2100", 0.9, func(c string) bool { return has(c, "reu") && (has(c, "notification") || has(c, "message")) }},
	{"2025", 0.9, func(c string) bool { return has(c, "fill shift") || has(c, "pre-arranged") }},
	{"1001", 0.85, func(c string) bool { return has(c, "pin") && has(c, "enter") }},
	{"1025", 0.85, func(c string) bool { return (has(c, "accept") && has(c, "decline")) || has(c, "emergency") }},
	{"1072", 0.7, func(c string) bool { return has(c, "welcome") && (has(c, "press") || has(c, "menu")) }},
	{"1006", 0.6, func(c string) bool { return has(c, "notification") || has(c, "message") }},
}

// fallbackCategory is reported when no rule fires. General menu is the
// safest assumption for an unclassified diagram.
const (
	fallbackCategory   = "1072"
	fallbackConfidence = 0.25
)

// Suggest analyzes diagram source text and returns the advisory for the most
// likely callout category. The advisory is a hint only; callers supplying an
// explicit category must ignore it.
func (r *Registry) Suggest(source string) schema.Advisory {
	content := strings.ToLower(source)
	for _, rule := range suggestRules {
		if rule.match(content) {
			return schema.Advisory{CategoryID: rule.categoryID, Confidence: rule.confidence}
		}
	}
	return schema.Advisory{CategoryID: fallbackCategory, Confidence: fallbackConfidence}
}

func has(content, phrase string) bool {
	return strings.Contains(content, phrase)
}

var builtinCalloutTypes = []CalloutType{
	{
		ID:           "1001",
		Name:         "Employee PIN Verification",
		Description:  "Basic employee verification with PIN entry",
		Direction:    DirectionInbound,
		SchemaPrefix: "EMPLOYEE_VERIFY",
		Features:     []string{"pin_entry", "employee_verification"},
	},
	{
		ID:           "1006",
		Name:         "Notification Only",
		Description:  "Information delivery without response required",
		Direction:    DirectionInbound,
		SchemaPrefix: "NOTIFY",
		Features:     []string{"notification", "confirmation"},
	},
	{
		ID:           "1009",
		Name:         "Error Handling",
		Description:  "Error handling and retry logic",
		Direction:    DirectionInbound,
		SchemaPrefix: "ERROR",
		Features:     []string{"error_handling", "retry_logic"},
	},
	{
		ID:           "1025",
		Name:         "Emergency Callout Response",
		Description:  "Emergency callout with accept/decline options",
		Direction:    DirectionInbound,
		SchemaPrefix: "EMERGENCY",
		Features:     []string{"accept_decline", "emergency_response"},
	},
	{
		ID:           "1050",
		Name:         "Scheduled Overtime",
		Description:  "Scheduled overtime callout for utility workers",
		Direction:    DirectionOutbound,
		SchemaPrefix: "SCHEDULED_OT",
		Features:     []string{"scheduled_work", "overtime", "answering_machine", "pin_check"},
	},
	{
		ID:           "1072",
		Name:         "General IVR Menu",
		Description:  "General purpose IVR menu system",
		Direction:    DirectionInbound,
		SchemaPrefix: "GENERAL",
		Features:     []string{"menu_navigation", "dtmf_input"},
	},
	{
		ID:           "2001",
		Name:         "Automated Callout",
		Description:  "Automated outbound callout system",
		Direction:    DirectionOutbound,
		SchemaPrefix: "AUTO_CALLOUT",
		Features:     []string{"answering_machine", "callback_number"},
	},
	{
		ID:           "2025",
		Name:         "Fill Shift Callout",
		Description:  "Fill shift and overtime callouts",
		Direction:    DirectionOutbound,
		SchemaPrefix: "FILL_SHIFT",
		Features:     []string{"pre_arranged", "qualified_no"},
	},
	{
		ID:           "2050",
		Name:         "Test Callout",
		Description:  "Test callout for system verification",
		Direction:    DirectionOutbound,
		SchemaPrefix: "TEST",
		Features:     []string{"test_mode", "no_work_required"},
	},
	{
		ID:           "2100",
		Name:         "REU Notification",
		Description:  "REU-specific notification callout",
		Direction:    DirectionOutbound,
		SchemaPrefix: "REU_NOTIFY",
		Features:     []string{"reu_specific", "notification"},
	},
}
