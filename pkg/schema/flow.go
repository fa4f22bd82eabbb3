package schema

// CallFlowRecord is one compiled instruction step in an IVR call flow.
// Records are emitted in traversal order; Label is unique within a sequence.
type CallFlowRecord struct {
	Label          string       `json:"label"`
	SpokenLog      []string     `json:"log"`
	PromptSequence []string     `json:"playPrompt"`
	Input          *InputSpec   `json:"getDigits,omitempty"`
	Branch         BranchMap    `json:"branch,omitempty"`
	Goto           string       `json:"goto,omitempty"`
	Loop           *LoopSpec    `json:"loop,omitempty"`
	Guard          string       `json:"guard,omitempty"`
	SubCall        *SubCallSpec `json:"gosub,omitempty"`
	NoBarge        bool         `json:"nobarge,omitempty"`
}

// InputSpec configures DTMF digit collection on a decision record.
type InputSpec struct {
	NumDigits     int    `json:"numDigits"`
	MaxTries      int    `json:"maxTries"`
	MaxTime       int    `json:"maxTime"`
	ValidChoices  string `json:"validChoices"`
	ErrorPrompt   string `json:"errorPrompt"`
	TimeoutPrompt string `json:"timeoutPrompt,omitempty"`
}

// BranchMap maps a DTMF choice (or the fixed "error"/"none" keys) to the
// label of the record the runtime jumps to.
type BranchMap map[string]string

// LoopSpec bounds a repeat cycle on a record.
type LoopSpec struct {
	Name     string `json:"name"`
	MaxIter  int    `json:"max"`
	Overflow string `json:"overflow"` // label taken when MaxIter is exhausted
}

// SubCallSpec is a named side-effect invocation with positional arguments,
// e.g. SaveCallResult(1001, "Accept").
type SubCallSpec struct {
	Name string `json:"name"`
	Args []any  `json:"args"`
}

// TerminalTarget enumerates the pseudo-targets a branch or goto may point to
// without a matching compiled record. Validated structurally, never by ad-hoc
// string comparison at call sites.
type TerminalTarget string

const (
	TerminalHangup   TerminalTarget = "hangup"
	TerminalProblems TerminalTarget = "Problems"
)

// IsTerminalTarget reports whether target is one of the fixed pseudo-targets.
func IsTerminalTarget(target string) bool {
	switch TerminalTarget(target) {
	case TerminalHangup, TerminalProblems:
		return true
	}
	return false
}

// KnownSubCalls is the closed set of subroutine names a SubCallSpec may
// reference. The validator reports anything else as a dangling reference.
var KnownSubCalls = map[string]bool{
	"SaveCallResult": true,
}

// PromptPlaceholder is emitted in a prompt sequence when no voice record
// scores above the match threshold. Flows carrying it need manual review
// before deployment.
const PromptPlaceholder = "[VOICE FILE NEEDED]"

// Advisory is the optional hint produced by the document-ingestion
// collaborator: a suggested callout category plus a confidence in [0,1].
// The core only uses it as a default when the caller supplies no category.
type Advisory struct {
	CategoryID string  `json:"category_id"`
	Confidence float64 `json:"confidence"`
}

// CompiledFlow is the full output of one diagram compilation: the ordered
// record sequence plus the validator's findings.
type CompiledFlow struct {
	RunID    string            `json:"run_id"`
	Category string            `json:"category,omitempty"`
	Records  []CallFlowRecord  `json:"records"`
	Findings *ValidationResult `json:"findings,omitempty"`
}
