package validation

import (
	"fmt"

	"github.com/rendis/ivrflow/pkg/schema"
)

// Finding codes emitted by the flow validator.
const (
	CodeEmptyLabel       = "EMPTY_LABEL"
	CodeDuplicateLabel   = "DUPLICATE_LABEL"
	CodeDanglingTarget   = "DANGLING_TARGET"
	CodeUnknownSubCall   = "UNKNOWN_SUBCALL"
	CodeNoRealBranches   = "NO_REAL_BRANCHES"
	CodePromptSkew       = "PROMPT_SKEW"
	CodeUnresolvedPrompt = "UNRESOLVED_PROMPT"
	CodeBadGuard         = "BAD_GUARD"
)

// GuardChecker compile-checks a guard expression without evaluating it.
// Implemented by the expression engines.
type GuardChecker interface {
	Check(expression string) error
}

// FlowValidator checks a compiled record sequence for structural soundness.
// All findings are diagnostics: the validator never mutates the sequence and
// never fails, so callers always get a usable (if imperfect) flow back.
type FlowValidator struct {
	guards GuardChecker
}

// NewFlowValidator creates a validator. A nil checker skips guard checks.
func NewFlowValidator(guards GuardChecker) *FlowValidator {
	return &FlowValidator{guards: guards}
}

// Validate runs all structural checks over the sequence.
func (v *FlowValidator) Validate(records []schema.CallFlowRecord) *schema.ValidationResult {
	result := &schema.ValidationResult{}

	labels := make(map[string]bool, len(records))
	for i, rec := range records {
		path := recordPath(i, rec.Label)
		if rec.Label == "" {
			result.AddError(path, CodeEmptyLabel, "record has no label")
			continue
		}
		if labels[rec.Label] {
			result.AddError(path, CodeDuplicateLabel,
				fmt.Sprintf("label %q appears more than once", rec.Label))
		}
		labels[rec.Label] = true
	}

	for i, rec := range records {
		path := recordPath(i, rec.Label)
		v.checkTargets(&rec, path, labels, result)
		v.checkPrompts(&rec, path, result)
		v.checkGuard(&rec, path, result)
	}

	return result
}

// checkTargets verifies every branch value, goto, and loop overflow resolves
// to a compiled label or one of the terminal pseudo-targets, and that any
// sub-call names a known subroutine.
func (v *FlowValidator) checkTargets(rec *schema.CallFlowRecord, path string, labels map[string]bool, result *schema.ValidationResult) {
	check := func(field, target string) {
		if target == "" || labels[target] || schema.IsTerminalTarget(target) {
			return
		}
		result.AddError(path+"."+field, CodeDanglingTarget,
			fmt.Sprintf("target %q does not match any compiled label", target))
	}

	for choice, target := range rec.Branch {
		check("branch."+choice, target)
	}
	check("goto", rec.Goto)
	if rec.Loop != nil {
		check("loop.overflow", rec.Loop.Overflow)
	}

	if rec.SubCall != nil && !schema.KnownSubCalls[rec.SubCall.Name] {
		result.AddError(path+".gosub", CodeUnknownSubCall,
			fmt.Sprintf("subroutine %q is not known", rec.SubCall.Name))
	}

	if rec.Input != nil {
		real := 0
		for choice := range rec.Branch {
			if choice != "error" && choice != "none" {
				real++
			}
		}
		if real == 0 {
			result.AddWarning(path+".branch", CodeNoRealBranches,
				"decision record has no branches beyond the fixed fallback keys")
		}
	}
}

// checkPrompts enforces the parallel-array invariant and flags placeholders
// for manual review.
func (v *FlowValidator) checkPrompts(rec *schema.CallFlowRecord, path string, result *schema.ValidationResult) {
	if len(rec.SpokenLog) != len(rec.PromptSequence) {
		result.AddError(path+".playPrompt", CodePromptSkew,
			fmt.Sprintf("%d spoken segments but %d prompts", len(rec.SpokenLog), len(rec.PromptSequence)))
	}
	for i, prompt := range rec.PromptSequence {
		if prompt == schema.PromptPlaceholder {
			result.AddWarning(fmt.Sprintf("%s.playPrompt[%d]", path, i),
				CodeUnresolvedPrompt, "no voice recording matched; needs manual review")
		}
	}
}

func (v *FlowValidator) checkGuard(rec *schema.CallFlowRecord, path string, result *schema.ValidationResult) {
	if rec.Guard == "" || v.guards == nil {
		return
	}
	if err := v.guards.Check(rec.Guard); err != nil {
		result.AddWarning(path+".guard", CodeBadGuard,
			fmt.Sprintf("guard does not compile: %v", err))
	}
}

func recordPath(i int, label string) string {
	if label == "" {
		return fmt.Sprintf("records[%d]", i)
	}
	return fmt.Sprintf("records[%d](%s)", i, label)
}
