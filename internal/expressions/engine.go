package expressions

import (
	"context"

	"github.com/rendis/ivrflow/pkg/schema"
)

// Engine handles the guard expressions attached to call-flow records.
// Two implementations: Expr (default, tolerant of bare identifiers) and CEL.
type Engine interface {
	Name() string
	// Check compiles the expression without evaluating it. The validator uses
	// it to flag guards that can never run.
	Check(expression string) error
	// Evaluate runs the expression against runtime call state.
	Evaluate(ctx context.Context, expression string, data map[string]any) (any, error)
}

// New returns the engine registered under name. An empty name selects the
// default Expr engine.
func New(name string) (Engine, error) {
	switch name {
	case "", "expr":
		return NewExprEngine(), nil
	case "cel":
		return NewCELEngine()
	}
	return nil, schema.NewErrorf(schema.ErrCodeValidation, "unknown expression engine %q", name)
}
