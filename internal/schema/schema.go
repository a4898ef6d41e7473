// Package schema validates event operands at append time.
//
// The shapes live in an embedded CUE file, one definition per event
// kind. Validation is deliberately one-sided: the write path rejects
// malformed operands before they reach the log, while the replay path
// never validates: the log may hold entries from older clients, and
// the projector's defensive filtering is the contract there.
package schema

import (
	_ "embed"
	"fmt"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"

	"github.com/inkfold/inkfold/internal/eo"
)

//go:embed operands.cue
var operandsCUE string

// Validator checks event operands against the embedded definitions.
// Safe for concurrent use after construction.
type Validator struct {
	ctx  *cue.Context
	root cue.Value
}

// New compiles the embedded operand definitions.
func New() (*Validator, error) {
	ctx := cuecontext.New()
	root := ctx.CompileString(operandsCUE)
	if err := root.Err(); err != nil {
		return nil, fmt.Errorf("compile operand schema: %w", err)
	}
	return &Validator{ctx: ctx, root: root}, nil
}

// Validate checks an event's operand against the definition for its
// op/target combination. Combinations without a definition pass:
// reserved ops and root-level INS carry no checked payload.
func (v *Validator) Validate(ev eo.Event) error {
	tgt, err := eo.ParseTarget(ev.Target)
	if err != nil {
		return fmt.Errorf("validate operand: %w", err)
	}

	def := definitionFor(ev.Op, tgt)
	if def == "" {
		return nil
	}

	schema := v.root.LookupPath(cue.ParsePath(def))
	if err := schema.Err(); err != nil {
		return fmt.Errorf("validate operand: lookup %s: %w", def, err)
	}

	operand := ev.Operand
	if operand == nil {
		operand = map[string]any{}
	}
	// Operands are plain decoded JSON, so requiring concreteness makes
	// missing non-optional fields a validation error.
	unified := schema.Unify(v.ctx.Encode(operand))
	if err := unified.Validate(cue.Concrete(true)); err != nil {
		return fmt.Errorf("operand for %s %s: %w", ev.Op, ev.Target, err)
	}
	return nil
}

// definitionFor maps an op/target pair to its CUE definition, "" when
// the combination carries no checked payload.
func definitionFor(op eo.Op, tgt eo.Target) string {
	if tgt.IsRoot() {
		switch op {
		case eo.OpDES:
			return "#SetOperand"
		case eo.OpSYN:
			return "#SynOperand"
		case eo.OpNUL:
			return "#NulOperand"
		}
		return ""
	}

	switch tgt.ChildType {
	case eo.ChildBlock:
		switch op {
		case eo.OpINS:
			return "#BlockInsOperand"
		case eo.OpALT:
			return "#AltOperand"
		case eo.OpNUL:
			return "#NulOperand"
		}
	case eo.ChildRev:
		if op == eo.OpINS {
			return "#RevInsOperand"
		}
	case eo.ChildEntry:
		switch op {
		case eo.OpINS:
			return "#EntryInsOperand"
		case eo.OpALT:
			return "#AltOperand"
		case eo.OpNUL:
			return "#NulOperand"
		}
	case eo.ChildIndex:
		switch op {
		case eo.OpINS:
			return "#IndexEntryInsOperand"
		case eo.OpDES:
			return "#SetOperand"
		}
	}
	return ""
}
