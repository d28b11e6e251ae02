package eval

import (
	"fmt"
	"strings"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"
)

// Compiled is a predicate compiled once at tree construction and evaluated
// many times against session contexts.
type Compiled struct {
	src     string
	program *vm.Program
}

// Compile validates and compiles a predicate expression. An empty predicate
// compiles to a constant true.
func Compile(src string) (*Compiled, error) {
	src = strings.TrimSpace(src)
	if src == "" {
		return &Compiled{}, nil
	}
	if err := Validate(src); err != nil {
		return nil, err
	}
	program, err := expr.Compile(src, expr.AllowUndefinedVariables())
	if err != nil {
		return nil, fmt.Errorf("compile %q: %w", src, err)
	}
	return &Compiled{src: src, program: program}, nil
}

// Source returns the original expression text.
func (c *Compiled) Source() string {
	if c == nil {
		return ""
	}
	return c.src
}

// Eval runs the predicate against the given variables and returns the raw
// outcome (bool for guard conditions, any scalar for branch selectors).
func (c *Compiled) Eval(vars map[string]any) (any, error) {
	if c == nil || c.program == nil {
		return true, nil
	}
	out, err := expr.Run(c.program, vars)
	if err != nil {
		return nil, fmt.Errorf("eval %q: %w", c.src, err)
	}
	return out, nil
}

// EvalBool runs the predicate and requires a boolean outcome.
func (c *Compiled) EvalBool(vars map[string]any) (bool, error) {
	out, err := c.Eval(vars)
	if err != nil {
		return false, err
	}
	b, ok := out.(bool)
	if !ok {
		return false, fmt.Errorf("predicate %q must evaluate to bool (got %T)", c.src, out)
	}
	return b, nil
}
