// Package policy evaluates admission/interview acceptance rules for
// incoming Zigbee devices, adapted from the capability-assignment rule
// engine used elsewhere in this ecosystem to the narrower question of
// "should this device be allowed onto the PAN".
package policy

import (
	"fmt"

	"github.com/antonmedv/expr"
	"github.com/antonmedv/expr/vm"
)

// Input is the evaluation environment exposed to a rule's Filter
// expression.
type Input struct {
	IEEEAddr     string
	Manufacturer string
	Model        string
	LogicalType  string
	Endpoints    []EndpointInput
}

type EndpointInput struct {
	ID          uint8
	ProfileID   uint16
	DeviceID    uint16
	InClusters  []uint16
	OutClusters []uint16
}

// Rule is one admission decision: if Filter evaluates true against an
// Input, Accept is the verdict and evaluation stops.
type Rule struct {
	Description string
	Filter      string
	Accept      bool
}

type compiledRule struct {
	description string
	program     *vm.Program
	accept      bool
}

// Engine evaluates a rule set in order, first match wins. An Engine with
// no rules accepts unconditionally, matching the default hook behaviour
// described for acceptDevIncoming/acceptDevInterview.
type Engine struct {
	rules []compiledRule
}

// Compile builds an Engine from a rule set, compiling every Filter
// expression up front so evaluation never fails on malformed expr.
func Compile(rules []Rule) (*Engine, error) {
	e := &Engine{}

	for _, r := range rules {
		program, err := expr.Compile(r.Filter, expr.Env(Input{}), expr.AsBool())
		if err != nil {
			return nil, fmt.Errorf("policy: compiling rule %q: %w", r.Description, err)
		}

		e.rules = append(e.rules, compiledRule{
			description: r.Description,
			program:     program,
			accept:      r.Accept,
		})
	}

	return e, nil
}

// Evaluate returns the verdict of the first matching rule, or true
// (accept) if no rule matches or the Engine is nil/empty.
func (e *Engine) Evaluate(in Input) (bool, error) {
	if e == nil {
		return true, nil
	}

	for _, r := range e.rules {
		out, err := expr.Run(r.program, in)
		if err != nil {
			return false, fmt.Errorf("policy: evaluating rule %q: %w", r.description, err)
		}

		if matched, ok := out.(bool); ok && matched {
			return r.accept, nil
		}
	}

	return true, nil
}
