// Package cel provides a CEL evaluator for optional clock-restriction
// conditions.
package cel

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/cel-go/cel"

	"github.com/shiftgate/shiftgate/internal/domain/policy"
)

// maxExpressionLength is the maximum allowed length for condition expressions.
const maxExpressionLength = 1024

// maxCostBudget is the CEL runtime cost limit to prevent cost-exhaustion.
const maxCostBudget = 100_000

// maxNestingDepth is the maximum allowed parenthesis/bracket nesting depth.
const maxNestingDepth = 50

// evalTimeout is the maximum time allowed for a single evaluation.
const evalTimeout = 5 * time.Second

// interruptCheckFreq is how often (in comprehension iterations) context
// cancellation is checked.
const interruptCheckFreq = 100

// Attempt is the variable set a restriction condition is evaluated against.
type Attempt struct {
	Action      policy.ClockAction
	DayOfWeek   time.Weekday
	MinuteOfDay int
	UserID      string
}

// Evaluator compiles and evaluates restriction condition expressions.
type Evaluator struct {
	env *cel.Env
}

// NewConditionEnvironment creates a CEL environment exposing the clock-attempt
// variables: action, day_of_week, minute_of_day, user_id.
func NewConditionEnvironment() (*cel.Env, error) {
	return cel.NewEnv(
		cel.Variable("action", cel.StringType),
		cel.Variable("day_of_week", cel.IntType),
		cel.Variable("minute_of_day", cel.IntType),
		cel.Variable("user_id", cel.StringType),
	)
}

// NewEvaluator creates a new Evaluator with the condition environment.
func NewEvaluator() (*Evaluator, error) {
	env, err := NewConditionEnvironment()
	if err != nil {
		return nil, fmt.Errorf("failed to create condition environment: %w", err)
	}
	return &Evaluator{env: env}, nil
}

// Compile parses and type-checks a condition expression, returning a compiled
// program.
func (e *Evaluator) Compile(expression string) (cel.Program, error) {
	ast, issues := e.env.Compile(expression)
	if issues != nil && issues.Err() != nil {
		return nil, fmt.Errorf("compilation failed: %w", issues.Err())
	}

	prg, err := e.env.Program(ast,
		cel.EvalOptions(cel.OptOptimize),
		cel.CostLimit(maxCostBudget),
		cel.InterruptCheckFrequency(interruptCheckFreq),
	)
	if err != nil {
		return nil, fmt.Errorf("program creation failed: %w", err)
	}

	return prg, nil
}

// validateNesting checks that the expression does not exceed the maximum
// allowed nesting depth for parentheses, brackets, and braces.
func validateNesting(expr string) error {
	var depth, maxDepth int
	for _, ch := range expr {
		switch ch {
		case '(', '[', '{':
			depth++
			if depth > maxDepth {
				maxDepth = depth
			}
		case ')', ']', '}':
			depth--
		}
	}
	if maxDepth > maxNestingDepth {
		return fmt.Errorf("expression nesting too deep: %d levels (max %d)", maxDepth, maxNestingDepth)
	}
	return nil
}

// ValidateExpression checks that a condition is syntactically valid and safe
// to store. It enforces length and nesting limits before compiling.
func (e *Evaluator) ValidateExpression(expr string) error {
	if len(expr) > maxExpressionLength {
		return fmt.Errorf("expression too long: %d characters (max %d)", len(expr), maxExpressionLength)
	}

	if expr == "" {
		return errors.New("expression is empty")
	}

	if err := validateNesting(expr); err != nil {
		return err
	}

	if _, err := e.Compile(expr); err != nil {
		return fmt.Errorf("invalid condition expression: %w", err)
	}

	return nil
}

// Evaluate runs a compiled condition program against the given attempt.
// Returns true if the expression evaluates to true. Uses ContextEval with a
// timeout so a pathological expression cannot hang validation.
func (e *Evaluator) Evaluate(prg cel.Program, attempt Attempt) (bool, error) {
	activation := map[string]any{
		"action":        string(attempt.Action),
		"day_of_week":   int64(attempt.DayOfWeek),
		"minute_of_day": int64(attempt.MinuteOfDay),
		"user_id":       attempt.UserID,
	}

	ctx, cancel := context.WithTimeout(context.Background(), evalTimeout)
	defer cancel()

	result, _, err := prg.ContextEval(ctx, activation)
	if err != nil {
		return false, fmt.Errorf("evaluation failed: %w", err)
	}

	boolResult, ok := result.Value().(bool)
	if !ok {
		return false, fmt.Errorf("expression did not return a boolean, got %T", result.Value())
	}

	return boolResult, nil
}

// EvaluateExpression compiles and evaluates in one step. Validation services
// use this for per-attempt checks; compilation cost is bounded by the
// expression limits above.
func (e *Evaluator) EvaluateExpression(expr string, attempt Attempt) (bool, error) {
	prg, err := e.Compile(expr)
	if err != nil {
		return false, err
	}
	return e.Evaluate(prg, attempt)
}
