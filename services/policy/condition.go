package policy

import (
	"fmt"
	"reflect"
	"strconv"
	"strings"

	"github.com/Hycient195/academia-pro-access/models"
)

// operatorFunc compares a resolved context value against a condition operand.
// present is false when dotted-path resolution hit a missing segment; a
// missing value is a non-match for every operator except not_exists.
type operatorFunc func(actual interface{}, present bool, operand interface{}) bool

// operatorFuncs is the closed operator set. A condition naming an operator
// outside this table evaluates to false.
var operatorFuncs = map[models.ConditionOperator]operatorFunc{
	models.OperatorEquals:      opEquals,
	models.OperatorNotEquals:   opNotEquals,
	models.OperatorContains:    opContains,
	models.OperatorNotContains: opNotContains,
	models.OperatorGreaterThan: opGreaterThan,
	models.OperatorLessThan:    opLessThan,
	models.OperatorIn:          opIn,
	models.OperatorNotIn:       opNotIn,
	models.OperatorExists:      opExists,
	models.OperatorNotExists:   opNotExists,
}

// ConditionEvaluator evaluates individual conditions and condition lists
// against an evaluation context. It is pure: identical inputs always
// produce identical outputs.
type ConditionEvaluator struct{}

// NewConditionEvaluator creates a ConditionEvaluator
func NewConditionEvaluator() *ConditionEvaluator {
	return &ConditionEvaluator{}
}

// Evaluate resolves the condition's field via dotted-path traversal and
// applies its operator against the operand value.
func (e *ConditionEvaluator) Evaluate(cond models.Condition, ctx *models.EvaluationContext) bool {
	fn, ok := operatorFuncs[cond.Operator]
	if !ok {
		return false
	}
	actual, present := ctx.Lookup(cond.Field)
	return fn(actual, present, cond.Value)
}

// EvaluateAll folds a condition list left to right. Each condition's own
// logical operator (default AND) combines its result with the accumulator
// built so far; there is no grouping or precedence. Mixing AND and OR is
// therefore order-dependent, and this matches how existing policy documents
// are interpreted, so the fold must stay exactly as written. An empty list
// is vacuously true.
func (e *ConditionEvaluator) EvaluateAll(conds []models.Condition, ctx *models.EvaluationContext) bool {
	result := true
	for _, cond := range conds {
		current := e.Evaluate(cond, ctx)
		if cond.LogicalOperator == models.LogicalOr {
			result = result || current
		} else {
			result = result && current
		}
	}
	return result
}

func opEquals(actual interface{}, present bool, operand interface{}) bool {
	if !present {
		return false
	}
	return looselyEqual(actual, operand)
}

func opNotEquals(actual interface{}, present bool, operand interface{}) bool {
	if !present {
		return false
	}
	return !looselyEqual(actual, operand)
}

func opContains(actual interface{}, present bool, operand interface{}) bool {
	if !present {
		return false
	}
	return strings.Contains(coerceString(actual), coerceString(operand))
}

func opNotContains(actual interface{}, present bool, operand interface{}) bool {
	if !present {
		return false
	}
	return !strings.Contains(coerceString(actual), coerceString(operand))
}

func opGreaterThan(actual interface{}, present bool, operand interface{}) bool {
	if !present {
		return false
	}
	a, aok := coerceFloat(actual)
	b, bok := coerceFloat(operand)
	return aok && bok && a > b
}

func opLessThan(actual interface{}, present bool, operand interface{}) bool {
	if !present {
		return false
	}
	a, aok := coerceFloat(actual)
	b, bok := coerceFloat(operand)
	return aok && bok && a < b
}

func opIn(actual interface{}, present bool, operand interface{}) bool {
	if !present {
		return false
	}
	members, ok := coerceSlice(operand)
	if !ok {
		return false
	}
	return isMember(actual, members)
}

func opNotIn(actual interface{}, present bool, operand interface{}) bool {
	if !present {
		return false
	}
	members, ok := coerceSlice(operand)
	if !ok {
		return false
	}
	return !isMember(actual, members)
}

// isMember tests membership of the context value in the operand list.
// An array-valued context value (user.roles and the like) is a member
// when any of its elements is.
func isMember(actual interface{}, members []interface{}) bool {
	if elems, ok := coerceSlice(actual); ok {
		for _, e := range elems {
			for _, m := range members {
				if looselyEqual(e, m) {
					return true
				}
			}
		}
		return false
	}
	for _, m := range members {
		if looselyEqual(actual, m) {
			return true
		}
	}
	return false
}

func opExists(actual interface{}, present bool, _ interface{}) bool {
	return present && actual != nil
}

func opNotExists(actual interface{}, present bool, _ interface{}) bool {
	return !present || actual == nil
}

// looselyEqual is the identity comparison behind equals/not_equals and
// in/not_in membership. Numeric kinds are normalized before comparing
// (JSON decoding yields float64 where Go code stores int), but a numeric
// string never equals a number: the string "100" and the number 100 are
// distinct values, and conflating them would flip decisions for existing
// policy documents.
func looselyEqual(a, b interface{}) bool {
	if af, aok := coerceNumber(a); aok {
		if bf, bok := coerceNumber(b); bok {
			return af == bf
		}
		return false
	}
	if _, bok := coerceNumber(b); bok {
		return false
	}
	return reflect.DeepEqual(a, b)
}

// coerceNumber normalizes numeric kinds to float64. Strings are not
// numbers here; see looselyEqual.
func coerceNumber(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint:
		return float64(n), true
	default:
		return 0, false
	}
}

// coerceFloat converts ordered-comparison operands to float64. Unlike
// equality, greater_than/less_than accept numeric strings.
func coerceFloat(v interface{}) (float64, bool) {
	if f, ok := coerceNumber(v); ok {
		return f, true
	}
	if s, ok := v.(string); ok {
		f, err := strconv.ParseFloat(s, 64)
		return f, err == nil
	}
	return 0, false
}

// coerceString renders any value for substring comparison
func coerceString(v interface{}) string {
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprintf("%v", v)
}

// coerceSlice normalizes the operand of in/not_in to a value slice.
// Non-array operands fail the membership test outright.
func coerceSlice(v interface{}) ([]interface{}, bool) {
	switch s := v.(type) {
	case []interface{}:
		return s, true
	case []string:
		out := make([]interface{}, len(s))
		for i, e := range s {
			out[i] = e
		}
		return out, true
	default:
		return nil, false
	}
}
