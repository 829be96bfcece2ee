package expr

import (
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/dbhealthcheck/engine/internal/units"
)

// Env is the restricted evaluation environment: exactly the
// three variables a rule expression may reference. All three are plain
// maps — the evaluator never reaches into arbitrary host objects, so a
// caller must flatten whatever it wants visible into these maps first.
type Env struct {
	Data        any
	Settings    map[string]any
	AllFindings map[string]any

	// Log receives debug records for malformed size-string literals
	// normalized to zero by toFloat. Optional.
	Log *logrus.Entry
}

func (e Env) lookup(name string) (any, bool) {
	switch name {
	case "data":
		return e.Data, true
	case "settings":
		return e.Settings, true
	case "all_findings":
		return e.AllFindings, true
	}
	return nil, false
}

// Eval walks node against env and returns its value. An expression that
// cannot be evaluated (type mismatch, division by zero, unknown
// variable) returns an error; callers treat that as "rule did not
// match" and log it at debug.
func Eval(node Node, env Env) (any, error) {
	switch n := node.(type) {
	case Literal:
		return n.Value, nil

	case Ident:
		v, ok := env.lookup(n.Name)
		if !ok {
			return nil, fmt.Errorf("expr: unknown variable %q", n.Name)
		}
		return v, nil

	case Field:
		target, err := Eval(n.Target, env)
		if err != nil {
			return nil, err
		}
		return fieldAccess(target, n.Name), nil

	case Unary:
		v, err := Eval(n.Expr, env)
		if err != nil {
			return nil, err
		}
		switch n.Op {
		case "!":
			b, ok := v.(bool)
			if !ok {
				return nil, fmt.Errorf("expr: '!' requires bool, got %T", v)
			}
			return !b, nil
		}
		return nil, fmt.Errorf("expr: unknown unary operator %q", n.Op)

	case Binary:
		return evalBinary(n, env)
	}
	return nil, fmt.Errorf("expr: unhandled node type %T", node)
}

// fieldAccess is null-safe: a missing field or a non-map target both
// yield nil rather than raising.
func fieldAccess(target any, name string) any {
	if target == nil {
		return nil
	}
	switch m := target.(type) {
	case map[string]any:
		return m[name]
	}
	return nil
}

func evalBinary(n Binary, env Env) (any, error) {
	switch n.Op {
	case "&&":
		l, err := evalBool(n.Left, env)
		if err != nil {
			return nil, err
		}
		if !l {
			return false, nil
		}
		r, err := evalBool(n.Right, env)
		if err != nil {
			return nil, err
		}
		return r, nil
	case "||":
		l, err := evalBool(n.Left, env)
		if err != nil {
			return nil, err
		}
		if l {
			return true, nil
		}
		r, err := evalBool(n.Right, env)
		if err != nil {
			return nil, err
		}
		return r, nil
	}

	left, err := Eval(n.Left, env)
	if err != nil {
		return nil, err
	}
	right, err := Eval(n.Right, env)
	if err != nil {
		return nil, err
	}

	switch n.Op {
	case "==":
		return looseEqual(left, right, env.Log), nil
	case "!=":
		return !looseEqual(left, right, env.Log), nil
	case "in":
		return membership(left, right)
	case ">", ">=", "<", "<=":
		return compareNumeric(n.Op, left, right, env.Log)
	case "+", "-", "*", "/", "%":
		return arithmetic(n.Op, left, right, env.Log)
	}
	return nil, fmt.Errorf("expr: unknown binary operator %q", n.Op)
}

func evalBool(node Node, env Env) (bool, error) {
	v, err := Eval(node, env)
	if err != nil {
		return false, err
	}
	b, ok := v.(bool)
	if !ok {
		return false, fmt.Errorf("expr: expected bool operand, got %T", v)
	}
	return b, nil
}

func looseEqual(a, b any, log *logrus.Entry) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	af, aok := toFloat(a, log)
	bf, bok := toFloat(b, log)
	if aok && bok {
		return af == bf
	}
	return fmt.Sprint(a) == fmt.Sprint(b)
}

func membership(left, right any) (bool, error) {
	switch r := right.(type) {
	case string:
		ls, ok := left.(string)
		if !ok {
			return false, fmt.Errorf("expr: 'in' with string target requires string operand, got %T", left)
		}
		return strings.Contains(r, ls), nil
	case []any:
		for _, item := range r {
			if looseEqual(left, item, nil) {
				return true, nil
			}
		}
		return false, nil
	}
	return false, fmt.Errorf("expr: 'in' requires string or list on the right, got %T", right)
}

func compareNumeric(op string, left, right any, log *logrus.Entry) (bool, error) {
	lf, lok := toFloat(left, log)
	rf, rok := toFloat(right, log)
	if !lok || !rok {
		return false, fmt.Errorf("expr: comparison %q requires numeric operands, got %T and %T", op, left, right)
	}
	switch op {
	case ">":
		return lf > rf, nil
	case ">=":
		return lf >= rf, nil
	case "<":
		return lf < rf, nil
	case "<=":
		return lf <= rf, nil
	}
	return false, fmt.Errorf("expr: unknown comparison operator %q", op)
}

func arithmetic(op string, left, right any, log *logrus.Entry) (any, error) {
	lf, lok := toFloat(left, log)
	rf, rok := toFloat(right, log)
	if !lok || !rok {
		return nil, fmt.Errorf("expr: arithmetic %q requires numeric operands, got %T and %T", op, left, right)
	}
	switch op {
	case "+":
		return lf + rf, nil
	case "-":
		return lf - rf, nil
	case "*":
		return lf * rf, nil
	case "/":
		if rf == 0 {
			return nil, fmt.Errorf("expr: division by zero")
		}
		return lf / rf, nil
	case "%":
		if rf == 0 {
			return nil, fmt.Errorf("expr: modulo by zero")
		}
		return float64(int64(lf) % int64(rf)), nil
	}
	return nil, fmt.Errorf("expr: unknown arithmetic operator %q", op)
}

// toFloat resolves v to a float64 for arithmetic and comparison. A string
// operand is normalized as a size string ("123 MB", "1.2 GB") via
// internal/units before giving up.
func toFloat(v any, log *logrus.Entry) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case int32:
		return float64(n), true
	case string:
		return units.ParseSize(n, log)
	}
	return 0, false
}
