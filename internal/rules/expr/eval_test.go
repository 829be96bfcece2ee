package expr

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func evalExpr(t *testing.T, src string, env Env) any {
	t.Helper()
	node, err := Parse(src)
	require.NoError(t, err)
	v, err := Eval(node, env)
	require.NoError(t, err)
	return v
}

func TestEval_DottedFieldAccessOnData(t *testing.T) {
	env := Env{Data: map[string]any{"value": 92.5}}
	got := evalExpr(t, "data.value < 90", env)
	assert.Equal(t, false, got)

	got = evalExpr(t, "data.value > 90", env)
	assert.Equal(t, true, got)
}

func TestEval_BareIdentifierOtherThanEnvNamesFails(t *testing.T) {
	// Only data/settings/all_findings resolve as bare identifiers; a rule
	// written as "value < 90" instead of "data.value < 90" must fail to
	// evaluate rather than silently match or silently resolve to zero.
	env := Env{Data: map[string]any{"value": 10.0}}
	node, err := Parse("value < 90")
	require.NoError(t, err)
	_, err = Eval(node, env)
	require.Error(t, err)
	assert.Contains(t, err.Error(), `unknown variable "value"`)
}

func TestEval_NullSafeFieldAccessOnMissingKey(t *testing.T) {
	env := Env{Data: map[string]any{"value": 1.0}}
	got := evalExpr(t, "data.missing == data.missing", env)
	assert.Equal(t, true, got) // nil == nil
}

func TestEval_SettingsAndSettingsScopedComparison(t *testing.T) {
	env := Env{
		Data:     map[string]any{"lag_bytes": 200_000_000.0},
		Settings: map[string]any{"lag_warn_bytes": 104857600.0},
	}
	got := evalExpr(t, "data.lag_bytes > settings.lag_warn_bytes", env)
	assert.Equal(t, true, got)
}

func TestEval_LogicalAndOr(t *testing.T) {
	env := Env{Data: map[string]any{"a": 5.0, "b": 1.0}}
	assert.Equal(t, true, evalExpr(t, "data.a > 1 && data.b < 10", env))
	assert.Equal(t, true, evalExpr(t, "data.a < 1 || data.b < 10", env))
	assert.Equal(t, false, evalExpr(t, "data.a < 1 && data.b > 10", env))
}

func TestEval_InOperatorOnStringAndEqualityOr(t *testing.T) {
	env := Env{Data: map[string]any{"state": "red", "name": "worker-1"}}
	assert.Equal(t, true, evalExpr(t, `data.state in "redgreen"`, env))

	node, err := Parse(`data.state == "red" || data.state == "yellow"`)
	require.NoError(t, err)
	v, err := Eval(node, env)
	require.NoError(t, err)
	assert.Equal(t, true, v)
}

func TestEval_DivisionByZeroRaises(t *testing.T) {
	env := Env{Data: map[string]any{"a": 1.0, "b": 0.0}}
	node, err := Parse("data.a / data.b")
	require.NoError(t, err)
	_, err = Eval(node, env)
	require.Error(t, err)
}
