package param

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ggoodman/rpcparam/jsontok"
)

type testCall struct {
	method    string
	params    jsontok.Node
	usageOnly bool
	checkOnly bool
	checker   *Checker
	usage     *Declaration
}

func newTestCall(params string) *testCall {
	c := &testCall{method: "test"}
	if params != "" {
		c.params = jsontok.MustParse(params).Root()
	}
	return c
}

func (c *testCall) Method() string          { return c.method }
func (c *testCall) Params() jsontok.Node    { return c.params }
func (c *testCall) UsageOnly() bool         { return c.usageOnly }
func (c *testCall) CheckOnly() bool         { return c.checkOnly }
func (c *testCall) SetUsage(d *Declaration) { c.usage = d }
func (c *testCall) Checker() *Checker       { return c.checker }

// invoiceParams binds the amount/label example declaration.
func invoiceParams(t *testing.T, params string, extra bool) (Msat, *string, error) {
	t.Helper()
	var amt Msat
	var lbl *string
	specs := []Spec{
		Required("amount", Amount, &amt),
		Optional("label", String, &lbl),
	}
	if extra {
		specs = append(specs, AllowExtra())
	}
	err := Parse(newTestCall(params), specs...)
	return amt, lbl, err
}

func requireParamError(t *testing.T, err error, kind Kind, msg string) {
	t.Helper()
	require.Error(t, err)
	pe, ok := AsError(err)
	require.True(t, ok, "expected *param.Error, got %T: %v", err, err)
	assert.Equal(t, kind, pe.Kind)
	assert.Equal(t, msg, pe.Message)
}

func TestNamedRequiredOnly(t *testing.T) {
	amt, lbl, err := invoiceParams(t, `{"amount": "1000msat"}`, false)
	require.NoError(t, err)
	assert.Equal(t, Msat(1000), amt)
	assert.Nil(t, lbl)
}

func TestNamedMissingRequired(t *testing.T) {
	_, _, err := invoiceParams(t, `{"label": "x"}`, false)
	requireParamError(t, err, KindInvalidParams, "missing required parameter: 'amount'")
}

func TestPositionalTooMany(t *testing.T) {
	_, _, err := invoiceParams(t, `["1000msat", "x", "extra"]`, false)
	requireParamError(t, err, KindInvalidParams, "too many parameters: got 3, expected 2")
}

func TestPositionalExtraAllowed(t *testing.T) {
	amt, lbl, err := invoiceParams(t, `["1000msat", "x", "extra", 4]`, true)
	require.NoError(t, err)
	assert.Equal(t, Msat(1000), amt)
	require.NotNil(t, lbl)
	assert.Equal(t, "x", *lbl)
}

func TestPositionalFullAndShort(t *testing.T) {
	amt, lbl, err := invoiceParams(t, `[2000, "coffee"]`, false)
	require.NoError(t, err)
	assert.Equal(t, Msat(2000), amt)
	require.NotNil(t, lbl)
	assert.Equal(t, "coffee", *lbl)

	amt, lbl, err = invoiceParams(t, `[2000]`, false)
	require.NoError(t, err)
	assert.Equal(t, Msat(2000), amt)
	assert.Nil(t, lbl)

	_, _, err = invoiceParams(t, `[]`, false)
	requireParamError(t, err, KindInvalidParams, "missing required parameter: 'amount'")
}

func TestPositionalNullSkipped(t *testing.T) {
	_, lbl, err := invoiceParams(t, `[1, null]`, false)
	require.NoError(t, err)
	assert.Nil(t, lbl)

	_, _, err = invoiceParams(t, `[null, "x"]`, false)
	requireParamError(t, err, KindInvalidParams, "missing required parameter: 'amount'")
}

func TestNamedDuplicate(t *testing.T) {
	_, _, err := invoiceParams(t, `{"amount": 1, "label": "a", "label": "b"}`, false)
	requireParamError(t, err, KindInvalidParams, "duplicate json names: 'label'")
}

func TestNamedDuplicateAfterNull(t *testing.T) {
	for _, in := range []string{
		`{"label": null, "label": "x", "amount": 1}`,
		`{"amount": 1, "label": "x", "label": null}`,
		`{"amount": 1, "label": null, "label": null}`,
	} {
		_, _, err := invoiceParams(t, in, false)
		requireParamError(t, err, KindInvalidParams, "duplicate json names: 'label'")
	}
}

func TestNamedUnknown(t *testing.T) {
	_, _, err := invoiceParams(t, `{"amount": 1, "colour": "red"}`, false)
	requireParamError(t, err, KindInvalidParams, "unknown parameter: 'colour'")

	amt, _, err := invoiceParams(t, `{"colour": "red", "amount": 1}`, true)
	require.NoError(t, err)
	assert.Equal(t, Msat(1), amt)
}

func TestNamedNullLeavesUnset(t *testing.T) {
	_, lbl, err := invoiceParams(t, `{"amount": 5, "label": null}`, false)
	require.NoError(t, err)
	assert.Nil(t, lbl)
}

func TestWrongShape(t *testing.T) {
	for _, in := range []string{`"amount"`, `12`, `null`, `true`} {
		_, _, err := invoiceParams(t, in, false)
		requireParamError(t, err, KindInvalidParams, "Expected array or object for params")
	}
}

func TestAbsentParamsBindAsEmpty(t *testing.T) {
	var lbl *string
	err := Parse(newTestCall(""), Optional("label", String, &lbl))
	require.NoError(t, err)
	assert.Nil(t, lbl)
}

func TestDecoderFailureAbortsBinding(t *testing.T) {
	calls := 0
	counting := func(name string, n jsontok.Node) (string, error) {
		calls++
		return String(name, n)
	}
	var a string
	var b *string
	err := Parse(newTestCall(`[42, "later"]`),
		Required("a", counting, &a),
		Optional("b", counting, &b),
	)
	requireParamError(t, err, KindInvalidParams, "'a' should be a string, not '42'")
	assert.Equal(t, 1, calls)
	assert.Nil(t, b)
}

func TestDecoderFailureThenDuplicateIsNotReached(t *testing.T) {
	var a uint64
	err := Parse(newTestCall(`{"a": "x", "a": 1}`), Required("a", Uint64, &a))
	requireParamError(t, err, KindInvalidParams, "'a' should be an unsigned 64 bit integer, not 'x'")
}

func TestEachDecoderInvokedOnce(t *testing.T) {
	seen := map[string]int{}
	dec := func(name string, n jsontok.Node) (int64, error) {
		seen[name]++
		return Int64(name, n)
	}
	var a, b int64
	var c *int64
	require.NoError(t, Parse(newTestCall(`[1, 2, 3]`),
		Required("a", dec, &a),
		Required("b", dec, &b),
		Optional("c", dec, &c),
	))
	assert.Equal(t, map[string]int{"a": 1, "b": 1, "c": 1}, seen)
	assert.Equal(t, int64(1), a)
	assert.Equal(t, int64(2), b)
	require.NotNil(t, c)
	assert.Equal(t, int64(3), *c)
}

func TestOptionalDefault(t *testing.T) {
	var expiry uint64 = 99
	require.NoError(t, Parse(newTestCall(`{}`), OptionalDefault("expiry", Uint64, &expiry, 3600)))
	assert.Equal(t, uint64(3600), expiry)

	require.NoError(t, Parse(newTestCall(`[7]`), OptionalDefault("expiry", Uint64, &expiry, 3600)))
	assert.Equal(t, uint64(7), expiry)

	require.NoError(t, Parse(newTestCall(`[null]`), OptionalDefault("expiry", Uint64, &expiry, 3600)))
	assert.Equal(t, uint64(3600), expiry)
}

func TestIsSetTracksBinding(t *testing.T) {
	var a string
	var b *string
	d := Declare(Required("a", String, &a), Optional("b", String, &b))
	require.NoError(t, d.Bind(jsontok.MustParse(`{"a": "x"}`).Root()))
	assert.True(t, d.IsSet("a"))
	assert.False(t, d.IsSet("b"))

	// a second Bind starts from a clean slate
	require.NoError(t, d.Bind(jsontok.MustParse(`["y", "z"]`).Root()))
	assert.True(t, d.IsSet("b"))
	assert.Equal(t, "y", a)
}

func TestNameIndexLargeDeclaration(t *testing.T) {
	vals := make([]*string, 12)
	specs := make([]Spec, 0, len(vals))
	for i := range vals {
		specs = append(specs, Optional(string(rune('a'+i)), String, &vals[i]))
	}
	require.NoError(t, Parse(newTestCall(`{"l": "last", "a": "first"}`), specs...))
	require.NotNil(t, vals[0])
	require.NotNil(t, vals[11])
	assert.Equal(t, "first", *vals[0])
	assert.Equal(t, "last", *vals[11])

	err := Parse(newTestCall(`{"z": 1}`), specs...)
	requireParamError(t, err, KindInvalidParams, "unknown parameter: 'z'")
}

func TestUsageOnlyShortCircuits(t *testing.T) {
	called := false
	dec := func(name string, n jsontok.Node) (string, error) {
		called = true
		return "", nil
	}
	var a string
	var b *string
	c := newTestCall(`["x"]`)
	c.usageOnly = true
	err := Parse(c, Required("a", dec, &a), Optional("b", dec, &b))
	assert.ErrorIs(t, err, ErrUsageOnly)
	assert.False(t, called)
	require.NotNil(t, c.usage)
	assert.Equal(t, "a [b]", c.usage.Usage())
}

func TestCheckOnlyValidatesButDoesNotSucceed(t *testing.T) {
	var amt Msat
	c := newTestCall(`["1000"]`)
	c.checkOnly = true
	err := Parse(c, Required("amount", Amount, &amt))
	assert.ErrorIs(t, err, ErrCheckOnly)

	c = newTestCall(`["bogus"]`)
	c.checkOnly = true
	err = Parse(c, Required("amount", Amount, &amt))
	requireParamError(t, err, KindInvalidParams, "'amount' should be a millisatoshi amount, not 'bogus'")
}

func TestParseRunsCheckerBeforeBinding(t *testing.T) {
	var a *string
	var b string
	c := newTestCall(`["x"]`)
	c.checker = NewChecker()
	err := Parse(c, Optional("a", String, &a), Required("b", String, &b))
	require.Error(t, err)
	pe, ok := AsError(err)
	require.True(t, ok)
	assert.Equal(t, KindDeveloper, pe.Kind)
	assert.Nil(t, a)
}

func TestMissingDecoderIsDeveloperError(t *testing.T) {
	var a string
	err := Parse(newTestCall(`[]`), Required[string]("a", nil, &a))
	requireParamError(t, err, KindDeveloper, "developer error: param_add a")

	err = Parse(newTestCall(`[]`), Required("", String, &a))
	requireParamError(t, err, KindDeveloper, "developer error: param_add ")

	err = Parse(newTestCall(`[]`), Required("a", String, nil))
	requireParamError(t, err, KindDeveloper, "developer error: param_add a")
}
