package param

import "github.com/ggoodman/rpcparam/jsontok"

// Call is the view of an incoming call that Parse needs.
type Call interface {
	// Method is the command name, used to memoize declaration checks.
	Method() string
	// Params is the call's params value. The zero Node means absent.
	Params() jsontok.Node
	// UsageOnly reports that the caller wants the signature, not a call.
	UsageOnly() bool
	// CheckOnly reports a dry run: validate everything, execute nothing.
	CheckOnly() bool
	// SetUsage receives the declaration of a usage-only call.
	SetUsage(d *Declaration)
	// Checker returns the declaration checker, or nil to skip checks.
	Checker() *Checker
}

// Parse declares specs for call and binds the call's params onto them.
//
// It returns nil when the command should run. ErrUsageOnly and
// ErrCheckOnly mean the command must stop without executing even though
// nothing went wrong. Any other error is a *Error.
func Parse(call Call, specs ...Spec) error {
	d := Declare(specs...)
	if d.err != nil {
		return d.err
	}

	if call.UsageOnly() {
		call.SetUsage(d)
		return ErrUsageOnly
	}

	if c := call.Checker(); c != nil {
		if err := c.Check(call.Method(), d); err != nil {
			return err
		}
	}

	if err := d.Bind(call.Params()); err != nil {
		return err
	}
	if call.CheckOnly() {
		return ErrCheckOnly
	}
	return nil
}
