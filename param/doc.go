// Package param binds the params of a JSON-RPC call onto a declared, ordered
// list of parameters.
//
// A command declares its parameters once per call and hands them to Parse
// together with the call:
//
//	var amount param.Msat
//	var label *string
//	if err := param.Parse(call,
//	    param.Required("amount", param.Amount, &amount),
//	    param.Optional("label", param.String, &label),
//	); err != nil {
//	    return nil, err
//	}
//
// Params may be supplied as a JSON array (matched by position) or a JSON
// object (matched by name). Required parameters must be declared before
// optional ones. Unknown names and trailing positional values are rejected
// unless AllowExtra is part of the declaration.
//
// The same declaration renders the command's usage string ("amount [label]")
// when the call asks for usage only, and its JSON Schema for introspection.
//
// Validate checks a declaration for programmer mistakes (duplicate names,
// aliased targets, required-after-optional). A Checker memoizes that check
// per command so it can stay enabled in long-running servers.
package param
