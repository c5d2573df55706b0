// Package variables maps variables between a scope instance and an external
// worker. A Mapping copies a source variable or evaluates a CEL expression
// with the source variables bound as `vars`.
//
//	r := variables.NewResolver()
//	in, err := r.ResolveInput(instanceVars, []variables.Mapping{
//	    {Source: "orderId", Target: "id"},
//	    {Target: "total", Expression: "vars.price * vars.qty"},
//	})
package variables
