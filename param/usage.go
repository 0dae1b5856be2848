package param

import "strings"

// Usage renders the declaration as a signature: parameters in declaration
// order, separated by spaces, optional ones in brackets.
//
//	amount label [description] [expiry]
func (d *Declaration) Usage() string {
	var b strings.Builder
	for i, s := range d.specs {
		if i > 0 {
			b.WriteByte(' ')
		}
		if s.required {
			b.WriteString(s.name)
			continue
		}
		b.WriteByte('[')
		b.WriteString(s.name)
		b.WriteByte(']')
	}
	return b.String()
}

// Usage renders the signature of specs without binding anything.
func Usage(specs ...Spec) string { return Declare(specs...).Usage() }
