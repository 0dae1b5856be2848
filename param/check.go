package param

import (
	"cmp"
	"slices"
	"strings"
	"sync"
)

// Validate checks a declaration for programmer mistakes: a parameter
// without name, decoder or destination, a required parameter after an
// optional one, two parameters with the same name, or two parameters
// writing to the same destination. Failures are developer errors.
func Validate(d *Declaration) error {
	if d.err != nil {
		return d.err
	}
	specs := d.specs
	if len(specs) < 2 {
		return nil
	}

	for i := 1; i < len(specs); i++ {
		if !specs[i-1].required && specs[i].required {
			return developerError(specs[i].name,
				"check_params: required parameter '%s' follows optional parameter '%s'",
				specs[i].name, specs[i-1].name)
		}
	}

	sorted := slices.Clone(specs)
	slices.SortStableFunc(sorted, func(a, b Spec) int { return strings.Compare(a.name, b.name) })
	for i := 1; i < len(sorted); i++ {
		if sorted[i-1].name == sorted[i].name {
			return developerError(sorted[i].name,
				"check_params: duplicate parameter name '%s'", sorted[i].name)
		}
	}

	// Distinct zero-size variables may share an address.
	sorted = slices.DeleteFunc(sorted, func(s Spec) bool { return s.typ != nil && s.typ.Size() == 0 })
	slices.SortStableFunc(sorted, func(a, b Spec) int { return cmp.Compare(a.target, b.target) })
	for i := 1; i < len(sorted); i++ {
		if sorted[i-1].target == sorted[i].target {
			return developerError(sorted[i].name,
				"check_params: parameters '%s' and '%s' share a destination",
				sorted[i-1].name, sorted[i].name)
		}
	}
	return nil
}

// Checker memoizes Validate per command so a declaration is checked on its
// first call only. The zero value is ready to use and safe for concurrent
// use.
type Checker struct {
	results sync.Map // command name -> checkResult
}

type checkResult struct{ err error }

// NewChecker returns an empty Checker.
func NewChecker() *Checker { return &Checker{} }

// Check validates d on the first call for command and returns the cached
// outcome afterwards.
func (c *Checker) Check(command string, d *Declaration) error {
	if v, ok := c.results.Load(command); ok {
		return v.(checkResult).err
	}
	err := Validate(d)
	c.results.Store(command, checkResult{err: err})
	return err
}

// Checked reports whether command has been validated, and its outcome.
func (c *Checker) Checked(command string) (bool, error) {
	v, ok := c.results.Load(command)
	if !ok {
		return false, nil
	}
	return true, v.(checkResult).err
}

// Forget drops the cached outcome for command.
func (c *Checker) Forget(command string) { c.results.Delete(command) }
