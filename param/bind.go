package param

import (
	"github.com/ggoodman/rpcparam/jsontok"
)

// Declaration is an ordered list of parameter specs for one call.
type Declaration struct {
	specs      []Spec
	allowExtra bool
	err        error
}

// Declare builds a declaration from specs in order. A spec without a name,
// decoder or destination makes the declaration unusable; the problem is
// reported by Validate and Bind as a developer error.
func Declare(specs ...Spec) *Declaration {
	d := &Declaration{specs: make([]Spec, 0, len(specs))}
	for _, s := range specs {
		if s.extra {
			d.allowExtra = true
			continue
		}
		if d.err == nil && (s.name == "" || s.decode == nil || s.target == 0) {
			d.err = developerError(s.name, "param_add %s", s.name)
		}
		d.specs = append(d.specs, s)
	}
	return d
}

// Specs returns a copy of the declared specs.
func (d *Declaration) Specs() []Spec { return append([]Spec(nil), d.specs...) }

// AllowsExtra reports whether unknown or trailing params are ignored.
func (d *Declaration) AllowsExtra() bool { return d.allowExtra }

// IsSet reports whether the named parameter was bound by the last Bind.
func (d *Declaration) IsSet(name string) bool {
	for i := range d.specs {
		if d.specs[i].name == name {
			return d.specs[i].set
		}
	}
	return false
}

// Bind matches params against the declaration. An array binds by
// position, an object by name. A missing params value binds as an empty
// array. The first failure aborts binding.
func (d *Declaration) Bind(params jsontok.Node) error {
	if d.err != nil {
		return d.err
	}
	for i := range d.specs {
		d.specs[i].set = false
		if d.specs[i].reset != nil {
			d.specs[i].reset()
		}
	}

	switch params.Kind() {
	case jsontok.KindArray:
		return d.bindPositional(params)
	case jsontok.KindObject:
		return d.bindNamed(params)
	case jsontok.KindInvalid:
		return d.postCheck()
	}
	return Errorf("", "Expected array or object for params")
}

func (d *Declaration) bindPositional(params jsontok.Node) error {
	elems := params.Elements()
	for i := 0; i < len(d.specs) && i < len(elems); i++ {
		if elems[i].IsNull() {
			continue
		}
		if err := d.specs[i].bind(elems[i]); err != nil {
			return err
		}
	}

	if !d.allowExtra && len(elems) > len(d.specs) {
		return Errorf("", "too many parameters: got %d, expected %d", len(elems), len(d.specs))
	}
	return d.postCheck()
}

func (d *Declaration) bindNamed(params jsontok.Node) error {
	idx := newNameIndex(d.specs)
	// seen counts null members too; set only tracks bound values.
	seen := make([]bool, len(d.specs))
	for _, m := range params.Members() {
		name := m.Name()
		i := idx.lookup(name)
		if i < 0 {
			if !d.allowExtra {
				return Errorf(name, "unknown parameter: '%s'", name)
			}
			continue
		}

		s := &d.specs[i]
		if seen[i] {
			return Errorf(s.name, "duplicate json names: '%s'", s.name)
		}
		seen[i] = true
		if m.Value.IsNull() {
			continue
		}
		if err := s.bind(m.Value); err != nil {
			return err
		}
	}
	return d.postCheck()
}

func (d *Declaration) postCheck() error {
	for i := range d.specs {
		if d.specs[i].required && !d.specs[i].set {
			return Errorf(d.specs[i].name, "missing required parameter: '%s'", d.specs[i].name)
		}
	}
	return nil
}

// linearIndexMax is the declaration size up to which name lookups scan the
// spec list instead of building a map.
const linearIndexMax = 8

type nameIndex struct {
	specs  []Spec
	byName map[string]int
}

func newNameIndex(specs []Spec) nameIndex {
	idx := nameIndex{specs: specs}
	if len(specs) > linearIndexMax {
		idx.byName = make(map[string]int, len(specs))
		for i := len(specs) - 1; i >= 0; i-- {
			idx.byName[specs[i].name] = i
		}
	}
	return idx
}

// lookup returns the index of the first spec called name, or -1.
func (x nameIndex) lookup(name string) int {
	if x.byName != nil {
		if i, ok := x.byName[name]; ok {
			return i
		}
		return -1
	}
	for i := range x.specs {
		if x.specs[i].name == name {
			return i
		}
	}
	return -1
}
