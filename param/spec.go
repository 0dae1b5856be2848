package param

import (
	"reflect"

	"github.com/ggoodman/rpcparam/jsontok"
)

// DecodeFunc turns one params value into a T. name is the declared
// parameter name, for error messages. On failure it returns the
// caller-facing error, normally built with ShouldBe or Errorf.
type DecodeFunc[T any] func(name string, n jsontok.Node) (T, error)

// Spec describes one expected parameter. Build it with Required, Optional
// or OptionalDefault.
type Spec struct {
	name     string
	required bool
	target   uintptr
	decode   func(n jsontok.Node) error
	reset    func()
	typ      reflect.Type
	extra    bool
	set      bool
}

// Name returns the declared parameter name.
func (s Spec) Name() string { return s.name }

// IsRequired reports whether the parameter must be supplied.
func (s Spec) IsRequired() bool { return s.required }

// Required declares a parameter that must be present and non-null. The
// decoded value is stored in *dst.
func Required[T any](name string, dec DecodeFunc[T], dst *T) Spec {
	s := Spec{name: name, required: true, target: addressOf(dst), typ: typeOf[T]()}
	if dec != nil && dst != nil {
		s.decode = func(n jsontok.Node) error {
			v, err := dec(name, n)
			if err != nil {
				return err
			}
			*dst = v
			return nil
		}
	}
	return s
}

// Optional declares a parameter that may be absent or null. *dst is nil
// unless a value was bound.
func Optional[T any](name string, dec DecodeFunc[T], dst **T) Spec {
	s := Spec{name: name, target: addressOf(dst), typ: typeOf[T]()}
	if dec != nil && dst != nil {
		s.reset = func() { *dst = nil }
		s.decode = func(n jsontok.Node) error {
			v, err := dec(name, n)
			if err != nil {
				return err
			}
			*dst = &v
			return nil
		}
	}
	return s
}

// OptionalDefault declares an optional parameter whose destination holds
// def unless a value was bound.
func OptionalDefault[T any](name string, dec DecodeFunc[T], dst *T, def T) Spec {
	s := Spec{name: name, target: addressOf(dst), typ: typeOf[T]()}
	if dec != nil && dst != nil {
		s.reset = func() { *dst = def }
		s.decode = func(n jsontok.Node) error {
			v, err := dec(name, n)
			if err != nil {
				return err
			}
			*dst = v
			return nil
		}
	}
	return s
}

// AllowExtra marks the declaration as tolerant of unknown names and
// trailing positional values. It declares no parameter.
func AllowExtra() Spec { return Spec{extra: true} }

// bind marks s as set before decoding, so a failed decode still counts as
// an occurrence of the name.
func (s *Spec) bind(n jsontok.Node) error {
	s.set = true
	return s.decode(n)
}

func addressOf(ptr any) uintptr {
	v := reflect.ValueOf(ptr)
	if v.Kind() != reflect.Pointer || v.IsNil() {
		return 0
	}
	return v.Pointer()
}

func typeOf[T any]() reflect.Type {
	return reflect.TypeOf((*T)(nil)).Elem()
}
