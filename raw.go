package owned

import (
	"fmt"

	"github.com/wippyai/owned/errors"
	"github.com/wippyai/owned/resource"
)

// Raw is an address outside ownership discipline together with the
// destroyer that must eventually release it. Whoever holds a Raw is fully
// responsible for the value until it is passed to FromRaw.
type Raw[T any] struct {
	Ptr       *T
	Destroyer Destroyer[T]
}

// IntoRaw empties the owner and returns the held address and destroyer
// without destroying anything.
func (o *Owner[T]) IntoRaw() Raw[T] {
	o.init(errors.PhaseExport)

	r := Raw[T]{Ptr: o.s.ptr, Destroyer: o.s.d}
	o.s.ptr = nil
	untrack(r.Ptr)
	return r
}

// FromRaw re-establishes ownership over r. The caller promises r came from
// IntoRaw, or was assembled with the same guarantees, and is not used again.
func FromRaw[T any](r Raw[T]) *Owner[T] {
	return AdoptWith(r.Ptr, r.Destroyer)
}

// exported is the table entry for a value moved into a resource.Table.
type exported[T any] struct {
	ptr *T
	d   Destroyer[T]
}

// Drop implements resource.Dropper.
func (e *exported[T]) Drop() error {
	p := e.ptr
	if p == nil {
		return nil
	}
	e.ptr = nil
	return destroy(p, e.d)
}

func (e *exported[T]) goType() string {
	return typeName[T]()
}

// Export moves the held value into t and returns its handle. The owner is
// left empty. The table drops the value with the owner's destroyer if it is
// removed or the table is closed before Import takes it back.
func (o *Owner[T]) Export(t *resource.Table) (resource.Handle, error) {
	o.init(errors.PhaseExport)

	p := o.s.ptr
	if p == nil {
		return 0, errors.Empty(errors.PhaseExport, typeName[T]())
	}

	h, err := t.Insert(&exported[T]{ptr: p, d: o.s.d})
	if err != nil {
		return 0, rephase(errors.PhaseExport, err)
	}

	o.s.ptr = nil
	untrack(p)
	return h, nil
}

// Import takes the value behind h out of t and returns its owner, restoring
// the destroyer it was exported with. The handle is invalid afterwards.
// A value of another type is left in the table.
func Import[T any](t *resource.Table, h resource.Handle) (*Owner[T], error) {
	v, err := t.TakeIf(h, func(v any) error {
		if _, ok := v.(*exported[T]); !ok {
			return errors.TypeMismatch(errors.PhaseImport, typeName[T](), describe(v))
		}
		return nil
	})
	if err != nil {
		return nil, rephase(errors.PhaseImport, err)
	}

	e := v.(*exported[T])
	p := e.ptr
	e.ptr = nil
	return AdoptWith(p, e.d), nil
}

// rephase reports a table failure under the ownership phase that caused it,
// keeping the table error as the cause.
func rephase(phase errors.Phase, err error) error {
	var e *errors.Error
	if !errors.As(err, &e) || e.Phase == phase {
		return err
	}
	return errors.Wrap(phase, e.Kind, err, "resource table")
}

func describe(v any) string {
	if e, ok := v.(interface{ goType() string }); ok {
		return e.goType()
	}
	return fmt.Sprintf("%T", v)
}
