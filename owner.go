package owned

import (
	"runtime"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/wippyai/owned/errors"
)

// Owner exclusively owns a single value of type T and destroys it exactly
// once. The zero value is an empty owner using the default destroyer.
//
// Owners must be used through a pointer and never copied: every operation on
// a by-value copy panics with a KindIllegalCopy error. An Owner is not safe
// for concurrent use.
//
// An owner that becomes unreachable while still holding a value is reported
// as leaked and its destroyer runs on the runtime's cleanup goroutine, unless
// the destroyer implements Deferrer.
type Owner[T any] struct {
	noCopy noCopy
	s      *slot[T]
}

// slot is the state shared between an owner and its leak cleanup. It must
// never point back at the owner.
type slot[T any] struct {
	ptr *T
	d   Destroyer[T]
}

// Empty returns an owner that holds nothing.
func Empty[T any]() *Owner[T] {
	o := &Owner[T]{}
	o.init(errors.PhaseAdopt)
	return o
}

// New allocates a copy of v and returns its owner.
func New[T any](v T) *Owner[T] {
	p := new(T)
	*p = v
	return Adopt(p)
}

// Adopt takes exclusive ownership of p using the default destroyer.
// The caller must not use or destroy p independently afterwards.
// A nil p yields an empty owner.
func Adopt[T any](p *T) *Owner[T] {
	return AdoptWith(p, nil)
}

// AdoptWith takes exclusive ownership of p and destroys it with d.
// A nil d selects the default destroyer.
func AdoptWith[T any](p *T, d Destroyer[T]) *Owner[T] {
	o := Empty[T]()
	if d != nil {
		o.s.d = d
	}
	if p != nil {
		track(errors.PhaseAdopt, p)
		o.s.ptr = p
	}
	return o
}

func (o *Owner[T]) init(phase errors.Phase) {
	if o.noCopy.init() {
		o.s = &slot[T]{d: Default[T]()}
		runtime.AddCleanup(o, reclaim[T], o.s)
		return
	}
	if !o.noCopy.check() {
		err := errors.IllegalCopy(phase, typeName[T]())
		Logger().Error("owner used through a copy", zap.String("type", typeName[T]()), zap.Error(err))
		panic(err)
	}
}

// reclaim runs on the runtime's cleanup goroutine when an owner becomes
// unreachable. Anything still held was never closed or released. Destroyers
// implementing Deferrer only receive the value here.
func reclaim[T any](s *slot[T]) {
	p := s.ptr
	if p == nil {
		return
	}
	s.ptr = nil
	untrack(p)

	if d, ok := s.d.(Deferrer[T]); ok {
		Logger().Error("owner leaked; handing unreachable value to its destroyer", zap.String("type", typeName[T]()))
		deferDestroy(p, d)
		return
	}

	Logger().Error("owner leaked; destroying unreachable value", zap.String("type", typeName[T]()))
	if err := destroy(p, s.d); err != nil {
		Logger().Warn("destroyer failed", zap.String("type", typeName[T]()), zap.Error(err))
	}
}

// Get returns the owned address without transferring ownership, or nil when
// the owner is empty. The address must not be used after the owner's next
// mutation.
func (o *Owner[T]) Get() *T {
	o.init(errors.PhaseAccess)
	return o.s.ptr
}

// Deref returns the owned address, or a KindEmpty error when there is none.
func (o *Owner[T]) Deref() (*T, error) {
	o.init(errors.PhaseAccess)
	if o.s.ptr == nil {
		return nil, errors.Empty(errors.PhaseAccess, typeName[T]())
	}
	return o.s.ptr, nil
}

// MustDeref is like Deref but panics when the owner is empty.
func (o *Owner[T]) MustDeref() *T {
	p, err := o.Deref()
	if err != nil {
		panic(err)
	}
	return p
}

// IsEmpty reports whether the owner holds nothing.
func (o *Owner[T]) IsEmpty() bool {
	return o.Get() == nil
}

// Destroyer returns the installed destroyer.
func (o *Owner[T]) Destroyer() Destroyer[T] {
	o.init(errors.PhaseAccess)
	return o.s.d
}

// Reset destroys the held value with the current destroyer and adopts p in
// its place. Resetting to the address already held is a no-op. The new value
// is adopted even when destroying the old one fails; that failure is
// returned.
func (o *Owner[T]) Reset(p *T) error {
	o.init(errors.PhaseReset)

	old := o.s.ptr
	if p == old {
		if p != nil {
			Logger().Debug("reset to held address ignored", zap.String("type", typeName[T]()))
		}
		return nil
	}

	track(errors.PhaseReset, p)
	o.s.ptr = p
	if old == nil {
		return nil
	}

	untrack(old)
	return o.destroy(old)
}

// Release empties the owner and returns the previously held address without
// destroying it. The caller becomes responsible for the value.
func (o *Owner[T]) Release() *T {
	o.init(errors.PhaseAccess)

	p := o.s.ptr
	o.s.ptr = nil
	untrack(p)
	return p
}

// Swap exchanges held values and destroyers with other. Nothing is destroyed.
func (o *Owner[T]) Swap(other *Owner[T]) {
	o.init(errors.PhaseReset)
	other.init(errors.PhaseReset)
	if o == other {
		return
	}
	*o.s, *other.s = *other.s, *o.s
}

// Close destroys the held value, if any, and leaves the owner empty. It is
// safe to call more than once; only the first call on a given value destroys
// it. Destroyer errors and panics are returned as structured errors.
//
// A deferred Close drops its error; defer CloseInto instead so the failure
// reaches the caller.
func (o *Owner[T]) Close() error {
	o.init(errors.PhaseDestroy)

	p := o.s.ptr
	if p == nil {
		return nil
	}
	o.s.ptr = nil
	untrack(p)
	return o.destroy(p)
}

// CloseInto closes the owner and appends any failure to *errp, keeping the
// error already stored there. It is the way to end an owner's scope:
//
//	func run() (err error) {
//		o := owned.Adopt(p)
//		defer o.CloseInto(&err)
//		...
//	}
func (o *Owner[T]) CloseInto(errp *error) {
	multierr.AppendInto(errp, o.Close())
}

// Clone returns a new owner holding a copy of the value made by copyValue.
// The address is never shared: copyValue must return a distinct allocation.
// The destroyer is cloned when it implements DestroyerCloner and reused
// otherwise.
func (o *Owner[T]) Clone(copyValue func(*T) (*T, error)) (*Owner[T], error) {
	o.init(errors.PhaseClone)

	if copyValue == nil {
		return nil, errors.InvalidInput(errors.PhaseClone, "nil copy function")
	}
	p := o.s.ptr
	if p == nil {
		return nil, errors.Empty(errors.PhaseClone, typeName[T]())
	}

	cp, err := copyValue(p)
	if err != nil {
		return nil, errors.New(errors.PhaseClone, errors.KindCopyFailed).
			GoType(typeName[T]()).
			Detail("copy value").
			Cause(err).
			Build()
	}
	if cp == nil {
		return nil, errors.InvalidInput(errors.PhaseClone, "copy function returned nil")
	}
	if cp == p {
		return nil, errors.DoubleAdopt(errors.PhaseClone, typeName[T](), p)
	}

	d := o.s.d
	if c, ok := d.(DestroyerCloner[T]); ok {
		d = c.CloneDestroyer()
	}
	return AdoptWith(cp, d), nil
}

func (o *Owner[T]) destroy(p *T) error {
	err := destroy(p, o.s.d)
	if err != nil {
		Logger().Warn("destroyer failed", zap.String("type", typeName[T]()), zap.Error(err))
	}
	return err
}
