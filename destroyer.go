package owned

import (
	"io"
	"reflect"

	"go.uber.org/zap"

	"github.com/wippyai/owned/errors"
)

// Destroyer releases a value of type T. An Owner invokes its destroyer at
// most once per owned address.
type Destroyer[T any] interface {
	Destroy(p *T) error
}

// DestroyerCloner is implemented by destroyers that can produce an
// independent copy of themselves. Owner.Clone uses it when present.
type DestroyerCloner[T any] interface {
	Destroyer[T]
	CloneDestroyer() Destroyer[T]
}

// Deferrer is implemented by destroyers whose teardown must run on the
// goroutine that owns the resource, such as frees that call into a
// WebAssembly instance. When a leaked owner is reclaimed, DeferDestroy is
// called on the runtime's cleanup goroutine instead of Destroy. It must not
// block and must not touch the resource beyond handing it over.
type Deferrer[T any] interface {
	DeferDestroy(p *T)
}

// DestroyFunc adapts a function to the Destroyer interface.
type DestroyFunc[T any] func(p *T) error

// Destroy calls f(p).
func (f DestroyFunc[T]) Destroy(p *T) error {
	return f(p)
}

// DefaultDestroyer runs the value's own teardown, then zeroes it in place.
// Teardown means Close on *T if it implements io.Closer, otherwise Close on
// T itself when T is a non-nil io.Closer.
type DefaultDestroyer[T any] struct{}

// Default returns the destroyer used when none is supplied.
func Default[T any]() Destroyer[T] {
	return DefaultDestroyer[T]{}
}

// Destroy implements Destroyer.
func (DefaultDestroyer[T]) Destroy(p *T) error {
	var err error
	if c, ok := any(p).(io.Closer); ok {
		err = c.Close()
	} else if c, ok := any(*p).(io.Closer); ok && !isNil(c) {
		err = c.Close()
	}

	var zero T
	*p = zero
	return err
}

func isNil(v any) bool {
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Pointer, reflect.Map, reflect.Slice, reflect.Func, reflect.Chan, reflect.Interface:
		return rv.IsNil()
	}
	return false
}

// destroy runs d on p and converts both returned errors and panics into
// structured errors.
func destroy[T any](p *T, d Destroyer[T]) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = errors.DestroyPanic(typeName[T](), r)
		}
	}()

	if derr := d.Destroy(p); derr != nil {
		return errors.DestroyFailed(typeName[T](), derr)
	}
	return nil
}

// deferDestroy hands p to d. A panic is logged; there is no caller to return
// it to.
func deferDestroy[T any](p *T, d Deferrer[T]) {
	defer func() {
		if r := recover(); r != nil {
			Logger().Warn("deferred destroy failed",
				zap.String("type", typeName[T]()),
				zap.Error(errors.DestroyPanic(typeName[T](), r)))
		}
	}()
	d.DeferDestroy(p)
}

func typeName[T any]() string {
	return reflect.TypeFor[T]().String()
}
