package owned

import (
	"errors"
	"runtime"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	uerrors "github.com/wippyai/owned/errors"
)

// counter is a destroyer recording how often each address was destroyed.
type counter struct {
	calls map[*int]int
	err   error
}

func newCounter() *counter {
	return &counter{calls: map[*int]int{}}
}

func (c *counter) Destroy(p *int) error {
	c.calls[p]++
	return c.err
}

func (c *counter) total() int {
	n := 0
	for _, v := range c.calls {
		n += v
	}
	return n
}

func TestOwner_SingleDestruction(t *testing.T) {
	c := newCounter()
	p := new(int)

	func() {
		o := AdoptWith[int](p, c)
		defer o.Close()
		*o.Get() = 7
	}()

	assert.Equal(t, 1, c.calls[p])
}

func TestOwner_CloseIsIdempotent(t *testing.T) {
	c := newCounter()
	p := new(int)
	o := AdoptWith[int](p, c)

	require.NoError(t, o.Close())
	require.NoError(t, o.Close())
	assert.Equal(t, 1, c.calls[p])
	assert.True(t, o.IsEmpty())
}

func TestOwner_ReleaseSuppressesDestruction(t *testing.T) {
	c := newCounter()
	p := new(int)
	*p = 42

	var released *int
	func() {
		o := AdoptWith[int](p, c)
		defer o.Close()
		released = o.Release()
		assert.True(t, o.IsEmpty())
	}()

	assert.Same(t, p, released)
	assert.Equal(t, 42, *released)
	assert.Zero(t, c.total())
}

func TestOwner_ResetDestroysOld(t *testing.T) {
	c := newCounter()
	r, s := new(int), new(int)

	func() {
		o := AdoptWith[int](r, c)
		defer o.Close()

		assert.Same(t, r, o.Get())
		require.NoError(t, o.Reset(s))
		assert.Equal(t, 1, c.calls[r])
		assert.Zero(t, c.calls[s])
		assert.Same(t, s, o.Get())
	}()

	assert.Equal(t, 1, c.calls[s])
	assert.Equal(t, 1, c.calls[r])
}

func TestOwner_ResetToSameAddressIsNoop(t *testing.T) {
	c := newCounter()
	p := new(int)
	o := AdoptWith[int](p, c)
	defer o.Close()

	require.NoError(t, o.Reset(p))
	assert.Zero(t, c.calls[p])
	assert.Same(t, p, o.Get())
}

func TestOwner_ResetToNilEmpties(t *testing.T) {
	c := newCounter()
	p := new(int)
	o := AdoptWith[int](p, c)

	require.NoError(t, o.Reset(nil))
	assert.Equal(t, 1, c.calls[p])
	assert.True(t, o.IsEmpty())

	require.NoError(t, o.Close())
	assert.Equal(t, 1, c.total())
}

func TestOwner_ResetUsesCurrentDestroyer(t *testing.T) {
	first, second := newCounter(), newCounter()
	a, b := new(int), new(int)

	oa := AdoptWith[int](a, first)
	defer oa.Close()
	ob := AdoptWith[int](b, second)
	defer ob.Close()

	oa.Swap(ob)
	require.NoError(t, oa.Reset(new(int)))

	assert.Equal(t, 1, second.calls[b])
	assert.Zero(t, first.total())
}

func TestOwner_ResetKeepsNewValueWhenDestroyFails(t *testing.T) {
	c := newCounter()
	c.err = errors.New("teardown failed")
	old, next := new(int), new(int)
	o := AdoptWith[int](old, c)

	err := o.Reset(next)
	require.Error(t, err)
	assert.ErrorIs(t, err, c.err)
	assert.Same(t, next, o.Get())

	c.err = nil
	require.NoError(t, o.Close())
	assert.Equal(t, 1, c.calls[old])
	assert.Equal(t, 1, c.calls[next])
}

func TestOwner_SwapPreservesExclusivity(t *testing.T) {
	c := newCounter()
	a, b := new(int), new(int)

	func() {
		oa := AdoptWith[int](a, c)
		defer oa.Close()
		ob := AdoptWith[int](b, c)
		defer ob.Close()

		oa.Swap(ob)
		assert.Same(t, b, oa.Get())
		assert.Same(t, a, ob.Get())
		assert.Zero(t, c.total())
	}()

	assert.Equal(t, 2, c.total())
	assert.Equal(t, 1, c.calls[a])
	assert.Equal(t, 1, c.calls[b])
}

func TestOwner_SwapExchangesDestroyers(t *testing.T) {
	ca, cb := newCounter(), newCounter()
	a, b := new(int), new(int)

	oa := AdoptWith[int](a, ca)
	ob := AdoptWith[int](b, cb)
	oa.Swap(ob)

	assert.Same(t, Destroyer[int](cb), oa.Destroyer())
	assert.Same(t, Destroyer[int](ca), ob.Destroyer())

	require.NoError(t, oa.Close())
	require.NoError(t, ob.Close())
	assert.Equal(t, 1, cb.calls[b])
	assert.Equal(t, 1, ca.calls[a])
}

func TestOwner_SwapWithSelf(t *testing.T) {
	c := newCounter()
	p := new(int)
	o := AdoptWith[int](p, c)
	defer o.Close()

	o.Swap(o)
	assert.Same(t, p, o.Get())
}

func TestOwner_SwapWithEmpty(t *testing.T) {
	c := newCounter()
	p := new(int)
	full := AdoptWith[int](p, c)
	empty := Empty[int]()

	full.Swap(empty)
	assert.True(t, full.IsEmpty())
	assert.Same(t, p, empty.Get())

	require.NoError(t, full.Close())
	assert.Zero(t, c.total())
	require.NoError(t, empty.Close())
	assert.Equal(t, 1, c.calls[p])
}

func TestOwner_RawRoundTrip(t *testing.T) {
	c := newCounter()
	p := new(int)

	o := AdoptWith[int](p, c)
	raw := o.IntoRaw()
	assert.True(t, o.IsEmpty())
	assert.Same(t, p, raw.Ptr)
	require.NoError(t, o.Close())
	assert.Zero(t, c.total())

	back := FromRaw(raw)
	assert.Same(t, Destroyer[int](c), back.Destroyer())
	require.NoError(t, back.Close())
	assert.Equal(t, 1, c.calls[p])
}

func TestOwner_EmptyIsInert(t *testing.T) {
	c := newCounter()

	o := AdoptWith[int](nil, c)
	require.NoError(t, o.Close())
	require.NoError(t, o.Reset(nil))
	assert.Nil(t, o.Get())
	assert.Zero(t, c.total())

	e := Empty[int]()
	assert.True(t, e.IsEmpty())
	assert.IsType(t, DefaultDestroyer[int]{}, e.Destroyer())
	require.NoError(t, e.Close())
}

func TestOwner_ZeroValueIsEmpty(t *testing.T) {
	var o Owner[int]
	assert.True(t, o.IsEmpty())

	p := new(int)
	require.NoError(t, o.Reset(p))
	assert.Same(t, p, o.Get())
	require.NoError(t, o.Close())
}

func TestOwner_Deref(t *testing.T) {
	o := New(5)
	defer o.Close()

	p, err := o.Deref()
	require.NoError(t, err)
	assert.Equal(t, 5, *p)
	assert.Equal(t, 5, *o.MustDeref())

	e := Empty[int]()
	_, err = e.Deref()
	assert.ErrorIs(t, err, &uerrors.Error{Phase: uerrors.PhaseAccess, Kind: uerrors.KindEmpty})
	assert.Panics(t, func() { e.MustDeref() })
}

func TestOwner_CopyPanics(t *testing.T) {
	o := New(1)
	defer o.Close()

	cp := new(Owner[int])
	*cp = *o //nolint:govet // deliberate copy

	assert.PanicsWithError(t,
		uerrors.IllegalCopy(uerrors.PhaseAccess, "int").Error(),
		func() { cp.Get() })
	assert.Panics(t, func() { cp.Close() })
}

func TestOwner_DestroyerPanicIsRecovered(t *testing.T) {
	calls := 0
	o := AdoptWith[int](new(int), DestroyFunc[int](func(*int) error {
		calls++
		panic("boom")
	}))

	err := o.Close()
	require.Error(t, err)
	assert.ErrorIs(t, err, &uerrors.Error{Phase: uerrors.PhaseDestroy, Kind: uerrors.KindDestroyPanic})
	assert.Contains(t, err.Error(), "boom")
	assert.True(t, o.IsEmpty())

	require.NoError(t, o.Close())
	assert.Equal(t, 1, calls)
}

func TestOwner_DestroyErrorIsLogged(t *testing.T) {
	core, logs := observer.New(zapcore.WarnLevel)
	prev := Logger()
	SetLogger(zap.New(core))
	defer SetLogger(prev)

	c := newCounter()
	c.err = errors.New("disk gone")
	o := AdoptWith[int](new(int), c)

	err := o.Close()
	assert.ErrorIs(t, err, c.err)
	assert.ErrorIs(t, err, &uerrors.Error{Phase: uerrors.PhaseDestroy, Kind: uerrors.KindDestroyFailed})

	entries := logs.FilterMessage("destroyer failed").All()
	require.Len(t, entries, 1)
	assert.Equal(t, "int", entries[0].ContextMap()["type"])
}

func TestOwner_CloseIntoKeepsOriginalError(t *testing.T) {
	c := newCounter()
	c.err = errors.New("teardown failed")
	original := errors.New("work failed")

	run := func() (err error) {
		o := AdoptWith[int](new(int), c)
		defer o.CloseInto(&err)
		return original
	}

	err := run()
	assert.ErrorIs(t, err, original)
	assert.ErrorIs(t, err, c.err)

	c.err = nil
	clean := func() (err error) {
		o := AdoptWith[int](new(int), c)
		defer o.CloseInto(&err)
		return nil
	}
	assert.NoError(t, clean())
	assert.Equal(t, 2, c.total())
}

type cloningCounter struct {
	*counter
	clones int
}

func (c *cloningCounter) CloneDestroyer() Destroyer[int] {
	c.clones++
	return &cloningCounter{counter: newCounter()}
}

func TestOwner_Clone(t *testing.T) {
	c := newCounter()
	o := AdoptWith[int](new(int), c)
	defer o.Close()
	*o.Get() = 9

	cp, err := o.Clone(func(p *int) (*int, error) {
		n := *p
		return &n, nil
	})
	require.NoError(t, err)

	assert.NotSame(t, o.Get(), cp.Get())
	assert.Equal(t, 9, *cp.Get())
	assert.Same(t, Destroyer[int](c), cp.Destroyer())

	require.NoError(t, cp.Close())
	assert.Equal(t, 1, c.total())
	assert.False(t, o.IsEmpty())
}

func TestOwner_CloneUsesDestroyerCloner(t *testing.T) {
	cc := &cloningCounter{counter: newCounter()}
	o := AdoptWith[int](new(int), cc)
	defer o.Close()

	cp, err := o.Clone(func(p *int) (*int, error) { return new(int), nil })
	require.NoError(t, err)
	defer cp.Close()

	assert.Equal(t, 1, cc.clones)
	assert.NotSame(t, Destroyer[int](cc), cp.Destroyer())
}

func TestOwner_CloneRejectsSharedAddress(t *testing.T) {
	o := New(1)
	defer o.Close()

	_, err := o.Clone(func(p *int) (*int, error) { return p, nil })
	assert.ErrorIs(t, err, &uerrors.Error{Phase: uerrors.PhaseClone, Kind: uerrors.KindDoubleAdopt})

	_, err = o.Clone(func(p *int) (*int, error) { return nil, nil })
	assert.ErrorIs(t, err, &uerrors.Error{Phase: uerrors.PhaseClone, Kind: uerrors.KindInvalidInput})

	cause := errors.New("no memory")
	_, err = o.Clone(func(p *int) (*int, error) { return nil, cause })
	assert.ErrorIs(t, err, cause)
	assert.ErrorIs(t, err, &uerrors.Error{Phase: uerrors.PhaseClone, Kind: uerrors.KindCopyFailed})

	_, err = o.Clone(nil)
	assert.ErrorIs(t, err, &uerrors.Error{Phase: uerrors.PhaseClone, Kind: uerrors.KindInvalidInput})

	_, err = Empty[int]().Clone(func(p *int) (*int, error) { return new(int), nil })
	assert.ErrorIs(t, err, &uerrors.Error{Phase: uerrors.PhaseClone, Kind: uerrors.KindEmpty})
}

func TestOwner_LeakedOwnerIsReclaimed(t *testing.T) {
	var destroyed atomic.Int32
	var released atomic.Int32

	func() {
		AdoptWith[int](new(int), DestroyFunc[int](func(*int) error {
			destroyed.Add(1)
			return nil
		}))

		o := AdoptWith[int](new(int), DestroyFunc[int](func(*int) error {
			released.Add(1)
			return nil
		}))
		_ = o.Release()
	}()

	require.Eventually(t, func() bool {
		runtime.GC()
		return destroyed.Load() == 1
	}, 5*time.Second, 10*time.Millisecond)

	runtime.GC()
	assert.Zero(t, released.Load())
	assert.Equal(t, int32(1), destroyed.Load())
}

// handoff is a destroyer that implements Deferrer.
type handoff struct {
	destroyed atomic.Int32
	deferred  atomic.Int32
}

func (h *handoff) Destroy(*int) error {
	h.destroyed.Add(1)
	return nil
}

func (h *handoff) DeferDestroy(*int) {
	h.deferred.Add(1)
}

func TestOwner_LeakedOwnerDefersToDeferrer(t *testing.T) {
	d := &handoff{}

	func() {
		AdoptWith[int](new(int), d)
	}()

	require.Eventually(t, func() bool {
		runtime.GC()
		return d.deferred.Load() == 1
	}, 5*time.Second, 10*time.Millisecond)
	assert.Zero(t, d.destroyed.Load(), "leak path must not destroy through a Deferrer")

	o := AdoptWith[int](new(int), d)
	require.NoError(t, o.Close())
	assert.Equal(t, int32(1), d.destroyed.Load())
	assert.Equal(t, int32(1), d.deferred.Load())
}

func TestOwner_ScenarioAdoptGetResetScopeExit(t *testing.T) {
	c := newCounter()
	r, s := new(int), new(int)

	func() {
		o := AdoptWith[int](r, c)
		defer o.Close()

		assert.Same(t, r, o.Get())
		require.NoError(t, o.Reset(s))
		assert.Equal(t, 1, c.calls[r])
		assert.Same(t, s, o.Get())
	}()

	assert.Equal(t, 1, c.calls[s])
	assert.Equal(t, 1, c.calls[r])
}
