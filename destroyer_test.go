package owned

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type closeCounter struct {
	closed int
	err    error
	name   string
}

func (c *closeCounter) Close() error {
	c.closed++
	return c.err
}

type valueCloser struct {
	closed *int
}

func (v valueCloser) Close() error {
	*v.closed++
	return nil
}

func TestDefaultDestroyer(t *testing.T) {
	t.Run("plain value is zeroed", func(t *testing.T) {
		p := new(int)
		*p = 12
		require.NoError(t, Default[int]().Destroy(p))
		assert.Zero(t, *p)
	})

	t.Run("pointer closer", func(t *testing.T) {
		c := &closeCounter{name: "a"}
		require.NoError(t, Default[closeCounter]().Destroy(c))
		assert.Equal(t, closeCounter{}, *c, "value should be zeroed after Close")
	})

	t.Run("value closer", func(t *testing.T) {
		n := 0
		v := valueCloser{closed: &n}
		require.NoError(t, Default[valueCloser]().Destroy(&v))
		assert.Equal(t, 1, n)
		assert.Nil(t, v.closed)
	})

	t.Run("held pointer closer", func(t *testing.T) {
		c := &closeCounter{}
		p := &c
		require.NoError(t, Default[*closeCounter]().Destroy(p))
		assert.Equal(t, 1, c.closed)
		assert.Nil(t, *p)
	})

	t.Run("nil held pointer is skipped", func(t *testing.T) {
		var c *closeCounter
		require.NoError(t, Default[*closeCounter]().Destroy(&c))
	})

	t.Run("close error is returned", func(t *testing.T) {
		cause := errors.New("flush failed")
		c := &closeCounter{err: cause}
		p := &c
		assert.ErrorIs(t, Default[*closeCounter]().Destroy(p), cause)
		assert.Nil(t, *p)
	})
}

func TestOwner_DefaultDestroyerClosesOnce(t *testing.T) {
	c := &closeCounter{}
	func() {
		o := New(c)
		defer o.Close()
	}()
	assert.Equal(t, 1, c.closed)
}

func TestDestroyFunc(t *testing.T) {
	var got *int
	d := DestroyFunc[int](func(p *int) error {
		got = p
		return nil
	})

	p := new(int)
	require.NoError(t, d.Destroy(p))
	assert.Same(t, p, got)
}

func TestDestroy_WrapsFailures(t *testing.T) {
	cause := errors.New("nope")
	err := destroy(new(int), DestroyFunc[int](func(*int) error { return cause }))
	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "Go type int")

	err = destroy(new(int), DestroyFunc[int](func(*int) error { panic(cause) }))
	assert.ErrorIs(t, err, cause)

	assert.NoError(t, destroy(new(int), Default[int]()))
}
