package resource

import (
	"sync"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/wippyai/owned/errors"
)

// Table maps integer handles to owned values and notifies observers about
// their lifecycle. Values implementing Dropper are dropped when removed.
type Table struct {
	backend   Backend
	observers []Observer
	obsMu     sync.RWMutex
	closed    bool
	closeMu   sync.RWMutex
}

// NewTable creates a table with DefaultOptions.
func NewTable() *Table {
	return NewTableWithOptions(DefaultOptions())
}

// NewTableWithOptions creates a table backed by a LocalBackend.
func NewTableWithOptions(opts Options) *Table {
	return NewTableWithBackend(NewLocalBackend(opts.InitialCapacity), opts.Observers...)
}

// NewTableWithBackend creates a table over an existing backend.
func NewTableWithBackend(b Backend, observers ...Observer) *Table {
	t := &Table{backend: b}
	t.observers = append(t.observers, observers...)
	return t
}

// Insert adds a value and returns its handle.
func (t *Table) Insert(value any) (Handle, error) {
	t.closeMu.RLock()
	closed := t.closed
	t.closeMu.RUnlock()
	if closed {
		return 0, errors.Closed(errors.PhaseTable, "resource table")
	}

	handle, err := t.backend.Create(value)
	if err != nil {
		return 0, err
	}

	t.notify(Event{
		Type:   EventCreated,
		Handle: handle,
		Value:  value,
	})

	return handle, nil
}

// Get retrieves a value by handle.
func (t *Table) Get(handle Handle) (any, bool) {
	return t.backend.Get(handle)
}

// Take removes a value without dropping it. The caller becomes responsible
// for its cleanup.
func (t *Table) Take(handle Handle) (any, error) {
	return t.TakeIf(handle, nil)
}

// TakeIf is like Take but removes the value only when accept returns nil
// for it. The check runs under the backend lock, so a handle reused by a
// concurrent Remove and Insert is never taken by mistake. accept must not
// call back into the table.
func (t *Table) TakeIf(handle Handle, accept func(value any) error) (any, error) {
	var (
		value any
		err   error
	)
	if accept == nil {
		value, err = t.backend.Remove(handle, false)
	} else {
		value, err = t.backend.RemoveIf(handle, accept)
	}
	if err != nil {
		return nil, err
	}

	t.notify(Event{
		Type:   EventTaken,
		Handle: handle,
		Value:  value,
	})

	return value, nil
}

// Remove deletes a value and drops it. The returned error is the drop error,
// if any; the handle is invalid afterwards either way.
func (t *Table) Remove(handle Handle) error {
	return t.remove(handle, false)
}

func (t *Table) remove(handle Handle, force bool) error {
	value, err := t.backend.Remove(handle, force)
	if err != nil {
		return err
	}

	var dropErr error
	if d, ok := value.(Dropper); ok {
		dropErr = d.Drop()
		if dropErr != nil {
			Logger().Warn("resource drop failed",
				zap.Uint32("handle", uint32(handle)),
				zap.Error(dropErr))
		}
	}

	t.notify(Event{
		Type:   EventDropped,
		Handle: handle,
		Value:  value,
		Err:    dropErr,
	})

	return dropErr
}

// Borrow grants temporary access to a value. A borrowed handle can be
// neither taken nor removed until every borrow is returned.
func (t *Table) Borrow(handle Handle) (any, bool) {
	value, ok := t.backend.Borrow(handle)
	if !ok {
		return nil, false
	}

	t.notify(Event{
		Type:   EventBorrowed,
		Handle: handle,
		Value:  value,
	})

	return value, true
}

// ReturnBorrow ends one borrow of handle.
func (t *Table) ReturnBorrow(handle Handle) bool {
	if !t.backend.ReturnBorrow(handle) {
		return false
	}

	t.notify(Event{
		Type:   EventBorrowReturned,
		Handle: handle,
	})

	return true
}

// Subscribe adds an observer for lifecycle events.
func (t *Table) Subscribe(o Observer) {
	t.obsMu.Lock()
	defer t.obsMu.Unlock()
	t.observers = append(t.observers, o)
}

// Unsubscribe removes an observer.
func (t *Table) Unsubscribe(o Observer) {
	t.obsMu.Lock()
	defer t.obsMu.Unlock()
	for i, obs := range t.observers {
		if obs == o {
			t.observers = append(t.observers[:i], t.observers[i+1:]...)
			return
		}
	}
}

// Len returns the number of live resources.
func (t *Table) Len() int {
	return t.backend.Len()
}

// Clear drops every resource without outstanding borrows.
func (t *Table) Clear() error {
	return t.drain(false)
}

// Close drops every resource, borrowed or not, and stops accepting inserts.
func (t *Table) Close() error {
	t.closeMu.Lock()
	if t.closed {
		t.closeMu.Unlock()
		return nil
	}
	t.closed = true
	t.closeMu.Unlock()

	err := t.drain(true)
	return multierr.Append(err, t.backend.Close())
}

func (t *Table) drain(force bool) error {
	// Collect handles first to avoid holding the backend lock during drops
	var handles []Handle
	t.backend.Each(func(h Handle, _ any) bool {
		handles = append(handles, h)
		return true
	})

	var err error
	for _, h := range handles {
		rerr := t.remove(h, force)
		if rerr == nil {
			continue
		}
		var e *errors.Error
		if errors.As(rerr, &e) && e.Kind == errors.KindBorrowed {
			continue
		}
		err = multierr.Append(err, rerr)
	}
	return err
}

func (t *Table) notify(e Event) {
	t.obsMu.RLock()
	defer t.obsMu.RUnlock()
	for _, o := range t.observers {
		o.OnResourceEvent(e)
	}
}
