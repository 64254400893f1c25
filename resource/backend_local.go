package resource

import (
	"sync"

	"go.uber.org/multierr"

	"github.com/wippyai/owned/errors"
)

// LocalBackend is an in-memory slot arena with a free list and borrow tracking.
type LocalBackend struct {
	entries  []entry
	freeList []Handle
	mu       sync.RWMutex
	closed   bool
}

type entry struct {
	value       any
	borrowCount uint32
	valid       bool
}

// NewLocalBackend creates a new in-memory backend.
func NewLocalBackend(capacity int) *LocalBackend {
	if capacity < 0 {
		capacity = 0
	}
	return &LocalBackend{
		entries:  make([]entry, 0, capacity),
		freeList: make([]Handle, 0, 16),
	}
}

// Create stores a value and returns a handle.
func (b *LocalBackend) Create(value any) (Handle, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return 0, errors.Closed(errors.PhaseTable, "resource backend")
	}

	e := entry{
		value: value,
		valid: true,
	}

	if len(b.freeList) > 0 {
		handle := b.freeList[len(b.freeList)-1]
		b.freeList = b.freeList[:len(b.freeList)-1]
		b.entries[handle-1] = e
		return handle, nil
	}

	b.entries = append(b.entries, e)
	return Handle(len(b.entries)), nil
}

// lookup returns the live entry for handle. Callers hold b.mu.
func (b *LocalBackend) lookup(handle Handle) *entry {
	if handle == 0 {
		return nil
	}
	idx := int(handle - 1)
	if idx >= len(b.entries) {
		return nil
	}
	e := &b.entries[idx]
	if !e.valid {
		return nil
	}
	return e
}

// Get retrieves a value by handle.
func (b *LocalBackend) Get(handle Handle) (any, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	e := b.lookup(handle)
	if e == nil {
		return nil, false
	}
	return e.value, true
}

// Remove deletes a resource and returns its value.
func (b *LocalBackend) Remove(handle Handle, force bool) (any, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	return b.removeLocked(handle, force, nil)
}

// RemoveIf deletes a resource when accept approves its value.
func (b *LocalBackend) RemoveIf(handle Handle, accept func(value any) error) (any, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	return b.removeLocked(handle, false, accept)
}

func (b *LocalBackend) removeLocked(handle Handle, force bool, accept func(any) error) (any, error) {
	e := b.lookup(handle)
	if e == nil {
		return nil, errors.NotFound(errors.PhaseTable, "handle", uint32(handle))
	}

	if e.borrowCount > 0 && !force {
		return nil, errors.Borrowed(errors.PhaseTable, uint32(handle))
	}

	if accept != nil {
		if err := accept(e.value); err != nil {
			return nil, err
		}
	}

	value := e.value
	*e = entry{}
	b.freeList = append(b.freeList, handle)

	return value, nil
}

// Borrow increments the borrow count for a handle.
func (b *LocalBackend) Borrow(handle Handle) (any, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	e := b.lookup(handle)
	if e == nil {
		return nil, false
	}

	e.borrowCount++
	return e.value, true
}

// ReturnBorrow decrements the borrow count for a handle.
func (b *LocalBackend) ReturnBorrow(handle Handle) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	e := b.lookup(handle)
	if e == nil || e.borrowCount == 0 {
		return false
	}

	e.borrowCount--
	return true
}

// Close drops every remaining value and rejects further creation.
func (b *LocalBackend) Close() error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil
	}
	b.closed = true

	var pending []any
	for i := range b.entries {
		if b.entries[i].valid {
			pending = append(pending, b.entries[i].value)
		}
	}
	b.entries = nil
	b.freeList = nil
	b.mu.Unlock()

	// Droppers run unlocked so they may call back into the backend.
	var err error
	for _, v := range pending {
		if d, ok := v.(Dropper); ok {
			err = multierr.Append(err, d.Drop())
		}
	}
	return err
}

// Len returns the number of live resources.
func (b *LocalBackend) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()

	count := 0
	for _, e := range b.entries {
		if e.valid {
			count++
		}
	}
	return count
}

// Each iterates over all live resources.
func (b *LocalBackend) Each(fn func(Handle, any) bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for i, e := range b.entries {
		if e.valid {
			if !fn(Handle(i+1), e.value) {
				break
			}
		}
	}
}
