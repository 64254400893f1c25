package resource

// Handle is an opaque reference to a resource in a table.
// Handle 0 is reserved and always invalid.
type Handle uint32

// EventType identifies a resource lifecycle notification.
type EventType uint8

const (
	EventCreated EventType = iota
	EventTaken
	EventDropped
	EventBorrowed
	EventBorrowReturned
)

func (e EventType) String() string {
	switch e {
	case EventCreated:
		return "created"
	case EventTaken:
		return "taken"
	case EventDropped:
		return "dropped"
	case EventBorrowed:
		return "borrowed"
	case EventBorrowReturned:
		return "borrow_returned"
	default:
		return "unknown"
	}
}

// Event represents a resource lifecycle event.
type Event struct {
	Value  any
	Err    error
	Handle Handle
	Type   EventType
}

// Observer receives notifications about resource lifecycle events.
type Observer interface {
	OnResourceEvent(Event)
}

// Backend provides the underlying storage mechanism for resources.
type Backend interface {
	// Create stores a value and returns a handle.
	Create(value any) (Handle, error)

	// Get retrieves a value by handle.
	Get(handle Handle) (any, bool)

	// Remove deletes a resource and returns its value.
	// Resources with outstanding borrows are only removed when force is set.
	Remove(handle Handle, force bool) (any, error)

	// RemoveIf removes a resource only when accept returns nil for its
	// current value. The check and the removal are atomic; accept's error is
	// returned unchanged and the resource stays in place.
	RemoveIf(handle Handle, accept func(value any) error) (any, error)

	// Borrow increments the borrow count for a handle.
	Borrow(handle Handle) (any, bool)

	// ReturnBorrow decrements the borrow count for a handle.
	ReturnBorrow(handle Handle) bool

	// Len returns the number of live resources.
	Len() int

	// Each iterates over all live resources.
	Each(func(Handle, any) bool)

	// Close drops all remaining resources and rejects further creation.
	Close() error
}

// Dropper is optionally implemented by resource values that need cleanup.
type Dropper interface {
	Drop() error
}

// Options configures a Table.
type Options struct {
	// Observers are subscribed before the table hands out its first handle.
	Observers []Observer

	// InitialCapacity pre-sizes the slot arena.
	InitialCapacity int
}

// DefaultOptions returns the options used by NewTable.
func DefaultOptions() Options {
	return Options{
		InitialCapacity: 64,
	}
}
