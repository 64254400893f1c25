// Package resource provides a handle table for owned values that leave Go's
// ownership discipline.
//
// Some consumers cannot hold a Go pointer: WebAssembly guests, C callbacks,
// and other foreign code can only store an integer. A Table parks an owned
// value behind a uint32 Handle until the value is taken back or dropped.
//
// # Lifecycle
//
//	insert  - Ownership moves into the table, caller receives a handle
//	borrow  - Temporary access; the handle cannot be taken or dropped meanwhile
//	take    - Ownership moves back out of the table without cleanup
//	remove  - The value is dropped and the handle invalidated
//
// # Handle Table
//
//	table := resource.NewTable()
//	defer table.Close()
//
//	h, err := table.Insert(value)
//	v, ok := table.Get(h)
//	v, err = table.Take(h)   // caller owns v again
//	err = table.Remove(h)    // v.Drop() runs if v is a Dropper
//
// Handle 0 is reserved and never returned by Insert.
//
// # Observers
//
// Register observers to track resource lifecycle events:
//
//	table.Subscribe(myObserver)
//
// The metrics package provides an observer exporting Prometheus counters.
//
// # Memory Management
//
// Values are not garbage collected out of the table. Close drops every value
// still present, including borrowed ones, and combines their drop errors.
package resource
