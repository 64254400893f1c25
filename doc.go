// Package owned provides exclusive-ownership handles for single heap values.
//
// An Owner holds exactly one value of a caller-chosen type together with a
// Destroyer that knows how to release it, and guarantees the destroyer runs
// exactly once for every address it owns.
//
// # Quick Start
//
//	func process(path string) (err error) {
//	    f, err := os.Open(path)
//	    if err != nil {
//	        return err
//	    }
//	    o := owned.Adopt(&f)  // default destroyer closes the file
//	    defer o.CloseInto(&err)
//	    ...
//	}
//
// CloseInto hands a destroy failure back to the caller. A bare defer o.Close()
// discards it, leaving only the warn-level log line, and the package logger
// is a no-op until SetLogger installs one.
//
// Custom teardown is injected with AdoptWith:
//
//	o := owned.AdoptWith(conn, owned.DestroyFunc[Conn](func(c *Conn) error {
//	    return c.Shutdown()
//	}))
//
// # Operations
//
//	Get        - borrow the address without transferring ownership
//	Reset      - destroy the held value and adopt another
//	Release    - give up ownership without destroying
//	Swap       - exchange values and destroyers with another owner
//	CloseInto  - destroy at end of scope, appending failures to an error
//	Close      - destroy now and return the failure; idempotent
//	IntoRaw    - leave ownership discipline, keeping the destroyer
//	FromRaw    - re-enter ownership discipline
//	Export     - park the value in a resource.Table behind a uint32 handle
//	Import     - take a parked value back out of the table
//
// Owners cannot be copied. There is no generic clone: Clone requires an
// explicit function that copies the value into a new allocation.
//
// # Failures
//
// Contract violations fail fast. Dereferencing an empty owner through Deref
// returns a KindEmpty error and MustDeref panics with it; using an owner
// through a by-value copy panics with KindIllegalCopy. Destroyer errors and
// panics are returned from Close, Reset and friends as KindDestroyFailed and
// KindDestroyPanic errors and logged at warn level; CloseInto appends them to
// a function's named error so neither failure is lost.
//
// # Leaks and Double Adoption
//
// An owner collected by the garbage collector while still holding a value is
// logged as leaked and destroyed on the runtime's cleanup goroutine.
// Destroyers implementing Deferrer are handed the value instead, so that
// teardown bound to one goroutine happens there.
// SetTracking enables a registry that panics when an address is adopted by
// a second live owner.
package owned
