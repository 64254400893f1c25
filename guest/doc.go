// Package guest provides owners for resources that live outside the Go heap
// in a WebAssembly instance: blocks of guest linear memory and wazero
// modules.
//
// A guest allocation is released by calling back into the guest, not by the
// Go garbage collector, so it is owned through an owned.Owner whose
// destroyer frees the block:
//
//	alloc, err := guest.NewReallocAllocator(mod)
//	blk, err := guest.Alloc(ctx, alloc, 64, 8)
//	defer blk.CloseInto(&err) // cabi_realloc(ptr, 64, 8, 0)
//
// A wasm instance must not be entered from two goroutines at once, so a
// block whose owner leaks is never freed by the garbage collector. Its
// destroyer queues it on a ReallocAllocator instead, and the next Alloc,
// Free or FreeLeaked call frees it on the caller's goroutine.
package guest
