package guest

import (
	"context"
	"fmt"
	"sync"

	"github.com/tetratelabs/wazero/api"
	"go.uber.org/multierr"
	"go.uber.org/zap"
)

// Allocator allocates and frees memory in guest linear memory.
type Allocator interface {
	Alloc(ctx context.Context, size, align uint32) (uint32, error)
	Free(ctx context.Context, ptr, size, align uint32) error
}

// FreeQueue is implemented by allocators that accept frees from any
// goroutine and perform them later on the goroutine driving the allocator.
// Blocks whose owner leaked are queued here instead of being freed by the
// garbage collector's cleanup goroutine.
type FreeQueue interface {
	QueueFree(b Block)
}

// ReallocAllocator implements Allocator with the canonical ABI's
// cabi_realloc export:
//
//	alloc: cabi_realloc(0, 0, align, size)
//	free:  cabi_realloc(ptr, size, align, 0)
//
// It implements FreeQueue: queued blocks are freed at the start of the next
// Alloc or Free, or by FreeLeaked.
type ReallocAllocator struct {
	fn       api.Function
	stackBuf []uint64
	mu       sync.Mutex

	queued  []Block
	queueMu sync.Mutex
}

// ReallocExport is the export name looked up by NewReallocAllocator.
const ReallocExport = "cabi_realloc"

// NewReallocAllocator binds to mod's cabi_realloc export.
func NewReallocAllocator(mod api.Module) (*ReallocAllocator, error) {
	if mod == nil {
		return nil, fmt.Errorf("nil module")
	}
	fn := mod.ExportedFunction(ReallocExport)
	if fn == nil {
		return nil, fmt.Errorf("module %q does not export %s", mod.Name(), ReallocExport)
	}
	def := fn.Definition()
	if len(def.ParamTypes()) != 4 || len(def.ResultTypes()) != 1 {
		return nil, fmt.Errorf("%s has signature %v -> %v, want (i32, i32, i32, i32) -> i32",
			ReallocExport, def.ParamTypes(), def.ResultTypes())
	}
	return &ReallocAllocator{
		fn:       fn,
		stackBuf: make([]uint64, 4),
	}, nil
}

// Alloc implements Allocator.
func (a *ReallocAllocator) Alloc(ctx context.Context, size, align uint32) (uint32, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.flushLocked(ctx)
	if err := a.callLocked(ctx, 0, 0, align, size); err != nil {
		return 0, err
	}
	return uint32(a.stackBuf[0]), nil
}

// Free implements Allocator.
func (a *ReallocAllocator) Free(ctx context.Context, ptr, size, align uint32) error {
	if ptr == 0 {
		return nil
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	a.flushLocked(ctx)
	return a.callLocked(ctx, ptr, size, align, 0)
}

// QueueFree implements FreeQueue. It never calls into the guest.
func (a *ReallocAllocator) QueueFree(b Block) {
	if b.Ptr == 0 {
		return
	}
	a.queueMu.Lock()
	a.queued = append(a.queued, b)
	a.queueMu.Unlock()
}

// FreeLeaked frees every queued block now, on the calling goroutine.
func (a *ReallocAllocator) FreeLeaked(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	return a.freeQueuedLocked(ctx)
}

func (a *ReallocAllocator) flushLocked(ctx context.Context) {
	if err := a.freeQueuedLocked(ctx); err != nil {
		Logger().Warn("freeing leaked blocks failed", zap.Error(err))
	}
}

func (a *ReallocAllocator) freeQueuedLocked(ctx context.Context) error {
	a.queueMu.Lock()
	queued := a.queued
	a.queued = nil
	a.queueMu.Unlock()

	var err error
	for _, b := range queued {
		err = multierr.Append(err, a.callLocked(ctx, b.Ptr, b.Size, b.Align, 0))
	}
	return err
}

func (a *ReallocAllocator) callLocked(ctx context.Context, ptr, oldSize, align, newSize uint32) error {
	a.stackBuf[0] = uint64(ptr)
	a.stackBuf[1] = uint64(oldSize)
	a.stackBuf[2] = uint64(align)
	a.stackBuf[3] = uint64(newSize)
	return a.fn.CallWithStack(ctx, a.stackBuf)
}
