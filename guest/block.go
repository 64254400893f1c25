package guest

import (
	"context"

	"github.com/tetratelabs/wazero/api"
	"go.uber.org/zap"

	"github.com/wippyai/owned"
	"github.com/wippyai/owned/errors"
)

// Block describes one allocation in guest linear memory.
type Block struct {
	Ptr   uint32
	Size  uint32
	Align uint32
}

// Freer is a destroyer that returns blocks to the allocator they came from.
type Freer struct {
	ctx   context.Context
	alloc Allocator
}

// NewFreer returns a destroyer freeing blocks through a. Frees run with ctx.
func NewFreer(ctx context.Context, a Allocator) *Freer {
	return &Freer{ctx: ctx, alloc: a}
}

// Destroy implements owned.Destroyer.
func (f *Freer) Destroy(b *Block) error {
	err := f.alloc.Free(f.ctx, b.Ptr, b.Size, b.Align)
	*b = Block{}
	return err
}

// DeferDestroy implements owned.Deferrer. A leaked block is queued on its
// allocator when that allocator is a FreeQueue; otherwise it stays allocated
// and an error is logged.
func (f *Freer) DeferDestroy(b *Block) {
	blk := *b
	*b = Block{}
	if q, ok := f.alloc.(FreeQueue); ok {
		q.QueueFree(blk)
		return
	}
	Logger().Error("leaked guest block left allocated",
		zap.Uint32("ptr", blk.Ptr),
		zap.Uint32("size", blk.Size))
}

// Alloc allocates size bytes with the given alignment and returns the owner
// of the block. Closing the owner frees the block.
func Alloc(ctx context.Context, a Allocator, size, align uint32) (*owned.Owner[Block], error) {
	if size == 0 {
		return nil, errors.InvalidInput(errors.PhaseAllocate, "zero-size allocation")
	}
	if align == 0 || align&(align-1) != 0 {
		return nil, errors.InvalidInput(errors.PhaseAllocate, "alignment must be a power of two")
	}

	ptr, err := a.Alloc(ctx, size, align)
	if err != nil {
		return nil, errors.AllocationFailed(size, align, err)
	}
	if ptr == 0 {
		return nil, errors.AllocationFailed(size, align, nil)
	}

	return owned.AdoptWith[Block](&Block{Ptr: ptr, Size: size, Align: align}, NewFreer(ctx, a)), nil
}

// Write copies data into the block. Writes past the block's size fail.
func Write(mem api.Memory, blk *owned.Owner[Block], offset uint32, data []byte) error {
	b, err := blk.Deref()
	if err != nil {
		return err
	}
	if uint64(offset)+uint64(len(data)) > uint64(b.Size) {
		return errors.InvalidInput(errors.PhaseAccess, "write past end of block")
	}
	if !mem.Write(b.Ptr+offset, data) {
		return errors.InvalidInput(errors.PhaseAccess, "write outside guest memory")
	}
	return nil
}

// Read copies the block's contents out of guest memory.
func Read(mem api.Memory, blk *owned.Owner[Block]) ([]byte, error) {
	b, err := blk.Deref()
	if err != nil {
		return nil, err
	}
	view, ok := mem.Read(b.Ptr, b.Size)
	if !ok {
		return nil, errors.InvalidInput(errors.PhaseAccess, "read outside guest memory")
	}
	out := make([]byte, len(view))
	copy(out, view)
	return out, nil
}

// moduleCloser closes a wazero module when its owner is destroyed. A leaked
// module is not closed from the cleanup goroutine; it stays instantiated
// until its runtime is closed.
type moduleCloser struct {
	ctx context.Context
}

func (c moduleCloser) Destroy(m *api.Module) error {
	mod := *m
	*m = nil
	if mod == nil {
		return nil
	}
	return mod.Close(c.ctx)
}

func (c moduleCloser) DeferDestroy(m *api.Module) {
	mod := *m
	*m = nil
	if mod == nil {
		return
	}
	Logger().Error("leaked module left open until its runtime closes", zap.String("module", mod.Name()))
}

// AdoptModule returns an owner that closes mod with ctx when destroyed.
func AdoptModule(ctx context.Context, mod api.Module) *owned.Owner[api.Module] {
	if mod == nil {
		return owned.Empty[api.Module]()
	}
	return owned.AdoptWith[api.Module](&mod, moduleCloser{ctx: ctx})
}
