package kmem

import (
	"context"

	"github.com/bietkhonhungvandi212/kswap/internal/storage/page"
	util "github.com/bietkhonhungvandi212/kswap/internal/utils"
	"github.com/sirupsen/logrus"
)

// EvictOne writes one cold user page to swap and frees its frame. It returns
// util.ErrNoVictim when no tracked page can be evicted. Running out of swap
// slots, a tracked frame without a mapping and swap I/O errors are fatal.
func (a *Allocator) EvictOne() error {
	a.lock()
	idx, ok := a.selectVictim()
	if !ok {
		a.unlock()
		return util.ErrNoVictim
	}
	// Detached, the frame cannot be picked by another CPU.
	a.lru.remove(idx)
	a.inTransit++
	a.frames[idx].state = frameEvicting
	space, va := a.frames[idx].space, a.frames[idx].va
	a.unlock()

	pa := idx.Address()
	entry := space.Walk(va)
	if entry == nil {
		panic(util.NewKernelError(moduleName, "reclaim: PTE not found", nil).
			With("frame", idx).With("va", va))
	}

	// The owner touched the page since the sweep; keep it resident.
	old := entry.Load()
	if !old.Present() || old.HasFlags(page.FlagAccessed) {
		a.requeue(idx)
		return nil
	}

	slot, ok := a.swap.Alloc()
	if !ok {
		panic(util.NewKernelError(moduleName, "OOM: swap space is full", util.ErrOutOfMemory).
			With("slots", a.swap.Len()))
	}

	if err := a.store.WritePage(a.Page(pa), slot); err != nil {
		panic(util.NewKernelError(moduleName, "swap write failed", err).With("slot", slot))
	}

	// A concurrent access sets the accessed bit and makes this fail: the
	// slot may hold stale bytes, so drop it and keep the frame.
	if !entry.CompareAndSwap(old, page.Encode(page.Swapped{Slot: slot})) {
		a.swap.Free(slot)
		a.requeue(idx)
		return nil
	}

	a.evictions.Add(1)
	a.log.WithFields(logrus.Fields{
		"frame": idx,
		"va":    va,
		"slot":  slot,
	}).Debug("page swapped out")

	a.release(pa, true)
	return nil
}

// requeue puts a victim that could not be swapped out back into the ring,
// or frees it when its owner let go of it meanwhile.
func (a *Allocator) requeue(idx util.FrameIdx) {
	a.lock()
	defer a.unlock()
	a.inTransit--
	defer a.settleLocked()
	f := &a.frames[idx]
	if f.released {
		f.released = false
		a.freeLocked(idx)
		return
	}
	f.state = frameInUse
	a.lru.insert(idx)
	a.log.WithField("frame", idx).Debug("victim touched during swap-out, requeued")
}

// SwapIn brings the page that space maps at va back from swap into a fresh
// frame and tracks it again. The mapping must be swapped out; failing to
// allocate the frame or to read the slot is fatal.
func (a *Allocator) SwapIn(ctx context.Context, space AddressSpace, va util.VirtAddr) {
	va = util.PageRoundDown(va)
	entry := space.Walk(va)
	if entry == nil || !entry.Load().Swapped() {
		panic(util.NewKernelError(moduleName, "page not swapped out", nil).With("va", va))
	}
	old := entry.Load()
	slot := old.Slot()

	pa, err := a.allocate(ctx, va, false)
	if err != nil {
		panic(util.NewKernelError(moduleName, "OOM: out of memory during swap-in", err).With("va", va))
	}

	if err := a.store.ReadPage(a.Page(pa), slot); err != nil {
		panic(util.NewKernelError(moduleName, "swap read failed", err).With("slot", slot))
	}

	// Another CPU faulted on the same page and brought it in first; its
	// frame stays and the slot is already gone.
	if !entry.CompareAndSwap(old, page.Encode(page.Resident{Addr: pa, Flags: page.FlagWritable | page.FlagUser})) {
		a.Free(pa)
		a.log.WithField("va", va).Debug("page already swapped in")
		return
	}
	a.swap.Free(slot)

	a.lock()
	idx := pa.Frame()
	f := &a.frames[idx]
	f.space = space
	f.va = va
	a.lru.insert(idx)
	a.unlock()

	a.swapIns.Add(1)
	a.log.WithFields(logrus.Fields{
		"frame": idx,
		"va":    va,
		"slot":  slot,
	}).Debug("page swapped in")
}

// DropSwap releases the slot of a swapped mapping that is being torn down.
func (a *Allocator) DropSwap(slot util.SlotIdx) {
	a.swap.Free(slot)
}

// SwapSlots exposes the slot map for inspection.
func (a *Allocator) SwapSlots() *SwapMap {
	return a.swap
}
