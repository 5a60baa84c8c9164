// Package vm holds a minimal virtual memory layer for the allocator to work
// against: single-level address spaces, processes and the execution context
// that says which process the current goroutine runs for.
package vm

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/bietkhonhungvandi212/kswap/internal/storage/page"
	util "github.com/bietkhonhungvandi212/kswap/internal/utils"
)

// FrameAllocator is the part of the physical allocator an address space
// needs.
type FrameAllocator interface {
	Allocate(ctx context.Context, va util.VirtAddr) (util.PhysAddr, error)
	Free(pa util.PhysAddr)
	Page(pa util.PhysAddr) []byte
	DropSwap(slot util.SlotIdx)
}

// AddressSpace is a flat page table keyed by page-aligned virtual address.
// Entries are created on first use and never removed, so a pointer returned
// by Walk stays valid for the lifetime of the space.
type AddressSpace struct {
	mu      sync.RWMutex
	entries map[util.VirtAddr]*page.Entry
}

func NewAddressSpace() *AddressSpace {
	return &AddressSpace{entries: make(map[util.VirtAddr]*page.Entry)}
}

// Walk returns the entry covering va or nil. It never allocates.
func (as *AddressSpace) Walk(va util.VirtAddr) *page.Entry {
	as.mu.RLock()
	defer as.mu.RUnlock()
	return as.entries[util.PageRoundDown(va)]
}

// Reserve installs a non-present entry carrying flags at va. The address
// must not be mapped already.
func (as *AddressSpace) Reserve(va util.VirtAddr, flags page.Flag) (*page.Entry, error) {
	va = util.PageRoundDown(va)
	reserved := page.Encode(page.Reserved{Flags: flags})

	as.mu.Lock()
	defer as.mu.Unlock()
	if e, ok := as.entries[va]; ok {
		if !e.CompareAndSwap(0, reserved) {
			return nil, fmt.Errorf("[vm] [Reserve] 0x%08x: %w", uint32(va), util.ErrAlreadyMapped)
		}
		return e, nil
	}
	e := page.NewEntry(reserved)
	as.entries[va] = e
	return e, nil
}

// Map installs a resident mapping of pa at va.
func (as *AddressSpace) Map(va util.VirtAddr, pa util.PhysAddr, flags page.Flag) error {
	e, err := as.Reserve(va, flags)
	if err != nil {
		return err
	}
	e.Store(page.Encode(page.Resident{Addr: pa, Flags: flags}))
	return nil
}

// AllocUser backs va with a fresh zeroed frame mapped writable and user
// accessible. The entry is reserved before the allocation so the allocator
// sees a user page and tracks the frame for eviction.
func (as *AddressSpace) AllocUser(ctx context.Context, alloc FrameAllocator, va util.VirtAddr) (util.PhysAddr, error) {
	va = util.PageRoundDown(va)
	flags := page.FlagWritable | page.FlagUser

	e, err := as.Reserve(va, flags)
	if err != nil {
		return 0, err
	}

	pa, err := alloc.Allocate(ctx, va)
	if err != nil {
		e.Store(0)
		return 0, fmt.Errorf("[vm] [AllocUser] 0x%08x: %w", uint32(va), err)
	}

	clear(alloc.Page(pa))
	e.Store(page.Encode(page.Resident{Addr: pa, Flags: flags}))
	return pa, nil
}

// Unmap drops the mapping at va, giving back its frame or swap slot.
func (as *AddressSpace) Unmap(alloc FrameAllocator, va util.VirtAddr) {
	if e := as.Walk(va); e != nil {
		drop(alloc, e)
	}
}

// Release tears down every mapping. The space lock is not held while the
// allocator runs: eviction walks this space under the allocator lock.
func (as *AddressSpace) Release(alloc FrameAllocator) {
	as.mu.RLock()
	entries := make([]*page.Entry, 0, len(as.entries))
	for _, e := range as.entries {
		entries = append(entries, e)
	}
	as.mu.RUnlock()

	for _, e := range entries {
		drop(alloc, e)
	}
}

// drop clears e atomically first, so a concurrent swap-out of the same page
// either loses its compare-and-swap or has already turned it into a slot.
func drop(alloc FrameAllocator, e *page.Entry) {
	switch m := e.Swap(0).Decode().(type) {
	case page.Resident:
		alloc.Free(m.Addr)
	case page.Swapped:
		alloc.DropSwap(m.Slot)
	}
}

// Mapped lists the virtual addresses holding a resident or swapped page, in
// ascending order.
func (as *AddressSpace) Mapped() []util.VirtAddr {
	as.mu.RLock()
	defer as.mu.RUnlock()

	out := make([]util.VirtAddr, 0, len(as.entries))
	for va, e := range as.entries {
		if pte := e.Load(); pte.Present() || pte.Swapped() {
			out = append(out, va)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Resident counts the pages currently in physical memory.
func (as *AddressSpace) Resident() int {
	as.mu.RLock()
	defer as.mu.RUnlock()

	n := 0
	for _, e := range as.entries {
		if e.Load().Present() {
			n++
		}
	}
	return n
}
