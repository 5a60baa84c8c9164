package page

import (
	"fmt"
	"sync/atomic"

	util "github.com/bietkhonhungvandi212/kswap/internal/utils"
)

// Flag describes a bit that can be applied to a page table entry.
type Flag uint32

const (
	FlagPresent  Flag = 1 << 0
	FlagWritable Flag = 1 << 1
	FlagUser     Flag = 1 << 2
	FlagAccessed Flag = 1 << 5
	FlagDirty    Flag = 1 << 6
	// FlagSwap is set only on non-present entries whose high bits carry a
	// swap slot index.
	FlagSwap Flag = 1 << 9

	flagMask      = 0x3FF // bits kept by a resident entry besides the address
	addrMask      = ^uint32(util.PageSize - 1)
	slotShift     = 10
	slotMask      = 0x3FFFFF // 22 bits
	residentFlags = FlagPresent | FlagWritable | FlagUser | FlagAccessed | FlagDirty
)

// PTE is the raw 32-bit value of a page table entry.
type PTE uint32

// HasFlags returns true if this entry has all the input flags set.
func (p PTE) HasFlags(flags Flag) bool {
	return uint32(p)&uint32(flags) == uint32(flags)
}

// HasAnyFlag returns true if this entry has at least one of the input flags set.
func (p PTE) HasAnyFlag(flags Flag) bool {
	return uint32(p)&uint32(flags) != 0
}

// Present reports whether the entry maps a resident frame.
func (p PTE) Present() bool { return p.HasFlags(FlagPresent) }

// Swapped reports whether the entry holds a swap slot index.
func (p PTE) Swapped() bool { return p.HasFlags(FlagSwap) }

// Addr returns the physical frame address of a resident entry.
func (p PTE) Addr() util.PhysAddr {
	return util.PhysAddr(uint32(p) & addrMask)
}

// Slot returns the swap slot index of a swapped entry.
func (p PTE) Slot() util.SlotIdx {
	return util.SlotIdx((uint32(p) >> slotShift) & slotMask)
}

func (p PTE) String() string {
	switch m := p.Decode().(type) {
	case Resident:
		return fmt.Sprintf("resident(0x%08x, flags=0x%03x)", uint32(m.Addr), uint32(m.Flags))
	case Swapped:
		return fmt.Sprintf("swapped(slot=%d)", m.Slot)
	case Reserved:
		return fmt.Sprintf("reserved(flags=0x%03x)", uint32(m.Flags))
	default:
		return "unmapped"
	}
}

// Entry is a page table slot. Hardware (the simulated MMU) sets the accessed
// and dirty bits concurrently with the kernel, so every update is atomic.
type Entry struct {
	v atomic.Uint32
}

// NewEntry returns an entry initialised to p.
func NewEntry(p PTE) *Entry {
	e := &Entry{}
	e.Store(p)
	return e
}

func (e *Entry) Load() PTE { return PTE(e.v.Load()) }

func (e *Entry) Store(p PTE) { e.v.Store(uint32(p)) }

// Swap stores p and returns the previous value.
func (e *Entry) Swap(p PTE) PTE { return PTE(e.v.Swap(uint32(p))) }

func (e *Entry) CompareAndSwap(old, next PTE) bool {
	return e.v.CompareAndSwap(uint32(old), uint32(next))
}

// SetFlags sets the input list of flags on the entry.
func (e *Entry) SetFlags(flags Flag) {
	for {
		old := e.v.Load()
		if old&uint32(flags) == uint32(flags) || e.v.CompareAndSwap(old, old|uint32(flags)) {
			return
		}
	}
}

// ClearFlags unsets the input list of flags from the entry.
func (e *Entry) ClearFlags(flags Flag) {
	for {
		old := e.v.Load()
		if old&uint32(flags) == 0 || e.v.CompareAndSwap(old, old&^uint32(flags)) {
			return
		}
	}
}
