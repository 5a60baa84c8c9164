package page

import (
	"fmt"

	util "github.com/bietkhonhungvandi212/kswap/internal/utils"
)

// Mapping is the decoded form of a page table entry. Packing and unpacking
// of the raw bits happens only in Encode and PTE.Decode.
type Mapping interface {
	isMapping()
}

// Unmapped is an all-zero entry.
type Unmapped struct{}

// Reserved is a non-present entry that carries permission bits only; the
// owner installed it ahead of backing it with a frame.
type Reserved struct {
	Flags Flag
}

// Resident maps a frame that is in physical memory.
type Resident struct {
	Addr  util.PhysAddr
	Flags Flag
}

// Swapped points at a swap slot holding the page contents.
type Swapped struct {
	Slot util.SlotIdx
}

func (Unmapped) isMapping() {}
func (Reserved) isMapping() {}
func (Resident) isMapping() {}
func (Swapped) isMapping()  {}

// Decode unpacks the entry.
func (p PTE) Decode() Mapping {
	switch {
	case p.Present():
		return Resident{Addr: p.Addr(), Flags: Flag(uint32(p)&flagMask) &^ FlagPresent}
	case p.Swapped():
		return Swapped{Slot: p.Slot()}
	case p == 0:
		return Unmapped{}
	default:
		return Reserved{Flags: Flag(uint32(p) & flagMask)}
	}
}

// Encode packs m into its raw entry value. A swapped entry keeps nothing but
// the slot index and the swap flag, so swap flag set implies present clear.
func Encode(m Mapping) PTE {
	switch m := m.(type) {
	case Resident:
		if !m.Addr.Aligned() {
			panic(fmt.Sprintf("[page] [Encode] unaligned frame address 0x%08x", uint32(m.Addr)))
		}
		return PTE(uint32(m.Addr) | uint32(m.Flags&residentFlags) | uint32(FlagPresent))
	case Swapped:
		if m.Slot > slotMask {
			panic(fmt.Sprintf("[page] [Encode] swap slot %d exceeds 22 bits", m.Slot))
		}
		return PTE(uint32(m.Slot)<<slotShift | uint32(FlagSwap))
	case Reserved:
		return PTE(uint32(m.Flags&(FlagWritable|FlagUser)))
	default:
		return 0
	}
}
