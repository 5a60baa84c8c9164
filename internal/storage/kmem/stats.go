package kmem

import (
	"fmt"

	util "github.com/bietkhonhungvandi212/kswap/internal/utils"
)

// Stats is a snapshot of the allocator counters.
type Stats struct {
	TotalFrames int    `json:"total_frames"`
	Free        int    `json:"free"`
	LRU         int    `json:"lru"`
	SwapOut     int    `json:"swap_out"`  // frames between the lists, mid swap-out
	Swapped     int    `json:"swapped"`   // live swap slots
	SwapSlots   int    `json:"swap_slots"`
	Evictions   uint64 `json:"evictions"`
	SwapIns     uint64 `json:"swap_ins"`
	OOMs        uint64 `json:"ooms"`
	ClockSteps  uint64 `json:"clock_steps"`
}

func (a *Allocator) Stats() Stats {
	a.lock()
	s := Stats{
		TotalFrames: len(a.frames),
		Free:        a.freeCount,
		LRU:         a.lru.count,
		SwapOut:     a.inTransit,
	}
	a.unlock()

	s.Swapped = a.swap.Used()
	s.SwapSlots = a.swap.Len()
	s.Evictions = a.evictions.Load()
	s.SwapIns = a.swapIns.Load()
	s.OOMs = a.ooms.Load()
	s.ClockSteps = a.clockSteps.Load()
	return s
}

// LRUOrder lists the tracked frames starting at the anchor.
func (a *Allocator) LRUOrder() []util.FrameIdx {
	a.lock()
	defer a.unlock()
	return a.lru.order()
}

// FrameOwner returns the owner and virtual address recorded for pa.
func (a *Allocator) FrameOwner(pa util.PhysAddr) (AddressSpace, util.VirtAddr) {
	a.lock()
	defer a.unlock()
	f := a.frames[pa.Frame()]
	return f.space, f.va
}

// CheckInvariants walks the free list and the LRU ring and verifies that no
// frame is on both, that the counters match the lists and that
// free + lru + swap-out never exceeds the frame count.
func (a *Allocator) CheckInvariants() error {
	a.lock()
	defer a.unlock()

	total := len(a.frames)
	onFree := make(map[util.FrameIdx]struct{}, a.freeCount)
	for idx := a.freeHead; idx != util.NoFrame; idx = a.nextFree(idx) {
		if _, dup := onFree[idx]; dup {
			return fmt.Errorf("free list cycles at frame %d", idx)
		}
		if idx.Address() < a.kernelEnd {
			return fmt.Errorf("kernel frame %d on the free list", idx)
		}
		onFree[idx] = struct{}{}
	}
	if len(onFree) != a.freeCount {
		return fmt.Errorf("free list holds %d frames, counter says %d", len(onFree), a.freeCount)
	}

	ring := a.lru.order()
	if len(ring) != a.lru.count {
		return fmt.Errorf("lru ring holds %d frames, counter says %d", len(ring), a.lru.count)
	}
	for _, idx := range ring {
		if _, both := onFree[idx]; both {
			return fmt.Errorf("frame %d is on the free list and in the lru ring", idx)
		}
		if a.frames[idx].space == nil {
			return fmt.Errorf("tracked frame %d has no owner", idx)
		}
	}

	if n := a.freeCount + a.lru.count + a.inTransit; n > total {
		return fmt.Errorf("free %d + lru %d + swap-out %d exceeds %d frames",
			a.freeCount, a.lru.count, a.inTransit, total)
	}
	return nil
}
