package kmem

import (
	"github.com/bietkhonhungvandi212/kswap/internal/storage/page"
	util "github.com/bietkhonhungvandi212/kswap/internal/utils"
)

// selectVictim sweeps the ring from the anchor. A frame whose accessed bit
// is set gets the bit cleared and one more lap of residency; the first frame
// found with the bit clear is the victim. The victim stays in the ring.
//
// A frame whose owner has not mapped it yet is passed over; a full lap of
// such frames means there is nothing to evict. A frame without any mapping
// is returned so the caller trips over the broken invariant.
//
// Caller holds the lock.
func (a *Allocator) selectVictim() (util.FrameIdx, bool) {
	skipped := 0
	for a.lru.anchor != util.NoFrame {
		idx := a.lru.anchor
		f := &a.frames[idx]

		entry := f.space.Walk(f.va)
		if entry == nil {
			return idx, true
		}

		pte := entry.Load()
		switch {
		case !pte.Present():
			skipped++
			if skipped >= a.lru.count {
				return util.NoFrame, false
			}
		case pte.HasFlags(page.FlagAccessed):
			entry.ClearFlags(page.FlagAccessed)
			skipped = 0
		default:
			return idx, true
		}

		a.lru.advance()
		a.clockSteps.Add(1)
	}
	return util.NoFrame, false
}
