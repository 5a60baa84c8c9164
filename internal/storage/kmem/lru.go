package kmem

import (
	"fmt"

	util "github.com/bietkhonhungvandi212/kswap/internal/utils"
)

// lruRing is a circular doubly linked list threaded through the frame table.
// anchor is only a position in the ring: new frames go right before it, so
// they are the last ones the clock hand reaches.
type lruRing struct {
	frames []Frame
	anchor util.FrameIdx
	count  int
}

func newLRURing(frames []Frame) *lruRing {
	return &lruRing{
		frames: frames,
		anchor: util.NoFrame,
	}
}

func (r *lruRing) insert(idx util.FrameIdx) {
	f := &r.frames[idx]
	if f.next != util.NoFrame || f.prev != util.NoFrame {
		panic(fmt.Sprintf("[lru] [insert] frame %d is already linked", idx))
	}

	if r.anchor == util.NoFrame {
		f.next, f.prev = idx, idx
		r.anchor = idx
	} else {
		head := &r.frames[r.anchor]
		f.next = r.anchor
		f.prev = head.prev
		r.frames[head.prev].next = idx
		head.prev = idx
	}
	r.count++
}

func (r *lruRing) remove(idx util.FrameIdx) {
	f := &r.frames[idx]
	if r.anchor == util.NoFrame || f.next == util.NoFrame || f.prev == util.NoFrame {
		panic(fmt.Sprintf("[lru] [remove] frame %d is not in the ring", idx))
	}

	if f.next == idx {
		// Case 1: last node
		r.anchor = util.NoFrame
	} else {
		r.frames[f.next].prev = f.prev
		r.frames[f.prev].next = f.next
		if r.anchor == idx {
			r.anchor = f.next
		}
	}

	f.next = util.NoFrame
	f.prev = util.NoFrame
	r.count--
}

// contains reports whether idx is linked into the ring.
func (r *lruRing) contains(idx util.FrameIdx) bool {
	return r.frames[idx].next != util.NoFrame
}

// advance makes the anchor frame the most recently used one: in a ring,
// relocating the anchor right before its successor is just moving the anchor.
func (r *lruRing) advance() {
	if r.anchor != util.NoFrame {
		r.anchor = r.frames[r.anchor].next
	}
}

// order lists the ring starting at the anchor.
func (r *lruRing) order() []util.FrameIdx {
	out := make([]util.FrameIdx, 0, r.count)
	if r.anchor == util.NoFrame {
		return out
	}
	cur := r.anchor
	for {
		out = append(out, cur)
		cur = r.frames[cur].next
		if cur == r.anchor || len(out) > len(r.frames) {
			return out
		}
	}
}
