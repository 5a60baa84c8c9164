package kmem

import (
	util "github.com/bietkhonhungvandi212/kswap/internal/utils"
)

type frameState uint8

const (
	frameInUse frameState = iota
	frameFree
	frameEvicting // detached from both lists while its page goes to swap
)

// Frame is the metadata kept for one physical page slot. The table is built
// once and never shrinks.
type Frame struct {
	space AddressSpace  // owner page table, back-reference only
	va    util.VirtAddr // where space maps the frame
	next  util.FrameIdx
	prev  util.FrameIdx
	state frameState

	// released is set when the owner frees the frame mid swap-out; the
	// eviction path then finishes the free.
	released bool
}

func newFrameTable(n int) []Frame {
	frames := make([]Frame, n)
	for i := range frames {
		frames[i].next = util.NoFrame
		frames[i].prev = util.NoFrame
	}
	return frames
}

func (f *Frame) clearOwner() {
	f.space = nil
	f.va = 0
}
