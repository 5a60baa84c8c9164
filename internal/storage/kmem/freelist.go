package kmem

import (
	"encoding/binary"

	util "github.com/bietkhonhungvandi212/kswap/internal/utils"
)

// endOfList terminates the free list. A free page keeps the physical address
// of the next free page in its first eight bytes.
const endOfList = ^uint64(0)

// pushFree links idx in front of the free list. Caller holds the lock.
func (a *Allocator) pushFree(idx util.FrameIdx) {
	next := endOfList
	if a.freeHead != util.NoFrame {
		next = uint64(a.freeHead.Address())
	}
	binary.LittleEndian.PutUint64(a.Page(idx.Address()), next)
	a.freeHead = idx
	a.freeCount++
}

// popFree unlinks the free list head, NoFrame when the list is empty.
// Caller holds the lock.
func (a *Allocator) popFree() util.FrameIdx {
	if a.freeHead == util.NoFrame {
		return util.NoFrame
	}
	idx := a.freeHead
	a.freeHead = a.nextFree(idx)
	a.freeCount--
	return idx
}

func (a *Allocator) nextFree(idx util.FrameIdx) util.FrameIdx {
	next := binary.LittleEndian.Uint64(a.Page(idx.Address()))
	if next == endOfList {
		return util.NoFrame
	}
	return util.PhysAddr(next).Frame()
}
