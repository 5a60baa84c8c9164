// Package kmem manages physical page frames: a free list, an LRU ring of
// resident user pages and swap eviction so allocations keep succeeding
// after physical memory runs out.
package kmem

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/bietkhonhungvandi212/kswap/internal/storage/file"
	"github.com/bietkhonhungvandi212/kswap/internal/storage/page"
	util "github.com/bietkhonhungvandi212/kswap/internal/utils"
	"github.com/sirupsen/logrus"
)

const (
	moduleName = "kmem"

	// junkByte fills released pages so stale references read garbage.
	junkByte = 0x01
)

// Allocator owns physical memory: the frame table, the free list, the LRU
// ring and the swap slot map. One mutex guards the free list, the ring and
// their counters; it is only used once InitLate has run.
type Allocator struct {
	mem       []byte
	frames    []Frame
	physTop   util.PhysAddr
	kernelEnd util.PhysAddr
	earlyEnd  util.PhysAddr

	mu        sync.Mutex
	useLock   bool
	trackLRU  bool
	freeHead  util.FrameIdx
	freeCount int
	inTransit int // detached from both lists while swapping out
	lru       *lruRing

	// settled is broadcast whenever a frame in transit lands on the free
	// list or back in the ring; settledGen counts those events.
	settled    *sync.Cond
	settledGen uint64

	swap  *SwapMap
	store file.Filer
	procs ContextSource
	log   logrus.FieldLogger

	evictions  atomic.Uint64
	swapIns    atomic.Uint64
	ooms       atomic.Uint64
	clockSteps atomic.Uint64
}

// New builds an allocator for opts. No frame is free until InitEarly and
// InitLate (or Boot) release the usable ranges.
func New(opts util.Options, store file.Filer, procs ContextSource, log logrus.FieldLogger) (*Allocator, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	if store == nil {
		return nil, util.ErrFileManagerNil
	}
	if log == nil {
		log = util.DiscardLogger()
	}

	a := &Allocator{
		mem:       make([]byte, int(opts.PhysTop())),
		frames:    newFrameTable(opts.PhysFrames),
		physTop:   opts.PhysTop(),
		kernelEnd: opts.KernelEnd,
		earlyEnd:  opts.EarlyEnd,
		freeHead:  util.NoFrame,
		swap:      NewSwapMap(opts.SwapSlots),
		store:     store,
		procs:     procs,
		log:       log.WithField("module", moduleName),
	}
	a.lru = newLRURing(a.frames)
	a.settled = sync.NewCond(&a.mu)
	return a, nil
}

// Boot runs both initialisation phases over the configured layout: the
// early range [KernelEnd, EarlyEnd) lock-free, then the rest.
func (a *Allocator) Boot() {
	early := min(max(a.earlyEnd, a.kernelEnd), a.physTop)
	a.InitEarly(a.kernelEnd, early)
	a.InitLate(early, a.physTop)
	a.log.WithFields(logrus.Fields{
		"frames":     len(a.frames),
		"free":       a.freeCount,
		"swap_slots": a.swap.Len(),
	}).Info("physical memory online")
}

// InitEarly releases [start, end) while the kernel still runs on a single
// CPU with its boot page table. No locking, no LRU tracking.
func (a *Allocator) InitEarly(start, end util.PhysAddr) {
	a.useLock = false
	a.freeRange(start, end)
}

// InitLate releases [start, end) once the final page table is installed on
// every CPU, then turns on locking and LRU tracking.
func (a *Allocator) InitLate(start, end util.PhysAddr) {
	a.freeRange(start, end)
	a.useLock = true
	a.trackLRU = true
}

func (a *Allocator) freeRange(start, end util.PhysAddr) {
	for p := uint64(util.PageRoundUp(start)); p+util.PageSize <= uint64(end); p += util.PageSize {
		a.Free(util.PhysAddr(p))
	}
}

func (a *Allocator) lock() {
	if a.useLock {
		a.mu.Lock()
	}
}

func (a *Allocator) unlock() {
	if a.useLock {
		a.mu.Unlock()
	}
}

// Page returns the bytes of the frame at pa.
func (a *Allocator) Page(pa util.PhysAddr) []byte {
	if !pa.Aligned() || pa >= a.physTop {
		panic(fmt.Sprintf("[kmem] [Page] invalid frame address 0x%08x", uint32(pa)))
	}
	return a.mem[pa : pa+util.PageSize : pa+util.PageSize]
}

// Free returns the frame at pa to the free list, dropping it from the LRU
// ring first when it is tracked. Freeing a misaligned address, kernel image
// memory or anything past the physical top is fatal.
func (a *Allocator) Free(pa util.PhysAddr) {
	a.release(pa, false)
}

// release is Free for both callers: owners giving a frame back and the
// swap-out path handing over a frame whose page now lives in swap.
func (a *Allocator) release(pa util.PhysAddr, evicted bool) {
	if !pa.Aligned() || pa < a.kernelEnd || pa >= a.physTop {
		panic(util.NewKernelError(moduleName, "kfree", nil).
			With("addr", fmt.Sprintf("0x%08x", uint32(pa))))
	}

	a.lock()
	defer a.unlock()

	idx := pa.Frame()
	f := &a.frames[idx]
	switch {
	case f.state == frameFree:
		panic(util.NewKernelError(moduleName, "kfree: double free", nil).
			With("addr", fmt.Sprintf("0x%08x", uint32(pa))))
	case f.state == frameEvicting && !evicted:
		f.released = true
		return
	case evicted:
		a.inTransit--
		f.released = false
		a.settleLocked()
	case a.lru.contains(idx):
		a.lru.remove(idx)
	}
	a.freeLocked(idx)
}

func (a *Allocator) freeLocked(idx util.FrameIdx) {
	buf := a.Page(idx.Address())
	for i := range buf {
		buf[i] = junkByte
	}
	f := &a.frames[idx]
	f.clearOwner()
	f.state = frameFree
	a.pushFree(idx)
}

// Allocate hands out one frame. When the free list is empty it evicts a
// tracked page to swap and retries; util.ErrOutOfMemory means nothing was
// evictable. va is where the current process is about to map the frame:
// the frame is tracked for eviction when that mapping is a user one.
func (a *Allocator) Allocate(ctx context.Context, va util.VirtAddr) (util.PhysAddr, error) {
	return a.allocate(ctx, va, true)
}

func (a *Allocator) allocate(ctx context.Context, va util.VirtAddr, track bool) (util.PhysAddr, error) {
	for {
		a.lock()
		if idx := a.popFree(); idx != util.NoFrame {
			a.frames[idx].state = frameInUse
			if track {
				a.trackLocked(ctx, idx, va)
			}
			a.unlock()
			return idx.Address(), nil
		}
		gen := a.settledGen
		// EvictOne takes the lock itself.
		a.unlock()

		err := a.EvictOne()
		if errors.Is(err, util.ErrNoVictim) && a.awaitInTransit(gen) {
			continue
		}
		if err != nil {
			a.ooms.Add(1)
			a.log.WithError(err).Warn("out of memory")
			return 0, fmt.Errorf("%w: %w", util.ErrOutOfMemory, err)
		}
	}
}

// settleLocked wakes allocations waiting on a swap-out. Caller holds the
// lock.
func (a *Allocator) settleLocked() {
	a.settledGen++
	a.settled.Broadcast()
}

// awaitInTransit blocks until a frame that another CPU is swapping out
// settles. gen is the settle count seen when the free list was found empty.
// It reports false when nothing settled since and nothing is in transit,
// which means memory really is exhausted.
func (a *Allocator) awaitInTransit(gen uint64) bool {
	if !a.useLock {
		return false
	}
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.settledGen != gen || a.freeHead != util.NoFrame {
		return true
	}
	if a.inTransit == 0 {
		return false
	}
	for a.settledGen == gen {
		a.settled.Wait()
	}
	return true
}

func (a *Allocator) trackLocked(ctx context.Context, idx util.FrameIdx, va util.VirtAddr) {
	if !a.trackLRU || a.procs == nil {
		return
	}
	space, ok := a.procs.Current(ctx)
	if !ok {
		return
	}
	va = util.PageRoundDown(va)
	entry := space.Walk(va)
	if entry == nil || !entry.Load().HasFlags(page.FlagUser) {
		return
	}

	f := &a.frames[idx]
	f.space = space
	f.va = va
	a.lru.insert(idx)
}
