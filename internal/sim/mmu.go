package sim

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/bietkhonhungvandi212/kswap/internal/storage/file"
	"github.com/bietkhonhungvandi212/kswap/internal/storage/kmem"
	"github.com/bietkhonhungvandi212/kswap/internal/storage/page"
	"github.com/bietkhonhungvandi212/kswap/internal/trap"
	util "github.com/bietkhonhungvandi212/kswap/internal/utils"
)

// maxFaults bounds how often one access may fault before giving up. A page
// brought back in can be evicted again before the access is retried.
const maxFaults = 8

// Memory exposes the bytes behind a physical address.
type Memory interface {
	Page(pa util.PhysAddr) []byte
}

// MMU translates virtual accesses through an address space, keeps the
// accessed and dirty bits up to date and raises page faults.
//
// Every translation plus the memory access it guards runs under a read
// lock. Copying a page out to swap takes the write lock, the equivalent of
// a TLB shootdown: no CPU is halfway through an access while the copy is
// made, and any later access sets the accessed bit, which makes the
// swap-out give up.
type MMU struct {
	mem   Memory
	traps *trap.Dispatcher

	shootdown sync.RWMutex
	accesses  atomic.Uint64
	faults    atomic.Uint64
}

func NewMMU() *MMU {
	return &MMU{}
}

// Attach wires the memory and the trap table. It must run before the
// first access.
func (m *MMU) Attach(mem Memory, traps *trap.Dispatcher) {
	m.mem = mem
	m.traps = traps
}

// Shootdown wraps a swap store so page copies exclude in-flight accesses.
func (m *MMU) Shootdown(store file.Filer) file.Filer {
	return &shootdownFiler{Filer: store, mmu: m}
}

type shootdownFiler struct {
	file.Filer
	mmu *MMU
}

func (f *shootdownFiler) WritePage(src []byte, slot util.SlotIdx) error {
	f.mmu.shootdown.Lock()
	defer f.mmu.shootdown.Unlock()
	return f.Filer.WritePage(src, slot)
}

// Read copies len(buf) bytes at va into buf. The range must not cross a
// page boundary.
func (m *MMU) Read(ctx context.Context, cpu int, space kmem.AddressSpace, va util.VirtAddr, buf []byte) error {
	return m.access(ctx, cpu, space, va, false, func(p []byte) { copy(buf, p) })
}

// Write stores data at va. The range must not cross a page boundary.
func (m *MMU) Write(ctx context.Context, cpu int, space kmem.AddressSpace, va util.VirtAddr, data []byte) error {
	return m.access(ctx, cpu, space, va, true, func(p []byte) { copy(p, data) })
}

func (m *MMU) access(ctx context.Context, cpu int, space kmem.AddressSpace, va util.VirtAddr, write bool, fn func([]byte)) error {
	m.accesses.Add(1)
	for range maxFaults {
		m.shootdown.RLock()
		ok := m.translate(space, va, write, fn)
		m.shootdown.RUnlock()
		if ok {
			return nil
		}

		m.faults.Add(1)
		code := trap.ErrCodeUser
		if write {
			code |= trap.ErrCodeWrite
		}
		f := &trap.Frame{Trapno: trap.PageFault, CPU: cpu, ErrorCode: code, FaultAddr: va}
		if err := m.traps.Dispatch(ctx, f); err != nil {
			return fmt.Errorf("[sim] [access] %w", err)
		}
	}
	return fmt.Errorf("[sim] [access] 0x%08x faulted %d times", uint32(va), maxFaults)
}

// translate performs the access if va is resident. Caller holds the read
// lock.
func (m *MMU) translate(space kmem.AddressSpace, va util.VirtAddr, write bool, fn func([]byte)) bool {
	entry := space.Walk(va)
	if entry == nil {
		return false
	}

	set := page.FlagAccessed
	if write {
		set |= page.FlagDirty
	}
	for {
		old := entry.Load()
		if !old.Present() {
			return false
		}
		if entry.CompareAndSwap(old, old|page.PTE(set)) {
			off := va - util.PageRoundDown(va)
			fn(m.mem.Page(old.Addr())[off:])
			return true
		}
	}
}

func (m *MMU) Accesses() uint64 { return m.accesses.Load() }

func (m *MMU) Faults() uint64 { return m.faults.Load() }
