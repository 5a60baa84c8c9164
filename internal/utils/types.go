package util

import "time"

// PhysAddr is a physical memory address. Entries are 32 bits wide, so is the
// physical address space.
type PhysAddr uint32

// VirtAddr is a virtual memory address inside an address space.
type VirtAddr uint32

// FrameIdx indexes the page frame table.
type FrameIdx int

// NoFrame marks an empty link.
const NoFrame FrameIdx = -1

// SlotIdx identifies a page-sized slot on the swap device.
type SlotIdx uint32

const (
	// PageSize represents the standard page size (4KB)
	PageSize  = 4096
	PageShift = 12

	// MaxSwapSlots is bounded by the 22-bit index field of a swapped entry.
	MaxSwapSlots = 1 << 22
)

// Frame returns the frame index that holds pa.
func (pa PhysAddr) Frame() FrameIdx {
	return FrameIdx(pa >> PageShift)
}

// Aligned reports whether pa sits on a page boundary.
func (pa PhysAddr) Aligned() bool {
	return pa&(PageSize-1) == 0
}

// Address returns the physical address of the first byte of the frame.
func (f FrameIdx) Address() PhysAddr {
	return PhysAddr(f) << PageShift
}

// PageRoundDown rounds va down to the page that contains it.
func PageRoundDown(va VirtAddr) VirtAddr {
	return va &^ (PageSize - 1)
}

// PageRoundUp rounds pa up to the next page boundary.
func PageRoundUp(pa PhysAddr) PhysAddr {
	return (pa + PageSize - 1) &^ (PageSize - 1)
}

// Swap backends understood by the command line tool.
const (
	BackendMemory = "memory"
	BackendFile   = "file"
	BackendSQLite = "sqlite"
)

// Options represents kernel memory configuration options
type Options struct {
	// PhysFrames is the number of page frames below the physical top.
	PhysFrames int `yaml:"phys_frames"`
	// KernelEnd is the first address after the loaded kernel image.
	KernelEnd PhysAddr `yaml:"kernel_end"`
	// EarlyEnd bounds the range released during the lock-free boot phase.
	EarlyEnd    PhysAddr `yaml:"early_end"`
	SwapSlots   int      `yaml:"swap_slots"`
	SwapBackend string   `yaml:"swap_backend"`
	SwapPath    string   `yaml:"swap_path"`
	LogLevel    string   `yaml:"log_level"`
	MonitorAddr string   `yaml:"monitor_addr"`

	CPUs         int           `yaml:"cpus"`
	Processes    int           `yaml:"processes"`
	PagesPerProc int           `yaml:"pages_per_proc"`
	Rounds       int           `yaml:"rounds"`
	RoundDelay   time.Duration `yaml:"round_delay"`
}

// DefaultOptions returns default options
func DefaultOptions() Options {
	return Options{
		PhysFrames:   1024, // 4MB of simulated physical memory
		KernelEnd:    64 * PageSize,
		EarlyEnd:     256 * PageSize,
		SwapSlots:    12437,
		SwapBackend:  BackendMemory,
		SwapPath:     "kswap.swap",
		LogLevel:     "info",
		MonitorAddr:  "127.0.0.1:8765",
		CPUs:         4,
		Processes:    8,
		PagesPerProc: 200,
		Rounds:       50,
	}
}

// PhysTop returns the first address past the managed physical range.
func (o Options) PhysTop() PhysAddr {
	return PhysAddr(o.PhysFrames) << PageShift
}

// Validate checks the options for impossible layouts.
func (o Options) Validate() error {
	if o.PhysFrames <= 0 || o.PhysFrames >= 1<<(32-PageShift) {
		return ErrInvalidFrameCount
	}
	if !o.KernelEnd.Aligned() || uint64(o.KernelEnd) >= uint64(o.PhysFrames)<<PageShift {
		return ErrInvalidKernelEnd
	}
	if o.SwapSlots < 0 || o.SwapSlots > MaxSwapSlots {
		return ErrInvalidSwapSize
	}
	switch o.SwapBackend {
	case BackendMemory, BackendFile, BackendSQLite:
	default:
		return ErrInvalidBackend
	}
	return nil
}
