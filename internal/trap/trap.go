// Package trap routes processor traps to their handlers. Only the page
// fault is handled here; timer, disk and the other device traps belong to
// components outside this module.
package trap

import (
	"context"
	"fmt"
	"sync"

	util "github.com/bietkhonhungvandi212/kswap/internal/utils"
)

// Number identifies a trap the way the processor reports it.
type Number uint8

const (
	// GPFault is raised when a general protection check fails.
	GPFault = Number(13)

	// PageFault is raised when a page table entry is not present or when a
	// privilege and/or RW protection check fails.
	PageFault = Number(14)
)

// Error code bits pushed by a page fault.
const (
	ErrCodePresent uint32 = 1 << 0 // protection violation, not a missing page
	ErrCodeWrite   uint32 = 1 << 1
	ErrCodeUser    uint32 = 1 << 2
)

// Frame is the trap state handed to a handler.
type Frame struct {
	Trapno    Number
	CPU       int
	ErrorCode uint32
	// FaultAddr is the faulting virtual address (CR2) for page faults.
	FaultAddr util.VirtAddr
}

func (f *Frame) String() string {
	return fmt.Sprintf("trap %d on cpu %d, err 0x%x, addr 0x%08x", f.Trapno, f.CPU, f.ErrorCode, uint32(f.FaultAddr))
}

// Handler services one trap. Returning nil resumes the interrupted code.
type Handler interface {
	HandleTrap(ctx context.Context, f *Frame) error
}

// HandlerFunc adapts a function to Handler.
type HandlerFunc func(ctx context.Context, f *Frame) error

func (fn HandlerFunc) HandleTrap(ctx context.Context, f *Frame) error {
	return fn(ctx, f)
}

// Dispatcher is the trap vector table.
type Dispatcher struct {
	mu       sync.RWMutex
	handlers map[Number]Handler
}

func NewDispatcher() *Dispatcher {
	return &Dispatcher{handlers: make(map[Number]Handler)}
}

// Register installs h for trapno, replacing any previous handler.
func (d *Dispatcher) Register(trapno Number, h Handler) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.handlers[trapno] = h
}

// Dispatch runs the handler registered for f.Trapno.
func (d *Dispatcher) Dispatch(ctx context.Context, f *Frame) error {
	d.mu.RLock()
	h, ok := d.handlers[f.Trapno]
	d.mu.RUnlock()

	if !ok {
		return fmt.Errorf("[trap] [Dispatch] %s: %w", f, util.ErrUnhandledTrap)
	}
	return h.HandleTrap(ctx, f)
}
