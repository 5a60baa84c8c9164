package trap

import (
	"context"

	"github.com/bietkhonhungvandi212/kswap/internal/storage/kmem"
	util "github.com/bietkhonhungvandi212/kswap/internal/utils"
	"github.com/sirupsen/logrus"
)

//go:generate mockgen -source=pagefault.go -destination=mock_swapper_test.go -package=trap

const moduleName = "trap"

// Swapper brings a swapped out page back into memory.
type Swapper interface {
	SwapIn(ctx context.Context, space kmem.AddressSpace, va util.VirtAddr)
}

type pageFaultHandler struct {
	swapper Swapper
	procs   kmem.ContextSource
	log     logrus.FieldLogger
}

// NewPageFaultHandler returns the handler for PageFault. A fault on a
// swapped out page is recovered by swapping it in; every other fault is
// fatal.
func NewPageFaultHandler(swapper Swapper, procs kmem.ContextSource, log logrus.FieldLogger) Handler {
	if log == nil {
		log = util.DiscardLogger()
	}
	return &pageFaultHandler{
		swapper: swapper,
		procs:   procs,
		log:     log.WithField("module", moduleName),
	}
}

func (h *pageFaultHandler) HandleTrap(ctx context.Context, f *Frame) error {
	va := util.PageRoundDown(f.FaultAddr)

	space, ok := h.procs.Current(ctx)
	if !ok {
		h.fatal(f, "page fault outside a process", util.ErrNoProcess)
	}

	entry := space.Walk(va)
	if entry == nil {
		h.fatal(f, "PTE not found", nil)
	}

	pte := entry.Load()
	switch {
	case pte.Present():
		h.fatal(f, "page fault but the page is present", nil)
	case pte.Swapped():
		h.log.WithFields(logrus.Fields{
			"cpu":  f.CPU,
			"va":   va,
			"slot": pte.Slot(),
		}).Debug("page fault on swapped page")
		h.swapper.SwapIn(ctx, space, va)
		return nil
	default:
		h.fatal(f, "unexpected page fault", nil)
	}
	return nil
}

func (h *pageFaultHandler) fatal(f *Frame, msg string, cause error) {
	panic(util.NewKernelError(moduleName, msg, cause).
		With("cpu", f.CPU).
		With("addr", f.FaultAddr).
		With("reason", reason(f.ErrorCode)))
}

func reason(code uint32) string {
	switch code &^ ErrCodeUser {
	case 0:
		return "read from non-present page"
	case ErrCodePresent:
		return "page protection violation (read)"
	case ErrCodeWrite:
		return "write to non-present page"
	case ErrCodePresent | ErrCodeWrite:
		return "page protection violation (write)"
	default:
		return "unknown"
	}
}
