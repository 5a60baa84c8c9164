package file

import (
	"fmt"

	util "github.com/bietkhonhungvandi212/kswap/internal/utils"
)

// Open builds the swap store selected by opts.SwapBackend.
func Open(opts util.Options) (Filer, error) {
	switch opts.SwapBackend {
	case util.BackendMemory:
		return NewMemStore(opts.SwapSlots)
	case util.BackendFile:
		if opts.SwapSlots == 0 {
			// Nothing to map; an empty in-memory store rejects every slot the same way.
			return NewMemStore(0)
		}
		return NewFileManager(opts.SwapPath, opts.SwapSlots)
	case util.BackendSQLite:
		return NewSQLiteStore(opts.SwapPath, opts.SwapSlots)
	default:
		return nil, fmt.Errorf("%w %q", util.ErrInvalidBackend, opts.SwapBackend)
	}
}
