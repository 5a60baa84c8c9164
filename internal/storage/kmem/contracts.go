package kmem

//go:generate mockgen -destination=mock_filer_test.go -package=kmem github.com/bietkhonhungvandi212/kswap/internal/storage/file Filer

import (
	"context"

	"github.com/bietkhonhungvandi212/kswap/internal/storage/page"
	util "github.com/bietkhonhungvandi212/kswap/internal/utils"
)

// AddressSpace is the page table a tracked frame points back at. The
// allocator never owns it.
type AddressSpace interface {
	// Walk returns the entry that maps va, or nil when no page table
	// covers it. Walk never allocates.
	Walk(va util.VirtAddr) *page.Entry
}

// ContextSource reports the address space of the process running on behalf
// of ctx, if any.
type ContextSource interface {
	Current(ctx context.Context) (AddressSpace, bool)
}
