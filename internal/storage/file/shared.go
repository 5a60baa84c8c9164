package file

import (
	util "github.com/bietkhonhungvandi212/kswap/internal/utils"
)

//go:generate mockgen -source=shared.go -destination=mock_filer.go -package=file

// Filer persists whole pages into numbered swap slots. Reads and writes are
// synchronous; an error means the page was not transferred.
type Filer interface {
	WritePage(src []byte, slot util.SlotIdx) error
	ReadPage(dst []byte, slot util.SlotIdx) error
	Close() error
}

func checkSlot(buf []byte, slot util.SlotIdx, slots int) error {
	if len(buf) != util.PageSize {
		return util.ErrInvalidPageBuffer
	}
	if int64(slot) >= int64(slots) {
		return util.ErrInvalidSlot
	}
	return nil
}
