package file

import (
	"fmt"
	"sync"

	util "github.com/bietkhonhungvandi212/kswap/internal/utils"
)

// MemStore keeps swapped pages in process memory. Slots are materialised on
// first write so a large swap area costs nothing until it is used.
type MemStore struct {
	mu     sync.RWMutex
	pages  map[util.SlotIdx][]byte
	slots  int
	closed bool
}

func NewMemStore(slots int) (*MemStore, error) {
	if slots < 0 || slots > util.MaxSwapSlots {
		return nil, util.ErrInvalidSwapSize
	}
	return &MemStore{
		pages: make(map[util.SlotIdx][]byte),
		slots: slots,
	}, nil
}

func (ms *MemStore) WritePage(src []byte, slot util.SlotIdx) error {
	if err := checkSlot(src, slot, ms.slots); err != nil {
		return fmt.Errorf("[WritePage] slot %d: %w", slot, err)
	}

	ms.mu.Lock()
	defer ms.mu.Unlock()
	if ms.closed {
		return util.ErrStoreClosed
	}
	buf, ok := ms.pages[slot]
	if !ok {
		buf = make([]byte, util.PageSize)
		ms.pages[slot] = buf
	}
	copy(buf, src)
	return nil
}

func (ms *MemStore) ReadPage(dst []byte, slot util.SlotIdx) error {
	if err := checkSlot(dst, slot, ms.slots); err != nil {
		return fmt.Errorf("[ReadPage] slot %d: %w", slot, err)
	}

	ms.mu.RLock()
	defer ms.mu.RUnlock()
	if ms.closed {
		return util.ErrStoreClosed
	}
	buf, ok := ms.pages[slot]
	if !ok {
		return fmt.Errorf("[ReadPage] slot %d: %w", slot, util.ErrSlotNotWritten)
	}
	copy(dst, buf)
	return nil
}

func (ms *MemStore) Close() error {
	ms.mu.Lock()
	defer ms.mu.Unlock()
	ms.closed = true
	ms.pages = nil
	return nil
}
