package kmem

import (
	"fmt"
	"math/bits"
	"sync"

	util "github.com/bietkhonhungvandi212/kswap/internal/utils"
)

// SwapMap tracks which swap slots hold live pages, one bit per slot.
type SwapMap struct {
	mu    sync.Mutex
	words []uint64
	slots int
	used  int
}

func NewSwapMap(slots int) *SwapMap {
	if slots < 0 || slots > util.MaxSwapSlots {
		panic(util.ErrInvalidSwapSize)
	}
	return &SwapMap{
		words: make([]uint64, (slots+63)/64),
		slots: slots,
	}
}

// Alloc reserves the lowest free slot. It reports false when every slot is
// taken.
func (m *SwapMap) Alloc() (util.SlotIdx, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for w, word := range m.words {
		if word == ^uint64(0) {
			continue
		}
		bit := bits.TrailingZeros64(^word)
		slot := w*64 + bit
		if slot >= m.slots {
			break
		}
		m.words[w] |= 1 << bit
		m.used++
		return util.SlotIdx(slot), true
	}
	return 0, false
}

// Free releases a slot. Releasing a slot that is not allocated means two
// mappings claimed it, which is fatal.
func (m *SwapMap) Free(slot util.SlotIdx) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if int64(slot) >= int64(m.slots) {
		panic(util.NewKernelError("swap", "free of out of range slot", util.ErrInvalidSlot).With("slot", slot))
	}
	w, bit := slot/64, slot%64
	if m.words[w]&(1<<bit) == 0 {
		panic(util.NewKernelError("swap", fmt.Sprintf("double free of swap slot %d", slot), nil))
	}
	m.words[w] &^= 1 << bit
	m.used--
}

func (m *SwapMap) IsSet(slot util.SlotIdx) bool {
	if int64(slot) >= int64(m.slots) {
		return false
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.words[slot/64]&(1<<(slot%64)) != 0
}

// Used returns the number of live slots.
func (m *SwapMap) Used() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.used
}

// Allocated lists the live slots in ascending order.
func (m *SwapMap) Allocated() []util.SlotIdx {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]util.SlotIdx, 0, m.used)
	for w, word := range m.words {
		for word != 0 {
			bit := bits.TrailingZeros64(word)
			out = append(out, util.SlotIdx(w*64+bit))
			word &= word - 1
		}
	}
	return out
}

func (m *SwapMap) Len() int {
	return m.slots
}
