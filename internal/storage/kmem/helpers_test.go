package kmem

import (
	"context"
	"sync"
	"testing"

	"github.com/bietkhonhungvandi212/kswap/internal/storage/file"
	"github.com/bietkhonhungvandi212/kswap/internal/storage/page"
	util "github.com/bietkhonhungvandi212/kswap/internal/utils"
	"github.com/stretchr/testify/require"
)

type testSpace struct {
	mu      sync.Mutex
	entries map[util.VirtAddr]*page.Entry
}

func newTestSpace() *testSpace {
	return &testSpace{entries: make(map[util.VirtAddr]*page.Entry)}
}

func (s *testSpace) Walk(va util.VirtAddr) *page.Entry {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.entries[util.PageRoundDown(va)]
}

func (s *testSpace) reserve(va util.VirtAddr) *page.Entry {
	s.mu.Lock()
	defer s.mu.Unlock()
	e := page.NewEntry(page.Encode(page.Reserved{Flags: page.FlagWritable | page.FlagUser}))
	s.entries[va] = e
	return e
}

func (s *testSpace) drop(va util.VirtAddr) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, va)
}

type spaceKey struct{}

// testProcs resolves the current space from the context.
type testProcs struct{}

func (testProcs) Current(ctx context.Context) (AddressSpace, bool) {
	s, ok := ctx.Value(spaceKey{}).(*testSpace)
	if !ok {
		return nil, false
	}
	return s, true
}

func withSpace(s *testSpace) context.Context {
	return context.WithValue(context.Background(), spaceKey{}, s)
}

// newTestAllocator boots an allocator with `usable` frames above a two-frame
// kernel image.
func newTestAllocator(t *testing.T, usable, slots int, store file.Filer) *Allocator {
	t.Helper()
	opts := util.DefaultOptions()
	opts.PhysFrames = usable + 2
	opts.KernelEnd = 2 * util.PageSize
	opts.EarlyEnd = opts.KernelEnd
	opts.SwapSlots = slots

	if store == nil {
		ms, err := file.NewMemStore(slots)
		require.NoError(t, err)
		store = ms
	}
	a, err := New(opts, store, testProcs{}, nil)
	require.NoError(t, err)
	a.Boot()
	return a
}

// mapUser allocates a frame for va in s, fills it and maps it resident.
func mapUser(t *testing.T, a *Allocator, s *testSpace, va util.VirtAddr, seed byte) util.PhysAddr {
	t.Helper()
	e := s.reserve(va)
	pa, err := a.Allocate(withSpace(s), va)
	require.NoError(t, err)
	util.FillPattern(a.Page(pa), seed)
	e.Store(page.Encode(page.Resident{Addr: pa, Flags: page.FlagWritable | page.FlagUser}))
	return pa
}

func pattern(seed byte) []byte {
	buf := make([]byte, util.PageSize)
	util.FillPattern(buf, seed)
	return buf
}

// kernelPanic runs fn and returns the *util.KernelError it panicked with.
func kernelPanic(t *testing.T, fn func()) (kerr *util.KernelError) {
	t.Helper()
	defer func() {
		r := recover()
		require.NotNil(t, r, "expected a panic")
		var ok bool
		kerr, ok = r.(*util.KernelError)
		require.True(t, ok, "panic value %T is not a kernel error", r)
	}()
	fn()
	return nil
}
