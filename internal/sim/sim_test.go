package sim

import (
	"context"
	"testing"

	"github.com/bietkhonhungvandi212/kswap/internal/storage/file"
	"github.com/bietkhonhungvandi212/kswap/internal/storage/page"
	"github.com/bietkhonhungvandi212/kswap/internal/storage/vm"
	util "github.com/bietkhonhungvandi212/kswap/internal/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func smallOptions() util.Options {
	opts := util.DefaultOptions()
	opts.PhysFrames = 24
	opts.KernelEnd = 4 * util.PageSize
	opts.EarlyEnd = 8 * util.PageSize
	opts.SwapSlots = 256
	opts.CPUs = 3
	opts.Processes = 4
	opts.PagesPerProc = 20
	opts.Rounds = 5
	return opts
}

func newSimulator(t *testing.T, opts util.Options) *Simulator {
	t.Helper()
	store, err := file.Open(opts)
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	s, err := New(opts, store, nil)
	require.NoError(t, err)
	return s
}

func TestNew(t *testing.T) {
	store, err := file.NewMemStore(8)
	require.NoError(t, err)

	opts := smallOptions()
	opts.CPUs = 0
	_, err = New(opts, store, nil)
	assert.Error(t, err)

	opts = smallOptions()
	opts.PhysFrames = 0
	_, err = New(opts, store, nil)
	assert.ErrorIs(t, err, util.ErrInvalidFrameCount)
}

func TestMMU(t *testing.T) {
	opts := smallOptions()
	opts.PhysFrames = 4
	opts.KernelEnd = util.PageSize
	opts.EarlyEnd = util.PageSize
	s := newSimulator(t, opts)
	mmu := s.MMU()

	p := s.Processes().Spawn("init")
	ctx := vm.WithProcess(context.Background(), p)

	payload := func(i int) []byte { return []byte{byte(i), 0xAB, byte(i), 0xCD} }
	for i := 1; i <= 4; i++ {
		va := util.VirtAddr(i) * util.PageSize
		_, err := p.Space.AllocUser(ctx, s.Allocator(), va)
		require.NoError(t, err)
		require.NoError(t, mmu.Write(ctx, 0, p.Space, va+0x10, payload(i)))
	}
	require.True(t, p.Space.Walk(0x1000).Load().Swapped(), "first page evicted by the fourth")
	assert.Equal(t, uint64(0), mmu.Faults())

	got := make([]byte, 4)
	require.NoError(t, mmu.Read(ctx, 1, p.Space, 0x1010, got))
	assert.Equal(t, payload(1), got)
	assert.Equal(t, uint64(1), mmu.Faults())
	assert.Equal(t, uint64(5), mmu.Accesses())

	pte1 := p.Space.Walk(0x1000).Load()
	assert.True(t, pte1.HasFlags(page.FlagPresent|page.FlagAccessed))
	assert.False(t, pte1.HasFlags(page.FlagDirty), "a read does not dirty the page")
	assert.True(t, p.Space.Walk(0x2000).Load().Swapped(), "swap-in evicted the next cold page")
	assert.True(t, p.Space.Walk(0x3000).Load().HasFlags(page.FlagDirty))

	t.Run("UnmappedAddressHalts", func(t *testing.T) {
		defer func() {
			kerr, ok := recover().(*util.KernelError)
			require.True(t, ok)
			assert.Equal(t, "PTE not found", kerr.Message)
		}()
		_ = mmu.Read(ctx, 0, p.Space, 0x40000, got)
	})
}

func TestRun(t *testing.T) {
	for _, backend := range []string{util.BackendMemory, util.BackendFile, util.BackendSQLite} {
		t.Run(backend, func(t *testing.T) {
			opts := smallOptions()
			opts.SwapBackend = backend
			path, cleanup := util.CreateTempFile(t)
			defer cleanup()
			opts.SwapPath = path

			s := newSimulator(t, opts)
			report, err := s.Run(context.Background())
			require.NoError(t, err)

			assert.Equal(t, opts.Rounds, report.Rounds)
			assert.Len(t, report.FaultsPerRound, opts.Rounds)
			assert.Len(t, report.EvictionsPerRound, opts.Rounds)
			assert.Positive(t, report.Faults)
			assert.Positive(t, report.Loaded.Evictions)
			assert.Positive(t, report.Loaded.SwapIns)
			assert.InDelta(t, float64(report.Faults)/float64(report.Accesses), report.FaultRate(), 1e-9)
			assert.GreaterOrEqual(t, report.FaultMean, 0.0)

			usable := opts.PhysFrames - int(opts.KernelEnd/util.PageSize)
			assert.Equal(t, usable, report.Final.Free, "every frame comes back after exit")
			assert.Equal(t, 0, report.Final.LRU)
			assert.Equal(t, 0, report.Final.Swapped)
			assert.Empty(t, s.Processes().Processes())
		})
	}
}

func TestRunCanceled(t *testing.T) {
	s := newSimulator(t, smallOptions())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := s.Run(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestRunSwapExhausted(t *testing.T) {
	opts := smallOptions()
	opts.SwapSlots = 4

	s := newSimulator(t, opts)
	defer func() {
		kerr, ok := recover().(*util.KernelError)
		require.True(t, ok, "expected a kernel panic")
		assert.Contains(t, kerr.Message, "swap space is full")
	}()
	_, _ = s.Run(context.Background())
}

func TestMeanStdDev(t *testing.T) {
	m, sd := meanStdDev(nil)
	assert.Zero(t, m)
	assert.Zero(t, sd)

	m, sd = meanStdDev([]float64{3})
	assert.Equal(t, 3.0, m)
	assert.Zero(t, sd)

	m, sd = meanStdDev([]float64{2, 4, 4, 4, 5, 5, 7, 9})
	assert.InDelta(t, 5.0, m, 1e-9)
	assert.InDelta(t, 2.138, sd, 1e-3)
}
