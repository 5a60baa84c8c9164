// Package sim drives the allocator the way a running kernel would: several
// CPUs run processes whose working sets exceed physical memory, touching
// pages through a simulated MMU that faults swapped pages back in.
package sim

import (
	"context"
	"encoding/binary"
	"fmt"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/bietkhonhungvandi212/kswap/internal/storage/file"
	"github.com/bietkhonhungvandi212/kswap/internal/storage/kmem"
	"github.com/bietkhonhungvandi212/kswap/internal/storage/vm"
	"github.com/bietkhonhungvandi212/kswap/internal/trap"
	util "github.com/bietkhonhungvandi212/kswap/internal/utils"
	"github.com/sirupsen/logrus"
	"gonum.org/v1/gonum/stat"
)

const (
	moduleName = "sim"

	// stampSize is the per-page record a process writes and checks:
	// process index, page index and version.
	stampSize = 12

	// hotShare of accesses go to the first fifth of a process's pages.
	hotShare = 0.8
)

// Simulator owns one booted kernel memory system.
type Simulator struct {
	opts  util.Options
	alloc *kmem.Allocator
	procs *vm.Table
	traps *trap.Dispatcher
	mmu   *MMU
	log   logrus.FieldLogger
}

// New boots an allocator over store and wires the page-fault path.
func New(opts util.Options, store file.Filer, log logrus.FieldLogger) (*Simulator, error) {
	if opts.CPUs <= 0 || opts.Processes <= 0 || opts.PagesPerProc <= 0 || opts.Rounds < 0 {
		return nil, fmt.Errorf("[sim] [New] workload needs cpus, processes and pages: %+v", opts)
	}
	if store == nil {
		return nil, util.ErrFileManagerNil
	}
	if log == nil {
		log = util.DiscardLogger()
	}

	mmu := NewMMU()
	procs := vm.NewTable()
	alloc, err := kmem.New(opts, mmu.Shootdown(store), procs, log)
	if err != nil {
		return nil, fmt.Errorf("[sim] [New] %w", err)
	}
	alloc.Boot()

	traps := trap.NewDispatcher()
	traps.Register(trap.PageFault, trap.NewPageFaultHandler(alloc, procs, log))
	mmu.Attach(alloc, traps)

	return &Simulator{
		opts:  opts,
		alloc: alloc,
		procs: procs,
		traps: traps,
		mmu:   mmu,
		log:   log.WithField("module", moduleName),
	}, nil
}

func (s *Simulator) Allocator() *kmem.Allocator { return s.alloc }

func (s *Simulator) Processes() *vm.Table { return s.procs }

func (s *Simulator) MMU() *MMU { return s.mmu }

// task is one process plus the versions it expects to read back.
type task struct {
	index    int
	proc     *vm.Process
	versions []uint32
}

func (t *task) va(pageIdx int) util.VirtAddr {
	return util.VirtAddr(pageIdx+1) * util.PageSize
}

func (t *task) stamp(pageIdx int) []byte {
	buf := make([]byte, stampSize)
	binary.LittleEndian.PutUint32(buf[0:], uint32(t.index))
	binary.LittleEndian.PutUint32(buf[4:], uint32(pageIdx))
	binary.LittleEndian.PutUint32(buf[8:], t.versions[pageIdx])
	return buf
}

// Run spawns the processes, runs the configured rounds, verifies every page
// and tears the processes down. A kernel panic on any CPU is re-raised on
// the calling goroutine once all CPUs stopped.
func (s *Simulator) Run(ctx context.Context) (*Report, error) {
	start := time.Now()
	tasks, err := s.spawn(ctx)
	if err != nil {
		return nil, err
	}

	report := &Report{}
	for round := 0; round < s.opts.Rounds; round++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		before := s.alloc.Stats()
		faults := s.mmu.Faults()
		if err := s.round(ctx, round, tasks); err != nil {
			return nil, err
		}
		after := s.alloc.Stats()

		report.FaultsPerRound = append(report.FaultsPerRound, float64(s.mmu.Faults()-faults))
		report.EvictionsPerRound = append(report.EvictionsPerRound, float64(after.Evictions-before.Evictions))
		s.log.WithFields(logrus.Fields{
			"round":     round,
			"faults":    s.mmu.Faults() - faults,
			"evictions": after.Evictions - before.Evictions,
			"free":      after.Free,
			"lru":       after.LRU,
		}).Debug("round done")

		if s.opts.RoundDelay > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(s.opts.RoundDelay):
			}
		}
	}

	for _, t := range tasks {
		if err := s.verify(ctx, 0, t); err != nil {
			return nil, err
		}
	}
	report.Loaded = s.alloc.Stats()
	if err := s.alloc.CheckInvariants(); err != nil {
		return nil, fmt.Errorf("[sim] [Run] %w", err)
	}

	for _, t := range tasks {
		s.procs.Exit(t.proc, s.alloc)
	}

	report.Final = s.alloc.Stats()
	report.Accesses = s.mmu.Accesses()
	report.Faults = s.mmu.Faults()
	report.Rounds = s.opts.Rounds
	report.Elapsed = time.Since(start)
	report.FaultMean, report.FaultStdDev = meanStdDev(report.FaultsPerRound)
	report.EvictionMean, report.EvictionStdDev = meanStdDev(report.EvictionsPerRound)
	return report, s.alloc.CheckInvariants()
}

func (s *Simulator) spawn(ctx context.Context) ([]*task, error) {
	tasks := make([]*task, s.opts.Processes)
	for i := range tasks {
		t := &task{
			index:    i,
			proc:     s.procs.Spawn(fmt.Sprintf("proc-%d", i)),
			versions: make([]uint32, s.opts.PagesPerProc),
		}
		tasks[i] = t

		pctx := vm.WithProcess(ctx, t.proc)
		for p := range t.versions {
			if _, err := t.proc.Space.AllocUser(pctx, s.alloc, t.va(p)); err != nil {
				return nil, fmt.Errorf("[sim] [spawn] %s: %w", t.proc.Name, err)
			}
			t.versions[p] = 1
			if err := s.mmu.Write(pctx, 0, t.proc.Space, t.va(p), t.stamp(p)); err != nil {
				return nil, err
			}
		}
	}
	s.log.WithFields(logrus.Fields{
		"processes": len(tasks),
		"pages":     s.opts.Processes * s.opts.PagesPerProc,
	}).Info("workload spawned")
	return tasks, nil
}

// round runs every task once; task i runs on CPU i mod CPUs.
func (s *Simulator) round(ctx context.Context, round int, tasks []*task) error {
	var (
		wg     sync.WaitGroup
		mu     sync.Mutex
		first  error
		halted any
	)
	for cpu := 0; cpu < s.opts.CPUs; cpu++ {
		wg.Add(1)
		go func(cpu int) {
			defer wg.Done()
			defer func() {
				if r := recover(); r != nil {
					mu.Lock()
					if halted == nil {
						halted = r
					}
					mu.Unlock()
				}
			}()

			rng := rand.New(rand.NewPCG(uint64(round), uint64(cpu)))
			for i := cpu; i < len(tasks); i += s.opts.CPUs {
				if err := s.step(ctx, cpu, tasks[i], rng); err != nil {
					mu.Lock()
					if first == nil {
						first = err
					}
					mu.Unlock()
					return
				}
			}
		}(cpu)
	}
	wg.Wait()

	if halted != nil {
		panic(halted)
	}
	return first
}

// step touches a skewed sample of the task's pages, writing half of them
// and checking the rest.
func (s *Simulator) step(ctx context.Context, cpu int, t *task, rng *rand.Rand) error {
	pctx := vm.WithProcess(ctx, t.proc)
	n := len(t.versions)
	hot := max(n/5, 1)

	for range n / 2 {
		p := rng.IntN(n)
		if rng.Float64() < hotShare {
			p = rng.IntN(hot)
		}

		if rng.IntN(2) == 0 {
			t.versions[p]++
			if err := s.mmu.Write(pctx, cpu, t.proc.Space, t.va(p), t.stamp(p)); err != nil {
				return err
			}
			continue
		}
		if err := s.check(pctx, cpu, t, p); err != nil {
			return err
		}
	}
	return nil
}

func (s *Simulator) verify(ctx context.Context, cpu int, t *task) error {
	pctx := vm.WithProcess(ctx, t.proc)
	for p := range t.versions {
		if err := s.check(pctx, cpu, t, p); err != nil {
			return err
		}
	}
	return nil
}

func (s *Simulator) check(ctx context.Context, cpu int, t *task, p int) error {
	got := make([]byte, stampSize)
	if err := s.mmu.Read(ctx, cpu, t.proc.Space, t.va(p), got); err != nil {
		return err
	}
	want := t.stamp(p)
	for i := range want {
		if got[i] != want[i] {
			return fmt.Errorf("[sim] [check] %s page %d: %w (got %x, want %x)",
				t.proc.Name, p, ErrCorrupted, got, want)
		}
	}
	return nil
}

func meanStdDev(xs []float64) (float64, float64) {
	if len(xs) == 0 {
		return 0, 0
	}
	if len(xs) == 1 {
		return xs[0], 0
	}
	return stat.MeanStdDev(xs, nil)
}
