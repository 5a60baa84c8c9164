package vm

import (
	"context"
	"sort"
	"sync"

	"github.com/bietkhonhungvandi212/kswap/internal/storage/kmem"
	"github.com/rs/xid"
)

// Process owns one address space.
type Process struct {
	ID    xid.ID
	Name  string
	Space *AddressSpace
}

type processKey struct{}

// WithProcess returns a context whose code runs on behalf of p.
func WithProcess(ctx context.Context, p *Process) context.Context {
	return context.WithValue(ctx, processKey{}, p)
}

// FromContext returns the process ctx runs for.
func FromContext(ctx context.Context) (*Process, bool) {
	p, ok := ctx.Value(processKey{}).(*Process)
	return p, ok && p != nil
}

// Table keeps the live processes and resolves the current one from a
// context for the allocator and the trap handler.
type Table struct {
	mu    sync.RWMutex
	procs map[xid.ID]*Process
}

func NewTable() *Table {
	return &Table{procs: make(map[xid.ID]*Process)}
}

// Spawn creates a process with an empty address space.
func (t *Table) Spawn(name string) *Process {
	p := &Process{
		ID:    xid.New(),
		Name:  name,
		Space: NewAddressSpace(),
	}
	t.mu.Lock()
	t.procs[p.ID] = p
	t.mu.Unlock()
	return p
}

// Exit removes p and tears down its address space.
func (t *Table) Exit(p *Process, alloc FrameAllocator) {
	t.mu.Lock()
	delete(t.procs, p.ID)
	t.mu.Unlock()
	p.Space.Release(alloc)
}

func (t *Table) Lookup(id xid.ID) (*Process, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	p, ok := t.procs[id]
	return p, ok
}

// Processes returns the live processes oldest first.
func (t *Table) Processes() []*Process {
	t.mu.RLock()
	out := make([]*Process, 0, len(t.procs))
	for _, p := range t.procs {
		out = append(out, p)
	}
	t.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].ID.Compare(out[j].ID) < 0 })
	return out
}

// Current implements kmem.ContextSource.
func (t *Table) Current(ctx context.Context) (kmem.AddressSpace, bool) {
	p, ok := FromContext(ctx)
	if !ok {
		return nil, false
	}
	return p.Space, true
}

var _ kmem.ContextSource = (*Table)(nil)
