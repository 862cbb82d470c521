package sandbox

import (
	"context"
	"fmt"
	"sync"

	"golang.org/x/sync/semaphore"
)

// Slot is a launch permit. It carries nothing from one run to the next
// except its name prefix.
type Slot struct {
	ID   int
	Name string
	runs int
}

// ContainerName returns a fresh name for the next container of the slot
func (s *Slot) ContainerName(step string) string {
	s.runs++
	return fmt.Sprintf("%s-%s-%d", s.Name, step, s.runs)
}

// SlotPool bounds the number of concurrently running sandboxes.
// Released slots are kept on a stack and handed out again.
type SlotPool struct {
	prefix string
	sem    *semaphore.Weighted

	slots []*Slot
	next  int
	mu    sync.Mutex
}

// NewSlotPool creates a pool with size slots, size <= 0 means one slot
func NewSlotPool(prefix string, size int) *SlotPool {
	if size <= 0 {
		size = 1
	}
	return &SlotPool{
		prefix: prefix,
		sem:    semaphore.NewWeighted(int64(size)),
	}
}

// Prefix returns the name prefix shared by all slots of the pool
func (p *SlotPool) Prefix() string {
	return p.prefix
}

// Get waits for a free slot or the context to be done
func (p *SlotPool) Get(ctx context.Context) (*Slot, error) {
	if err := p.sem.Acquire(ctx, 1); err != nil {
		return nil, err
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if len(p.slots) > 0 {
		s := p.slots[len(p.slots)-1]
		p.slots = p.slots[:len(p.slots)-1]
		return s, nil
	}
	p.next++
	return &Slot{ID: p.next, Name: fmt.Sprintf("%s-%d", p.prefix, p.next)}, nil
}

// Put returns a slot to the pool
func (p *SlotPool) Put(s *Slot) {
	p.mu.Lock()
	p.slots = append(p.slots, s)
	p.mu.Unlock()

	p.sem.Release(1)
}
