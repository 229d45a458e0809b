package sim

import (
	"container/heap"
	"time"

	"github.com/zeusync/arena/internal/core/ecs"
)

type deferredTask struct {
	at    time.Time
	seq   uint64
	owner ecs.EntityID
	fn    func(now time.Time)
}

type taskHeap []*deferredTask

func (h taskHeap) Len() int { return len(h) }
func (h taskHeap) Less(i, j int) bool {
	if h[i].at.Equal(h[j].at) {
		return h[i].seq < h[j].seq
	}
	return h[i].at.Before(h[j].at)
}
func (h taskHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }
func (h *taskHeap) Push(x any)   { *h = append(*h, x.(*deferredTask)) }
func (h *taskHeap) Pop() any {
	old := *h
	t := old[len(old)-1]
	old[len(old)-1] = nil
	*h = old[:len(old)-1]
	return t
}

// Deferred runs "after duration" callbacks on the simulation loop. Every
// callback belongs to an entity and is dropped if that entity is gone or
// retired when it comes due.
type Deferred struct {
	tasks taskHeap
	seq   uint64
	alive func(ecs.EntityID) bool
}

func NewDeferred(alive func(ecs.EntityID) bool) *Deferred {
	return &Deferred{alive: alive}
}

// After schedules fn to run at now+d on behalf of owner.
func (d *Deferred) After(owner ecs.EntityID, now time.Time, delay time.Duration, fn func(now time.Time)) {
	d.seq++
	heap.Push(&d.tasks, &deferredTask{at: now.Add(delay), seq: d.seq, owner: owner, fn: fn})
}

// Run fires every task due by now in due order and reports how many ran and
// how many were skipped.
func (d *Deferred) Run(now time.Time) (ran, skipped int) {
	for len(d.tasks) > 0 && !d.tasks[0].at.After(now) {
		t := heap.Pop(&d.tasks).(*deferredTask)
		if d.alive != nil && !d.alive(t.owner) {
			skipped++
			continue
		}
		t.fn(now)
		ran++
	}
	return ran, skipped
}

func (d *Deferred) Len() int { return len(d.tasks) }
