package sim

import (
	"context"
	"sync"

	"github.com/zeusync/arena/internal/core/netsync"
)

// Inbox is the hand-off between transport goroutines and the simulation
// loop. Writers may block; the loop only ever drains what is already there.
type Inbox struct {
	ch        chan any
	done      chan struct{}
	closeOnce sync.Once
}

func NewInbox(size int) *Inbox {
	if size <= 0 {
		size = 1
	}
	return &Inbox{ch: make(chan any, size), done: make(chan struct{})}
}

func (in *Inbox) isClosed() bool {
	select {
	case <-in.done:
		return true
	default:
		return false
	}
}

// Push enqueues msg, waiting for room until ctx is done or the inbox is
// closed.
func (in *Inbox) Push(ctx context.Context, msg any) error {
	if in.isClosed() {
		return ErrInboxClosed
	}
	select {
	case in.ch <- msg:
		return nil
	case <-in.done:
		return ErrInboxClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// TryPush enqueues msg without waiting.
func (in *Inbox) TryPush(msg any) error {
	if in.isClosed() {
		return ErrInboxClosed
	}
	select {
	case in.ch <- msg:
		return nil
	default:
		return ErrInboxFull
	}
}

// PushSnapshot, PushDamage, PushDebuff and PushDisconnected are the typed
// entry points the transport uses.
func (in *Inbox) PushSnapshot(ctx context.Context, b netsync.SnapshotBatch) error {
	return in.Push(ctx, b)
}

func (in *Inbox) PushDamage(ctx context.Context, e netsync.DamageEvent) error {
	return in.Push(ctx, e)
}

func (in *Inbox) PushDebuff(ctx context.Context, e netsync.DebuffEvent) error {
	return in.Push(ctx, e)
}

// PushDisconnected never blocks: a full inbox will be drained soon and the
// read pump must be able to exit.
func (in *Inbox) PushDisconnected(d netsync.Disconnected) error {
	return in.TryPush(d)
}

// Drain returns everything currently queued, in arrival order.
func (in *Inbox) Drain() []any {
	var out []any
	for {
		select {
		case msg := <-in.ch:
			out = append(out, msg)
		default:
			return out
		}
	}
}

func (in *Inbox) Len() int { return len(in.ch) }

// Close rejects further pushes and releases writers blocked on a full inbox.
// Queued messages can still be drained. Close is idempotent.
func (in *Inbox) Close() {
	in.closeOnce.Do(func() { close(in.done) })
}
