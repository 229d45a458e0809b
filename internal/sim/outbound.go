package sim

import (
	"fmt"
	"time"

	"github.com/zeusync/arena/internal/core/netsync"
	"github.com/zeusync/arena/internal/core/observability/log"
)

// Sender is the network collaborator that accepts outbound intents.
type Sender interface {
	Send(intent any) error
}

// OutboundStats counts what happened to outbound intents.
type OutboundStats struct {
	Sent      uint64
	Throttled uint64
	Dropped   uint64
	Failed    uint64
}

// throttle admits at most one send per interval and remembers the latest
// value offered while closed so it can go out when the window reopens.
type throttle[T comparable] struct {
	every   time.Duration
	lastAt  time.Time
	last    T
	sent    bool
	pending *T
}

func (t *throttle[T]) offer(v T, now time.Time) (T, bool) {
	if t.sent && v == t.last {
		t.pending = nil
		return v, false
	}
	if t.sent && now.Sub(t.lastAt) < t.every {
		t.pending = &v
		return v, false
	}
	return v, true
}

func (t *throttle[T]) due(now time.Time) (T, bool) {
	if t.pending == nil || now.Sub(t.lastAt) < t.every {
		var zero T
		return zero, false
	}
	return *t.pending, true
}

func (t *throttle[T]) mark(v T, now time.Time) {
	t.last, t.lastAt, t.sent, t.pending = v, now, true, nil
}

func every(rate float64) time.Duration {
	if rate <= 0 {
		return 0
	}
	return time.Duration(float64(time.Second) / rate)
}

// Outbound forwards attack and ability intents immediately and rate limits
// position and animation updates.
type Outbound struct {
	sender    Sender
	logger    log.Log
	animation throttle[netsync.AnimationUpdate]
	position  throttle[netsync.PositionUpdate]
	stats     OutboundStats
}

func NewOutbound(sender Sender, animationRate, positionRate float64, logger log.Log) *Outbound {
	return &Outbound{
		sender:    sender,
		logger:    logger.With(log.Component("outbound")),
		animation: throttle[netsync.AnimationUpdate]{every: every(animationRate)},
		position:  throttle[netsync.PositionUpdate]{every: every(positionRate)},
	}
}

// SetSender swaps the collaborator, e.g. after a reconnect. Nil drops
// everything.
func (o *Outbound) SetSender(s Sender) { o.sender = s }

func (o *Outbound) Stats() OutboundStats { return o.stats }

func (o *Outbound) SendAttack(a netsync.AttackIntent) error { return o.send(a) }

func (o *Outbound) SendAbility(a netsync.AbilityIntent) error { return o.send(a) }

// SendAnimation reports whether the state went out now. A throttled state is
// kept and sent by Flush once the window reopens; only the latest survives.
func (o *Outbound) SendAnimation(state string, now time.Time) (bool, error) {
	u := netsync.AnimationUpdate{State: state}
	v, ok := o.animation.offer(u, now)
	if !ok {
		if o.animation.pending != nil {
			o.stats.Throttled++
		}
		return false, nil
	}
	if err := o.send(v); err != nil {
		return false, err
	}
	o.animation.mark(v, now)
	return true, nil
}

// SendPosition sends the local pose when it changed and the rate allows.
func (o *Outbound) SendPosition(u netsync.PositionUpdate, now time.Time) (bool, error) {
	v, ok := o.position.offer(u, now)
	if !ok {
		if o.position.pending != nil {
			o.stats.Throttled++
		}
		return false, nil
	}
	if err := o.send(v); err != nil {
		return false, err
	}
	o.position.mark(v, now)
	return true, nil
}

// Flush sends throttled updates whose window has reopened.
func (o *Outbound) Flush(now time.Time) error {
	if v, ok := o.animation.due(now); ok {
		if err := o.send(v); err != nil {
			return err
		}
		o.animation.mark(v, now)
	}
	if v, ok := o.position.due(now); ok {
		if err := o.send(v); err != nil {
			return err
		}
		o.position.mark(v, now)
	}
	return nil
}

func (o *Outbound) send(intent any) error {
	if o.sender == nil {
		o.stats.Dropped++
		return nil
	}
	if err := o.sender.Send(intent); err != nil {
		o.stats.Failed++
		o.logger.Warn("outbound intent failed", log.String("intent", fmt.Sprintf("%T", intent)), log.Error(err))
		return fmt.Errorf("send %T: %w", intent, err)
	}
	o.stats.Sent++
	return nil
}
