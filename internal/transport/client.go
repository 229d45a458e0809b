// Package transport is the websocket collaborator of the simulation: it feeds
// decoded server messages into the inbox and writes outbound intents.
package transport

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"golang.org/x/sync/errgroup"

	"github.com/zeusync/arena/internal/core/netsync"
	"github.com/zeusync/arena/internal/core/observability/log"
)

// SessionHeader carries the client session id on the handshake.
const SessionHeader = "X-Arena-Session"

type Config struct {
	URL              string
	HandshakeTimeout time.Duration
	WriteTimeout     time.Duration
	ReadTimeout      time.Duration
	SendQueue        int
	MaxMessageSize   int64
}

// Inbox receives decoded server messages.
type Inbox interface {
	PushSnapshot(ctx context.Context, b netsync.SnapshotBatch) error
	PushDamage(ctx context.Context, e netsync.DamageEvent) error
	PushDebuff(ctx context.Context, e netsync.DebuffEvent) error
	PushDisconnected(d netsync.Disconnected) error
}

type Stats struct {
	FramesIn   uint64
	FramesOut  uint64
	BytesIn    uint64
	BytesOut   uint64
	Malformed  uint64
	QueueDrops uint64
}

// Client owns one websocket connection to the game server.
type Client struct {
	cfg     Config
	conn    *websocket.Conn
	inbox   Inbox
	logger  log.Log
	session uuid.UUID
	clock   func() time.Time

	out       chan []byte
	done      chan struct{}
	closeOnce sync.Once
	seq       atomic.Uint64

	framesIn, framesOut atomic.Uint64
	bytesIn, bytesOut   atomic.Uint64
	malformed, drops    atomic.Uint64
}

// Dial opens the connection. Run must be called to start the pumps.
func Dial(ctx context.Context, cfg Config, inbox Inbox, logger log.Log) (*Client, error) {
	session := uuid.New()
	dialer := websocket.Dialer{HandshakeTimeout: cfg.HandshakeTimeout}
	header := http.Header{}
	header.Set(SessionHeader, session.String())

	conn, resp, err := dialer.DialContext(ctx, cfg.URL, header)
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", cfg.URL, err)
	}
	if cfg.MaxMessageSize > 0 {
		conn.SetReadLimit(cfg.MaxMessageSize)
	}
	if cfg.SendQueue <= 0 {
		cfg.SendQueue = 64
	}
	c := &Client{
		cfg:     cfg,
		conn:    conn,
		inbox:   inbox,
		session: session,
		clock:   time.Now,
		logger:  logger.With(log.Component("transport"), log.String("session", session.String())),
		out:     make(chan []byte, cfg.SendQueue),
		done:    make(chan struct{}),
	}
	c.logger.Info("connected", log.String("url", cfg.URL))
	return c, nil
}

func (c *Client) Session() uuid.UUID { return c.session }

func (c *Client) Stats() Stats {
	return Stats{
		FramesIn:   c.framesIn.Load(),
		FramesOut:  c.framesOut.Load(),
		BytesIn:    c.bytesIn.Load(),
		BytesOut:   c.bytesOut.Load(),
		Malformed:  c.malformed.Load(),
		QueueDrops: c.drops.Load(),
	}
}

// Send encodes an outbound intent and queues it for the write pump. It never
// blocks the simulation loop.
func (c *Client) Send(intent any) error {
	select {
	case <-c.done:
		return ErrClosed
	default:
	}
	data, err := Encode(c.session.String(), c.seq.Add(1), intent)
	if err != nil {
		return err
	}
	select {
	case c.out <- data:
		return nil
	default:
		c.drops.Add(1)
		return ErrSendQueueFull
	}
}

// Run pumps frames until ctx is cancelled or the connection fails. A read
// failure is reported to the inbox as a disconnect.
func (c *Client) Run(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return c.readPump(gctx) })
	g.Go(func() error { return c.writePump(gctx) })
	g.Go(func() error {
		select {
		case <-gctx.Done():
		case <-c.done:
		}
		return c.Close()
	})

	err := g.Wait()
	if ctx.Err() != nil {
		return nil
	}
	return err
}

// Close shuts the connection down. It is safe to call more than once.
func (c *Client) Close() error {
	var err error
	c.closeOnce.Do(func() {
		close(c.done)
		_ = c.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			c.clock().Add(time.Second))
		err = c.conn.Close()
	})
	return err
}

func (c *Client) readPump(ctx context.Context) error {
	if c.cfg.ReadTimeout > 0 {
		_ = c.conn.SetReadDeadline(c.clock().Add(c.cfg.ReadTimeout))
		c.conn.SetPongHandler(func(string) error {
			return c.conn.SetReadDeadline(c.clock().Add(c.cfg.ReadTimeout))
		})
	}
	for {
		typ, data, err := c.conn.ReadMessage()
		if err != nil {
			select {
			case <-c.done:
				return nil
			default:
			}
			c.disconnected(err)
			return fmt.Errorf("read: %w", err)
		}
		if c.cfg.ReadTimeout > 0 {
			_ = c.conn.SetReadDeadline(c.clock().Add(c.cfg.ReadTimeout))
		}
		if typ != websocket.BinaryMessage {
			c.malformed.Add(1)
			continue
		}
		c.framesIn.Add(1)
		c.bytesIn.Add(uint64(len(data)))
		if err := c.dispatch(ctx, data); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			c.malformed.Add(1)
			c.logger.Warn("dropping inbound frame", log.Error(err))
		}
	}
}

func (c *Client) dispatch(ctx context.Context, data []byte) error {
	_, msg, err := Decode(data)
	if err != nil {
		return err
	}
	switch m := msg.(type) {
	case netsync.SnapshotBatch:
		m.Received = c.clock()
		return c.inbox.PushSnapshot(ctx, m)
	case netsync.DamageEvent:
		return c.inbox.PushDamage(ctx, m)
	case netsync.DebuffEvent:
		return c.inbox.PushDebuff(ctx, m)
	default:
		return fmt.Errorf("server sent %T: %w", msg, ErrUnknownKind)
	}
}

func (c *Client) disconnected(cause error) {
	reason := cause.Error()
	var ce *websocket.CloseError
	if errors.As(cause, &ce) {
		reason = fmt.Sprintf("closed: %d %s", ce.Code, ce.Text)
	}
	c.logger.Warn("connection lost", log.String("reason", reason))
	if err := c.inbox.PushDisconnected(netsync.Disconnected{At: c.clock(), Reason: reason}); err != nil {
		c.logger.Error("disconnect notification dropped", log.Error(err))
	}
}

func (c *Client) writePump(ctx context.Context) error {
	var ping <-chan time.Time
	if c.cfg.ReadTimeout > 0 {
		t := time.NewTicker(c.cfg.ReadTimeout * 9 / 10)
		defer t.Stop()
		ping = t.C
	}
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-c.done:
			return nil
		case data := <-c.out:
			if err := c.write(websocket.BinaryMessage, data); err != nil {
				return err
			}
			c.framesOut.Add(1)
			c.bytesOut.Add(uint64(len(data)))
		case <-ping:
			if err := c.write(websocket.PingMessage, nil); err != nil {
				return err
			}
		}
	}
}

func (c *Client) write(typ int, data []byte) error {
	if c.cfg.WriteTimeout > 0 {
		_ = c.conn.SetWriteDeadline(c.clock().Add(c.cfg.WriteTimeout))
	}
	if err := c.conn.WriteMessage(typ, data); err != nil {
		return fmt.Errorf("write: %w", err)
	}
	return nil
}
