// Package engine implements the flow orchestration core: entry dispatch,
// step execution, capture waits with idle timeouts, and per-identity
// sequential processing on top of the session store.
package engine

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ventaflow/ventabot/core/engine/flow"
	"github.com/ventaflow/ventabot/core/engine/session"
	"github.com/ventaflow/ventabot/core/logger"
	"github.com/ventaflow/ventabot/core/transport"
)

// Outbound delivers messages back to an identity. Satisfied by
// transport.Provider.
type Outbound interface {
	Send(ctx context.Context, identity string, msgs ...transport.Message) error
}

// Config bounds engine timers and queues.
type Config struct {
	// SessionTTL is the idle ceiling after which a session with no open
	// capture wait is garbage collected.
	SessionTTL time.Duration
	// SweepInterval controls how often expired sessions are collected.
	SweepInterval time.Duration
	// MailboxSize bounds the per-identity inbound queue.
	MailboxSize int
	// RestartMessage is sent when a conversation dies to an unexpected
	// handler failure, telling the user to re-enter via a keyword.
	RestartMessage string
}

func (c *Config) normalize() {
	if c.SessionTTL <= 0 {
		c.SessionTTL = 10 * time.Minute
	}
	if c.SweepInterval <= 0 {
		c.SweepInterval = time.Minute
	}
	if c.MailboxSize <= 0 {
		c.MailboxSize = 16
	}
	if c.RestartMessage == "" {
		c.RestartMessage = "⚠️ Ocurrió un error inesperado. Por favor, escribe \"Hola\" para comenzar de nuevo."
	}
}

// event is one unit of work for an identity mailbox: either a received
// message or an idle-timeout marker.
type event struct {
	body     string
	hasMedia bool
	timedOut bool
	wait     *captureWait
}

type mailbox struct {
	ch chan event
}

// Engine routes inbound events through the flow graph. One lightweight
// worker per active identity guarantees strict arrival-order processing;
// different identities run fully independently.
type Engine struct {
	flows *flow.Registry
	store session.Store
	out   Outbound
	cfg   Config

	mu     sync.Mutex
	boxes  map[string]*mailbox
	waits  map[string]*captureWait
	closed bool

	seq      atomic.Uint64
	wg       sync.WaitGroup
	stop     chan struct{}
	stopOnce sync.Once
}

// New builds an engine over a validated flow registry. The store is wiped so
// no identity resumes a dialogue from a previous process lifetime.
func New(reg *flow.Registry, store session.Store, out Outbound, cfg Config) *Engine {
	cfg.normalize()
	store.ClearAll()
	return &Engine{
		flows: reg,
		store: store,
		out:   out,
		cfg:   cfg,
		boxes: make(map[string]*mailbox),
		waits: make(map[string]*captureWait),
		stop:  make(chan struct{}),
	}
}

// Start launches the idle-session sweeper. It returns immediately.
func (e *Engine) Start(ctx context.Context) {
	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		ticker := time.NewTicker(e.cfg.SweepInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-e.stop:
				return
			case <-ticker.C:
				e.sweep(time.Now().Add(-e.cfg.SessionTTL))
			}
		}
	}()
}

// Close stops accepting events, cancels pending waits, and waits for
// in-flight processing to settle.
func (e *Engine) Close() {
	e.stopOnce.Do(func() {
		e.mu.Lock()
		e.closed = true
		for id, w := range e.waits {
			w.resolve()
			w.stopTimer()
			delete(e.waits, id)
		}
		e.mu.Unlock()
		close(e.stop)
	})
	e.wg.Wait()
}

// HandleInbound enqueues one received message for its identity. The call
// never blocks the transport: a saturated mailbox drops the message with a
// warning. If the identity has an armed idle timer, the reply resolves it
// here, at enqueue time, so a near-simultaneous timer firing can never
// produce a second handler invocation.
func (e *Engine) HandleInbound(in transport.Inbound) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return
	}
	if w := e.waits[in.Identity]; w != nil {
		if w.resolve() {
			w.stopTimer()
			delete(e.waits, in.Identity)
		}
	}
	e.enqueueLocked(in.Identity, event{body: in.Body, hasMedia: in.HasMedia})
}

// Emit implements flow.Emitter for handler side-channel messages.
func (e *Engine) Emit(ctx context.Context, identity string, msgs ...transport.Message) error {
	return e.out.Send(ctx, identity, msgs...)
}

func (e *Engine) enqueueLocked(identity string, ev event) {
	box := e.boxes[identity]
	if box == nil {
		box = &mailbox{ch: make(chan event, e.cfg.MailboxSize)}
		e.boxes[identity] = box
		e.wg.Add(1)
		go e.drain(identity, box)
	}
	select {
	case box.ch <- ev:
	default:
		logger.Warn(logger.Background(), "engine", "mailbox.full",
			slog.String("identity", identity),
		)
	}
}

func (e *Engine) drain(identity string, box *mailbox) {
	defer e.wg.Done()
	for {
		select {
		case ev := <-box.ch:
			e.process(identity, ev)
		default:
			e.mu.Lock()
			if len(box.ch) == 0 {
				delete(e.boxes, identity)
				e.mu.Unlock()
				return
			}
			e.mu.Unlock()
		}
	}
}

// armWait installs an idle timer for a capturing step. When the timer wins
// the single-resolution race it enqueues a timed-out event into the
// identity's mailbox.
func (e *Engine) armWait(identity, flowName string, stepIdx int, idle time.Duration) {
	w := &captureWait{flow: flowName, step: stepIdx}
	w.timer = time.AfterFunc(idle, func() {
		if !w.resolve() {
			return
		}
		e.mu.Lock()
		defer e.mu.Unlock()
		if e.closed {
			return
		}
		if e.waits[identity] == w {
			delete(e.waits, identity)
		}
		e.enqueueLocked(identity, event{timedOut: true, wait: w})
	})

	e.mu.Lock()
	defer e.mu.Unlock()
	if old := e.waits[identity]; old != nil {
		old.resolve()
		old.stopTimer()
	}
	e.waits[identity] = w
}

// cancelWait resolves and removes a pending wait, if any. Reports whether a
// wait was cancelled by this call.
func (e *Engine) cancelWait(identity string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	w := e.waits[identity]
	if w == nil {
		return false
	}
	won := w.resolve()
	w.stopTimer()
	delete(e.waits, identity)
	return won
}

// sweep garbage-collects sessions idle past the cutoff that have no open
// capture wait and no queued work.
func (e *Engine) sweep(cutoff time.Time) {
	for _, id := range e.store.IdleSince(cutoff) {
		e.mu.Lock()
		busy := e.waits[id] != nil || e.boxes[id] != nil
		e.mu.Unlock()
		if busy {
			continue
		}
		e.store.Clear(id)
		logger.Debug(logger.Background(), "engine", "session.expired",
			slog.String("identity", id),
		)
	}
}
