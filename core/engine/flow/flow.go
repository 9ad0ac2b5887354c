// Package flow defines the dialogue graph vocabulary: named flows, ordered
// steps, handler invocations, and the transition actions handlers return.
package flow

import (
	"context"
	"time"

	"github.com/ventaflow/ventabot/core/engine/session"
	"github.com/ventaflow/ventabot/core/transport"
)

// ActionKind enumerates the transition contract available to handlers.
type ActionKind int

const (
	// ActionNext advances to the next step of the current flow.
	ActionNext ActionKind = iota
	// ActionGoTo advances to the first step of a named flow.
	ActionGoTo
	// ActionFallback re-runs the current step, optionally prepending
	// override messages to its prompt.
	ActionFallback
	// ActionEnd terminates the session.
	ActionEnd
)

// Action is the only way a handler may affect control flow.
type Action struct {
	Kind     ActionKind
	Target   string
	Override []string
}

// Next advances to the following step in the same flow.
func Next() Action {
	return Action{Kind: ActionNext}
}

// GoTo advances to the first step of the named flow.
func GoTo(name string) Action {
	return Action{Kind: ActionGoTo, Target: name}
}

// Fallback re-runs the current step without advancing. Override messages,
// if any, are sent before the step prompt is repeated.
func Fallback(override ...string) Action {
	return Action{Kind: ActionFallback, Override: override}
}

// End terminates the session; the next inbound message from the identity is
// treated as a fresh entry arrival.
func End() Action {
	return Action{Kind: ActionEnd}
}

// Emitter sends outbound messages to one identity. Emission is
// fire-and-forget from the engine's perspective.
type Emitter interface {
	Emit(ctx context.Context, identity string, msgs ...transport.Message) error
}

// Invocation carries one handler call: the captured reply (or the timed-out
// marker), the session, and the outbound side channel.
type Invocation struct {
	Identity string
	// Body is the captured reply text. Empty for non-capture steps and
	// timed-out invocations.
	Body     string
	HasMedia bool
	// TimedOut marks an invocation produced by an idle timer instead of a
	// reply.
	TimedOut bool
	Session  *session.Session

	ctx     context.Context
	emitter Emitter
}

// NewInvocation builds an invocation bound to an emitter. Used by the engine
// and by tests.
func NewInvocation(ctx context.Context, identity string, sess *session.Session, emitter Emitter) *Invocation {
	return &Invocation{
		Identity: identity,
		Session:  sess,
		ctx:      ctx,
		emitter:  emitter,
	}
}

// Say emits ordered text messages to the invoking identity.
func (inv *Invocation) Say(texts ...string) error {
	if inv.emitter == nil || len(texts) == 0 {
		return nil
	}
	return inv.emitter.Emit(inv.ctx, inv.Identity, transport.Texts(texts...)...)
}

// SendMessages emits arbitrary messages (text or documents) in order.
func (inv *Invocation) SendMessages(msgs ...transport.Message) error {
	if inv.emitter == nil || len(msgs) == 0 {
		return nil
	}
	return inv.emitter.Emit(inv.ctx, inv.Identity, msgs...)
}

// Context returns the invocation context, carrying deadlines and log metadata.
func (inv *Invocation) Context() context.Context {
	if inv.ctx == nil {
		return context.Background()
	}
	return inv.ctx
}

// Handler processes one invocation and returns the transition to apply.
// Validation failures are a handler-local concern resolved via Fallback.
type Handler func(inv *Invocation) (Action, error)

// Step is one prompt-and-handler unit within a flow.
type Step struct {
	// Prompts are sent in order every time the step is entered, including
	// fallback re-entry.
	Prompts []transport.Message
	// Capture suspends the step until a reply (or idle timeout) arrives
	// before running the handler.
	Capture bool
	// Idle arms a timeout for capturing steps; zero means wait forever.
	Idle time.Duration
	// Targets lists the flows this step's handler may advance to. Resolved
	// against the registry during validation.
	Targets []string
	Handler Handler
}

// Flow is a named, ordered list of steps. Immutable after registration.
type Flow struct {
	Name string
	// Keywords trigger entry dispatch into this flow; matching is
	// case-insensitive and only applies when the identity has no current
	// flow.
	Keywords []string
	Steps    []Step
}
