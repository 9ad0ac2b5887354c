package engine

import (
	"context"
	"log/slog"
	"time"

	"github.com/ventaflow/ventabot/core/engine/flow"
	"github.com/ventaflow/ventabot/core/engine/session"
	"github.com/ventaflow/ventabot/core/logger"
	"github.com/ventaflow/ventabot/core/transport"
)

// process executes one mailbox event for an identity. Any panic or handler
// error terminates the conversation and asks the user to restart; other
// identities are unaffected.
func (e *Engine) process(identity string, ev event) {
	rid := logger.BuildRID(e.seq.Add(1), identity)
	ctx := logger.WithRID(logger.Background(), rid)
	started := time.Now()

	defer func() {
		if r := recover(); r != nil {
			logger.Error(ctx, "engine", "handler.panic",
				slog.String("identity", identity),
				slog.Any("err", r),
			)
			e.failConversation(ctx, identity)
		}
	}()

	if ev.timedOut {
		e.processTimeout(ctx, identity, ev)
		return
	}

	sess, ok := e.store.Get(identity)
	if !ok || !sess.InFlow() {
		f, matched := e.flows.Match(ev.body)
		if !matched {
			// Not a keyword and no dialogue in progress: silently ignored.
			if logger.ShouldSampleDebug() {
				logger.Debug(ctx, "engine", "dispatch.ignored",
					slog.String("identity", identity),
					slog.String("payload", logger.SanitizeLimit(ev.body, 64)),
				)
			}
			return
		}
		sess = e.store.GetOrCreate(identity)
		sess.Touch()
		logger.Info(logger.WithConversationMeta(ctx, identity, f.Name, 0), "engine", "flow.enter",
			slog.String("keyword", flow.Normalize(ev.body)),
		)
		e.enter(ctx, sess, f)
		logger.Debug(ctx, "engine", "dispatch.done",
			slog.Duration("duration", logger.Took(started)),
		)
		return
	}

	sess.Touch()
	f, found := e.flows.Lookup(sess.Flow)
	if !found || sess.StepIndex >= len(f.Steps) {
		// Session points at a flow or step that no longer exists. Should
		// not happen with a validated registry.
		logger.Error(ctx, "engine", "session.corrupt",
			slog.String("identity", identity),
			slog.String("flow", sess.Flow),
			slog.Int("step", sess.StepIndex),
		)
		e.failConversation(ctx, identity)
		return
	}

	step := &f.Steps[sess.StepIndex]
	if !step.Capture {
		// A non-capture step left unexecuted (process restart mid-flow has
		// no sessions, so this is prompt resumption after a queue drop).
		e.runFrom(ctx, sess, f, sess.StepIndex, nil)
		return
	}

	// The wait armed for this step may postdate the enqueue; resolve it now
	// so the timer cannot fire after the reply is handled.
	e.cancelWait(identity)

	inv := flow.NewInvocation(e.stepContext(ctx, sess), identity, sess, e)
	inv.Body = ev.body
	inv.HasMedia = ev.hasMedia
	e.invoke(ctx, sess, f, sess.StepIndex, inv)
	logger.Debug(ctx, "engine", "dispatch.done",
		slog.Duration("duration", logger.Took(started)),
	)
}

// processTimeout runs the armed step's handler with the timed-out marker,
// unless the session moved on or ended since the timer was set.
func (e *Engine) processTimeout(ctx context.Context, identity string, ev event) {
	sess, ok := e.store.Get(identity)
	if !ok || !sess.InFlow() {
		return
	}
	if ev.wait == nil || ev.wait.flow != sess.Flow || ev.wait.step != sess.StepIndex {
		return
	}
	f, found := e.flows.Lookup(sess.Flow)
	if !found || sess.StepIndex >= len(f.Steps) {
		return
	}
	sess.Touch()
	logger.Info(logger.WithConversationMeta(ctx, identity, sess.Flow, sess.StepIndex), "engine", "capture.timeout",
		slog.Bool("timed_out", true),
		slog.Duration("idle", f.Steps[sess.StepIndex].Idle),
	)
	inv := flow.NewInvocation(e.stepContext(ctx, sess), identity, sess, e)
	inv.TimedOut = true
	e.invoke(ctx, sess, f, sess.StepIndex, inv)
}

// enter positions the session at the first step of a flow and runs it.
func (e *Engine) enter(ctx context.Context, sess *session.Session, f *flow.Flow) {
	sess.PrevFlow = sess.Flow
	sess.Flow = f.Name
	sess.StepIndex = 0
	e.store.Put(sess.Identity, sess)
	e.runFrom(ctx, sess, f, 0, nil)
}

// runFrom advances the conversation from a step: it sends the step's
// prompts (prefixed by a fallback override, when present), then either
// parks on a capturing step or runs the handler immediately and follows its
// action. Chains of non-capture steps execute back to back.
func (e *Engine) runFrom(ctx context.Context, sess *session.Session, f *flow.Flow, idx int, override []string) {
	for {
		step := &f.Steps[idx]
		sess.Flow = f.Name
		sess.StepIndex = idx
		e.store.Put(sess.Identity, sess)

		msgs := make([]transport.Message, 0, len(override)+len(step.Prompts))
		for _, text := range override {
			msgs = append(msgs, transport.Text(text))
		}
		msgs = append(msgs, step.Prompts...)
		e.send(ctx, sess.Identity, msgs)
		override = nil

		if step.Capture {
			if step.Idle > 0 {
				e.armWait(sess.Identity, f.Name, idx, step.Idle)
			}
			return
		}

		inv := flow.NewInvocation(e.stepContext(ctx, sess), sess.Identity, sess, e)
		act, err := e.callHandler(ctx, sess, step, inv)
		if err != nil {
			e.failConversation(ctx, sess.Identity)
			return
		}

		switch act.Kind {
		case flow.ActionNext:
			idx++
			if idx >= len(f.Steps) {
				e.completeFlow(ctx, sess, f)
				return
			}
		case flow.ActionGoTo:
			next, ok := e.flows.Lookup(act.Target)
			if !ok {
				logger.Error(ctx, "engine", "advance.unknown_target",
					slog.String("flow", f.Name),
					slog.String("target", act.Target),
				)
				e.failConversation(ctx, sess.Identity)
				return
			}
			sess.PrevFlow = sess.Flow
			f = next
			idx = 0
		case flow.ActionFallback:
			override = act.Override
		case flow.ActionEnd:
			e.terminate(ctx, sess.Identity)
			return
		default:
			e.failConversation(ctx, sess.Identity)
			return
		}
	}
}

// invoke runs a capturing step's handler and applies the resulting action.
func (e *Engine) invoke(ctx context.Context, sess *session.Session, f *flow.Flow, idx int, inv *flow.Invocation) {
	step := &f.Steps[idx]
	act, err := e.callHandler(ctx, sess, step, inv)
	if err != nil {
		e.failConversation(ctx, sess.Identity)
		return
	}

	switch act.Kind {
	case flow.ActionNext:
		if idx+1 >= len(f.Steps) {
			e.completeFlow(ctx, sess, f)
			return
		}
		e.runFrom(ctx, sess, f, idx+1, nil)
	case flow.ActionGoTo:
		next, ok := e.flows.Lookup(act.Target)
		if !ok {
			logger.Error(ctx, "engine", "advance.unknown_target",
				slog.String("flow", f.Name),
				slog.String("target", act.Target),
			)
			e.failConversation(ctx, sess.Identity)
			return
		}
		sess.PrevFlow = sess.Flow
		e.runFrom(ctx, sess, next, 0, nil)
	case flow.ActionFallback:
		// Re-issue the same step: override text first, prompts again, and a
		// fresh idle timer if the step carries one.
		e.runFrom(ctx, sess, f, idx, act.Override)
	case flow.ActionEnd:
		e.terminate(ctx, sess.Identity)
	default:
		e.failConversation(ctx, sess.Identity)
	}
}

func (e *Engine) callHandler(ctx context.Context, sess *session.Session, step *flow.Step, inv *flow.Invocation) (flow.Action, error) {
	if step.Handler == nil {
		return flow.Next(), nil
	}
	started := time.Now()
	act, err := step.Handler(inv)
	if err != nil {
		logger.Error(logger.WithConversationMeta(ctx, sess.Identity, sess.Flow, sess.StepIndex), "engine", "handler.error",
			slog.Any("err", err),
			slog.Duration("duration", logger.Took(started)),
		)
		return flow.Action{}, err
	}
	return act, nil
}

// completeFlow ran past the last step: the dialogue idles until the next
// keyword, with captured fields retained for a later flow.
func (e *Engine) completeFlow(ctx context.Context, sess *session.Session, f *flow.Flow) {
	sess.PrevFlow = f.Name
	sess.Flow = ""
	sess.StepIndex = 0
	e.store.Put(sess.Identity, sess)
	logger.Info(ctx, "engine", "flow.complete",
		slog.String("identity", sess.Identity),
		slog.String("flow", f.Name),
	)
}

// terminate ends the conversation and discards everything captured.
func (e *Engine) terminate(ctx context.Context, identity string) {
	e.cancelWait(identity)
	e.store.Clear(identity)
	logger.Info(ctx, "engine", "conversation.end",
		slog.String("identity", identity),
	)
}

// failConversation tears the session down after an unexpected failure and
// tells the user how to start over.
func (e *Engine) failConversation(ctx context.Context, identity string) {
	e.terminate(ctx, identity)
	e.send(ctx, identity, []transport.Message{transport.Text(e.cfg.RestartMessage)})
}

func (e *Engine) send(ctx context.Context, identity string, msgs []transport.Message) {
	if len(msgs) == 0 {
		return
	}
	if err := e.out.Send(ctx, identity, msgs...); err != nil {
		logger.Error(ctx, "engine", "send.error",
			slog.String("identity", identity),
			slog.Int("messages", len(msgs)),
			slog.Any("err", err),
		)
	}
}

func (e *Engine) stepContext(ctx context.Context, sess *session.Session) context.Context {
	return logger.WithConversationMeta(ctx, sess.Identity, sess.Flow, sess.StepIndex)
}
