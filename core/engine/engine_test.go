package engine

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ventaflow/ventabot/core/engine/flow"
	"github.com/ventaflow/ventabot/core/engine/session"
	"github.com/ventaflow/ventabot/core/transport"
)

type sentMsg struct {
	identity string
	text     string
}

type fakeOut struct {
	mu   sync.Mutex
	sent []sentMsg
}

func (f *fakeOut) Send(_ context.Context, identity string, msgs ...transport.Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, m := range msgs {
		f.sent = append(f.sent, sentMsg{identity: identity, text: m.Text})
	}
	return nil
}

func (f *fakeOut) texts(identity string) []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []string
	for _, m := range f.sent {
		if m.identity == identity {
			out = append(out, m.text)
		}
	}
	return out
}

func buildEngine(t *testing.T, cfg Config, flows ...*flow.Flow) (*Engine, *fakeOut, session.Store) {
	t.Helper()
	reg := flow.NewRegistry()
	for _, f := range flows {
		if err := reg.Add(f); err != nil {
			t.Fatalf("Add(%s): %v", f.Name, err)
		}
	}
	if err := reg.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}
	out := &fakeOut{}
	store := session.NewMemoryStore()
	e := New(reg, store, out, cfg)
	t.Cleanup(e.Close)
	return e, out, store
}

// settle waits until every identity mailbox has fully drained.
func settle(t *testing.T, e *Engine) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for {
		e.mu.Lock()
		busy := len(e.boxes)
		e.mu.Unlock()
		if busy == 0 {
			return
		}
		if time.Now().After(deadline) {
			t.Fatal("engine did not settle")
		}
		time.Sleep(time.Millisecond)
	}
}

func mustFlow(t *testing.T, b *flow.Builder) *flow.Flow {
	t.Helper()
	f, err := b.Build()
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	return f
}

func inbound(identity, body string) transport.Inbound {
	return transport.Inbound{Identity: identity, Body: body}
}

func TestKeywordEntrySendsPrompts(t *testing.T) {
	welcome := mustFlow(t, flow.New("welcome", "hola", "menu").
		Say("Bienvenido", "Escribe menu para ver opciones"))
	e, out, store := buildEngine(t, Config{}, welcome)

	e.HandleInbound(inbound("51999999999", "  HOLA "))
	settle(t, e)

	got := out.texts("51999999999")
	if len(got) != 2 || got[0] != "Bienvenido" {
		t.Fatalf("prompts = %q", got)
	}
	sess, ok := store.Get("51999999999")
	if !ok {
		t.Fatal("session should be retained after flow completion")
	}
	if sess.InFlow() {
		t.Fatalf("session should be idle, in flow %q", sess.Flow)
	}
}

func TestUnrecognizedTextSilentlyIgnored(t *testing.T) {
	welcome := mustFlow(t, flow.New("welcome", "hola").Say("Bienvenido"))
	e, out, store := buildEngine(t, Config{}, welcome)

	e.HandleInbound(inbound("51988887777", "cuanto cuesta?"))
	settle(t, e)

	if got := out.texts("51988887777"); len(got) != 0 {
		t.Fatalf("expected no reply, got %q", got)
	}
	if store.Len() != 0 {
		t.Fatalf("sessions = %d, want 0", store.Len())
	}
}

func TestCaptureAdvances(t *testing.T) {
	ask := mustFlow(t, flow.New("name", "hola").
		Ask("¿Cómo te llamas?", func(inv *flow.Invocation) (flow.Action, error) {
			inv.Session.Set("name", strings.TrimSpace(inv.Body))
			return flow.Next(), nil
		}).
		Say("Gracias"))
	e, out, store := buildEngine(t, Config{}, ask)

	e.HandleInbound(inbound("51", "hola"))
	settle(t, e)
	e.HandleInbound(inbound("51", "  Pedro "))
	settle(t, e)

	got := out.texts("51")
	want := []string{"¿Cómo te llamas?", "Gracias"}
	if len(got) != len(want) || got[0] != want[0] || got[1] != want[1] {
		t.Fatalf("messages = %q, want %q", got, want)
	}
	sess, _ := store.Get("51")
	if name, _ := sess.GetString("name"); name != "Pedro" {
		t.Fatalf("name = %q", name)
	}
}

func TestKeywordMidCaptureIsTreatedAsReply(t *testing.T) {
	var captured atomic.Value
	f := mustFlow(t, flow.New("dni", "hola").
		Ask("Ingresa tu DNI", func(inv *flow.Invocation) (flow.Action, error) {
			captured.Store(inv.Body)
			return flow.Next(), nil
		}))
	e, _, _ := buildEngine(t, Config{}, f)

	e.HandleInbound(inbound("51", "hola"))
	settle(t, e)
	e.HandleInbound(inbound("51", "hola"))
	settle(t, e)

	if got, _ := captured.Load().(string); got != "hola" {
		t.Fatalf("captured = %q, keyword must reach the capturing handler", got)
	}
}

func TestFallbackRepromptsWithOverrideFirst(t *testing.T) {
	f := mustFlow(t, flow.New("quantity", "hola").
		Ask("¿Cuántos paquetes?", func(inv *flow.Invocation) (flow.Action, error) {
			if inv.Body != "3" {
				return flow.Fallback("Cantidad inválida"), nil
			}
			return flow.Next(), nil
		}).
		Say("Perfecto"))
	e, out, _ := buildEngine(t, Config{}, f)

	e.HandleInbound(inbound("51", "hola"))
	settle(t, e)
	e.HandleInbound(inbound("51", "cero"))
	settle(t, e)
	e.HandleInbound(inbound("51", "3"))
	settle(t, e)

	got := out.texts("51")
	want := []string{"¿Cuántos paquetes?", "Cantidad inválida", "¿Cuántos paquetes?", "Perfecto"}
	if len(got) != len(want) {
		t.Fatalf("messages = %q, want %q", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("messages[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestGoToJumpsFlows(t *testing.T) {
	first := mustFlow(t, flow.New("confirm", "hola").
		Ask("¿Confirmas?", func(inv *flow.Invocation) (flow.Action, error) {
			return flow.GoTo("farewell"), nil
		}, "farewell"))
	second := mustFlow(t, flow.New("farewell").Say("Hasta pronto"))
	e, out, store := buildEngine(t, Config{}, first, second)

	e.HandleInbound(inbound("51", "hola"))
	settle(t, e)
	e.HandleInbound(inbound("51", "si"))
	settle(t, e)

	got := out.texts("51")
	if len(got) != 2 || got[1] != "Hasta pronto" {
		t.Fatalf("messages = %q", got)
	}
	sess, _ := store.Get("51")
	if sess.PrevFlow != "confirm" || sess.InFlow() {
		t.Fatalf("prev=%q flow=%q", sess.PrevFlow, sess.Flow)
	}
}

func TestEndClearsSession(t *testing.T) {
	f := mustFlow(t, flow.New("farewell", "gracias").
		Run("Listo", func(inv *flow.Invocation) (flow.Action, error) {
			return flow.End(), nil
		}))
	e, _, store := buildEngine(t, Config{}, f)

	e.HandleInbound(inbound("51", "gracias"))
	settle(t, e)

	if store.Len() != 0 {
		t.Fatalf("sessions = %d, want 0 after End", store.Len())
	}
}

func TestHandlerErrorTerminatesAndAsksRestart(t *testing.T) {
	f := mustFlow(t, flow.New("broken", "hola").
		Ask("dime", func(inv *flow.Invocation) (flow.Action, error) {
			return flow.Action{}, errors.New("boom")
		}))
	e, out, store := buildEngine(t, Config{RestartMessage: "reinicia con hola"}, f)

	e.HandleInbound(inbound("51", "hola"))
	settle(t, e)
	e.HandleInbound(inbound("51", "x"))
	settle(t, e)

	got := out.texts("51")
	if len(got) != 2 || got[1] != "reinicia con hola" {
		t.Fatalf("messages = %q", got)
	}
	if store.Len() != 0 {
		t.Fatal("failed conversation must be cleared")
	}
}

func TestPanicIsolatedPerIdentity(t *testing.T) {
	f := mustFlow(t, flow.New("risky", "hola").
		Ask("dime", func(inv *flow.Invocation) (flow.Action, error) {
			if inv.Body == "kaboom" {
				panic("handler exploded")
			}
			return flow.Next(), nil
		}).
		Say("ok"))
	e, out, store := buildEngine(t, Config{}, f)

	e.HandleInbound(inbound("a", "hola"))
	e.HandleInbound(inbound("b", "hola"))
	settle(t, e)
	e.HandleInbound(inbound("a", "kaboom"))
	e.HandleInbound(inbound("b", "fine"))
	settle(t, e)

	if _, ok := store.Get("a"); ok {
		t.Fatal("panicked conversation must be cleared")
	}
	got := out.texts("b")
	if len(got) != 2 || got[1] != "ok" {
		t.Fatalf("identity b messages = %q, must be unaffected", got)
	}
}

func TestIdleTimeoutInvokesHandlerOnce(t *testing.T) {
	var timeouts atomic.Int32
	f := mustFlow(t, flow.New("engage", "hola").
		Step(flow.Step{
			Prompts: transport.Texts("¿Sigues ahí?"),
			Capture: true,
			Idle:    30 * time.Millisecond,
			Handler: func(inv *flow.Invocation) (flow.Action, error) {
				if inv.TimedOut {
					timeouts.Add(1)
					return flow.Next(), nil
				}
				return flow.Next(), nil
			},
		}).
		Say("continuamos"))
	e, out, _ := buildEngine(t, Config{}, f)

	e.HandleInbound(inbound("51", "hola"))
	settle(t, e)
	time.Sleep(120 * time.Millisecond)
	settle(t, e)

	if n := timeouts.Load(); n != 1 {
		t.Fatalf("timeout invocations = %d, want 1", n)
	}
	got := out.texts("51")
	if len(got) != 2 || got[1] != "continuamos" {
		t.Fatalf("messages = %q", got)
	}
}

func TestReplyBeatsIdleTimer(t *testing.T) {
	var invocations atomic.Int32
	var timedOut atomic.Bool
	f := mustFlow(t, flow.New("engage", "hola").
		Step(flow.Step{
			Prompts: transport.Texts("¿Sigues ahí?"),
			Capture: true,
			Idle:    40 * time.Millisecond,
			Handler: func(inv *flow.Invocation) (flow.Action, error) {
				invocations.Add(1)
				if inv.TimedOut {
					timedOut.Store(true)
				}
				return flow.End(), nil
			},
		}))
	e, _, _ := buildEngine(t, Config{}, f)

	e.HandleInbound(inbound("51", "hola"))
	settle(t, e)
	e.HandleInbound(inbound("51", "aqui estoy"))
	time.Sleep(150 * time.Millisecond)
	settle(t, e)

	if n := invocations.Load(); n != 1 {
		t.Fatalf("handler invocations = %d, want exactly 1", n)
	}
	if timedOut.Load() {
		t.Fatal("reply must win over a near-simultaneous idle timer")
	}
}

func TestSweepSkipsSessionsWithArmedWait(t *testing.T) {
	engage := mustFlow(t, flow.New("engage", "hola").
		AskIdle("¿Sigues ahí?", time.Hour, func(inv *flow.Invocation) (flow.Action, error) {
			return flow.End(), nil
		}))
	e, _, store := buildEngine(t, Config{}, engage)

	e.HandleInbound(inbound("waiting", "hola"))
	settle(t, e)

	idle := store.GetOrCreate("stale")
	idle.LastSeen = time.Now().Add(-time.Hour)
	waiting, _ := store.Get("waiting")
	waiting.LastSeen = time.Now().Add(-time.Hour)

	e.sweep(time.Now().Add(-time.Minute))

	if _, ok := store.Get("stale"); ok {
		t.Fatal("stale session without a wait must be collected")
	}
	if _, ok := store.Get("waiting"); !ok {
		t.Fatal("session with an armed idle timer must survive the sweep")
	}
}

func TestNewWipesStore(t *testing.T) {
	store := session.NewMemoryStore()
	store.GetOrCreate("ghost")
	reg := flow.NewRegistry()
	f := mustFlow(t, flow.New("welcome", "hola").Say("hey"))
	if err := reg.Add(f); err != nil {
		t.Fatal(err)
	}
	if err := reg.Validate(); err != nil {
		t.Fatal(err)
	}
	e := New(reg, store, &fakeOut{}, Config{})
	defer e.Close()

	if store.Len() != 0 {
		t.Fatal("engine construction must wipe stale sessions")
	}
}
