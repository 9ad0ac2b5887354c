package flow

import (
	"fmt"
	"time"

	"github.com/ventaflow/ventabot/core/transport"
)

// Builder assembles a Flow step by step:
//
//	f := flow.New("quantity").
//	    Ask("How many packages?", handleQuantity, "address").
//	    Build()
//
// Steps without a handler advance implicitly; the builder installs an
// explicit Next handler so the executor never deals with nil.
type Builder struct {
	f Flow
}

// New starts a flow definition with optional entry keywords.
func New(name string, keywords ...string) *Builder {
	return &Builder{f: Flow{Name: name, Keywords: keywords}}
}

// Say appends a non-capture step that sends the given messages and advances.
func (b *Builder) Say(texts ...string) *Builder {
	return b.Step(Step{Prompts: transport.Texts(texts...)})
}

// SayMessages appends a non-capture step with arbitrary message content,
// e.g. a document attachment.
func (b *Builder) SayMessages(msgs ...transport.Message) *Builder {
	return b.Step(Step{Prompts: msgs})
}

// Run appends a non-capture step whose handler runs immediately after the
// prompt with no awaited input.
func (b *Builder) Run(prompt string, h Handler, targets ...string) *Builder {
	s := Step{Handler: h, Targets: targets}
	if prompt != "" {
		s.Prompts = transport.Texts(prompt)
	}
	return b.Step(s)
}

// Ask appends a capture step: the prompt is sent and the handler runs once a
// reply arrives.
func (b *Builder) Ask(prompt string, h Handler, targets ...string) *Builder {
	return b.Step(Step{
		Prompts: transport.Texts(prompt),
		Capture: true,
		Handler: h,
		Targets: targets,
	})
}

// AskIdle appends a capture step with an idle timeout. When the timer fires
// first, the handler runs with the timed-out marker set.
func (b *Builder) AskIdle(prompt string, idle time.Duration, h Handler, targets ...string) *Builder {
	return b.Step(Step{
		Prompts: transport.Texts(prompt),
		Capture: true,
		Idle:    idle,
		Handler: h,
		Targets: targets,
	})
}

// Step appends a fully specified step.
func (b *Builder) Step(s Step) *Builder {
	if s.Handler == nil {
		s.Handler = func(*Invocation) (Action, error) { return Next(), nil }
	}
	b.f.Steps = append(b.f.Steps, s)
	return b
}

// Build finalizes the flow.
func (b *Builder) Build() (*Flow, error) {
	if b.f.Name == "" {
		return nil, fmt.Errorf("flow: name must not be empty")
	}
	if len(b.f.Steps) == 0 {
		return nil, fmt.Errorf("flow %q: at least one step required", b.f.Name)
	}
	f := b.f
	return &f, nil
}
