// Package transport defines the boundary between the flow engine and the
// chat provider that delivers messages to and from users.
package transport

import "context"

// Inbound is one received message, delivered once per message in
// per-identity arrival order.
type Inbound struct {
	Identity string
	Body     string
	HasMedia bool
}

// Document is a binary attachment sent alongside a message.
type Document struct {
	Name    string
	MIME    string
	Data    []byte
	Caption string
}

// Message is one outbound unit: plain text, a document, or both.
type Message struct {
	Text     string
	Document *Document
}

// Text builds a plain text message.
func Text(s string) Message {
	return Message{Text: s}
}

// Texts builds an ordered sequence of plain text messages.
func Texts(ss ...string) []Message {
	msgs := make([]Message, 0, len(ss))
	for _, s := range ss {
		msgs = append(msgs, Message{Text: s})
	}
	return msgs
}

// Sink receives inbound messages from a Provider.
type Sink interface {
	HandleInbound(ev Inbound)
}

// Provider carries messages between the engine and the outside world.
// Send must preserve the relative order of msgs within one call.
type Provider interface {
	// Start begins delivering inbound messages to sink and blocks until
	// ctx is done or the provider fails.
	Start(ctx context.Context, sink Sink) error
	Send(ctx context.Context, identity string, msgs ...Message) error
}
