// Package message defines the messages a session emits to its presentation
// layer: one per user action, tool call, tool result, answer, notice or error.
package message

import (
	"time"

	"github.com/germanamz/tether/pkg/chats/content"
	"github.com/germanamz/tether/pkg/chats/role"
	"github.com/google/uuid"
)

// Message is an immutable presentation record. The engine never reads
// messages back; conversation state lives in turns.
type Message struct {
	ID        string
	Role      role.Role
	Content   string
	Tool      string         // Tool name, for tool and tool-related error messages.
	Model     string         // Model id that produced or received the message.
	Image     *content.Image // Attached payload, if any.
	Timestamp time.Time
}

// Option customises a Message at construction time.
type Option func(*Message)

// WithTool sets the tool name.
func WithTool(name string) Option {
	return func(m *Message) { m.Tool = name }
}

// WithModel sets the model id.
func WithModel(id string) Option {
	return func(m *Message) { m.Model = id }
}

// WithImage attaches a payload reference.
func WithImage(img content.Image) Option {
	return func(m *Message) { m.Image = &img }
}

// WithTimestamp overrides the creation time.
func WithTimestamp(ts time.Time) Option {
	return func(m *Message) { m.Timestamp = ts }
}

// New creates a Message with a fresh ID and the current time.
func New(r role.Role, text string, opts ...Option) Message {
	m := Message{
		ID:        uuid.NewString(),
		Role:      r,
		Content:   text,
		Timestamp: time.Now(),
	}
	for _, opt := range opts {
		opt(&m)
	}
	return m
}

// IsError reports whether the message describes a failure.
func (m Message) IsError() bool {
	return m.Role == role.Error
}
