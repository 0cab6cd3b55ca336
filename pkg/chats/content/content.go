// Package content defines the content parts carried by conversation turns.
package content

// Part is a piece of content within a turn.
type Part interface {
	PartKind() string
}

// Text is a plain text content part.
type Text struct {
	Text string
}

func (t Text) PartKind() string { return "text" }

// FunctionCall is the model's request to invoke a named tool with arguments.
type FunctionCall struct {
	Name string
	Args map[string]any
}

func (fc FunctionCall) PartKind() string { return "function_call" }

// Image is a binary payload, embedded as raw bytes or referenced by URL.
type Image struct {
	URL       string
	Data      []byte
	MediaType string
}

func (i Image) PartKind() string { return "image" }

// Size returns the number of embedded bytes.
func (i Image) Size() int { return len(i.Data) }
