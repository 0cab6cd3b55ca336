// Package turn defines the entries of a conversation history as sent to the
// model: a role and an ordered list of content parts.
package turn

import (
	"slices"
	"strings"

	"github.com/germanamz/tether/pkg/chats/content"
)

// Role is the author of a turn.
type Role string

const (
	User  Role = "user"
	Model Role = "model"
)

// Valid reports whether r is one of the known turn roles.
func (r Role) Valid() bool {
	return r == User || r == Model
}

// String returns the underlying string value of the role.
func (r Role) String() string {
	return string(r)
}

// Turn is one entry in the conversation history.
type Turn struct {
	Role  Role
	Parts []content.Part
}

// New creates a Turn with the given parts.
func New(r Role, parts ...content.Part) Turn {
	return Turn{Role: r, Parts: parts}
}

// NewText creates a Turn with a single text part.
func NewText(r Role, text string) Turn {
	return New(r, content.Text{Text: text})
}

// TextContent concatenates the text of all Text parts.
func (t Turn) TextContent() string {
	var b strings.Builder
	for _, p := range t.Parts {
		if tp, ok := p.(content.Text); ok {
			b.WriteString(tp.Text)
		}
	}
	return b.String()
}

// FunctionCalls returns all FunctionCall parts in order.
func (t Turn) FunctionCalls() []content.FunctionCall {
	var out []content.FunctionCall
	for _, p := range t.Parts {
		if fc, ok := p.(content.FunctionCall); ok {
			out = append(out, fc)
		}
	}
	return out
}

// Clone returns a deep copy of t. Function call arguments and image bytes
// are copied too, so mutating the clone never reaches the original.
func (t Turn) Clone() Turn {
	parts := make([]content.Part, len(t.Parts))
	for i, p := range t.Parts {
		parts[i] = clonePart(p)
	}
	return Turn{Role: t.Role, Parts: parts}
}

func clonePart(p content.Part) content.Part {
	switch v := p.(type) {
	case content.FunctionCall:
		if v.Args != nil {
			v.Args = cloneValue(v.Args).(map[string]any)
		}
		return v
	case content.Image:
		v.Data = slices.Clone(v.Data)
		return v
	default:
		return p
	}
}

// cloneValue copies the maps and slices produced by JSON decoding.
func cloneValue(v any) any {
	switch x := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(x))
		for k, e := range x {
			out[k] = cloneValue(e)
		}
		return out
	case []any:
		out := make([]any, len(x))
		for i, e := range x {
			out[i] = cloneValue(e)
		}
		return out
	default:
		return v
	}
}
