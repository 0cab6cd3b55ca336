package toolbox

import (
	"context"
	"encoding/json"

	"github.com/germanamz/tether/pkg/tools/schema"
)

// Tool describes a callable tool discovered on a tool server.
type Tool struct {
	Name        string
	Description string
	Parameters  schema.Schema
}

// Parameters is the argument schema of a function declaration. Unlike
// schema.Schema every field is always present.
type Parameters struct {
	Type       schema.Type               `json:"type"`
	Properties map[string]*schema.Schema `json:"properties"`
	Required   []string                  `json:"required"`
}

// Declaration is a tool as declared to a model.
type Declaration struct {
	Name        string     `json:"name"`
	Description string     `json:"description"`
	Parameters  Parameters `json:"parameters"`
}

// Declaration converts the tool into a model function declaration. Missing
// schema fields default to an object with no properties and nothing required.
func (t Tool) Declaration() Declaration {
	p := Parameters{
		Type:       t.Parameters.Type,
		Properties: t.Parameters.Properties,
		Required:   t.Parameters.Required,
	}
	if p.Type == schema.Unspecified {
		p.Type = schema.Object
	}
	if p.Properties == nil {
		p.Properties = map[string]*schema.Schema{}
	}
	if p.Required == nil {
		p.Required = []string{}
	}

	return Declaration{
		Name:        t.Name,
		Description: t.Description,
		Parameters:  p,
	}
}

// Block is one content block of a tool result.
type Block struct {
	Type     string `json:"type"`
	Text     string `json:"text,omitempty"`
	MIMEType string `json:"mimeType,omitempty"`
}

// Result is the output of a tool invocation. IsError marks a result the tool
// itself flagged as a failure; the payload is still well formed.
type Result struct {
	Content []Block `json:"content"`
	IsError bool    `json:"isError,omitempty"`
}

// TextResult returns a result holding a single text block.
func TextResult(text string) *Result {
	return &Result{Content: []Block{{Type: "text", Text: text}}}
}

// FirstText returns the text of the first content block, and false when there
// is no first block or it carries no text.
func (r *Result) FirstText() (string, bool) {
	if r == nil || len(r.Content) == 0 || r.Content[0].Text == "" {
		return "", false
	}
	return r.Content[0].Text, true
}

// Text returns the first block's text, falling back to the JSON encoding of
// the whole result.
func (r *Result) Text() string {
	if text, ok := r.FirstText(); ok {
		return text
	}

	b, err := json.Marshal(r)
	if err != nil {
		return ""
	}
	return string(b)
}

// Caller invokes tools by name.
type Caller interface {
	CallTool(ctx context.Context, name string, args map[string]any) (*Result, error)
}
