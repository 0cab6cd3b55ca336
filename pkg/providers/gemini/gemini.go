// Package gemini provides a Completer implementation for the Google Gemini API.
package gemini

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/url"

	"github.com/germanamz/tether/pkg/chats/content"
	"github.com/germanamz/tether/pkg/chats/turn"
	"github.com/germanamz/tether/pkg/modeladapter"
	"github.com/germanamz/tether/pkg/modeladapter/usage"
	"github.com/germanamz/tether/pkg/tools/toolbox"
)

// DefaultBaseURL is the public Gemini endpoint.
const DefaultBaseURL = "https://generativelanguage.googleapis.com"

var _ modeladapter.Completer = (*Adapter)(nil)

// Adapter implements modeladapter.Completer for the Google Gemini API. The
// model is chosen per call so a session can switch models without a new
// adapter.
type Adapter struct {
	modeladapter.ModelAdapter
}

// New creates an Adapter configured for the Gemini API.
// The baseURL should be DefaultBaseURL (no trailing slash) outside tests.
func New(baseURL, apiKey string) *Adapter {
	a := &Adapter{}
	a.BaseURL = baseURL
	a.Auth = modeladapter.Auth{
		Key:    apiKey,
		Header: "x-goog-api-key",
	}

	return a
}

// Complete sends the history and tool declarations to the model and returns
// the first part of the first candidate.
func (a *Adapter) Complete(ctx context.Context, model string, history []turn.Turn, decls []toolbox.Declaration) (modeladapter.Reply, error) {
	req := a.buildRequest(history, decls)
	path := fmt.Sprintf("/v1beta/models/%s:generateContent", url.PathEscape(model))

	var resp apiResponse
	if err := a.PostJSON(ctx, path, req, &resp); err != nil {
		return modeladapter.Reply{}, fmt.Errorf("gemini: %w", err)
	}

	a.Usage.Add(usage.TokenCount{
		Model:        model,
		InputTokens:  resp.UsageMetadata.PromptTokenCount,
		OutputTokens: resp.UsageMetadata.CandidatesTokenCount,
	})

	return parseResponse(model, resp)
}

// --- request types ---

type apiRequest struct {
	Contents         []apiContent     `json:"contents"`
	Tools            []apiToolSet     `json:"tools,omitempty"`
	GenerationConfig generationConfig `json:"generationConfig"`
}

type apiContent struct {
	Role  string    `json:"role"`
	Parts []apiPart `json:"parts"`
}

type apiPart struct {
	Text         *string          `json:"text,omitempty"`
	FunctionCall *apiFunctionCall `json:"functionCall,omitempty"`
	InlineData   *apiBlob         `json:"inlineData,omitempty"`
	FileData     *apiFileData     `json:"fileData,omitempty"`
}

type apiFunctionCall struct {
	Name string          `json:"name"`
	Args json.RawMessage `json:"args,omitempty"`
}

type apiBlob struct {
	MimeType string `json:"mimeType"`
	Data     string `json:"data"`
}

type apiFileData struct {
	MimeType string `json:"mimeType,omitempty"`
	FileURI  string `json:"fileUri"`
}

type apiToolSet struct {
	FunctionDeclarations []toolbox.Declaration `json:"functionDeclarations"`
}

type generationConfig struct {
	Temperature     *float64 `json:"temperature,omitempty"`
	MaxOutputTokens int      `json:"maxOutputTokens,omitempty"`
}

// --- response types ---

type apiResponse struct {
	Candidates    []apiCandidate `json:"candidates"`
	UsageMetadata apiUsageMeta   `json:"usageMetadata"`
}

type apiCandidate struct {
	Content      *apiContent `json:"content"`
	FinishReason string      `json:"finishReason"`
}

type apiUsageMeta struct {
	PromptTokenCount     int `json:"promptTokenCount"`
	CandidatesTokenCount int `json:"candidatesTokenCount"`
	TotalTokenCount      int `json:"totalTokenCount"`
}

// --- conversion helpers ---

func (a *Adapter) buildRequest(history []turn.Turn, decls []toolbox.Declaration) apiRequest {
	req := apiRequest{
		Contents: make([]apiContent, 0, len(history)),
		GenerationConfig: generationConfig{
			MaxOutputTokens: a.MaxTokens,
		},
	}

	if a.Temperature != 0 {
		t := a.Temperature
		req.GenerationConfig.Temperature = &t
	}

	if len(decls) > 0 {
		req.Tools = []apiToolSet{{FunctionDeclarations: decls}}
	}

	for _, t := range history {
		appendTurn(&req.Contents, t)
	}

	return req
}

// appendTurn adds t to contents, merging into the previous entry when the
// role repeats since the API expects roles to alternate.
func appendTurn(contents *[]apiContent, t turn.Turn) {
	parts := make([]apiPart, 0, len(t.Parts))
	for _, p := range t.Parts {
		if part, ok := toAPIPart(p); ok {
			parts = append(parts, part)
		}
	}
	if len(parts) == 0 {
		return
	}

	apiRole := string(t.Role)
	if n := len(*contents); n > 0 && (*contents)[n-1].Role == apiRole {
		(*contents)[n-1].Parts = append((*contents)[n-1].Parts, parts...)
		return
	}

	*contents = append(*contents, apiContent{Role: apiRole, Parts: parts})
}

func toAPIPart(p content.Part) (apiPart, bool) {
	switch v := p.(type) {
	case content.Text:
		text := v.Text
		return apiPart{Text: &text}, true
	case content.FunctionCall:
		args, err := json.Marshal(v.Args)
		if err != nil || v.Args == nil {
			args = json.RawMessage(`{}`)
		}
		return apiPart{FunctionCall: &apiFunctionCall{Name: v.Name, Args: args}}, true
	case content.Image:
		if len(v.Data) > 0 {
			return apiPart{InlineData: &apiBlob{
				MimeType: v.MediaType,
				Data:     base64.StdEncoding.EncodeToString(v.Data),
			}}, true
		}
		if v.URL != "" {
			return apiPart{FileData: &apiFileData{MimeType: v.MediaType, FileURI: v.URL}}, true
		}
	}
	return apiPart{}, false
}

// parseResponse applies the reply rules: the first candidate, and within it
// the first part only.
func parseResponse(model string, resp apiResponse) (modeladapter.Reply, error) {
	if len(resp.Candidates) == 0 {
		return modeladapter.Reply{}, &modeladapter.ModelError{Kind: modeladapter.ErrNoResponseCandidate, Model: model}
	}

	cand := resp.Candidates[0]
	if cand.Content == nil || len(cand.Content.Parts) == 0 {
		return modeladapter.Reply{}, &modeladapter.ModelError{
			Kind:   modeladapter.ErrEmptyContent,
			Model:  model,
			Detail: finishDetail(cand.FinishReason),
		}
	}

	part := cand.Content.Parts[0]
	switch {
	case part.FunctionCall != nil:
		fc, err := toFunctionCall(part.FunctionCall)
		if err != nil {
			return modeladapter.Reply{}, &modeladapter.ModelError{Kind: modeladapter.ErrMalformedContent, Model: model, Detail: err.Error()}
		}
		return modeladapter.Reply{FunctionCall: fc}, nil
	case part.Text != nil:
		return modeladapter.Reply{Text: *part.Text}, nil
	default:
		return modeladapter.Reply{}, &modeladapter.ModelError{
			Kind:   modeladapter.ErrMalformedContent,
			Model:  model,
			Detail: "first part has neither text nor functionCall",
		}
	}
}

func toFunctionCall(fc *apiFunctionCall) (*content.FunctionCall, error) {
	if fc.Name == "" {
		return nil, fmt.Errorf("functionCall without a name")
	}

	args := map[string]any{}
	if len(fc.Args) > 0 && string(fc.Args) != "null" {
		if err := json.Unmarshal(fc.Args, &args); err != nil {
			return nil, fmt.Errorf("functionCall args: %w", err)
		}
	}

	return &content.FunctionCall{Name: fc.Name, Args: args}, nil
}

func finishDetail(reason string) string {
	if reason == "" {
		return ""
	}
	return "finish reason " + reason
}
