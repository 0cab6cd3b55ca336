package main

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/germanamz/tether/pkg/tools/mcpserver"
	"github.com/germanamz/tether/pkg/tools/schema"
	"github.com/germanamz/tether/pkg/tools/toolbox"
	"github.com/google/uuid"
)

// post is one entry of the demo feed.
type post struct {
	ID        string    `json:"id"`
	Status    string    `json:"status"`
	MediaType string    `json:"mime_type,omitempty"`
	ImageSize int       `json:"image_size,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// feed is an in-memory list of posts. It is safe for concurrent use.
type feed struct {
	mu    sync.Mutex
	posts []post
	now   func() time.Time
}

func newFeed() *feed {
	return &feed{now: time.Now}
}

func (f *feed) tools() []mcpserver.Tool {
	return []mcpserver.Tool{
		{
			Tool: toolbox.Tool{
				Name:        "createPost",
				Description: "Publish a status update, optionally with a base64 encoded image.",
				Parameters: schema.Schema{
					Type: schema.Object,
					Properties: map[string]*schema.Schema{
						"status":    {Type: schema.String, Description: "Text of the post."},
						"image":     {Type: schema.String, Description: "Base64 encoded image data."},
						"mime_type": {Type: schema.String, Description: "Media type of the image."},
					},
					Required: []string{"status"},
				},
			},
			Handler: f.create,
		},
		{
			Tool: toolbox.Tool{
				Name:        "listPosts",
				Description: "List published posts, newest first.",
				Parameters: schema.Schema{
					Type: schema.Object,
					Properties: map[string]*schema.Schema{
						"limit": {Type: schema.Integer, Description: "Maximum number of posts to return."},
					},
				},
			},
			Handler: f.list,
		},
		{
			Tool: toolbox.Tool{
				Name:        "getPost",
				Description: "Fetch one post by id.",
				Parameters: schema.Schema{
					Type: schema.Object,
					Properties: map[string]*schema.Schema{
						"id": {Type: schema.String, Description: "Post id."},
					},
					Required: []string{"id"},
				},
			},
			Handler: f.get,
		},
		{
			Tool: toolbox.Tool{
				Name:        "echo",
				Description: "Return the given text unchanged.",
				Parameters: schema.Schema{
					Type: schema.Object,
					Properties: map[string]*schema.Schema{
						"text": {Type: schema.String},
					},
					Required: []string{"text"},
				},
			},
			Handler: echo,
		},
	}
}

func (f *feed) create(_ context.Context, args map[string]any) (*toolbox.Result, error) {
	status, _ := args["status"].(string)
	if status == "" {
		return nil, errors.New("status is required")
	}

	p := post{ID: uuid.NewString(), Status: status}

	if encoded, _ := args["image"].(string); encoded != "" {
		data, err := base64.StdEncoding.DecodeString(encoded)
		if err != nil {
			return nil, fmt.Errorf("image is not valid base64: %w", err)
		}
		p.ImageSize = len(data)
		p.MediaType, _ = args["mime_type"].(string)
	}

	f.mu.Lock()
	p.CreatedAt = f.now()
	f.posts = append(f.posts, p)
	f.mu.Unlock()

	return toolbox.TextResult(fmt.Sprintf("Posted %s", p.ID)), nil
}

func (f *feed) list(_ context.Context, args map[string]any) (*toolbox.Result, error) {
	f.mu.Lock()
	out := slices.Clone(f.posts)
	f.mu.Unlock()

	slices.Reverse(out)

	// JSON numbers decode as float64.
	if limit, ok := args["limit"].(float64); ok && limit >= 0 && int(limit) < len(out) {
		out = out[:int(limit)]
	}

	return jsonResult(out)
}

func (f *feed) get(_ context.Context, args map[string]any) (*toolbox.Result, error) {
	id, _ := args["id"].(string)

	f.mu.Lock()
	defer f.mu.Unlock()

	for _, p := range f.posts {
		if p.ID == id {
			return jsonResult(p)
		}
	}

	return nil, fmt.Errorf("post %q not found", id)
}

func echo(_ context.Context, args map[string]any) (*toolbox.Result, error) {
	text, ok := args["text"].(string)
	if !ok {
		return nil, errors.New("text is required")
	}
	return toolbox.TextResult(text), nil
}

func jsonResult(v any) (*toolbox.Result, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return toolbox.TextResult(string(data)), nil
}
