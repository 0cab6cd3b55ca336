package main

import (
	"testing"
	"time"

	"github.com/germanamz/tether/pkg/chats/content"
	"github.com/germanamz/tether/pkg/chats/message"
	"github.com/germanamz/tether/pkg/chats/role"
	"github.com/germanamz/tether/pkg/chats/turn"
	"github.com/germanamz/tether/pkg/modeladapter/usage"
	"github.com/germanamz/tether/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFmtTokens(t *testing.T) {
	tests := []struct {
		input    int
		expected string
	}{
		{0, "0"},
		{999, "999"},
		{1000, "1.0k"},
		{15000, "15.0k"},
		{1_000_000, "1.0M"},
		{3_400_000, "3.4M"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.expected, fmtTokens(tt.input), "fmtTokens(%d)", tt.input)
	}
}

func TestFmtBytes(t *testing.T) {
	tests := []struct {
		input    int
		expected string
	}{
		{0, "0B"},
		{1023, "1023B"},
		{1024, "1.0kB"},
		{1536, "1.5kB"},
		{5 << 20, "5.0MB"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.expected, fmtBytes(tt.input), "fmtBytes(%d)", tt.input)
	}
}

func TestFmtDuration(t *testing.T) {
	tests := []struct {
		input    time.Duration
		expected string
	}{
		{100 * time.Millisecond, "0.1s"},
		{30 * time.Second, "30.0s"},
		{65 * time.Second, "1m 5s"},
		{125 * time.Second, "2m 5s"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.expected, fmtDuration(tt.input), "fmtDuration(%v)", tt.input)
	}
}

func TestTruncateWidth(t *testing.T) {
	assert.Equal(t, "hello", truncateWidth("hello", 10))
	assert.Equal(t, "hello world", truncateWidth("hello\nworld", 20))
	assert.Equal(t, "hello...", truncateWidth("hello world", 8))
	assert.Equal(t, "short", truncateWidth("short", 0))
}

func TestRenderMessage(t *testing.T) {
	t.Run("user", func(t *testing.T) {
		out := renderMessage(message.New(role.User, "hi"), 80)
		assert.Contains(t, out, "you >")
		assert.Contains(t, out, "hi")
	})

	t.Run("user with image", func(t *testing.T) {
		img := content.Image{Data: make([]byte, 2048), MediaType: "image/png"}
		out := renderMessage(message.New(role.User, "look", message.WithImage(img)), 80)
		assert.Contains(t, out, "image/png")
		assert.Contains(t, out, "2.0kB")
	})

	t.Run("assistant", func(t *testing.T) {
		out := renderMessage(message.New(role.Assistant, "answer"), 80)
		assert.Contains(t, out, "model >")
		assert.Contains(t, out, "answer")
	})

	t.Run("tool result is truncated", func(t *testing.T) {
		long := "abcdefghij abcdefghij abcdefghij abcdefghij abcdefghij"
		out := renderMessage(message.New(role.Tool, long, message.WithTool("createPost")), 30)
		assert.Contains(t, out, "createPost")
		assert.Contains(t, out, "...")
		assert.NotContains(t, out, long)
	})

	t.Run("error names the tool", func(t *testing.T) {
		out := renderMessage(message.New(role.Error, "not found", message.WithTool("deletePost")), 80)
		assert.Contains(t, out, "error (deletePost): not found")
	})

	t.Run("plain error", func(t *testing.T) {
		out := renderMessage(message.New(role.Error, "quota"), 80)
		assert.Contains(t, out, "error: quota")
	})

	t.Run("system", func(t *testing.T) {
		out := renderMessage(message.New(role.System, "Connected"), 0)
		assert.Contains(t, out, "Connected")
	})
}

func TestRenderModels(t *testing.T) {
	reg, err := models.New(
		models.Model{ID: "fast-1", Name: "Fast", Speed: "fast"},
		models.Model{ID: "smart-1", Recommended: true},
	)
	require.NoError(t, err)

	out := renderModels(reg, "smart-1")
	assert.Contains(t, out, "fast-1")
	assert.Contains(t, out, "Fast")
	assert.Contains(t, out, "* ")
	assert.Contains(t, out, "recommended")
}

func TestRenderHistory(t *testing.T) {
	assert.Contains(t, renderHistory(nil, 80), "empty")

	out := renderHistory([]turn.Turn{
		turn.NewText(turn.User, "first question"),
		turn.NewText(turn.Model, "first answer"),
	}, 80)
	assert.Contains(t, out, "first question")
	assert.Contains(t, out, "first answer")
	assert.Contains(t, out, " 2 ")

	out = renderHistory([]turn.Turn{
		turn.New(turn.Model, content.FunctionCall{Name: "createPost", Args: map[string]any{"status": "hi"}}),
	}, 80)
	assert.Contains(t, out, "→ createPost")
}

func TestRenderUsage(t *testing.T) {
	assert.Contains(t, renderUsage(nil), "No token usage")
	assert.Contains(t, renderUsage(&usage.Tracker{}), "No token usage")

	var tr usage.Tracker
	tr.Add(usage.TokenCount{Model: "m1", InputTokens: 1200, OutputTokens: 30})
	tr.Add(usage.TokenCount{Model: "m1", InputTokens: 800, OutputTokens: 20})

	out := renderUsage(&tr)
	assert.Contains(t, out, "m1")
	assert.Contains(t, out, "↑2.0k ↓50")
	assert.Contains(t, out, "2 call(s)")
}
