package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseCommand(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  command
	}{
		{"plain text", "hello there", command{kind: cmdSubmit, text: "hello there"}},
		{"trims", "  hi  ", command{kind: cmdSubmit, text: "hi"}},
		{"escaped slash", "//etc/hosts is a file", command{kind: cmdSubmit, text: "/etc/hosts is a file"}},
		{"attach", "/attach cat.png look at this", command{kind: cmdAttach, arg: "cat.png", text: "look at this"}},
		{"model show", "/model", command{kind: cmdModel}},
		{"model switch", "/model gemini-2.5-pro", command{kind: cmdModel, arg: "gemini-2.5-pro"}},
		{"models", "/models", command{kind: cmdModels}},
		{"reconnect", "/reconnect", command{kind: cmdReconnect}},
		{"history", "/history", command{kind: cmdHistory}},
		{"history last", "/history 4", command{kind: cmdHistory, count: 4}},
		{"usage", "/usage", command{kind: cmdUsage}},
		{"help", "/help", command{kind: cmdHelp}},
		{"quit", "/quit", command{kind: cmdQuit}},
		{"exit", "/exit", command{kind: cmdQuit}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseCommand(tt.input)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseCommandErrors(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"", "nothing to send"},
		{"   ", "nothing to send"},
		{"/attach", "usage: /attach"},
		{"/attach cat.png", "usage: /attach"},
		{"/deploy now", "unknown command /deploy"},
		{"/history many", "usage: /history"},
		{"/history -2", "usage: /history"},
	}
	for _, tt := range tests {
		_, err := parseCommand(tt.input)
		require.Error(t, err, "parseCommand(%q)", tt.input)
		assert.Contains(t, err.Error(), tt.want)
	}
}

func TestHelpTextListsCommands(t *testing.T) {
	text := helpText()
	for _, c := range []string{"/attach", "/model", "/models", "/reconnect", "/history", "/usage", "/quit"} {
		assert.Contains(t, text, c)
	}
}
