package main

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// commandKind identifies what a line of input asks for.
type commandKind int

const (
	cmdSubmit commandKind = iota
	cmdAttach
	cmdModel
	cmdModels
	cmdReconnect
	cmdHistory
	cmdUsage
	cmdHelp
	cmdQuit
)

// command is a parsed line of input.
type command struct {
	kind  commandKind
	text  string // Message text for cmdSubmit and cmdAttach.
	arg   string // Path for cmdAttach, model id for cmdModel.
	count int    // Number of turns for cmdHistory (0 = all).
}

// parseCommand interprets one line of input. Lines that do not start with a
// slash are submissions. A leading double slash escapes a literal slash.
func parseCommand(line string) (command, error) {
	line = strings.TrimSpace(line)
	if line == "" {
		return command{}, errors.New("nothing to send")
	}

	if strings.HasPrefix(line, "//") {
		return command{kind: cmdSubmit, text: line[1:]}, nil
	}
	if !strings.HasPrefix(line, "/") {
		return command{kind: cmdSubmit, text: line}, nil
	}

	name, rest, _ := strings.Cut(line, " ")
	rest = strings.TrimSpace(rest)

	switch name {
	case "/attach":
		path, text, _ := strings.Cut(rest, " ")
		text = strings.TrimSpace(text)
		if path == "" || text == "" {
			return command{}, errors.New("usage: /attach <path> <text>")
		}
		return command{kind: cmdAttach, arg: path, text: text}, nil
	case "/model":
		return command{kind: cmdModel, arg: rest}, nil
	case "/models":
		return command{kind: cmdModels}, nil
	case "/reconnect":
		return command{kind: cmdReconnect}, nil
	case "/history":
		if rest == "" {
			return command{kind: cmdHistory}, nil
		}
		n, err := strconv.Atoi(rest)
		if err != nil || n < 0 {
			return command{}, errors.New("usage: /history [n]")
		}
		return command{kind: cmdHistory, count: n}, nil
	case "/usage":
		return command{kind: cmdUsage}, nil
	case "/help":
		return command{kind: cmdHelp}, nil
	case "/quit", "/exit":
		return command{kind: cmdQuit}, nil
	}

	return command{}, fmt.Errorf("unknown command %s (try /help)", name)
}

func helpText() string {
	return dimStyle.Render(
		"Commands:\n" +
			"  /attach <path> <text>  Post an image with text, then ask the model\n" +
			"  /model [id]            Show or switch the model (clears the conversation)\n" +
			"  /models                List available models\n" +
			"  /reconnect             Reconnect to the tool server\n" +
			"  /history [n]           Show the conversation turns (last n)\n" +
			"  /usage                 Show token usage\n" +
			"  /help                  Show this help message\n" +
			"  /quit                  Exit\n\n" +
			"Shortcuts:\n" +
			"  Enter                  Submit message\n" +
			"  Alt+Enter              New line\n" +
			"  Esc                    Cancel the running submission\n" +
			"  Ctrl+C                 Exit",
	)
}
