// Package chat provides the append-only conversation store.
package chat

import (
	"sync"

	"github.com/germanamz/tether/pkg/chats/turn"
)

// Chat is an append-only, ordered list of conversation turns. Turns are never
// mutated or reordered once appended; the only way to drop them is Reset,
// which empties the store. The zero value is ready to use and Chat is safe for
// concurrent use, although a single owner is expected to do all writes.
type Chat struct {
	mu    sync.RWMutex
	turns []turn.Turn
}

// New creates a Chat pre-populated with the given turns.
func New(turns ...turn.Turn) *Chat {
	c := &Chat{}
	c.Append(turns...)
	return c
}

// Append adds one or more turns to the end of the conversation.
func (c *Chat) Append(turns ...turn.Turn) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, t := range turns {
		c.turns = append(c.turns, t.Clone())
	}
}

// Len returns the number of turns in the conversation.
func (c *Chat) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return len(c.turns)
}

// At returns a copy of the turn at the given index.
// It panics if the index is out of range.
func (c *Chat) At(index int) turn.Turn {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return c.turns[index].Clone()
}

// Last returns the most recent turn and true, or a zero Turn and false if the
// conversation is empty.
func (c *Chat) Last() (turn.Turn, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if len(c.turns) == 0 {
		return turn.Turn{}, false
	}
	return c.turns[len(c.turns)-1].Clone(), true
}

// Turns returns a deep snapshot of all turns. Modifying the returned slice
// or anything reachable from its turns does not affect the store.
func (c *Chat) Turns() []turn.Turn {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return cloneAll(c.turns)
}

// Since returns a snapshot of the turns appended after the first n turns.
// It returns nil when n is at or past the end.
func (c *Chat) Since(n int) []turn.Turn {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if n < 0 {
		n = 0
	}
	if n >= len(c.turns) {
		return nil
	}
	return cloneAll(c.turns[n:])
}

// Reset empties the conversation.
func (c *Chat) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.turns = nil
}

func cloneAll(turns []turn.Turn) []turn.Turn {
	cp := make([]turn.Turn, len(turns))
	for i, t := range turns {
		cp[i] = t.Clone()
	}
	return cp
}
