// Package toolbox holds the catalog of tools discovered on a tool server and
// translates them into model function declarations.
package toolbox

import "sync"

// Catalog is the set of tools available to a session. It is replaced
// wholesale by Load and never partially mutated. It is safe for concurrent
// use.
type Catalog struct {
	mu    sync.RWMutex
	tools []Tool
	index map[string]int
}

// New creates a Catalog holding the given tools.
func New(tools ...Tool) *Catalog {
	c := &Catalog{}
	c.Load(tools)
	return c
}

// Load atomically replaces the catalog contents. Names are unique: when a
// name repeats, the later descriptor wins but keeps the position of the first.
func (c *Catalog) Load(tools []Tool) {
	next := make([]Tool, 0, len(tools))
	index := make(map[string]int, len(tools))

	for _, t := range tools {
		if i, dup := index[t.Name]; dup {
			next[i] = t
			continue
		}
		index[t.Name] = len(next)
		next = append(next, t)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.tools = next
	c.index = index
}

// Lookup returns a tool by name and a boolean indicating whether it was found.
func (c *Catalog) Lookup(name string) (Tool, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	i, ok := c.index[name]
	if !ok {
		return Tool{}, false
	}
	return c.tools[i], true
}

// Tools returns all tools in discovery order.
func (c *Catalog) Tools() []Tool {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make([]Tool, len(c.tools))
	copy(out, c.tools)
	return out
}

// Len returns the number of tools.
func (c *Catalog) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return len(c.tools)
}

// Declarations returns a model function declaration for every tool, in
// discovery order.
func (c *Catalog) Declarations() []Declaration {
	c.mu.RLock()
	defer c.mu.RUnlock()

	decls := make([]Declaration, len(c.tools))
	for i, t := range c.tools {
		decls[i] = t.Declaration()
	}
	return decls
}
