// Package catalog names dialogue procedures so controllers can open them by name.
package catalog

import (
	"fmt"
	"sort"
	"sync"

	"github.com/aretw0/colloquy/pkg/domain"
	"github.com/aretw0/colloquy/pkg/execution"
)

// Entry describes a registered procedure.
type Entry struct {
	Name        string
	Description string
	Procedure   execution.Procedure
}

// Catalog manages the available dialogue procedures.
type Catalog struct {
	mu      sync.RWMutex
	entries map[string]Entry
}

// New creates a new empty catalog.
func New() *Catalog {
	return &Catalog{
		entries: make(map[string]Entry),
	}
}

// Register adds a procedure to the catalog.
// If a procedure with the same name exists, it is overwritten.
func (c *Catalog) Register(name, description string, proc execution.Procedure) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[name] = Entry{Name: name, Description: description, Procedure: proc}
}

// Lookup returns the procedure registered under name.
func (c *Catalog) Lookup(name string) (execution.Procedure, error) {
	c.mu.RLock()
	entry, ok := c.entries[name]
	c.mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("%q: %w", name, domain.ErrProcedureNotFound)
	}
	return entry.Procedure, nil
}

// Entries returns every registered procedure, sorted by name.
func (c *Catalog) Entries() []Entry {
	c.mu.RLock()
	out := make([]Entry, 0, len(c.entries))
	for _, e := range c.entries {
		out = append(out, e)
	}
	c.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Names returns the registered procedure names, sorted.
func (c *Catalog) Names() []string {
	entries := c.Entries()
	names := make([]string, len(entries))
	for i, e := range entries {
		names[i] = e.Name
	}
	return names
}
