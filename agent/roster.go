package agent

import (
	"fmt"
	"sort"
	"strings"
	"sync"
)

// Roster is the named registry of agents a company can schedule. Names are
// unique; registration order is preserved for Describe.
type Roster struct {
	mu     sync.RWMutex
	agents map[string]Agent
	order  []string
}

// NewRoster creates an empty roster.
func NewRoster() *Roster {
	return &Roster{agents: make(map[string]Agent)}
}

// Register adds an agent under its declared name. Empty and duplicate
// names are rejected.
func (r *Roster) Register(a Agent) error {
	name := a.Info().Name
	if name == "" {
		return fmt.Errorf("agent name cannot be empty")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.agents[name]; exists {
		return fmt.Errorf("agent already registered: %s", name)
	}
	r.agents[name] = a
	r.order = append(r.order, name)
	return nil
}

// Get looks up an agent by name.
func (r *Roster) Get(name string) (Agent, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	a, ok := r.agents[name]
	return a, ok
}

// Names returns the registered names in registration order.
func (r *Roster) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]string{}, r.order...)
}

// Len returns the number of registered agents.
func (r *Roster) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.agents)
}

// Describe renders the roster text handed to the manager: one block per
// agent with its name and description, in registration order.
func (r *Roster) Describe() string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.describe(r.order)
}

// DescribeSubset renders roster text for the given names only. Unknown
// names are skipped; the order of names is kept.
func (r *Roster) DescribeSubset(names []string) string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	known := make([]string, 0, len(names))
	for _, name := range names {
		if _, ok := r.agents[name]; ok {
			known = append(known, name)
		}
	}
	return r.describe(known)
}

func (r *Roster) describe(names []string) string {
	var b strings.Builder
	for _, name := range names {
		info := r.agents[name].Info()
		fmt.Fprintf(&b, "Employee: %s\nDuty: %s\n\n", info.Name, info.Description)
	}
	return strings.TrimRight(b.String(), "\n")
}

// SortedNames returns the registered names sorted alphabetically. Handy for
// stable logging.
func (r *Roster) SortedNames() []string {
	names := r.Names()
	sort.Strings(names)
	return names
}
