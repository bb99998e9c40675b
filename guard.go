package hostlookup

import "sync"

// guardSet tracks names whose resolution is in flight on the current
// chain. A name that fails enter must not be resolved again until the
// earlier attempt leaves.
type guardSet struct {
	mu    sync.Mutex
	names map[string]struct{}
}

// enter marks name as being resolved. It reports false if the name is
// already in flight, in which case the caller must not proceed.
func (g *guardSet) enter(name string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.names == nil {
		g.names = make(map[string]struct{})
	}
	if _, ok := g.names[name]; ok {
		return false
	}
	g.names[name] = struct{}{}
	return true
}

// leave removes name from the set. Removing an absent name is a no-op.
func (g *guardSet) leave(name string) {
	g.mu.Lock()
	delete(g.names, name)
	g.mu.Unlock()
}
