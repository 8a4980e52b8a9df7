package set

import (
	"sync"
)

// Set is one cached entry: a set the library knows to exist in the kernel,
// with the type and family it was resolved to. The type descriptor is a
// reference into the registry; the cache never owns type state.
type Set struct {
	Name   string
	Type   *SetType
	Family Family
}

// Cache is the library's record of sets already resolved against the
// kernel. Entries are added on successful creation or first resolution,
// removed on deletion and renamed or swapped in place, mirroring what the
// kernel does to the real sets.
type Cache struct {
	mu    sync.Mutex
	sets  []*Set
	index map[string]*Set
}

// NewCache returns an empty set cache.
func NewCache() *Cache {
	return &Cache{
		index: make(map[string]*Set),
	}
}

// Add records a set with its resolved type and family. Adding a name that
// is already cached fails with *ExistsError and changes nothing.
func (c *Cache) Add(name string, t *SetType, family Family) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.index[name]; ok {
		return &ExistsError{Name: name}
	}
	s := &Set{Name: name, Type: t, Family: family}
	c.sets = append(c.sets, s)
	c.index[name] = s
	return nil
}

// Del removes the named set. It fails with *NotFoundError if the name is
// not cached.
func (c *Cache) Del(name string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.index[name]; !ok {
		return &NotFoundError{Name: name}
	}
	delete(c.index, name)
	for i, s := range c.sets {
		if s.Name == name {
			c.sets = append(c.sets[:i], c.sets[i+1:]...)
			break
		}
	}
	return nil
}

// Clear empties the whole cache. It cannot fail and is also used on
// teardown and on a destroy-all command.
func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sets = nil
	c.index = make(map[string]*Set)
}

// Rename gives the cached set from the name to. There is no collision
// check against an existing entry named to: the kernel already enforced
// uniqueness before we get here.
func (c *Cache) Rename(from, to string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	s, ok := c.index[from]
	if !ok {
		return &NotFoundError{Name: from}
	}
	delete(c.index, from)
	s.Name = to
	c.index[to] = s
	return nil
}

// Swap exchanges the names of two cached sets. Types and families stay
// attached to their original slots; only the textual identity crosses
// over, matching the kernel's swap semantics.
func (c *Cache) Swap(from, to string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	a, okA := c.index[from]
	b, okB := c.index[to]
	if !okA || !okB {
		if !okA {
			return &NotFoundError{Name: from}
		}
		return &NotFoundError{Name: to}
	}
	a.Name, b.Name = to, from
	c.index[from], c.index[to] = b, a
	return nil
}

// Lookup returns the cached type and family of a set, if present.
func (c *Cache) Lookup(name string) (*SetType, Family, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	s, ok := c.index[name]
	if !ok {
		return nil, FamilyUnspec, false
	}
	return s.Type, s.Family, true
}

// Sets returns the cached entries in first-seen order. The order carries
// no meaning but is deterministic for reproducible enumeration.
func (c *Cache) Sets() []Set {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make([]Set, len(c.sets))
	for i, s := range c.sets {
		out[i] = *s
	}
	return out
}
