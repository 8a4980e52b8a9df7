package session

import (
	"github.com/evilsocket/libipset/log"
	"github.com/evilsocket/libipset/set"
)

// Create negotiates a type for the requested typename and family, creates
// the set in the kernel and records it in the cache. family may be
// FamilyUnspec, in which case the type decides.
func (s *Session) Create(name, typename string, family set.Family) (*set.SetType, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	req := &set.Request{SetName: name, TypeName: typename, Family: family}
	t, err := s.resolver.ForCommand(set.CmdCreate, req)
	if err != nil {
		return nil, err
	}
	if err := s.conn.Create(name, t.Name, t.Revision, req.Family); err != nil {
		return nil, err
	}
	if err := s.cache.Add(name, t, req.Family); err != nil {
		// The kernel accepted the create, so a cached duplicate means
		// we already knew this set. Keep the existing entry.
		log.Debug("session %s: create %s: %s", s.ID, name, err)
	}
	log.Info("session %s: created set %s type %s revision %d family %s",
		s.ID, name, t.Name, t.Revision, req.Family)
	return t, nil
}

// Destroy removes a set from the kernel and the cache. An empty name
// destroys all sets and empties the whole cache.
func (s *Session) Destroy(name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.conn.Destroy(name); err != nil {
		return err
	}
	if name == "" {
		s.cache.Clear()
		return nil
	}
	if err := s.cache.Del(name); err != nil {
		// Destroying a set we never resolved is fine.
		log.Debug("session %s: destroy %s: %s", s.ID, name, err)
	}
	return nil
}

// Flush empties a set, or all sets when name is empty. The cache keeps
// its entries: the sets still exist with the same types.
func (s *Session) Flush(name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conn.Flush(name)
}

// Rename renames a set in the kernel and mirrors the change in the cache.
func (s *Session) Rename(from, to string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.conn.Rename(from, to); err != nil {
		return err
	}
	if err := s.cache.Rename(from, to); err != nil {
		log.Debug("session %s: rename %s: %s", s.ID, from, err)
	}
	return nil
}

// Swap exchanges the contents of two sets in the kernel and mirrors the
// name exchange in the cache.
func (s *Session) Swap(from, to string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.conn.Swap(from, to); err != nil {
		return err
	}
	if err := s.cache.Swap(from, to); err != nil {
		log.Debug("session %s: swap %s %s: %s", s.ID, from, to, err)
	}
	return nil
}

// List enumerates the sets present in the kernel. Every announced type is
// verified against the registry and the set is cached, so later element
// commands on it skip the kernel query. An unverifiable type aborts the
// listing: the kernel and the library disagree and silently skipping the
// set would hide that.
func (s *Session) List() ([]set.Set, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries, err := s.conn.List()
	if err != nil {
		return nil, err
	}

	out := make([]set.Set, 0, len(entries))
	for _, e := range entries {
		req := &set.Request{
			SetName:  e.Name,
			TypeName: e.TypeName,
			Family:   e.Family,
			Revision: e.Revision,
		}
		t, err := s.resolver.CheckReceived(req)
		if err != nil {
			return nil, err
		}
		if err := s.cache.Add(e.Name, t, req.Family); err != nil {
			log.Debug("session %s: list %s: %s", s.ID, e.Name, err)
		}
		out = append(out, set.Set{Name: e.Name, Type: t, Family: req.Family})
	}
	return out, nil
}
