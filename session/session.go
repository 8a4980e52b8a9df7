// Package session drives set commands end to end: it owns the type
// registry, the set cache and a kernel transport, resolves the type for
// each command and keeps the cache in step with what the kernel did.
package session

import (
	"sync"

	"github.com/evilsocket/libipset/netfilter"
	"github.com/evilsocket/libipset/set"
	"github.com/google/uuid"
)

// Transport is the kernel side of a session. netfilter.Conn is the real
// one; tests plug in fakes.
type Transport interface {
	set.Querier

	Protocol() uint8
	Create(setname, typename string, revision uint8, family set.Family) error
	Destroy(setname string) error
	Flush(setname string) error
	Rename(from, to string) error
	Swap(from, to string) error
	List() ([]netfilter.ListEntry, error)
	Close() error
}

// Session is one logical command stream against the kernel. A session
// runs one command at a time; its mutex makes it safe to share between
// goroutines, but commands are still serialized.
type Session struct {
	// ID tags every session for logging, the way rules are tagged
	// elsewhere in our stack.
	ID string

	mu       sync.Mutex
	conn     Transport
	registry *set.Registry
	cache    *set.Cache
	resolver *set.Resolver
}

// Option configures a session at construction time.
type Option func(*Session)

// WithRegistry replaces the built-in type registry, e.g. with one that
// carries experimental types.
func WithRegistry(r *set.Registry) Option {
	return func(s *Session) { s.registry = r }
}

// WithCache replaces the set cache, e.g. to share one between sessions
// that target the same kernel.
func WithCache(c *set.Cache) Option {
	return func(s *Session) { s.cache = c }
}

// New returns a session over the given transport, with the compiled-in
// types registered and an empty set cache.
func New(conn Transport, opts ...Option) *Session {
	s := &Session{
		ID:   uuid.New().String(),
		conn: conn,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.registry == nil {
		s.registry = set.Builtin()
	}
	if s.cache == nil {
		s.cache = set.NewCache()
	}
	s.resolver = set.NewResolver(s.registry, s.cache, conn)
	return s
}

// Dial opens a netfilter connection in the current network namespace and
// returns a session over it.
func Dial(opts ...Option) (*Session, error) {
	conn, err := netfilter.Dial()
	if err != nil {
		return nil, err
	}
	return New(conn, opts...), nil
}

// Registry returns the session's type registry.
func (s *Session) Registry() *set.Registry {
	return s.registry
}

// Cache returns the session's set cache.
func (s *Session) Cache() *set.Cache {
	return s.cache
}

// ResolveType resolves the type for a command, consulting the cache and
// the registry and negotiating with the kernel when needed. The request
// carries the resolved family and type back to the caller.
func (s *Session) ResolveType(cmd set.Cmd, req *set.Request) (*set.SetType, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.resolver.ForCommand(cmd, req)
}

// CheckReceived verifies a type announced by the kernel, e.g. in a list
// dump, against the registry.
func (s *Session) CheckReceived(req *set.Request) (*set.SetType, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.resolver.CheckReceived(req)
}

// Close tears the session down: the cache is emptied and the transport
// closed. The registry survives, it belongs to the process.
func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cache.Clear()
	return s.conn.Close()
}
