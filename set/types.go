// Package set implements the userspace side of the kernel set subsystem's
// type system: the registry of compiled-in set types, the cache of sets
// known to exist in the kernel, and the revision negotiation that decides
// whether the library and the running kernel can talk to each other about
// a given type.
package set

import (
	"sync"
)

// MaxNameLen bounds set names, including the terminating zero on the wire.
const MaxNameLen = 32

// KernelCheck records whether a registered type has been verified against
// the running kernel.
type KernelCheck uint8

const (
	KernelUnchecked KernelCheck = iota
	KernelOK
	KernelMismatch
)

func (k KernelCheck) String() string {
	switch k {
	case KernelOK:
		return "ok"
	case KernelMismatch:
		return "mismatch"
	}
	return "unchecked"
}

const (
	sizeInet = iota
	sizeInet6
)

// SetType describes one revision of a set type known to the library.
// Everything but the kernel check state is immutable after registration.
type SetType struct {
	// Name is the canonical type name, e.g. "hash:ip". Together with
	// Revision it uniquely identifies the type in the registry.
	Name string

	// Aliases are alternate names accepted as synonyms of Name, kept
	// from the pre-"method:datatype" naming scheme.
	Aliases []string

	Family   Family
	Revision uint8

	// AddOpts lists the element attributes valid in add, delete and
	// test requests for this type.
	AddOpts []Opt

	kernelCheck KernelCheck
	maxSize     [2]int
}

// KernelCheck returns the memoized kernel compatibility state.
func (t *SetType) KernelCheck() KernelCheck {
	return t.kernelCheck
}

// MaxPayload returns the maximum element payload size for the given
// concrete family, computed at registration time.
func (t *SetType) MaxPayload(family Family) int {
	if family == FamilyInet6 {
		return t.maxSize[sizeInet6]
	}
	return t.maxSize[sizeInet]
}

// MatchTypeName reports whether text refers to the type by canonical name
// or by any of its aliases.
func MatchTypeName(text string, t *SetType) bool {
	if text == t.Name {
		return true
	}
	for _, a := range t.Aliases {
		if text == a {
			return true
		}
	}
	return false
}

// matches is the single predicate deciding whether a registered type can
// serve a request for the given name and family.
func (t *SetType) matches(text string, family Family) bool {
	return MatchTypeName(text, t) && t.Family.Matches(family)
}

// Registry holds every set type compiled into the library, grouped by name
// and ordered by descending revision within a group. Types are never
// removed; only their kernel check state changes.
type Registry struct {
	mu     sync.Mutex
	order  []string
	byName map[string][]*SetType
}

// NewRegistry returns an empty type registry. Most callers want Builtin()
// instead, which comes pre-populated with the compiled-in types.
func NewRegistry() *Registry {
	return &Registry{
		byName: make(map[string][]*SetType),
	}
}

// Register adds a set type to the registry, keeping the revisions of a
// name sorted from highest to lowest. Registering an already present
// (name, revision) pair fails with *DupRevisionError. An unsupported
// family is a programming error in the type definition and panics.
func (r *Registry) Register(t *SetType) error {
	switch t.Family {
	case FamilyUnspec, FamilyInet:
		t.maxSize[sizeInet] = maxPayload(t.AddOpts, FamilyInet)
	case FamilyInet6:
		t.maxSize[sizeInet6] = maxPayload(t.AddOpts, FamilyInet6)
	case FamilyInet46:
		t.maxSize[sizeInet] = maxPayload(t.AddOpts, FamilyInet)
		t.maxSize[sizeInet6] = maxPayload(t.AddOpts, FamilyInet6)
	default:
		panic("set: registering type " + t.Name + " with invalid family")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	revs, known := r.byName[t.Name]
	idx := len(revs)
	for i, cur := range revs {
		if cur.Revision == t.Revision {
			return &DupRevisionError{Name: t.Name, Revision: t.Revision}
		}
		if cur.Revision < t.Revision {
			idx = i
			break
		}
	}
	revs = append(revs, nil)
	copy(revs[idx+1:], revs[idx:])
	revs[idx] = t
	r.byName[t.Name] = revs
	if !known {
		r.order = append(r.order, t.Name)
	}
	return nil
}

// ResolveAlias returns the canonical name of the first registered type, at
// any revision, whose name or aliases match text.
func (r *Registry) ResolveAlias(text string) (string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, name := range r.order {
		for _, t := range r.byName[name] {
			if MatchTypeName(text, t) {
				return t.Name, true
			}
		}
	}
	return "", false
}

// Types returns every registered type, in registration order of names and
// descending revision order within a name. The returned slice is owned by
// the caller; the descriptors are shared.
func (r *Registry) Types() []*SetType {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.all()
}

// all is Types without locking, for use by the resolver while it already
// holds the registry lock.
func (r *Registry) all() []*SetType {
	out := make([]*SetType, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, r.byName[name]...)
	}
	return out
}
