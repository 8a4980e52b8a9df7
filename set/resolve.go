package set

import (
	"fmt"
)

// Cmd identifies the command a type resolution is performed for. Only
// create and the element commands (add, del, test) need a resolved type.
type Cmd uint8

const (
	CmdNone Cmd = iota
	CmdCreate
	CmdAdd
	CmdDel
	CmdTest
)

// TypeRange is the kernel's answer to a type query: the revision range it
// supports for a typename and family. A nil Min means the kernel only
// supports Max.
type TypeRange struct {
	Max uint8
	Min *uint8
}

func (r TypeRange) String() string {
	if r.Min == nil {
		return fmt.Sprintf("[-,%d]", r.Max)
	}
	return fmt.Sprintf("[%d,%d]", *r.Min, r.Max)
}

// Header is the kernel's answer to a set header query: the exact type a
// concrete set was created with.
type Header struct {
	TypeName string
	Family   Family
	Revision uint8
}

// Querier is the kernel round trip the negotiation depends on. It is a
// synchronous call that may fail or time out per the transport's own
// contract; a failure aborts resolution without touching registry or
// cache state.
type Querier interface {
	TypeRange(typename string, family Family) (TypeRange, error)
	SetHeader(setname string) (Header, error)
}

// Request is the mutable per-command state the resolver reads from and
// writes back into: the requested names and family going in, the resolved
// family and type coming out.
type Request struct {
	SetName  string
	TypeName string
	Family   Family

	// Revision is only meaningful for received-type verification, where
	// the kernel already told us the exact revision of a set.
	Revision uint8

	// Type is the resolved type descriptor, set on success.
	Type *SetType
}

// Resolver decides which registered type serves a command, negotiating
// revisions with the kernel and memoizing the outcome on the registry so
// later commands for the same type skip the round trip.
type Resolver struct {
	registry *Registry
	cache    *Cache
	kernel   Querier
}

// NewResolver returns a resolver over the given registry, set cache and
// kernel query channel.
func NewResolver(registry *Registry, cache *Cache, kernel Querier) *Resolver {
	return &Resolver{
		registry: registry,
		cache:    cache,
		kernel:   kernel,
	}
}

// ForCommand resolves the type for a command, per the command's own rules:
// create negotiates a revision range for the requested typename, while the
// element commands resolve the concrete type of an existing set.
func (r *Resolver) ForCommand(cmd Cmd, req *Request) (*SetType, error) {
	switch cmd {
	case CmdCreate:
		return r.createType(req)
	case CmdAdd, CmdDel, CmdTest:
		return r.adtType(req)
	}
	return nil, fmt.Errorf("set: command %d does not resolve a type", cmd)
}

// createType negotiates the type for a set creation. It picks the highest
// registered revision matching the requested typename and family, asks the
// kernel for its supported range unless a previous negotiation already
// succeeded, and fails with a descriptive error when the ranges do not
// overlap.
//
// Once any overlap is found the library's highest revision is bound, even
// if it exceeds the kernel's advertised maximum. This mirrors the original
// library behavior; the kernel is expected to serve older revisions of a
// type it advertises.
func (r *Resolver) createType(req *Request) (*SetType, error) {
	r.registry.mu.Lock()
	var match *SetType
	var tmin, tmax uint8
	for _, t := range r.registry.all() {
		// Skip revisions already known to be unsupported by the kernel.
		if t.kernelCheck == KernelMismatch {
			continue
		}
		if !t.matches(req.TypeName, req.Family) {
			continue
		}
		if match == nil {
			match = t
			tmax = t.Revision
		} else if t.Family == match.Family {
			tmin = t.Revision
		}
	}
	var checked KernelCheck
	if match != nil {
		checked = match.kernelCheck
	}
	r.registry.mu.Unlock()

	if match == nil {
		return nil, &UnknownTypeError{TypeName: req.TypeName}
	}

	// Family was left unspecified: take it from the matching type.
	if req.Family == FamilyUnspec && match.Family != FamilyUnspec {
		req.Family = match.Family.Resolve()
	}

	if checked == KernelOK {
		req.Type = match
		return match, nil
	}

	// Exactly one kernel round trip per unchecked (typename, family).
	kr, err := r.kernel.TypeRange(req.TypeName, req.Family)
	if err != nil {
		return nil, err
	}
	kmin := kr.Max
	if kr.Min != nil {
		kmin = *kr.Min
	}

	if maxRev(tmin, kmin) > minRev(tmax, kr.Max) {
		if kmin > tmax {
			return nil, &VersionMismatchError{
				Direction:   UpgradeLibrary,
				TypeName:    req.TypeName,
				Family:      req.Family,
				LibBound:    tmax,
				KernelBound: kmin,
			}
		}
		return nil, &VersionMismatchError{
			Direction:   UpgradeKernel,
			TypeName:    req.TypeName,
			Family:      req.Family,
			LibBound:    tmin,
			KernelBound: kr.Max,
		}
	}

	r.registry.mu.Lock()
	match.kernelCheck = KernelOK
	r.registry.mu.Unlock()

	req.Type = match
	return match, nil
}

// adtType resolves the type of an existing set for add, delete and test.
// The cache answers without a kernel round trip; otherwise the kernel is
// asked for the set's header and the answer must match a registered type
// exactly: canonical name, compatible family, identical revision.
func (r *Resolver) adtType(req *Request) (*SetType, error) {
	if t, family, ok := r.cache.Lookup(req.SetName); ok {
		if req.Family == FamilyUnspec {
			req.Family = family
		}
		req.Type = t
		return t, nil
	}

	hdr, err := r.kernel.SetHeader(req.SetName)
	if err != nil {
		return nil, err
	}

	r.registry.mu.Lock()
	var match *SetType
	for _, t := range r.registry.all() {
		if t.kernelCheck == KernelMismatch {
			continue
		}
		// The kernel reports the canonical name, so no alias matching.
		if t.Name == hdr.TypeName && t.Family.Matches(hdr.Family) && t.Revision == hdr.Revision {
			t.kernelCheck = KernelOK
			match = t
			break
		}
	}
	r.registry.mu.Unlock()

	if match == nil {
		return nil, &IncompatibleError{
			SetName:  req.SetName,
			TypeName: hdr.TypeName,
			Family:   hdr.Family,
			Revision: hdr.Revision,
		}
	}

	req.Family = hdr.Family
	if req.Family == FamilyUnspec && match.Family != FamilyUnspec {
		req.Family = match.Family.Resolve()
	}
	req.Type = match
	return match, nil
}

// CheckReceived verifies a type the kernel announced unprompted, e.g.
// while enumerating sets. The typename is textual, so aliases are
// accepted, but family and revision must match a registered type exactly.
func (r *Resolver) CheckReceived(req *Request) (*SetType, error) {
	r.registry.mu.Lock()
	var match *SetType
	for _, t := range r.registry.all() {
		if t.kernelCheck == KernelMismatch {
			continue
		}
		if t.matches(req.TypeName, req.Family) && t.Revision == req.Revision {
			match = t
			break
		}
	}
	r.registry.mu.Unlock()

	if match == nil {
		return nil, &IncompatibleError{
			TypeName: req.TypeName,
			Family:   req.Family,
			Revision: req.Revision,
		}
	}

	if req.Family == FamilyUnspec && match.Family != FamilyUnspec {
		req.Family = match.Family.Resolve()
	}
	req.Type = match
	return match, nil
}

func maxRev(a, b uint8) uint8 {
	if a > b {
		return a
	}
	return b
}

func minRev(a, b uint8) uint8 {
	if a < b {
		return a
	}
	return b
}
