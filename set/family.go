package set

import (
	"golang.org/x/sys/unix"
)

// Family is the address family scope of a set type. The kernel uses the
// socket AF_* values on the wire, plus a private marker for types that
// support both IPv4 and IPv6 under a single name.
type Family uint8

const (
	FamilyUnspec Family = unix.AF_UNSPEC
	FamilyInet   Family = unix.AF_INET
	FamilyInet6  Family = unix.AF_INET6

	// FamilyInet46 marks a dual stack set type. It never appears on the
	// wire; a concrete set is always created as inet or inet6.
	FamilyInet46 Family = 255
)

// Matches reports whether a type registered with family f can serve a
// request for family req. Every resolution path must decide family
// compatibility through this predicate.
func (f Family) Matches(req Family) bool {
	return req == FamilyUnspec || f == req || f == FamilyInet46
}

// Resolve maps the type family to the concrete family a set will be
// created with when the caller left the family unspecified. Dual stack
// types default to inet.
func (f Family) Resolve() Family {
	if f == FamilyInet46 {
		return FamilyInet
	}
	return f
}

func (f Family) String() string {
	switch f {
	case FamilyInet:
		return "inet"
	case FamilyInet6:
		return "inet6"
	case FamilyInet46:
		return "inet46"
	}
	return "unspec"
}

// ParseFamily returns the Family named by s, as accepted on the ipset
// command line ("inet", "ipv4", "inet6", "ipv6", "").
func ParseFamily(s string) (Family, bool) {
	switch s {
	case "inet", "ipv4":
		return FamilyInet, true
	case "inet6", "ipv6":
		return FamilyInet6, true
	case "", "unspec", "any":
		return FamilyUnspec, true
	}
	return FamilyUnspec, false
}
