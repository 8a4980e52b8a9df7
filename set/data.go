package set

// Opt identifies an element attribute a set type may carry in add, delete
// and test requests. The list mirrors the kernel's CADT attributes; only
// the ones declared by a compiled-in type are ever used.
type Opt int

const (
	OptIP Opt = iota + 1
	OptIPTo
	OptCIDR
	OptPort
	OptPortTo
	OptProto
	OptTimeout
	OptEther
	OptName
	OptNameRef
	OptIP2
	OptCIDR2
	OptIface
	OptMark
)

const (
	ifaceNameLen = 16 // IFNAMSIZ
	etherAddrLen = 6
)

// optSize returns the wire payload size of an option for the given
// concrete family. Address options are the only family-dependent ones.
func optSize(o Opt, family Family) int {
	switch o {
	case OptIP, OptIPTo, OptIP2:
		if family == FamilyInet6 {
			return 16
		}
		return 4
	case OptCIDR, OptCIDR2, OptProto:
		return 1
	case OptPort, OptPortTo:
		return 2
	case OptTimeout, OptMark:
		return 4
	case OptEther:
		return etherAddrLen
	case OptName, OptNameRef:
		return MaxNameLen
	case OptIface:
		return ifaceNameLen
	}
	return 0
}

// maxPayload sums the sizes of every add/del/test option of a type for a
// concrete family. The result bounds the element payload the library will
// ever build for that type, and is computed once at registration.
func maxPayload(opts []Opt, family Family) int {
	max := 0
	for _, o := range opts {
		max += optSize(o, family)
	}
	return max
}
