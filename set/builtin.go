package set

// Compiled-in set types, with the aliases of the pre-"method:datatype"
// naming scheme and the revisions the library implements. A revision in
// this list may still be unknown to the running kernel; that is what the
// negotiation in resolve.go is for.
var builtinTypes = []*SetType{
	{
		Name:     "bitmap:ip",
		Aliases:  []string{"ipmap"},
		Family:   FamilyInet,
		Revision: 0,
		AddOpts:  []Opt{OptIP, OptIPTo, OptTimeout},
	},
	{
		Name:     "bitmap:ip,mac",
		Aliases:  []string{"macipmap"},
		Family:   FamilyInet,
		Revision: 0,
		AddOpts:  []Opt{OptIP, OptEther, OptTimeout},
	},
	{
		Name:     "bitmap:port",
		Aliases:  []string{"portmap"},
		Family:   FamilyUnspec,
		Revision: 0,
		AddOpts:  []Opt{OptPort, OptPortTo, OptTimeout},
	},
	{
		Name:     "hash:ip",
		Aliases:  []string{"iphash"},
		Family:   FamilyInet46,
		Revision: 0,
		AddOpts:  []Opt{OptIP, OptTimeout},
	},
	{
		Name:     "hash:ip",
		Aliases:  []string{"iphash"},
		Family:   FamilyInet46,
		Revision: 1,
		AddOpts:  []Opt{OptIP, OptTimeout},
	},
	{
		Name:     "hash:ip",
		Aliases:  []string{"iphash"},
		Family:   FamilyInet46,
		Revision: 2,
		AddOpts:  []Opt{OptIP, OptTimeout},
	},
	{
		Name:     "hash:net",
		Aliases:  []string{"nethash"},
		Family:   FamilyInet46,
		Revision: 0,
		AddOpts:  []Opt{OptIP, OptCIDR, OptTimeout},
	},
	{
		Name:     "hash:net",
		Aliases:  []string{"nethash"},
		Family:   FamilyInet46,
		Revision: 1,
		AddOpts:  []Opt{OptIP, OptCIDR, OptTimeout},
	},
	{
		Name:     "hash:ip,port",
		Aliases:  []string{"ipporthash"},
		Family:   FamilyInet46,
		Revision: 1,
		AddOpts:  []Opt{OptIP, OptPort, OptPortTo, OptProto, OptTimeout},
	},
	{
		Name:     "hash:ip,port,ip",
		Aliases:  []string{"ipportiphash"},
		Family:   FamilyInet46,
		Revision: 1,
		AddOpts:  []Opt{OptIP, OptPort, OptProto, OptIP2, OptTimeout},
	},
	{
		Name:     "hash:ip,port,net",
		Aliases:  []string{"ipportnethash"},
		Family:   FamilyInet46,
		Revision: 1,
		AddOpts:  []Opt{OptIP, OptPort, OptProto, OptIP2, OptCIDR2, OptTimeout},
	},
	{
		Name:     "hash:net,port",
		Aliases:  nil,
		Family:   FamilyInet46,
		Revision: 1,
		AddOpts:  []Opt{OptIP, OptCIDR, OptPort, OptProto, OptTimeout},
	},
	{
		Name:     "hash:net,iface",
		Aliases:  nil,
		Family:   FamilyInet46,
		Revision: 0,
		AddOpts:  []Opt{OptIP, OptCIDR, OptIface, OptTimeout},
	},
	{
		Name:     "list:set",
		Aliases:  []string{"setlist"},
		Family:   FamilyUnspec,
		Revision: 0,
		AddOpts:  []Opt{OptName, OptNameRef, OptTimeout},
	},
}

// Builtin returns a new registry pre-populated with the compiled-in set
// types. Each call returns an independent registry: kernel check state is
// per registry, so two sessions against different kernels do not share
// negotiation outcomes.
func Builtin() *Registry {
	r := NewRegistry()
	for _, t := range builtinTypes {
		// The static table has distinct (name, revision) pairs, so a
		// failure here is a bug in the table itself.
		cp := *t
		if err := r.Register(&cp); err != nil {
			panic("set: builtin type table is broken: " + err.Error())
		}
	}
	return r
}
