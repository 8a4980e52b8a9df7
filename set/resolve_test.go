package set

import (
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"
)

type fakeKernel struct {
	typeCalls   int
	headerCalls int

	rng    TypeRange
	rngErr error
	hdr    Header
	hdrErr error
}

func (f *fakeKernel) TypeRange(typename string, family Family) (TypeRange, error) {
	f.typeCalls++
	return f.rng, f.rngErr
}

func (f *fakeKernel) SetHeader(setname string) (Header, error) {
	f.headerCalls++
	return f.hdr, f.hdrErr
}

// inetRegistry builds the §"hash:ip at revisions 0,1,2 for inet" fixture
// used throughout the negotiation tests.
func inetRegistry(t *testing.T) *Registry {
	t.Helper()
	r := NewRegistry()
	for _, rev := range []uint8{0, 1, 2} {
		require.NoError(t, r.Register(hashIPAt(rev, FamilyInet)))
	}
	return r
}

func rev(v uint8) *uint8 { return &v }

func TestCreateNegotiation(t *testing.T) {
	reg := inetRegistry(t)
	kernel := &fakeKernel{rng: TypeRange{Max: 3, Min: rev(1)}}
	res := NewResolver(reg, NewCache(), kernel)

	req := &Request{TypeName: "hash:ip", Family: FamilyInet}
	typ, err := res.ForCommand(CmdCreate, req)
	require.NoError(t, err)

	// the library's highest revision is bound even though the kernel
	// advertises 3
	require.EqualValues(t, 2, typ.Revision)
	require.Equal(t, typ, req.Type)
	require.Equal(t, KernelOK, typ.KernelCheck())
	require.Equal(t, 1, kernel.typeCalls)
}

func TestCreateMemoization(t *testing.T) {
	reg := inetRegistry(t)
	kernel := &fakeKernel{rng: TypeRange{Max: 2}}
	res := NewResolver(reg, NewCache(), kernel)

	_, err := res.ForCommand(CmdCreate, &Request{TypeName: "hash:ip", Family: FamilyInet})
	require.NoError(t, err)
	require.Equal(t, 1, kernel.typeCalls)

	// second resolution for the same type and family: no kernel query
	_, err = res.ForCommand(CmdCreate, &Request{TypeName: "hash:ip", Family: FamilyInet})
	require.NoError(t, err)
	require.Equal(t, 1, kernel.typeCalls)
}

func TestCreateUnknownType(t *testing.T) {
	res := NewResolver(inetRegistry(t), NewCache(), &fakeKernel{})

	_, err := res.ForCommand(CmdCreate, &Request{TypeName: "hash:bogus"})
	var unknown *UnknownTypeError
	require.ErrorAs(t, err, &unknown)
	require.Equal(t, "hash:bogus", unknown.TypeName)
}

func TestCreateMismatchUpgradeLibrary(t *testing.T) {
	reg := inetRegistry(t)
	kernel := &fakeKernel{rng: TypeRange{Max: 5, Min: rev(3)}}
	res := NewResolver(reg, NewCache(), kernel)

	_, err := res.ForCommand(CmdCreate, &Request{TypeName: "hash:ip", Family: FamilyInet})
	var mismatch *VersionMismatchError
	require.ErrorAs(t, err, &mismatch)
	require.Equal(t, UpgradeLibrary, mismatch.Direction)
	require.EqualValues(t, 2, mismatch.LibBound)
	require.EqualValues(t, 3, mismatch.KernelBound)
	require.Contains(t, err.Error(), "hash:ip")
	require.Contains(t, err.Error(), "inet")
	require.Contains(t, err.Error(), "upgrade your ipset library")

	// a failed negotiation must not be memoized
	for _, typ := range reg.Types() {
		require.Equal(t, KernelUnchecked, typ.KernelCheck())
	}
}

func TestCreateMismatchUpgradeKernel(t *testing.T) {
	// registry with revisions {2,3} so the library floor is above the
	// kernel's maximum
	reg := NewRegistry()
	require.NoError(t, reg.Register(hashIPAt(2, FamilyInet)))
	require.NoError(t, reg.Register(hashIPAt(3, FamilyInet)))
	kernel := &fakeKernel{rng: TypeRange{Max: 1}}
	res := NewResolver(reg, NewCache(), kernel)

	_, err := res.ForCommand(CmdCreate, &Request{TypeName: "hash:ip", Family: FamilyInet})
	var mismatch *VersionMismatchError
	require.ErrorAs(t, err, &mismatch)
	require.Equal(t, UpgradeKernel, mismatch.Direction)
	require.EqualValues(t, 2, mismatch.LibBound)
	require.EqualValues(t, 1, mismatch.KernelBound)
	require.Contains(t, err.Error(), "upgrade your kernel")
}

func TestCreateOverlapAtKernelMaxOnly(t *testing.T) {
	// kernel only supports revision 0, no minimum reported: overlap is
	// found at 0 but the library still binds its own maximum, 2
	reg := inetRegistry(t)
	kernel := &fakeKernel{rng: TypeRange{Max: 0}}
	res := NewResolver(reg, NewCache(), kernel)

	req := &Request{TypeName: "hash:ip", Family: FamilyInet}
	typ, err := res.ForCommand(CmdCreate, req)
	require.NoError(t, err)
	require.EqualValues(t, 2, typ.Revision)
	require.Equal(t, KernelOK, typ.KernelCheck())
}

func TestCreateResolvesUnspecFamily(t *testing.T) {
	reg := NewRegistry()
	require.NoError(t, reg.Register(hashIPAt(0, FamilyInet46)))
	kernel := &fakeKernel{rng: TypeRange{Max: 0}}
	res := NewResolver(reg, NewCache(), kernel)

	req := &Request{TypeName: "iphash", Family: FamilyUnspec}
	_, err := res.ForCommand(CmdCreate, req)
	require.NoError(t, err)
	// dual stack types default to inet
	require.Equal(t, FamilyInet, req.Family)
}

func TestCreateTransportError(t *testing.T) {
	reg := inetRegistry(t)
	kernel := &fakeKernel{rngErr: errors.New("netlink: no buffer space")}
	res := NewResolver(reg, NewCache(), kernel)

	_, err := res.ForCommand(CmdCreate, &Request{TypeName: "hash:ip", Family: FamilyInet})
	require.EqualError(t, err, "netlink: no buffer space")
	for _, typ := range reg.Types() {
		require.Equal(t, KernelUnchecked, typ.KernelCheck())
	}
}

func TestAdtCacheHit(t *testing.T) {
	reg := inetRegistry(t)
	cache := NewCache()
	st := reg.Types()[0]
	require.NoError(t, cache.Add("clients", st, FamilyInet))

	kernel := &fakeKernel{}
	res := NewResolver(reg, cache, kernel)

	req := &Request{SetName: "clients"}
	typ, err := res.ForCommand(CmdAdd, req)
	require.NoError(t, err)
	require.Equal(t, st, typ)
	require.Equal(t, FamilyInet, req.Family)
	require.Equal(t, 0, kernel.headerCalls)
}

func TestAdtKernelResolution(t *testing.T) {
	reg := inetRegistry(t)
	kernel := &fakeKernel{hdr: Header{TypeName: "hash:ip", Family: FamilyInet, Revision: 1}}
	res := NewResolver(reg, NewCache(), kernel)

	req := &Request{SetName: "clients"}
	typ, err := res.ForCommand(CmdTest, req)
	require.NoError(t, err)
	require.EqualValues(t, 1, typ.Revision)
	require.Equal(t, KernelOK, typ.KernelCheck())
	require.Equal(t, 1, kernel.headerCalls)
	require.Equal(t, FamilyInet, req.Family)
}

func TestAdtExactMatchStrictness(t *testing.T) {
	reg := inetRegistry(t)

	t.Run("family", func(t *testing.T) {
		// the revision exists, but for inet, not inet6: never fall back
		// to a near match
		kernel := &fakeKernel{hdr: Header{TypeName: "hash:ip", Family: FamilyInet6, Revision: 1}}
		res := NewResolver(reg, NewCache(), kernel)

		_, err := res.ForCommand(CmdDel, &Request{SetName: "clients"})
		var incompat *IncompatibleError
		require.ErrorAs(t, err, &incompat)
		require.Equal(t, "clients", incompat.SetName)
		require.Equal(t, "hash:ip", incompat.TypeName)
		require.Equal(t, FamilyInet6, incompat.Family)
		require.EqualValues(t, 1, incompat.Revision)
	})

	t.Run("revision", func(t *testing.T) {
		kernel := &fakeKernel{hdr: Header{TypeName: "hash:ip", Family: FamilyInet, Revision: 9}}
		res := NewResolver(reg, NewCache(), kernel)

		_, err := res.ForCommand(CmdAdd, &Request{SetName: "clients"})
		var incompat *IncompatibleError
		require.ErrorAs(t, err, &incompat)
	})

	t.Run("alias", func(t *testing.T) {
		// the kernel reports canonical names; an alias must not match
		kernel := &fakeKernel{hdr: Header{TypeName: "iphash", Family: FamilyInet, Revision: 1}}
		res := NewResolver(reg, NewCache(), kernel)

		_, err := res.ForCommand(CmdAdd, &Request{SetName: "clients"})
		var incompat *IncompatibleError
		require.ErrorAs(t, err, &incompat)
	})
}

func TestCheckReceived(t *testing.T) {
	reg := inetRegistry(t)
	res := NewResolver(reg, NewCache(), &fakeKernel{})

	t.Run("alias-accepted", func(t *testing.T) {
		req := &Request{TypeName: "iphash", Family: FamilyInet, Revision: 2}
		typ, err := res.CheckReceived(req)
		require.NoError(t, err)
		require.EqualValues(t, 2, typ.Revision)
		require.Equal(t, typ, req.Type)
	})

	t.Run("revision-strict", func(t *testing.T) {
		req := &Request{TypeName: "hash:ip", Family: FamilyInet, Revision: 7}
		_, err := res.CheckReceived(req)
		var incompat *IncompatibleError
		require.ErrorAs(t, err, &incompat)
		require.Empty(t, incompat.SetName)
		require.Contains(t, err.Error(), "not supported by userspace")
	})
}

func TestSkipMismatchedRevisions(t *testing.T) {
	reg := inetRegistry(t)
	// flag revision 2 as known-bad, as a previous negotiation would
	for _, typ := range reg.Types() {
		if typ.Revision == 2 {
			typ.kernelCheck = KernelMismatch
		}
	}
	kernel := &fakeKernel{rng: TypeRange{Max: 1}}
	res := NewResolver(reg, NewCache(), kernel)

	typ, err := res.ForCommand(CmdCreate, &Request{TypeName: "hash:ip", Family: FamilyInet})
	require.NoError(t, err)
	require.EqualValues(t, 1, typ.Revision)
}
