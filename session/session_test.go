package session

import (
	"testing"

	"github.com/evilsocket/libipset/netfilter"
	"github.com/evilsocket/libipset/set"
	"github.com/stretchr/testify/require"
)

type fakeTransport struct {
	typeCalls   int
	headerCalls int

	rng     set.TypeRange
	hdr     set.Header
	entries []netfilter.ListEntry

	created   []string
	destroyed []string
	flushed   []string
	renamed   [][2]string
	swapped   [][2]string
	closed    bool
}

func (f *fakeTransport) TypeRange(typename string, family set.Family) (set.TypeRange, error) {
	f.typeCalls++
	return f.rng, nil
}

func (f *fakeTransport) SetHeader(setname string) (set.Header, error) {
	f.headerCalls++
	return f.hdr, nil
}

func (f *fakeTransport) Protocol() uint8 { return 6 }

func (f *fakeTransport) Create(setname, typename string, revision uint8, family set.Family) error {
	f.created = append(f.created, setname)
	return nil
}

func (f *fakeTransport) Destroy(setname string) error {
	f.destroyed = append(f.destroyed, setname)
	return nil
}

func (f *fakeTransport) Flush(setname string) error {
	f.flushed = append(f.flushed, setname)
	return nil
}

func (f *fakeTransport) Rename(from, to string) error {
	f.renamed = append(f.renamed, [2]string{from, to})
	return nil
}

func (f *fakeTransport) Swap(from, to string) error {
	f.swapped = append(f.swapped, [2]string{from, to})
	return nil
}

func (f *fakeTransport) List() ([]netfilter.ListEntry, error) {
	return f.entries, nil
}

func (f *fakeTransport) Close() error {
	f.closed = true
	return nil
}

func TestSessionCreateCachesSet(t *testing.T) {
	conn := &fakeTransport{rng: set.TypeRange{Max: 2}}
	s := New(conn)

	typ, err := s.Create("clients", "hash:ip", set.FamilyUnspec)
	require.NoError(t, err)
	require.Equal(t, "hash:ip", typ.Name)
	require.Equal(t, []string{"clients"}, conn.created)

	cached, family, ok := s.Cache().Lookup("clients")
	require.True(t, ok)
	require.Equal(t, typ, cached)
	// hash:ip is dual stack, unspec defaults to inet
	require.Equal(t, set.FamilyInet, family)

	// element commands on the created set use the cache, never the kernel
	req := &set.Request{SetName: "clients"}
	_, err = s.ResolveType(set.CmdAdd, req)
	require.NoError(t, err)
	require.Equal(t, 0, conn.headerCalls)
}

func TestSessionDestroy(t *testing.T) {
	conn := &fakeTransport{rng: set.TypeRange{Max: 2}}
	s := New(conn)

	_, err := s.Create("clients", "hash:ip", set.FamilyInet)
	require.NoError(t, err)

	require.NoError(t, s.Destroy("clients"))
	require.Equal(t, []string{"clients"}, conn.destroyed)
	_, _, ok := s.Cache().Lookup("clients")
	require.False(t, ok)
}

func TestSessionDestroyAll(t *testing.T) {
	conn := &fakeTransport{rng: set.TypeRange{Max: 2}}
	s := New(conn)

	_, err := s.Create("a", "hash:ip", set.FamilyInet)
	require.NoError(t, err)
	_, err = s.Create("b", "hash:ip", set.FamilyInet6)
	require.NoError(t, err)

	require.NoError(t, s.Destroy(""))
	require.Empty(t, s.Cache().Sets())
}

func TestSessionRenameSwap(t *testing.T) {
	conn := &fakeTransport{rng: set.TypeRange{Max: 2}}
	s := New(conn)

	_, err := s.Create("a", "hash:ip", set.FamilyInet)
	require.NoError(t, err)
	_, err = s.Create("b", "hash:ip", set.FamilyInet6)
	require.NoError(t, err)

	require.NoError(t, s.Rename("a", "c"))
	require.Equal(t, [2]string{"a", "c"}, conn.renamed[0])
	_, family, ok := s.Cache().Lookup("c")
	require.True(t, ok)
	require.Equal(t, set.FamilyInet, family)

	require.NoError(t, s.Swap("c", "b"))
	_, family, ok = s.Cache().Lookup("b")
	require.True(t, ok)
	require.Equal(t, set.FamilyInet, family)
	_, family, ok = s.Cache().Lookup("c")
	require.True(t, ok)
	require.Equal(t, set.FamilyInet6, family)
}

func TestSessionListVerifiesAndCaches(t *testing.T) {
	conn := &fakeTransport{
		entries: []netfilter.ListEntry{
			{Name: "clients", TypeName: "hash:ip", Family: set.FamilyInet, Revision: 2},
			{Name: "ports", TypeName: "bitmap:port", Family: set.FamilyUnspec, Revision: 0},
		},
	}
	s := New(conn)

	sets, err := s.List()
	require.NoError(t, err)
	require.Len(t, sets, 2)
	require.Equal(t, "clients", sets[0].Name)
	require.Equal(t, "hash:ip", sets[0].Type.Name)

	// listing populated the cache: add/del/test need no kernel query now
	_, err = s.ResolveType(set.CmdTest, &set.Request{SetName: "ports"})
	require.NoError(t, err)
	require.Equal(t, 0, conn.headerCalls)
}

func TestSessionListIncompatibleType(t *testing.T) {
	conn := &fakeTransport{
		entries: []netfilter.ListEntry{
			{Name: "future", TypeName: "hash:ip", Family: set.FamilyInet, Revision: 200},
		},
	}
	s := New(conn)

	_, err := s.List()
	var incompat *set.IncompatibleError
	require.ErrorAs(t, err, &incompat)
	require.EqualValues(t, 200, incompat.Revision)
}

func TestSessionClose(t *testing.T) {
	conn := &fakeTransport{rng: set.TypeRange{Max: 2}}
	s := New(conn)
	require.NotEmpty(t, s.ID)

	_, err := s.Create("clients", "hash:ip", set.FamilyInet)
	require.NoError(t, err)

	require.NoError(t, s.Close())
	require.True(t, conn.closed)
	require.Empty(t, s.Cache().Sets())
}
