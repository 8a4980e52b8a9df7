package netfilter

import (
	"github.com/evilsocket/libipset/set"
	"github.com/pkg/errors"
	"github.com/vishvananda/netlink/nl"
	"golang.org/x/sys/unix"
)

// ListEntry is one set reported by a list dump.
type ListEntry struct {
	Name     string
	TypeName string
	Family   set.Family
	Revision uint8
}

// Create creates a set in the kernel with an already negotiated type. The
// concrete family travels in the nfnetlink header; typename and revision
// as attributes.
func (c *Conn) Create(setname, typename string, revision uint8, family set.Family) error {
	req := c.newRequest(nl.IPSET_CMD_CREATE, family, unix.NLM_F_CREATE|unix.NLM_F_ACK)
	req.AddData(nl.NewRtAttr(nl.IPSET_ATTR_SETNAME, nl.ZeroTerminated(setname)))
	req.AddData(nl.NewRtAttr(nl.IPSET_ATTR_TYPENAME, nl.ZeroTerminated(typename)))
	req.AddData(nl.NewRtAttr(nl.IPSET_ATTR_REVISION, nl.Uint8Attr(revision)))

	if _, err := c.execute(req); err != nil {
		return errors.Wrapf(err, "creating set %s", setname)
	}
	return nil
}

// Destroy removes a set from the kernel. An empty name destroys every set
// that is not in use.
func (c *Conn) Destroy(setname string) error {
	req := c.newRequest(nl.IPSET_CMD_DESTROY, set.FamilyUnspec, unix.NLM_F_ACK)
	if setname != "" {
		req.AddData(nl.NewRtAttr(nl.IPSET_ATTR_SETNAME, nl.ZeroTerminated(setname)))
	}
	if _, err := c.execute(req); err != nil {
		if setname == "" {
			return errors.Wrap(err, "destroying all sets")
		}
		return errors.Wrapf(err, "destroying set %s", setname)
	}
	return nil
}

// Flush empties a set without destroying it. An empty name flushes every
// set.
func (c *Conn) Flush(setname string) error {
	req := c.newRequest(nl.IPSET_CMD_FLUSH, set.FamilyUnspec, unix.NLM_F_ACK)
	if setname != "" {
		req.AddData(nl.NewRtAttr(nl.IPSET_ATTR_SETNAME, nl.ZeroTerminated(setname)))
	}
	if _, err := c.execute(req); err != nil {
		return errors.Wrapf(err, "flushing set %s", setname)
	}
	return nil
}

// Rename gives the set from the name to. The kernel rejects the rename if
// a set named to already exists or the set is in use.
func (c *Conn) Rename(from, to string) error {
	return c.rename(nl.IPSET_CMD_RENAME, from, to)
}

// Swap exchanges the contents of two sets of compatible types.
func (c *Conn) Swap(from, to string) error {
	return c.rename(nl.IPSET_CMD_SWAP, from, to)
}

func (c *Conn) rename(cmd int, from, to string) error {
	req := c.newRequest(cmd, set.FamilyUnspec, unix.NLM_F_ACK)
	req.AddData(nl.NewRtAttr(nl.IPSET_ATTR_SETNAME, nl.ZeroTerminated(from)))
	req.AddData(nl.NewRtAttr(attrSetname2, nl.ZeroTerminated(to)))

	if _, err := c.execute(req); err != nil {
		return errors.Wrapf(err, "renaming/swapping %s and %s", from, to)
	}
	return nil
}

// List dumps the sets present in the kernel, name and type header only.
func (c *Conn) List() ([]ListEntry, error) {
	req := c.newRequest(nl.IPSET_CMD_LIST, set.FamilyUnspec, unix.NLM_F_DUMP)

	msgs, err := c.execute(req)
	if err != nil {
		return nil, errors.Wrap(err, "listing sets")
	}

	out := make([]ListEntry, 0, len(msgs))
	for _, msg := range msgs {
		attrs, err := parseMsgAttrs(msg)
		if err != nil {
			return nil, err
		}
		e := ListEntry{}
		var ok bool
		if e.Name, ok = attrs.str(nl.IPSET_ATTR_SETNAME); !ok {
			// Some kernels close the dump with a nameless message.
			continue
		}
		if e.TypeName, ok = attrs.str(nl.IPSET_ATTR_TYPENAME); !ok {
			return nil, errors.Errorf("kernel listed set %s without a typename", e.Name)
		}
		if rev, ok := attrs.uint8(nl.IPSET_ATTR_REVISION); ok {
			e.Revision = rev
		}
		if fam, ok := attrs.uint8(nl.IPSET_ATTR_FAMILY); ok {
			e.Family = set.Family(fam)
		}
		out = append(out, e)
	}
	return out, nil
}
