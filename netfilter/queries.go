package netfilter

import (
	"github.com/evilsocket/libipset/log"
	"github.com/evilsocket/libipset/set"
	"github.com/pkg/errors"
	"github.com/vishvananda/netlink/nl"
)

// TypeRange asks the kernel for the revision range it supports for a
// typename and family. The kernel answers with its maximum revision and,
// on newer kernels, a minimum; an absent minimum means it only serves the
// maximum.
func (c *Conn) TypeRange(typename string, family set.Family) (set.TypeRange, error) {
	req := c.newRequest(nl.IPSET_CMD_TYPE, family, 0)
	req.AddData(nl.NewRtAttr(nl.IPSET_ATTR_TYPENAME, nl.ZeroTerminated(typename)))
	req.AddData(nl.NewRtAttr(nl.IPSET_ATTR_FAMILY, nl.Uint8Attr(uint8(family))))

	msgs, err := c.execute(req)
	if err != nil {
		return set.TypeRange{}, errors.Wrapf(err, "querying type %s family %s", typename, family)
	}
	attrs, err := parseAttrs(msgs)
	if err != nil {
		return set.TypeRange{}, err
	}

	max, ok := attrs.uint8(nl.IPSET_ATTR_REVISION)
	if !ok {
		return set.TypeRange{}, errors.Errorf("kernel answered type query for %s without a revision", typename)
	}
	tr := set.TypeRange{Max: max}
	if min, ok := attrs.uint8(attrRevisionMin); ok {
		tr.Min = &min
	}
	log.Debug("netfilter: kernel supports %s/%s revisions %s", typename, family, tr)
	return tr, nil
}

// SetHeader asks the kernel for the header of a concrete set: the
// typename, family and exact revision it was created with.
func (c *Conn) SetHeader(setname string) (set.Header, error) {
	req := c.newRequest(nl.IPSET_CMD_HEADER, set.FamilyUnspec, 0)
	req.AddData(nl.NewRtAttr(nl.IPSET_ATTR_SETNAME, nl.ZeroTerminated(setname)))

	msgs, err := c.execute(req)
	if err != nil {
		return set.Header{}, errors.Wrapf(err, "querying header of set %s", setname)
	}
	attrs, err := parseAttrs(msgs)
	if err != nil {
		return set.Header{}, err
	}

	hdr := set.Header{}
	var ok bool
	if hdr.TypeName, ok = attrs.str(nl.IPSET_ATTR_TYPENAME); !ok {
		return set.Header{}, errors.Errorf("kernel answered header query for %s without a typename", setname)
	}
	if hdr.Revision, ok = attrs.uint8(nl.IPSET_ATTR_REVISION); !ok {
		return set.Header{}, errors.Errorf("kernel answered header query for %s without a revision", setname)
	}
	if fam, ok := attrs.uint8(nl.IPSET_ATTR_FAMILY); ok {
		hdr.Family = set.Family(fam)
	}
	return hdr, nil
}
