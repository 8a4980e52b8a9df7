// Package netfilter talks to the kernel set subsystem over
// NETLINK_NETFILTER. It carries the type negotiation queries the set
// package depends on, and the name-level commands (create, destroy,
// flush, rename, swap, list). Element payload encoding is the caller's
// business, not ours.
package netfilter

import (
	"fmt"
	"runtime"
	"syscall"

	"github.com/evilsocket/libipset/log"
	"github.com/evilsocket/libipset/set"
	"github.com/pkg/errors"
	"github.com/vishvananda/netlink/nl"
	"github.com/vishvananda/netns"
	"golang.org/x/sys/unix"
)

const (
	// protocolVersion is the netlink protocol revision this library
	// implements. The kernel answers with its own; we talk the lower of
	// the two.
	protocolVersion = 6

	// nfgenmsgLen is the length of the nfgenmsg header preceding the
	// attributes in every nfnetlink message.
	nfgenmsgLen = 4

	// attrTypeMask strips the NLA_F_NESTED / NLA_F_NET_BYTEORDER bits
	// off an attribute type.
	attrTypeMask = 0x3fff

	// attrRevisionMin shares its id with IPSET_ATTR_PROTOCOL_MIN; which
	// one it means depends on the command.
	attrRevisionMin = 10

	// attrSetname2 shares its id with IPSET_ATTR_TYPENAME; rename and
	// swap use it for the second set name.
	attrSetname2 = nl.IPSET_ATTR_TYPENAME
)

// Conn is a connection to the kernel set subsystem, bound to a network
// namespace. Requests are synchronous, one round trip each; there is no
// retry logic here, a failed request is final.
type Conn struct {
	ns       netns.NsHandle
	protocol uint8
}

// Dial opens a connection in the current network namespace and negotiates
// the netlink protocol version with the kernel.
func Dial() (*Conn, error) {
	return dial(netns.None())
}

// DialAt is Dial in the network namespace of the given handle.
func DialAt(ns netns.NsHandle) (*Conn, error) {
	return dial(ns)
}

// DialAtPath is Dial in the network namespace mounted at path, e.g.
// /run/netns/blue.
func DialAtPath(path string) (*Conn, error) {
	ns, err := netns.GetFromPath(path)
	if err != nil {
		return nil, errors.Wrapf(err, "opening netns %s", path)
	}
	return dial(ns)
}

func dial(ns netns.NsHandle) (*Conn, error) {
	c := &Conn{
		ns:       ns,
		protocol: protocolVersion,
	}
	kproto, err := c.queryProtocol()
	if err != nil {
		return nil, err
	}
	if kproto < c.protocol {
		log.Debug("netfilter: kernel speaks set protocol %d, downgrading from %d", kproto, c.protocol)
		c.protocol = kproto
	}
	return c, nil
}

// Protocol returns the negotiated netlink protocol version.
func (c *Conn) Protocol() uint8 {
	return c.protocol
}

// Close releases the namespace handle. The netlink socket itself is per
// request and needs no teardown.
func (c *Conn) Close() error {
	if c.ns.IsOpen() {
		return c.ns.Close()
	}
	return nil
}

// newRequest builds an nfnetlink request for a set subsystem command,
// with the nfgenmsg header and the protocol attribute every command
// carries.
func (c *Conn) newRequest(cmd int, family set.Family, flags int) *nl.NetlinkRequest {
	req := nl.NewNetlinkRequest(cmd|(unix.NFNL_SUBSYS_IPSET<<8), flags)
	req.AddData(&nl.Nfgenmsg{
		NfgenFamily: uint8(family),
		Version:     nl.NFNETLINK_V0,
		ResId:       0,
	})
	req.AddData(nl.NewRtAttr(nl.IPSET_ATTR_PROTOCOL, nl.Uint8Attr(c.protocol)))
	return req
}

// execute sends the request, switching the calling thread into the
// connection's network namespace for the duration when one was given.
func (c *Conn) execute(req *nl.NetlinkRequest) ([][]byte, error) {
	if c.ns.IsOpen() {
		runtime.LockOSThread()
		defer runtime.UnlockOSThread()

		cur, err := netns.Get()
		if err != nil {
			return nil, errors.Wrap(err, "getting current netns")
		}
		defer cur.Close()
		if err := netns.Set(c.ns); err != nil {
			return nil, errors.Wrap(err, "entering netns")
		}
		defer netns.Set(cur)
	}

	msgs, err := req.Execute(unix.NETLINK_NETFILTER, 0)
	if err != nil {
		return nil, mapKernelError(err)
	}
	return msgs, nil
}

// queryProtocol asks the kernel which protocol revision it implements.
func (c *Conn) queryProtocol() (uint8, error) {
	req := c.newRequest(nl.IPSET_CMD_PROTOCOL, set.FamilyUnspec, 0)
	msgs, err := c.execute(req)
	if err != nil {
		return 0, errors.Wrap(err, "set protocol handshake")
	}
	attrs, err := parseAttrs(msgs)
	if err != nil {
		return 0, err
	}
	v, ok := attrs.uint8(nl.IPSET_ATTR_PROTOCOL)
	if !ok {
		return 0, errors.New("kernel answered the protocol handshake without a protocol")
	}
	return v, nil
}

// attrMap is a flat view of the attributes of one response message.
type attrMap map[int][]byte

func (m attrMap) uint8(typ int) (uint8, bool) {
	v, ok := m[typ]
	if !ok || len(v) < 1 {
		return 0, false
	}
	return v[0], true
}

func (m attrMap) str(typ int) (string, bool) {
	v, ok := m[typ]
	if !ok {
		return "", false
	}
	for i, b := range v {
		if b == 0 {
			return string(v[:i]), true
		}
	}
	return string(v), true
}

// parseAttrs flattens the top-level attributes of the first response
// message. Commands answered by the set subsystem put everything the
// negotiation needs at the top level.
func parseAttrs(msgs [][]byte) (attrMap, error) {
	if len(msgs) == 0 {
		return nil, errors.New("empty answer from kernel")
	}
	return parseMsgAttrs(msgs[0])
}

func parseMsgAttrs(msg []byte) (attrMap, error) {
	if len(msg) < nfgenmsgLen {
		return nil, errors.Errorf("truncated nfnetlink message (%d bytes)", len(msg))
	}
	attrs, err := nl.ParseRouteAttr(msg[nfgenmsgLen:])
	if err != nil {
		return nil, errors.Wrap(err, "parsing set attributes")
	}
	m := make(attrMap, len(attrs))
	for _, a := range attrs {
		m[int(a.Attr.Type)&attrTypeMask] = a.Value
	}
	return m, nil
}

// Kernel error space of the set subsystem; everything below is a plain
// errno.
const kernelErrBase = 4096

var kernelErrText = map[int]string{
	4097: "kernel and userspace netlink protocol mismatch",
	4098: "kernel does not support the set type",
	4099: "maximum number of sets reached in kernel",
	4100: "set is busy",
	4101: "second set name does not exist",
	4102: "sets have incompatible types",
	4103: "set name already exists in kernel",
	4104: "invalid network prefix",
	4105: "invalid netmask",
	4106: "protocol family not supported by the set type",
	4107: "set type does not support timeouts",
	4108: "set is referenced and cannot be destroyed",
	4109: "an IPv4 address is expected",
	4110: "an IPv6 address is expected",
}

// KernelError is a set subsystem specific error code returned in place of
// a plain errno.
type KernelError struct {
	Code int
}

func (e *KernelError) Error() string {
	if s, ok := kernelErrText[e.Code]; ok {
		return s
	}
	return fmt.Sprintf("kernel set subsystem error %d", e.Code)
}

func mapKernelError(err error) error {
	if errno, ok := err.(syscall.Errno); ok && int(errno) >= kernelErrBase {
		return &KernelError{Code: int(errno)}
	}
	return err
}
