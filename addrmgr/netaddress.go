// Copyright (c) 2026 The peerdir developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package addrmgr

import (
	"bytes"
	"fmt"
	"net"
	"strconv"
	"time"

	"github.com/decred/dcrd/wire"
)

// addrKey is the identity of a network address.  No two addresses known to
// an address manager share the same key.
type addrKey struct {
	ip   [16]byte
	port uint16
}

// less orders keys by ip and then by port.
func (k addrKey) less(other addrKey) bool {
	if c := bytes.Compare(k.ip[:], other.ip[:]); c != 0 {
		return c < 0
	}
	return k.port < other.port
}

// NetAddress describes a remote endpoint on the network.
//
// The ip, port, last seen time and penalty of an address determine where it
// is stored by the address manager, so they may only be modified through the
// address manager once the address has been handed to it.
type NetAddress struct {
	ip       [16]byte
	port     uint16
	addrType NetAddressType

	// Services represents the service flags advertised by the address.
	Services wire.ServiceFlag

	lastSeen time.Time
	penalty  time.Duration

	// bucket is only meaningful for the layout that computed it.
	bucket    uint32
	bucketSet bool
	layout    *bucketLayout
}

// toIP16 converts a net.IP into its 16 byte form.  IPv4 addresses are mapped
// into ::ffff:0:0/96.  Malformed addresses yield the all zero address.
func toIP16(netIP net.IP) [16]byte {
	var ip [16]byte
	if ip16 := netIP.To16(); ip16 != nil {
		copy(ip[:], ip16)
	}
	return ip
}

// NewNetAddress returns a network address for the given ip and port.  The
// last seen time is truncated to one second precision.
func NewNetAddress(netIP net.IP, port uint16, services wire.ServiceFlag, lastSeen time.Time) *NetAddress {
	return NewNetAddressFromBytes(toIP16(netIP), port, services, lastSeen)
}

// NewNetAddressFromBytes returns a network address for the given 16 byte ip
// and port.
func NewNetAddressFromBytes(ip [16]byte, port uint16, services wire.ServiceFlag, lastSeen time.Time) *NetAddress {
	return &NetAddress{
		ip:       ip,
		port:     port,
		addrType: Classify(ip),
		Services: services,
		lastSeen: time.Unix(lastSeen.Unix(), 0),
	}
}

// NewNetAddressWithPenalty returns a network address that already carries
// the given penalty.  It is used to restore addresses from persistent
// storage.
func NewNetAddressWithPenalty(ip [16]byte, port uint16, services wire.ServiceFlag, lastSeen time.Time, penalty time.Duration) *NetAddress {
	na := NewNetAddressFromBytes(ip, port, services, lastSeen)
	if penalty > 0 {
		na.penalty = penalty
	}
	return na
}

// NewNetAddressFromWire converts a wire protocol address.
func NewNetAddressFromWire(wna *wire.NetAddress) *NetAddress {
	return NewNetAddress(wna.IP, wna.Port, wna.Services, wna.Timestamp)
}

// ToWire converts the address to its wire protocol form.
func (na *NetAddress) ToWire() *wire.NetAddress {
	return wire.NewNetAddressTimestamp(na.lastSeen, na.Services, na.IP(),
		na.port)
}

func (na *NetAddress) key() addrKey {
	return addrKey{ip: na.ip, port: na.port}
}

// IP returns a copy of the address' ip.  IPv4 addresses are returned in their
// 4 byte form.
func (na *NetAddress) IP() net.IP {
	netIP := make(net.IP, 16)
	copy(netIP, na.ip[:])
	if ip4 := netIP.To4(); ip4 != nil {
		return ip4
	}
	return netIP
}

// IPBytes returns the 16 byte form of the address' ip.
func (na *NetAddress) IPBytes() [16]byte {
	return na.ip
}

// Port returns the port of the address.
func (na *NetAddress) Port() uint16 {
	return na.port
}

// Type returns the classification of the address.
func (na *NetAddress) Type() NetAddressType {
	return na.addrType
}

// IsRoutable returns whether the address is publicly reachable.
func (na *NetAddress) IsRoutable() bool {
	return na.addrType.IsRoutable()
}

// LastSeen returns the last time the address was confirmed to be reachable.
func (na *NetAddress) LastSeen() time.Time {
	return na.lastSeen
}

// Penalty returns the demerit accumulated by the address.
func (na *NetAddress) Penalty() time.Duration {
	return na.penalty
}

// Score returns the ranking value of the address in seconds.  It is the last
// seen time less the accumulated penalty.
func (na *NetAddress) Score() int64 {
	return na.lastSeen.Unix() - int64(na.penalty/time.Second)
}

// Bucket returns the bucket the address has been assigned to, if any.
func (na *NetAddress) Bucket() (uint32, bool) {
	return na.bucket, na.bucketSet
}

// SetIP changes the ip of the address and reclassifies it.  The ip of an
// address may not change once it has been assigned a bucket.
func (na *NetAddress) SetIP(netIP net.IP) error {
	if na.bucketSet {
		str := fmt.Sprintf("address %s is already assigned to bucket %d",
			na, na.bucket)
		return makeError(ErrAddressManaged, str)
	}
	na.ip = toIP16(netIP)
	na.addrType = Classify(na.ip)
	return nil
}

// SetPort changes the port of the address.  Like the ip, the port may not
// change once the address has been assigned a bucket.
func (na *NetAddress) SetPort(port uint16) error {
	if na.bucketSet {
		str := fmt.Sprintf("address %s is already assigned to bucket %d",
			na, na.bucket)
		return makeError(ErrAddressManaged, str)
	}
	na.port = port
	return nil
}

// AddService adds the provided service to the set of services that the
// network address supports.
func (na *NetAddress) AddService(service wire.ServiceFlag) {
	na.Services |= service
}

// Key returns a string that uniquely represents the address including its
// port.
func (na *NetAddress) Key() string {
	return net.JoinHostPort(na.IP().String(),
		strconv.FormatUint(uint64(na.port), 10))
}

// String returns a human-readable string for the network address.  This is
// equivalent to calling Key.
func (na *NetAddress) String() string {
	return na.Key()
}

// scoreLess orders addresses by descending score so the best address of a
// bucket is its minimum.  Ties are broken by ip and port.
func scoreLess(a, b *NetAddress) bool {
	sa, sb := a.Score(), b.Score()
	if sa != sb {
		return sa > sb
	}
	return a.key().less(b.key())
}
