// Copyright (c) 2026 The peerdir developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package addrmgr

import (
	"fmt"
	"net"
)

// NetAddressType is the classification of a 16 byte network address.  Every
// possible address maps to exactly one type.
type NetAddressType uint8

const (
	// InvalidAddress is an address that is reserved, private or otherwise
	// unusable on the public network.
	InvalidAddress NetAddressType = iota

	// LocalAddress is a loopback address.
	LocalAddress

	// IPv4Address is an IPv4 address in ::ffff:0:0/96 mapped form.
	IPv4Address

	// IPv6Address is a plain IPv6 address.
	IPv6Address

	// TorAddress is an OnionCat encoded Tor hidden service address.
	TorAddress

	// I2PAddress is a GarliCat encoded I2P address.
	I2PAddress

	// SITTAddress is an IPv4 translated address (::ffff:0:0:0/96).
	SITTAddress

	// RFC6052Address is an IPv4 embedded NAT64 address (64:ff9b::/96).
	RFC6052Address

	// TeredoAddress is a Teredo tunnel address (2001::/32).
	TeredoAddress

	// SixToFourAddress is a 6to4 address (2002::/16).
	SixToFourAddress

	// HENetAddress is a Hurricane Electric tunnel broker address
	// (2001:470::/32).
	HENetAddress
)

// Map of address types back to their constant names for pretty printing.
var addrTypeStrings = map[NetAddressType]string{
	InvalidAddress:   "invalid",
	LocalAddress:     "local",
	IPv4Address:      "ipv4",
	IPv6Address:      "ipv6",
	TorAddress:       "tor",
	I2PAddress:       "i2p",
	SITTAddress:      "sitt",
	RFC6052Address:   "rfc6052",
	TeredoAddress:    "teredo",
	SixToFourAddress: "6to4",
	HENetAddress:     "henet",
}

// String returns the NetAddressType in human-readable form.
func (t NetAddressType) String() string {
	if s, ok := addrTypeStrings[t]; ok {
		return s
	}
	return fmt.Sprintf("Unknown NetAddressType (%d)", uint8(t))
}

var (
	// legacyMappedPrefix is the prefix some very old clients used when
	// relaying IPv4 addresses.  Such addresses are never valid.
	legacyMappedPrefix = []byte{0, 0, 0, 0, 0, 0, 0, 0xff, 0xff}

	// torPrefix is the OnionCat prefix (fd87:d87e:eb43::/48).
	torPrefix = []byte{0xfd, 0x87, 0xd8, 0x7e, 0xeb, 0x43}

	// i2pPrefix is the GarliCat prefix (fd60:db4d:ddb5::/48).
	i2pPrefix = []byte{0xfd, 0x60, 0xdb, 0x4d, 0xdd, 0xb5}

	// ipv4MappedPrefix is the prefix of IPv4 addresses stored in IPv6
	// form (::ffff:0:0/96).
	ipv4MappedPrefix = []byte{0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0xff, 0xff}

	// sittPrefix is the RFC6145 IPv4 translated prefix (::ffff:0:0:0/96).
	sittPrefix = []byte{0, 0, 0, 0, 0, 0, 0, 0, 0xff, 0xff, 0, 0}

	// rfc6052Prefix is the RFC6052 well-known NAT64 prefix (64:ff9b::/96).
	rfc6052Prefix = []byte{0, 0x64, 0xff, 0x9b, 0, 0, 0, 0, 0, 0, 0, 0}

	// teredoPrefix is the RFC4380 Teredo prefix (2001::/32).
	teredoPrefix = []byte{0x20, 0x01, 0, 0}

	// sixToFourPrefix is the RFC3964 6to4 prefix (2002::/16).
	sixToFourPrefix = []byte{0x20, 0x02}

	// heNetPrefix is the Hurricane Electric tunnel broker prefix
	// (2001:470::/32).
	heNetPrefix = []byte{0x20, 0x01, 0x04, 0x70}

	// invalid4Nets are the IPv4 ranges that are never publicly routable.
	invalid4Nets = []net.IPNet{
		ipNet("0.0.0.0", 8, 32),
		ipNet("10.0.0.0", 8, 32),
		ipNet("100.64.0.0", 10, 32),
		ipNet("169.254.0.0", 16, 32),
		ipNet("172.16.0.0", 12, 32),
		ipNet("192.0.2.0", 24, 32),
		ipNet("192.168.0.0", 16, 32),
		ipNet("198.18.0.0", 15, 32),
		ipNet("198.51.100.0", 24, 32),
		ipNet("203.0.113.0", 24, 32),
	}

	// loopback4Net is the IPv4 loopback range (127.0.0.0/8).
	loopback4Net = ipNet("127.0.0.0", 8, 32)

	// invalid6Nets are the IPv6 ranges that are never publicly routable:
	// documentation (RFC3849), link-local (RFC4862), ORCHID (RFC4843) and
	// unique local (RFC4193).
	invalid6Nets = []net.IPNet{
		ipNet("2001:db8::", 32, 128),
		ipNet("fe80::", 64, 128),
		ipNet("2001:10::", 28, 128),
		ipNet("fc00::", 7, 128),
	}
)

// ipNet returns a net.IPNet struct given the passed IP address string, number
// of one bits to include at the start of the mask, and the total number of bits
// for the mask.
func ipNet(ip string, ones, bits int) net.IPNet {
	return net.IPNet{IP: net.ParseIP(ip), Mask: net.CIDRMask(ones, bits)}
}

func hasPrefix(ip *[16]byte, prefix []byte) bool {
	for i, b := range prefix {
		if ip[i] != b {
			return false
		}
	}
	return true
}

func containsAny(nets []net.IPNet, netIP net.IP) bool {
	for i := range nets {
		if nets[i].Contains(netIP) {
			return true
		}
	}
	return false
}

// Classify returns the type of the passed 16 byte address.  IPv4 addresses
// must be provided in their ::ffff:a.b.c.d mapped form.
func Classify(ip [16]byte) NetAddressType {
	if hasPrefix(&ip, legacyMappedPrefix) || ip == [16]byte{} {
		return InvalidAddress
	}
	if hasPrefix(&ip, torPrefix) {
		return TorAddress
	}
	if hasPrefix(&ip, i2pPrefix) {
		return I2PAddress
	}

	netIP := net.IP(ip[:])
	if hasPrefix(&ip, ipv4MappedPrefix) {
		switch {
		case netIP.Equal(net.IPv4bcast):
			return InvalidAddress
		case containsAny(invalid4Nets, netIP):
			return InvalidAddress
		case loopback4Net.Contains(netIP):
			return LocalAddress
		}
		return IPv4Address
	}

	switch {
	case hasPrefix(&ip, sittPrefix):
		return SITTAddress
	case hasPrefix(&ip, rfc6052Prefix):
		return RFC6052Address
	case hasPrefix(&ip, teredoPrefix):
		return TeredoAddress
	case hasPrefix(&ip, sixToFourPrefix):
		return SixToFourAddress
	case hasPrefix(&ip, heNetPrefix):
		return HENetAddress
	case netIP.Equal(net.IPv6loopback):
		return LocalAddress
	case containsAny(invalid6Nets, netIP):
		return InvalidAddress
	}
	return IPv6Address
}

// IsRoutable returns whether an address of the given type can be reached
// over the public internet or one of the supported overlay networks.
func (t NetAddressType) IsRoutable() bool {
	return t != InvalidAddress && t != LocalAddress
}

// group derives the network group of an address.  The lowest byte holds the
// type the group is keyed under and the following bytes hold the part of the
// address that identifies the network operator: the /16 for IPv4 and the
// IPv4 addresses embedded in tunnels, the /32 for IPv6 (/36 for he.net) and
// the top four bits of the key for overlay addresses.
func group(addrType NetAddressType, ip *[16]byte) uint64 {
	start, bits := 0, 16
	var grp uint64
	switch addrType {
	case TorAddress, I2PAddress:
		grp = uint64(addrType)
		start, bits = 6, 4

	case SITTAddress, RFC6052Address:
		grp = uint64(IPv4Address)
		start = 12

	case SixToFourAddress:
		grp = uint64(IPv4Address)
		start = 2

	case TeredoAddress:
		// Teredo obfuscates the client address by flipping every bit.
		return uint64(IPv4Address) | uint64(ip[12]^0xff)<<8 |
			uint64(ip[13]^0xff)<<16

	case HENetAddress:
		grp = uint64(IPv6Address)
		bits = 36

	case IPv6Address:
		grp = uint64(IPv6Address)
		bits = 32

	case IPv4Address:
		grp = uint64(IPv4Address)
		start = 12

	default:
		return uint64(addrType)
	}

	shift := 8
	for ; bits >= 8; bits -= 8 {
		grp |= uint64(ip[start]) << shift
		shift += 8
		start++
	}
	if bits > 0 {
		grp |= uint64(ip[start]|(1<<bits-1)) << shift
	}
	return grp
}

// GetGroup returns the network group identifier of the address.  Addresses
// that are topologically close, such as those in the same IPv4 /16 or served
// by the same overlay key prefix, share a group.
func GetGroup(na *NetAddress) uint64 {
	return group(na.addrType, &na.ip)
}

// GroupKey returns a human-readable representation of the network group of
// the address.  It is only intended for logging.
func GroupKey(na *NetAddress) string {
	grp := GetGroup(na)
	return fmt.Sprintf("%v:%x", NetAddressType(grp&0xff), grp>>8)
}
