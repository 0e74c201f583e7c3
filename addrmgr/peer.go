// Copyright (c) 2026 The peerdir developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package addrmgr

import "time"

// Peer is a network address the node holds a live connection with.  Its
// identity is the ip and port of the embedded address.
type Peer struct {
	*NetAddress

	// timeOffset is the clock of the peer minus the local clock in whole
	// seconds.  It is only meaningful when timeOffsetSet is true.
	timeOffset    time.Duration
	timeOffsetSet bool
}

// NewPeer returns a peer for the given address.  The peer has not reported a
// clock sample.
func NewPeer(na *NetAddress) *Peer {
	return &Peer{NetAddress: na}
}

// NewPeerWithTimeOffset returns a peer for the given address that reported
// the provided clock offset during its handshake.
func NewPeerWithTimeOffset(na *NetAddress, offset time.Duration) *Peer {
	return &Peer{
		NetAddress:    na,
		timeOffset:    offset.Truncate(time.Second),
		timeOffsetSet: true,
	}
}

// TimeOffset returns the clock offset reported by the peer and whether it
// reported one at all.
func (p *Peer) TimeOffset() (time.Duration, bool) {
	return p.timeOffset, p.timeOffsetSet
}

// timeOffsetLess orders peers by ascending time offset.  Ties are broken by
// ip and port.
func timeOffsetLess(a, b *Peer) bool {
	if a.timeOffset != b.timeOffset {
		return a.timeOffset < b.timeOffset
	}
	return a.key().less(b.key())
}
