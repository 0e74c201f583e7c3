// Copyright (c) 2026 The peerdir developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package addrmgr

import (
	"fmt"
	"net"
	"sync/atomic"
	"time"

	"github.com/decred/dcrd/crypto/rand"
	"github.com/google/btree"
	"github.com/peerdir/peerdird/internal/prng"
)

const (
	// DefaultBucketCount is the number of buckets addresses are spread
	// over unless configured otherwise.
	DefaultBucketCount = 255

	// DefaultMaxAddressesInBucket is the capacity of each bucket unless
	// configured otherwise.
	DefaultMaxAddressesInBucket = 64

	// DefaultMaxTimeDrift is the largest network time offset that is
	// trusted unless configured otherwise.
	DefaultMaxTimeDrift = 70 * time.Minute
)

// RandSource is a cryptographically secure source of uniformly distributed
// 64-bit values.
type RandSource interface {
	Uint64() uint64
}

// SeededSource is a cryptographically secure random stream that restarts
// deterministically when reseeded.
type SeededSource interface {
	Reseed(seed uint64)
	Uint64() uint64
}

// destroyer is implemented by random streams that hold key material which
// should be wiped when the manager is closed.
type destroyer interface {
	Destroy()
}

// Config houses the parameters of an address manager.  Zero values select the
// defaults.
type Config struct {
	// BucketCount is the number of buckets addresses are spread over.
	BucketCount uint32

	// MaxAddressesInBucket is the capacity of each bucket.
	MaxAddressesInBucket uint32

	// MaxTimeDrift is the largest median peer clock offset that is
	// trusted.
	MaxTimeDrift time.Duration

	// OnBadTime is invoked synchronously when the median peer clock offset
	// is out of bounds and no peer confirms the local clock.  It receives
	// the rejected median.  It must not call back into the manager.
	OnBadTime func(median time.Duration)

	// Rand is the general purpose random stream.  The manager secret is
	// the first value drawn from it.  It defaults to a seeded ChaCha20
	// PRNG.
	Rand RandSource

	// BucketRand is the stream reserved for bucket derivation.  It must
	// not be shared with anything else.  It defaults to a keyed ChaCha20
	// stream.
	BucketRand SeededSource
}

// AddrManager is the directory of network addresses and connected peers of
// a node along with the network time derived from the clocks of those peers.
//
// An AddrManager is not safe for concurrent access.  It is meant to be owned
// by a single goroutine that all other goroutines send their requests to.
// The only exception is the network time which may be read from anywhere.
type AddrManager struct {
	rand       RandSource
	bucketRand SeededSource

	// secret keys the bucket placement of every address.  It is never
	// exposed.
	secret uint64

	buckets      []*bucket
	layout       *bucketLayout
	maxPerBucket uint32
	addrNum      int

	peers       map[addrKey]*Peer
	timeOffsets *btree.BTreeG[*Peer]

	maxTimeDrift      time.Duration
	networkTimeOffset atomic.Int64
	badTimeSignaled   bool
	onBadTime         func(time.Duration)
}

// New returns an address manager configured by cfg.  A nil cfg selects the
// defaults.
func New(cfg *Config) (*AddrManager, error) {
	if cfg == nil {
		cfg = &Config{}
	}

	a := &AddrManager{
		rand:         cfg.Rand,
		bucketRand:   cfg.BucketRand,
		maxPerBucket: cfg.MaxAddressesInBucket,
		peers:        make(map[addrKey]*Peer),
		timeOffsets:  btree.NewG[*Peer](btreeDegree, timeOffsetLess),
		maxTimeDrift: cfg.MaxTimeDrift,
		onBadTime:    cfg.OnBadTime,
	}
	if a.rand == nil {
		gen, err := rand.NewPRNG()
		if err != nil {
			return nil, fmt.Errorf("unable to seed random number "+
				"generator: %w", err)
		}
		a.rand = gen
	}
	if a.bucketRand == nil {
		a.bucketRand = prng.New()
	}
	if a.maxPerBucket == 0 {
		a.maxPerBucket = DefaultMaxAddressesInBucket
	}
	if a.maxTimeDrift == 0 {
		a.maxTimeDrift = DefaultMaxTimeDrift
	}
	bucketCount := cfg.BucketCount
	if bucketCount == 0 {
		bucketCount = DefaultBucketCount
	}
	a.buckets = makeBuckets(bucketCount)
	a.layout = &bucketLayout{count: bucketCount}
	a.secret = a.rand.Uint64()
	return a, nil
}

// NewAddressManager returns an address manager with the default parameters
// that reports bad network time to onBadTime.
func NewAddressManager(onBadTime func(median time.Duration)) (*AddrManager, error) {
	return New(&Config{OnBadTime: onBadTime})
}

func makeBuckets(n uint32) []*bucket {
	buckets := make([]*bucket, n)
	for i := range buckets {
		buckets[i] = newBucket()
	}
	return buckets
}

// SetBucketCount changes the number of buckets.  Since every stored address
// would have to move, this is only allowed while no addresses are stored.
func (a *AddrManager) SetBucketCount(n uint32) error {
	if n == 0 {
		return makeError(ErrInvalidBucketCount, "bucket count must be "+
			"positive")
	}
	if a.addrNum != 0 {
		str := fmt.Sprintf("cannot change the bucket count while %d "+
			"addresses are stored", a.addrNum)
		return makeError(ErrNotEmpty, str)
	}
	a.buckets = makeBuckets(n)
	a.layout = &bucketLayout{count: n}
	return nil
}

// BucketCount returns the number of buckets.
func (a *AddrManager) BucketCount() uint32 {
	return uint32(len(a.buckets))
}

// SetMaxAddressesInBucket changes the capacity of every bucket.  Buckets that
// hold more addresses than the new capacity immediately evict their lowest
// scored addresses.
func (a *AddrManager) SetMaxAddressesInBucket(n uint32) error {
	if n == 0 {
		return makeError(ErrInvalidBucketCount, "bucket capacity must be "+
			"positive")
	}
	a.maxPerBucket = n
	for i, b := range a.buckets {
		for uint32(b.len()) > n {
			victim, _ := b.worst()
			b.remove(victim)
			a.addrNum--
			log.Debugf("Evicted %s from bucket %d", victim, i)
		}
	}
	return nil
}

// MaxAddressesInBucket returns the capacity of every bucket.
func (a *AddrManager) MaxAddressesInBucket() uint32 {
	return a.maxPerBucket
}

// AddAddress hands the address to the manager.  The caller must not modify
// it afterwards other than through the manager.
//
// Invalid addresses are rejected with ErrUnroutableAddress and an address
// whose ip and port are already known is rejected with ErrDuplicateAddress
// leaving the known entry untouched.  When the bucket of the address is over
// capacity its lowest scored address is evicted.  Should that be the new
// address, ErrBucketFull is returned and the manager is unchanged.
func (a *AddrManager) AddAddress(na *NetAddress) error {
	if na.addrType == InvalidAddress {
		str := fmt.Sprintf("address %s is not routable", na)
		return makeError(ErrUnroutableAddress, str)
	}

	bi := a.AssignBucket(na)
	b := a.buckets[bi]
	if _, ok := b.addrs[na.key()]; ok {
		str := fmt.Sprintf("address %s already exists", na)
		return makeError(ErrDuplicateAddress, str)
	}
	b.insert(na)
	a.addrNum++

	if uint32(b.len()) > a.maxPerBucket {
		victim, _ := b.worst()
		b.remove(victim)
		a.addrNum--
		if victim == na {
			str := fmt.Sprintf("bucket %d is full and address %s "+
				"scores lowest", bi, na)
			return makeError(ErrBucketFull, str)
		}
		log.Debugf("Evicted %s from bucket %d for %s", victim, bi, na)
	}
	log.Tracef("Added new address %s to bucket %d (%d total)", na, bi,
		a.addrNum)
	return nil
}

// lookup returns the bucket of the passed address and the stored address
// with the same ip and port, if any.  The passed address is not modified.
func (a *AddrManager) lookup(na *NetAddress) (*bucket, *NetAddress) {
	b := a.buckets[a.bucketOf(na)]
	return b, b.addrs[na.key()]
}

// RemoveAddress removes the stored address with the same ip and port as the
// passed one.  It returns whether there was such an address.
func (a *AddrManager) RemoveAddress(na *NetAddress) bool {
	b, stored := a.lookup(na)
	if stored == nil {
		return false
	}
	b.remove(stored)
	a.addrNum--
	return true
}

// Exists returns the stored address with the same ip and port as the passed
// one, or nil when there is none.
func (a *AddrManager) Exists(na *NetAddress) *NetAddress {
	_, stored := a.lookup(na)
	return stored
}

// ApplyPenalty adds a demerit to the stored address with the same ip and
// port as the passed one.  Penalties only ever grow, so non-positive amounts
// are ignored.  It returns whether the address is known.
func (a *AddrManager) ApplyPenalty(na *NetAddress, amount time.Duration) bool {
	b, stored := a.lookup(na)
	if stored == nil {
		return false
	}
	if amount <= 0 {
		return true
	}
	b.reindex(stored, func(na *NetAddress) {
		na.penalty += amount
	})
	return true
}

// MarkSeen records that the stored address with the same ip and port as the
// passed one was confirmed reachable at t.  The last seen time never moves
// backwards.  It returns whether the address is known.
func (a *AddrManager) MarkSeen(na *NetAddress, t time.Time) bool {
	b, stored := a.lookup(na)
	if stored == nil {
		return false
	}
	t = time.Unix(t.Unix(), 0)
	if !t.After(stored.lastSeen) {
		return true
	}
	b.reindex(stored, func(na *NetAddress) {
		na.lastSeen = t
	})
	return true
}

// NumAddresses returns the number of stored addresses.
func (a *AddrManager) NumAddresses() int {
	return a.addrNum
}

// BucketLen returns the number of addresses stored in the given bucket.
func (a *AddrManager) BucketLen(i uint32) int {
	if i >= uint32(len(a.buckets)) {
		return 0
	}
	return a.buckets[i].len()
}

// ForEachAddress invokes fn for every stored address.  The addresses must not
// be modified and fn must not call back into the manager.
func (a *AddrManager) ForEachAddress(fn func(na *NetAddress)) {
	for _, b := range a.buckets {
		for _, na := range b.addrs {
			fn(na)
		}
	}
}

// randomBucket returns a uniformly chosen bucket index drawn from the general
// purpose stream.
func (a *AddrManager) randomBucket() int {
	return int(a.rand.Uint64() % uint64(len(a.buckets)))
}

// GetAddressesForGossip returns up to n stored addresses to share with other
// peers.  Starting from a random bucket it takes the best scored address of
// every bucket in turn, then the second best of every bucket and so on, so
// that no single bucket, and therefore no single network group, dominates
// the response.  The addresses remain stored.
func (a *AddrManager) GetAddressesForGossip(n int) []*NetAddress {
	if n > a.addrNum {
		n = a.addrNum
	}
	if n <= 0 {
		return nil
	}

	addrs := make([]*NetAddress, 0, n)
	ordered := make([][]*NetAddress, len(a.buckets))
	start := a.randomBucket()
	for i, depth := start, 0; len(addrs) < n; {
		b := a.buckets[i]
		if depth < b.len() {
			if len(ordered[i]) <= depth {
				// Only fetch as deep as the remaining wanted
				// addresses could possibly reach.
				ordered[i] = b.ordered(depth + n - len(addrs))
			}
			addrs = append(addrs, ordered[i][depth])
		}

		i++
		if i == len(a.buckets) {
			i = 0
		}
		if i == start {
			depth++
		}
	}
	return addrs
}

// SelectForConnection removes and returns an address to connect to.  Starting
// from a random bucket it scans forward to the first non-empty bucket and
// takes its best scored address.  It returns nil when no addresses are
// stored.
func (a *AddrManager) SelectForConnection() *NetAddress {
	if a.addrNum == 0 {
		return nil
	}
	start := a.randomBucket()
	for i := start; ; {
		b := a.buckets[i]
		if na, ok := b.best(); ok {
			b.remove(na)
			a.addrNum--
			return na
		}
		i++
		if i == len(a.buckets) {
			i = 0
		}
	}
}

// AddPeer starts tracking a connected peer.  When the peer already reported
// a clock offset it takes part in the network time immediately.  A peer
// whose ip and port are already tracked is rejected with ErrDuplicatePeer.
func (a *AddrManager) AddPeer(p *Peer) error {
	key := p.key()
	if _, ok := a.peers[key]; ok {
		str := fmt.Sprintf("peer %s already exists", p)
		return makeError(ErrDuplicatePeer, str)
	}
	a.peers[key] = p
	if p.timeOffsetSet {
		a.timeOffsets.ReplaceOrInsert(p)
		a.adjustTime()
	}
	return nil
}

// RemovePeer stops tracking the peer with the same ip and port as the passed
// one.  It returns whether there was such a peer.
func (a *AddrManager) RemovePeer(p *Peer) bool {
	key := p.key()
	stored, ok := a.peers[key]
	if !ok {
		return false
	}
	delete(a.peers, key)
	if stored.timeOffsetSet {
		a.timeOffsets.Delete(stored)
		a.adjustTime()
	}
	return true
}

// GetPeer returns the tracked peer with the given ip and port, or nil when
// there is none.
func (a *AddrManager) GetPeer(netIP net.IP, port uint16) *Peer {
	return a.peers[addrKey{ip: toIP16(netIP), port: port}]
}

// RecordTimeOffset sets the clock offset reported by a peer, truncated to
// whole seconds.  When the peer is tracked the network time is recomputed.
func (a *AddrManager) RecordTimeOffset(p *Peer, offset time.Duration) {
	offset = offset.Truncate(time.Second)
	stored, ok := a.peers[p.key()]
	if !ok {
		p.timeOffset, p.timeOffsetSet = offset, true
		return
	}
	if stored.timeOffsetSet {
		a.timeOffsets.Delete(stored)
	}
	stored.timeOffset, stored.timeOffsetSet = offset, true
	a.timeOffsets.ReplaceOrInsert(stored)
	a.adjustTime()
}

// ClearPeers stops tracking every peer and resets the network time.
func (a *AddrManager) ClearPeers() {
	a.peers = make(map[addrKey]*Peer)
	a.timeOffsets.Clear(false)
	a.adjustTime()
}

// NumPeers returns the number of tracked peers.
func (a *AddrManager) NumPeers() int {
	return len(a.peers)
}

// NumTimeOffsets returns the number of tracked peers that reported a clock
// offset.
func (a *AddrManager) NumTimeOffsets() int {
	return a.timeOffsets.Len()
}

// ForEachPeer invokes fn for every tracked peer.  Callbacks must not call
// back into the manager.
func (a *AddrManager) ForEachPeer(fn func(p *Peer)) {
	for _, p := range a.peers {
		fn(p)
	}
}

// Close releases every address and peer along with the random streams.  The
// manager must not be used afterwards.
func (a *AddrManager) Close() {
	a.buckets = nil
	a.addrNum = 0
	a.peers = nil
	a.timeOffsets.Clear(false)
	a.networkTimeOffset.Store(0)
	if d, ok := a.bucketRand.(destroyer); ok {
		d.Destroy()
	}
	if d, ok := a.rand.(destroyer); ok {
		d.Destroy()
	}
	a.secret = 0
}
