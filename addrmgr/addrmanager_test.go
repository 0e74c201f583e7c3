// Copyright (c) 2026 The peerdir developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package addrmgr

import (
	"errors"
	"fmt"
	"math/rand"
	"net"
	"testing"
	"time"

	"github.com/peerdir/peerdird/internal/prng"
)

// fixedRand is a RandSource whose first value, which becomes the manager
// secret, is fixed.  Later values come from a deterministic math/rand source.
type fixedRand struct {
	secret uint64
	drawn  bool
	rng    *rand.Rand
}

func (r *fixedRand) Uint64() uint64 {
	if !r.drawn {
		r.drawn = true
		return r.secret
	}
	return r.rng.Uint64()
}

// groupRand is a SeededSource that yields its seed without the type byte so
// tests can predict bucket placement: with a zero secret an IPv4 address
// a.b.c.d lands in bucket (a | b<<8) modulo the bucket count.
type groupRand struct {
	seed uint64
}

func (g *groupRand) Reseed(seed uint64) { g.seed = seed }
func (g *groupRand) Uint64() uint64     { return g.seed >> 8 }

// newTestManager returns a manager with the given secret.  The passed config
// may override everything but the general random stream.
func newTestManager(t *testing.T, secret uint64, cfg *Config) *AddrManager {
	t.Helper()
	if cfg == nil {
		cfg = &Config{}
	}
	cfg.Rand = &fixedRand{secret: secret, rng: rand.New(rand.NewSource(1))}
	if cfg.BucketRand == nil {
		cfg.BucketRand = prng.New()
	}
	amgr, err := New(cfg)
	if err != nil {
		t.Fatalf("unable to create address manager: %v", err)
	}
	return amgr
}

// publicIPv4 returns the i-th address of a sequence of publicly routable IPv4
// addresses that each belong to a distinct /16.
func publicIPv4(i int) net.IP {
	firstOctets := []byte{1, 2, 3, 4, 5, 6, 8, 9, 11, 12, 13, 14}
	return net.IPv4(firstOctets[i/256], byte(i%256), 1, 1)
}

func newTestAddr(ip string, port uint16, seen time.Time) *NetAddress {
	return NewNetAddress(net.ParseIP(ip), port, 0, seen)
}

// assertInvariants ensures the views of every bucket hold the same addresses
// and that the address count matches the buckets.
func assertInvariants(t *testing.T, amgr *AddrManager) {
	t.Helper()
	total := 0
	for i, b := range amgr.buckets {
		if b.scores.Len() != len(b.addrs) {
			t.Fatalf("bucket %d: score view holds %d addresses, identity "+
				"view %d", i, b.scores.Len(), len(b.addrs))
		}
		for _, na := range b.addrs {
			if !b.scores.Has(na) {
				t.Fatalf("bucket %d: %s missing from score view", i, na)
			}
			if bi, ok := na.Bucket(); !ok || bi != uint32(i) {
				t.Fatalf("%s stored in bucket %d but assigned %d", na,
					i, bi)
			}
		}
		prev := (*NetAddress)(nil)
		b.scores.Ascend(func(na *NetAddress) bool {
			if b.addrs[na.key()] != na {
				t.Fatalf("bucket %d: %s missing from identity view", i, na)
			}
			if prev != nil && !scoreLess(prev, na) {
				t.Fatalf("bucket %d: score view out of order", i)
			}
			prev = na
			return true
		})
		if uint32(len(b.addrs)) > amgr.maxPerBucket {
			t.Fatalf("bucket %d holds %d addresses, max %d", i,
				len(b.addrs), amgr.maxPerBucket)
		}
		total += len(b.addrs)
	}
	if total != amgr.NumAddresses() {
		t.Fatalf("address count %d does not match bucket total %d",
			amgr.NumAddresses(), total)
	}
}

// TestAssignBucketStable ensures the bucket of an address never changes and
// is always in range.
func TestAssignBucketStable(t *testing.T) {
	amgr := newTestManager(t, 12345, nil)
	for i := 0; i < 500; i++ {
		na := NewNetAddress(publicIPv4(i), 9108, 0, zeroTime)
		first := amgr.AssignBucket(na)
		if first >= amgr.BucketCount() {
			t.Fatalf("%s: bucket %d out of range", na, first)
		}
		if second := amgr.AssignBucket(na); second != first {
			t.Fatalf("%s: bucket changed from %d to %d", na, first, second)
		}

		// Unrelated draws from the general stream must not matter.
		amgr.randomBucket()
		fresh := NewNetAddress(publicIPv4(i), 9109, 0, zeroTime)
		if got := amgr.AssignBucket(fresh); got != first {
			t.Fatalf("%s: same group assigned %d and %d", na, first, got)
		}
	}
}

// TestBucketSecret ensures bucket placement is determined by the secret:
// managers sharing a secret agree on every address while managers with
// distinct secrets disagree on almost all of them.
func TestBucketSecret(t *testing.T) {
	const numAddrs = 1000
	a := newTestManager(t, 0x0123456789abcdef, nil)
	b := newTestManager(t, 0x0123456789abcdef, nil)
	c := newTestManager(t, 0xfedcba9876543210, nil)

	differ := 0
	for i := 0; i < numAddrs; i++ {
		ip := publicIPv4(i)
		ba := a.AssignBucket(NewNetAddress(ip, 9108, 0, zeroTime))
		bb := b.AssignBucket(NewNetAddress(ip, 9108, 0, zeroTime))
		bc := c.AssignBucket(NewNetAddress(ip, 9108, 0, zeroTime))
		if ba != bb {
			t.Fatalf("%v: same secret assigned buckets %d and %d", ip,
				ba, bb)
		}
		if ba != bc {
			differ++
		}
	}
	if differ < numAddrs*95/100 {
		t.Fatalf("only %d of %d addresses moved with a new secret", differ,
			numAddrs)
	}
}

// TestBucketFollowsManager ensures a bucket cached on an address by another
// manager, or under a previous bucket count, is never trusted so that an
// address can only be stored once.
func TestBucketFollowsManager(t *testing.T) {
	seen := time.Unix(1700000000, 0)
	const ip = "173.194.115.66"

	// requireSingle ensures amgr stores exactly one address with the test
	// identity and finds it through a fresh object.
	requireSingle := func(name string, amgr *AddrManager) {
		t.Helper()
		if amgr.Exists(newTestAddr(ip, 9108, seen)) == nil {
			t.Fatalf("%s: stored address not found by a fresh object",
				name)
		}
		err := amgr.AddAddress(newTestAddr(ip, 9108, seen))
		if !errors.Is(err, ErrDuplicateAddress) {
			t.Fatalf("%s: unexpected error: got %v, want %v", name, err,
				ErrDuplicateAddress)
		}
		if amgr.NumAddresses() != 1 {
			t.Fatalf("%s: stored %d addresses, want 1", name,
				amgr.NumAddresses())
		}
	}

	// A lookup before the bucket count changes must not pin the old
	// placement.
	amgr := newTestManager(t, 7, nil)
	na := newTestAddr(ip, 9108, seen)
	if amgr.Exists(na) != nil {
		t.Fatal("address exists before it was added")
	}
	if err := amgr.SetBucketCount(256); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := amgr.AddAddress(na); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if bi, _ := na.Bucket(); bi != amgr.AssignBucket(newTestAddr(ip, 1, seen)) {
		t.Fatalf("address stored in stale bucket %d", bi)
	}
	requireSingle("bucket count change", amgr)

	// Addresses handed out or removed by one manager are placed afresh by
	// the next.
	tests := []struct {
		name    string
		release func(*AddrManager, *NetAddress) *NetAddress
	}{{
		name: "selected",
		release: func(a *AddrManager, _ *NetAddress) *NetAddress {
			return a.SelectForConnection()
		},
	}, {
		name: "removed",
		release: func(a *AddrManager, na *NetAddress) *NetAddress {
			if !a.RemoveAddress(na) {
				return nil
			}
			return na
		},
	}}
	for _, test := range tests {
		a := newTestManager(t, 0x0123456789abcdef, nil)
		b := newTestManager(t, 0xfedcba9876543210, nil)
		na := newTestAddr(ip, 9108, seen)
		if err := a.AddAddress(na); err != nil {
			t.Fatalf("%s: unexpected error: %v", test.name, err)
		}
		released := test.release(a, na)
		if released != na {
			t.Fatalf("%s: got %v, want %v", test.name, released, na)
		}
		if err := b.AddAddress(released); err != nil {
			t.Fatalf("%s: unexpected error: %v", test.name, err)
		}
		requireSingle(test.name, b)
	}
}

// TestLookupLeavesQueryUntouched ensures lookups with caller owned addresses
// neither assign them a bucket nor freeze their identity.
func TestLookupLeavesQueryUntouched(t *testing.T) {
	amgr := newTestManager(t, 1, nil)
	seen := time.Unix(1700000000, 0)
	if err := amgr.AddAddress(newTestAddr("173.194.115.66", 9108, seen)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	for _, ip := range []string{"173.194.115.66", "8.8.8.8"} {
		query := newTestAddr(ip, 9108, seen)
		amgr.Exists(query)
		amgr.ApplyPenalty(query, time.Hour)
		amgr.MarkSeen(query, seen.Add(time.Hour))
		amgr.RemoveAddress(query)
		if _, ok := query.Bucket(); ok {
			t.Fatalf("%s: lookup assigned a bucket to the query", ip)
		}
		if err := query.SetPort(9109); err != nil {
			t.Fatalf("%s: unexpected error: %v", ip, err)
		}
	}
}

// TestAddAddress ensures addresses are stored, that duplicates and invalid
// addresses are rejected and that lookups work with fresh objects.
func TestAddAddress(t *testing.T) {
	amgr := newTestManager(t, 1, nil)
	seen := time.Unix(1700000000, 0)

	na := newTestAddr("173.194.115.66", 9108, seen)
	if err := amgr.AddAddress(na); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if amgr.NumAddresses() != 1 {
		t.Fatalf("unexpected address count %d", amgr.NumAddresses())
	}

	dup := newTestAddr("173.194.115.66", 9108, seen.Add(time.Hour))
	err := amgr.AddAddress(dup)
	if !errors.Is(err, ErrDuplicateAddress) {
		t.Fatalf("unexpected error: got %v, want %v", err,
			ErrDuplicateAddress)
	}
	if got := amgr.Exists(dup); got != na {
		t.Fatalf("duplicate replaced the stored address: %v", got)
	}
	if !amgr.Exists(dup).LastSeen().Equal(seen) {
		t.Fatal("duplicate modified the stored address")
	}

	otherPort := newTestAddr("173.194.115.66", 9109, seen)
	if err := amgr.AddAddress(otherPort); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	for _, ip := range []string{"10.0.0.1", "0.0.0.0", "2001:db8::1"} {
		err := amgr.AddAddress(newTestAddr(ip, 9108, seen))
		if !errors.Is(err, ErrUnroutableAddress) {
			t.Fatalf("%s: unexpected error: got %v, want %v", ip, err,
				ErrUnroutableAddress)
		}
	}
	if amgr.NumAddresses() != 2 {
		t.Fatalf("unexpected address count %d", amgr.NumAddresses())
	}

	if amgr.Exists(newTestAddr("173.194.115.67", 9108, seen)) != nil {
		t.Fatal("unknown address reported as existing")
	}
	assertInvariants(t, amgr)
}

// TestRemoveAddress ensures addresses are removed from both views.
func TestRemoveAddress(t *testing.T) {
	amgr := newTestManager(t, 2, nil)
	seen := time.Unix(1700000000, 0)
	na := newTestAddr("173.194.115.66", 9108, seen)
	if err := amgr.AddAddress(na); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// Penalize the stored address so the lookup object scores differently.
	amgr.ApplyPenalty(na, time.Hour)
	lookup := newTestAddr("173.194.115.66", 9108, seen)
	if !amgr.RemoveAddress(lookup) {
		t.Fatal("stored address not removed")
	}
	if amgr.RemoveAddress(lookup) {
		t.Fatal("removed address removed again")
	}
	if amgr.NumAddresses() != 0 || amgr.Exists(lookup) != nil {
		t.Fatal("address still present")
	}
	assertInvariants(t, amgr)
}

// TestStoreInvariants ensures random sequences of operations keep the views
// consistent.
func TestStoreInvariants(t *testing.T) {
	amgr := newTestManager(t, 3, &Config{
		BucketCount:          16,
		MaxAddressesInBucket: 8,
	})
	rng := rand.New(rand.NewSource(99))
	base := time.Unix(1700000000, 0)

	randomAddr := func() *NetAddress {
		ip := net.IPv4(byte(1+rng.Intn(9)), byte(rng.Intn(4)),
			byte(rng.Intn(4)), 1)
		seen := base.Add(time.Duration(rng.Intn(1000)) * time.Second)
		return NewNetAddress(ip, uint16(9108+rng.Intn(2)), 0, seen)
	}

	for i := 0; i < 5000; i++ {
		switch rng.Intn(6) {
		case 0, 1:
			err := amgr.AddAddress(randomAddr())
			if err != nil && !errors.Is(err, ErrDuplicateAddress) &&
				!errors.Is(err, ErrBucketFull) {

				t.Fatalf("unexpected error: %v", err)
			}
		case 2:
			amgr.RemoveAddress(randomAddr())
		case 3:
			amgr.ApplyPenalty(randomAddr(),
				time.Duration(rng.Intn(100))*time.Second)
		case 4:
			amgr.MarkSeen(randomAddr(), base.Add(time.Hour))
		case 5:
			if rng.Intn(10) == 0 {
				amgr.SelectForConnection()
			}
		}
		if i%100 == 0 {
			assertInvariants(t, amgr)
		}
	}
	assertInvariants(t, amgr)
}

// TestEviction ensures a bucket never exceeds its capacity and that the
// lowest scored addresses are the ones evicted.
func TestEviction(t *testing.T) {
	const maxInBucket = 5
	const extra = 4
	amgr := newTestManager(t, 4, &Config{
		BucketCount:          1,
		MaxAddressesInBucket: maxInBucket,
	})

	base := time.Unix(1700000000, 0)
	for i := 0; i < maxInBucket+extra; i++ {
		na := NewNetAddress(publicIPv4(i), 9108, 0,
			base.Add(time.Duration(i)*time.Minute))
		if err := amgr.AddAddress(na); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if amgr.BucketLen(0) > maxInBucket {
			t.Fatalf("bucket holds %d addresses", amgr.BucketLen(0))
		}
	}
	if amgr.NumAddresses() != maxInBucket {
		t.Fatalf("unexpected address count %d", amgr.NumAddresses())
	}

	// Only the most recently seen addresses survive.
	for i := 0; i < maxInBucket+extra; i++ {
		exists := amgr.Exists(NewNetAddress(publicIPv4(i), 9108, 0,
			zeroTime)) != nil
		if want := i >= extra; exists != want {
			t.Fatalf("address %d: exists %v, want %v", i, exists, want)
		}
	}

	// An address scoring below everything in a full bucket is refused.
	stale := NewNetAddress(publicIPv4(100), 9108, 0, base)
	err := amgr.AddAddress(stale)
	if !errors.Is(err, ErrBucketFull) {
		t.Fatalf("unexpected error: got %v, want %v", err, ErrBucketFull)
	}
	if amgr.Exists(stale) != nil || amgr.NumAddresses() != maxInBucket {
		t.Fatal("refused address was stored")
	}
	assertInvariants(t, amgr)

	// Shrinking the capacity evicts immediately.
	if err := amgr.SetMaxAddressesInBucket(2); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if amgr.NumAddresses() != 2 {
		t.Fatalf("unexpected address count %d", amgr.NumAddresses())
	}
	for i := maxInBucket + extra - 2; i < maxInBucket+extra; i++ {
		if amgr.Exists(NewNetAddress(publicIPv4(i), 9108, 0, zeroTime)) == nil {
			t.Fatalf("best address %d evicted", i)
		}
	}
	assertInvariants(t, amgr)
}

// TestSelectForConnection ensures the best scored address of a bucket is
// handed out and removed.
func TestSelectForConnection(t *testing.T) {
	amgr := newTestManager(t, 5, &Config{BucketCount: 1})
	if na := amgr.SelectForConnection(); na != nil {
		t.Fatalf("empty manager returned %v", na)
	}

	base := time.Unix(1700000000, 0)
	addrs := make([]*NetAddress, 3)
	for i := range addrs {
		addrs[i] = NewNetAddress(publicIPv4(i), 9108, 0,
			base.Add(time.Duration(i)*time.Hour))
		if err := amgr.AddAddress(addrs[i]); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}

	// Penalize the freshest address below the others.
	amgr.ApplyPenalty(addrs[2], 3*time.Hour)

	wantOrder := []*NetAddress{addrs[1], addrs[0], addrs[2]}
	for i, want := range wantOrder {
		got := amgr.SelectForConnection()
		if got != want {
			t.Fatalf("selection %d: got %v, want %v", i, got, want)
		}
		if amgr.Exists(want) != nil {
			t.Fatalf("selection %d: %v still stored", i, got)
		}
		assertInvariants(t, amgr)
	}
	if na := amgr.SelectForConnection(); na != nil {
		t.Fatalf("drained manager returned %v", na)
	}
}

// TestSelectForConnectionScan ensures selection finds the only non-empty
// bucket from any starting bucket.
func TestSelectForConnectionScan(t *testing.T) {
	for i := 0; i < 20; i++ {
		amgr := newTestManager(t, uint64(i), &Config{BucketCount: 64})
		na := NewNetAddress(publicIPv4(i), 9108, 0, zeroTime)
		if err := amgr.AddAddress(na); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if got := amgr.SelectForConnection(); got != na {
			t.Fatalf("got %v, want %v", got, na)
		}
	}
}

// TestPenaltyAndSeen ensures penalties only grow and last seen times only
// advance.
func TestPenaltyAndSeen(t *testing.T) {
	amgr := newTestManager(t, 6, nil)
	seen := time.Unix(1700000000, 0)
	na := newTestAddr("173.194.115.66", 9108, seen)
	if err := amgr.AddAddress(na); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	lookup := newTestAddr("173.194.115.66", 9108, zeroTime)
	if !amgr.ApplyPenalty(lookup, time.Minute) {
		t.Fatal("penalty not applied")
	}
	amgr.ApplyPenalty(lookup, -time.Hour)
	if na.Penalty() != time.Minute {
		t.Fatalf("unexpected penalty %v", na.Penalty())
	}
	if lookup.Penalty() != 0 {
		t.Fatal("penalty applied to lookup object")
	}

	amgr.MarkSeen(lookup, seen.Add(-time.Hour))
	if !na.LastSeen().Equal(seen) {
		t.Fatalf("last seen moved backwards to %v", na.LastSeen())
	}
	amgr.MarkSeen(lookup, seen.Add(time.Hour))
	if !na.LastSeen().Equal(seen.Add(time.Hour)) {
		t.Fatalf("last seen not advanced: %v", na.LastSeen())
	}

	unknown := newTestAddr("173.194.115.67", 9108, seen)
	if amgr.ApplyPenalty(unknown, time.Minute) ||
		amgr.MarkSeen(unknown, seen) {

		t.Fatal("unknown address updated")
	}
	assertInvariants(t, amgr)
}

// TestGossipDiversity ensures gossip responses cover every bucket even when
// most addresses are concentrated in one of them.
func TestGossipDiversity(t *testing.T) {
	amgr := newTestManager(t, 0, &Config{
		BucketCount: 10,
		BucketRand:  &groupRand{},
	})

	// 1.1.x.x lands in bucket 7 while 1.2, 1.3, 1.4 and 1.5 land in
	// buckets 3, 9, 5 and 1.
	base := time.Unix(1700000000, 0)
	for i := 0; i < 36; i++ {
		ip := fmt.Sprintf("1.1.%d.1", i)
		na := newTestAddr(ip, 9108, base.Add(time.Duration(i)*time.Second))
		if err := amgr.AddAddress(na); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}
	for octet := 2; octet <= 5; octet++ {
		na := newTestAddr(fmt.Sprintf("1.%d.0.1", octet), 9108, base)
		if err := amgr.AddAddress(na); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if amgr.BucketLen(7) != 36 {
		t.Fatalf("unexpected dominant bucket size %d", amgr.BucketLen(7))
	}

	addrs := amgr.GetAddressesForGossip(20)
	if len(addrs) != 20 {
		t.Fatalf("got %d addresses, want 20", len(addrs))
	}
	buckets := make(map[uint32]int)
	seen := make(map[string]struct{})
	for _, na := range addrs {
		bi, _ := na.Bucket()
		buckets[bi]++
		if _, ok := seen[na.Key()]; ok {
			t.Fatalf("address %s returned twice", na)
		}
		seen[na.Key()] = struct{}{}
	}
	for _, bi := range []uint32{1, 3, 5, 7, 9} {
		if buckets[bi] == 0 {
			t.Fatalf("bucket %d not represented: %v", bi, buckets)
		}
	}

	// The dominant bucket contributes its best scored addresses.
	best := amgr.buckets[7].ordered(buckets[7])
	for _, na := range best {
		if _, ok := seen[na.Key()]; !ok {
			t.Fatalf("better scored %s skipped", na)
		}
	}

	// Gossip never removes addresses and never returns more than known.
	if amgr.NumAddresses() != 40 {
		t.Fatalf("gossip changed the address count to %d",
			amgr.NumAddresses())
	}
	if got := len(amgr.GetAddressesForGossip(1000)); got != 40 {
		t.Fatalf("got %d addresses, want 40", got)
	}
	if got := amgr.GetAddressesForGossip(0); got != nil {
		t.Fatalf("got %d addresses, want none", len(got))
	}
}

// TestSetBucketCount ensures the bucket count may only change while empty.
func TestSetBucketCount(t *testing.T) {
	amgr := newTestManager(t, 7, nil)
	if amgr.BucketCount() != DefaultBucketCount {
		t.Fatalf("unexpected default bucket count %d", amgr.BucketCount())
	}
	if err := amgr.SetBucketCount(0); !errors.Is(err, ErrInvalidBucketCount) {
		t.Fatalf("unexpected error: got %v, want %v", err,
			ErrInvalidBucketCount)
	}
	if err := amgr.SetBucketCount(32); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	na := newTestAddr("173.194.115.66", 9108, zeroTime)
	if err := amgr.AddAddress(na); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if bi, _ := na.Bucket(); bi >= 32 {
		t.Fatalf("bucket %d out of range", bi)
	}
	if err := amgr.SetBucketCount(64); !errors.Is(err, ErrNotEmpty) {
		t.Fatalf("unexpected error: got %v, want %v", err, ErrNotEmpty)
	}
	if err := amgr.SetMaxAddressesInBucket(0); !errors.Is(err, ErrInvalidBucketCount) {
		t.Fatalf("unexpected error: got %v, want %v", err,
			ErrInvalidBucketCount)
	}
}

// TestPeers ensures peers are tracked by identity.
func TestPeers(t *testing.T) {
	amgr := newTestManager(t, 8, nil)
	p := NewPeer(newTestAddr("173.194.115.66", 9108, zeroTime))
	if err := amgr.AddPeer(p); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	dup := NewPeer(newTestAddr("173.194.115.66", 9108, zeroTime))
	if err := amgr.AddPeer(dup); !errors.Is(err, ErrDuplicatePeer) {
		t.Fatalf("unexpected error: got %v, want %v", err, ErrDuplicatePeer)
	}
	if got := amgr.GetPeer(net.ParseIP("173.194.115.66"), 9108); got != p {
		t.Fatalf("unexpected peer %v", got)
	}
	if got := amgr.GetPeer(net.ParseIP("173.194.115.66"), 9109); got != nil {
		t.Fatalf("unexpected peer %v", got)
	}
	if amgr.NumPeers() != 1 || amgr.NumTimeOffsets() != 0 {
		t.Fatalf("unexpected counts %d/%d", amgr.NumPeers(),
			amgr.NumTimeOffsets())
	}
	if !amgr.RemovePeer(dup) || amgr.RemovePeer(dup) {
		t.Fatal("unexpected removal result")
	}
	if amgr.NumPeers() != 0 {
		t.Fatalf("unexpected peer count %d", amgr.NumPeers())
	}
}

// TestClose ensures closing wipes the bucket stream key.
func TestClose(t *testing.T) {
	bucketRand := prng.New()
	amgr := newTestManager(t, 9, &Config{BucketRand: bucketRand})
	if err := amgr.AddAddress(newTestAddr("173.194.115.66", 9108, zeroTime)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	amgr.Close()
	if amgr.NumAddresses() != 0 || amgr.NumPeers() != 0 {
		t.Fatal("manager not emptied")
	}
	if amgr.NetworkTimeOffset() != 0 {
		t.Fatal("time offset not reset")
	}
}
