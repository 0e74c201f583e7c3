// Copyright (c) 2026 The peerdir developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package addrmgr

import "github.com/google/btree"

// btreeDegree is the degree of the ordered indices.
const btreeDegree = 8

// bucket holds two views over the same set of addresses.  The addrs map is the
// authoritative index keyed by identity and the scores tree orders the very
// same objects best score first.  An address is in both or in neither.
type bucket struct {
	addrs  map[addrKey]*NetAddress
	scores *btree.BTreeG[*NetAddress]
}

func newBucket() *bucket {
	return &bucket{
		addrs:  make(map[addrKey]*NetAddress),
		scores: btree.NewG[*NetAddress](btreeDegree, scoreLess),
	}
}

func (b *bucket) len() int {
	return len(b.addrs)
}

func (b *bucket) insert(na *NetAddress) {
	b.addrs[na.key()] = na
	b.scores.ReplaceOrInsert(na)
}

// remove deletes the stored address from both views.  The passed address
// must be the stored object since its score locates it in the tree.
func (b *bucket) remove(na *NetAddress) {
	b.scores.Delete(na)
	delete(b.addrs, na.key())
}

// reindex applies fn to a stored address while it is out of the score view
// so the view stays ordered.
func (b *bucket) reindex(na *NetAddress, fn func(*NetAddress)) {
	b.scores.Delete(na)
	fn(na)
	b.scores.ReplaceOrInsert(na)
}

// best returns the highest scored address of the bucket.
func (b *bucket) best() (*NetAddress, bool) {
	return b.scores.Min()
}

// worst returns the lowest scored address of the bucket.
func (b *bucket) worst() (*NetAddress, bool) {
	return b.scores.Max()
}

// ordered returns the first n addresses of the bucket, best score first.
func (b *bucket) ordered(n int) []*NetAddress {
	if n <= 0 {
		return nil
	}
	addrs := make([]*NetAddress, 0, n)
	b.scores.Ascend(func(na *NetAddress) bool {
		addrs = append(addrs, na)
		return len(addrs) < n
	})
	return addrs
}

// bucketLayout identifies one arrangement of buckets of one manager.  Every
// manager starts with its own layout and gets a new one whenever the bucket
// count changes, so a bucket cached on an address is only trusted by the
// layout that computed it.
type bucketLayout struct {
	count uint32
}

// AssignBucket returns the bucket of the address, computing it the first
// time it is seen by the current layout of the manager.  The bucket stream is
// reseeded with the network group of the address plus the secret of the
// manager and exactly one value is drawn from it, so the bucket depends on
// nothing but the secret and the group.
func (a *AddrManager) AssignBucket(na *NetAddress) uint32 {
	if na.bucketSet && na.layout == a.layout {
		return na.bucket
	}
	na.bucket = a.deriveBucket(na)
	na.bucketSet = true
	na.layout = a.layout
	return na.bucket
}

// bucketOf returns the bucket of the address without caching it on the
// address.  It is used for lookups with caller owned query addresses.
func (a *AddrManager) bucketOf(na *NetAddress) uint32 {
	if na.bucketSet && na.layout == a.layout {
		return na.bucket
	}
	return a.deriveBucket(na)
}

func (a *AddrManager) deriveBucket(na *NetAddress) uint32 {
	a.bucketRand.Reseed(GetGroup(na) + a.secret)
	return uint32(a.bucketRand.Uint64() % uint64(len(a.buckets)))
}
