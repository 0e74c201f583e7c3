// Copyright (c) 2026 The peerdir developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package prng provides a cryptographically secure random stream that can be
// deterministically reseeded from a 64-bit value.
package prng

import (
	"encoding/binary"

	"github.com/decred/dcrd/crypto/blake256"
	"github.com/decred/dcrd/crypto/rand"
	"golang.org/x/crypto/chacha20"
)

// Keyed is a ChaCha20 keystream whose key is the BLAKE-256 digest of a 64-bit
// seed.  Two streams reseeded with the same value produce the same output.
// Keyed methods are not safe for concurrent access.
type Keyed struct {
	key    [chacha20.KeySize]byte
	cipher *chacha20.Cipher
}

// New returns a keyed stream seeded from the system entropy source.
func New() *Keyed {
	k := new(Keyed)
	k.Seed()
	return k
}

// NewSeeded returns a keyed stream seeded with the provided value.
func NewSeeded(seed uint64) *Keyed {
	k := new(Keyed)
	k.Reseed(seed)
	return k
}

// Seed reseeds the stream from the system entropy source.
func (k *Keyed) Seed() {
	k.Reseed(rand.Uint64())
}

// Reseed discards the current stream state and restarts the keystream from
// the provided seed.
func (k *Keyed) Reseed(seed uint64) {
	var b [8]byte
	binary.LittleEndian.PutUint64(b[:], seed)
	k.key = blake256.Sum256(b[:])

	// The nonce is always zero since every key is only used for a single
	// keystream.  Never errors with correct key and nonce sizes.
	var nonce [chacha20.NonceSize]byte
	k.cipher, _ = chacha20.NewUnauthenticatedCipher(k.key[:], nonce[:])
}

// Uint64 returns the next uniformly distributed 64-bit value of the stream.
func (k *Keyed) Uint64() uint64 {
	var b [8]byte
	k.cipher.XORKeyStream(b[:], b[:])
	return binary.LittleEndian.Uint64(b[:])
}

// Destroy zeroes the key material.  The stream must be reseeded before it is
// used again.
func (k *Keyed) Destroy() {
	k.key = [chacha20.KeySize]byte{}
	k.cipher = nil
}
