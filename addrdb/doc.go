// Copyright (c) 2026 The peerdir developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

/*
Package addrdb persists the addresses known to an address manager in a
leveldb database so they survive restarts.

The database holds a single snapshot.  Saving replaces the previous snapshot
within one transaction and loading replays every stored address, which the
caller then hands to the address manager.

Every address is stored under an 18 byte key formed by its 16 byte ip
followed by its big endian port, prefixed by a single namespace byte.  The
value is 24 bytes:

	services  uint64 little endian
	lastSeen  int64  little endian unix seconds
	penalty   int64  little endian seconds
*/
package addrdb
