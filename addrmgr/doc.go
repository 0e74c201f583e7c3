// Copyright (c) 2026 The peerdir developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

/*
Package addrmgr implements the peer address directory of a node along with
the network time derived from the clocks of its peers.

# Address Manager Overview

Each node must manage a source of addresses to connect to and share with
other nodes.  Remote peers cannot be trusted.  A remote peer might relay
invalid addresses, or worse, only relay addresses it controls in order to
eclipse the node.

With that in mind, the address manager classifies every address into a
network group and places it in one of a fixed number of buckets.  The bucket
is derived from the group and a secret that is drawn when the manager is
created and never leaves it.  Placement is therefore stable and the same for
every address of a group, yet unpredictable to an outside observer, which
bounds how much of the directory a single network operator can ever occupy.

Within a bucket addresses are ranked by their score, the time they were last
seen less any penalty accumulated from failed connections or misbehavior.
Addresses handed out for gossip are drawn round robin across buckets, best
score first, so a flooded bucket cannot dominate a response.  A full bucket
evicts its lowest scored address.

# Network Time

Every peer reports its clock during the handshake.  The manager keeps these
offsets ordered and uses their median as the correction applied to the local
clock as long as it stays within the maximum drift.  When it does not, the
local clock is used unchanged and, if no peer is within five minutes of the
local clock either, the bad time callback warns the operator.

# Concurrency

The address manager is not safe for concurrent access.  It is meant to be
owned by a single goroutine which all other goroutines send their requests
to.  Only the network time offset may be read from any goroutine.
*/
package addrmgr
