// Copyright (c) 2026 The peerdir developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package main

import (
	"context"
	"errors"
	"net"
	"sync"
	"time"

	"github.com/decred/dcrd/container/lru"
	"github.com/decred/dcrd/wire"
	"github.com/peerdir/peerdird/addrdb"
	"github.com/peerdir/peerdird/addrmgr"
)

const (
	// maxKnownAddrsPerPeer is the maximum number of addresses remembered as
	// known to a single peer.  Addresses known to a peer are not gossiped
	// back to it.
	maxKnownAddrsPerPeer = 10000

	// maxFutureLastSeen is how far in the future a gossiped last seen time
	// may be before it is distrusted.
	maxFutureLastSeen = 10 * time.Minute

	// distrustedLastSeenAge is the age given to addresses gossiped with a
	// last seen time too far in the future so they are among the first to
	// be evicted.
	distrustedLastSeenAge = 5 * 24 * time.Hour
)

// serverConfig houses the parameters of an addrServer.
type serverConfig struct {
	Params         *params
	DB             *addrdb.DB
	Resolver       *dnsResolver
	Dial           func(context.Context, string, string) (net.Conn, error)
	Buckets        uint32
	MaxBucketAddrs uint32
	MaxTimeDrift   time.Duration
	SaveInterval   time.Duration
	DNSSeeds       []string
	AddAddrs       []string
	NoSeed         bool
	MetricsListen  string
}

// addrServer is the address directory of a node.  It owns the address manager
// and serializes every request to it through a single handler goroutine.
// Its exported methods are safe for concurrent access.
type addrServer struct {
	cfg      serverConfig
	params   *params
	db       *addrdb.DB
	resolver *dnsResolver
	dial     func(context.Context, string, string) (net.Conn, error)
	amgr     *addrmgr.AddrManager
	metrics  *dirMetrics

	// knownAddrs holds the addresses known to every connected peer keyed
	// by the address of the peer.  It is only accessed by the handler.
	knownAddrs map[string]*lru.Set[string]

	query chan interface{}
	quit  chan struct{}
}

// addAddrsMsg adds addresses to the directory.  When source is not empty the
// addresses are also remembered as known to that peer.
type addAddrsMsg struct {
	source string
	addrs  []*addrmgr.NetAddress
	reply  chan int
}

// peerConnectedMsg starts tracking a peer after a successful handshake.
type peerConnectedMsg struct {
	na         *addrmgr.NetAddress
	timeOffset time.Duration
	reply      chan error
}

// peerDisconnectedMsg stops tracking a peer.
type peerDisconnectedMsg struct {
	na    *addrmgr.NetAddress
	reply chan bool
}

// getAddrMsg builds a gossip response for a peer.
type getAddrMsg struct {
	peer  string
	reply chan *wire.MsgAddr
}

// selectAddrMsg selects an address to connect to.
type selectAddrMsg struct {
	reply chan *addrmgr.NetAddress
}

// penalizeMsg penalizes an address that misbehaved or failed to connect.
type penalizeMsg struct {
	na     *addrmgr.NetAddress
	amount time.Duration
	reply  chan bool
}

// dirCounts describes the size of the directory.
type dirCounts struct {
	addresses   int
	peers       int
	timeOffsets int
}

// getCountsMsg returns the size of the directory.
type getCountsMsg struct {
	reply chan dirCounts
}

// newAddrServer returns an address directory configured by cfg and restores
// the addresses stored in its database.
func newAddrServer(cfg *serverConfig) (*addrServer, error) {
	s := &addrServer{
		cfg:        *cfg,
		params:     cfg.Params,
		db:         cfg.DB,
		resolver:   cfg.Resolver,
		dial:       cfg.Dial,
		knownAddrs: make(map[string]*lru.Set[string]),
		query:      make(chan interface{}),
		quit:       make(chan struct{}),
	}
	if s.dial == nil {
		s.dial = s.resolver.Dial
	}
	amgr, err := addrmgr.New(&addrmgr.Config{
		BucketCount:          cfg.Buckets,
		MaxAddressesInBucket: cfg.MaxBucketAddrs,
		MaxTimeDrift:         cfg.MaxTimeDrift,
		OnBadTime:            s.onBadTime,
	})
	if err != nil {
		return nil, err
	}
	s.amgr = amgr
	s.metrics = newDirMetrics(amgr)

	if s.db != nil {
		if err := s.loadAddresses(); err != nil {
			amgr.Close()
			return nil, err
		}
	}
	return s, nil
}

// loadAddresses adds every address of the database to the address manager.
func (s *addrServer) loadAddresses() error {
	var loaded, skipped uint64
	err := s.db.ForEach(func(na *addrmgr.NetAddress) error {
		if err := s.amgr.AddAddress(na); err != nil {
			srvrLog.Debugf("Skipping stored address %s: %v", na, err)
			skipped++
			return nil
		}
		loaded++
		return nil
	})
	if err != nil {
		return err
	}
	srvrLog.Infof("Loaded %d %s from disk (%d skipped)", loaded,
		pickNoun(loaded, "address", "addresses"), skipped)
	s.metrics.update(s.amgr)
	return nil
}

// saveAddresses writes the known addresses to the database.  It must be
// called from the handler goroutine.
func (s *addrServer) saveAddresses() {
	if s.db == nil {
		return
	}
	addrs := make([]*addrmgr.NetAddress, 0, s.amgr.NumAddresses())
	s.amgr.ForEachAddress(func(na *addrmgr.NetAddress) {
		addrs = append(addrs, na)
	})
	if err := s.db.Save(addrs); err != nil {
		srvrLog.Errorf("Unable to save addresses: %v", err)
		return
	}
	s.metrics.saves.Inc()
}

// onBadTime is invoked by the address manager when the clocks of the peers
// disagree with the local clock.
func (s *addrServer) onBadTime(median time.Duration) {
	srvrLog.Warnf("Network time unavailable: the peers report a median "+
		"clock offset of %v", median)
	s.metrics.badTimeEvents.Inc()
}

// rememberKnown records the passed addresses as known to peer.
func (s *addrServer) rememberKnown(peer string, addrs []*addrmgr.NetAddress) {
	known, ok := s.knownAddrs[peer]
	if !ok {
		return
	}
	for _, na := range addrs {
		known.Put(na.Key())
	}
}

// handleAddAddrs adds addresses to the address manager and returns the number
// of accepted addresses.
func (s *addrServer) handleAddAddrs(msg *addAddrsMsg) int {
	if msg.source != "" {
		s.rememberKnown(msg.source, msg.addrs)
	}
	var added int
	for _, na := range msg.addrs {
		err := s.amgr.AddAddress(na)
		if err != nil {
			srvrLog.Tracef("Address %s refused: %v", na, err)
			s.metrics.rejected.WithLabelValues(rejectReason(err)).Inc()
			continue
		}
		added++
	}
	s.metrics.added.Add(float64(added))
	if added > 0 {
		srvrLog.Debugf("Added %d of %d addresses (total %d)", added,
			len(msg.addrs), s.amgr.NumAddresses())
	}
	return added
}

// handlePeerConnected tracks a peer and refreshes the last seen time of its
// address.
func (s *addrServer) handlePeerConnected(msg *peerConnectedMsg) error {
	p := addrmgr.NewPeerWithTimeOffset(msg.na, msg.timeOffset)
	if err := s.amgr.AddPeer(p); err != nil {
		return err
	}
	s.amgr.MarkSeen(msg.na, time.Now())
	s.knownAddrs[msg.na.Key()] = lru.NewSet[string](maxKnownAddrsPerPeer)
	srvrLog.Debugf("New peer %s (time offset %v)", msg.na, msg.timeOffset)
	return nil
}

// handlePeerDisconnected stops tracking a peer.
func (s *addrServer) handlePeerDisconnected(msg *peerDisconnectedMsg) bool {
	delete(s.knownAddrs, msg.na.Key())
	p := s.amgr.GetPeer(msg.na.IP(), msg.na.Port())
	if p == nil {
		return false
	}
	removed := s.amgr.RemovePeer(p)
	srvrLog.Debugf("Removed peer %s", msg.na)
	return removed
}

// handleGetAddr builds a gossip response for a peer leaving out the addresses
// it already knows.
func (s *addrServer) handleGetAddr(msg *getAddrMsg) *wire.MsgAddr {
	addrMsg := wire.NewMsgAddr()
	known := s.knownAddrs[msg.peer]
	for _, na := range s.amgr.GetAddressesForGossip(wire.MaxAddrPerMsg) {
		key := na.Key()
		if key == msg.peer {
			continue
		}
		if known != nil {
			if known.Contains(key) {
				continue
			}
			known.Put(key)
		}
		if err := addrMsg.AddAddress(na.ToWire()); err != nil {
			break
		}
	}
	return addrMsg
}

// handleQuery dispatches a request to the address manager.  It must be called
// from the handler goroutine.
func (s *addrServer) handleQuery(querymsg interface{}) {
	switch msg := querymsg.(type) {
	case addAddrsMsg:
		msg.reply <- s.handleAddAddrs(&msg)

	case peerConnectedMsg:
		msg.reply <- s.handlePeerConnected(&msg)

	case peerDisconnectedMsg:
		msg.reply <- s.handlePeerDisconnected(&msg)

	case getAddrMsg:
		msg.reply <- s.handleGetAddr(&msg)

	case selectAddrMsg:
		na := s.amgr.SelectForConnection()
		if na != nil {
			s.metrics.selected.Inc()
		}
		msg.reply <- na

	case penalizeMsg:
		msg.reply <- s.amgr.ApplyPenalty(msg.na, msg.amount)

	case getCountsMsg:
		msg.reply <- dirCounts{
			addresses:   s.amgr.NumAddresses(),
			peers:       s.amgr.NumPeers(),
			timeOffsets: s.amgr.NumTimeOffsets(),
		}
	}
	s.metrics.update(s.amgr)
}

// addrHandler serializes all access to the address manager.  It saves the
// known addresses periodically and once more when the context is canceled.
//
// It must be run in a goroutine.
func (s *addrServer) addrHandler(ctx context.Context) {
	srvrLog.Tracef("Starting address handler")
	saveTicker := time.NewTicker(s.cfg.SaveInterval)
	defer saveTicker.Stop()

out:
	for {
		select {
		case m := <-s.query:
			s.handleQuery(m)

		case <-saveTicker.C:
			s.saveAddresses()

		case <-ctx.Done():
			break out
		}
	}

	close(s.quit)
	s.saveAddresses()
	s.amgr.Close()
	srvrLog.Tracef("Address handler done")
}

// sendQuery hands a request to the handler.  It returns false when the
// handler is no longer running.
func (s *addrServer) sendQuery(msg interface{}) bool {
	select {
	case s.query <- msg:
		return true
	case <-s.quit:
		return false
	}
}

// AddAddresses adds the passed addresses to the directory and returns the
// number of accepted addresses.
//
// This function is safe for concurrent access.
func (s *addrServer) AddAddresses(addrs []*addrmgr.NetAddress) int {
	reply := make(chan int, 1)
	if !s.sendQuery(addAddrsMsg{addrs: addrs, reply: reply}) {
		return 0
	}
	return <-reply
}

// OnAddr adds the addresses gossiped by peer.  Last seen times too far in
// the future are distrusted.
//
// This function is safe for concurrent access.
func (s *addrServer) OnAddr(peer *addrmgr.NetAddress, msg *wire.MsgAddr) int {
	now := time.Now()
	addrs := make([]*addrmgr.NetAddress, 0, len(msg.AddrList))
	for _, wna := range msg.AddrList {
		ts := wna.Timestamp
		if ts.After(now.Add(maxFutureLastSeen)) {
			ts = now.Add(-distrustedLastSeenAge)
		}
		addrs = append(addrs, addrmgr.NewNetAddress(wna.IP, wna.Port,
			wna.Services, ts))
	}
	reply := make(chan int, 1)
	msgAdd := addAddrsMsg{source: peer.Key(), addrs: addrs, reply: reply}
	if !s.sendQuery(msgAdd) {
		return 0
	}
	return <-reply
}

// OnGetAddr returns the addresses to gossip to peer.
//
// This function is safe for concurrent access.
func (s *addrServer) OnGetAddr(peer *addrmgr.NetAddress) *wire.MsgAddr {
	reply := make(chan *wire.MsgAddr, 1)
	if !s.sendQuery(getAddrMsg{peer: peer.Key(), reply: reply}) {
		return wire.NewMsgAddr()
	}
	return <-reply
}

// PeerConnected starts tracking a peer that completed its handshake and
// reported the given clock offset.
//
// This function is safe for concurrent access.
func (s *addrServer) PeerConnected(na *addrmgr.NetAddress, timeOffset time.Duration) error {
	reply := make(chan error, 1)
	msg := peerConnectedMsg{na: na, timeOffset: timeOffset, reply: reply}
	if !s.sendQuery(msg) {
		return errServerShutdown
	}
	return <-reply
}

// PeerDisconnected stops tracking a peer.  It returns whether the peer was
// tracked.
//
// This function is safe for concurrent access.
func (s *addrServer) PeerDisconnected(na *addrmgr.NetAddress) bool {
	reply := make(chan bool, 1)
	if !s.sendQuery(peerDisconnectedMsg{na: na, reply: reply}) {
		return false
	}
	return <-reply
}

// SelectForConnection removes and returns an address to connect to, or nil
// when the directory is empty.
//
// This function is safe for concurrent access.
func (s *addrServer) SelectForConnection() *addrmgr.NetAddress {
	reply := make(chan *addrmgr.NetAddress, 1)
	if !s.sendQuery(selectAddrMsg{reply: reply}) {
		return nil
	}
	return <-reply
}

// Penalize lowers the score of a known address.  It returns whether the
// address is known.
//
// This function is safe for concurrent access.
func (s *addrServer) Penalize(na *addrmgr.NetAddress, amount time.Duration) bool {
	reply := make(chan bool, 1)
	if !s.sendQuery(penalizeMsg{na: na, amount: amount, reply: reply}) {
		return false
	}
	return <-reply
}

// Counts returns the size of the directory.
//
// This function is safe for concurrent access.
func (s *addrServer) Counts() dirCounts {
	reply := make(chan dirCounts, 1)
	if !s.sendQuery(getCountsMsg{reply: reply}) {
		return dirCounts{}
	}
	return <-reply
}

// NetworkTime returns the local clock adjusted by the network time offset.
//
// This function is safe for concurrent access.
func (s *addrServer) NetworkTime() time.Time {
	return s.amgr.NetworkTime()
}

// errServerShutdown indicates the server is shutting down.
var errServerShutdown = errors.New("server is shutting down")

// Run starts the address handler along with seeding and the metrics server
// and blocks until the provided context is canceled.
func (s *addrServer) Run(ctx context.Context) {
	srvrLog.Trace("Starting server")

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		s.addrHandler(ctx)
		wg.Done()
	}()

	if s.cfg.MetricsListen != "" {
		wg.Add(1)
		go func() {
			err := s.metrics.serveMetrics(ctx, s.cfg.MetricsListen)
			if err != nil {
				srvrLog.Errorf("Metrics server: %v", err)
			}
			wg.Done()
		}()
	}

	wg.Add(1)
	go func() {
		defer wg.Done()
		if len(s.cfg.AddAddrs) > 0 {
			added := s.AddAddresses(s.resolveAddrs(ctx, s.cfg.AddAddrs))
			srvrLog.Infof("Added %d startup %s", added,
				pickNoun(uint64(added), "address", "addresses"))
		}
		if s.cfg.NoSeed {
			return
		}
		s.querySeeders(ctx)
		s.seedFromDNS(ctx, s.cfg.DNSSeeds)
		counts := s.Counts()
		srvrLog.Infof("Seeding complete: %d known %s", counts.addresses,
			pickNoun(uint64(counts.addresses), "address", "addresses"))
	}()

	<-ctx.Done()
	srvrLog.Warnf("Server shutting down")
	wg.Wait()
	srvrLog.Trace("Server stopped")
}
