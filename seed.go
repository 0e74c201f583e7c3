// Copyright (c) 2026 The peerdir developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/decred/dcrd/connmgr/v3"
	"github.com/decred/dcrd/crypto/rand"
	"github.com/decred/dcrd/wire"
	"github.com/miekg/dns"
	"github.com/peerdir/peerdird/addrmgr"
)

const (
	// seedLastSeenMin and seedLastSeenSpread define the window a last seen
	// time is randomly picked from for addresses returned by DNS seeds.
	// They end up between three and seven days ago so real observations
	// take precedence.
	seedLastSeenMin    = 3 * 24 * time.Hour
	seedLastSeenSpread = 4 * 24 * time.Hour

	// dnsTimeout is the timeout of a single DNS exchange.
	dnsTimeout = 10 * time.Second

	// seederTimeout is the timeout of a single seeder query.
	seederTimeout = time.Minute

	// defaultRequiredServices are the services seeded addresses must
	// advertise.
	defaultRequiredServices = wire.SFNodeNetwork
)

// errNoNameserver indicates no DNS server is configured.
var errNoNameserver = errors.New("no DNS nameserver configured")

// dnsResolver resolves hostnames against a single DNS server.
type dnsResolver struct {
	server string
	client *dns.Client
}

// newDNSResolver returns a resolver querying server.  The first nameserver of
// resolvConf is used when server is empty.
func newDNSResolver(server, resolvConf string) (*dnsResolver, error) {
	if server == "" {
		conf, err := dns.ClientConfigFromFile(resolvConf)
		if err != nil {
			return nil, fmt.Errorf("reading %s: %w", resolvConf, err)
		}
		if len(conf.Servers) == 0 {
			return nil, errNoNameserver
		}
		server = net.JoinHostPort(conf.Servers[0], conf.Port)
	}
	return &dnsResolver{
		server: server,
		client: &dns.Client{Timeout: dnsTimeout},
	}, nil
}

// query returns the addresses of the passed record type held by host.
func (r *dnsResolver) query(ctx context.Context, host string, qtype uint16) ([]net.IP, error) {
	msg := new(dns.Msg)
	msg.SetQuestion(dns.Fqdn(host), qtype)
	msg.RecursionDesired = true
	resp, _, err := r.client.ExchangeContext(ctx, msg, r.server)
	if err != nil {
		return nil, err
	}
	if resp.Rcode != dns.RcodeSuccess {
		return nil, fmt.Errorf("unsuccessful %s query for %s: %s",
			dns.TypeToString[qtype], host, dns.RcodeToString[resp.Rcode])
	}

	var ips []net.IP
	for _, rr := range resp.Answer {
		switch rr := rr.(type) {
		case *dns.A:
			ips = append(ips, rr.A)
		case *dns.AAAA:
			ips = append(ips, rr.AAAA)
		}
	}
	return ips, nil
}

// Lookup returns the IPv4 and IPv6 addresses of host.  An ip literal is
// returned as is, even by a nil resolver.
func (r *dnsResolver) Lookup(ctx context.Context, host string) ([]net.IP, error) {
	if ip := net.ParseIP(host); ip != nil {
		return []net.IP{ip}, nil
	}
	if r == nil {
		return nil, errNoNameserver
	}
	ips4, err4 := r.query(ctx, host, dns.TypeA)
	ips6, err6 := r.query(ctx, host, dns.TypeAAAA)
	if err4 != nil && err6 != nil {
		return nil, err4
	}
	return append(ips4, ips6...), nil
}

// Dial connects to addr resolving its host through the resolver.
func (r *dnsResolver) Dial(ctx context.Context, network, addr string) (net.Conn, error) {
	host, port, err := net.SplitHostPort(addr)
	if err != nil {
		return nil, err
	}
	ips, err := r.Lookup(ctx, host)
	if err != nil {
		return nil, err
	}
	if len(ips) == 0 {
		return nil, fmt.Errorf("no addresses found for %s", host)
	}
	var d net.Dialer
	return d.DialContext(ctx, network, net.JoinHostPort(ips[0].String(),
		port))
}

// seedLastSeen returns a random last seen time between three and seven days
// before now.
func seedLastSeen(now time.Time) time.Time {
	return now.Add(-seedLastSeenMin - rand.Duration(seedLastSeenSpread))
}

// querySeeders queries the seeders of the network for addresses of peers that
// support the required services and adds them to the directory.  Each seeder
// is contacted in a separate goroutine.
func (s *addrServer) querySeeders(ctx context.Context) {
	seeders := s.params.Seeders()
	var wg sync.WaitGroup
	wg.Add(len(seeders))
	for _, seeder := range seeders {
		go func(seeder string) {
			defer wg.Done()
			ctx, cancel := context.WithTimeout(ctx, seederTimeout)
			defer cancel()

			addrs, err := connmgr.SeedAddrs(ctx, seeder, s.dial,
				connmgr.SeedFilterServices(defaultRequiredServices))
			if err != nil {
				seedLog.Infof("Seeder %s error: %v", seeder, err)
				return
			}
			seedLog.Infof("%d addresses found from seeder %s", len(addrs),
				seeder)
			if len(addrs) == 0 {
				return
			}
			nas := make([]*addrmgr.NetAddress, 0, len(addrs))
			for _, addr := range addrs {
				nas = append(nas, addrmgr.NewNetAddressFromWire(addr))
			}
			s.AddAddresses(nas)
		}(seeder)
	}
	wg.Wait()
}

// seedFromDNS resolves every DNS seed and adds the returned addresses with the
// default port of the network to the directory.  Each seed is resolved in a
// separate goroutine.
func (s *addrServer) seedFromDNS(ctx context.Context, seeds []string) {
	defaultPort := s.params.defaultPort()
	var wg sync.WaitGroup
	wg.Add(len(seeds))
	for _, seed := range seeds {
		go func(host string) {
			defer wg.Done()
			ips, err := s.resolver.Lookup(ctx, host)
			if err != nil {
				seedLog.Infof("DNS discovery failed on seed %s: %v", host, err)
				return
			}
			seedLog.Infof("%d addresses found from DNS seed %s", len(ips), host)
			if len(ips) == 0 {
				return
			}
			now := time.Now()
			nas := make([]*addrmgr.NetAddress, 0, len(ips))
			for _, ip := range ips {
				nas = append(nas, addrmgr.NewNetAddress(ip, defaultPort,
					defaultRequiredServices, seedLastSeen(now)))
			}
			s.AddAddresses(nas)
		}(strings.TrimSuffix(seed, "."))
	}
	wg.Wait()
}

// resolveAddrs resolves host:port pairs into addresses.  Hosts that can not be
// resolved are logged and skipped.
func (s *addrServer) resolveAddrs(ctx context.Context, hostPorts []string) []*addrmgr.NetAddress {
	var nas []*addrmgr.NetAddress
	now := time.Now()
	for _, hostPort := range hostPorts {
		host, portStr, err := net.SplitHostPort(hostPort)
		if err != nil {
			seedLog.Warnf("Invalid address %s: %v", hostPort, err)
			continue
		}
		port, err := strconv.ParseUint(portStr, 10, 16)
		if err != nil {
			seedLog.Warnf("Invalid port in address %s: %v", hostPort, err)
			continue
		}
		ips, err := s.resolver.Lookup(ctx, host)
		if err != nil {
			seedLog.Warnf("Unable to resolve %s: %v", host, err)
			continue
		}
		for _, ip := range ips {
			nas = append(nas, addrmgr.NewNetAddress(ip, uint16(port),
				defaultRequiredServices, now))
		}
	}
	return nas
}
