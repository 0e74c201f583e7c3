// Copyright (c) 2026 The peerdir developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/decred/go-socks/socks"
	"github.com/peerdir/peerdird/addrdb"
	"github.com/peerdir/peerdird/internal/version"
)

var cfg *config

// peerdirdMain is the real main function for peerdird.  It is necessary to
// work around the fact that deferred functions do not run when os.Exit() is
// called.
func peerdirdMain() error {
	// Load configuration and parse command line.  This function also
	// initializes logging and configures it accordingly.
	appName := filepath.Base(os.Args[0])
	appName = strings.TrimSuffix(appName, filepath.Ext(appName))
	tcfg, _, err := loadConfig(appName)
	if err != nil {
		usageMessage := fmt.Sprintf("Use %s -h to show usage", appName)
		fmt.Fprintln(os.Stderr, err)
		var e errSuppressUsage
		if !errors.As(err, &e) {
			fmt.Fprintln(os.Stderr, usageMessage)
		}
		return err
	}
	cfg = tcfg
	defer func() {
		if logRotator != nil {
			logRotator.Close()
		}
	}()

	// Get a context that will be canceled when a shutdown signal has been
	// triggered from an OS signal such as SIGINT (Ctrl+C).
	ctx := shutdownListener()
	defer pdrdLog.Info("Shutdown complete")

	// Show version and home dir at startup.
	pdrdLog.Infof("Version %s (Go version %s %s/%s)", version.String(),
		runtime.Version(), runtime.GOOS, runtime.GOARCH)
	pdrdLog.Infof("Home dir: %s", cfg.HomeDir)
	if cfg.NoFileLogging {
		pdrdLog.Info("File logging disabled")
	}

	// Enable http profile server if requested.  The stop call is always
	// deferred to ensure it is stopped during process shutdown.
	var profiler profileServer
	defer profiler.Stop()
	if cfg.Profile != "" {
		if err := profiler.Start(cfg.Profile); err != nil {
			pdrdLog.Warnf("unable to start profile server: %v", err)
			return err
		}
	}

	// Return now if a shutdown signal was triggered.
	if shutdownRequested(ctx) {
		return nil
	}

	// Load the address database.
	dbPath := filepath.Join(cfg.DataDir, defaultAddrDBDirname)
	pdrdLog.Infof("Loading address database from '%s'", dbPath)
	db, err := addrdb.Open(dbPath)
	if err != nil {
		pdrdLog.Errorf("%v", err)
		return err
	}
	defer func() {
		pdrdLog.Infof("Gracefully shutting down the address database...")
		db.Close()
	}()

	// Seeding and the startup addresses need a DNS resolver.  Literal ip
	// addresses still work without one.
	resolver, err := newDNSResolver(cfg.DNSServer, defaultResolvConf)
	if err != nil {
		pdrdLog.Warnf("DNS resolution unavailable: %v", err)
	}

	// Route the seeder queries through the proxy when one is configured so
	// the seeder hostnames are resolved by the proxy as well.
	var dial func(context.Context, string, string) (net.Conn, error)
	if cfg.Proxy != "" {
		proxy := &socks.Proxy{
			Addr:     cfg.Proxy,
			Username: cfg.ProxyUser,
			Password: cfg.ProxyPass,
		}
		dial = proxy.DialContext
		pdrdLog.Infof("Querying seeders via proxy %s", cfg.Proxy)
	}

	// Create server.
	svr, err := newAddrServer(&serverConfig{
		Params:         cfg.params,
		DB:             db,
		Resolver:       resolver,
		Dial:           dial,
		Buckets:        cfg.Buckets,
		MaxBucketAddrs: cfg.MaxBucketAddrs,
		MaxTimeDrift:   cfg.MaxTimeDrift,
		SaveInterval:   cfg.SaveInterval,
		DNSSeeds:       cfg.DNSSeeds,
		AddAddrs:       cfg.AddAddrs,
		NoSeed:         cfg.NoDNSSeed,
		MetricsListen:  cfg.MetricsListen,
	})
	if err != nil {
		pdrdLog.Errorf("Unable to start server: %v", err)
		return err
	}

	if shutdownRequested(ctx) {
		return nil
	}

	// Run the server.  This will block until the context is canceled which
	// happens when the interrupt signal is received.
	svr.Run(ctx)
	srvrLog.Infof("Server shutdown complete")
	return nil
}

func main() {
	// Work around defer not working after os.Exit()
	if err := peerdirdMain(); err != nil {
		os.Exit(1)
	}
}
