// Copyright (c) 2026 The peerdir developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

/*
peerdird maintains a directory of the network addresses of Decred peers along
with the network time derived from the clocks of its connected peers.

Addresses are discovered through the seeders of the selected network, any
configured DNS seeds, and addresses added at startup.  They are spread over a
fixed number of buckets keyed by their network group and a secret so a single
operator can not crowd out the rest of the network.  The directory is saved to
disk periodically and on shutdown.

The long form of all options (except -C) can be specified in a configuration
file that is automatically parsed when peerdird starts up.  By default, the
configuration file is located at ~/.peerdird/peerdird.conf on POSIX-style
operating systems and %LOCALAPPDATA%\peerdird\peerdird.conf on Windows.  The -C
(--configfile) flag, as shown below, can be used to override this location.

Usage:

	peerdird [OPTIONS]

Application Options:

	-V, --version         Display version information and exit
	-A, --appdata=        Path to application home directory
	-C, --configfile=     Path to configuration file
	-b, --datadir=        Directory to store data
	    --testnet         Use the test network
	    --simnet          Use the simulation test network
	    --regnet          Use the regression test network
	    --logdir=         Directory to log output
	    --nofilelogging   Disable file logging
	    --maxlogzips=     The number of zipped log files created by the log
	                      rotator to be retained (default: 3)
	-d, --debuglevel=     Logging level for all subsystems {trace, debug, info,
	                      warn, error, critical} -- You may also specify
	                      <subsystem>=<level>,<subsystem2>=<level>,... to set
	                      the log level for individual subsystems -- Use show
	                      to list available subsystems (info)
	    --buckets=        Number of buckets addresses are spread over
	                      (default: 255)
	    --maxbucketaddrs= Maximum number of addresses held by a single bucket
	                      (default: 64)
	    --maxtimedrift=   Largest median peer clock offset that is trusted
	                      (default: 1h10m0s)
	    --addaddr=        Add a host:port address at startup
	    --saveinterval=   Interval between saves of the known addresses to
	                      disk (default: 10m0s)
	    --nodnsseed       Disable seeding for address discovery
	    --dnsserver=      DNS server host:port used to resolve seeds
	    --dnsseed=        Additional DNS seed hostname to query for addresses
	    --proxy=          Connect to the seeders via SOCKS5 proxy (eg.
	                      127.0.0.1:9050)
	    --proxyuser=      Username for proxy server
	    --proxypass=      Password for proxy server
	    --metricslisten=  Interface/port to serve prometheus metrics on
	    --profile=        Enable HTTP profiling on given [addr:]port -- NOTE
	                      port must be between 1024 and 65535

Help Options:

	-h, --help            Show this help message
*/
package main
