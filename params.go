// Copyright (c) 2026 The peerdir developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package main

import (
	"strconv"

	"github.com/decred/dcrd/chaincfg/v3"
)

// params is used to group parameters for the various networks such as the
// main network and test networks.
type params struct {
	*chaincfg.Params
}

// mainNetParams contains parameters specific to the main network
// (wire.MainNet).
var mainNetParams = params{
	Params: chaincfg.MainNetParams(),
}

// testNet3Params contains parameters specific to the test network (version 3)
// (wire.TestNet3).
var testNet3Params = params{
	Params: chaincfg.TestNet3Params(),
}

// simNetParams contains parameters specific to the simulation test network
// (wire.SimNet).
var simNetParams = params{
	Params: chaincfg.SimNetParams(),
}

// regNetParams contains parameters specific to the regression test
// network (wire.RegNet).
var regNetParams = params{
	Params: chaincfg.RegNetParams(),
}

// defaultPort returns the numeric default peer-to-peer port of the network.
func (p *params) defaultPort() uint16 {
	port, err := strconv.ParseUint(p.DefaultPort, 10, 16)
	if err != nil {
		return 0
	}
	return uint16(port)
}
