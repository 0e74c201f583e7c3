// Copyright (c) 2026 The peerdir developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package sampleconfig

import (
	_ "embed"
)

// samplePeerdirdConf is a string containing the commented example config for
// peerdird.
//
//go:embed sample-peerdird.conf
var samplePeerdirdConf string

// Peerdird returns a string containing the commented example config for
// peerdird.
func Peerdird() string {
	return samplePeerdirdConf
}
