// Copyright (c) 2026 The peerdir developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// This file changes the default GODEBUG values when building with newer
// releases of Go to enable the new features and security updates that are not
// strictly backwards compatible.
//
// WARNING: Do not blindly update this with each new Go release.  It needs to
// be analyzed with each new release before updating.

//go:build go1.25

//go:debug default=go1.25

package main
