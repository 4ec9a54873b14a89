// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package codec holds the CBOR configuration of the admin socket.
//
// The screen protocol has its own binary format (see package protocol);
// CBOR is used only between the server and its local tooling. Both
// sides go through this package so they encode identically. The
// encoder uses Core Deterministic Encoding (RFC 8949 §4.2), so the same
// value always produces the same bytes.
//
//	encoder := codec.NewEncoder(conn)
//	decoder := codec.NewDecoder(conn)
//
// Struct tags follow one rule: `cbor` tags mark types that only ever
// travel as CBOR (the response envelope); `json` tags mark types the
// command line also prints as JSON (screen listings, clipboard
// content). fxamacker/cbor reads `json` tags when `cbor` tags are
// absent. Never put both on one field.
package codec
