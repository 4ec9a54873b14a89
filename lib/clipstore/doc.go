// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package clipstore keeps the clipboard contents screens have published,
// addressed by BLAKE3 digest of the marshalled clipboard.
//
// Clipboard change events carry a [Digest] rather than the content, so
// the dispatch path stays cheap and the server fetches the bytes only
// when it actually forwards a clipboard to another screen. Identical
// content published by several screens (or republished after a grab) is
// stored once.
//
// Entries are compressed on the way in: zstd for text-like content,
// LZ4 when a bitmap is present, and stored raw when compression does not
// pay. The store is bounded by compressed bytes and evicts oldest first.
package clipstore
