// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package clipstore

import (
	"encoding/hex"
	"errors"
	"fmt"
	"sync"

	"github.com/zeebo/blake3"

	"github.com/bureau-foundation/deskshare/protocol"
)

// Digest is the BLAKE3-256 hash of a marshalled clipboard.
type Digest [32]byte

// String returns the hex digest.
func (d Digest) String() string {
	return hex.EncodeToString(d[:])
}

// Short returns the first 12 hex digits, for logs.
func (d Digest) Short() string {
	return hex.EncodeToString(d[:6])
}

// IsZero reports whether d is the zero digest.
func (d Digest) IsZero() bool {
	return d == Digest{}
}

// MarshalText implements encoding.TextMarshaler.
func (d Digest) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

// ParseDigest parses the form produced by String.
func ParseDigest(text string) (Digest, error) {
	var digest Digest
	decoded, err := hex.DecodeString(text)
	if err != nil {
		return Digest{}, fmt.Errorf("parsing digest: %w", err)
	}
	if len(decoded) != len(digest) {
		return Digest{}, fmt.Errorf("parsing digest: %d bytes, want %d", len(decoded), len(digest))
	}
	copy(digest[:], decoded)
	return digest, nil
}

// Sum returns the digest of a marshalled clipboard.
func Sum(marshalled []byte) Digest {
	return Digest(blake3.Sum256(marshalled))
}

// DefaultMaxBytes bounds a store created with a non-positive limit.
const DefaultMaxBytes = 64 * 1024 * 1024

// ErrNotFound is returned by Get for unknown or evicted digests.
var ErrNotFound = errors.New("clipboard not found")

type entry struct {
	compression Compression
	data        []byte
	size        int
}

// Store is a bounded, content-addressed clipboard store, safe for
// concurrent use.
type Store struct {
	mu       sync.Mutex
	maxBytes int64
	stored   int64
	entries  map[Digest]*entry
	// order lists digests oldest first.
	order []Digest
}

// New returns a store holding at most maxBytes of compressed data. The
// newest entry is always kept, even if it alone exceeds the limit.
func New(maxBytes int64) *Store {
	if maxBytes <= 0 {
		maxBytes = DefaultMaxBytes
	}
	return &Store{
		maxBytes: maxBytes,
		entries:  make(map[Digest]*entry),
	}
}

// Put stores clipboard and returns its digest. Storing content that is
// already present refreshes its age and costs no space.
func (s *Store) Put(clipboard protocol.Clipboard) (Digest, error) {
	marshalled := clipboard.Marshal()
	digest := Sum(marshalled)

	s.mu.Lock()
	if _, exists := s.entries[digest]; exists {
		s.touch(digest)
		s.mu.Unlock()
		return digest, nil
	}
	s.mu.Unlock()

	algorithm := choose(clipboard, len(marshalled))
	data, err := compress(marshalled, algorithm)
	if errors.Is(err, errIncompressible) {
		algorithm, data, err = CompressionNone, marshalled, nil
	}
	if err != nil {
		return Digest{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.entries[digest]; exists {
		s.touch(digest)
		return digest, nil
	}
	s.entries[digest] = &entry{compression: algorithm, data: data, size: len(marshalled)}
	s.order = append(s.order, digest)
	s.stored += int64(len(data))
	s.evict()
	return digest, nil
}

// Get returns the clipboard stored under digest.
func (s *Store) Get(digest Digest) (protocol.Clipboard, error) {
	s.mu.Lock()
	stored, ok := s.entries[digest]
	s.mu.Unlock()
	if !ok {
		return protocol.Clipboard{}, fmt.Errorf("%w: %s", ErrNotFound, digest.Short())
	}
	marshalled, err := decompress(stored.data, stored.compression, stored.size)
	if err != nil {
		return protocol.Clipboard{}, fmt.Errorf("clipboard %s: %w", digest.Short(), err)
	}
	return protocol.UnmarshalClipboard(marshalled)
}

// Len returns the number of stored clipboards.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

// StoredBytes returns the compressed size of all entries.
func (s *Store) StoredBytes() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stored
}

// choose picks a compression algorithm from the clipboard's formats.
func choose(clipboard protocol.Clipboard, size int) Compression {
	if size < minCompressSize {
		return CompressionNone
	}
	if _, ok := clipboard.Formats[protocol.FormatBitmap]; ok {
		return CompressionLZ4
	}
	return CompressionZstd
}

// touch must be called with s.mu held.
func (s *Store) touch(digest Digest) {
	for i, candidate := range s.order {
		if candidate == digest {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
	s.order = append(s.order, digest)
}

// evict must be called with s.mu held.
func (s *Store) evict() {
	for s.stored > s.maxBytes && len(s.order) > 1 {
		oldest := s.order[0]
		s.order = s.order[1:]
		s.stored -= int64(len(s.entries[oldest].data))
		delete(s.entries, oldest)
	}
}
