// Vicinus - Collaborative Filtering Recommendation Service
// Copyright 2026 T. Markell (tmarkell)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tmarkell/vicinus

// Package artifact persists trained models as versioned blobs.
//
// Each artifact is a gob-encoded envelope holding metadata (format version,
// training parameters, counts, checksum) and a gzip-compressed gob payload.
// Files are named {algorithm}_v{N}.gob.gz; N increases monotonically per
// algorithm. Writes go to a temporary file in the same directory and are
// renamed into place, so readers never observe a partial artifact.
//
// Integrity failures surface as the recommend package sentinels: a payload
// that fails checksum verification or decoding is ErrArtifactCorrupt; an
// envelope written with an unknown format version is ErrVersionMismatch.
package artifact

import (
	"bytes"
	"compress/gzip"
	"context"
	"crypto/sha256"
	"encoding/gob"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/tmarkell/vicinus/internal/metrics"
	"github.com/tmarkell/vicinus/internal/recommend"
)

// FormatVersion tags every artifact envelope. Readers reject envelopes
// written with a different version.
const FormatVersion = 1

// suffix is the artifact file extension.
const suffix = ".gob.gz"

// Metadata describes a persisted model.
type Metadata struct {
	// FormatVersion is the envelope format tag, set by Save.
	FormatVersion int `json:"format_version"`

	// Algorithm is the canonical name of the strategy that produced the
	// model.
	Algorithm string `json:"algorithm"`

	// Version is the artifact version number, set by Save.
	Version int `json:"version"`

	// Method is the similarity measure used for training.
	Method string `json:"method,omitempty"`

	// MinSimilarity is the neighbor score floor used for training.
	MinSimilarity float64 `json:"min_similarity,omitempty"`

	// TopN is the per-item neighbor cap used for training.
	TopN int `json:"top_n,omitempty"`

	// MinInteractions is the item filter threshold used for training.
	MinInteractions int `json:"min_interactions,omitempty"`

	// Users, Items and Interactions count the training set after
	// filtering.
	Users        int `json:"users"`
	Items        int `json:"items"`
	Interactions int `json:"interactions"`

	// Neighbors is the total number of neighbor entries in the model.
	Neighbors int `json:"neighbors"`

	// TrainedAt is when the model was trained.
	TrainedAt time.Time `json:"trained_at"`

	// SavedAt is when the artifact was written.
	SavedAt time.Time `json:"saved_at"`

	// Checksum is the SHA-256 of the uncompressed payload.
	Checksum string `json:"checksum"`

	// SizeBytes is the compressed payload size.
	SizeBytes int64 `json:"size_bytes"`
}

// storedArtifact is the on-disk envelope.
type storedArtifact struct {
	Metadata Metadata
	Payload  []byte // gzip-compressed gob payload
}

// Store manages artifact files under a single directory. It is safe for
// concurrent use.
type Store struct {
	dir string

	mu sync.RWMutex
	// latest version per algorithm, maintained from directory scans and
	// saves
	versions map[string]int
}

// NewStore opens (creating if needed) an artifact directory and indexes the
// existing versions.
func NewStore(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o750); err != nil { //nolint:gosec // 0750 is acceptable for model storage
		return nil, fmt.Errorf("create artifact directory: %w", err)
	}

	s := &Store{
		dir:      dir,
		versions: make(map[string]int),
	}
	if err := s.scan(); err != nil {
		return nil, fmt.Errorf("scan artifact directory: %w", err)
	}
	return s, nil
}

// scan indexes the latest version per algorithm from the directory.
func (s *Store) scan() error {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return err
	}

	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		algorithm, version, ok := parseFilename(entry.Name())
		if !ok {
			continue
		}
		if version > s.versions[algorithm] {
			s.versions[algorithm] = version
		}
	}
	return nil
}

// parseFilename splits "{algorithm}_v{N}.gob.gz" into its parts.
func parseFilename(name string) (algorithm string, version int, ok bool) {
	if !strings.HasSuffix(name, suffix) {
		return "", 0, false
	}
	base := strings.TrimSuffix(name, suffix)

	idx := strings.LastIndex(base, "_v")
	if idx < 1 {
		return "", 0, false
	}

	version, err := strconv.Atoi(base[idx+2:])
	if err != nil || version < 1 {
		return "", 0, false
	}
	return base[:idx], version, true
}

// path returns the file path for an algorithm version.
func (s *Store) path(algorithm string, version int) string {
	return filepath.Join(s.dir, fmt.Sprintf("%s_v%d%s", algorithm, version, suffix))
}

// Save persists a model under the next version for its algorithm and returns
// the stamped metadata. The write is atomic: a temporary file in the
// artifact directory is renamed into place.
func (s *Store) Save(ctx context.Context, meta Metadata, payload any) (Metadata, error) {
	if meta.Algorithm == "" {
		return meta, fmt.Errorf("artifact algorithm is empty: %w", recommend.ErrInvalidParameter)
	}

	var raw bytes.Buffer
	if err := gob.NewEncoder(&raw).Encode(payload); err != nil {
		metrics.ArtifactSaves.WithLabelValues("error").Inc()
		return meta, fmt.Errorf("encode payload: %w", err)
	}

	sum := sha256.Sum256(raw.Bytes())

	var compressed bytes.Buffer
	gzw := gzip.NewWriter(&compressed)
	if _, err := gzw.Write(raw.Bytes()); err != nil {
		metrics.ArtifactSaves.WithLabelValues("error").Inc()
		return meta, fmt.Errorf("compress payload: %w", err)
	}
	if err := gzw.Close(); err != nil {
		metrics.ArtifactSaves.WithLabelValues("error").Inc()
		return meta, fmt.Errorf("finalize compression: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	meta.FormatVersion = FormatVersion
	meta.Version = s.versions[meta.Algorithm] + 1
	meta.Checksum = hex.EncodeToString(sum[:])
	meta.SizeBytes = int64(compressed.Len())
	meta.SavedAt = time.Now()

	if err := s.writeEnvelope(meta, compressed.Bytes()); err != nil {
		metrics.ArtifactSaves.WithLabelValues("error").Inc()
		return meta, err
	}

	s.versions[meta.Algorithm] = meta.Version
	metrics.ArtifactSaves.WithLabelValues("ok").Inc()
	metrics.ArtifactSizeBytes.Set(float64(meta.SizeBytes))

	return meta, nil
}

// writeEnvelope writes the envelope to a temp file and renames it into
// place. Must be called with mu held.
func (s *Store) writeEnvelope(meta Metadata, compressed []byte) error {
	tmp, err := os.CreateTemp(s.dir, meta.Algorithm+"-*.tmp")
	if err != nil {
		return fmt.Errorf("create temp artifact: %w", err)
	}
	tmpName := tmp.Name()

	envelope := storedArtifact{Metadata: meta, Payload: compressed}
	if err := gob.NewEncoder(tmp).Encode(envelope); err != nil {
		_ = tmp.Close()          //nolint:errcheck // cleanup path
		_ = os.Remove(tmpName)   //nolint:errcheck // cleanup path
		return fmt.Errorf("write artifact: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName) //nolint:errcheck // cleanup path
		return fmt.Errorf("close temp artifact: %w", err)
	}

	final := s.path(meta.Algorithm, meta.Version)
	if err := os.Rename(tmpName, final); err != nil {
		_ = os.Remove(tmpName) //nolint:errcheck // cleanup path
		return fmt.Errorf("rename artifact into place: %w", err)
	}
	return nil
}

// LoadLatest loads the newest artifact for an algorithm into payload.
func (s *Store) LoadLatest(ctx context.Context, algorithm string, payload any) (*Metadata, error) {
	return s.Load(ctx, algorithm, 0, payload)
}

// Load loads a specific artifact version into payload. Version 0 means the
// latest. A missing artifact wraps os.ErrNotExist; integrity failures wrap
// recommend.ErrArtifactCorrupt or recommend.ErrVersionMismatch.
func (s *Store) Load(ctx context.Context, algorithm string, version int, payload any) (*Metadata, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if version == 0 {
		version = s.versions[algorithm]
		if version == 0 {
			metrics.ArtifactLoads.WithLabelValues("missing").Inc()
			return nil, fmt.Errorf("no artifact for %q: %w", algorithm, os.ErrNotExist)
		}
	}

	f, err := os.Open(s.path(algorithm, version))
	if err != nil {
		if os.IsNotExist(err) {
			metrics.ArtifactLoads.WithLabelValues("missing").Inc()
			return nil, fmt.Errorf("artifact %s v%d: %w", algorithm, version, os.ErrNotExist)
		}
		metrics.ArtifactLoads.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("open artifact: %w", err)
	}
	defer func() { _ = f.Close() }() //nolint:errcheck // error on close after read is not actionable

	var envelope storedArtifact
	if err := gob.NewDecoder(f).Decode(&envelope); err != nil {
		metrics.ArtifactLoads.WithLabelValues("corrupt").Inc()
		return nil, fmt.Errorf("decode envelope for %s v%d: %v: %w", algorithm, version, err, recommend.ErrArtifactCorrupt)
	}

	if envelope.Metadata.FormatVersion != FormatVersion {
		metrics.ArtifactLoads.WithLabelValues("version_mismatch").Inc()
		return nil, fmt.Errorf("artifact %s v%d has format version %d, want %d: %w",
			algorithm, version, envelope.Metadata.FormatVersion, FormatVersion, recommend.ErrVersionMismatch)
	}

	raw, err := decompress(envelope.Payload)
	if err != nil {
		metrics.ArtifactLoads.WithLabelValues("corrupt").Inc()
		return nil, fmt.Errorf("decompress artifact %s v%d: %v: %w", algorithm, version, err, recommend.ErrArtifactCorrupt)
	}

	sum := sha256.Sum256(raw)
	if checksum := hex.EncodeToString(sum[:]); checksum != envelope.Metadata.Checksum {
		metrics.ArtifactLoads.WithLabelValues("corrupt").Inc()
		return nil, fmt.Errorf("artifact %s v%d checksum mismatch (want %s, got %s): %w",
			algorithm, version, envelope.Metadata.Checksum, checksum, recommend.ErrArtifactCorrupt)
	}

	if err := gob.NewDecoder(bytes.NewReader(raw)).Decode(payload); err != nil {
		metrics.ArtifactLoads.WithLabelValues("corrupt").Inc()
		return nil, fmt.Errorf("decode payload for %s v%d: %v: %w", algorithm, version, err, recommend.ErrArtifactCorrupt)
	}

	metrics.ArtifactLoads.WithLabelValues("ok").Inc()
	return &envelope.Metadata, nil
}

// decompress inflates a gzip-compressed payload.
func decompress(compressed []byte) ([]byte, error) {
	gzr, err := gzip.NewReader(bytes.NewReader(compressed))
	if err != nil {
		return nil, err
	}
	defer func() { _ = gzr.Close() }() //nolint:errcheck // error on close after read is not actionable

	return io.ReadAll(gzr)
}

// LatestVersion returns the newest stored version for an algorithm.
func (s *Store) LatestVersion(algorithm string) (int, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	version, ok := s.versions[algorithm]
	return version, ok && version > 0
}

// Prune removes old artifact versions, keeping the newest keep versions.
func (s *Store) Prune(ctx context.Context, algorithm string, keep int) error {
	if keep < 1 {
		keep = 1
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	versions, err := s.listVersionsLocked(algorithm)
	if err != nil {
		return fmt.Errorf("list artifact versions: %w", err)
	}

	sort.Sort(sort.Reverse(sort.IntSlice(versions)))
	for _, version := range versions[min(keep, len(versions)):] {
		// Best-effort removal of superseded versions.
		_ = os.Remove(s.path(algorithm, version)) //nolint:errcheck // best-effort cleanup
	}
	return nil
}

// listVersionsLocked returns all stored versions for an algorithm. Must be
// called with mu held.
func (s *Store) listVersionsLocked(algorithm string) ([]int, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, err
	}

	var versions []int
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name, version, ok := parseFilename(entry.Name())
		if !ok || name != algorithm {
			continue
		}
		versions = append(versions, version)
	}
	return versions, nil
}
