// Package catalog supplies the candidates the sampler probes. Two
// interchangeable sources exist: a static CSV manifest and the pool of
// swarms received over the gossip feed.
package catalog

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math/rand/v2"
	"os"
	"strings"

	"swarmwatch/internal/model"
	"swarmwatch/internal/swarm"
)

// ErrManifestNotFound reports a missing manifest file.
var ErrManifestNotFound = errors.New("manifest not found")

// Entry is one candidate swarm. Immutable once loaded, except that a magnet
// link may be attached later.
type Entry struct {
	URL        string
	License    string
	MagnetLink string
}

// Infohash derives the swarm fingerprint from the magnet link. Empty when
// the entry has no link or the link has no btih fingerprint.
func (e Entry) Infohash() string {
	return swarm.ExtractInfohash(e.MagnetLink)
}

// Source hands out the next candidate to probe. A nil entry with a nil
// error means the source is empty right now; that is not a failure.
type Source interface {
	Next(ctx context.Context) (*Entry, error)
}

// Loader reads the static CSV manifest (columns url, license, magnet_link).
type Loader struct {
	path    string
	entries []Entry
}

func NewLoader(path string) *Loader {
	return &Loader{path: path}
}

// Load parses the manifest. Rows missing a required column are skipped
// rather than failing the load; bad rows are a data-quality problem, not a
// fatal one.
func (l *Loader) Load() (int, error) {
	f, err := os.Open(l.path)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, fmt.Errorf("%w: %s", ErrManifestNotFound, l.path)
		}
		return 0, fmt.Errorf("failed to open manifest: %w", err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	r.TrimLeadingSpace = true

	header, err := r.Read()
	if err != nil {
		if err == io.EOF {
			return 0, nil
		}
		return 0, fmt.Errorf("failed to read manifest header: %w", err)
	}

	cols := map[string]int{}
	for i, name := range header {
		cols[strings.ToLower(strings.TrimSpace(name))] = i
	}
	urlIdx, hasURL := cols["url"]
	licIdx, hasLic := cols["license"]
	magIdx, hasMag := cols["magnet_link"]

	l.entries = l.entries[:0]
	for {
		rec, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			// Ragged or malformed row: skip it
			continue
		}
		if !hasURL || !hasLic || urlIdx >= len(rec) || licIdx >= len(rec) {
			continue
		}
		entry := Entry{
			URL:     strings.TrimSpace(rec[urlIdx]),
			License: strings.TrimSpace(rec[licIdx]),
		}
		if entry.URL == "" || entry.License == "" {
			continue
		}
		if hasMag && magIdx < len(rec) {
			entry.MagnetLink = strings.TrimSpace(rec[magIdx])
		}
		l.entries = append(l.entries, entry)
	}
	return len(l.entries), nil
}

func (l *Loader) Entries() []Entry {
	return l.entries
}

// WithMagnets returns only the entries that carry a usable fingerprint.
func (l *Loader) WithMagnets() []Entry {
	var out []Entry
	for _, e := range l.entries {
		if e.Infohash() != "" {
			out = append(out, e)
		}
	}
	return out
}

// StaticSource picks uniformly at random from the loaded manifest.
type StaticSource struct {
	loader *Loader
}

func NewStaticSource(loader *Loader) *StaticSource {
	return &StaticSource{loader: loader}
}

func (s *StaticSource) Next(ctx context.Context) (*Entry, error) {
	entries := s.loader.Entries()
	if len(entries) == 0 {
		return nil, nil
	}
	e := entries[rand.IntN(len(entries))]
	return &e, nil
}

// CandidateStore is the slice of the sample store the gossip source needs.
type CandidateStore interface {
	CandidatesForSampling(limit int) ([]model.ReceivedContent, error)
}

// GossipSource draws from the received-content pool: the top poolSize rows
// ordered never-checked first, chosen uniformly at random within that pool.
type GossipSource struct {
	store    CandidateStore
	poolSize int
}

func NewGossipSource(store CandidateStore, poolSize int) *GossipSource {
	if poolSize <= 0 {
		poolSize = 10
	}
	return &GossipSource{store: store, poolSize: poolSize}
}

func (s *GossipSource) Next(ctx context.Context) (*Entry, error) {
	rows, err := s.store.CandidatesForSampling(s.poolSize)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}
	r := rows[rand.IntN(len(rows))]
	return &Entry{URL: r.URL, License: r.License, MagnetLink: r.MagnetLink}, nil
}
