// Package sampler is the health-check orchestrator: pick a candidate, probe
// the swarm, derive metrics against stored history, persist, sleep, repeat.
package sampler

import (
	"context"
	"encoding/json"
	"time"

	"swarmwatch/internal/catalog"
	"swarmwatch/internal/health"
	"swarmwatch/internal/metrics"
	"swarmwatch/internal/model"
	"swarmwatch/internal/store"
	"swarmwatch/internal/swarm"

	"go.uber.org/zap"
)

// Status values recorded on persisted sample rows.
const (
	StatusHealthy  = "healthy"
	StatusNoPeers  = "no_peers"
	StatusNoMagnet = "no_magnet"
	StatusError    = "error"
)

// Prober is the substitutable probe layer. Probe never fails: errors are
// absorbed into the Snapshot.
type Prober interface {
	Probe(ctx context.Context, locator string, timeout time.Duration) swarm.Snapshot
}

type Options struct {
	Interval     time.Duration
	Timeout      time.Duration
	HistoryLimit int
	Weights      health.Weights
	// MarkChecked updates received-content bookkeeping after each probe;
	// enabled only in gossip mode.
	MarkChecked bool
}

type Sampler struct {
	source catalog.Source
	prober Prober
	store  *store.Store
	opts   Options
	log    *zap.SugaredLogger
}

// Result is the outcome of one cycle. Skipped is set when the source had
// nothing to check.
type Result struct {
	Skipped bool
	Sample  *model.Sample
}

func New(source catalog.Source, prober Prober, st *store.Store, opts Options, log *zap.SugaredLogger) *Sampler {
	if opts.Interval <= 0 {
		opts.Interval = 300 * time.Second
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 10 * time.Second
	}
	if opts.HistoryLimit <= 0 {
		opts.HistoryLimit = 10
	}
	if opts.Weights == (health.Weights{}) {
		opts.Weights = health.DefaultWeights
	}
	return &Sampler{source: source, prober: prober, store: st, opts: opts, log: log}
}

// Check probes one entry and persists the combined sample row. Probe
// failures become data on the row; only storage errors are returned.
func (s *Sampler) Check(ctx context.Context, entry *catalog.Entry) (*model.Sample, error) {
	infohash := entry.Infohash()

	var snap swarm.Snapshot
	if entry.MagnetLink == "" || infohash == "" {
		s.log.Infof("no magnet link for %s, recording no_magnet", entry.URL)
		snap = swarm.Snapshot{Timestamp: time.Now().UTC().Unix(), Error: swarm.ErrorInvalidLocator}
	} else {
		start := time.Now()
		snap = s.prober.Probe(ctx, entry.MagnetLink, s.opts.Timeout)
		metrics.ProbeDuration.Observe(time.Since(start).Seconds())
	}

	var prior []health.Sample
	if infohash != "" {
		rows, err := s.store.Recent(infohash, s.opts.HistoryLimit)
		if err != nil {
			return nil, err
		}
		prior = make([]health.Sample, len(rows))
		for i, r := range rows {
			prior[i] = health.Sample{
				Timestamp:  r.TS,
				TotalPeers: r.TotalPeers,
				Seeders:    r.Seeders,
				Leechers:   r.Leechers,
			}
		}
	}

	m := health.Compute(snap.TotalPeers, prior, snap.Timestamp, s.opts.Weights)

	status := StatusNoPeers
	switch {
	case entry.MagnetLink == "" || infohash == "":
		status = StatusNoMagnet
	case snap.Error != "":
		status = StatusError
	case snap.TotalPeers > 0:
		status = StatusHealthy
	}

	rawPeers, _ := json.Marshal(snap.RawPeers)

	row := &model.Sample{
		Infohash:   infohash,
		TS:         snap.Timestamp,
		Seeders:    snap.Seeders,
		Leechers:   snap.Leechers,
		TotalPeers: snap.TotalPeers,
		Growth:     m.Growth,
		Shrink:     m.Shrink,
		Exploding:  m.Exploding,
		URL:        entry.URL,
		License:    entry.License,
		MagnetLink: entry.MagnetLink,
		Status:     status,
		ProbeError: snap.Error,
		RawPeers:   string(rawPeers),
	}
	if err := s.store.Append(row); err != nil {
		return nil, err
	}

	metrics.ProbesTotal.WithLabelValues(status).Inc()
	metrics.SamplesPersisted.Inc()

	s.log.Infof("checked %s: %d total peers (%d seeders, %d leechers) status=%s",
		entry.URL, snap.TotalPeers, snap.Seeders, snap.Leechers, status)
	s.log.Infof("  metrics: growth=%.2f%% shrink=%.2f%% exploding=%.2f",
		m.Growth, m.Shrink, m.Exploding)

	return row, nil
}

// RunOnce executes a single select/probe/persist cycle. An empty source is a
// skip, not an error; only storage failures return non-nil.
func (s *Sampler) RunOnce(ctx context.Context) (*Result, error) {
	entry, err := s.source.Next(ctx)
	if err != nil {
		return nil, err
	}
	if entry == nil {
		s.log.Info("nothing to check: candidate source is empty")
		return &Result{Skipped: true}, nil
	}

	row, err := s.Check(ctx, entry)
	if err != nil {
		return nil, err
	}

	if s.opts.MarkChecked && row.Infohash != "" {
		if err := s.store.MarkChecked(row.Infohash, row.TS); err != nil {
			return nil, err
		}
	}

	return &Result{Sample: row}, nil
}

// Run loops until ctx is cancelled or the store fails. Cancellation is
// cooperative: it is observed between cycles, so an in-flight probe finishes
// up to its timeout first.
func (s *Sampler) Run(ctx context.Context) error {
	s.log.Infof("starting continuous health checks (interval %s)", s.opts.Interval)
	for {
		if _, err := s.RunOnce(ctx); err != nil {
			return err
		}
		select {
		case <-ctx.Done():
			s.log.Info("stopping health checker")
			return nil
		case <-time.After(s.opts.Interval):
		}
	}
}
