package swarm

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"
)

// ErrorInvalidLocator is the Snapshot.Error value recorded when a locator
// carries no extractable infohash.
const ErrorInvalidLocator = "invalid_locator"

// Snapshot is the outcome of one probe attempt. Error is set and counts are
// zeroed when probing was impossible; a Snapshot is never mutated after
// creation.
type Snapshot struct {
	Infohash     string
	Timestamp    int64
	Seeders      int
	Leechers     int
	TotalPeers   int
	DownloadRate int
	UploadRate   int
	RawPeers     []string
	Error        string
}

// Prober samples live swarm state through a shared Session. A single Prober
// is safe for sequential use by one orchestrator; the Session underneath is
// process-wide.
type Prober struct {
	session   Session
	pollEvery time.Duration
	log       *zap.SugaredLogger
}

func NewProber(session Session, pollEvery time.Duration, log *zap.SugaredLogger) *Prober {
	if pollEvery <= 0 {
		pollEvery = 500 * time.Millisecond
	}
	return &Prober{session: session, pollEvery: pollEvery, log: log}
}

// Probe registers the locator and polls the session until peer counts are
// known or the time budget runs out. It never returns an error: a single
// swarm's unavailability must not interrupt the sampling loop, so every
// failure is absorbed into the Snapshot's Error field.
func (p *Prober) Probe(ctx context.Context, locator string, timeout time.Duration) Snapshot {
	now := time.Now().UTC().Unix()
	infohash := ExtractInfohash(locator)
	if infohash == "" {
		return Snapshot{Timestamp: now, Error: ErrorInvalidLocator}
	}

	snap := Snapshot{Infohash: infohash, Timestamp: now}
	if err := p.session.Register(locator); err != nil {
		if errors.Is(err, ErrInvalidLocator) {
			snap.Error = ErrorInvalidLocator
		} else {
			snap.Error = err.Error()
		}
		return snap
	}

	deadline := time.Now().Add(timeout)
	var lastErr error
	for {
		p.session.RequestUpdates()
		for _, a := range p.session.PopAlerts() {
			if a.Infohash == infohash && a.Err != nil {
				lastErr = a.Err
			}
		}

		if st, ok := p.session.Status(infohash); ok {
			snap.Seeders = st.Seeders
			snap.Leechers = st.Leechers
			snap.TotalPeers = st.TotalPeers
			snap.DownloadRate = st.DownloadRate
			snap.UploadRate = st.UploadRate
			if st.HasMetadata && st.TotalPeers > 0 {
				return snap
			}
		}

		remaining := time.Until(deadline)
		if remaining <= 0 {
			break
		}
		wait := p.pollEvery
		if wait > remaining {
			wait = remaining
		}
		select {
		case <-ctx.Done():
			// The loop owner cancelled; report what we have.
			return snap
		case <-time.After(wait):
		}
	}

	// Timed out: the last observed counts stand. Only report an error when
	// the session produced nothing at all.
	if snap.TotalPeers == 0 && snap.Seeders == 0 && snap.Leechers == 0 && lastErr != nil {
		snap.Error = lastErr.Error()
	}
	return snap
}
