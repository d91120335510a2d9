package swarm

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeSession struct {
	registerErr error
	registered  map[string]int
	status      map[string]TorrentStatus
	failWith    error
	// readyAfter delays the status becoming visible for N update rounds
	readyAfter int
	updates    int
}

func newFakeSession() *fakeSession {
	return &fakeSession{registered: map[string]int{}, status: map[string]TorrentStatus{}}
}

func (f *fakeSession) Register(locator string) error {
	if f.registerErr != nil {
		return f.registerErr
	}
	infohash := ExtractInfohash(locator)
	if infohash == "" {
		return ErrInvalidLocator
	}
	f.registered[infohash]++
	return nil
}

func (f *fakeSession) RequestUpdates() { f.updates++ }

func (f *fakeSession) PopAlerts() []Alert {
	if f.failWith != nil {
		return []Alert{{Infohash: "abc123", Err: f.failWith}}
	}
	return nil
}

func (f *fakeSession) Status(infohash string) (TorrentStatus, bool) {
	if f.updates <= f.readyAfter {
		return TorrentStatus{}, false
	}
	st, ok := f.status[infohash]
	return st, ok
}

func newTestProber(s Session) *Prober {
	return NewProber(s, 5*time.Millisecond, zap.NewNop().Sugar())
}

func TestProbeInvalidLocator(t *testing.T) {
	s := newFakeSession()
	snap := newTestProber(s).Probe(context.Background(), "magnet:?dn=no-hash-here", time.Second)

	assert.Equal(t, ErrorInvalidLocator, snap.Error)
	assert.Zero(t, snap.Seeders)
	assert.Zero(t, snap.Leechers)
	assert.Zero(t, snap.TotalPeers)
	assert.Empty(t, s.registered, "invalid locators are never registered")
}

func TestProbeRegisterFailureAbsorbed(t *testing.T) {
	s := newFakeSession()
	s.registerErr = errors.New("session exploded")
	snap := newTestProber(s).Probe(context.Background(), "magnet:?xt=urn:btih:abc123", time.Second)

	assert.Equal(t, "session exploded", snap.Error)
	assert.Zero(t, snap.TotalPeers)
}

func TestProbeReturnsCounts(t *testing.T) {
	s := newFakeSession()
	s.status["abc123"] = TorrentStatus{
		Infohash: "abc123", Seeders: 3, Leechers: 2, TotalPeers: 5, HasMetadata: true,
	}

	snap := newTestProber(s).Probe(context.Background(), "magnet:?xt=urn:btih:ABC123", time.Second)

	require.Empty(t, snap.Error)
	assert.Equal(t, "abc123", snap.Infohash)
	assert.Equal(t, 3, snap.Seeders)
	assert.Equal(t, 2, snap.Leechers)
	assert.Equal(t, 5, snap.TotalPeers)
}

func TestProbeWaitsForSession(t *testing.T) {
	s := newFakeSession()
	s.readyAfter = 3
	s.status["abc123"] = TorrentStatus{Seeders: 1, Leechers: 0, TotalPeers: 1, HasMetadata: true}

	snap := newTestProber(s).Probe(context.Background(), "magnet:?xt=urn:btih:abc123", time.Second)

	assert.Empty(t, snap.Error)
	assert.Equal(t, 1, snap.TotalPeers)
	assert.Greater(t, s.updates, 3)
}

func TestProbeTimeoutRecordsError(t *testing.T) {
	s := newFakeSession()
	s.failWith = errors.New("tracker unreachable")

	snap := newTestProber(s).Probe(context.Background(), "magnet:?xt=urn:btih:abc123", 30*time.Millisecond)

	assert.Equal(t, "tracker unreachable", snap.Error)
	assert.Zero(t, snap.TotalPeers)
}

func TestProbeTimeoutKeepsLastObserved(t *testing.T) {
	// Counts observed but metadata never arrives: timeout returns the last
	// observation without an error.
	s := newFakeSession()
	s.status["abc123"] = TorrentStatus{Seeders: 2, Leechers: 0, TotalPeers: 2, HasMetadata: false}

	snap := newTestProber(s).Probe(context.Background(), "magnet:?xt=urn:btih:abc123", 30*time.Millisecond)

	assert.Empty(t, snap.Error)
	assert.Equal(t, 2, snap.TotalPeers)
}

func TestProbeIdempotentRegistration(t *testing.T) {
	s := newFakeSession()
	s.status["abc123"] = TorrentStatus{Seeders: 1, TotalPeers: 1, HasMetadata: true}
	p := newTestProber(s)

	p.Probe(context.Background(), "magnet:?xt=urn:btih:abc123", time.Second)
	p.Probe(context.Background(), "magnet:?xt=urn:btih:abc123", time.Second)

	assert.Equal(t, 2, s.registered["abc123"], "fake counts raw calls")
}

func TestClampCounts(t *testing.T) {
	// Aggregate-only session: leechers derived from total - seeders
	st := clampCounts(TorrentStatus{Seeders: 3, TotalPeers: 10})
	assert.Equal(t, 7, st.Leechers)
	assert.Equal(t, 10, st.TotalPeers)

	// Peer-list session: total derived from seeders + leechers
	st = clampCounts(TorrentStatus{Seeders: 3, Leechers: 2})
	assert.Equal(t, 5, st.TotalPeers)

	// Negative derived values clamp to zero
	st = clampCounts(TorrentStatus{Seeders: -1, Leechers: -2})
	assert.Zero(t, st.Seeders)
	assert.Zero(t, st.Leechers)
	assert.Zero(t, st.TotalPeers)
}

func TestTrackerSessionRegisterIdempotent(t *testing.T) {
	s := NewTrackerSession(Options{Trackers: []string{"udp://tracker.invalid:1337"}}, zap.NewNop().Sugar())

	require.NoError(t, s.Register("magnet:?xt=urn:btih:aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa"))
	require.NoError(t, s.Register("magnet:?xt=urn:btih:aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa"))
	assert.Len(t, s.torrents, 1)

	assert.ErrorIs(t, s.Register("magnet:?dn=nothing"), ErrInvalidLocator)
}

func TestDecodeInfohash(t *testing.T) {
	_, err := decodeInfohash("aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa")
	assert.NoError(t, err)

	_, err = decodeInfohash("zzz")
	assert.Error(t, err)

	_, err = decodeInfohash("nothexnothexnothexnothexnothexnothexnoth")
	assert.Error(t, err)
}
