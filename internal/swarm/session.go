package swarm

import "errors"

var ErrInvalidLocator = errors.New("locator has no extractable infohash")

// TorrentStatus is what the session currently knows about one registered
// swarm. Counts follow the derivation policy: when a peer list is exposed,
// total = seeders + leechers; when only aggregates are exposed,
// leechers = total - seeders. Negative derived values are clamped to zero.
type TorrentStatus struct {
	Infohash     string
	Seeders      int
	Leechers     int
	TotalPeers   int
	DownloadRate int
	UploadRate   int
	HasMetadata  bool
}

// Alert is one event popped from the session queue.
type Alert struct {
	Infohash string
	Status   TorrentStatus
	Err      error
}

// Session is the process-wide network handle shared by all probes. It
// multiplexes every registered swarm internally, so callers never open
// per-swarm connections.
//
// Register is idempotent per infohash: registering an already known locator
// is a no-op, not an error.
type Session interface {
	Register(locator string) error
	// RequestUpdates asks the session to refresh counts for registered
	// swarms. Results arrive asynchronously through PopAlerts.
	RequestUpdates()
	PopAlerts() []Alert
	Status(infohash string) (TorrentStatus, bool)
}

// clampCounts normalizes a raw status to the derivation policy.
func clampCounts(st TorrentStatus) TorrentStatus {
	if st.Seeders < 0 {
		st.Seeders = 0
	}
	if st.Leechers < 0 {
		st.Leechers = 0
	}
	if st.TotalPeers <= 0 {
		st.TotalPeers = st.Seeders + st.Leechers
	}
	if st.Leechers == 0 && st.TotalPeers > st.Seeders {
		st.Leechers = st.TotalPeers - st.Seeders
	}
	if st.TotalPeers < 0 {
		st.TotalPeers = 0
	}
	return st
}
