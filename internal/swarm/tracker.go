package swarm

import (
	"context"
	"encoding/base32"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"math/rand/v2"
	"net"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/hashicorp/golang-lru/v2/expirable"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

const (
	udpProtocolID  = 0x41727101980
	actionConnect  = 0
	actionScrape   = 2
	scrapeDeadline = 5 * time.Second
)

// Options tune the tracker-backed session.
type Options struct {
	// Trackers is the fallback announce list for locators without tr= params.
	Trackers     []string
	ScrapePerSec float64
	ScrapeBurst  int
	CacheSize    int
	CacheTTL     time.Duration
	MaxTries     int
}

type torrentEntry struct {
	infohash  [20]byte
	trackers  []string
	status    TorrentStatus
	hasStatus bool
	inflight  bool
}

// TrackerSession observes swarms by scraping their UDP trackers (BEP 15).
// It satisfies Session: registration is deduplicated per infohash, scrape
// results flow through the alert queue, and recent scrapes are answered from
// an expiring cache so a tight poll loop does not hammer the trackers.
type TrackerSession struct {
	mu       sync.Mutex
	torrents map[string]*torrentEntry

	alerts  chan Alert
	limiter *rate.Limiter
	cache   *expirable.LRU[string, TorrentStatus]

	opts Options
	log  *zap.SugaredLogger
}

func NewTrackerSession(opts Options, log *zap.SugaredLogger) *TrackerSession {
	if opts.ScrapePerSec <= 0 {
		opts.ScrapePerSec = 4
	}
	if opts.ScrapeBurst <= 0 {
		opts.ScrapeBurst = 8
	}
	if opts.CacheSize <= 0 {
		opts.CacheSize = 4096
	}
	if opts.CacheTTL <= 0 {
		opts.CacheTTL = 2 * time.Minute
	}
	if opts.MaxTries <= 0 {
		opts.MaxTries = 3
	}
	return &TrackerSession{
		torrents: make(map[string]*torrentEntry),
		alerts:   make(chan Alert, 256),
		limiter:  rate.NewLimiter(rate.Limit(opts.ScrapePerSec), opts.ScrapeBurst),
		cache:    expirable.NewLRU[string, TorrentStatus](opts.CacheSize, nil, opts.CacheTTL),
		opts:     opts,
		log:      log,
	}
}

// Register adds a locator to the session. Registering an already known
// infohash is a no-op.
func (s *TrackerSession) Register(locator string) error {
	infohash := ExtractInfohash(locator)
	if infohash == "" {
		return ErrInvalidLocator
	}
	raw, err := decodeInfohash(infohash)
	if err != nil {
		return fmt.Errorf("bad infohash %q: %w", infohash, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.torrents[infohash]; ok {
		return nil
	}

	trackers := udpOnly(TrackerURLs(locator))
	if len(trackers) == 0 {
		trackers = udpOnly(s.opts.Trackers)
	}
	s.torrents[infohash] = &torrentEntry{infohash: raw, trackers: trackers}
	s.log.Debugf("registered swarm %s (%d trackers)", short(infohash), len(trackers))
	return nil
}

// RequestUpdates kicks off a scrape for every registered swarm that has no
// fresh cached result and no scrape already in flight.
func (s *TrackerSession) RequestUpdates() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for infohash, e := range s.torrents {
		if e.inflight {
			continue
		}
		if st, ok := s.cache.Get(infohash); ok {
			if !e.hasStatus {
				e.status, e.hasStatus = st, true
			}
			continue
		}
		e.inflight = true
		go s.scrape(infohash, e.infohash, e.trackers)
	}
}

func (s *TrackerSession) PopAlerts() []Alert {
	var out []Alert
	for {
		select {
		case a := <-s.alerts:
			out = append(out, a)
		default:
			return out
		}
	}
}

func (s *TrackerSession) Status(infohash string) (TorrentStatus, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.torrents[infohash]
	if !ok || !e.hasStatus {
		return TorrentStatus{}, false
	}
	return e.status, true
}

func (s *TrackerSession) scrape(infohash string, raw [20]byte, trackers []string) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	var (
		st      TorrentStatus
		lastErr error
		got     bool
	)
	if err := s.limiter.Wait(ctx); err != nil {
		lastErr = err
	} else if len(trackers) == 0 {
		lastErr = fmt.Errorf("no usable trackers for %s", short(infohash))
	} else {
		for _, tr := range trackers {
			attempt := func() error {
				res, err := scrapeUDP(ctx, tr, raw)
				if err != nil {
					return err
				}
				st = res
				return nil
			}
			bo := backoff.WithContext(
				backoff.WithMaxRetries(backoff.NewExponentialBackOff(), uint64(s.opts.MaxTries-1)), ctx)
			if err := backoff.Retry(attempt, bo); err != nil {
				lastErr = err
				continue
			}
			got = true
			break
		}
	}

	s.mu.Lock()
	e, ok := s.torrents[infohash]
	if ok {
		e.inflight = false
		if got {
			st.Infohash = infohash
			st = clampCounts(st)
			e.status, e.hasStatus = st, true
			s.cache.Add(infohash, st)
		}
	}
	s.mu.Unlock()

	alert := Alert{Infohash: infohash}
	if got {
		alert.Status = st
	} else {
		alert.Err = lastErr
		s.log.Debugf("scrape failed for %s: %v", short(infohash), lastErr)
	}
	select {
	case s.alerts <- alert:
	default:
		// Queue full: the poll loop reads Status directly, dropping is safe.
	}
}

// scrapeUDP performs a BEP 15 connect + scrape round trip for one infohash.
func scrapeUDP(ctx context.Context, trackerURL string, infohash [20]byte) (TorrentStatus, error) {
	u, err := url.Parse(trackerURL)
	if err != nil {
		return TorrentStatus{}, fmt.Errorf("tracker %q: %w", trackerURL, err)
	}
	if u.Scheme != "udp" {
		return TorrentStatus{}, fmt.Errorf("tracker %q: unsupported scheme %q", trackerURL, u.Scheme)
	}

	var d net.Dialer
	conn, err := d.DialContext(ctx, "udp", u.Host)
	if err != nil {
		return TorrentStatus{}, err
	}
	defer conn.Close()

	deadline := time.Now().Add(scrapeDeadline)
	if ctxDeadline, ok := ctx.Deadline(); ok && ctxDeadline.Before(deadline) {
		deadline = ctxDeadline
	}
	if err := conn.SetDeadline(deadline); err != nil {
		return TorrentStatus{}, err
	}

	// Connect handshake
	txid := rand.Uint32()
	req := make([]byte, 16)
	binary.BigEndian.PutUint64(req[0:], udpProtocolID)
	binary.BigEndian.PutUint32(req[8:], actionConnect)
	binary.BigEndian.PutUint32(req[12:], txid)
	if _, err := conn.Write(req); err != nil {
		return TorrentStatus{}, err
	}

	resp := make([]byte, 16)
	n, err := conn.Read(resp)
	if err != nil {
		return TorrentStatus{}, err
	}
	if n < 16 || binary.BigEndian.Uint32(resp[0:]) != actionConnect || binary.BigEndian.Uint32(resp[4:]) != txid {
		return TorrentStatus{}, fmt.Errorf("tracker %q: bad connect response", trackerURL)
	}
	connID := binary.BigEndian.Uint64(resp[8:])

	// Scrape
	txid = rand.Uint32()
	req = make([]byte, 36)
	binary.BigEndian.PutUint64(req[0:], connID)
	binary.BigEndian.PutUint32(req[8:], actionScrape)
	binary.BigEndian.PutUint32(req[12:], txid)
	copy(req[16:], infohash[:])
	if _, err := conn.Write(req); err != nil {
		return TorrentStatus{}, err
	}

	resp = make([]byte, 64)
	n, err = conn.Read(resp)
	if err != nil {
		return TorrentStatus{}, err
	}
	if n < 20 || binary.BigEndian.Uint32(resp[0:]) != actionScrape || binary.BigEndian.Uint32(resp[4:]) != txid {
		return TorrentStatus{}, fmt.Errorf("tracker %q: bad scrape response", trackerURL)
	}

	seeders := int(binary.BigEndian.Uint32(resp[8:]))
	leechers := int(binary.BigEndian.Uint32(resp[16:]))
	return TorrentStatus{
		Seeders:     seeders,
		Leechers:    leechers,
		TotalPeers:  seeders + leechers,
		HasMetadata: true,
	}, nil
}

// decodeInfohash accepts the two on-the-wire encodings: 40-char hex and
// 32-char base32.
func decodeInfohash(infohash string) ([20]byte, error) {
	var out [20]byte
	switch len(infohash) {
	case 40:
		b, err := hex.DecodeString(infohash)
		if err != nil {
			return out, err
		}
		copy(out[:], b)
	case 32:
		b, err := base32.StdEncoding.DecodeString(strings.ToUpper(infohash))
		if err != nil {
			return out, err
		}
		copy(out[:], b)
	default:
		return out, fmt.Errorf("length %d is neither hex nor base32", len(infohash))
	}
	return out, nil
}

func udpOnly(trackers []string) []string {
	var out []string
	for _, tr := range trackers {
		if strings.HasPrefix(tr, "udp://") {
			out = append(out, tr)
		}
	}
	return out
}

func short(infohash string) string {
	if len(infohash) > 16 {
		return infohash[:16]
	}
	return infohash
}
