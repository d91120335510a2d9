// Package api exposes the gossip ingestion boundary and the read-only query
// surface for dashboards. The gossip collaborator posts received content
// here; the core never imports collaborator types.
package api

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"swarmwatch/internal/metrics"
	"swarmwatch/internal/model"
	"swarmwatch/internal/store"
	"swarmwatch/internal/swarm"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

type Server struct {
	store *store.Store
	log   *zap.SugaredLogger
}

func NewServer(st *store.Store, log *zap.SugaredLogger) *Server {
	return &Server{store: st, log: log}
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Get("/healthz", s.handleHealthz)
	r.Post("/v1/received", s.handleReceived)
	r.Get("/v1/swarms/latest", s.handleLatest)
	r.Get("/v1/swarms/{infohash}/history", s.handleHistory)
	return r
}

func (s *Server) Serve(addr string) {
	if err := http.ListenAndServe(addr, s.Router()); err != nil {
		s.log.Warnf("api server stopped: %v", err)
	}
}

type receivedRequest struct {
	URL        string `json:"url"`
	License    string `json:"license"`
	MagnetLink string `json:"magnet_link"`
	ReceivedAt int64  `json:"received_at"`
	SourcePeer string `json:"source_peer"`
}

func (s *Server) handleReceived(w http.ResponseWriter, r *http.Request) {
	var req receivedRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}

	infohash := swarm.ExtractInfohash(req.MagnetLink)
	if infohash == "" {
		metrics.ReceivedTotal.WithLabelValues("invalid").Inc()
		writeJSON(w, http.StatusUnprocessableEntity, map[string]string{"error": "invalid_locator"})
		return
	}
	if req.ReceivedAt == 0 {
		req.ReceivedAt = time.Now().UTC().Unix()
	}

	inserted, err := s.store.InsertReceived(&model.ReceivedContent{
		Infohash:   infohash,
		URL:        req.URL,
		License:    req.License,
		MagnetLink: req.MagnetLink,
		ReceivedAt: req.ReceivedAt,
		SourcePeer: req.SourcePeer,
	})
	if err != nil {
		s.log.Errorf("insert received failed: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "storage failure"})
		return
	}

	if inserted {
		metrics.ReceivedTotal.WithLabelValues("inserted").Inc()
		s.log.Infof("received %s (license %s) from %s", req.URL, req.License, req.SourcePeer)
	} else {
		metrics.ReceivedTotal.WithLabelValues("duplicate").Inc()
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"inserted": inserted,
		"infohash": infohash,
	})
}

func (s *Server) handleLatest(w http.ResponseWriter, r *http.Request) {
	rows, err := s.store.LatestPerKey(limitParam(r, 100))
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "storage failure"})
		return
	}
	writeJSON(w, http.StatusOK, toViews(rows))
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	infohash := chi.URLParam(r, "infohash")
	rows, err := s.store.Recent(infohash, limitParam(r, 50))
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "storage failure"})
		return
	}
	writeJSON(w, http.StatusOK, toViews(rows))
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// sampleView is the wire shape of one sample row.
type sampleView struct {
	Infohash   string  `json:"infohash"`
	TS         int64   `json:"ts"`
	Seeders    int     `json:"seeders"`
	Leechers   int     `json:"leechers"`
	TotalPeers int     `json:"total_peers"`
	Growth     float64 `json:"growth"`
	Shrink     float64 `json:"shrink"`
	Exploding  float64 `json:"exploding_score"`
	URL        string  `json:"url"`
	License    string  `json:"license"`
	MagnetLink string  `json:"magnet_link"`
	Status     string  `json:"status"`
	ProbeError string  `json:"probe_error,omitempty"`
}

func toViews(rows []model.Sample) []sampleView {
	out := make([]sampleView, len(rows))
	for i, row := range rows {
		out[i] = sampleView{
			Infohash:   row.Infohash,
			TS:         row.TS,
			Seeders:    row.Seeders,
			Leechers:   row.Leechers,
			TotalPeers: row.TotalPeers,
			Growth:     row.Growth,
			Shrink:     row.Shrink,
			Exploding:  row.Exploding,
			URL:        row.URL,
			License:    row.License,
			MagnetLink: row.MagnetLink,
			Status:     row.Status,
			ProbeError: row.ProbeError,
		}
	}
	return out
}

func limitParam(r *http.Request, def int) int {
	v := r.URL.Query().Get("limit")
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return def
	}
	return n
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
