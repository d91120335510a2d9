// Package store is the durable time series of swarm samples plus the catalog
// of gossip-received swarms. Sample rows are append-only; nothing here ever
// deletes.
package store

import (
	"fmt"

	"swarmwatch/internal/model"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type Store struct {
	db *gorm.DB
}

func New(db *gorm.DB) *Store {
	return &Store{db: db}
}

// Append writes one sample row. Errors here are fatal to the caller: a hole
// in the audit trail would invalidate metrics continuity, so nothing retries.
func (s *Store) Append(row *model.Sample) error {
	if err := s.db.Create(row).Error; err != nil {
		return fmt.Errorf("failed to append sample: %w", err)
	}
	return nil
}

// Recent returns up to limit samples for one infohash, newest first.
func (s *Store) Recent(infohash string, limit int) ([]model.Sample, error) {
	var rows []model.Sample
	err := s.db.
		Where("infohash = ?", infohash).
		Order("ts DESC, id DESC").
		Limit(limit).
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to fetch samples for %s: %w", infohash, err)
	}
	return rows, nil
}

// LatestPerKey returns the most recent sample of every known infohash,
// newest overall first, capped at limit rows total. The reduction happens in
// one query-time join; infohash cardinality is unbounded so filtering
// client-side is not an option.
func (s *Store) LatestPerKey(limit int) ([]model.Sample, error) {
	var rows []model.Sample
	err := s.db.Raw(`
		SELECT s1.* FROM samples s1
		INNER JOIN (
			SELECT infohash, MAX(ts) AS max_ts
			FROM samples
			GROUP BY infohash
		) s2 ON s1.infohash = s2.infohash AND s1.ts = s2.max_ts
		GROUP BY s1.infohash
		ORDER BY s1.ts DESC
		LIMIT ?`, limit).Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to fetch latest samples: %w", err)
	}
	return rows, nil
}

// InsertReceived records a swarm learned from the gossip feed. A duplicate
// infohash is an expected outcome, reported as false rather than an error;
// the existing row keeps its first-seen provenance.
func (s *Store) InsertReceived(rc *model.ReceivedContent) (bool, error) {
	result := s.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "infohash"}},
		DoNothing: true,
	}).Create(rc)
	if result.Error != nil {
		return false, fmt.Errorf("failed to insert received content: %w", result.Error)
	}
	return result.RowsAffected > 0, nil
}

// CandidatesForSampling returns up to limit received swarms ordered so that
// never-checked entries surface first, then the most recently received. The
// caller picks randomly within this pool to avoid head-of-line starvation.
func (s *Store) CandidatesForSampling(limit int) ([]model.ReceivedContent, error) {
	var rows []model.ReceivedContent
	err := s.db.
		Order("last_checked ASC NULLS FIRST, received_at DESC").
		Limit(limit).
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to fetch sampling candidates: %w", err)
	}
	return rows, nil
}

// MarkChecked stamps a received swarm after a probe attempt. Unknown
// infohashes are a no-op, not an error.
func (s *Store) MarkChecked(infohash string, ts int64) error {
	err := s.db.Model(&model.ReceivedContent{}).
		Where("infohash = ?", infohash).
		Updates(map[string]interface{}{
			"last_checked": ts,
			"check_count":  gorm.Expr("check_count + 1"),
		}).Error
	if err != nil {
		return fmt.Errorf("failed to mark %s checked: %w", infohash, err)
	}
	return nil
}

// KnownInfohashes returns every received infohash, used to warm dedup state
// on startup.
func (s *Store) KnownInfohashes() (map[string]struct{}, error) {
	var hashes []string
	if err := s.db.Model(&model.ReceivedContent{}).Pluck("infohash", &hashes).Error; err != nil {
		return nil, fmt.Errorf("failed to list received infohashes: %w", err)
	}
	out := make(map[string]struct{}, len(hashes))
	for _, h := range hashes {
		out[h] = struct{}{}
	}
	return out, nil
}

// CountSamples and CountReceived feed the status dashboard.
func (s *Store) CountSamples() (int64, error) {
	var n int64
	err := s.db.Model(&model.Sample{}).Count(&n).Error
	return n, err
}

func (s *Store) CountReceived() (int64, error) {
	var n int64
	err := s.db.Model(&model.ReceivedContent{}).Count(&n).Error
	return n, err
}

// DistinctSwarms counts infohashes with at least one sample.
func (s *Store) DistinctSwarms() (int64, error) {
	var n int64
	err := s.db.Model(&model.Sample{}).Distinct("infohash").Count(&n).Error
	return n, err
}
