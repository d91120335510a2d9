package model

// Sample is one probe observation of a swarm, combined with the metrics
// derived from it. Rows are append-only; the table is the system of record
// for swarm history.
type Sample struct {
	ID       uint   `gorm:"primaryKey"`
	Infohash string `gorm:"index;not null"`
	TS       int64  `gorm:"column:ts;index;not null"`

	Seeders    int
	Leechers   int
	TotalPeers int

	Growth    float64
	Shrink    float64
	Exploding float64

	// Denormalized candidate fields so history rows stand alone
	URL        string
	License    string
	MagnetLink string

	Status     string // healthy, no_peers, no_magnet, error
	ProbeError string
	RawPeers   string // JSON peer list when the session exposes one
}

// ReceivedContent is one swarm learned from the gossip feed. Infohash
// uniqueness preserves first-seen provenance: a duplicate insert is rejected,
// never overwritten. LastChecked/CheckCount are touched only by the sampler.
type ReceivedContent struct {
	ID          uint   `gorm:"primaryKey"`
	Infohash    string `gorm:"uniqueIndex;not null"`
	URL         string `gorm:"not null"`
	License     string `gorm:"not null"`
	MagnetLink  string `gorm:"not null"`
	ReceivedAt  int64  `gorm:"not null"`
	SourcePeer  string
	LastChecked *int64 `gorm:"index"`
	CheckCount  int
}

func (Sample) TableName() string { return "samples" }

func (ReceivedContent) TableName() string { return "received_content" }
