// Package models defines the records owned by the lifecycle service and the
// rules governing how they change.
package models

import "time"

// PaymentState is the tri-state payment flag. Its integer values are part of
// the persisted format.
type PaymentState int

const (
	PaymentFreeTier PaymentState = -1
	PaymentUnpaid   PaymentState = 0
	PaymentPaid     PaymentState = 1
)

func (p PaymentState) String() string {
	switch p {
	case PaymentFreeTier:
		return "FREE_TIER"
	case PaymentUnpaid:
		return "UNPAID"
	case PaymentPaid:
		return "PAID"
	default:
		return "UNKNOWN"
	}
}

// Valid reports whether p is one of the three defined values.
func (p PaymentState) Valid() bool {
	return p == PaymentFreeTier || p == PaymentUnpaid || p == PaymentPaid
}

// Processing modes.
const (
	ModeWatermark = "watermark"
	ModeForensics = "forensics"
)

// FileRecord is one submission through its entire lifecycle.
type FileRecord struct {
	ID           string
	OriginalName string
	Format       string
	SizeBytes    int64
	// Checksum is the hex BLAKE2b-256 digest of the uploaded bytes.
	Checksum string
	Width    int
	Height   int

	// Storage keys. ProcessedKey and PreviewKey stay empty until a
	// successful processing run.
	SourceKey    string
	ProcessedKey string
	PreviewKey   string

	Mode          string
	CustomPayload string
	Result        Evidence

	State         State
	PaymentState  PaymentState
	DownloadCount int64

	CreatedAt time.Time
	UpdatedAt time.Time
}

// BestArtifactKey returns the processed artifact if present, else the source.
func (f *FileRecord) BestArtifactKey() string {
	if f.ProcessedKey != "" {
		return f.ProcessedKey
	}
	return f.SourceKey
}

// ArtifactKeys lists every stored artifact of the record.
func (f *FileRecord) ArtifactKeys() []string {
	keys := make([]string, 0, 3)
	for _, k := range []string{f.SourceKey, f.ProcessedKey, f.PreviewKey} {
		if k != "" {
			keys = append(keys, k)
		}
	}
	return keys
}
