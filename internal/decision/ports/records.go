package ports

import (
	"context"

	"kycbuster/internal/records/models"
)

// RecordStore is the append-only write side of the record store.
type RecordStore interface {
	InsertRecord(ctx context.Context, r *models.VerificationRecord) error
}

// Mirror receives a copy of each persisted record. Publish must not block
// and has no way to report failure to the caller.
type Mirror interface {
	Publish(ctx context.Context, r models.VerificationRecord)
}
