package usecase

import (
	"context"
	"fmt"

	"BioMedNews/internal/domain"
	"BioMedNews/internal/ports"
)

// DeliverySelector picks digest-worthy papers for a profile and records every
// delivery attempt. It is the only writer of the delivery exclusion set.
type DeliverySelector struct {
	store ports.PaperStore
}

// NewDeliverySelector binds the selector to its store.
func NewDeliverySelector(store ports.PaperStore) *DeliverySelector {
	return &DeliverySelector{store: store}
}

// SelectForDelivery returns the highest-ranked papers above both thresholds,
// best combined score first. With excludeDelivered set, papers from earlier
// delivery attempts are subtracted before the limit is applied, so the digest
// fills up with the next-best undelivered papers.
func (d *DeliverySelector) SelectForDelivery(ctx context.Context, profile domain.Profile, minRelevance, minQuality float64, limit int, excludeDelivered bool) ([]domain.ScoredPaper, error) {
	papers, err := d.store.TopScored(ctx, profile.ID, minRelevance, minQuality, limit, excludeDelivered)
	if err != nil {
		return nil, fmt.Errorf("select for delivery: %w", err)
	}
	return papers, nil
}

// RecordDelivery persists one delivery attempt covering the given papers.
// Recording an empty set is a no-op: an empty digest is never delivered.
func (d *DeliverySelector) RecordDelivery(ctx context.Context, profileID int64, paperIDs []int64, status domain.DeliveryStatus) error {
	if len(paperIDs) == 0 {
		return nil
	}
	if _, err := d.store.RecordDelivery(ctx, profileID, paperIDs, status); err != nil {
		return fmt.Errorf("record delivery: %w", err)
	}
	return nil
}
