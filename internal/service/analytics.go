package service

import (
	"context"
	"fmt"

	"github.com/craquetonbudget/bonsplans/internal/models"
)

// EventRecorder stores storefront interactions.
type EventRecorder interface {
	RecordEvent(ctx context.Context, productID string, kind models.EventKind) error
}

// AnalyticsService records storefront interactions.
type AnalyticsService struct {
	repo EventRecorder
}

// NewAnalyticsService constructs an AnalyticsService.
func NewAnalyticsService(repo EventRecorder) *AnalyticsService {
	return &AnalyticsService{repo: repo}
}

// Record stores one interaction of kind on productID.
func (s *AnalyticsService) Record(ctx context.Context, productID string, kind models.EventKind) error {
	if !kind.Valid() {
		return invalid("type", fmt.Sprintf("type d'événement inconnu: %q", kind))
	}
	if productID == "" {
		return fmt.Errorf("record event: %w", ErrNotFound)
	}
	return remote("record event", s.repo.RecordEvent(ctx, productID, kind))
}
