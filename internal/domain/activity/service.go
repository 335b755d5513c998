package activity

import (
	"context"
	"fmt"
	"log/slog"
	"sort"

	"github.com/rpggio/timeline/internal/identity"
)

// Service builds the unified timeline.
type Service struct {
	documents DocumentSource
	logger    *slog.Logger
}

// NewService creates a new timeline service.
func NewService(documents DocumentSource, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Service{documents: documents, logger: logger}
}

// Timeline fetches the primary items, then the documents, and merges them
// newest first. The calls run one after the other and the first failure
// aborts the timeline.
func (s *Service) Timeline(ctx context.Context, primary PrimarySource, email identity.Email) ([]Item, error) {
	if primary == nil {
		return nil, ErrNoSource
	}
	primaryItems, err := primary.AllItems(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("listing primary items: %w", err)
	}
	documentItems, err := s.documents.RecentDocumentItems(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("listing documents: %w", err)
	}
	items := Merge(primaryItems, documentItems)
	s.logger.Debug("timeline built", "email", email.String(), "primary", len(primaryItems), "documents", len(documentItems))
	return items, nil
}

// Merge returns the union of both lists ordered by CreatedAt, newest first.
// Nothing is deduplicated; items without a timestamp go last.
func Merge(primary, secondary []Item) []Item {
	items := make([]Item, 0, len(primary)+len(secondary))
	items = append(items, primary...)
	items = append(items, secondary...)
	sort.SliceStable(items, func(i, j int) bool {
		return newer(items[i], items[j])
	})
	return items
}
