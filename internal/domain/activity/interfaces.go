package activity

import (
	"context"

	"github.com/rpggio/timeline/internal/identity"
)

// PrimarySource lists a user's items from the primary provider, already
// bound to the caller's authenticated client.
type PrimarySource interface {
	AllItems(ctx context.Context, email identity.Email) ([]Item, error)
}

// DocumentSource lists a user's recent documents from the secondary provider.
type DocumentSource interface {
	RecentDocumentItems(ctx context.Context, email identity.Email) ([]Item, error)
}
