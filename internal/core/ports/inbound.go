package ports

import (
	"context"

	"github.com/kirillkom/property-search-assistant/internal/core/domain"
)

// SearchService is the inbound contract for one complete user turn.
type SearchService interface {
	Search(ctx context.Context, req domain.SearchRequest) (*domain.TurnResult, error)
}
