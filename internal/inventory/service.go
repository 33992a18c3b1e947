package inventory

import (
	"context"
	"errors"
	"strconv"

	"github.com/vendtrack/vendtrack/internal/shared"
)

// AuditPort abstracts audit logging functionality.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// Service coordinates inventory views and manual corrections.
type Service struct {
	repo  Repository
	audit AuditPort
}

// NewService builds Service.
func NewService(repo Repository, audit AuditPort) *Service {
	return &Service{repo: repo, audit: audit}
}

// List returns inventory rows, optionally filtered to one location.
// locationID zero means all locations.
func (s *Service) List(ctx context.Context, locationID int64) ([]Item, error) {
	if locationID < 0 {
		return nil, errors.New("inventory: invalid location id")
	}
	return s.repo.List(ctx, locationID)
}

// UpdateStock applies a manual stock-level correction.
func (s *Service) UpdateStock(ctx context.Context, id int64, input UpdateInput, actorID int64) (Item, error) {
	if id <= 0 {
		return Item{}, shared.ErrNotFound
	}
	if input.CurrentStock < 0 || input.MinStock < 0 || input.MaxStock < 0 {
		return Item{}, ErrNegativeStock
	}
	if input.MinStock > input.MaxStock {
		return Item{}, ErrInvalidStockRange
	}
	item, err := s.repo.UpdateStock(ctx, id, input)
	if err != nil {
		return Item{}, err
	}
	if s.audit != nil {
		_ = s.audit.Record(ctx, shared.AuditLog{
			ActorID:  actorID,
			Action:   "inventory:update",
			Entity:   "inventory",
			EntityID: strconv.FormatInt(id, 10),
			Meta: map[string]any{
				"current_stock": input.CurrentStock,
				"min_stock":     input.MinStock,
				"max_stock":     input.MaxStock,
			},
		})
	}
	return item, nil
}

// ListLowStock reports rows at or below their minimum level.
func (s *Service) ListLowStock(ctx context.Context, limit int) ([]LowStockItem, error) {
	return s.repo.ListLowStock(ctx, limit)
}
