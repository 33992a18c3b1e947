package locations

import (
	"context"

	"golang.org/x/sync/singleflight"
)

// Service serves location listings. Concurrent requests for the stats view
// collapse into a single repository query.
type Service struct {
	repo  Repository
	group singleflight.Group
}

// NewService builds Service.
func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// ListWithStats returns active locations with inventory summaries.
func (s *Service) ListWithStats(ctx context.Context) ([]LocationWithStats, error) {
	resultChan := s.group.DoChan("list", func() (interface{}, error) {
		return s.repo.ListWithStats(ctx)
	})
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-resultChan:
		if res.Err != nil {
			return nil, res.Err
		}
		list, _ := res.Val.([]LocationWithStats)
		return list, nil
	}
}
