package locations

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type slowRepo struct {
	calls atomic.Int64
	delay time.Duration
}

func (r *slowRepo) ListWithStats(ctx context.Context) ([]LocationWithStats, error) {
	r.calls.Add(1)
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-time.After(r.delay):
	}
	return []LocationWithStats{
		{Location: Location{ID: 1, LocationID: "L1", Name: "Lobby", Active: true}},
	}, nil
}

func TestListWithStats(t *testing.T) {
	repo := &slowRepo{}
	svc := NewService(repo)

	list, err := svc.ListWithStats(context.Background())
	require.NoError(t, err)
	require.Len(t, list, 1)
	require.Equal(t, "L1", list[0].LocationID)
}

func TestListWithStatsCollapsesConcurrentCalls(t *testing.T) {
	repo := &slowRepo{delay: 50 * time.Millisecond}
	svc := NewService(repo)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			list, err := svc.ListWithStats(context.Background())
			require.NoError(t, err)
			require.Len(t, list, 1)
		}()
	}
	wg.Wait()

	require.Equal(t, int64(1), repo.calls.Load())
}
