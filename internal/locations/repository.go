package locations

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository reads location data from PostgreSQL.
type Repository interface {
	ListWithStats(ctx context.Context) ([]LocationWithStats, error)
}

type repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) Repository {
	return &repository{pool: pool}
}

// ListWithStats returns active locations with per-location inventory
// aggregates, ordered by name. Low stock means current_stock <= min_stock.
func (r *repository) ListWithStats(ctx context.Context) ([]LocationWithStats, error) {
	rows, err := r.pool.Query(ctx, `SELECT l.id, l.location_id, l.name, l.active, l.created_at,
	COUNT(i.id) AS total_products,
	COALESCE(SUM(CASE WHEN i.current_stock <= i.min_stock THEN 1 ELSE 0 END), 0) AS low_stock_items,
	COALESCE(SUM(CASE WHEN i.current_stock = 0 THEN 1 ELSE 0 END), 0) AS out_of_stock_items,
	COALESCE(SUM(i.current_stock * p.price), 0) AS total_value
FROM locations l
LEFT JOIN inventory i ON i.location_id = l.id
LEFT JOIN products p ON p.id = i.product_id
WHERE l.active
GROUP BY l.id, l.location_id, l.name, l.active, l.created_at
ORDER BY l.name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result := []LocationWithStats{}
	for rows.Next() {
		var item LocationWithStats
		if err := rows.Scan(&item.ID, &item.LocationID, &item.Name, &item.Active, &item.CreatedAt,
			&item.Stats.TotalProducts, &item.Stats.LowStockItems, &item.Stats.OutOfStockItems, &item.Stats.TotalValue); err != nil {
			return nil, err
		}
		result = append(result, item)
	}
	return result, rows.Err()
}
