package inventory

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/vendtrack/vendtrack/internal/shared"
)

// Repository persists inventory data in PostgreSQL.
type Repository interface {
	List(ctx context.Context, locationID int64) ([]Item, error)
	Get(ctx context.Context, id int64) (Item, error)
	UpdateStock(ctx context.Context, id int64, input UpdateInput) (Item, error)
	ListLowStock(ctx context.Context, limit int) ([]LowStockItem, error)
}

type repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) Repository {
	return &repository{pool: pool}
}

const itemColumns = `i.id, i.location_id, i.product_id, i.current_stock, i.min_stock, i.max_stock, i.updated_at,
	l.location_id, l.name, p.name, p.upc, p.price`

const itemJoins = `FROM inventory i
JOIN locations l ON l.id = i.location_id
JOIN products p ON p.id = i.product_id`

// List returns inventory rows ordered by current stock ascending, optionally
// filtered to one location.
func (r *repository) List(ctx context.Context, locationID int64) ([]Item, error) {
	query := `SELECT ` + itemColumns + ` ` + itemJoins + `
WHERE ($1 = 0 OR i.location_id = $1)
ORDER BY i.current_stock ASC, i.id ASC`
	rows, err := r.pool.Query(ctx, query, locationID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := []Item{}
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

// Get fetches one inventory row by primary key.
func (r *repository) Get(ctx context.Context, id int64) (Item, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+itemColumns+` `+itemJoins+` WHERE i.id = $1`, id)
	item, err := scanItem(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Item{}, shared.ErrNotFound
		}
		return Item{}, err
	}
	return item, nil
}

// UpdateStock overwrites the stock levels of one row and refreshes updated_at.
func (r *repository) UpdateStock(ctx context.Context, id int64, input UpdateInput) (Item, error) {
	tag, err := r.pool.Exec(ctx, `UPDATE inventory SET current_stock=$1, min_stock=$2, max_stock=$3, updated_at=NOW() WHERE id=$4`,
		input.CurrentStock, input.MinStock, input.MaxStock, id)
	if err != nil {
		return Item{}, err
	}
	if tag.RowsAffected() == 0 {
		return Item{}, shared.ErrNotFound
	}
	return r.Get(ctx, id)
}

// ListLowStock returns rows at or below their minimum stock level.
func (r *repository) ListLowStock(ctx context.Context, limit int) ([]LowStockItem, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := r.pool.Query(ctx, `SELECT l.location_id, l.name, p.name, i.current_stock, i.min_stock
`+itemJoins+`
WHERE i.current_stock <= i.min_stock
ORDER BY i.current_stock ASC
LIMIT $1`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := []LowStockItem{}
	for rows.Next() {
		var item LowStockItem
		if err := rows.Scan(&item.LocationCode, &item.LocationName, &item.ProductName, &item.CurrentStock, &item.MinStock); err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

func scanItem(row pgx.Row) (Item, error) {
	var item Item
	err := row.Scan(&item.ID, &item.LocationID, &item.ProductID, &item.CurrentStock, &item.MinStock, &item.MaxStock, &item.UpdatedAt,
		&item.LocationCode, &item.LocationName, &item.ProductName, &item.ProductUPC, &item.ProductPrice)
	return item, err
}
