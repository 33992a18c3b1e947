package inventory

import (
	"errors"
	"time"
)

// Item is one inventory row joined with its location and product.
type Item struct {
	ID           int64     `json:"id"`
	LocationID   int64     `json:"location_id"`
	ProductID    int64     `json:"product_id"`
	CurrentStock int       `json:"current_stock"`
	MinStock     int       `json:"min_stock"`
	MaxStock     int       `json:"max_stock"`
	UpdatedAt    time.Time `json:"updated_at"`

	LocationCode string  `json:"location_code"`
	LocationName string  `json:"location_name"`
	ProductName  string  `json:"product_name"`
	ProductUPC   string  `json:"product_upc"`
	ProductPrice float64 `json:"product_price"`
}

// UpdateInput carries a manual stock-level correction.
type UpdateInput struct {
	CurrentStock int `json:"currentStock" validate:"min=0"`
	MinStock     int `json:"minStock" validate:"min=0"`
	MaxStock     int `json:"maxStock" validate:"min=0"`
}

// LowStockItem is reported by the scheduled low-stock scan.
type LowStockItem struct {
	LocationCode string
	LocationName string
	ProductName  string
	CurrentStock int
	MinStock     int
}

// ErrNegativeStock rejects updates that would store a negative quantity.
var ErrNegativeStock = errors.New("inventory: negative stock not allowed")

// ErrInvalidStockRange rejects updates where min exceeds max.
var ErrInvalidStockRange = errors.New("inventory: min stock must not exceed max stock")
