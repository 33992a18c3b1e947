package locations

import "time"

// Location represents a vending machine site.
type Location struct {
	ID         int64     `json:"id"`
	LocationID string    `json:"location_id"`
	Name       string    `json:"name"`
	Active     bool      `json:"active"`
	CreatedAt  time.Time `json:"created_at"`
}

// Stats summarises the inventory of a single location.
type Stats struct {
	TotalProducts   int     `json:"totalProducts"`
	LowStockItems   int     `json:"lowStockItems"`
	OutOfStockItems int     `json:"outOfStockItems"`
	TotalValue      float64 `json:"totalValue"`
}

// LocationWithStats pairs a location with its inventory summary.
type LocationWithStats struct {
	Location
	Stats Stats `json:"stats"`
}
