// Package report defines the admin reporting figures. The values are
// read-only aggregations over the store's entities; they introduce no new
// invariants.
package report

import (
	"time"

	"github.com/shopspring/decimal"
)

// Dashboard aggregates store-wide figures for the admin overview.
type Dashboard struct {
	Orders       map[string]int   `json:"orders"`
	TotalRevenue decimal.Decimal  `json:"totalRevenue"`
	AverageOrder decimal.Decimal  `json:"averageOrderValue"`
	Monthly      []MonthlyRevenue `json:"monthlyRevenue"`
	TopProducts  []ProductSales   `json:"topProducts"`
	Products     ProductCounts    `json:"products"`
	TotalReviews int              `json:"totalReviews"`
}

// MonthlyRevenue is one month's paid-order revenue.
type MonthlyRevenue struct {
	Month   time.Time       `json:"month"`
	Revenue decimal.Decimal `json:"revenue"`
	Orders  int             `json:"orders"`
}

// ProductSales is a product's total units sold and revenue across orders.
type ProductSales struct {
	ProductID string          `json:"product"`
	TotalSold int             `json:"totalSold"`
	Revenue   decimal.Decimal `json:"revenue"`
}

// ProductCounts summarizes the catalog.
type ProductCounts struct {
	Total      int `json:"total"`
	Active     int `json:"active"`
	OutOfStock int `json:"outOfStock"`
}

// DailySales is one day's paid-order totals for the sales report.
type DailySales struct {
	Day     time.Time       `json:"day"`
	Orders  int             `json:"totalOrders"`
	Revenue decimal.Decimal `json:"totalRevenue"`
}
