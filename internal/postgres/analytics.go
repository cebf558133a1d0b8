package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/merchkit/storefront/internal/domain/report"
)

const (
	orderStatusCountsSQL = `SELECT order_status, COUNT(*) FROM orders GROUP BY order_status`

	revenueTotalsSQL = `SELECT COALESCE(SUM(total_price), 0), COALESCE(AVG(total_price), 0)
		FROM orders WHERE is_paid`

	monthlyRevenueSQL = `SELECT date_trunc('month', created_at) AS month,
		COALESCE(SUM(total_price), 0), COUNT(*)
		FROM orders WHERE is_paid AND created_at >= $1
		GROUP BY month ORDER BY month`

	topProductsSQL = `SELECT item->>'product' AS product_id,
		SUM((item->>'quantity')::int) AS total_sold,
		SUM((item->>'quantity')::numeric * (item->>'price')::numeric) AS revenue
		FROM orders, jsonb_array_elements(order_items) AS item
		GROUP BY product_id ORDER BY total_sold DESC LIMIT $1`

	dailySalesSQL = `SELECT date_trunc('day', created_at) AS day,
		COUNT(*), COALESCE(SUM(total_price), 0)
		FROM orders WHERE is_paid AND created_at >= $1 AND created_at <= $2
		GROUP BY day ORDER BY day DESC`

	productCountsSQL = `SELECT COUNT(*),
		COUNT(*) FILTER (WHERE is_active),
		COUNT(*) FILTER (WHERE stock = 0)
		FROM products`

	reviewCountSQL = `SELECT COUNT(*) FROM reviews`
)

// AnalyticsRepository runs the admin reporting queries.
type AnalyticsRepository struct {
	pool *pgxpool.Pool
}

// NewAnalyticsRepository returns an AnalyticsRepository that uses the given pool.
func NewAnalyticsRepository(pool *pgxpool.Pool) *AnalyticsRepository {
	return &AnalyticsRepository{pool: pool}
}

// Dashboard collects the admin overview figures.
func (r *AnalyticsRepository) Dashboard(ctx context.Context) (*report.Dashboard, error) {
	d := &report.Dashboard{Orders: make(map[string]int)}

	rows, err := r.pool.Query(ctx, orderStatusCountsSQL)
	if err != nil {
		return nil, fmt.Errorf("counting orders by status: %w", err)
	}
	for rows.Next() {
		var (
			status string
			count  int
		)
		if err := rows.Scan(&status, &count); err != nil {
			rows.Close()
			return nil, fmt.Errorf("counting orders by status: %w", err)
		}
		d.Orders[status] = count
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("counting orders by status: %w", err)
	}

	if err := r.pool.QueryRow(ctx, revenueTotalsSQL).Scan(&d.TotalRevenue, &d.AverageOrder); err != nil {
		return nil, fmt.Errorf("reading revenue totals: %w", err)
	}

	sixMonthsAgo := time.Now().AddDate(0, -6, 0)
	monthRows, err := r.pool.Query(ctx, monthlyRevenueSQL, sixMonthsAgo)
	if err != nil {
		return nil, fmt.Errorf("reading monthly revenue: %w", err)
	}
	d.Monthly, err = pgx.CollectRows(monthRows, func(row pgx.CollectableRow) (report.MonthlyRevenue, error) {
		var m report.MonthlyRevenue
		err := row.Scan(&m.Month, &m.Revenue, &m.Orders)
		return m, err
	})
	if err != nil {
		return nil, fmt.Errorf("reading monthly revenue: %w", err)
	}

	topRows, err := r.pool.Query(ctx, topProductsSQL, 10)
	if err != nil {
		return nil, fmt.Errorf("reading top products: %w", err)
	}
	d.TopProducts, err = pgx.CollectRows(topRows, func(row pgx.CollectableRow) (report.ProductSales, error) {
		var p report.ProductSales
		err := row.Scan(&p.ProductID, &p.TotalSold, &p.Revenue)
		return p, err
	})
	if err != nil {
		return nil, fmt.Errorf("reading top products: %w", err)
	}

	if err := r.pool.QueryRow(ctx, productCountsSQL).Scan(
		&d.Products.Total, &d.Products.Active, &d.Products.OutOfStock,
	); err != nil {
		return nil, fmt.Errorf("counting products: %w", err)
	}

	if err := r.pool.QueryRow(ctx, reviewCountSQL).Scan(&d.TotalReviews); err != nil {
		return nil, fmt.Errorf("counting reviews: %w", err)
	}

	return d, nil
}

// SalesReport returns per-day paid-order totals within the inclusive range.
func (r *AnalyticsRepository) SalesReport(ctx context.Context, from, to time.Time) ([]report.DailySales, error) {
	rows, err := r.pool.Query(ctx, dailySalesSQL, from, to)
	if err != nil {
		return nil, fmt.Errorf("reading sales report: %w", err)
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (report.DailySales, error) {
		var s report.DailySales
		err := row.Scan(&s.Day, &s.Orders, &s.Revenue)
		return s, err
	})
}
