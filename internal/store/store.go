// Package store provides the tenant-scoped read queries used by the
// assistant's tool handlers.
//
// Every query filters by tenant ID; no method mutates tenant data. Handlers
// built on this package are therefore safe to retry and safe for the model
// to call speculatively.
package store

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrNotFound indicates the requested row does not exist for the tenant.
var ErrNotFound = errors.New("not found")

// ErrUnknownPeriod indicates a sales metrics period outside the supported set.
var ErrUnknownPeriod = errors.New("unknown period")

// LowStockThreshold is the stock level below which a product counts as
// low stock for inventory alerts and product searches.
const LowStockThreshold = 10

// querier is the common interface satisfied by both *pgxpool.Pool and pgx.Tx.
type querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Store executes tenant-scoped queries against PostgreSQL.
//
// Store is safe for concurrent use by multiple goroutines.
type Store struct {
	db     querier
	logger *slog.Logger
}

// New creates a Store backed by the given connection pool.
func New(pool *pgxpool.Pool, logger *slog.Logger) (*Store, error) {
	if pool == nil {
		return nil, fmt.Errorf("pool is required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{db: pool, logger: logger}, nil
}

// Tenant is the subset of tenant columns the assistant needs.
type Tenant struct {
	ID           uuid.UUID
	Slug         string
	BusinessName string
}

// TenantBySlug resolves an active tenant by its slug.
func (s *Store) TenantBySlug(ctx context.Context, slug string) (*Tenant, error) {
	var t Tenant
	err := s.db.QueryRow(ctx,
		`SELECT id, slug, business_name FROM tenants
		 WHERE slug = $1 AND deleted_at IS NULL`, slug).
		Scan(&t.ID, &t.Slug, &t.BusinessName)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("tenant %q: %w", slug, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("querying tenant %q: %w", slug, err)
	}
	return &t, nil
}

// SalesStats aggregates completed sales for a period.
type SalesStats struct {
	TotalSales float64 `json:"total_sales"`
	Count      int     `json:"count"`
	Period     string  `json:"period"`
}

// GetSalesStats totals non-cancelled, non-refunded orders for the tenant.
// startDate and endDate are ISO dates (YYYY-MM-DD); either may be empty.
func (s *Store) GetSalesStats(ctx context.Context, tenantID uuid.UUID, startDate, endDate string) (*SalesStats, error) {
	query := `SELECT COALESCE(SUM(total_amount), 0)::float8, COUNT(*)
		FROM orders
		WHERE tenant_id = $1 AND status NOT IN ('cancelled', 'refunded')`
	args := []any{tenantID}

	if startDate != "" {
		args = append(args, startDate)
		query += fmt.Sprintf(" AND created_at >= $%d", len(args))
	}
	if endDate != "" {
		args = append(args, endDate)
		query += fmt.Sprintf(" AND created_at <= $%d", len(args))
	}

	stats := &SalesStats{}
	if err := s.db.QueryRow(ctx, query, args...).Scan(&stats.TotalSales, &stats.Count); err != nil {
		return nil, fmt.Errorf("querying sales stats: %w", err)
	}

	start, end := startDate, endDate
	if start == "" {
		start = "all"
	}
	if end == "" {
		end = "now"
	}
	stats.Period = start + " to " + end
	return stats, nil
}

// OrderSummary is a single row of the recent-orders listing.
type OrderSummary struct {
	OrderNumber       string    `json:"order_number"`
	Status            string    `json:"status"`
	TotalAmount       float64   `json:"total_amount"`
	CustomerFirstName string    `json:"customer_first_name"`
	CustomerLastName  string    `json:"customer_last_name"`
	CreatedAt         time.Time `json:"created_at"`
}

// GetOrders returns the latest 10 orders for the tenant, optionally filtered
// by status and/or a case-insensitive customer name match.
func (s *Store) GetOrders(ctx context.Context, tenantID uuid.UUID, status, customerName string) ([]OrderSummary, error) {
	query := `SELECT order_number, status, total_amount::float8,
		customer_first_name, customer_last_name, created_at
		FROM orders WHERE tenant_id = $1`
	args := []any{tenantID}

	if status != "" {
		args = append(args, status)
		query += fmt.Sprintf(" AND status = $%d", len(args))
	}
	if customerName != "" {
		args = append(args, "%"+customerName+"%")
		query += fmt.Sprintf(" AND (customer_first_name ILIKE $%d OR customer_last_name ILIKE $%d)",
			len(args), len(args))
	}
	query += " ORDER BY created_at DESC LIMIT 10"

	rows, err := s.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying orders: %w", err)
	}
	defer rows.Close()

	var orders []OrderSummary
	for rows.Next() {
		var o OrderSummary
		if err := rows.Scan(&o.OrderNumber, &o.Status, &o.TotalAmount,
			&o.CustomerFirstName, &o.CustomerLastName, &o.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning order row: %w", err)
		}
		orders = append(orders, o)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating order rows: %w", err)
	}
	return orders, nil
}

// OrderItem is a purchased line item on an order.
type OrderItem struct {
	ProductName string  `json:"product_name"`
	SKU         string  `json:"sku"`
	Quantity    int     `json:"quantity"`
	UnitPrice   float64 `json:"unit_price"`
}

// OrderDetails is the full view of a single order including its items.
type OrderDetails struct {
	OrderNumber       string      `json:"order_number"`
	Status            string      `json:"status"`
	TotalAmount       float64     `json:"total_amount"`
	CustomerFirstName string      `json:"customer_first_name"`
	CustomerLastName  string      `json:"customer_last_name"`
	PaymentStatus     string      `json:"payment_status"`
	ShippingAddress   string      `json:"shipping_address"`
	CreatedAt         time.Time   `json:"created_at"`
	Items             []OrderItem `json:"items"`
}

// GetOrderDetails returns one order with its line items, or ErrNotFound.
func (s *Store) GetOrderDetails(ctx context.Context, tenantID uuid.UUID, orderNumber string) (*OrderDetails, error) {
	var (
		d        OrderDetails
		orderID  uuid.UUID
		shipping *string
	)
	err := s.db.QueryRow(ctx,
		`SELECT id, order_number, status, total_amount::float8,
			customer_first_name, customer_last_name, payment_status,
			shipping_address, created_at
		 FROM orders WHERE tenant_id = $1 AND order_number = $2`,
		tenantID, orderNumber).
		Scan(&orderID, &d.OrderNumber, &d.Status, &d.TotalAmount,
			&d.CustomerFirstName, &d.CustomerLastName, &d.PaymentStatus,
			&shipping, &d.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("order %q: %w", orderNumber, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("querying order %q: %w", orderNumber, err)
	}
	if shipping != nil {
		d.ShippingAddress = *shipping
	}

	rows, err := s.db.Query(ctx,
		`SELECT product_name, sku, quantity, unit_price::float8
		 FROM order_items WHERE order_id = $1`, orderID)
	if err != nil {
		return nil, fmt.Errorf("querying order items: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var it OrderItem
		if err := rows.Scan(&it.ProductName, &it.SKU, &it.Quantity, &it.UnitPrice); err != nil {
			return nil, fmt.Errorf("scanning order item: %w", err)
		}
		d.Items = append(d.Items, it)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating order items: %w", err)
	}
	return &d, nil
}

// Product is a single row of the product listing.
type Product struct {
	Name   string  `json:"name"`
	SKU    string  `json:"sku"`
	Price  float64 `json:"price"`
	Stock  int     `json:"stock"`
	Status string  `json:"status"`
}

// GetProducts lists products for the tenant, excluding soft-deleted rows.
// search matches the name case-insensitively; lowStock keeps only rows below
// LowStockThreshold.
func (s *Store) GetProducts(ctx context.Context, tenantID uuid.UUID, search string, lowStock bool) ([]Product, error) {
	query := `SELECT name, sku, price::float8, stock, status
		FROM products WHERE tenant_id = $1 AND deleted_at IS NULL`
	args := []any{tenantID}

	if search != "" {
		args = append(args, "%"+search+"%")
		query += fmt.Sprintf(" AND name ILIKE $%d", len(args))
	}
	if lowStock {
		args = append(args, LowStockThreshold)
		query += fmt.Sprintf(" AND stock < $%d", len(args))
	}
	query += " ORDER BY name"

	rows, err := s.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying products: %w", err)
	}
	defer rows.Close()

	var products []Product
	for rows.Next() {
		var p Product
		if err := rows.Scan(&p.Name, &p.SKU, &p.Price, &p.Stock, &p.Status); err != nil {
			return nil, fmt.Errorf("scanning product row: %w", err)
		}
		products = append(products, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating product rows: %w", err)
	}
	return products, nil
}

// InventoryAlert is a product at or near stock-out.
type InventoryAlert struct {
	Name          string `json:"name"`
	SKU           string `json:"sku"`
	StockQuantity int    `json:"stock_quantity"`
}

// GetInventoryAlerts lists products that are out of stock, or below
// LowStockThreshold when onlyOutOfStock is false.
func (s *Store) GetInventoryAlerts(ctx context.Context, tenantID uuid.UUID, onlyOutOfStock bool) ([]InventoryAlert, error) {
	query := `SELECT name, sku, stock
		FROM products WHERE tenant_id = $1 AND deleted_at IS NULL`
	args := []any{tenantID}

	if onlyOutOfStock {
		query += " AND stock = 0"
	} else {
		args = append(args, LowStockThreshold)
		query += fmt.Sprintf(" AND stock < $%d", len(args))
	}
	query += " ORDER BY stock, name"

	rows, err := s.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying inventory alerts: %w", err)
	}
	defer rows.Close()

	var alerts []InventoryAlert
	for rows.Next() {
		var a InventoryAlert
		if err := rows.Scan(&a.Name, &a.SKU, &a.StockQuantity); err != nil {
			return nil, fmt.Errorf("scanning inventory row: %w", err)
		}
		alerts = append(alerts, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating inventory rows: %w", err)
	}
	return alerts, nil
}

// Promotion is an active discount code.
type Promotion struct {
	Code        string     `json:"code"`
	Description string     `json:"description"`
	UsageCount  int        `json:"usage_count"`
	ValidFrom   *time.Time `json:"valid_from,omitempty"`
	ValidUntil  *time.Time `json:"valid_until,omitempty"`
}

// GetActivePromotions lists the tenant's active discount codes.
func (s *Store) GetActivePromotions(ctx context.Context, tenantID uuid.UUID) ([]Promotion, error) {
	rows, err := s.db.Query(ctx,
		`SELECT code, description, usage_count, valid_from, valid_until
		 FROM discounts WHERE tenant_id = $1 AND status = 'active'
		 ORDER BY created_at DESC`, tenantID)
	if err != nil {
		return nil, fmt.Errorf("querying promotions: %w", err)
	}
	defer rows.Close()

	var promos []Promotion
	for rows.Next() {
		var p Promotion
		if err := rows.Scan(&p.Code, &p.Description, &p.UsageCount, &p.ValidFrom, &p.ValidUntil); err != nil {
			return nil, fmt.Errorf("scanning promotion row: %w", err)
		}
		promos = append(promos, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating promotion rows: %w", err)
	}
	return promos, nil
}

// SalesMetrics is the aggregate for a named reporting period.
type SalesMetrics struct {
	Period       string  `json:"period"`
	TotalRevenue float64 `json:"total_revenue"`
	OrderCount   int     `json:"order_count"`
}

// GetSalesMetrics aggregates revenue and order count for one of the named
// periods: today, yesterday, this_week, this_month, last_month.
func (s *Store) GetSalesMetrics(ctx context.Context, tenantID uuid.UUID, period string, now time.Time) (*SalesMetrics, error) {
	start, end, err := periodBounds(period, now)
	if err != nil {
		return nil, err
	}

	m := &SalesMetrics{Period: period}
	err = s.db.QueryRow(ctx,
		`SELECT COALESCE(SUM(total_amount), 0)::float8, COUNT(*)
		 FROM orders
		 WHERE tenant_id = $1 AND status NOT IN ('cancelled', 'refunded')
		   AND created_at >= $2 AND created_at < $3`,
		tenantID, start, end).
		Scan(&m.TotalRevenue, &m.OrderCount)
	if err != nil {
		return nil, fmt.Errorf("querying sales metrics: %w", err)
	}
	return m, nil
}

// periodBounds resolves a named period to a half-open [start, end) interval.
func periodBounds(period string, now time.Time) (time.Time, time.Time, error) {
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())

	switch period {
	case "today":
		return today, today.AddDate(0, 0, 1), nil
	case "yesterday":
		return today.AddDate(0, 0, -1), today, nil
	case "this_week":
		// Week starts on Monday.
		offset := (int(today.Weekday()) + 6) % 7
		start := today.AddDate(0, 0, -offset)
		return start, start.AddDate(0, 0, 7), nil
	case "this_month":
		start := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location())
		return start, start.AddDate(0, 1, 0), nil
	case "last_month":
		end := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location())
		return end.AddDate(0, -1, 0), end, nil
	default:
		return time.Time{}, time.Time{}, fmt.Errorf("%w: %q", ErrUnknownPeriod, period)
	}
}
