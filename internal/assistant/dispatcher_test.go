package assistant

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/Juliodvp29/venti-multi-tenant/internal/log"
	"github.com/Juliodvp29/venti-multi-tenant/internal/store"
)

// fakeDataStore is a DataStore fake with canned results and call counters.
type fakeDataStore struct {
	err error

	salesStatsCalls      int
	ordersCalls          int
	orderDetailsCalls    int
	productsCalls        int
	inventoryAlertsCalls int
	promotionsCalls      int
	salesMetricsCalls    int

	lastTenantID uuid.UUID
	lastPeriod   string
	lastLowStock bool

	products []store.Product
	alerts   []store.InventoryAlert
}

func (f *fakeDataStore) GetSalesStats(_ context.Context, tenantID uuid.UUID, _, _ string) (*store.SalesStats, error) {
	f.salesStatsCalls++
	f.lastTenantID = tenantID
	if f.err != nil {
		return nil, f.err
	}
	return &store.SalesStats{TotalSales: 1500.50, Count: 12, Period: "2024-01-01 to 2024-01-31"}, nil
}

func (f *fakeDataStore) GetOrders(_ context.Context, tenantID uuid.UUID, _, _ string) ([]store.OrderSummary, error) {
	f.ordersCalls++
	f.lastTenantID = tenantID
	if f.err != nil {
		return nil, f.err
	}
	return []store.OrderSummary{{OrderNumber: "STORE-2024-0001"}}, nil
}

func (f *fakeDataStore) GetOrderDetails(_ context.Context, tenantID uuid.UUID, orderNumber string) (*store.OrderDetails, error) {
	f.orderDetailsCalls++
	f.lastTenantID = tenantID
	if f.err != nil {
		return nil, f.err
	}
	return &store.OrderDetails{OrderNumber: orderNumber, Status: "shipped"}, nil
}

func (f *fakeDataStore) GetProducts(_ context.Context, tenantID uuid.UUID, _ string, lowStock bool) ([]store.Product, error) {
	f.productsCalls++
	f.lastTenantID = tenantID
	f.lastLowStock = lowStock
	if f.err != nil {
		return nil, f.err
	}
	return f.products, nil
}

func (f *fakeDataStore) GetInventoryAlerts(_ context.Context, tenantID uuid.UUID, _ bool) ([]store.InventoryAlert, error) {
	f.inventoryAlertsCalls++
	f.lastTenantID = tenantID
	if f.err != nil {
		return nil, f.err
	}
	return f.alerts, nil
}

func (f *fakeDataStore) GetActivePromotions(_ context.Context, tenantID uuid.UUID) ([]store.Promotion, error) {
	f.promotionsCalls++
	f.lastTenantID = tenantID
	if f.err != nil {
		return nil, f.err
	}
	return []store.Promotion{{Code: "VERANO10"}}, nil
}

func (f *fakeDataStore) GetSalesMetrics(_ context.Context, tenantID uuid.UUID, period string, _ time.Time) (*store.SalesMetrics, error) {
	f.salesMetricsCalls++
	f.lastTenantID = tenantID
	f.lastPeriod = period
	if f.err != nil {
		return nil, f.err
	}
	return &store.SalesMetrics{Period: period, TotalRevenue: 980.0, OrderCount: 7}, nil
}

func newTestDispatcher(t *testing.T, ds DataStore) *Dispatcher {
	t.Helper()
	r, err := NewRegistry(ds)
	if err != nil {
		t.Fatalf("NewRegistry: %v", err)
	}
	return NewDispatcher(r, log.NewNop())
}

func TestDispatcherExecuteSuccess(t *testing.T) {
	t.Parallel()

	ds := &fakeDataStore{}
	d := newTestDispatcher(t, ds)
	tenantID := uuid.New()

	result := d.Execute(context.Background(), "get_sales_metrics", map[string]any{"period": "yesterday"}, tenantID)

	if result.IsError() {
		t.Fatalf("unexpected error payload: %v", result.Payload)
	}
	if result.Name != "get_sales_metrics" {
		t.Errorf("result name = %q", result.Name)
	}
	if _, ok := result.Payload["content"]; !ok {
		t.Error("success payload must carry a content key")
	}
	if ds.salesMetricsCalls != 1 {
		t.Errorf("GetSalesMetrics called %d times, want 1", ds.salesMetricsCalls)
	}
	if ds.lastPeriod != "yesterday" {
		t.Errorf("period = %q, want yesterday", ds.lastPeriod)
	}
	if ds.lastTenantID != tenantID {
		t.Error("handler did not receive the tenant ID")
	}
}

func TestDispatcherExecuteUnknownTool(t *testing.T) {
	t.Parallel()

	d := newTestDispatcher(t, &fakeDataStore{})

	result := d.Execute(context.Background(), "explode", nil, uuid.New())

	if !result.IsError() {
		t.Fatal("unknown tool should yield an error payload")
	}
	if result.Payload["error"] != "Unknown tool" {
		t.Errorf("error payload = %v", result.Payload["error"])
	}
	if result.Name != "explode" {
		t.Errorf("result keeps the requested name, got %q", result.Name)
	}
}

func TestDispatcherExecuteNilArgs(t *testing.T) {
	t.Parallel()

	ds := &fakeDataStore{}
	d := newTestDispatcher(t, ds)

	// Tools with no required parameters accept a missing argument object.
	result := d.Execute(context.Background(), "get_active_promotions", nil, uuid.New())

	if result.IsError() {
		t.Fatalf("nil args on an optional-only tool should succeed: %v", result.Payload)
	}
	if ds.promotionsCalls != 1 {
		t.Errorf("GetActivePromotions called %d times, want 1", ds.promotionsCalls)
	}
}

func TestDispatcherExecuteValidationFailure(t *testing.T) {
	t.Parallel()

	ds := &fakeDataStore{}
	d := newTestDispatcher(t, ds)

	result := d.Execute(context.Background(), "get_order_details", map[string]any{}, uuid.New())

	if !result.IsError() {
		t.Fatal("missing required orderNumber should yield an error payload")
	}
	if ds.orderDetailsCalls != 0 {
		t.Error("handler must not run when validation fails")
	}
}

func TestDispatcherExecuteHandlerError(t *testing.T) {
	t.Parallel()

	ds := &fakeDataStore{err: errors.New("connection refused")}
	d := newTestDispatcher(t, ds)

	result := d.Execute(context.Background(), "get_orders", map[string]any{"status": "pending"}, uuid.New())

	if !result.IsError() {
		t.Fatal("handler failure should yield an error payload, not propagate")
	}
	if result.Payload["error"] != "connection refused" {
		t.Errorf("error payload = %v", result.Payload["error"])
	}
}

func TestDispatcherStubTools(t *testing.T) {
	t.Parallel()

	d := newTestDispatcher(t, &fakeDataStore{})
	tenantID := uuid.New()

	tests := []struct {
		name string
		args map[string]any
	}{
		{"get_product_performance", map[string]any{"limit": float64(5)}},
		{"analyze_customer_segment", map[string]any{"segment": "VIP"}},
		{"get_recent_audit_logs", nil},
	}
	for _, tt := range tests {
		result := d.Execute(context.Background(), tt.name, tt.args, tenantID)
		if result.IsError() {
			t.Errorf("%s: unexpected error payload %v", tt.name, result.Payload)
			continue
		}
		content, ok := result.Payload["content"].(map[string]any)
		if !ok {
			t.Errorf("%s: content is not an object", tt.name)
			continue
		}
		if _, ok := content["message"]; !ok {
			t.Errorf("%s: stub should return a message field", tt.name)
		}
	}
}

func TestDecodeArgs(t *testing.T) {
	t.Parallel()

	in, err := decodeArgs[productsArgs](map[string]any{"search": "camiseta", "lowStock": true})
	if err != nil {
		t.Fatalf("decodeArgs: %v", err)
	}
	if in.Search != "camiseta" || !in.LowStock {
		t.Errorf("decoded %+v", in)
	}

	if _, err := decodeArgs[productsArgs](map[string]any{"lowStock": "yes"}); err == nil {
		t.Error("type mismatch should fail decoding")
	}
}
