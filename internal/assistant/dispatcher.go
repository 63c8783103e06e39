package assistant

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/Juliodvp29/venti-multi-tenant/internal/store"
)

// DataStore is the narrow read surface tool handlers query through.
// *store.Store satisfies it; tests substitute a fake.
type DataStore interface {
	GetSalesStats(ctx context.Context, tenantID uuid.UUID, startDate, endDate string) (*store.SalesStats, error)
	GetOrders(ctx context.Context, tenantID uuid.UUID, status, customerName string) ([]store.OrderSummary, error)
	GetOrderDetails(ctx context.Context, tenantID uuid.UUID, orderNumber string) (*store.OrderDetails, error)
	GetProducts(ctx context.Context, tenantID uuid.UUID, search string, lowStock bool) ([]store.Product, error)
	GetInventoryAlerts(ctx context.Context, tenantID uuid.UUID, onlyOutOfStock bool) ([]store.InventoryAlert, error)
	GetActivePromotions(ctx context.Context, tenantID uuid.UUID) ([]store.Promotion, error)
	GetSalesMetrics(ctx context.Context, tenantID uuid.UUID, period string, now time.Time) (*store.SalesMetrics, error)
}

// Result is the outcome of one tool call. It is always well-formed: Payload
// carries either {"content": <domain data>} or {"error": <message>}, in the
// shape the model receives as a function response. Dispatch never returns an
// error alongside it — failure is data here, not control flow.
type Result struct {
	Name    string
	Payload map[string]any
}

// IsError reports whether the result carries an error payload.
func (r Result) IsError() bool {
	_, ok := r.Payload["error"]
	return ok
}

func okResult(name string, data any) Result {
	return Result{Name: name, Payload: map[string]any{"content": data}}
}

func errResult(name, message string) Result {
	return Result{Name: name, Payload: map[string]any{"error": message}}
}

// Dispatcher routes a tool name plus argument object to its handler and
// normalizes every outcome into a Result. Unknown names, schema violations
// and handler failures all surface as error payloads for the model; nothing
// escapes as a Go error.
type Dispatcher struct {
	registry *Registry
	logger   *slog.Logger
}

// NewDispatcher creates a dispatcher over the registry's paired tool table.
func NewDispatcher(registry *Registry, logger *slog.Logger) *Dispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Dispatcher{registry: registry, logger: logger}
}

// Execute runs one tool call scoped to the tenant. Arguments are validated
// against the tool's declared schema before the handler runs.
func (d *Dispatcher) Execute(ctx context.Context, name string, args map[string]any, tenantID uuid.UUID) Result {
	tool, ok := d.registry.Lookup(name)
	if !ok {
		d.logger.Warn("model requested unknown tool", "tool", name)
		return errResult(name, "Unknown tool")
	}

	if args == nil {
		args = map[string]any{}
	}
	if err := tool.validate.Validate(args); err != nil {
		d.logger.Warn("tool arguments failed validation", "tool", name, "error", err)
		return errResult(name, fmt.Sprintf("invalid arguments: %v", err))
	}

	data, err := tool.handler(ctx, tenantID, args)
	if err != nil {
		d.logger.Warn("tool execution failed", "tool", name, "tenant_id", tenantID, "error", err)
		return errResult(name, err.Error())
	}

	d.logger.Debug("tool executed", "tool", name, "tenant_id", tenantID)
	return okResult(name, data)
}

// decodeArgs converts a validated argument object into the handler's typed
// input via a JSON round-trip.
func decodeArgs[T any](args map[string]any) (T, error) {
	var in T
	raw, err := json.Marshal(args)
	if err != nil {
		return in, fmt.Errorf("encoding arguments: %w", err)
	}
	if err := json.Unmarshal(raw, &in); err != nil {
		return in, fmt.Errorf("decoding arguments: %w", err)
	}
	return in, nil
}

// handlers implements the tool handler set over the tenant-scoped data store.
// All handlers are read-only; none mutates tenant data, so every tool is safe
// to retry and safe for the model to call speculatively.
type handlers struct {
	store DataStore
}

type salesStatsArgs struct {
	StartDate string `json:"startDate"`
	EndDate   string `json:"endDate"`
	Category  string `json:"category"`
}

func (h *handlers) getSalesStats(ctx context.Context, tenantID uuid.UUID, args map[string]any) (any, error) {
	in, err := decodeArgs[salesStatsArgs](args)
	if err != nil {
		return nil, err
	}
	return h.store.GetSalesStats(ctx, tenantID, in.StartDate, in.EndDate)
}

type ordersArgs struct {
	Status       string `json:"status"`
	CustomerName string `json:"customerName"`
	StartDate    string `json:"startDate"`
}

func (h *handlers) getOrders(ctx context.Context, tenantID uuid.UUID, args map[string]any) (any, error) {
	in, err := decodeArgs[ordersArgs](args)
	if err != nil {
		return nil, err
	}
	return h.store.GetOrders(ctx, tenantID, in.Status, in.CustomerName)
}

type productsArgs struct {
	Search   string `json:"search"`
	LowStock bool   `json:"lowStock"`
}

func (h *handlers) getProducts(ctx context.Context, tenantID uuid.UUID, args map[string]any) (any, error) {
	in, err := decodeArgs[productsArgs](args)
	if err != nil {
		return nil, err
	}
	return h.store.GetProducts(ctx, tenantID, in.Search, in.LowStock)
}

type orderDetailsArgs struct {
	OrderNumber string `json:"orderNumber"`
}

func (h *handlers) getOrderDetails(ctx context.Context, tenantID uuid.UUID, args map[string]any) (any, error) {
	in, err := decodeArgs[orderDetailsArgs](args)
	if err != nil {
		return nil, err
	}
	return h.store.GetOrderDetails(ctx, tenantID, in.OrderNumber)
}

type salesMetricsArgs struct {
	Period string `json:"period"`
}

func (h *handlers) getSalesMetrics(ctx context.Context, tenantID uuid.UUID, args map[string]any) (any, error) {
	in, err := decodeArgs[salesMetricsArgs](args)
	if err != nil {
		return nil, err
	}
	return h.store.GetSalesMetrics(ctx, tenantID, in.Period, time.Now())
}

type inventoryAlertsArgs struct {
	OnlyOutOfStock bool `json:"onlyOutOfStock"`
}

func (h *handlers) getInventoryAlerts(ctx context.Context, tenantID uuid.UUID, args map[string]any) (any, error) {
	in, err := decodeArgs[inventoryAlertsArgs](args)
	if err != nil {
		return nil, err
	}
	return h.store.GetInventoryAlerts(ctx, tenantID, in.OnlyOutOfStock)
}

func (h *handlers) getActivePromotions(ctx context.Context, tenantID uuid.UUID, _ map[string]any) (any, error) {
	return h.store.GetActivePromotions(ctx, tenantID)
}

// The remaining handlers are intentionally unimplemented: the tool set is
// declared ahead of the reporting features backing it, and the dispatch
// contract tolerates that without special-casing in the loop.

func (h *handlers) getProductPerformance(_ context.Context, _ uuid.UUID, _ map[string]any) (any, error) {
	return map[string]any{"message": "Identifying top performers... Feature coming soon."}, nil
}

type customerSegmentArgs struct {
	Segment string `json:"segment"`
	Email   string `json:"email"`
}

func (h *handlers) analyzeCustomerSegment(_ context.Context, _ uuid.UUID, args map[string]any) (any, error) {
	in, err := decodeArgs[customerSegmentArgs](args)
	if err != nil {
		return nil, err
	}
	return map[string]any{"message": fmt.Sprintf("Analyzing segment %s... Feature coming soon.", in.Segment)}, nil
}

func (h *handlers) getRecentAuditLogs(_ context.Context, _ uuid.UUID, _ map[string]any) (any, error) {
	return map[string]any{"message": "Checking audit logs... Feature coming soon."}, nil
}
