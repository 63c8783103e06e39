package assistant

import (
	"context"
	"fmt"

	"github.com/google/jsonschema-go/jsonschema"
	"github.com/google/uuid"
	"google.golang.org/genai"
)

// handlerFunc executes one tool call for a tenant. The returned value is the
// domain payload handed back to the model; errors are folded into an error
// payload by the Dispatcher, never propagated.
type handlerFunc func(ctx context.Context, tenantID uuid.UUID, args map[string]any) (any, error)

// Tool pairs a function declaration advertised to the model with the handler
// that serves it and the resolved schema its arguments are validated against.
// Keeping declaration and handler in one entry removes the risk of the
// advertised tool set drifting from the dispatch table.
type Tool struct {
	Declaration *genai.FunctionDeclaration
	validate    *jsonschema.Resolved
	handler     handlerFunc
}

// Registry holds the assistant's full tool set. It is immutable after
// construction and safe for concurrent use.
type Registry struct {
	tools map[string]*Tool
	order []string
}

// NewRegistry builds the tool table over the given data store.
// Declarations mirror the capability contract advertised to the model.
func NewRegistry(ds DataStore) (*Registry, error) {
	h := &handlers{store: ds}

	entries := []struct {
		decl    *genai.FunctionDeclaration
		handler handlerFunc
	}{
		{
			decl: &genai.FunctionDeclaration{
				Name:        "get_sales_stats",
				Description: "Get sales statistics for a specific period of time.",
				Parameters: &genai.Schema{
					Type: genai.TypeObject,
					Properties: map[string]*genai.Schema{
						"startDate": {Type: genai.TypeString, Description: "ISO date string (YYYY-MM-DD)"},
						"endDate":   {Type: genai.TypeString, Description: "ISO date string (YYYY-MM-DD)"},
						"category":  {Type: genai.TypeString, Description: "Optional category name to filter sales"},
					},
				},
			},
			handler: h.getSalesStats,
		},
		{
			decl: &genai.FunctionDeclaration{
				Name:        "get_orders",
				Description: "Get orders by status, customer name or date range.",
				Parameters: &genai.Schema{
					Type: genai.TypeObject,
					Properties: map[string]*genai.Schema{
						"status":       {Type: genai.TypeString, Description: "Order status (pending, processing, shipped, delivered, cancelled)"},
						"customerName": {Type: genai.TypeString, Description: "Name of the customer"},
						"startDate":    {Type: genai.TypeString, Description: "ISO date string"},
					},
				},
			},
			handler: h.getOrders,
		},
		{
			decl: &genai.FunctionDeclaration{
				Name:        "get_products",
				Description: "Get product information including stock levels and prices.",
				Parameters: &genai.Schema{
					Type: genai.TypeObject,
					Properties: map[string]*genai.Schema{
						"search":   {Type: genai.TypeString, Description: "Product name or SKU"},
						"lowStock": {Type: genai.TypeBoolean, Description: "If true, only returns products with low stock"},
					},
				},
			},
			handler: h.getProducts,
		},
		{
			decl: &genai.FunctionDeclaration{
				Name:        "get_order_details",
				Description: "Obtiene toda la información detallada de una orden específica, incluyendo productos comprados, estado de pago y datos de envío.",
				Parameters: &genai.Schema{
					Type: genai.TypeObject,
					Properties: map[string]*genai.Schema{
						"orderNumber": {Type: genai.TypeString, Description: "El número de orden (ej: STORE-2024-0001)"},
					},
					Required: []string{"orderNumber"},
				},
			},
			handler: h.getOrderDetails,
		},
		{
			decl: &genai.FunctionDeclaration{
				Name:        "get_sales_metrics",
				Description: "Obtiene métricas de ventas agregadas (ingresos totales, número de órdenes) para un periodo de tiempo. Útil para responder \"cuánto vendimos ayer\" o \"comparativa de este mes\".",
				Parameters: &genai.Schema{
					Type: genai.TypeObject,
					Properties: map[string]*genai.Schema{
						"period": {
							Type:        genai.TypeString,
							Enum:        []string{"today", "yesterday", "this_week", "this_month", "last_month"},
							Description: "El periodo de tiempo a consultar",
						},
					},
					Required: []string{"period"},
				},
			},
			handler: h.getSalesMetrics,
		},
		{
			decl: &genai.FunctionDeclaration{
				Name:        "get_inventory_alerts",
				Description: "Lista los productos que están agotados o por debajo del umbral de stock bajo. Responde a \"¿Qué productos debo reponer?\"",
				Parameters: &genai.Schema{
					Type: genai.TypeObject,
					Properties: map[string]*genai.Schema{
						"onlyOutOfStock": {Type: genai.TypeBoolean, Description: "Si es true, solo muestra los que tienen stock 0"},
					},
				},
			},
			handler: h.getInventoryAlerts,
		},
		{
			decl: &genai.FunctionDeclaration{
				Name:        "get_product_performance",
				Description: "Identifica los productos más vendidos (top sellers) y los que generan más ingresos en los últimos 30 días.",
				Parameters: &genai.Schema{
					Type: genai.TypeObject,
					Properties: map[string]*genai.Schema{
						"limit": {Type: genai.TypeNumber, Description: "Cantidad de productos a mostrar (defecto 5)"},
					},
				},
			},
			handler: h.getProductPerformance,
		},
		{
			decl: &genai.FunctionDeclaration{
				Name:        "analyze_customer_segment",
				Description: "Busca clientes por segmento (VIP, Loyal, Repeat, New) o por correo. Útil para \"¿Quiénes son mis clientes VIP?\" o \"¿Cuándo fue la última compra de este cliente?\"",
				Parameters: &genai.Schema{
					Type: genai.TypeObject,
					Properties: map[string]*genai.Schema{
						"segment": {
							Type:        genai.TypeString,
							Enum:        []string{"VIP", "Loyal", "Repeat", "New", "Prospect"},
							Description: "El segmento de clientes a filtrar",
						},
						"email": {Type: genai.TypeString, Description: "Email opcional para buscar un cliente específico"},
					},
				},
			},
			handler: h.analyzeCustomerSegment,
		},
		{
			decl: &genai.FunctionDeclaration{
				Name:        "get_active_promotions",
				Description: "Lista los códigos de descuento activos, su validez y cuántas veces se han usado.",
				Parameters: &genai.Schema{
					Type:       genai.TypeObject,
					Properties: map[string]*genai.Schema{},
				},
			},
			handler: h.getActivePromotions,
		},
		{
			decl: &genai.FunctionDeclaration{
				Name:        "get_recent_audit_logs",
				Description: "Consulta los últimos cambios importantes en la plataforma (creación de productos, cambios de precios, reembolsos). Útil para auditoría técnica.",
				Parameters: &genai.Schema{
					Type: genai.TypeObject,
					Properties: map[string]*genai.Schema{
						"resourceType": {Type: genai.TypeString, Description: "Filtrar por tipo de recurso: product, order, tenant, payment"},
						"limit":        {Type: genai.TypeNumber, Description: "Número de registros a traer"},
					},
				},
			},
			handler: h.getRecentAuditLogs,
		},
	}

	r := &Registry{tools: make(map[string]*Tool, len(entries))}
	for _, e := range entries {
		if _, dup := r.tools[e.decl.Name]; dup {
			return nil, fmt.Errorf("duplicate tool declaration %q", e.decl.Name)
		}
		resolved, err := validationSchema(e.decl.Parameters).Resolve(nil)
		if err != nil {
			return nil, fmt.Errorf("resolving schema for %q: %w", e.decl.Name, err)
		}
		r.tools[e.decl.Name] = &Tool{
			Declaration: e.decl,
			validate:    resolved,
			handler:     e.handler,
		}
		r.order = append(r.order, e.decl.Name)
	}
	return r, nil
}

// Declarations returns the full tool set in declaration order. This is the
// capability contract advertised to the model on every call.
func (r *Registry) Declarations() []*genai.FunctionDeclaration {
	decls := make([]*genai.FunctionDeclaration, 0, len(r.order))
	for _, name := range r.order {
		decls = append(decls, r.tools[name].Declaration)
	}
	return decls
}

// Lookup returns the tool registered under name.
func (r *Registry) Lookup(name string) (*Tool, bool) {
	t, ok := r.tools[name]
	return t, ok
}

// Len returns the number of registered tools.
func (r *Registry) Len() int {
	return len(r.tools)
}

// validationSchema converts a declaration's parameter schema into the JSON
// schema arguments are validated against before dispatch. The declaration is
// the single source of truth; the two views cannot drift.
func validationSchema(s *genai.Schema) *jsonschema.Schema {
	if s == nil {
		return &jsonschema.Schema{Type: "object"}
	}

	out := &jsonschema.Schema{
		Type:        jsonschemaType(s.Type),
		Description: s.Description,
		Required:    s.Required,
	}
	if len(s.Properties) > 0 {
		out.Properties = make(map[string]*jsonschema.Schema, len(s.Properties))
		for name, prop := range s.Properties {
			out.Properties[name] = validationSchema(prop)
		}
	}
	if s.Items != nil {
		out.Items = validationSchema(s.Items)
	}
	for _, v := range s.Enum {
		out.Enum = append(out.Enum, v)
	}
	return out
}

// jsonschemaType maps the provider's schema type names to JSON schema types.
func jsonschemaType(t genai.Type) string {
	switch t {
	case genai.TypeString:
		return "string"
	case genai.TypeNumber:
		return "number"
	case genai.TypeInteger:
		return "integer"
	case genai.TypeBoolean:
		return "boolean"
	case genai.TypeArray:
		return "array"
	case genai.TypeObject:
		return "object"
	default:
		return "object"
	}
}
