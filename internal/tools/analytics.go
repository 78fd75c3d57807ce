package tools

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/jsonschema-go/jsonschema"
	"github.com/jackc/pgx/v5"
)

// Querier is the subset of pgxpool.Pool the analytics tools need.
type Querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

const (
	defaultOrdersLimit = 1000
	maxOrdersLimit     = 5000
)

// DateRangeInput is the shared input for date-bounded analytics tools.
type DateRangeInput struct {
	DateFrom string `json:"dateFrom" jsonschema:"Start date (YYYY-MM-DD)"`
	DateTo   string `json:"dateTo" jsonschema:"End date (YYYY-MM-DD)"`
}

// GetOrdersInput is the input for the getOrders tool.
type GetOrdersInput struct {
	DateFrom string `json:"dateFrom" jsonschema:"Start date (YYYY-MM-DD)"`
	DateTo   string `json:"dateTo" jsonschema:"End date (YYYY-MM-DD)"`
	Status   string `json:"status,omitempty" jsonschema:"Optional order status filter"`
	Limit    int    `json:"limit,omitempty" jsonschema:"Max rows to fetch (default 1000)"`
}

// SalesSummary is the getSalesSummary result row.
type SalesSummary struct {
	TotalOrders int     `json:"totalOrders"`
	TotalSales  float64 `json:"totalSales"`
}

// StatusCount is one getOrderStatusCounts result row.
type StatusCount struct {
	OrderStatus string `json:"orderStatus"`
	Total       int    `json:"total"`
}

// Order is one getOrders result row.
type Order struct {
	ID          int64   `json:"id"`
	OrderCode   string  `json:"orderCode"`
	OrderStatus string  `json:"orderStatus"`
	OrderAmount float64 `json:"orderAmount"`
	CreatedAt   string  `json:"createdAt"`
}

// SalesSummaryTool aggregates order count and revenue over a date range.
type SalesSummaryTool struct {
	q      Querier
	schema *jsonschema.Schema
	logger *slog.Logger
}

// NewSalesSummary creates the getSalesSummary tool.
func NewSalesSummary(q Querier, logger *slog.Logger) *SalesSummaryTool {
	if logger == nil {
		logger = slog.Default()
	}
	return &SalesSummaryTool{q: q, schema: schemaFor[DateRangeInput](), logger: logger}
}

func (t *SalesSummaryTool) Name() string { return "getSalesSummary" }

func (t *SalesSummaryTool) Description() string {
	return "getSalesSummary(dateFrom, dateTo) - สรุปยอดขายตามช่วงวันที่ (จำนวนออเดอร์ + ยอดขายรวม)"
}

func (t *SalesSummaryTool) InputSchema() *jsonschema.Schema { return t.schema }

func (t *SalesSummaryTool) Execute(ctx context.Context, input map[string]any) (any, error) {
	in, err := decodeInput[DateRangeInput](input)
	if err != nil {
		return nil, err
	}

	rows, err := t.q.Query(ctx, `
		SELECT COUNT(*)::int AS total_orders,
		       COALESCE(SUM(order_amount), 0)::float8 AS total_sales
		FROM orders
		WHERE created_at::date BETWEEN $1 AND $2`,
		in.DateFrom, in.DateTo)
	if err != nil {
		return nil, fmt.Errorf("querying sales summary: %w", err)
	}
	defer rows.Close()

	var out SalesSummary
	if rows.Next() {
		if err := rows.Scan(&out.TotalOrders, &out.TotalSales); err != nil {
			return nil, fmt.Errorf("scanning sales summary: %w", err)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("reading sales summary: %w", err)
	}
	return out, nil
}

// OrderStatusCountsTool counts orders grouped by status over a date range.
type OrderStatusCountsTool struct {
	q      Querier
	schema *jsonschema.Schema
	logger *slog.Logger
}

// NewOrderStatusCounts creates the getOrderStatusCounts tool.
func NewOrderStatusCounts(q Querier, logger *slog.Logger) *OrderStatusCountsTool {
	if logger == nil {
		logger = slog.Default()
	}
	return &OrderStatusCountsTool{q: q, schema: schemaFor[DateRangeInput](), logger: logger}
}

func (t *OrderStatusCountsTool) Name() string { return "getOrderStatusCounts" }

func (t *OrderStatusCountsTool) Description() string {
	return "getOrderStatusCounts(dateFrom, dateTo) - นับจำนวนออเดอร์แยกตามสถานะ ตามช่วงวันที่"
}

func (t *OrderStatusCountsTool) InputSchema() *jsonschema.Schema { return t.schema }

func (t *OrderStatusCountsTool) Execute(ctx context.Context, input map[string]any) (any, error) {
	in, err := decodeInput[DateRangeInput](input)
	if err != nil {
		return nil, err
	}

	rows, err := t.q.Query(ctx, `
		SELECT order_status, COUNT(*)::int AS total
		FROM orders
		WHERE created_at::date BETWEEN $1 AND $2
		GROUP BY order_status
		ORDER BY total DESC`,
		in.DateFrom, in.DateTo)
	if err != nil {
		return nil, fmt.Errorf("querying status counts: %w", err)
	}
	defer rows.Close()

	out := []StatusCount{}
	for rows.Next() {
		var sc StatusCount
		if err := rows.Scan(&sc.OrderStatus, &sc.Total); err != nil {
			return nil, fmt.Errorf("scanning status count: %w", err)
		}
		out = append(out, sc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("reading status counts: %w", err)
	}
	return out, nil
}

// OrdersTool fetches raw order rows for downstream analysis.
type OrdersTool struct {
	q      Querier
	schema *jsonschema.Schema
	logger *slog.Logger
}

// NewOrders creates the getOrders tool.
func NewOrders(q Querier, logger *slog.Logger) *OrdersTool {
	if logger == nil {
		logger = slog.Default()
	}
	return &OrdersTool{q: q, schema: schemaFor[GetOrdersInput](), logger: logger}
}

func (t *OrdersTool) Name() string { return "getOrders" }

func (t *OrdersTool) Description() string {
	return "getOrders(dateFrom, dateTo, status, limit) - ดึงข้อมูลรายการออเดอร์ (Raw Rows) ตามช่วงวันที่ เพื่อนำไปวิเคราะห์ต่อ"
}

func (t *OrdersTool) InputSchema() *jsonschema.Schema { return t.schema }

func (t *OrdersTool) Execute(ctx context.Context, input map[string]any) (any, error) {
	in, err := decodeInput[GetOrdersInput](input)
	if err != nil {
		return nil, err
	}

	limit := in.Limit
	if limit <= 0 {
		limit = defaultOrdersLimit
	}
	if limit > maxOrdersLimit {
		limit = maxOrdersLimit
	}

	query := `
		SELECT id, order_code, order_status, order_amount::float8, created_at::text
		FROM orders
		WHERE created_at::date BETWEEN $1 AND $2`
	args := []any{in.DateFrom, in.DateTo}
	if in.Status != "" {
		query += ` AND order_status = $3`
		args = append(args, in.Status)
	}
	query += fmt.Sprintf(` ORDER BY created_at DESC LIMIT $%d`, len(args)+1)
	args = append(args, limit)

	rows, err := t.q.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying orders: %w", err)
	}
	defer rows.Close()

	out := []Order{}
	for rows.Next() {
		var o Order
		if err := rows.Scan(&o.ID, &o.OrderCode, &o.OrderStatus, &o.OrderAmount, &o.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning order: %w", err)
		}
		out = append(out, o)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("reading orders: %w", err)
	}
	return out, nil
}
