package repository

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/vendura/vendura/internal/domain/order"
)

const (
	orderColumns = `id, user_id, status, coupon_code, subtotal, tax_amount,
		shipping_cost, discount_amount, total_amount, created_at, updated_at`

	getOrderByIDSQL = `SELECT ` + orderColumns + ` FROM orders WHERE id = $1`

	listOrdersByUserSQL = `SELECT ` + orderColumns + ` FROM orders
		WHERE user_id = $1 ORDER BY created_at DESC`

	listOrdersByShopSQL = `SELECT ` + orderColumns + ` FROM orders
		WHERE id IN (SELECT DISTINCT order_id FROM order_items WHERE shop_id = $1)
		AND status <> 'cart' ORDER BY created_at DESC`

	listAllOrdersSQL = `SELECT ` + orderColumns + ` FROM orders
		WHERE status <> 'cart' ORDER BY created_at DESC`

	insertOrderSQL = `INSERT INTO orders (id, user_id, status, coupon_code, subtotal,
			tax_amount, shipping_cost, discount_amount, total_amount)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`

	upsertItemSQL = `INSERT INTO order_items (id, order_id, product_id, category_id,
			shop_id, name, unit_price, quantity)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (order_id, product_id)
		DO UPDATE SET quantity = EXCLUDED.quantity, unit_price = EXCLUDED.unit_price`

	updateTotalsSQL = `UPDATE orders SET subtotal = $2, tax_amount = $3, shipping_cost = $4,
		discount_amount = $5, total_amount = $6, updated_at = now() WHERE id = $1`

	updateStatusSQL = `UPDATE orders SET status = $2, updated_at = now() WHERE id = $1`

	setOrderCouponSQL = `UPDATE orders SET coupon_code = $2, updated_at = now() WHERE id = $1`

	attachCampaignSQL = `INSERT INTO order_campaigns (order_id, campaign_id)
		VALUES ($1, $2) ON CONFLICT DO NOTHING`

	listItemsSQL = `SELECT id, order_id, product_id, category_id, shop_id, name,
		unit_price, quantity FROM order_items WHERE order_id = ANY($1) ORDER BY id`

	listCampaignIDsSQL = `SELECT campaign_id FROM order_campaigns WHERE order_id = $1`

	countRedemptionsSQL = `SELECT COUNT(*) FROM orders o
		JOIN coupons c ON UPPER(c.code) = UPPER(o.coupon_code)
		WHERE o.user_id = $1 AND c.id = $2 AND o.status <> 'cart'`

	hasCompletedOrderSQL = `SELECT EXISTS (SELECT 1 FROM orders
		WHERE user_id = $1 AND status IN ('completed', 'delivered'))`
)

var _ order.Repository = (*OrderRepository)(nil)

// OrderRepository implements order.Repository backed by PostgreSQL.
type OrderRepository struct {
	pool *pgxpool.Pool
}

// NewOrderRepository returns an OrderRepository that uses the given pool.
func NewOrderRepository(pool *pgxpool.Pool) *OrderRepository {
	return &OrderRepository{pool: pool}
}

// GetByID returns an order with its line items and attached campaigns.
// Returns order.ErrNotFound when the order does not exist.
func (r *OrderRepository) GetByID(ctx context.Context, id string) (*order.Order, error) {
	rows, err := r.pool.Query(ctx, getOrderByIDSQL, id)
	if err != nil {
		return nil, fmt.Errorf("getting order %q: %w", id, err)
	}

	o, err := pgx.CollectExactlyOneRow(rows, scanOrder)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, order.ErrNotFound
		}
		return nil, fmt.Errorf("getting order %q: %w", id, err)
	}

	if err := r.loadItems(ctx, []*order.Order{&o}); err != nil {
		return nil, err
	}

	campaignRows, err := r.pool.Query(ctx, listCampaignIDsSQL, id)
	if err != nil {
		return nil, fmt.Errorf("listing campaigns for order %q: %w", id, err)
	}
	o.CampaignIDs, err = pgx.CollectRows(campaignRows, pgx.RowTo[string])
	if err != nil {
		return nil, fmt.Errorf("listing campaigns for order %q: %w", id, err)
	}

	return &o, nil
}

// Create persists a new (typically empty cart) order.
func (r *OrderRepository) Create(ctx context.Context, o *order.Order) error {
	_, err := r.pool.Exec(ctx, insertOrderSQL,
		o.ID, o.UserID, string(o.Status), o.CouponCode,
		o.Subtotal, o.TaxAmount, o.ShippingCost, o.DiscountAmount, o.TotalAmount,
	)
	if err != nil {
		return fmt.Errorf("creating order %q: %w", o.ID, err)
	}
	return nil
}

// ListByUser returns the user's orders newest first, items included.
func (r *OrderRepository) ListByUser(ctx context.Context, userID string) ([]order.Order, error) {
	return r.list(ctx, listOrdersByUserSQL, userID)
}

// ListByShop returns placed orders containing at least one item sold by the shop.
func (r *OrderRepository) ListByShop(ctx context.Context, shopID string) ([]order.Order, error) {
	return r.list(ctx, listOrdersByShopSQL, shopID)
}

// ListAll returns every placed order, newest first.
func (r *OrderRepository) ListAll(ctx context.Context) ([]order.Order, error) {
	return r.list(ctx, listAllOrdersSQL)
}

func (r *OrderRepository) list(ctx context.Context, sql string, args ...any) ([]order.Order, error) {
	rows, err := r.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("listing orders: %w", err)
	}

	out, err := pgx.CollectRows(rows, scanOrder)
	if err != nil {
		return nil, fmt.Errorf("listing orders: %w", err)
	}

	refs := make([]*order.Order, len(out))
	for i := range out {
		refs[i] = &out[i]
	}
	if err := r.loadItems(ctx, refs); err != nil {
		return nil, err
	}
	return out, nil
}

// loadItems fetches line items for the given orders in one query.
func (r *OrderRepository) loadItems(ctx context.Context, orders []*order.Order) error {
	if len(orders) == 0 {
		return nil
	}

	ids := make([]string, len(orders))
	byID := make(map[string]*order.Order, len(orders))
	for i, o := range orders {
		ids[i] = o.ID
		byID[o.ID] = o
	}

	rows, err := r.pool.Query(ctx, listItemsSQL, ids)
	if err != nil {
		return fmt.Errorf("listing order items: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			item    order.LineItem
			orderID string
		)
		if err := rows.Scan(&item.ID, &orderID, &item.ProductID, &item.CategoryID,
			&item.ShopID, &item.Name, &item.UnitPrice, &item.Quantity); err != nil {
			return fmt.Errorf("scanning order item: %w", err)
		}
		if o, ok := byID[orderID]; ok {
			o.Items = append(o.Items, item)
		}
	}
	return rows.Err()
}

// UpsertItem inserts a line item or, for an existing product line, replaces
// its quantity and captured unit price.
func (r *OrderRepository) UpsertItem(ctx context.Context, orderID string, item order.LineItem) error {
	_, err := r.pool.Exec(ctx, upsertItemSQL,
		item.ID, orderID, item.ProductID, item.CategoryID, item.ShopID,
		item.Name, item.UnitPrice, item.Quantity,
	)
	if err != nil {
		return fmt.Errorf("upserting item for order %q: %w", orderID, err)
	}
	return nil
}

// UpdateTotals writes the computed money fields, nothing else.
func (r *OrderRepository) UpdateTotals(ctx context.Context, id string, t order.Totals) error {
	_, err := r.pool.Exec(ctx, updateTotalsSQL,
		id, t.Subtotal, t.Tax, t.Shipping, t.Discount, t.Total,
	)
	if err != nil {
		return fmt.Errorf("updating totals for order %q: %w", id, err)
	}
	return nil
}

// UpdateStatus writes the order status.
func (r *OrderRepository) UpdateStatus(ctx context.Context, id string, status order.Status) error {
	_, err := r.pool.Exec(ctx, updateStatusSQL, id, string(status))
	if err != nil {
		return fmt.Errorf("updating status for order %q: %w", id, err)
	}
	return nil
}

// SetCoupon attaches a coupon code to the order.
func (r *OrderRepository) SetCoupon(ctx context.Context, id, couponCode string) error {
	_, err := r.pool.Exec(ctx, setOrderCouponSQL, id, couponCode)
	if err != nil {
		return fmt.Errorf("setting coupon for order %q: %w", id, err)
	}
	return nil
}

// AttachCampaign links a campaign to the order.
func (r *OrderRepository) AttachCampaign(ctx context.Context, orderID, campaignID string) error {
	_, err := r.pool.Exec(ctx, attachCampaignSQL, orderID, campaignID)
	if err != nil {
		return fmt.Errorf("attaching campaign %q to order %q: %w", campaignID, orderID, err)
	}
	return nil
}

// CountCouponRedemptions counts the user's prior placed orders that used the coupon.
func (r *OrderRepository) CountCouponRedemptions(ctx context.Context, userID, couponID string) (int, error) {
	var n int
	if err := r.pool.QueryRow(ctx, countRedemptionsSQL, userID, couponID).Scan(&n); err != nil {
		return 0, fmt.Errorf("counting redemptions for user %q: %w", userID, err)
	}
	return n, nil
}

// HasCompletedOrder reports whether the user has a completed or delivered order.
func (r *OrderRepository) HasCompletedOrder(ctx context.Context, userID string) (bool, error) {
	var exists bool
	if err := r.pool.QueryRow(ctx, hasCompletedOrderSQL, userID).Scan(&exists); err != nil {
		return false, fmt.Errorf("checking order history for user %q: %w", userID, err)
	}
	return exists, nil
}

func scanOrder(row pgx.CollectableRow) (order.Order, error) {
	var (
		o      order.Order
		status string
	)
	err := row.Scan(
		&o.ID, &o.UserID, &status, &o.CouponCode,
		&o.Subtotal, &o.TaxAmount, &o.ShippingCost, &o.DiscountAmount, &o.TotalAmount,
		&o.CreatedAt, &o.UpdatedAt,
	)
	o.Status = order.Status(status)
	return o, err
}
