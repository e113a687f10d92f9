package repo

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/MorseWayne/retail_admin/internal/domain"
)

// OrderRepository 定义订单数据访问接口，订单行随订单一起读写
type OrderRepository interface {
	Count(ctx context.Context) (int64, error)
	// NumberExists 检查订单号是否已被占用
	NumberExists(ctx context.Context, number string) (bool, error)
	// Create 写入订单，订单号冲突时返回包装后的 ErrDuplicate
	Create(ctx context.Context, order *domain.Order) error
	GetByID(ctx context.Context, id string) (*domain.Order, error)
	Update(ctx context.Context, order *domain.Order) error
	// UpdateCourier 只写回快递相关字段与状态
	UpdateCourier(ctx context.Context, order *domain.Order) error
	Delete(ctx context.Context, id string) error
	List(ctx context.Context, req *domain.OrderListRequest) ([]*domain.Order, int64, error)
}

type orderRepo struct {
	db *sql.DB
}

// NewOrderRepository 创建订单仓储实例
func NewOrderRepository(db *sql.DB) OrderRepository {
	return &orderRepo{db: db}
}

const orderColumns = `o.id, o.order_number, o.customer_id, o.subtotal, o.courier_charge, o.total_amount,
	o.paid_amount, o.due_amount, o.payment_status, o.payment_method, o.status, o.delivery_method,
	o.delivery_person_name, o.delivery_person_phone, o.brand, o.notes, o.pathao_consignment_id,
	o.pathao_status, o.pathao_updated_at, o.created_by, o.created_at, o.updated_at`

func scanOrder(s rowScanner) (*domain.Order, error) {
	o := &domain.Order{}
	var personName, personPhone sql.NullString
	var pathaoUpdatedAt sql.NullTime
	err := s.Scan(
		&o.ID,
		&o.OrderNumber,
		&o.CustomerID,
		&o.Subtotal,
		&o.CourierCharge,
		&o.TotalAmount,
		&o.PaidAmount,
		&o.DueAmount,
		&o.PaymentStatus,
		&o.PaymentMethod,
		&o.Status,
		&o.DeliveryMethod,
		&personName,
		&personPhone,
		&o.Brand,
		&o.Notes,
		&o.PathaoConsignmentID,
		&o.PathaoStatus,
		&pathaoUpdatedAt,
		&o.CreatedBy,
		&o.CreatedAt,
		&o.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if personName.Valid || personPhone.Valid {
		o.DeliveryPerson = &domain.DeliveryPerson{Name: personName.String, Phone: personPhone.String}
	}
	if pathaoUpdatedAt.Valid {
		t := pathaoUpdatedAt.Time
		o.PathaoUpdatedAt = &t
	}
	return o, nil
}

func deliveryPersonArgs(p *domain.DeliveryPerson) (sql.NullString, sql.NullString) {
	if p == nil {
		return sql.NullString{}, sql.NullString{}
	}
	return sql.NullString{String: p.Name, Valid: true}, sql.NullString{String: p.Phone, Valid: true}
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}

// Count 返回订单总数，用于生成订单号
func (r *orderRepo) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM orders`).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count orders: %w", err)
	}
	return n, nil
}

// NumberExists 检查订单号是否已存在
func (r *orderRepo) NumberExists(ctx context.Context, number string) (bool, error) {
	var exists bool
	err := r.db.QueryRowContext(ctx, `SELECT EXISTS(SELECT 1 FROM orders WHERE order_number = ?)`, number).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check order number: %w", err)
	}
	return exists, nil
}

// Create 在事务内写入订单头与订单行
func (r *orderRepo) Create(ctx context.Context, o *domain.Order) error {
	if o.ID == "" {
		o.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	o.CreatedAt, o.UpdatedAt = now, now

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	name, phone := deliveryPersonArgs(o.DeliveryPerson)
	query := `
		INSERT INTO orders (id, order_number, customer_id, subtotal, courier_charge, total_amount, paid_amount,
			due_amount, payment_status, payment_method, status, delivery_method, delivery_person_name,
			delivery_person_phone, brand, notes, pathao_consignment_id, pathao_status, pathao_updated_at,
			created_by, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err = tx.ExecContext(ctx, query,
		o.ID, o.OrderNumber, o.CustomerID, o.Subtotal, o.CourierCharge, o.TotalAmount, o.PaidAmount,
		o.DueAmount, o.PaymentStatus, o.PaymentMethod, o.Status, o.DeliveryMethod, name, phone,
		o.Brand, o.Notes, o.PathaoConsignmentID, o.PathaoStatus, nullTime(o.PathaoUpdatedAt),
		o.CreatedBy, now, now,
	)
	if isDuplicateKey(err) {
		return fmt.Errorf("order number %s: %w", o.OrderNumber, ErrDuplicate)
	}
	if err != nil {
		return fmt.Errorf("failed to create order: %w", err)
	}

	if err := insertItems(ctx, tx, o.ID, o.Items); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit order: %w", err)
	}
	return nil
}

func insertItems(ctx context.Context, tx *sql.Tx, orderID string, items []domain.OrderItem) error {
	if len(items) == 0 {
		return nil
	}

	rows := make([]string, 0, len(items))
	args := make([]any, 0, len(items)*6)
	for i, it := range items {
		rows = append(rows, "(?, ?, ?, ?, ?, ?)")
		args = append(args, orderID, i, it.ProductID, it.Quantity, it.Price, it.Total)
	}

	query := `INSERT INTO order_items (order_id, line_no, product_id, quantity, price, total) VALUES ` +
		strings.Join(rows, ", ")
	if _, err := tx.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("failed to insert order items: %w", err)
	}
	return nil
}

// GetByID 根据ID获取订单及订单行
func (r *orderRepo) GetByID(ctx context.Context, id string) (*domain.Order, error) {
	o, err := scanOrder(r.db.QueryRowContext(ctx, `SELECT `+orderColumns+` FROM orders o WHERE o.id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get order by id: %w", err)
	}

	items, err := r.loadItems(ctx, []string{o.ID})
	if err != nil {
		return nil, err
	}
	o.Items = items[o.ID]
	return o, nil
}

// loadItems 批量加载订单行，按订单ID分组
func (r *orderRepo) loadItems(ctx context.Context, orderIDs []string) (map[string][]domain.OrderItem, error) {
	out := make(map[string][]domain.OrderItem, len(orderIDs))
	if len(orderIDs) == 0 {
		return out, nil
	}

	placeholders := strings.Repeat("?,", len(orderIDs)-1) + "?"
	args := make([]any, len(orderIDs))
	for i, id := range orderIDs {
		args[i] = id
	}

	query := fmt.Sprintf(`SELECT order_id, product_id, quantity, price, total FROM order_items
		WHERE order_id IN (%s) ORDER BY order_id, line_no`, placeholders)
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query order items: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var orderID string
		var it domain.OrderItem
		if err := rows.Scan(&orderID, &it.ProductID, &it.Quantity, &it.Price, &it.Total); err != nil {
			return nil, fmt.Errorf("failed to scan order item: %w", err)
		}
		out[orderID] = append(out[orderID], it)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate order items: %w", err)
	}
	return out, nil
}

// Update 写回订单头，并整体替换订单行
func (r *orderRepo) Update(ctx context.Context, o *domain.Order) error {
	o.UpdatedAt = time.Now().UTC()

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	name, phone := deliveryPersonArgs(o.DeliveryPerson)
	query := `
		UPDATE orders
		SET customer_id = ?, subtotal = ?, courier_charge = ?, total_amount = ?, paid_amount = ?, due_amount = ?,
			payment_status = ?, payment_method = ?, status = ?, delivery_method = ?, delivery_person_name = ?,
			delivery_person_phone = ?, notes = ?, updated_at = ?
		WHERE id = ?
	`
	_, err = tx.ExecContext(ctx, query,
		o.CustomerID, o.Subtotal, o.CourierCharge, o.TotalAmount, o.PaidAmount, o.DueAmount,
		o.PaymentStatus, o.PaymentMethod, o.Status, o.DeliveryMethod, name, phone, o.Notes, o.UpdatedAt,
		o.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update order: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM order_items WHERE order_id = ?`, o.ID); err != nil {
		return fmt.Errorf("failed to clear order items: %w", err)
	}
	if err := insertItems(ctx, tx, o.ID, o.Items); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit order update: %w", err)
	}
	return nil
}

// UpdateCourier 写回快递单号、快递状态与订单状态
func (r *orderRepo) UpdateCourier(ctx context.Context, o *domain.Order) error {
	o.UpdatedAt = time.Now().UTC()
	query := `
		UPDATE orders
		SET pathao_consignment_id = ?, pathao_status = ?, pathao_updated_at = ?, status = ?, updated_at = ?
		WHERE id = ?
	`
	_, err := r.db.ExecContext(ctx, query,
		o.PathaoConsignmentID, o.PathaoStatus, nullTime(o.PathaoUpdatedAt), o.Status, o.UpdatedAt, o.ID)
	if err != nil {
		return fmt.Errorf("failed to update order courier fields: %w", err)
	}
	return nil
}

// Delete 删除订单及其订单行
func (r *orderRepo) Delete(ctx context.Context, id string) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM order_items WHERE order_id = ?`, id); err != nil {
		return fmt.Errorf("failed to delete order items: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM orders WHERE id = ?`, id); err != nil {
		return fmt.Errorf("failed to delete order: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit order delete: %w", err)
	}
	return nil
}

// List 分页查询订单
func (r *orderRepo) List(ctx context.Context, req *domain.OrderListRequest) ([]*domain.Order, int64, error) {
	where, args := buildOrderWhereClause(req)
	from := "FROM orders o LEFT JOIN customers c ON c.id = o.customer_id " + where

	var total int64
	if err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) "+from, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count orders: %w", err)
	}

	query := fmt.Sprintf(`SELECT %s %s ORDER BY o.created_at DESC LIMIT ? OFFSET ?`, orderColumns, from)
	args = append(args, req.PageSize, (req.Page-1)*req.PageSize)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to query orders: %w", err)
	}
	defer rows.Close()

	orders := []*domain.Order{}
	ids := []string{}
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to scan order: %w", err)
		}
		orders = append(orders, o)
		ids = append(ids, o.ID)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("failed to iterate orders: %w", err)
	}

	items, err := r.loadItems(ctx, ids)
	if err != nil {
		return nil, 0, err
	}
	for _, o := range orders {
		o.Items = items[o.ID]
	}
	return orders, total, nil
}

func buildOrderWhereClause(req *domain.OrderListRequest) (string, []any) {
	var conditions []string
	var args []any

	if req.Status != nil {
		conditions = append(conditions, "o.status = ?")
		args = append(args, *req.Status)
	}
	if req.PaymentStatus != nil {
		conditions = append(conditions, "o.payment_status = ?")
		args = append(args, *req.PaymentStatus)
	}
	if req.DeliveryMethod != nil {
		conditions = append(conditions, "o.delivery_method = ?")
		args = append(args, *req.DeliveryMethod)
	}
	if req.Brand != nil && *req.Brand != "" {
		conditions = append(conditions, "o.brand = ?")
		args = append(args, *req.Brand)
	}
	if req.Keyword != nil && *req.Keyword != "" {
		conditions = append(conditions, "(o.order_number LIKE ? OR c.phone LIKE ?)")
		kw := "%" + escapeLike(*req.Keyword) + "%"
		args = append(args, kw, kw)
	}

	if len(conditions) == 0 {
		return "", args
	}
	return "WHERE " + strings.Join(conditions, " AND "), args
}
