package repo

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/MorseWayne/retail_admin/internal/domain"
)

// CustomerRepository 定义客户数据访问接口
type CustomerRepository interface {
	Create(ctx context.Context, customer *domain.Customer) error
	GetByID(ctx context.Context, id string) (*domain.Customer, error)
	GetByPhone(ctx context.Context, phone string) (*domain.Customer, error)
	Update(ctx context.Context, customer *domain.Customer) error
	// RecordOrder 累加订单数与消费额并刷新最近下单时间
	RecordOrder(ctx context.Context, id string, amount decimal.Decimal, at time.Time) error
	List(ctx context.Context, req *domain.CustomerListRequest) ([]*domain.Customer, int64, error)
}

type customerRepo struct {
	db *sql.DB
}

// NewCustomerRepository 创建客户仓储实例
func NewCustomerRepository(db *sql.DB) CustomerRepository {
	return &customerRepo{db: db}
}

const customerColumns = `id, name, phone, email, address_kind, address_text, address_street, address_city,
	address_state, address_zip, total_orders, total_spent, last_order, created_at, updated_at`

func scanCustomer(s rowScanner) (*domain.Customer, error) {
	c := &domain.Customer{}
	var lastOrder sql.NullTime
	err := s.Scan(
		&c.ID,
		&c.Name,
		&c.Phone,
		&c.Email,
		&c.Address.Kind,
		&c.Address.Text,
		&c.Address.Street,
		&c.Address.City,
		&c.Address.State,
		&c.Address.ZipCode,
		&c.TotalOrders,
		&c.TotalSpent,
		&lastOrder,
		&c.CreatedAt,
		&c.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if lastOrder.Valid {
		t := lastOrder.Time
		c.LastOrder = &t
	}
	return c, nil
}

// Create 创建客户
func (r *customerRepo) Create(ctx context.Context, c *domain.Customer) error {
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	c.CreatedAt, c.UpdatedAt = now, now

	query := `
		INSERT INTO customers (id, name, phone, email, address_kind, address_text, address_street, address_city,
			address_state, address_zip, total_orders, total_spent, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err := r.db.ExecContext(ctx, query,
		c.ID, c.Name, c.Phone, c.Email,
		c.Address.Kind, c.Address.Text, c.Address.Street, c.Address.City, c.Address.State, c.Address.ZipCode,
		c.TotalOrders, c.TotalSpent, now, now,
	)
	if err != nil {
		if isDuplicateKey(err) {
			return fmt.Errorf("customer phone %s: %w", c.Phone, ErrDuplicate)
		}
		return fmt.Errorf("failed to create customer: %w", err)
	}
	return nil
}

// GetByID 根据ID获取客户
func (r *customerRepo) GetByID(ctx context.Context, id string) (*domain.Customer, error) {
	c, err := scanCustomer(r.db.QueryRowContext(ctx, `SELECT `+customerColumns+` FROM customers WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get customer by id: %w", err)
	}
	return c, nil
}

// GetByPhone 根据手机号获取客户
func (r *customerRepo) GetByPhone(ctx context.Context, phone string) (*domain.Customer, error) {
	c, err := scanCustomer(r.db.QueryRowContext(ctx, `SELECT `+customerColumns+` FROM customers WHERE phone = ?`, phone))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get customer by phone: %w", err)
	}
	return c, nil
}

// Update 更新客户资料，不修改统计字段
func (r *customerRepo) Update(ctx context.Context, c *domain.Customer) error {
	query := `
		UPDATE customers
		SET name = ?, email = ?, address_kind = ?, address_text = ?, address_street = ?, address_city = ?,
			address_state = ?, address_zip = ?
		WHERE id = ?
	`
	_, err := r.db.ExecContext(ctx, query,
		c.Name, c.Email,
		c.Address.Kind, c.Address.Text, c.Address.Street, c.Address.City, c.Address.State, c.Address.ZipCode,
		c.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update customer: %w", err)
	}
	return nil
}

// RecordOrder 原子累加统计字段
func (r *customerRepo) RecordOrder(ctx context.Context, id string, amount decimal.Decimal, at time.Time) error {
	query := `
		UPDATE customers
		SET total_orders = total_orders + 1, total_spent = total_spent + ?, last_order = ?
		WHERE id = ?
	`
	if _, err := r.db.ExecContext(ctx, query, amount, at, id); err != nil {
		return fmt.Errorf("failed to record customer order: %w", err)
	}
	return nil
}

// List 分页查询客户，关键词匹配姓名或手机号
func (r *customerRepo) List(ctx context.Context, req *domain.CustomerListRequest) ([]*domain.Customer, int64, error) {
	where := ""
	var args []any
	if req.Keyword != nil && *req.Keyword != "" {
		where = "WHERE name LIKE ? OR phone LIKE ?"
		kw := "%" + escapeLike(*req.Keyword) + "%"
		args = append(args, kw, kw)
	}

	var total int64
	if err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM customers "+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count customers: %w", err)
	}

	query := fmt.Sprintf(`SELECT %s FROM customers %s ORDER BY created_at DESC LIMIT ? OFFSET ?`, customerColumns, where)
	args = append(args, req.PageSize, (req.Page-1)*req.PageSize)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to query customers: %w", err)
	}
	defer rows.Close()

	customers := []*domain.Customer{}
	for rows.Next() {
		c, err := scanCustomer(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to scan customer: %w", err)
		}
		customers = append(customers, c)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("failed to iterate customers: %w", err)
	}
	return customers, total, nil
}
