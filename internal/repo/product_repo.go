// Package repo 实现数据访问层，负责与数据库的交互。
package repo

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/MorseWayne/retail_admin/internal/domain"
)

// ProductRepository 定义商品数据访问接口
type ProductRepository interface {
	// 基本CRUD操作
	Create(ctx context.Context, product *domain.Product) error
	GetByID(ctx context.Context, id string) (*domain.Product, error)
	GetBySKU(ctx context.Context, sku string) (*domain.Product, error)
	Update(ctx context.Context, product *domain.Product) error
	SoftDelete(ctx context.Context, id string) error

	// 查询操作
	List(ctx context.Context, req *domain.ProductListRequest) ([]*domain.Product, int64, error)
	LowStock(ctx context.Context, limit int) ([]*domain.Product, error)

	// 批量导入
	FindSKUs(ctx context.Context, skus []string) ([]string, error)
	ListSKUsWithPrefix(ctx context.Context, prefix string) ([]string, error)
	BulkCreate(ctx context.Context, products []*domain.Product) error

	// 条件扣减库存，库存不足时返回 false
	DecrementStock(ctx context.Context, id string, quantity int) (bool, error)
	// IncrementStock 为 DecrementStock 的逆操作
	IncrementStock(ctx context.Context, id string, quantity int) error
}

// productRepo 实现ProductRepository接口
type productRepo struct {
	db *sql.DB
}

// NewProductRepository 创建商品仓储实例
func NewProductRepository(db *sql.DB) ProductRepository {
	return &productRepo{db: db}
}

const productColumns = `id, sku, title, description, category, brand, buy_price, sell_price,
	stock, min_stock, sales_count, is_active, images, tags, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanProduct(s rowScanner) (*domain.Product, error) {
	p := &domain.Product{}
	var images, tags []byte
	err := s.Scan(
		&p.ID,
		&p.SKU,
		&p.Title,
		&p.Description,
		&p.Category,
		&p.Brand,
		&p.BuyPrice,
		&p.SellPrice,
		&p.Stock,
		&p.MinStock,
		&p.SalesCount,
		&p.IsActive,
		&images,
		&tags,
		&p.CreatedAt,
		&p.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if p.Images, err = decodeStrings(images); err != nil {
		return nil, fmt.Errorf("decode images: %w", err)
	}
	if p.Tags, err = decodeStrings(tags); err != nil {
		return nil, fmt.Errorf("decode tags: %w", err)
	}
	return p, nil
}

// encodeStrings 将字符串列表编码为 JSON 列，空列表存为 []
func encodeStrings(v []string) (string, error) {
	if v == nil {
		v = []string{}
	}
	b, err := json.Marshal(v)
	return string(b), err
}

func decodeStrings(b []byte) ([]string, error) {
	out := []string{}
	if len(b) == 0 {
		return out, nil
	}
	if err := json.Unmarshal(b, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// productArgs 返回插入所需的参数，顺序与 productColumns 的前 14 列一致
func productArgs(p *domain.Product) ([]any, error) {
	images, err := encodeStrings(p.Images)
	if err != nil {
		return nil, err
	}
	tags, err := encodeStrings(p.Tags)
	if err != nil {
		return nil, err
	}
	return []any{
		p.ID, p.SKU, p.Title, p.Description, p.Category, p.Brand, p.BuyPrice, p.SellPrice,
		p.Stock, p.MinStock, p.SalesCount, p.IsActive, images, tags,
	}, nil
}

const productInsertPrefix = `INSERT INTO products (id, sku, title, description, category, brand, buy_price, sell_price,
	stock, min_stock, sales_count, is_active, images, tags) VALUES `

const productValuesRow = `(?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

// Create 创建商品，未指定 ID 时生成 UUID
func (r *productRepo) Create(ctx context.Context, product *domain.Product) error {
	if product.ID == "" {
		product.ID = uuid.NewString()
	}
	args, err := productArgs(product)
	if err != nil {
		return fmt.Errorf("failed to encode product: %w", err)
	}

	if _, err := r.db.ExecContext(ctx, productInsertPrefix+productValuesRow, args...); err != nil {
		if isDuplicateKey(err) {
			return &domain.ConflictError{Message: "sku already exists", SKU: product.SKU}
		}
		return fmt.Errorf("failed to create product: %w", err)
	}
	return r.reloadTimestamps(ctx, product)
}

// reloadTimestamps 回填数据库生成的时间戳
func (r *productRepo) reloadTimestamps(ctx context.Context, product *domain.Product) error {
	err := r.db.QueryRowContext(ctx, `SELECT created_at, updated_at FROM products WHERE id = ?`, product.ID).
		Scan(&product.CreatedAt, &product.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to reload product timestamps: %w", err)
	}
	return nil
}

// GetByID 根据ID获取商品，包含已下架的商品
func (r *productRepo) GetByID(ctx context.Context, id string) (*domain.Product, error) {
	query := `SELECT ` + productColumns + ` FROM products WHERE id = ?`

	product, err := scanProduct(r.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get product by id: %w", err)
	}
	return product, nil
}

// GetBySKU 根据SKU获取商品
func (r *productRepo) GetBySKU(ctx context.Context, sku string) (*domain.Product, error) {
	query := `SELECT ` + productColumns + ` FROM products WHERE sku = ?`

	product, err := scanProduct(r.db.QueryRowContext(ctx, query, sku))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get product by sku: %w", err)
	}
	return product, nil
}

// Update 整行覆盖写回商品，包括库存与销量
func (r *productRepo) Update(ctx context.Context, product *domain.Product) error {
	images, err := encodeStrings(product.Images)
	if err != nil {
		return fmt.Errorf("failed to encode images: %w", err)
	}
	tags, err := encodeStrings(product.Tags)
	if err != nil {
		return fmt.Errorf("failed to encode tags: %w", err)
	}

	query := `
		UPDATE products
		SET sku = ?, title = ?, description = ?, category = ?, brand = ?, buy_price = ?, sell_price = ?,
			stock = ?, min_stock = ?, sales_count = ?, is_active = ?, images = ?, tags = ?
		WHERE id = ?
	`
	_, err = r.db.ExecContext(ctx, query,
		product.SKU,
		product.Title,
		product.Description,
		product.Category,
		product.Brand,
		product.BuyPrice,
		product.SellPrice,
		product.Stock,
		product.MinStock,
		product.SalesCount,
		product.IsActive,
		images,
		tags,
		product.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update product: %w", err)
	}
	return nil
}

// SoftDelete 下架商品
func (r *productRepo) SoftDelete(ctx context.Context, id string) error {
	if _, err := r.db.ExecContext(ctx, `UPDATE products SET is_active = 0 WHERE id = ?`, id); err != nil {
		return fmt.Errorf("failed to delete product: %w", err)
	}
	return nil
}

// List 获取商品列表
func (r *productRepo) List(ctx context.Context, req *domain.ProductListRequest) ([]*domain.Product, int64, error) {
	where, args := r.buildListWhereClause(req)

	var total int64
	countQuery := fmt.Sprintf("SELECT COUNT(*) FROM products %s", where)
	if err := r.db.QueryRowContext(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count products: %w", err)
	}

	query := fmt.Sprintf(`SELECT %s FROM products %s %s LIMIT ? OFFSET ?`,
		productColumns, where, r.buildOrderClause(req))
	args = append(args, req.PageSize, (req.Page-1)*req.PageSize)

	products, err := r.queryProducts(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	return products, total, nil
}

// LowStock 返回在售且库存不高于预警值的商品，按库存升序
func (r *productRepo) LowStock(ctx context.Context, limit int) ([]*domain.Product, error) {
	query := `SELECT ` + productColumns + ` FROM products
		WHERE is_active = 1 AND stock <= min_stock
		ORDER BY stock ASC, title ASC LIMIT ?`
	return r.queryProducts(ctx, query, limit)
}

func (r *productRepo) queryProducts(ctx context.Context, query string, args ...any) ([]*domain.Product, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query products: %w", err)
	}
	defer rows.Close()

	products := []*domain.Product{}
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan product: %w", err)
		}
		products = append(products, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate products: %w", err)
	}
	return products, nil
}

// FindSKUs 返回 skus 中已被占用的部分
func (r *productRepo) FindSKUs(ctx context.Context, skus []string) ([]string, error) {
	if len(skus) == 0 {
		return nil, nil
	}

	placeholders := strings.Repeat("?,", len(skus)-1) + "?"
	args := make([]any, len(skus))
	for i, s := range skus {
		args[i] = s
	}

	return r.queryStrings(ctx, fmt.Sprintf(`SELECT sku FROM products WHERE sku IN (%s)`, placeholders), args...)
}

// ListSKUsWithPrefix 返回以 prefix 开头的全部 SKU
func (r *productRepo) ListSKUsWithPrefix(ctx context.Context, prefix string) ([]string, error) {
	return r.queryStrings(ctx, `SELECT sku FROM products WHERE sku LIKE ? ESCAPE '\\'`, escapeLike(prefix)+"%")
}

func (r *productRepo) queryStrings(ctx context.Context, query string, args ...any) ([]string, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query skus: %w", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var s string
		if err := rows.Scan(&s); err != nil {
			return nil, fmt.Errorf("failed to scan sku: %w", err)
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// BulkCreate 在一个事务内插入全部商品，任一失败则全部回滚
func (r *productRepo) BulkCreate(ctx context.Context, products []*domain.Product) error {
	if len(products) == 0 {
		return nil
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	rows := make([]string, 0, len(products))
	args := make([]any, 0, len(products)*14)
	for _, p := range products {
		if p.ID == "" {
			p.ID = uuid.NewString()
		}
		a, err := productArgs(p)
		if err != nil {
			return fmt.Errorf("failed to encode product %s: %w", p.SKU, err)
		}
		rows = append(rows, productValuesRow)
		args = append(args, a...)
	}

	if _, err := tx.ExecContext(ctx, productInsertPrefix+strings.Join(rows, ", "), args...); err != nil {
		if isDuplicateKey(err) {
			return &domain.ConflictError{Message: "sku already exists"}
		}
		return fmt.Errorf("failed to bulk create products: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit bulk create: %w", err)
	}

	for _, p := range products {
		if err := r.reloadTimestamps(ctx, p); err != nil {
			return err
		}
	}
	return nil
}

// DecrementStock 使用条件更新扣减库存并累加销量
func (r *productRepo) DecrementStock(ctx context.Context, id string, quantity int) (bool, error) {
	result, err := r.db.ExecContext(ctx,
		`UPDATE products SET stock = stock - ?, sales_count = sales_count + ? WHERE id = ? AND stock >= ?`,
		quantity, quantity, id, quantity)
	if err != nil {
		return false, fmt.Errorf("failed to decrement stock: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get affected rows: %w", err)
	}
	return affected > 0, nil
}

// IncrementStock 回补库存并扣减销量
func (r *productRepo) IncrementStock(ctx context.Context, id string, quantity int) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE products SET stock = stock + ?, sales_count = sales_count - ? WHERE id = ?`,
		quantity, quantity, id)
	if err != nil {
		return fmt.Errorf("failed to increment stock: %w", err)
	}
	return nil
}

// buildListWhereClause 构建查询条件子句
func (r *productRepo) buildListWhereClause(req *domain.ProductListRequest) (string, []any) {
	var conditions []string
	var args []any

	if !req.Inactive {
		conditions = append(conditions, "is_active = 1")
	}
	if req.LowStock {
		conditions = append(conditions, "stock <= min_stock")
	}
	if req.Category != nil && *req.Category != "" {
		conditions = append(conditions, "category = ?")
		args = append(args, *req.Category)
	}
	if req.Brand != nil && *req.Brand != "" {
		conditions = append(conditions, "brand = ?")
		args = append(args, *req.Brand)
	}
	if req.Keyword != nil && *req.Keyword != "" {
		conditions = append(conditions, "(title LIKE ? OR sku LIKE ?)")
		keyword := "%" + escapeLike(*req.Keyword) + "%"
		args = append(args, keyword, keyword)
	}

	if len(conditions) > 0 {
		return "WHERE " + strings.Join(conditions, " AND "), args
	}
	return "", args
}

// buildOrderClause 构建排序子句
func (r *productRepo) buildOrderClause(req *domain.ProductListRequest) string {
	sortBy := "created_at"
	sortOrder := "DESC"

	if req.SortBy != nil {
		switch *req.SortBy {
		case "created_at", "title", "stock", "sales_count", "sell_price":
			sortBy = *req.SortBy
		}
	}
	if req.SortOrder != nil && strings.ToUpper(*req.SortOrder) == "ASC" {
		sortOrder = "ASC"
	}

	return fmt.Sprintf("ORDER BY %s %s", sortBy, sortOrder)
}

// escapeLike 转义 LIKE 模式中的通配符
func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}
