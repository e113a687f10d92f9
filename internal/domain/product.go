// Package domain 定义业务领域模型和核心业务规则。
// 领域模型是业务逻辑的核心，独立于外部依赖（数据库、HTTP等）。
package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

func init() {
	// 金额在 JSON 中以数字输出
	decimal.MarshalJSONWithoutQuotes = true
}

// Product 表示商品领域模型，Stock 与 SalesCount 构成库存台账
type Product struct {
	ID          string          `json:"id"`
	SKU         string          `json:"sku"`
	Title       string          `json:"title"`
	Description string          `json:"description"`
	Category    string          `json:"category"`
	Brand       string          `json:"brand"`
	BuyPrice    decimal.Decimal `json:"buyPrice"`
	SellPrice   decimal.Decimal `json:"sellPrice"`
	Stock       int             `json:"stock"`
	MinStock    int             `json:"minStock"`
	SalesCount  int             `json:"salesCount"`
	IsActive    bool            `json:"isActive"`
	Images      []string        `json:"images"`
	Tags        []string        `json:"tags"`
	CreatedAt   time.Time       `json:"createdAt"`
	UpdatedAt   time.Time       `json:"updatedAt"`
}

// IsLowStock 判断是否低于预警库存
func (p *Product) IsLowStock() bool {
	return p.Stock <= p.MinStock
}

// ApplySale 扣减库存并累加销量，库存不足时返回 StockError 且不修改任何字段
func (p *Product) ApplySale(quantity int) error {
	if p.Stock < quantity {
		return &StockError{ProductID: p.ID, Title: p.Title, Required: quantity, Available: p.Stock}
	}
	p.Stock -= quantity
	p.SalesCount += quantity
	return nil
}

// RestoreSale 为 ApplySale 的逆操作
func (p *Product) RestoreSale(quantity int) {
	p.Stock += quantity
	p.SalesCount -= quantity
}

// CreateProductRequest 表示创建商品请求
type CreateProductRequest struct {
	SKU         string          `json:"sku"`
	Title       string          `json:"title"`
	Description string          `json:"description"`
	Category    string          `json:"category"`
	Brand       string          `json:"brand"`
	BuyPrice    decimal.Decimal `json:"buyPrice"`
	SellPrice   decimal.Decimal `json:"sellPrice"`
	Stock       int             `json:"stock"`
	MinStock    int             `json:"minStock"`
	Images      []string        `json:"images"`
	Tags        []string        `json:"tags"`
}

// UpdateProductRequest 表示更新商品请求，nil 字段保持不变
type UpdateProductRequest struct {
	Title       *string          `json:"title"`
	Description *string          `json:"description"`
	Category    *string          `json:"category"`
	Brand       *string          `json:"brand"`
	BuyPrice    *decimal.Decimal `json:"buyPrice"`
	SellPrice   *decimal.Decimal `json:"sellPrice"`
	Stock       *int             `json:"stock"`
	MinStock    *int             `json:"minStock"`
	IsActive    *bool            `json:"isActive"`
	Images      []string         `json:"images"`
	Tags        []string         `json:"tags"`
}

// ProductListRequest 表示商品列表查询请求
type ProductListRequest struct {
	Page      int     `json:"page"`       // 页码，从1开始
	PageSize  int     `json:"page_size"`  // 每页大小
	Brand     *string `json:"brand"`      // 品牌过滤
	Category  *string `json:"category"`   // 分类过滤
	Keyword   *string `json:"keyword"`    // 标题/SKU 关键词
	LowStock  bool    `json:"low_stock"`  // 只看低库存
	Inactive  bool    `json:"inactive"`   // 包含已下架商品
	SortBy    *string `json:"sort_by"`    // created_at, title, stock, sales_count, sell_price
	SortOrder *string `json:"sort_order"` // asc, desc
}

// ProductListResponse 表示商品列表查询响应
type ProductListResponse struct {
	Products []*Product `json:"products"`
	Total    int64      `json:"total"`
	Page     int        `json:"page"`
	PageSize int        `json:"page_size"`
}
