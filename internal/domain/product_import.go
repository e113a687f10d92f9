package domain

import (
	"encoding/json"
	"strings"

	"github.com/shopspring/decimal"
)

// ImportMode 批量导入策略
type ImportMode string

const (
	ImportPartial  ImportMode = "partial"  // 逐条处理，跳过无效项
	ImportFailFast ImportMode = "failfast" // 任一错误则整批放弃
)

// ParseImportMode 解析导入模式，空值为 partial，大小写不敏感
func ParseImportMode(s string) (ImportMode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", string(ImportPartial):
		return ImportPartial, nil
	case string(ImportFailFast):
		return ImportFailFast, nil
	default:
		return "", NewValidationError("invalid import mode %q", s)
	}
}

// DefaultSKUPrefix 自动生成 SKU 的默认前缀
const DefaultSKUPrefix = "SKU-"

// ProductCandidate 为待导入的商品。
// 必填的数值字段使用指针区分“缺失”与“零值”。
type ProductCandidate struct {
	SKU         string           `json:"sku"`
	Title       string           `json:"title"`
	Description string           `json:"description"`
	Category    string           `json:"category"`
	Brand       string           `json:"brand"`
	BuyPrice    *decimal.Decimal `json:"buyPrice"`
	SellPrice   *decimal.Decimal `json:"sellPrice"`
	Stock       *int             `json:"stock"`
	MinStock    int              `json:"minStock"`
	Images      []string         `json:"images"`
	Tags        []string         `json:"tags"`
}

// MissingFields 返回缺失的必填字段，顺序固定
func (c *ProductCandidate) MissingFields() []string {
	var missing []string
	if strings.TrimSpace(c.Title) == "" {
		missing = append(missing, "title")
	}
	if c.BuyPrice == nil {
		missing = append(missing, "buyPrice")
	}
	if c.SellPrice == nil {
		missing = append(missing, "sellPrice")
	}
	if c.Stock == nil {
		missing = append(missing, "stock")
	}
	if strings.TrimSpace(c.Category) == "" {
		missing = append(missing, "category")
	}
	if strings.TrimSpace(c.Brand) == "" {
		missing = append(missing, "brand")
	}
	return missing
}

// ToProduct 将已校验的候选项转为商品
func (c *ProductCandidate) ToProduct() *Product {
	return &Product{
		SKU:         strings.TrimSpace(c.SKU),
		Title:       strings.TrimSpace(c.Title),
		Description: c.Description,
		Category:    strings.TrimSpace(c.Category),
		Brand:       strings.TrimSpace(c.Brand),
		BuyPrice:    *c.BuyPrice,
		SellPrice:   *c.SellPrice,
		Stock:       *c.Stock,
		MinStock:    c.MinStock,
		IsActive:    true,
		Images:      c.Images,
		Tags:        c.Tags,
	}
}

// BulkImportRequest 批量导入请求体
type BulkImportRequest struct {
	Products []ProductCandidate `json:"products"`
}

// ImportItemResult 单条导入结果
type ImportItemResult struct {
	Index         int      `json:"index"`
	Success       bool     `json:"success"`
	Product       *Product `json:"product,omitempty"`
	Error         string   `json:"error,omitempty"`
	MissingFields []string `json:"missingFields,omitempty"`
}

// BulkImportResult 批量导入汇总
type BulkImportResult struct {
	Mode      ImportMode         `json:"mode"`
	Total     int                `json:"total"`
	Succeeded int                `json:"succeeded"`
	Failed    int                `json:"failed"`
	Results   []ImportItemResult `json:"results"`
}

// Outcome 汇总导入结果的整体结论
type Outcome int

const (
	OutcomeAll Outcome = iota
	OutcomeSome
	OutcomeNone
)

// Outcome 返回整体结论：全部成功、部分成功或全部失败
func (r *BulkImportResult) Outcome() Outcome {
	switch {
	case r.Total > 0 && r.Succeeded == r.Total:
		return OutcomeAll
	case r.Succeeded > 0:
		return OutcomeSome
	default:
		return OutcomeNone
	}
}

// MarshalJSON 保证 results 为数组而非 null
func (r BulkImportResult) MarshalJSON() ([]byte, error) {
	type alias BulkImportResult
	if r.Results == nil {
		r.Results = []ImportItemResult{}
	}
	return json.Marshal(alias(r))
}
