package service

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/MorseWayne/retail_admin/internal/domain"
	"github.com/MorseWayne/retail_admin/internal/repo"
)

// ImportService 商品批量导入
type ImportService interface {
	// Import 按模式导入商品：partial 逐条写入，failfast 先整体校验再一次性写入
	Import(ctx context.Context, candidates []domain.ProductCandidate, mode domain.ImportMode, prefix string) (*domain.BulkImportResult, error)
}

type importService struct {
	productRepo repo.ProductRepository
	audit       AuditService
	logger      *zap.Logger
}

// NewImportService 创建导入服务实例
func NewImportService(productRepo repo.ProductRepository, audit AuditService, logger *zap.Logger) ImportService {
	if audit == nil {
		audit = nopAudit{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &importService{productRepo: productRepo, audit: audit, logger: logger}
}

// skuWidth 自动 SKU 的数字位数
const skuWidth = 4

// batchAbortedMessage 为 failfast 模式下未写入的有效项
const batchAbortedMessage = "not imported: batch contains invalid items"

func (s *importService) Import(ctx context.Context, candidates []domain.ProductCandidate, mode domain.ImportMode, prefix string) (*domain.BulkImportResult, error) {
	if len(candidates) == 0 {
		return nil, domain.NewValidationError("products must be a non-empty array")
	}
	if mode == "" {
		mode = domain.ImportPartial
	}
	if strings.TrimSpace(prefix) == "" {
		prefix = domain.DefaultSKUPrefix
	}

	result := &domain.BulkImportResult{
		Mode:    mode,
		Total:   len(candidates),
		Results: make([]domain.ImportItemResult, len(candidates)),
	}
	products, err := s.prepare(ctx, candidates, prefix, result)
	if err != nil {
		return nil, err
	}

	switch mode {
	case domain.ImportFailFast:
		err = s.insertAll(ctx, products, result)
	default:
		s.insertEach(ctx, products, result)
	}
	if err != nil {
		return nil, err
	}

	for _, r := range result.Results {
		if r.Success {
			result.Succeeded++
		} else {
			result.Failed++
		}
	}

	s.logger.Info("bulk import finished",
		zap.String("mode", string(mode)),
		zap.Int("total", result.Total),
		zap.Int("succeeded", result.Succeeded),
		zap.Int("failed", result.Failed),
	)
	if result.Succeeded > 0 {
		s.audit.Record(ctx, domain.AuditImport, "product", "",
			fmt.Sprintf("imported %d of %d products (%s)", result.Succeeded, result.Total, mode))
	}
	return result, nil
}

// prepare 校验全部候选项并为缺少 SKU 的有效项分配编号。
// 返回值按下标对齐，无效项为 nil，失败原因写入 result。
func (s *importService) prepare(ctx context.Context, candidates []domain.ProductCandidate, prefix string, result *domain.BulkImportResult) ([]*domain.Product, error) {
	var explicit []string
	for _, c := range candidates {
		if sku := strings.TrimSpace(c.SKU); sku != "" {
			explicit = append(explicit, sku)
		}
	}
	persisted := map[string]bool{}
	if len(explicit) > 0 {
		found, err := s.productRepo.FindSKUs(ctx, explicit)
		if err != nil {
			return nil, fmt.Errorf("failed to check existing skus: %w", err)
		}
		for _, sku := range found {
			persisted[sku] = true
		}
	}

	products := make([]*domain.Product, len(candidates))
	claimed := map[string]bool{}
	for i := range candidates {
		c := &candidates[i]
		result.Results[i] = domain.ImportItemResult{Index: i}

		if missing := c.MissingFields(); len(missing) > 0 {
			result.Results[i].Error = "missing required fields"
			result.Results[i].MissingFields = missing
			continue
		}
		if c.BuyPrice.IsNegative() || c.SellPrice.IsNegative() || *c.Stock < 0 || c.MinStock < 0 {
			result.Results[i].Error = "prices and stock must not be negative"
			continue
		}

		p := c.ToProduct()
		if p.SKU != "" {
			if claimed[p.SKU] {
				result.Results[i].Error = "duplicate sku in batch: " + p.SKU
				continue
			}
			if persisted[p.SKU] {
				result.Results[i].Error = "sku already exists: " + p.SKU
				continue
			}
			claimed[p.SKU] = true
		}
		products[i] = p
	}

	if err := s.assignSKUs(ctx, products, prefix, claimed); err != nil {
		return nil, err
	}
	return products, nil
}

// assignSKUs 从前缀下已有的最大数字后缀之后顺序分配 SKU，跳过已占用的编号
func (s *importService) assignSKUs(ctx context.Context, products []*domain.Product, prefix string, claimed map[string]bool) error {
	need := false
	for _, p := range products {
		if p != nil && p.SKU == "" {
			need = true
			break
		}
	}
	if !need {
		return nil
	}

	existing, err := s.productRepo.ListSKUsWithPrefix(ctx, prefix)
	if err != nil {
		return fmt.Errorf("failed to list skus with prefix %s: %w", prefix, err)
	}
	used := make(map[string]bool, len(existing)+len(claimed))
	for sku := range claimed {
		used[sku] = true
	}
	next := highestSuffix(existing, prefix) + 1
	for _, sku := range existing {
		used[sku] = true
	}

	for _, p := range products {
		if p == nil || p.SKU != "" {
			continue
		}
		sku := formatSKU(prefix, next)
		for used[sku] {
			next++
			sku = formatSKU(prefix, next)
		}
		p.SKU = sku
		used[sku] = true
		next++
	}
	return nil
}

// highestSuffix 返回 prefix 后纯数字部分的最大值，没有时为 0
func highestSuffix(skus []string, prefix string) int {
	highest := 0
	for _, sku := range skus {
		rest, ok := strings.CutPrefix(sku, prefix)
		if !ok || rest == "" {
			continue
		}
		n, err := strconv.Atoi(rest)
		if err != nil || n < 0 {
			continue
		}
		if n > highest {
			highest = n
		}
	}
	return highest
}

func formatSKU(prefix string, n int) string {
	return fmt.Sprintf("%s%0*d", prefix, skuWidth, n)
}

// insertEach 逐条写入，单条失败不影响其他项
func (s *importService) insertEach(ctx context.Context, products []*domain.Product, result *domain.BulkImportResult) {
	for i, p := range products {
		if p == nil {
			continue
		}
		if err := s.productRepo.Create(ctx, p); err != nil {
			if conflict, ok := domain.AsConflict(err); ok {
				result.Results[i].Error = conflict.Error()
				continue
			}
			s.logger.Warn("failed to import product", zap.Int("index", i), zap.String("sku", p.SKU), zap.Error(err))
			result.Results[i].Error = "failed to create product"
			continue
		}
		result.Results[i].Success = true
		result.Results[i].Product = p
	}
}

// insertAll 存在任一无效项时不写入任何商品，否则在一个事务内全部写入
func (s *importService) insertAll(ctx context.Context, products []*domain.Product, result *domain.BulkImportResult) error {
	valid := make([]*domain.Product, 0, len(products))
	for i, p := range products {
		if p == nil {
			continue
		}
		valid = append(valid, p)
		result.Results[i].Error = batchAbortedMessage
	}
	if len(valid) < len(products) {
		return nil
	}

	if err := s.productRepo.BulkCreate(ctx, valid); err != nil {
		if conflict, ok := domain.AsConflict(err); ok {
			for i := range result.Results {
				result.Results[i].Error = conflict.Error()
			}
			return nil
		}
		return fmt.Errorf("failed to bulk create products: %w", err)
	}
	for i, p := range products {
		result.Results[i] = domain.ImportItemResult{Index: i, Success: true, Product: p}
	}
	return nil
}
