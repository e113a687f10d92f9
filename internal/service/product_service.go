// Package service 实现业务逻辑层，协调各种资源完成业务需求。
package service

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/MorseWayne/retail_admin/internal/domain"
	"github.com/MorseWayne/retail_admin/internal/repo"
)

// ProductService 定义商品业务逻辑接口
type ProductService interface {
	// 商品管理
	CreateProduct(ctx context.Context, req *domain.CreateProductRequest) (*domain.Product, error)
	GetProduct(ctx context.Context, id string) (*domain.Product, error)
	UpdateProduct(ctx context.Context, id string, req *domain.UpdateProductRequest) (*domain.Product, error)
	DeleteProduct(ctx context.Context, id string) error

	// 商品查询
	ListProducts(ctx context.Context, req *domain.ProductListRequest) (*domain.ProductListResponse, error)
	LowStockAlerts(ctx context.Context, limit int) ([]*domain.Product, error)
}

// productService 实现ProductService接口
type productService struct {
	productRepo repo.ProductRepository
	audit       AuditService
	logger      *zap.Logger
}

// NewProductService 创建商品服务实例
func NewProductService(productRepo repo.ProductRepository, audit AuditService, logger *zap.Logger) ProductService {
	if audit == nil {
		audit = nopAudit{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &productService{
		productRepo: productRepo,
		audit:       audit,
		logger:      logger,
	}
}

// CreateProduct 创建商品
func (s *productService) CreateProduct(ctx context.Context, req *domain.CreateProductRequest) (*domain.Product, error) {
	var missing []string
	if strings.TrimSpace(req.SKU) == "" {
		missing = append(missing, "sku")
	}
	if strings.TrimSpace(req.Title) == "" {
		missing = append(missing, "title")
	}
	if strings.TrimSpace(req.Category) == "" {
		missing = append(missing, "category")
	}
	if strings.TrimSpace(req.Brand) == "" {
		missing = append(missing, "brand")
	}
	if len(missing) > 0 {
		return nil, domain.MissingFieldsError(missing)
	}
	if req.BuyPrice.IsNegative() || req.SellPrice.IsNegative() || req.Stock < 0 || req.MinStock < 0 {
		return nil, domain.NewValidationError("prices and stock must not be negative")
	}

	// 验证SKU唯一性
	sku := strings.TrimSpace(req.SKU)
	existing, err := s.productRepo.GetBySKU(ctx, sku)
	if err != nil {
		return nil, fmt.Errorf("failed to check SKU uniqueness: %w", err)
	}
	if existing != nil {
		return nil, &domain.ConflictError{Message: "sku already exists", SKU: sku}
	}

	product := &domain.Product{
		SKU:         sku,
		Title:       strings.TrimSpace(req.Title),
		Description: req.Description,
		Category:    strings.TrimSpace(req.Category),
		Brand:       strings.TrimSpace(req.Brand),
		BuyPrice:    req.BuyPrice,
		SellPrice:   req.SellPrice,
		Stock:       req.Stock,
		MinStock:    req.MinStock,
		IsActive:    true,
		Images:      req.Images,
		Tags:        req.Tags,
	}
	if err := s.productRepo.Create(ctx, product); err != nil {
		if _, ok := domain.AsConflict(err); ok {
			return nil, err
		}
		return nil, fmt.Errorf("failed to create product: %w", err)
	}

	s.audit.Record(ctx, domain.AuditCreate, "product", product.ID, "created product "+product.SKU)
	return product, nil
}

// GetProduct 获取商品详情
func (s *productService) GetProduct(ctx context.Context, id string) (*domain.Product, error) {
	product, err := s.productRepo.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get product: %w", err)
	}
	if product == nil {
		return nil, &domain.NotFoundError{Resource: "product", ID: id}
	}
	return product, nil
}

// UpdateProduct 更新商品信息，SKU 不可修改
func (s *productService) UpdateProduct(ctx context.Context, id string, req *domain.UpdateProductRequest) (*domain.Product, error) {
	product, err := s.GetProduct(ctx, id)
	if err != nil {
		return nil, err
	}

	if req.Title != nil {
		if strings.TrimSpace(*req.Title) == "" {
			return nil, domain.NewValidationError("title must not be empty")
		}
		product.Title = strings.TrimSpace(*req.Title)
	}
	if req.Description != nil {
		product.Description = *req.Description
	}
	if req.Category != nil {
		product.Category = strings.TrimSpace(*req.Category)
	}
	if req.Brand != nil {
		product.Brand = strings.TrimSpace(*req.Brand)
	}
	if req.BuyPrice != nil {
		product.BuyPrice = *req.BuyPrice
	}
	if req.SellPrice != nil {
		product.SellPrice = *req.SellPrice
	}
	if req.Stock != nil {
		product.Stock = *req.Stock
	}
	if req.MinStock != nil {
		product.MinStock = *req.MinStock
	}
	if req.IsActive != nil {
		product.IsActive = *req.IsActive
	}
	if req.Images != nil {
		product.Images = req.Images
	}
	if req.Tags != nil {
		product.Tags = req.Tags
	}
	if product.BuyPrice.IsNegative() || product.SellPrice.IsNegative() || product.Stock < 0 || product.MinStock < 0 {
		return nil, domain.NewValidationError("prices and stock must not be negative")
	}

	if err := s.productRepo.Update(ctx, product); err != nil {
		return nil, fmt.Errorf("failed to update product: %w", err)
	}

	s.audit.Record(ctx, domain.AuditUpdate, "product", product.ID, "updated product "+product.SKU)
	return product, nil
}

// DeleteProduct 下架商品（软删除），历史订单仍可引用
func (s *productService) DeleteProduct(ctx context.Context, id string) error {
	product, err := s.GetProduct(ctx, id)
	if err != nil {
		return err
	}
	if err := s.productRepo.SoftDelete(ctx, id); err != nil {
		return fmt.Errorf("failed to delete product: %w", err)
	}

	s.audit.Record(ctx, domain.AuditDelete, "product", id, "deactivated product "+product.SKU)
	return nil
}

// ListProducts 获取商品列表
func (s *productService) ListProducts(ctx context.Context, req *domain.ProductListRequest) (*domain.ProductListResponse, error) {
	req.Page, req.PageSize = normalizePage(req.Page, req.PageSize)

	products, total, err := s.productRepo.List(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("failed to list products: %w", err)
	}

	return &domain.ProductListResponse{
		Products: products,
		Total:    total,
		Page:     req.Page,
		PageSize: req.PageSize,
	}, nil
}

// LowStockAlerts 返回库存不高于预警值的在售商品
func (s *productService) LowStockAlerts(ctx context.Context, limit int) ([]*domain.Product, error) {
	if limit <= 0 || limit > maxPageSize {
		limit = maxPageSize
	}
	products, err := s.productRepo.LowStock(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list low stock products: %w", err)
	}
	return products, nil
}
