package repo

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/MorseWayne/retail_admin/internal/cache"
	"github.com/MorseWayne/retail_admin/internal/domain"
)

// CachedProductRepository 为单个商品读取提供读穿缓存，写操作后失效
type CachedProductRepository struct {
	ProductRepository
	cache  cache.Cache
	ttl    time.Duration
	logger *zap.Logger
}

// NewCachedProductRepository 创建带缓存的商品仓储
func NewCachedProductRepository(repo ProductRepository, c cache.Cache, ttl time.Duration, logger *zap.Logger) ProductRepository {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CachedProductRepository{
		ProductRepository: repo,
		cache:             c,
		ttl:               ttl,
		logger:            logger,
	}
}

// GetByID 根据ID获取商品（带缓存）
func (r *CachedProductRepository) GetByID(ctx context.Context, id string) (*domain.Product, error) {
	var product domain.Product
	if err := r.cache.Get(ctx, cache.ProductKey(id), &product); err == nil {
		return &product, nil
	}

	result, err := r.ProductRepository.GetByID(ctx, id)
	if err != nil || result == nil {
		return result, err
	}

	r.store(ctx, result)
	return result, nil
}

// GetBySKU 根据SKU获取商品（带缓存）
func (r *CachedProductRepository) GetBySKU(ctx context.Context, sku string) (*domain.Product, error) {
	var product domain.Product
	if err := r.cache.Get(ctx, cache.ProductSKUKey(sku), &product); err == nil {
		return &product, nil
	}

	result, err := r.ProductRepository.GetBySKU(ctx, sku)
	if err != nil || result == nil {
		return result, err
	}

	r.store(ctx, result)
	return result, nil
}

// Create 创建商品（清除相关缓存）
func (r *CachedProductRepository) Create(ctx context.Context, product *domain.Product) error {
	if err := r.ProductRepository.Create(ctx, product); err != nil {
		return err
	}
	r.invalidate(ctx, product.ID, product.SKU)
	return nil
}

// Update 更新商品（清除相关缓存）
func (r *CachedProductRepository) Update(ctx context.Context, product *domain.Product) error {
	if err := r.ProductRepository.Update(ctx, product); err != nil {
		return err
	}
	r.invalidate(ctx, product.ID, product.SKU)
	return nil
}

// SoftDelete 下架商品（清除相关缓存）
func (r *CachedProductRepository) SoftDelete(ctx context.Context, id string) error {
	// 先取出 SKU 以便清除 SKU 索引
	product, err := r.ProductRepository.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if err := r.ProductRepository.SoftDelete(ctx, id); err != nil {
		return err
	}

	sku := ""
	if product != nil {
		sku = product.SKU
	}
	r.invalidate(ctx, id, sku)
	return nil
}

// BulkCreate 批量创建（清除相关缓存）
func (r *CachedProductRepository) BulkCreate(ctx context.Context, products []*domain.Product) error {
	if err := r.ProductRepository.BulkCreate(ctx, products); err != nil {
		return err
	}
	for _, p := range products {
		r.invalidate(ctx, p.ID, p.SKU)
	}
	return nil
}

// DecrementStock 条件扣减库存（清除缓存）
func (r *CachedProductRepository) DecrementStock(ctx context.Context, id string, quantity int) (bool, error) {
	ok, err := r.ProductRepository.DecrementStock(ctx, id, quantity)
	if err != nil {
		return false, err
	}
	if ok {
		r.invalidateByID(ctx, id)
	}
	return ok, nil
}

// IncrementStock 回补库存（清除缓存）
func (r *CachedProductRepository) IncrementStock(ctx context.Context, id string, quantity int) error {
	if err := r.ProductRepository.IncrementStock(ctx, id, quantity); err != nil {
		return err
	}
	r.invalidateByID(ctx, id)
	return nil
}

func (r *CachedProductRepository) store(ctx context.Context, p *domain.Product) {
	if err := r.cache.Set(ctx, cache.ProductKey(p.ID), p, r.ttl); err != nil {
		r.logger.Warn("cache product failed", zap.String("product_id", p.ID), zap.Error(err))
		return
	}
	_ = r.cache.Set(ctx, cache.ProductSKUKey(p.SKU), p, r.ttl)
}

// invalidateByID 只知道 ID 时先读缓存取出 SKU 再清除
func (r *CachedProductRepository) invalidateByID(ctx context.Context, id string) {
	var cached domain.Product
	sku := ""
	if err := r.cache.Get(ctx, cache.ProductKey(id), &cached); err == nil {
		sku = cached.SKU
	}
	r.invalidate(ctx, id, sku)
}

func (r *CachedProductRepository) invalidate(ctx context.Context, id, sku string) {
	keys := []string{cache.ProductKey(id)}
	if sku != "" {
		keys = append(keys, cache.ProductSKUKey(sku))
	}
	if err := r.cache.Del(ctx, keys...); err != nil {
		r.logger.Warn("invalidate product cache failed", zap.String("product_id", id), zap.Error(err))
	}
}
