package service

import (
	"context"

	"github.com/MorseWayne/retail_admin/internal/domain"
)

// OrderEvents 订单领域事件出口，发布失败只记录日志，不影响主流程
type OrderEvents interface {
	OrderCreated(ctx context.Context, order *domain.Order)
	OrderUpdated(ctx context.Context, order *domain.Order)
	OrderDeleted(ctx context.Context, order *domain.Order)
	OrderDispatched(ctx context.Context, order *domain.Order)
	StockLow(ctx context.Context, product *domain.Product)
}

// NopOrderEvents 丢弃全部事件，未启用消息队列时使用
type NopOrderEvents struct{}

func (NopOrderEvents) OrderCreated(context.Context, *domain.Order) {}

func (NopOrderEvents) OrderUpdated(context.Context, *domain.Order) {}

func (NopOrderEvents) OrderDeleted(context.Context, *domain.Order) {}

func (NopOrderEvents) OrderDispatched(context.Context, *domain.Order) {}

func (NopOrderEvents) StockLow(context.Context, *domain.Product) {}

// 分页默认值
const (
	defaultPageSize = 20
	maxPageSize     = 100
)

// normalizePage 规范化分页参数
func normalizePage(page, pageSize int) (int, int) {
	if page <= 0 {
		page = 1
	}
	if pageSize <= 0 {
		pageSize = defaultPageSize
	}
	if pageSize > maxPageSize {
		pageSize = maxPageSize
	}
	return page, pageSize
}
