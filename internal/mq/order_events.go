package mq

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/MorseWayne/retail_admin/internal/domain"
)

// 订单事件路由键
const (
	RoutingOrderCreated    = "order.created"
	RoutingOrderUpdated    = "order.updated"
	RoutingOrderDeleted    = "order.deleted"
	RoutingOrderDispatched = "order.dispatched"
	RoutingStockLow        = "stock.low"
)

// Publisher 发布原始消息，*Producer 实现该接口
type Publisher interface {
	Publish(ctx context.Context, exchange, routingKey, messageID string, body []byte) error
}

// OrderEvent 订单事件消息体
type OrderEvent struct {
	EventID       string               `json:"eventId"`
	Type          string               `json:"type"`
	OrderID       string               `json:"orderId"`
	OrderNumber   string               `json:"orderNumber"`
	Brand         string               `json:"brand"`
	Status        domain.OrderStatus   `json:"status"`
	PaymentStatus domain.PaymentStatus `json:"paymentStatus"`
	TotalAmount   decimal.Decimal      `json:"totalAmount"`
	DueAmount     decimal.Decimal      `json:"dueAmount"`
	ConsignmentID string               `json:"consignmentId,omitempty"`
	ActorID       int64                `json:"actorId,omitempty"`
	OccurredAt    time.Time            `json:"occurredAt"`
}

// StockEvent 低库存事件消息体
type StockEvent struct {
	EventID    string    `json:"eventId"`
	Type       string    `json:"type"`
	ProductID  string    `json:"productId"`
	SKU        string    `json:"sku"`
	Title      string    `json:"title"`
	Stock      int       `json:"stock"`
	MinStock   int       `json:"minStock"`
	OccurredAt time.Time `json:"occurredAt"`
}

// OrderEventPublisher 将订单生命周期事件发布到 topic 交换机。
// 发布失败只记录日志，不向调用方返回错误。
type OrderEventPublisher struct {
	publisher Publisher
	exchange  string
	logger    *zap.Logger
	now       func() time.Time
}

// NewOrderEventPublisher 创建订单事件发布器
func NewOrderEventPublisher(p Publisher, exchange string, logger *zap.Logger) *OrderEventPublisher {
	if exchange == "" {
		exchange = DefaultExchange
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &OrderEventPublisher{publisher: p, exchange: exchange, logger: logger, now: time.Now}
}

func (e *OrderEventPublisher) OrderCreated(ctx context.Context, o *domain.Order) {
	e.publishOrder(ctx, RoutingOrderCreated, o)
}

func (e *OrderEventPublisher) OrderUpdated(ctx context.Context, o *domain.Order) {
	e.publishOrder(ctx, RoutingOrderUpdated, o)
}

func (e *OrderEventPublisher) OrderDeleted(ctx context.Context, o *domain.Order) {
	e.publishOrder(ctx, RoutingOrderDeleted, o)
}

func (e *OrderEventPublisher) OrderDispatched(ctx context.Context, o *domain.Order) {
	e.publishOrder(ctx, RoutingOrderDispatched, o)
}

func (e *OrderEventPublisher) StockLow(ctx context.Context, p *domain.Product) {
	evt := StockEvent{
		EventID:    uuid.NewString(),
		Type:       RoutingStockLow,
		ProductID:  p.ID,
		SKU:        p.SKU,
		Title:      p.Title,
		Stock:      p.Stock,
		MinStock:   p.MinStock,
		OccurredAt: e.now().UTC(),
	}
	e.send(ctx, RoutingStockLow, evt.EventID, evt)
}

func (e *OrderEventPublisher) publishOrder(ctx context.Context, routingKey string, o *domain.Order) {
	evt := OrderEvent{
		EventID:       uuid.NewString(),
		Type:          routingKey,
		OrderID:       o.ID,
		OrderNumber:   o.OrderNumber,
		Brand:         o.Brand,
		Status:        o.Status,
		PaymentStatus: o.PaymentStatus,
		TotalAmount:   o.TotalAmount,
		DueAmount:     o.DueAmount,
		ConsignmentID: o.PathaoConsignmentID,
		ActorID:       domain.ActorFromContext(ctx).UserID,
		OccurredAt:    e.now().UTC(),
	}
	e.send(ctx, routingKey, evt.EventID, evt)
}

func (e *OrderEventPublisher) send(ctx context.Context, routingKey, id string, payload any) {
	body, err := json.Marshal(payload)
	if err != nil {
		e.logger.Error("failed to encode event", zap.String("routing_key", routingKey), zap.Error(err))
		return
	}
	// 请求取消后事件仍需送达
	if err := e.publisher.Publish(context.WithoutCancel(ctx), e.exchange, routingKey, id, body); err != nil {
		e.logger.Warn("failed to publish event",
			zap.String("exchange", e.exchange),
			zap.String("routing_key", routingKey),
			zap.String("event_id", id),
			zap.Error(err),
		)
	}
}
