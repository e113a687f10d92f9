package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// OrderStatus 订单履约状态
type OrderStatus string

const (
	OrderStatusPending    OrderStatus = "pending"
	OrderStatusProcessing OrderStatus = "processing"
	OrderStatusShipped    OrderStatus = "shipped"
	OrderStatusDelivered  OrderStatus = "delivered"
	OrderStatusCancelled  OrderStatus = "cancelled"
)

// Valid 判断状态是否合法
func (s OrderStatus) Valid() bool {
	switch s {
	case OrderStatusPending, OrderStatusProcessing, OrderStatusShipped, OrderStatusDelivered, OrderStatusCancelled:
		return true
	}
	return false
}

// DeliveryMethod 配送方式
type DeliveryMethod string

const (
	DeliveryPathao   DeliveryMethod = "pathao"
	DeliveryByPerson DeliveryMethod = "delivery_person"
	DeliveryPickup   DeliveryMethod = "pickup"
)

func (m DeliveryMethod) Valid() bool {
	switch m {
	case DeliveryPathao, DeliveryByPerson, DeliveryPickup:
		return true
	}
	return false
}

// PaymentMethod 支付方式
type PaymentMethod string

const (
	PaymentCash  PaymentMethod = "cash"
	PaymentCard  PaymentMethod = "card"
	PaymentBkash PaymentMethod = "bkash"
	PaymentNogod PaymentMethod = "nogod"
	PaymentBank  PaymentMethod = "bank"
)

func (m PaymentMethod) Valid() bool {
	switch m {
	case PaymentCash, PaymentCard, PaymentBkash, PaymentNogod, PaymentBank:
		return true
	}
	return false
}

// PaymentStatus 支付状态，由金额推导
type PaymentStatus string

const (
	PaymentStatusPaid    PaymentStatus = "paid"
	PaymentStatusPartial PaymentStatus = "partial"
	PaymentStatusDue     PaymentStatus = "due"
)

func (s PaymentStatus) Valid() bool {
	switch s {
	case PaymentStatusPaid, PaymentStatusPartial, PaymentStatusDue:
		return true
	}
	return false
}

// DeliveryPerson 自配送骑手信息
type DeliveryPerson struct {
	Name  string `json:"name"`
	Phone string `json:"phone"`
}

// OrderItem 订单行，Price 为成交时单价
type OrderItem struct {
	ProductID string          `json:"product"`
	Quantity  int             `json:"quantity"`
	Price     decimal.Decimal `json:"price"`
	Total     decimal.Decimal `json:"total"`
}

// Order 为订单聚合根
type Order struct {
	ID             string          `json:"id"`
	OrderNumber    string          `json:"orderNumber"`
	CustomerID     string          `json:"customer"`
	Items          []OrderItem     `json:"items"`
	Subtotal       decimal.Decimal `json:"subtotal"`
	CourierCharge  decimal.Decimal `json:"courierCharge"`
	TotalAmount    decimal.Decimal `json:"totalAmount"`
	PaidAmount     decimal.Decimal `json:"paidAmount"`
	DueAmount      decimal.Decimal `json:"dueAmount"`
	PaymentStatus  PaymentStatus   `json:"paymentStatus"`
	PaymentMethod  PaymentMethod   `json:"paymentMethod"`
	Status         OrderStatus     `json:"status"`
	DeliveryMethod DeliveryMethod  `json:"deliveryMethod"`
	DeliveryPerson *DeliveryPerson `json:"deliveryPerson,omitempty"`
	Brand          string          `json:"brand"`
	Notes          string          `json:"notes"`

	// 快递字段，仅在发货后填充
	PathaoConsignmentID string     `json:"pathaoConsignmentId,omitempty"`
	PathaoStatus        string     `json:"pathaoStatus,omitempty"`
	PathaoUpdatedAt     *time.Time `json:"pathaoUpdatedAt,omitempty"`

	CreatedBy int64     `json:"createdBy,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// IsDispatched 判断是否已交给快递
func (o *Order) IsDispatched() bool {
	return o.PathaoConsignmentID != ""
}

// OrderItemView 为带商品快照的订单行，商品已删除时 Product 为 nil
type OrderItemView struct {
	OrderItem
	Product *Product `json:"productDetail"`
}

// OrderView 为订单的展示视图，客户与商品已解析
type OrderView struct {
	*Order
	Customer *Customer       `json:"customerDetail"`
	Items    []OrderItemView `json:"items"`
}

// OrderItemInput 下单行
type OrderItemInput struct {
	ProductID string          `json:"product"`
	Quantity  int             `json:"quantity"`
	Price     decimal.Decimal `json:"price"`
}

// CreateOrderRequest 创建订单请求
type CreateOrderRequest struct {
	Customer       *CustomerInput   `json:"customer"`
	Items          []OrderItemInput `json:"items"`
	PaymentMethod  PaymentMethod    `json:"paymentMethod"`
	DeliveryMethod DeliveryMethod   `json:"deliveryMethod"`
	Brand          string           `json:"brand"`
	CourierCharge  decimal.Decimal  `json:"courierCharge"`
	PaidAmount     decimal.Decimal  `json:"paidAmount"`
	Status         OrderStatus      `json:"status"`
	DeliveryPerson *DeliveryPerson  `json:"deliveryPerson"`
	Notes          string           `json:"notes"`
}

// UpdateOrderRequest 更新订单请求，nil 字段保持不变。
// Items 仅用于重算小计，不会回写库存。
type UpdateOrderRequest struct {
	Customer       *CustomerInput   `json:"customer"`
	Items          []OrderItemInput `json:"items"`
	PaymentMethod  *PaymentMethod   `json:"paymentMethod"`
	DeliveryMethod *DeliveryMethod  `json:"deliveryMethod"`
	DeliveryPerson *DeliveryPerson  `json:"deliveryPerson"`
	Status         *OrderStatus     `json:"status"`
	PaymentStatus  *PaymentStatus   `json:"paymentStatus"`
	PaidAmount     *decimal.Decimal `json:"paidAmount"`
	CourierCharge  *decimal.Decimal `json:"courierCharge"`
	Notes          *string          `json:"notes"`
}

// OrderListRequest 订单列表查询请求
type OrderListRequest struct {
	Page           int             `json:"page"`
	PageSize       int             `json:"page_size"`
	Status         *OrderStatus    `json:"status"`
	PaymentStatus  *PaymentStatus  `json:"payment_status"`
	DeliveryMethod *DeliveryMethod `json:"delivery_method"`
	Brand          *string         `json:"brand"`
	Keyword        *string         `json:"keyword"` // 订单号
}

// OrderListResponse 订单列表查询响应
type OrderListResponse struct {
	Orders   []*OrderView `json:"orders"`
	Total    int64        `json:"total"`
	Page     int          `json:"page"`
	PageSize int          `json:"page_size"`
}
