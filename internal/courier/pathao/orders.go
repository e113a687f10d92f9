package pathao

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"unicode/utf8"

	"github.com/shopspring/decimal"

	"github.com/MorseWayne/retail_admin/internal/domain"
)

const (
	deliveryTypeNormal = 48
	itemTypeParcel     = 2
	defaultItemWeight  = 0.5

	minAddressLength     = 10
	maxDescriptionLength = 200
)

// ShipmentItem 运单中的商品行
type ShipmentItem struct {
	Title    string
	Quantity int
}

// Shipment 为下单时的订单快照
type Shipment struct {
	OrderNumber    string
	RecipientName  string
	RecipientPhone string
	Address        domain.Address
	Items          []ShipmentItem
	TotalAmount    decimal.Decimal
	DueAmount      decimal.Decimal
	Notes          string
}

// CreateOrderRequest 下单请求体
type CreateOrderRequest struct {
	StoreID            int64           `json:"store_id"`
	MerchantOrderID    string          `json:"merchant_order_id"`
	RecipientName      string          `json:"recipient_name"`
	RecipientPhone     string          `json:"recipient_phone"`
	RecipientAddress   string          `json:"recipient_address"`
	DeliveryType       int             `json:"delivery_type"`
	ItemType           int             `json:"item_type"`
	SpecialInstruction string          `json:"special_instruction,omitempty"`
	ItemQuantity       int             `json:"item_quantity"`
	ItemWeight         float64         `json:"item_weight"`
	AmountToCollect    decimal.Decimal `json:"amount_to_collect"`
	ItemDescription    string          `json:"item_description"`
}

// CreateOrderResult 下单结果
type CreateOrderResult struct {
	ConsignmentID   string          `json:"consignment_id"`
	MerchantOrderID string          `json:"merchant_order_id"`
	OrderStatus     string          `json:"order_status"`
	DeliveryFee     decimal.Decimal `json:"delivery_fee"`
}

// OrderInfo 运单状态，字段原样来自上游
type OrderInfo struct {
	ConsignmentID   string `json:"consignment_id"`
	MerchantOrderID string `json:"merchant_order_id"`
	OrderStatus     string `json:"order_status"`
	OrderStatusSlug string `json:"order_status_slug"`
	UpdatedAt       string `json:"updated_at"`
}

type envelope[T any] struct {
	Message string `json:"message"`
	Type    string `json:"type"`
	Code    int    `json:"code"`
	Data    T      `json:"data"`
}

// BuildCreateOrderRequest 由快照生成下单请求体，地址不足 10 个字符时返回校验错误
func BuildCreateOrderRequest(storeID int64, s Shipment) (*CreateOrderRequest, error) {
	address := s.Address.Format()
	if utf8.RuneCountInString(address) < minAddressLength {
		return nil, domain.NewValidationError("recipient address must be at least %d characters", minAddressLength)
	}

	quantity := 0
	for _, it := range s.Items {
		quantity += it.Quantity
	}
	if quantity < 1 {
		quantity = 1
	}

	collect := decimal.Zero
	if s.DueAmount.IsPositive() {
		collect = s.TotalAmount
	}

	return &CreateOrderRequest{
		StoreID:            storeID,
		MerchantOrderID:    s.OrderNumber,
		RecipientName:      s.RecipientName,
		RecipientPhone:     s.RecipientPhone,
		RecipientAddress:   address,
		DeliveryType:       deliveryTypeNormal,
		ItemType:           itemTypeParcel,
		SpecialInstruction: s.Notes,
		ItemQuantity:       quantity,
		ItemWeight:         defaultItemWeight,
		AmountToCollect:    collect,
		ItemDescription:    describeItems(s.Items),
	}, nil
}

// describeItems 生成 "标题 × 数量" 列表，超过 200 个字符截断
func describeItems(items []ShipmentItem) string {
	parts := make([]string, 0, len(items))
	for _, it := range items {
		parts = append(parts, fmt.Sprintf("%s × %d", it.Title, it.Quantity))
	}
	desc := strings.Join(parts, ", ")
	if utf8.RuneCountInString(desc) > maxDescriptionLength {
		desc = string([]rune(desc)[:maxDescriptionLength])
	}
	return desc
}

// CreateOrder 提交运单
func (c *Client) CreateOrder(ctx context.Context, s Shipment) (*CreateOrderResult, error) {
	if c.creds.StoreID == 0 {
		return nil, domain.NewValidationError("pathao store id is not configured for brand %s", c.creds.Brand)
	}

	body, err := BuildCreateOrderRequest(c.creds.StoreID, s)
	if err != nil {
		return nil, err
	}

	var resp envelope[CreateOrderResult]
	if err := c.do(ctx, http.MethodPost, createOrderPath, body, &resp); err != nil {
		return nil, err
	}
	if resp.Data.ConsignmentID == "" {
		raw, _ := json.Marshal(resp)
		return nil, &UpstreamError{Method: http.MethodPost, Path: createOrderPath, Status: resp.Code, Body: string(raw)}
	}
	return &resp.Data, nil
}

// OrderStatus 查询运单状态
func (c *Client) OrderStatus(ctx context.Context, consignmentID string) (*OrderInfo, error) {
	if strings.TrimSpace(consignmentID) == "" {
		return nil, domain.NewValidationError("consignment id is required")
	}

	var resp envelope[OrderInfo]
	path := fmt.Sprintf(orderInfoPath, url.PathEscape(consignmentID))
	if err := c.do(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return nil, err
	}
	return &resp.Data, nil
}
