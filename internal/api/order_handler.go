package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/MorseWayne/retail_admin/internal/domain"
	"github.com/MorseWayne/retail_admin/internal/middleware"
	"github.com/MorseWayne/retail_admin/internal/resp"
	"github.com/MorseWayne/retail_admin/internal/service"
)

// OrderHandler 订单接口
type OrderHandler struct {
	orderService service.OrderService
	logger       *zap.Logger
}

// NewOrderHandler 创建订单处理器
func NewOrderHandler(orderService service.OrderService, logger *zap.Logger) *OrderHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &OrderHandler{orderService: orderService, logger: logger}
}

// CreateOrder 创建订单
// POST /api/v1/orders
func (h *OrderHandler) CreateOrder(c *gin.Context) {
	var req domain.CreateOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Warn("invalid order body", zap.String("request_id", middleware.GetRequestID(c)), zap.Error(err))
		badRequest(c, "invalid request body")
		return
	}

	view, err := h.orderService.CreateOrder(c.Request.Context(), &req)
	if err != nil {
		writeError(c, h.logger, err, "create order")
		return
	}
	resp.Created(c.Writer, view, middleware.GetRequestID(c), "")
}

// GetOrder 获取订单详情
// GET /api/v1/orders/:id
func (h *OrderHandler) GetOrder(c *gin.Context) {
	view, err := h.orderService.GetOrder(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, h.logger, err, "get order")
		return
	}
	resp.OK(c.Writer, view, middleware.GetRequestID(c), "")
}

// UpdateOrder 修改订单，只更新请求中出现的字段
// PUT /api/v1/orders/:id
func (h *OrderHandler) UpdateOrder(c *gin.Context) {
	var req domain.UpdateOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request body")
		return
	}

	view, err := h.orderService.UpdateOrder(c.Request.Context(), c.Param("id"), &req)
	if err != nil {
		writeError(c, h.logger, err, "update order")
		return
	}
	resp.OK(c.Writer, view, middleware.GetRequestID(c), "")
}

// DeleteOrder 删除订单并回补库存
// DELETE /api/v1/orders/:id
func (h *OrderHandler) DeleteOrder(c *gin.Context) {
	if err := h.orderService.DeleteOrder(c.Request.Context(), c.Param("id")); err != nil {
		writeError(c, h.logger, err, "delete order")
		return
	}
	resp.WriteJSON(c.Writer, http.StatusOK, resp.CodeOK, "order deleted and stock restored", nil,
		middleware.GetRequestID(c), "")
}

// ListOrders 订单列表
// GET /api/v1/orders?page=&page_size=&status=&payment_status=&delivery_method=&brand=&keyword=
func (h *OrderHandler) ListOrders(c *gin.Context) {
	req := &domain.OrderListRequest{
		Page:           queryInt(c, "page", 1),
		PageSize:       queryInt(c, "page_size", 0),
		Status:         queryEnum[domain.OrderStatus](c, "status"),
		PaymentStatus:  queryEnum[domain.PaymentStatus](c, "payment_status"),
		DeliveryMethod: queryEnum[domain.DeliveryMethod](c, "delivery_method"),
		Brand:          queryString(c, "brand"),
		Keyword:        queryString(c, "keyword"),
	}

	list, err := h.orderService.ListOrders(c.Request.Context(), req)
	if err != nil {
		writeError(c, h.logger, err, "list orders")
		return
	}
	resp.OK(c.Writer, list, middleware.GetRequestID(c), "")
}
