package api

import (
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/MorseWayne/retail_admin/internal/middleware"
	"github.com/MorseWayne/retail_admin/internal/resp"
	"github.com/MorseWayne/retail_admin/internal/service"
)

// maxBatchDispatch 单次批量发货的订单上限
const maxBatchDispatch = 100

type sendOrderRequest struct {
	OrderID string `json:"orderId"`
}

type sendOrdersRequest struct {
	OrderIDs []string `json:"orderIds"`
}

// courierFields 发货或刷新后返回的运单字段
type courierFields struct {
	OrderID       string     `json:"orderId"`
	OrderNumber   string     `json:"orderNumber"`
	ConsignmentID string     `json:"consignmentId"`
	PathaoStatus  string     `json:"pathaoStatus"`
	UpdatedAt     *time.Time `json:"pathaoUpdatedAt,omitempty"`
	Status        string     `json:"status"`
}

// PathaoHandler 快递发货接口
type PathaoHandler struct {
	courierService service.CourierService
	logger         *zap.Logger
}

func NewPathaoHandler(courierService service.CourierService, logger *zap.Logger) *PathaoHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PathaoHandler{courierService: courierService, logger: logger}
}

// SendOrder 将单个订单提交给 Pathao
// POST /api/v1/pathao/send-order {orderId} → {consignmentId}
func (h *PathaoHandler) SendOrder(c *gin.Context) {
	var req sendOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil || strings.TrimSpace(req.OrderID) == "" {
		badRequest(c, "orderId is required")
		return
	}

	order, err := h.courierService.SendOrder(c.Request.Context(), req.OrderID)
	if err != nil {
		writeError(c, h.logger, err, "send order")
		return
	}
	resp.OK(c.Writer, courierFields{
		OrderID:       order.ID,
		OrderNumber:   order.OrderNumber,
		ConsignmentID: order.PathaoConsignmentID,
		PathaoStatus:  order.PathaoStatus,
		UpdatedAt:     order.PathaoUpdatedAt,
		Status:        string(order.Status),
	}, middleware.GetRequestID(c), "")
}

// SendOrders 逐个提交多个订单，返回逐单结果
// POST /api/v1/pathao/send-orders {orderIds}
func (h *PathaoHandler) SendOrders(c *gin.Context) {
	var req sendOrdersRequest
	if err := c.ShouldBindJSON(&req); err != nil || len(req.OrderIDs) == 0 {
		badRequest(c, "orderIds is required")
		return
	}
	if len(req.OrderIDs) > maxBatchDispatch {
		badRequest(c, "too many orders in one batch")
		return
	}

	result := h.courierService.SendOrders(c.Request.Context(), req.OrderIDs)
	resp.OK(c.Writer, result, middleware.GetRequestID(c), "")
}

// UpdateStatus 从 Pathao 拉取运单状态
// POST /api/v1/pathao/update-status {orderId}
func (h *PathaoHandler) UpdateStatus(c *gin.Context) {
	var req sendOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil || strings.TrimSpace(req.OrderID) == "" {
		badRequest(c, "orderId is required")
		return
	}

	order, err := h.courierService.RefreshStatus(c.Request.Context(), req.OrderID)
	if err != nil {
		writeError(c, h.logger, err, "update courier status")
		return
	}
	resp.OK(c.Writer, courierFields{
		OrderID:       order.ID,
		OrderNumber:   order.OrderNumber,
		ConsignmentID: order.PathaoConsignmentID,
		PathaoStatus:  order.PathaoStatus,
		UpdatedAt:     order.PathaoUpdatedAt,
		Status:        string(order.Status),
	}, middleware.GetRequestID(c), "")
}
