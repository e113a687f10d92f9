package api

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/MorseWayne/retail_admin/internal/domain"
	"github.com/MorseWayne/retail_admin/internal/middleware"
	"github.com/MorseWayne/retail_admin/internal/resp"
	"github.com/MorseWayne/retail_admin/internal/service"
)

// CustomerHandler 客户目录接口，客户只在下单时按手机号创建
type CustomerHandler struct {
	customerService service.CustomerService
	logger          *zap.Logger
}

func NewCustomerHandler(customerService service.CustomerService, logger *zap.Logger) *CustomerHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CustomerHandler{customerService: customerService, logger: logger}
}

// ListCustomers GET /api/v1/customers?page=&page_size=&keyword=
func (h *CustomerHandler) ListCustomers(c *gin.Context) {
	list, err := h.customerService.ListCustomers(c.Request.Context(), &domain.CustomerListRequest{
		Page:     queryInt(c, "page", 1),
		PageSize: queryInt(c, "page_size", 0),
		Keyword:  queryString(c, "keyword"),
	})
	if err != nil {
		writeError(c, h.logger, err, "list customers")
		return
	}
	resp.OK(c.Writer, list, middleware.GetRequestID(c), "")
}

// GetCustomer GET /api/v1/customers/:id
func (h *CustomerHandler) GetCustomer(c *gin.Context) {
	customer, err := h.customerService.GetCustomer(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, h.logger, err, "get customer")
		return
	}
	resp.OK(c.Writer, customer, middleware.GetRequestID(c), "")
}
