package api

import (
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/MorseWayne/retail_admin/internal/domain"
	"github.com/MorseWayne/retail_admin/internal/middleware"
	"github.com/MorseWayne/retail_admin/internal/resp"
	"github.com/MorseWayne/retail_admin/internal/service"
)

// AuditHandler 操作历史接口
type AuditHandler struct {
	auditService service.AuditService
	logger       *zap.Logger
}

func NewAuditHandler(auditService service.AuditService, logger *zap.Logger) *AuditHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AuditHandler{auditService: auditService, logger: logger}
}

// ListAuditLogs GET /api/v1/audit-logs?page=&page_size=&resource=&user_id=
func (h *AuditHandler) ListAuditLogs(c *gin.Context) {
	req := &domain.AuditListRequest{
		Page:     queryInt(c, "page", 1),
		PageSize: queryInt(c, "page_size", 0),
		Resource: queryString(c, "resource"),
	}
	if v := c.Query("user_id"); v != "" {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			badRequest(c, "invalid user_id")
			return
		}
		req.UserID = &id
	}

	list, err := h.auditService.List(c.Request.Context(), req)
	if err != nil {
		writeError(c, h.logger, err, "list audit logs")
		return
	}
	resp.OK(c.Writer, list, middleware.GetRequestID(c), "")
}
