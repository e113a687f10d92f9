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

const defaultLowStockLimit = 50

// ProductHandler 商品相关的HTTP处理器
type ProductHandler struct {
	productService service.ProductService
	importService  service.ImportService
	logger         *zap.Logger
}

// NewProductHandler 创建商品处理器实例
func NewProductHandler(productService service.ProductService, importService service.ImportService, logger *zap.Logger) *ProductHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ProductHandler{
		productService: productService,
		importService:  importService,
		logger:         logger,
	}
}

// CreateProduct 创建商品
// POST /api/v1/products
func (h *ProductHandler) CreateProduct(c *gin.Context) {
	var req domain.CreateProductRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request body")
		return
	}

	product, err := h.productService.CreateProduct(c.Request.Context(), &req)
	if err != nil {
		writeError(c, h.logger, err, "create product")
		return
	}
	resp.Created(c.Writer, product, middleware.GetRequestID(c), "")
}

// GetProduct 获取商品详情
// GET /api/v1/products/:id
func (h *ProductHandler) GetProduct(c *gin.Context) {
	product, err := h.productService.GetProduct(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, h.logger, err, "get product")
		return
	}
	resp.OK(c.Writer, product, middleware.GetRequestID(c), "")
}

// UpdateProduct 更新商品
// PUT /api/v1/products/:id
func (h *ProductHandler) UpdateProduct(c *gin.Context) {
	var req domain.UpdateProductRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request body")
		return
	}

	product, err := h.productService.UpdateProduct(c.Request.Context(), c.Param("id"), &req)
	if err != nil {
		writeError(c, h.logger, err, "update product")
		return
	}
	resp.OK(c.Writer, product, middleware.GetRequestID(c), "")
}

// DeleteProduct 下架商品
// DELETE /api/v1/products/:id
func (h *ProductHandler) DeleteProduct(c *gin.Context) {
	if err := h.productService.DeleteProduct(c.Request.Context(), c.Param("id")); err != nil {
		writeError(c, h.logger, err, "delete product")
		return
	}
	resp.WriteJSON(c.Writer, http.StatusOK, resp.CodeOK, "product deleted", nil, middleware.GetRequestID(c), "")
}

// ListProducts 商品列表
// GET /api/v1/products?page=&page_size=&brand=&category=&keyword=&low_stock=&inactive=&sort_by=&sort_order=
func (h *ProductHandler) ListProducts(c *gin.Context) {
	req := &domain.ProductListRequest{
		Page:      queryInt(c, "page", 1),
		PageSize:  queryInt(c, "page_size", 0),
		Brand:     queryString(c, "brand"),
		Category:  queryString(c, "category"),
		Keyword:   queryString(c, "keyword"),
		LowStock:  queryBool(c, "low_stock"),
		Inactive:  queryBool(c, "inactive"),
		SortBy:    queryString(c, "sort_by"),
		SortOrder: queryString(c, "sort_order"),
	}

	list, err := h.productService.ListProducts(c.Request.Context(), req)
	if err != nil {
		writeError(c, h.logger, err, "list products")
		return
	}
	resp.OK(c.Writer, list, middleware.GetRequestID(c), "")
}

// LowStockAlerts 低库存商品
// GET /api/v1/products/alerts/low-stock?limit=
func (h *ProductHandler) LowStockAlerts(c *gin.Context) {
	products, err := h.productService.LowStockAlerts(c.Request.Context(), queryInt(c, "limit", defaultLowStockLimit))
	if err != nil {
		writeError(c, h.logger, err, "low stock alerts")
		return
	}
	resp.OK(c.Writer, products, middleware.GetRequestID(c), "")
}

// BulkImport 批量导入商品
// POST /api/v1/products/bulk?mode=partial|failfast&skuPrefix=SKU-
// 全部成功 201，部分成功 207，全部失败或 failfast 放弃 400，均携带逐条结果
func (h *ProductHandler) BulkImport(c *gin.Context) {
	reqID := middleware.GetRequestID(c)

	mode, err := domain.ParseImportMode(c.Query("mode"))
	if err != nil {
		writeError(c, h.logger, err, "bulk import")
		return
	}

	var req domain.BulkImportRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request body")
		return
	}

	result, err := h.importService.Import(c.Request.Context(), req.Products, mode, c.Query("skuPrefix"))
	if err != nil {
		writeError(c, h.logger, err, "bulk import")
		return
	}

	switch result.Outcome() {
	case domain.OutcomeAll:
		resp.WriteJSON(c.Writer, http.StatusCreated, resp.CodeOK, "all products imported", result, reqID, "")
	case domain.OutcomeSome:
		resp.WriteJSON(c.Writer, http.StatusMultiStatus, resp.CodeOK, "some products imported", result, reqID, "")
	default:
		resp.ErrorWith(c.Writer, http.StatusBadRequest, resp.CodeInvalidParam, "no products imported",
			resp.ErrorBody{Details: result}, reqID, "")
	}
}
