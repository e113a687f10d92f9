package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/MorseWayne/retail_admin/internal/domain"
	"github.com/MorseWayne/retail_admin/internal/repo"
)

// OrderService 订单聚合：下单扣库存、编辑重算金额、删除回补库存
type OrderService interface {
	CreateOrder(ctx context.Context, req *domain.CreateOrderRequest) (*domain.OrderView, error)
	UpdateOrder(ctx context.Context, id string, req *domain.UpdateOrderRequest) (*domain.OrderView, error)
	DeleteOrder(ctx context.Context, id string) error
	GetOrder(ctx context.Context, id string) (*domain.OrderView, error)
	ListOrders(ctx context.Context, req *domain.OrderListRequest) (*domain.OrderListResponse, error)
}

// OrderServiceOptions 订单服务的可选依赖
type OrderServiceOptions struct {
	// AtomicStock 为 true 时使用条件扣减，失败时回补已扣减的行
	AtomicStock bool
	Audit       AuditService
	Events      OrderEvents
	Logger      *zap.Logger
}

type orderService struct {
	orderRepo    repo.OrderRepository
	productRepo  repo.ProductRepository
	customerRepo repo.CustomerRepository
	customers    CustomerService
	atomicStock  bool
	audit        AuditService
	events       OrderEvents
	logger       *zap.Logger
}

// NewOrderService 创建订单服务实例
func NewOrderService(
	orderRepo repo.OrderRepository,
	productRepo repo.ProductRepository,
	customerRepo repo.CustomerRepository,
	opts OrderServiceOptions,
) OrderService {
	s := &orderService{
		orderRepo:    orderRepo,
		productRepo:  productRepo,
		customerRepo: customerRepo,
		atomicStock:  opts.AtomicStock,
		audit:        opts.Audit,
		events:       opts.Events,
		logger:       opts.Logger,
	}
	if s.audit == nil {
		s.audit = nopAudit{}
	}
	if s.events == nil {
		s.events = NopOrderEvents{}
	}
	if s.logger == nil {
		s.logger = zap.NewNop()
	}
	s.customers = NewCustomerService(customerRepo, s.logger)
	return s
}

// validateCreate 一次性报告全部缺失字段，再校验取值
func validateCreate(req *domain.CreateOrderRequest) error {
	var missing []string
	if req.Customer == nil {
		missing = append(missing, "customer")
	}
	if len(req.Items) == 0 {
		missing = append(missing, "items")
	}
	if req.PaymentMethod == "" {
		missing = append(missing, "paymentMethod")
	}
	if req.DeliveryMethod == "" {
		missing = append(missing, "deliveryMethod")
	}
	if strings.TrimSpace(req.Brand) == "" {
		missing = append(missing, "brand")
	}
	if len(missing) > 0 {
		return domain.MissingFieldsError(missing)
	}

	if !req.PaymentMethod.Valid() {
		return domain.NewValidationError("invalid payment method %q", req.PaymentMethod)
	}
	if !req.DeliveryMethod.Valid() {
		return domain.NewValidationError("invalid delivery method %q", req.DeliveryMethod)
	}
	if req.Status != "" && !req.Status.Valid() {
		return domain.NewValidationError("invalid order status %q", req.Status)
	}
	if req.CourierCharge.IsNegative() || req.PaidAmount.IsNegative() {
		return domain.NewValidationError("courierCharge and paidAmount must not be negative")
	}
	return validateItems(req.Items)
}

func validateItems(items []domain.OrderItemInput) error {
	for i, it := range items {
		if strings.TrimSpace(it.ProductID) == "" {
			return domain.NewValidationError("items[%d]: product is required", i)
		}
		if it.Quantity <= 0 {
			return domain.NewValidationError("items[%d]: quantity must be positive", i)
		}
		if it.Price.IsNegative() {
			return domain.NewValidationError("items[%d]: price must not be negative", i)
		}
	}
	return nil
}

func validateOrderID(id string) error {
	if _, err := uuid.Parse(id); err != nil {
		return domain.NewValidationError("invalid order id %q", id)
	}
	return nil
}

// CreateOrder 下单。默认模式下逐行扣减库存，失败时已扣减的行不回滚；
// AtomicStock 模式下使用条件扣减并在失败时补偿。
func (s *orderService) CreateOrder(ctx context.Context, req *domain.CreateOrderRequest) (*domain.OrderView, error) {
	if err := validateCreate(req); err != nil {
		return nil, err
	}

	customer, err := s.customers.ResolveByPhone(ctx, *req.Customer)
	if err != nil {
		return nil, err
	}

	seq, err := s.nextOrderSeq(ctx)
	if err != nil {
		return nil, err
	}

	items := make([]domain.OrderItem, 0, len(req.Items))
	views := make([]domain.OrderItemView, 0, len(req.Items))
	var applied []domain.OrderItem
	for _, in := range req.Items {
		product, err := s.productRepo.GetByID(ctx, in.ProductID)
		if err != nil {
			s.compensate(ctx, applied)
			return nil, fmt.Errorf("failed to load product %s: %w", in.ProductID, err)
		}
		if product == nil {
			s.compensate(ctx, applied)
			return nil, &domain.NotFoundError{Resource: "product", ID: in.ProductID}
		}

		if err := s.takeStock(ctx, product, in.Quantity); err != nil {
			s.compensate(ctx, applied)
			return nil, err
		}

		price := in.Price
		if price.IsZero() {
			price = product.SellPrice
		}
		item := domain.OrderItem{
			ProductID: product.ID,
			Quantity:  in.Quantity,
			Price:     price,
			Total:     domain.LineTotal(in.Quantity, price),
		}
		items = append(items, item)
		applied = append(applied, item)
		views = append(views, domain.OrderItemView{OrderItem: item, Product: product})
	}

	status := req.Status
	if status == "" {
		status = domain.OrderStatusPending
	}
	order := &domain.Order{
		OrderNumber:    domain.OrderNumberFor(seq),
		CustomerID:     customer.ID,
		Items:          items,
		CourierCharge:  req.CourierCharge,
		PaidAmount:     req.PaidAmount,
		PaymentMethod:  req.PaymentMethod,
		Status:         status,
		DeliveryMethod: req.DeliveryMethod,
		DeliveryPerson: req.DeliveryPerson,
		Brand:          strings.TrimSpace(req.Brand),
		Notes:          req.Notes,
		CreatedBy:      domain.ActorFromContext(ctx).UserID,
	}
	order.ApplyTotals(domain.ComputeCreateTotals(domain.Subtotal(items), req.CourierCharge, req.PaidAmount))

	if err := s.insertOrder(ctx, order, seq); err != nil {
		s.compensate(ctx, applied)
		return nil, fmt.Errorf("failed to create order: %w", err)
	}

	if err := s.customerRepo.RecordOrder(ctx, customer.ID, order.TotalAmount, order.CreatedAt); err != nil {
		s.logger.Warn("failed to update customer totals", zap.String("customer_id", customer.ID), zap.Error(err))
	}

	s.logger.Info("order created",
		zap.String("order_id", order.ID),
		zap.String("order_number", order.OrderNumber),
		zap.String("total", order.TotalAmount.String()),
	)
	s.audit.Record(ctx, domain.AuditCreate, "order", order.ID, "created order "+order.OrderNumber)
	s.events.OrderCreated(ctx, order)
	for _, v := range views {
		if v.Product.IsLowStock() {
			s.events.StockLow(ctx, v.Product)
		}
	}

	return &domain.OrderView{Order: order, Customer: customer, Items: views}, nil
}

// maxOrderNumberAttempts 订单号唯一索引冲突时的最大尝试次数
const maxOrderNumberAttempts = 5

// nextOrderSeq 从订单总数起向后找第一个未被占用的序号。
// 删除过订单时 count+1 可能仍被占用，跳过这些号码。
func (s *orderService) nextOrderSeq(ctx context.Context) (int64, error) {
	seq, err := s.orderRepo.Count(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to count orders: %w", err)
	}
	for {
		taken, err := s.orderRepo.NumberExists(ctx, domain.OrderNumberFor(seq))
		if err != nil {
			return 0, err
		}
		if !taken {
			return seq, nil
		}
		seq++
	}
}

// insertOrder 写入订单，并发下订单号冲突时顺延序号重试，不重复扣减库存
func (s *orderService) insertOrder(ctx context.Context, order *domain.Order, seq int64) error {
	var err error
	for attempt := 1; attempt <= maxOrderNumberAttempts; attempt++ {
		err = s.orderRepo.Create(ctx, order)
		if !errors.Is(err, repo.ErrDuplicate) {
			return err
		}
		s.logger.Warn("order number taken, retrying",
			zap.String("order_number", order.OrderNumber),
			zap.Int("attempt", attempt),
		)
		order.ID = ""
		seq++
		order.OrderNumber = domain.OrderNumberFor(seq)
	}
	return err
}

// takeStock 扣减一行库存并更新 product 快照
func (s *orderService) takeStock(ctx context.Context, product *domain.Product, quantity int) error {
	if !s.atomicStock {
		if err := product.ApplySale(quantity); err != nil {
			return err
		}
		if err := s.productRepo.Update(ctx, product); err != nil {
			return fmt.Errorf("failed to update stock for %s: %w", product.ID, err)
		}
		return nil
	}

	ok, err := s.productRepo.DecrementStock(ctx, product.ID, quantity)
	if err != nil {
		return fmt.Errorf("failed to decrement stock for %s: %w", product.ID, err)
	}
	if !ok {
		return &domain.StockError{ProductID: product.ID, Title: product.Title, Required: quantity, Available: product.Stock}
	}
	product.Stock -= quantity
	product.SalesCount += quantity
	return nil
}

// compensate 在 AtomicStock 模式下回补已扣减的行，默认模式保持原样
func (s *orderService) compensate(ctx context.Context, applied []domain.OrderItem) {
	if !s.atomicStock {
		return
	}
	for _, it := range applied {
		if err := s.productRepo.IncrementStock(ctx, it.ProductID, it.Quantity); err != nil {
			s.logger.Error("failed to compensate stock",
				zap.String("product_id", it.ProductID),
				zap.Int("quantity", it.Quantity),
				zap.Error(err),
			)
		}
	}
}

// UpdateOrder 合并部分字段并按编辑规则重算金额，不回写库存
func (s *orderService) UpdateOrder(ctx context.Context, id string, req *domain.UpdateOrderRequest) (*domain.OrderView, error) {
	if err := validateOrderID(id); err != nil {
		return nil, err
	}
	order, err := s.loadOrder(ctx, id)
	if err != nil {
		return nil, err
	}

	if req.PaymentMethod != nil && !req.PaymentMethod.Valid() {
		return nil, domain.NewValidationError("invalid payment method %q", *req.PaymentMethod)
	}
	if req.DeliveryMethod != nil && !req.DeliveryMethod.Valid() {
		return nil, domain.NewValidationError("invalid delivery method %q", *req.DeliveryMethod)
	}
	if req.Status != nil && !req.Status.Valid() {
		return nil, domain.NewValidationError("invalid order status %q", *req.Status)
	}
	if req.PaymentStatus != nil && !req.PaymentStatus.Valid() {
		return nil, domain.NewValidationError("invalid payment status %q", *req.PaymentStatus)
	}
	if (req.PaidAmount != nil && req.PaidAmount.IsNegative()) || (req.CourierCharge != nil && req.CourierCharge.IsNegative()) {
		return nil, domain.NewValidationError("courierCharge and paidAmount must not be negative")
	}
	if req.Items != nil {
		if len(req.Items) == 0 {
			return nil, domain.NewValidationError("items must not be empty")
		}
		if err := validateItems(req.Items); err != nil {
			return nil, err
		}
	}

	if req.Customer != nil {
		customer, err := s.customers.ResolveByPhone(ctx, *req.Customer)
		if err != nil {
			return nil, err
		}
		order.CustomerID = customer.ID
	}
	if req.Items != nil {
		items := make([]domain.OrderItem, 0, len(req.Items))
		for _, in := range req.Items {
			items = append(items, domain.OrderItem{
				ProductID: in.ProductID,
				Quantity:  in.Quantity,
				Price:     in.Price,
				Total:     domain.LineTotal(in.Quantity, in.Price),
			})
		}
		order.Items = items
	}
	if req.PaymentMethod != nil {
		order.PaymentMethod = *req.PaymentMethod
	}
	if req.DeliveryMethod != nil {
		order.DeliveryMethod = *req.DeliveryMethod
	}
	if req.DeliveryPerson != nil {
		order.DeliveryPerson = req.DeliveryPerson
	}
	if req.Status != nil {
		order.Status = *req.Status
	}
	if req.PaidAmount != nil {
		order.PaidAmount = *req.PaidAmount
	}
	if req.CourierCharge != nil {
		order.CourierCharge = *req.CourierCharge
	}
	if req.Notes != nil {
		order.Notes = *req.Notes
	}

	order.ApplyTotals(domain.ComputeEditTotals(domain.Subtotal(order.Items), order.CourierCharge, order.PaidAmount))
	if req.PaymentStatus != nil {
		order.PaymentStatus = *req.PaymentStatus
	}

	if err := s.orderRepo.Update(ctx, order); err != nil {
		return nil, fmt.Errorf("failed to update order: %w", err)
	}

	s.audit.Record(ctx, domain.AuditUpdate, "order", order.ID, "updated order "+order.OrderNumber)
	s.events.OrderUpdated(ctx, order)
	return s.buildView(ctx, order)
}

// DeleteOrder 删除订单并回补每一行的库存与销量，已删除的商品跳过
func (s *orderService) DeleteOrder(ctx context.Context, id string) error {
	if err := validateOrderID(id); err != nil {
		return err
	}
	order, err := s.loadOrder(ctx, id)
	if err != nil {
		return err
	}

	for _, it := range order.Items {
		if err := s.restoreStock(ctx, it); err != nil {
			return err
		}
	}

	if err := s.orderRepo.Delete(ctx, id); err != nil {
		return fmt.Errorf("failed to delete order: %w", err)
	}

	s.logger.Info("order deleted", zap.String("order_id", id), zap.String("order_number", order.OrderNumber))
	s.audit.Record(ctx, domain.AuditDelete, "order", id, "deleted order "+order.OrderNumber)
	s.events.OrderDeleted(ctx, order)
	return nil
}

func (s *orderService) restoreStock(ctx context.Context, it domain.OrderItem) error {
	product, err := s.productRepo.GetByID(ctx, it.ProductID)
	if err != nil {
		return fmt.Errorf("failed to load product %s: %w", it.ProductID, err)
	}
	if product == nil {
		s.logger.Warn("skip stock restore for missing product", zap.String("product_id", it.ProductID))
		return nil
	}

	if s.atomicStock {
		if err := s.productRepo.IncrementStock(ctx, product.ID, it.Quantity); err != nil {
			return fmt.Errorf("failed to restore stock for %s: %w", product.ID, err)
		}
		return nil
	}
	product.RestoreSale(it.Quantity)
	if err := s.productRepo.Update(ctx, product); err != nil {
		return fmt.Errorf("failed to restore stock for %s: %w", product.ID, err)
	}
	return nil
}

// GetOrder 获取订单详情
func (s *orderService) GetOrder(ctx context.Context, id string) (*domain.OrderView, error) {
	if err := validateOrderID(id); err != nil {
		return nil, err
	}
	order, err := s.loadOrder(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.buildView(ctx, order)
}

// ListOrders 分页查询订单
func (s *orderService) ListOrders(ctx context.Context, req *domain.OrderListRequest) (*domain.OrderListResponse, error) {
	req.Page, req.PageSize = normalizePage(req.Page, req.PageSize)

	orders, total, err := s.orderRepo.List(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("failed to list orders: %w", err)
	}

	views := make([]*domain.OrderView, 0, len(orders))
	for _, o := range orders {
		v, err := s.buildView(ctx, o)
		if err != nil {
			return nil, err
		}
		views = append(views, v)
	}
	return &domain.OrderListResponse{
		Orders:   views,
		Total:    total,
		Page:     req.Page,
		PageSize: req.PageSize,
	}, nil
}

func (s *orderService) loadOrder(ctx context.Context, id string) (*domain.Order, error) {
	order, err := s.orderRepo.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get order: %w", err)
	}
	if order == nil {
		return nil, &domain.NotFoundError{Resource: "order", ID: id}
	}
	return order, nil
}

// buildView 解析客户与商品引用，已删除的实体保留为 nil
func (s *orderService) buildView(ctx context.Context, order *domain.Order) (*domain.OrderView, error) {
	customer, err := s.customerRepo.GetByID(ctx, order.CustomerID)
	if err != nil {
		return nil, fmt.Errorf("failed to load customer %s: %w", order.CustomerID, err)
	}

	products := make(map[string]*domain.Product, len(order.Items))
	items := make([]domain.OrderItemView, 0, len(order.Items))
	for _, it := range order.Items {
		p, seen := products[it.ProductID]
		if !seen {
			p, err = s.productRepo.GetByID(ctx, it.ProductID)
			if err != nil {
				return nil, fmt.Errorf("failed to load product %s: %w", it.ProductID, err)
			}
			products[it.ProductID] = p
		}
		items = append(items, domain.OrderItemView{OrderItem: it, Product: p})
	}
	return &domain.OrderView{Order: order, Customer: customer, Items: items}, nil
}
