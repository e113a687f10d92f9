package service

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/MorseWayne/retail_admin/internal/courier/pathao"
	"github.com/MorseWayne/retail_admin/internal/domain"
	"github.com/MorseWayne/retail_admin/internal/repo"
)

// CourierRegistry 按品牌返回快递客户端
type CourierRegistry interface {
	Client(brand string) (pathao.Dispatcher, error)
}

// DispatchOutcome 批量发货中单个订单的结果
type DispatchOutcome struct {
	OrderID       string `json:"orderId"`
	OrderNumber   string `json:"orderNumber,omitempty"`
	Success       bool   `json:"success"`
	ConsignmentID string `json:"consignmentId,omitempty"`
	Error         string `json:"error,omitempty"`
}

// BatchDispatchResult 批量发货汇总
type BatchDispatchResult struct {
	Total     int               `json:"total"`
	Succeeded int               `json:"succeeded"`
	Failed    int               `json:"failed"`
	Results   []DispatchOutcome `json:"results"`
}

// CourierService 将订单交给 Pathao 并同步运单状态
type CourierService interface {
	SendOrder(ctx context.Context, orderID string) (*domain.Order, error)
	// SendOrders 逐个发货，单个失败不影响其他订单
	SendOrders(ctx context.Context, orderIDs []string) *BatchDispatchResult
	RefreshStatus(ctx context.Context, orderID string) (*domain.Order, error)
}

type courierService struct {
	orderRepo    repo.OrderRepository
	productRepo  repo.ProductRepository
	customerRepo repo.CustomerRepository
	couriers     CourierRegistry
	audit        AuditService
	events       OrderEvents
	logger       *zap.Logger
	now          func() time.Time
}

// NewCourierService 创建快递服务实例
func NewCourierService(
	orderRepo repo.OrderRepository,
	productRepo repo.ProductRepository,
	customerRepo repo.CustomerRepository,
	couriers CourierRegistry,
	audit AuditService,
	events OrderEvents,
	logger *zap.Logger,
) CourierService {
	if audit == nil {
		audit = nopAudit{}
	}
	if events == nil {
		events = NopOrderEvents{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &courierService{
		orderRepo:    orderRepo,
		productRepo:  productRepo,
		customerRepo: customerRepo,
		couriers:     couriers,
		audit:        audit,
		events:       events,
		logger:       logger,
		now:          time.Now,
	}
}

func (s *courierService) loadOrder(ctx context.Context, orderID string) (*domain.Order, error) {
	if err := validateOrderID(orderID); err != nil {
		return nil, err
	}
	order, err := s.orderRepo.GetByID(ctx, orderID)
	if err != nil {
		return nil, fmt.Errorf("failed to get order: %w", err)
	}
	if order == nil {
		return nil, &domain.NotFoundError{Resource: "order", ID: orderID}
	}
	return order, nil
}

// SendOrder 创建运单并回写运单号，待处理订单转为处理中
func (s *courierService) SendOrder(ctx context.Context, orderID string) (*domain.Order, error) {
	order, err := s.loadOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if order.IsDispatched() {
		return nil, domain.NewValidationError("order %s already sent to pathao: %s", order.OrderNumber, order.PathaoConsignmentID)
	}
	if order.DeliveryMethod != domain.DeliveryPathao {
		return nil, domain.NewValidationError("order %s is not a pathao delivery", order.OrderNumber)
	}

	client, err := s.couriers.Client(order.Brand)
	if err != nil {
		return nil, err
	}

	shipment, err := s.snapshot(ctx, order)
	if err != nil {
		return nil, err
	}

	res, err := client.CreateOrder(ctx, *shipment)
	if err != nil {
		s.logger.Warn("pathao create order failed",
			zap.String("order_number", order.OrderNumber),
			zap.String("brand", order.Brand),
			zap.Error(err),
		)
		return nil, err
	}

	now := s.now().UTC()
	order.PathaoConsignmentID = res.ConsignmentID
	order.PathaoStatus = res.OrderStatus
	order.PathaoUpdatedAt = &now
	if order.Status == domain.OrderStatusPending {
		order.Status = domain.OrderStatusProcessing
	}
	if err := s.orderRepo.UpdateCourier(ctx, order); err != nil {
		// 运单已在上游创建，记录以便人工补录
		s.logger.Error("failed to save consignment",
			zap.String("order_number", order.OrderNumber),
			zap.String("consignment_id", res.ConsignmentID),
			zap.Error(err),
		)
		return nil, fmt.Errorf("failed to save consignment %s: %w", res.ConsignmentID, err)
	}

	s.logger.Info("order sent to pathao",
		zap.String("order_number", order.OrderNumber),
		zap.String("consignment_id", res.ConsignmentID),
	)
	s.audit.Record(ctx, domain.AuditDispatch, "order", order.ID,
		fmt.Sprintf("sent order %s to pathao (%s)", order.OrderNumber, res.ConsignmentID))
	s.events.OrderDispatched(ctx, order)
	return order, nil
}

// snapshot 组装下单快照，已删除的商品以 ID 代替标题
func (s *courierService) snapshot(ctx context.Context, order *domain.Order) (*pathao.Shipment, error) {
	customer, err := s.customerRepo.GetByID(ctx, order.CustomerID)
	if err != nil {
		return nil, fmt.Errorf("failed to load customer: %w", err)
	}
	if customer == nil {
		return nil, &domain.NotFoundError{Resource: "customer", ID: order.CustomerID}
	}

	items := make([]pathao.ShipmentItem, 0, len(order.Items))
	for _, it := range order.Items {
		title := it.ProductID
		p, err := s.productRepo.GetByID(ctx, it.ProductID)
		if err != nil {
			return nil, fmt.Errorf("failed to load product %s: %w", it.ProductID, err)
		}
		if p != nil {
			title = p.Title
		}
		items = append(items, pathao.ShipmentItem{Title: title, Quantity: it.Quantity})
	}

	return &pathao.Shipment{
		OrderNumber:    order.OrderNumber,
		RecipientName:  customer.Name,
		RecipientPhone: customer.Phone,
		Address:        customer.Address,
		Items:          items,
		TotalAmount:    order.TotalAmount,
		DueAmount:      order.DueAmount,
		Notes:          order.Notes,
	}, nil
}

func (s *courierService) SendOrders(ctx context.Context, orderIDs []string) *BatchDispatchResult {
	result := &BatchDispatchResult{Total: len(orderIDs), Results: make([]DispatchOutcome, 0, len(orderIDs))}
	for _, id := range orderIDs {
		out := DispatchOutcome{OrderID: id}
		order, err := s.SendOrder(ctx, id)
		if err != nil {
			out.Error = err.Error()
			result.Failed++
		} else {
			out.Success = true
			out.OrderNumber = order.OrderNumber
			out.ConsignmentID = order.PathaoConsignmentID
			result.Succeeded++
		}
		result.Results = append(result.Results, out)
	}

	s.logger.Info("batch dispatch finished",
		zap.Int("total", result.Total),
		zap.Int("succeeded", result.Succeeded),
		zap.Int("failed", result.Failed),
	)
	return result
}

// RefreshStatus 拉取运单状态并原样写回
func (s *courierService) RefreshStatus(ctx context.Context, orderID string) (*domain.Order, error) {
	order, err := s.loadOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if !order.IsDispatched() {
		return nil, domain.NewValidationError("order %s has not been sent to pathao", order.OrderNumber)
	}

	client, err := s.couriers.Client(order.Brand)
	if err != nil {
		return nil, err
	}
	info, err := client.OrderStatus(ctx, order.PathaoConsignmentID)
	if err != nil {
		return nil, err
	}

	now := s.now().UTC()
	order.PathaoStatus = info.OrderStatus
	order.PathaoUpdatedAt = &now
	if err := s.orderRepo.UpdateCourier(ctx, order); err != nil {
		return nil, fmt.Errorf("failed to save pathao status: %w", err)
	}
	return order, nil
}
