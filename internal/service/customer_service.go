package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/MorseWayne/retail_admin/internal/domain"
	"github.com/MorseWayne/retail_admin/internal/repo"
)

// CustomerService 客户目录
type CustomerService interface {
	// ResolveByPhone 按手机号查找客户，不存在时创建。已存在的客户不会被覆盖。
	ResolveByPhone(ctx context.Context, in domain.CustomerInput) (*domain.Customer, error)
	GetCustomer(ctx context.Context, id string) (*domain.Customer, error)
	ListCustomers(ctx context.Context, req *domain.CustomerListRequest) (*domain.CustomerListResponse, error)
}

type customerService struct {
	customerRepo repo.CustomerRepository
	logger       *zap.Logger
}

// NewCustomerService 创建客户服务实例
func NewCustomerService(customerRepo repo.CustomerRepository, logger *zap.Logger) CustomerService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &customerService{customerRepo: customerRepo, logger: logger}
}

func (s *customerService) ResolveByPhone(ctx context.Context, in domain.CustomerInput) (*domain.Customer, error) {
	phone := strings.TrimSpace(in.Phone)
	if phone == "" {
		return nil, domain.NewValidationError("customer phone is required")
	}

	existing, err := s.customerRepo.GetByPhone(ctx, phone)
	if err != nil {
		return nil, fmt.Errorf("failed to look up customer: %w", err)
	}
	if existing != nil {
		return existing, nil
	}

	name := strings.TrimSpace(in.Name)
	if name == "" {
		return nil, domain.NewValidationError("customer name is required for a new customer")
	}

	customer := &domain.Customer{
		Name:    name,
		Phone:   phone,
		Email:   strings.TrimSpace(in.Email),
		Address: in.Address,
	}
	if err := s.customerRepo.Create(ctx, customer); err != nil {
		if !errors.Is(err, repo.ErrDuplicate) {
			return nil, fmt.Errorf("failed to create customer: %w", err)
		}
		// 并发下单时另一请求已创建同号客户
		existing, err := s.customerRepo.GetByPhone(ctx, phone)
		if err != nil {
			return nil, fmt.Errorf("failed to reload customer %s: %w", phone, err)
		}
		if existing == nil {
			return nil, &domain.NotFoundError{Resource: "customer", ID: phone}
		}
		return existing, nil
	}

	s.logger.Info("customer created", zap.String("customer_id", customer.ID), zap.String("phone", phone))
	return customer, nil
}

func (s *customerService) GetCustomer(ctx context.Context, id string) (*domain.Customer, error) {
	customer, err := s.customerRepo.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get customer: %w", err)
	}
	if customer == nil {
		return nil, &domain.NotFoundError{Resource: "customer", ID: id}
	}
	return customer, nil
}

func (s *customerService) ListCustomers(ctx context.Context, req *domain.CustomerListRequest) (*domain.CustomerListResponse, error) {
	req.Page, req.PageSize = normalizePage(req.Page, req.PageSize)

	customers, total, err := s.customerRepo.List(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("failed to list customers: %w", err)
	}
	return &domain.CustomerListResponse{
		Customers: customers,
		Total:     total,
		Page:      req.Page,
		PageSize:  req.PageSize,
	}, nil
}
