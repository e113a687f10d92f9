package service

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/MorseWayne/retail_admin/internal/domain"
	"github.com/MorseWayne/retail_admin/internal/repo"
)

// AuditService 记录后台操作
type AuditService interface {
	// Record 写入审计记录，失败只记日志
	Record(ctx context.Context, action domain.AuditAction, resource, resourceID, description string)
	List(ctx context.Context, req *domain.AuditListRequest) (*domain.AuditListResponse, error)
}

type auditService struct {
	auditRepo repo.AuditRepository
	logger    *zap.Logger
}

// NewAuditService 创建审计服务实例
func NewAuditService(auditRepo repo.AuditRepository, logger *zap.Logger) AuditService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &auditService{auditRepo: auditRepo, logger: logger}
}

func (s *auditService) Record(ctx context.Context, action domain.AuditAction, resource, resourceID, description string) {
	actor := domain.ActorFromContext(ctx)
	entry := &domain.AuditEntry{
		UserID:      actor.UserID,
		Username:    actor.Username,
		Action:      action,
		Resource:    resource,
		ResourceID:  resourceID,
		Description: description,
	}
	if err := s.auditRepo.Create(ctx, entry); err != nil {
		s.logger.Warn("failed to record audit entry",
			zap.String("action", string(action)),
			zap.String("resource", resource),
			zap.String("resource_id", resourceID),
			zap.Error(err),
		)
	}
}

func (s *auditService) List(ctx context.Context, req *domain.AuditListRequest) (*domain.AuditListResponse, error) {
	req.Page, req.PageSize = normalizePage(req.Page, req.PageSize)

	entries, total, err := s.auditRepo.List(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("failed to list audit entries: %w", err)
	}
	return &domain.AuditListResponse{
		Entries:  entries,
		Total:    total,
		Page:     req.Page,
		PageSize: req.PageSize,
	}, nil
}

// nopAudit 在未注入审计服务时使用
type nopAudit struct{}

func (nopAudit) Record(context.Context, domain.AuditAction, string, string, string) {}

func (nopAudit) List(_ context.Context, req *domain.AuditListRequest) (*domain.AuditListResponse, error) {
	return &domain.AuditListResponse{Entries: []*domain.AuditEntry{}, Page: req.Page, PageSize: req.PageSize}, nil
}
