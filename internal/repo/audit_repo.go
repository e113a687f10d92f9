package repo

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/MorseWayne/retail_admin/internal/domain"
)

// AuditRepository 只追加的操作记录
type AuditRepository interface {
	Create(ctx context.Context, entry *domain.AuditEntry) error
	List(ctx context.Context, req *domain.AuditListRequest) ([]*domain.AuditEntry, int64, error)
}

type auditRepo struct {
	db *sql.DB
}

// NewAuditRepository 创建审计仓储实例
func NewAuditRepository(db *sql.DB) AuditRepository {
	return &auditRepo{db: db}
}

// Create 写入一条记录
func (r *auditRepo) Create(ctx context.Context, e *domain.AuditEntry) error {
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now().UTC()
	}
	query := `
		INSERT INTO audit_logs (user_id, username, action, resource, resource_id, description, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`
	result, err := r.db.ExecContext(ctx, query,
		e.UserID, e.Username, e.Action, e.Resource, e.ResourceID, e.Description, e.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create audit entry: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}
	e.ID = id
	return nil
}

// List 按时间倒序分页查询
func (r *auditRepo) List(ctx context.Context, req *domain.AuditListRequest) ([]*domain.AuditEntry, int64, error) {
	var conditions []string
	var args []any
	if req.Resource != nil && *req.Resource != "" {
		conditions = append(conditions, "resource = ?")
		args = append(args, *req.Resource)
	}
	if req.UserID != nil {
		conditions = append(conditions, "user_id = ?")
		args = append(args, *req.UserID)
	}
	where := ""
	if len(conditions) > 0 {
		where = "WHERE " + strings.Join(conditions, " AND ")
	}

	var total int64
	if err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM audit_logs "+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count audit entries: %w", err)
	}

	query := `SELECT id, user_id, username, action, resource, resource_id, description, created_at
		FROM audit_logs ` + where + ` ORDER BY id DESC LIMIT ? OFFSET ?`
	args = append(args, req.PageSize, (req.Page-1)*req.PageSize)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to query audit entries: %w", err)
	}
	defer rows.Close()

	entries := []*domain.AuditEntry{}
	for rows.Next() {
		e := &domain.AuditEntry{}
		if err := rows.Scan(&e.ID, &e.UserID, &e.Username, &e.Action, &e.Resource, &e.ResourceID,
			&e.Description, &e.CreatedAt); err != nil {
			return nil, 0, fmt.Errorf("failed to scan audit entry: %w", err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("failed to iterate audit entries: %w", err)
	}
	return entries, total, nil
}
