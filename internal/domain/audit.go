package domain

import (
	"context"
	"time"
)

// AuditAction 审计动作
type AuditAction string

const (
	AuditCreate   AuditAction = "create"
	AuditUpdate   AuditAction = "update"
	AuditDelete   AuditAction = "delete"
	AuditImport   AuditAction = "import"
	AuditDispatch AuditAction = "dispatch"
	AuditLogin    AuditAction = "login"
)

// Actor 为执行操作的后台用户，未认证时为零值
type Actor struct {
	UserID   int64
	Username string
}

type actorKey struct{}

// ContextWithActor 将当前操作人写入上下文
func ContextWithActor(ctx context.Context, a Actor) context.Context {
	return context.WithValue(ctx, actorKey{}, a)
}

// ActorFromContext 读取当前操作人，不存在时返回零值
func ActorFromContext(ctx context.Context) Actor {
	a, _ := ctx.Value(actorKey{}).(Actor)
	return a
}

// AuditEntry 为只追加的操作记录
type AuditEntry struct {
	ID          int64       `json:"id"`
	UserID      int64       `json:"userId"`
	Username    string      `json:"username"`
	Action      AuditAction `json:"action"`
	Resource    string      `json:"resource"`
	ResourceID  string      `json:"resourceId"`
	Description string      `json:"description"`
	CreatedAt   time.Time   `json:"createdAt"`
}

// AuditListRequest 审计记录查询请求
type AuditListRequest struct {
	Page     int     `json:"page"`
	PageSize int     `json:"page_size"`
	Resource *string `json:"resource"`
	UserID   *int64  `json:"user_id"`
}

// AuditListResponse 审计记录查询响应
type AuditListResponse struct {
	Entries  []*AuditEntry `json:"entries"`
	Total    int64         `json:"total"`
	Page     int           `json:"page"`
	PageSize int           `json:"page_size"`
}
