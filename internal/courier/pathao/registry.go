package pathao

import (
	"context"
	"sort"

	"github.com/MorseWayne/retail_admin/internal/domain"
)

// Dispatcher 单个品牌的运单能力，*Client 实现该接口
type Dispatcher interface {
	Brand() string
	CreateOrder(ctx context.Context, s Shipment) (*CreateOrderResult, error)
	OrderStatus(ctx context.Context, consignmentID string) (*OrderInfo, error)
}

// Registry 按品牌查找客户端
type Registry struct {
	clients map[string]Dispatcher
}

// NewRegistry 创建注册表，跳过未配置 client id 的品牌
func NewRegistry(creds []Credentials, opts ...Option) *Registry {
	r := &Registry{clients: make(map[string]Dispatcher, len(creds))}
	for _, c := range creds {
		if c.ClientID == "" {
			continue
		}
		r.clients[c.Brand] = NewClient(c, opts...)
	}
	return r
}

// Register 注册客户端，同名品牌覆盖
func (r *Registry) Register(d Dispatcher) {
	r.clients[d.Brand()] = d
}

// Client 返回品牌对应的客户端
func (r *Registry) Client(brand string) (Dispatcher, error) {
	c, ok := r.clients[brand]
	if !ok {
		return nil, domain.NewValidationError("pathao is not configured for brand %q", brand)
	}
	return c, nil
}

// Brands 返回已配置的品牌
func (r *Registry) Brands() []string {
	out := make([]string, 0, len(r.clients))
	for b := range r.clients {
		out = append(out, b)
	}
	sort.Strings(out)
	return out
}
