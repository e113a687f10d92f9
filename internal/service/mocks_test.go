package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/MorseWayne/retail_admin/internal/courier/pathao"
	"github.com/MorseWayne/retail_admin/internal/domain"
	"github.com/MorseWayne/retail_admin/internal/repo"
)

// mockProductRepository 用于测试的商品仓储，读写均复制，模拟数据库行为
type mockProductRepository struct {
	products map[string]*domain.Product
	skuMap   map[string]string // sku -> id
	updates  int
	failOn   map[string]error // id -> Update 返回的错误
}

func newMockProductRepository() *mockProductRepository {
	return &mockProductRepository{
		products: make(map[string]*domain.Product),
		skuMap:   make(map[string]string),
		failOn:   make(map[string]error),
	}
}

func cloneProduct(p *domain.Product) *domain.Product {
	c := *p
	return &c
}

// seed 直接写入一条商品
func (m *mockProductRepository) seed(p *domain.Product) *domain.Product {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	m.products[p.ID] = cloneProduct(p)
	m.skuMap[p.SKU] = p.ID
	return p
}

func (m *mockProductRepository) Create(_ context.Context, product *domain.Product) error {
	if _, exists := m.skuMap[product.SKU]; exists {
		return &domain.ConflictError{Message: "sku already exists", SKU: product.SKU}
	}
	if product.ID == "" {
		product.ID = uuid.NewString()
	}
	product.CreatedAt = time.Now()
	product.UpdatedAt = product.CreatedAt
	m.seed(product)
	return nil
}

func (m *mockProductRepository) GetByID(_ context.Context, id string) (*domain.Product, error) {
	p, ok := m.products[id]
	if !ok {
		return nil, nil
	}
	return cloneProduct(p), nil
}

func (m *mockProductRepository) GetBySKU(_ context.Context, sku string) (*domain.Product, error) {
	id, ok := m.skuMap[sku]
	if !ok {
		return nil, nil
	}
	return cloneProduct(m.products[id]), nil
}

func (m *mockProductRepository) Update(_ context.Context, product *domain.Product) error {
	if err := m.failOn[product.ID]; err != nil {
		return err
	}
	if _, ok := m.products[product.ID]; !ok {
		return fmt.Errorf("product %s not found", product.ID)
	}
	m.updates++
	m.products[product.ID] = cloneProduct(product)
	return nil
}

func (m *mockProductRepository) SoftDelete(_ context.Context, id string) error {
	p, ok := m.products[id]
	if !ok {
		return fmt.Errorf("product %s not found", id)
	}
	p.IsActive = false
	return nil
}

func (m *mockProductRepository) List(_ context.Context, req *domain.ProductListRequest) ([]*domain.Product, int64, error) {
	var all []*domain.Product
	for _, p := range m.products {
		if !req.Inactive && !p.IsActive {
			continue
		}
		if req.Brand != nil && p.Brand != *req.Brand {
			continue
		}
		all = append(all, cloneProduct(p))
	}
	sort.Slice(all, func(i, j int) bool { return all[i].SKU < all[j].SKU })

	total := int64(len(all))
	start := (req.Page - 1) * req.PageSize
	if start >= len(all) {
		return []*domain.Product{}, total, nil
	}
	end := start + req.PageSize
	if end > len(all) {
		end = len(all)
	}
	return all[start:end], total, nil
}

func (m *mockProductRepository) LowStock(_ context.Context, limit int) ([]*domain.Product, error) {
	var out []*domain.Product
	for _, p := range m.products {
		if p.IsActive && p.IsLowStock() && len(out) < limit {
			out = append(out, cloneProduct(p))
		}
	}
	return out, nil
}

func (m *mockProductRepository) FindSKUs(_ context.Context, skus []string) ([]string, error) {
	var out []string
	for _, s := range skus {
		if _, ok := m.skuMap[s]; ok {
			out = append(out, s)
		}
	}
	return out, nil
}

func (m *mockProductRepository) ListSKUsWithPrefix(_ context.Context, prefix string) ([]string, error) {
	var out []string
	for s := range m.skuMap {
		if strings.HasPrefix(s, prefix) {
			out = append(out, s)
		}
	}
	return out, nil
}

func (m *mockProductRepository) BulkCreate(ctx context.Context, products []*domain.Product) error {
	for _, p := range products {
		if _, exists := m.skuMap[p.SKU]; exists {
			return &domain.ConflictError{Message: "sku already exists"}
		}
	}
	for _, p := range products {
		if err := m.Create(ctx, p); err != nil {
			return err
		}
	}
	return nil
}

func (m *mockProductRepository) DecrementStock(_ context.Context, id string, quantity int) (bool, error) {
	p, ok := m.products[id]
	if !ok || p.Stock < quantity {
		return false, nil
	}
	p.Stock -= quantity
	p.SalesCount += quantity
	return true, nil
}

func (m *mockProductRepository) IncrementStock(_ context.Context, id string, quantity int) error {
	p, ok := m.products[id]
	if !ok {
		return nil
	}
	p.Stock += quantity
	p.SalesCount -= quantity
	return nil
}

// mockCustomerRepository 用于测试的客户仓储
type mockCustomerRepository struct {
	customers map[string]*domain.Customer
	byPhone   map[string]string
}

func newMockCustomerRepository() *mockCustomerRepository {
	return &mockCustomerRepository{
		customers: make(map[string]*domain.Customer),
		byPhone:   make(map[string]string),
	}
}

func (m *mockCustomerRepository) Create(_ context.Context, c *domain.Customer) error {
	if _, exists := m.byPhone[c.Phone]; exists {
		return fmt.Errorf("customer phone %s: %w", c.Phone, repo.ErrDuplicate)
	}
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	cp := *c
	m.customers[c.ID] = &cp
	m.byPhone[c.Phone] = c.ID
	return nil
}

func (m *mockCustomerRepository) GetByID(_ context.Context, id string) (*domain.Customer, error) {
	c, ok := m.customers[id]
	if !ok {
		return nil, nil
	}
	cp := *c
	return &cp, nil
}

func (m *mockCustomerRepository) GetByPhone(ctx context.Context, phone string) (*domain.Customer, error) {
	id, ok := m.byPhone[phone]
	if !ok {
		return nil, nil
	}
	return m.GetByID(ctx, id)
}

func (m *mockCustomerRepository) Update(_ context.Context, c *domain.Customer) error {
	cp := *c
	m.customers[c.ID] = &cp
	return nil
}

func (m *mockCustomerRepository) RecordOrder(_ context.Context, id string, amount decimal.Decimal, at time.Time) error {
	c, ok := m.customers[id]
	if !ok {
		return fmt.Errorf("customer %s not found", id)
	}
	c.TotalOrders++
	c.TotalSpent = c.TotalSpent.Add(amount)
	c.LastOrder = &at
	return nil
}

func (m *mockCustomerRepository) List(_ context.Context, req *domain.CustomerListRequest) ([]*domain.Customer, int64, error) {
	var out []*domain.Customer
	for _, c := range m.customers {
		cp := *c
		out = append(out, &cp)
	}
	return out, int64(len(out)), nil
}

// mockOrderRepository 用于测试的订单仓储
type mockOrderRepository struct {
	orders    map[string]*domain.Order
	count     int64
	createErr error
}

func newMockOrderRepository() *mockOrderRepository {
	return &mockOrderRepository{orders: make(map[string]*domain.Order)}
}

func cloneOrder(o *domain.Order) *domain.Order {
	c := *o
	c.Items = append([]domain.OrderItem(nil), o.Items...)
	return &c
}

func (m *mockOrderRepository) Count(context.Context) (int64, error) {
	return m.count, nil
}

func (m *mockOrderRepository) NumberExists(_ context.Context, number string) (bool, error) {
	for _, o := range m.orders {
		if o.OrderNumber == number {
			return true, nil
		}
	}
	return false, nil
}

// Create 与 uk_orders_order_number 一样拒绝重复订单号
func (m *mockOrderRepository) Create(ctx context.Context, o *domain.Order) error {
	if m.createErr != nil {
		return m.createErr
	}
	if taken, _ := m.NumberExists(ctx, o.OrderNumber); taken {
		return fmt.Errorf("order number %s: %w", o.OrderNumber, repo.ErrDuplicate)
	}
	if o.ID == "" {
		o.ID = uuid.NewString()
	}
	o.CreatedAt = time.Now()
	o.UpdatedAt = o.CreatedAt
	m.orders[o.ID] = cloneOrder(o)
	m.count++
	return nil
}

func (m *mockOrderRepository) GetByID(_ context.Context, id string) (*domain.Order, error) {
	o, ok := m.orders[id]
	if !ok {
		return nil, nil
	}
	return cloneOrder(o), nil
}

func (m *mockOrderRepository) Update(_ context.Context, o *domain.Order) error {
	if _, ok := m.orders[o.ID]; !ok {
		return fmt.Errorf("order %s not found", o.ID)
	}
	m.orders[o.ID] = cloneOrder(o)
	return nil
}

func (m *mockOrderRepository) UpdateCourier(ctx context.Context, o *domain.Order) error {
	return m.Update(ctx, o)
}

func (m *mockOrderRepository) Delete(_ context.Context, id string) error {
	if _, ok := m.orders[id]; !ok {
		return fmt.Errorf("order %s not found", id)
	}
	delete(m.orders, id)
	m.count--
	return nil
}

func (m *mockOrderRepository) List(_ context.Context, req *domain.OrderListRequest) ([]*domain.Order, int64, error) {
	var out []*domain.Order
	for _, o := range m.orders {
		if req.Status != nil && o.Status != *req.Status {
			continue
		}
		out = append(out, cloneOrder(o))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].OrderNumber < out[j].OrderNumber })
	return out, int64(len(out)), nil
}

// mockAuditRepository 记录写入的审计条目
type mockAuditRepository struct {
	mu      sync.Mutex
	entries []*domain.AuditEntry
	err     error
}

func (m *mockAuditRepository) Create(_ context.Context, e *domain.AuditEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	e.ID = int64(len(m.entries) + 1)
	m.entries = append(m.entries, e)
	return nil
}

func (m *mockAuditRepository) List(_ context.Context, req *domain.AuditListRequest) ([]*domain.AuditEntry, int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.entries, int64(len(m.entries)), nil
}

// mockUserRepository 是用于测试的用户仓储模拟实现
type mockUserRepository struct {
	users  map[string]*domain.User // username -> user
	emails map[string]*domain.User // email -> user
	nextID int64
}

func newMockUserRepository() *mockUserRepository {
	return &mockUserRepository{
		users:  make(map[string]*domain.User),
		emails: make(map[string]*domain.User),
		nextID: 1,
	}
}

func (m *mockUserRepository) Create(_ context.Context, user *domain.User) error {
	if _, exists := m.users[user.Username]; exists {
		return errors.New("username already exists")
	}
	if _, exists := m.emails[user.Email]; exists {
		return errors.New("email already exists")
	}

	user.ID = m.nextID
	m.nextID++

	m.users[user.Username] = user
	m.emails[user.Email] = user
	return nil
}

func (m *mockUserRepository) GetByID(_ context.Context, id int64) (*domain.User, error) {
	for _, user := range m.users {
		if user.ID == id {
			return user, nil
		}
	}
	return nil, nil
}

func (m *mockUserRepository) GetByUsername(_ context.Context, username string) (*domain.User, error) {
	return m.users[username], nil
}

func (m *mockUserRepository) GetByEmail(_ context.Context, email string) (*domain.User, error) {
	return m.emails[email], nil
}

func (m *mockUserRepository) UpdateStatus(_ context.Context, id int64, isActive bool) error {
	for _, user := range m.users {
		if user.ID == id {
			user.IsActive = isActive
			return nil
		}
	}
	return fmt.Errorf("user %d not found", id)
}

// recordingEvents 记录发布的事件名
type recordingEvents struct {
	mu     sync.Mutex
	events []string
}

func (r *recordingEvents) add(name, id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, name+":"+id)
}

func (r *recordingEvents) OrderCreated(_ context.Context, o *domain.Order) { r.add("created", o.OrderNumber) }

func (r *recordingEvents) OrderUpdated(_ context.Context, o *domain.Order) { r.add("updated", o.OrderNumber) }

func (r *recordingEvents) OrderDeleted(_ context.Context, o *domain.Order) { r.add("deleted", o.OrderNumber) }

func (r *recordingEvents) OrderDispatched(_ context.Context, o *domain.Order) {
	r.add("dispatched", o.OrderNumber)
}

func (r *recordingEvents) StockLow(_ context.Context, p *domain.Product) { r.add("stock.low", p.SKU) }

// fakeDispatcher 替代 Pathao 客户端
type fakeDispatcher struct {
	brand     string
	calls     int
	shipments []pathao.Shipment
	failFor   map[string]error // order number -> error
	status    string
}

func (f *fakeDispatcher) Brand() string { return f.brand }

func (f *fakeDispatcher) CreateOrder(_ context.Context, s pathao.Shipment) (*pathao.CreateOrderResult, error) {
	f.calls++
	if err := f.failFor[s.OrderNumber]; err != nil {
		return nil, err
	}
	f.shipments = append(f.shipments, s)
	return &pathao.CreateOrderResult{
		ConsignmentID:   "CN-" + s.OrderNumber,
		MerchantOrderID: s.OrderNumber,
		OrderStatus:     "Pending",
	}, nil
}

func (f *fakeDispatcher) OrderStatus(_ context.Context, consignmentID string) (*pathao.OrderInfo, error) {
	return &pathao.OrderInfo{ConsignmentID: consignmentID, OrderStatus: f.status}, nil
}
