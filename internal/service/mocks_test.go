package service

import (
	"context"
	"sort"
	"sync"
	"time"

	"storefront/internal/domain"
	"storefront/internal/payment"
	"storefront/internal/repository"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Mock repositories for testing
type mockUserRepository struct {
	users map[string]*domain.User
}

func newMockUserRepository() *mockUserRepository {
	return &mockUserRepository{
		users: make(map[string]*domain.User),
	}
}

func (m *mockUserRepository) Create(ctx context.Context, user *domain.User) error {
	if _, exists := m.users[user.Email]; exists {
		return repository.ErrUserAlreadyExists
	}
	m.users[user.Email] = user
	return nil
}

func (m *mockUserRepository) FindByEmail(ctx context.Context, email string) (*domain.User, error) {
	user, exists := m.users[email]
	if !exists {
		return nil, repository.ErrUserNotFound
	}
	return user, nil
}

func (m *mockUserRepository) FindByID(ctx context.Context, id uuid.UUID) (*domain.User, error) {
	for _, user := range m.users {
		if user.ID == id {
			return user, nil
		}
	}
	return nil, repository.ErrUserNotFound
}

func (m *mockUserRepository) Update(ctx context.Context, user *domain.User) error {
	for email, existing := range m.users {
		if existing.ID == user.ID {
			delete(m.users, email)
			m.users[user.Email] = user
			return nil
		}
	}
	return repository.ErrUserNotFound
}

type mockRefreshTokenRepository struct {
	tokens map[string]*domain.RefreshToken
}

func newMockRefreshTokenRepository() *mockRefreshTokenRepository {
	return &mockRefreshTokenRepository{
		tokens: make(map[string]*domain.RefreshToken),
	}
}

func (m *mockRefreshTokenRepository) Create(ctx context.Context, token *domain.RefreshToken) error {
	m.tokens[token.Token] = token
	return nil
}

func (m *mockRefreshTokenRepository) FindByToken(ctx context.Context, token string) (*domain.RefreshToken, error) {
	refreshToken, exists := m.tokens[token]
	if !exists {
		return nil, repository.ErrRefreshTokenNotFound
	}
	if refreshToken.Revoked {
		return nil, repository.ErrRefreshTokenRevoked
	}
	return refreshToken, nil
}

func (m *mockRefreshTokenRepository) Revoke(ctx context.Context, token string) error {
	refreshToken, exists := m.tokens[token]
	if !exists {
		return repository.ErrRefreshTokenNotFound
	}
	refreshToken.Revoked = true
	return nil
}

func (m *mockRefreshTokenRepository) RevokeAllForUser(ctx context.Context, userID uuid.UUID) error {
	for _, token := range m.tokens {
		if token.UserID == userID {
			token.Revoked = true
		}
	}
	return nil
}

func (m *mockRefreshTokenRepository) DeleteExpired(ctx context.Context, before time.Time) (int64, error) {
	var n int64
	for key, t := range m.tokens {
		if t.ExpiresAt.Before(before) {
			delete(m.tokens, key)
			n++
		}
	}
	return n, nil
}

type mockCategoryRepository struct {
	categories map[uuid.UUID]*domain.Category
	inUse      map[uuid.UUID]bool
}

func newMockCategoryRepository() *mockCategoryRepository {
	return &mockCategoryRepository{
		categories: make(map[uuid.UUID]*domain.Category),
		inUse:      make(map[uuid.UUID]bool),
	}
}

func (m *mockCategoryRepository) conflicts(category *domain.Category) bool {
	for id, existing := range m.categories {
		if id != category.ID && (existing.Name == category.Name || existing.Slug == category.Slug) {
			return true
		}
	}
	return false
}

func (m *mockCategoryRepository) Create(ctx context.Context, category *domain.Category) error {
	if m.conflicts(category) {
		return repository.ErrCategoryAlreadyExists
	}
	m.categories[category.ID] = category
	return nil
}

func (m *mockCategoryRepository) Update(ctx context.Context, category *domain.Category) error {
	existing, ok := m.categories[category.ID]
	if !ok {
		return repository.ErrCategoryNotFound
	}
	if m.conflicts(category) {
		return repository.ErrCategoryAlreadyExists
	}
	category.CreatedAt = existing.CreatedAt
	m.categories[category.ID] = category
	return nil
}

func (m *mockCategoryRepository) Delete(ctx context.Context, id uuid.UUID) (*domain.Category, error) {
	category, ok := m.categories[id]
	if !ok {
		return nil, repository.ErrCategoryNotFound
	}
	if m.inUse[id] {
		return nil, repository.ErrCategoryInUse
	}
	delete(m.categories, id)
	return category, nil
}

func (m *mockCategoryRepository) List(ctx context.Context) ([]*domain.Category, error) {
	categories := make([]*domain.Category, 0, len(m.categories))
	for _, c := range m.categories {
		categories = append(categories, c)
	}
	sort.Slice(categories, func(i, j int) bool { return categories[i].Name < categories[j].Name })
	return categories, nil
}

func (m *mockCategoryRepository) FindByID(ctx context.Context, id uuid.UUID) (*domain.Category, error) {
	category, ok := m.categories[id]
	if !ok {
		return nil, repository.ErrCategoryNotFound
	}
	return category, nil
}

func (m *mockCategoryRepository) FindBySlug(ctx context.Context, slug string) (*domain.Category, error) {
	for _, c := range m.categories {
		if c.Slug == slug {
			return c, nil
		}
	}
	return nil, repository.ErrCategoryNotFound
}

type mockProductRepository struct {
	mu       sync.Mutex
	products map[uuid.UUID]*domain.Product
}

func newMockProductRepository() *mockProductRepository {
	return &mockProductRepository{
		products: make(map[uuid.UUID]*domain.Product),
	}
}

func (m *mockProductRepository) add(name, price string, quantity int) *domain.Product {
	m.mu.Lock()
	defer m.mu.Unlock()

	p := &domain.Product{
		ID:        uuid.New(),
		Name:      name,
		Slug:      uuid.NewString(),
		Price:     decimal.RequireFromString(price),
		Quantity:  quantity,
		CreatedAt: time.Now(),
		UpdatedAt: time.Now(),
	}
	m.products[p.ID] = p
	return p
}

func (m *mockProductRepository) quantity(id uuid.UUID) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.products[id].Quantity
}

func (m *mockProductRepository) Create(ctx context.Context, product *domain.Product) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, p := range m.products {
		if p.Slug == product.Slug {
			return repository.ErrProductAlreadyExists
		}
	}
	product.HasPhoto = product.Photo != nil
	m.products[product.ID] = product
	return nil
}

func (m *mockProductRepository) Update(ctx context.Context, product *domain.Product) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	existing, ok := m.products[product.ID]
	if !ok {
		return repository.ErrProductNotFound
	}
	if product.Photo == nil {
		product.Photo = existing.Photo
	}
	product.HasPhoto = product.Photo != nil
	product.CreatedAt = existing.CreatedAt
	m.products[product.ID] = product
	return nil
}

func (m *mockProductRepository) Delete(ctx context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.products[id]; !ok {
		return repository.ErrProductNotFound
	}
	delete(m.products, id)
	return nil
}

func (m *mockProductRepository) FindByID(ctx context.Context, id uuid.UUID) (*domain.Product, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	p, ok := m.products[id]
	if !ok {
		return nil, repository.ErrProductNotFound
	}
	copied := *p
	return &copied, nil
}

func (m *mockProductRepository) FindBySlug(ctx context.Context, slug string) (*domain.Product, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, p := range m.products {
		if p.Slug == slug {
			copied := *p
			return &copied, nil
		}
	}
	return nil, repository.ErrProductNotFound
}

func (m *mockProductRepository) FindByIDs(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]*domain.Product, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	found := make(map[uuid.UUID]*domain.Product)
	for _, id := range ids {
		if p, ok := m.products[id]; ok {
			copied := *p
			found[id] = &copied
		}
	}
	return found, nil
}

func (m *mockProductRepository) Photo(ctx context.Context, id uuid.UUID) (*domain.Photo, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	p, ok := m.products[id]
	if !ok {
		return nil, repository.ErrProductNotFound
	}
	if p.Photo == nil {
		return nil, repository.ErrPhotoNotFound
	}
	return p.Photo, nil
}

func (m *mockProductRepository) sorted() []*domain.Product {
	products := make([]*domain.Product, 0, len(m.products))
	for _, p := range m.products {
		products = append(products, p)
	}
	sort.Slice(products, func(i, j int) bool { return products[i].CreatedAt.After(products[j].CreatedAt) })
	return products
}

func (m *mockProductRepository) List(ctx context.Context, page, pageSize int) ([]*domain.Product, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	all := m.sorted()
	start := (page - 1) * pageSize
	if start >= len(all) {
		return []*domain.Product{}, nil
	}
	end := start + pageSize
	if end > len(all) {
		end = len(all)
	}
	return all[start:end], nil
}

func (m *mockProductRepository) Count(ctx context.Context) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.products), nil
}

func (m *mockProductRepository) Filter(ctx context.Context, filter domain.ProductFilter) ([]*domain.Product, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []*domain.Product
	for _, p := range m.sorted() {
		if len(filter.CategoryIDs) > 0 {
			match := false
			for _, id := range filter.CategoryIDs {
				match = match || id == p.CategoryID
			}
			if !match {
				continue
			}
		}
		if filter.Price.Min != nil && p.Price.LessThan(*filter.Price.Min) {
			continue
		}
		if filter.Price.Max != nil && p.Price.GreaterThan(*filter.Price.Max) {
			continue
		}
		out = append(out, p)
	}
	return out, nil
}

func (m *mockProductRepository) Search(ctx context.Context, keyword string) ([]*domain.Product, error) {
	return []*domain.Product{}, nil
}

func (m *mockProductRepository) Related(ctx context.Context, productID, categoryID uuid.UUID, limit int) ([]*domain.Product, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []*domain.Product
	for _, p := range m.sorted() {
		if p.CategoryID == categoryID && p.ID != productID && len(out) < limit {
			out = append(out, p)
		}
	}
	return out, nil
}

func (m *mockProductRepository) ListByCategory(ctx context.Context, categoryID uuid.UUID) ([]*domain.Product, error) {
	return m.Related(ctx, uuid.Nil, categoryID, len(m.products))
}

type mockOrderRepository struct {
	mu        sync.Mutex
	orders    map[uuid.UUID]*domain.Order
	products  *mockProductRepository
	users     *mockUserRepository
	createErr error
}

func newMockOrderRepository(products *mockProductRepository, users *mockUserRepository) *mockOrderRepository {
	return &mockOrderRepository{
		orders:   make(map[uuid.UUID]*domain.Order),
		products: products,
		users:    users,
	}
}

func (m *mockOrderRepository) CreateWithStock(ctx context.Context, order *domain.Order, lines []domain.StockLine) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.createErr != nil {
		return m.createErr
	}
	for _, o := range m.orders {
		if o.BuyerID == order.BuyerID && o.IdempotencyKey != "" && o.IdempotencyKey == order.IdempotencyKey {
			return repository.ErrDuplicateOrder
		}
	}

	m.products.mu.Lock()
	defer m.products.mu.Unlock()
	for _, line := range lines {
		if m.products.products[line.ProductID].Quantity < line.Quantity {
			return repository.ErrInsufficientStock
		}
	}
	for _, line := range lines {
		m.products.products[line.ProductID].Quantity -= line.Quantity
	}

	m.orders[order.ID] = order
	return nil
}

func (m *mockOrderRepository) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.orders)
}

func (m *mockOrderRepository) FindByID(ctx context.Context, id uuid.UUID) (*domain.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	order, ok := m.orders[id]
	if !ok {
		return nil, repository.ErrOrderNotFound
	}
	return order, nil
}

func (m *mockOrderRepository) FindByBuyerAndKey(ctx context.Context, buyerID uuid.UUID, key string) (*domain.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, o := range m.orders {
		if o.BuyerID == buyerID && o.IdempotencyKey == key {
			return o, nil
		}
	}
	return nil, repository.ErrOrderNotFound
}

func (m *mockOrderRepository) list(keep func(*domain.Order) bool) []*domain.Order {
	m.mu.Lock()
	defer m.mu.Unlock()

	orders := []*domain.Order{}
	for _, o := range m.orders {
		if keep(o) {
			orders = append(orders, o)
		}
	}
	sort.Slice(orders, func(i, j int) bool { return orders[i].CreatedAt.After(orders[j].CreatedAt) })
	return orders
}

func (m *mockOrderRepository) ListByBuyer(ctx context.Context, buyerID uuid.UUID) ([]*domain.Order, error) {
	return m.list(func(o *domain.Order) bool { return o.BuyerID == buyerID }), nil
}

func (m *mockOrderRepository) ListAll(ctx context.Context) ([]*domain.Order, error) {
	return m.list(func(*domain.Order) bool { return true }), nil
}

func (m *mockOrderRepository) UpdateStatus(ctx context.Context, id uuid.UUID, status domain.OrderStatus) (*domain.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	order, ok := m.orders[id]
	if !ok {
		return nil, repository.ErrOrderNotFound
	}
	order.Status = status
	return order, nil
}

type mockGateway struct {
	mu        sync.Mutex
	charges   []decimal.Decimal
	voids     []string
	chargeErr error
	voidErr   error
	tokenErr  error
	delay     time.Duration
}

func (g *mockGateway) IssueClientToken(ctx context.Context) (string, error) {
	if g.tokenErr != nil {
		return "", g.tokenErr
	}
	return "client-token", nil
}

func (g *mockGateway) Charge(ctx context.Context, nonce string, amount decimal.Decimal, orderRef string) (*payment.Transaction, error) {
	if g.delay > 0 {
		time.Sleep(g.delay)
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	if g.chargeErr != nil {
		return nil, g.chargeErr
	}
	g.charges = append(g.charges, amount)
	return &payment.Transaction{
		ID:       "txn-" + orderRef[:8],
		Status:   "submitted_for_settlement",
		Type:     "sale",
		Amount:   amount,
		Currency: "USD",
	}, nil
}

func (g *mockGateway) Void(ctx context.Context, transactionID string) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.voidErr != nil {
		return g.voidErr
	}
	g.voids = append(g.voids, transactionID)
	return nil
}

func (g *mockGateway) chargeCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.charges)
}

type mockNotifier struct {
	mu      sync.Mutex
	placed  []*domain.Order
	changed []*domain.Order
}

func (n *mockNotifier) OrderPlaced(ctx context.Context, buyer domain.BuyerSummary, order *domain.Order) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.placed = append(n.placed, order)
	return nil
}

func (n *mockNotifier) OrderStatusChanged(ctx context.Context, buyer domain.BuyerSummary, order *domain.Order) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.changed = append(n.changed, order)
	return nil
}

func runInline(f func()) { f() }
