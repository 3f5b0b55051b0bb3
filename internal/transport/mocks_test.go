package transport

import (
	"context"
	"net/http"
	"sync"
	"testing"
	"time"

	"storefront/internal/config"
	"storefront/internal/domain"
	"storefront/internal/middleware"
	"storefront/internal/repository"
	"storefront/internal/service"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Mock repositories backing the real user service
type mockUserRepository struct {
	mu    sync.Mutex
	users map[string]*domain.User
}

func (m *mockUserRepository) Create(ctx context.Context, user *domain.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.users[user.Email]; exists {
		return repository.ErrUserAlreadyExists
	}
	m.users[user.Email] = user
	return nil
}

func (m *mockUserRepository) FindByEmail(ctx context.Context, email string) (*domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	user, exists := m.users[email]
	if !exists {
		return nil, repository.ErrUserNotFound
	}
	return user, nil
}

func (m *mockUserRepository) FindByID(ctx context.Context, id uuid.UUID) (*domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, user := range m.users {
		if user.ID == id {
			return user, nil
		}
	}
	return nil, repository.ErrUserNotFound
}

func (m *mockUserRepository) Update(ctx context.Context, user *domain.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.users[user.Email] = user
	return nil
}

type mockRefreshTokenRepository struct {
	mu     sync.Mutex
	tokens map[string]*domain.RefreshToken
}

func (m *mockRefreshTokenRepository) Create(ctx context.Context, token *domain.RefreshToken) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tokens[token.Token] = token
	return nil
}

func (m *mockRefreshTokenRepository) FindByToken(ctx context.Context, token string) (*domain.RefreshToken, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
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
	m.mu.Lock()
	defer m.mu.Unlock()
	refreshToken, exists := m.tokens[token]
	if !exists {
		return repository.ErrRefreshTokenNotFound
	}
	refreshToken.Revoked = true
	return nil
}

func (m *mockRefreshTokenRepository) RevokeAllForUser(ctx context.Context, userID uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, t := range m.tokens {
		if t.UserID == userID {
			t.Revoked = true
		}
	}
	return nil
}

func (m *mockRefreshTokenRepository) DeleteExpired(ctx context.Context, before time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for key, t := range m.tokens {
		if t.ExpiresAt.Before(before) {
			delete(m.tokens, key)
			n++
		}
	}
	return n, nil
}

// Stub services; unset funcs answer with empty results
type stubCategoryService struct {
	created []string
	err     error
}

func (s *stubCategoryService) Create(ctx context.Context, name string) (*domain.Category, error) {
	if s.err != nil {
		return nil, s.err
	}
	s.created = append(s.created, name)
	return &domain.Category{ID: uuid.New(), Name: name, Slug: "slug"}, nil
}

func (s *stubCategoryService) Update(ctx context.Context, id uuid.UUID, name string) (*domain.Category, error) {
	if s.err != nil {
		return nil, s.err
	}
	return &domain.Category{ID: id, Name: name}, nil
}

func (s *stubCategoryService) Delete(ctx context.Context, id uuid.UUID) (*domain.Category, error) {
	if s.err != nil {
		return nil, s.err
	}
	return &domain.Category{ID: id}, nil
}

func (s *stubCategoryService) List(ctx context.Context) ([]*domain.Category, error) {
	return []*domain.Category{}, s.err
}

func (s *stubCategoryService) GetBySlug(ctx context.Context, slug string) (*domain.Category, error) {
	if s.err != nil {
		return nil, s.err
	}
	return &domain.Category{ID: uuid.New(), Slug: slug}, nil
}

type stubProductService struct {
	input  service.ProductInput
	filter domain.ProductFilter
	photo  *domain.Photo
	err    error
}

func (s *stubProductService) Create(ctx context.Context, input service.ProductInput) (*domain.Product, error) {
	s.input = input
	if s.err != nil {
		return nil, s.err
	}
	return &domain.Product{ID: uuid.New(), Name: input.Name, Price: input.Price, HasPhoto: input.Photo != nil}, nil
}

func (s *stubProductService) Update(ctx context.Context, id uuid.UUID, input service.ProductInput) (*domain.Product, error) {
	s.input = input
	if s.err != nil {
		return nil, s.err
	}
	return &domain.Product{ID: id, Name: input.Name}, nil
}

func (s *stubProductService) Delete(ctx context.Context, id uuid.UUID) error { return s.err }

func (s *stubProductService) Latest(ctx context.Context) ([]*domain.Product, error) {
	return []*domain.Product{}, s.err
}

func (s *stubProductService) GetBySlug(ctx context.Context, slug string) (*domain.Product, error) {
	if s.err != nil {
		return nil, s.err
	}
	return &domain.Product{ID: uuid.New(), Slug: slug}, nil
}

func (s *stubProductService) Photo(ctx context.Context, id uuid.UUID) (*domain.Photo, error) {
	if s.photo == nil {
		return nil, repository.ErrPhotoNotFound
	}
	return s.photo, nil
}

func (s *stubProductService) Filter(ctx context.Context, filter domain.ProductFilter) ([]*domain.Product, error) {
	s.filter = filter
	return []*domain.Product{}, s.err
}

func (s *stubProductService) Count(ctx context.Context) (int, error) { return 7, s.err }

func (s *stubProductService) Page(ctx context.Context, page int) ([]*domain.Product, error) {
	return []*domain.Product{}, s.err
}

func (s *stubProductService) Search(ctx context.Context, keyword string) ([]*domain.Product, error) {
	return []*domain.Product{}, s.err
}

func (s *stubProductService) Related(ctx context.Context, productID, categoryID uuid.UUID) ([]*domain.Product, error) {
	return []*domain.Product{}, s.err
}

func (s *stubProductService) ByCategory(ctx context.Context, slug string) (*domain.Category, []*domain.Product, error) {
	if s.err != nil {
		return nil, nil, s.err
	}
	return &domain.Category{Slug: slug}, []*domain.Product{}, nil
}

type stubOrderService struct {
	err error
}

func (s *stubOrderService) ListForBuyer(ctx context.Context, buyerID uuid.UUID) ([]*domain.Order, error) {
	return []*domain.Order{{ID: uuid.New(), BuyerID: buyerID}}, s.err
}

func (s *stubOrderService) ListAll(ctx context.Context) ([]*domain.Order, error) {
	return []*domain.Order{}, s.err
}

func (s *stubOrderService) UpdateStatus(ctx context.Context, id uuid.UUID, status domain.OrderStatus) (*domain.Order, error) {
	if !status.Valid() {
		return nil, service.ErrInvalidStatus
	}
	if s.err != nil {
		return nil, s.err
	}
	return &domain.Order{ID: id, Status: status}, nil
}

type stubCheckoutService struct {
	last     service.PayRequest
	payErr   error
	tokenErr error
}

func (s *stubCheckoutService) ClientToken(ctx context.Context) (string, error) {
	if s.tokenErr != nil {
		return "", s.tokenErr
	}
	return "client-token", nil
}

func (s *stubCheckoutService) Pay(ctx context.Context, req service.PayRequest) (*domain.Order, error) {
	s.last = req
	if s.payErr != nil {
		return nil, s.payErr
	}
	return &domain.Order{
		ID:             uuid.New(),
		BuyerID:        req.BuyerID,
		IdempotencyKey: req.IdempotencyKey,
		Status:         domain.OrderStatusNotProcessed,
		Payment:        domain.PaymentResult{TransactionID: "txn-1", Success: true},
	}, nil
}

type testEnv struct {
	router     http.Handler
	users      *mockUserRepository
	userSvc    service.UserService
	categories *stubCategoryService
	products   *stubProductService
	orders     *stubOrderService
	checkout   *stubCheckoutService
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	logger := zap.NewNop()
	env := &testEnv{
		users:      &mockUserRepository{users: map[string]*domain.User{}},
		categories: &stubCategoryService{},
		products:   &stubProductService{},
		orders:     &stubOrderService{},
		checkout:   &stubCheckoutService{},
	}
	refresh := &mockRefreshTokenRepository{tokens: map[string]*domain.RefreshToken{}}
	env.userSvc = service.NewUserService(env.users, refresh, config.JWTConfig{Secret: "test-secret", AccessExpiry: 15, RefreshExpiry: 7})

	auth := middleware.Authenticate(env.userSvc, env.userSvc, logger)
	r := chi.NewRouter()
	r.Route("/api/v1/auth", func(r chi.Router) {
		NewAuthHandler(env.userSvc, env.orders, logger).RegisterRoutes(r, auth)
	})
	r.Route("/api/v1/category", func(r chi.Router) {
		NewCategoryHandler(env.categories, logger).RegisterRoutes(r, auth)
	})
	r.Route("/api/v1/product", func(r chi.Router) {
		NewProductHandler(env.products, logger).RegisterRoutes(r, auth)
		NewCheckoutHandler(env.checkout, logger).RegisterRoutes(r, auth)
	})
	env.router = r

	return env
}

// signIn registers a user with the given role and returns an access token
func (e *testEnv) signIn(t *testing.T, email string, role domain.Role) string {
	t.Helper()
	ctx := context.Background()

	user, err := e.userSvc.Register(ctx, service.RegisterInput{
		Name:     "Test",
		Email:    email,
		Password: "secret1",
		Phone:    "555-0100",
		Address:  "1 Main St",
		Answer:   "blue",
	})
	if err != nil {
		t.Fatalf("Failed to register: %v", err)
	}
	user.Role = role

	token, _, _, err := e.userSvc.Login(ctx, email, "secret1")
	if err != nil {
		t.Fatalf("Failed to login: %v", err)
	}
	return token
}
