package client

import (
	"bytes"
	"context"
	"fmt"
	"mime/multipart"
	"net/http"
	"strconv"

	"storefront/internal/domain"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type RegisterRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
	Phone    string `json:"phone"`
	Address  string `json:"address"`
	Answer   string `json:"answer"`
}

type LoginResponse struct {
	Token        string       `json:"token"`
	RefreshToken string       `json:"refresh_token"`
	User         *domain.User `json:"user"`
}

type ProfileUpdate struct {
	Name     *string `json:"name,omitempty"`
	Password *string `json:"password,omitempty"`
	Phone    *string `json:"phone,omitempty"`
	Address  *string `json:"address,omitempty"`
}

// PayRequest is the checkout payload. Cart entries carry the snapshot the
// shopper saw; the server charges catalog prices.
type PayRequest struct {
	Nonce          string                   `json:"nonce"`
	Cart           []domain.ProductSnapshot `json:"cart"`
	IdempotencyKey string                   `json:"idempotency_key"`
}

type payResponse struct {
	OK    bool          `json:"ok"`
	Order *domain.Order `json:"order"`
}

// ProductForm is the admin product form; a nil Photo keeps the stored one
type ProductForm struct {
	Name        string
	Description string
	Price       decimal.Decimal
	CategoryID  uuid.UUID
	Quantity    int
	Shipping    bool
	Photo       []byte
}

type CategoryProducts struct {
	Category *domain.Category  `json:"category"`
	Products []*domain.Product `json:"products"`
}

func (c *Client) Register(ctx context.Context, req RegisterRequest) (*domain.User, error) {
	var user domain.User
	if err := c.send(ctx, http.MethodPost, "/auth/register", nil, req, &user); err != nil {
		return nil, err
	}
	return &user, nil
}

func (c *Client) Login(ctx context.Context, email, password string) (*LoginResponse, error) {
	var resp LoginResponse
	err := c.send(ctx, http.MethodPost, "/auth/login", nil, map[string]string{"email": email, "password": password}, &resp)
	if err != nil {
		return nil, err
	}
	return &resp, nil
}

// Refresh exchanges a refresh token for a new access token
func (c *Client) Refresh(ctx context.Context, refreshToken string) (string, error) {
	var resp struct {
		Token string `json:"token"`
	}
	if err := c.send(ctx, http.MethodPost, "/auth/refresh", nil, map[string]string{"refresh_token": refreshToken}, &resp); err != nil {
		return "", err
	}
	return resp.Token, nil
}

func (c *Client) Logout(ctx context.Context, refreshToken string) error {
	return c.send(ctx, http.MethodPost, "/auth/logout", nil, map[string]string{"refresh_token": refreshToken}, nil)
}

func (c *Client) ForgotPassword(ctx context.Context, email, answer, newPassword string) error {
	return c.send(ctx, http.MethodPost, "/auth/forgot-password", nil, map[string]string{
		"email":        email,
		"answer":       answer,
		"new_password": newPassword,
	}, nil)
}

func (c *Client) UpdateProfile(ctx context.Context, update ProfileUpdate) (*domain.User, error) {
	var user domain.User
	if err := c.send(ctx, http.MethodPut, "/auth/profile", nil, update, &user); err != nil {
		return nil, err
	}
	return &user, nil
}

// IsAdmin asks the server whether the current token carries admin rights
func (c *Client) IsAdmin(ctx context.Context) (bool, error) {
	err := c.get(ctx, "/auth/admin-auth", nil)
	if IsStatus(err, http.StatusForbidden) {
		return false, nil
	}
	return err == nil, err
}

func (c *Client) Orders(ctx context.Context) ([]*domain.Order, error) {
	var orders []*domain.Order
	if err := c.get(ctx, "/auth/orders", &orders); err != nil {
		return nil, err
	}
	return orders, nil
}

func (c *Client) AllOrders(ctx context.Context) ([]*domain.Order, error) {
	var orders []*domain.Order
	if err := c.get(ctx, "/auth/all-orders", &orders); err != nil {
		return nil, err
	}
	return orders, nil
}

func (c *Client) UpdateOrderStatus(ctx context.Context, orderID uuid.UUID, status domain.OrderStatus) (*domain.Order, error) {
	var order domain.Order
	err := c.send(ctx, http.MethodPut, "/auth/order-status/"+orderID.String(), nil, map[string]string{"status": string(status)}, &order)
	if err != nil {
		return nil, err
	}
	return &order, nil
}

func (c *Client) Categories(ctx context.Context) ([]*domain.Category, error) {
	var categories []*domain.Category
	if err := c.get(ctx, "/category/get-category", &categories); err != nil {
		return nil, err
	}
	return categories, nil
}

func (c *Client) CreateCategory(ctx context.Context, name string) (*domain.Category, error) {
	var category domain.Category
	if err := c.send(ctx, http.MethodPost, "/category/create-category", nil, map[string]string{"name": name}, &category); err != nil {
		return nil, err
	}
	return &category, nil
}

func (c *Client) DeleteCategory(ctx context.Context, id uuid.UUID) error {
	return c.send(ctx, http.MethodDelete, "/category/delete-category/"+id.String(), nil, nil, nil)
}

// LatestProducts returns the newest products of the catalog
func (c *Client) LatestProducts(ctx context.Context) ([]*domain.Product, error) {
	var products []*domain.Product
	if err := c.get(ctx, "/product/get-product", &products); err != nil {
		return nil, err
	}
	return products, nil
}

func (c *Client) Product(ctx context.Context, slug string) (*domain.Product, error) {
	var product domain.Product
	if err := c.get(ctx, "/product/get-product/"+escape(slug), &product); err != nil {
		return nil, err
	}
	return &product, nil
}

func (c *Client) ProductPage(ctx context.Context, page int) ([]*domain.Product, error) {
	var products []*domain.Product
	if err := c.get(ctx, "/product/product-list/"+strconv.Itoa(page), &products); err != nil {
		return nil, err
	}
	return products, nil
}

func (c *Client) ProductCount(ctx context.Context) (int, error) {
	var resp struct {
		Total int `json:"total"`
	}
	if err := c.get(ctx, "/product/product-count", &resp); err != nil {
		return 0, err
	}
	return resp.Total, nil
}

func (c *Client) Search(ctx context.Context, keyword string) ([]*domain.Product, error) {
	var products []*domain.Product
	if err := c.get(ctx, "/product/search/"+escape(keyword), &products); err != nil {
		return nil, err
	}
	return products, nil
}

// Filter lists products in any of categoryIDs whose price lies in
// [min, max]; pass nil bounds to skip the price filter
func (c *Client) Filter(ctx context.Context, categoryIDs []uuid.UUID, min, max *decimal.Decimal) ([]*domain.Product, error) {
	req := map[string]interface{}{"checked": categoryIDs}
	if min != nil && max != nil {
		req["radio"] = []decimal.Decimal{*min, *max}
	}
	var products []*domain.Product
	if err := c.send(ctx, http.MethodPost, "/product/product-filters", nil, req, &products); err != nil {
		return nil, err
	}
	return products, nil
}

func (c *Client) Related(ctx context.Context, productID, categoryID uuid.UUID) ([]*domain.Product, error) {
	var products []*domain.Product
	if err := c.get(ctx, fmt.Sprintf("/product/related-product/%s/%s", productID, categoryID), &products); err != nil {
		return nil, err
	}
	return products, nil
}

func (c *Client) ProductsByCategory(ctx context.Context, slug string) (*CategoryProducts, error) {
	var resp CategoryProducts
	if err := c.get(ctx, "/product/product-category/"+escape(slug), &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *Client) CreateProduct(ctx context.Context, form ProductForm) (*domain.Product, error) {
	return c.submitProduct(ctx, http.MethodPost, "/product/create-product", form)
}

func (c *Client) UpdateProduct(ctx context.Context, id uuid.UUID, form ProductForm) (*domain.Product, error) {
	return c.submitProduct(ctx, http.MethodPut, "/product/update-product/"+id.String(), form)
}

func (c *Client) DeleteProduct(ctx context.Context, id uuid.UUID) error {
	return c.send(ctx, http.MethodDelete, "/product/delete-product/"+id.String(), nil, nil, nil)
}

func (c *Client) submitProduct(ctx context.Context, method, path string, form ProductForm) (*domain.Product, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)

	fields := map[string]string{
		"name":        form.Name,
		"description": form.Description,
		"price":       form.Price.StringFixed(2),
		"category":    form.CategoryID.String(),
		"quantity":    strconv.Itoa(form.Quantity),
		"shipping":    strconv.FormatBool(form.Shipping),
	}
	for k, v := range fields {
		if err := mw.WriteField(k, v); err != nil {
			return nil, fmt.Errorf("failed to encode form: %w", err)
		}
	}
	if form.Photo != nil {
		part, err := mw.CreateFormFile("photo", "photo")
		if err != nil {
			return nil, fmt.Errorf("failed to encode photo: %w", err)
		}
		if _, err := part.Write(form.Photo); err != nil {
			return nil, fmt.Errorf("failed to encode photo: %w", err)
		}
	}
	if err := mw.Close(); err != nil {
		return nil, fmt.Errorf("failed to encode form: %w", err)
	}

	var product domain.Product
	if err := c.do(ctx, method, path, nil, &buf, mw.FormDataContentType(), &product); err != nil {
		return nil, err
	}
	return &product, nil
}

// ClientToken fetches a fresh gateway token for the payment widget
func (c *Client) ClientToken(ctx context.Context) (string, error) {
	var resp struct {
		ClientToken string `json:"clientToken"`
	}
	if err := c.get(ctx, "/product/braintree/token", &resp); err != nil {
		return "", err
	}
	return resp.ClientToken, nil
}

// Pay submits a checkout. The idempotency key travels in the body and in
// the Idempotency-Key header.
func (c *Client) Pay(ctx context.Context, req PayRequest) (*domain.Order, error) {
	headers := http.Header{}
	headers.Set("Idempotency-Key", req.IdempotencyKey)

	var resp payResponse
	if err := c.send(ctx, http.MethodPost, "/product/braintree/payment", headers, req, &resp); err != nil {
		return nil, err
	}
	return resp.Order, nil
}
