package transport

import (
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	"storefront/internal/domain"
	"storefront/internal/middleware"
	"storefront/internal/service"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// maxFormMemory bounds the multipart form kept in memory; the photo limit
// itself is enforced by the product service
const maxFormMemory = 2 << 20

// productForm holds the text fields of a multipart product form
type productForm struct {
	Name        string `json:"name" validate:"required"`
	Description string `json:"description" validate:"required"`
	Price       string `json:"price" validate:"required,price"`
	Category    string `json:"category" validate:"required,uuid"`
	Quantity    string `json:"quantity" validate:"required,number"`
	Shipping    string `json:"shipping" validate:"omitempty,oneof=true false 1 0 yes no"`
}

// FilterRequest selects products by category ids and a [min, max] price range
type FilterRequest struct {
	Checked []uuid.UUID       `json:"checked"`
	Radio   []decimal.Decimal `json:"radio" validate:"omitempty,len=2"`
}

// CountResponse carries the catalog size
type CountResponse struct {
	Total int `json:"total"`
}

// CategoryProductsResponse is a category together with its products
type CategoryProductsResponse struct {
	Category *domain.Category  `json:"category"`
	Products []*domain.Product `json:"products"`
}

// ProductHandler serves the catalog endpoints
type ProductHandler struct {
	products service.ProductService
	logger   *zap.Logger
}

func NewProductHandler(products service.ProductService, logger *zap.Logger) *ProductHandler {
	return &ProductHandler{products: products, logger: logger}
}

// RegisterRoutes registers the product routes on r, mounted at /api/v1/product
func (h *ProductHandler) RegisterRoutes(r chi.Router, authMiddleware func(http.Handler) http.Handler) {
	r.Get("/get-product", h.Latest)
	r.Get("/get-product/{slug}", h.Get)
	r.Get("/product-photo/{pid}", h.Photo)
	r.Post("/product-filters", h.Filter)
	r.Get("/product-count", h.Count)
	r.Get("/product-list/{page}", h.Page)
	r.Get("/search/{keyword}", h.Search)
	r.Get("/related-product/{pid}/{cid}", h.Related)
	r.Get("/product-category/{slug}", h.ByCategory)

	r.Group(func(r chi.Router) {
		r.Use(authMiddleware)
		r.Use(middleware.RequireCapability(domain.CapManageCatalog, h.logger))
		r.Post("/create-product", h.Create)
		r.Put("/update-product/{pid}", h.Update)
		r.Delete("/delete-product/{pid}", h.Delete)
	})
}

func (h *ProductHandler) Create(w http.ResponseWriter, r *http.Request) {
	input, ok := h.parseProductForm(w, r)
	if !ok {
		return
	}

	product, err := h.products.Create(r.Context(), input)
	if err != nil {
		respondError(w, h.logger, err, "failed to create product")
		return
	}

	h.logger.Info("Product created", zap.String("product_id", product.ID.String()), zap.String("slug", product.Slug))
	middleware.RespondWithJSON(w, http.StatusCreated, product)
}

func (h *ProductHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, ok := uuidParam(w, r, "pid")
	if !ok {
		return
	}

	input, ok := h.parseProductForm(w, r)
	if !ok {
		return
	}

	product, err := h.products.Update(r.Context(), id, input)
	if err != nil {
		respondError(w, h.logger, err, "failed to update product")
		return
	}

	middleware.RespondWithJSON(w, http.StatusOK, product)
}

func (h *ProductHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := uuidParam(w, r, "pid")
	if !ok {
		return
	}

	if err := h.products.Delete(r.Context(), id); err != nil {
		respondError(w, h.logger, err, "failed to delete product")
		return
	}

	h.logger.Info("Product deleted", zap.String("product_id", id.String()))
	middleware.RespondWithJSON(w, http.StatusOK, map[string]string{"message": "product deleted"})
}

// Latest returns the newest products
func (h *ProductHandler) Latest(w http.ResponseWriter, r *http.Request) {
	products, err := h.products.Latest(r.Context())
	if err != nil {
		respondError(w, h.logger, err, "failed to list products")
		return
	}
	middleware.RespondWithJSON(w, http.StatusOK, products)
}

func (h *ProductHandler) Get(w http.ResponseWriter, r *http.Request) {
	product, err := h.products.GetBySlug(r.Context(), chi.URLParam(r, "slug"))
	if err != nil {
		respondError(w, h.logger, err, "failed to get product")
		return
	}
	middleware.RespondWithJSON(w, http.StatusOK, product)
}

// Photo streams the stored product image with its detected content type
func (h *ProductHandler) Photo(w http.ResponseWriter, r *http.Request) {
	id, ok := uuidParam(w, r, "pid")
	if !ok {
		return
	}

	photo, err := h.products.Photo(r.Context(), id)
	if err != nil {
		respondError(w, h.logger, err, "failed to load photo")
		return
	}

	w.Header().Set("Content-Type", photo.ContentType)
	w.Header().Set("Content-Length", strconv.Itoa(len(photo.Data)))
	w.Header().Set("Cache-Control", "public, max-age=300")
	w.WriteHeader(http.StatusOK)
	w.Write(photo.Data)
}

func (h *ProductHandler) Filter(w http.ResponseWriter, r *http.Request) {
	var req FilterRequest
	if !decodeBody(w, r, h.logger, &req) {
		return
	}

	filter := domain.ProductFilter{CategoryIDs: req.Checked}
	if len(req.Radio) == 2 {
		filter.Price = domain.PriceRange{Min: &req.Radio[0], Max: &req.Radio[1]}
	}

	products, err := h.products.Filter(r.Context(), filter)
	if err != nil {
		respondError(w, h.logger, err, "failed to filter products")
		return
	}
	middleware.RespondWithJSON(w, http.StatusOK, products)
}

func (h *ProductHandler) Count(w http.ResponseWriter, r *http.Request) {
	total, err := h.products.Count(r.Context())
	if err != nil {
		respondError(w, h.logger, err, "failed to count products")
		return
	}
	middleware.RespondWithJSON(w, http.StatusOK, CountResponse{Total: total})
}

func (h *ProductHandler) Page(w http.ResponseWriter, r *http.Request) {
	page, err := strconv.Atoi(chi.URLParam(r, "page"))
	if err != nil || page < 1 {
		middleware.RespondWithError(w, http.StatusBadRequest, "invalid page")
		return
	}

	products, err := h.products.Page(r.Context(), page)
	if err != nil {
		respondError(w, h.logger, err, "failed to list products")
		return
	}
	middleware.RespondWithJSON(w, http.StatusOK, products)
}

func (h *ProductHandler) Search(w http.ResponseWriter, r *http.Request) {
	products, err := h.products.Search(r.Context(), chi.URLParam(r, "keyword"))
	if err != nil {
		respondError(w, h.logger, err, "failed to search products")
		return
	}
	middleware.RespondWithJSON(w, http.StatusOK, products)
}

func (h *ProductHandler) Related(w http.ResponseWriter, r *http.Request) {
	productID, ok := uuidParam(w, r, "pid")
	if !ok {
		return
	}
	categoryID, ok := uuidParam(w, r, "cid")
	if !ok {
		return
	}

	products, err := h.products.Related(r.Context(), productID, categoryID)
	if err != nil {
		respondError(w, h.logger, err, "failed to list related products")
		return
	}
	middleware.RespondWithJSON(w, http.StatusOK, products)
}

func (h *ProductHandler) ByCategory(w http.ResponseWriter, r *http.Request) {
	category, products, err := h.products.ByCategory(r.Context(), chi.URLParam(r, "slug"))
	if err != nil {
		respondError(w, h.logger, err, "failed to list category products")
		return
	}
	middleware.RespondWithJSON(w, http.StatusOK, CategoryProductsResponse{Category: category, Products: products})
}

// parseProductForm reads a multipart product form. The photo part is
// optional; a missing photo leaves input.Photo nil.
func (h *ProductHandler) parseProductForm(w http.ResponseWriter, r *http.Request) (service.ProductInput, bool) {
	if err := r.ParseMultipartForm(maxFormMemory); err != nil {
		h.logger.Debug("Invalid multipart form", zap.Error(err))
		middleware.RespondWithError(w, http.StatusBadRequest, "invalid multipart form")
		return service.ProductInput{}, false
	}

	form := productForm{
		Name:        strings.TrimSpace(r.FormValue("name")),
		Description: strings.TrimSpace(r.FormValue("description")),
		Price:       strings.TrimSpace(r.FormValue("price")),
		Category:    strings.TrimSpace(r.FormValue("category")),
		Quantity:    strings.TrimSpace(r.FormValue("quantity")),
		Shipping:    strings.ToLower(strings.TrimSpace(r.FormValue("shipping"))),
	}
	if err := middleware.ValidateRequest(&form); err != nil {
		middleware.RespondWithValidationErrors(w, middleware.FormatValidationErrors(err))
		return service.ProductInput{}, false
	}

	price, err := decimal.NewFromString(form.Price)
	if err != nil {
		middleware.RespondWithError(w, http.StatusBadRequest, "invalid price")
		return service.ProductInput{}, false
	}
	quantity, err := strconv.Atoi(form.Quantity)
	if err != nil {
		middleware.RespondWithError(w, http.StatusBadRequest, "invalid quantity")
		return service.ProductInput{}, false
	}

	input := service.ProductInput{
		Name:        form.Name,
		Description: form.Description,
		Price:       price,
		CategoryID:  uuid.MustParse(form.Category),
		Quantity:    quantity,
		Shipping:    form.Shipping == "true" || form.Shipping == "1" || form.Shipping == "yes",
	}

	file, _, err := r.FormFile("photo")
	switch {
	case errors.Is(err, http.ErrMissingFile):
	case err != nil:
		middleware.RespondWithError(w, http.StatusBadRequest, "invalid photo")
		return service.ProductInput{}, false
	default:
		defer file.Close()
		// One byte past the limit is enough for the service to reject it
		input.Photo, err = io.ReadAll(io.LimitReader(file, service.MaxPhotoSize+1))
		if err != nil {
			middleware.RespondWithError(w, http.StatusBadRequest, "invalid photo")
			return service.ProductInput{}, false
		}
	}

	return input, true
}
