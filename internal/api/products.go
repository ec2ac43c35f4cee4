package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"gatehouse/internal/apperr"
	"gatehouse/internal/models"
	"gatehouse/internal/resource"
)

type ProductHandler struct {
	products *resource.Service[*models.Product]
	baseURL  string
}

func NewProductHandler(products *resource.Service[*models.Product], baseURL string) *ProductHandler {
	return &ProductHandler{products: products, baseURL: baseURL}
}

type ProductRequest struct {
	Name        string `json:"name" validate:"required,max=120"`
	Description string `json:"description" validate:"max=2000"`
	PriceCents  *int64 `json:"priceCents" validate:"required,min=0"`
}

type ProductPatchRequest struct {
	Name        *string `json:"name" validate:"omitempty,min=1,max=120"`
	Description *string `json:"description" validate:"omitempty,max=2000"`
	PriceCents  *int64  `json:"priceCents" validate:"omitempty,min=0"`
}

type ProductListResponse struct {
	Products []*models.Product `json:"products"`
}

// GET /api/v1/products
func (h *ProductHandler) List(w http.ResponseWriter, r *http.Request) {
	products, tag, err := h.products.List(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	if products == nil {
		products = []*models.Product{}
	}

	writeTagged(w, r, http.StatusOK, tag, ProductListResponse{Products: products})
}

// POST /api/v1/products
func (h *ProductHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req ProductRequest
	if err := decodeAndValidate(r.Body, &req); err != nil {
		writeError(w, r, err)
		return
	}

	product := &models.Product{OwnerID: principal(r).UserID}
	if err := applyProduct(product, req); err != nil {
		writeError(w, r, err)
		return
	}

	created, tag, err := h.products.Create(r.Context(), product)
	if err != nil {
		writeError(w, r, err)
		return
	}

	w.Header().Set("Location", resourceURL(h.baseURL, "products", created.ID))
	writeTagged(w, r, http.StatusCreated, tag, created)
}

// GET /api/v1/products/{id}
func (h *ProductHandler) Get(w http.ResponseWriter, r *http.Request) {
	product, tag, err := h.products.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeTagged(w, r, http.StatusOK, tag, product)
}

// PUT /api/v1/products/{id}
func (h *ProductHandler) Replace(w http.ResponseWriter, r *http.Request) {
	var req ProductRequest
	if err := decodeAndValidate(r.Body, &req); err != nil {
		writeError(w, r, err)
		return
	}

	updated, tag, err := h.products.Update(r.Context(), chi.URLParam(r, "id"), r.Header.Get("If-Match"), func(p *models.Product) error {
		return applyProduct(p, req)
	})
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeTagged(w, r, http.StatusOK, tag, updated)
}

// PATCH /api/v1/products/{id}
func (h *ProductHandler) Patch(w http.ResponseWriter, r *http.Request) {
	var req ProductPatchRequest
	if err := decodeAndValidate(r.Body, &req); err != nil {
		writeError(w, r, err)
		return
	}

	updated, tag, err := h.products.Update(r.Context(), chi.URLParam(r, "id"), r.Header.Get("If-Match"), func(p *models.Product) error {
		merged := ProductRequest{Name: p.Name, Description: p.Description, PriceCents: &p.PriceCents}
		if req.Name != nil {
			merged.Name = *req.Name
		}
		if req.Description != nil {
			merged.Description = *req.Description
		}
		if req.PriceCents != nil {
			merged.PriceCents = req.PriceCents
		}
		return applyProduct(p, merged)
	})
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeTagged(w, r, http.StatusOK, tag, updated)
}

// DELETE /api/v1/products/{id}
func (h *ProductHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.products.Delete(r.Context(), chi.URLParam(r, "id"), r.Header.Get("If-Match")); err != nil {
		writeError(w, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func applyProduct(p *models.Product, req ProductRequest) error {
	name := sanitizeText(req.Name)
	if name == "" {
		return apperr.Validation("One or more fields are invalid", map[string][]string{
			"name": {"is required"},
		})
	}
	p.Name = name
	p.Description = sanitizeText(req.Description)
	p.PriceCents = *req.PriceCents
	return nil
}
