package handler

import (
	"net/http"
	"strconv"

	"av-rental/internal/model"
	"av-rental/internal/service"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
)

// ProductHandler handles catalogue HTTP requests.
type ProductHandler struct {
	service service.ProductService
	logger  zerolog.Logger
}

// NewProductHandler creates a new product handler.
func NewProductHandler(service service.ProductService, logger zerolog.Logger) *ProductHandler {
	return &ProductHandler{
		service: service,
		logger:  logger.With().Str("handler", "product").Logger(),
	}
}

// GetAll handles GET /products?category=&limit=&offset=.
func (h *ProductHandler) GetAll(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	limit, err := intQuery(q.Get("limit"), 20)
	if err != nil {
		writeError(w, r, model.NewValidationError("invalid limit parameter"), h.logger)
		return
	}
	offset, err := intQuery(q.Get("offset"), 0)
	if err != nil {
		writeError(w, r, model.NewValidationError("invalid offset parameter"), h.logger)
		return
	}

	products, err := h.service.GetAll(r.Context(), q.Get("category"), limit, offset)
	if err != nil {
		writeError(w, r, err, h.logger)
		return
	}
	if products == nil {
		products = []model.Product{}
	}

	writeJSON(w, http.StatusOK, products)
}

// GetByID handles GET /products/{id}.
func (h *ProductHandler) GetByID(w http.ResponseWriter, r *http.Request) {
	product, err := h.service.GetByID(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, err, h.logger)
		return
	}

	writeJSON(w, http.StatusOK, product)
}

func intQuery(raw string, def int) (int, error) {
	if raw == "" {
		return def, nil
	}
	return strconv.Atoi(raw)
}
