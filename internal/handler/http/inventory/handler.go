package inventory

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"orderhub/internal/app/stock"
	"orderhub/internal/repository/stock_repo"
)

// InventoryService is the slice of the stock service the operator surface
// needs: seeding products and reading current levels.
type InventoryService interface {
	GetQuantity(ctx context.Context, product string) (int, error)
	SetQuantity(ctx context.Context, product string, quantity int) error
}

type InventoryHandler struct {
	service InventoryService
	logger  *zap.Logger
}

type productView struct {
	Product  string `json:"product"`
	Quantity int    `json:"quantity"`
}

type setQuantityRequest struct {
	Quantity int `json:"quantity"`
}

func RegisterRoutes(r chi.Router, service InventoryService, logger *zap.Logger) {
	handler := &InventoryHandler{
		service: service,
		logger:  logger.With(zap.String("component", "InventoryHTTPHandler")),
	}

	r.Route("/inventory", func(r chi.Router) {
		r.Get("/{product}", handler.GetProduct)
		r.Put("/{product}", handler.SetProduct)
	})
}

func (h *InventoryHandler) GetProduct(w http.ResponseWriter, r *http.Request) {
	product := chi.URLParam(r, "product")

	quantity, err := h.service.GetQuantity(r.Context(), product)
	if err != nil {
		if errors.Is(err, stock_repo.ErrProductNotFound) {
			http.Error(w, "Product not found", http.StatusNotFound)
			return
		}
		h.logger.Error("Error getting product quantity", zap.String("product", product), zap.Error(err))
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(productView{Product: product, Quantity: quantity})
}

func (h *InventoryHandler) SetProduct(w http.ResponseWriter, r *http.Request) {
	product := chi.URLParam(r, "product")

	var req setQuantityRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.logger.Warn("Invalid request body for SetProduct", zap.Error(err))
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	if err := h.service.SetQuantity(r.Context(), product, req.Quantity); err != nil {
		if errors.Is(err, stock.ErrNegativeQuantity) {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		h.logger.Error("Error setting product quantity", zap.String("product", product), zap.Error(err))
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	h.logger.Info("Inventory level set",
		zap.String("product", product),
		zap.Int("quantity", req.Quantity))

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(productView{Product: product, Quantity: req.Quantity})
}
