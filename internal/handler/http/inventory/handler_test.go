package inventory

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"orderhub/internal/app/stock"
	"orderhub/internal/repository/stock_repo"
)

type fakeInventoryService struct {
	quantities map[string]int
}

func newFakeInventoryService() *fakeInventoryService {
	return &fakeInventoryService{quantities: make(map[string]int)}
}

func (s *fakeInventoryService) GetQuantity(_ context.Context, product string) (int, error) {
	quantity, ok := s.quantities[product]
	if !ok {
		return 0, stock_repo.ErrProductNotFound
	}
	return quantity, nil
}

func (s *fakeInventoryService) SetQuantity(_ context.Context, product string, quantity int) error {
	if quantity < 0 {
		return stock.ErrNegativeQuantity
	}
	s.quantities[product] = quantity
	return nil
}

func newTestRouter(service InventoryService) http.Handler {
	r := chi.NewRouter()
	RegisterRoutes(r, service, zap.NewNop())
	return r
}

func TestSetProduct_SeedsInventory(t *testing.T) {
	service := newFakeInventoryService()
	router := newTestRouter(service)

	req := httptest.NewRequest(http.MethodPut, "/inventory/Laptop", bytes.NewReader([]byte(`{"quantity":10}`)))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 10, service.quantities["Laptop"])

	var view productView
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&view))
	assert.Equal(t, "Laptop", view.Product)
	assert.Equal(t, 10, view.Quantity)
}

func TestSetProduct_RejectsNegativeQuantity(t *testing.T) {
	router := newTestRouter(newFakeInventoryService())

	req := httptest.NewRequest(http.MethodPut, "/inventory/Laptop", bytes.NewReader([]byte(`{"quantity":-1}`)))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSetProduct_MalformedBody(t *testing.T) {
	router := newTestRouter(newFakeInventoryService())

	req := httptest.NewRequest(http.MethodPut, "/inventory/Laptop", bytes.NewReader([]byte("{")))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGetProduct_Found(t *testing.T) {
	service := newFakeInventoryService()
	service.quantities["Laptop"] = 7
	router := newTestRouter(service)

	req := httptest.NewRequest(http.MethodGet, "/inventory/Laptop", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var view productView
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&view))
	assert.Equal(t, 7, view.Quantity)
}

func TestGetProduct_NotFound(t *testing.T) {
	router := newTestRouter(newFakeInventoryService())

	req := httptest.NewRequest(http.MethodGet, "/inventory/missing", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}
