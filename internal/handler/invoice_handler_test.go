package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/likecodingloveproblems/matchticketselling/internal/domain"
	"github.com/likecodingloveproblems/matchticketselling/internal/dto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

// MockReservationService is a mock implementation of ReservationService
type MockReservationService struct {
	mock.Mock
}

func (m *MockReservationService) AddItem(ctx context.Context, buyerID string, req *dto.AddItemRequest) (*dto.AddItemResponse, error) {
	args := m.Called(ctx, buyerID, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*dto.AddItemResponse), args.Error(1)
}

func (m *MockReservationService) RemoveItem(ctx context.Context, itemID, buyerID string) error {
	args := m.Called(ctx, itemID, buyerID)
	return args.Error(0)
}

func (m *MockReservationService) GetInvoice(ctx context.Context, invoiceID, buyerID string) (*dto.InvoiceResponse, error) {
	args := m.Called(ctx, invoiceID, buyerID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*dto.InvoiceResponse), args.Error(1)
}

func (m *MockReservationService) PayInvoice(ctx context.Context, invoiceID, buyerID string) (*dto.PayInvoiceResponse, error) {
	args := m.Called(ctx, invoiceID, buyerID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*dto.PayInvoiceResponse), args.Error(1)
}

func setupInvoiceTestRouter(handler *InvoiceHandler) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()

	// Middleware to set user_id from a header, standing in for auth
	router.Use(func(c *gin.Context) {
		userID := c.GetHeader("X-User-ID")
		if userID != "" {
			c.Set("user_id", userID)
		}
		c.Next()
	})

	invoices := router.Group("/api/v1/invoices")
	{
		invoices.POST("/items", handler.AddItem)
		invoices.DELETE("/items/:id", handler.RemoveItem)
		invoices.GET("/:id", handler.GetInvoice)
		invoices.POST("/:id/pay", handler.PayInvoice)
	}

	return router
}

func TestInvoiceHandler_AddItem_Success(t *testing.T) {
	mockService := new(MockReservationService)
	handler := NewInvoiceHandler(mockService)
	router := setupInvoiceTestRouter(handler)

	now := time.Now().UTC()
	expectedResponse := &dto.AddItemResponse{
		ItemID:     "item-1",
		InvoiceID:  "inv-1",
		SeatID:     "seat-1",
		SeatNumber: 7,
		MatchName:  "Persepolis:Esteghlal at 2026-03-01T18:00:00Z in Azadi",
		FullName:   "Ali Karimi",
		Price:      1500,
		TotalPrice: 1500,
		CreatedAt:  now,
	}

	mockService.On("AddItem", mock.Anything, "buyer-1", mock.AnythingOfType("*dto.AddItemRequest")).Return(expectedResponse, nil)

	reqBody := dto.AddItemRequest{SeatID: "seat-1", FullName: "Ali Karimi"}
	body, _ := json.Marshal(reqBody)

	req, _ := http.NewRequest("POST", "/api/v1/invoices/items", bytes.NewBuffer(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-User-ID", "buyer-1")

	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusCreated, w.Code)

	var response dto.AddItemResponse
	err := json.Unmarshal(w.Body.Bytes(), &response)
	assert.NoError(t, err)
	assert.Equal(t, "item-1", response.ItemID)
	assert.Equal(t, "inv-1", response.InvoiceID)
	assert.Equal(t, int64(1500), response.TotalPrice)

	mockService.AssertExpectations(t)
}

func TestInvoiceHandler_AddItem_Unauthorized(t *testing.T) {
	mockService := new(MockReservationService)
	handler := NewInvoiceHandler(mockService)
	router := setupInvoiceTestRouter(handler)

	reqBody := dto.AddItemRequest{SeatID: "seat-1", FullName: "Ali Karimi"}
	body, _ := json.Marshal(reqBody)

	req, _ := http.NewRequest("POST", "/api/v1/invoices/items", bytes.NewBuffer(body))
	req.Header.Set("Content-Type", "application/json")
	// No X-User-ID header

	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestInvoiceHandler_AddItem_InvalidRequest(t *testing.T) {
	mockService := new(MockReservationService)
	handler := NewInvoiceHandler(mockService)
	router := setupInvoiceTestRouter(handler)

	// Missing required fields
	body, _ := json.Marshal(map[string]string{"seat_id": "seat-1"})

	req, _ := http.NewRequest("POST", "/api/v1/invoices/items", bytes.NewBuffer(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-User-ID", "buyer-1")

	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestInvoiceHandler_AddItem_SeatAlreadyReserved(t *testing.T) {
	mockService := new(MockReservationService)
	handler := NewInvoiceHandler(mockService)
	router := setupInvoiceTestRouter(handler)

	mockService.On("AddItem", mock.Anything, "buyer-1", mock.AnythingOfType("*dto.AddItemRequest")).Return(nil, domain.ErrSeatAlreadyReserved)

	reqBody := dto.AddItemRequest{SeatID: "seat-1", FullName: "Ali Karimi"}
	body, _ := json.Marshal(reqBody)

	req, _ := http.NewRequest("POST", "/api/v1/invoices/items", bytes.NewBuffer(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-User-ID", "buyer-1")

	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusConflict, w.Code)

	var response dto.ErrorResponse
	err := json.Unmarshal(w.Body.Bytes(), &response)
	assert.NoError(t, err)
	assert.Equal(t, "SEAT_ALREADY_RESERVED", response.Code)
}

func TestInvoiceHandler_AddItem_Contention(t *testing.T) {
	mockService := new(MockReservationService)
	handler := NewInvoiceHandler(mockService)
	router := setupInvoiceTestRouter(handler)

	mockService.On("AddItem", mock.Anything, "buyer-1", mock.AnythingOfType("*dto.AddItemRequest")).Return(nil, domain.ErrProcessFailed)

	reqBody := dto.AddItemRequest{SeatID: "seat-1", FullName: "Ali Karimi"}
	body, _ := json.Marshal(reqBody)

	req, _ := http.NewRequest("POST", "/api/v1/invoices/items", bytes.NewBuffer(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-User-ID", "buyer-1")

	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusServiceUnavailable, w.Code)

	var response dto.ErrorResponse
	err := json.Unmarshal(w.Body.Bytes(), &response)
	assert.NoError(t, err)
	assert.Equal(t, "PROCESS_FAILED", response.Code)
}

func TestInvoiceHandler_RemoveItem_Success(t *testing.T) {
	mockService := new(MockReservationService)
	handler := NewInvoiceHandler(mockService)
	router := setupInvoiceTestRouter(handler)

	mockService.On("RemoveItem", mock.Anything, "item-1", "buyer-1").Return(nil)

	req, _ := http.NewRequest("DELETE", "/api/v1/invoices/items/item-1", nil)
	req.Header.Set("X-User-ID", "buyer-1")

	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNoContent, w.Code)
	mockService.AssertExpectations(t)
}

func TestInvoiceHandler_RemoveItem_Forbidden(t *testing.T) {
	mockService := new(MockReservationService)
	handler := NewInvoiceHandler(mockService)
	router := setupInvoiceTestRouter(handler)

	mockService.On("RemoveItem", mock.Anything, "item-1", "buyer-2").Return(domain.ErrNotInvoiceOwner)

	req, _ := http.NewRequest("DELETE", "/api/v1/invoices/items/item-1", nil)
	req.Header.Set("X-User-ID", "buyer-2")

	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestInvoiceHandler_RemoveItem_NotPending(t *testing.T) {
	mockService := new(MockReservationService)
	handler := NewInvoiceHandler(mockService)
	router := setupInvoiceTestRouter(handler)

	mockService.On("RemoveItem", mock.Anything, "item-1", "buyer-1").Return(domain.ErrOnlyPendingInvoice)

	req, _ := http.NewRequest("DELETE", "/api/v1/invoices/items/item-1", nil)
	req.Header.Set("X-User-ID", "buyer-1")

	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusConflict, w.Code)

	var response dto.ErrorResponse
	err := json.Unmarshal(w.Body.Bytes(), &response)
	assert.NoError(t, err)
	assert.Equal(t, "INVOICE_NOT_PENDING", response.Code)
}

func TestInvoiceHandler_GetInvoice_Success(t *testing.T) {
	mockService := new(MockReservationService)
	handler := NewInvoiceHandler(mockService)
	router := setupInvoiceTestRouter(handler)

	expectedResponse := &dto.InvoiceResponse{
		ID:         "inv-1",
		BuyerID:    "buyer-1",
		Status:     "PENDING",
		TotalPrice: 3000,
		Items: []dto.InvoiceItemResponse{
			{ID: "item-1", SeatID: "seat-1", SeatNumber: 1, Price: 1500},
			{ID: "item-2", SeatID: "seat-2", SeatNumber: 2, Price: 1500},
		},
	}

	mockService.On("GetInvoice", mock.Anything, "inv-1", "buyer-1").Return(expectedResponse, nil)

	req, _ := http.NewRequest("GET", "/api/v1/invoices/inv-1", nil)
	req.Header.Set("X-User-ID", "buyer-1")

	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)

	var response dto.InvoiceResponse
	err := json.Unmarshal(w.Body.Bytes(), &response)
	assert.NoError(t, err)
	assert.Equal(t, "inv-1", response.ID)
	assert.Len(t, response.Items, 2)

	mockService.AssertExpectations(t)
}

func TestInvoiceHandler_GetInvoice_NotFound(t *testing.T) {
	mockService := new(MockReservationService)
	handler := NewInvoiceHandler(mockService)
	router := setupInvoiceTestRouter(handler)

	mockService.On("GetInvoice", mock.Anything, "inv-x", "buyer-1").Return(nil, domain.ErrInvoiceNotFound)

	req, _ := http.NewRequest("GET", "/api/v1/invoices/inv-x", nil)
	req.Header.Set("X-User-ID", "buyer-1")

	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestInvoiceHandler_PayInvoice_Success(t *testing.T) {
	mockService := new(MockReservationService)
	handler := NewInvoiceHandler(mockService)
	router := setupInvoiceTestRouter(handler)

	paidAt := time.Now().UTC()
	expectedResponse := &dto.PayInvoiceResponse{
		InvoiceID:  "inv-1",
		Status:     "PAID",
		TotalPrice: 3000,
		PaidAt:     &paidAt,
	}

	mockService.On("PayInvoice", mock.Anything, "inv-1", "buyer-1").Return(expectedResponse, nil)

	req, _ := http.NewRequest("POST", "/api/v1/invoices/inv-1/pay", nil)
	req.Header.Set("X-User-ID", "buyer-1")

	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)

	var response dto.PayInvoiceResponse
	err := json.Unmarshal(w.Body.Bytes(), &response)
	assert.NoError(t, err)
	assert.Equal(t, "PAID", response.Status)
	assert.Equal(t, int64(3000), response.TotalPrice)

	mockService.AssertExpectations(t)
}

func TestInvoiceHandler_PayInvoice_NotFound(t *testing.T) {
	mockService := new(MockReservationService)
	handler := NewInvoiceHandler(mockService)
	router := setupInvoiceTestRouter(handler)

	mockService.On("PayInvoice", mock.Anything, "inv-1", "buyer-1").Return(nil, domain.ErrInvoiceNotFound)

	req, _ := http.NewRequest("POST", "/api/v1/invoices/inv-1/pay", nil)
	req.Header.Set("X-User-ID", "buyer-1")

	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNotFound, w.Code)

	var response dto.ErrorResponse
	err := json.Unmarshal(w.Body.Bytes(), &response)
	assert.NoError(t, err)
	assert.Equal(t, "INVOICE_NOT_FOUND", response.Code)
}
