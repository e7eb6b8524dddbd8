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

// MockMatchService is a mock implementation of MatchService
type MockMatchService struct {
	mock.Mock
}

func (m *MockMatchService) CreateMatch(ctx context.Context, req *dto.CreateMatchRequest) (*dto.MatchResponse, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*dto.MatchResponse), args.Error(1)
}

func (m *MockMatchService) GetMatch(ctx context.Context, matchID string) (*dto.MatchResponse, error) {
	args := m.Called(ctx, matchID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*dto.MatchResponse), args.Error(1)
}

func (m *MockMatchService) ListSeats(ctx context.Context, matchID string) ([]dto.SeatResponse, error) {
	args := m.Called(ctx, matchID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]dto.SeatResponse), args.Error(1)
}

func setupMatchTestRouter(handler *MatchHandler) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()

	matches := router.Group("/api/v1/matches")
	{
		matches.POST("", handler.CreateMatch)
		matches.GET("/:id", handler.GetMatch)
		matches.GET("/:id/seats", handler.ListSeats)
	}

	return router
}

func TestMatchHandler_CreateMatch_Success(t *testing.T) {
	mockService := new(MockMatchService)
	handler := NewMatchHandler(mockService)
	router := setupMatchTestRouter(handler)

	startsAt := time.Date(2026, 3, 1, 18, 0, 0, 0, time.UTC)
	expectedResponse := &dto.MatchResponse{
		ID:        "match-1",
		Name:      "Persepolis:Esteghlal at 2026-03-01T18:00:00Z in Azadi",
		HostTeam:  "Persepolis",
		GuestTeam: "Esteghlal",
		Stadium:   "Azadi",
		StartsAt:  startsAt,
		SeatPrice: 1500,
		Capacity:  100,
	}

	mockService.On("CreateMatch", mock.Anything, mock.AnythingOfType("*dto.CreateMatchRequest")).Return(expectedResponse, nil)

	reqBody := dto.CreateMatchRequest{
		HostTeam:  "Persepolis",
		GuestTeam: "Esteghlal",
		Stadium:   "Azadi",
		StartsAt:  startsAt,
		SeatPrice: 1500,
		Capacity:  100,
	}
	body, _ := json.Marshal(reqBody)

	req, _ := http.NewRequest("POST", "/api/v1/matches", bytes.NewBuffer(body))
	req.Header.Set("Content-Type", "application/json")

	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusCreated, w.Code)

	var response dto.MatchResponse
	err := json.Unmarshal(w.Body.Bytes(), &response)
	assert.NoError(t, err)
	assert.Equal(t, "match-1", response.ID)
	assert.Equal(t, 100, response.Capacity)

	mockService.AssertExpectations(t)
}

func TestMatchHandler_CreateMatch_InvalidRequest(t *testing.T) {
	mockService := new(MockMatchService)
	handler := NewMatchHandler(mockService)
	router := setupMatchTestRouter(handler)

	// Zero capacity fails binding validation
	body, _ := json.Marshal(map[string]interface{}{
		"host_team":  "Persepolis",
		"guest_team": "Esteghlal",
		"stadium":    "Azadi",
		"starts_at":  "2026-03-01T18:00:00Z",
		"seat_price": 1500,
		"capacity":   0,
	})

	req, _ := http.NewRequest("POST", "/api/v1/matches", bytes.NewBuffer(body))
	req.Header.Set("Content-Type", "application/json")

	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestMatchHandler_CreateMatch_StadiumConflict(t *testing.T) {
	mockService := new(MockMatchService)
	handler := NewMatchHandler(mockService)
	router := setupMatchTestRouter(handler)

	mockService.On("CreateMatch", mock.Anything, mock.AnythingOfType("*dto.CreateMatchRequest")).Return(nil, domain.ErrStadiumMatchConflict)

	reqBody := dto.CreateMatchRequest{
		HostTeam:  "Sepahan",
		GuestTeam: "Tractor",
		Stadium:   "Azadi",
		StartsAt:  time.Date(2026, 3, 1, 18, 0, 0, 0, time.UTC),
		SeatPrice: 1500,
		Capacity:  100,
	}
	body, _ := json.Marshal(reqBody)

	req, _ := http.NewRequest("POST", "/api/v1/matches", bytes.NewBuffer(body))
	req.Header.Set("Content-Type", "application/json")

	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusConflict, w.Code)

	var response dto.ErrorResponse
	err := json.Unmarshal(w.Body.Bytes(), &response)
	assert.NoError(t, err)
	assert.Equal(t, "STADIUM_CONFLICT", response.Code)
}

func TestMatchHandler_GetMatch_NotFound(t *testing.T) {
	mockService := new(MockMatchService)
	handler := NewMatchHandler(mockService)
	router := setupMatchTestRouter(handler)

	mockService.On("GetMatch", mock.Anything, "missing").Return(nil, domain.ErrMatchNotFound)

	req, _ := http.NewRequest("GET", "/api/v1/matches/missing", nil)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestMatchHandler_ListSeats_Success(t *testing.T) {
	mockService := new(MockMatchService)
	handler := NewMatchHandler(mockService)
	router := setupMatchTestRouter(handler)

	seats := []dto.SeatResponse{
		{ID: "seat-1", Number: 1, Price: 1500},
		{ID: "seat-2", Number: 2, Price: 1500, IsReserved: true, FullName: "Ali Karimi"},
	}

	mockService.On("ListSeats", mock.Anything, "match-1").Return(seats, nil)

	req, _ := http.NewRequest("GET", "/api/v1/matches/match-1/seats", nil)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)

	var response struct {
		Seats []dto.SeatResponse `json:"seats"`
	}
	err := json.Unmarshal(w.Body.Bytes(), &response)
	assert.NoError(t, err)
	assert.Len(t, response.Seats, 2)
	assert.True(t, response.Seats[1].IsReserved)

	mockService.AssertExpectations(t)
}
