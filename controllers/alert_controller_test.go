package controllers

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"tokenalert_backend/config"
	"tokenalert_backend/middleware"
	"tokenalert_backend/models"
	"tokenalert_backend/services/alerts"
	"tokenalert_backend/services/market"
	"tokenalert_backend/services/monitor"
)

type stubRepo struct {
	mu    sync.Mutex
	saved map[string]models.Alert
}

func (s *stubRepo) Load() ([]models.Alert, error) { return nil, nil }

func (s *stubRepo) Save(alert models.Alert) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.saved == nil {
		s.saved = make(map[string]models.Alert)
	}
	s.saved[alert.ID] = alert
	return nil
}

func (s *stubRepo) Delete(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.saved, id)
	return nil
}

type noopTransport struct{}

func (noopTransport) Send(url string, timeout time.Duration) ([]byte, int, error) {
	return []byte("[]"), 200, nil
}

type noopNotifier struct{}

func (noopNotifier) Notify(alert models.Alert, snapshot market.PriceSnapshot) {}

func newTestRouter(t *testing.T) (*gin.Engine, *alerts.Registry) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	config.AppConfig = &config.Config{JWTSecret: "test-secret"}

	registry := alerts.NewRegistry(&stubRepo{}, alerts.Quotas{FreeTier: 2, PremiumTier: 10, Capacity: 100})
	cache := market.NewPriceCache()
	fetcher := market.NewFetcher(noopTransport{}, market.FetcherOptions{MaxRetries: 1})
	loop := monitor.NewLoop(registry, fetcher, cache, noopNotifier{}, nil, nil, monitor.Options{
		Symbols: []string{"bitcoin"},
	})

	router := gin.New()
	api := router.Group("/api")
	alertGroup := api.Group("/alerts")
	alertGroup.Use(middleware.JWTAuthMiddleware())

	ac := NewAlertController(registry, loop)
	alertGroup.GET("", ac.ListAlerts)
	alertGroup.POST("", ac.CreateAlert)
	alertGroup.DELETE("/:id", ac.DeleteAlert)
	alertGroup.POST("/:id/pause", ac.PauseAlert)
	alertGroup.POST("/:id/resume", ac.ResumeAlert)

	return router, registry
}

func decimalFromInt(v int64) decimal.Decimal {
	return decimal.NewFromInt(v)
}

func authHeader(t *testing.T, userID string, tier models.UserTier) string {
	t.Helper()
	token, err := middleware.GenerateToken(userID, tier, time.Hour)
	if err != nil {
		t.Fatalf("generate token: %v", err)
	}
	return "Bearer " + token
}

func doRequest(router *gin.Engine, method, path, auth string, body interface{}) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	if auth != "" {
		req.Header.Set("Authorization", auth)
	}
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestCreateAlertEndpoint(t *testing.T) {
	router, _ := newTestRouter(t)
	auth := authHeader(t, "user-1", models.TierFree)

	w := doRequest(router, http.MethodPost, "/api/alerts", auth, gin.H{
		"symbol":       "bitcoin",
		"kind":         "price_above",
		"target_value": 70000,
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", w.Code, w.Body.String())
	}

	var resp struct {
		Alert models.Alert `json:"alert"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Alert.UserID != "user-1" || resp.Alert.Status != models.AlertStatusActive {
		t.Errorf("unexpected alert: %+v", resp.Alert)
	}
	if resp.Alert.Message != "Alert: bitcoin above 70000.00" {
		t.Errorf("unexpected message %q", resp.Alert.Message)
	}
}

func TestCreateAlertRequiresAuth(t *testing.T) {
	router, _ := newTestRouter(t)

	w := doRequest(router, http.MethodPost, "/api/alerts", "", gin.H{
		"symbol":       "bitcoin",
		"kind":         "price_above",
		"target_value": 70000,
	})
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", w.Code)
	}
}

func TestCreateAlertValidationError(t *testing.T) {
	router, _ := newTestRouter(t)
	auth := authHeader(t, "user-1", models.TierFree)

	w := doRequest(router, http.MethodPost, "/api/alerts", auth, gin.H{
		"symbol":       "bitcoin",
		"kind":         "price_sideways",
		"target_value": 70000,
	})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d: %s", w.Code, w.Body.String())
	}
}

func TestCreateAlertQuotaError(t *testing.T) {
	router, _ := newTestRouter(t)
	auth := authHeader(t, "user-1", models.TierFree)

	body := gin.H{"symbol": "bitcoin", "kind": "price_above", "target_value": 70000}
	for i := 0; i < 2; i++ {
		if w := doRequest(router, http.MethodPost, "/api/alerts", auth, body); w.Code != http.StatusCreated {
			t.Fatalf("alert %d: expected 201, got %d", i+1, w.Code)
		}
	}
	w := doRequest(router, http.MethodPost, "/api/alerts", auth, body)
	if w.Code != http.StatusForbidden {
		t.Fatalf("expected 403 on quota breach, got %d: %s", w.Code, w.Body.String())
	}
}

func TestListAlertsScopedToUser(t *testing.T) {
	router, registry := newTestRouter(t)

	for _, user := range []string{"user-1", "user-2"} {
		if _, err := registry.Create(alerts.CreateInput{
			UserID: user, Tier: models.TierFree, Symbol: "bitcoin",
			Kind: models.AlertPriceAbove, TargetValue: decimalFromInt(70000),
		}); err != nil {
			t.Fatalf("create for %s: %v", user, err)
		}
	}

	w := doRequest(router, http.MethodGet, "/api/alerts", authHeader(t, "user-1", models.TierFree), nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	var resp struct {
		Alerts []models.Alert `json:"alerts"`
		Count  int            `json:"count"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Count != 1 || resp.Alerts[0].UserID != "user-1" {
		t.Errorf("listing should only contain the caller's alerts: %+v", resp)
	}
}

func TestDeleteAlertHidesForeignAlerts(t *testing.T) {
	router, registry := newTestRouter(t)

	alert, err := registry.Create(alerts.CreateInput{
		UserID: "user-2", Tier: models.TierFree, Symbol: "bitcoin",
		Kind: models.AlertPriceAbove, TargetValue: decimalFromInt(70000),
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	w := doRequest(router, http.MethodDelete, "/api/alerts/"+alert.ID, authHeader(t, "user-1", models.TierFree), nil)
	if w.Code != http.StatusNotFound {
		t.Fatalf("foreign alert should look missing, got %d", w.Code)
	}

	w = doRequest(router, http.MethodDelete, "/api/alerts/"+alert.ID, authHeader(t, "user-2", models.TierFree), nil)
	if w.Code != http.StatusOK {
		t.Fatalf("owner delete should pass, got %d: %s", w.Code, w.Body.String())
	}
}

func TestPauseResumeEndpoints(t *testing.T) {
	router, registry := newTestRouter(t)
	auth := authHeader(t, "user-1", models.TierFree)

	alert, err := registry.Create(alerts.CreateInput{
		UserID: "user-1", Tier: models.TierFree, Symbol: "bitcoin",
		Kind: models.AlertPriceAbove, TargetValue: decimalFromInt(70000),
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	if w := doRequest(router, http.MethodPost, "/api/alerts/"+alert.ID+"/pause", auth, nil); w.Code != http.StatusOK {
		t.Fatalf("pause: expected 200, got %d", w.Code)
	}
	// pausing twice is an invalid transition
	if w := doRequest(router, http.MethodPost, "/api/alerts/"+alert.ID+"/pause", auth, nil); w.Code != http.StatusBadRequest {
		t.Fatalf("double pause: expected 400, got %d", w.Code)
	}
	if w := doRequest(router, http.MethodPost, "/api/alerts/"+alert.ID+"/resume", auth, nil); w.Code != http.StatusOK {
		t.Fatalf("resume: expected 200, got %d", w.Code)
	}
}
