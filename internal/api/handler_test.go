package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"math/rand"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"securemarket/internal/models"
	"securemarket/internal/service"
	"securemarket/internal/state"
	"securemarket/internal/store"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memoryIdempotency struct {
	mu   sync.Mutex
	keys map[string]interface{}
}

func (m *memoryIdempotency) CheckIdempotencyKey(_ context.Context, key string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.keys[key]
	return ok, nil
}

func (m *memoryIdempotency) SetIdempotencyKey(_ context.Context, key string, value interface{}, _ time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.keys[key] = value
	return nil
}

type recordingPublisher struct {
	intents [][]byte
	err     error
}

func (p *recordingPublisher) PublishIntentCommand(_ context.Context, intent []byte) (string, error) {
	if p.err != nil {
		return "", p.err
	}
	p.intents = append(p.intents, intent)
	return "evt-1", nil
}

func setupRouter(t *testing.T, opts ...Option) (*gin.Engine, *service.ApplicationStore) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	repo := service.NewSnapshotRepository("", store.NewMemoryStore(), nil, nil)
	seed := func() models.Snapshot {
		return state.Seed(time.Date(2024, 5, 10, 0, 0, 0, 0, time.UTC), rand.New(rand.NewSource(1)))
	}
	app := service.NewApplicationStore(repo, nil, state.DefaultEnv(), seed)
	require.NoError(t, app.Restore(context.Background()))

	router := gin.New()
	NewHandler(app, opts...).SetupRoutes(router)
	return router, app
}

func do(router *gin.Engine, method, path, body string, headers ...string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return body
}

func TestHealthCheck(t *testing.T) {
	router, _ := setupRouter(t)

	w := do(router, http.MethodGet, "/health", "")

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "healthy", decode(t, w)["status"])
}

func TestGetStateRedactsPasswords(t *testing.T) {
	router, _ := setupRouter(t)

	w := do(router, http.MethodGet, "/api/v1/state", "")

	require.Equal(t, http.StatusOK, w.Code)
	var snap models.Snapshot
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &snap))
	require.Len(t, snap.Users, 2)
	for _, u := range snap.Users {
		assert.Empty(t, u.Password)
	}
}

func TestPostIntentApplied(t *testing.T) {
	router, app := setupRouter(t)

	w := do(router, http.MethodPost, "/api/v1/intents", `{"type":"LOGIN","email":"user","password":"user"}`)

	require.Equal(t, http.StatusOK, w.Code)
	body := decode(t, w)
	assert.Equal(t, "LOGIN", body["kind"])
	assert.Equal(t, true, body["applied"])

	st := body["state"].(map[string]interface{})
	assert.Equal(t, float64(3), st["unreadMessages"])
	assert.Equal(t, state.SeedUserID, app.Snapshot().CurrentUser.ID)
}

func TestPostIntentStatusCodes(t *testing.T) {
	tests := []struct {
		name   string
		body   string
		status int
		reason string
	}{
		{"malformed", `{"type":`, http.StatusBadRequest, "internal"},
		{"unknown kind", `{"type":"SELF_DESTRUCT"}`, http.StatusUnprocessableEntity, "unknown_intent"},
		{"not found", `{"type":"REMOVE_FROM_CART","productId":"nope"}`, http.StatusNotFound, "not_found"},
		{"bad credentials", `{"type":"LOGIN","email":"user","password":"nope"}`, http.StatusUnauthorized, "invalid_credentials"},
		{"no session", `{"type":"ADD_REVIEW","review":{"productId":"vpn-service","rating":5}}`, http.StatusUnauthorized, "not_authenticated"},
		{"last admin", `{"type":"DELETE_USER","userId":"admin-1"}`, http.StatusConflict, "last_admin"},
		{"invalid product", `{"type":"ADD_PRODUCT","product":{"id":"x","price":-1,"category":"digital"}}`, http.StatusUnprocessableEntity, "invalid_product"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			router, _ := setupRouter(t)

			w := do(router, http.MethodPost, "/api/v1/intents", tt.body)

			assert.Equal(t, tt.status, w.Code)
			assert.Equal(t, tt.reason, decode(t, w)["reason"])
		})
	}
}

func TestPostIntentIdempotency(t *testing.T) {
	keys := &memoryIdempotency{keys: map[string]interface{}{}}
	router, app := setupRouter(t, WithIdempotency(keys, time.Minute))
	body := `{"type":"ADD_TO_CART","product":{"id":"vpn-service","price":99.99,"category":"digital"}}`

	first := do(router, http.MethodPost, "/api/v1/intents", body, "Idempotency-Key", "k-1")
	second := do(router, http.MethodPost, "/api/v1/intents", body, "Idempotency-Key", "k-1")

	assert.Equal(t, http.StatusOK, first.Code)
	assert.Equal(t, http.StatusOK, second.Code)
	assert.Equal(t, true, decode(t, second)["duplicate"])
	require.Len(t, app.Snapshot().Cart, 1)
	assert.Equal(t, 1, app.Snapshot().Cart[0].Quantity)
}

func TestPostIntentAsync(t *testing.T) {
	router, _ := setupRouter(t)
	w := do(router, http.MethodPost, "/api/v1/intents?async=true", `{"type":"CLEAR_CART"}`)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)

	pub := &recordingPublisher{}
	router, app := setupRouter(t, WithCommandPublisher(pub))
	w = do(router, http.MethodPost, "/api/v1/intents?async=true", `{"type":"LOGIN","email":"user","password":"user"}`)

	require.Equal(t, http.StatusAccepted, w.Code)
	assert.Equal(t, "evt-1", decode(t, w)["event_id"])
	require.Len(t, pub.intents, 1)
	assert.JSONEq(t, `{"type":"LOGIN","email":"user","password":"user"}`, string(pub.intents[0]))
	assert.Nil(t, app.Snapshot().CurrentUser, "async intents are applied by the worker")

	pub.err = errors.New("broker down")
	w = do(router, http.MethodPost, "/api/v1/intents?async=true", `{"type":"LOGOUT"}`)
	assert.Equal(t, http.StatusInternalServerError, w.Code)
}

func TestListProducts(t *testing.T) {
	router, _ := setupRouter(t)

	w := do(router, http.MethodGet, "/api/v1/products?category=physical&sort=price-high", "")

	require.Equal(t, http.StatusOK, w.Code)
	var body struct {
		Count    int              `json:"count"`
		Products []models.Product `json:"products"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, 4, body.Count)
	assert.Equal(t, "encrypted-phone", body.Products[0].ID)
}

func TestGetProduct(t *testing.T) {
	router, _ := setupRouter(t)

	w := do(router, http.MethodGet, "/api/v1/products/vpn-service", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "Premium VPN Service", decode(t, w)["title"])

	w = do(router, http.MethodGet, "/api/v1/products/nope", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestCartSummary(t *testing.T) {
	router, _ := setupRouter(t)
	do(router, http.MethodPost, "/api/v1/intents", `{"type":"ADD_TO_CART","product":{"id":"secure-browser","price":19.99,"category":"digital"}}`)

	w := do(router, http.MethodGet, "/api/v1/cart/summary", "")

	require.Equal(t, http.StatusOK, w.Code)
	summary := decode(t, w)["summary"].(map[string]interface{})
	assert.Equal(t, "19.99", summary["subtotal"])
	assert.Equal(t, "9.99", summary["shipping"])
	assert.Equal(t, "29.98", summary["total"])
}

func TestPasswordStrength(t *testing.T) {
	router, _ := setupRouter(t)

	w := do(router, http.MethodPost, "/api/v1/password/strength", `{"password":"Abcdef1!"}`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, true, decode(t, w)["acceptable"])

	w = do(router, http.MethodPost, "/api/v1/password/strength", `{}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestAdminStatsRequiresAdminSession(t *testing.T) {
	router, _ := setupRouter(t)

	w := do(router, http.MethodGet, "/api/v1/admin/stats", "")
	assert.Equal(t, http.StatusForbidden, w.Code)

	do(router, http.MethodPost, "/api/v1/intents", `{"type":"LOGIN","email":"admin","password":"admin"}`)
	w = do(router, http.MethodGet, "/api/v1/admin/stats", "")

	require.Equal(t, http.StatusOK, w.Code)
	body := decode(t, w)
	assert.Equal(t, float64(12), body["products"])
	assert.Equal(t, float64(2), body["users"])
}
