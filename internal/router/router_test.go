package router

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/YouHyuksoo/HANES-sub002/internal/config"
	"github.com/YouHyuksoo/HANES-sub002/internal/models"
	"github.com/YouHyuksoo/HANES-sub002/internal/provider"

	"github.com/gin-gonic/gin"
	"github.com/glebarez/sqlite"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

type envelope struct {
	Success    bool            `json:"success"`
	StatusCode int             `json:"status_code"`
	Message    string          `json:"message"`
	Data       json.RawMessage `json:"data"`
	Pagination *struct {
		Total int64 `json:"total"`
	} `json:"pagination"`
}

type routerFixture struct {
	engine    *gin.Engine
	container *provider.Container
}

func setupRouterTest(t *testing.T, authEnabled bool) *routerFixture {
	t.Helper()
	gin.SetMode(gin.TestMode)

	dsn := fmt.Sprintf("file:router_test_%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{TranslateError: true})
	require.NoError(t, err)
	require.NoError(t, models.AutoMigrate(db))

	cfg := &config.Config{
		Server: config.ServerConfig{Mode: "debug"},
		Auth:   config.AuthConfig{Enabled: authEnabled, JWTSecret: testJWTSecret},
		Shipping: config.ShippingConfig{
			MaxBatchSize: 50,
		},
	}
	reg := prometheus.NewRegistry()
	container := provider.NewContainer(cfg, db, reg)
	return &routerFixture{
		engine:    SetupRouter(cfg, container, reg),
		container: container,
	}
}

func (f *routerFixture) do(t *testing.T, method, path string, body interface{}, token string) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	f.engine.ServeHTTP(w, req)

	var resp envelope
	if strings.HasPrefix(w.Header().Get("Content-Type"), "application/json") {
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp), w.Body.String())
	}
	return w, resp
}

func (f *routerFixture) createPart(t *testing.T, code string) uint {
	t.Helper()
	part := &models.Part{PartCode: code, PartName: "part " + code}
	require.NoError(t, f.container.DB.Create(part).Error)
	return part.ID
}

type idView struct {
	ID       uint   `json:"id"`
	Status   string `json:"status"`
	BoxCount int    `json:"box_count"`
	TotalQty int    `json:"total_qty"`
}

func decodeData(t *testing.T, resp envelope, dest interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(resp.Data, dest), string(resp.Data))
}

func TestShippingFlowOverHTTP(t *testing.T) {
	f := setupRouterTest(t, false)
	partID := f.createPart(t, "P-100")

	w, resp := f.do(t, http.MethodPost, "/api/v1/shipping/boxes", gin.H{"box_no": "BOX-1", "part_id": partID, "serials": []string{"S1", "S2", "S3"}}, "")
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	require.True(t, resp.Success)
	var box idView
	decodeData(t, resp, &box)
	require.Equal(t, "OPEN", box.Status)

	w, _ = f.do(t, http.MethodPost, fmt.Sprintf("/api/v1/shipping/boxes/%d/close", box.ID), nil, "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w, resp = f.do(t, http.MethodPost, "/api/v1/shipping/pallets", gin.H{"pallet_no": "PLT-1"}, "")
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var pallet idView
	decodeData(t, resp, &pallet)

	w, resp = f.do(t, http.MethodPost, fmt.Sprintf("/api/v1/shipping/pallets/%d/boxes", pallet.ID), gin.H{"box_ids": []uint{box.ID}}, "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	decodeData(t, resp, &pallet)
	require.Equal(t, 1, pallet.BoxCount)
	require.Equal(t, 3, pallet.TotalQty)

	w, _ = f.do(t, http.MethodPost, fmt.Sprintf("/api/v1/shipping/pallets/%d/close", pallet.ID), nil, "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w, resp = f.do(t, http.MethodPost, "/api/v1/shipping/shipments", gin.H{"ship_no": "SHP-1", "customer": "ACME", "ship_date": "2026-08-10"}, "")
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var shipment idView
	decodeData(t, resp, &shipment)
	require.Equal(t, "PREPARING", shipment.Status)

	w, _ = f.do(t, http.MethodGet, fmt.Sprintf("/api/v1/shipping/shipments/%d/verify-pallet?pallet_no=PLT-1", shipment.ID), nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	require.Contains(t, w.Body.String(), "WRONG_SHIPMENT")

	w, _ = f.do(t, http.MethodPost, fmt.Sprintf("/api/v1/shipping/shipments/%d/pallets", shipment.ID), gin.H{"pallet_ids": []uint{pallet.ID}}, "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	for _, action := range []string{"mark-loaded", "mark-shipped"} {
		w, _ = f.do(t, http.MethodPost, fmt.Sprintf("/api/v1/shipping/shipments/%d/%s", shipment.ID, action), nil, "")
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	}

	_, resp = f.do(t, http.MethodGet, fmt.Sprintf("/api/v1/shipping/shipments/%d", shipment.ID), nil, "")
	decodeData(t, resp, &shipment)
	require.Equal(t, "SHIPPED", shipment.Status)
	require.Equal(t, 3, shipment.TotalQty)

	_, resp = f.do(t, http.MethodGet, "/api/v1/shipping/boxes/box-no/BOX-1", nil, "")
	decodeData(t, resp, &box)
	require.Equal(t, "SHIPPED", box.Status)

	w, resp = f.do(t, http.MethodGet, "/api/v1/shipping/shipments/stats/daily?from=2026-08-10&to=2026-08-10", nil, "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var daily struct {
		Totals struct {
			ShipmentCount int `json:"shipment_count"`
			TotalQty      int `json:"total_qty"`
		} `json:"totals"`
	}
	decodeData(t, resp, &daily)
	require.Equal(t, 1, daily.Totals.ShipmentCount)
	require.Equal(t, 3, daily.Totals.TotalQty)

	_, resp = f.do(t, http.MethodGet, "/api/v1/shipping/shipments/erp/unsynced", nil, "")
	var unsynced []idView
	decodeData(t, resp, &unsynced)
	require.Len(t, unsynced, 1)

	w, _ = f.do(t, http.MethodPost, "/api/v1/shipping/shipments/erp/mark-synced", gin.H{"shipment_ids": []uint{shipment.ID}}, "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	_, resp = f.do(t, http.MethodGet, "/api/v1/shipping/shipments/erp/unsynced", nil, "")
	decodeData(t, resp, &unsynced)
	require.Empty(t, unsynced)

	_, resp = f.do(t, http.MethodGet, "/api/v1/shipping/shipments?status=shipped", nil, "")
	require.NotNil(t, resp.Pagination)
	require.EqualValues(t, 1, resp.Pagination.Total)

	_, resp = f.do(t, http.MethodGet, fmt.Sprintf("/api/v1/shipping/shipments/%d/events", shipment.ID), nil, "")
	var events []struct {
		ToStatus string `json:"to_status"`
	}
	decodeData(t, resp, &events)
	require.Len(t, events, 2)
}

func TestErrorMapping(t *testing.T) {
	f := setupRouterTest(t, false)
	partID := f.createPart(t, "P-200")

	w, resp := f.do(t, http.MethodGet, "/api/v1/shipping/boxes/999", nil, "")
	require.Equal(t, http.StatusNotFound, w.Code)
	require.False(t, resp.Success)
	require.Equal(t, 404, resp.StatusCode)

	w, _ = f.do(t, http.MethodPost, "/api/v1/shipping/boxes", gin.H{"box_no": "BOX-1", "part_id": partID, "qty": 2}, "")
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	w, resp = f.do(t, http.MethodPost, "/api/v1/shipping/boxes", gin.H{"box_no": "BOX-1", "part_id": partID, "qty": 2}, "")
	require.Equal(t, http.StatusConflict, w.Code)
	require.Contains(t, resp.Message, "BOX-1")

	w, _ = f.do(t, http.MethodPost, "/api/v1/shipping/boxes", gin.H{"box_no": "   ", "part_id": partID}, "")
	require.Equal(t, http.StatusBadRequest, w.Code)
	w, _ = f.do(t, http.MethodPost, "/api/v1/shipping/boxes", gin.H{"part_id": partID}, "")
	require.Equal(t, http.StatusBadRequest, w.Code)
	w, _ = f.do(t, http.MethodGet, "/api/v1/shipping/boxes/abc", nil, "")
	require.Equal(t, http.StatusBadRequest, w.Code)

	w, resp = f.do(t, http.MethodPost, "/api/v1/shipping/shipments", gin.H{"ship_no": "SHP-1"}, "")
	require.Equal(t, http.StatusCreated, w.Code)
	var shipment idView
	decodeData(t, resp, &shipment)
	w, _ = f.do(t, http.MethodPost, fmt.Sprintf("/api/v1/shipping/shipments/%d/mark-loaded", shipment.ID), nil, "")
	require.Equal(t, http.StatusBadRequest, w.Code)
	w, _ = f.do(t, http.MethodPut, fmt.Sprintf("/api/v1/shipping/shipments/%d/status", shipment.ID), gin.H{"status": "BOGUS"}, "")
	require.Equal(t, http.StatusBadRequest, w.Code)
	w, resp = f.do(t, http.MethodPut, fmt.Sprintf("/api/v1/shipping/shipments/%d/status", shipment.ID), gin.H{"status": "loaded", "remark": "manual fix"}, "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	decodeData(t, resp, &shipment)
	require.Equal(t, "LOADED", shipment.Status)

	w, _ = f.do(t, http.MethodGet, "/api/v1/shipping/shipments/stats/customer?from=2026-08-10", nil, "")
	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestShippingRoutesRequireRoles(t *testing.T) {
	f := setupRouterTest(t, true)
	viewer := signTestToken(t, "viewer-1", []string{"shipping_viewer"}, time.Hour)
	operator := signTestToken(t, "operator-1", []string{"shipping_operator"}, time.Hour)
	admin := signTestToken(t, "admin-1", []string{"shipping_admin"}, time.Hour)

	w, _ := f.do(t, http.MethodGet, "/api/v1/shipping/shipments", nil, "")
	require.Equal(t, http.StatusUnauthorized, w.Code)

	w, _ = f.do(t, http.MethodGet, "/api/v1/shipping/shipments", nil, viewer)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w, _ = f.do(t, http.MethodPost, "/api/v1/shipping/shipments", gin.H{"ship_no": "SHP-1"}, viewer)
	require.Equal(t, http.StatusForbidden, w.Code)

	w, resp := f.do(t, http.MethodPost, "/api/v1/shipping/shipments", gin.H{"ship_no": "SHP-1"}, operator)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var shipment idView
	decodeData(t, resp, &shipment)

	statusPath := fmt.Sprintf("/api/v1/shipping/shipments/%d/status", shipment.ID)
	w, _ = f.do(t, http.MethodPut, statusPath, gin.H{"status": "CANCELED"}, operator)
	require.Equal(t, http.StatusForbidden, w.Code)
	w, _ = f.do(t, http.MethodPut, statusPath, gin.H{"status": "CANCELED"}, admin)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
}

func TestOperationalEndpoints(t *testing.T) {
	f := setupRouterTest(t, false)

	w, _ := f.do(t, http.MethodGet, "/healthz", nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	require.Contains(t, w.Body.String(), `"status":"ok"`)
	require.Contains(t, w.Body.String(), `"redis":"disabled"`)

	f.do(t, http.MethodGet, "/api/v1/shipping/boxes", nil, "")
	w, _ = f.do(t, http.MethodGet, "/metrics", nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	require.Contains(t, w.Body.String(), "shipping_http_requests_total")
	require.Contains(t, w.Body.String(), `route="/api/v1/shipping/boxes"`)
}
