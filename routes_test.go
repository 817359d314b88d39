package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"bitbucket.org/mmdatafocus/construction_backend/config"
	"bitbucket.org/mmdatafocus/construction_backend/models"
	"bitbucket.org/mmdatafocus/construction_backend/utils"
	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm/logger"
)

const testSecret = "test-secret"

type testServer struct {
	t      *testing.T
	router *gin.Engine
	token  string
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db, err := config.ConnectSQLite("")
	require.NoError(t, err)
	db.Logger = logger.Discard
	sqlDB, err := db.DB()
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqlDB.Close() })
	require.NoError(t, models.MigrateTable(db))

	log := logrus.New()
	log.SetOutput(io.Discard)
	settings := config.Settings{APISecret: testSecret, ExtractionReviewCutoff: 0.8}

	return &testServer{
		t:      t,
		router: NewRouter(NewApp(db, nil, nil, nil, settings, log)),
		token:  tokenFor(t, utils.Principal{ID: 7, Name: "Site Manager", Role: string(models.UserRoleManager)}),
	}
}

func tokenFor(t *testing.T, p utils.Principal) string {
	t.Helper()
	token, err := utils.JwtGenerate([]byte(testSecret), p, time.Hour)
	require.NoError(t, err)
	return token
}

func (s *testServer) do(method, path, token string, body interface{}) *httptest.ResponseRecorder {
	s.t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(s.t, err)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func decodeBody(t *testing.T, w *httptest.ResponseRecorder, dest interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), dest), w.Body.String())
}

func TestRouter_Authentication(t *testing.T) {
	s := newTestServer(t)

	w := s.do(http.MethodGet, "/projects/1", "", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = s.do(http.MethodGet, "/projects/1", "not-a-token", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = s.do(http.MethodGet, "/healthz", "", nil)
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.NotEmpty(t, w.Header().Get("x-correlation-id"))

	w = s.do(http.MethodGet, "/nowhere", "", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestRouter_StaffCannotApprove(t *testing.T) {
	s := newTestServer(t)
	staff := tokenFor(t, utils.Principal{ID: 9, Name: "Estimator", Role: string(models.UserRoleStaff)})

	w := s.do(http.MethodPost, "/projects/1/budget-items/1/approve", staff, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = s.do(http.MethodPost, "/projects/1/budget-items/1/purchase-order", staff, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestRouter_BadInput(t *testing.T) {
	s := newTestServer(t)

	w := s.do(http.MethodGet, "/projects/abc", s.token, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = s.do(http.MethodPost, "/projects", s.token, map[string]interface{}{
		"code": "P-1", "name": "Tower", "contract_value": "fifty",
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	for _, garbled := range []string{"12O00", "1e3", "EUR 500", "1,000 or 2,000"} {
		w = s.do(http.MethodPost, "/projects", s.token, map[string]interface{}{
			"code": "P-1", "name": "Tower", "contract_value": garbled,
		})
		assert.Equal(t, http.StatusBadRequest, w.Code, garbled)
	}

	w = s.do(http.MethodGet, "/projects/404", s.token, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestRouter_BudgetToPurchaseOrderFlow(t *testing.T) {
	s := newTestServer(t)

	w := s.do(http.MethodPost, "/projects", s.token, map[string]interface{}{
		"code": "P-1", "name": "Riverside Tower", "contract_value": "$200,000",
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var project models.Project
	decodeBody(t, w, &project)
	assert.True(t, project.ContractValue.Equal(decimal.RequireFromString("200000")))

	w = s.do(http.MethodPost, "/suppliers", s.token, map[string]interface{}{"name": "Acme Steel"})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var supplier models.Supplier
	decodeBody(t, w, &supplier)

	itemsPath := fmt.Sprintf("/projects/%d/budget-items", project.ID)
	w = s.do(http.MethodPost, itemsPath, s.token, map[string]interface{}{
		"supplier_id": supplier.ID, "trade": "Structural Steel", "quoted_amount": "$50,000",
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var item models.BudgetItem
	decodeBody(t, w, &item)
	assert.True(t, item.QuotedAmount.Equal(decimal.RequireFromString("50000")))

	itemPath := fmt.Sprintf("%s/%d", itemsPath, item.ID)
	w = s.do(http.MethodPost, itemPath+"/purchase-order", s.token, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code, "unapproved items cannot be ordered")

	w = s.do(http.MethodPost, itemPath+"/approve", s.token, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = s.do(http.MethodPost, itemPath+"/purchase-order", s.token, nil)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var po models.PurchaseOrder
	decodeBody(t, w, &po)
	assert.True(t, strings.HasPrefix(po.OrderNumber, "PO-001-ACM-"), po.OrderNumber)
	assert.True(t, po.TotalAmount.Equal(decimal.RequireFromString("50000")))

	w = s.do(http.MethodPost, itemPath+"/purchase-order", s.token, nil)
	assert.Equal(t, http.StatusConflict, w.Code)

	w = s.do(http.MethodDelete, itemPath, s.token, nil)
	assert.Equal(t, http.StatusConflict, w.Code)

	w = s.do(http.MethodGet, fmt.Sprintf("/projects/%d/budget-summary", project.ID), s.token, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var summary models.ProjectBudgetSummary
	decodeBody(t, w, &summary)
	assert.True(t, summary.TotalBudget.Equal(decimal.RequireFromString("50000")))
	assert.True(t, summary.EstimatedProfitMargin.Equal(decimal.RequireFromString("75")))
	assert.Equal(t, 1, summary.SuppliersWithPurchaseOrder)

	w = s.do(http.MethodGet, fmt.Sprintf("/projects/%d/purchase-orders", project.ID), s.token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var orders []models.PurchaseOrder
	decodeBody(t, w, &orders)
	require.Len(t, orders, 1)
	assert.Equal(t, po.OrderNumber, orders[0].OrderNumber)

	w = s.do(http.MethodGet, fmt.Sprintf("/projects/%d/budget-report.xlsx", project.ID), s.token, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", w.Header().Get("Content-Type"))
	assert.Contains(t, w.Header().Get("Content-Disposition"), "budget-P-1.xlsx")
	assert.True(t, bytes.HasPrefix(w.Body.Bytes(), []byte("PK")), "xlsx is a zip archive")
}

func TestRouter_OverBudgetRaisesAlerts(t *testing.T) {
	s := newTestServer(t)

	w := s.do(http.MethodPost, "/projects", s.token, map[string]interface{}{
		"code": "P-2", "name": "Harbor Depot", "contract_value": 100000,
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var project models.Project
	decodeBody(t, w, &project)

	w = s.do(http.MethodPost, fmt.Sprintf("/projects/%d/budget-items", project.ID), s.token, map[string]interface{}{
		"trade": "Concrete", "quoted_amount": "105000.00",
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	w = s.do(http.MethodGet, fmt.Sprintf("/projects/%d/budget-alerts", project.ID), s.token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var alerts []models.BudgetAlert
	decodeBody(t, w, &alerts)
	require.NotEmpty(t, alerts)

	var types []models.BudgetAlertType
	for _, a := range alerts {
		types = append(types, a.AlertType)
	}
	assert.Contains(t, types, models.BudgetAlertTypeBudgetExceedsContract)
}

func TestRouter_ItemRoutesRequireOwningProject(t *testing.T) {
	s := newTestServer(t)

	var owner, other models.Project
	w := s.do(http.MethodPost, "/projects", s.token, map[string]interface{}{"code": "P-1", "name": "Owner", "contract_value": "100000"})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	decodeBody(t, w, &owner)
	w = s.do(http.MethodPost, "/projects", s.token, map[string]interface{}{"code": "P-2", "name": "Other", "contract_value": "100000"})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	decodeBody(t, w, &other)

	w = s.do(http.MethodPost, "/suppliers", s.token, map[string]interface{}{"name": "Acme Steel"})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var supplier models.Supplier
	decodeBody(t, w, &supplier)

	w = s.do(http.MethodPost, fmt.Sprintf("/projects/%d/budget-items", owner.ID), s.token, map[string]interface{}{
		"supplier_id": supplier.ID, "trade": "Steel", "quoted_amount": "5,000",
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var item models.BudgetItem
	decodeBody(t, w, &item)

	foreign := fmt.Sprintf("/projects/%d/budget-items/%d", other.ID, item.ID)
	cases := []struct {
		method string
		path   string
		body   interface{}
	}{
		{http.MethodGet, foreign, nil},
		{http.MethodPatch, foreign, map[string]interface{}{"quoted_amount": "1"}},
		{http.MethodPost, foreign + "/submit", nil},
		{http.MethodPost, foreign + "/approve", nil},
		{http.MethodPost, foreign + "/reject", nil},
		{http.MethodPost, foreign + "/cost", map[string]interface{}{"actual_cost": "10"}},
		{http.MethodDelete, foreign, nil},
	}
	for _, tc := range cases {
		w := s.do(tc.method, tc.path, s.token, tc.body)
		assert.Equal(t, http.StatusNotFound, w.Code, "%s %s", tc.method, tc.path)
	}

	w = s.do(http.MethodGet, fmt.Sprintf("/projects/%d/budget-items/%d", owner.ID, item.ID), s.token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var stored models.BudgetItem
	decodeBody(t, w, &stored)
	assert.True(t, stored.QuotedAmount.Equal(decimal.RequireFromString("5000")))
	assert.Equal(t, models.BudgetItemStatusQuoted, stored.Status)
	assert.False(t, stored.IsApproved)
}
