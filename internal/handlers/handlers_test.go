package handlers

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"naturelife-cert/internal/certificate"
	"naturelife-cert/internal/config"
	"naturelife-cert/internal/metrics"
	"naturelife-cert/internal/models"
	"naturelife-cert/internal/repository"
	"naturelife-cert/internal/scheduler"
	"naturelife-cert/internal/testutil"
)

type testServer struct {
	router *gin.Engine
	repo   *repository.Repository
}

func newTestServer(t *testing.T, s *scheduler.Scheduler) *testServer {
	gin.SetMode(gin.TestMode)

	db := testutil.NewTestDB(t)
	reg := prometheus.NewRegistry()
	h := NewHandlers(db, certificate.NewGenerator(certificate.Options{}), s, metrics.NewMetrics(reg), reg)

	router := gin.New()
	h.SetupRoutes(router)
	return &testServer{router: router, repo: repository.New(db)}
}

func (ts *testServer) do(method, path, body string) *httptest.ResponseRecorder {
	var reader *bytes.Reader
	if body != "" {
		reader = bytes.NewReader([]byte(body))
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	ts.router.ServeHTTP(w, req)
	return w
}

const janeJSON = `{"first_name":"Jane","last_name":"Doe","country":"Germany","donation":"25.50","currency":"eur","email":"jane@example.org"}`

func TestCreateDonation(t *testing.T) {
	ts := newTestServer(t, nil)

	w := ts.do(http.MethodPost, "/api/v1/donations", janeJSON)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var result CreateDonationResult
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &result))
	assert.NotZero(t, result.Donation.ID)
	assert.Equal(t, "EUR", result.Donation.Currency)
	assert.Equal(t, "jane@example.org", result.Donation.Email)
	assert.Equal(t, models.SourceWeb, result.Donation.Source)
	assert.Equal(t, "/api/v1/donations", result.RedirectTo)
	assert.Equal(t, "/api/v1/donations/1/certificate", result.CertificateURL)
}

func TestCreateDonationValidation(t *testing.T) {
	ts := newTestServer(t, nil)

	bodies := []string{
		`{"first_name":"Jane"}`,
		strings.Replace(janeJSON, `"25.50"`, `"0"`, 1),
		strings.Replace(janeJSON, `"eur"`, `"zzz"`, 1),
		strings.Replace(janeJSON, `jane@example.org`, `jane`, 1),
		`not json`,
	}
	for _, body := range bodies {
		w := ts.do(http.MethodPost, "/api/v1/donations", body)
		assert.Equal(t, http.StatusBadRequest, w.Code, body)
	}
}

func TestListDonationsHidesEmail(t *testing.T) {
	ts := newTestServer(t, nil)
	require.Equal(t, http.StatusCreated, ts.do(http.MethodPost, "/api/v1/donations", janeJSON).Code)

	w := ts.do(http.MethodGet, "/api/v1/donations", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.NotContains(t, w.Body.String(), "jane@example.org")
	assert.NotContains(t, w.Body.String(), `"email"`)

	var items []DonationListItem
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &items))
	require.Len(t, items, 1)
	assert.Equal(t, "Jane", items[0].FirstName)
}

func TestUpdateAndDeleteDonation(t *testing.T) {
	ts := newTestServer(t, nil)
	require.Equal(t, http.StatusCreated, ts.do(http.MethodPost, "/api/v1/donations", janeJSON).Code)

	updated := strings.Replace(janeJSON, "Germany", "Austria", 1)
	w := ts.do(http.MethodPut, "/api/v1/donations/1", updated)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	d, err := ts.repo.GetDonation(1)
	require.NoError(t, err)
	assert.Equal(t, "Austria", d.Country)

	assert.Equal(t, http.StatusOK, ts.do(http.MethodDelete, "/api/v1/donations/1", "").Code)
	assert.Equal(t, http.StatusNotFound, ts.do(http.MethodGet, "/api/v1/donations/1", "").Code)
	assert.Equal(t, http.StatusNotFound, ts.do(http.MethodDelete, "/api/v1/donations/1", "").Code)
	assert.Equal(t, http.StatusNotFound, ts.do(http.MethodPut, "/api/v1/donations/1", updated).Code)
	assert.Equal(t, http.StatusBadRequest, ts.do(http.MethodGet, "/api/v1/donations/abc", "").Code)
}

func TestGetCertificate(t *testing.T) {
	ts := newTestServer(t, nil)
	require.Equal(t, http.StatusCreated, ts.do(http.MethodPost, "/api/v1/donations", janeJSON).Code)

	w := ts.do(http.MethodGet, "/api/v1/donations/1/certificate", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/pdf", w.Header().Get("Content-Type"))
	assert.Contains(t, w.Header().Get("Content-Disposition"), "certificate_Jane_Doe.pdf")
	assert.True(t, strings.HasPrefix(w.Body.String(), "%PDF-"))
	assert.Contains(t, w.Body.String(), "25.50")

	assert.Equal(t, http.StatusNotFound, ts.do(http.MethodGet, "/api/v1/donations/9/certificate", "").Code)
}

func TestDispatches(t *testing.T) {
	ts := newTestServer(t, nil)
	require.NoError(t, ts.repo.LogDispatch(&models.DispatchLog{
		MessageID: "m1@test",
		UID:       3,
		Recipient: "jane@example.org",
		Status:    models.DispatchSuccess,
		Stage:     "done",
	}))

	w := ts.do(http.MethodGet, "/api/v1/dispatches?page=1&limit=10", "")
	require.Equal(t, http.StatusOK, w.Code)

	var body struct {
		Dispatches []DispatchResponse `json:"dispatches"`
		Pagination struct {
			Total int64 `json:"total"`
		} `json:"pagination"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	require.Len(t, body.Dispatches, 1)
	assert.Equal(t, int64(1), body.Pagination.Total)
	assert.Equal(t, "m1@test", body.Dispatches[0].MessageID)

	assert.Equal(t, http.StatusOK, ts.do(http.MethodGet, "/api/v1/dispatches/1", "").Code)
	assert.Equal(t, http.StatusNotFound, ts.do(http.MethodGet, "/api/v1/dispatches/2", "").Code)
}

func TestHealthCheck(t *testing.T) {
	ts := newTestServer(t, nil)

	w := ts.do(http.MethodGet, "/healthz", "")
	require.Equal(t, http.StatusOK, w.Code)

	var resp HealthResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, "disabled", resp.Scheduler)
}

func TestMetricsEndpoint(t *testing.T) {
	ts := newTestServer(t, nil)
	require.Equal(t, http.StatusCreated, ts.do(http.MethodPost, "/api/v1/donations", janeJSON).Code)

	w := ts.do(http.MethodGet, "/metrics", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "naturelife_cert_donations 1")
}

func TestSchedulerEndpointsWithoutScheduler(t *testing.T) {
	ts := newTestServer(t, nil)
	assert.Equal(t, http.StatusServiceUnavailable, ts.do(http.MethodPost, "/api/v1/scheduler/run-once", "").Code)
	assert.Equal(t, http.StatusServiceUnavailable, ts.do(http.MethodGet, "/api/v1/scheduler/status", "").Code)
}

func TestSchedulerEndpoints(t *testing.T) {
	sched := scheduler.NewScheduler(&config.SchedulerConfig{IntervalMinutes: 30}, nil)
	ts := newTestServer(t, sched)
	defer sched.Stop()

	assert.Equal(t, http.StatusOK, ts.do(http.MethodPost, "/api/v1/scheduler/start", "").Code)

	w := ts.do(http.MethodGet, "/api/v1/scheduler/status", "")
	require.Equal(t, http.StatusOK, w.Code)
	var st scheduler.Status
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &st))
	assert.True(t, st.Running)
	assert.Equal(t, 30, st.IntervalMinutes)
	assert.NotNil(t, st.NextRun)

	assert.Equal(t, http.StatusInternalServerError, ts.do(http.MethodPost, "/api/v1/scheduler/start", "").Code)
	assert.Equal(t, http.StatusOK, ts.do(http.MethodPost, "/api/v1/scheduler/stop", "").Code)
}
