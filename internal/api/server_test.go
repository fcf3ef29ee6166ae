package api

import (
	"context"
	"encoding/json"
	"errors"
	"math/big"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"patron/internal/models"
	"patron/internal/orchestrator"
	"patron/internal/storage"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeStatus struct {
	status models.AgentStatus
	last   *orchestrator.RoundResult
}

func (f *fakeStatus) Status() models.AgentStatus {
	return f.status
}

func (f *fakeStatus) LastRound() (orchestrator.RoundResult, bool) {
	if f.last == nil {
		return orchestrator.RoundResult{}, false
	}
	return *f.last, true
}

type brokenRepository struct {
	*storage.MemoryRepository
}

func (b brokenRepository) Ping(ctx context.Context) error {
	return errors.New("connection refused")
}

func (b brokenRepository) ListGrants(ctx context.Context, limit, offset int) ([]*models.Grant, error) {
	return nil, errors.New("connection refused")
}

func newTestServer(t *testing.T, repo storage.Repository, status *fakeStatus) *Server {
	t.Helper()
	if status == nil {
		status = &fakeStatus{}
	}
	return NewServer(0, repo, status)
}

func get(t *testing.T, s *Server, target string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, target, nil))
	return rec
}

func seedGrants(t *testing.T, repo *storage.MemoryRepository, n int) {
	t.Helper()
	for i := 1; i <= n; i++ {
		require.NoError(t, repo.SaveGrant(context.Background(), &models.Grant{
			ID:        uint64(i),
			RoundID:   1,
			Recipient: common.BytesToAddress([]byte{byte(i)}),
			Amount:    decimal.RequireFromString("0.002"),
			AmountWei: big.NewInt(2_000_000_000_000_000),
			TxHash:    common.BytesToHash([]byte{byte(i)}),
			Resolved:  true,
		}))
	}
}

func TestHandleIndex(t *testing.T) {
	s := newTestServer(t, storage.NewMemoryRepository(), nil)

	rec := get(t, s, "/")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "The Patron", body["service"])

	assert.Equal(t, http.StatusNotFound, get(t, s, "/unknown").Code)
}

func TestHandleHealth(t *testing.T) {
	s := newTestServer(t, storage.NewMemoryRepository(), nil)
	rec := get(t, s, "/health")
	require.Equal(t, http.StatusOK, rec.Code)

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "healthy", body["status"])
}

func TestHandleHealth_StorageDown(t *testing.T) {
	s := newTestServer(t, brokenRepository{storage.NewMemoryRepository()}, nil)

	rec := get(t, s, "/health")
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)

	var body models.ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, http.StatusServiceUnavailable, body.Code)
	assert.Equal(t, "Storage unhealthy", body.Message)
}

func TestHandleMetrics(t *testing.T) {
	s := newTestServer(t, storage.NewMemoryRepository(), nil)

	rec := get(t, s, "/metrics")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "go_goroutines")
}

func TestHandleStatus(t *testing.T) {
	status := &fakeStatus{status: models.AgentStatus{
		Phase:        "SLEEP",
		Round:        4,
		RoundGrants:  2,
		GrantedTotal: 2,
		Granted: []common.Address{
			common.HexToAddress("0x00000000000000000000000000000000000000a1"),
			common.HexToAddress("0x00000000000000000000000000000000000000a2"),
		},
		UpdatedAt: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
	}}
	s := newTestServer(t, storage.NewMemoryRepository(), status)

	rec := get(t, s, "/status")
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Agent     models.AgentStatus         `json:"agent"`
		LastRound *orchestrator.RoundResult `json:"last_round"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, status.status, body.Agent)
	assert.Len(t, body.Agent.Granted, 2)
	assert.Nil(t, body.LastRound)

	status.last = &orchestrator.RoundResult{Round: 4, Theme: "DeFi Innovation", Candidates: 6}
	rec = get(t, s, "/status")
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.NotNil(t, body.LastRound)
	assert.Equal(t, "DeFi Innovation", body.LastRound.Theme)
	assert.Equal(t, 6, body.LastRound.Candidates)
}

func TestHandleListGrants_Pagination(t *testing.T) {
	repo := storage.NewMemoryRepository()
	seedGrants(t, repo, 5)
	s := newTestServer(t, repo, nil)

	tests := []struct {
		name     string
		target   string
		ids      []uint64
		page     int
		pageSize int
	}{
		{"defaults", "/grants", []uint64{5, 4, 3, 2, 1}, 1, 50},
		{"limit", "/grants?limit=2", []uint64{5, 4}, 1, 2},
		{"second page", "/grants?limit=2&offset=2", []uint64{3, 2}, 2, 2},
		{"limit above max ignored", "/grants?limit=500", []uint64{5, 4, 3, 2, 1}, 1, 50},
		{"invalid values ignored", "/grants?limit=abc&offset=-3", []uint64{5, 4, 3, 2, 1}, 1, 50},
		{"offset past end", "/grants?offset=10", []uint64{}, 1, 50},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := get(t, s, tt.target)
			require.Equal(t, http.StatusOK, rec.Code)

			var body models.GrantListResponse
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))

			ids := make([]uint64, 0, len(body.Grants))
			for _, g := range body.Grants {
				ids = append(ids, g.ID)
			}
			assert.Equal(t, tt.ids, ids)
			assert.Equal(t, tt.page, body.Page)
			assert.Equal(t, tt.pageSize, body.PageSize)
		})
	}
}

func TestHandleListGrants_StorageError(t *testing.T) {
	s := newTestServer(t, brokenRepository{storage.NewMemoryRepository()}, nil)

	rec := get(t, s, "/grants")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestHandleListEvaluations(t *testing.T) {
	repo := storage.NewMemoryRepository()
	for i, d := range []models.Decision{models.DecisionLowActivity, models.DecisionBelowThreshold, models.DecisionGranted} {
		require.NoError(t, repo.SaveEvaluation(context.Background(), &models.Evaluation{
			RoundID:  2,
			Address:  common.BytesToAddress([]byte{byte(i + 1)}),
			Decision: d,
		}))
	}
	s := newTestServer(t, repo, nil)

	rec := get(t, s, "/evaluations?limit=2")
	require.Equal(t, http.StatusOK, rec.Code)

	var body models.EvaluationListResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Len(t, body.Evaluations, 2)
	assert.Equal(t, models.DecisionGranted, body.Evaluations[0].Decision)
	assert.Equal(t, models.DecisionBelowThreshold, body.Evaluations[1].Decision)
}

func TestAgentEndpoints_RejectWrites(t *testing.T) {
	s := newTestServer(t, storage.NewMemoryRepository(), nil)

	for _, target := range []string{"/status", "/grants", "/evaluations"} {
		rec := httptest.NewRecorder()
		s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, target, nil))
		assert.Equal(t, http.StatusMethodNotAllowed, rec.Code, target)
	}
}
