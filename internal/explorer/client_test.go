package explorer

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"patron/internal/ledger/retry"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func explorerServer(t *testing.T, handler func(w http.ResponseWriter, r *http.Request)) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(handler))
	t.Cleanup(srv.Close)
	return srv
}

func TestClient_Transactions(t *testing.T) {
	srv := explorerServer(t, func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		assert.Equal(t, "txlist", q.Get("action"))
		assert.Equal(t, "100", q.Get("offset"))
		assert.Equal(t, "desc", q.Get("sort"))
		assert.Equal(t, "key", q.Get("apikey"))
		_, _ = w.Write([]byte(`{"status":"1","message":"OK","result":[
			{"hash":"0x01","from":"0x00000000000000000000000000000000000000aa","to":"","contractAddress":"0x00000000000000000000000000000000000000c1","timeStamp":"1700000000","isError":"0"},
			{"hash":"0x02","from":"0x00000000000000000000000000000000000000aa","to":"","contractAddress":"0x00000000000000000000000000000000000000c2","timeStamp":"1700000100","isError":"1"},
			{"hash":"0x03","from":"0x00000000000000000000000000000000000000bb","to":"0x00000000000000000000000000000000000000c1","contractAddress":"","timeStamp":"1700000200","isError":"0"}
		]}`))
	})

	c := NewClient(srv.URL, "key", nil)
	txs, err := c.Transactions(context.Background(), common.HexToAddress("0xaa"))
	require.NoError(t, err)
	require.Len(t, txs, 3)

	created, ok := txs[0].CreatedContract()
	assert.True(t, ok)
	assert.Equal(t, common.HexToAddress("0xc1"), created)
	assert.Equal(t, time.Unix(1700000000, 0).UTC(), txs[0].Time())

	_, ok = txs[1].CreatedContract()
	assert.False(t, ok, "errored creation must not count")

	_, ok = txs[2].CreatedContract()
	assert.False(t, ok)
}

func TestClient_Transactions_NoHistory(t *testing.T) {
	srv := explorerServer(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"status":"0","message":"No transactions found","result":[]}`))
	})

	txs, err := NewClient(srv.URL, "", nil).Transactions(context.Background(), common.HexToAddress("0xaa"))
	require.NoError(t, err)
	assert.Empty(t, txs)
}

func TestClient_Transactions_Errors(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		payload string
	}{
		{"rate limited", http.StatusOK, `{"status":"0","message":"NOTOK","result":"Max rate limit reached"}`},
		{"server error", http.StatusBadGateway, ``},
		{"garbage", http.StatusOK, `not json`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := explorerServer(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.payload))
			})
			_, err := NewClient(srv.URL, "", nil).Transactions(context.Background(), common.HexToAddress("0xaa"))
			assert.Error(t, err)
		})
	}
}

func TestClient_IsVerified(t *testing.T) {
	srv := explorerServer(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("address") == common.HexToAddress("0xc1").Hex() {
			_, _ = w.Write([]byte(`{"status":"1","message":"OK","result":"[]"}`))
			return
		}
		_, _ = w.Write([]byte(`{"status":"0","message":"NOTOK","result":"Contract source code not verified"}`))
	})

	c := NewClient(srv.URL, "key", nil)
	ok, err := c.IsVerified(context.Background(), common.HexToAddress("0xc1"))
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = c.IsVerified(context.Background(), common.HexToAddress("0xc2"))
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestClient_IsVerified_WithoutKey(t *testing.T) {
	called := false
	srv := explorerServer(t, func(w http.ResponseWriter, r *http.Request) { called = true })

	ok, err := NewClient(srv.URL, "", nil).IsVerified(context.Background(), common.HexToAddress("0xc1"))
	require.NoError(t, err)
	assert.False(t, ok)
	assert.False(t, called)
}

func TestClient_IsVerified_RejectionsAreErrors(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		payload string
	}{
		{"rate limited", http.StatusOK, `{"status":"0","message":"NOTOK","result":"Max rate limit reached"}`},
		{"invalid key", http.StatusOK, `{"status":"0","message":"NOTOK","result":"Invalid API Key"}`},
		{"too many requests", http.StatusTooManyRequests, ``},
		{"server error", http.StatusServiceUnavailable, ``},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := explorerServer(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.payload))
			})

			ok, err := NewClient(srv.URL, "key", nil).IsVerified(context.Background(), common.HexToAddress("0xc1"))
			assert.Error(t, err)
			assert.False(t, ok)
		})
	}
}

func TestClient_RetriesQuotaRejections(t *testing.T) {
	var calls atomic.Int32
	srv := explorerServer(t, func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			_, _ = w.Write([]byte(`{"status":"0","message":"NOTOK","result":"Max rate limit reached"}`))
			return
		}
		_, _ = w.Write([]byte(`{"status":"1","message":"OK","result":"[]"}`))
	})

	c := NewClient(srv.URL, "key", nil, WithRetry(retry.NewExponentialBackoffStrategy(2, time.Millisecond, 2*time.Millisecond)))
	ok, err := c.IsVerified(context.Background(), common.HexToAddress("0xc1"))
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, int32(2), calls.Load())
}

func TestClient_DoesNotRetryDefinitiveAnswers(t *testing.T) {
	var calls atomic.Int32
	srv := explorerServer(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		_, _ = w.Write([]byte(`{"status":"0","message":"NOTOK","result":"Contract source code not verified"}`))
	})

	c := NewClient(srv.URL, "key", nil, WithRetry(retry.NewExponentialBackoffStrategy(2, time.Millisecond, 2*time.Millisecond)))
	ok, err := c.IsVerified(context.Background(), common.HexToAddress("0xc2"))
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, int32(1), calls.Load())
}
