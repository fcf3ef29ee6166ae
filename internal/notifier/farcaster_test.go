package notifier

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFarcaster_Cast(t *testing.T) {
	var got castRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "secret", r.Header.Get("api_key"))
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"success":true,"cast":{"hash":"0xcafe","author":{"fid":1}}}`))
	}))
	defer server.Close()

	f := NewFarcaster(server.URL, "secret", "signer-1", format, server.Client())

	hash, err := f.Cast(context.Background(), "hello")
	require.NoError(t, err)
	assert.Equal(t, "0xcafe", hash)
	assert.Equal(t, castRequest{Text: "hello", SignerUUID: "signer-1"}, got)

	require.NoError(t, f.GrantDisbursed(context.Background(), testGrant(7, 80, "0.003")))
	assert.Equal(t, format.Grant(testGrant(7, 80, "0.003")), got.Text)
}

func TestFarcaster_Rejected(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"message":"invalid signer"}`, http.StatusForbidden)
	}))
	defer server.Close()

	f := NewFarcaster(server.URL, "secret", "signer-1", format, server.Client())

	_, err := f.Cast(context.Background(), "hello")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "403")
	assert.Contains(t, err.Error(), "invalid signer")

	assert.Error(t, f.AgentLive(context.Background(), treasury))
}
