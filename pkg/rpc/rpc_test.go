package rpc

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// chainServer answers eth_chainId with the given chain ID
func chainServer(t *testing.T, chainID uint64) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			ID     json.RawMessage `json:"id"`
			Method string          `json:"method"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		if req.Method != "eth_chainId" {
			fmt.Fprintf(w, `{"jsonrpc":"2.0","id":%s,"error":{"code":-32601,"message":"method not found"}}`, req.ID)
			return
		}
		fmt.Fprintf(w, `{"jsonrpc":"2.0","id":%s,"result":"0x%x"}`, req.ID, chainID)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestDialPicksFirstMatchingEndpoint(t *testing.T) {
	down := httptest.NewServer(http.NotFoundHandler())
	down.Close()
	wrongChain := chainServer(t, 1)
	right := chainServer(t, 420)

	conn, err := Dial(context.Background(), []string{down.URL, "", wrongChain.URL, right.URL}, 420)
	require.NoError(t, err)
	defer conn.Close()

	assert.Equal(t, right.URL, conn.URL)
	assert.NotNil(t, conn.Eth)
	assert.NotNil(t, conn.Geth)
}

func TestDialNoUsableEndpoint(t *testing.T) {
	wrongChain := chainServer(t, 1)

	_, err := Dial(context.Background(), []string{wrongChain.URL}, 5)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "want 5")

	_, err = Dial(context.Background(), nil, 5)
	assert.Error(t, err)
}

func TestRedact(t *testing.T) {
	assert.Equal(t, "https://goerli.infura.io/v3/0123...", redact("https://goerli.infura.io/v3/0123456789abcdef0123"))
	assert.Equal(t, "http://localhost:8545", redact("http://localhost:8545"))
	assert.Equal(t, "https://rpc.example.org/", redact("https://rpc.example.org/"))
}
