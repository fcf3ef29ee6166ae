package ledger

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type rpcRequest struct {
	ID     json.RawMessage   `json:"id"`
	Method string            `json:"method"`
	Params []json.RawMessage `json:"params"`
}

// fakeRPC answers JSON-RPC calls from a method -> raw result table
func fakeRPC(t *testing.T, results map[string]string) *Node {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req rpcRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))

		result, ok := results[req.Method]
		w.Header().Set("Content-Type", "application/json")
		if !ok {
			_, _ = w.Write([]byte(`{"jsonrpc":"2.0","id":` + string(req.ID) + `,"error":{"code":-32601,"message":"method not found"}}`))
			return
		}
		_, _ = w.Write([]byte(`{"jsonrpc":"2.0","id":` + string(req.ID) + `,"result":` + result + `}`))
	}))
	t.Cleanup(srv.Close)

	node, err := DialNode(context.Background(), srv.URL, nil)
	require.NoError(t, err)
	t.Cleanup(node.Close)
	return node
}

func TestNode_BlockByNumber(t *testing.T) {
	node := fakeRPC(t, map[string]string{
		"eth_getBlockByNumber": `{
			"number":"0x64","timestamp":"0x6553f100",
			"transactions":[
				{"hash":"0x0000000000000000000000000000000000000000000000000000000000000001","from":"0x00000000000000000000000000000000000000aa","to":null,"type":"0x2"},
				{"hash":"0x0000000000000000000000000000000000000000000000000000000000000002","from":"0x00000000000000000000000000000000000000bb","to":"0x00000000000000000000000000000000000000cc","type":"0x7e"},
				{"hash":"0x0000000000000000000000000000000000000000000000000000000000000003","from":"0x00000000000000000000000000000000000000dd","to":"0x"}
			]}`,
	})

	block, err := node.BlockByNumber(context.Background(), 100)
	require.NoError(t, err)

	assert.Equal(t, uint64(100), block.Number)
	require.Len(t, block.Transactions, 3)
	assert.True(t, block.Transactions[0].IsCreation())
	assert.False(t, block.Transactions[1].IsCreation())
	assert.True(t, block.Transactions[2].IsCreation())
	assert.Equal(t, common.HexToAddress("0xaa"), block.Transactions[0].From)
}

func TestNode_BlockByNumber_Missing(t *testing.T) {
	node := fakeRPC(t, map[string]string{"eth_getBlockByNumber": `null`})

	_, err := node.BlockByNumber(context.Background(), 1)
	assert.ErrorIs(t, err, ethereum.NotFound)
}

func TestNode_Receipt(t *testing.T) {
	node := fakeRPC(t, map[string]string{
		"eth_getTransactionReceipt": `{"status":"0x1","contractAddress":"0x00000000000000000000000000000000000000ee"}`,
	})

	receipt, err := node.Receipt(context.Background(), common.HexToHash("0x01"))
	require.NoError(t, err)

	program, ok := receipt.CreatedProgram()
	assert.True(t, ok)
	assert.Equal(t, common.HexToAddress("0xee"), program)
}

func TestReceipt_CreatedProgram(t *testing.T) {
	addr := common.HexToAddress("0xee")
	tests := []struct {
		name    string
		receipt Receipt
		ok      bool
	}{
		{"success with address", Receipt{Status: 1, ContractAddress: &addr}, true},
		{"failed status", Receipt{Status: 0, ContractAddress: &addr}, false},
		{"no address", Receipt{Status: 1}, false},
		{"zero address", Receipt{Status: 1, ContractAddress: &common.Address{}}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, ok := tt.receipt.CreatedProgram()
			assert.Equal(t, tt.ok, ok)
		})
	}
}

func TestNode_Reads(t *testing.T) {
	node := fakeRPC(t, map[string]string{
		"eth_blockNumber":         `"0x1b4"`,
		"eth_getTransactionCount": `"0x78"`,
		"eth_getCode":             `"0x60806040"`,
		"eth_getBalance":          `"0xde0b6b3a7640000"`,
		"eth_chainId":             `"0x14a34"`,
	})
	ctx := context.Background()
	addr := common.HexToAddress("0xaa")

	head, err := node.HeadHeight(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint64(436), head)

	count, err := node.TxCount(ctx, addr)
	require.NoError(t, err)
	assert.Equal(t, uint64(120), count)

	size, err := node.CodeSize(ctx, addr)
	require.NoError(t, err)
	assert.Equal(t, 4, size)

	balance, err := node.Balance(ctx, addr)
	require.NoError(t, err)
	assert.Equal(t, "1000000000000000000", balance.String())

	chainID, err := node.ChainID(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(84532), chainID.Int64())
}
