package ledger

import (
	"context"
	"errors"
	"math/big"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// pendingRPC accepts transactions but never reports a receipt
func pendingRPC(t *testing.T) *Node {
	return fakeRPC(t, map[string]string{
		"eth_sendRawTransaction":    `"0x0000000000000000000000000000000000000000000000000000000000000001"`,
		"eth_getTransactionReceipt": `null`,
	})
}

func testSigner(t *testing.T) *Treasury {
	t.Helper()
	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	signer, err := signerFromKey(key, big.NewInt(1337))
	require.NoError(t, err)

	// Fixed gas and nonce keep the send path to a single RPC call
	signer.GasPrice = big.NewInt(1_000_000_000)
	signer.GasLimit = 100_000
	signer.Nonce = big.NewInt(0)

	node := pendingRPC(t)
	return NewTreasury(common.HexToAddress("0x00000000000000000000000000000000000000aa"), node, signer,
		WithConfirmTimeout(50*time.Millisecond))
}

func TestTreasury_DisburseGivesUpWhenNotMined(t *testing.T) {
	treasury := testSigner(t)

	start := time.Now()
	receipt, err := treasury.Disburse(context.Background(),
		common.HexToAddress("0x00000000000000000000000000000000000000bb"),
		common.HexToHash("0x01"),
		big.NewInt(2_000_000_000_000_000),
	)

	assert.Nil(t, receipt)
	assert.True(t, errors.Is(err, ErrNotMined), "got %v", err)
	assert.Less(t, time.Since(start), 5*time.Second)
}

func TestTreasury_CallerCancellationIsNotTimeout(t *testing.T) {
	treasury := testSigner(t)
	treasury.confirmTimeout = time.Minute

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := treasury.StartRound(ctx, "Base Builders")
	require.Error(t, err)
	assert.False(t, errors.Is(err, ErrNotMined))
}

func TestTreasury_WritesNeedSigner(t *testing.T) {
	treasury := NewTreasury(common.HexToAddress("0xaa"), pendingRPC(t), nil)

	_, err := treasury.StartRound(context.Background(), "Base Builders")
	assert.ErrorIs(t, err, ErrReadOnly)

	_, err = treasury.Wallet()
	assert.ErrorIs(t, err, ErrReadOnly)
}

func TestWithConfirmTimeout_IgnoresNonPositive(t *testing.T) {
	treasury := NewTreasury(common.HexToAddress("0xaa"), pendingRPC(t), nil, WithConfirmTimeout(0))
	assert.Equal(t, DefaultConfirmTimeout, treasury.confirmTimeout)
}
