package ledger

import (
	"context"
	"fmt"
	"math/big"
	"time"

	"patron/internal/ledger/retry"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/ethereum/go-ethereum/rpc"
)

// Node issues read calls against an EVM JSON-RPC endpoint. Every call is a
// correlated request/response pair handled by the go-ethereum rpc client;
// reads go through the retry strategy, nothing here writes.
type Node struct {
	rpc   *rpc.Client
	eth   *ethclient.Client
	retry retry.Strategy
}

// Block is the subset of a block body the scanner needs
type Block struct {
	Number       uint64
	Timestamp    time.Time
	Transactions []Transaction
}

// Transaction is a block transaction reduced to routing fields
type Transaction struct {
	Hash common.Hash
	From common.Address
	To   *common.Address // nil for contract-creation transactions
}

// IsCreation reports whether the transaction has no destination
func (t Transaction) IsCreation() bool {
	return t.To == nil
}

// Receipt is the subset of a transaction receipt the scanner needs
type Receipt struct {
	Status          uint64
	ContractAddress *common.Address
}

// CreatedProgram returns the deployed program address for a successful
// creation receipt
func (r Receipt) CreatedProgram() (common.Address, bool) {
	if r.Status != 1 || r.ContractAddress == nil || *r.ContractAddress == (common.Address{}) {
		return common.Address{}, false
	}
	return *r.ContractAddress, true
}

// Block and receipt bodies are decoded into minimal structs rather than
// go-ethereum's core types: L2 chains carry transaction types (deposits) the
// core decoder rejects.
type rpcBlock struct {
	Number       hexutil.Uint64 `json:"number"`
	Timestamp    hexutil.Uint64 `json:"timestamp"`
	Transactions []rpcTx        `json:"transactions"`
}

type rpcTx struct {
	Hash common.Hash    `json:"hash"`
	From common.Address `json:"from"`
	To   *string        `json:"to"`
}

type rpcReceipt struct {
	Status          hexutil.Uint64  `json:"status"`
	ContractAddress *common.Address `json:"contractAddress"`
}

// DialNode connects to the JSON-RPC endpoint at url
func DialNode(ctx context.Context, url string, strategy retry.Strategy) (*Node, error) {
	client, err := rpc.DialContext(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("failed to dial rpc node: %w", err)
	}
	return NewNode(client, strategy), nil
}

// NewNode wraps an existing rpc client
func NewNode(client *rpc.Client, strategy retry.Strategy) *Node {
	if strategy == nil {
		strategy = retry.NewNoRetryStrategy()
	}
	return &Node{
		rpc:   client,
		eth:   ethclient.NewClient(client),
		retry: strategy,
	}
}

// Eth exposes the typed client for contract bindings
func (n *Node) Eth() *ethclient.Client {
	return n.eth
}

// Close releases the underlying connection
func (n *Node) Close() {
	n.rpc.Close()
}

// HeadHeight returns the current chain head block number
func (n *Node) HeadHeight(ctx context.Context) (uint64, error) {
	var head uint64
	err := n.retry.Execute(ctx, func() error {
		var err error
		head, err = n.eth.BlockNumber(ctx)
		return err
	})
	if err != nil {
		return 0, fmt.Errorf("eth_blockNumber: %w", err)
	}
	return head, nil
}

// BlockByNumber fetches a block with full transaction bodies
func (n *Node) BlockByNumber(ctx context.Context, number uint64) (*Block, error) {
	var raw *rpcBlock
	err := n.retry.Execute(ctx, func() error {
		return n.rpc.CallContext(ctx, &raw, "eth_getBlockByNumber", hexutil.EncodeUint64(number), true)
	})
	if err != nil {
		return nil, fmt.Errorf("eth_getBlockByNumber %d: %w", number, err)
	}
	if raw == nil {
		return nil, fmt.Errorf("block %d: %w", number, ethereum.NotFound)
	}

	block := &Block{
		Number:       uint64(raw.Number),
		Timestamp:    time.Unix(int64(raw.Timestamp), 0).UTC(),
		Transactions: make([]Transaction, 0, len(raw.Transactions)),
	}
	for _, tx := range raw.Transactions {
		block.Transactions = append(block.Transactions, Transaction{
			Hash: tx.Hash,
			From: tx.From,
			To:   parseDestination(tx.To),
		})
	}
	return block, nil
}

// parseDestination treats null, "" and "0x" as an empty destination
func parseDestination(to *string) *common.Address {
	if to == nil || *to == "" || *to == "0x" {
		return nil
	}
	addr := common.HexToAddress(*to)
	return &addr
}

// Receipt fetches the receipt of a mined transaction
func (n *Node) Receipt(ctx context.Context, hash common.Hash) (*Receipt, error) {
	var raw *rpcReceipt
	err := n.retry.Execute(ctx, func() error {
		return n.rpc.CallContext(ctx, &raw, "eth_getTransactionReceipt", hash)
	})
	if err != nil {
		return nil, fmt.Errorf("eth_getTransactionReceipt %s: %w", hash.Hex(), err)
	}
	if raw == nil {
		return nil, fmt.Errorf("receipt %s: %w", hash.Hex(), ethereum.NotFound)
	}
	return &Receipt{
		Status:          uint64(raw.Status),
		ContractAddress: raw.ContractAddress,
	}, nil
}

// TxCount returns the number of transactions sent from addr
func (n *Node) TxCount(ctx context.Context, addr common.Address) (uint64, error) {
	var count uint64
	err := n.retry.Execute(ctx, func() error {
		var err error
		count, err = n.eth.NonceAt(ctx, addr, nil)
		return err
	})
	if err != nil {
		return 0, fmt.Errorf("eth_getTransactionCount %s: %w", addr.Hex(), err)
	}
	return count, nil
}

// CodeSize returns the size in bytes of the code deployed at addr
func (n *Node) CodeSize(ctx context.Context, addr common.Address) (int, error) {
	var code []byte
	err := n.retry.Execute(ctx, func() error {
		var err error
		code, err = n.eth.CodeAt(ctx, addr, nil)
		return err
	})
	if err != nil {
		return 0, fmt.Errorf("eth_getCode %s: %w", addr.Hex(), err)
	}
	return len(code), nil
}

// Balance returns the balance of addr in wei
func (n *Node) Balance(ctx context.Context, addr common.Address) (*big.Int, error) {
	var balance *big.Int
	err := n.retry.Execute(ctx, func() error {
		var err error
		balance, err = n.eth.BalanceAt(ctx, addr, nil)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("eth_getBalance %s: %w", addr.Hex(), err)
	}
	return balance, nil
}

// ChainID returns the chain id used for transaction signing
func (n *Node) ChainID(ctx context.Context) (*big.Int, error) {
	var id *big.Int
	err := n.retry.Execute(ctx, func() error {
		var err error
		id, err = n.eth.ChainID(ctx)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("eth_chainId: %w", err)
	}
	return id, nil
}
