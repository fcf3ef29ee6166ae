// Package explorer reads the Etherscan-compatible explorer API: paginated
// transaction history per address and verified-source lookups.
package explorer

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"patron/internal/ledger/retry"

	"github.com/ethereum/go-ethereum/common"
)

// PageSize is the number of transactions requested per history page
const PageSize = 100

// Client is a thin explorer API client
type Client struct {
	baseURL string
	apiKey  string
	http    *http.Client
	retry   retry.Strategy
}

// Option customizes a Client
type Option func(*Client)

// WithRetry retries quota rejections and transport failures
func WithRetry(s retry.Strategy) Option {
	return func(c *Client) { c.retry = s }
}

// Tx is one entry of an account's transaction list
type Tx struct {
	Hash            string `json:"hash"`
	From            string `json:"from"`
	To              string `json:"to"`
	ContractAddress string `json:"contractAddress"`
	TimeStamp       string `json:"timeStamp"`
	IsError         string `json:"isError"`
}

type envelope struct {
	Status  string          `json:"status"`
	Message string          `json:"message"`
	Result  json.RawMessage `json:"result"`
}

// NewClient creates an explorer client. apiKey may be empty; verified-source
// lookups then report false.
func NewClient(baseURL, apiKey string, httpClient *http.Client, opts ...Option) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 15 * time.Second}
	}
	c := &Client{
		baseURL: baseURL,
		apiKey:  apiKey,
		http:    httpClient,
		retry:   retry.NewNoRetryStrategy(),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.retry == nil {
		c.retry = retry.NewNoRetryStrategy()
	}
	return c
}

// Transactions returns the most recent page of transactions for address,
// newest first. An address without history yields an empty list.
func (c *Client) Transactions(ctx context.Context, address common.Address) ([]Tx, error) {
	params := url.Values{}
	params.Set("module", "account")
	params.Set("action", "txlist")
	params.Set("address", address.Hex())
	params.Set("startblock", "0")
	params.Set("endblock", "99999999")
	params.Set("page", "1")
	params.Set("offset", strconv.Itoa(PageSize))
	params.Set("sort", "desc")

	env, err := c.get(ctx, params)
	if err != nil {
		return nil, err
	}
	if env.Status != "1" {
		if strings.Contains(strings.ToLower(env.Message), "no transactions") {
			return []Tx{}, nil
		}
		return nil, fmt.Errorf("explorer txlist %s: %s", address.Hex(), env.Message)
	}

	var txs []Tx
	if err := json.Unmarshal(env.Result, &txs); err != nil {
		return nil, fmt.Errorf("failed to decode txlist for %s: %w", address.Hex(), err)
	}
	return txs, nil
}

// IsVerified reports whether the explorer holds verified source for contract.
// Only an explicit "not verified" answer yields false; any other rejection is
// an error so callers can tell unverified from unknown.
func (c *Client) IsVerified(ctx context.Context, contract common.Address) (bool, error) {
	if c.apiKey == "" {
		return false, nil
	}

	params := url.Values{}
	params.Set("module", "contract")
	params.Set("action", "getabi")
	params.Set("address", contract.Hex())

	env, err := c.get(ctx, params)
	if err != nil {
		return false, err
	}
	if env.Status == "1" {
		return true, nil
	}
	if strings.Contains(strings.ToLower(env.text()), "not verified") {
		return false, nil
	}
	return false, fmt.Errorf("explorer getabi %s: %s: %s", contract.Hex(), env.Message, env.text())
}

// text returns the result when the explorer put a message there
func (e *envelope) text() string {
	var s string
	if err := json.Unmarshal(e.Result, &s); err != nil {
		return ""
	}
	return s
}

// get issues one API call through the retry strategy. A quota rejection
// arrives as a 200 with status "0" and is surfaced as an error.
func (c *Client) get(ctx context.Context, params url.Values) (*envelope, error) {
	if c.apiKey != "" {
		params.Set("apikey", c.apiKey)
	}

	var env *envelope
	err := c.retry.Execute(ctx, func() error {
		var err error
		env, err = c.do(ctx, params)
		return err
	})
	if err != nil {
		return nil, err
	}
	return env, nil
}

func (c *Client) do(ctx context.Context, params url.Values) (*envelope, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build explorer request: %w", err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("explorer request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("explorer returned %d %s", resp.StatusCode, http.StatusText(resp.StatusCode))
	}

	var env envelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return nil, fmt.Errorf("failed to decode explorer response: %w", err)
	}
	if env.Status != "1" && strings.Contains(strings.ToLower(env.text()), "rate limit") {
		return nil, fmt.Errorf("explorer rate limit: %s", env.text())
	}
	return &env, nil
}

// CreatedContract returns the program created by a successful creation entry
func (t Tx) CreatedContract() (common.Address, bool) {
	if t.ContractAddress == "" || t.IsError != "0" || !common.IsHexAddress(t.ContractAddress) {
		return common.Address{}, false
	}
	return common.HexToAddress(t.ContractAddress), true
}

// Sender returns the parsed sender address
func (t Tx) Sender() (common.Address, bool) {
	if !common.IsHexAddress(t.From) {
		return common.Address{}, false
	}
	return common.HexToAddress(t.From), true
}

// Time returns the entry's timestamp, zero when unparsable
func (t Tx) Time() time.Time {
	secs, err := strconv.ParseInt(t.TimeStamp, 10, 64)
	if err != nil {
		return time.Time{}
	}
	return time.Unix(secs, 0).UTC()
}

// TxHash returns the parsed transaction hash
func (t Tx) TxHash() common.Hash {
	return common.HexToHash(t.Hash)
}
