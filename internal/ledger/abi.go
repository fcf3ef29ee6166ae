package ledger

import (
	"errors"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

// treasuryABIJSON describes the grant treasury contract
const treasuryABIJSON = `[
  {"type":"function","name":"patron","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"address"}]},
  {"type":"function","name":"grantCount","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"uint256"}]},
  {"type":"function","name":"currentRound","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"uint256"}]},
  {"type":"function","name":"totalDisbursed","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"uint256"}]},
  {"type":"function","name":"totalGrantedTo","stateMutability":"view","inputs":[{"name":"recipient","type":"address"}],"outputs":[{"name":"","type":"uint256"}]},
  {"type":"function","name":"treasuryBalance","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"uint256"}]},
  {"type":"function","name":"startRound","stateMutability":"nonpayable","inputs":[{"name":"theme","type":"string"}],"outputs":[]},
  {"type":"function","name":"disburse","stateMutability":"payable","inputs":[{"name":"recipient","type":"address"},{"name":"reasonHash","type":"bytes32"}],"outputs":[]},
  {"type":"function","name":"getGrant","stateMutability":"view","inputs":[{"name":"id","type":"uint256"}],"outputs":[
    {"name":"","type":"tuple","components":[
      {"name":"recipient","type":"address"},
      {"name":"amount","type":"uint256"},
      {"name":"reasonHash","type":"bytes32"},
      {"name":"timestamp","type":"uint256"},
      {"name":"roundId","type":"uint256"}
    ]}
  ]},
  {"type":"event","name":"GrantDisbursed","anonymous":false,"inputs":[
    {"name":"grantId","type":"uint256","indexed":true},
    {"name":"roundId","type":"uint256","indexed":true},
    {"name":"recipient","type":"address","indexed":true},
    {"name":"amount","type":"uint256","indexed":false},
    {"name":"reasonHash","type":"bytes32","indexed":false}
  ]},
  {"type":"event","name":"RoundStarted","anonymous":false,"inputs":[
    {"name":"roundId","type":"uint256","indexed":true},
    {"name":"theme","type":"string","indexed":false}
  ]},
  {"type":"event","name":"TreasuryFunded","anonymous":false,"inputs":[
    {"name":"funder","type":"address","indexed":true},
    {"name":"amount","type":"uint256","indexed":false}
  ]}
]`

// TreasuryABI is the parsed treasury interface
var TreasuryABI = mustParseABI(treasuryABIJSON)

func mustParseABI(raw string) abi.ABI {
	parsed, err := abi.JSON(strings.NewReader(raw))
	if err != nil {
		panic(fmt.Sprintf("invalid treasury abi: %v", err))
	}
	return parsed
}

var errEventMismatch = errors.New("event signature mismatch")

// GrantView is the on-chain grant tuple returned by getGrant
type GrantView struct {
	Recipient  common.Address
	Amount     *big.Int
	ReasonHash [32]byte
	Timestamp  *big.Int
	RoundId    *big.Int
}

// GrantDisbursed is the completion event emitted by disburse
type GrantDisbursed struct {
	GrantId    *big.Int
	RoundId    *big.Int
	Recipient  common.Address
	Amount     *big.Int
	ReasonHash [32]byte
}

// RoundStarted is emitted by startRound
type RoundStarted struct {
	RoundId *big.Int
	Theme   string
}

// unpackLog decodes both the data and the indexed topics of a log into out
func unpackLog(out interface{}, event string, lg types.Log) error {
	ev, ok := TreasuryABI.Events[event]
	if !ok {
		return fmt.Errorf("unknown event %s", event)
	}
	if len(lg.Topics) == 0 || lg.Topics[0] != ev.ID {
		return errEventMismatch
	}
	if len(lg.Data) > 0 {
		if err := TreasuryABI.UnpackIntoInterface(out, event, lg.Data); err != nil {
			return fmt.Errorf("failed to unpack %s data: %w", event, err)
		}
	}

	var indexed abi.Arguments
	for _, arg := range ev.Inputs {
		if arg.Indexed {
			indexed = append(indexed, arg)
		}
	}
	if err := abi.ParseTopics(out, indexed, lg.Topics[1:]); err != nil {
		return fmt.Errorf("failed to parse %s topics: %w", event, err)
	}
	return nil
}

// ParseGrantDisbursed returns the first GrantDisbursed event emitted by the
// treasury at address among logs
func ParseGrantDisbursed(logs []*types.Log, address common.Address) (*GrantDisbursed, bool) {
	for _, lg := range logs {
		if lg == nil || lg.Address != address {
			continue
		}
		var ev GrantDisbursed
		if err := unpackLog(&ev, "GrantDisbursed", *lg); err != nil {
			continue
		}
		return &ev, true
	}
	return nil, false
}

// ParseRoundStarted returns the first RoundStarted event emitted by the
// treasury at address among logs
func ParseRoundStarted(logs []*types.Log, address common.Address) (*RoundStarted, bool) {
	for _, lg := range logs {
		if lg == nil || lg.Address != address {
			continue
		}
		var ev RoundStarted
		if err := unpackLog(&ev, "RoundStarted", *lg); err != nil {
			continue
		}
		return &ev, true
	}
	return nil, false
}
