package ledger

import (
	"math/big"

	"github.com/shopspring/decimal"
)

// EtherDecimals is the number of wei decimals in one ether
const EtherDecimals = 18

// EtherToWei converts an ETH amount to wei, truncating sub-wei precision
func EtherToWei(eth decimal.Decimal) *big.Int {
	return eth.Shift(EtherDecimals).Truncate(0).BigInt()
}

// WeiToEther converts a wei amount to ETH
func WeiToEther(wei *big.Int) decimal.Decimal {
	if wei == nil {
		return decimal.Zero
	}
	return decimal.NewFromBigInt(wei, -EtherDecimals)
}
