// Package assets holds the static, process-wide asset tables: decimals,
// broker names, instrument names and coin types per symbol.
package assets

import (
	"strings"

	"github.com/dwdwow/mp-go/constants"
	"github.com/dwdwow/mp-go/types"
)

// Asset is the static description of one supported symbol
type Asset struct {
	Symbol     string
	Decimals   int
	BrokerName string
	// CoinType is empty when the type argument must come from the broker listing
	CoinType string
	// Known is false for symbols resolved through the fallback mapping
	Known bool
}

var table = map[string]Asset{
	"MOVE":  {Symbol: "MOVE", Decimals: 8, BrokerName: "movement-move-fa", CoinType: "0x1::aptos_coin::AptosCoin"},
	"USDC":  {Symbol: "USDC", Decimals: 6, BrokerName: "movement-usdc"},
	"USDT":  {Symbol: "USDT", Decimals: 6, BrokerName: "movement-usdt"},
	"WBTC":  {Symbol: "WBTC", Decimals: 8, BrokerName: "movement-wbtc"},
	"WETH":  {Symbol: "WETH", Decimals: 8, BrokerName: "movement-weth"},
	"EZETH": {Symbol: "EZETH", Decimals: 8, BrokerName: "movement-ezeth"},
	"LBTC":  {Symbol: "LBTC", Decimals: 8, BrokerName: "movement-lbtc"},
	"USDA":  {Symbol: "USDA", Decimals: 6, BrokerName: "movement-usda"},
}

// searchNames lists broker name fragments to try per symbol, most preferred first
var searchNames = map[string][]string{
	"USDC":  {"movement-usdc", "usdc"},
	"USDT":  {"movement-usdt", "usdt"},
	"MOVE":  {"movement-move-fa", "movement-move", "move"},
	"WBTC":  {"movement-wbtc", "wbtc"},
	"WETH":  {"movement-weth", "weth"},
	"EZETH": {"movement-ezeth", "ezeth"},
	"LBTC":  {"movement-lbtc", "lbtc"},
	"USDA":  {"movement-usda", "usda"},
}

// Normalize upper-cases and trims a symbol
func Normalize(symbol string) string {
	return strings.ToUpper(strings.TrimSpace(symbol))
}

// Lookup returns the static entry for symbol. Unknown symbols map
// deterministically to movement-<lowercase symbol> with default decimals.
func Lookup(symbol string) Asset {
	sym := Normalize(symbol)
	if a, ok := table[sym]; ok {
		a.Known = true
		return a
	}
	return Asset{
		Symbol:     sym,
		Decimals:   constants.DefaultDecimals,
		BrokerName: constants.BrokerNetworkPrefix + "-" + strings.ToLower(sym),
	}
}

// Symbols returns the statically known symbols
func Symbols() []string {
	return []string{"MOVE", "USDC", "USDT", "WBTC", "WETH", "EZETH", "LBTC", "USDA"}
}

// SearchNames returns the broker name fragments used to discover a broker for symbol
func SearchNames(symbol string) []string {
	sym := Normalize(symbol)
	if names, ok := searchNames[sym]; ok {
		return names
	}
	return []string{strings.ToLower(sym)}
}

// DepositNote is the collateral instrument of a broker
func DepositNote(brokerName string) string {
	return brokerName + "-deposit-note"
}

// LoanNote is the liability instrument of a broker
func LoanNote(brokerName string) string {
	return brokerName + "-loan-note"
}

// InstrumentID returns the instrument an action on brokerName touches
func InstrumentID(kind types.ActionKind, brokerName string) string {
	if kind.Side() == types.SideCollateral {
		return DepositNote(brokerName)
	}
	return LoanNote(brokerName)
}
