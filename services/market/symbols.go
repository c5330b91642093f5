package market

import (
	"net/url"
	"strings"
)

// DefaultBaseURL is the market data API root
const DefaultBaseURL = "https://api.coingecko.com/api/v3"

// DefaultProxyPrefix wraps a request so it is served through the CORS proxy
const DefaultProxyPrefix = "https://api.allorigins.win/get?url="

// TrackedSymbols is the fixed universe of asset ids the engine monitors
var TrackedSymbols = []string{
	"bitcoin", "ethereum", "binancecoin", "cardano", "solana",
	"chainlink", "polkadot", "avalanche-2", "polygon", "cosmos",
	"algorand", "vechain", "stellar", "monero", "tron",
	"uniswap", "litecoin", "ethereum-classic", "filecoin", "eos",
	"aave", "compound", "maker", "yearn-finance", "synthetix",
	"curve-dao-token", "sushi", "pancakeswap-token", "1inch", "0x",
	"decentraland", "sandbox", "axie-infinity", "chiliz", "enjincoin",
	"basic-attention-token", "loopring", "the-graph", "numeraire", "bancor",
	"kyber-network-crystal", "republic-protocol", "balancer", "storj", "civic",
	"district0x", "golem", "augur", "gnosis", "omisego",
}

// BuildMarketURL assembles the markets endpoint URL for the given asset ids
func BuildMarketURL(baseURL string, symbols []string) string {
	return baseURL + "/coins/markets" +
		"?vs_currency=usd" +
		"&ids=" + strings.Join(symbols, ",") +
		"&order=market_cap_desc" +
		"&per_page=100" +
		"&page=1" +
		"&sparkline=false" +
		"&price_change_percentage=24h"
}

// BuildProxyURL wraps a direct URL for the fallback proxy
func BuildProxyURL(proxyPrefix, directURL string) string {
	return proxyPrefix + url.QueryEscape(directURL)
}
