package market

import "strings"

// DefaultExcludedTerms are substrings that mark leveraged tokens, stablecoins
// and test pairs.
var DefaultExcludedTerms = []string{
	"UP", "DOWN", "BULL", "BEAR", "VENUS", "TUSD", "USDC", "LEVERAGED",
	"1000", "FDUSD", "BTCDOM", "TEST", "USDP", "DAI", "EUR",
}

// BaseAsset strips the quote suffix from a symbol ("ETHUSDT" -> "ETH").
func BaseAsset(symbol, quote string) string {
	return strings.TrimSuffix(strings.ToUpper(symbol), strings.ToUpper(quote))
}

// Excluded reports whether the base asset of symbol contains any of terms.
func Excluded(symbol, quote string, terms []string) bool {
	base := BaseAsset(symbol, quote)
	for _, t := range terms {
		t = strings.ToUpper(strings.TrimSpace(t))
		if t != "" && strings.Contains(base, t) {
			return true
		}
	}
	return false
}
