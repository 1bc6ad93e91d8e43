package dispatch

import (
	"fmt"
	"strings"

	"github.com/cespare/xxhash/v2"
)

// Fingerprint hashes the ordered (symbol, bias, entry, stop, target) tuples
// of a ranked set. An empty set has a fixed fingerprint.
func Fingerprint(cs []Candidate) string {
	var sb strings.Builder
	for _, c := range cs {
		fmt.Fprintf(&sb, "%s|%s|%.8g|%.8g|%.8g\n",
			strings.ToUpper(c.Symbol), c.Bias, c.Levels.Entry, c.Levels.StopLoss, c.Levels.TakeProfit)
	}
	return fmt.Sprintf("%016x", xxhash.Sum64String(sb.String()))
}
