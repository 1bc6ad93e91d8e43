package dispatch

import (
	"strings"
	"time"

	"github.com/rustyeddy/scanner/market"
)

const (
	dayLayout = "2006-01-02"
	keepDays  = 7
)

// State is the dispatch record persisted across runs.
type State struct {
	LastTopFingerprint string               `json:"last_top_fingerprint"`
	LastTopAt          time.Time            `json:"last_top_at"`
	SymbolSent         map[string]time.Time `json:"symbol_sent"`
	DailySent          map[string]int       `json:"daily_sent"`
}

func NewState() State {
	return State{
		SymbolSent: map[string]time.Time{},
		DailySent:  map[string]int{},
	}
}

func (s *State) init() {
	if s.SymbolSent == nil {
		s.SymbolSent = map[string]time.Time{}
	}
	if s.DailySent == nil {
		s.DailySent = map[string]int{}
	}
}

func symbolKey(symbol string, bias market.Bias) string {
	return strings.ToUpper(symbol) + "|" + bias.String()
}

func dayKey(t time.Time, loc *time.Location) string {
	return t.In(loc).Format(dayLayout)
}

// LastSent returns the last send of symbol with bias.
func (s State) LastSent(symbol string, bias market.Bias) (time.Time, bool) {
	t, ok := s.SymbolSent[symbolKey(symbol, bias)]
	return t, ok
}

// LastSentAny returns the latest send of symbol in either direction.
func (s State) LastSentAny(symbol string) (time.Time, bool) {
	prefix := strings.ToUpper(symbol) + "|"
	var (
		last  time.Time
		found bool
	)
	for k, t := range s.SymbolSent {
		if strings.HasPrefix(k, prefix) && (!found || t.After(last)) {
			last, found = t, true
		}
	}
	return last, found
}

func (s State) SentOn(day string) int { return s.DailySent[day] }

func (s *State) markSent(symbol string, bias market.Bias, now time.Time, day string) {
	s.init()
	s.SymbolSent[symbolKey(symbol, bias)] = now
	s.DailySent[day]++
}

// prune drops day counters older than a week and symbol stamps older than
// keep.
func (s *State) prune(now time.Time, loc *time.Location, keep time.Duration) {
	s.init()
	cutoff := now.In(loc).AddDate(0, 0, -keepDays).Format(dayLayout)
	for day := range s.DailySent {
		if day < cutoff {
			delete(s.DailySent, day)
		}
	}
	for k, t := range s.SymbolSent {
		if now.Sub(t) > keep {
			delete(s.SymbolSent, k)
		}
	}
}
