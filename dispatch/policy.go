package dispatch

import (
	"errors"
	"strings"
	"time"
)

// Policy is the global send policy applied to each batch.
type Policy struct {
	MinScore       float64
	TopN           int
	SymbolCooldown time.Duration
	SymbolLock     time.Duration
	GlobalCooldown time.Duration
	DailyCap       int
	Exclude        []string

	// Location decides which calendar day a send is counted against.
	Location *time.Location
}

func DefaultPolicy() Policy {
	return Policy{
		MinScore:       70,
		TopN:           5,
		SymbolCooldown: 30 * time.Minute,
		SymbolLock:     4 * time.Hour,
		GlobalCooldown: 2 * time.Hour,
		DailyCap:       10,
		Location:       time.UTC,
	}
}

func (p Policy) Validate() error {
	if p.MinScore < 0 || p.MinScore > 100 {
		return errors.New("min score must be within [0,100]")
	}
	if p.TopN <= 0 {
		return errors.New("top n must be > 0")
	}
	if p.DailyCap < 0 {
		return errors.New("daily cap must be >= 0")
	}
	if p.SymbolCooldown < 0 || p.SymbolLock < 0 || p.GlobalCooldown < 0 {
		return errors.New("cooldowns must be >= 0")
	}
	return nil
}

func (p Policy) location() *time.Location {
	if p.Location == nil {
		return time.UTC
	}
	return p.Location
}

func (p Policy) excluded(symbol string) bool {
	s := strings.ToUpper(symbol)
	for _, e := range p.Exclude {
		if e != "" && strings.ToUpper(e) == s {
			return true
		}
	}
	return false
}

// retention is how long per-symbol timestamps stay relevant.
func (p Policy) retention() time.Duration {
	if p.SymbolLock > p.SymbolCooldown {
		return p.SymbolLock
	}
	return p.SymbolCooldown
}
