package risk

import "fmt"

type Violation struct {
	Code string
	Msg  string
}

type Decision struct {
	Allowed    bool
	Violations []Violation
	State      State
}

func (d *Decision) add(code, msg string) {
	d.Violations = append(d.Violations, Violation{Code: code, Msg: msg})
	d.Allowed = false
}

// Reason joins the violation codes, or returns "" when allowed.
func (d Decision) Reason() string {
	out := ""
	for i, v := range d.Violations {
		if i > 0 {
			out += ","
		}
		out += v.Code
	}
	return out
}

// CanTrade reports whether new activity is allowed.
func CanTrade(s State, t Thresholds) bool {
	return Evaluate(s, t).Allowed
}

// Evaluate applies the circuit breakers and records every tripped limit.
func Evaluate(s State, t Thresholds) Decision {
	d := Decision{Allowed: true, State: s}

	if t.MaxConsecutiveLosses > 0 && s.ConsecutiveLosses >= t.MaxConsecutiveLosses {
		d.add("CONSECUTIVE_LOSSES",
			fmt.Sprintf("consecutive losses %d >= max %d", s.ConsecutiveLosses, t.MaxConsecutiveLosses))
	}
	if t.MaxDrawdownPct > 0 && s.LastKnownDrawdown >= t.MaxDrawdownPct {
		d.add("DRAWDOWN_LIMIT",
			fmt.Sprintf("reference drawdown %.2f%% >= limit %.2f%%",
				100*s.LastKnownDrawdown, 100*t.MaxDrawdownPct))
	}

	return d
}
