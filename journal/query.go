package journal

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/rustyeddy/scanner/market"
)

const tradeColumns = `trade_id, symbol, bias, entry_price, exit_price, open_time, close_time, realized_pl, reason`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTrade(s rowScanner) (TradeRecord, error) {
	var (
		rec  TradeRecord
		bias string
	)
	err := s.Scan(
		&rec.TradeID,
		&rec.Symbol,
		&bias,
		&rec.EntryPrice,
		&rec.ExitPrice,
		&rec.OpenTime,
		&rec.CloseTime,
		&rec.RealizedPL,
		&rec.Reason,
	)
	if err != nil {
		return TradeRecord{}, err
	}
	rec.Bias, _ = market.ParseBias(bias)
	return rec, nil
}

// GetTrade returns a single trade record by ID.
func (j *SQLite) GetTrade(tradeID string) (TradeRecord, error) {
	row := j.db.QueryRow(`SELECT `+tradeColumns+` FROM trades WHERE trade_id = ?`, tradeID)

	rec, err := scanTrade(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return TradeRecord{}, fmt.Errorf("trade %q not found", tradeID)
		}
		return TradeRecord{}, err
	}
	return rec, nil
}

// ListTradesClosedBetween returns trades whose close_time is within [start, end).
func (j *SQLite) ListTradesClosedBetween(start, end time.Time) ([]TradeRecord, error) {
	rows, err := j.db.Query(`
		SELECT `+tradeColumns+`
		FROM trades
		WHERE close_time >= ? AND close_time < ?
		ORDER BY close_time ASC`, start.UTC(), end.UTC())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []TradeRecord
	for rows.Next() {
		rec, err := scanTrade(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// RecentTrades returns the last n closed trades, newest last.
func (j *SQLite) RecentTrades(n int) ([]TradeRecord, error) {
	if n <= 0 {
		n = -1
	}
	rows, err := j.db.Query(`
		SELECT `+tradeColumns+`
		FROM trades
		ORDER BY close_time DESC, trade_id DESC
		LIMIT ?`, n)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []TradeRecord
	for rows.Next() {
		rec, err := scanTrade(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i, k := 0, len(out)-1; i < k; i, k = i+1, k-1 {
		out[i], out[k] = out[k], out[i]
	}
	return out, nil
}

// ListDecisions returns the audit rows of one run in insertion order.
func (j *SQLite) ListDecisions(runID string) ([]Decision, error) {
	rows, err := j.db.Query(`
		SELECT run_id, time, symbol, bias, score, outcome, reason
		FROM decisions
		WHERE run_id = ?
		ORDER BY rowid ASC`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Decision
	for rows.Next() {
		var (
			d    Decision
			bias string
		)
		if err := rows.Scan(&d.RunID, &d.Time, &d.Symbol, &bias, &d.Score, &d.Outcome, &d.Reason); err != nil {
			return nil, err
		}
		d.Bias, _ = market.ParseBias(bias)
		out = append(out, d)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// LatestRegime returns the most recently recorded regime snapshot.
func (j *SQLite) LatestRegime() (RegimeSnapshot, error) {
	var r RegimeSnapshot
	err := j.db.QueryRow(`
		SELECT run_id, time, score_long, score_short, eligible_long, eligible_short, available, summary
		FROM regimes
		ORDER BY time DESC
		LIMIT 1`).Scan(
		&r.RunID, &r.Time, &r.ScoreLong, &r.ScoreShort,
		&r.EligibleLong, &r.EligibleShort, &r.Available, &r.Summary,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return RegimeSnapshot{}, fmt.Errorf("no regime snapshots recorded")
		}
		return RegimeSnapshot{}, err
	}
	return r, nil
}
