package journal

import (
	"database/sql"

	_ "github.com/mattn/go-sqlite3"
)

type SQLite struct {
	db *sql.DB
}

func NewSQLite(path string) (*SQLite, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, err
	}

	if _, err := db.Exec(Schema); err != nil {
		_ = db.Close()
		return nil, err
	}

	return &SQLite{db: db}, nil
}

func (j *SQLite) RecordTrade(t TradeRecord) error {
	_, err := j.db.Exec(`
		INSERT INTO trades
		(trade_id, symbol, bias, entry_price, exit_price, open_time, close_time, realized_pl, reason)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		t.TradeID, t.Symbol, t.Bias.String(), t.EntryPrice,
		t.ExitPrice, t.OpenTime.UTC(), t.CloseTime.UTC(), t.RealizedPL, t.Reason,
	)
	return err
}

func (j *SQLite) RecordDecision(d Decision) error {
	_, err := j.db.Exec(`
		INSERT INTO decisions
		(run_id, time, symbol, bias, score, outcome, reason)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		d.RunID, d.Time.UTC(), d.Symbol, d.Bias.String(), d.Score, d.Outcome, d.Reason,
	)
	return err
}

func (j *SQLite) RecordRegime(r RegimeSnapshot) error {
	_, err := j.db.Exec(`
		INSERT INTO regimes
		(run_id, time, score_long, score_short, eligible_long, eligible_short, available, summary)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		r.RunID, r.Time.UTC(), r.ScoreLong, r.ScoreShort,
		r.EligibleLong, r.EligibleShort, r.Available, r.Summary,
	)
	return err
}

func (j *SQLite) Close() error {
	return j.db.Close()
}
