// journal/csv.go
package journal

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"time"

	"github.com/rustyeddy/scanner/market"
)

var tradeHeader = []string{"trade_id", "symbol", "bias", "entry_price", "exit_price", "open_time", "close_time", "realized_pl", "reason"}

// CSV is an append-only trade log. The header is written only when the file
// is created.
type CSV struct {
	path   string
	trades *csv.Writer
	tf     *os.File
}

func NewCSV(tradesPath string) (*CSV, error) {
	tf, err := os.OpenFile(tradesPath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, err
	}
	info, err := tf.Stat()
	if err != nil {
		_ = tf.Close()
		return nil, err
	}

	tw := csv.NewWriter(tf)
	if info.Size() == 0 {
		if err := tw.Write(tradeHeader); err != nil {
			_ = tf.Close()
			return nil, err
		}
		tw.Flush()
		if err := tw.Error(); err != nil {
			_ = tf.Close()
			return nil, err
		}
	}

	return &CSV{path: tradesPath, trades: tw, tf: tf}, nil
}

func (j *CSV) RecordTrade(t TradeRecord) error {
	err := j.trades.Write([]string{
		t.TradeID,
		t.Symbol,
		t.Bias.String(),
		f(t.EntryPrice),
		f(t.ExitPrice),
		t.OpenTime.UTC().Format(time.RFC3339),
		t.CloseTime.UTC().Format(time.RFC3339),
		f(t.RealizedPL),
		t.Reason,
	})
	if err != nil {
		return err
	}
	j.trades.Flush()
	return j.trades.Error()
}

// RecentTrades re-reads the file and returns the last n trades by close
// time, newest last.
func (j *CSV) RecentTrades(n int) ([]TradeRecord, error) {
	rf, err := os.Open(j.path)
	if err != nil {
		return nil, err
	}
	defer rf.Close()

	r := csv.NewReader(rf)
	r.FieldsPerRecord = len(tradeHeader)

	var out []TradeRecord
	line := 0
	for {
		row, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}
		line++
		if line == 1 && row[0] == tradeHeader[0] {
			continue
		}
		rec, err := parseTradeRow(row)
		if err != nil {
			return nil, fmt.Errorf("%s line %d: %w", j.path, line, err)
		}
		out = append(out, rec)
	}

	sort.SliceStable(out, func(a, b int) bool {
		return out[a].CloseTime.Before(out[b].CloseTime)
	})
	return tail(out, n), nil
}

func parseTradeRow(row []string) (TradeRecord, error) {
	var (
		rec TradeRecord
		err error
	)
	rec.TradeID = row[0]
	rec.Symbol = row[1]
	if rec.Bias, err = market.ParseBias(row[2]); err != nil {
		return rec, err
	}
	if rec.EntryPrice, err = strconv.ParseFloat(row[3], 64); err != nil {
		return rec, err
	}
	if rec.ExitPrice, err = strconv.ParseFloat(row[4], 64); err != nil {
		return rec, err
	}
	if rec.OpenTime, err = time.Parse(time.RFC3339, row[5]); err != nil {
		return rec, err
	}
	if rec.CloseTime, err = time.Parse(time.RFC3339, row[6]); err != nil {
		return rec, err
	}
	if rec.RealizedPL, err = strconv.ParseFloat(row[7], 64); err != nil {
		return rec, err
	}
	rec.Reason = row[8]
	return rec, nil
}

func (j *CSV) Close() error {
	j.trades.Flush()
	if err := j.trades.Error(); err != nil {
		_ = j.tf.Close()
		return err
	}
	return j.tf.Close()
}

func f(x float64) string {
	return strconv.FormatFloat(x, 'f', 6, 64)
}
