package feed

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/rustyeddy/scanner/market"
)

const DefaultYahooURL = "https://query1.finance.yahoo.com"

// Yahoo reads daily and weekly bars of macro references such as indices
// and currency baskets from the chart API.
type Yahoo struct {
	BaseURL string
	Client  *HTTPClient
	Now     func() time.Time
}

func NewYahoo(c *HTTPClient) *Yahoo {
	return &Yahoo{BaseURL: DefaultYahooURL, Client: c, Now: time.Now}
}

type chartResp struct {
	Chart struct {
		Result []struct {
			Timestamp  []int64 `json:"timestamp"`
			Indicators struct {
				Quote []struct {
					Open   []*float64 `json:"open"`
					High   []*float64 `json:"high"`
					Low    []*float64 `json:"low"`
					Close  []*float64 `json:"close"`
					Volume []*float64 `json:"volume"`
				} `json:"quote"`
			} `json:"indicators"`
		} `json:"result"`
		Error *struct {
			Code        string `json:"code"`
			Description string `json:"description"`
		} `json:"error"`
	} `json:"chart"`
}

func yahooInterval(tf market.Timeframe) string {
	if tf == market.Weekly {
		return "1wk"
	}
	return "1d"
}

// yahooRange picks the smallest range that covers bars.
func yahooRange(tf market.Timeframe, bars int) string {
	days := bars * 7 / 5
	if tf == market.Weekly {
		days = bars * 7
	}
	switch {
	case days <= 180:
		return "6mo"
	case days <= 365:
		return "1y"
	case days <= 730:
		return "2y"
	case days <= 1825:
		return "5y"
	case days <= 3650:
		return "10y"
	}
	return "max"
}

func (y *Yahoo) Series(ctx context.Context, symbol string, tf market.Timeframe, bars int) (market.Series, error) {
	q := url.Values{}
	q.Set("interval", yahooInterval(tf))
	q.Set("range", yahooRange(tf, bars))
	u := strings.TrimRight(y.BaseURL, "/") + "/v8/finance/chart/" + url.PathEscape(symbol) + "?" + q.Encode()

	var cr chartResp
	if err := y.Client.GetJSON(ctx, u, &cr); err != nil {
		return market.Series{}, fmt.Errorf("chart %s: %w", symbol, err)
	}
	if cr.Chart.Error != nil {
		return market.Series{}, fmt.Errorf("chart %s: %s: %s", symbol, cr.Chart.Error.Code, cr.Chart.Error.Description)
	}
	if len(cr.Chart.Result) == 0 || len(cr.Chart.Result[0].Indicators.Quote) == 0 {
		return market.Series{}, fmt.Errorf("chart %s: %w", symbol, ErrNoData)
	}

	res := cr.Chart.Result[0]
	qt := res.Indicators.Quote[0]
	s := market.Series{Symbol: symbol, Timeframe: tf}
	for i, ts := range res.Timestamp {
		o, h, l, c := at(qt.Open, i), at(qt.High, i), at(qt.Low, i), at(qt.Close, i)
		if o == nil || h == nil || l == nil || c == nil {
			continue
		}
		vol := 0.0
		if v := at(qt.Volume, i); v != nil {
			vol = *v
		}
		s.Candles = append(s.Candles, market.Candle{
			OpenTime: time.Unix(ts, 0).UTC(),
			Open:     *o,
			High:     *h,
			Low:      *l,
			Close:    *c,
			Volume:   vol,
		})
	}

	now := time.Now()
	if y.Now != nil {
		now = y.Now()
	}
	s = s.Closed(now)
	if bars > 0 && s.Len() > bars {
		s.Candles = s.Candles[s.Len()-bars:]
	}
	if s.Len() == 0 {
		return s, fmt.Errorf("chart %s: %w", symbol, ErrNoData)
	}
	return s, nil
}

func at(xs []*float64, i int) *float64 {
	if i < len(xs) {
		return xs[i]
	}
	return nil
}
