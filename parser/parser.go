// parser.go
//
// Wire decoder for Coinbase ticker messages. Sits upstream of the logging
// core: it turns one raw websocket frame into one fully-populated TickerData,
// or rejects it. Numeric-looking fields stay strings on purpose; the CSV
// output must preserve exchange precision bit-for-bit.

package parser

import (
	"bytes"
	"strconv"
	"time"

	"github.com/sugawarayuuta/sonnet"

	"tickerd/types"
)

// tickerType is the only message type this decoder accepts.
const tickerType = "ticker"

var tickerMarker = []byte(`"type":"ticker"`)

// wireTicker mirrors the feed's ticker schema. sequence and trade_id are the
// only bare JSON numbers in the frame; both are integers on the wire, so
// int64 carries them without precision loss. Pointers distinguish an absent
// field (the initial snapshot carries no trade_id) from a literal zero.
type wireTicker struct {
	Type      string `json:"type"`
	Sequence  *int64 `json:"sequence"`
	ProductID string `json:"product_id"`
	Price     string `json:"price"`
	Open24h   string `json:"open_24h"`
	Volume24h string `json:"volume_24h"`
	Low24h    string `json:"low_24h"`
	High24h   string `json:"high_24h"`
	Volume30d string `json:"volume_30d"`
	BestBid   string `json:"best_bid"`
	BestAsk   string `json:"best_ask"`
	Side      string `json:"side"`
	Time      string `json:"time"`
	TradeID   *int64 `json:"trade_id"`
	LastSize  string `json:"last_size"`
}

// wireInt renders an optional wire integer, keeping absent fields empty in
// the CSV output.
func wireInt(n *int64) string {
	if n == nil {
		return ""
	}
	return strconv.FormatInt(*n, 10)
}

// IsTickerQuick is a cheap pre-filter: it answers "could this frame be a
// ticker?" without decoding, so subscription acks and heartbeats skip the
// unmarshal entirely. False positives are harmless (ParseTicker re-checks),
// false negatives impossible for well-formed feed output.
func IsTickerQuick(data []byte) bool {
	return bytes.Contains(data, tickerMarker)
}

// ParseTicker decodes one raw frame. The second return is false for
// non-ticker messages and malformed JSON. A missing or unparsable time field
// is not an error: the event timestamp silently falls back to the local
// clock, matching the rest of the pipeline's degrade-don't-crash stance.
func ParseTicker(data []byte) (*types.TickerData, bool) {
	var w wireTicker
	if err := sonnet.Unmarshal(data, &w); err != nil {
		return nil, false
	}
	if w.Type != tickerType || w.ProductID == "" {
		return nil, false
	}

	td := &types.TickerData{
		Type:      w.Type,
		Sequence:  wireInt(w.Sequence),
		ProductID: w.ProductID,
		Price:     w.Price,
		Open24h:   w.Open24h,
		Volume24h: w.Volume24h,
		Low24h:    w.Low24h,
		High24h:   w.High24h,
		Volume30d: w.Volume30d,
		BestBid:   w.BestBid,
		BestAsk:   w.BestAsk,
		Side:      w.Side,
		Time:      w.Time,
		TradeID:   wireInt(w.TradeID),
		LastSize:  w.LastSize,
	}
	td.TimestampNanos = eventNanos(w.Time)
	return td, true
}

// eventNanos converts the exchange RFC3339 timestamp to Unix nanoseconds,
// substituting the current wall clock (UTC) when it will not parse.
func eventNanos(s string) int64 {
	if s != "" {
		if ts, err := time.Parse(time.RFC3339Nano, s); err == nil {
			return ts.UTC().UnixNano()
		}
	}
	return time.Now().UTC().UnixNano()
}
