package types

// ============================================================================
// COINBASE TICKER RECORD
// ============================================================================

// TickerData is one fully-decoded observation from the Coinbase ticker feed.
// Value semantics only: the decoder fills every field before the record enters
// the pipeline, the logger copies it into a ring slot, and nothing mutates it
// afterwards.
type TickerData struct {
	// Source fields, verbatim wire strings. Prices and sizes stay textual so
	// the CSV output preserves exchange precision exactly.
	Type      string // message type, normally "ticker"
	Sequence  string // feed sequence number
	ProductID string // trading pair, e.g. "BTC-USD"
	Price     string // last trade price
	Open24h   string // 24-hour opening price
	Volume24h string // 24-hour volume
	Low24h    string // 24-hour low
	High24h   string // 24-hour high
	Volume30d string // 30-day volume
	BestBid   string // best bid price
	BestAsk   string // best ask price
	Side      string // taker side, "buy" or "sell"
	Time      string // exchange timestamp, RFC3339
	TradeID   string // trade identifier
	LastSize  string // last trade size

	// Derived fields, computed by the caller before the record is logged.
	PriceEMA    float64 // smoothed last-trade price
	MidPriceEMA float64 // smoothed midpoint
	MidPrice    float64 // (best_bid + best_ask) / 2

	// TimestampNanos is the event time in nanoseconds since the Unix epoch,
	// parsed from the exchange timestamp; the decoder substitutes the local
	// receive time when the exchange timestamp is absent or malformed.
	TimestampNanos int64
}

// Midpoint returns (bid+ask)/2, or 0 when either side is absent or
// non-positive.
func Midpoint(bid, ask float64) float64 {
	if bid <= 0 || ask <= 0 {
		return 0
	}
	return (bid + ask) / 2
}
