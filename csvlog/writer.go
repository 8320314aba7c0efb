// writer.go
//
// Consumer-side CSV encoder. Single-writer by contract: everything here runs
// on the logger's consumer thread, so the only synchronisation is the atomic
// guard on the header, kept so a future second writer cannot silently
// duplicate it.

package csvlog

import (
	"bufio"
	"io"
	"strconv"
	"strings"
	"sync/atomic"

	"tickerd/types"
)

// header names every column in record order: the 15 source fields, the 3
// derived fields, and (when stamping is on) the local write time.
const header = "type,sequence,product_id,price,open_24h,volume_24h,low_24h,high_24h," +
	"volume_30d,best_bid,best_ask,side,time,trade_id,last_size," +
	"price_ema,mid_price_ema,mid_price"

const stampColumn = ",logged_at_ns"

// floatPrecision is the fixed fractional precision for derived fields.
const floatPrecision = 8

// Writer encodes ticker records as delimited text lines on a buffered stream.
type Writer struct {
	bw            *bufio.Writer
	stamp         bool
	headerWritten atomic.Bool
	line          []byte // scratch, reused across records
}

// NewWriter wraps w. stamp adds the logged_at_ns column.
func NewWriter(w io.Writer, stamp bool) *Writer {
	return &Writer{
		bw:    bufio.NewWriterSize(w, 64*1024),
		stamp: stamp,
		line:  make([]byte, 0, 512),
	}
}

// WriteRecord appends one record as a CSV line, lazily emitting the header
// exactly once first. stampNanos is written only when stamping is enabled.
func (w *Writer) WriteRecord(td *types.TickerData, stampNanos int64) error {
	if w.headerWritten.CompareAndSwap(false, true) {
		if _, err := w.bw.WriteString(header); err != nil {
			return err
		}
		if w.stamp {
			if _, err := w.bw.WriteString(stampColumn); err != nil {
				return err
			}
		}
		if err := w.bw.WriteByte('\n'); err != nil {
			return err
		}
	}

	b := w.line[:0]
	b = appendField(b, td.Type)
	b = append(b, ',')
	b = appendField(b, td.Sequence)
	b = append(b, ',')
	b = appendField(b, td.ProductID)
	b = append(b, ',')
	b = appendField(b, td.Price)
	b = append(b, ',')
	b = appendField(b, td.Open24h)
	b = append(b, ',')
	b = appendField(b, td.Volume24h)
	b = append(b, ',')
	b = appendField(b, td.Low24h)
	b = append(b, ',')
	b = appendField(b, td.High24h)
	b = append(b, ',')
	b = appendField(b, td.Volume30d)
	b = append(b, ',')
	b = appendField(b, td.BestBid)
	b = append(b, ',')
	b = appendField(b, td.BestAsk)
	b = append(b, ',')
	b = appendField(b, td.Side)
	b = append(b, ',')
	b = appendField(b, td.Time)
	b = append(b, ',')
	b = appendField(b, td.TradeID)
	b = append(b, ',')
	b = appendField(b, td.LastSize)
	b = append(b, ',')
	b = strconv.AppendFloat(b, td.PriceEMA, 'f', floatPrecision, 64)
	b = append(b, ',')
	b = strconv.AppendFloat(b, td.MidPriceEMA, 'f', floatPrecision, 64)
	b = append(b, ',')
	b = strconv.AppendFloat(b, td.MidPrice, 'f', floatPrecision, 64)
	if w.stamp {
		b = append(b, ',')
		b = strconv.AppendInt(b, stampNanos, 10)
	}
	b = append(b, '\n')
	w.line = b // keep the grown capacity

	_, err := w.bw.Write(b)
	return err
}

// Flush pushes buffered bytes to the underlying stream.
func (w *Writer) Flush() error { return w.bw.Flush() }

// appendField appends s, quoting it per the delimited-text convention when it
// contains the delimiter, a quote, or a line break; embedded quotes are
// doubled.
func appendField(dst []byte, s string) []byte {
	if !strings.ContainsAny(s, ",\"\n\r") {
		return append(dst, s...)
	}
	dst = append(dst, '"')
	for i := 0; i < len(s); i++ {
		if s[i] == '"' {
			dst = append(dst, '"', '"')
			continue
		}
		dst = append(dst, s[i])
	}
	return append(dst, '"')
}

// UnescapeField reverses appendField for one already-isolated field. Used by
// tests and offline tooling; the hot path never parses its own output.
func UnescapeField(s string) string {
	if len(s) < 2 || s[0] != '"' || s[len(s)-1] != '"' {
		return s
	}
	return strings.ReplaceAll(s[1:len(s)-1], `""`, `"`)
}
