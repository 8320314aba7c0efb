// analyzer.go
//
// Top-level orchestration: websocket feed into the decoder, EMA smoothing,
// and the async CSV logger, with a session summary row left in sqlite on
// the way out.
//
// Threading: the feed connection's read goroutine is the pipeline's producer
// and runs HandleFrame for every raw frame; all I/O happens on the logger's
// pinned consumer thread. Stop is idempotent and drains before returning.

package analyzer

import (
	"fmt"
	"strconv"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"tickerd/csvlog"
	"tickerd/ema"
	"tickerd/parser"
	"tickerd/store"
	"tickerd/types"
	"tickerd/ws"
)

// Config wires the analyzer together. Zero-value fields fall back to
// production defaults where one exists.
type Config struct {
	Products      []string       // product ids to subscribe, e.g. BTC-USD
	FeedURL       string         // empty means the production feed
	CSVPath       string         // output destination for tick lines
	SessionDBPath string         // sqlite path for session summaries; empty disables
	EMASeconds    int            // smoothing interval; <=0 means 5
	LoggerOptions csvlog.Options // consumer placement, flush cadence, stamping
}

// Stats is a point-in-time snapshot of the pipeline counters.
type Stats struct {
	Received  int64 // raw frames seen
	Parsed    int64 // frames decoded to ticker records
	Logged    int64 // records accepted by the async logger
	Dropped   int64 // records refused (ring full or logger not ready)
	QueueSize int   // records currently awaiting serialization
}

// Analyzer owns one feed connection and one logger for its lifetime.
type Analyzer struct {
	cfg Config
	log *zap.Logger

	calc   *ema.Calculator
	logger *csvlog.Logger
	client *ws.Client

	running atomic.Bool
	stopped atomic.Bool

	received atomic.Int64
	parsed   atomic.Int64
	logged   atomic.Int64
	dropped  atomic.Int64

	lastPrice atomic.Pointer[string]

	startedNs int64
	feedDone  chan struct{}
}

// New prepares an analyzer; nothing runs until Start. The EMA calculator is
// seeded here so Stop on a never-started analyzer still records cleanly.
func New(cfg Config, log *zap.Logger) *Analyzer {
	if log == nil {
		log = zap.NewNop()
	}
	return &Analyzer{cfg: cfg, log: log, calc: ema.New(cfg.EMASeconds)}
}

// Start opens the CSV logger, connects the feed, and launches the read loop.
// An unreachable feed fails Start. An unopenable CSV destination does not:
// the logger stays not-ready and every record is counted as dropped.
func (a *Analyzer) Start() error {
	if !a.running.CompareAndSwap(false, true) {
		return fmt.Errorf("analyzer already running")
	}

	a.calc = ema.New(a.cfg.EMASeconds)

	opts := a.cfg.LoggerOptions
	opts.Logger = a.log
	a.logger = csvlog.New(a.cfg.CSVPath, opts)
	if !a.logger.IsReady() {
		a.log.Warn("csv logger not ready, ticks will be dropped",
			zap.String("path", a.cfg.CSVPath))
	}

	a.client = ws.NewClient(a.cfg.FeedURL, a.cfg.Products, a.log)
	if err := a.client.Connect(); err != nil {
		a.logger.Close()
		a.running.Store(false)
		return fmt.Errorf("start analyzer: %w", err)
	}

	a.startedNs = time.Now().UTC().UnixNano()
	a.feedDone = make(chan struct{})
	go func() {
		defer close(a.feedDone)
		if err := a.client.Run(a.HandleFrame); err != nil {
			a.log.Error("feed terminated", zap.Error(err))
		}
	}()

	a.log.Info("analyzer started",
		zap.Strings("products", a.cfg.Products),
		zap.String("csv", a.cfg.CSVPath),
		zap.Bool("csv_ready", a.logger.IsReady()))
	return nil
}

// HandleFrame is the producer path, invoked once per raw feed frame. This is
// the inbound boundary for the decoder collaborator: everything from here to
// the ring push runs on the caller's thread without blocking or I/O.
func (a *Analyzer) HandleFrame(msg []byte) {
	if !a.running.Load() {
		return
	}
	a.received.Add(1)

	if !parser.IsTickerQuick(msg) {
		return
	}
	td, ok := parser.ParseTicker(msg)
	if !ok {
		return
	}
	a.parsed.Add(1)

	bid, _ := strconv.ParseFloat(td.BestBid, 64)
	ask, _ := strconv.ParseFloat(td.BestAsk, 64)
	td.MidPrice = types.Midpoint(bid, ask)

	now := td.TimestampNanos
	if price, err := strconv.ParseFloat(td.Price, 64); err == nil && price > 0 {
		td.PriceEMA = a.calc.UpdatePrice(price, now)
	} else {
		td.PriceEMA = a.calc.Price()
	}
	if td.MidPrice > 0 {
		td.MidPriceEMA = a.calc.UpdateMidPrice(td.MidPrice, now)
	} else {
		td.MidPriceEMA = a.calc.MidPrice()
	}

	p := td.Price
	a.lastPrice.Store(&p)

	if a.logger.Log(td) {
		a.logged.Add(1)
	} else {
		a.dropped.Add(1)
	}
}

// Stop closes the feed, drains and closes the logger, records the session
// summary, and logs final counters. Idempotent; later calls return at once.
func (a *Analyzer) Stop() {
	if !a.stopped.CompareAndSwap(false, true) {
		return
	}
	a.running.Store(false)

	if a.client != nil {
		a.client.Close()
	}
	if a.feedDone != nil {
		<-a.feedDone
	}
	if a.logger != nil {
		a.logger.Close()
	}

	st := a.Stats()
	a.recordSession(st)
	a.log.Info("analyzer stopped",
		zap.Int64("received", st.Received),
		zap.Int64("parsed", st.Parsed),
		zap.Int64("logged", st.Logged),
		zap.Int64("dropped", st.Dropped))
}

// IsRunning reports whether Start succeeded and Stop has not yet run.
func (a *Analyzer) IsRunning() bool { return a.running.Load() }

// Done exposes the feed goroutine's completion, letting callers react when
// the connection dies (there is no reconnect). Nil before Start.
func (a *Analyzer) Done() <-chan struct{} { return a.feedDone }

// Stats snapshots the counters. Safe from any goroutine.
func (a *Analyzer) Stats() Stats {
	st := Stats{
		Received: a.received.Load(),
		Parsed:   a.parsed.Load(),
		Logged:   a.logged.Load(),
		Dropped:  a.dropped.Load(),
	}
	if a.logger != nil {
		st.QueueSize = a.logger.QueueSize()
	}
	return st
}

// recordSession persists the shutdown summary when a session db is
// configured. Failures degrade to a warning; the CSV is already safe.
func (a *Analyzer) recordSession(st Stats) {
	if a.cfg.SessionDBPath == "" {
		return
	}
	db, err := store.Open(a.cfg.SessionDBPath)
	if err != nil {
		a.log.Warn("session db unavailable", zap.Error(err))
		return
	}
	defer db.Close()

	last := ""
	if p := a.lastPrice.Load(); p != nil {
		last = *p
	}
	sum := store.Summary{
		Products:    a.cfg.Products,
		StartedNs:   a.startedNs,
		EndedNs:     time.Now().UTC().UnixNano(),
		Received:    st.Received,
		Parsed:      st.Parsed,
		Logged:      st.Logged,
		Dropped:     st.Dropped,
		LastPrice:   last,
		PriceEMA:    a.calc.Price(),
		MidPriceEMA: a.calc.MidPrice(),
	}
	if err := db.RecordSession(sum); err != nil {
		a.log.Warn("session summary not recorded", zap.Error(err))
	}
}
