// logger.go
//
// Asynchronous CSV logger: the producer-facing half of the pipeline. Log
// copies a record into a lock-free SPSC ring and returns immediately; a
// dedicated consumer thread, pinned and elevated via the affinity manager,
// drains the ring, serializes, and flushes on a time cadence.
//
// Loss model: a full ring drops the offending record (Log returns false),
// and a crash can lose up to one flush interval of written-but-unflushed
// lines. Nothing here ever blocks the producer or lets an I/O error cross
// to it.

package csvlog

import (
	"os"
	"runtime"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"tickerd/affinity"
	"tickerd/hrtimer"
	"tickerd/ring"
	"tickerd/types"
)

// queueSlots fixes the ring size at construction; capacity is queueSlots-1.
// Not runtime-configurable: the power-of-two guarantee is load-bearing.
const queueSlots = 8192

const (
	defaultFlushInterval = 10 * time.Millisecond
	defaultIdleSleep     = 100 * time.Microsecond
	readyWait            = time.Second
	readyPoll            = 500 * time.Microsecond
	threadLabel          = "csvlogger"
)

// Options configures a Logger. Use DefaultOptions as the base; the zero
// value pins to CPU 0 at no realtime priority, which is rarely what you want.
type Options struct {
	// CPU and NUMANode place the consumer thread; affinity.Auto selects from
	// the topology (preferring a node away from the producer).
	CPU      int
	NUMANode int
	// Priority is the SCHED_FIFO priority request; <=0 means the default 99.
	Priority int
	// FlushInterval is the durable-flush cadence; <=0 means 10ms.
	FlushInterval time.Duration
	// IdleSleep bounds the consumer's micro-sleep when the ring is empty;
	// <=0 means 100µs.
	IdleSleep time.Duration
	// Stamp adds the logged_at_ns column with the write-time reading of the
	// calibrated timer.
	Stamp bool
	// Logger receives cold-path diagnostics only; nil means none.
	Logger *zap.Logger
	// Timer overrides the clock, for tests; nil means the process default.
	Timer *hrtimer.Timer
}

// DefaultOptions returns the production configuration: auto placement,
// priority 99, 10ms flushes, stamping on.
func DefaultOptions() Options {
	return Options{
		CPU:           affinity.Auto,
		NUMANode:      affinity.Auto,
		Priority:      affinity.DefaultPriority,
		FlushInterval: defaultFlushInterval,
		IdleSleep:     defaultIdleSleep,
		Stamp:         true,
	}
}

// Logger is the asynchronous record logger. One producer goroutine may call
// Log; all I/O happens on the internal consumer thread.
type Logger struct {
	path string
	opts Options

	rb *ring.Ring[types.TickerData]

	running atomic.Bool // gates the consumer loop and producer acceptance
	ready   atomic.Bool // set once: consumer configured and file open
	closed  atomic.Bool // close ownership, makes Close idempotent

	flushHint   atomic.Bool  // producer-side Flush() request
	writeErrors atomic.Int64 // absorbed consumer-side I/O failures

	file *os.File // consumer-owned after the goroutine starts
	w    *Writer  // nil when the file failed to open

	done chan struct{}
	log  *zap.Logger
	tm   *hrtimer.Timer
}

// New opens path in append mode and starts the consumer thread, then waits a
// bounded interval for it to come up. New never fails: if the file cannot be
// opened the logger stays permanently not-ready, Log returns false, and
// Close still shuts the consumer down cleanly. Poll IsReady.
func New(path string, opts Options) *Logger {
	if opts.Priority <= 0 {
		opts.Priority = affinity.DefaultPriority
	}
	if opts.FlushInterval <= 0 {
		opts.FlushInterval = defaultFlushInterval
	}
	if opts.IdleSleep <= 0 {
		opts.IdleSleep = defaultIdleSleep
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.Timer == nil {
		opts.Timer = hrtimer.Default()
	}

	l := &Logger{
		path: path,
		opts: opts,
		rb:   ring.New[types.TickerData](queueSlots),
		done: make(chan struct{}),
		log:  opts.Logger,
		tm:   opts.Timer,
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		l.log.Error("csv output unavailable, logger will stay not-ready",
			zap.String("path", path), zap.Error(err))
	} else {
		l.file = f
	}

	l.running.Store(true)
	go l.consume()

	// Observe Ready before returning, but never hang the caller: after one
	// second the startup race is reported and construction proceeds.
	if l.file != nil {
		deadline := l.tm.NowNanos() + readyWait.Nanoseconds()
		for !l.ready.Load() && l.tm.NowNanos() < deadline {
			l.tm.SleepNanos(readyPoll.Nanoseconds())
		}
		if !l.ready.Load() {
			l.log.Warn("csv logger thread did not become ready in time",
				zap.String("path", path))
		}
	}
	return l
}

// Log enqueues one record for asynchronous persistence. Non-blocking, no I/O
// on the caller's thread. Returns false when the logger is not ready, already
// closed, or the ring is momentarily full; the record is then dropped at the
// caller's discretion.
func (l *Logger) Log(td *types.TickerData) bool {
	if td == nil || !l.running.Load() || !l.ready.Load() {
		return false
	}
	return l.rb.Push(*td)
}

// IsReady reports whether the output file is open and the consumer is up.
func (l *Logger) IsReady() bool { return l.ready.Load() }

// IsRunning reports whether the consumer loop is still accepting work.
func (l *Logger) IsRunning() bool { return l.running.Load() }

// QueueSize returns the number of records awaiting serialization. Diagnostic.
func (l *Logger) QueueSize() int { return l.rb.Size() }

// QueueCapacity returns the usable ring capacity. Diagnostic.
func (l *Logger) QueueCapacity() int { return l.rb.Capacity() }

// WriteErrors returns the count of absorbed consumer-side I/O failures.
func (l *Logger) WriteErrors() int64 { return l.writeErrors.Load() }

// Path returns the output destination.
func (l *Logger) Path() string { return l.path }

// Flush hints the consumer to flush on its next iteration. Best-effort; the
// steady-state cadence is time-based.
func (l *Logger) Flush() { l.flushHint.Store(true) }

// Close stops accepting records, drains everything already buffered, flushes,
// closes the file, and joins the consumer thread. Idempotent: the first
// caller does the work, later calls return immediately.
func (l *Logger) Close() {
	if !l.closed.CompareAndSwap(false, true) {
		return
	}
	l.running.Store(false)
	<-l.done
}

// consume is the consumer thread: placement, ready handshake, drain loop,
// final drain, teardown.
func (l *Logger) consume() {
	runtime.LockOSThread()
	defer func() {
		runtime.UnlockOSThread()
		close(l.done)
	}()

	mgr := affinity.NewManager(l.log)
	mgr.ConfigureForLowLatency(threadLabel, l.opts.CPU, l.opts.Priority, l.opts.NUMANode)

	if l.file != nil {
		l.w = NewWriter(l.file, l.opts.Stamp)
		l.ready.Store(true)
	}

	flushNs := l.opts.FlushInterval.Nanoseconds()
	idleNs := l.opts.IdleSleep.Nanoseconds()
	lastFlush := l.tm.NowNanos()

	for l.running.Load() {
		drained := l.drainAvailable()

		now := l.tm.NowNanos()
		if l.w != nil && (now-lastFlush >= flushNs || l.flushHint.Swap(false)) {
			l.flushAbsorbing()
			lastFlush = now
		}
		if !drained {
			l.tm.SleepNanos(idleNs)
		}
	}

	// Final drain: everything accepted before the running flag flipped is
	// persisted. Unbounded but finite; no new pushes can arrive now.
	l.drainAvailable()
	if l.w != nil {
		l.flushAbsorbing()
	}
	if l.file != nil {
		if err := l.file.Close(); err != nil {
			l.log.Warn("csv close failed", zap.Error(err))
		}
	}
}

// drainAvailable pops until the ring reads empty, serializing as it goes.
// Returns whether any record was seen. The tight inner loop amortizes the
// flush/stop checks of the outer loop.
func (l *Logger) drainAvailable() bool {
	any := false
	for {
		td, ok := l.rb.Pop()
		if !ok {
			return any
		}
		any = true
		if l.w == nil {
			continue // not-ready logger: records are discarded, never queued
		}
		var stamp int64
		if l.opts.Stamp {
			stamp = l.tm.NowNanos()
		}
		if err := l.w.WriteRecord(&td, stamp); err != nil {
			if l.writeErrors.Add(1) == 1 {
				l.log.Error("csv write failed, absorbing further errors",
					zap.Error(err))
			}
		}
	}
}

// flushAbsorbing flushes and counts, rather than propagates, any failure.
func (l *Logger) flushAbsorbing() {
	if err := l.w.Flush(); err != nil {
		if l.writeErrors.Add(1) == 1 {
			l.log.Error("csv flush failed, absorbing further errors", zap.Error(err))
		}
	}
}
