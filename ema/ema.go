// ema.go
//
// Interval-gated exponential moving averages for the two smoothed columns in
// the CSV output: last-trade price and midpoint. Updates are clamped to at
// most one per interval so a burst of ticks inside the window reads the same
// smoothed value, while Price()/MidPrice() stay callable from any goroutine.

package ema

import (
	"math"
	"sync"
	"sync/atomic"
)

// Calculator maintains the pair of EMAs. Construct with New.
type Calculator struct {
	mu sync.Mutex // guards the update path; reads go through the atomics

	intervalNanos int64
	alpha         float64

	price    atomicFloat
	midPrice atomicFloat

	priceInit   bool
	midInit     bool
	priceLastNs int64
	midLastNs   int64
}

// New returns a calculator smoothing over intervalSeconds. The smoothing
// factor is alpha = 2/(n+1) with n = intervalSeconds.
func New(intervalSeconds int) *Calculator {
	if intervalSeconds <= 0 {
		intervalSeconds = 5
	}
	return &Calculator{
		intervalNanos: int64(intervalSeconds) * 1_000_000_000,
		alpha:         2.0 / (float64(intervalSeconds) + 1.0),
	}
}

// UpdatePrice folds one last-trade price observed at nowNanos into the price
// EMA, unless the gating interval since the previous update has not elapsed.
// Returns the current EMA either way.
func (c *Calculator) UpdatePrice(price float64, nowNanos int64) float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.priceInit {
		c.price.store(price)
		c.priceInit = true
		c.priceLastNs = nowNanos
	} else if nowNanos-c.priceLastNs >= c.intervalNanos {
		c.price.store(c.alpha*price + (1-c.alpha)*c.price.load())
		c.priceLastNs = nowNanos
	}
	return c.price.load()
}

// UpdateMidPrice is UpdatePrice for the midpoint series.
func (c *Calculator) UpdateMidPrice(mid float64, nowNanos int64) float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.midInit {
		c.midPrice.store(mid)
		c.midInit = true
		c.midLastNs = nowNanos
	} else if nowNanos-c.midLastNs >= c.intervalNanos {
		c.midPrice.store(c.alpha*mid + (1-c.alpha)*c.midPrice.load())
		c.midLastNs = nowNanos
	}
	return c.midPrice.load()
}

// Price returns the current price EMA, 0 before the first update.
func (c *Calculator) Price() float64 { return c.price.load() }

// MidPrice returns the current midpoint EMA, 0 before the first update.
func (c *Calculator) MidPrice() float64 { return c.midPrice.load() }

// Alpha exposes the smoothing factor, mainly for diagnostics and tests.
func (c *Calculator) Alpha() float64 { return c.alpha }

// atomicFloat is a float64 published through a uint64 so readers never take
// the update mutex.
type atomicFloat struct {
	bits atomic.Uint64
}

func (a *atomicFloat) load() float64   { return math.Float64frombits(a.bits.Load()) }
func (a *atomicFloat) store(v float64) { a.bits.Store(math.Float64bits(v)) }
