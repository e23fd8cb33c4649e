// Package view keeps a fixed graph of derived views over the live (price,
// volume) relation up to date, one insert or delete at a time.
//
// The views compute a VWAP over the top of the book: the threshold is the
// lowest live price k where the volume strictly above k is still less than a
// fraction W of the total volume, and the result is Σ P·V over every tuple
// priced at or above that threshold.
//
//	depth_dom -> depth_gap ─┐
//	level_dom -> level_count├─> threshold -> vwap_dom -> vwap (result)
//
// Every view is updated with a local delta rule; a key is computed by full
// scan only the first time it is materialised.
package view

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"vwapbook/orderbook"
)

var (
	ErrUnknownTuple  = errors.New("delete of a tuple that is not live")
	ErrUnknownEvent  = errors.New("unknown event kind")
	ErrUninitialized = errors.New("view entry used before initialisation")
	ErrDivergence    = errors.New("view diverged from full recomputation")
)

const DefaultWeight = "0.25"

// Engine is single-writer: Apply must not be called concurrently, and reads
// are only consistent between calls.
type Engine struct {
	weight   decimal.Decimal
	validate bool

	base *Relation

	depthDom *Domain
	depthGap *AggMap

	levelDom   *Domain
	levelCount *AggMap

	vwapDom *Domain
	vwap    *AggMap

	threshold    decimal.Decimal
	hasThreshold bool
	applied      uint64
}

type Option func(*Engine)

// WithWeight sets W, the fraction of total volume the threshold is gated on.
func WithWeight(w decimal.Decimal) Option { return func(e *Engine) { e.weight = w } }

// WithValidation makes Apply re-check every view against a full scan after
// each event.
func WithValidation(on bool) Option { return func(e *Engine) { e.validate = on } }

func New(opts ...Option) *Engine {
	e := &Engine{
		weight:     decimal.RequireFromString(DefaultWeight),
		base:       newRelation(),
		depthDom:   newDomain("depth_dom"),
		depthGap:   newAggMap("depth_gap"),
		levelDom:   newDomain("level_dom"),
		levelCount: newAggMap("level_count"),
		vwapDom:    newDomain("vwap_dom"),
		vwap:       newAggMap("vwap"),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

func (e *Engine) Weight() decimal.Decimal { return e.weight }

// Applied counts events applied so far.
func (e *Engine) Applied() uint64 { return e.applied }

// Apply brings every view up to date with one event.
func (e *Engine) Apply(ev orderbook.Event) error {
	switch ev.Kind {
	case orderbook.Insert:
		e.onInsert(ev.Price, ev.Volume)
	case orderbook.Delete:
		if err := e.onDelete(ev.Price, ev.Volume); err != nil {
			return err
		}
	default:
		return fmt.Errorf("%w: %d", ErrUnknownEvent, ev.Kind)
	}
	e.applied++
	if e.validate {
		if err := e.Check(); err != nil {
			return fmt.Errorf("after %s(%s, %s): %w", ev.Kind, ev.Price, ev.Volume, err)
		}
	}
	return nil
}

func (e *Engine) onInsert(p, v decimal.Decimal) {
	// existing entries
	if e.levelDom.Has(p) {
		e.levelCount.add(p, countDelta(p, p))
	}
	e.depthDom.Each(func(k decimal.Decimal) bool {
		e.depthGap.add(k, gapDelta(k, p, v, e.weight))
		return true
	})
	e.vwapDom.Each(func(t decimal.Decimal) bool {
		e.vwap.add(t, vwapDelta(t, p, v))
		return true
	})

	e.base.Insert(p, v)

	// new keys
	if e.levelDom.Add(p) {
		e.levelCount.Set(p, scanCount(e.base, p))
	}
	if e.depthDom.Add(p) {
		e.depthGap.Set(p, scanGap(e.base, p, e.weight))
	}
	e.settleThreshold()
}

func (e *Engine) onDelete(p, v decimal.Decimal) error {
	if !e.base.Delete(p, v) {
		return fmt.Errorf("%w: (%s, %s)", ErrUnknownTuple, p, v)
	}

	if e.levelDom.Has(p) {
		e.levelCount.add(p, countDelta(p, p).Neg())
	}
	e.depthDom.Each(func(k decimal.Decimal) bool {
		e.depthGap.add(k, gapDelta(k, p, v, e.weight).Neg())
		return true
	})
	e.vwapDom.Each(func(t decimal.Decimal) bool {
		e.vwap.add(t, vwapDelta(t, p, v).Neg())
		return true
	})

	// the last tuple at p is gone, so p no longer qualifies as a key anywhere
	if e.levelCount.must(p).Sign() <= 0 {
		e.levelDom.Remove(p)
		e.levelCount.Delete(p)
		e.depthDom.Remove(p)
		e.depthGap.Delete(p)
		e.vwapDom.Remove(p)
		e.vwap.Delete(p)
	}
	e.settleThreshold()
	return nil
}

// settleThreshold recomputes the derived key from the settled depth_gap and
// materialises it in vwap if needed.
func (e *Engine) settleThreshold() {
	e.threshold, e.hasThreshold = decimal.Zero, false
	e.depthDom.Each(func(k decimal.Decimal) bool {
		if e.depthGap.must(k).IsNegative() {
			e.threshold, e.hasThreshold = k, true
			return false
		}
		return true
	})
	if e.hasThreshold && e.vwapDom.Add(e.threshold) {
		e.vwap.Set(e.threshold, scanVWAP(e.base, e.threshold))
	}
}
