package view

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// Result returns the output value at the current threshold. It is absent
// while the relation is empty.
func (e *Engine) Result() (decimal.Decimal, bool) {
	if !e.hasThreshold {
		return decimal.Zero, false
	}
	return e.vwap.must(e.threshold), true
}

func (e *Engine) Threshold() (decimal.Decimal, bool) {
	return e.threshold, e.hasThreshold
}

// Query reads the output view at any materialised key.
func (e *Engine) Query(k decimal.Decimal) (decimal.Decimal, bool) {
	return e.vwap.Get(k)
}

// Snapshot is a detached copy of the output view.
type Snapshot struct {
	Threshold decimal.Decimal
	Result    decimal.Decimal
	HasResult bool
	Entries   [][2]decimal.Decimal
	Applied   uint64
}

func (e *Engine) Snapshot() Snapshot {
	s := Snapshot{
		Threshold: e.threshold,
		Entries:   e.vwap.Entries(),
		Applied:   e.applied,
	}
	s.Result, s.HasResult = e.Result()
	return s
}

// Dump copies every view and the base relation. Meant for debugging; the
// view names are not a stable interface.
type Dump struct {
	Base    [][3]decimal.Decimal
	Domains map[string][]decimal.Decimal
	Maps    map[string][][2]decimal.Decimal
}

func (e *Engine) Dump() Dump {
	d := Dump{
		Domains: make(map[string][]decimal.Decimal),
		Maps:    make(map[string][][2]decimal.Decimal),
	}
	e.base.Scan(func(p, v decimal.Decimal, n int) bool {
		d.Base = append(d.Base, [3]decimal.Decimal{p, v, decimal.NewFromInt(int64(n))})
		return true
	})
	for _, dom := range []*Domain{e.depthDom, e.levelDom, e.vwapDom} {
		d.Domains[dom.Name()] = dom.Keys()
	}
	for _, m := range []*AggMap{e.depthGap, e.levelCount, e.vwap} {
		d.Maps[m.Name()] = m.Entries()
	}
	return d
}

// DomainSizes reports how many keys each domain holds.
func (e *Engine) DomainSizes() map[string]int {
	return map[string]int{
		e.depthDom.Name(): e.depthDom.Len(),
		e.levelDom.Name(): e.levelDom.Len(),
		e.vwapDom.Name():  e.vwapDom.Len(),
	}
}

// Check recomputes every materialised entry from the base relation and
// compares it with the incrementally maintained value. It also checks that
// each domain and its map hold the same keys.
func (e *Engine) Check() error {
	prices := e.base.Prices()

	pairs := []struct {
		dom *Domain
		m   *AggMap
	}{
		{e.depthDom, e.depthGap},
		{e.levelDom, e.levelCount},
		{e.vwapDom, e.vwap},
	}
	for _, p := range pairs {
		if !sameKeys(p.dom.Keys(), p.m.Keys()) {
			return fmt.Errorf("%w: %s keys %v, %s keys %v", ErrDivergence,
				p.dom.Name(), p.dom.Keys(), p.m.Name(), p.m.Keys())
		}
	}
	for _, dom := range []*Domain{e.depthDom, e.levelDom} {
		if !sameKeys(dom.Keys(), prices) {
			return fmt.Errorf("%w: %s keys %v, live prices %v", ErrDivergence, dom.Name(), dom.Keys(), prices)
		}
	}
	for _, k := range e.vwapDom.Keys() {
		if !e.levelDom.Has(k) {
			return fmt.Errorf("%w: %s holds %s with no live tuple", ErrDivergence, e.vwapDom.Name(), k)
		}
	}

	for _, kv := range e.depthGap.Entries() {
		if want := scanGap(e.base, kv[0], e.weight); !want.Equal(kv[1]) {
			return mismatch(e.depthGap, kv, want)
		}
	}
	for _, kv := range e.levelCount.Entries() {
		if want := scanCount(e.base, kv[0]); !want.Equal(kv[1]) {
			return mismatch(e.levelCount, kv, want)
		}
	}
	for _, kv := range e.vwap.Entries() {
		if want := scanVWAP(e.base, kv[0]); !want.Equal(kv[1]) {
			return mismatch(e.vwap, kv, want)
		}
	}

	var want decimal.Decimal
	found := false
	for _, k := range prices {
		if scanGap(e.base, k, e.weight).IsNegative() {
			want, found = k, true
			break
		}
	}
	if found != e.hasThreshold || (found && !want.Equal(e.threshold)) {
		return fmt.Errorf("%w: threshold %s (set %t), recomputed %s (set %t)",
			ErrDivergence, e.threshold, e.hasThreshold, want, found)
	}
	return nil
}

func mismatch(m *AggMap, kv [2]decimal.Decimal, want decimal.Decimal) error {
	return fmt.Errorf("%w: %s[%s] = %s, full scan gives %s", ErrDivergence, m.Name(), kv[0], kv[1], want)
}

func sameKeys(a, b []decimal.Decimal) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if !a[i].Equal(b[i]) {
			return false
		}
	}
	return true
}
