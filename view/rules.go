package view

import (
	"github.com/shopspring/decimal"
)

// Delta rules. Each returns the correction to add to an existing entry at key
// k when (p, v) enters the base relation; a delete adds the negation.
//
//	depth_gap[k]   += V·[P > k] − W·V
//	level_count[k] += [P = k]
//	vwap[t]        += P·V·[P ≥ t]

func gapDelta(k, p, v, w decimal.Decimal) decimal.Decimal {
	d := w.Mul(v).Neg()
	if p.GreaterThan(k) {
		d = d.Add(v)
	}
	return d
}

func countDelta(k, p decimal.Decimal) decimal.Decimal {
	if p.Equal(k) {
		return decimal.NewFromInt(1)
	}
	return decimal.Zero
}

func vwapDelta(t, p, v decimal.Decimal) decimal.Decimal {
	if p.GreaterThanOrEqual(t) {
		return p.Mul(v)
	}
	return decimal.Zero
}

// Full-scan definitions. These are what the delta rules must agree with, and
// what a key gets the first time it is materialised.
//
//	depth_gap[k]   = Σ_{P>k} V − W·Σ V
//	level_count[k] = #{(P,V) : P = k}
//	vwap[t]        = Σ_{P≥t} P·V

func scanGap(r *Relation, k, w decimal.Decimal) decimal.Decimal {
	above, total := decimal.Zero, decimal.Zero
	r.Scan(func(p, v decimal.Decimal, n int) bool {
		vn := v.Mul(decimal.NewFromInt(int64(n)))
		total = total.Add(vn)
		if p.GreaterThan(k) {
			above = above.Add(vn)
		}
		return true
	})
	return above.Sub(w.Mul(total))
}

func scanCount(r *Relation, k decimal.Decimal) decimal.Decimal {
	count := int64(0)
	r.Scan(func(p, _ decimal.Decimal, n int) bool {
		if p.Equal(k) {
			count += int64(n)
		}
		return true
	})
	return decimal.NewFromInt(count)
}

func scanVWAP(r *Relation, t decimal.Decimal) decimal.Decimal {
	sum := decimal.Zero
	r.Scan(func(p, v decimal.Decimal, n int) bool {
		if p.GreaterThanOrEqual(t) {
			sum = sum.Add(p.Mul(v).Mul(decimal.NewFromInt(int64(n))))
		}
		return true
	})
	return sum
}
