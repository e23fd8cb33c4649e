package view

import (
	"github.com/shopspring/decimal"
	"github.com/tidwall/btree"
)

type tuple struct {
	price  decimal.Decimal
	volume decimal.Decimal
	count  int
}

func tupleLess(a, b tuple) bool {
	if c := a.price.Cmp(b.price); c != 0 {
		return c < 0
	}
	return a.volume.Cmp(b.volume) < 0
}

// Relation is the base multiset of live (price, volume) tuples. The engine
// only scans it to initialise a key for the first time.
type Relation struct {
	tree *btree.BTreeG[tuple]
	size int
}

func newRelation() *Relation {
	return &Relation{tree: btree.NewBTreeGOptions(tupleLess, btree.Options{NoLocks: true})}
}

func (r *Relation) Insert(price, volume decimal.Decimal) {
	t, ok := r.tree.Get(tuple{price: price, volume: volume})
	if !ok {
		t = tuple{price: price, volume: volume}
	}
	t.count++
	r.tree.Set(t)
	r.size++
}

// Delete removes one copy of (price, volume) and reports whether one was live.
func (r *Relation) Delete(price, volume decimal.Decimal) bool {
	t, ok := r.tree.Get(tuple{price: price, volume: volume})
	if !ok {
		return false
	}
	t.count--
	if t.count == 0 {
		r.tree.Delete(t)
	} else {
		r.tree.Set(t)
	}
	r.size--
	return true
}

func (r *Relation) Contains(price, volume decimal.Decimal) bool {
	_, ok := r.tree.Get(tuple{price: price, volume: volume})
	return ok
}

// Len counts tuples including duplicates.
func (r *Relation) Len() int { return r.size }

// Scan visits every distinct tuple with its multiplicity, ordered by price
// then volume.
func (r *Relation) Scan(fn func(price, volume decimal.Decimal, n int) bool) {
	r.tree.Scan(func(t tuple) bool {
		return fn(t.price, t.volume, t.count)
	})
}

// Prices returns the distinct prices in ascending order.
func (r *Relation) Prices() []decimal.Decimal {
	var out []decimal.Decimal
	r.Scan(func(p, _ decimal.Decimal, _ int) bool {
		if len(out) == 0 || !out[len(out)-1].Equal(p) {
			out = append(out, p)
		}
		return true
	})
	return out
}
