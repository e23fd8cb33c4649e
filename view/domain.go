package view

import (
	"fmt"

	rbt "github.com/emirpasic/gods/trees/redblacktree"
	"github.com/shopspring/decimal"

	"vwapbook/orderbook"
)

// Domain is the ordered set of keys a map view has materialised.
type Domain struct {
	name string
	tree *rbt.Tree
}

func newDomain(name string) *Domain {
	return &Domain{name: name, tree: rbt.NewWith(orderbook.AskComparator)}
}

func (d *Domain) Name() string { return d.name }

func (d *Domain) Has(k decimal.Decimal) bool {
	_, ok := d.tree.Get(k)
	return ok
}

// Add reports whether k was absent.
func (d *Domain) Add(k decimal.Decimal) bool {
	if d.Has(k) {
		return false
	}
	d.tree.Put(k, nil)
	return true
}

func (d *Domain) Remove(k decimal.Decimal) { d.tree.Remove(k) }

func (d *Domain) Len() int { return d.tree.Size() }

// Each visits keys in ascending order until fn returns false.
func (d *Domain) Each(fn func(k decimal.Decimal) bool) {
	it := d.tree.Iterator()
	for it.Next() {
		if !fn(it.Key().(decimal.Decimal)) {
			return
		}
	}
}

func (d *Domain) Keys() []decimal.Decimal {
	keys := make([]decimal.Decimal, 0, d.tree.Size())
	d.Each(func(k decimal.Decimal) bool {
		keys = append(keys, k)
		return true
	})
	return keys
}

// AggMap holds one numeric aggregate per key.
type AggMap struct {
	name string
	tree *rbt.Tree
}

func newAggMap(name string) *AggMap {
	return &AggMap{name: name, tree: rbt.NewWith(orderbook.AskComparator)}
}

func (m *AggMap) Name() string { return m.name }

func (m *AggMap) Get(k decimal.Decimal) (decimal.Decimal, bool) {
	v, ok := m.tree.Get(k)
	if !ok {
		return decimal.Zero, false
	}
	return v.(decimal.Decimal), true
}

// must is for keys the owning domain already holds. A miss means an entry was
// never initialised and the views can no longer be trusted.
func (m *AggMap) must(k decimal.Decimal) decimal.Decimal {
	v, ok := m.Get(k)
	if !ok {
		panic(fmt.Errorf("%w: %s[%s]", ErrUninitialized, m.name, k))
	}
	return v
}

func (m *AggMap) Set(k, v decimal.Decimal) { m.tree.Put(k, v) }

func (m *AggMap) add(k, delta decimal.Decimal) {
	m.Set(k, m.must(k).Add(delta))
}

func (m *AggMap) Delete(k decimal.Decimal) { m.tree.Remove(k) }

func (m *AggMap) Len() int { return m.tree.Size() }

func (m *AggMap) Keys() []decimal.Decimal {
	keys := make([]decimal.Decimal, 0, m.tree.Size())
	for _, k := range m.tree.Keys() {
		keys = append(keys, k.(decimal.Decimal))
	}
	return keys
}

// Entries returns (key, value) pairs in ascending key order.
func (m *AggMap) Entries() [][2]decimal.Decimal {
	out := make([][2]decimal.Decimal, 0, m.tree.Size())
	it := m.tree.Iterator()
	for it.Next() {
		out = append(out, [2]decimal.Decimal{it.Key().(decimal.Decimal), it.Value().(decimal.Decimal)})
	}
	return out
}
