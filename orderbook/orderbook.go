package orderbook

import (
	rbt "github.com/emirpasic/gods/trees/redblacktree"
	"github.com/shopspring/decimal"
)

// Book holds live orders keyed by id, one map per side. An id is present in
// at most one of the two maps.
type Book struct {
	Bids map[int64]*Order
	Asks map[int64]*Order
}

func NewBook() *Book {
	return &Book{
		Bids: make(map[int64]*Order),
		Asks: make(map[int64]*Order),
	}
}

func (b *Book) side(s Side) map[int64]*Order {
	if s == Bid {
		return b.Bids
	}
	return b.Asks
}

// Find looks the id up in the bid book first, then the ask book.
func (b *Book) Find(id int64) (*Order, bool) {
	if o, ok := b.Bids[id]; ok {
		return o, true
	}
	if o, ok := b.Asks[id]; ok {
		return o, true
	}
	return nil, false
}

func (b *Book) put(o *Order) {
	b.side(o.Side)[o.ID] = o
}

func (b *Book) remove(o *Order) {
	delete(b.side(o.Side), o.ID)
}

func (b *Book) Len() int {
	return len(b.Bids) + len(b.Asks)
}

// Orders returns a copy of every live order on the given side.
func (b *Book) Orders(s Side) []Order {
	m := b.side(s)
	out := make([]Order, 0, len(m))
	for _, o := range m {
		out = append(out, *o)
	}
	return out
}

// Snapshot aggregates live volume per price level, bids best (highest) first
// and asks best (lowest) first.
func (b *Book) Snapshot() Snapshot {
	return Snapshot{
		Bids: aggregate(b.Bids, BidComparator),
		Asks: aggregate(b.Asks, AskComparator),
	}
}

func aggregate(orders map[int64]*Order, cmp func(a, b interface{}) int) [][2]decimal.Decimal {
	tree := rbt.NewWith(cmp)
	for _, o := range orders {
		if v, ok := tree.Get(o.Price); ok {
			tree.Put(o.Price, v.(decimal.Decimal).Add(o.Volume))
		} else {
			tree.Put(o.Price, o.Volume)
		}
	}
	levels := make([][2]decimal.Decimal, 0, tree.Size())
	it := tree.Iterator()
	for it.Next() {
		levels = append(levels, [2]decimal.Decimal{it.Key().(decimal.Decimal), it.Value().(decimal.Decimal)})
	}
	return levels
}

func AskComparator(a, b interface{}) int {
	aAsserted := a.(decimal.Decimal)
	bAsserted := b.(decimal.Decimal)
	switch {
	case aAsserted.GreaterThan(bAsserted):
		return 1
	case aAsserted.LessThan(bAsserted):
		return -1
	default:
		return 0
	}
}

func BidComparator(a, b interface{}) int {
	return -AskComparator(a, b)
}
