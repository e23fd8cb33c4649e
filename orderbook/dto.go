package orderbook

import (
	"github.com/shopspring/decimal"
)

type Snapshot struct {
	Bids [][2]decimal.Decimal
	Asks [][2]decimal.Decimal
}

type Side string

const (
	Bid Side = "bid"
	Ask Side = "ask"
)

// TrackMode selects which sides of the book are maintained.
type TrackMode string

const (
	TrackBids TrackMode = "bids"
	TrackAsks TrackMode = "asks"
	TrackBoth TrackMode = "both"
)

func (m TrackMode) Tracks(s Side) bool {
	switch m {
	case TrackBoth:
		return true
	case TrackBids:
		return s == Bid
	case TrackAsks:
		return s == Ask
	}
	return false
}

func (m TrackMode) Valid() bool {
	return m == TrackBids || m == TrackAsks || m == TrackBoth
}

// Action is the one-letter code of a raw feed message.
type Action byte

const (
	NewBid  Action = 'B'
	NewAsk  Action = 'S'
	Execute Action = 'E'
	Fill    Action = 'F'
	Cancel  Action = 'D'
	ActionX Action = 'X'
	ActionC Action = 'C'
	ActionT Action = 'T'
)

func (a Action) Valid() bool {
	switch a {
	case NewBid, NewAsk, Execute, Fill, Cancel, ActionX, ActionC, ActionT:
		return true
	}
	return false
}

func (a Action) String() string { return string(a) }

// Message is one parsed line of the feed: timestamp,order_id,action,volume,price.
type Message struct {
	Timestamp decimal.Decimal
	ID        int64
	Action    Action
	Volume    decimal.Decimal
	Price     decimal.Decimal
}

type Order struct {
	ID        int64
	Side      Side
	BrokerID  int
	Price     decimal.Decimal
	Volume    decimal.Decimal
	EntryTime decimal.Decimal
}

type EventKind int

const (
	Insert EventKind = iota + 1
	Delete
)

func (k EventKind) String() string {
	switch k {
	case Insert:
		return "insert"
	case Delete:
		return "delete"
	default:
		return "unknown"
	}
}

// Event is the net effect of a message on the base relation. It carries no
// order identity.
type Event struct {
	Kind   EventKind
	Price  decimal.Decimal
	Volume decimal.Decimal
}

func InsertEvent(price, volume decimal.Decimal) Event {
	return Event{Kind: Insert, Price: price, Volume: volume}
}

func DeleteEvent(price, volume decimal.Decimal) Event {
	return Event{Kind: Delete, Price: price, Volume: volume}
}
