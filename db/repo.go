package db

import (
	"errors"

	"github.com/shopspring/decimal"
)

type Side string

const (
	Buy  Side = "buy"
	Sell Side = "sell"
)

var ErrClosed = errors.New("store closed")

// Order is a live order as persisted between runs.
type Order struct {
	ID        int64           `json:"id"`
	Symbol    string          `json:"symbol"`
	Side      Side            `json:"side"`
	BrokerID  int             `json:"broker_id"`
	Price     decimal.Decimal `json:"price"`
	Quantity  decimal.Decimal `json:"quantity"`
	Timestamp decimal.Decimal `json:"timestamp"`
}

type Repo interface {
	GetAvailableOrders(symbol string) ([]Order, error)
	SaveOrder(o Order) error
	DeleteOrder(symbol string, id int64) error
	Close() error
}
