package exchange

import (
	"github.com/samber/lo"

	"vwapbook/db"
	"vwapbook/orderbook"
)

func toDBOrder(symbol string, o orderbook.Order) db.Order {
	side := db.Buy
	if o.Side == orderbook.Ask {
		side = db.Sell
	}
	return db.Order{
		ID:        o.ID,
		Symbol:    symbol,
		Side:      side,
		BrokerID:  o.BrokerID,
		Price:     o.Price,
		Quantity:  o.Volume,
		Timestamp: o.EntryTime,
	}
}

func fromDBOrders(orders []db.Order) []orderbook.Order {
	return lo.Map(orders, func(order db.Order, _ int) orderbook.Order {
		side := orderbook.Bid
		if order.Side == db.Sell {
			side = orderbook.Ask
		}
		return orderbook.Order{
			ID:        order.ID,
			Side:      side,
			BrokerID:  order.BrokerID,
			Price:     order.Price,
			Volume:    order.Quantity,
			EntryTime: order.Timestamp,
		}
	})
}

// repoJournal mirrors book mutations of one symbol into a db.Repo.
type repoJournal struct {
	repo   db.Repo
	symbol string
}

func (j repoJournal) Upsert(o orderbook.Order) error {
	return j.repo.SaveOrder(toDBOrder(j.symbol, o))
}

func (j repoJournal) Remove(id int64) error {
	return j.repo.DeleteOrder(j.symbol, id)
}
