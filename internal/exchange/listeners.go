package exchange

import (
	"go.uber.org/zap"

	"github.com/xtrntr/coinex/internal/models"
)

// TradeListener observes completed trades. Listeners run synchronously after
// each trade log insertion, in registration order, outside the commit path:
// a listener failure is logged and never propagates into the state
// transition.
type TradeListener func(*models.Trade)

// ListenerID identifies a registered listener for removal.
type ListenerID int

type tradeListeners struct {
	log    *zap.Logger
	nextID ListenerID
	order  []ListenerID
	byID   map[ListenerID]TradeListener
}

func newTradeListeners(log *zap.Logger) *tradeListeners {
	if log == nil {
		log = zap.NewNop()
	}
	return &tradeListeners{log: log, byID: make(map[ListenerID]TradeListener)}
}

func (l *tradeListeners) add(fn TradeListener) ListenerID {
	l.nextID++
	id := l.nextID
	l.order = append(l.order, id)
	l.byID[id] = fn
	return id
}

func (l *tradeListeners) remove(id ListenerID) bool {
	if _, ok := l.byID[id]; !ok {
		return false
	}
	delete(l.byID, id)
	for i, v := range l.order {
		if v == id {
			l.order = append(l.order[:i], l.order[i+1:]...)
			break
		}
	}
	return true
}

func (l *tradeListeners) notify(t *models.Trade) {
	for _, id := range l.order {
		fn := l.byID[id]
		func() {
			defer func() {
				if r := recover(); r != nil {
					l.log.Error("trade listener panicked",
						zap.Uint64("order_id", t.OrderID),
						zap.Uint64("match_id", t.MatchID),
						zap.Any("panic", r))
				}
			}()
			fn(t)
		}()
	}
}
