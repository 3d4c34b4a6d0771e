// Package events carries engine notifications to in-process subscribers,
// primarily the websocket hub and persistence hooks. Delivery is
// fire-and-forget; a slow subscriber never blocks the trade path.
package events

import (
	"sync"
	"time"
)

// EventType names every event the engine emits
type EventType string

const (
	EventTradeOpened        EventType = "TRADE_OPENED"
	EventTradeClosed        EventType = "TRADE_CLOSED"
	EventOrderPlaced        EventType = "ORDER_PLACED"
	EventSignalGenerated    EventType = "SIGNAL_GENERATED"
	EventOpportunityFound   EventType = "OPPORTUNITY_FOUND"
	EventIntentRejected     EventType = "INTENT_REJECTED"
	EventRiskBreakerTripped EventType = "RISK_BREAKER_TRIPPED"
	EventRiskBreakerReset   EventType = "RISK_BREAKER_RESET"
	EventRebalanceEvaluated EventType = "REBALANCE_EVALUATED"
	EventRebalanceAction    EventType = "REBALANCE_ACTION"
	EventBalanceUpdate      EventType = "BALANCE_UPDATE"
	EventPriceUpdate        EventType = "PRICE_UPDATE"
	EventEngineStarted      EventType = "ENGINE_STARTED"
	EventEngineStopped      EventType = "ENGINE_STOPPED"
	EventError              EventType = "ERROR"
)

// Event is one engine notification
type Event struct {
	Type      EventType              `json:"type"`
	Timestamp time.Time              `json:"timestamp"`
	Data      map[string]interface{} `json:"data"`
}

// Subscriber handles events. Subscribers run on their own goroutine per
// delivery and must be safe for concurrent invocation.
type Subscriber func(Event)

// EventBus fans events out to type-specific and catch-all subscribers
type EventBus struct {
	mu          sync.RWMutex
	subscribers map[EventType][]Subscriber
	allSubs     []Subscriber
}

// NewEventBus creates an empty bus
func NewEventBus() *EventBus {
	return &EventBus{
		subscribers: make(map[EventType][]Subscriber),
	}
}

// Subscribe registers a subscriber for one event type
func (eb *EventBus) Subscribe(eventType EventType, subscriber Subscriber) {
	eb.mu.Lock()
	defer eb.mu.Unlock()
	eb.subscribers[eventType] = append(eb.subscribers[eventType], subscriber)
}

// SubscribeAll registers a subscriber for every event
func (eb *EventBus) SubscribeAll(subscriber Subscriber) {
	eb.mu.Lock()
	defer eb.mu.Unlock()
	eb.allSubs = append(eb.allSubs, subscriber)
}

// Publish delivers an event asynchronously to every matching subscriber
func (eb *EventBus) Publish(event Event) {
	eb.mu.RLock()
	defer eb.mu.RUnlock()

	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	if subs, ok := eb.subscribers[event.Type]; ok {
		for _, sub := range subs {
			go sub(event)
		}
	}
	for _, sub := range eb.allSubs {
		go sub(event)
	}
}

// PublishTradeOpened announces a freshly acknowledged entry order
func (eb *EventBus) PublishTradeOpened(symbol, direction, intentID string, entryPrice, quantity float64) {
	eb.Publish(Event{
		Type: EventTradeOpened,
		Data: map[string]interface{}{
			"symbol":      symbol,
			"direction":   direction,
			"intent_id":   intentID,
			"entry_price": entryPrice,
			"quantity":    quantity,
		},
	})
}

// PublishTradeClosed announces a finished trade and its realized P&L
func (eb *EventBus) PublishTradeClosed(symbol, intentID string, pnlPercent float64, reason string) {
	eb.Publish(Event{
		Type: EventTradeClosed,
		Data: map[string]interface{}{
			"symbol":      symbol,
			"intent_id":   intentID,
			"pnl_percent": pnlPercent,
			"reason":      reason,
		},
	})
}

// PublishIntentRejected announces a policy rejection with its stage and reason
func (eb *EventBus) PublishIntentRejected(symbol, stage, reason string) {
	eb.Publish(Event{
		Type: EventIntentRejected,
		Data: map[string]interface{}{
			"symbol": symbol,
			"stage":  stage,
			"reason": reason,
		},
	})
}

// PublishRiskBreakerTripped announces the risk breaker opening
func (eb *EventBus) PublishRiskBreakerTripped(reason string) {
	eb.Publish(Event{
		Type: EventRiskBreakerTripped,
		Data: map[string]interface{}{"reason": reason},
	})
}

// PublishRebalanceAction announces one emitted rebalance correction
func (eb *EventBus) PublishRebalanceAction(symbol, action string, amount, priority float64) {
	eb.Publish(Event{
		Type: EventRebalanceAction,
		Data: map[string]interface{}{
			"symbol":   symbol,
			"action":   action,
			"amount":   amount,
			"priority": priority,
		},
	})
}

// PublishError announces a non-fatal engine error
func (eb *EventBus) PublishError(component string, err error) {
	data := map[string]interface{}{"component": component}
	if err != nil {
		data["error"] = err.Error()
	}
	eb.Publish(Event{Type: EventError, Data: data})
}
