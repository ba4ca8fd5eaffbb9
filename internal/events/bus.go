package events

import (
	"sync"
	"time"
)

// EventType represents different types of events in the system
type EventType string

const (
	EventPatternDetected   EventType = "PATTERN_DETECTED"
	EventPatternConfirmed  EventType = "PATTERN_CONFIRMED"
	EventPatternFiltered   EventType = "PATTERN_FILTERED"
	EventPositionOpened    EventType = "POSITION_OPENED"
	EventPositionClosed    EventType = "POSITION_CLOSED"
	EventMilestoneReached  EventType = "MILESTONE_REACHED"
	EventPriceUpdate       EventType = "PRICE_UPDATE"
	EventForecastGenerated EventType = "FORECAST_GENERATED"
	EventRiskHalt          EventType = "RISK_HALT"
	EventBotStarted        EventType = "BOT_STARTED"
	EventBotStopped        EventType = "BOT_STOPPED"
	EventError             EventType = "ERROR"
)

// Event represents a system event
type Event struct {
	Type      EventType              `json:"type"`
	Timestamp time.Time              `json:"timestamp"`
	Data      map[string]interface{} `json:"data"`
}

// Subscriber is a function that handles events
type Subscriber func(Event)

// EventBus manages event publishing and subscriptions
type EventBus struct {
	mu          sync.RWMutex
	subscribers map[EventType][]Subscriber
	allSubs     []Subscriber // Subscribers to all events
}

// NewEventBus creates a new event bus
func NewEventBus() *EventBus {
	return &EventBus{
		subscribers: make(map[EventType][]Subscriber),
		allSubs:     make([]Subscriber, 0),
	}
}

// Subscribe registers a subscriber for a specific event type
func (eb *EventBus) Subscribe(eventType EventType, subscriber Subscriber) {
	eb.mu.Lock()
	defer eb.mu.Unlock()

	eb.subscribers[eventType] = append(eb.subscribers[eventType], subscriber)
}

// SubscribeAll registers a subscriber for all events
func (eb *EventBus) SubscribeAll(subscriber Subscriber) {
	eb.mu.Lock()
	defer eb.mu.Unlock()

	eb.allSubs = append(eb.allSubs, subscriber)
}

// Publish sends an event to all subscribers
func (eb *EventBus) Publish(event Event) {
	eb.mu.RLock()
	defer eb.mu.RUnlock()

	// Set timestamp if not provided
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	// Notify specific subscribers
	if subs, ok := eb.subscribers[event.Type]; ok {
		for _, sub := range subs {
			go sub(event) // Run in goroutine to avoid blocking
		}
	}

	// Notify all-event subscribers
	for _, sub := range eb.allSubs {
		go sub(event)
	}
}

// PublishPatternDetected publishes a pattern detection event
func (eb *EventBus) PublishPatternDetected(symbol, patternID, patternType string, entryPrice float64) {
	eb.Publish(Event{
		Type: EventPatternDetected,
		Data: map[string]interface{}{
			"symbol":       symbol,
			"pattern_id":   patternID,
			"pattern_type": patternType,
			"entry_price":  entryPrice,
		},
	})
}

// PublishPatternConfirmed publishes an entry confirmation event
func (eb *EventBus) PublishPatternConfirmed(symbol, patternID string, entryPrice float64) {
	eb.Publish(Event{
		Type: EventPatternConfirmed,
		Data: map[string]interface{}{
			"symbol":      symbol,
			"pattern_id":  patternID,
			"entry_price": entryPrice,
		},
	})
}

// PublishPatternFiltered publishes a filtered-out pattern event
func (eb *EventBus) PublishPatternFiltered(symbol, patternID, preset, reason string) {
	eb.Publish(Event{
		Type: EventPatternFiltered,
		Data: map[string]interface{}{
			"symbol":     symbol,
			"pattern_id": patternID,
			"preset":     preset,
			"reason":     reason,
		},
	})
}

// PublishPositionOpened publishes a position opened event
func (eb *EventBus) PublishPositionOpened(symbol string, entryPrice, quantity float64, patternID string) {
	eb.Publish(Event{
		Type: EventPositionOpened,
		Data: map[string]interface{}{
			"symbol":      symbol,
			"entry_price": entryPrice,
			"quantity":    quantity,
			"pattern_id":  patternID,
		},
	})
}

// PublishPositionClosed publishes a position closed event
func (eb *EventBus) PublishPositionClosed(symbol string, entryPrice, exitPrice, pnlPercent float64, exitReason string) {
	eb.Publish(Event{
		Type: EventPositionClosed,
		Data: map[string]interface{}{
			"symbol":      symbol,
			"entry_price": entryPrice,
			"exit_price":  exitPrice,
			"pnl_percent": pnlPercent,
			"exit_reason": exitReason,
		},
	})
}

// PublishMilestoneReached publishes a milestone transition event
func (eb *EventBus) PublishMilestoneReached(symbol, state string, floorPrice float64) {
	eb.Publish(Event{
		Type: EventMilestoneReached,
		Data: map[string]interface{}{
			"symbol":      symbol,
			"state":       state,
			"floor_price": floorPrice,
		},
	})
}

// PublishPriceUpdate publishes a price update event
func (eb *EventBus) PublishPriceUpdate(symbol string, price float64) {
	eb.Publish(Event{
		Type: EventPriceUpdate,
		Data: map[string]interface{}{
			"symbol": symbol,
			"price":  price,
		},
	})
}

// PublishForecastGenerated publishes a forecast completion event
func (eb *EventBus) PublishForecastGenerated(preset string, selected []string) {
	eb.Publish(Event{
		Type: EventForecastGenerated,
		Data: map[string]interface{}{
			"preset":   preset,
			"selected": selected,
		},
	})
}

// PublishRiskHalt publishes a trading halt event
func (eb *EventBus) PublishRiskHalt(cumulativePnLPct float64) {
	eb.Publish(Event{
		Type: EventRiskHalt,
		Data: map[string]interface{}{
			"cumulative_pnl_pct": cumulativePnLPct,
		},
	})
}

// PublishError publishes an error event
func (eb *EventBus) PublishError(source, message string, err error) {
	data := map[string]interface{}{
		"source":  source,
		"message": message,
	}
	if err != nil {
		data["error"] = err.Error()
	}
	eb.Publish(Event{
		Type: EventError,
		Data: data,
	})
}
