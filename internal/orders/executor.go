package orders

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Config tunes retry behavior for order submission
type Config struct {
	MaxAttempts  int           `json:"max_attempts"`
	RetryBackoff time.Duration `json:"retry_backoff"`
}

func DefaultConfig() Config {
	return Config{
		MaxAttempts:  3,
		RetryBackoff: 250 * time.Millisecond,
	}
}

// Executor submits orders with bounded retries and keeps the session's fill
// log. Exit submissions that exhaust their retries return ErrExitFailed; the
// caller owns the position context and escalates the stranded position to
// the risk layer.
type Executor struct {
	mu     sync.RWMutex
	broker Broker
	repo   FillRepository
	cfg    Config
	logger zerolog.Logger
	fills  []Fill
	now    func() time.Time
}

func NewExecutor(broker Broker, repo FillRepository, cfg Config, logger zerolog.Logger) *Executor {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 3
	}
	if cfg.RetryBackoff <= 0 {
		cfg.RetryBackoff = 250 * time.Millisecond
	}
	return &Executor{
		broker: broker,
		repo:   repo,
		cfg:    cfg,
		logger: logger.With().Str("component", "OrderExecutor").Logger(),
		now:    time.Now,
	}
}

// Buy submits an entry order and records the fill
func (e *Executor) Buy(ctx context.Context, symbol string, quantity, price float64, patternID string) (*Fill, error) {
	fillPrice, err := e.submit(ctx, symbol, ActionBuy, quantity, price)
	if err != nil {
		e.logger.Error().
			Str("symbol", symbol).
			Float64("price", price).
			Err(err).
			Msg("Entry order failed after retries")
		return nil, fmt.Errorf("%w: %s: %v", ErrEntryFailed, symbol, err)
	}

	fill := &Fill{
		ID:        uuid.New().String(),
		Symbol:    symbol,
		Action:    ActionBuy,
		Quantity:  quantity,
		Price:     fillPrice,
		Timestamp: e.now(),
		PatternID: patternID,
	}
	e.record(ctx, fill)
	return fill, nil
}

// Sell submits an exit order and records the fill. If every attempt fails
// the position is stranded and the caller receives ErrExitFailed.
func (e *Executor) Sell(ctx context.Context, symbol string, quantity, price, pnlPct float64, reason string) (*Fill, error) {
	fillPrice, err := e.submit(ctx, symbol, ActionSell, quantity, price)
	if err != nil {
		e.logger.Error().
			Str("symbol", symbol).
			Float64("price", price).
			Str("exit_reason", reason).
			Err(err).
			Msg("Exit order failed after retries")
		return nil, fmt.Errorf("%w: %s: %v", ErrExitFailed, symbol, err)
	}

	fill := &Fill{
		ID:             uuid.New().String(),
		Symbol:         symbol,
		Action:         ActionSell,
		Quantity:       quantity,
		Price:          fillPrice,
		Timestamp:      e.now(),
		RealizedPnLPct: pnlPct,
		ExitReason:     reason,
	}
	e.record(ctx, fill)
	return fill, nil
}

// Fills returns a copy of the session's fill log in execution order
func (e *Executor) Fills() []Fill {
	e.mu.RLock()
	defer e.mu.RUnlock()
	out := make([]Fill, len(e.fills))
	copy(out, e.fills)
	return out
}

func (e *Executor) submit(ctx context.Context, symbol string, action Action, quantity, price float64) (float64, error) {
	var lastErr error
	for attempt := 1; attempt <= e.cfg.MaxAttempts; attempt++ {
		fillPrice, err := e.broker.SubmitOrder(ctx, symbol, action, quantity, price)
		if err == nil {
			return fillPrice, nil
		}
		lastErr = err

		e.logger.Warn().
			Str("symbol", symbol).
			Str("action", string(action)).
			Int("attempt", attempt).
			Err(err).
			Msg("Order submission failed")

		if attempt == e.cfg.MaxAttempts {
			break
		}
		// Linear backoff, cut short on cancellation.
		select {
		case <-ctx.Done():
			return 0, ctx.Err()
		case <-time.After(e.cfg.RetryBackoff * time.Duration(attempt)):
		}
	}
	return 0, lastErr
}

func (e *Executor) record(ctx context.Context, fill *Fill) {
	e.mu.Lock()
	e.fills = append(e.fills, *fill)
	e.mu.Unlock()

	if e.repo != nil {
		if err := e.repo.SaveFill(ctx, fill); err != nil {
			e.logger.Error().
				Str("fill_id", fill.ID).
				Err(err).
				Msg("Failed to persist fill")
		}
	}

	e.logger.Info().
		Str("fill_id", fill.ID).
		Str("symbol", fill.Symbol).
		Str("action", string(fill.Action)).
		Float64("price", fill.Price).
		Float64("quantity", fill.Quantity).
		Msg("Fill recorded")
}
