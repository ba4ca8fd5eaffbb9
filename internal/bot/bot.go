package bot

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"vwap-trading-bot/config"
	"vwap-trading-bot/internal/database"
	"vwap-trading-bot/internal/events"
	"vwap-trading-bot/internal/exit"
	"vwap-trading-bot/internal/filter"
	"vwap-trading-bot/internal/market"
	"vwap-trading-bot/internal/orders"
	"vwap-trading-bot/internal/patterns"
	"vwap-trading-bot/internal/risk"
)

// TradingBot is the live trading loop. Each watched symbol carries its own
// pattern detector and confirmation trackers; each open position carries one
// exit engine. All state transitions are driven by tick arrival.
type TradingBot struct {
	config       *config.Config
	eventBus     *events.EventBus
	riskMgr      *risk.Manager
	executor     *orders.Executor
	snapshots    *database.RedisPositionStateRepository
	filterEngine *filter.Engine
	thresholds   exit.Thresholds
	detectorCfg  patterns.DetectorConfig
	confirmCfg   patterns.ConfirmationConfig

	mu       sync.RWMutex
	watch    map[string]*symbolState
	engines  map[string]*exit.Engine
	tickChan chan market.Tick
	stopChan chan struct{}
	wg       sync.WaitGroup
}

// symbolState holds the per-symbol live detection machinery
type symbolState struct {
	detector *patterns.Detector
	trackers []*patterns.ConfirmationTracker
	series   *market.BarSeries // lookback history backing the filter predicates
}

// NewTradingBot wires the live loop from its collaborators. snapshots may be
// nil to skip position persistence.
func NewTradingBot(
	cfg *config.Config,
	eventBus *events.EventBus,
	riskMgr *risk.Manager,
	executor *orders.Executor,
	snapshots *database.RedisPositionStateRepository,
) (*TradingBot, error) {
	preset, ok := filter.PresetByName(filter.BuiltinPresets(), cfg.TradingConfig.ActivePreset)
	if !ok {
		return nil, fmt.Errorf("unknown filter preset %q", cfg.TradingConfig.ActivePreset)
	}

	return &TradingBot{
		config:       cfg,
		eventBus:     eventBus,
		riskMgr:      riskMgr,
		executor:     executor,
		snapshots:    snapshots,
		filterEngine: filter.NewEngine(preset),
		thresholds:   exit.DefaultThresholds(),
		detectorCfg:  patterns.DefaultDetectorConfig(),
		confirmCfg:   patterns.DefaultConfirmationConfig(),
		watch:        make(map[string]*symbolState),
		engines:      make(map[string]*exit.Engine),
		tickChan:     make(chan market.Tick, 1024),
		stopChan:     make(chan struct{}),
	}, nil
}

// SetWatchlist replaces the watched symbol set. News-excluded symbols are
// skipped entirely. Removing a symbol discards its in-flight candidates;
// open positions are never cancelled and run to a terminal exit.
func (b *TradingBot) SetWatchlist(symbols []string, history map[string]*market.BarSeries) {
	excluded := make(map[string]bool, len(b.config.TradingConfig.ExcludeNews))
	for _, s := range b.config.TradingConfig.ExcludeNews {
		excluded[s] = true
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	keep := make(map[string]bool, len(symbols))
	for _, symbol := range symbols {
		if excluded[symbol] {
			continue
		}
		keep[symbol] = true
		if _, exists := b.watch[symbol]; !exists {
			b.watch[symbol] = &symbolState{
				detector: patterns.NewDetector(symbol, b.detectorCfg, patterns.WallClock),
				series:   history[symbol],
			}
		}
	}
	for symbol, st := range b.watch {
		if !keep[symbol] {
			st.detector.Reset()
			delete(b.watch, symbol)
		}
	}
}

// Start begins the session: resets risk state and launches the dispatch loop
func (b *TradingBot) Start(startingBalance float64) {
	b.riskMgr.StartSession(startingBalance, time.Now())

	b.wg.Add(1)
	go b.dispatchLoop()

	log.Printf("Trading bot started: preset=%s dry_run=%v balance=%.2f",
		b.config.TradingConfig.ActivePreset, b.config.TradingConfig.DryRun, startingBalance)
	b.eventBus.Publish(events.Event{Type: events.EventBotStarted})
}

// Stop drains the dispatch loop and shuts down
func (b *TradingBot) Stop() {
	close(b.stopChan)
	b.wg.Wait()
	b.eventBus.Publish(events.Event{Type: events.EventBotStopped})
	log.Println("Trading bot stopped")
}

// OnTick enqueues a tick for processing. Ticks are dropped when the queue is
// full; a stale tick is worthless next to the ones behind it.
func (b *TradingBot) OnTick(tick market.Tick) {
	select {
	case b.tickChan <- tick:
	default:
	}
}

func (b *TradingBot) dispatchLoop() {
	defer b.wg.Done()

	for {
		select {
		case tick := <-b.tickChan:
			b.processTick(tick)
		case <-b.stopChan:
			return
		}
	}
}

// processTick runs one tick through the exit, confirmation and detection
// stages in that order. Exits come first: floors and timeouts are
// time-sensitive.
func (b *TradingBot) processTick(tick market.Tick) {
	b.eventBus.PublishPriceUpdate(tick.Symbol, tick.Price)

	if b.handleOpenPosition(tick) {
		return
	}
	b.handleConfirmations(tick)
	b.handleDetection(tick)
}

// handleOpenPosition advances the symbol's exit engine if a position is
// open. Returns true when the tick belonged to an open position.
func (b *TradingBot) handleOpenPosition(tick market.Tick) bool {
	b.mu.Lock()
	engine, open := b.engines[tick.Symbol]
	b.mu.Unlock()
	if !open {
		return false
	}

	before := engine.State()
	decision := engine.OnPrice(tick.Timestamp, tick.Price)
	after := engine.State()

	if decision == nil {
		if after != before {
			b.eventBus.PublishMilestoneReached(tick.Symbol, string(after), engine.Floor())
			b.saveSnapshot(engine)
		}
		return true
	}

	b.closePosition(engine, decision, tick.Timestamp)
	return true
}

func (b *TradingBot) closePosition(engine *exit.Engine, decision *exit.Decision, now time.Time) {
	pos := engine.Position()
	pnlPct := (decision.Price - pos.EntryPrice) / pos.EntryPrice * 100
	pnlDollars := (decision.Price - pos.EntryPrice) * pos.Quantity

	if !b.config.TradingConfig.DryRun && b.executor != nil {
		_, err := b.executor.Sell(context.Background(), pos.Symbol, pos.Quantity, decision.Price, pnlPct, string(decision.Reason))
		if err != nil {
			// The position is stranded at the broker; count its estimated
			// P&L so the session total does not drift.
			log.Printf("Exit order failed for %s: %v", pos.Symbol, err)
			b.riskMgr.RegisterExitFailure(pnlDollars, now)
			b.removePosition(pos.Symbol)
			return
		}
	}

	b.riskMgr.RegisterExit(pnlDollars, now)
	b.removePosition(pos.Symbol)

	b.eventBus.PublishPositionClosed(pos.Symbol, pos.EntryPrice, decision.Price, pnlPct, string(decision.Reason))
	if b.riskMgr.Halted() {
		b.eventBus.PublishRiskHalt(b.riskMgr.Snapshot().CumulativeRealizedPnL)
	}

	log.Printf("Position closed: %s %s at %.2f (%.2f%%)", pos.Symbol, decision.Reason, decision.Price, pnlPct)
}

func (b *TradingBot) removePosition(symbol string) {
	b.mu.Lock()
	delete(b.engines, symbol)
	b.mu.Unlock()

	if b.snapshots != nil {
		if err := b.snapshots.DeleteSnapshot(context.Background(), symbol); err != nil {
			log.Printf("Failed to delete position snapshot for %s: %v", symbol, err)
		}
	}
}

// handleConfirmations feeds the tick to pending confirmation trackers and
// opens a position on the first confirmed pattern
func (b *TradingBot) handleConfirmations(tick market.Tick) {
	b.mu.Lock()
	st, watched := b.watch[tick.Symbol]
	b.mu.Unlock()
	if !watched || len(st.trackers) == 0 {
		return
	}

	var remaining []*patterns.ConfirmationTracker
	for _, tracker := range st.trackers {
		confirmed, done := tracker.Observe(tick.Timestamp, tick.Price)
		if !done {
			remaining = append(remaining, tracker)
			continue
		}
		if confirmed {
			b.tryEnter(tracker.Pattern, st, tick)
		}
	}

	b.mu.Lock()
	st.trackers = remaining
	b.mu.Unlock()
}

// tryEnter runs the entry path for a confirmed pattern: filter, risk
// admission, sizing, order submission, exit engine creation
func (b *TradingBot) tryEnter(p *patterns.Pattern, st *symbolState, tick market.Tick) {
	b.eventBus.PublishPatternConfirmed(p.Symbol, p.ID, p.EntryPrice)

	if _, reason := b.filterEngine.Apply(p, st.series); reason != "" {
		b.eventBus.PublishPatternFiltered(p.Symbol, p.ID, b.filterEngine.Config().Name, reason)
		return
	}

	if ok, reason := b.riskMgr.CanEnter(); !ok {
		log.Printf("Entry blocked for %s: %s", p.Symbol, reason)
		return
	}

	b.mu.Lock()
	_, alreadyOpen := b.engines[p.Symbol]
	b.mu.Unlock()
	if alreadyOpen {
		return
	}

	quantity := b.riskMgr.PositionSize(p.EntryPrice)
	if quantity <= 0 {
		return
	}

	entryPrice := p.EntryPrice
	if !b.config.TradingConfig.DryRun && b.executor != nil {
		fill, err := b.executor.Buy(context.Background(), p.Symbol, quantity, p.EntryPrice, p.ID)
		if err != nil {
			log.Printf("Entry order failed for %s: %v", p.Symbol, err)
			return
		}
		entryPrice = fill.Price
	}

	pos := exit.NewPosition(p.Symbol, entryPrice, tick.Timestamp, quantity, string(p.Type))
	engine := exit.NewEngine(pos, b.thresholds)

	b.mu.Lock()
	b.engines[p.Symbol] = engine
	b.mu.Unlock()

	b.riskMgr.RegisterEntry()
	b.saveSnapshot(engine)
	b.eventBus.PublishPositionOpened(p.Symbol, entryPrice, quantity, p.ID)

	log.Printf("Position opened: %s %.2f x %.2f (%s)", p.Symbol, entryPrice, quantity, p.Type)
}

// handleDetection feeds the tick to the symbol's pattern detector and
// starts a confirmation tracker for each completed pattern
func (b *TradingBot) handleDetection(tick market.Tick) {
	b.mu.Lock()
	st, watched := b.watch[tick.Symbol]
	b.mu.Unlock()
	if !watched {
		return
	}

	for _, p := range st.detector.Observe(tick.Timestamp, tick.Price, tick.VWAP) {
		b.eventBus.PublishPatternDetected(p.Symbol, p.ID, string(p.Type), p.TerminalLow)

		tracker := patterns.NewConfirmationTracker(p, b.confirmCfg, patterns.WallClock)
		b.mu.Lock()
		st.trackers = append(st.trackers, tracker)
		b.mu.Unlock()
	}
}

func (b *TradingBot) saveSnapshot(engine *exit.Engine) {
	if b.snapshots == nil {
		return
	}
	pos := engine.Position()
	snap := &database.PositionSnapshot{
		Symbol:      pos.Symbol,
		EntryPrice:  pos.EntryPrice,
		EntryTime:   pos.EntryTime,
		Quantity:    pos.Quantity,
		State:       string(engine.State()),
		FloorPrice:  engine.Floor(),
		EntryReason: pos.EntryReason,
	}
	if err := b.snapshots.SaveSnapshot(context.Background(), snap); err != nil {
		log.Printf("Failed to save position snapshot for %s: %v", pos.Symbol, err)
	}
}

// OpenPositions returns the open positions keyed by symbol
func (b *TradingBot) OpenPositions() map[string]exit.Position {
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := make(map[string]exit.Position, len(b.engines))
	for symbol, engine := range b.engines {
		out[symbol] = engine.Position()
	}
	return out
}

// PositionStates returns the milestone state and floor per open symbol
func (b *TradingBot) PositionStates() map[string]PositionStatus {
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := make(map[string]PositionStatus, len(b.engines))
	for symbol, engine := range b.engines {
		pos := engine.Position()
		out[symbol] = PositionStatus{
			Position:   pos,
			State:      string(engine.State()),
			FloorPrice: engine.Floor(),
		}
	}
	return out
}

// GetStatus summarizes the live loop for the API layer
func (b *TradingBot) GetStatus() map[string]interface{} {
	b.mu.RLock()
	watched := len(b.watch)
	open := len(b.engines)
	b.mu.RUnlock()

	return map[string]interface{}{
		"preset":          b.config.TradingConfig.ActivePreset,
		"dry_run":         b.config.TradingConfig.DryRun,
		"watched_symbols": watched,
		"open_positions":  open,
		"halted":          b.riskMgr.Halted(),
	}
}

// PositionStatus pairs a position with its live exit-engine state
type PositionStatus struct {
	Position   exit.Position `json:"position"`
	State      string        `json:"state"`
	FloorPrice float64       `json:"floor_price"`
}
