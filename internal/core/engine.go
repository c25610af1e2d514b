package core

import (
	"sync"
	"time"

	"github.com/yanun0323/errors"
	"github.com/yanun0323/logs"

	"arb/internal/book"
	"arb/internal/codec"
	"arb/internal/obs"
	"arb/internal/og"
	"arb/internal/risk"
	"arb/internal/schema"
	"arb/internal/signal"
	"arb/internal/state"
	"arb/internal/strategy"
	"arb/pkg/exception"
)

// Decision summarizes one book update.
type Decision struct {
	Seq        uint64
	Outcome    Outcome
	Orders     int
	FairETF    float64
	FairFuture float64
	Spread     float64
	Normalized float64
}

// Payload converts the decision for the WAL.
func (d Decision) Payload() schema.CycleDecision {
	return schema.CycleDecision{
		Seq:       d.Seq,
		Outcome:   uint16(d.Outcome),
		Orders:    uint16(min(d.Orders, 1<<16-1)),
		FairETF:   d.FairETF,
		FairFut:   d.FairFuture,
		Spread:    d.Spread,
		SpreadNrm: d.Normalized,
	}
}

// Engine is the single mutual-exclusion domain for books, signals,
// positions and outstanding orders. Every entry point takes the lock.
type Engine struct {
	mu sync.Mutex

	cfg       Config
	store     *book.Store
	pricer    signal.Pricer
	history   *signal.History
	strategy  strategy.Strategy
	positions *state.PositionReducer
	orders    *og.Manager
	metrics   *obs.Metrics
	now       func() time.Time
}

// EngineOption customizes an Engine.
type EngineOption func(*engineOptions)

type engineOptions struct {
	metrics   *obs.Metrics
	reporter  og.Reporter
	positions *state.PositionReducer
	lastID    uint64
}

// WithMetrics attaches counters to the engine and its order manager.
func WithMetrics(m *obs.Metrics) EngineOption {
	return func(o *engineOptions) { o.metrics = m }
}

// WithReporter replaces the order manager's log reporter.
func WithReporter(r og.Reporter) EngineOption {
	return func(o *engineOptions) { o.reporter = r }
}

// WithPositions starts from recovered positions and order ids.
func WithPositions(p *state.PositionReducer, lastOrderID uint64) EngineOption {
	return func(o *engineOptions) {
		o.positions = p
		o.lastID = lastOrderID
	}
}

// NewEngine builds the pipeline. venue receives every outbound command.
func NewEngine(cfg Config, venue og.Venue, opts ...EngineOption) (*Engine, error) {
	var o engineOptions
	for _, opt := range opts {
		opt(&o)
	}
	if err := cfg.Risk.Validate(); err != nil {
		return nil, err
	}
	cfg.Signal = cfg.Signal.withDefaults()

	strat, err := strategy.New(cfg.Strategy)
	if err != nil {
		return nil, err
	}

	positions := o.positions
	if positions == nil {
		positions = state.NewPositionReducer()
	}
	store := book.NewStore()

	managerOpts := []og.Option{og.WithMetrics(o.metrics), og.WithFirstID(o.lastID), og.WithLimit(cfg.Risk.Limit())}
	if o.reporter != nil {
		managerOpts = append(managerOpts, og.WithReporter(o.reporter))
	}
	orders, err := og.NewManager(cfg.Order, venue, store, positions, managerOpts...)
	if err != nil {
		return nil, err
	}

	return &Engine{
		cfg:       cfg,
		store:     store,
		pricer:    signal.NewPricer(cfg.Signal.Pricer, cfg.Signal.Coverage),
		history:   signal.NewHistory(),
		strategy:  strat,
		positions: positions,
		orders:    orders,
		metrics:   o.metrics,
		now:       time.Now,
	}, nil
}

// OnBookUpdate stores the snapshot and, when both books are synchronized,
// runs one decision cycle.
func (e *Engine) OnBookUpdate(u schema.BookUpdate) Decision {
	e.mu.Lock()
	defer e.mu.Unlock()

	start := e.now()
	d := e.cycle(u)
	e.metrics.ObserveCycle(uint16(d.Outcome), e.now().Sub(start))
	return d
}

func (e *Engine) cycle(u schema.BookUpdate) Decision {
	d := Decision{Seq: u.Seq}
	if !u.Instrument.IsAvailable() {
		d.Outcome = OutcomeIgnored
		return d
	}
	if !e.store.Update(book.FromUpdate(u)) {
		d.Outcome = OutcomeStaleBook
		return d
	}

	etf, future, _ := e.store.Pair()
	if !etf.Quoted() || !future.Quoted() {
		d.Outcome = OutcomeEmptyBook
		return d
	}
	fairETF, okETF := e.pricer.FairValue(etf)
	fairFuture, okFuture := e.pricer.FairValue(future)
	if !okETF || !okFuture {
		d.Outcome = OutcomeEmptyBook
		return d
	}
	spread, ok := signal.SpreadOf(e.cfg.Signal.Spread, fairFuture, fairETF)
	if !ok {
		d.Outcome = OutcomeEmptyBook
		return d
	}
	e.history.Add(spread)
	d.FairETF, d.FairFuture, d.Spread = fairETF, fairFuture, spread
	d.Normalized = e.history.Normalize(spread)

	if e.cfg.Risk.KillSwitch {
		d.Outcome = OutcomeKillSwitch
		return d
	}
	if e.orders.Config().Lifespan == schema.LifespanGoodTillCancelled {
		e.orders.CancelAll()
	}

	budget := risk.NewCycle(e.cfg.Risk, e.positions.Positions())
	for inst := range schema.Instrument(schema.InstrumentCount) {
		for _, side := range []schema.Side{schema.SideBuy, schema.SideSell} {
			budget.Commit(inst, side, e.orders.Exposure(inst, side))
		}
	}

	intents := e.strategy.Decide(&strategy.Cycle{
		ETF:        etf,
		Future:     future,
		FairETF:    fairETF,
		FairFuture: fairFuture,
		Spread:     spread,
		Normalized: d.Normalized,
		Budget:     budget,
	})
	for _, in := range intents {
		_, err := e.orders.Submit(og.Request{
			Instrument: in.Instrument,
			Side:       in.Side,
			Price:      in.Price,
			Level:      in.Level,
			Volume:     in.Volume,
			HedgePrice: in.HedgePrice,
		})
		if err != nil {
			logs.Errorf("core: submit %s %s %d @ %d, err: %+v", in.Side, in.Instrument, in.Volume, in.Price, err)
			continue
		}
		d.Orders++
	}

	if d.Orders == 0 {
		d.Outcome = OutcomeNoSignal
	} else {
		d.Outcome = OutcomeDecided
		logs.Infof("core: seq %d %s spread %.4f norm %.4f, %d orders", d.Seq, e.strategy.Name(), spread, d.Normalized, d.Orders)
	}
	return d
}

// OnOrderFilled forwards a taking-order fill.
func (e *Engine) OnOrderFilled(f schema.Fill) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.orders.OnFilled(f)
}

// OnHedgeFilled forwards a hedge fill.
func (e *Engine) OnHedgeFilled(f schema.Fill) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.orders.OnHedgeFilled(f)
}

// OnOrderStatus forwards a status report.
func (e *Engine) OnOrderStatus(s schema.OrderStatus) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.orders.OnStatus(s)
}

// OnOrderError forwards a venue error.
func (e *Engine) OnOrderError(oe schema.OrderError) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.orders.OnError(oe)
}

// SetRisk swaps the risk limits, used by config hot reload.
func (e *Engine) SetRisk(cfg risk.Config) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if cfg.Version != e.cfg.Risk.Version {
		logs.Infof("core: risk config %d -> %d, limit: %d, kill switch: %v", e.cfg.Risk.Version, cfg.Version, cfg.Limit(), cfg.KillSwitch)
	}
	e.cfg.Risk = cfg
	e.orders.SetLimit(cfg.Limit())
	return nil
}

// Positions returns a copy of the current positions.
func (e *Engine) Positions() [schema.InstrumentCount]schema.Quantity {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.positions.Positions()
}

// Snapshot captures positions tagged with the given WAL sequence.
func (e *Engine) Snapshot(lastSeq uint64) state.Snapshot {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.positions.Snapshot(lastSeq)
}

// Outstanding returns the number of live orders.
func (e *Engine) Outstanding() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.orders.Len()
}

// CancelAll cancels every resting order, used on shutdown.
func (e *Engine) CancelAll() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.orders.CancelAll()
}

// Dispatch decodes a venue report and forwards it.
func (e *Engine) Dispatch(header schema.EventHeader, payload []byte) error {
	switch header.Type {
	case schema.EventOrderFilled, schema.EventHedgeFilled:
		f, ok := codec.DecodeFill(payload)
		if !ok {
			return errors.Wrap(exception.ErrDecodePayload, "core: fill").With("seq", header.Seq)
		}
		if header.Type == schema.EventHedgeFilled {
			return e.OnHedgeFilled(f)
		}
		return e.OnOrderFilled(f)
	case schema.EventOrderStatus:
		s, ok := codec.DecodeOrderStatus(payload)
		if !ok {
			return errors.Wrap(exception.ErrDecodePayload, "core: status").With("seq", header.Seq)
		}
		return e.OnOrderStatus(s)
	case schema.EventOrderError:
		oe, ok := codec.DecodeOrderError(payload)
		if !ok {
			return errors.Wrap(exception.ErrDecodePayload, "core: error").With("seq", header.Seq)
		}
		return e.OnOrderError(oe)
	default:
		return errors.Wrap(exception.ErrInvalidArgument, "core: not a venue report").With("type", header.Type.String())
	}
}
