package og

import (
	"math"
	"sync/atomic"

	"github.com/yanun0323/errors"
	"github.com/yanun0323/logs"

	"arb/internal/obs"
	"arb/internal/risk"
	"arb/internal/schema"
	"arb/internal/state"
	"arb/pkg/exception"
)

// Request is a taking order the strategy wants placed.
type Request struct {
	Instrument schema.Instrument
	Side       schema.Side
	Price      schema.Price
	// Level is the ladder index Price came from; retries continue at Level+1.
	Level    int
	Volume   schema.Quantity
	Lifespan schema.Lifespan
	// HedgePrice is the hedge price the decision assumed; zero when unknown.
	HedgePrice schema.Price
}

// Manager owns every outstanding order and drives hedges and retries from
// fills. It is not safe for concurrent use; the engine serializes calls.
type Manager struct {
	cfg       Config
	venue     Venue
	books     Books
	positions *state.PositionReducer
	reporter  Reporter
	metrics   *obs.Metrics
	// limit caps re-drives so every live order can fill without breaching it.
	// Zero leaves re-drives uncapped.
	limit schema.Quantity

	nextID atomic.Uint64
	orders map[uint64]*Order
	legs   map[uint64]*Leg
}

// Option customizes a Manager.
type Option func(*Manager)

// WithReporter replaces the default log reporter.
func WithReporter(r Reporter) Option {
	return func(m *Manager) {
		if r != nil {
			m.reporter = r
		}
	}
}

// WithMetrics attaches order counters.
func WithMetrics(metrics *obs.Metrics) Option {
	return func(m *Manager) { m.metrics = metrics }
}

// WithFirstID makes the id counter continue after a recovered WAL.
func WithFirstID(lastID uint64) Option {
	return func(m *Manager) { m.nextID.Store(lastID) }
}

// WithLimit caps re-drives at the position limit.
func WithLimit(limit schema.Quantity) Option {
	return func(m *Manager) { m.limit = limit }
}

// NewManager creates an order lifecycle manager.
func NewManager(cfg Config, venue Venue, books Books, positions *state.PositionReducer, opts ...Option) (*Manager, error) {
	cfg = cfg.withDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if venue == nil || books == nil || positions == nil {
		return nil, errors.Wrap(exception.ErrNilInstance, "og: venue, books and positions are required")
	}
	m := &Manager{
		cfg:       cfg,
		venue:     venue,
		books:     books,
		positions: positions,
		reporter:  LogReporter{},
		orders:    make(map[uint64]*Order),
		legs:      make(map[uint64]*Leg),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m, nil
}

// Config returns the effective configuration.
func (m *Manager) Config() Config {
	return m.cfg
}

// SetLimit replaces the position limit used to size re-drives.
func (m *Manager) SetLimit(limit schema.Quantity) {
	m.limit = limit
}

// LastID returns the last identifier handed out.
func (m *Manager) LastID() uint64 {
	return m.nextID.Load()
}

// Order returns a copy of an outstanding order.
func (m *Manager) Order(id uint64) (Order, bool) {
	o, ok := m.orders[id]
	if !ok {
		return Order{}, false
	}
	return *o, true
}

// Leg returns a copy of an open leg.
func (m *Manager) Leg(id uint64) (Leg, bool) {
	l, ok := m.legs[id]
	if !ok {
		return Leg{}, false
	}
	return *l, true
}

// Len returns the number of outstanding orders.
func (m *Manager) Len() int {
	return len(m.orders)
}

// Exposure is the unfilled volume that could still move instrument's
// position in the direction of side. An unfilled taking order also counts
// on the paired instrument, where its fills will be hedged. Orders pending
// cancel, and retried orders, count until the venue confirms them closed.
func (m *Manager) Exposure(instrument schema.Instrument, side schema.Side) schema.Quantity {
	var total schema.Quantity
	for _, o := range m.orders {
		if !o.exposed() {
			continue
		}
		switch {
		case o.Instrument == instrument && o.Side == side:
			total += o.Remaining()
		case !o.Hedge && !m.cfg.DisableHedge && o.Instrument == instrument.Other() && o.Side == side.Opposite():
			total += o.Remaining()
		}
	}
	return total
}

// Submit places a new taking order and opens a leg for it.
func (m *Manager) Submit(req Request) (uint64, error) {
	if req.Volume <= 0 {
		return 0, errors.Wrap(exception.ErrInvalidVolume, "og: submit").With("volume", int64(req.Volume))
	}
	if !req.Instrument.IsAvailable() {
		return 0, errors.Wrap(exception.ErrUnknownInstrument, "og: submit").With("instrument", uint16(req.Instrument))
	}
	if req.Side != schema.SideBuy && req.Side != schema.SideSell {
		return 0, errors.Wrap(exception.ErrInvalidArgument, "og: submit, unknown side")
	}
	if req.Price <= 0 {
		return 0, errors.Wrap(exception.ErrNoPriceLevel, "og: submit").With("price", int64(req.Price))
	}
	if req.Lifespan == schema.LifespanUnknown {
		req.Lifespan = m.cfg.Lifespan
	}

	leg := &Leg{ID: m.nextID.Add(1), Instrument: req.Instrument, Side: req.Side, Intended: req.Volume}
	m.legs[leg.ID] = leg

	o := &Order{
		LegID:      leg.ID,
		Instrument: req.Instrument,
		Side:       req.Side,
		Price:      req.Price,
		Level:      req.Level,
		Lifespan:   req.Lifespan,
		Intended:   req.Volume,
		HedgePrice: req.HedgePrice,
	}
	if err := m.send(o); err != nil {
		delete(m.legs, leg.ID)
		return 0, err
	}
	leg.Live = o.ID
	return o.ID, nil
}

// OnFilled applies a fill on a taking order. It updates the position,
// hedges the filled volume and re-drives any residual.
func (m *Manager) OnFilled(fill schema.Fill) error {
	o, err := m.applyFill(fill)
	if err != nil {
		return err
	}
	if o.Hedge {
		m.settleHedge(o)
		return nil
	}
	m.fillLeg(o, fill.Qty)

	if !m.cfg.DisableHedge {
		m.hedge(o, fill.Qty)
	}

	if o.State == OrderStateRetried {
		m.cancelRedrive(o)
		return nil
	}
	if o.Filled >= o.Intended {
		o.State = OrderStateFullyFilled
		if leg, ok := m.legs[o.LegID]; ok {
			leg.Retries = 0
		}
		return nil
	}
	o.State = OrderStatePartiallyFilled
	if o.Lifespan == schema.LifespanImmediateOrCancel && !o.Cancelled {
		m.retry(o)
	}
	return nil
}

// OnHedgeFilled applies a fill on a hedge order. Hedges never spawn orders.
func (m *Manager) OnHedgeFilled(fill schema.Fill) error {
	o, err := m.applyFill(fill)
	if err != nil {
		return err
	}
	m.settleHedge(o)
	return nil
}

// fillLeg tracks the leg's executed volume and reports what goes beyond
// the volume the leg was opened for.
func (m *Manager) fillLeg(o *Order, qty schema.Quantity) {
	leg, ok := m.legs[o.LegID]
	if !ok {
		return
	}
	before := max(leg.Filled-leg.Intended, 0)
	leg.Filled += qty
	if excess := max(leg.Filled-leg.Intended, 0) - before; excess > 0 {
		m.metrics.AddOverfilled(excess)
		m.reporter.Overfilled(*o, excess)
	}
}

// cancelRedrive handles a fill on an order whose residual was already
// re-driven. The live re-drive is cancelled once it would take the leg past
// its intended volume.
func (m *Manager) cancelRedrive(o *Order) {
	leg, ok := m.legs[o.LegID]
	if !ok || leg.Live == o.ID {
		return
	}
	live, ok := m.orders[leg.Live]
	if !ok || live.Cancelled || !live.exposed() {
		return
	}
	if leg.Filled+live.Remaining() <= leg.Intended {
		return
	}
	if err := m.Cancel(live.ID); err != nil {
		logs.Errorf("og: leg %d cancel re-drive %d, err: %+v", leg.ID, live.ID, err)
	}
}

func (m *Manager) settleHedge(o *Order) {
	if o.Filled >= o.Intended {
		o.State = OrderStateFullyFilled
		m.remove(o)
		return
	}
	o.State = OrderStatePartiallyFilled
}

// OnStatus removes an order once the venue reports nothing remaining.
func (m *Manager) OnStatus(status schema.OrderStatus) error {
	o, ok := m.orders[status.OrderID]
	if !ok {
		if status.RemainingQty == 0 {
			return nil
		}
		return errors.Wrap(exception.ErrUnknownOrder, "og: status").With("orderID", status.OrderID)
	}
	if status.RemainingQty > 0 {
		return nil
	}
	if o.Cancelled && o.Filled < o.Intended && o.State != OrderStateRetried {
		o.State = OrderStateCancelled
	}
	m.remove(o)
	return nil
}

// OnError treats the order as rejected and reports it. No retry is attempted.
func (m *Manager) OnError(e schema.OrderError) error {
	o, ok := m.orders[e.OrderID]
	if !ok {
		logs.Errorf("og: error for unknown order %d: %s", e.OrderID, e.Message)
		return errors.Wrap(exception.ErrUnknownOrder, "og: error").With("orderID", e.OrderID)
	}
	o.State = OrderStateRejected
	m.remove(o)
	m.metrics.IncOrderRejected()
	m.reporter.OrderRejected(*o, e.Message)
	return nil
}

// Cancel asks the venue to cancel a resting order. The order is removed
// when the venue confirms with a status.
func (m *Manager) Cancel(id uint64) error {
	o, ok := m.orders[id]
	if !ok {
		return errors.Wrap(exception.ErrUnknownOrder, "og: cancel").With("orderID", id)
	}
	if o.Hedge || o.Cancelled {
		return nil
	}
	if err := m.venue.CancelOrder(id); err != nil {
		return errors.Wrap(err, "og: cancel").With("orderID", id)
	}
	o.Cancelled = true
	return nil
}

// CancelAll cancels every resting taking order and returns how many were sent.
func (m *Manager) CancelAll() int {
	n := 0
	for id, o := range m.orders {
		if o.Hedge || o.Cancelled || !o.exposed() {
			continue
		}
		if err := m.Cancel(id); err != nil {
			logs.Errorf("og: cancel %d, err: %+v", id, err)
			continue
		}
		n++
	}
	return n
}

func (m *Manager) applyFill(fill schema.Fill) (*Order, error) {
	o, ok := m.orders[fill.OrderID]
	if !ok {
		return nil, errors.Wrap(exception.ErrUnknownOrder, "og: fill").With("orderID", fill.OrderID)
	}
	if fill.Qty <= 0 {
		return nil, errors.Wrap(exception.ErrInvalidFill, "og: fill").With("orderID", fill.OrderID).With("qty", int64(fill.Qty))
	}
	o.Filled += fill.Qty
	if o.Filled > o.Intended {
		logs.Errorf("og: order %d overfilled, intended: %d, filled: %d", o.ID, o.Intended, o.Filled)
	}
	pos := m.positions.ApplyFill(o.Instrument, o.Side, fill.Qty)
	m.metrics.AddFilled(fill.Qty)
	logs.Infof("og: order %d filled %d @ %d, %s position: %d", o.ID, fill.Qty, fill.Price, o.Instrument, pos)
	return o, nil
}

// hedge walks the paired instrument's ladder top-down, one order per level.
func (m *Manager) hedge(taker *Order, volume schema.Quantity) {
	instrument, side := taker.Instrument.Other(), taker.Side.Opposite()
	snap, ok := m.books.Snapshot(instrument)
	if !ok {
		m.metrics.IncHedgeShort()
		m.reporter.HedgeShort(instrument, side, volume, exception.ErrEmptyBook)
		return
	}

	remaining := volume
	for idx, level := range snap.Ladder(side) {
		if remaining == 0 {
			break
		}
		if !level.Tradable() {
			continue
		}
		o := &Order{
			Instrument: instrument,
			Side:       side,
			Price:      level.Price,
			Level:      idx,
			Lifespan:   schema.LifespanImmediateOrCancel,
			Intended:   min(remaining, level.Volume),
			PairID:     taker.ID,
			Hedge:      true,
		}
		if err := m.send(o); err != nil {
			continue
		}
		remaining -= o.Intended
		if worse(side, o.Price, taker.HedgePrice) {
			logs.Infof("og: order %d hedge %s %s %d @ %d, expected %d", taker.ID, side, instrument, o.Intended, o.Price, taker.HedgePrice)
		}
	}
	if remaining > 0 {
		m.metrics.IncHedgeShort()
		m.reporter.HedgeShort(instrument, side, remaining, exception.ErrHedgeDepth)
	}
}

// worse reports whether price trades on side at a worse price than expected.
func worse(side schema.Side, price, expected schema.Price) bool {
	if expected <= 0 {
		return false
	}
	if side == schema.SideBuy {
		return price > expected
	}
	return price < expected
}

// retry re-drives the residual one level deeper on the current book. The
// original keeps counting as exposure until the venue closes it, and the
// re-drive is clipped so both can fill without breaching the limit.
func (m *Manager) retry(o *Order) {
	residual := o.Remaining()
	leg, ok := m.legs[o.LegID]
	if !ok || residual == 0 {
		return
	}
	if leg.Retries >= m.cfg.MaxRetries {
		m.exhausted(o, residual, exception.ErrRetryExhausted)
		return
	}

	snap, ok := m.books.Snapshot(o.Instrument)
	next := o.Level + 1
	level, found := snap.Level(o.Side, next)
	if !ok || !found || level.Price <= 0 {
		m.exhausted(o, residual, exception.ErrNoPriceLevel)
		return
	}

	qty := min(residual, m.headroom(o.Instrument, o.Side))
	if qty <= 0 {
		m.exhausted(o, residual, exception.ErrPositionLimit)
		return
	}

	leg.Retries++
	o.State = OrderStateRetried
	r := &Order{
		LegID:      leg.ID,
		Instrument: o.Instrument,
		Side:       o.Side,
		Price:      level.Price,
		Level:      next,
		Lifespan:   o.Lifespan,
		Intended:   qty,
		Retries:    leg.Retries,
		HedgePrice: o.HedgePrice,
	}
	if err := m.send(r); err != nil {
		m.exhausted(o, residual, err)
		return
	}
	leg.Live = r.ID
	m.metrics.IncOrderRetried()
	logs.Infof("og: leg %d retry %d, order %d -> %d, qty: %d @ %d", leg.ID, leg.Retries, o.ID, r.ID, qty, level.Price)
	if qty < residual {
		m.exhausted(o, residual-qty, exception.ErrPositionLimit)
	}
}

// headroom is how far instrument can still move toward side, and its hedge
// the other way, once every live order fills.
func (m *Manager) headroom(instrument schema.Instrument, side schema.Side) schema.Quantity {
	if m.limit <= 0 {
		return math.MaxInt64
	}
	room := risk.Tradable(side, m.positions.Position(instrument), m.Exposure(instrument, side), m.limit)
	if !m.cfg.DisableHedge {
		other := instrument.Other()
		room = min(room, risk.Tradable(side.Opposite(), m.positions.Position(other), m.Exposure(other, side.Opposite()), m.limit))
	}
	return room
}

func (m *Manager) exhausted(o *Order, residual schema.Quantity, cause error) {
	m.metrics.IncRetryExhausted()
	m.reporter.RetryExhausted(*o, residual, cause)
}

// send assigns an id, registers the order and routes it to the venue.
func (m *Manager) send(o *Order) error {
	o.ID = m.nextID.Add(1)
	o.State = OrderStateSubmitted
	m.orders[o.ID] = o

	cmd := schema.OrderCommand{
		OrderID:    o.ID,
		Kind:       schema.CommandInsert,
		Instrument: o.Instrument,
		Side:       o.Side,
		Lifespan:   o.Lifespan,
		Price:      o.Price,
		Qty:        o.Intended,
	}

	var err error
	if o.Instrument == m.cfg.HedgeInstrument {
		cmd.Kind = schema.CommandHedge
		err = m.venue.SendHedgeOrder(cmd)
	} else {
		err = m.venue.InsertOrder(cmd)
	}
	if err != nil {
		o.State = OrderStateRejected
		delete(m.orders, o.ID)
		m.metrics.IncOrderRejected()
		m.reporter.OrderRejected(*o, err.Error())
		return errors.Wrap(exception.ErrOrderRejected, "og: send").With("orderID", o.ID).With("cause", err.Error())
	}
	m.metrics.IncOrderSent(cmd.Kind)
	if leg, ok := m.legs[o.LegID]; ok && !o.Hedge {
		leg.open++
	}
	return nil
}

func (m *Manager) remove(o *Order) {
	delete(m.orders, o.ID)
	if o.Hedge {
		return
	}
	leg, ok := m.legs[o.LegID]
	if !ok {
		return
	}
	leg.open--
	if leg.open <= 0 {
		delete(m.legs, leg.ID)
	}
}
