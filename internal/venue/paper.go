// Package venue is a paper-trading venue: it matches orders against the
// last seen books and reports fills back onto the event bus.
package venue

import (
	"context"
	"sync"
	"time"

	"github.com/yanun0323/errors"
	"github.com/yanun0323/logs"

	"arb/internal/book"
	"arb/internal/bus"
	"arb/internal/chaos"
	"arb/internal/codec"
	"arb/internal/schema"
	"arb/pkg/exception"
)

var ErrBadCommand = errors.New("venue: bad command")

// Config holds paper venue settings.
type Config struct {
	// FeeBps is charged on filled notional, in basis points.
	FeeBps int64        `json:"feeBps" yaml:"feeBps"`
	Chaos  chaos.Config `json:"chaos" yaml:"chaos"`
}

// Validate checks the venue settings.
func (c Config) Validate() error {
	if c.FeeBps < 0 {
		return errors.Wrap(exception.ErrInvalidConfig, "venue: feeBps must be >= 0")
	}
	return c.Chaos.Validate()
}

type resting struct {
	cmd    schema.OrderCommand
	filled schema.Quantity
	fees   schema.Fee
}

// Paper implements og.Venue. Commands never block: reports are staged in
// an outbox and delivered to the bus by Run.
type Paper struct {
	cfg   Config
	out   *bus.Queue
	chaos *chaos.Engine
	clock func() int64

	mu      sync.Mutex
	books   [schema.InstrumentCount]book.Snapshot
	resting map[uint64]*resting
	outbox  []bus.Event
	notify  chan struct{}
}

// Option configures a Paper venue.
type Option func(*Paper)

// WithClock replaces the nanosecond clock used to stamp reports.
func WithClock(clock func() int64) Option {
	return func(p *Paper) {
		p.clock = clock
	}
}

// New creates a paper venue that reports onto out.
func New(cfg Config, out *bus.Queue, opts ...Option) (*Paper, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if out == nil {
		return nil, errors.Wrap(exception.ErrInvalidConfig, "venue: nil output queue")
	}
	p := &Paper{
		cfg:     cfg,
		out:     out,
		clock:   func() int64 { return time.Now().UnixNano() },
		resting: make(map[uint64]*resting),
		notify:  make(chan struct{}, 1),
	}
	if cfg.Chaos.Enabled() {
		engine, err := chaos.NewEngine(cfg.Chaos)
		if err != nil {
			return nil, err
		}
		p.chaos = engine
	}
	for _, opt := range opts {
		opt(p)
	}
	return p, nil
}

// OnBook replaces the venue's view of one instrument and matches resting orders.
func (p *Paper) OnBook(u schema.BookUpdate) {
	if !u.Instrument.IsAvailable() {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.books[u.Instrument] = book.FromUpdate(u)

	for id, r := range p.resting {
		if r.cmd.Instrument != u.Instrument {
			continue
		}
		var b reportBuilder
		p.matchResting(&b, r)
		if r.filled == r.cmd.Qty {
			delete(p.resting, id)
		}
		p.stage(b.events)
	}
}

// InsertOrder takes liquidity up to the limit price; GTC residue rests.
func (p *Paper) InsertOrder(cmd schema.OrderCommand) error {
	if !cmd.Instrument.IsAvailable() || cmd.Side.Sign() == 0 || cmd.Qty <= 0 || cmd.Price <= 0 {
		return errors.Wrap(ErrBadCommand, "insert").With("order", cmd.OrderID)
	}
	p.mu.Lock()
	defer p.mu.Unlock()

	var b reportBuilder
	if p.chaos.Reject() {
		b.add(p.now(), schema.EventOrderError, codec.EncodeOrderError(nil, schema.OrderError{
			OrderID: cmd.OrderID,
			Message: "rejected by venue",
		}))
		p.stage(b.events)
		return nil
	}

	r := &resting{cmd: cmd}
	p.take(&b, r)
	if cmd.Lifespan == schema.LifespanGoodTillCancelled && r.filled < cmd.Qty {
		p.resting[cmd.OrderID] = r
		b.status(p.now(), cmd.OrderID, r.filled, cmd.Qty-r.filled, r.fees)
	} else {
		b.status(p.now(), cmd.OrderID, r.filled, 0, r.fees)
	}
	p.stage(b.events)
	return nil
}

// CancelOrder closes a resting order. Orders already done are ignored.
func (p *Paper) CancelOrder(orderID uint64) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	r, ok := p.resting[orderID]
	if !ok {
		return nil
	}
	delete(p.resting, orderID)
	var b reportBuilder
	b.status(p.now(), orderID, r.filled, 0, r.fees)
	p.stage(b.events)
	return nil
}

// SendHedgeOrder fills at the requested price without touching the book.
func (p *Paper) SendHedgeOrder(cmd schema.OrderCommand) error {
	if !cmd.Instrument.IsAvailable() || cmd.Side.Sign() == 0 || cmd.Qty <= 0 {
		return errors.Wrap(ErrBadCommand, "hedge").With("order", cmd.OrderID)
	}
	p.mu.Lock()
	defer p.mu.Unlock()

	qty := p.chaos.FillQty(cmd.Qty)
	fees := p.fee(cmd.Price, qty)
	var b reportBuilder
	if qty > 0 {
		b.add(p.now(), schema.EventHedgeFilled, codec.EncodeFill(nil, schema.Fill{
			OrderID: cmd.OrderID,
			Price:   cmd.Price,
			Qty:     qty,
		}))
	}
	b.status(p.now(), cmd.OrderID, qty, 0, fees)
	p.stage(b.events)
	return nil
}

// Resting returns the number of open GTC orders.
func (p *Paper) Resting() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.resting)
}

// Pending returns the number of staged reports not yet on the bus.
func (p *Paper) Pending() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.outbox)
}

// Flush moves staged reports to the bus without blocking and returns how
// many were delivered. Reports that do not fit stay staged.
func (p *Paper) Flush() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	n := 0
	for n < len(p.outbox) {
		if err := p.out.TryPublish(p.outbox[n]); err != nil {
			break
		}
		n++
	}
	p.outbox = p.outbox[n:]
	return n
}

// Run delivers staged reports until ctx is done. Batches held back by
// the reorder window are released on exit.
func (p *Paper) Run(ctx context.Context) {
	ticker := time.NewTicker(time.Millisecond)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			p.Release()
			if n := p.Flush(); n > 0 {
				logs.Infof("venue: flushed %d reports on shutdown", n)
			}
			return
		case <-p.notify:
		case <-ticker.C:
		}
		for {
			event, ok := p.pop()
			if !ok {
				break
			}
			if err := p.out.Publish(ctx, event); err != nil {
				if !errors.Is(err, context.Canceled) {
					logs.Errorf("venue: publish %s, err: %+v", event.Header.Type, err)
				}
				break
			}
		}
	}
}

// Release stages every batch held back by the reorder window.
func (p *Paper) Release() {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, batch := range p.chaos.Flush() {
		p.outbox = append(p.outbox, batch...)
	}
}

func (p *Paper) pop() (bus.Event, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.outbox) == 0 {
		return bus.Event{}, false
	}
	event := p.outbox[0]
	p.outbox = p.outbox[1:]
	return event, true
}

// take matches against the ladder and reports one fill at the limit
// price, so the order manager never sees a partial fill mid-match.
func (p *Paper) take(b *reportBuilder, r *resting) {
	snap := p.books[r.cmd.Instrument]
	want := r.cmd.Qty - r.filled
	var qty schema.Quantity
	for _, level := range snap.Ladder(r.cmd.Side) {
		if qty == want || !level.Tradable() || !crosses(r.cmd.Side, r.cmd.Price, level.Price) {
			break
		}
		qty += min(want-qty, level.Volume)
	}
	qty = p.chaos.FillQty(qty)
	if qty == 0 {
		return
	}
	b.add(p.now(), schema.EventOrderFilled, codec.EncodeFill(nil, schema.Fill{
		OrderID: r.cmd.OrderID,
		Price:   r.cmd.Price,
		Qty:     qty,
	}))
	r.filled += qty
	r.fees += p.fee(r.cmd.Price, qty)
}

func (p *Paper) matchResting(b *reportBuilder, r *resting) {
	before := r.filled
	p.take(b, r)
	if r.filled == before {
		return
	}
	b.status(p.now(), r.cmd.OrderID, r.filled, r.cmd.Qty-r.filled, r.fees)
}

func (p *Paper) stage(events []bus.Event) {
	if len(events) == 0 {
		return
	}
	for _, batch := range p.chaos.Process(events) {
		p.outbox = append(p.outbox, batch...)
	}
	select {
	case p.notify <- struct{}{}:
	default:
	}
}

func (p *Paper) fee(price schema.Price, qty schema.Quantity) schema.Fee {
	return schema.Fee(int64(price) * int64(qty) * p.cfg.FeeBps / 10_000)
}

func (p *Paper) now() int64 {
	return p.clock()
}

func crosses(side schema.Side, limit, level schema.Price) bool {
	if side == schema.SideBuy {
		return level <= limit
	}
	return level >= limit
}

type reportBuilder struct {
	events []bus.Event
}

func (b *reportBuilder) add(ts int64, eventType schema.EventType, payload []byte) {
	b.events = append(b.events, bus.Event{
		Header:  schema.NewHeader(eventType, schema.SourceVenue, 0, ts, ts),
		Payload: payload,
	})
}

func (b *reportBuilder) status(ts int64, orderID uint64, filled, remaining schema.Quantity, fees schema.Fee) {
	b.add(ts, schema.EventOrderStatus, codec.EncodeOrderStatus(nil, schema.OrderStatus{
		OrderID:      orderID,
		FillQty:      filled,
		RemainingQty: remaining,
		Fees:         fees,
	}))
}
