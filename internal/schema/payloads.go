package schema

// Price is a scaled integer in venue ticks. Zero means "no quote".
type Price int64

// Quantity is a signed lot count.
type Quantity int64

// Fee is a scaled integer reported by the venue.
type Fee int64

// Instrument identifies one of the two traded instruments.
type Instrument uint16

const (
	InstrumentFuture Instrument = iota
	InstrumentETF

	InstrumentCount = 2
)

// IsAvailable reports whether the instrument is one of the known pair.
func (i Instrument) IsAvailable() bool {
	return i < InstrumentCount
}

// Other returns the paired instrument.
func (i Instrument) Other() Instrument {
	if i == InstrumentFuture {
		return InstrumentETF
	}
	return InstrumentFuture
}

func (i Instrument) String() string {
	switch i {
	case InstrumentFuture:
		return "FUTURE"
	case InstrumentETF:
		return "ETF"
	default:
		return "UNKNOWN"
	}
}

// Side describes order direction.
type Side uint16

const (
	SideUnknown Side = iota
	SideBuy
	SideSell
)

// Opposite returns the other side.
func (s Side) Opposite() Side {
	switch s {
	case SideBuy:
		return SideSell
	case SideSell:
		return SideBuy
	default:
		return SideUnknown
	}
}

// Sign is +1 for buys, -1 for sells.
func (s Side) Sign() Quantity {
	switch s {
	case SideBuy:
		return 1
	case SideSell:
		return -1
	default:
		return 0
	}
}

func (s Side) String() string {
	switch s {
	case SideBuy:
		return "BUY"
	case SideSell:
		return "SELL"
	default:
		return "UNKNOWN"
	}
}

// Lifespan describes how long an inserted order may rest on the venue.
type Lifespan uint16

const (
	LifespanUnknown Lifespan = iota
	LifespanGoodTillCancelled
	LifespanImmediateOrCancel
)

// Level is one rung of a price ladder.
type Level struct {
	Price  Price
	Volume Quantity
}

// Tradable reports whether the level carries a real quote with volume.
func (l Level) Tradable() bool {
	return l.Price > 0 && l.Volume > 0
}

// BookUpdate is the payload for EventBookUpdate. Ladders are ordered best to worst.
type BookUpdate struct {
	Instrument Instrument
	Seq        uint64
	Asks       []Level
	Bids       []Level
}

// CommandKind tells the venue what to do with an OrderCommand.
type CommandKind uint16

const (
	CommandUnknown CommandKind = iota
	CommandInsert
	CommandCancel
	CommandHedge
)

// OrderCommand is the payload for EventOrderInsert, EventOrderCancel and EventHedgeOrder.
type OrderCommand struct {
	OrderID    uint64
	Kind       CommandKind
	Instrument Instrument
	Side       Side
	Lifespan   Lifespan
	Price      Price
	Qty        Quantity
}

// Fill is the payload for EventOrderFilled and EventHedgeFilled.
type Fill struct {
	OrderID uint64
	Price   Price
	Qty     Quantity
}

// OrderStatus is the payload for EventOrderStatus.
type OrderStatus struct {
	OrderID      uint64
	FillQty      Quantity
	RemainingQty Quantity
	Fees         Fee
}

// OrderError is the payload for EventOrderError.
type OrderError struct {
	OrderID uint64
	Message string
}

// CycleDecision is the payload for EventCycleDecision.
type CycleDecision struct {
	Seq       uint64
	Outcome   uint16
	Orders    uint16
	FairETF   float64
	FairFut   float64
	Spread    float64
	SpreadNrm float64
}
