package schema

// SchemaVersion is the current event schema version.
const SchemaVersion uint16 = 1

// EventType defines the category of an event stored in the WAL.
type EventType uint16

const (
	EventUnknown EventType = iota
	EventBookUpdate
	EventOrderInsert
	EventOrderCancel
	EventHedgeOrder
	EventOrderFilled
	EventHedgeFilled
	EventOrderStatus
	EventOrderError
	EventCycleDecision
)

// String returns the event name used by logs and tools.
func (t EventType) String() string {
	switch t {
	case EventBookUpdate:
		return "BookUpdate"
	case EventOrderInsert:
		return "OrderInsert"
	case EventOrderCancel:
		return "OrderCancel"
	case EventHedgeOrder:
		return "HedgeOrder"
	case EventOrderFilled:
		return "OrderFilled"
	case EventHedgeFilled:
		return "HedgeFilled"
	case EventOrderStatus:
		return "OrderStatus"
	case EventOrderError:
		return "OrderError"
	case EventCycleDecision:
		return "CycleDecision"
	default:
		return "Unknown"
	}
}

// EventSource identifies who produced an event.
type EventSource uint16

const (
	SourceUnknown EventSource = iota
	SourceMarketData
	SourceEngine
	SourceVenue
)

// EventHeader is the common metadata attached to every event.
type EventHeader struct {
	Type    EventType
	Version uint16
	Source  EventSource
	Flags   uint16
	Seq     uint64
	TsEvent int64
	TsRecv  int64
	TraceID uint64
}

// NewHeader builds a header with the current schema version.
func NewHeader(eventType EventType, source EventSource, seq uint64, tsEvent, tsRecv int64) EventHeader {
	return EventHeader{
		Type:    eventType,
		Version: SchemaVersion,
		Source:  source,
		Seq:     seq,
		TsEvent: tsEvent,
		TsRecv:  tsRecv,
	}
}
