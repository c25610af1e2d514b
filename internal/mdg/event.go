package mdg

import (
	"arb/internal/bus"
	"arb/internal/codec"
	"arb/internal/schema"
)

// Event wraps a book update as a market data bus event.
func Event(u schema.BookUpdate, tsEvent int64) bus.Event {
	return bus.Event{
		Header:  schema.NewHeader(schema.EventBookUpdate, schema.SourceMarketData, u.Seq, tsEvent, tsEvent),
		Payload: codec.EncodeBookUpdate(nil, u),
	}
}
