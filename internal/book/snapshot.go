package book

import (
	"slices"
	"strconv"

	"arb/internal/schema"
)

// Snapshot is an immutable order book view for one instrument.
// Ladders are ordered best to worst; a zero price is the "no quote" sentinel.
type Snapshot struct {
	Instrument schema.Instrument
	Seq        uint64
	Asks       []schema.Level
	Bids       []schema.Level
}

// FromUpdate builds a snapshot that owns copies of the update ladders.
func FromUpdate(u schema.BookUpdate) Snapshot {
	return Snapshot{
		Instrument: u.Instrument,
		Seq:        u.Seq,
		Asks:       slices.Clone(u.Asks),
		Bids:       slices.Clone(u.Bids),
	}
}

// Clone returns a deep copy, so callers can never mutate a stored snapshot.
func (s Snapshot) Clone() Snapshot {
	s.Asks = slices.Clone(s.Asks)
	s.Bids = slices.Clone(s.Bids)
	return s
}

// Ladder returns the levels a taker on the given side trades against:
// asks for a buy, bids for a sell.
func (s Snapshot) Ladder(side schema.Side) []schema.Level {
	switch side {
	case schema.SideBuy:
		return s.Asks
	case schema.SideSell:
		return s.Bids
	default:
		return nil
	}
}

// Level returns the ladder level at index for a taker on side.
func (s Snapshot) Level(side schema.Side, index int) (schema.Level, bool) {
	ladder := s.Ladder(side)
	if index < 0 || index >= len(ladder) {
		return schema.Level{}, false
	}
	return ladder[index], true
}

// BestAsk returns the top ask when it is a real quote.
func (s Snapshot) BestAsk() (schema.Level, bool) {
	return best(s.Asks)
}

// BestBid returns the top bid when it is a real quote.
func (s Snapshot) BestBid() (schema.Level, bool) {
	return best(s.Bids)
}

// Quoted reports whether both top-of-book prices are real quotes.
func (s Snapshot) Quoted() bool {
	_, askOK := s.BestAsk()
	_, bidOK := s.BestBid()
	return askOK && bidOK
}

func best(levels []schema.Level) (schema.Level, bool) {
	if len(levels) == 0 || levels[0].Price <= 0 {
		return schema.Level{}, false
	}
	return levels[0], true
}

// Debug returns a human readable format string
func (s Snapshot) Debug() string {
	appendSide := func(buf []byte, levels []schema.Level) []byte {
		buf = append(buf, '[')
		for i, l := range levels {
			if i > 0 {
				buf = append(buf, ',')
			}
			buf = append(buf, '(')
			buf = strconv.AppendInt(buf, int64(l.Price), 10)
			buf = append(buf, ',')
			buf = strconv.AppendInt(buf, int64(l.Volume), 10)
			buf = append(buf, ')')
		}
		return append(buf, ']')
	}

	buf := make([]byte, 0, 256)
	buf = append(buf, "Snapshot{instrument="...)
	buf = append(buf, s.Instrument.String()...)
	buf = append(buf, " seq="...)
	buf = strconv.AppendUint(buf, s.Seq, 10)
	buf = append(buf, " asks="...)
	buf = appendSide(buf, s.Asks)
	buf = append(buf, " bids="...)
	buf = appendSide(buf, s.Bids)
	buf = append(buf, '}')
	return string(buf)
}
