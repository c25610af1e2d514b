package core

import (
	"time"

	"github.com/yanun0323/logs"

	"arb/internal/codec"
	"arb/internal/obs"
	"arb/internal/og"
	"arb/internal/schema"
)

// Appender is the WAL sink; recorder.Writer implements it.
type Appender interface {
	Append(header schema.EventHeader, payload []byte) error
}

// Journal stamps events with a sequence number and appends them to the WAL.
// A nil Appender turns it into a sequencer only.
type Journal struct {
	wal     Appender
	seq     *obs.Sequencer
	metrics *obs.Metrics
}

// NewJournal continues numbering after lastSeq.
func NewJournal(wal Appender, lastSeq uint64, metrics *obs.Metrics) *Journal {
	return &Journal{
		wal:     wal,
		seq:     obs.NewSequencer(lastSeq, false),
		metrics: metrics,
	}
}

// Record appends one event and returns its sequence number. Callers must
// serialize; the runner and the engine lock do.
func (j *Journal) Record(eventType schema.EventType, source schema.EventSource, tsEvent int64, payload []byte) uint64 {
	seq := j.seq.Next()
	if j.wal == nil {
		return seq
	}
	header := schema.NewHeader(eventType, source, seq, tsEvent, time.Now().UnixNano())
	if err := j.wal.Append(header, payload); err != nil {
		j.metrics.IncWALDrop()
		logs.Errorf("core: wal append %s seq %d, err: %+v", eventType, seq, err)
	}
	return seq
}

// Last returns the last sequence number handed out.
func (j *Journal) Last() uint64 {
	return j.seq.Last()
}

// RecordingVenue journals every outbound command before forwarding it.
type RecordingVenue struct {
	next    og.Venue
	journal *Journal
	buf     []byte
}

// NewRecordingVenue wraps next.
func NewRecordingVenue(next og.Venue, journal *Journal) *RecordingVenue {
	return &RecordingVenue{next: next, journal: journal}
}

func (v *RecordingVenue) InsertOrder(cmd schema.OrderCommand) error {
	v.record(schema.EventOrderInsert, cmd)
	return v.next.InsertOrder(cmd)
}

func (v *RecordingVenue) CancelOrder(orderID uint64) error {
	v.record(schema.EventOrderCancel, schema.OrderCommand{OrderID: orderID, Kind: schema.CommandCancel})
	return v.next.CancelOrder(orderID)
}

func (v *RecordingVenue) SendHedgeOrder(cmd schema.OrderCommand) error {
	v.record(schema.EventHedgeOrder, cmd)
	return v.next.SendHedgeOrder(cmd)
}

func (v *RecordingVenue) record(eventType schema.EventType, cmd schema.OrderCommand) {
	v.buf = codec.EncodeOrderCommand(v.buf, cmd)
	v.journal.Record(eventType, schema.SourceEngine, time.Now().UnixNano(), v.buf)
}

type tee []Appender

// Tee fans one append out to several sinks and returns the first error.
func Tee(sinks ...Appender) Appender {
	out := make(tee, 0, len(sinks))
	for _, s := range sinks {
		if s != nil {
			out = append(out, s)
		}
	}
	return out
}

func (t tee) Append(header schema.EventHeader, payload []byte) error {
	var first error
	for _, s := range t {
		if err := s.Append(header, payload); err != nil && first == nil {
			first = err
		}
	}
	return first
}
