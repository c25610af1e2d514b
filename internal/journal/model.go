package journal

import (
	"time"

	"arb/internal/codec"
	"arb/internal/schema"
)

// FillRow is one venue fill as persisted in Postgres. Seq is the WAL
// sequence number, so a row can always be traced back to the log.
type FillRow struct {
	Seq       uint64    `gorm:"column:seq;primaryKey;autoIncrement:false"`
	OrderID   uint64    `gorm:"column:order_id;index"`
	Hedge     bool      `gorm:"column:hedge"`
	Price     int64     `gorm:"column:price"`
	Qty       int64     `gorm:"column:qty"`
	EventTime time.Time `gorm:"column:event_time"`
	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
}

// TableName implements gorm's tabler.
func (FillRow) TableName() string {
	return "fills"
}

// RowFromEvent converts a fill event. ok is false for any other event or
// an undecodable payload.
func RowFromEvent(header schema.EventHeader, payload []byte) (FillRow, bool) {
	if header.Type != schema.EventOrderFilled && header.Type != schema.EventHedgeFilled {
		return FillRow{}, false
	}
	fill, ok := codec.DecodeFill(payload)
	if !ok {
		return FillRow{}, false
	}
	return FillRow{
		Seq:       header.Seq,
		OrderID:   fill.OrderID,
		Hedge:     header.Type == schema.EventHedgeFilled,
		Price:     int64(fill.Price),
		Qty:       int64(fill.Qty),
		EventTime: time.Unix(0, header.TsEvent).UTC(),
	}, true
}
