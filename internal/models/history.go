package models

import (
	"time"

	"github.com/uptrace/bun"
)

// History actions recorded for booking-related events.
const (
	ActionBook   = "BOOK"
	ActionCancel = "CANCEL"
)

// HistoryEntry is a best-effort audit row. Writes to user_history are
// never allowed to fail a booking or cancellation.
type HistoryEntry struct {
	bun.BaseModel `bun:"table:user_history"`

	ID        int64     `bun:"id,pk,autoincrement" json:"id"`
	UserID    *int64    `bun:"user_id" json:"user_id,omitempty"`
	PNR       string    `bun:"pnr" json:"pnr,omitempty"`
	Action    string    `bun:"action,notnull" json:"action"`
	Details   string    `bun:"details" json:"details"`
	CreatedAt time.Time `bun:"created_at,notnull,default:current_timestamp" json:"created_at"`
}
