package models

import "time"

// OrderSequence is the per-UTC-day counter behind order-number assignment.
// The row is incremented atomically so concurrent checkouts never collide.
type OrderSequence struct {
	SeqDate   string    `gorm:"column:seq_date;primaryKey"`
	LastValue int       `gorm:"column:last_value;not null;default:0"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime"`
}
