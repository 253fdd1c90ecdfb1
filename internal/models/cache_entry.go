package models

import (
	"time"
)

// CacheEntry is a single key/value row in the durable store. Both the document
// cache block and the rate limiter counters live in this table.
type CacheEntry struct {
	Key       string    `gorm:"primaryKey;size:256"`
	Value     []byte    `gorm:"type:blob"`
	ExpiresAt time.Time `gorm:"index"`
	CreatedAt time.Time
	UpdatedAt time.Time
}
