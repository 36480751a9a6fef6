package model

import (
	"time"

	"github.com/google/uuid"
)

// Citation points at the place in a source document a statement came from.
// Page numbers are 1-based.
type Citation struct {
	Filename string  `json:"filename,omitempty"`
	Page     int     `json:"page"`
	Type     string  `json:"type,omitempty"`
	Score    float64 `json:"score,omitempty"`
}

// Message is one transcript entry. A user message is immutable once
// appended; an assistant message accumulates content while it is the
// active streaming target and receives its sources on completion.
type Message struct {
	Id        uuid.UUID  `json:"id"`
	Role      string     `json:"role"`
	Content   string     `json:"content"`
	Sources   []Citation `json:"sources,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
}
