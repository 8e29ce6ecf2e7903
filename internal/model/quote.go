// internal/model/quote.go
package model

import "time"

// Quote is a single latest-price record from the OilPrice API. On fetch
// failure the adapter returns a well-formed zero-valued Quote stamped with
// the request time instead of an absent result; latest-price cards render
// a record, never a hole.
type Quote struct {
	Price     float64   `json:"price"`
	Formatted string    `json:"formatted"`
	Currency  string    `json:"currency"`
	Code      string    `json:"code"`
	CreatedAt time.Time `json:"created_at"`
}

// Zero reports whether the quote is the synthetic failure record.
func (q Quote) Zero() bool { return q.Price == 0 }
