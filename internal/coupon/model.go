// Package coupon manages the limited-stock offers being sold.
package coupon

import "time"

// Coupon is one flash-sale offer. Stock is the remaining durable stock;
// TotalStock is what each daily reset restores it to.
type Coupon struct {
	ID         int64     `json:"id"`
	Name       string    `json:"name"`
	Stock      int       `json:"stock"`
	TotalStock int       `json:"totalStock"`
	StartTime  time.Time `json:"startTime"`
	EndTime    time.Time `json:"endTime"`
	CreatedAt  time.Time `json:"createdAt"`
	UpdatedAt  time.Time `json:"updatedAt"`
}

// Valid reports whether the coupon's sale window covers now.
func (c Coupon) Valid(now time.Time) bool {
	return !now.Before(c.StartTime) && !now.After(c.EndTime)
}
