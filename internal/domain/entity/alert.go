package entity

import "time"

// PriceAlert watches a symbol's USD price against user thresholds.
// Zero thresholds are disabled.
type PriceAlert struct {
	ID                string    `json:"id"`
	Symbol            string    `json:"symbol"`
	HighThreshold     float64   `json:"highThreshold"`
	LowThreshold      float64   `json:"lowThreshold"`
	CostBasis         float64   `json:"costBasis"`
	PriceTarget       float64   `json:"priceTarget"`
	EmailNotification bool      `json:"emailNotification"`
	IsActive          bool      `json:"isActive"`
	CreatedAt         time.Time `json:"createdAt"`
}

// AlertUpdate carries the optional fields of a partial alert update.
type AlertUpdate struct {
	HighThreshold     *float64 `json:"highThreshold,omitempty"`
	LowThreshold      *float64 `json:"lowThreshold,omitempty"`
	CostBasis         *float64 `json:"costBasis,omitempty"`
	PriceTarget       *float64 `json:"priceTarget,omitempty"`
	EmailNotification *bool    `json:"emailNotification,omitempty"`
	IsActive          *bool    `json:"isActive,omitempty"`
}

type AlertTriggerKind string

const (
	TriggerHigh   AlertTriggerKind = "high"
	TriggerLow    AlertTriggerKind = "low"
	TriggerTarget AlertTriggerKind = "target"
)

// AlertTrigger is an active alert whose condition holds for the latest snapshot.
type AlertTrigger struct {
	AlertID string           `json:"alertId"`
	Symbol  string           `json:"symbol"`
	Price   float64          `json:"price"`
	Kind    AlertTriggerKind `json:"kind"`
}
