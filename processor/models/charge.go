package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type ChargeState string

const (
	ChargeStatePending  ChargeState = "PENDING"
	ChargeStateApproved ChargeState = "APPROVED"
	ChargeStateRejected ChargeState = "REJECTED"
	ChargeStateRefunded ChargeState = "REFUNDED"
)

func (s ChargeState) Valid() bool {
	switch s {
	case ChargeStatePending, ChargeStateApproved, ChargeStateRejected, ChargeStateRefunded:
		return true
	}
	return false
}

type Charge struct {
	ID              string          `json:"id"`
	CustomerID      string          `json:"customer_id"`
	CardID          string          `json:"card_id"`
	Amount          decimal.Decimal `json:"amount"`
	Currency        string          `json:"currency"`
	Description     string          `json:"description"`
	State           ChargeState     `json:"state"`
	StatusMessage   string          `json:"status_message"`
	RejectionReason *string         `json:"rejection_reason"`
	Refunded        bool            `json:"refunded"`
	AttemptedAt     time.Time       `json:"attempted_at"`
	DueAt           *time.Time      `json:"due_at"`
	ApprovedAt      *time.Time      `json:"approved_at"`
	RejectedAt      *time.Time      `json:"rejected_at"`
	RefundedAt      *time.Time      `json:"refunded_at"`
	Metadata        map[string]any  `json:"metadata"`
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`
}

type CreateCharge struct {
	CustomerID  string          `json:"customer_id" validate:"required"`
	CardID      string          `json:"card_id" validate:"required"`
	Amount      decimal.Decimal `json:"amount"`
	Currency    string          `json:"currency" validate:"omitempty,len=3,alpha"`
	Description string          `json:"description" validate:"required,max=500"`
	Metadata    map[string]any  `json:"metadata"`
}

type RefundCharge struct {
	Reason string `json:"reason" validate:"max=255"`
}

// ChargeTransition carries the message recorded by a manual approve or reject.
type ChargeTransition struct {
	Message string `json:"message" validate:"max=255"`
}

type ExpiredCharges struct {
	Expired int `json:"expired"`
}
