package models

import (
	"time"

	"github.com/alovak/paysim/internal/patch"
)

// Card never carries the full PAN; only fields derived from it at registration.
type Card struct {
	ID          string    `json:"id"`
	CustomerID  string    `json:"customer_id"`
	PANMasked   string    `json:"pan_masked"`
	Last4       string    `json:"last4"`
	BIN         string    `json:"bin"`
	Network     string    `json:"network"`
	Description *string   `json:"description"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

type CreateCard struct {
	CustomerID  string  `json:"customer_id" validate:"required"`
	PAN         string  `json:"pan" validate:"required,max=32"`
	Description *string `json:"description" validate:"omitempty,max=255"`
}

type CardPatch struct {
	Description patch.Field[string] `json:"description"`
}
