package models

import (
	"time"

	"github.com/alovak/paysim/internal/patch"
)

type Customer struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	Phone     string    `json:"phone"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type CreateCustomer struct {
	Name  string `json:"name" validate:"required,max=120"`
	Email string `json:"email" validate:"required,email,max=254"`
	Phone string `json:"phone" validate:"required,min=7,max=20"`
}

// CustomerPatch updates only the keys present in the payload. None of the
// fields may be null.
type CustomerPatch struct {
	Name  patch.Field[string] `json:"name"`
	Email patch.Field[string] `json:"email"`
	Phone patch.Field[string] `json:"phone"`
}
