package models

type GenerateCards struct {
	BIN    string `json:"bin" validate:"required,numeric,min=1,max=18"`
	Count  int    `json:"count" validate:"min=1,max=50"`
	Length int    `json:"length" validate:"min=13,max=19"`
}

type GeneratedCards struct {
	Cards  []string `json:"cards"`
	BIN    string   `json:"bin"`
	Length int      `json:"length"`
}

type TestCardRequest struct {
	BIN    string `json:"bin" validate:"omitempty,numeric,min=6,max=8"`
	Last4  string `json:"last4" validate:"omitempty,len=4,numeric"`
	Length int    `json:"length" validate:"omitempty,min=13,max=19"`
}

// TestCard is a synthetic number for sandbox use; it is never persisted.
type TestCard struct {
	Number  string `json:"number"`
	Last4   string `json:"last4"`
	BIN     string `json:"bin"`
	Network string `json:"network"`
	Valid   bool   `json:"valid"`
}
