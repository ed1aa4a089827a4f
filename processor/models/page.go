package models

// Page selects a window of a listing. A zero Limit means the configured default.
type Page struct {
	Skip  int `json:"skip"`
	Limit int `json:"limit"`
}

// Normalize clamps the page to [1, max] with def applied to a missing limit.
func (p Page) Normalize(def, max int) Page {
	if p.Skip < 0 {
		p.Skip = 0
	}
	if p.Limit <= 0 {
		p.Limit = def
	}
	if p.Limit > max {
		p.Limit = max
	}
	return p
}

