package domain

import "time"

// IntegrityReport is the outcome of a reconciliation run. Violations are
// reported here, never as errors.
type IntegrityReport struct {
	Inventory bool      `json:"inventory"`
	Cashbook  bool      `json:"cashbook"`
	Orders    bool      `json:"orders"`
	Overall   bool      `json:"overall"`
	Issues    []string  `json:"issues,omitempty"`
	CheckedAt time.Time `json:"checked_at"`
}
