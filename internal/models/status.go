package models

import "time"

// IdentityStatus is the externally visible state of one identity's monitor
type IdentityStatus struct {
	Name          string         `json:"name"`
	Polls         int            `json:"polls"`
	Failures      int            `json:"failures"`
	Reports       int            `json:"reports"`
	LastPollAt    time.Time      `json:"lastPollAt,omitempty"`
	LastSuccessAt time.Time      `json:"lastSuccessAt,omitempty"`
	LastError     string         `json:"lastError,omitempty"`
	LastReport    ReportKind     `json:"lastReport,omitempty"`
	Totals        SnapshotTotals `json:"totals"`
}
