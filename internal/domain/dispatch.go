package domain

import "time"

// DispatchSummary aggregates one email fan-out pass.
type DispatchSummary struct {
	NotificationID  string    `json:"notification_id"`
	TotalAttempted  int       `json:"total_attempted"`
	Successful      int       `json:"successful"`
	Failed          int       `json:"failed"`
	FailedAddresses []string  `json:"failed_addresses"`
	TransportError  string    `json:"transport_error,omitempty"`
	DispatchedAt    time.Time `json:"dispatched_at"`
}

// Complete reports whether every attempted delivery succeeded.
func (s DispatchSummary) Complete() bool {
	return s.Failed == 0 && s.TransportError == ""
}
