package model

import "time"

// AlertType is the display severity of an alert.
type AlertType string

const (
	AlertInfo    AlertType = "info"
	AlertWarning AlertType = "warning"
	AlertSuccess AlertType = "success"
)

// Alert is a human-readable market alert pushed to clients.
// Each client keeps only its last few alerts (bounded ring).
type Alert struct {
	ID      string    `json:"id"`
	Message string    `json:"message"`
	Type    AlertType `json:"type"`
	TS      time.Time `json:"timestamp"`
}
