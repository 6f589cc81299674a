package domain

import (
	"time"

	"github.com/google/uuid"
)

// Phase is the step of the form state machine a session is in
type Phase string

const (
	PhaseIdle       Phase = "idle"
	PhaseSubmitting Phase = "submitting"
	PhaseSuccess    Phase = "success"
	PhaseFailure    Phase = "failure"
)

// Severity is the visual weight of an alert
type Severity string

const (
	SeveritySuccess Severity = "success"
	SeverityError   Severity = "error"
	SeverityInfo    Severity = "info"
)

// Result is the downloadable file produced by a successful submission
type Result struct {
	DownloadURL string `json:"download_url"`
	Title       string `json:"title"`
}

// Alert is a transient notification shown above the form
type Alert struct {
	ID        string    `json:"id"`
	Severity  Severity  `json:"severity"`
	Message   string    `json:"message"`
	ExpiresAt time.Time `json:"expires_at"`
}

// NewAlert creates an alert with a fresh ID that expires after ttl
func NewAlert(severity Severity, message string, ttl time.Duration) *Alert {
	return &Alert{
		ID:        uuid.NewString(),
		Severity:  severity,
		Message:   message,
		ExpiresAt: time.Now().Add(ttl),
	}
}

// State is a point-in-time copy of a form session.
// Result is set only in PhaseSuccess and Error only in PhaseFailure.
type State struct {
	Version   uint64  `json:"version"` // increases with every transition
	URL       string  `json:"url"`
	Phase     Phase   `json:"phase"`
	Result    *Result `json:"result,omitempty"`
	Error     string  `json:"error,omitempty"`
	Alert     *Alert  `json:"alert,omitempty"`
	Valid     bool    `json:"valid"`
	CanSubmit bool    `json:"can_submit"`
	Loading   bool    `json:"loading"`
}

// IsLoading reports whether a submission is in flight
func (s State) IsLoading() bool {
	return s.Phase == PhaseSubmitting
}
