package domain

import (
	"encoding/json"
	"time"
)

// EventType defines the type of event pushed to the page
type EventType string

const (
	EventTypeState        EventType = "state"         // Full state snapshot
	EventTypeAlertExpired EventType = "alert_expired" // Alert timer fired
	EventTypeDismiss      EventType = "dismiss"       // Inbound: user closed the alert
)

// Event is the envelope for every WebSocket frame
type Event struct {
	Type      EventType       `json:"type"`
	Payload   json.RawMessage `json:"payload,omitempty"`
	CreatedAt time.Time       `json:"created_at"`
}

// DismissPayload is the payload of an inbound dismiss event
type DismissPayload struct {
	ID string `json:"id"`
}

// AlertExpiredPayload names the alert that timed out
type AlertExpiredPayload struct {
	ID string `json:"id"`
}

// NewStateEvent wraps a state snapshot in an event
func NewStateEvent(s State) Event {
	payload, _ := json.Marshal(s)
	return Event{
		Type:      EventTypeState,
		Payload:   payload,
		CreatedAt: time.Now(),
	}
}

// NewAlertExpiredEvent builds the event sent when an alert times out
func NewAlertExpiredEvent(id string) Event {
	payload, _ := json.Marshal(AlertExpiredPayload{ID: id})
	return Event{
		Type:      EventTypeAlertExpired,
		Payload:   payload,
		CreatedAt: time.Now(),
	}
}
