package domain

import "time"

// ==== Form Constants ====

// AlertTTL is how long an alert stays visible before it is dismissed automatically
const AlertTTL = 4 * time.Second

// FallbackTitle is shown when the backend does not return a title
const FallbackTitle = "Video"

// StatusSuccess is the backend status that marks a finished download
const StatusSuccess = "success"

// MaxURLLength is the longest link text kept in a session
const MaxURLLength = 2048

// ==== Session Constants ====

// SessionTTL is how long an untouched form session is kept in memory
const SessionTTL = 30 * time.Minute

// SessionCookie is the cookie that carries the session id
const SessionCookie = "goat_sid"

// ==== Rate Limit Constants ====

const (
	// DefaultRateLimitAPI is the default rate limit for API endpoints (requests/sec)
	DefaultRateLimitAPI = 10

	// DefaultRateLimitWS is the default rate limit for WebSocket connections (req/sec)
	DefaultRateLimitWS = 5

	// DefaultRateLimitSubmit is the stricter rate limit for download submissions
	DefaultRateLimitSubmit = 1
)

// ==== Messages ====

const (
	MsgInvalidURL = "Please paste a valid video link"
	MsgBusy       = "A download is already in progress"
	MsgReady      = "Your video is ready"
)
