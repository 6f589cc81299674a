package validator

import (
	"net/url"
	"strings"
)

// platformMarkers are the video platform domains a submitted link must mention
var platformMarkers = []string{
	"youtube.com",
	"youtu.be",
	"vimeo.com",
	"tiktok.com",
	"instagram.com",
	"twitter.com",
	"x.com",
	"facebook.com",
	"fb.watch",
	"dailymotion.com",
	"twitch.tv",
}

// IsValidURL reports whether text looks like a link the backend can handle.
// The marker check runs against the whole text, not just the host, so a
// marker in the path or query also passes.
func IsValidURL(text string) bool {
	text = strings.TrimSpace(text)
	if text == "" {
		return false
	}

	u, err := url.ParseRequestURI(text)
	if err != nil || u.Host == "" {
		return false
	}

	scheme := strings.ToLower(u.Scheme)
	if scheme != "http" && scheme != "https" {
		return false
	}

	lower := strings.ToLower(text)
	for _, m := range platformMarkers {
		if strings.Contains(lower, m) {
			return true
		}
	}

	return false
}

// Markers returns a copy of the supported platform markers
func Markers() []string {
	out := make([]string, len(platformMarkers))
	copy(out, platformMarkers)
	return out
}

// Host returns the lower-cased host of text, or "" when it does not parse.
// Used for logging without recording the full link.
func Host(text string) string {
	u, err := url.Parse(strings.TrimSpace(text))
	if err != nil {
		return ""
	}
	return strings.ToLower(u.Hostname())
}
