package turn

import (
	"errors"
	"strings"

	"github.com/nextlevelbuilder/agentrt/internal/providers"
)

// isContextLengthExceeded reports whether err is the provider telling
// us the request plus history no longer fits the model's context
// window. Providers signal this as a 400 with a recognizable phrase in
// the body rather than a distinct status code, so this is a substring
// match over the handful of real-world wordings rather than a type
// switch.
func isContextLengthExceeded(err error) bool {
	var httpErr *providers.HTTPError
	if !errors.As(err, &httpErr) {
		return false
	}
	if httpErr.Status != 400 && httpErr.Status != 413 {
		return false
	}
	body := strings.ToLower(httpErr.Body)
	switch {
	case strings.Contains(body, "context_length_exceeded"),
		strings.Contains(body, "context length"),
		strings.Contains(body, "maximum context"),
		strings.Contains(body, "too many tokens"),
		strings.Contains(body, "prompt is too long"):
		return true
	}
	return false
}
