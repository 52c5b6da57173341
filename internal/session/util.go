package session

import (
	"strings"
	"time"
)

func now() time.Time { return time.Now().UTC() }

func sanitizeID(id string) string {
	return strings.ReplaceAll(strings.ReplaceAll(id, "/", "_"), ":", "_")
}
