package session

import (
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

// fallbackID builds a local list key for a message the server sent without
// an ID: the arrival time in milliseconds plus a random suffix.
func fallbackID(now time.Time) string {
	suffix := strings.ReplaceAll(uuid.NewString(), "-", "")[:9]
	return strconv.FormatInt(now.UnixMilli(), 10) + "-" + suffix
}
