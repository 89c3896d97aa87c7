package utils

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

// GenerateConnectionID returns a fresh transport-level connection id
func GenerateConnectionID() string {
	return uuid.NewString()
}

// GenerateRecordID builds a scan record id of the form <unix-millis>-<4 hex>
func GenerateRecordID(t time.Time) string {
	b := make([]byte, 2)
	rand.Read(b)
	return fmt.Sprintf("%d-%s", t.UnixMilli(), hex.EncodeToString(b))
}

// ParseRecordTime recovers the creation time embedded in a record id
func ParseRecordTime(id string) (time.Time, bool) {
	millis, _, found := strings.Cut(id, "-")
	if !found || millis == "" {
		return time.Time{}, false
	}
	ms, err := strconv.ParseInt(millis, 10, 64)
	if err != nil || ms <= 0 {
		return time.Time{}, false
	}
	return time.UnixMilli(ms), true
}

// GenerateRequestID generates a unique request ID
func GenerateRequestID() string {
	timestamp := time.Now().UnixNano()
	b := make([]byte, 4)
	rand.Read(b)
	return fmt.Sprintf("req_%d_%s", timestamp, hex.EncodeToString(b))
}
