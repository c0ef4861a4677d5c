package alerts

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// Kind names the origin of a notification in its suppression key.
type Kind string

const (
	KindSend     Kind = "send"
	KindSchedule Kind = "schedule"
	KindAlert    Kind = "alert"
)

// SuppressionKey derives a deterministic key from a notification's identity.
// Fields are NUL-separated before hashing so that ("ab", "c") and ("a", "bc")
// never collide.
func SuppressionKey(kind Kind, fields ...string) string {
	sum := sha256.Sum256([]byte(strings.Join(append([]string{string(kind)}, fields...), "\x00")))
	return string(kind) + ":" + hex.EncodeToString(sum[:])
}
