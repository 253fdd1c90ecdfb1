package random

import (
	"crypto/rand"
	"fmt"
	"strconv"
	"time"
)

// alphabet is restricted to filesystem-safe alphanumeric characters so the
// generated values can appear in room names, identities and storage keys.
const alphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"

// Alphanumeric returns a random alphanumeric string of the requested length.
func Alphanumeric(length int) (string, error) {
	if length <= 0 {
		return "", nil
	}

	buf := make([]byte, length)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("random: read: %w", err)
	}

	for i, b := range buf {
		buf[i] = alphabet[int(b)%len(alphabet)]
	}
	return string(buf), nil
}

// MustAlphanumeric is Alphanumeric for call sites where entropy exhaustion is
// unrecoverable anyway.
func MustAlphanumeric(length int) string {
	s, err := Alphanumeric(length)
	if err != nil {
		panic(err)
	}
	return s
}

// DocumentID builds an identifier from a monotonic time component and a random
// suffix. Collisions are treated as negligible, not impossible.
func DocumentID(now time.Time) (string, error) {
	suffix, err := Alphanumeric(8)
	if err != nil {
		return "", err
	}
	return strconv.FormatInt(now.UnixMilli(), 36) + "-" + suffix, nil
}
