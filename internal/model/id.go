package model

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"regexp"
	"strconv"
	"time"
)

// Decision IDs look like "dec_1771722000_a3f2b7c1": a unix timestamp
// for coarse ordering in the journal, then a random suffix to keep IDs
// unique across restarts within the same second.

var decisionIDRe = regexp.MustCompile(`^dec_([0-9]{10})_[0-9a-f]{8}$`)

// NewDecisionID mints an identifier for a freshly emitted decision.
func NewDecisionID() (string, error) {
	suffix := make([]byte, 4)
	if _, err := rand.Read(suffix); err != nil {
		return "", fmt.Errorf("decision id entropy: %w", err)
	}
	return fmt.Sprintf("dec_%010d_%s", time.Now().Unix(), hex.EncodeToString(suffix)), nil
}

// IsDecisionID reports whether id has the decision ID shape.
func IsDecisionID(id string) bool {
	return decisionIDRe.MatchString(id)
}

// DecisionIDTime recovers the creation second embedded in a decision ID.
func DecisionIDTime(id string) (time.Time, error) {
	m := decisionIDRe.FindStringSubmatch(id)
	if m == nil {
		return time.Time{}, fmt.Errorf("malformed decision id %q", id)
	}
	ts, err := strconv.ParseInt(m[1], 10, 64)
	if err != nil {
		return time.Time{}, fmt.Errorf("decision id %q timestamp: %w", id, err)
	}
	return time.Unix(ts, 0), nil
}
