// Package identifier implements the opaque id format used for party,
// session and event identities. An id is a version tag, the creation
// timestamp in base-36 millis and a random token, joined by ':', e.g.
//
//	0:lkhnsd2q:aGVsbG8td29ybGQtMTIzNA
//
// The string form is the identity: two ids are equal iff their strings
// are equal, and the string doubles as the partition key.
package identifier

import (
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

const (
	currentVersion = "0"
	separator      = ":"
)

// Identifier is an id that parsed fully. The zero value is "no id";
// use IsZero to test for it.
type Identifier struct {
	// Value is the complete string form, including the version tag.
	Value string
	// Version is the format version tag.
	Version string
	// Timestamp is the creation time encoded in the id, in epoch millis.
	Timestamp int64
}

// New mints an identifier with the given creation time and a fresh
// random token.
func New(ts time.Time) Identifier {
	millis := ts.UnixMilli()
	token := strings.ReplaceAll(uuid.NewString(), "-", "")
	value := currentVersion + separator + strconv.FormatInt(millis, 36) + separator + token
	return Identifier{Value: value, Version: currentVersion, Timestamp: millis}
}

// TryParse parses raw into an Identifier. It is pure and never fails
// partway: either every structural part is valid and ok is true, or the
// zero Identifier is returned with ok false.
func TryParse(raw string) (Identifier, bool) {
	parts := strings.Split(raw, separator)
	if len(parts) != 3 {
		return Identifier{}, false
	}
	version, ts, token := parts[0], parts[1], parts[2]
	if version != currentVersion || token == "" {
		return Identifier{}, false
	}
	millis, err := strconv.ParseInt(ts, 36, 64)
	if err != nil || millis < 0 {
		return Identifier{}, false
	}
	return Identifier{Value: raw, Version: version, Timestamp: millis}, true
}

// IsZero reports whether id is the zero (absent) identifier.
func (id Identifier) IsZero() bool {
	return id.Value == ""
}

// Time returns the creation time encoded in the id.
func (id Identifier) Time() time.Time {
	return time.UnixMilli(id.Timestamp)
}

func (id Identifier) String() string {
	return id.Value
}
