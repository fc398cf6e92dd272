// Package identity produces opaque identifiers for players and stored rows.
package identity

import (
	"math/rand"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"
)

// NewPlayerID returns a random hyphenated GUID in braces, upper-cased,
// e.g. {0F8FAD5B-D9CB-469F-A165-70867728950E}.
func NewPlayerID() string {
	return "{" + strings.ToUpper(uuid.New().String()) + "}"
}

// NewSessionID returns a random session identifier.
func NewSessionID() string {
	return uuid.NewString()
}

// ULIDs hands out lexicographically sortable ids. Safe for concurrent use.
type ULIDs struct {
	mu      sync.Mutex
	entropy *rand.Rand
	now     func() time.Time
}

func NewULIDs() *ULIDs {
	return &ULIDs{
		entropy: rand.New(rand.NewSource(time.Now().UnixNano())),
		now:     time.Now,
	}
}

// New returns the next id.
func (g *ULIDs) New() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	return ulid.MustNew(ulid.Timestamp(g.now()), g.entropy).String()
}
