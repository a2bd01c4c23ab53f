package ledger

import (
	"encoding/hex"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
)

// IDGenerator produces transaction ids.
type IDGenerator interface {
	NewTransactionID() string
}

// TimeRandomIDGenerator builds ids as "TX" + milliseconds + 12 random hex chars.
// The millisecond part never repeats within a generator, so ids from one
// process are distinct even before the random suffix is considered.
type TimeRandomIDGenerator struct {
	mu   sync.Mutex
	last int64
	now  func() time.Time
}

func NewIDGenerator() *TimeRandomIDGenerator {
	return &TimeRandomIDGenerator{now: time.Now}
}

func (g *TimeRandomIDGenerator) NewTransactionID() string {
	g.mu.Lock()
	ms := g.now().UnixMilli()
	if ms <= g.last {
		ms = g.last + 1
	}
	g.last = ms
	g.mu.Unlock()

	u := uuid.New()
	return "TX" + strconv.FormatInt(ms, 10) + hex.EncodeToString(u[:6])
}
