package checkout

import (
	"strconv"
	"sync"
	"time"
)

// IDGenerator derives order ids from the creation time and the user id:
// yyyymmddhhmmss, six digits of microseconds, then the user id. Timestamps
// are forced to increase so ids from one process never repeat.
type IDGenerator struct {
	mu   sync.Mutex
	last time.Time
	now  func() time.Time
}

func NewIDGenerator() *IDGenerator {
	return &IDGenerator{now: time.Now}
}

func (g *IDGenerator) Next(userID int64) string {
	g.mu.Lock()
	t := g.now().Truncate(time.Microsecond)
	if !t.After(g.last) {
		t = g.last.Add(time.Microsecond)
	}
	g.last = t
	g.mu.Unlock()

	return t.Format("20060102150405") + t.Format(".000000")[1:] + strconv.FormatInt(userID, 10)
}
