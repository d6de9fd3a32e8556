package sim

import (
	"slices"
	"sync"
	"time"

	"github.com/projecteru2/rwlock/types"
)

// collector gathers admission records from all workers. This is
// simulator bookkeeping, not part of the lock protocol; its mutex is
// only ever taken while a worker already holds the lock under test, so
// it cannot invert the lock order.
type collector struct {
	mu    sync.Mutex
	seq   int
	trace []types.Admission
}

func (c *collector) record(worker string, kind types.Kind, waited, held time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.seq++
	c.trace = append(c.trace, types.Admission{
		Seq:    c.seq,
		Worker: worker,
		Kind:   kind,
		Waited: waited,
		Held:   held,
	})
}

func (c *collector) snapshot() (map[types.Kind]*types.KindStats, []types.Admission) {
	c.mu.Lock()
	defer c.mu.Unlock()
	stats := map[types.Kind]*types.KindStats{
		types.KindReader: {},
		types.KindWriter: {},
	}
	for _, a := range c.trace {
		s := stats[a.Kind]
		s.Admissions++
		s.TotalWait += a.Waited
		if a.Waited > s.MaxWait {
			s.MaxWait = a.Waited
		}
	}
	return stats, slices.Clone(c.trace)
}
