package app

import (
	"sort"
	"time"
)

// DefaultHeartbeatTimeout is how long a task survives without a heartbeat. IDE plugins
// beat every 10s, so one missed beat is tolerated.
const DefaultHeartbeatTimeout = 15 * time.Second

// sweep evicts every task whose last heartbeat is at least timeout old and returns the
// evicted ids in ascending order. A task that never heartbeated does not expire.
func (b *Board) sweep(now int64, timeout time.Duration) []string {
	limit := timeout.Milliseconds()
	var evicted []string
	for id, t := range b.Tasks {
		if t.LastHeartbeat > 0 && now-t.LastHeartbeat >= limit {
			evicted = append(evicted, id)
		}
	}
	for _, id := range evicted {
		b.remove(id)
	}
	sort.Strings(evicted)
	return evicted
}
