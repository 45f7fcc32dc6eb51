package server

import (
	"sort"
	"time"

	"github.com/tgruben-circuit/agentfleet/fleet"
	"github.com/tgruben-circuit/agentfleet/lock"
)

// freshHeartbeatWindow is the age below which a lock's heartbeat is
// considered "fresh", per spec.md §4.6.
const freshHeartbeatWindow = 10 * time.Minute

// AgentCard is the dashboard's unified view of one agent: fleet-table
// status merged with the live lock (if any) held by that agent.
type AgentCard struct {
	AgentID      string
	Role         string
	Model        string
	ContainerID  string
	Status       string
	RestartCount int
	Uptime       string
	TaskID       string
	HeartbeatAge string
	Fresh        bool
	OrphanedLock bool
}

// buildAgentCards merges the fleet table with live locks per spec.md
// §4.6's assembly rule: every fleet entry becomes a card; every lock whose
// agent id matches a card attaches task/heartbeat info; a lock with no
// matching card becomes an orphaned "no container" card. Sorted by agent id.
func buildAgentCards(table map[string]fleet.Entry, locks []lock.Record) []AgentCard {
	cards := make(map[string]*AgentCard, len(table))
	for id, e := range table {
		cards[id] = &AgentCard{
			AgentID:      id,
			Role:         e.Role,
			Model:        e.Model,
			ContainerID:  e.ContainerID,
			Status:       string(e.Status),
			RestartCount: e.RestartCount,
			Uptime:       uptime(e.StartedAt),
		}
	}

	for _, lk := range locks {
		c, ok := cards[lk.AgentID]
		if !ok {
			c = &AgentCard{
				AgentID:      lk.AgentID,
				Status:       string(fleet.StatusNoContainer),
				OrphanedLock: true,
			}
			cards[lk.AgentID] = c
		}
		c.TaskID = lk.TaskID
		c.HeartbeatAge = timeago(lk.LastHeartbeat)
		c.Fresh = time.Since(lk.LastHeartbeat) < freshHeartbeatWindow
	}

	out := make([]AgentCard, 0, len(cards))
	for _, c := range cards {
		out = append(out, *c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].AgentID < out[j].AgentID })
	return out
}

func uptime(startedAt time.Time) string {
	if startedAt.IsZero() {
		return "—"
	}
	return timeago(startedAt)
}
