package server

import (
	"testing"
	"time"

	"github.com/tgruben-circuit/agentfleet/fleet"
	"github.com/tgruben-circuit/agentfleet/lock"
)

func TestBuildAgentCardsMergesFleetAndLocks(t *testing.T) {
	table := map[string]fleet.Entry{
		"impl-0": {AgentID: "impl-0", Role: "impl", Status: fleet.StatusHealthy, ContainerID: "c1"},
		"impl-1": {AgentID: "impl-1", Role: "impl", Status: fleet.StatusHealthy, ContainerID: "c2"},
	}
	locks := []lock.Record{
		{AgentID: "impl-0", TaskID: "t1", LastHeartbeat: time.Now()},
	}

	cards := buildAgentCards(table, locks)
	if len(cards) != 2 {
		t.Fatalf("len(cards) = %d, want 2", len(cards))
	}
	if cards[0].AgentID != "impl-0" || cards[1].AgentID != "impl-1" {
		t.Fatalf("cards not sorted by agent id: %+v", cards)
	}
	if cards[0].TaskID != "t1" || !cards[0].Fresh {
		t.Fatalf("impl-0 card missing fresh task annotation: %+v", cards[0])
	}
	if cards[1].TaskID != "" {
		t.Fatalf("impl-1 should have no task id: %+v", cards[1])
	}
}

func TestBuildAgentCardsOrphanedLock(t *testing.T) {
	locks := []lock.Record{
		{AgentID: "ghost-0", TaskID: "t9", LastHeartbeat: time.Now()},
	}
	cards := buildAgentCards(map[string]fleet.Entry{}, locks)
	if len(cards) != 1 {
		t.Fatalf("len(cards) = %d, want 1", len(cards))
	}
	if !cards[0].OrphanedLock {
		t.Fatalf("expected orphaned_lock=true, got %+v", cards[0])
	}
	if cards[0].Status != string(fleet.StatusNoContainer) {
		t.Fatalf("expected status no-container, got %q", cards[0].Status)
	}
}

func TestBuildAgentCardsStaleHeartbeatNotFresh(t *testing.T) {
	locks := []lock.Record{
		{AgentID: "impl-0", TaskID: "t1", LastHeartbeat: time.Now().Add(-20 * time.Minute)},
	}
	table := map[string]fleet.Entry{
		"impl-0": {AgentID: "impl-0", Status: fleet.StatusHealthy},
	}
	cards := buildAgentCards(table, locks)
	if cards[0].Fresh {
		t.Fatalf("expected fresh=false for a 20-minute-old heartbeat")
	}
}

func TestTimeagoBuckets(t *testing.T) {
	now := time.Now()
	cases := []struct {
		age  time.Duration
		want string
	}{
		{5 * time.Second, "s ago"},
		{5 * time.Minute, "m ago"},
		{5 * time.Hour, "h ago"},
		{5 * 24 * time.Hour, "d ago"},
	}
	for _, c := range cases {
		got := timeago(now.Add(-c.age))
		if len(got) < len(c.want) || got[len(got)-len(c.want):] != c.want {
			t.Errorf("timeago(-%v) = %q, want suffix %q", c.age, got, c.want)
		}
	}
	if timeago(time.Time{}) != "—" {
		t.Errorf("timeago(zero) = %q, want em dash", timeago(time.Time{}))
	}
}
