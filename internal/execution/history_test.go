package execution

import (
	"testing"

	"github.com/danmuck/expertmesh/internal/testutil/testlog"
)

func TestHistoryBoundedEvictsOldest(t *testing.T) {
	testlog.Start(t)
	h := NewHistory(2)
	h.Record(QueryResult{QueryID: "q1"})
	h.Record(QueryResult{QueryID: "q2"})
	h.Record(QueryResult{QueryID: "q3"})

	if h.Len() != 2 {
		t.Fatalf("unexpected length %d", h.Len())
	}
	if _, ok := h.Get("q1"); ok {
		t.Fatalf("oldest entry not evicted")
	}
	list := h.List()
	if list[0].QueryID != "q2" || list[1].QueryID != "q3" {
		t.Fatalf("unexpected order: %+v", list)
	}
}

func TestHistoryOverwriteKeepsPosition(t *testing.T) {
	testlog.Start(t)
	h := NewHistory(0)
	h.Record(QueryResult{QueryID: "q1", TotalCost: 1})
	h.Record(QueryResult{QueryID: "q2"})
	h.Record(QueryResult{QueryID: "q1", TotalCost: 2})

	list := h.List()
	if len(list) != 2 || list[0].QueryID != "q1" || list[0].TotalCost != 2 {
		t.Fatalf("unexpected history: %+v", list)
	}
}
