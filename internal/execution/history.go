package execution

import "sync"

// History keeps query results keyed by query id in arrival order.
// A positive limit evicts the oldest entries.
type History struct {
	mu    sync.RWMutex
	limit int
	order []string
	items map[string]QueryResult
}

func NewHistory(limit int) *History {
	if limit < 0 {
		limit = 0
	}
	return &History{limit: limit, items: make(map[string]QueryResult)}
}

func (h *History) Record(r QueryResult) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.items[r.QueryID]; !ok {
		h.order = append(h.order, r.QueryID)
	}
	h.items[r.QueryID] = r
	for h.limit > 0 && len(h.order) > h.limit {
		delete(h.items, h.order[0])
		h.order = h.order[1:]
	}
}

func (h *History) Get(queryID string) (QueryResult, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	r, ok := h.items[queryID]
	return r, ok
}

// List returns results oldest first.
func (h *History) List() []QueryResult {
	h.mu.RLock()
	defer h.mu.RUnlock()
	out := make([]QueryResult, 0, len(h.order))
	for _, id := range h.order {
		out = append(out, h.items[id])
	}
	return out
}

func (h *History) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.order)
}
