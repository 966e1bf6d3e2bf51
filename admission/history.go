package admission

import "time"

type (
	historyEntry struct {
		content string
		seenAt  time.Time
	}

	// historyStore keeps, per client, the normalized content seen within the
	// history window. Expired entries are dropped lazily on access. Callers
	// synchronize; the store itself holds no lock.
	historyStore struct {
		window  time.Duration
		entries map[string][]historyEntry
	}
)

func newHistoryStore(window time.Duration) *historyStore {
	return &historyStore{
		window:  window,
		entries: make(map[string][]historyEntry),
	}
}

// recent prunes expired entries for the client, persists the pruned list
// back and returns the survivors.
func (h *historyStore) recent(client string, now time.Time) []historyEntry {
	var (
		cutoff = now.Add(-h.window)
		old    = h.entries[client]
		kept   = old[:0]
	)

	for _, e := range old {
		if e.seenAt.After(cutoff) {
			kept = append(kept, e)
		}
	}

	if len(kept) == 0 {
		delete(h.entries, client)
		return nil
	}

	h.entries[client] = kept

	return kept
}

func (h *historyStore) append(client, content string, now time.Time) {
	h.entries[client] = append(h.entries[client], historyEntry{content: content, seenAt: now})
}

// size counts retained entries across all clients, expired or not.
func (h *historyStore) size() int {
	var n int
	for _, e := range h.entries {
		n += len(e)
	}

	return n
}
