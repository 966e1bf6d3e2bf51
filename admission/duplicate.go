package admission

import (
	"strings"
	"sync"
	"time"
)

// Detector flags content that is near-identical to something the same client
// submitted within the history window. Content that trips the detector is not
// itself memorized; only novel content enters the history.
type Detector struct {
	mu        sync.Mutex
	history   *historyStore
	threshold float64
}

func NewDetector(window time.Duration, threshold float64) *Detector {
	return &Detector{
		history:   newHistoryStore(window),
		threshold: threshold,
	}
}

// IsDuplicate normalizes the content and compares it against the client's
// non-expired history. The check-then-append sequence is atomic per call.
func (d *Detector) IsDuplicate(client, content string, now time.Time) bool {
	normalized := Normalize(content)

	d.mu.Lock()
	defer d.mu.Unlock()

	for _, e := range d.history.recent(client, now) {
		if Similarity(normalized, e.content) > d.threshold {
			return true
		}
	}

	d.history.append(client, normalized, now)

	return false
}

// Size reports the number of retained history entries across all clients.
func (d *Detector) Size() int {
	d.mu.Lock()
	defer d.mu.Unlock()

	return d.history.size()
}

// Normalize lowercases, collapses whitespace runs to single spaces and trims.
func Normalize(content string) string {
	return strings.Join(strings.Fields(strings.ToLower(content)), " ")
}
