package admission

import (
	"hash/fnv"
	"sync"
	"time"
)

const dailyWindow = 24 * time.Hour

type (
	// Limits carries the fixed rate-limiting parameters.
	Limits struct {
		WindowCapacity int
		Window         time.Duration
		DailyCapacity  int
		Cooldown       time.Duration
	}

	// rateState is the per-client record: hit timestamps inside the short
	// window and the rolling day, plus the last admitted request for the
	// cooldown. Both slices stay time-ascending.
	rateState struct {
		windowHits []time.Time
		dailyHits  []time.Time
		lastAdmit  time.Time
	}

	limiterShard struct {
		mu     sync.Mutex
		states map[string]*rateState
	}

	// Limiter enforces the sliding window, the daily quota and the absolute
	// cooldown per client key. State is sharded so distinct clients do not
	// contend on one lock.
	Limiter struct {
		limits Limits
		shards []*limiterShard
	}
)

const shardCount = 32

func DefaultLimits() Limits {
	return Limits{
		WindowCapacity: RequestsPerWindow,
		Window:         WindowDuration,
		DailyCapacity:  DailyLimit,
		Cooldown:       CooldownDuration,
	}
}

func NewLimiter(limits Limits) *Limiter {
	shards := make([]*limiterShard, shardCount)
	for i := range shards {
		shards[i] = &limiterShard{states: make(map[string]*rateState)}
	}

	return &Limiter{limits: limits, shards: shards}
}

// Check runs the cooldown, window and daily checks for the client and, when
// all pass, commits the hit. Remaining counters reflect the committed hit.
func (l *Limiter) Check(client string, now time.Time) Decision {
	s := l.shard(client)

	s.mu.Lock()
	defer s.mu.Unlock()

	st, ok := s.states[client]
	if !ok {
		st = &rateState{}
		s.states[client] = st
	}

	if !st.lastAdmit.IsZero() {
		if wait := l.limits.Cooldown - now.Sub(st.lastAdmit); wait > 0 {
			return Decision{Status: RejectedCooldown, RetryAfter: ceilSeconds(wait)}
		}
	}

	st.windowHits = pruneBefore(st.windowHits, now.Add(-l.limits.Window))
	st.dailyHits = pruneBefore(st.dailyHits, now.Add(-dailyWindow))

	if len(st.windowHits) >= l.limits.WindowCapacity {
		return Decision{
			Status:     RejectedRateLimited,
			Kind:       LimitWindow,
			RetryAfter: int(l.limits.Window / time.Second),
		}
	}

	if len(st.dailyHits) >= l.limits.DailyCapacity {
		return Decision{
			Status:     RejectedRateLimited,
			Kind:       LimitDaily,
			RetryAfter: int(dailyWindow / time.Second),
		}
	}

	st.windowHits = append(st.windowHits, now)
	st.dailyHits = append(st.dailyHits, now)
	st.lastAdmit = now

	return Decision{
		Status:          Admitted,
		RemainingWindow: l.limits.WindowCapacity - len(st.windowHits),
		RemainingDaily:  l.limits.DailyCapacity - len(st.dailyHits),
	}
}

// Release returns the most recently committed quota slot after an upstream
// failure. The cooldown is deliberately not rolled back: a failed upstream
// call still spaces out the client's next attempt.
func (l *Limiter) Release(client string) {
	s := l.shard(client)

	s.mu.Lock()
	defer s.mu.Unlock()

	st, ok := s.states[client]
	if !ok {
		return
	}

	if n := len(st.windowHits); n > 0 {
		st.windowHits = st.windowHits[:n-1]
	}

	if n := len(st.dailyHits); n > 0 {
		st.dailyHits = st.dailyHits[:n-1]
	}
}

// Sweep trims every client's sequences and drops records that hold no hits
// and no live cooldown, bounding memory to active clients.
func (l *Limiter) Sweep(now time.Time) {
	for _, s := range l.shards {
		s.mu.Lock()

		for client, st := range s.states {
			st.windowHits = pruneBefore(st.windowHits, now.Add(-l.limits.Window))
			st.dailyHits = pruneBefore(st.dailyHits, now.Add(-dailyWindow))

			if len(st.windowHits) == 0 && len(st.dailyHits) == 0 && now.Sub(st.lastAdmit) >= l.limits.Cooldown {
				delete(s.states, client)
			}
		}

		s.mu.Unlock()
	}
}

// Active counts clients with a retained record.
func (l *Limiter) Active() int {
	var n int

	for _, s := range l.shards {
		s.mu.Lock()
		n += len(s.states)
		s.mu.Unlock()
	}

	return n
}

func (l *Limiter) shard(client string) *limiterShard {
	h := fnv.New32a()
	_, _ = h.Write([]byte(client))

	return l.shards[h.Sum32()%shardCount]
}

// pruneBefore keeps only timestamps strictly after the cutoff, preserving
// order, in place.
func pruneBefore(hits []time.Time, cutoff time.Time) []time.Time {
	kept := hits[:0]

	for _, t := range hits {
		if t.After(cutoff) {
			kept = append(kept, t)
		}
	}

	return kept
}

func ceilSeconds(d time.Duration) int {
	return int((d + time.Second - 1) / time.Second)
}
