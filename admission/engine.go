package admission

import (
	"strings"
	"sync/atomic"
	"time"
	"unicode/utf8"
)

// Fixed admission parameters. Reproduced exactly; see the tunables grouped
// in spam.go for the classifier thresholds.
const (
	RequestsPerWindow  = 5
	WindowDuration     = 5 * time.Minute
	DailyLimit         = 20
	CooldownDuration   = 30 * time.Second
	MinContentLength   = 10
	MaxContentLength   = 2000
	DuplicateThreshold = 0.9
	HistoryWindow      = time.Hour
)

type (
	// SubjectExtractor selects the portion of the raw content the spam and
	// duplicate checks should run against. The surrounding transport defines
	// how a subject is embedded; the engine only needs the hook.
	SubjectExtractor func(content string) string

	Config struct {
		MinContentLength   int
		MaxContentLength   int
		HistoryWindow      time.Duration
		DuplicateThreshold float64
		Limits             Limits
		SweepInterval      time.Duration
	}

	// Engine runs the admission pipeline: sweep, validation, spam check,
	// duplicate check, rate check. It owns all per-client state; nothing
	// outside the engine reads or writes it.
	Engine struct {
		cfg       Config
		limiter   *Limiter
		detector  *Detector
		extract   SubjectExtractor
		lastSweep atomic.Int64 // unix nanos of the last amortized sweep
	}
)

func DefaultConfig() Config {
	return Config{
		MinContentLength:   MinContentLength,
		MaxContentLength:   MaxContentLength,
		HistoryWindow:      HistoryWindow,
		DuplicateThreshold: DuplicateThreshold,
		Limits:             DefaultLimits(),
		SweepInterval:      time.Minute,
	}
}

// NewEngine builds an engine with its own isolated state. A nil extractor
// falls back to QuotedSubject.
func NewEngine(cfg Config, extract SubjectExtractor) *Engine {
	if extract == nil {
		extract = QuotedSubject
	}

	return &Engine{
		cfg:      cfg,
		limiter:  NewLimiter(cfg.Limits),
		detector: NewDetector(cfg.HistoryWindow, cfg.DuplicateThreshold),
		extract:  extract,
	}
}

// Admit runs the pipeline in order, cheapest and most decisive checks first,
// and returns the first rejection or an admission with remaining quota.
func (e *Engine) Admit(client, content string, now time.Time) Decision {
	e.maybeSweep(now)

	switch n := utf8.RuneCountInString(content); {
	case n < e.cfg.MinContentLength:
		return Decision{Status: RejectedValidation, Reason: "content too short"}
	case n > e.cfg.MaxContentLength:
		return Decision{Status: RejectedValidation, Reason: "content too long"}
	}

	subject := e.extract(content)
	if subject == "" {
		subject = content
	}

	if IsSpam(subject) {
		return Decision{Status: RejectedSpam}
	}

	if e.detector.IsDuplicate(client, subject, now) {
		return Decision{Status: RejectedDuplicate}
	}

	return e.limiter.Check(client, now)
}

// OnUpstreamFailure rolls back the quota slot consumed by the most recent
// admission for the client. The cooldown stays in force.
func (e *Engine) OnUpstreamFailure(client string) {
	e.limiter.Release(client)
}

// Sweep forces a full eviction pass.
func (e *Engine) Sweep(now time.Time) {
	e.limiter.Sweep(now)
}

// ActiveClients counts clients with retained rate state.
func (e *Engine) ActiveClients() int {
	return e.limiter.Active()
}

func (e *Engine) maybeSweep(now time.Time) {
	var (
		last = e.lastSweep.Load()
		due  = now.UnixNano() - last
	)

	if due < e.cfg.SweepInterval.Nanoseconds() {
		return
	}

	if e.lastSweep.CompareAndSwap(last, now.UnixNano()) {
		e.limiter.Sweep(now)
	}
}

// QuotedSubject extracts the segment between the first and last double quote
// when the content embeds one; otherwise the whole content is the subject.
func QuotedSubject(content string) string {
	first := strings.IndexByte(content, '"')
	last := strings.LastIndexByte(content, '"')

	if first == -1 || last <= first+1 {
		return content
	}

	return content[first+1 : last]
}
