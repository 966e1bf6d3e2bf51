package admission

type (
	// Status is the outcome class of an admission check.
	Status uint8

	// LimitKind distinguishes which quota produced a rate-limit rejection.
	LimitKind uint8

	// Decision is the result of a single admission check. Rejections are
	// ordinary values, never errors.
	Decision struct {
		Status          Status
		Reason          string
		Kind            LimitKind
		RetryAfter      int // seconds
		RemainingWindow int
		RemainingDaily  int
	}
)

const (
	Admitted Status = iota
	RejectedValidation
	RejectedSpam
	RejectedDuplicate
	RejectedRateLimited
	RejectedCooldown
)

const (
	LimitWindow LimitKind = iota
	LimitDaily
)

var (
	statusStr = []string{"Admitted", "RejectedValidation", "RejectedSpam", "RejectedDuplicate", "RejectedRateLimited", "RejectedCooldown"}
	kindStr   = []string{"window", "daily"}
)

func (s Status) String() string { return statusStr[s] }

func (k LimitKind) String() string { return kindStr[k] }

// Allowed reports whether the request may proceed upstream.
func (d Decision) Allowed() bool { return d.Status == Admitted }
