package admission

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestDetectorFlagsResubmission(t *testing.T) {
	var (
		now      = time.Date(2022, 5, 10, 9, 15, 0, 0, time.UTC)
		detector = NewDetector(time.Hour, 0.9)
		content  = "write me a short story about a lighthouse keeper"
	)

	assert.False(t, detector.IsDuplicate("client-a", content, now))
	assert.True(t, detector.IsDuplicate("client-a", content, now.Add(time.Second)))

	// Whitespace and case variations normalize to the same content.
	assert.True(t, detector.IsDuplicate("client-a", "  Write me a short   story about a LIGHTHOUSE keeper ", now.Add(2*time.Second)))
}

func TestDetectorToleratesDistinctContent(t *testing.T) {
	var (
		now      = time.Date(2022, 5, 10, 9, 15, 0, 0, time.UTC)
		detector = NewDetector(time.Hour, 0.9)
	)

	assert.False(t, detector.IsDuplicate("client-a", "write me a short story about a lighthouse keeper", now))
	assert.False(t, detector.IsDuplicate("client-a", "summarize the plot of moby dick in two sentences", now.Add(time.Second)))
	assert.Equal(t, 2, detector.Size())
}

func TestDetectorScopesHistoryPerClient(t *testing.T) {
	var (
		now      = time.Date(2022, 5, 10, 9, 15, 0, 0, time.UTC)
		detector = NewDetector(time.Hour, 0.9)
		content  = "write me a short story about a lighthouse keeper"
	)

	assert.False(t, detector.IsDuplicate("client-a", content, now))
	assert.False(t, detector.IsDuplicate("client-b", content, now.Add(time.Second)))
}

func TestDetectorExpiresHistory(t *testing.T) {
	var (
		now      = time.Date(2022, 5, 10, 9, 15, 0, 0, time.UTC)
		detector = NewDetector(time.Hour, 0.9)
		content  = "write me a short story about a lighthouse keeper"
	)

	assert.False(t, detector.IsDuplicate("client-a", content, now))

	// Within the hour the resubmission is still caught.
	assert.True(t, detector.IsDuplicate("client-a", content, now.Add(59*time.Minute)))

	// Past the hour the entry has expired and the content reads as novel.
	assert.False(t, detector.IsDuplicate("client-a", content, now.Add(61*time.Minute)))
}

func TestDetectorDoesNotMemorizeRejectedContent(t *testing.T) {
	var (
		now      = time.Date(2022, 5, 10, 9, 15, 0, 0, time.UTC)
		detector = NewDetector(time.Hour, 0.9)
		content  = "write me a short story about a lighthouse keeper"
	)

	assert.False(t, detector.IsDuplicate("client-a", content, now))
	assert.True(t, detector.IsDuplicate("client-a", content, now.Add(time.Second)))
	assert.True(t, detector.IsDuplicate("client-a", content, now.Add(2*time.Second)))

	// Only the first, novel submission was memorized.
	assert.Equal(t, 1, detector.Size())
}

func TestNormalize(t *testing.T) {
	var tests = []struct {
		in   string
		want string
	}{
		{"  Hello   World  ", "hello world"},
		{"already normal", "already normal"},
		{"TABS\tand\nnewlines", "tabs and newlines"},
		{"", ""},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, Normalize(tt.in))
	}
}
