package admission

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsSpam(t *testing.T) {
	var tests = []struct {
		name    string
		content string
		want    bool
	}{
		{
			name:    "twelve identical characters",
			content: "aaaaaaaaaaaa",
			want:    true,
		},
		{
			name:    "eleven identical characters is the boundary",
			content: "aaaaaaaaaaa",
			want:    true,
		},
		{
			name:    "ten identical characters passes",
			content: "aaaaaaaaaa",
			want:    false,
		},
		{
			name:    "all uppercase",
			content: "ABCDEFGHIJ",
			want:    true,
		},
		{
			name:    "two of ten uppercase passes",
			content: "AbcdefghiJ",
			want:    false,
		},
		{
			name:    "mostly uppercase above density limit",
			content: "ABCDEFGH ij",
			want:    true,
		},
		{
			name:    "short phrase repeated five times",
			content: "ababababab",
			want:    true,
		},
		{
			name:    "phrase repeated five times inside other text",
			content: "please spamspamspamspamspam stop",
			want:    true,
		},
		{
			name:    "phrase repeated four times passes",
			content: "spamspamspamspam but otherwise fine",
			want:    false,
		},
		{
			name:    "fifty special characters spanning the whole string",
			content: strings.Repeat("!@#$%", 10),
			want:    true,
		},
		{
			name:    "forty-nine special characters passes the span check",
			content: strings.Repeat("!", 10) + strings.Repeat("@#$%^&*()-", 3) + strings.Repeat("+", 9),
			want:    false,
		},
		{
			name:    "special span broken by a letter passes",
			content: "#$%^&*()!~ we accept symbols in prose",
			want:    false,
		},
		{
			name:    "test signature repeated five times",
			content: "testtesttesttesttest",
			want:    true,
		},
		{
			name:    "test signature case-insensitive",
			content: "well TestTestTestTestTest indeed",
			want:    true,
		},
		{
			name:    "ordinary sentence passes",
			content: "Write a short poem about the sea.",
			want:    false,
		},
		{
			name:    "empty content passes",
			content: "",
			want:    false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsSpam(tt.content))
		})
	}
}

func TestIsSpamDeterministic(t *testing.T) {
	content := "borderline CONTENT with numbers 12345 and spamspamspam"

	first := IsSpam(content)
	for i := 0; i < 100; i++ {
		assert.Equal(t, first, IsSpam(content))
	}
}
