package service

import (
	"strings"
	"testing"
	"unicode/utf8"
)

func TestSessionTitle(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"short message kept verbatim", "calculate tpr", "calculate tpr"},
		{"exactly sixty runes kept verbatim", strings.Repeat("a", 60), strings.Repeat("a", 60)},
		{"long message truncated with ellipsis", strings.Repeat("a", 61), strings.Repeat("a", 60) + "..."},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := sessionTitle(tt.input); got != tt.want {
				t.Errorf("sessionTitle(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestSessionTitleTruncatesOnRunes(t *testing.T) {
	// 61 three-byte runes: a byte-indexed cut would land mid-sequence.
	input := strings.Repeat("疟", 61)

	got := sessionTitle(input)
	if !utf8.ValidString(got) {
		t.Fatalf("truncated title is not valid UTF-8: %q", got)
	}
	want := strings.Repeat("疟", 60) + "..."
	if got != want {
		t.Errorf("sessionTitle = %q, want %q", got, want)
	}
}
