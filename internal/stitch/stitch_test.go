package stitch

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// numberedText returns n distinct space separated words so that no long
// substring repeats.
func numberedText(word string, n int) string {
	parts := make([]string, n)
	for i := range parts {
		parts[i] = fmt.Sprintf("%s%d", word, i)
	}
	return strings.Join(parts, " ")
}

func suffixRunes(s string, n int) string {
	r := []rune(s)
	return string(r[len(r)-n:])
}

func TestTrimOverlap_RemovesRepeatedSuffix(t *testing.T) {
	s := New(DefaultConfig())
	prev := numberedText("w", 80)
	const rest = " tail continues."

	for _, n := range []int{30, 35, 50, 77, 120, 200} {
		t.Run(fmt.Sprintf("overlap_%d", n), func(t *testing.T) {
			next := suffixRunes(prev, n) + rest
			assert.Equal(t, rest, s.TrimOverlap(prev, next))
		})
	}
}

func TestTrimOverlap_CountsRunes(t *testing.T) {
	s := New(DefaultConfig())
	prev := numberedText("слово", 40)
	next := suffixRunes(prev, 40) + " и далее"

	assert.Equal(t, " и далее", s.TrimOverlap(prev, next))
}

func TestTrimOverlap_NoOverlapUnchanged(t *testing.T) {
	s := New(DefaultConfig())
	next := "completely different opening of the next page"
	assert.Equal(t, next, s.TrimOverlap(numberedText("w", 40), next))
}

func TestTrimOverlap_EmptyInputs(t *testing.T) {
	s := New(DefaultConfig())
	assert.Equal(t, "", s.TrimOverlap("prev", ""))
	assert.Equal(t, "next", s.TrimOverlap("", "next"))
}

func TestTrimOverlap_UnalignedExactLength(t *testing.T) {
	s := New(DefaultConfig())
	phrase := "the quick brown fox jumps over the lazy dog"
	prev := "Some preface words and " + phrase
	next := phrase + ", then it slept."

	assert.Equal(t, ", then it slept.", s.TrimOverlap(prev, next))
}

func TestTrimOverlap_FuzzyNearDuplicate(t *testing.T) {
	s := New(DefaultConfig())
	prev := "Earlier text about the subject: the committee reviewed every submitted proposal carefully"
	next := "the committee reviewed every submitted proposals carefully before voting"

	got := s.TrimOverlap(prev, next)
	// "the committee reviewed every submitted proposal" aligns at the head start.
	assert.Equal(t, "s carefully before voting", got)
}

func TestTrimOverlap_ShortAlignmentIgnored(t *testing.T) {
	s := New(DefaultConfig())
	next := "gamma delta epsilon."
	assert.Equal(t, next, s.TrimOverlap("alpha beta gamma delta", next))
}

func TestTrimOverlap_AlignmentFarFromTailEndIgnored(t *testing.T) {
	s := New(DefaultConfig())
	phrase := "the quick brown fox jumps over the lazy dog"
	prev := phrase + " " + strings.Repeat("x", 300)
	next := phrase + ", then more."

	assert.Equal(t, next, s.TrimOverlap(prev, next))
}

func TestNew_FillsDefaults(t *testing.T) {
	s := New(Config{})
	assert.Equal(t, DefaultConfig(), s.cfg)
}

func TestShouldMerge(t *testing.T) {
	tests := []struct {
		name string
		prev string
		head string
		want bool
	}{
		{"open sentence", "Intro text that conti-", "nues here.", true},
		{"comma", "first clause,", "second clause", true},
		{"period", "Done.", "Next", false},
		{"exclamation", "Done!", "Next", false},
		{"question", "Done?", "Next", false},
		{"ellipsis", "Wait…", "Next", false},
		{"colon", "As follows:", "item", false},
		{"semicolon", "one;", "two", false},
		{"guillemet", "«quoted»", "next", false},
		{"paren", "(aside)", "next", false},
		{"quote", `said "yes"`, "next", false},
		{"trailing space after terminator", "Done.  ", "Next", false},
		{"empty prev", "", "next", false},
		{"empty head", "prev", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ShouldMerge(tt.prev, tt.head))
		})
	}
}

func TestJoin(t *testing.T) {
	tests := []struct {
		name string
		prev string
		head string
		want string
	}{
		{"hyphen", "Статья 1. Intro text that conti-", "nues here.", "Статья 1. Intro text that continues here."},
		{"hyphen with space in head", "conti-", "  nues", "continues"},
		{"letters", "продол", "жение", "продолжение"},
		{"punctuation", "end,", "next", "end, next"},
		{"digit", "1990", "год", "1990 год"},
		{"whitespace trimmed", "word ", " next", "wordnext"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Join(tt.prev, tt.head))
		})
	}
}

func TestStitch_MergesSplitParagraph(t *testing.T) {
	s := New(DefaultConfig())
	prev := []string{"Chapter 1", "Статья 1. Intro text that conti-"}
	next := []string{"nues here.", "Статья 2. Second article."}

	seam := s.Stitch(prev, next)

	assert.Equal(t, OutcomeMerged, seam.Outcome)
	assert.Equal(t, []string{"Chapter 1", "Статья 1. Intro text that continues here."}, seam.Previous)
	assert.Equal(t, []string{"Статья 2. Second article."}, seam.Next)
	assert.Equal(t, "Статья 1. Intro text that conti-", prev[1], "input must not be modified")
}

func TestStitch_DropsFullyDuplicatedHead(t *testing.T) {
	s := New(DefaultConfig())
	last := "This paragraph closes the page with a full stop."
	seam := s.Stitch([]string{last}, []string{last, "Fresh content."})

	assert.Equal(t, OutcomeDropped, seam.Outcome)
	assert.Equal(t, []string{last}, seam.Previous)
	assert.Equal(t, []string{"Fresh content."}, seam.Next)
}

func TestStitch_TrimsOverlapWithoutMerging(t *testing.T) {
	s := New(DefaultConfig())
	last := "This paragraph closes the page with a full stop."
	next := []string{suffixRunes(last, 40) + " Fresh sentence.", "Another."}

	seam := s.Stitch([]string{last}, next)

	require.Equal(t, OutcomeTrimmed, seam.Outcome)
	assert.Equal(t, 40, seam.Stripped)
	assert.Equal(t, []string{"Fresh sentence.", "Another."}, seam.Next)
	assert.Equal(t, suffixRunes(last, 40)+" Fresh sentence.", next[0], "input must not be modified")
}

func TestStitch_Untouched(t *testing.T) {
	s := New(DefaultConfig())
	prev := []string{"A complete sentence."}
	next := []string{"Unrelated start."}

	seam := s.Stitch(prev, next)

	assert.Equal(t, OutcomeUntouched, seam.Outcome)
	assert.Equal(t, prev, seam.Previous)
	assert.Equal(t, next, seam.Next)
}

func TestStitch_EmptySides(t *testing.T) {
	s := New(DefaultConfig())
	seam := s.Stitch(nil, []string{"a"})
	assert.Equal(t, []string{"a"}, seam.Next)

	seam = s.Stitch([]string{"a"}, nil)
	assert.Equal(t, []string{"a"}, seam.Previous)
	assert.Empty(t, seam.Next)
}
