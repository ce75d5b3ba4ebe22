// Package stitch repairs paragraphs split across viewer page boundaries.
package stitch

import (
	"slices"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/pmezard/go-difflib/difflib"
)

// Config holds the overlap detection thresholds. All lengths are in runes.
type Config struct {
	TailWindow     int // Suffix of the previous paragraph searched for overlap.
	HeadWindow     int // Prefix of the next paragraph used for fuzzy alignment.
	MaxExactSuffix int // Longest suffix tried by the exact matcher.
	MinExactSuffix int // Shortest suffix tried by the exact matcher.
	ExactStep      int // Decrement between exact suffix lengths.
	MinFuzzyMatch  int // Shortest fuzzy alignment accepted.
	FuzzyAnchor    int // Fuzzy alignment must start within this many runes of the tail end.
}

// DefaultConfig returns the thresholds used by the viewer crawls in production.
func DefaultConfig() Config {
	return Config{
		TailWindow:     400,
		HeadWindow:     400,
		MaxExactSuffix: 200,
		MinExactSuffix: 30,
		ExactStep:      10,
		MinFuzzyMatch:  20,
		FuzzyAnchor:    250,
	}
}

// Stitcher joins the tail of one page with the head of the next.
type Stitcher struct {
	cfg Config
}

// New creates a Stitcher, replacing non-positive thresholds with defaults.
func New(cfg Config) *Stitcher {
	def := DefaultConfig()
	if cfg.TailWindow <= 0 {
		cfg.TailWindow = def.TailWindow
	}
	if cfg.HeadWindow <= 0 {
		cfg.HeadWindow = def.HeadWindow
	}
	if cfg.MaxExactSuffix <= 0 {
		cfg.MaxExactSuffix = def.MaxExactSuffix
	}
	if cfg.MinExactSuffix <= 0 {
		cfg.MinExactSuffix = def.MinExactSuffix
	}
	if cfg.ExactStep <= 0 {
		cfg.ExactStep = def.ExactStep
	}
	if cfg.MinFuzzyMatch <= 0 {
		cfg.MinFuzzyMatch = def.MinFuzzyMatch
	}
	if cfg.FuzzyAnchor <= 0 {
		cfg.FuzzyAnchor = def.FuzzyAnchor
	}
	return &Stitcher{cfg: cfg}
}

// TrimOverlap removes from next the prefix that repeats the end of prev.
// It returns next unchanged when no qualifying overlap is found.
func (s *Stitcher) TrimOverlap(prev, next string) string {
	if prev == "" || next == "" {
		return next
	}
	nextRunes := []rune(next)
	tail := lastRunes([]rune(prev), s.cfg.TailWindow)

	maxSuffix := min(len(tail), s.cfg.MaxExactSuffix)
	for length := maxSuffix; length >= s.cfg.MinExactSuffix; length -= s.cfg.ExactStep {
		if hasRunePrefix(nextRunes, tail[len(tail)-length:]) {
			return string(nextRunes[length:])
		}
	}

	head := nextRunes[:min(len(nextRunes), s.cfg.HeadWindow)]
	if n := s.fuzzyOverlap(tail, head); n > 0 {
		return string(nextRunes[n:])
	}
	return next
}

// fuzzyOverlap aligns tail and head and returns the length of the accepted
// block starting at head position 0, or 0.
func (s *Stitcher) fuzzyOverlap(tail, head []rune) int {
	m := difflib.NewMatcher(runeStrings(tail), runeStrings(head))
	best := 0
	for _, blk := range m.GetMatchingBlocks() {
		if blk.B != 0 || blk.Size < s.cfg.MinFuzzyMatch {
			continue
		}
		if blk.A < len(tail)-s.cfg.FuzzyAnchor {
			continue
		}
		if blk.Size > best {
			best = blk.Size
		}
	}
	return best
}

const terminators = ".!?…:;»)\""

// ShouldMerge reports whether head continues the sentence left open by prev.
func ShouldMerge(prev, head string) bool {
	if prev == "" || head == "" {
		return false
	}
	trimmed := strings.TrimRightFunc(prev, unicode.IsSpace)
	if trimmed == "" {
		return true
	}
	last, _ := utf8.DecodeLastRuneInString(trimmed)
	return !strings.ContainsRune(terminators, last)
}

// Join concatenates a paragraph split across a page break.
func Join(prev, head string) string {
	tail := strings.TrimRightFunc(prev, unicode.IsSpace)
	head = strings.TrimLeftFunc(head, unicode.IsSpace)
	if strings.HasSuffix(tail, "-") {
		return strings.TrimSuffix(tail, "-") + head
	}
	if tail != "" && head != "" {
		last, _ := utf8.DecodeLastRuneInString(tail)
		first, _ := utf8.DecodeRuneInString(head)
		if unicode.IsLetter(last) && unicode.IsLetter(first) {
			return tail + head
		}
	}
	return tail + " " + head
}

// Outcome describes what happened at a seam.
type Outcome int

const (
	OutcomeUntouched Outcome = iota
	OutcomeMerged
	OutcomeTrimmed
	OutcomeDropped
)

func (o Outcome) String() string {
	switch o {
	case OutcomeMerged:
		return "merged"
	case OutcomeTrimmed:
		return "trimmed"
	case OutcomeDropped:
		return "dropped"
	}
	return "untouched"
}

// Seam is the result of stitching two consecutive pages.
type Seam struct {
	Previous []string // Paragraphs of the earlier page after the repair.
	Next     []string // Paragraphs of the later page still to be consumed.
	Outcome  Outcome
	Stripped int // Runes of duplicated prefix removed from the head.
}

// Stitch applies overlap removal and the merge decision to the boundary
// between prev and next. The input slices are not modified.
func (s *Stitcher) Stitch(prev, next []string) Seam {
	seam := Seam{Previous: prev, Next: next}
	if len(prev) == 0 || len(next) == 0 {
		return seam
	}

	last := prev[len(prev)-1]
	head := s.TrimOverlap(last, next[0])
	seam.Stripped = utf8.RuneCountInString(next[0]) - utf8.RuneCountInString(head)

	if ShouldMerge(last, head) {
		merged := slices.Clone(prev)
		merged[len(merged)-1] = Join(last, head)
		seam.Previous = merged
		seam.Next = next[1:]
		seam.Outcome = OutcomeMerged
		return seam
	}

	if strings.TrimSpace(head) == "" {
		seam.Next = next[1:]
		seam.Outcome = OutcomeDropped
		return seam
	}

	if seam.Stripped > 0 {
		rest := slices.Clone(next)
		rest[0] = strings.TrimLeftFunc(head, unicode.IsSpace)
		seam.Next = rest
		seam.Outcome = OutcomeTrimmed
	}
	return seam
}

func lastRunes(r []rune, n int) []rune {
	if len(r) <= n {
		return r
	}
	return r[len(r)-n:]
}

func hasRunePrefix(s, prefix []rune) bool {
	return len(s) >= len(prefix) && slices.Equal(s[:len(prefix)], prefix)
}

func runeStrings(r []rune) []string {
	out := make([]string, len(r))
	for i, c := range r {
		out[i] = string(c)
	}
	return out
}
