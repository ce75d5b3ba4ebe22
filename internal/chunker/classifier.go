package chunker

import (
	"fmt"
	"regexp"
	"strings"
)

// Default heading patterns for statute-style documents.
const (
	DefaultChapterPattern       = `(?i)^(?:Глава|Chapter)\s+(\d+)[.:\-]?\s*(.*)$`
	DefaultArticlePattern       = `^(?:Статья|Article)\s+\d+[.|\-]?`
	DefaultArticleParserPattern = `(?i)^(?:Статья|Article)\s+(\d+)[.|\-]?\s*(.*)$`
)

// EventKind tags a classified paragraph.
type EventKind int

const (
	EventBody EventKind = iota
	EventChapter
	EventArticle
)

func (k EventKind) String() string {
	switch k {
	case EventChapter:
		return "chapter"
	case EventArticle:
		return "article"
	}
	return "body"
}

// HeadingEvent is one paragraph after classification. Number and Title are
// only set for chapter and article headings.
type HeadingEvent struct {
	Kind   EventKind
	Number string
	Title  string
	Text   string
}

// Patterns configures a Classifier. An empty Article pattern disables
// article grouping; an empty Chapter pattern disables chapter tracking.
type Patterns struct {
	Chapter       string
	Article       string
	ArticleParser string
}

// DefaultPatterns returns the built-in heading patterns.
func DefaultPatterns() Patterns {
	return Patterns{
		Chapter:       DefaultChapterPattern,
		Article:       DefaultArticlePattern,
		ArticleParser: DefaultArticleParserPattern,
	}
}

// Classifier maps paragraphs to heading events using precompiled patterns.
// Patterns only match at the start of a paragraph.
type Classifier struct {
	chapter       *regexp.Regexp
	article       *regexp.Regexp
	articleParser *regexp.Regexp
}

// NewClassifier compiles the given patterns.
func NewClassifier(p Patterns) (*Classifier, error) {
	var c Classifier
	var err error
	if c.chapter, err = compileAnchored(p.Chapter); err != nil {
		return nil, fmt.Errorf("chapter pattern: %w", err)
	}
	if c.article, err = compileAnchored(p.Article); err != nil {
		return nil, fmt.Errorf("article pattern: %w", err)
	}
	if c.articleParser, err = compileAnchored(p.ArticleParser); err != nil {
		return nil, fmt.Errorf("article parser pattern: %w", err)
	}
	return &c, nil
}

func compileAnchored(pattern string) (*regexp.Regexp, error) {
	if pattern == "" {
		return nil, nil
	}
	return regexp.Compile(`^(?:` + pattern + `)`)
}

// Grouping reports whether article headings are recognized at all.
func (c *Classifier) Grouping() bool {
	return c.article != nil
}

// Classify tags a paragraph. Chapter headings take precedence over article
// headings.
func (c *Classifier) Classify(para string) HeadingEvent {
	ev := HeadingEvent{Kind: EventBody, Text: para}
	if c.chapter != nil {
		if m := c.chapter.FindStringSubmatch(para); m != nil {
			ev.Kind = EventChapter
			ev.Number, ev.Title = groups(m)
			return ev
		}
	}
	if c.article == nil {
		return ev
	}
	m := c.article.FindStringSubmatch(para)
	if m == nil {
		return ev
	}
	ev.Kind = EventArticle
	if c.articleParser != nil {
		if pm := c.articleParser.FindStringSubmatch(para); pm != nil {
			ev.Number, ev.Title = groups(pm)
			return ev
		}
	}
	// Headings the parser does not know: use the detector's own groups,
	// else the first number inside the detected heading.
	if len(m) > 1 && m[1] != "" {
		ev.Number, ev.Title = groups(m)
		if len(m) == 2 {
			ev.Title = firstLine(para[len(m[0]):])
		}
		return ev
	}
	ev.Number, ev.Title = splitHeading(para, len(m[0]))
	return ev
}

var headingNumber = regexp.MustCompile(`\d+(?:\.\d+)*`)

// splitHeading takes the first number starting within para[:end] as the
// heading number and the rest of the line as its title. A heading without a
// number is identified by its whole first line.
func splitHeading(para string, end int) (number, title string) {
	loc := headingNumber.FindStringIndex(para)
	if loc == nil || loc[0] >= end {
		return "", firstLine(para)
	}
	return para[loc[0]:loc[1]], firstLine(para[loc[1]:])
}

func firstLine(s string) string {
	s, _, _ = strings.Cut(s, "\n")
	return strings.TrimSpace(strings.TrimLeft(s, " \t.:;)|-–—"))
}

// groups returns the first two capture groups of a match as number and title.
func groups(m []string) (number, title string) {
	if len(m) > 1 {
		number = m[1]
	}
	if len(m) > 2 {
		title = strings.TrimSpace(m[2])
	}
	return number, title
}
