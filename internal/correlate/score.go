package correlate

import (
	"strings"
	"time"

	"newslens/internal/core"
	"newslens/internal/persistence"
)

// Score weights.
const (
	KeywordWeight    = 2
	EntityWeight     = 3
	CategoryBonus    = 1
	SameDayBonus     = 2
	TwoDayBonus      = 1
	NewSourceBonus   = 1
	TitleBonus       = 2
	MinSharedTitle   = 3
	DefaultThreshold = 5
)

// Breakdown is the per-signal contribution to a candidate's score.
type Breakdown struct {
	Keywords int `json:"keywords"`
	Entities int `json:"entities"`
	Category int `json:"category"`
	Date     int `json:"date"`
	Source   int `json:"source"`
	Title    int `json:"title"`
}

// Total sums the contributions.
func (b Breakdown) Total() int {
	return b.Keywords + b.Entities + b.Category + b.Date + b.Source + b.Title
}

// Score rates how likely candidate covers the same story as subject.
// seenSources holds the source names already represented; it is not
// modified.
func Score(subject, candidate *core.Article, seenSources map[string]bool) Breakdown {
	var b Breakdown

	b.Keywords = persistence.SharedCount(subject.Keywords, candidate.Keywords) * KeywordWeight
	b.Entities = persistence.SharedCount(subject.Entities, candidate.Entities) * EntityWeight

	if subject.Category != "" && candidate.Category == subject.Category {
		b.Category = CategoryBonus
	}

	if subject.PublicationDate != nil && candidate.PublicationDate != nil {
		delta := subject.PublicationDate.Sub(*candidate.PublicationDate)
		if delta < 0 {
			delta = -delta
		}
		switch {
		case delta < 24*time.Hour:
			b.Date = SameDayBonus
		case delta < 48*time.Hour:
			b.Date = TwoDayBonus
		}
	}

	if candidate.SourceName != "" && !seenSources[candidate.SourceName] {
		b.Source = NewSourceBonus
	}

	if subject.Title != "" && candidate.Title != "" &&
		persistence.SharedCount(titleWords(subject.Title), titleWords(candidate.Title)) >= MinSharedTitle {
		b.Title = TitleBonus
	}

	return b
}

func titleWords(title string) []string {
	var words []string
	for _, w := range strings.Fields(strings.ToLower(title)) {
		if !titleStopwords[w] {
			words = append(words, w)
		}
	}
	return words
}
