package suggest

import (
	"time"

	"github.com/google/uuid"

	"timesherpa/internal/models"
)

// Builder classifies suggestion texts and attaches time slots to the
// actionable ones.
type Builder struct {
	searcher *Searcher
	newID    func() string
}

// NewBuilder returns a Builder that ids suggestions with random UUIDs.
func NewBuilder(searcher *Searcher) *Builder {
	return &Builder{searcher: searcher, newID: uuid.NewString}
}

// Build returns one ActionableSuggestion per text, in input order. Slots
// are only searched for actionable types that have a strategy; an
// actionable suggestion with no free slot keeps an empty slot list.
func (b *Builder) Build(texts []string, events []models.Event, ww models.WorkweekSettings, from time.Time) []models.ActionableSuggestion {
	out := make([]models.ActionableSuggestion, 0, len(texts))
	for _, text := range texts {
		intent := Classify(text)
		s := models.ActionableSuggestion{
			ID:                b.newID(),
			Text:              text,
			Type:              intent.Type,
			Actionable:        intent.Actionable,
			ActionLabel:       intent.ActionLabel,
			ActionDescription: intent.ActionDescription,
		}
		if intent.Actionable && b.searcher.HasStrategy(intent.Type) {
			s.SuggestedTimeSlots = b.searcher.FindSlots(intent.Type, events, ww, text, from)
		}
		out = append(out, s)
	}
	return out
}
