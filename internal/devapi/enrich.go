package devapi

import (
	"strings"

	"github.com/tgienger/smartpm/internal/models"
)

const maxDescription = 1150

var acceptanceCriteria = []string{
	"State is persisted and visible after refresh",
	"Errors show a clear message",
	"Include tests for one success and one failure path",
}

// Enrichment is the generated part of a task
type Enrichment struct {
	AIDescription string
	StoryPoints   int
}

// Enricher generates the AI description and estimate of a task
type Enricher interface {
	Enrich(title, userDescription string, model models.ModelSelector) Enrichment
}

// StubEnricher is a deterministic stand-in for the model provider. The
// estimate grows with the word count of title and description.
type StubEnricher struct{}

// Enrich implements Enricher
func (StubEnricher) Enrich(title, userDescription string, _ models.ModelSelector) Enrichment {
	words := len(strings.Fields(title)) + len(strings.Fields(userDescription))

	var points int
	switch {
	case words < 12:
		points = 1
	case words < 30:
		points = 2
	case words < 60:
		points = 3
	default:
		points = 5
	}

	desc := strings.TrimSpace(title) + ". Extend: " + strings.TrimSpace(userDescription) +
		"\n\nAcceptance criteria:\n- " + strings.Join(acceptanceCriteria, "\n- ")
	if r := []rune(desc); len(r) > maxDescription {
		desc = string(r[:maxDescription])
	}

	return Enrichment{AIDescription: desc, StoryPoints: ClampStoryPoints(points)}
}

// ClampStoryPoints returns the allowed estimate closest to v, preferring the
// smaller one on a tie
func ClampStoryPoints(v int) int {
	best := models.AllowedStoryPoints[0]
	for _, p := range models.AllowedStoryPoints[1:] {
		if abs(p-v) < abs(best-v) {
			best = p
		}
	}
	return best
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
