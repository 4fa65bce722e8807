package extraction

import (
	"context"
	"strings"
	"unicode"

	"go.uber.org/zap"

	"engram-backend/domain/core/valueobjects"
	domainservices "engram-backend/domain/services"
)

// FixtureExtractor is a deterministic extractor for development and
// tests. It treats runs of capitalized words as entities and links
// entities that co-occur in a sentence with a generic relation. No
// network, no model, same output for the same input.
type FixtureExtractor struct {
	logger *zap.Logger
}

// NewFixtureExtractor creates a FixtureExtractor
func NewFixtureExtractor(logger *zap.Logger) *FixtureExtractor {
	return &FixtureExtractor{logger: logger}
}

// Extract derives entity and relation candidates from the text.
// Entities score 0.5 and relations 0.3, so the confidence threshold
// behaves against fixture output exactly as it would against a model.
func (e *FixtureExtractor) Extract(ctx context.Context, ownerID valueobjects.OwnerID, text string, confidenceThreshold float64) (domainservices.ExtractionResult, error) {
	result := domainservices.ExtractionResult{}
	seen := map[string]bool{}

	for _, sentence := range splitSentences(text) {
		mentions := capitalizedRuns(sentence)

		var labels []valueobjects.Label
		for _, mention := range mentions {
			label, err := valueobjects.NewLabel(mention)
			if err != nil {
				continue
			}
			labels = append(labels, label)
			if !seen[label.Normalized()] {
				seen[label.Normalized()] = true
				result.Entities = append(result.Entities, domainservices.EntityCandidate{
					Label:      label,
					Type:       valueobjects.TypeConcept,
					Confidence: 0.5,
				})
			}
		}

		for i := 0; i+1 < len(labels); i++ {
			result.Relations = append(result.Relations, domainservices.RelationCandidate{
				SourceLabel: labels[i],
				TargetLabel: labels[i+1],
				Label:       "related to",
				Confidence:  0.3,
			})
		}
	}

	result = result.FilterByConfidence(confidenceThreshold)

	e.logger.Debug("Fixture extraction finished",
		zap.Int("entities", len(result.Entities)),
		zap.Int("relations", len(result.Relations)),
	)
	return result, nil
}

func splitSentences(text string) []string {
	return strings.FieldsFunc(text, func(r rune) bool {
		return r == '.' || r == '!' || r == '?' || r == '\n'
	})
}

// capitalizedRuns returns maximal runs of capitalized words, skipping a
// sentence's leading word when it stands alone (it is capitalized by
// grammar, not by being a name).
func capitalizedRuns(sentence string) []string {
	words := strings.Fields(sentence)
	var runs []string
	var current []string

	flush := func(startIdx int) {
		if len(current) == 0 {
			return
		}
		if startIdx == 0 && len(current) == 1 {
			current = nil
			return
		}
		runs = append(runs, strings.Join(current, " "))
		current = nil
	}

	runStart := -1
	for i, word := range words {
		trimmed := strings.TrimFunc(word, func(r rune) bool {
			return !unicode.IsLetter(r) && !unicode.IsNumber(r)
		})
		if trimmed != "" && unicode.IsUpper([]rune(trimmed)[0]) {
			if len(current) == 0 {
				runStart = i
			}
			current = append(current, trimmed)
			continue
		}
		flush(runStart)
	}
	flush(runStart)
	return runs
}
