package engine

import (
	"fmt"

	"github.com/portraitforge/portraitforge/internal/core"
)

// Strategy declares how a category is generated.
type Strategy struct {
	Category    core.Category
	Parallelism int
	Quorum      int
	PromptSlug  string
}

var strategies = [...]Strategy{
	{Category: core.CategoryAgeProgression, Parallelism: 4, Quorum: 3, PromptSlug: "age-progression"},
	{Category: core.CategoryAppearance, Parallelism: 1, Quorum: 1, PromptSlug: "appearance"},
}

// StrategyFor returns the fixed strategy for category.
func StrategyFor(category core.Category) (Strategy, error) {
	for _, strategy := range strategies {
		if strategy.Category == category {
			return strategy, nil
		}
	}
	return Strategy{}, &core.Error{
		Kind:    core.KindUnsupportedCategory,
		Message: fmt.Sprintf("unsupported category %q", category),
	}
}

// Strategies returns every strategy in table order.
func Strategies() []Strategy {
	result := make([]Strategy, len(strategies))
	copy(result, strategies[:])
	return result
}

// Requests builds one request per slot sharing the same subject payload and prompt.
func (s Strategy) Requests(subjectRef, mimeType, imageBase64, prompt string) []*core.GenerationRequest {
	requests := make([]*core.GenerationRequest, s.Parallelism)
	for i := range requests {
		requests[i] = &core.GenerationRequest{
			SubjectRef:    subjectRef,
			MimeType:      mimeType,
			ImageBase64:   imageBase64,
			Prompt:        prompt,
			SequenceIndex: i,
			Category:      s.Category,
		}
	}
	return requests
}

// Tolerance is the number of slots that may fail without breaking quorum.
func (s Strategy) Tolerance() int {
	return s.Parallelism - s.Quorum
}
