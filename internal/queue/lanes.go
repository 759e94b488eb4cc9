package queue

import (
	"context"
	"strings"

	"mailmind/internal/engine"
	"mailmind/pkg/types"
)

// DefaultCategories are the inbox buckets offered to the generative lane.
var DefaultCategories = []string{"primary", "promotions", "social", "updates"}

// EngineSource yields the engine serving the generative lane. The resolver
// satisfies it.
type EngineSource interface {
	Resolve() engine.Engine
}

// EngineCategorizer categorizes messages through whichever engine tier the
// source resolves. It inherits the engine's degradation behavior: with the
// fallback tier every message lands in the first category.
type EngineCategorizer struct {
	source     EngineSource
	categories []string
}

func NewEngineCategorizer(source EngineSource, categories []string) *EngineCategorizer {
	if len(categories) == 0 {
		categories = DefaultCategories
	}
	return &EngineCategorizer{source: source, categories: categories}
}

func (c *EngineCategorizer) Categorize(ctx context.Context, msg types.Message) (string, error) {
	text := msg.Subject
	if msg.Snippet != "" {
		text += "\n" + msg.Snippet
	}
	return c.source.Resolve().Classify(ctx, text, c.categories)
}

// spamMarkers are substrings that flag a message in the lightweight lane.
// Matching is lowercase containment over subject plus snippet.
var spamMarkers = []string{
	"winner",
	"free money",
	"lottery",
	"act now",
	"limited time offer",
	"claim your prize",
	"wire transfer",
	"crypto giveaway",
}

// KeywordSpamChecker is the lightweight lane: a read-only keyword scan,
// safe for concurrent use and independent of any engine tier.
type KeywordSpamChecker struct {
	markers []string
}

func NewKeywordSpamChecker() *KeywordSpamChecker {
	return &KeywordSpamChecker{markers: spamMarkers}
}

func (k *KeywordSpamChecker) IsSpam(_ context.Context, msg types.Message) (bool, error) {
	text := strings.ToLower(msg.Subject + " " + msg.Snippet)
	for _, m := range k.markers {
		if strings.Contains(text, m) {
			return true, nil
		}
	}
	return false, nil
}
