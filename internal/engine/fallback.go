package engine

import "context"

// Fallback is the last resolver tier: it degrades every operation
// gracefully so total engine failure disappears from the UI instead of
// breaking it. Classify returns the first offered category to keep calling
// code simple; Generate produces an empty stream; Embed an empty vector.
type Fallback struct{}

// NewFallback returns the no-op engine tier.
func NewFallback() Fallback { return Fallback{} }

func (Fallback) Available() bool { return false }

func (Fallback) Generate(context.Context, string, int, func(string) error) {}

func (Fallback) Classify(_ context.Context, _ string, categories []string) (string, error) {
	if len(categories) == 0 {
		return "", ErrNoCategories()
	}
	return categories[0], nil
}

func (Fallback) Embed(context.Context, string) ([]float32, error) {
	return []float32{}, nil
}

func (Fallback) Unload() {}
