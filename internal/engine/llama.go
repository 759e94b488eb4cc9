package engine

import (
	"context"
	"fmt"
	"os"
	"runtime"
	"strings"
	"sync"
	"unicode"

	"github.com/rs/zerolog"
)

// Config holds the native runtime tunables for the llama engine.
// Zero values are replaced by defaults in NewLlama.
type Config struct {
	// ContextTokens is the token window size of the inference context.
	ContextTokens int
	// GPULayers is the GPU offload layer count; -1 offloads all layers.
	GPULayers int
	// Threads is the CPU thread count for decode.
	Threads int
	// Sampling pipeline parameters, applied in order: temperature, top-K,
	// top-P, final draw.
	Temperature float32
	TopK        int
	TopP        float32
}

// DefaultConfig returns settings sized for constrained hardware.
func DefaultConfig() Config {
	threads := runtime.NumCPU() / 2
	if threads < 4 {
		threads = 4
	}
	if threads > 8 {
		threads = 8
	}
	return Config{
		ContextTokens: 2048,
		GPULayers:     -1,
		Threads:       threads,
		Temperature:   0.7,
		TopK:          40,
		TopP:          0.9,
	}
}

// classifyInputLimit caps how much of the input text goes into the
// classification prompt.
const classifyInputLimit = 1000

// classifyTokenBudget bounds the classification completion; a category name
// fits in far fewer tokens.
const classifyTokenBudget = 12

// Llama serves a quantized GGUF model as an autoregressive token generator.
//
// One mutex serializes every call that touches the native handle: the
// underlying model/context/sampler are not safe for concurrent access, so
// concurrent callers queue rather than race.
type Llama struct {
	cfg Config
	nat native
	log zerolog.Logger

	// mu guards the handle triad below; it is either fully populated or
	// fully empty, never partial.
	mu      sync.Mutex
	model   any
	lctx    any
	sampler any
	path    string
}

// NewLlama constructs an unloaded llama engine.
func NewLlama(cfg Config, log zerolog.Logger) *Llama {
	def := DefaultConfig()
	if cfg.ContextTokens <= 0 {
		cfg.ContextTokens = def.ContextTokens
	}
	if cfg.GPULayers == 0 {
		cfg.GPULayers = def.GPULayers
	}
	if cfg.Threads <= 0 {
		cfg.Threads = def.Threads
	}
	if cfg.Temperature <= 0 {
		cfg.Temperature = def.Temperature
	}
	if cfg.TopK <= 0 {
		cfg.TopK = def.TopK
	}
	if cfg.TopP <= 0 {
		cfg.TopP = def.TopP
	}
	return &Llama{cfg: cfg, nat: newNative(), log: log}
}

// Available reports whether model, context and sampler are all loaded.
func (l *Llama) Available() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.loadedLocked()
}

func (l *Llama) loadedLocked() bool {
	return l.model != nil && l.lctx != nil && l.sampler != nil
}

// LoadedPath returns the path of the currently loaded model file, or "".
func (l *Llama) LoadedPath() string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.path
}

// LoadModel tears down any existing handle, then builds a fresh one from
// the GGUF file at path: model, then context, then sampler, each depending
// on the previous. On any failure everything built so far is freed, so the
// handle is never observable half-initialized.
func (l *Llama) LoadModel(path string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.teardownLocked()

	if _, err := os.Stat(path); err != nil {
		return ErrModelNotFound(path)
	}
	if err := l.nat.Init(); err != nil {
		return ErrModelLoadFailed(path, err.Error())
	}

	model, err := l.nat.LoadModel(path, l.cfg.GPULayers)
	if err != nil || model == nil {
		detail := "native load returned null"
		if err != nil {
			detail = err.Error()
		}
		loadFailures.Inc()
		return ErrModelLoadFailed(path, detail)
	}

	lctx, err := l.nat.NewContext(model, l.cfg.ContextTokens, l.cfg.Threads)
	if err != nil || lctx == nil {
		// A context failure would otherwise orphan the freshly loaded model.
		l.nat.FreeModel(model)
		loadFailures.Inc()
		return ErrContextCreationFailed()
	}

	sampler, err := l.nat.NewSampler(model, l.cfg.Temperature, l.cfg.TopK, l.cfg.TopP)
	if err != nil || sampler == nil {
		l.nat.FreeContext(lctx)
		l.nat.FreeModel(model)
		loadFailures.Inc()
		return ErrModelLoadFailed(path, "sampler chain init failed")
	}

	l.model = model
	l.lctx = lctx
	l.sampler = sampler
	l.path = path
	loadsTotal.Inc()
	l.log.Info().Str("path", path).Int("ctx_tokens", l.cfg.ContextTokens).Msg("model loaded")
	return nil
}

// Unload destroys the handle in reverse creation order: sampler, context,
// model. No-op when nothing is loaded.
func (l *Llama) Unload() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.teardownLocked()
}

func (l *Llama) teardownLocked() {
	if l.sampler != nil {
		l.nat.FreeSampler(l.sampler)
		l.sampler = nil
	}
	if l.lctx != nil {
		l.nat.FreeContext(l.lctx)
		l.lctx = nil
	}
	if l.model != nil {
		l.nat.FreeModel(l.model)
		l.model = nil
	}
	l.path = ""
}

// Generate streams the completion for prompt to onToken. The stream always
// terminates; internal failures end it early and silently.
func (l *Llama) Generate(ctx context.Context, prompt string, maxTokens int, onToken func(string) error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if err := l.generateLocked(ctx, prompt, maxTokens, onToken); err != nil {
		// Absorbed: callers treat an empty stream as "no AI output".
		l.log.Debug().Err(err).Msg("generation ended early")
	}
}

func (l *Llama) generateLocked(ctx context.Context, prompt string, maxTokens int, onToken func(string) error) error {
	if !l.loadedLocked() {
		return ErrEngineUnavailable()
	}
	generationsTotal.Inc()

	toks := l.nat.Tokenize(l.model, prompt, true)
	if len(toks) == 0 {
		return ErrTokenizationFailed("prompt produced no tokens")
	}
	if len(toks) >= l.cfg.ContextTokens {
		return ErrTokenizationFailed(fmt.Sprintf("prompt length %d exceeds context window %d", len(toks), l.cfg.ContextTokens))
	}

	// Fresh conversation every call: no cross-call context bleed.
	l.nat.ResetContext(l.lctx)

	if rc := l.nat.Decode(l.lctx, toks); rc != 0 {
		return ErrDecodeFailed(rc)
	}

	for i := 0; i < maxTokens; i++ {
		tok := l.nat.Sample(l.sampler, l.lctx)
		if ctx.Err() != nil {
			return nil
		}
		if l.nat.IsEOG(l.model, tok) {
			return nil
		}
		if piece := l.nat.Piece(l.model, tok); piece != "" {
			tokensEmitted.Inc()
			if err := onToken(piece); err != nil {
				return nil
			}
		}
		if rc := l.nat.Decode(l.lctx, []Token{tok}); rc != 0 {
			return ErrDecodeFailed(rc)
		}
	}
	return nil
}

// Classify asks the model to name exactly one of categories for text.
func (l *Llama) Classify(ctx context.Context, text string, categories []string) (string, error) {
	if len(categories) == 0 {
		return "", ErrNoCategories()
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if !l.loadedLocked() {
		return "", ErrEngineUnavailable()
	}

	prompt := classifyPrompt(text, categories)
	var b strings.Builder
	err := l.generateLocked(ctx, prompt, classifyTokenBudget, func(piece string) error {
		b.WriteString(piece)
		return nil
	})
	if err != nil {
		l.log.Debug().Err(err).Msg("classification generation failed")
	}
	raw := b.String()
	if cat, ok := matchCategory(raw, categories); ok {
		return cat, nil
	}
	return "", ErrClassificationFailed(raw)
}

// Embed always fails: this engine has no embedding capability, the vector
// index owns that path.
func (l *Llama) Embed(context.Context, string) ([]float32, error) {
	return nil, ErrEngineUnavailable()
}

func classifyPrompt(text string, categories []string) string {
	r := []rune(text)
	if len(r) > classifyInputLimit {
		r = r[:classifyInputLimit]
	}
	return fmt.Sprintf(
		"Classify the following email into exactly one of these categories: %s.\n"+
			"Respond with only the category name.\n\nEmail:\n%s\n\nCategory:",
		strings.Join(categories, ", "), string(r))
}

// matchCategory normalizes the raw response (trim, lower-case; punctuation
// is irrelevant to the substring check) and returns the first category that
// appears in it.
func matchCategory(raw string, categories []string) (string, bool) {
	norm := strings.ToLower(strings.TrimSpace(raw))
	norm = strings.TrimFunc(norm, unicode.IsPunct)
	for _, cat := range categories {
		if strings.Contains(norm, strings.ToLower(cat)) {
			return cat, true
		}
	}
	return "", false
}
