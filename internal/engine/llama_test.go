package engine

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
)

// fakeNative scripts the native binding so the decode loop and handle
// lifecycle can be exercised without a real model.
type fakeNative struct {
	events []string

	initErr    error
	loadErr    error
	ctxErr     error
	samplerErr error

	tokenize func(text string) []Token

	// script is the sequence of tokens Sample returns; eog marks
	// end-of-generation.
	script    []Token
	sampleIdx int
	eog       Token
	pieces    map[Token]string

	resets         int
	decodeCalls    int
	decodeFailAt   int // 1-based decode call index that fails; 0 = never
	decodedBatches [][]Token
}

func (f *fakeNative) Init() error { return f.initErr }

func (f *fakeNative) LoadModel(path string, gpuLayers int) (any, error) {
	if f.loadErr != nil {
		return nil, f.loadErr
	}
	f.events = append(f.events, "load model")
	return "model", nil
}

func (f *fakeNative) NewContext(model any, ctxTokens, threads int) (any, error) {
	if f.ctxErr != nil {
		return nil, f.ctxErr
	}
	f.events = append(f.events, "new context")
	return "ctx", nil
}

func (f *fakeNative) NewSampler(model any, temperature float32, topK int, topP float32) (any, error) {
	if f.samplerErr != nil {
		return nil, f.samplerErr
	}
	f.events = append(f.events, "new sampler")
	return "sampler", nil
}

func (f *fakeNative) FreeModel(any)   { f.events = append(f.events, "free model") }
func (f *fakeNative) FreeContext(any) { f.events = append(f.events, "free context") }
func (f *fakeNative) FreeSampler(any) { f.events = append(f.events, "free sampler") }

func (f *fakeNative) Tokenize(_ any, text string, _ bool) []Token {
	if f.tokenize != nil {
		return f.tokenize(text)
	}
	if text == "" {
		return nil
	}
	return []Token{1, 2, 3}
}

func (f *fakeNative) ResetContext(any) { f.resets++ }

func (f *fakeNative) Decode(_ any, tokens []Token) int {
	f.decodeCalls++
	cp := make([]Token, len(tokens))
	copy(cp, tokens)
	f.decodedBatches = append(f.decodedBatches, cp)
	if f.decodeFailAt > 0 && f.decodeCalls >= f.decodeFailAt {
		return -1
	}
	return 0
}

func (f *fakeNative) Sample(_, _ any) Token {
	if f.sampleIdx >= len(f.script) {
		return f.eog
	}
	t := f.script[f.sampleIdx]
	f.sampleIdx++
	return t
}

func (f *fakeNative) IsEOG(_ any, tok Token) bool { return tok == f.eog }

func (f *fakeNative) Piece(_ any, tok Token) string { return f.pieces[tok] }

func newTestLlama(t *testing.T, f *fakeNative) (*Llama, string) {
	t.Helper()
	l := NewLlama(Config{ContextTokens: 8}, zerolog.Nop())
	l.nat = f
	path := filepath.Join(t.TempDir(), "model.gguf")
	if err := os.WriteFile(path, []byte("gguf"), 0o644); err != nil {
		t.Fatal(err)
	}
	return l, path
}

func collect(l *Llama, prompt string, maxTokens int) []string {
	var out []string
	l.Generate(context.Background(), prompt, maxTokens, func(p string) error {
		out = append(out, p)
		return nil
	})
	return out
}

func TestLoadModelMissingFile(t *testing.T) {
	l := NewLlama(Config{}, zerolog.Nop())
	l.nat = &fakeNative{}
	err := l.LoadModel(filepath.Join(t.TempDir(), "absent.gguf"))
	if !IsModelNotFound(err) {
		t.Fatalf("expected model-not-found, got %v", err)
	}
	if l.Available() {
		t.Fatal("engine must not report available after failed load")
	}
}

func TestLoadModelOrderAndPath(t *testing.T) {
	f := &fakeNative{}
	l, path := newTestLlama(t, f)
	if err := l.LoadModel(path); err != nil {
		t.Fatalf("load: %v", err)
	}
	want := []string{"load model", "new context", "new sampler"}
	if len(f.events) != 3 {
		t.Fatalf("events: %v", f.events)
	}
	for i, e := range want {
		if f.events[i] != e {
			t.Fatalf("creation order: %v", f.events)
		}
	}
	if !l.Available() {
		t.Fatal("expected available after load")
	}
	if l.LoadedPath() != path {
		t.Fatalf("loaded path %q, want %q", l.LoadedPath(), path)
	}
}

func TestLoadModelContextFailureFreesModel(t *testing.T) {
	f := &fakeNative{ctxErr: errors.New("no memory")}
	l, path := newTestLlama(t, f)
	err := l.LoadModel(path)
	if !IsContextCreationFailed(err) {
		t.Fatalf("expected context-creation-failed, got %v", err)
	}
	// The model handle must not be orphaned by the context failure.
	last := f.events[len(f.events)-1]
	if last != "free model" {
		t.Fatalf("expected trailing free model, events: %v", f.events)
	}
	if l.Available() {
		t.Fatal("engine must be fully absent after partial load failure")
	}
}

func TestLoadModelNativeRefusal(t *testing.T) {
	f := &fakeNative{loadErr: errors.New("bad magic")}
	l, path := newTestLlama(t, f)
	err := l.LoadModel(path)
	if !IsModelLoadFailed(err) {
		t.Fatalf("expected model-load-failed, got %v", err)
	}
}

func TestReloadTearsDownPreviousHandle(t *testing.T) {
	f := &fakeNative{}
	l, path := newTestLlama(t, f)
	if err := l.LoadModel(path); err != nil {
		t.Fatal(err)
	}
	f.events = nil
	if err := l.LoadModel(path); err != nil {
		t.Fatal(err)
	}
	want := []string{"free sampler", "free context", "free model", "load model", "new context", "new sampler"}
	if len(f.events) != len(want) {
		t.Fatalf("events: %v", f.events)
	}
	for i, e := range want {
		if f.events[i] != e {
			t.Fatalf("teardown/rebuild order: %v", f.events)
		}
	}
}

func TestUnloadIdempotent(t *testing.T) {
	f := &fakeNative{}
	l, path := newTestLlama(t, f)
	l.Unload() // nothing loaded: no-op
	if len(f.events) != 0 {
		t.Fatalf("unexpected frees: %v", f.events)
	}
	if err := l.LoadModel(path); err != nil {
		t.Fatal(err)
	}
	f.events = nil
	l.Unload()
	l.Unload()
	want := []string{"free sampler", "free context", "free model"}
	if len(f.events) != len(want) {
		t.Fatalf("double unload must free once: %v", f.events)
	}
	if l.LoadedPath() != "" {
		t.Fatal("path must be cleared on unload")
	}
}

func TestGenerateUnloadedIsEmpty(t *testing.T) {
	l := NewLlama(Config{}, zerolog.Nop())
	l.nat = &fakeNative{}
	if out := collect(l, "hello", 10); len(out) != 0 {
		t.Fatalf("expected empty stream, got %v", out)
	}
}

func TestGenerateEmptyPrompt(t *testing.T) {
	f := &fakeNative{}
	l, path := newTestLlama(t, f)
	if err := l.LoadModel(path); err != nil {
		t.Fatal(err)
	}
	if out := collect(l, "", 20); len(out) != 0 {
		t.Fatalf("empty prompt must yield empty stream, got %v", out)
	}
	if f.decodeCalls != 0 {
		t.Fatal("no decode should happen for an untokenizable prompt")
	}
}

func TestGeneratePromptExceedsWindow(t *testing.T) {
	f := &fakeNative{tokenize: func(string) []Token {
		toks := make([]Token, 8) // equals the configured window: rejected
		return toks
	}}
	l, path := newTestLlama(t, f)
	if err := l.LoadModel(path); err != nil {
		t.Fatal(err)
	}
	if out := collect(l, "long", 5); len(out) != 0 {
		t.Fatalf("expected empty stream, got %v", out)
	}
}

func TestGenerateStream(t *testing.T) {
	f := &fakeNative{
		script: []Token{10, 11, 12},
		eog:    99,
		pieces: map[Token]string{10: "Hel", 11: "lo", 12: "!"},
	}
	l, path := newTestLlama(t, f)
	if err := l.LoadModel(path); err != nil {
		t.Fatal(err)
	}
	out := collect(l, "hi", 16)
	if got := len(out); got != 3 {
		t.Fatalf("expected 3 pieces, got %v", out)
	}
	if out[0]+out[1]+out[2] != "Hello!" {
		t.Fatalf("pieces: %v", out)
	}
	if f.resets != 1 {
		t.Fatalf("KV cache must be cleared once per pass, got %d", f.resets)
	}
	// Prompt decoded once as a batch, then one decode per sampled token.
	if len(f.decodedBatches) != 4 {
		t.Fatalf("decode batches: %v", f.decodedBatches)
	}
	if len(f.decodedBatches[0]) != 3 {
		t.Fatalf("prompt must be submitted as one batch: %v", f.decodedBatches[0])
	}
	for _, b := range f.decodedBatches[1:] {
		if len(b) != 1 {
			t.Fatalf("generated tokens must decode one at a time: %v", f.decodedBatches)
		}
	}
}

func TestGenerateFreshConversationPerCall(t *testing.T) {
	f := &fakeNative{eog: 99}
	l, path := newTestLlama(t, f)
	if err := l.LoadModel(path); err != nil {
		t.Fatal(err)
	}
	collect(l, "a", 4)
	collect(l, "b", 4)
	if f.resets != 2 {
		t.Fatalf("each call must reset the KV cache, got %d resets", f.resets)
	}
}

func TestGenerateBoundedByMaxTokens(t *testing.T) {
	script := make([]Token, 100)
	pieces := map[Token]string{}
	for i := range script {
		script[i] = Token(200 + i)
		pieces[script[i]] = "x"
	}
	f := &fakeNative{script: script, eog: 99, pieces: pieces}
	l, path := newTestLlama(t, f)
	if err := l.LoadModel(path); err != nil {
		t.Fatal(err)
	}
	if out := collect(l, "hi", 5); len(out) != 5 {
		t.Fatalf("expected 5 pieces, got %d", len(out))
	}
}

func TestGenerateStopsOnCancellation(t *testing.T) {
	f := &fakeNative{
		script: []Token{10, 11, 12},
		eog:    99,
		pieces: map[Token]string{10: "a", 11: "b", 12: "c"},
	}
	l, path := newTestLlama(t, f)
	if err := l.LoadModel(path); err != nil {
		t.Fatal(err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	var out []string
	l.Generate(ctx, "hi", 16, func(p string) error {
		out = append(out, p)
		cancel() // requested mid-stream; observed at the next token checkpoint
		return nil
	})
	if len(out) != 1 {
		t.Fatalf("expected stream to stop after cancellation, got %v", out)
	}
}

func TestGenerateDecodeFailureEndsStreamSilently(t *testing.T) {
	f := &fakeNative{
		script:       []Token{10, 11, 12},
		eog:          99,
		pieces:       map[Token]string{10: "a", 11: "b", 12: "c"},
		decodeFailAt: 3, // prompt batch ok, first token ok, second token fails
	}
	l, path := newTestLlama(t, f)
	if err := l.LoadModel(path); err != nil {
		t.Fatal(err)
	}
	out := collect(l, "hi", 16)
	if len(out) != 2 {
		t.Fatalf("expected partial stream then silent stop, got %v", out)
	}
}

func TestGenerateSkipsEmptyPieces(t *testing.T) {
	f := &fakeNative{
		script: []Token{10, 11},
		eog:    99,
		pieces: map[Token]string{10: "", 11: "ok"},
	}
	l, path := newTestLlama(t, f)
	if err := l.LoadModel(path); err != nil {
		t.Fatal(err)
	}
	out := collect(l, "hi", 16)
	if len(out) != 1 || out[0] != "ok" {
		t.Fatalf("empty pieces must never be emitted: %v", out)
	}
}

func TestClassifyNoCategories(t *testing.T) {
	f := &fakeNative{}
	l, path := newTestLlama(t, f)
	if err := l.LoadModel(path); err != nil {
		t.Fatal(err)
	}
	if _, err := l.Classify(context.Background(), "text", nil); !IsNoCategories(err) {
		t.Fatalf("expected no-categories, got %v", err)
	}
}

func TestClassifyUnloaded(t *testing.T) {
	l := NewLlama(Config{}, zerolog.Nop())
	l.nat = &fakeNative{}
	_, err := l.Classify(context.Background(), "text", []string{"a"})
	if !IsEngineUnavailable(err) {
		t.Fatalf("expected engine-unavailable, got %v", err)
	}
}

func TestClassifyNormalizesResponse(t *testing.T) {
	f := &fakeNative{
		script: []Token{10},
		eog:    99,
		pieces: map[Token]string{10: "Promotions."},
	}
	l, path := newTestLlama(t, f)
	if err := l.LoadModel(path); err != nil {
		t.Fatal(err)
	}
	got, err := l.Classify(context.Background(), "urgent sale", []string{"promotions", "primary"})
	if err != nil {
		t.Fatalf("classify: %v", err)
	}
	if got != "promotions" {
		t.Fatalf("got %q", got)
	}
}

func TestClassifyNoMatchCarriesRaw(t *testing.T) {
	f := &fakeNative{
		script: []Token{10},
		eog:    99,
		pieces: map[Token]string{10: "I cannot decide"},
	}
	l, path := newTestLlama(t, f)
	if err := l.LoadModel(path); err != nil {
		t.Fatal(err)
	}
	_, err := l.Classify(context.Background(), "text", []string{"primary", "updates"})
	if !IsClassificationFailed(err) {
		t.Fatalf("expected classification-failed, got %v", err)
	}
	if raw, ok := ClassificationRaw(err); !ok || raw != "I cannot decide" {
		t.Fatalf("raw response not carried: %q %v", raw, ok)
	}
}

func TestClassifyTruncatesInput(t *testing.T) {
	var sawPrompt string
	f := &fakeNative{
		tokenize: func(text string) []Token {
			sawPrompt = text
			return []Token{1}
		},
		eog: 99,
	}
	l, path := newTestLlama(t, f)
	if err := l.LoadModel(path); err != nil {
		t.Fatal(err)
	}
	long := make([]byte, 5000)
	for i := range long {
		long[i] = 'a'
	}
	_, _ = l.Classify(context.Background(), string(long), []string{"primary"})
	if len(sawPrompt) > 1500 {
		t.Fatalf("input not truncated, prompt length %d", len(sawPrompt))
	}
}

func TestEmbedUnavailable(t *testing.T) {
	f := &fakeNative{}
	l, path := newTestLlama(t, f)
	if err := l.LoadModel(path); err != nil {
		t.Fatal(err)
	}
	if _, err := l.Embed(context.Background(), "text"); !IsEngineUnavailable(err) {
		t.Fatalf("expected engine-unavailable, got %v", err)
	}
}
