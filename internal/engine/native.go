package engine

// Token is a native vocabulary token id.
type Token int32

// native abstracts the slice of the llama.cpp surface the engine needs.
// The real implementation binds yzma behind the 'llama' build tag; default
// builds compile a stub that refuses to load models, keeping CI CGO- and
// native-library-free. Tests substitute their own implementation.
//
// Handles are opaque: whatever LoadModel/NewContext/NewSampler return is
// passed back unchanged to the other methods.
type native interface {
	// Init performs one-time backend initialization. Idempotent.
	Init() error

	// LoadModel builds a model from a GGUF file. gpuLayers -1 offloads all.
	LoadModel(path string, gpuLayers int) (any, error)
	// NewContext builds an inference context over model.
	NewContext(model any, ctxTokens, threads int) (any, error)
	// NewSampler builds the sampling pipeline: temperature, then top-K,
	// then top-P, then the final categorical draw.
	NewSampler(model any, temperature float32, topK int, topP float32) (any, error)

	FreeModel(model any)
	FreeContext(lctx any)
	FreeSampler(sampler any)

	// Tokenize converts text to tokens, optionally prefixing the
	// beginning-of-sequence marker.
	Tokenize(model any, text string, addBOS bool) []Token
	// ResetContext clears the key/value cache so the next decode starts a
	// fresh conversation.
	ResetContext(lctx any)
	// Decode submits tokens for evaluation. Returns 0 on success.
	Decode(lctx any, tokens []Token) int
	// Sample draws the next token from the current distribution.
	Sample(sampler, lctx any) Token
	// IsEOG reports whether token ends generation for this vocabulary.
	IsEOG(model any, tok Token) bool
	// Piece converts a token to its text fragment. May be empty.
	Piece(model any, tok Token) string
}
