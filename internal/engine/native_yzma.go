//go:build llama

package engine

import (
	"errors"
	"fmt"
	"os"
	"sync"

	"github.com/hybridgroup/yzma/pkg/llama"
)

// yzmaNative binds llama.cpp through yzma's purego FFI, so no CGO is needed:
// the prebuilt llama.cpp libraries are loaded at runtime from MAILMIND_LIB
// (default ./lib/llama).
type yzmaNative struct{}

func newNative() native { return yzmaNative{} }

var (
	backendOnce sync.Once
	backendErr  error
)

// yzmaModel bundles the model handle with its vocabulary so tokenize and
// piece lookups don't re-query it on every call.
type yzmaModel struct {
	model llama.Model
	vocab llama.Vocab
}

func (yzmaNative) Init() error {
	backendOnce.Do(func() {
		libPath := os.Getenv("MAILMIND_LIB")
		if libPath == "" {
			libPath = "./lib/llama"
		}
		if err := llama.Load(libPath); err != nil {
			backendErr = fmt.Errorf("load llama.cpp libraries from %s: %w", libPath, err)
			return
		}
		llama.Init()
	})
	return backendErr
}

func (yzmaNative) LoadModel(path string, gpuLayers int) (any, error) {
	params := llama.ModelDefaultParams()
	params.NGpuLayers = int32(gpuLayers)
	m, err := llama.ModelLoadFromFile(path, params)
	if err != nil {
		return nil, err
	}
	return &yzmaModel{model: m, vocab: llama.ModelGetVocab(m)}, nil
}

func (yzmaNative) NewContext(model any, ctxTokens, threads int) (any, error) {
	ym := model.(*yzmaModel)
	cp := llama.ContextDefaultParams()
	cp.NCtx = uint32(ctxTokens)
	cp.NBatch = uint32(ctxTokens)
	cp.NThreads = int32(threads)
	cp.NThreadsBatch = int32(threads)
	lctx, err := llama.InitFromModel(ym.model, cp)
	if err != nil {
		return nil, err
	}
	return lctx, nil
}

func (yzmaNative) NewSampler(model any, temperature float32, topK int, topP float32) (any, error) {
	ym := model.(*yzmaModel)
	// DefaultSamplers applies temperature, top-K and top-P before the final
	// draw; the seed comes from llama.cpp's default (process randomness).
	sp := llama.DefaultSamplerParams()
	sp.Temp = temperature
	sp.TopK = int32(topK)
	sp.TopP = topP
	s := llama.NewSampler(ym.model, llama.DefaultSamplers, sp)
	if s == 0 {
		return nil, errors.New("sampler chain init returned null")
	}
	return s, nil
}

func (yzmaNative) FreeModel(model any) {
	if ym, ok := model.(*yzmaModel); ok {
		llama.ModelFree(ym.model)
	}
}

func (yzmaNative) FreeContext(lctx any) {
	llama.Free(lctx.(llama.Context))
}

func (yzmaNative) FreeSampler(sampler any) {
	llama.SamplerFree(sampler.(llama.Sampler))
}

func (yzmaNative) Tokenize(model any, text string, addBOS bool) []Token {
	ym := model.(*yzmaModel)
	toks := llama.Tokenize(ym.vocab, text, addBOS, false)
	out := make([]Token, len(toks))
	for i, t := range toks {
		out[i] = Token(t)
	}
	return out
}

func (yzmaNative) ResetContext(lctx any) {
	llama.MemoryClear(llama.GetMemory(lctx.(llama.Context)), true)
}

func (yzmaNative) Decode(lctx any, tokens []Token) int {
	nat := make([]llama.Token, len(tokens))
	for i, t := range tokens {
		nat[i] = llama.Token(t)
	}
	// BatchGetOne returns a stack-allocated batch; it must not be freed.
	batch := llama.BatchGetOne(nat)
	rc, err := llama.Decode(lctx.(llama.Context), batch)
	if err != nil {
		if rc != 0 {
			return int(rc)
		}
		return 1
	}
	return 0
}

func (yzmaNative) Sample(sampler, lctx any) Token {
	return Token(llama.SamplerSample(sampler.(llama.Sampler), lctx.(llama.Context), -1))
}

func (yzmaNative) IsEOG(model any, tok Token) bool {
	ym := model.(*yzmaModel)
	return llama.VocabIsEOG(ym.vocab, llama.Token(tok))
}

func (yzmaNative) Piece(model any, tok Token) string {
	ym := model.(*yzmaModel)
	buf := make([]byte, 128)
	n := llama.TokenToPiece(ym.vocab, llama.Token(tok), buf, 0, true)
	if n <= 0 {
		return ""
	}
	return string(buf[:n])
}
