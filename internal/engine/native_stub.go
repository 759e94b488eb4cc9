//go:build !llama

package engine

import "errors"

// stubNative is compiled when the 'llama' build tag is not set. It keeps
// default builds free of native libraries: loading always fails, so the
// resolver falls through to the no-op tier instead of mocking inference.
type stubNative struct{}

func newNative() native { return stubNative{} }

var errNotBuilt = errors.New("llama support not built (missing 'llama' build tag)")

func (stubNative) Init() error { return errNotBuilt }

func (stubNative) LoadModel(string, int) (any, error) { return nil, errNotBuilt }

func (stubNative) NewContext(any, int, int) (any, error) { return nil, errNotBuilt }

func (stubNative) NewSampler(any, float32, int, float32) (any, error) { return nil, errNotBuilt }

func (stubNative) FreeModel(any)   {}
func (stubNative) FreeContext(any) {}
func (stubNative) FreeSampler(any) {}

func (stubNative) Tokenize(any, string, bool) []Token { return nil }

func (stubNative) ResetContext(any) {}

func (stubNative) Decode(any, []Token) int { return 1 }

func (stubNative) Sample(any, any) Token { return 0 }

func (stubNative) IsEOG(any, Token) bool { return true }

func (stubNative) Piece(any, Token) string { return "" }
