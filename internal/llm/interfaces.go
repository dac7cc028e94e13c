package llm

import "context"

// LLM is the calling contract the pipeline depends on. Call returns the
// extracted reply text, or ok=false once all attempts are exhausted;
// callers must treat ok=false as "needs fallback text", never as an error.
type LLM interface {
	Call(ctx context.Context, req Request) (string, bool)
}

var _ LLM = (*Gateway)(nil)
