package domain

import "context"

// ContentRequest asks an external generator for natural-language text.
type ContentRequest struct {
	Prompt      string
	MaxTokens   int
	Temperature float64
}

// ContentResponse is the generated text.
type ContentResponse struct {
	Content string
}

// ContentGenerator produces natural-language text. Implementations may fail
// or time out; callers are expected to degrade gracefully.
type ContentGenerator interface {
	GenerateContent(ctx context.Context, req ContentRequest) (*ContentResponse, error)
}
