package llm

import (
	"context"
	"errors"

	"github.com/felixgeelhaar/pathway/internal/domain"
)

// feedbackSystemPrompt frames every content request as learner feedback.
const feedbackSystemPrompt = "You are a supportive learning coach. Reply with concise, encouraging feedback addressed directly to the learner."

// ContentGenerator adapts a Provider to domain.ContentGenerator.
type ContentGenerator struct {
	provider Provider
	system   string
}

// NewContentGenerator creates a ContentGenerator over provider.
func NewContentGenerator(provider Provider) *ContentGenerator {
	return &ContentGenerator{provider: provider, system: feedbackSystemPrompt}
}

// GenerateContent implements domain.ContentGenerator.
func (g *ContentGenerator) GenerateContent(ctx context.Context, req domain.ContentRequest) (*domain.ContentResponse, error) {
	if g.provider == nil {
		return nil, errors.New("no content provider configured")
	}
	resp, err := g.provider.Generate(ctx, &Request{
		System:      g.system,
		Messages:    []Message{{Role: RoleUser, Content: req.Prompt}},
		MaxTokens:   req.MaxTokens,
		Temperature: req.Temperature,
	})
	if err != nil {
		return nil, err
	}
	return &domain.ContentResponse{Content: resp.Content}, nil
}

var _ domain.ContentGenerator = (*ContentGenerator)(nil)
