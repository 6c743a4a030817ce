package adapters

import (
	"context"
	"fmt"
	"math/rand"
	"strings"

	"ai-junction/internal/models"
)

const ExampleBotModule = "example_bot"

var exampleBotTemplates = []string{
	"I understand you're saying something about %s.",
	"Interesting point about %s.",
	"Tell me more about %s.",
}

// ExampleBot is a self-contained demonstration module. It upper-cases input,
// answers from canned templates and combines both on Execute.
type ExampleBot struct {
	pick func(n int) int
}

func NewExampleBot(_ context.Context, _ models.BackendDescriptor) (Adapter, error) {
	return &ExampleBot{pick: rand.Intn}, nil
}

func (b *ExampleBot) ProcessInput(_ context.Context, req models.AnalyzedRequest) (any, error) {
	return map[string]any{"processed": strings.ToUpper(req.OriginalInput)}, nil
}

func (b *ExampleBot) GenerateResponse(_ context.Context, req models.AnalyzedRequest) (any, error) {
	topic := "that"
	if len(req.Keywords) > 0 {
		topic = req.Keywords[0]
	}
	return fmt.Sprintf(exampleBotTemplates[b.pick(len(exampleBotTemplates))], topic), nil
}

func (b *ExampleBot) Execute(ctx context.Context, req models.AnalyzedRequest) (any, error) {
	processed, err := b.ProcessInput(ctx, req)
	if err != nil {
		return nil, err
	}
	response, err := b.GenerateResponse(ctx, req)
	if err != nil {
		return nil, err
	}
	return map[string]any{"processed": processed, "response": response}, nil
}
