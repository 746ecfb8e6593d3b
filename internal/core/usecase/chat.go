package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/kirillkom/koi-classifier/internal/core/domain"
	"github.com/kirillkom/koi-classifier/internal/core/ports"
)

const chatFallbackAnswer = "I'm not sure how to answer that. Could you rephrase your question?"

type ChatUseCase struct {
	generator ports.AnswerGenerator
}

func NewChatUseCase(generator ports.AnswerGenerator) *ChatUseCase {
	return &ChatUseCase{generator: generator}
}

func (uc *ChatUseCase) Ask(ctx context.Context, req domain.ChatRequest) (*domain.ChatAnswer, error) {
	message := strings.TrimSpace(req.Message)
	if message == "" {
		return nil, domain.WrapError(domain.ErrInvalidInput, "chat", errors.New("message is required"))
	}
	planet := strings.TrimSpace(req.Planet)

	raw, err := uc.generator.GenerateFromPrompt(ctx, chatPrompt(message, planet))
	if err != nil {
		return nil, fmt.Errorf("generate chat answer: %w", err)
	}

	content := trimToSentence(raw)
	if content == "" {
		content = chatFallbackAnswer
	}
	return &domain.ChatAnswer{Content: content, Planet: planet}, nil
}

func chatPrompt(message, planet string) string {
	if planet != "" {
		return fmt.Sprintf("Question about exoplanet %s: %s\nAnswer:", planet, message)
	}
	return fmt.Sprintf("Question: %s\nAnswer:", message)
}

// trimToSentence drops a trailing partial sentence left by a bounded generation.
// Text without any sentence end past its first character is kept whole.
func trimToSentence(text string) string {
	text = strings.TrimSpace(text)
	if text == "" || strings.ContainsAny(text[len(text)-1:], ".!?") {
		return text
	}
	if end := strings.LastIndexAny(text, ".!?"); end > 0 {
		return text[:end+1]
	}
	return text
}
