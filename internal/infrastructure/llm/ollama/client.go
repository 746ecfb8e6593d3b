package ollama

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/kirillkom/koi-classifier/internal/infrastructure/resilience"
)

type Client struct {
	baseURL    string
	model      string
	maxTokens  int
	httpClient *http.Client
	executor   *resilience.Executor
}

type Options struct {
	MaxTokens          int
	Timeout            time.Duration
	ResilienceExecutor *resilience.Executor
}

func New(baseURL, model string, options Options) *Client {
	timeout := options.Timeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		model:      model,
		maxTokens:  options.MaxTokens,
		httpClient: &http.Client{Timeout: timeout},
		executor:   options.ResilienceExecutor,
	}
}

// Generator answers free-text prompts with a single non-streaming completion.
type Generator struct {
	client *Client
}

func NewGenerator(client *Client) *Generator {
	return &Generator{client: client}
}

func (g *Generator) GenerateFromPrompt(ctx context.Context, prompt string) (string, error) {
	return g.client.generate(ctx, prompt)
}
