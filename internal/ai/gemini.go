package ai

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/generative-ai-go/genai"
	"golang.org/x/time/rate"
	"google.golang.org/api/option"
)

const defaultGeminiModel = "gemini-1.5-flash"

// GeminiGenerator calls Google's Gemini models.
type GeminiGenerator struct {
	client  *genai.Client
	model   *genai.GenerativeModel
	limiter *rate.Limiter
	logger  *slog.Logger
}

// NewGeminiGenerator creates a Gemini-backed generator. An empty apiKey is
// not an error here: the generator is returned unconfigured and Generate
// fails with ErrMissingAPIKey without touching the network.
func NewGeminiGenerator(ctx context.Context, logger *slog.Logger, apiKey, modelName string, requestsPerMinute int) (*GeminiGenerator, error) {
	g := &GeminiGenerator{logger: logger, limiter: newLimiter(requestsPerMinute)}
	if apiKey == "" {
		logger.Warn("GEMINI_API_KEY not set, analyses will use the deterministic fallback")
		return g, nil
	}

	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}
	if modelName == "" {
		modelName = defaultGeminiModel
	}
	model := client.GenerativeModel(modelName)
	model.SetTemperature(0.2)
	model.ResponseMIMEType = "application/json"

	g.client = client
	g.model = model
	logger.Info("Initialized Gemini generator", "model", modelName, "requestsPerMinute", requestsPerMinute)
	return g, nil
}

// Generate sends the prompt and concatenates the text parts of the first candidate.
func (g *GeminiGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	if g.model == nil {
		return "", ErrMissingAPIKey
	}
	if err := g.limiter.Wait(ctx); err != nil {
		return "", fmt.Errorf("rate limiter: %w", err)
	}

	resp, err := g.model.GenerateContent(ctx, genai.Text(prompt))
	if err != nil {
		return "", fmt.Errorf("failed to call Gemini API: %w", err)
	}
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return "", ErrEmptyResponse
	}

	var sb strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if text, ok := part.(genai.Text); ok {
			sb.WriteString(string(text))
		}
	}
	if sb.Len() == 0 {
		return "", ErrEmptyResponse
	}
	return sb.String(), nil
}

// Close releases the underlying client.
func (g *GeminiGenerator) Close() error {
	if g.client != nil {
		return g.client.Close()
	}
	return nil
}

func newLimiter(perMinute int) *rate.Limiter {
	if perMinute <= 0 {
		return rate.NewLimiter(rate.Inf, 1)
	}
	return rate.NewLimiter(rate.Every(time.Minute/time.Duration(perMinute)), 1)
}
