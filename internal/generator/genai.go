package generator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"google.golang.org/genai"

	"github.com/roach88/tether/internal/clock"
	"github.com/roach88/tether/internal/ir"
)

const (
	// SystemJSON is the system instruction sent with every request.
	SystemJSON = "You are a JSON-only extraction assistant. Reply ONLY with valid JSON."

	DefaultModel       = "gemini-2.5-flash"
	DefaultTemperature = 0.2
	DefaultMaxTokens   = 1024

	// DefaultPacing is the pause after each call, for rate limiting.
	DefaultPacing = 2 * time.Second
)

// contentGenerator is the slice of *genai.Models the generator uses.
type contentGenerator interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

// GenAI asks a Gemini model for JSON replies.
type GenAI struct {
	models      contentGenerator
	model       string
	system      string
	temperature float32
	maxTokens   int32
	pacing      time.Duration
	sleeper     clock.Sleeper
}

// GenAIOption configures a GenAI generator.
type GenAIOption func(*GenAI)

// WithModel selects the model. Empty keeps the default.
func WithModel(model string) GenAIOption {
	return func(g *GenAI) {
		if model != "" {
			g.model = model
		}
	}
}

// WithTemperature sets the sampling temperature.
func WithTemperature(t float64) GenAIOption {
	return func(g *GenAI) { g.temperature = float32(t) }
}

// WithMaxTokens caps the reply length. Non-positive values keep the default.
func WithMaxTokens(n int) GenAIOption {
	return func(g *GenAI) {
		if n > 0 {
			g.maxTokens = int32(n)
		}
	}
}

// WithPacing sets the pause after each call. Zero disables it.
func WithPacing(d time.Duration) GenAIOption {
	return func(g *GenAI) { g.pacing = d }
}

// WithSleeper replaces the sleeper used for pacing.
func WithSleeper(s clock.Sleeper) GenAIOption {
	return func(g *GenAI) { g.sleeper = s }
}

// WithSystemInstruction replaces SystemJSON.
func WithSystemInstruction(text string) GenAIOption {
	return func(g *GenAI) { g.system = text }
}

// NewGenAI creates a generator backed by the Gemini API.
func NewGenAI(ctx context.Context, apiKey string, opts ...GenAIOption) (*GenAI, error) {
	if apiKey == "" {
		return nil, errors.New("GenAI API key is required")
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create GenAI client: %w", err)
	}

	return newGenAI(client.Models, opts...), nil
}

func newGenAI(models contentGenerator, opts ...GenAIOption) *GenAI {
	g := &GenAI{
		models:      models,
		model:       DefaultModel,
		system:      SystemJSON,
		temperature: DefaultTemperature,
		maxTokens:   DefaultMaxTokens,
		pacing:      DefaultPacing,
		sleeper:     clock.TimerSleeper{},
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Name identifies the generator in the exchange log.
func (g *GenAI) Name() string {
	return "genai:" + g.model
}

// Generate sends prompt as a single user turn and parses the reply.
func (g *GenAI) Generate(ctx context.Context, prompt string) (ir.IRValue, error) {
	temperature := g.temperature
	config := &genai.GenerateContentConfig{
		SystemInstruction: genai.NewContentFromText(g.system, genai.RoleUser),
		Temperature:       &temperature,
		MaxOutputTokens:   g.maxTokens,
		ResponseMIMEType:  "application/json",
	}

	resp, err := g.models.GenerateContent(ctx, g.model, genai.Text(prompt), config)
	if err != nil {
		return ir.NewIRObject(), fmt.Errorf("GenAI generate failed: %w", err)
	}

	if err := g.sleeper.Sleep(ctx, g.pacing); err != nil {
		return ir.NewIRObject(), fmt.Errorf("GenAI pacing interrupted: %w", err)
	}

	if resp == nil {
		return ir.NewIRObject(), nil
	}
	text := resp.Text()
	v, perr := TryParseReply(text)
	if perr != nil {
		slog.Debug("unparseable reply", "model", g.model, "error", perr, "text", text)
		return ir.NewIRObject(), nil
	}
	return v, nil
}
