package nlp

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"go.uber.org/zap"
	"google.golang.org/genai"

	"github.com/mesh-intelligence/pickplace/pkg/types"
)

// DefaultModel is the Gemini model used when none is configured.
const DefaultModel = "gemini-2.0-flash"

const promptPrefix = "Extract a list of ('item', 'target location') pairs from the following input:"

// tuplePattern matches ('item', 'location') anywhere in the model output.
var tuplePattern = regexp.MustCompile(`\(\s*'(.*?)'\s*,\s*'(.*?)'\s*\)`)

// Generator produces a completion for a prompt.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// GeminiGenerator calls the Gemini API.
type GeminiGenerator struct {
	client      *genai.Client
	model       string
	temperature float32
}

// NewGeminiGenerator creates a generator for model with the given API key.
func NewGeminiGenerator(ctx context.Context, apiKey, model string) (*GeminiGenerator, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("GenAI API key is required")
	}
	if model == "" {
		model = DefaultModel
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create GenAI client: %w", err)
	}
	return &GeminiGenerator{client: client, model: model, temperature: 0.01}, nil
}

// Generate implements Generator.
func (g *GeminiGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	resp, err := g.client.Models.GenerateContent(ctx, g.model, genai.Text(prompt), &genai.GenerateContentConfig{
		Temperature: genai.Ptr(g.temperature),
	})
	if err != nil {
		return "", fmt.Errorf("GenAI generate failed: %w", err)
	}
	return resp.Text(), nil
}

// GenAIExtractor asks a language model for (item, location) tuples and
// validates them against the canonical catalog names.
type GenAIExtractor struct {
	gen      Generator
	resolver resolver
	logger   *zap.Logger
}

var _ Extractor = (*GenAIExtractor)(nil)

// NewGenAIExtractor creates a GenAIExtractor.
func NewGenAIExtractor(gen Generator, catalog types.Catalog, logger *zap.Logger) *GenAIExtractor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &GenAIExtractor{gen: gen, resolver: canonicalResolver(catalog), logger: logger}
}

// Extract implements Extractor. Transport failures are returned as is; only
// unreadable or invalid output is a ParseError or ValidationError.
func (e *GenAIExtractor) Extract(ctx context.Context, text string) ([]types.Intent, error) {
	if strings.TrimSpace(text) == "" {
		return nil, &ParseError{Input: text, Reason: "no instruction"}
	}
	out, err := e.gen.Generate(ctx, promptPrefix+" "+text)
	if err != nil {
		return nil, err
	}
	e.logger.Debug("model output", zap.String("input", text), zap.String("output", out))

	pairs := parseTuples(out)
	if len(pairs) == 0 {
		return nil, &ParseError{Input: out, Reason: "response does not contain item and location pairs"}
	}
	return validate(pairs, e.resolver)
}

func parseTuples(out string) []pair {
	var pairs []pair
	for _, m := range tuplePattern.FindAllStringSubmatch(out, -1) {
		pairs = append(pairs, pair{item: strings.TrimSpace(m[1]), location: strings.TrimSpace(m[2])})
	}
	return pairs
}
