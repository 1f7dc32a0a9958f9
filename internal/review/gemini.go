package review

import (
	"context"
	"fmt"
	"net/http"
	"time"

	genai "google.golang.org/genai"

	"github.com/gradelab/gograder/internal/models"
)

// GeminiConfig tunes the external reviewer call.
type GeminiConfig struct {
	Model           string
	Temperature     float32
	MaxOutputTokens int32
	// Timeout bounds each review request end to end.
	Timeout time.Duration
}

// Gemini reviews submissions through the Gemini API. One request per unit,
// JSON response mode, no internal retry.
type Gemini struct {
	cli *genai.Client
	cfg GeminiConfig
}

func NewGemini(ctx context.Context, apiKey string, cfg GeminiConfig) (*Gemini, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("gemini api key not set")
	}
	if cfg.Model == "" {
		cfg.Model = "gemini-2.5-flash"
	}
	if cfg.MaxOutputTokens <= 0 {
		cfg.MaxOutputTokens = 4096
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 60 * time.Second
	}
	cli, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:     apiKey,
		Backend:    genai.BackendGeminiAPI,
		HTTPClient: &http.Client{Timeout: cfg.Timeout},
	})
	if err != nil {
		return nil, fmt.Errorf("gemini client: %w", err)
	}
	return &Gemini{cli: cli, cfg: cfg}, nil
}

// Review implements Reviewer.
func (g *Gemini) Review(ctx context.Context, code string, analysis *models.AnalysisResult, rubric *models.Rubric) (*models.Review, error) {
	prompt := buildPrompt(code, analysis, rubric)

	resp, err := g.cli.Models.GenerateContent(ctx, g.cfg.Model,
		[]*genai.Content{{Parts: []*genai.Part{{Text: prompt}}}},
		&genai.GenerateContentConfig{
			Temperature:      genai.Ptr(g.cfg.Temperature),
			TopP:             genai.Ptr[float32](0.95),
			TopK:             genai.Ptr[float32](40),
			MaxOutputTokens:  g.cfg.MaxOutputTokens,
			ResponseMIMEType: "application/json",
		},
	)
	if err != nil {
		return nil, fmt.Errorf("gemini generate: %w", err)
	}
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil || len(resp.Candidates[0].Content.Parts) == 0 {
		return nil, fmt.Errorf("gemini returned no candidates")
	}

	return parseResponse(resp.Candidates[0].Content.Parts[0].Text, analysis)
}
