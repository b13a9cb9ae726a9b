package gemini

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"google.golang.org/genai"
)

const DefaultModel = "gemini-2.5-flash"

type Config struct {
	Model string

	// BaseURL overrides the Gemini API base URL. Useful for proxies/testing.
	BaseURL string

	// Grounding enables the Google Search tool so answers can draw on live web results.
	Grounding bool
}

// Generator sends prompts to Gemini. The API key is chosen per call, so one
// Generator serves every credential; a genai client is built lazily per key.
type Generator struct {
	model     string
	baseURL   string
	grounding bool

	mu      sync.Mutex
	clients map[string]*genai.Client
}

func New(cfg Config) (*Generator, error) {
	model := strings.TrimSpace(cfg.Model)
	if model == "" {
		model = DefaultModel
	}
	return &Generator{
		model:     model,
		baseURL:   strings.TrimSpace(cfg.BaseURL),
		grounding: cfg.Grounding,
		clients:   make(map[string]*genai.Client),
	}, nil
}

func (g *Generator) Model() string {
	return g.model
}

// Generate returns the text of the first candidate.
func (g *Generator) Generate(ctx context.Context, apiKey, prompt string) (string, error) {
	client, err := g.client(ctx, apiKey)
	if err != nil {
		return "", err
	}

	cfg := &genai.GenerateContentConfig{CandidateCount: 1}
	if g.grounding {
		cfg.Tools = []*genai.Tool{{GoogleSearch: &genai.GoogleSearch{}}}
	} else {
		// Structured output cannot be combined with the search tool.
		cfg.ResponseMIMEType = "application/json"
		cfg.ResponseSchema = outputSchema
	}

	resp, err := client.Models.GenerateContent(ctx, g.model, genai.Text(prompt), cfg)
	if err != nil {
		return "", err
	}
	if resp == nil {
		return "", errors.New("gemini: empty response")
	}
	return resp.Text(), nil
}

func (g *Generator) client(ctx context.Context, apiKey string) (*genai.Client, error) {
	apiKey = strings.TrimSpace(apiKey)
	if apiKey == "" {
		return nil, errors.New("gemini: api key is required")
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	if c, ok := g.clients[apiKey]; ok {
		return c, nil
	}

	cc := &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	}
	if g.baseURL != "" {
		cc.HTTPOptions.BaseURL = g.baseURL
	}
	c, err := genai.NewClient(ctx, cc)
	if err != nil {
		return nil, fmt.Errorf("gemini: new client: %w", err)
	}
	g.clients[apiKey] = c
	return c, nil
}

var outputSchema = &genai.Schema{
	Type: genai.TypeObject,
	Properties: map[string]*genai.Schema{
		"description":   {Type: genai.TypeString, Nullable: genai.Ptr(true)},
		"sector":        {Type: genai.TypeString, Nullable: genai.Ptr(true)},
		"estimatedSize": {Type: genai.TypeString, Nullable: genai.Ptr(true)},
		"painPoints":    {Type: genai.TypeArray, Items: &genai.Schema{Type: genai.TypeString}},
	},
}
