package assistant

import (
	"context"
	"fmt"
	"time"

	"google.golang.org/genai"
)

const systemPromptFormat = `Eres un asistente experto en gestión de e-commerce. La fecha actual es %s. Ayudas a los administradores de tiendas a consultar ventas, órdenes, productos, inventario y promociones. Responde siempre en español, de forma concisa y profesional. Usa las herramientas disponibles para obtener datos reales antes de responder; nunca inventes cifras.`

// GeminiClientConfig contains all required parameters for a GeminiClient.
type GeminiClientConfig struct {
	APIKey string
	Model  string

	// Declarations is the tool set advertised on every call.
	Declarations []*genai.FunctionDeclaration

	// MaxOutputTokens caps reply length. Zero uses the provider default.
	MaxOutputTokens int32
}

// GeminiClient adapts the Gemini API to the ModelClient seam. It carries the
// fixed per-call configuration (system prompt, tool declarations, token cap)
// so the orchestrator only supplies conversation contents.
type GeminiClient struct {
	client          *genai.Client
	model           string
	tools           []*genai.Tool
	maxOutputTokens int32

	now func() time.Time
}

// NewGeminiClient creates a client against the Gemini API backend.
func NewGeminiClient(ctx context.Context, cfg GeminiClientConfig) (*GeminiClient, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("api key is required")
	}
	if cfg.Model == "" {
		return nil, fmt.Errorf("model name is required")
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("creating genai client: %w", err)
	}

	var tools []*genai.Tool
	if len(cfg.Declarations) > 0 {
		tools = []*genai.Tool{{FunctionDeclarations: cfg.Declarations}}
	}

	return &GeminiClient{
		client:          client,
		model:           cfg.Model,
		tools:           tools,
		maxOutputTokens: cfg.MaxOutputTokens,
		now:             time.Now,
	}, nil
}

// Generate sends the conversation to the model with the assistant's system
// prompt and tool declarations attached.
func (g *GeminiClient) Generate(ctx context.Context, contents []*genai.Content) (*genai.GenerateContentResponse, error) {
	prompt := fmt.Sprintf(systemPromptFormat, g.now().Format("2006-01-02"))

	config := &genai.GenerateContentConfig{
		SystemInstruction: genai.NewContentFromText(prompt, genai.RoleUser),
		Tools:             g.tools,
	}
	if g.maxOutputTokens > 0 {
		config.MaxOutputTokens = g.maxOutputTokens
	}

	resp, err := g.client.Models.GenerateContent(ctx, g.model, contents, config)
	if err != nil {
		return nil, fmt.Errorf("generate content: %w", err)
	}
	return resp, nil
}
