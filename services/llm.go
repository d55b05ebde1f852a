package services

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/kaizenhr/appraise/backend/models"

	"google.golang.org/genai"
)

const ModelName = "gemini-2.5-flash"

// TextGenerator is the boundary to the prompt-completion backend. Every
// failure mode (network, auth, rate limit) looks the same to callers:
// generation unavailable, retried only by explicit user action.
type TextGenerator interface {
	Complete(ctx context.Context, messages []models.ChatMessage) (string, error)
}

// GeminiClient implements TextGenerator on top of the Gemini API. It is
// constructed explicitly and injected so tests can substitute a fake without
// process-wide state.
type GeminiClient struct {
	client *genai.Client
}

func NewGeminiClient(apiKey string) (*GeminiClient, error) {
	client, err := genai.NewClient(context.Background(), &genai.ClientConfig{
		APIKey: apiKey,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create genai client: %w", err)
	}
	return &GeminiClient{client: client}, nil
}

// Complete sends the ordered message list and returns the generated text.
// System-role messages become the system instruction; assistant turns map to
// the model role.
func (g *GeminiClient) Complete(ctx context.Context, messages []models.ChatMessage) (string, error) {
	if g.client == nil {
		return "", fmt.Errorf("genai client not initialized")
	}

	var system strings.Builder
	var contents []*genai.Content
	for _, msg := range messages {
		if strings.TrimSpace(msg.Content) == "" {
			continue
		}
		switch msg.Role {
		case models.ChatRoleSystem:
			if system.Len() > 0 {
				system.WriteString("\n\n")
			}
			system.WriteString(msg.Content)
		case models.ChatRoleAssistant:
			contents = append(contents, genai.NewContentFromText(msg.Content, genai.RoleModel))
		default:
			contents = append(contents, genai.NewContentFromText(msg.Content, genai.RoleUser))
		}
	}

	if len(contents) == 0 {
		contents = append(contents, genai.NewContentFromText("Hello", genai.RoleUser))
	}

	var config *genai.GenerateContentConfig
	if system.Len() > 0 {
		config = &genai.GenerateContentConfig{
			SystemInstruction: genai.NewContentFromText(system.String(), genai.RoleUser),
		}
	}

	result, err := g.client.Models.GenerateContent(ctx, ModelName, contents, config)
	if err != nil {
		return "", fmt.Errorf("failed to generate response: %w", err)
	}

	response := result.Text()
	slog.Info("Generated response", "messages", len(messages), "response_length", len(response))
	return response, nil
}

// extractJSON strips markdown code fences and surrounding prose from a model
// reply so the embedded JSON object can be unmarshalled. Returns the input
// unchanged when no object is found; the caller's parse then fails normally.
func extractJSON(reply string) string {
	s := strings.TrimSpace(reply)
	if after, ok := strings.CutPrefix(s, "```json"); ok {
		s = after
	} else if after, ok := strings.CutPrefix(s, "```"); ok {
		s = after
	}
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")

	start := strings.Index(s, "{")
	end := strings.LastIndex(s, "}")
	if start >= 0 && end > start {
		return s[start : end+1]
	}
	return strings.TrimSpace(s)
}
