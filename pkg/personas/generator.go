package personas

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/teslashibe/go-pidog/internal/httpc"
)

const generatorSystemPrompt = "You are a helpful assistant that returns strictly formatted JSON persona objects. " +
	"You are an expert at creating interesting and funny characters. " +
	"Do not include explanations or surrounding text."

const voiceGuide = `Consider the available voices and their descriptions:
- alloy: A balanced and versatile gender-neutral voice suitable for general purposes.
- ash: A warm and calming male voice with a radio personality, ideal for friendly and approachable personas.
- ballad: A melodious and soothing male voice with a british accent, perfect for storytelling or musical characters.
- coral: A clear and articulate female voice, well-suited for instructional or informative content. High pitch voice.
- echo: A resonant and impactful male voice, great for authoritative or commanding personas.
- sage: A gentle presence. Female voice. Calming and soothing.
- shimmer: A soft and steady female voice with a glimmer of play, perfect for comforting or empathetic characters.
- verse: A friendly male voice, not authoritative, non threatening.`

// Generator creates brand-new personas from a free-text description using
// the text-completions endpoint that shares credentials with the realtime
// session.
type Generator struct {
	BaseURL string
	Model   string
	APIKey  string
}

// NewGenerator creates a Generator against the standard chat-completions
// endpoint.
func NewGenerator(apiKey string) *Generator {
	return &Generator{
		BaseURL: "https://api.openai.com/v1/chat/completions",
		Model:   "gpt-4o",
		APIKey:  apiKey,
	}
}

// Generate produces a validated Persona matching the description. The
// model is asked for strict JSON; a malformed reply is an error, not a
// partial persona.
func (g *Generator) Generate(ctx context.Context, description string) (Persona, error) {
	if g.APIKey == "" {
		return Persona{}, fmt.Errorf("personas: generator: no API key configured")
	}

	userPrompt := fmt.Sprintf(
		"%s\n\nBased on the available voices, generate a JSON object that represents a funny and exaggerated persona "+
			"for a robot dog matching the following description:\n%s\n\n"+
			"The JSON object must include: name (string), voice (string, from the list above), "+
			"prompt (string, personality description including quirks and how the persona talks), "+
			"image_prompt (string, how the character would ask for a scene to be described), "+
			"default_motivation (string, default behavior or goal), "+
			"description (string, one line summary).\n"+
			"Respond with only a valid JSON object and no other commentary.",
		voiceGuide, description)

	payload := map[string]any{
		"model": g.Model,
		"messages": []map[string]string{
			{"role": "system", "content": generatorSystemPrompt},
			{"role": "user", "content": userPrompt},
		},
		"response_format": map[string]string{"type": "json_object"},
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return Persona{}, fmt.Errorf("personas: generator: marshal: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.BaseURL, bytes.NewReader(body))
	if err != nil {
		return Persona{}, fmt.Errorf("personas: generator: request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+g.APIKey)

	resp, err := httpc.Do(req)
	if err != nil {
		return Persona{}, fmt.Errorf("personas: generator: %w", err)
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK {
		return Persona{}, fmt.Errorf("personas: generator: status %d: %s", resp.StatusCode, snippet(respBody))
	}

	var out struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := json.Unmarshal(respBody, &out); err != nil {
		return Persona{}, fmt.Errorf("personas: generator: decode: %w", err)
	}
	if len(out.Choices) == 0 {
		return Persona{}, fmt.Errorf("personas: generator: empty response")
	}

	var p Persona
	if err := json.Unmarshal([]byte(out.Choices[0].Message.Content), &p); err != nil {
		return Persona{}, fmt.Errorf("personas: generator: invalid persona JSON: %w", err)
	}
	if err := p.Validate(); err != nil {
		return Persona{}, err
	}
	return p, nil
}

func snippet(b []byte) string {
	s := strings.TrimSpace(string(b))
	if len(s) > 200 {
		return s[:200]
	}
	return s
}
