package generate

import (
	"context"
	"fmt"
	"strings"

	"google.golang.org/genai"
)

const (
	captionPrompt    = "Describe esta imagen en una sola frase breve en español."
	transcribePrompt = "Transcribe en texto plano lo que se dice en este audio, en su idioma original (español o inglés), " +
		"corrigiendo errores evidentes del habla. Si no hay voz inteligible responde exactamente: " + noSpeechMarker
	noSpeechMarker = "SIN_VOZ"
)

// GeminiConfig holds the Gemini client settings.
type GeminiConfig struct {
	APIKey          string
	Model           string
	VisionModel     string
	Temperature     float32
	MaxOutputTokens int32
}

// Gemini implements Completer, Captioner and Transcriber on the Gemini API.
type Gemini struct {
	client *genai.Client
	cfg    GeminiConfig
}

// NewGemini creates a Gemini client.
func NewGemini(ctx context.Context, cfg GeminiConfig) (*Gemini, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("Gemini API key is required")
	}
	if cfg.Model == "" {
		cfg.Model = "gemini-2.5-flash"
	}
	if cfg.VisionModel == "" {
		cfg.VisionModel = cfg.Model
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{APIKey: cfg.APIKey})
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}
	return &Gemini{client: client, cfg: cfg}, nil
}

// Complete sends prompt with system as the system instruction.
func (g *Gemini) Complete(ctx context.Context, system, prompt string) (string, error) {
	config := &genai.GenerateContentConfig{
		Temperature:     genai.Ptr(g.cfg.Temperature),
		MaxOutputTokens: g.cfg.MaxOutputTokens,
	}
	if system != "" {
		config.SystemInstruction = genai.NewContentFromText(system, genai.RoleUser)
	}
	contents := []*genai.Content{genai.NewContentFromText(prompt, genai.RoleUser)}
	return g.generate(ctx, g.cfg.Model, contents, config)
}

// Caption describes image in one short sentence.
func (g *Gemini) Caption(ctx context.Context, image []byte, mimeType string) (string, error) {
	contents := []*genai.Content{genai.NewContentFromParts([]*genai.Part{
		genai.NewPartFromBytes(image, orDefault(mimeType, "image/jpeg")),
		genai.NewPartFromText(captionPrompt),
	}, genai.RoleUser)}
	return g.generate(ctx, g.cfg.VisionModel, contents, &genai.GenerateContentConfig{Temperature: genai.Ptr[float32](0)})
}

// Transcribe returns the speech in audio, or ErrUnintelligible.
func (g *Gemini) Transcribe(ctx context.Context, audio []byte, mimeType string) (string, error) {
	if len(audio) == 0 {
		return "", ErrUnintelligible
	}
	contents := []*genai.Content{genai.NewContentFromParts([]*genai.Part{
		genai.NewPartFromBytes(audio, orDefault(mimeType, "audio/wav")),
		genai.NewPartFromText(transcribePrompt),
	}, genai.RoleUser)}
	text, err := g.generate(ctx, g.cfg.VisionModel, contents, &genai.GenerateContentConfig{Temperature: genai.Ptr[float32](0)})
	if err != nil {
		return "", err
	}
	return checkTranscript(text)
}

func (g *Gemini) generate(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (string, error) {
	resp, err := g.client.Models.GenerateContent(ctx, model, contents, config)
	if err != nil {
		return "", fmt.Errorf("gemini %s: %w", model, err)
	}
	text := resp.Text()
	if strings.TrimSpace(text) == "" {
		return "", fmt.Errorf("gemini %s: empty response", model)
	}
	return text, nil
}

// checkTranscript maps empty or marker-only transcripts to ErrUnintelligible.
func checkTranscript(text string) (string, error) {
	text = strings.TrimSpace(text)
	if text == "" || strings.EqualFold(strings.Trim(text, ". "), noSpeechMarker) {
		return "", ErrUnintelligible
	}
	return text, nil
}
