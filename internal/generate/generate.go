// Package generate turns an image and a few user choices into a story using a
// hosted LLM: caption the image, expand the caption, then ask the platform
// writer for structured content.
package generate

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/hyperjump/historias/internal/models"
)

// ErrUnintelligible is returned when audio contains no recognisable speech.
var ErrUnintelligible = errors.New("no se pudo entender el audio")

// noCaption stands in for the image description when captioning fails.
const noCaption = "Sin descripción disponible de la imagen."

// Completer produces text for a system instruction and a prompt.
type Completer interface {
	Complete(ctx context.Context, system, prompt string) (string, error)
}

// Captioner describes an image in a short sentence.
type Captioner interface {
	Caption(ctx context.Context, image []byte, mimeType string) (string, error)
}

// Transcriber turns recorded speech into text. It returns ErrUnintelligible
// when nothing could be recognised.
type Transcriber interface {
	Transcribe(ctx context.Context, audio []byte, mimeType string) (string, error)
}

// Request is one generation request.
type Request struct {
	Image         []byte
	ImageMIMEType string
	// ImagePath is recorded on the story; the image is not read from it.
	ImagePath       string
	Platform        string
	Tone            string
	AdditionalSpecs string
	// Brief is optional reference text extracted from a user document.
	Brief string
}

// Outcome is a generated story plus the non-fatal problems met on the way.
type Outcome struct {
	Record   *models.Record
	Warnings []string
}

// Generator runs the caption, analysis and writing steps.
type Generator struct {
	llm    Completer
	vision Captioner
	now    func() time.Time
	logger *zap.Logger
}

// GeneratorOption configures a Generator.
type GeneratorOption func(*Generator)

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) GeneratorOption {
	return func(g *Generator) { g.logger = l }
}

// WithClock replaces time.Now for created_at.
func WithClock(now func() time.Time) GeneratorOption {
	return func(g *Generator) { g.now = now }
}

// NewGenerator returns a generator. vision may be nil, in which case the
// analysis step works without a caption.
func NewGenerator(llm Completer, vision Captioner, opts ...GeneratorOption) *Generator {
	g := &Generator{llm: llm, vision: vision, now: time.Now, logger: zap.NewNop()}
	for _, opt := range opts {
		opt(g)
	}
	if g.logger == nil {
		g.logger = zap.NewNop()
	}
	return g
}

// Generate produces a story for req. Captioning and analysis failures degrade
// to warnings; only a failure of the writing step is an error. Output that is
// not JSON yields a fallback record rather than an error.
func (g *Generator) Generate(ctx context.Context, req Request) (*Outcome, error) {
	platform := models.ParsePlatform(req.Platform)
	if !platform.IsSocial() {
		return nil, fmt.Errorf("unsupported platform %q", req.Platform)
	}
	out := &Outcome{}

	caption := noCaption
	if g.vision != nil && len(req.Image) > 0 {
		c, err := g.vision.Caption(ctx, req.Image, req.ImageMIMEType)
		if err != nil {
			g.logger.Warn("image caption failed", zap.Error(err))
			out.Warnings = append(out.Warnings, "No se pudo describir la imagen: "+err.Error())
		} else if c = strings.TrimSpace(c); c != "" {
			caption = c
		}
	}

	description := caption
	analysis, err := g.llm.Complete(ctx, visionAgent.System(), analyzePrompt(caption))
	if err != nil {
		g.logger.Warn("image analysis failed", zap.Error(err))
		out.Warnings = append(out.Warnings, "No se pudo analizar la imagen: "+err.Error())
	} else if a := strings.TrimSpace(analysis); a != "" {
		description = a
	}

	agent := platformAgents[platform]
	raw, err := g.llm.Complete(ctx, agent.System(), contentPrompt(platform, description, req))
	if err != nil {
		return nil, fmt.Errorf("generate %s content: %w", platform, err)
	}
	content, ok := ParseContent(raw)
	if !ok {
		g.logger.Warn("model output is not JSON, using fallback", zap.Int("chars", len(raw)))
		out.Warnings = append(out.Warnings, "La respuesta del modelo no era JSON; se guardó como texto completo.")
	}

	tone := strings.ToLower(strings.TrimSpace(req.Tone))
	out.Record = &models.Record{
		Content:   content,
		Platform:  platform,
		Tone:      tone,
		CreatedAt: models.NewTimestamp(g.now()),
		ImagePath: req.ImagePath,
		UserSpecs: &models.UserSpecs{
			Platform:        platformLabel(platform),
			Tone:            tone,
			AdditionalSpecs: req.AdditionalSpecs,
		},
	}
	g.logger.Debug("story generated",
		zap.String("platform", string(platform)),
		zap.String("title", content.Title),
		zap.Int("warnings", len(out.Warnings)))
	return out, nil
}
