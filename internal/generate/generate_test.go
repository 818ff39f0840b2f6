package generate

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hyperjump/historias/internal/models"
)

var fixedNow = time.Date(2024, 3, 15, 10, 20, 30, 0, time.Local)

const storyJSON = `{"title":"Café","hook":"H","body":["P1","P2"],"call_to_action":"CTA","hashtags":["#cafe"]}`

func newTestGenerator(llm *MockLLM) *Generator {
	return NewGenerator(llm, llm, WithClock(func() time.Time { return fixedNow }))
}

func TestGenerate(t *testing.T) {
	llm := NewMockLLM("Una taza de café humeante sobre una mesa de madera.", storyJSON)
	g := newTestGenerator(llm)

	out, err := g.Generate(context.Background(), Request{
		Image:           []byte{0xff, 0xd8},
		ImagePath:       "/tmp/cafe.jpg",
		Platform:        "Instagram",
		Tone:            "Casual",
		AdditionalSpecs: "menciona la mañana",
		Brief:           "Cafetería de barrio",
	})
	require.NoError(t, err)
	assert.Empty(t, out.Warnings)

	rec := out.Record
	assert.Equal(t, "Café", rec.Content.Title)
	assert.Equal(t, []string{"P1", "P2"}, rec.Content.Body)
	assert.Equal(t, models.PlatformInstagram, rec.Platform)
	assert.Equal(t, "casual", rec.Tone)
	assert.Equal(t, "/tmp/cafe.jpg", rec.ImagePath)
	assert.True(t, rec.CreatedAt.Equal(fixedNow))
	require.NotNil(t, rec.UserSpecs)
	assert.Equal(t, "Instagram", rec.UserSpecs.Platform)
	assert.Equal(t, "menciona la mañana", rec.UserSpecs.AdditionalSpecs)

	require.Equal(t, 2, llm.CallCount())
	assert.Contains(t, llm.Calls[0].Prompt, "Una imagen de prueba.")
	assert.Contains(t, llm.Calls[1].System, "Instagram")
	assert.Contains(t, llm.Calls[1].Prompt, "Una taza de café humeante")
	assert.Contains(t, llm.Calls[1].Prompt, "Cafetería de barrio")
	assert.Contains(t, llm.Calls[1].Prompt, "Tono deseado: Casual")
}

func TestGenerate_TwitterPrompt(t *testing.T) {
	llm := NewMockLLM("análisis", `{"title":"T","main_tweet":"M","thread":["a"]}`)
	out, err := newTestGenerator(llm).Generate(context.Background(), Request{Platform: "Twitter/X"})
	require.NoError(t, err)
	assert.Contains(t, llm.Calls[1].Prompt, "main_tweet")
	assert.Equal(t, "M", out.Record.Content.Hook)
	assert.Equal(t, models.PlatformTwitter, out.Record.Platform)
}

func TestGenerate_UnsupportedPlatform(t *testing.T) {
	llm := NewMockLLM(storyJSON)
	_, err := newTestGenerator(llm).Generate(context.Background(), Request{Platform: "pdf"})
	assert.Error(t, err)
	assert.Zero(t, llm.CallCount())
}

func TestGenerate_CaptionFailureIsWarning(t *testing.T) {
	llm := NewMockLLM("análisis", storyJSON)
	llm.CaptionErr = errors.New("vision down")
	out, err := newTestGenerator(llm).Generate(context.Background(), Request{Image: []byte("x"), Platform: "facebook"})
	require.NoError(t, err)
	require.Len(t, out.Warnings, 1)
	assert.Contains(t, out.Warnings[0], "vision down")
	assert.Contains(t, llm.Calls[0].Prompt, noCaption)
}

func TestGenerate_NoImageSkipsCaption(t *testing.T) {
	llm := NewMockLLM("análisis", storyJSON)
	llm.CaptionErr = errors.New("should not be called")
	out, err := newTestGenerator(llm).Generate(context.Background(), Request{Platform: "linkedin"})
	require.NoError(t, err)
	assert.Empty(t, out.Warnings)
}

func TestGenerate_NonJSONFallback(t *testing.T) {
	llm := NewMockLLM("análisis", "Un post sin estructura.")
	out, err := newTestGenerator(llm).Generate(context.Background(), Request{Platform: "facebook"})
	require.NoError(t, err)
	require.Len(t, out.Warnings, 1)
	assert.Equal(t, FallbackTitle, out.Record.Content.Title)
	assert.Equal(t, "Un post sin estructura.", out.Record.Content.FullText)
}

func TestGenerate_WriterFailure(t *testing.T) {
	llm := NewMockLLM()
	llm.Err = errors.New("quota exceeded")
	_, err := newTestGenerator(llm).Generate(context.Background(), Request{Platform: "facebook"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "quota exceeded")
}

func TestContentPrompt(t *testing.T) {
	p := contentPrompt(models.PlatformLinkedIn, "desc", Request{})
	assert.Contains(t, p, "Crea contenido optimizado para LinkedIn")
	assert.Contains(t, p, "Tono deseado: profesional")
	assert.Contains(t, p, "Especificaciones adicionales: Ninguna")
	assert.NotContains(t, p, "Documento de referencia")
	assert.True(t, strings.Contains(p, `"body"`))
	for _, platform := range models.SocialPlatforms {
		assert.NotEmpty(t, platformAgents[platform].Role, platform)
		assert.NotEmpty(t, platformChecklist[platform], platform)
	}
}
