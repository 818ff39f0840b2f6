package generate

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseContent(t *testing.T) {
	raw := "Claro, aquí está:\n```json\n" + `{
  "title": "Atardecer",
  "hook": "¿Has visto algo así?",
  "body": ["Primer párrafo", " ", "Segundo párrafo"],
  "call_to_action": "Cuéntanos",
  "hashtags": ["viaje", "#Playa", "#viaje"]
}` + "\n```"
	c, ok := ParseContent(raw)
	assert.True(t, ok)
	assert.Equal(t, "Atardecer", c.Title)
	assert.Equal(t, "¿Has visto algo así?", c.Hook)
	assert.Equal(t, []string{"Primer párrafo", "Segundo párrafo"}, c.Body)
	assert.Equal(t, []string{"#viaje", "#Playa"}, c.Hashtags)
	assert.Equal(t, "¿Has visto algo así?\n\nPrimer párrafo\n\nSegundo párrafo\n\nCuéntanos\n\n#viaje #Playa", c.FullText)
}

func TestParseContent_TwitterShape(t *testing.T) {
	raw := `{"title":"Hilo","main_tweet":"Tweet principal","thread":["dos","tres"],"hashtags":"#a b","full_text":"todo"}`
	c, ok := ParseContent(raw)
	assert.True(t, ok)
	assert.Equal(t, "Tweet principal", c.Hook)
	assert.Equal(t, []string{"dos", "tres"}, c.Body)
	assert.Equal(t, []string{"#a", "#b"}, c.Hashtags)
	assert.Equal(t, "todo", c.FullText)
}

func TestParseContent_BodyAsString(t *testing.T) {
	c, ok := ParseContent(`{"title":"T","body":"uno\n\ndos"}`)
	assert.True(t, ok)
	assert.Equal(t, []string{"uno", "dos"}, c.Body)
}

func TestParseContent_Fallback(t *testing.T) {
	for _, raw := range []string{"solo texto libre", "{no es json}", ""} {
		c, ok := ParseContent(raw)
		assert.False(t, ok, raw)
		assert.Equal(t, FallbackTitle, c.Title)
		assert.Equal(t, raw, c.FullText)
	}
}

func TestCheckTranscript(t *testing.T) {
	_, err := checkTranscript("  ")
	assert.ErrorIs(t, err, ErrUnintelligible)
	_, err = checkTranscript("sin_voz.")
	assert.ErrorIs(t, err, ErrUnintelligible)
	text, err := checkTranscript(" hola mundo ")
	assert.NoError(t, err)
	assert.Equal(t, "hola mundo", text)
}
