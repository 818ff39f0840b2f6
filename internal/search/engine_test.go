package search

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hyperjump/historias/internal/archive"
	"github.com/hyperjump/historias/internal/models"
)

func newTestArchive(t *testing.T) *archive.Archive {
	t.Helper()
	reg, err := archive.NewRegistry(archive.Capabilities{})
	require.NoError(t, err)
	return archive.New(t.TempDir(), reg)
}

func save(t *testing.T, a *archive.Archive, name string, rec *models.Record) {
	t.Helper()
	format, ok := archive.FormatOf(name)
	require.True(t, ok)
	_, err := a.Save(rec, format, name)
	require.NoError(t, err)
}

func TestEngine_SearchAccentsAndTitleBoost(t *testing.T) {
	a := newTestArchive(t)
	save(t, a, "historia_20240101_090000.json", &models.Record{
		Content:  models.Content{Title: "Café de la mañana", Hook: "Empieza el día"},
		Platform: models.PlatformInstagram,
	})
	save(t, a, "historia_20240102_090000.json", &models.Record{
		Content:  models.Content{Title: "Playa", Body: []string{"Un cafe frente al mar"}},
		Platform: models.PlatformFacebook,
	})
	save(t, a, "historia_20240103_090000.md", &models.Record{
		Content: models.Content{Title: "Montaña", Hook: "Subida al amanecer"},
	})

	e, err := NewEngine(a)
	require.NoError(t, err)
	n, err := e.Rebuild(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	resp, err := e.Search(context.Background(), &models.SearchQuery{Query: "cafe"})
	require.NoError(t, err)
	require.Equal(t, 2, resp.Total)
	assert.Equal(t, "historia_20240101_090000.json", resp.Hits[0].Key)
	assert.Equal(t, "Café de la mañana", resp.Hits[0].Record.Content.Title)

	resp, err = e.Search(context.Background(), &models.SearchQuery{Query: "café", Platform: models.PlatformFacebook})
	require.NoError(t, err)
	require.Equal(t, 1, resp.Total)
	assert.Equal(t, "historia_20240102_090000.json", resp.Hits[0].Key)

	resp, err = e.Search(context.Background(), &models.SearchQuery{Query: "amanecer"})
	require.NoError(t, err)
	require.Equal(t, 1, resp.Total)
	assert.Equal(t, models.FileTypeMarkdown, resp.Hits[0].Record.FileType)

	_, err = e.Search(context.Background(), &models.SearchQuery{Query: " "})
	assert.Error(t, err)
}

func TestEngine_TermCoverage(t *testing.T) {
	a := newTestArchive(t)
	save(t, a, "a.json", &models.Record{Content: models.Content{Title: "uno", FullText: "playa playa playa"}})
	save(t, a, "b.json", &models.Record{Content: models.Content{Title: "dos", FullText: "playa y sol"}})

	e, err := NewEngine(a)
	require.NoError(t, err)
	_, err = e.Rebuild(context.Background())
	require.NoError(t, err)

	resp, err := e.Search(context.Background(), &models.SearchQuery{Query: "playa sol"})
	require.NoError(t, err)
	require.Equal(t, 2, resp.Total)
	assert.Equal(t, "b.json", resp.Hits[0].Key)
}

func TestEngine_Fuzzy(t *testing.T) {
	a := newTestArchive(t)
	save(t, a, "a.json", &models.Record{Content: models.Content{Title: "Atardecer en la costa"}})
	e, err := NewEngine(a)
	require.NoError(t, err)
	_, err = e.Rebuild(context.Background())
	require.NoError(t, err)

	resp, err := e.Search(context.Background(), &models.SearchQuery{Query: "atardeser"})
	require.NoError(t, err)
	assert.Zero(t, resp.Total)

	resp, err = e.Search(context.Background(), &models.SearchQuery{Query: "atardeser", Fuzzy: true})
	require.NoError(t, err)
	assert.Equal(t, 1, resp.Total)
}

func TestEngine_RefreshAndRemove(t *testing.T) {
	a := newTestArchive(t)
	e, err := NewEngine(a)
	require.NoError(t, err)

	save(t, a, "a.json", &models.Record{Content: models.Content{Title: "Bosque"}})
	require.NoError(t, e.Refresh("a.json"))
	assert.Equal(t, 1, e.Len())

	require.NoError(t, a.Delete("a.json"))
	assert.Error(t, e.Refresh("a.json"))
	assert.Zero(t, e.Len())

	save(t, a, "b.json", &models.Record{Content: models.Content{Title: "Río"}})
	_, err = e.Rebuild(context.Background())
	require.NoError(t, err)
	require.NoError(t, os.Remove(filepath.Join(a.Dir(), "b.json")))
	_, err = e.Rebuild(context.Background())
	require.NoError(t, err)
	assert.Zero(t, e.Len())

	e.Remove("never-indexed.json")
}

func TestSnippet(t *testing.T) {
	assert.Equal(t, "corto", Snippet("corto", "x", 20))

	long := strings.Repeat("relleno ", 20) + "Canción final " + strings.Repeat("más ", 20)
	s := Snippet(long, "cancion", 40)
	assert.Contains(t, s, "Canción")
	assert.True(t, strings.HasPrefix(s, "..."))
	assert.True(t, strings.HasSuffix(s, "..."))

	s = Snippet(long, "ausente", 20)
	assert.True(t, strings.HasPrefix(s, "relleno"))
	assert.True(t, strings.HasSuffix(s, "..."))
}

func TestFold(t *testing.T) {
	assert.Equal(t, "cancion de accion y pinguino", Fold("Canción de Acción y Pingüino"))
}
