package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hyperjump/historias/internal/archive"
	"github.com/hyperjump/historias/internal/config"
	"github.com/hyperjump/historias/internal/generate"
	"github.com/hyperjump/historias/internal/models"
	"github.com/hyperjump/historias/internal/remote"
	"github.com/hyperjump/historias/internal/search"
	"github.com/hyperjump/historias/internal/session"
	"github.com/hyperjump/historias/internal/storage"
	"github.com/hyperjump/historias/internal/workflow"
)

const storyJSON = `{"title":"Café de la mañana","hook":"H","body":["P1"],"call_to_action":"CTA","hashtags":["#cafe"]}`

type testEnv struct {
	handler  http.Handler
	archive  *archive.Archive
	remote   *remote.Client
	llm      *generate.MockLLM
	engine   *search.Engine
	sessions *session.Store
	onSaved  func()
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	llm := generate.NewMockLLM("análisis de la imagen", storyJSON)
	return newTestEnvWith(t, llm, llm)
}

// newTestEnvWith builds the server around completer. A nil completer leaves
// generation and transcription unconfigured.
func newTestEnvWith(t *testing.T, llm *generate.MockLLM, completer generate.Completer) *testEnv {
	t.Helper()
	cfg := &config.Config{}
	config.ApplyDefaults(cfg)
	cfg.Archive.Directory = t.TempDir()
	cfg.Storage.DatabasePath = filepath.Join(t.TempDir(), "stories.db")

	reg, err := archive.NewRegistry(archive.Capabilities{HTMLStrategy: cfg.Archive.HTMLParser})
	require.NoError(t, err)
	arch := archive.New(cfg.Archive.Directory, reg)

	store, err := storage.NewSQLiteStore(cfg.Storage.DatabasePath)
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	rc := remote.NewClient(store, nil, nil)

	engine, err := search.NewEngine(arch)
	require.NoError(t, err)

	env := &testEnv{archive: arch, remote: rc, llm: llm, engine: engine, sessions: session.NewStore(0)}
	opts := []workflow.ServiceOption{
		workflow.WithRemote(rc),
		workflow.WithSavedHook(func(paths []string) {
			for _, p := range paths {
				_ = engine.Refresh(filepath.Base(p))
			}
			if env.onSaved != nil {
				env.onSaved()
			}
		}),
	}
	var gen *generate.Generator
	if completer != nil {
		gen = generate.NewGenerator(completer, llm)
		opts = append(opts, workflow.WithTranscriber(llm))
	}
	wf := workflow.NewService(arch, gen, opts...)
	env.handler = NewServer(cfg, wf, arch, engine, rc, env.sessions, nil).Router()
	return env
}

// hookedLLM runs before on every completion, standing in for a slow model
// call during which other requests arrive.
type hookedLLM struct {
	*generate.MockLLM
	before func()
}

func (h *hookedLLM) Complete(ctx context.Context, system, prompt string) (string, error) {
	if h.before != nil {
		h.before()
	}
	return h.MockLLM.Complete(ctx, system, prompt)
}

func imageFiles(t *testing.T, env *testEnv) []os.DirEntry {
	t.Helper()
	entries, err := os.ReadDir(filepath.Join(env.archive.Dir(), imagesDir))
	if os.IsNotExist(err) {
		return nil
	}
	require.NoError(t, err)
	return entries
}

func (e *testEnv) do(t *testing.T, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var r *http.Request
	switch b := body.(type) {
	case nil:
		r = httptest.NewRequest(method, path, nil)
	case *multipartBody:
		r = httptest.NewRequest(method, path, &b.buf)
		r.Header.Set("Content-Type", b.contentType)
	default:
		data, err := json.Marshal(b)
		require.NoError(t, err)
		r = httptest.NewRequest(method, path, bytes.NewReader(data))
		r.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	e.handler.ServeHTTP(w, r)
	return w
}

type multipartBody struct {
	buf         bytes.Buffer
	contentType string
}

func newMultipart(t *testing.T, fields map[string]string, fileField, fileName string, data []byte) *multipartBody {
	t.Helper()
	b := &multipartBody{}
	mw := multipart.NewWriter(&b.buf)
	for k, v := range fields {
		require.NoError(t, mw.WriteField(k, v))
	}
	if fileField != "" {
		fw, err := mw.CreateFormFile(fileField, fileName)
		require.NoError(t, err)
		_, err = fw.Write(data)
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())
	b.contentType = mw.FormDataContentType()
	return b
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.NewDecoder(w.Body).Decode(&v), w.Body.String())
	return v
}

func TestHandleHealth(t *testing.T) {
	env := newTestEnv(t)
	w := env.do(t, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ok"}`, w.Body.String())
}

func TestStoryWorkflowEndToEnd(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(t, http.MethodPost, "/api/v1/sessions", nil)
	require.Equal(t, http.StatusCreated, w.Code)
	sc := decode[session.Context](t, w)
	assert.Equal(t, "local", sc.UserID)
	base := "/api/v1/sessions/" + sc.ID

	w = env.do(t, http.MethodPost, base+"/save", map[string]interface{}{})
	assert.Equal(t, http.StatusConflict, w.Code)

	form := newMultipart(t, map[string]string{"platform": "instagram", "tone": "casual"}, "image", "foto.png", []byte("\x89PNG\r\n"))
	w = env.do(t, http.MethodPost, base+"/generate", form)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	gen := decode[struct {
		Story    models.Record `json:"story"`
		Warnings []string      `json:"warnings"`
	}](t, w)
	assert.Equal(t, "Café de la mañana", gen.Story.Content.Title)
	assert.Equal(t, models.PlatformInstagram, gen.Story.Platform)
	assert.True(t, strings.HasPrefix(gen.Story.ImagePath, filepath.Join(env.archive.Dir(), "images")))
	assert.NotNil(t, gen.Warnings)

	w = env.do(t, http.MethodPost, base+"/save", map[string]interface{}{})
	assert.Equal(t, http.StatusConflict, w.Code, "unapproved save")

	w = env.do(t, http.MethodPut, base+"/story", models.Content{Title: "Café editado", Hook: "H2"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "H2", decode[models.Record](t, w).Content.FullText)

	w = env.do(t, http.MethodPost, base+"/approve", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, decode[session.Context](t, w).Approved)

	w = env.do(t, http.MethodPost, base+"/save", map[string]interface{}{"formats": []string{"json", "html"}, "remote": true})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	report := decode[workflow.SaveReport](t, w)
	require.Len(t, report.Paths, 2)
	assert.NotEmpty(t, report.RemoteID)
	key := filepath.Base(report.Paths[0])

	w = env.do(t, http.MethodGet, "/api/v1/archive", nil)
	require.Equal(t, http.StatusOK, w.Code)
	list := decode[struct {
		Total   int             `json:"total"`
		Records []models.Record `json:"records"`
	}](t, w)
	assert.Equal(t, 2, list.Total)

	w = env.do(t, http.MethodGet, "/api/v1/archive/"+key, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "Café editado", decode[models.Record](t, w).Content.Title)

	w = env.do(t, http.MethodGet, "/api/v1/archive/search?q=editado", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 2, decode[models.SearchResponse](t, w).Total)

	w = env.do(t, http.MethodGet, "/api/v1/stories", nil)
	require.Equal(t, http.StatusOK, w.Code)
	stories := decode[[]models.Record](t, w)
	require.Len(t, stories, 1)
	assert.Equal(t, report.RemoteID, stories[0].ID)

	w = env.do(t, http.MethodGet, "/api/v1/stories/"+report.RemoteID, nil)
	require.Equal(t, http.StatusOK, w.Code)

	// start a new story from the remote one
	w = env.do(t, http.MethodPost, base+"/template", workflow.Template{ID: report.RemoteID})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, report.RemoteID, decode[models.Record](t, w).EditedFrom)

	w = env.do(t, http.MethodDelete, "/api/v1/stories/"+report.RemoteID, nil)
	require.Equal(t, http.StatusOK, w.Code)
	w = env.do(t, http.MethodGet, "/api/v1/stories/"+report.RemoteID, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = env.do(t, http.MethodDelete, "/api/v1/archive/"+key, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 1, env.engine.Len())
	w = env.do(t, http.MethodGet, "/api/v1/archive/"+key, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestHandleGenerate_Validation(t *testing.T) {
	env := newTestEnv(t)
	w := env.do(t, http.MethodPost, "/api/v1/sessions/missing/generate", newMultipart(t, nil, "", "", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)

	sc := decode[session.Context](t, env.do(t, http.MethodPost, "/api/v1/sessions", nil))
	form := newMultipart(t, map[string]string{"platform": "myspace"}, "", "", nil)
	w = env.do(t, http.MethodPost, "/api/v1/sessions/"+sc.ID+"/generate", form)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestHandleTemplate_Archive(t *testing.T) {
	env := newTestEnv(t)
	_, err := env.archive.Save(&models.Record{Content: models.Content{Title: "Vieja"}}, models.FileTypeMarkdown, "historia_20240101_093000.md")
	require.NoError(t, err)
	sc := decode[session.Context](t, env.do(t, http.MethodPost, "/api/v1/sessions", nil))

	w := env.do(t, http.MethodPost, "/api/v1/sessions/"+sc.ID+"/template", workflow.Template{File: "historia_20240101_093000.md"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "Vieja", decode[models.Record](t, w).Content.Title)

	w = env.do(t, http.MethodPost, "/api/v1/sessions/"+sc.ID+"/template", workflow.Template{File: "nada.json"})
	assert.Equal(t, http.StatusNotFound, w.Code)
	w = env.do(t, http.MethodPost, "/api/v1/sessions/"+sc.ID+"/template", workflow.Template{})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = env.do(t, http.MethodGet, "/api/v1/sessions/"+sc.ID, nil)
	require.Equal(t, http.StatusOK, w.Code)
	got := decode[session.Context](t, w)
	require.NotNil(t, got.CurrentStory)
	assert.Equal(t, "Vieja", got.CurrentStory.Content.Title)
}

func TestHandleGenerate_NotConfigured(t *testing.T) {
	env := newTestEnvWith(t, generate.NewMockLLM(), nil)
	sc := decode[session.Context](t, env.do(t, http.MethodPost, "/api/v1/sessions", nil))

	form := newMultipart(t, map[string]string{"platform": "instagram"}, "image", "foto.png", []byte("\x89PNG\r\n"))
	w := env.do(t, http.MethodPost, "/api/v1/sessions/"+sc.ID+"/generate", form)
	assert.Equal(t, http.StatusNotImplemented, w.Code, w.Body.String())
	assert.Empty(t, imageFiles(t, env))

	w = env.do(t, http.MethodPost, "/api/v1/transcribe", newMultipart(t, nil, "audio", "nota.wav", []byte("RIFF")))
	assert.Equal(t, http.StatusNotImplemented, w.Code, w.Body.String())
}

func TestHandleGenerate_FailureRemovesImage(t *testing.T) {
	env := newTestEnv(t)
	env.llm.Err = errors.New("cuota agotada")
	sc := decode[session.Context](t, env.do(t, http.MethodPost, "/api/v1/sessions", nil))

	form := newMultipart(t, map[string]string{"platform": "instagram"}, "image", "foto.png", []byte("\x89PNG\r\n"))
	w := env.do(t, http.MethodPost, "/api/v1/sessions/"+sc.ID+"/generate", form)
	assert.Equal(t, http.StatusBadGateway, w.Code)
	assert.Empty(t, imageFiles(t, env))

	got, ok := env.sessions.Get(sc.ID)
	require.True(t, ok)
	assert.Nil(t, got.CurrentStory)
	require.NotEmpty(t, got.Log)
	assert.Contains(t, got.Log[len(got.Log)-1].Message, "cuota agotada")
}

func TestHandleGenerate_SessionDeletedMeanwhile(t *testing.T) {
	llm := generate.NewMockLLM("análisis de la imagen", storyJSON)
	hooked := &hookedLLM{MockLLM: llm}
	env := newTestEnvWith(t, llm, hooked)
	sc := decode[session.Context](t, env.do(t, http.MethodPost, "/api/v1/sessions", nil))
	hooked.before = func() { env.sessions.Delete(sc.ID) }

	form := newMultipart(t, map[string]string{"platform": "instagram"}, "image", "foto.png", []byte("\x89PNG\r\n"))
	w := env.do(t, http.MethodPost, "/api/v1/sessions/"+sc.ID+"/generate", form)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, 0, env.sessions.Len())
	assert.Empty(t, imageFiles(t, env))
}

func TestHandleGenerate_KeepsConcurrentApproval(t *testing.T) {
	llm := generate.NewMockLLM("análisis de la imagen", storyJSON)
	hooked := &hookedLLM{MockLLM: llm}
	env := newTestEnvWith(t, llm, hooked)
	_, err := env.archive.Save(&models.Record{Content: models.Content{Title: "Vieja"}}, models.FileTypeJSON, "historia_20240101_093000.json")
	require.NoError(t, err)
	sc := decode[session.Context](t, env.do(t, http.MethodPost, "/api/v1/sessions", nil))
	base := "/api/v1/sessions/" + sc.ID
	w := env.do(t, http.MethodPost, base+"/template", workflow.Template{File: "historia_20240101_093000.json"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	hooked.before = func() {
		_, _ = env.sessions.Update(sc.ID, func(c *session.Context) error {
			c.Approved = true
			return nil
		})
	}
	w = env.do(t, http.MethodPost, base+"/generate", newMultipart(t, map[string]string{"platform": "instagram"}, "", "", nil))
	assert.Equal(t, http.StatusConflict, w.Code, w.Body.String())

	got, ok := env.sessions.Get(sc.ID)
	require.True(t, ok)
	assert.True(t, got.Approved)
	require.NotNil(t, got.CurrentStory)
	assert.Equal(t, "Vieja", got.CurrentStory.Content.Title)
}

func TestHandleSave_SessionDeletedMeanwhile(t *testing.T) {
	env := newTestEnv(t)
	_, err := env.archive.Save(&models.Record{Content: models.Content{Title: "Vieja"}}, models.FileTypeJSON, "historia_20240101_093000.json")
	require.NoError(t, err)
	sc := decode[session.Context](t, env.do(t, http.MethodPost, "/api/v1/sessions", nil))
	base := "/api/v1/sessions/" + sc.ID
	require.Equal(t, http.StatusOK, env.do(t, http.MethodPost, base+"/template", workflow.Template{File: "historia_20240101_093000.json"}).Code)
	require.Equal(t, http.StatusOK, env.do(t, http.MethodPost, base+"/approve", nil).Code)

	env.onSaved = func() { env.sessions.Delete(sc.ID) }
	w := env.do(t, http.MethodPost, base+"/save", map[string]interface{}{"formats": []string{"md"}})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	report := decode[workflow.SaveReport](t, w)
	assert.Len(t, report.Paths, 1)
	require.Len(t, report.Warnings, 1)
	assert.Contains(t, report.Warnings[0], session.ErrNotFound.Error())
	assert.Equal(t, 0, env.sessions.Len())
}

func TestHandleTemplate_RemoteNotFound(t *testing.T) {
	env := newTestEnv(t)
	sc := decode[session.Context](t, env.do(t, http.MethodPost, "/api/v1/sessions", nil))

	w := env.do(t, http.MethodPost, "/api/v1/sessions/"+sc.ID+"/template", workflow.Template{ID: "no-existe"})
	assert.Equal(t, http.StatusNotFound, w.Code, w.Body.String())

	w = env.do(t, http.MethodPost, "/api/v1/sessions/missing/template", workflow.Template{ID: "no-existe"})
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestHandleArchive_Errors(t *testing.T) {
	env := newTestEnv(t)
	w := env.do(t, http.MethodGet, "/api/v1/archive/notes.txt", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	w = env.do(t, http.MethodGet, "/api/v1/archive/search?q=", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = env.do(t, http.MethodGet, "/api/v1/archive", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"total":0,"records":[]}`, w.Body.String())
}

func TestHandleTranscribe(t *testing.T) {
	env := newTestEnv(t)
	w := env.do(t, http.MethodPost, "/api/v1/transcribe", newMultipart(t, nil, "audio", "nota.wav", []byte("RIFF")))
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)

	env.llm.Transcript = "con tono alegre"
	w = env.do(t, http.MethodPost, "/api/v1/transcribe", newMultipart(t, nil, "audio", "nota.wav", []byte("RIFF")))
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"text":"con tono alegre"}`, w.Body.String())

	w = env.do(t, http.MethodPost, "/api/v1/transcribe", newMultipart(t, nil, "", "", nil))
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestHandleStatus(t *testing.T) {
	env := newTestEnv(t)
	_, err := env.archive.Save(&models.Record{CreatedAt: models.NewTimestamp(time.Now())}, models.FileTypeJSON, "")
	require.NoError(t, err)

	w := env.do(t, http.MethodGet, "/api/v1/status", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var status map[string]interface{}
	require.NoError(t, json.NewDecoder(w.Body).Decode(&status))
	assert.EqualValues(t, 1, status["archive_records"])
	assert.Contains(t, status, "disk_usage")
	assert.Contains(t, status, "config")
}

func TestUserHeaderScopesStories(t *testing.T) {
	env := newTestEnv(t)
	res := env.remote.SaveStory(t.Context(), "ana", &models.Record{Content: models.Content{Title: "De Ana"}})
	require.True(t, res.Success)

	r := httptest.NewRequest(http.MethodGet, "/api/v1/stories", nil)
	r.Header.Set(userHeader, "ana")
	w := httptest.NewRecorder()
	env.handler.ServeHTTP(w, r)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decode[[]models.Record](t, w), 1)

	w = env.do(t, http.MethodGet, "/api/v1/stories", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `[]`, w.Body.String())
}
