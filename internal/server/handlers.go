package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/hyperjump/historias/internal/generate"
	"github.com/hyperjump/historias/internal/models"
	"github.com/hyperjump/historias/internal/session"
	"github.com/hyperjump/historias/internal/storage"
	"github.com/hyperjump/historias/internal/workflow"
)

// imagesDir is the archive subdirectory that keeps uploaded source images.
const imagesDir = "images"

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	records, err := s.archive.Scan(r.Context())
	if err != nil {
		s.logger.Error("status: scan archive failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	resp := map[string]interface{}{
		"archive_records": len(records),
		"sessions":        s.sessions.Len(),
	}
	if s.search != nil {
		resp["indexed_records"] = s.search.Len()
	}
	if usage, err := storage.DiskUsage(s.archive.Dir(), s.config.Storage.DatabasePath); err == nil {
		resp["disk_usage"] = usage
	}
	resp["config"] = map[string]interface{}{
		"archive_directory": s.archive.Dir(),
		"html_parser":       s.config.Archive.HTMLParser,
		"pdf_text":          s.config.Archive.PDFTextOrDefault(),
		"formats":           s.config.Archive.Formats,
		"database_path":     s.config.Storage.DatabasePath,
		"objects_enabled":   s.config.Objects.Enabled(),
		"remote_enabled":    s.remote != nil,
		"model":             s.config.LLM.Model,
	}
	s.respondJSON(w, http.StatusOK, resp)
}

// Sessions

func (s *Server) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	sc := s.sessions.Create(s.userID(r))
	s.logger.Debug("session created", zap.String("id", sc.ID), zap.String("user", sc.UserID))
	s.respondJSON(w, http.StatusCreated, sc)
}

func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	sc, ok := s.session(w, r)
	if !ok {
		return
	}
	s.respondJSON(w, http.StatusOK, sc)
}

func (s *Server) handleDeleteSession(w http.ResponseWriter, r *http.Request) {
	sc, ok := s.session(w, r)
	if !ok {
		return
	}
	s.sessions.Delete(sc.ID)
	s.respondJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

func (s *Server) handleGenerate(w http.ResponseWriter, r *http.Request) {
	sc, ok := s.session(w, r)
	if !ok {
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid multipart form")
		return
	}
	req := generate.Request{
		Platform:        r.FormValue("platform"),
		Tone:            r.FormValue("tone"),
		AdditionalSpecs: r.FormValue("additional_specs"),
		Brief:           r.FormValue("brief"),
	}
	if !models.ParsePlatform(req.Platform).IsSocial() {
		s.respondError(w, http.StatusBadRequest, "platform must be one of facebook, linkedin, instagram, twitter")
		return
	}
	if file, header, err := r.FormFile("image"); err == nil {
		defer file.Close()
		data, path, err := s.storeImage(file, header)
		if err != nil {
			s.logger.Error("store uploaded image failed", zap.Error(err))
			s.respondError(w, http.StatusInternalServerError, err.Error())
			return
		}
		req.Image = data
		req.ImagePath = path
		req.ImageMIMEType = header.Header.Get("Content-Type")
	} else if !errors.Is(err, http.ErrMissingFile) {
		s.respondError(w, http.StatusBadRequest, "invalid image upload")
		return
	}

	s.logger.Debug("generate request", zap.String("session", sc.ID), zap.String("platform", req.Platform))
	out, err := s.workflow.Generate(r.Context(), sc, req)
	if err != nil {
		s.removeImage(req.ImagePath)
		if cerr := s.sessions.Commit(sc); cerr != nil {
			s.logger.Debug("generation error not logged to session", zap.Error(cerr))
		}
		if errors.Is(err, workflow.ErrNotConfigured) {
			s.respondError(w, http.StatusNotImplemented, err.Error())
			return
		}
		s.logger.Error("generation failed", zap.Error(err))
		s.respondError(w, http.StatusBadGateway, err.Error())
		return
	}
	if err := s.sessions.Commit(sc); err != nil {
		s.removeImage(req.ImagePath)
		s.respondCommitError(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]interface{}{
		"story":    out.Record,
		"warnings": nonNil(out.Warnings),
	})
}

func (s *Server) storeImage(file multipart.File, header *multipart.FileHeader) ([]byte, string, error) {
	data, err := io.ReadAll(file)
	if err != nil {
		return nil, "", fmt.Errorf("read image: %w", err)
	}
	dir := filepath.Join(s.archive.Dir(), imagesDir)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, "", fmt.Errorf("create images dir: %w", err)
	}
	ext := strings.ToLower(filepath.Ext(header.Filename))
	if ext == "" {
		ext = ".jpg"
	}
	path := filepath.Join(dir, uuid.NewString()+ext)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return nil, "", fmt.Errorf("write image: %w", err)
	}
	return data, path, nil
}

// removeImage deletes an uploaded image whose story was not kept.
func (s *Server) removeImage(path string) {
	if path == "" {
		return
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		s.logger.Warn("remove uploaded image failed", zap.String("path", path), zap.Error(err))
	}
}

func (s *Server) handleEditStory(w http.ResponseWriter, r *http.Request) {
	var content models.Content
	if err := json.NewDecoder(r.Body).Decode(&content); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	var rec *models.Record
	_, err := s.sessions.Update(chi.URLParam(r, "id"), func(sc *session.Context) error {
		var err error
		rec, err = s.workflow.Edit(sc, content)
		return err
	})
	if s.respondSessionError(w, err) {
		return
	}
	s.respondJSON(w, http.StatusOK, rec)
}

func (s *Server) handleApprove(w http.ResponseWriter, r *http.Request) {
	sc, err := s.sessions.Update(chi.URLParam(r, "id"), s.workflow.Approve)
	if s.respondSessionError(w, err) {
		return
	}
	s.respondJSON(w, http.StatusOK, sc)
}

type saveRequest struct {
	Formats        []string `json:"formats"`
	Remote         bool     `json:"remote"`
	UpdateExisting bool     `json:"update_existing"`
}

func (s *Server) handleSave(w http.ResponseWriter, r *http.Request) {
	sc, ok := s.session(w, r)
	if !ok {
		return
	}
	var req saveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	formats, err := workflow.ParseFormats(req.Formats)
	if err != nil {
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	report, err := s.workflow.Save(r.Context(), sc, workflow.SaveOptions{
		Formats:        formats,
		Remote:         req.Remote,
		UpdateExisting: req.UpdateExisting,
	})
	if cerr := s.sessions.Commit(sc); cerr != nil && report != nil {
		// The files are written either way; only the session keeps its old state.
		report.Warnings = append(report.Warnings, "La sesión no se actualizó: "+cerr.Error())
	}
	switch {
	case errors.Is(err, workflow.ErrNoStory), errors.Is(err, workflow.ErrNotApproved):
		s.respondError(w, http.StatusConflict, err.Error())
	case err != nil:
		s.logger.Error("save failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
	default:
		s.respondJSON(w, http.StatusOK, report)
	}
}

func (s *Server) handleTemplate(w http.ResponseWriter, r *http.Request) {
	sc, ok := s.session(w, r)
	if !ok {
		return
	}
	var tpl workflow.Template
	if err := json.NewDecoder(r.Body).Decode(&tpl); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if tpl.File == "" && tpl.ID == "" {
		s.respondError(w, http.StatusBadRequest, "file or id is required")
		return
	}
	rec, err := s.workflow.UseTemplate(r.Context(), sc, tpl)
	if err != nil {
		status := http.StatusBadRequest
		switch {
		case errors.Is(err, fs.ErrNotExist), errors.Is(err, storage.ErrNotFound):
			status = http.StatusNotFound
		case errors.Is(err, workflow.ErrNotConfigured):
			status = http.StatusNotImplemented
		}
		s.respondError(w, status, err.Error())
		return
	}
	if err := s.sessions.Commit(sc); err != nil {
		s.respondCommitError(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, rec)
}

// Archive

func (s *Server) handleArchiveList(w http.ResponseWriter, r *http.Request) {
	records, err := s.archive.Scan(r.Context())
	if err != nil {
		s.logger.Error("scan archive failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if p := r.URL.Query().Get("platform"); p != "" {
		platform := models.ParsePlatform(p)
		filtered := records[:0]
		for _, rec := range records {
			if rec.Platform == platform {
				filtered = append(filtered, rec)
			}
		}
		records = filtered
	}
	total := len(records)
	if limit := queryInt(r, "limit", 0); limit > 0 && limit < len(records) {
		records = records[:limit]
	}
	s.respondJSON(w, http.StatusOK, map[string]interface{}{
		"total":   total,
		"records": nonNil(records),
	})
}

func (s *Server) handleArchiveSearch(w http.ResponseWriter, r *http.Request) {
	if s.search == nil {
		s.respondError(w, http.StatusNotImplemented, "search not enabled")
		return
	}
	q := r.URL.Query()
	query := &models.SearchQuery{
		Query:    q.Get("q"),
		Limit:    queryInt(r, "limit", 0),
		Platform: models.ParsePlatform(q.Get("platform")),
		Fuzzy:    q.Get("fuzzy") == "true" || q.Get("fuzzy") == "1",
	}
	s.logger.Debug("search request", zap.String("query", query.Query), zap.Int("limit", query.Limit))
	resp, err := s.search.Search(r.Context(), query)
	if err != nil {
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	s.respondJSON(w, http.StatusOK, resp)
}

func (s *Server) handleArchiveGet(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "key")
	rec, err := s.archive.Load(key)
	if err != nil {
		s.respondArchiveError(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, rec)
}

func (s *Server) handleArchiveDelete(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "key")
	s.logger.Debug("delete archived story", zap.String("key", key))
	if err := s.archive.Delete(key); err != nil {
		s.respondArchiveError(w, err)
		return
	}
	if s.search != nil {
		s.search.Remove(key)
	}
	s.respondJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

// Remote stories

func (s *Server) handleStoriesList(w http.ResponseWriter, r *http.Request) {
	if s.remote == nil {
		s.respondError(w, http.StatusNotImplemented, "remote storage not enabled")
		return
	}
	res := s.remote.GetStories(r.Context(), s.userID(r), queryInt(r, "limit", s.config.Storage.ListLimit))
	s.respondResult(w, res.Err(), res.Data)
}

func (s *Server) handleStoryGet(w http.ResponseWriter, r *http.Request) {
	if s.remote == nil {
		s.respondError(w, http.StatusNotImplemented, "remote storage not enabled")
		return
	}
	res := s.remote.GetStory(r.Context(), s.userID(r), chi.URLParam(r, "id"))
	s.respondResult(w, res.Err(), res.Data)
}

func (s *Server) handleStoryDelete(w http.ResponseWriter, r *http.Request) {
	if s.remote == nil {
		s.respondError(w, http.StatusNotImplemented, "remote storage not enabled")
		return
	}
	res := s.remote.DeleteStory(r.Context(), s.userID(r), chi.URLParam(r, "id"))
	s.respondResult(w, res.Err(), map[string]string{"id": res.Data, "status": "deleted"})
}

func (s *Server) handleTranscribe(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid multipart form")
		return
	}
	file, header, err := r.FormFile("audio")
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "audio file is required")
		return
	}
	defer file.Close()
	data, err := io.ReadAll(file)
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid audio upload")
		return
	}
	text, err := s.workflow.TranscribeSpecs(r.Context(), data, header.Header.Get("Content-Type"))
	switch {
	case errors.Is(err, generate.ErrUnintelligible):
		s.respondError(w, http.StatusUnprocessableEntity, err.Error())
	case errors.Is(err, workflow.ErrNotConfigured):
		s.respondError(w, http.StatusNotImplemented, err.Error())
	case err != nil:
		s.logger.Error("transcription failed", zap.Error(err))
		s.respondError(w, http.StatusBadGateway, err.Error())
	default:
		s.respondJSON(w, http.StatusOK, map[string]string{"text": text})
	}
}

// Helpers

func (s *Server) session(w http.ResponseWriter, r *http.Request) (*session.Context, bool) {
	sc, ok := s.sessions.Get(chi.URLParam(r, "id"))
	if !ok {
		s.respondError(w, http.StatusNotFound, "session not found")
		return nil, false
	}
	return sc, true
}

// respondSessionError writes the error response for a session update, if any.
func (s *Server) respondSessionError(w http.ResponseWriter, err error) bool {
	switch {
	case err == nil:
		return false
	case errors.Is(err, session.ErrNotFound):
		s.respondError(w, http.StatusNotFound, "session not found")
	case errors.Is(err, workflow.ErrNoStory):
		s.respondError(w, http.StatusConflict, err.Error())
	default:
		s.respondError(w, http.StatusInternalServerError, err.Error())
	}
	return true
}

// respondCommitError writes the response for a session that could not be
// written back after a slow operation.
func (s *Server) respondCommitError(w http.ResponseWriter, err error) {
	if errors.Is(err, session.ErrNotFound) {
		s.respondError(w, http.StatusNotFound, "session not found")
		return
	}
	s.respondError(w, http.StatusConflict, err.Error())
}

func (s *Server) respondArchiveError(w http.ResponseWriter, err error) {
	if errors.Is(err, fs.ErrNotExist) {
		s.respondError(w, http.StatusNotFound, "story not found")
		return
	}
	s.respondError(w, http.StatusBadRequest, err.Error())
}

// respondResult writes data for a successful remote call, or maps its error.
func (s *Server) respondResult(w http.ResponseWriter, err error, data interface{}) {
	switch {
	case err == nil:
		s.respondJSON(w, http.StatusOK, data)
	case errors.Is(err, storage.ErrNotFound):
		s.respondError(w, http.StatusNotFound, err.Error())
	default:
		s.respondError(w, http.StatusBadGateway, err.Error())
	}
}

func queryInt(r *http.Request, name string, def int) int {
	v, err := strconv.Atoi(r.URL.Query().Get(name))
	if err != nil {
		return def
	}
	return v
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}

func (s *Server) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	_ = enc.Encode(data)
}

func (s *Server) respondError(w http.ResponseWriter, status int, message string) {
	s.respondJSON(w, status, map[string]string{"error": message})
}
