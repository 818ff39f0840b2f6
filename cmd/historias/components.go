package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/hyperjump/historias/internal/archive"
	"github.com/hyperjump/historias/internal/config"
	"github.com/hyperjump/historias/internal/extract"
	"github.com/hyperjump/historias/internal/generate"
	"github.com/hyperjump/historias/internal/remote"
	"github.com/hyperjump/historias/internal/search"
	"github.com/hyperjump/historias/internal/storage"
	"github.com/hyperjump/historias/internal/workflow"
	"go.uber.org/zap"
)

// Components holds everything the commands share.
type Components struct {
	Archive   *archive.Archive
	Store     *storage.SQLiteStore
	Objects   *storage.MinioStore
	Remote    *remote.Client
	LLM       *generate.Gemini
	Generator *generate.Generator
	Workflow  *workflow.Service
	Search    *search.Engine
}

// Close releases the index and the database.
func (c *Components) Close() {
	if c.Search != nil {
		_ = c.Search.Close()
	}
	if c.Store != nil {
		_ = c.Store.Close()
	}
}

// initializeComponents builds the archive, the story database, the optional
// object store and LLM client, and the services on top of them. Generation is
// left unconfigured when no API key is set.
func initializeComponents(ctx context.Context, cfg *config.Config, logger *zap.Logger, savedHook func(paths []string)) (*Components, error) {
	registry, err := archive.NewRegistry(archive.Capabilities{
		HTMLStrategy: cfg.Archive.HTMLParser,
		PDFText:      cfg.Archive.PDFTextOrDefault(),
		Lines:        extract.NewExtractor(),
	})
	if err != nil {
		return nil, fmt.Errorf("archive formats: %w", err)
	}
	c := &Components{
		Archive: archive.New(cfg.Archive.Directory, registry,
			archive.WithPrefix(cfg.Archive.Prefix),
			archive.WithLogger(logger),
		),
	}

	if dir := filepath.Dir(cfg.Storage.DatabasePath); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}
	c.Store, err = storage.NewSQLiteStore(cfg.Storage.DatabasePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open story database: %w", err)
	}

	var objects storage.ObjectStore
	if cfg.Objects.Enabled() {
		c.Objects, err = storage.NewMinioStore(storage.ObjectsConfig{
			Endpoint:        cfg.Objects.Endpoint,
			Bucket:          cfg.Objects.Bucket,
			AccessKeyID:     cfg.Objects.AccessKeyID,
			SecretAccessKey: cfg.Objects.SecretAccessKey,
			UseSSL:          cfg.Objects.UseSSL,
			PublicBaseURL:   cfg.Objects.PublicBaseURL,
		})
		if err != nil {
			c.Close()
			return nil, fmt.Errorf("failed to create object store: %w", err)
		}
		objects = c.Objects
	}
	c.Remote = remote.NewClient(c.Store, objects, logger)

	wfOpts := []workflow.ServiceOption{
		workflow.WithLogger(logger),
		workflow.WithRemote(c.Remote),
	}
	formats, err := workflow.ParseFormats(cfg.Archive.Formats)
	if err != nil {
		c.Close()
		return nil, err
	}
	if len(formats) > 0 {
		wfOpts = append(wfOpts, workflow.WithDefaultFormats(formats))
	}
	if savedHook != nil {
		wfOpts = append(wfOpts, workflow.WithSavedHook(savedHook))
	}

	if cfg.LLM.APIKey != "" {
		c.LLM, err = generate.NewGemini(ctx, generate.GeminiConfig{
			APIKey:          cfg.LLM.APIKey,
			Model:           cfg.LLM.Model,
			VisionModel:     cfg.LLM.VisionModel,
			Temperature:     cfg.LLM.Temperature,
			MaxOutputTokens: cfg.LLM.MaxOutputTokens,
		})
		if err != nil {
			c.Close()
			return nil, err
		}
		c.Generator = generate.NewGenerator(c.LLM, c.LLM, generate.WithLogger(logger))
		wfOpts = append(wfOpts, workflow.WithTranscriber(c.LLM))
	} else {
		logger.Debug("no LLM API key, generation disabled", zap.String("env", config.EnvGeminiAPIKey))
	}
	c.Workflow = workflow.NewService(c.Archive, c.Generator, wfOpts...)

	c.Search, err = search.NewEngine(c.Archive, search.WithLogger(logger))
	if err != nil {
		c.Close()
		return nil, fmt.Errorf("failed to create search index: %w", err)
	}
	return c, nil
}
