package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"slices"
	"strings"
	"syscall"
	"time"

	"github.com/hyperjump/historias/internal/archive"
	"github.com/hyperjump/historias/internal/cli"
	"github.com/hyperjump/historias/internal/config"
	"github.com/hyperjump/historias/internal/extract"
	"github.com/hyperjump/historias/internal/generate"
	"github.com/hyperjump/historias/internal/models"
	"github.com/hyperjump/historias/internal/report"
	"github.com/hyperjump/historias/internal/search"
	"github.com/hyperjump/historias/internal/server"
	"github.com/hyperjump/historias/internal/session"
	"github.com/hyperjump/historias/internal/storage"
	"github.com/hyperjump/historias/internal/watcher"
	"github.com/hyperjump/historias/internal/workflow"
	"go.uber.org/zap"
)

// sessionMaxAge is how long an idle server session is kept.
const sessionMaxAge = 24 * time.Hour

func runServer() {
	fs := flag.NewFlagSet("server", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	debug := fs.Bool("debug", false, "enable debug logging (archive changes, requests, etc.)")
	_ = fs.Parse(os.Args[2:])

	cfg, resolvedConfigPath, logger := setup(*configPath, *debug)
	defer logger.Sync()

	logger.Info("config loaded",
		zap.String("config_path", resolvedConfigPath),
		zap.String("archive", cfg.Archive.Directory),
		zap.Bool("watch", cfg.Archive.Watch),
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var components *Components
	var err error
	components, err = initializeComponents(ctx, cfg, logger, func(paths []string) {
		// Saves made through the API reach the index even without the watcher.
		for _, p := range paths {
			if err := components.Search.Refresh(filepath.Base(p)); err != nil {
				logger.Warn("index saved file failed", zap.String("path", p), zap.Error(err))
			}
		}
	})
	if err != nil {
		logger.Fatal("Failed to initialize components", zap.Error(err))
	}
	defer components.Close()
	engine := components.Search

	if components.Objects != nil {
		if err := components.Objects.EnsureBucket(ctx); err != nil {
			logger.Warn("object store unavailable, image uploads will fail", zap.Error(err))
		}
	}

	n, err := engine.Rebuild(ctx)
	if err != nil {
		logger.Fatal("Failed to index archive", zap.Error(err))
	}
	logger.Info("archive indexed", zap.Int("records", n))

	var watchSvc *watcher.Watcher
	if cfg.Archive.Watch {
		watchSvc = watcher.NewWatcher(
			components.Archive.Dir(),
			archive.IsArchiveFile,
			func(name string) {
				if err := engine.Refresh(name); err != nil {
					logger.Warn("watch index file failed", zap.String("file", name), zap.Error(err))
				}
			},
			engine.Remove,
			watcher.WithLogger(logger),
		)
		if err := watchSvc.Start(ctx); err != nil {
			logger.Fatal("Failed to start watcher", zap.Error(err))
		}
		defer watchSvc.Stop()
	}

	srv := server.NewServer(
		cfg,
		components.Workflow,
		components.Archive,
		engine,
		components.Remote,
		session.NewStore(sessionMaxAge),
		logger,
	)
	go func() {
		if err := srv.Start(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Server failed", zap.Error(err))
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	logger.Info("Shutting down...")
	cancel()
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	_ = srv.Stop(shutdownCtx)
}

func runGenerate() {
	fs := flag.NewFlagSet("generate", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	debug := fs.Bool("debug", false, "enable debug logging")
	imagePath := fs.String("image", "", "image file the story is about")
	platform := fs.String("platform", string(models.PlatformInstagram), "facebook, linkedin, instagram or twitter")
	tone := fs.String("tone", "casual", "tone of the story")
	specs := fs.String("specs", "", "additional instructions")
	specsAudio := fs.String("specs-audio", "", "voice note with additional instructions")
	brief := fs.String("brief", "", "reference document (.txt, .md, .pdf, .docx)")
	formats := fs.String("formats", "", "comma-separated archive formats (default from config)")
	remoteSave := fs.Bool("remote", false, "also save to the story database")
	yes := fs.Bool("yes", false, "save without asking")
	style := fs.String("style", "auto", "glamour style for the preview (auto, dark, light, notty)")
	outputFormat := fs.String("output", "text", "output format: text, compact or json")
	_ = fs.Parse(os.Args[2:])

	format, err := cli.ParseOutputFormat(*outputFormat)
	if err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
	saveFormats, err := workflow.ParseFormats([]string{*formats})
	if err != nil {
		fmt.Println(err)
		os.Exit(1)
	}

	cfg, _, logger := setup(*configPath, *debug)
	defer logger.Sync()

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Duration(cfg.LLM.TimeoutSeconds)*time.Second)
	defer cancel()

	components, err := initializeComponents(ctx, cfg, logger, nil)
	if err != nil {
		logger.Fatal("Failed to initialize components", zap.Error(err))
	}
	defer components.Close()
	if components.Generator == nil {
		fmt.Printf("Generation is not configured: set %s or llm.api_key\n", config.EnvGeminiAPIKey)
		os.Exit(1)
	}

	req := generate.Request{Platform: *platform, Tone: *tone, AdditionalSpecs: *specs}
	if *imagePath != "" {
		data, err := os.ReadFile(*imagePath)
		if err != nil {
			fmt.Printf("Failed to read image: %v\n", err)
			os.Exit(1)
		}
		req.Image = data
		req.ImageMIMEType = detectMIME(*imagePath, data)
		if abs, err := filepath.Abs(*imagePath); err == nil {
			req.ImagePath = abs
		} else {
			req.ImagePath = *imagePath
		}
	}
	if *specsAudio != "" {
		data, err := os.ReadFile(*specsAudio)
		if err != nil {
			fmt.Printf("Failed to read audio: %v\n", err)
			os.Exit(1)
		}
		text, err := components.Workflow.TranscribeSpecs(ctx, data, detectMIME(*specsAudio, data))
		if err != nil {
			fmt.Printf("Failed to transcribe audio: %v\n", err)
			os.Exit(1)
		}
		req.AdditionalSpecs = strings.TrimSpace(req.AdditionalSpecs + "\n" + text)
	}
	if *brief != "" {
		if !slices.Contains(extract.BriefExtensions, strings.ToLower(filepath.Ext(*brief))) {
			fmt.Printf("Unsupported brief document %s (use %s)\n", *brief, strings.Join(extract.BriefExtensions, ", "))
			os.Exit(1)
		}
		text, err := extract.NewExtractor().Extract(*brief)
		if err != nil {
			fmt.Printf("Failed to read brief: %v\n", err)
			os.Exit(1)
		}
		req.Brief = text
	}

	sc := session.New(cfg.Storage.UserID)
	outcome, err := components.Workflow.Generate(ctx, sc, req)
	if err != nil {
		fmt.Printf("Generation failed: %v\n", err)
		os.Exit(1)
	}
	for _, w := range outcome.Warnings {
		fmt.Fprintf(os.Stderr, "Aviso: %s\n", w)
	}
	if format == cli.OutputText {
		err = cli.RenderRecord(os.Stdout, outcome.Record, *style, 0)
	} else {
		err = cli.WriteRecords(os.Stdout, []*models.Record{outcome.Record}, format)
	}
	if err != nil {
		fmt.Printf("Failed to render story: %v\n", err)
		os.Exit(1)
	}

	if !*yes && !confirm(os.Stdin, os.Stderr, "¿Guardar esta historia? [s/N] ") {
		fmt.Fprintln(os.Stderr, "Historia descartada.")
		return
	}
	saveApproved(ctx, components.Workflow, sc, workflow.SaveOptions{Formats: saveFormats, Remote: *remoteSave}, format)
}

func runConvert() {
	fs := flag.NewFlagSet("convert", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	debug := fs.Bool("debug", false, "enable debug logging")
	formats := fs.String("formats", "", "comma-separated archive formats (default from config)")
	remoteID := fs.Bool("remote-id", false, "the argument is a story database id, not an archive file")
	remoteSave := fs.Bool("remote", false, "also save to the story database")
	update := fs.Bool("update", false, "update the database story the copy came from instead of inserting")
	outputFormat := fs.String("output", "text", "output format: text, compact or json")
	_ = fs.Parse(searchArgsReorder(os.Args[2:]))

	if fs.NArg() != 1 {
		fmt.Println("Usage: historias convert [flags] <file|id>")
		os.Exit(1)
	}
	format, err := cli.ParseOutputFormat(*outputFormat)
	if err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
	saveFormats, err := workflow.ParseFormats([]string{*formats})
	if err != nil {
		fmt.Println(err)
		os.Exit(1)
	}

	cfg, _, logger := setup(*configPath, *debug)
	defer logger.Sync()
	ctx := context.Background()
	components, err := initializeComponents(ctx, cfg, logger, nil)
	if err != nil {
		logger.Fatal("Failed to initialize components", zap.Error(err))
	}
	defer components.Close()

	tpl := workflow.Template{File: fs.Arg(0)}
	if *remoteID {
		tpl = workflow.Template{ID: fs.Arg(0)}
	}
	sc := session.New(cfg.Storage.UserID)
	if _, err := components.Workflow.UseTemplate(ctx, sc, tpl); err != nil {
		fmt.Printf("Failed to load story: %v\n", err)
		os.Exit(1)
	}
	saveApproved(ctx, components.Workflow, sc, workflow.SaveOptions{
		Formats:        saveFormats,
		Remote:         *remoteSave,
		UpdateExisting: *update,
	}, format)
}

// saveApproved approves and saves the session's story and prints the report.
func saveApproved(ctx context.Context, wf *workflow.Service, sc *session.Context, opts workflow.SaveOptions, format cli.OutputFormat) {
	if err := wf.Approve(sc); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
	rep, err := wf.Save(ctx, sc, opts)
	if rep != nil {
		_ = cli.WriteSaveReport(os.Stdout, rep, format)
	}
	if err != nil {
		fmt.Printf("Save failed: %v\n", err)
		os.Exit(1)
	}
}

// loadArchive loads the config and builds only the archive, for the commands
// that read local files.
func loadArchive(configPath string, debug bool) (*config.Config, *archive.Archive, *zap.Logger) {
	cfg, _, logger := setup(configPath, debug)
	registry, err := archive.NewRegistry(archive.Capabilities{
		HTMLStrategy: cfg.Archive.HTMLParser,
		PDFText:      cfg.Archive.PDFTextOrDefault(),
		Lines:        extract.NewExtractor(),
	})
	if err != nil {
		fmt.Printf("Invalid archive settings: %v\n", err)
		os.Exit(1)
	}
	arch := archive.New(cfg.Archive.Directory, registry,
		archive.WithPrefix(cfg.Archive.Prefix),
		archive.WithLogger(logger),
	)
	return cfg, arch, logger
}

func runList() {
	fs := flag.NewFlagSet("list", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	debug := fs.Bool("debug", false, "enable debug logging")
	platform := fs.String("platform", "", "only stories for this platform")
	limit := fs.Int("limit", 0, "maximum number of stories (0 = all)")
	outputFormat := fs.String("output", "text", "output format: text, compact or json")
	_ = fs.Parse(os.Args[2:])

	format, err := cli.ParseOutputFormat(*outputFormat)
	if err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
	_, arch, logger := loadArchive(*configPath, *debug)
	defer logger.Sync()

	records, err := arch.Scan(context.Background())
	if err != nil {
		fmt.Printf("Failed to read archive: %v\n", err)
		os.Exit(1)
	}
	records = filterRecords(records, models.ParsePlatform(*platform), *limit)
	if err := cli.WriteRecords(os.Stdout, records, format); err != nil {
		fmt.Printf("Failed to write output: %v\n", err)
		os.Exit(1)
	}
}

// filterRecords keeps the records for platform (all when empty), at most
// limit of them when limit is positive.
func filterRecords(records []*models.Record, platform models.Platform, limit int) []*models.Record {
	if platform != "" {
		kept := records[:0:0]
		for _, rec := range records {
			if rec.Platform == platform {
				kept = append(kept, rec)
			}
		}
		records = kept
	}
	if limit > 0 && len(records) > limit {
		records = records[:limit]
	}
	return records
}

func runShow() {
	fs := flag.NewFlagSet("show", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	debug := fs.Bool("debug", false, "enable debug logging")
	style := fs.String("style", "auto", "glamour style (auto, dark, light, notty)")
	width := fs.Int("width", 0, "word wrap width (0 = default)")
	outputFormat := fs.String("output", "text", "output format: text or json")
	_ = fs.Parse(searchArgsReorder(os.Args[2:]))

	if fs.NArg() != 1 {
		fmt.Println("Usage: historias show [flags] <file>")
		os.Exit(1)
	}
	format, err := cli.ParseOutputFormat(*outputFormat)
	if err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
	_, arch, logger := loadArchive(*configPath, *debug)
	defer logger.Sync()

	rec, err := arch.Load(filepath.Base(fs.Arg(0)))
	if err != nil {
		fmt.Printf("Failed to load story: %v\n", err)
		os.Exit(1)
	}
	if format == cli.OutputText {
		err = cli.RenderRecord(os.Stdout, rec, *style, *width)
	} else {
		err = cli.WriteRecords(os.Stdout, []*models.Record{rec}, format)
	}
	if err != nil {
		fmt.Printf("Failed to write output: %v\n", err)
		os.Exit(1)
	}
}

// printSearchUsage prints search subcommand usage.
func printSearchUsage(fs *flag.FlagSet) {
	fmt.Fprintf(fs.Output(), "Usage: historias search [flags] <query>\n\n")
	fmt.Fprintf(fs.Output(), "Query is all remaining arguments joined by spaces. Multi-word queries work with or without quotes.\n\n")
	fs.PrintDefaults()
	fmt.Fprintf(fs.Output(), `
Titles weigh more than the rest of the text and accents are ignored.
When nothing matches exactly, the search is retried with typo tolerance.

Examples:
  historias search atardecer en la playa
  historias search "atardecer en la playa"        # same as above
  historias search --platform linkedin liderazgo
  historias search --fuzzy --limit 5 montana
`)
}

func runSearch() {
	fs := flag.NewFlagSet("search", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	debug := fs.Bool("debug", false, "enable debug logging")
	limit := fs.Int("limit", 10, "number of results")
	platform := fs.String("platform", "", "only stories for this platform")
	fuzzy := fs.Bool("fuzzy", false, "enable fuzzy matching for typo tolerance")
	outputFormat := fs.String("output", "text", "output format: text (human-readable), compact (one result per line), or json (parseable)")
	fs.Usage = func() { printSearchUsage(fs) }
	_ = fs.Parse(searchArgsReorder(os.Args[2:]))

	queryStr := buildSearchQuery(fs.Args())
	if queryStr == "" {
		printSearchUsage(fs)
		os.Exit(1)
	}
	format, err := cli.ParseOutputFormat(*outputFormat)
	if err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
	_, arch, logger := loadArchive(*configPath, *debug)
	defer logger.Sync()

	ctx := context.Background()
	engine, err := newSearchEngine(ctx, arch, logger)
	if err != nil {
		fmt.Printf("Failed to index archive: %v\n", err)
		os.Exit(1)
	}
	defer engine.Close()

	query := &models.SearchQuery{
		Query:    queryStr,
		Limit:    *limit,
		Platform: models.ParsePlatform(*platform),
		Fuzzy:    *fuzzy,
	}
	resp, err := engine.Search(ctx, query)
	if err == nil && resp.Total == 0 && !query.Fuzzy {
		logger.Debug("no exact matches, retrying with fuzzy matching", zap.String("query", queryStr))
		query.Fuzzy = true
		resp, err = engine.Search(ctx, query)
	}
	if err != nil {
		fmt.Printf("Search failed: %v\n", err)
		os.Exit(1)
	}
	if err := cli.WriteSearchResults(os.Stdout, resp, format); err != nil {
		fmt.Printf("Failed to write output: %v\n", err)
		os.Exit(1)
	}
}

func runExport() {
	fs := flag.NewFlagSet("export", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	debug := fs.Bool("debug", false, "enable debug logging")
	out := fs.String("out", "historias.xlsx", "spreadsheet to write")
	platform := fs.String("platform", "", "only stories for this platform")
	_ = fs.Parse(os.Args[2:])

	_, arch, logger := loadArchive(*configPath, *debug)
	defer logger.Sync()

	records, err := arch.Scan(context.Background())
	if err != nil {
		fmt.Printf("Failed to read archive: %v\n", err)
		os.Exit(1)
	}
	records = filterRecords(records, models.ParsePlatform(*platform), 0)

	f, err := os.Create(*out)
	if err != nil {
		fmt.Printf("Failed to create %s: %v\n", *out, err)
		os.Exit(1)
	}
	if err := report.WriteCatalog(f, records); err != nil {
		f.Close()
		fmt.Printf("Failed to write catalog: %v\n", err)
		os.Exit(1)
	}
	if err := f.Close(); err != nil {
		fmt.Printf("Failed to write %s: %v\n", *out, err)
		os.Exit(1)
	}
	fmt.Printf("Exported %d stories to %s\n", len(records), *out)
}

func runStories() {
	fs := flag.NewFlagSet("stories", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	debug := fs.Bool("debug", false, "enable debug logging")
	user := fs.String("user", "", "user id (default from config)")
	limit := fs.Int("limit", 0, "maximum number of stories (default from config)")
	outputFormat := fs.String("output", "text", "output format: text, compact or json")
	_ = fs.Parse(os.Args[2:])

	format, err := cli.ParseOutputFormat(*outputFormat)
	if err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
	cfg, _, logger := setup(*configPath, *debug)
	defer logger.Sync()
	ctx := context.Background()
	components, err := initializeComponents(ctx, cfg, logger, nil)
	if err != nil {
		logger.Fatal("Failed to initialize components", zap.Error(err))
	}
	defer components.Close()

	userID := *user
	if userID == "" {
		userID = cfg.Storage.UserID
	}
	n := *limit
	if n <= 0 {
		n = cfg.Storage.ListLimit
	}
	res := components.Remote.GetStories(ctx, userID, n)
	if !res.Success {
		fmt.Printf("Failed to list stories: %s\n", res.Error)
		os.Exit(1)
	}
	if err := cli.WriteRecords(os.Stdout, res.Data, format); err != nil {
		fmt.Printf("Failed to write output: %v\n", err)
		os.Exit(1)
	}
}

func runDelete() {
	fs := flag.NewFlagSet("delete", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	debug := fs.Bool("debug", false, "enable debug logging")
	remoteID := fs.Bool("remote", false, "the argument is a story database id, not an archive file")
	user := fs.String("user", "", "user id (default from config)")
	_ = fs.Parse(searchArgsReorder(os.Args[2:]))

	if fs.NArg() != 1 {
		fmt.Println("Usage: historias delete [flags] <file|id>")
		os.Exit(1)
	}
	target := fs.Arg(0)

	if !*remoteID {
		_, arch, logger := loadArchive(*configPath, *debug)
		defer logger.Sync()
		if err := arch.Delete(filepath.Base(target)); err != nil {
			fmt.Printf("Failed to delete %s: %v\n", target, err)
			os.Exit(1)
		}
		fmt.Printf("Deleted %s\n", filepath.Base(target))
		return
	}

	cfg, _, logger := setup(*configPath, *debug)
	defer logger.Sync()
	ctx := context.Background()
	components, err := initializeComponents(ctx, cfg, logger, nil)
	if err != nil {
		logger.Fatal("Failed to initialize components", zap.Error(err))
	}
	defer components.Close()

	userID := *user
	if userID == "" {
		userID = cfg.Storage.UserID
	}
	res := components.Remote.DeleteStory(ctx, userID, target)
	if !res.Success {
		fmt.Printf("Failed to delete story %s: %s\n", target, res.Error)
		os.Exit(1)
	}
	fmt.Printf("Deleted story %s\n", target)
}

// statusResponse is the subset of the server's status payload the CLI prints.
type statusResponse struct {
	ArchiveRecords int            `json:"archive_records"`
	IndexedRecords int            `json:"indexed_records,omitempty"`
	Sessions       int            `json:"sessions,omitempty"`
	StoredStories  int64          `json:"stored_stories,omitempty"`
	DiskUsage      *storage.Usage `json:"disk_usage,omitempty"`
	Config         map[string]any `json:"config,omitempty"`
}

func statusViaHTTP(serverURL string) (*statusResponse, error) {
	resp, err := http.Get(strings.TrimRight(serverURL, "/") + "/api/v1/status")
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("server returned %d: %s", resp.StatusCode, string(b))
	}
	var s statusResponse
	if err := json.NewDecoder(resp.Body).Decode(&s); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return &s, nil
}

func statusDirect(ctx context.Context, cfg *config.Config, components *Components) (*statusResponse, error) {
	records, err := components.Archive.Scan(ctx)
	if err != nil {
		return nil, err
	}
	s := &statusResponse{ArchiveRecords: len(records)}
	if n, err := components.Store.Count(ctx, cfg.Storage.UserID); err == nil {
		s.StoredStories = n
	}
	if usage, err := storage.DiskUsage(components.Archive.Dir(), cfg.Storage.DatabasePath); err == nil {
		s.DiskUsage = &usage
	}
	s.Config = map[string]any{
		"archive_directory": components.Archive.Dir(),
		"html_parser":       cfg.Archive.HTMLParser,
		"pdf_text":          cfg.Archive.PDFTextOrDefault(),
		"formats":           cfg.Archive.Formats,
		"database_path":     cfg.Storage.DatabasePath,
		"objects_enabled":   cfg.Objects.Enabled(),
		"generation":        components.Generator != nil,
		"model":             cfg.LLM.Model,
	}
	return s, nil
}

func runStatus() {
	fs := flag.NewFlagSet("status", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path (for direct mode)")
	debug := fs.Bool("debug", false, "enable debug logging")
	serverURL := fs.String("server", "", "server URL (empty = read the archive and database directly)")
	outputFormat := fs.String("output", "text", "output format: text or json")
	_ = fs.Parse(os.Args[2:])

	var (
		status *statusResponse
		err    error
	)
	if *serverURL != "" {
		status, err = statusViaHTTP(*serverURL)
	} else {
		cfg, _, logger := setup(*configPath, *debug)
		defer logger.Sync()
		ctx := context.Background()
		components, initErr := initializeComponents(ctx, cfg, logger, nil)
		if initErr != nil {
			logger.Fatal("Failed to initialize components", zap.Error(initErr))
		}
		defer components.Close()
		status, err = statusDirect(ctx, cfg, components)
	}
	if err != nil {
		fmt.Printf("Failed to get status: %v\n", err)
		os.Exit(1)
	}
	writeStatus(os.Stdout, status, *outputFormat == "json")
}

func writeStatus(w io.Writer, s *statusResponse, asJSON bool) {
	if asJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		_ = enc.Encode(s)
		return
	}
	fmt.Fprintf(w, "Archive records: %d\n", s.ArchiveRecords)
	if s.IndexedRecords > 0 {
		fmt.Fprintf(w, "Indexed records: %d\n", s.IndexedRecords)
	}
	if s.Sessions > 0 {
		fmt.Fprintf(w, "Open sessions:   %d\n", s.Sessions)
	}
	if s.StoredStories > 0 {
		fmt.Fprintf(w, "Stored stories:  %d\n", s.StoredStories)
	}
	if s.DiskUsage != nil {
		fmt.Fprintf(w, "Disk usage:      %s in %d files\n", formatBytes(s.DiskUsage.Bytes), s.DiskUsage.Files)
	}
	if dir, ok := s.Config["archive_directory"]; ok {
		fmt.Fprintf(w, "Archive:         %v\n", dir)
	}
	if db, ok := s.Config["database_path"]; ok {
		fmt.Fprintf(w, "Database:        %v\n", db)
	}
}

func formatBytes(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for m := n / unit; m >= unit; m /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(n)/float64(div), "KMGTPE"[exp])
}

// newSearchEngine builds an index over the archive for one command.
func newSearchEngine(ctx context.Context, arch *archive.Archive, logger *zap.Logger) (*search.Engine, error) {
	engine, err := search.NewEngine(arch, search.WithLogger(logger))
	if err != nil {
		return nil, err
	}
	if _, err := engine.Rebuild(ctx); err != nil {
		_ = engine.Close()
		return nil, err
	}
	return engine, nil
}
