package main

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/hyperjump/historias/internal/config"
	"github.com/hyperjump/historias/pkg/utils"
	"go.uber.org/zap"
)

const version = "0.1.0"

// defaultConfigPath is the config file used when --config is not set.
// When using this default, loadConfig prefers ./config.yaml in the current
// directory if that file exists, and falls back to built-in defaults when
// neither file exists.
const defaultConfigPath = "/usr/local/etc/historias/config.yaml"

// loadConfig loads config from path. When path is defaultConfigPath and
// config.yaml exists in the current working directory, that file is loaded
// instead. Returns the loaded config and the path actually used ("" for
// built-in defaults).
func loadConfig(path string) (*config.Config, string, error) {
	if path == defaultConfigPath {
		if cwd, cwdErr := os.Getwd(); cwdErr == nil {
			fallback := filepath.Join(cwd, "config.yaml")
			if _, statErr := os.Stat(fallback); statErr == nil {
				cfg, loadErr := config.Load(fallback)
				if loadErr != nil {
					return nil, "", loadErr
				}
				return cfg, fallback, nil
			}
		}
		if _, statErr := os.Stat(path); errors.Is(statErr, fs.ErrNotExist) {
			cfg := &config.Config{}
			config.ApplyDefaults(cfg)
			config.ApplyEnv(cfg)
			return cfg, "", cfg.Validate()
		}
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, "", err
	}
	return cfg, path, nil
}

// setup loads the config and builds the logger, exiting on failure.
func setup(configPath string, debug bool) (*config.Config, string, *zap.Logger) {
	cfg, resolved, err := loadConfig(configPath)
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}
	debugMode := cfg.Debug || debug
	logger, err := utils.NewLogger(debugMode)
	if err != nil {
		fmt.Printf("Failed to create logger: %v\n", err)
		os.Exit(1)
	}
	return cfg, resolved, logger
}

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}
	command := os.Args[1]
	switch command {
	case "server":
		runServer()
	case "generate":
		runGenerate()
	case "convert":
		runConvert()
	case "list":
		runList()
	case "show":
		runShow()
	case "search":
		runSearch()
	case "export":
		runExport()
	case "stories":
		runStories()
	case "delete":
		runDelete()
	case "status":
		runStatus()
	case "version", "--version", "-v":
		fmt.Printf("historias version %s\n", version)
	case "help", "--help", "-h":
		printUsage()
	default:
		fmt.Printf("Unknown command: %s\n", command)
		printUsage()
		os.Exit(1)
	}
}

// buildSearchQuery joins positional args into a single query string (trimmed).
// Allows multi-word queries without quotes: historias search playa atardecer
func buildSearchQuery(args []string) string {
	return strings.TrimSpace(strings.Join(args, " "))
}

// searchArgsReorder moves any flags (and their values) that appear after the
// positional arguments to the front of the slice so that flag.Parse() sees
// them. Go's flag package stops at the first non-flag argument, so
// "historias search playa -limit 5" would otherwise leave -limit unparsed.
func searchArgsReorder(args []string) []string {
	for i, a := range args {
		if len(a) > 0 && a[0] == '-' {
			if i == 0 {
				return args
			}
			reordered := make([]string, 0, len(args))
			reordered = append(reordered, args[i:]...)
			reordered = append(reordered, args[:i]...)
			return reordered
		}
	}
	return args
}

// detectMIME guesses the media type of a file from its extension, then from
// its first bytes.
func detectMIME(path string, data []byte) string {
	if t := mime.TypeByExtension(strings.ToLower(filepath.Ext(path))); t != "" {
		if i := strings.IndexByte(t, ';'); i >= 0 {
			t = t[:i]
		}
		return t
	}
	return http.DetectContentType(data)
}

// confirm asks a yes/no question on w and reads the answer from r. Only an
// explicit yes ("s", "si", "sí", "y", "yes") counts.
func confirm(r io.Reader, w io.Writer, question string) bool {
	fmt.Fprint(w, question)
	line, err := bufio.NewReader(r).ReadString('\n')
	if err != nil && line == "" {
		return false
	}
	switch strings.ToLower(strings.TrimSpace(line)) {
	case "s", "si", "sí", "y", "yes":
		return true
	}
	return false
}

func printUsage() {
	fmt.Println(`historias - Social media story generator and archive

Usage:
  historias server [flags]              Start the HTTP server
  historias generate [flags]            Generate a story from an image and save it
  historias convert [flags] <file>      Save an archived story again in other formats
  historias list [flags]                List archived stories
  historias show [flags] <file>         Show one archived story
  historias search [flags] <query>      Search the archive
  historias export [flags]              Write the archive catalog as a spreadsheet
  historias stories [flags]             List stories in the story database
  historias delete [flags] <file|id>    Delete an archived file or a database story
  historias status [flags]              Show archive/database status
  historias version                     Show version
  historias help                        Show this help

Common Flags:
  --config string    Config file path (default: /usr/local/etc/historias/config.yaml,
                     or ./config.yaml when present)
  --debug            Enable debug logging

Generate Flags:
  --image string         Image file the story is about
  --platform string      facebook, linkedin, instagram or twitter (default: instagram)
  --tone string          Tone of the story (default: casual)
  --specs string         Additional instructions
  --specs-audio string   Voice note with additional instructions (transcribed)
  --brief string         Reference document (.txt, .md, .pdf, .docx)
  --formats string       Comma-separated archive formats (default from config)
  --remote               Also save to the story database
  --yes                  Save without asking

Search Flags:
  --limit int          Number of results (default: 10)
  --platform string    Only stories for this platform
  --fuzzy              Tolerate typos
  --output string      text, compact or json (default: text)

Examples:
  historias server
  historias generate --image playa.jpg --platform instagram --tone inspirador
  historias search atardecer en la playa
  historias show historia_20240101_093000.md
  historias export --out catalogo.xlsx
  historias delete --remote 6f1c2d3e-...`)
}
