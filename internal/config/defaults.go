package config

// ApplyDefaults sets default values for any zero values in cfg.
func ApplyDefaults(cfg *Config) {
	if cfg.Server.Host == "" {
		cfg.Server.Host = "localhost"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Archive.Directory == "" {
		cfg.Archive.Directory = "./stories"
	}
	if cfg.Archive.Prefix == "" {
		cfg.Archive.Prefix = "historia"
	}
	if cfg.Archive.HTMLParser == "" {
		cfg.Archive.HTMLParser = "dom"
	}
	if cfg.Archive.PDFText == nil {
		t := true
		cfg.Archive.PDFText = &t
	}
	if cfg.Archive.Formats == nil {
		cfg.Archive.Formats = []string{"json", "markdown"}
	}
	if cfg.Storage.DatabasePath == "" {
		cfg.Storage.DatabasePath = "./data/historias.db"
	}
	if cfg.Storage.UserID == "" {
		cfg.Storage.UserID = "local"
	}
	if cfg.Storage.ListLimit == 0 {
		cfg.Storage.ListLimit = 50
	}
	if cfg.Objects.Bucket == "" {
		cfg.Objects.Bucket = "story-images"
	}
	if cfg.LLM.Model == "" {
		cfg.LLM.Model = "gemini-2.5-flash"
	}
	if cfg.LLM.VisionModel == "" {
		cfg.LLM.VisionModel = cfg.LLM.Model
	}
	if cfg.LLM.Temperature == 0 {
		cfg.LLM.Temperature = 0.7
	}
	if cfg.LLM.MaxOutputTokens == 0 {
		cfg.LLM.MaxOutputTokens = 2048
	}
	if cfg.LLM.TimeoutSeconds == 0 {
		cfg.LLM.TimeoutSeconds = 60
	}
}
