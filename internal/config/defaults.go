package config

// DefaultExtensions are the transcript file types the importer understands.
var DefaultExtensions = []string{".txt", ".md", ".srt", ".vtt", ".pdf", ".docx"}

// ApplyDefaults sets default values for any zero values in cfg.
func ApplyDefaults(cfg *Config) {
	if cfg.Server.Host == "" {
		cfg.Server.Host = "localhost"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Storage.DatabasePath == "" {
		cfg.Storage.DatabasePath = "/usr/local/var/limud/data/db/catalog.db"
	}
	if cfg.Search.DebounceMS == 0 {
		cfg.Search.DebounceMS = 300
	}
	if cfg.Search.FetchConcurrency < 0 {
		cfg.Search.FetchConcurrency = 0
	}
	if cfg.Search.DefaultLimit < 0 {
		cfg.Search.DefaultLimit = 0
	}
	if cfg.Jobs.PollIntervalMS == 0 {
		cfg.Jobs.PollIntervalMS = 5000
	}
	if cfg.Remote.TimeoutSeconds == 0 {
		cfg.Remote.TimeoutSeconds = 30
	}
	if cfg.Watch.Extensions == nil {
		cfg.Watch.Extensions = append([]string(nil), DefaultExtensions...)
	}
	// Recursive defaults to true when unset (nil).
	if len(cfg.Watch.Directories) > 0 && cfg.Watch.Recursive == nil {
		t := true
		cfg.Watch.Recursive = &t
	}
}
