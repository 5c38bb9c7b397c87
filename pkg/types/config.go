package types

import "time"

// HTTPConfig holds shared HTTP settings used by every component that talks
// to the archive.
type HTTPConfig struct {
	// Timeout bounds a single request attempt (default 60s).
	Timeout time.Duration `json:"timeout" yaml:"timeout" mapstructure:"timeout"`

	// UserAgent is the User-Agent header sent with every request.
	UserAgent string `json:"user_agent" yaml:"user_agent" mapstructure:"user_agent"`

	// MaxAttempts is the total number of attempts per URL (default 3).
	MaxAttempts int `json:"max_attempts" yaml:"max_attempts" mapstructure:"max_attempts"`

	// BackoffBase is the wait before the second attempt. Later waits double:
	// 1s, 2s, 4s with the default.
	BackoffBase time.Duration `json:"backoff_base" yaml:"backoff_base" mapstructure:"backoff_base"`

	// RequestsPerSecond caps the request rate across all workers. Zero
	// disables the limiter.
	RequestsPerSecond float64 `json:"requests_per_second" yaml:"requests_per_second" mapstructure:"requests_per_second"`
}

// HarvestConfig holds settings for an acquisition run.
type HarvestConfig struct {
	HTTPConfig `yaml:",inline" mapstructure:",squash"`

	// BaseURL is the archive host, e.g. "https://www.gutenberg.org".
	BaseURL string `json:"base_url" yaml:"base_url" mapstructure:"base_url"`

	// StartURL is the first catalog search page. Empty derives it from
	// BaseURL sorted by downloads and filtered to English.
	StartURL string `json:"start_url" yaml:"start_url" mapstructure:"start_url"`

	// Language is the target catalog language, compared case-insensitively.
	Language string `json:"language" yaml:"language" mapstructure:"language"`

	// MaxVersions is the number of versioned file names probed (0..MaxVersions-1).
	MaxVersions int `json:"max_versions" yaml:"max_versions" mapstructure:"max_versions"`

	// Extensions lists content file extensions in probe priority order.
	Extensions []string `json:"extensions" yaml:"extensions" mapstructure:"extensions"`

	// Concurrency caps the in-flight books per page. Zero means one worker
	// per listing entry.
	Concurrency int `json:"concurrency" yaml:"concurrency" mapstructure:"concurrency"`

	// MaxPages stops the walk after this many index pages. Zero walks until
	// the catalog runs out.
	MaxPages int `json:"max_pages" yaml:"max_pages" mapstructure:"max_pages"`
}

// SinkFormat selects the output artifact format.
type SinkFormat string

const (
	FormatTSV    SinkFormat = "tsv"
	FormatJSONL  SinkFormat = "jsonl"
	FormatSQLite SinkFormat = "sqlite"
)

// SinkConfig holds settings for persisting harvested records.
type SinkConfig struct {
	// Output is the artifact path. Its existence makes a harvest a no-op.
	Output string `json:"output" yaml:"output" mapstructure:"output"`

	// Format selects tsv, jsonl, or sqlite.
	Format SinkFormat `json:"format" yaml:"format" mapstructure:"format"`
}

// LibraryConfig holds settings for the SQLite library.
type LibraryConfig struct {
	// Dir is the directory containing library.db and exports.
	Dir string `json:"dir" yaml:"dir" mapstructure:"dir"`

	// MaxResults is the default number of search results (default 20).
	MaxResults int `json:"max_results" yaml:"max_results" mapstructure:"max_results"`
}

// SplitConfig holds settings for writing per-book text files.
type SplitConfig struct {
	// Input is the TSV artifact to read.
	Input string `json:"input" yaml:"input" mapstructure:"input"`

	// OutputDir receives one .txt file per record.
	OutputDir string `json:"output_dir" yaml:"output_dir" mapstructure:"output_dir"`
}

// Defaults for a Project Gutenberg harvest.
const (
	DefaultBaseURL     = "https://www.gutenberg.org"
	DefaultLanguage    = "english"
	DefaultTimeout     = 60 * time.Second
	DefaultMaxAttempts = 3
	DefaultBackoffBase = time.Second
	DefaultMaxVersions = 10
	DefaultUserAgent   = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36"
	DefaultOutput      = "gutenberg_books.tsv"
	DefaultLibraryDir  = "library"
	DefaultTextsDir    = "texts"
)

// DefaultExtensions is the content probe order.
var DefaultExtensions = []string{"epub", "html", "pdf", "txt", "txt.utf8"}

// DefaultHarvestConfig returns a HarvestConfig populated with the defaults.
func DefaultHarvestConfig() HarvestConfig {
	return HarvestConfig{
		HTTPConfig: HTTPConfig{
			Timeout:     DefaultTimeout,
			UserAgent:   DefaultUserAgent,
			MaxAttempts: DefaultMaxAttempts,
			BackoffBase: DefaultBackoffBase,
		},
		BaseURL:     DefaultBaseURL,
		Language:    DefaultLanguage,
		MaxVersions: DefaultMaxVersions,
		Extensions:  append([]string(nil), DefaultExtensions...),
	}
}

// SearchURL returns StartURL, or the popularity-sorted English search page
// on BaseURL when StartURL is empty.
func (c HarvestConfig) SearchURL() string {
	if c.StartURL != "" {
		return c.StartURL
	}
	return c.BaseURL + "/ebooks/search/?sort_order=downloads&languages=en"
}
