package internal

import (
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"regexp"
	"slices"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/starford/wikimapper/internal/mapping"
	"github.com/starford/wikimapper/internal/metadata"
	"github.com/starford/wikimapper/internal/ontology"
	"github.com/starford/wikimapper/internal/scan"
)

// Auth modes.
const (
	AuthModeDisabled = "disabled"
	AuthModeToken    = "token"
)

// Oracle modes.
const (
	OracleModeSQLite = "sqlite"
	OracleModeHTTP   = "http"
)

var httpURL = regexp.MustCompile(`^https?://[^\s/]+`)

// Config represents the application configuration.
type Config struct {
	App      ApplicationConfig `yaml:"app"`
	Paths    PathsConfig       `yaml:"paths"`
	Mapping  MappingConfig     `yaml:"mapping"`
	Oracle   OracleConfig      `yaml:"oracle"`
	Auth     AuthConfig        `yaml:"auth"`
	Metadata MetadataConfig    `yaml:"metadata"`
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if err := c.App.Validate(); err != nil {
		return fmt.Errorf("app: %w", err)
	}
	if err := c.Paths.Validate(); err != nil {
		return fmt.Errorf("paths: %w", err)
	}
	if err := c.Mapping.Validate(); err != nil {
		return fmt.Errorf("mapping: %w", err)
	}
	if err := c.Oracle.Validate(); err != nil {
		return fmt.Errorf("oracle: %w", err)
	}
	if err := c.Auth.Validate(); err != nil {
		return err
	}
	return c.Metadata.Validate()
}

// ApplicationConfig holds application-level configuration.
type ApplicationConfig struct {
	LogLevel slog.Level `yaml:"log_level"`
	HTTP     HTTPConfig `yaml:"http"`
}

// Validate validates the application configuration.
func (c *ApplicationConfig) Validate() error {
	return c.HTTP.Validate()
}

// HTTPConfig holds HTTP server configuration.
type HTTPConfig struct {
	Port int `yaml:"port"`
}

// Address returns HTTP server address.
func (c *HTTPConfig) Address() string {
	return fmt.Sprintf(":%d", c.Port)
}

// Validate validates the HTTP configuration.
func (c *HTTPConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Port, validation.Required, validation.Min(1), validation.Max(65535)),
	)
}

// PathsConfig locates the dump tree and the artifacts of a run.
// Relative StatisticsFile and OntologyFile paths are resolved against Root.
type PathsConfig struct {
	Root           string `yaml:"root"`
	SourcesDir     string `yaml:"sources_dir"`
	StatisticsFile string `yaml:"statistics_file"`
	OntologyFile   string `yaml:"ontology_file"`
}

// Validate validates the paths configuration.
func (c *PathsConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Root, validation.Required),
		validation.Field(&c.SourcesDir, validation.Required, validation.By(singleDir)),
		validation.Field(&c.StatisticsFile, validation.Required),
		validation.Field(&c.OntologyFile, validation.Required),
	)
}

func singleDir(value any) error {
	s, _ := value.(string)
	if strings.ContainsRune(s, '/') || strings.ContainsRune(s, filepath.Separator) {
		return errors.New("must be a directory name, not a path")
	}
	return nil
}

// bareNamespace rejects a scheme: the namespace replaces the platform
// domain inside URIs that already carry one.
func bareNamespace(value any) error {
	s, _ := value.(string)
	if strings.Contains(s, "://") {
		return errors.New("must not include a scheme")
	}
	return nil
}

// MappingConfig controls rewriting, classification and mapping output.
type MappingConfig struct {
	PlatformDomain   string        `yaml:"platform_domain"`
	TargetNamespace  string        `yaml:"target_namespace"`
	MappingFileName  string        `yaml:"mapping_file_name"`
	IncludeNoMapping bool          `yaml:"include_no_mapping"`
	SkipCommentLines bool          `yaml:"skip_comment_lines"`
	OntologyBase     string        `yaml:"ontology_base"`
	LabelLang        string        `yaml:"label_lang"`
	NTriples         bool          `yaml:"ntriples"`
	ExcludedMarkers  []string      `yaml:"excluded_markers"`
	WatchDebounce    time.Duration `yaml:"watch_debounce"`
}

// Validate validates the mapping configuration.
func (c *MappingConfig) Validate() error {
	if err := validation.ValidateStruct(c,
		validation.Field(&c.PlatformDomain, validation.Required),
		validation.Field(&c.TargetNamespace, validation.Required, validation.By(bareNamespace)),
		validation.Field(&c.MappingFileName, validation.Required, validation.By(singleDir)),
		validation.Field(&c.OntologyBase, validation.Required, validation.Match(httpURL)),
		validation.Field(&c.WatchDebounce, validation.Min(time.Duration(0))),
	); err != nil {
		return err
	}
	// Rewriting would otherwise re-introduce the domain it replaces.
	if strings.Contains(c.TargetNamespace, c.PlatformDomain) {
		return fmt.Errorf("target_namespace %q contains platform_domain %q", c.TargetNamespace, c.PlatformDomain)
	}
	return nil
}

// OracleConfig selects the Existence Oracle backend.
//
// Mode controls where lookups go:
//   - "sqlite" (default): a local database filled by the import command.
//   - "http": a remote wikimapper serve instance; URL must point at its /api.
type OracleConfig struct {
	Mode    string        `yaml:"mode"`
	SQLite  string        `yaml:"sqlite"`
	URL     string        `yaml:"url"`
	Token   string        `yaml:"token"`
	Timeout time.Duration `yaml:"timeout"`
	Cache   bool          `yaml:"cache"`
}

// Validate validates the oracle configuration.
func (c *OracleConfig) Validate() error {
	if c.Mode == "" {
		c.Mode = OracleModeSQLite
	}
	return validation.ValidateStruct(c,
		validation.Field(&c.Mode, validation.Required, validation.In(OracleModeSQLite, OracleModeHTTP)),
		validation.Field(&c.SQLite, validation.When(c.Mode == OracleModeSQLite, validation.Required)),
		validation.Field(&c.URL, validation.When(c.Mode == OracleModeHTTP, validation.Required, validation.Match(httpURL))),
		validation.Field(&c.Timeout, validation.Min(time.Duration(0))),
	)
}

// AuthConfig holds authentication configuration of the HTTP API.
//
// Mode controls how authentication is enforced:
//   - "disabled" (default): no authentication required, suitable for local dev.
//   - "token": Bearer token authentication; Token must be non-empty.
type AuthConfig struct {
	Mode  string `yaml:"mode"`
	Token string `yaml:"token"`
}

// Validate validates the auth configuration.
func (c *AuthConfig) Validate() error {
	if c.Mode == "" {
		c.Mode = AuthModeDisabled
	}
	if err := validation.ValidateStruct(c,
		validation.Field(&c.Mode, validation.Required, validation.In(AuthModeDisabled, AuthModeToken)),
	); err != nil {
		return err
	}
	if c.Mode == AuthModeToken && c.Token == "" {
		return fmt.Errorf("auth: mode is %q but token is empty", AuthModeToken)
	}
	return nil
}

// AuthEnabled returns true when authentication is active.
func (c *AuthConfig) AuthEnabled() bool {
	return c.Mode == AuthModeToken
}

// MetadataConfig configures the metadata command.
type MetadataConfig struct {
	Endpoint      string        `yaml:"endpoint"`
	Dir           string        `yaml:"dir"`
	BatchSize     int           `yaml:"batch_size"`
	Timeout       time.Duration `yaml:"timeout"`
	LanguageCodes string        `yaml:"language_codes"`
	MinWikis      int           `yaml:"min_wikis"`

	// Ranges are fetched by one worker each; they must not overlap.
	Ranges []metadata.Range `yaml:"ranges"`
}

// Validate validates the metadata configuration. An empty endpoint
// disables the metadata command and skips the remaining checks.
func (c *MetadataConfig) Validate() error {
	if c.Endpoint == "" {
		return nil
	}
	if err := validation.ValidateStruct(c,
		validation.Field(&c.Endpoint, validation.Match(httpURL)),
		validation.Field(&c.Dir, validation.Required),
		validation.Field(&c.BatchSize, validation.Required, validation.Min(1)),
		validation.Field(&c.MinWikis, validation.Min(0)),
		validation.Field(&c.Ranges, validation.Required, validation.By(disjointRanges)),
	); err != nil {
		return fmt.Errorf("metadata: %w", err)
	}
	return nil
}

func disjointRanges(value any) error {
	ranges, _ := value.([]metadata.Range)
	sorted := slices.Clone(ranges)
	slices.SortFunc(sorted, func(a, b metadata.Range) int { return a.From - b.From })
	for i, r := range sorted {
		if r.From >= r.To {
			return fmt.Errorf("range [%d, %d) is empty", r.From, r.To)
		}
		if i > 0 && r.From < sorted[i-1].To {
			return fmt.Errorf("range [%d, %d) overlaps [%d, %d)", r.From, r.To, sorted[i-1].From, sorted[i-1].To)
		}
	}
	return nil
}

// MappingOptions translates the configuration into executor options.
func (c *Config) MappingOptions() mapping.Options {
	return mapping.Options{
		SourcesDir:       c.Paths.SourcesDir,
		StatisticsPath:   c.Paths.StatisticsFile,
		OntologyPath:     c.Paths.OntologyFile,
		IncludeNoMapping: c.Mapping.IncludeNoMapping,
		Scan: scan.Options{
			PlatformDomain:   c.Mapping.PlatformDomain,
			TargetNamespace:  c.Mapping.TargetNamespace,
			MappingFileName:  c.Mapping.MappingFileName,
			SkipCommentLines: c.Mapping.SkipCommentLines,
		},
		Ontology: ontology.Options{
			Base:      c.Mapping.OntologyBase,
			NTriples:  c.Mapping.NTriples,
			LabelLang: c.Mapping.LabelLang,
		},
	}
}

// NewDefaultConfig returns a new Config with sensible default values.
func NewDefaultConfig() *Config {
	return &Config{
		App: ApplicationConfig{
			LogLevel: slog.LevelInfo,
			HTTP: HTTPConfig{
				Port: 8080,
			},
		},
		Paths: PathsConfig{
			Root:           ".",
			SourcesDir:     mapping.DefaultSourcesDir,
			StatisticsFile: mapping.DefaultStatisticsPath,
			OntologyFile:   mapping.DefaultOntologyPath,
		},
		Mapping: MappingConfig{
			PlatformDomain:  "dbpedia.org",
			TargetNamespace: "wikimapper.org",
			MappingFileName: "mappings.ttl",
			OntologyBase:    "http://dbpedia.org/ontology",
			LabelLang:       "en",
			WatchDebounce:   mapping.DefaultDebounce,
		},
		Oracle: OracleConfig{
			Mode:    OracleModeSQLite,
			SQLite:  "./oracle.db",
			Timeout: 10 * time.Second,
			Cache:   true,
		},
		Auth: AuthConfig{
			Mode: AuthModeDisabled,
		},
		Metadata: MetadataConfig{
			Dir:       "wikiStatistics",
			BatchSize: 100,
			Timeout:   30 * time.Second,
			MinWikis:  1,
			Ranges:    metadata.DefaultRanges,
		},
	}
}
