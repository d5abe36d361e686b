// Package config loads biotree settings from YAML and builds the process
// logger.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/Benny93/biotree-go/internal/graph"
	"github.com/Benny93/biotree-go/internal/schema"
)

// ErrInvalid wraps every validation failure.
var ErrInvalid = errors.New("invalid configuration")

// Config is the complete biotree configuration.
type Config struct {
	Source    SourceConfig    `yaml:"source"`
	Roots     RootsConfig     `yaml:"roots"`
	Surgery   SurgeryConfig   `yaml:"surgery"`
	Server    ServerConfig    `yaml:"server"`
	Archive   ArchiveConfig   `yaml:"archive"`
	Telemetry TelemetryConfig `yaml:"telemetry"`
}

// SourceConfig selects where schema documents come from.
type SourceConfig struct {
	// URLTemplates are tried in order; {ref} is replaced by the version.
	URLTemplates []string      `yaml:"url_templates" validate:"required,min=1,dive,urltemplate"`
	Timeout      time.Duration `yaml:"timeout" validate:"gt=0"`
	DefaultRef   string        `yaml:"default_ref" validate:"required"`
	AspectEnum   string        `yaml:"aspect_enum" validate:"required"`

	// File, when set, replaces HTTP retrieval with a local document, or
	// with a directory holding one document per ref.
	File string `yaml:"file,omitempty"`
}

// Source builds the schema source the configuration selects.
func (s SourceConfig) Source() (schema.Source, error) {
	if s.File == "" {
		return schema.NewHTTPSource(s.Timeout, s.URLTemplates), nil
	}
	info, err := os.Stat(s.File)
	if err != nil {
		return nil, fmt.Errorf("schema file: %w", err)
	}
	if info.IsDir() {
		return &schema.DirSource{Dir: s.File}, nil
	}
	return &schema.FileSource{Path: s.File}, nil
}

// RootsConfig names the tree roots.
type RootsConfig struct {
	Predicate string `yaml:"predicate" validate:"required"`
	Category  string `yaml:"category" validate:"required"`
}

// SurgeryConfig describes the optional branch dissolution applied before
// the revised classification. An empty Branch disables it.
type SurgeryConfig struct {
	Branch      string   `yaml:"branch" validate:"required_with=Placeholder"`
	Retain      []string `yaml:"retain"`
	Placeholder string   `yaml:"placeholder" validate:"required_with=Branch"`
}

// Graph converts to the graph package representation.
func (s SurgeryConfig) Graph() graph.SurgeryConfig {
	return graph.SurgeryConfig{
		Branch:      s.Branch,
		Retain:      append([]string(nil), s.Retain...),
		Placeholder: s.Placeholder,
	}
}

// ServerConfig configures the HTTP server.
type ServerConfig struct {
	Addr         string        `yaml:"addr" validate:"required,hostname_port"`
	ReadTimeout  time.Duration `yaml:"read_timeout" validate:"gt=0"`
	WriteTimeout time.Duration `yaml:"write_timeout" validate:"gt=0"`

	// RateLimit caps API requests per second across all clients. Zero
	// disables limiting.
	RateLimit float64 `yaml:"rate_limit" validate:"gte=0"`
	Burst     int     `yaml:"burst" validate:"gte=0"`
}

// ArchiveConfig locates the snapshot archive.
type ArchiveConfig struct {
	Path string `yaml:"path" validate:"required"`
}

// TelemetryConfig selects the trace exporter.
type TelemetryConfig struct {
	Exporter string `yaml:"exporter" validate:"oneof=none stdout otlp"`
	Endpoint string `yaml:"endpoint" validate:"required_if=Exporter otlp"`
	Insecure bool   `yaml:"insecure"`
}

// DefaultDir is the per-project working directory.
const DefaultDir = ".biotree"

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Source: SourceConfig{
			URLTemplates: append([]string(nil), schema.DefaultURLTemplates...),
			Timeout:      schema.DefaultTimeout,
			DefaultRef:   schema.DefaultRef,
			AspectEnum:   schema.DefaultAspectEnum,
		},
		Roots: RootsConfig{
			Predicate: "related_to",
			Category:  "NamedThing",
		},
		Surgery: SurgeryConfig{
			Branch:      "BiologicalEntity",
			Retain:      []string{"DiseaseOrPhenotypicFeature", "GeneticEntity"},
			Placeholder: "OtherBiologicalEntity",
		},
		Server: ServerConfig{
			Addr:         ":8080",
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 60 * time.Second,
		},
		Archive: ArchiveConfig{
			Path: DefaultDir + "/archive",
		},
		Telemetry: TelemetryConfig{
			Exporter: "none",
			Endpoint: "localhost:4317",
			Insecure: true,
		},
	}
}

// Load reads the YAML file at path over the defaults and validates the
// result. An empty path yields the validated defaults.
func Load(path string) (*Config, error) {
	if path == "" {
		cfg := Default()
		return cfg, cfg.Validate()
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config %s: %w", path, err)
	}
	cfg, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

// Parse decodes YAML over the defaults. Unknown keys are rejected.
func Parse(data []byte) (*Config, error) {
	cfg := Default()

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("decoding: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks field constraints.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			msgs := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				msgs = append(msgs, fmt.Sprintf("%s failed %q", fe.Namespace(), fe.Tag()))
			}
			return fmt.Errorf("%w: %s", ErrInvalid, strings.Join(msgs, "; "))
		}
		return fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	return nil
}

// Marshal renders the configuration as YAML.
func (c *Config) Marshal() ([]byte, error) {
	return yaml.Marshal(c)
}

var validate *validator.Validate

func init() {
	validate = validator.New()
	_ = validate.RegisterValidation("urltemplate", validateURLTemplate)
}

// validateURLTemplate accepts absolute http(s) URLs that contain {ref}.
func validateURLTemplate(fl validator.FieldLevel) bool {
	s := fl.Field().String()
	if !strings.Contains(s, "{ref}") {
		return false
	}
	u, err := url.Parse(strings.ReplaceAll(s, "{ref}", "ref"))
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}
