package configstore

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

// ParseError represents a TOML decode failure.
type ParseError struct {
	Path string
	Err  error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse config %s: %v", e.Path, e.Err)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// Sources lists the config files that contributed to a Load.
type Sources struct {
	Global  string
	Project string
}

// LoadFile decodes one config layer. found is false when the file does not
// exist.
func LoadFile(path string) (cfg Config, found bool, err error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return Config{}, false, nil
	}
	if err != nil {
		return Config{}, false, fmt.Errorf("read config %s: %w", path, err)
	}
	if err := decodeConfig(data, path, &cfg); err != nil {
		return Config{}, true, err
	}
	return cfg, true, nil
}

func decodeConfig(data []byte, path string, cfg *Config) error {
	err := strictUnmarshal(data, cfg)
	for i := 0; err != nil && i < maxEscapeRepairs; i++ {
		fixed, ok := repairDollarEscape(data, err)
		if !ok {
			break
		}
		data = fixed
		*cfg = Config{}
		err = strictUnmarshal(data, cfg)
	}
	if err != nil {
		var decodeErr *toml.DecodeError
		var strictErr *toml.StrictMissingError
		if errors.As(err, &decodeErr) || errors.As(err, &strictErr) {
			return &ParseError{Path: path, Err: err}
		}
		return fmt.Errorf("decode config %s: %w", path, err)
	}
	cfg.normalize()
	return nil
}

func strictUnmarshal(data []byte, cfg *Config) error {
	dec := toml.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	return dec.Decode(cfg)
}

// Load resolves the global and project layers for the project in dir. Missing
// files are skipped.
func Load(dir string) (Config, Sources, error) {
	var cfg Config
	var sources Sources

	_, global, err := GetConfigPath()
	if err != nil {
		return cfg, sources, err
	}
	layer, found, err := LoadFile(global)
	if err != nil {
		return cfg, sources, err
	}
	if found {
		cfg.Merge(layer)
		sources.Global = global
	}

	project := ProjectConfigPath(dir)
	layer, found, err = LoadFile(project)
	if err != nil {
		return cfg, sources, err
	}
	if found {
		cfg.Merge(layer)
		sources.Project = project
	}
	return cfg, sources, nil
}

// Render encodes cfg as toml, json or yaml.
func Render(cfg Config, format string) ([]byte, error) {
	switch strings.ToLower(strings.TrimSpace(format)) {
	case "", "toml":
		return toml.Marshal(cfg)
	case "json":
		out, err := json.MarshalIndent(cfg, "", "  ")
		if err != nil {
			return nil, err
		}
		return append(out, '\n'), nil
	case "yaml", "yml":
		return yaml.Marshal(cfg)
	default:
		return nil, fmt.Errorf("unsupported format %q (want toml, json or yaml)", format)
	}
}
