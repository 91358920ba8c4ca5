// Package config loads the settings of the avrender program.
//
// Settings can be written as YAML:
//
//	template_directory: ../templates/
//	database_directory: ../database/
//	max_include_depth: 8
//
// or in the older two-column format, one "key value" pair per line with "#"
// starting a comment line, as in the service's arvosconfig.txt:
//
//	# arvosconfig.txt
//	TemplateDirectory  ../templates/
//	DataBaseDirectory  ../database/
//
// Files ending in .yaml or .yml are read as YAML, anything else in the
// two-column format.
package config

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"unicode"

	"github.com/goccy/go-yaml"
)

// ErrInvalidValue is returned when a setting can't be parsed.
var ErrInvalidValue = errors.New("invalid configuration value")

// Keys of the two-column format.
const (
	KeyTemplateDirectory = "TemplateDirectory"
	KeyDatabaseDirectory = "DataBaseDirectory"
	KeyTraceFile         = "TraceFile"
	KeyContentType       = "ContentType"
	KeyMaxIncludeDepth   = "MaxIncludeDepth"
	KeyCookiePath        = "CookiePath"
)

// Config holds the settings of the avrender program.
type Config struct {
	// TemplateDirectory is where templates, and the templates they
	// include, are read from.
	TemplateDirectory string `yaml:"template_directory"`

	// DatabaseDirectory holds the session database.
	DatabaseDirectory string `yaml:"database_directory"`

	// TraceFile, if set, receives a log of every request. Logging is
	// only enabled if the file already exists.
	TraceFile string `yaml:"trace_file"`

	// ContentType is sent with rendered templates.
	ContentType string `yaml:"content_type"`

	// MaxIncludeDepth limits how deeply templates may include each other.
	MaxIncludeDepth int `yaml:"max_include_depth"`

	// CookiePath is the Path of the session cookie.
	CookiePath string `yaml:"cookie_path"`
}

// Default returns the settings used for anything a file leaves out.
func Default() Config {
	return Config{
		TemplateDirectory: "../templates/",
		DatabaseDirectory: "../database/",
		ContentType:       "text/html",
		MaxIncludeDepth:   16,
		CookiePath:        "/",
	}
}

// Load reads the configuration file at path on top of Default.
func Load(path string) (Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return Config{}, fmt.Errorf("error opening config %q: %w", path, err)
	}
	defer f.Close()

	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		cfg, err := ParseYAML(f)
		if err != nil {
			return Config{}, fmt.Errorf("error loading config %q: %w", path, err)
		}
		return cfg, nil
	default:
		m, err := ReadMap(f)
		if err != nil {
			return Config{}, fmt.Errorf("error loading config %q: %w", path, err)
		}
		cfg, err := FromMap(m)
		if err != nil {
			return Config{}, fmt.Errorf("error loading config %q: %w", path, err)
		}
		return cfg, nil
	}
}

// ParseYAML reads YAML settings on top of Default. Unknown keys are errors.
func ParseYAML(r io.Reader) (Config, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return Config{}, err
	}
	cfg := Default()
	err = yaml.UnmarshalWithOptions(data, &cfg, yaml.Strict())
	if err != nil {
		return Config{}, err
	}
	if cfg.MaxIncludeDepth < 0 {
		return Config{}, fmt.Errorf("%w: max_include_depth %d", ErrInvalidValue, cfg.MaxIncludeDepth)
	}
	return cfg, nil
}

// ReadMap reads the two-column format into a map. Blank lines and lines
// whose first non-space character is "#" are skipped. The key runs up to the
// first whitespace; the rest of the line, trimmed, is the value.
func ReadMap(r io.Reader) (map[string]string, error) {
	result := map[string]string{}
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		end := strings.IndexFunc(line, unicode.IsSpace)
		if end < 0 {
			result[line] = ""
			continue
		}
		result[line[:end]] = strings.TrimSpace(line[end:])
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

// FromMap builds a Config from two-column settings on top of Default. Keys
// it doesn't know are ignored, since the file is shared with the rest of
// the directory service.
func FromMap(m map[string]string) (Config, error) {
	cfg := Default()
	if v, ok := m[KeyTemplateDirectory]; ok {
		cfg.TemplateDirectory = v
	}
	if v, ok := m[KeyDatabaseDirectory]; ok {
		cfg.DatabaseDirectory = v
	}
	if v, ok := m[KeyTraceFile]; ok {
		cfg.TraceFile = v
	}
	if v, ok := m[KeyContentType]; ok {
		cfg.ContentType = v
	}
	if v, ok := m[KeyCookiePath]; ok {
		cfg.CookiePath = v
	}
	if v, ok := m[KeyMaxIncludeDepth]; ok {
		depth, err := strconv.Atoi(v)
		if err != nil || depth < 0 {
			return Config{}, fmt.Errorf("%w: %s %q", ErrInvalidValue, KeyMaxIncludeDepth, v)
		}
		cfg.MaxIncludeDepth = depth
	}
	return cfg, nil
}
