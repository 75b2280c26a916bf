package ftrace

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"

	"github.com/mingerfan/ftrace-dev/pkg/ftrace/boundary"
	"github.com/mingerfan/ftrace-dev/pkg/ftrace/logging"
)

// EnvConfig names a config file applied to the default host when the shared
// library is loaded.
const EnvConfig = "FTRACE_CONFIG"

// Config describes a tracing session. The zero value traces nothing and
// prints with the default text policy.
type Config struct {
	// MainPath is the ELF image the emulator runs first. Leaving it empty
	// skips building the tracer; the emulator can still call start_builder.
	MainPath string `toml:"main_path" yaml:"main_path"`
	// ProgPaths lists additional images loaded at runtime.
	ProgPaths []string `toml:"prog_paths" yaml:"prog_paths"`
	// ShowContext records a0..a7 on entry and (a0, a1) on return.
	ShowContext bool `toml:"show_context" yaml:"show_context"`

	// TextPolicy is "reject" (default) or "replace".
	TextPolicy string `toml:"text_policy" yaml:"text_policy"`
	// AppendNewline adds '\n' after every print_string payload.
	AppendNewline bool `toml:"append_newline" yaml:"append_newline"`

	// LogLevel is one of debug, info, warn, error. Empty keeps the current
	// level; FTRACE_LOG_LEVEL still wins when set.
	LogLevel string `toml:"log_level" yaml:"log_level"`

	// RecordPath, when set, captures every check_instruction call to a trace
	// file that the ftrace CLI can replay.
	RecordPath string `toml:"record_path" yaml:"record_path"`
	// RecordCompress wraps the recording in zstd.
	RecordCompress bool `toml:"record_compress" yaml:"record_compress"`
}

// LoadConfig reads a config file. The format follows the extension: .toml,
// or .yaml/.yml. Unknown keys are rejected.
func LoadConfig(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("config load failed (%s): %w", path, err)
	}

	var cfg Config
	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml":
		meta, err := toml.Decode(string(data), &cfg)
		if err != nil {
			return Config{}, fmt.Errorf("%w: parse %s: %v", ErrInvalidConfig, path, err)
		}
		if undecoded := meta.Undecoded(); len(undecoded) > 0 {
			return Config{}, fmt.Errorf("%w: unknown key %q in %s", ErrInvalidConfig, undecoded[0].String(), path)
		}
	case ".yaml", ".yml":
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
			return Config{}, fmt.Errorf("%w: parse %s: %v", ErrInvalidConfig, path, err)
		}
	default:
		return Config{}, fmt.Errorf("%w: unsupported config format %q", ErrInvalidConfig, filepath.Ext(path))
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks enumerated fields and path consistency.
func (c Config) Validate() error {
	if _, err := boundary.ParseTextPolicy(c.TextPolicy); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	if c.LogLevel != "" {
		if _, ok := logging.ParseLevel(c.LogLevel); !ok {
			return fmt.Errorf("%w: unknown log level %q", ErrInvalidConfig, c.LogLevel)
		}
	}
	if strings.TrimSpace(c.MainPath) == "" && len(c.ProgPaths) > 0 {
		return fmt.Errorf("%w: prog_paths set without main_path", ErrInvalidConfig)
	}
	for i, p := range c.ProgPaths {
		if strings.TrimSpace(p) == "" {
			return fmt.Errorf("%w: prog_paths[%d] is empty", ErrInvalidConfig, i)
		}
	}
	return nil
}

// Policy returns the parsed text policy. Call Validate first.
func (c Config) Policy() boundary.TextPolicy {
	p, err := boundary.ParseTextPolicy(c.TextPolicy)
	if err != nil {
		return boundary.PolicyReject
	}
	return p
}

// Level returns the parsed log level, or fallback when unset.
func (c Config) Level(fallback slog.Level) slog.Level {
	if lvl, ok := logging.ParseLevel(c.LogLevel); ok {
		return lvl
	}
	return fallback
}
