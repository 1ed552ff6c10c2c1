// Package config loads the bridge configuration from defaults, an optional
// TOML file and the environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/hyper-ai-inc/workbench/internal/fs"
	toml "github.com/pelletier/go-toml/v2"
)

const (
	DefaultPort      = 3001
	DefaultUploadDir = "uploaded_files"
	DefaultStaticDir = "dist"
)

type Config struct {
	Port      int    `toml:"port"`
	Root      string `toml:"root"`
	UploadDir string `toml:"upload_dir"`
	StaticDir string `toml:"static_dir"`
	Shell     string `toml:"shell"`
	LogLevel  string `toml:"log_level"`
	LogFormat string `toml:"log_format"`
}

// Default returns the configuration used when nothing else is set. The
// workspace root is the process working directory and uploads go to a
// directory under the system temp dir, outside the root.
func Default() Config {
	root, err := os.Getwd()
	if err != nil {
		root = "."
	}
	return Config{
		Port:      DefaultPort,
		Root:      root,
		UploadDir: filepath.Join(os.TempDir(), "workbench", DefaultUploadDir),
		StaticDir: DefaultStaticDir,
		LogLevel:  "info",
		LogFormat: "console",
	}
}

// LoadFile overlays the values present in a TOML file onto cfg
func LoadFile(cfg Config, path string) (Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config: %w", err)
	}
	if err := toml.Unmarshal(b, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config %s: %w", path, err)
	}
	return cfg, nil
}

// ApplyEnv overlays environment variables onto cfg
func ApplyEnv(cfg Config) (Config, error) {
	if v := strings.TrimSpace(os.Getenv("PORT")); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return cfg, fmt.Errorf("invalid PORT %q: %w", v, err)
		}
		cfg.Port = port
	}
	if v := os.Getenv("WORKBENCH_ROOT"); v != "" {
		cfg.Root = v
	}
	if v := os.Getenv("WORKBENCH_UPLOAD_DIR"); v != "" {
		cfg.UploadDir = v
	}
	if v := os.Getenv("WORKBENCH_STATIC_DIR"); v != "" {
		cfg.StaticDir = v
	}
	if v := os.Getenv("WORKBENCH_SHELL"); v != "" {
		cfg.Shell = v
	}
	if v := os.Getenv("WORKBENCH_LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}
	return cfg, nil
}

// Normalize trims values and makes the directories absolute. Relative upload
// and static directories are taken relative to the working directory.
func Normalize(cfg Config) (Config, error) {
	cfg.Shell = strings.TrimSpace(cfg.Shell)
	cfg.LogLevel = strings.ToLower(strings.TrimSpace(cfg.LogLevel))
	cfg.LogFormat = strings.ToLower(strings.TrimSpace(cfg.LogFormat))

	for _, p := range []*string{&cfg.Root, &cfg.UploadDir, &cfg.StaticDir} {
		if *p == "" {
			continue
		}
		abs, err := filepath.Abs(*p)
		if err != nil {
			return cfg, err
		}
		*p = abs
	}
	return cfg, nil
}

func (c Config) Validate() error {
	var errs []error
	if c.Port < 1 || c.Port > 65535 {
		errs = append(errs, fmt.Errorf("port %d out of range", c.Port))
	}
	if c.Root == "" {
		errs = append(errs, errors.New("workspace root is required"))
	} else if st, err := os.Stat(c.Root); err != nil {
		errs = append(errs, fmt.Errorf("workspace root: %w", err))
	} else if !st.IsDir() {
		errs = append(errs, fmt.Errorf("workspace root %s is not a directory", c.Root))
	}
	if c.UploadDir == "" {
		errs = append(errs, errors.New("upload directory is required"))
	} else if c.Root != "" && fs.IsPathWithin(resolveBestEffort(c.UploadDir), resolveBestEffort(c.Root)) {
		errs = append(errs, fmt.Errorf("upload directory %s must be outside the workspace root", c.UploadDir))
	}
	switch c.LogFormat {
	case "", "console", "json":
	default:
		errs = append(errs, fmt.Errorf("unknown log format %q", c.LogFormat))
	}
	return errors.Join(errs...)
}

// resolveBestEffort follows symlinks when the path exists and otherwise
// returns it cleaned.
func resolveBestEffort(p string) string {
	if resolved, err := filepath.EvalSymlinks(p); err == nil {
		return resolved
	}
	return filepath.Clean(p)
}

// Addr is the listen address for the configured port
func (c Config) Addr() string {
	return ":" + strconv.Itoa(c.Port)
}
