package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/BurntSushi/toml"
	homedir "github.com/mitchellh/go-homedir"
)

// Config holds the project location and render settings.
type Config struct {
	// Paths
	Project   string `json:"project" toml:"project"`
	OutputDir string `json:"output_dir" toml:"output_dir"`

	// Sweep
	Frames int       `json:"frames" toml:"frames"`
	From   []float64 `json:"from" toml:"from"`
	To     []float64 `json:"to" toml:"to"`
	Easing string    `json:"easing" toml:"easing"`

	// Render settings
	Blend      string  `json:"blend" toml:"blend"`
	FinalTouch string  `json:"final_touch" toml:"final_touch"`
	ClipOffset float64 `json:"clip_offset" toml:"clip_offset"`
	MaxSize    int     `json:"max_size" toml:"max_size"`
	Trim       bool    `json:"trim" toml:"trim"`
	Format     string  `json:"format" toml:"format"`
	Quality    int     `json:"quality" toml:"quality"`
	Workers    int     `json:"workers" toml:"workers"`
}

// Load reads a JSON or TOML config file, chosen by extension. Fields not
// set in the file keep their zero values.
func Load(path string) (Config, error) {
	path, err := Expand(path)
	if err != nil {
		return Config{}, fmt.Errorf("config: expand %s: %w", path, err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("config: read %s: %w", path, err)
	}

	var cfg Config
	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml":
		if _, err := toml.Decode(string(data), &cfg); err != nil {
			return Config{}, fmt.Errorf("config: parse %s: %w", path, err)
		}
	default:
		if err := json.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("config: parse %s: %w", path, err)
		}
	}

	// Relative paths are relative to the config file
	dir := filepath.Dir(path)
	cfg.Project = relativeTo(dir, cfg.Project)
	cfg.OutputDir = relativeTo(dir, cfg.OutputDir)
	return cfg, nil
}

// Expand resolves a leading ~ to the user's home directory.
func Expand(path string) (string, error) {
	if path == "" {
		return "", nil
	}
	return homedir.Expand(path)
}

func relativeTo(dir, path string) string {
	if path == "" {
		return ""
	}
	if p, err := Expand(path); err == nil {
		path = p
	}
	if filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(dir, path)
}

// Flags holds CLI flag values that override config file settings.
type Flags struct {
	Project    string
	OutputDir  string
	Frames     int
	Blend      string
	FinalTouch string
	Format     string
	Quality    int
	Workers    int
}

// Resolve applies CLI flags, then fills any empty fields with defaults.
// CLI flags take priority when non-zero/non-empty.
func (c *Config) Resolve(flags Flags) {
	// CLI flags override config file
	if flags.Project != "" {
		c.Project = flags.Project
	}
	if flags.OutputDir != "" {
		c.OutputDir = flags.OutputDir
	}
	if flags.Frames > 0 {
		c.Frames = flags.Frames
	}
	if flags.Blend != "" {
		c.Blend = flags.Blend
	}
	if flags.FinalTouch != "" {
		c.FinalTouch = flags.FinalTouch
	}
	if flags.Format != "" {
		c.Format = flags.Format
	}
	if flags.Quality > 0 {
		c.Quality = flags.Quality
	}
	if flags.Workers > 0 {
		c.Workers = flags.Workers
	}

	if p, err := Expand(c.Project); err == nil {
		c.Project = p
	}
	if p, err := Expand(c.OutputDir); err == nil {
		c.OutputDir = p
	}
	if c.OutputDir == "" {
		c.OutputDir = defaultOutputDir(c.Project)
	}

	// Defaults for render settings
	if c.Frames <= 0 {
		c.Frames = 30
	}
	if c.Blend == "" {
		c.Blend = "lighter"
	}
	if c.ClipOffset == 0 {
		c.ClipOffset = 0.5
	}
	if c.Format == "" {
		c.Format = "webp"
	}
	if c.Quality <= 0 {
		c.Quality = 90
	}
	if c.Workers <= 0 {
		c.Workers = runtime.NumCPU()
	}
}

// defaultOutputDir places frames next to the project: foo.json → foo-frames.
func defaultOutputDir(project string) string {
	if project == "" {
		return "frames"
	}
	stem := strings.TrimSuffix(filepath.Base(project), filepath.Ext(project))
	return filepath.Join(filepath.Dir(project), stem+"-frames")
}
