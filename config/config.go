package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"

	"themeqa/snapshot"
)

// DefaultFile is the config file name looked up in the working directory.
const DefaultFile = "themeqa.yaml"

type Config struct {
	Stylesheet string `yaml:"stylesheet" env:"THEMEQA_STYLESHEET"`
	OutDir     string `yaml:"out_dir" env:"THEMEQA_OUT_DIR"`
	Strict     bool   `yaml:"strict" env:"THEMEQA_STRICT"`

	ExpectedOrgCount     int      `yaml:"expected_org_count"`
	RequiredTokens       []string `yaml:"required_tokens"`
	CloseThreshold       float64  `yaml:"close_threshold"`
	StrictCloseThreshold float64  `yaml:"strict_close_threshold"`
	// DropTolerance may be 0 to flag any drop at all.
	DropTolerance float64 `yaml:"drop_tolerance"`

	Visual VisualConfig `yaml:"visual"`

	path string
}

type VisualConfig struct {
	// DevServerCommand starts the app under test. Empty means the app is
	// already being served at BaseURL.
	DevServerCommand []string      `yaml:"dev_server_command"`
	DevServerDir     string        `yaml:"dev_server_dir"`
	BaseURL          string        `yaml:"base_url" env:"THEMEQA_BASE_URL"`
	ReadyTimeout     time.Duration `yaml:"ready_timeout"`
	OrgParam         string        `yaml:"org_param"`
	Pages            []string      `yaml:"pages"`
	ViewportWidth    int           `yaml:"viewport_width"`
	ViewportHeight   int           `yaml:"viewport_height"`
	// BrowserBin overrides browser discovery.
	BrowserBin string `yaml:"browser_bin" env:"THEMEQA_BROWSER_BIN"`
}

func Default() Config {
	return Config{
		Stylesheet:           "src/styles/themes.css",
		OutDir:               "qa",
		ExpectedOrgCount:     snapshot.DefaultExpectedOrgCount,
		RequiredTokens:       append([]string(nil), snapshot.DefaultRequiredTokens...),
		CloseThreshold:       snapshot.DefaultCloseThreshold,
		StrictCloseThreshold: snapshot.DefaultStrictCloseThreshold,
		DropTolerance:        snapshot.DefaultDropTolerance,
		Visual: VisualConfig{
			DevServerCommand: []string{"npm", "run", "dev", "--", "--port", "5173", "--strictPort"},
			BaseURL:          "http://localhost:5173",
			ReadyTimeout:     60 * time.Second,
			OrgParam:         "org",
			Pages:            []string{"/", "/login"},
			ViewportWidth:    1440,
			ViewportHeight:   900,
		},
	}
}

// Load reads the YAML file at path over the defaults, then applies
// environment overrides. A missing file is not an error; unknown keys are.
func Load(path string) (Config, error) {
	cfg := Default()
	cfg.path = path

	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
	case err != nil:
		return Config{}, err
	default:
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
			return Config{}, fmt.Errorf("parse %s: %w", path, err)
		}
	}

	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}

	cfg.applyDefaults()
	if cfg.DropTolerance < 0 {
		return Config{}, fmt.Errorf("drop_tolerance must not be negative, got %v", cfg.DropTolerance)
	}
	return cfg, nil
}

func (c *Config) applyDefaults() {
	def := Default()
	if c.Stylesheet == "" {
		c.Stylesheet = def.Stylesheet
	}
	if c.OutDir == "" {
		c.OutDir = def.OutDir
	}
	if c.ExpectedOrgCount <= 0 {
		c.ExpectedOrgCount = def.ExpectedOrgCount
	}
	if len(c.RequiredTokens) == 0 {
		c.RequiredTokens = def.RequiredTokens
	}
	if c.CloseThreshold <= 0 {
		c.CloseThreshold = def.CloseThreshold
	}
	if c.StrictCloseThreshold <= 0 {
		c.StrictCloseThreshold = def.StrictCloseThreshold
	}
	if c.Visual.BaseURL == "" {
		c.Visual.BaseURL = def.Visual.BaseURL
	}
	if c.Visual.ReadyTimeout <= 0 {
		c.Visual.ReadyTimeout = def.Visual.ReadyTimeout
	}
	if c.Visual.OrgParam == "" {
		c.Visual.OrgParam = def.Visual.OrgParam
	}
	if len(c.Visual.Pages) == 0 {
		c.Visual.Pages = def.Visual.Pages
	}
	if c.Visual.ViewportWidth <= 0 {
		c.Visual.ViewportWidth = def.Visual.ViewportWidth
	}
	if c.Visual.ViewportHeight <= 0 {
		c.Visual.ViewportHeight = def.Visual.ViewportHeight
	}
}

// Path is the file the config was loaded from.
func (c Config) Path() string { return c.path }

// Policy is the snapshot policy described by the config.
func (c Config) Policy() snapshot.Policy {
	return snapshot.Policy{
		RequiredTokens:       append([]string(nil), c.RequiredTokens...),
		ExpectedOrgCount:     c.ExpectedOrgCount,
		Strict:               c.Strict,
		CloseThreshold:       c.CloseThreshold,
		StrictCloseThreshold: c.StrictCloseThreshold,
		DropTolerance:        c.DropTolerance,
	}
}

// Save writes cfg as YAML to path.
func Save(cfg Config, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		os.Remove(tmp)
		return err
	}

	return os.Rename(tmp, path)
}
