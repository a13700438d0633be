package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

// Paths contains workspace directory configuration.
type Paths struct {
	WorkDir    string `toml:"work_dir"`
	ArchiveDir string `toml:"archive_dir"`
}

// YtDlp contains download configuration.
type YtDlp struct {
	CookiesTxt string `toml:"cookies_txt"`
}

// DashScope contains configuration for the speech recognition service.
type DashScope struct {
	APIKey string `toml:"api_key"`
	Model  string `toml:"model"`
}

// OSS contains Alibaba Cloud object storage credentials. The recognizer
// reads audio through a public bucket URL, so all four fields are required.
type OSS struct {
	Region          string `toml:"region"`
	Bucket          string `toml:"bucket"`
	AccessKeyID     string `toml:"access_key_id"`
	AccessKeySecret string `toml:"access_key_secret"`
}

// Gemini contains configuration for the translation service.
type Gemini struct {
	APIKey string `toml:"api_key"`
	Model  string `toml:"model"`
}

// Subtitle contains segmentation and serialization settings.
type Subtitle struct {
	MaxChars      int  `toml:"max_chars"`
	ChannelID     int  `toml:"channel_id"`
	KeepEmptyCues bool `toml:"keep_empty_cues"`
}

// Config encapsulates all configuration values for bansub.
type Config struct {
	Paths     Paths     `toml:"paths"`
	YtDlp     YtDlp     `toml:"ytdlp"`
	DashScope DashScope `toml:"dashscope"`
	OSS       OSS       `toml:"oss"`
	Gemini    Gemini    `toml:"gemini"`
	Subtitle  Subtitle  `toml:"subtitle"`
}

const (
	defaultWorkDir        = "~/.local/share/bansub/projects"
	defaultArchiveDir     = "~/.local/share/bansub/archive"
	defaultDashScopeModel = "fun-asr"
	defaultGeminiModel    = "gemini-2.5-pro"
	defaultMaxChars       = 40
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			WorkDir:    defaultWorkDir,
			ArchiveDir: defaultArchiveDir,
		},
		DashScope: DashScope{
			Model: defaultDashScopeModel,
		},
		Gemini: Gemini{
			Model: defaultGeminiModel,
		},
		Subtitle: Subtitle{
			MaxChars: defaultMaxChars,
		},
	}
}

// DefaultConfigPath returns the absolute path to the default configuration
// file location.
func DefaultConfigPath() (string, error) {
	return expandPath("~/.config/bansub/config.toml")
}

// Load parses and validates a configuration file. An empty path falls back
// to the default location; a missing file is not an error, the defaults and
// environment overrides still apply.
func Load(path string) (*Config, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	cfg.applyEnv()

	if err := cfg.normalize(); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path == "" {
		defaultPath, err := DefaultConfigPath()
		if err != nil {
			return "", false, err
		}
		path = defaultPath
	}

	expanded, err := expandPath(path)
	if err != nil {
		return "", false, err
	}
	if _, err := os.Stat(expanded); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return expanded, false, nil
		}
		return "", false, fmt.Errorf("stat config: %w", err)
	}
	return expanded, true, nil
}

// applyEnv overlays BANSUB_* environment variables onto the loaded file.
// Environment always wins so credentials can stay out of the config file.
func (c *Config) applyEnv() {
	overrides := []struct {
		key    string
		target *string
	}{
		{"BANSUB_WORK_DIR", &c.Paths.WorkDir},
		{"BANSUB_ARCHIVE_DIR", &c.Paths.ArchiveDir},
		{"BANSUB_COOKIES_TXT", &c.YtDlp.CookiesTxt},
		{"BANSUB_DASHSCOPE_API_KEY", &c.DashScope.APIKey},
		{"BANSUB_DASHSCOPE_MODEL", &c.DashScope.Model},
		{"BANSUB_OSS_REGION", &c.OSS.Region},
		{"BANSUB_OSS_BUCKET", &c.OSS.Bucket},
		{"BANSUB_OSS_ACCESS_KEY_ID", &c.OSS.AccessKeyID},
		{"BANSUB_OSS_ACCESS_KEY_SECRET", &c.OSS.AccessKeySecret},
		{"BANSUB_GEMINI_API_KEY", &c.Gemini.APIKey},
		{"BANSUB_GEMINI_MODEL", &c.Gemini.Model},
	}
	for _, o := range overrides {
		if value := os.Getenv(o.key); value != "" {
			*o.target = value
		}
	}
}

func (c *Config) normalize() error {
	for _, p := range []*string{&c.Paths.WorkDir, &c.Paths.ArchiveDir, &c.YtDlp.CookiesTxt} {
		if *p == "" {
			continue
		}
		expanded, err := expandPath(*p)
		if err != nil {
			return err
		}
		*p = expanded
	}
	return nil
}

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if c.Paths.WorkDir == "" {
		return errors.New("paths.work_dir must be set")
	}
	if c.DashScope.APIKey == "" {
		return errors.New("dashscope.api_key is required. Set BANSUB_DASHSCOPE_API_KEY or edit the config file")
	}
	if c.Gemini.APIKey == "" {
		return errors.New("gemini.api_key is required. Set BANSUB_GEMINI_API_KEY or edit the config file")
	}
	if c.OSS.Region == "" || c.OSS.Bucket == "" {
		return errors.New("oss.region and oss.bucket must be set")
	}
	if c.OSS.AccessKeyID == "" || c.OSS.AccessKeySecret == "" {
		return errors.New("oss.access_key_id and oss.access_key_secret are required")
	}
	if c.Subtitle.MaxChars <= 0 {
		return errors.New("subtitle.max_chars must be positive")
	}
	return nil
}

func expandPath(path string) (string, error) {
	if path == "~" || strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home dir: %w", err)
		}
		path = filepath.Join(home, strings.TrimPrefix(path, "~"))
	}
	return filepath.Abs(path)
}
