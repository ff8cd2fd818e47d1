// Package config assembles the server configuration: defaults, then an
// optional YAML file, then environment overrides.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/Eduhs21/ClipBuilder/internal/ports/adapters/gemini"
)

const (
	ProviderGemini = "gemini"
	ProviderGroq   = "groq"
)

type Config struct {
	ListenAddr string `yaml:"listen_addr"`
	DataDir    string `yaml:"data_dir"`

	MaxVideoBytes int64 `yaml:"max_video_bytes"`
	MaxVideoFiles int   `yaml:"max_video_files"`

	ClipSeconds int `yaml:"clip_seconds"`
	ProxyHeight int `yaml:"proxy_height"`
	FrameCount  int `yaml:"frame_count"`
	FrameWindow int `yaml:"frame_window_seconds"`

	PollIntervalSec int `yaml:"poll_interval_seconds"`
	PollTimeoutSec  int `yaml:"poll_timeout_seconds"`

	Provider string `yaml:"provider"`

	GeminiAPIKey       string   `yaml:"gemini_api_key"`
	GeminiModel        string   `yaml:"gemini_model"`
	GeminiBaseURL      string   `yaml:"gemini_base_url"`
	GeminiAllowedHosts []string `yaml:"gemini_allowed_hosts"`

	GroqAPIKey  string `yaml:"groq_api_key"`
	GroqModel   string `yaml:"groq_model"`
	GroqBaseURL string `yaml:"groq_base_url"`

	FFmpegPath  string `yaml:"ffmpeg_path"`
	FFprobePath string `yaml:"ffprobe_path"`

	YtdlpPath          string `yaml:"ytdlp_path"`
	CookiesFile        string `yaml:"ytdlp_cookies_file"`
	CookiesFromBrowser string `yaml:"ytdlp_cookies_from_browser"`

	WhisperBin   string `yaml:"whisper_bin"`
	WhisperModel string `yaml:"whisper_model"`
}

// DefaultConfig returns the configuration used when nothing is set.
func DefaultConfig() *Config {
	return &Config{
		ListenAddr:      ":8000",
		DataDir:         "data",
		MaxVideoBytes:   700 << 20,
		MaxVideoFiles:   20,
		ClipSeconds:     90,
		ProxyHeight:     720,
		FrameCount:      1,
		FrameWindow:     0,
		PollIntervalSec: 2,
		PollTimeoutSec:  300,
		Provider:        ProviderGroq,
		GeminiModel:     "gemini-2.0-flash",
		GroqModel:       "meta-llama/llama-4-maverick-17b-128e-instruct",
	}
}

// Load builds the effective config: defaults, then the YAML file at
// path (or a discovered one when path is empty), then env overrides.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	if path == "" {
		path = FindConfigFile()
	}
	if path != "" {
		fileCfg, err := LoadConfigFile(path)
		if err != nil {
			return nil, err
		}
		cfg = fileCfg
	}

	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() {
	envStr("CLIPBUILDER_LISTEN_ADDR", &c.ListenAddr)
	envStr("CLIPBUILDER_DATA_DIR", &c.DataDir)
	envInt64("CLIPBUILDER_MAX_VIDEO_BYTES", &c.MaxVideoBytes)
	envInt("CLIPBUILDER_MAX_VIDEO_FILES", &c.MaxVideoFiles)
	envInt("CLIPBUILDER_CLIP_SECONDS", &c.ClipSeconds)
	envInt("CLIPBUILDER_PROXY_HEIGHT", &c.ProxyHeight)
	envInt("CLIPBUILDER_FRAME_COUNT", &c.FrameCount)
	envInt("CLIPBUILDER_FRAME_WINDOW_SECONDS", &c.FrameWindow)
	envInt("CLIPBUILDER_POLL_INTERVAL_SECONDS", &c.PollIntervalSec)
	envInt("CLIPBUILDER_POLL_TIMEOUT_SECONDS", &c.PollTimeoutSec)
	envStr("CLIPBUILDER_AI_PROVIDER", &c.Provider)

	envStr("GEMINI_API_KEY", &c.GeminiAPIKey)
	envStr("CLIPBUILDER_GEMINI_MODEL", &c.GeminiModel)
	envStr("GEMINI_BASE_URL", &c.GeminiBaseURL)
	if raw := strings.TrimSpace(os.Getenv("GEMINI_ALLOWED_HOSTS")); raw != "" {
		c.GeminiAllowedHosts = strings.Split(raw, ",")
	}

	envStr("GROQ_API_KEY", &c.GroqAPIKey)
	envStr("CLIPBUILDER_GROQ_VISION_MODEL", &c.GroqModel)
	envStr("GROQ_BASE_URL", &c.GroqBaseURL)

	envStr("CLIPBUILDER_FFMPEG", &c.FFmpegPath)
	envStr("CLIPBUILDER_FFPROBE", &c.FFprobePath)
	envStr("CLIPBUILDER_YTDLP", &c.YtdlpPath)
	envStr("CLIPBUILDER_YTDLP_COOKIES_FILE", &c.CookiesFile)
	envStr("CLIPBUILDER_YTDLP_COOKIES_FROM_BROWSER", &c.CookiesFromBrowser)
	envStr("CLIPBUILDER_WHISPER_BIN", &c.WhisperBin)
	envStr("CLIPBUILDER_WHISPER_MODEL", &c.WhisperModel)
}

func (c *Config) Validate() error {
	if c.DataDir == "" {
		return errors.New("data dir is empty")
	}
	if c.MaxVideoBytes <= 0 {
		return errors.New("max video bytes must be > 0")
	}
	if c.MaxVideoFiles <= 0 {
		return errors.New("max video files must be > 0")
	}
	if c.ClipSeconds < 10 {
		return fmt.Errorf("clip seconds must be >= 10, got %d", c.ClipSeconds)
	}
	if c.FrameCount <= 0 {
		return errors.New("frame count must be > 0")
	}
	if c.PollIntervalSec <= 0 || c.PollTimeoutSec <= 0 {
		return errors.New("poll interval and timeout must be > 0")
	}

	switch c.Provider {
	case ProviderGemini:
		if c.GeminiAPIKey == "" {
			return errors.New("GEMINI_API_KEY is required for the gemini provider")
		}
		if err := gemini.ValidateBaseURL(c.GeminiBaseURL, c.GeminiAllowedHosts); err != nil {
			return err
		}
	case ProviderGroq:
		if c.GroqAPIKey == "" {
			return errors.New("GROQ_API_KEY is required for the groq provider")
		}
	default:
		return fmt.Errorf("unknown provider %q: use %s or %s", c.Provider, ProviderGemini, ProviderGroq)
	}
	return nil
}

func (c *Config) PollInterval() time.Duration {
	return time.Duration(c.PollIntervalSec) * time.Second
}

func (c *Config) PollTimeout() time.Duration {
	return time.Duration(c.PollTimeoutSec) * time.Second
}

func envStr(name string, dst *string) {
	if v := strings.TrimSpace(os.Getenv(name)); v != "" {
		*dst = v
	}
}

func envInt(name string, dst *int) {
	raw := strings.TrimSpace(os.Getenv(name))
	if raw == "" {
		return
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v <= 0 {
		return
	}
	*dst = v
}

func envInt64(name string, dst *int64) {
	raw := strings.TrimSpace(os.Getenv(name))
	if raw == "" {
		return
	}
	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || v <= 0 {
		return
	}
	*dst = v
}
