package config

import (
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"
)

// Duration wraps time.Duration so TOML files can carry values like "30s".
type Duration struct {
	time.Duration
}

func (d *Duration) UnmarshalText(text []byte) error {
	parsed, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	d.Duration = parsed
	return nil
}

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// Config represents ~/.harvester/config.toml.
type Config struct {
	DefaultSession string `toml:"default_session"`

	Browser BrowserConfig `toml:"browser"`
	Scan    ScanConfig    `toml:"scan"`
	Verify  VerifyConfig  `toml:"verify"`
	HTTP    HTTPConfig    `toml:"http"`
	Store   StoreConfig   `toml:"store"`
}

type BrowserConfig struct {
	TargetURL    string `toml:"target_url"`
	Headless     bool   `toml:"headless"`
	WindowWidth  int    `toml:"window_width"`
	WindowHeight int    `toml:"window_height"`
}

type ScanConfig struct {
	MessageWindow   int      `toml:"message_window"`
	ScrollFraction  float64  `toml:"scroll_fraction"`
	ScrollSteps     int      `toml:"scroll_steps"`
	EmptyBatchLimit int      `toml:"empty_batch_limit"`
	MaxChatsPerScan int      `toml:"max_chats_per_scan"`
	SettleDelay     Duration `toml:"settle_delay"`
	RescanInterval  Duration `toml:"rescan_interval"`
	LoginTimeout    Duration `toml:"login_timeout"`
}

type VerifyConfig struct {
	URL     string   `toml:"url"`
	Key     string   `toml:"key"`
	Timeout Duration `toml:"timeout"`
}

type HTTPConfig struct {
	Addr string `toml:"addr"`
}

type StoreConfig struct {
	MinPhoneLength int `toml:"min_phone_length"`
}

// Default returns a config populated with every tunable's default.
func Default() *Config {
	return &Config{
		DefaultSession: "main",
		Browser: BrowserConfig{
			TargetURL:    "https://web.telegram.org/a/",
			Headless:     false,
			WindowWidth:  1200,
			WindowHeight: 900,
		},
		Scan: ScanConfig{
			MessageWindow:   10,
			ScrollFraction:  0.3,
			ScrollSteps:     3,
			EmptyBatchLimit: 3,
			MaxChatsPerScan: 20,
			SettleDelay:     Duration{2 * time.Second},
			RescanInterval:  Duration{30 * time.Second},
			LoginTimeout:    Duration{180 * time.Second},
		},
		Verify: VerifyConfig{
			Timeout: Duration{10 * time.Second},
		},
		HTTP: HTTPConfig{
			Addr: "127.0.0.1:8790",
		},
		Store: StoreConfig{
			MinPhoneLength: 12,
		},
	}
}

// Load reads config from the given path, overlaying file values on the
// defaults. A missing file is not an error: it yields the defaults.
func Load(path string) (*Config, error) {
	cfg := Default()
	_, err := toml.DecodeFile(path, cfg)
	if os.IsNotExist(err) {
		return cfg, nil
	}
	if err != nil {
		return nil, err
	}
	return cfg, nil
}

// Save writes config to the given path, creating parent dirs as needed.
func Save(path string, cfg *Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
	if err != nil {
		return err
	}
	encErr := toml.NewEncoder(f).Encode(cfg)
	if closeErr := f.Close(); closeErr != nil && encErr == nil {
		return closeErr
	}
	return encErr
}
