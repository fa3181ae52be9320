package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

const filtersDirName = "rethread"

type Config struct {
	AppConfig     *AppConfig
	BrowserConfig *BrowserConfig
	FilterConfig  *FilterConfig
	PickerConfig  *PickerConfig
}

type AppConfig struct {
	LogLevel      string `envconfig:"LOG_LEVEL" default:"info"`
	Debug         bool   `envconfig:"DEBUG" default:"false"`
	LogFile       string `envconfig:"LOG_FILE" default:""`
	LogMaxSizeMB  int    `envconfig:"LOG_MAX_SIZE_MB" default:"10"`
	LogMaxBackups int    `envconfig:"LOG_MAX_BACKUPS" default:"3"`
	TraceEnabled  bool   `envconfig:"TRACE_ENABLED" default:"false"`
}

type BrowserConfig struct {
	Headless    bool   `envconfig:"BROWSER_HEADLESS" default:"false"`
	SlowMo      int    `envconfig:"BROWSER_SLOW_MO" default:"0"`
	Timeout     int    `envconfig:"BROWSER_TIMEOUT" default:"30000"`
	UserDataDir string `envconfig:"BROWSER_USER_DATA_DIR" default:"./browser-data"`
	StartURL    string `envconfig:"BROWSER_START_URL" default:""`
}

type FilterConfig struct {
	ConfigDir string `envconfig:"FILTERS_CONFIG_DIR" default:""`
}

type PickerConfig struct {
	DefaultStrictness int `envconfig:"PICKER_DEFAULT_STRICTNESS" default:"2"`
	TextSuggestionMax int `envconfig:"PICKER_TEXT_SUGGESTION_MAX" default:"60"`
}

func GetConfig() (*Config, error) {
	_ = godotenv.Load()

	var conf Config

	if err := envconfig.Process("", &conf); err != nil {
		return nil, fmt.Errorf("read config from env vars: %w", err)
	}

	if conf.PickerConfig.DefaultStrictness < 0 || conf.PickerConfig.DefaultStrictness > 3 {
		return nil, fmt.Errorf("PICKER_DEFAULT_STRICTNESS must be within 0..3, got %d", conf.PickerConfig.DefaultStrictness)
	}

	if conf.FilterConfig.ConfigDir == "" {
		dir, err := defaultFiltersDir()
		if err != nil {
			return nil, fmt.Errorf("resolve filters config dir: %w", err)
		}
		conf.FilterConfig.ConfigDir = dir
	}

	return &conf, nil
}

// defaultFiltersDir mirrors the XDG lookup of the browser the filters belong to.
func defaultFiltersDir() (string, error) {
	root := os.Getenv("XDG_CONFIG_HOME")
	if root == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		root = filepath.Join(home, ".config")
	}

	return filepath.Join(root, filtersDirName), nil
}
