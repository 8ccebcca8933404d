package config

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

type Config struct {
	Board         BoardConfig         `toml:"board"`
	Options       OptionsConfig       `toml:"options"`
	Images        ImagesConfig        `toml:"images"`
	Storage       StorageConfig       `toml:"storage"`
	Toxicity      ToxicityConfig      `toml:"toxicity"`
	Dashboard     DashboardConfig     `toml:"dashboard"`
	Notifications NotificationsConfig `toml:"notifications"`
}

type BoardConfig struct {
	Name              string  `toml:"name"`
	APIBase           string  `toml:"api_base"`
	MediaBase         string  `toml:"media_base"`
	UserAgent         string  `toml:"user_agent"`
	Referer           string  `toml:"referer"` // sent only when set
	RequestsPerSecond float64 `toml:"requests_per_second"`
	Burst             int     `toml:"burst"`
	TimeoutSeconds    int     `toml:"timeout_seconds"`
}

type OptionsConfig struct {
	SaveLocation   string `toml:"save_location"`
	CycleTimeMS    int    `toml:"cycle_time_ms"`
	ErrorBackoffMS int    `toml:"error_backoff_ms"`
	RestartDelayMS int    `toml:"restart_delay_ms"`
	ShowProgress   bool   `toml:"show_progress"`
	CheckUpdates   bool   `toml:"check_updates"`
}

type ImagesConfig struct {
	MaxWidth             int `toml:"max_width"`
	JPEGQuality          int `toml:"jpeg_quality"`
	HashThreshold        int `toml:"hash_threshold"`
	ScanBatchSize        int `toml:"scan_batch_size"`
	RetentionDays        int `toml:"retention_days"`
	CleanupIntervalHours int `toml:"cleanup_interval_hours"`
}

type StorageConfig struct {
	Backend       string `toml:"backend"` // "sqlite" or "mongo"
	MongoURI      string `toml:"mongo_uri"`
	MongoDatabase string `toml:"mongo_database"`
}

type ToxicityConfig struct {
	Provider    string             `toml:"provider"` // "http", "gemini" or "none"
	Endpoint    string             `toml:"endpoint"`
	GeminiModel string             `toml:"gemini_model"`
	APIKey      string             `toml:"api_key"`
	Weights     map[string]float64 `toml:"weights"`
}

type DashboardConfig struct {
	Enabled       bool   `toml:"enabled"`
	Listen        string `toml:"listen"`
	TopN          int    `toml:"top_n"`
	WordCloudSize int    `toml:"word_cloud_size"`
	ServeMedia    bool   `toml:"serve_media"`
}

type NotificationsConfig struct {
	Enabled         bool   `toml:"enabled"`
	SystemNotify    bool   `toml:"system_notify"`
	DiscordWebhook  string `toml:"discord_webhook"`
	NotifyOnRestart bool   `toml:"notify_on_restart"`
	RepostThreshold int    `toml:"repost_threshold"`
}

func (c *Config) CycleTime() time.Duration {
	return time.Duration(c.Options.CycleTimeMS) * time.Millisecond
}

func (c *Config) ErrorBackoff() time.Duration {
	return time.Duration(c.Options.ErrorBackoffMS) * time.Millisecond
}

func (c *Config) RestartDelay() time.Duration {
	return time.Duration(c.Options.RestartDelayMS) * time.Millisecond
}

func (c *Config) Retention() time.Duration {
	return time.Duration(c.Images.RetentionDays) * 24 * time.Hour
}

func (c *Config) CleanupInterval() time.Duration {
	return time.Duration(c.Images.CleanupIntervalHours) * time.Hour
}

func (c *Config) RequestTimeout() time.Duration {
	return time.Duration(c.Board.TimeoutSeconds) * time.Second
}

// ImageDir is where raw downloads land; optimized copies live in ImageDir/optimized.
func (c *Config) ImageDir() string {
	return filepath.Join(c.Options.SaveLocation, "images")
}

func (c *Config) OptimizedDir() string {
	return filepath.Join(c.ImageDir(), "optimized")
}

func GetConfigPath() string {
	currentDirConfig := "config.toml"
	if _, err := os.Stat(currentDirConfig); err == nil {
		return currentDirConfig
	}

	return filepath.Join(GetConfigDir(), "config.toml")
}

func GetConfigDir() string {
	var configDir string
	var err error

	if runtime.GOOS == "darwin" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			log.Fatal(err)
		}
		configDir = filepath.Join(homeDir, ".config")
	} else {
		configDir, err = os.UserConfigDir()
		if err != nil {
			log.Fatal(err)
		}
	}

	return filepath.Join(configDir, "board-collector")
}

func SaveConfig(cfg *Config) error {
	return saveConfigTo(GetConfigPath(), cfg)
}

func saveConfigTo(configPath string, cfg *Config) error {
	if err := os.MkdirAll(filepath.Dir(configPath), os.ModePerm); err != nil {
		return err
	}

	file, err := os.Create(configPath)
	if err != nil {
		return err
	}
	defer file.Close()

	encoder := toml.NewEncoder(file)
	return encoder.Encode(cfg)
}

// LoadConfig decodes the TOML file, overlays values from the environment (and a
// .env file in the working directory, if any), fills zero values with defaults
// and validates the result.
func LoadConfig(configPath string) (*Config, error) {
	config := CreateDefaultConfig()
	if _, err := toml.DecodeFile(configPath, config); err != nil {
		return nil, err
	}

	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.Printf("Error reading .env file: %v", err)
	}
	if err := applyEnv(config); err != nil {
		return nil, err
	}

	applyDefaults(config)

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("%w in %v", err, configPath)
	}

	config.Options.SaveLocation = filepath.ToSlash(config.Options.SaveLocation)

	return config, nil
}

func (c *Config) Validate() error {
	if c.Board.Name == "" {
		return fmt.Errorf("board name is empty")
	}
	if c.Options.SaveLocation == "" {
		return fmt.Errorf("save_location is empty")
	}
	if c.Options.CycleTimeMS <= 0 {
		return fmt.Errorf("cycle_time_ms must be positive, got %d", c.Options.CycleTimeMS)
	}
	if c.Images.HashThreshold < 0 || c.Images.HashThreshold > 64 {
		return fmt.Errorf("hash_threshold must be within [0,64], got %d", c.Images.HashThreshold)
	}
	switch c.Storage.Backend {
	case "sqlite":
	case "mongo":
		if c.Storage.MongoURI == "" {
			return fmt.Errorf("mongo_uri is empty while storage backend is mongo")
		}
	default:
		return fmt.Errorf("unknown storage backend %q", c.Storage.Backend)
	}
	switch c.Toxicity.Provider {
	case "none":
	case "http":
		if c.Toxicity.Endpoint == "" {
			return fmt.Errorf("toxicity endpoint is empty while provider is http")
		}
	case "gemini":
	default:
		return fmt.Errorf("unknown toxicity provider %q", c.Toxicity.Provider)
	}
	for category, weight := range c.Toxicity.Weights {
		if weight <= 0 {
			return fmt.Errorf("toxicity weight for %s must be positive", category)
		}
	}
	return nil
}

// applyEnv lets the deployment environment override the file, using the
// variable names the collector has always been run with.
func applyEnv(cfg *Config) error {
	if v := os.Getenv("BOARD"); v != "" {
		cfg.Board.Name = v
	}
	if v := os.Getenv("CYCLE_TIME"); v != "" {
		ms, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid CYCLE_TIME %q: %w", v, err)
		}
		cfg.Options.CycleTimeMS = ms
	}
	if v := os.Getenv("DOWNLOAD_DIR"); v != "" {
		cfg.Options.SaveLocation = v
	}
	if v := os.Getenv("MONGO_URI"); v != "" {
		cfg.Storage.MongoURI = v
		cfg.Storage.Backend = "mongo"
	}
	if v := os.Getenv("TOXICITY_ENDPOINT"); v != "" {
		cfg.Toxicity.Endpoint = v
		cfg.Toxicity.Provider = "http"
	}
	if v := os.Getenv("GEMINI_API_KEY"); v != "" {
		cfg.Toxicity.APIKey = v
	}
	return nil
}

func applyDefaults(cfg *Config) {
	d := CreateDefaultConfig()

	if cfg.Board.APIBase == "" {
		cfg.Board.APIBase = d.Board.APIBase
	}
	if cfg.Board.MediaBase == "" {
		cfg.Board.MediaBase = d.Board.MediaBase
	}
	if cfg.Board.UserAgent == "" {
		cfg.Board.UserAgent = d.Board.UserAgent
	}
	if cfg.Board.RequestsPerSecond <= 0 {
		cfg.Board.RequestsPerSecond = d.Board.RequestsPerSecond
	}
	if cfg.Board.Burst <= 0 {
		cfg.Board.Burst = d.Board.Burst
	}
	if cfg.Board.TimeoutSeconds <= 0 {
		cfg.Board.TimeoutSeconds = d.Board.TimeoutSeconds
	}
	if cfg.Options.ErrorBackoffMS <= 0 {
		cfg.Options.ErrorBackoffMS = d.Options.ErrorBackoffMS
	}
	if cfg.Options.RestartDelayMS <= 0 {
		cfg.Options.RestartDelayMS = d.Options.RestartDelayMS
	}
	if cfg.Images.MaxWidth <= 0 {
		cfg.Images.MaxWidth = d.Images.MaxWidth
	}
	if cfg.Images.JPEGQuality <= 0 || cfg.Images.JPEGQuality > 100 {
		cfg.Images.JPEGQuality = d.Images.JPEGQuality
	}
	if cfg.Images.ScanBatchSize <= 0 {
		cfg.Images.ScanBatchSize = d.Images.ScanBatchSize
	}
	if cfg.Images.RetentionDays <= 0 {
		cfg.Images.RetentionDays = d.Images.RetentionDays
	}
	if cfg.Images.CleanupIntervalHours <= 0 {
		cfg.Images.CleanupIntervalHours = d.Images.CleanupIntervalHours
	}
	if cfg.Storage.Backend == "" {
		cfg.Storage.Backend = d.Storage.Backend
	}
	if cfg.Storage.MongoDatabase == "" {
		cfg.Storage.MongoDatabase = d.Storage.MongoDatabase
	}
	cfg.Toxicity.Provider = strings.ToLower(cfg.Toxicity.Provider)
	if cfg.Toxicity.Provider == "" {
		cfg.Toxicity.Provider = d.Toxicity.Provider
	}
	if cfg.Toxicity.GeminiModel == "" {
		cfg.Toxicity.GeminiModel = d.Toxicity.GeminiModel
	}
	if cfg.Dashboard.Listen == "" {
		cfg.Dashboard.Listen = d.Dashboard.Listen
	}
	if cfg.Dashboard.TopN <= 0 {
		cfg.Dashboard.TopN = d.Dashboard.TopN
	}
	if cfg.Dashboard.WordCloudSize <= 0 {
		cfg.Dashboard.WordCloudSize = d.Dashboard.WordCloudSize
	}
}

func CreateDefaultConfig() *Config {
	return &Config{
		Board: BoardConfig{
			Name:              "biz",
			APIBase:           "https://a.4cdn.org",
			MediaBase:         "https://i.4cdn.org",
			UserAgent:         "board-collector/1.0",
			Referer:           "",
			RequestsPerSecond: 1,
			Burst:             3,
			TimeoutSeconds:    30,
		},
		Options: OptionsConfig{
			SaveLocation:   "/path/to/save/content/to",
			CycleTimeMS:    60000,
			ErrorBackoffMS: 5000,
			RestartDelayMS: 5000,
			ShowProgress:   false,
			CheckUpdates:   false,
		},
		Images: ImagesConfig{
			MaxWidth:             800,
			JPEGQuality:          50,
			HashThreshold:        5,
			ScanBatchSize:        500,
			RetentionDays:        30,
			CleanupIntervalHours: 24,
		},
		Storage: StorageConfig{
			Backend:       "sqlite",
			MongoURI:      "",
			MongoDatabase: "board_collector",
		},
		Toxicity: ToxicityConfig{
			Provider:    "none",
			Endpoint:    "",
			GeminiModel: "gemini-2.5-flash-lite",
			Weights: map[string]float64{
				"toxicity":        1.0,
				"severe_toxicity": 0.7,
				"identity_attack": 0.8,
				"threat":          0.8,
				"insult":          1.2,
				"obscene":         1.5,
				"sexual_explicit": 1.5,
			},
		},
		Dashboard: DashboardConfig{
			Enabled:       false,
			Listen:        "127.0.0.1:2096",
			TopN:          10,
			WordCloudSize: 300,
			ServeMedia:    false,
		},
		Notifications: NotificationsConfig{
			Enabled:         false,
			SystemNotify:    false,
			DiscordWebhook:  "",
			NotifyOnRestart: true,
			RepostThreshold: 10,
		},
	}
}
