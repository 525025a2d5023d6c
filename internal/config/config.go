// Package config loads runtime settings from an optional YAML file and
// SAFEHEADS_ prefixed environment variables.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Log       LogConfig       `mapstructure:"log"`
	Video     VideoConfig     `mapstructure:"video"`
	Tracker   TrackerConfig   `mapstructure:"tracker"`
	Detection DetectionConfig `mapstructure:"detection"`
	Crop      CropConfig      `mapstructure:"crop"`
	Helmet    HelmetConfig    `mapstructure:"helmet"`
	Pipeline  PipelineConfig  `mapstructure:"pipeline"`
	OCR       OCRConfig       `mapstructure:"ocr"`
	Database  DatabaseConfig  `mapstructure:"database"`
	HTTP      HTTPConfig      `mapstructure:"http"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Pretty bool   `mapstructure:"pretty"`
}

type VideoConfig struct {
	Source         string        `mapstructure:"source"`
	DetectInterval time.Duration `mapstructure:"detect_interval"`
	ConfThreshold  float64       `mapstructure:"conf_threshold"`
	LiveFrameDelay time.Duration `mapstructure:"live_frame_delay"`
}

type TrackerConfig struct {
	IOUThreshold float64       `mapstructure:"iou_threshold"`
	MaxIdle      time.Duration `mapstructure:"max_idle"`
}

// DetectionConfig points at the vehicle detection network files.
type DetectionConfig struct {
	Model     string `mapstructure:"model"`
	Config    string `mapstructure:"config"`
	Classes   string `mapstructure:"classes"`
	InputSize int    `mapstructure:"input_size"`
}

type CropConfig struct {
	Dir          string        `mapstructure:"dir"`
	Prefix       string        `mapstructure:"prefix"`
	SaveInterval time.Duration `mapstructure:"save_interval"`
	MinWidth     int           `mapstructure:"min_width"`
	MinHeight    int           `mapstructure:"min_height"`
}

type HelmetConfig struct {
	Model         string        `mapstructure:"model"`
	Config        string        `mapstructure:"config"`
	Classes       string        `mapstructure:"classes"`
	InputSize     int           `mapstructure:"input_size"`
	ResultsDir    string        `mapstructure:"results_dir"`
	ViolationDir  string        `mapstructure:"violation_dir"`
	Interval      time.Duration `mapstructure:"interval"`
	RecentWindow  int           `mapstructure:"recent_window"`
	ConfThreshold float64       `mapstructure:"conf_threshold"`
	MaxResults    int           `mapstructure:"max_results"`
	MaxViolations int           `mapstructure:"max_violations"`
}

type PipelineConfig struct {
	ViolationDir     string        `mapstructure:"violation_dir"`
	EnhancedDir      string        `mapstructure:"enhanced_dir"`
	PollInterval     time.Duration `mapstructure:"poll_interval"`
	SettleDelay      time.Duration `mapstructure:"settle_delay"`
	MinResolution    int           `mapstructure:"min_resolution"`
	MaxHistory       int           `mapstructure:"max_history"`
	MaxParseAttempts int           `mapstructure:"max_parse_attempts"`
}

type OCRConfig struct {
	// Languages are tried in order, one reader per language.
	Languages []string `mapstructure:"languages"`
}

type DatabaseConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	DSN     string `mapstructure:"dsn"`
}

type HTTPConfig struct {
	Addr           string   `mapstructure:"addr"`
	JWTSecret      string   `mapstructure:"jwt_secret"`
	AllowedOrigins []string `mapstructure:"allowed_origins"`
	MetricsPath    string   `mapstructure:"metrics_path"`
}

// Load reads configuration from path (optional), falling back to a
// config.yaml in the working directory, with environment overrides.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}

	v.SetEnvPrefix("SAFEHEADS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("log.level", "info")
	v.SetDefault("log.pretty", false)

	v.SetDefault("video.source", "")
	v.SetDefault("video.detect_interval", "2s")
	v.SetDefault("video.conf_threshold", 0.5)
	v.SetDefault("video.live_frame_delay", "33ms")

	v.SetDefault("tracker.iou_threshold", 0.35)
	v.SetDefault("tracker.max_idle", "2500ms")

	v.SetDefault("detection.model", "models/vehicle.weights")
	v.SetDefault("detection.config", "models/vehicle.cfg")
	v.SetDefault("detection.classes", "models/vehicle.names")
	v.SetDefault("detection.input_size", 640)

	v.SetDefault("crop.dir", "cropped_images")
	v.SetDefault("crop.prefix", "vehicle")
	v.SetDefault("crop.save_interval", "1s")
	v.SetDefault("crop.min_width", 290)
	v.SetDefault("crop.min_height", 450)

	v.SetDefault("helmet.model", "models/helmet.weights")
	v.SetDefault("helmet.config", "models/helmet.cfg")
	v.SetDefault("helmet.classes", "models/helmet.names")
	v.SetDefault("helmet.input_size", 640)
	v.SetDefault("helmet.results_dir", "helmet_results")
	v.SetDefault("helmet.violation_dir", "violation")
	v.SetDefault("helmet.interval", "500ms")
	v.SetDefault("helmet.recent_window", 5)
	v.SetDefault("helmet.conf_threshold", 0.5)
	v.SetDefault("helmet.max_results", 100)
	v.SetDefault("helmet.max_violations", 200)

	v.SetDefault("pipeline.violation_dir", "violation")
	v.SetDefault("pipeline.enhanced_dir", "enhanced")
	v.SetDefault("pipeline.poll_interval", "2s")
	v.SetDefault("pipeline.settle_delay", "500ms")
	v.SetDefault("pipeline.min_resolution", 200*400)
	v.SetDefault("pipeline.max_history", 1000)
	v.SetDefault("pipeline.max_parse_attempts", 5)

	v.SetDefault("ocr.languages", []string{"eng"})

	v.SetDefault("database.enabled", false)
	v.SetDefault("database.dsn", "")

	v.SetDefault("http.addr", ":8080")
	v.SetDefault("http.jwt_secret", "")
	v.SetDefault("http.allowed_origins", []string{"*"})
	v.SetDefault("http.metrics_path", "/metrics")
}
