package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config 应用配置
type Config struct {
	Port     string `yaml:"port"`
	LogLevel string `yaml:"log_level"`

	// APIBase redirects every relative backend path to an absolute origin.
	// Empty means the backend shares our origin (BackendOrigin).
	APIBase       string        `yaml:"api_base"`
	BackendOrigin string        `yaml:"backend_origin"`
	FetchTimeout  time.Duration `yaml:"fetch_timeout"`

	Dashboard DashboardConfig `yaml:"dashboard"`
	Map       MapConfig       `yaml:"map"`
	Session   SessionConfig   `yaml:"session"`

	RateLimit       int           `yaml:"rate_limit"`
	RateLimitWindow time.Duration `yaml:"rate_limit_window"`
}

// DashboardConfig 仪表板配置
type DashboardConfig struct {
	Enabled bool `yaml:"enabled"`

	// CityFraudURL is the external city-level source tried before the
	// backend proxy. It receives ?date=<day>T16:00:00Z&standardized=true.
	CityFraudURL   string `yaml:"city_fraud_url"`
	TargetCityID   int    `yaml:"target_city_id"`
	TargetCityName string `yaml:"target_city_name"`

	// BootTimeout bounds the background tasks of one boot.
	BootTimeout time.Duration `yaml:"boot_timeout"`
}

// MapConfig 地图配置
type MapConfig struct {
	APIKey     string   `yaml:"api_key"` // overrides /api/maps_key when set
	ScriptURL  string   `yaml:"script_url"`
	ProbeKey   bool     `yaml:"probe_script"`
	CenterLat  float64  `yaml:"center_lat"`
	CenterLng  float64  `yaml:"center_lng"`
	Zoom       int      `yaml:"zoom"` // 0 fits the view to the markers
	HeatBase   float64  `yaml:"heat_base"`
	HeatBoost  float64  `yaml:"heat_boost"`
	Containers []string `yaml:"containers"`
}

// SessionConfig 会话配置
type SessionConfig struct {
	Secret string        `yaml:"secret"`
	TTL    time.Duration `yaml:"ttl"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Port:          ":8080",
		LogLevel:      "info",
		BackendOrigin: "http://127.0.0.1:8000",
		Dashboard: DashboardConfig{
			Enabled:        true,
			CityFraudURL:   "https://165dashboard.tw/CIB_DWS_API/api/Dashboard/GetMonthlyCityFraudData",
			TargetCityID:   14,
			TargetCityName: "新竹市",
			BootTimeout:    time.Minute,
		},
		Map: MapConfig{
			ScriptURL:  "https://maps.googleapis.com/maps/api/js",
			ProbeKey:   true,
			CenterLat:  24.803,
			CenterLng:  120.968,
			HeatBase:   60,
			HeatBoost:  0.4,
			Containers: []string{"map"},
		},
		Session: SessionConfig{
			Secret: "change-me-in-production",
			TTL:    30 * time.Minute,
		},
		RateLimit:       120,
		RateLimitWindow: time.Minute,
	}
}

// Load 加载配置: defaults, then the optional YAML file, then environment.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
		}
	}

	if err := applyEnv(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func applyEnv(cfg *Config) error {
	setString := func(key string, dst *string) {
		if v, ok := os.LookupEnv(key); ok {
			*dst = v
		}
	}
	setString("PORT", &cfg.Port)
	setString("LOG_LEVEL", &cfg.LogLevel)
	setString("API_BASE", &cfg.APIBase)
	setString("BACKEND_ORIGIN", &cfg.BackendOrigin)
	setString("CITY_FRAUD_URL", &cfg.Dashboard.CityFraudURL)
	setString("TARGET_CITY_NAME", &cfg.Dashboard.TargetCityName)
	setString("MAPS_API_KEY", &cfg.Map.APIKey)
	setString("SESSION_SECRET", &cfg.Session.Secret)

	if v := os.Getenv("TARGET_CITY_ID"); v != "" {
		id, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid TARGET_CITY_ID %q: %w", v, err)
		}
		cfg.Dashboard.TargetCityID = id
	}
	if v := os.Getenv("FETCH_TIMEOUT"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("invalid FETCH_TIMEOUT %q: %w", v, err)
		}
		cfg.FetchTimeout = d
	}
	if v := os.Getenv("DASHBOARD_ENABLED"); v != "" {
		enabled, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("invalid DASHBOARD_ENABLED %q: %w", v, err)
		}
		cfg.Dashboard.Enabled = enabled
	}
	return nil
}

// BaseURL is the origin relative API paths resolve against.
func (c *Config) BaseURL() string {
	if c.APIBase != "" {
		return c.APIBase
	}
	return c.BackendOrigin
}
