// Package config loads the server configuration from a YAML file with
// environment-variable overrides for secrets and common knobs.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v2"
)

// Config is the base configuration object
type Config struct {
	Device   DeviceConfig   `yaml:"device"`
	HTTP     HTTPConfig     `yaml:"http,omitempty"`
	Weather  WeatherConfig  `yaml:"weather,omitempty"`
	Forecast ForecastConfig `yaml:"forecast,omitempty"`
	Storage  StorageConfig  `yaml:"storage,omitempty"`
	LogFile  string         `yaml:"log-file,omitempty"`
}

// DeviceConfig holds the connection details for the tracker.  Either a
// serial device or hostname+port must be set.
type DeviceConfig struct {
	Name         string `yaml:"name,omitempty"`
	SerialDevice string `yaml:"serialdevice,omitempty"`
	Baud         int    `yaml:"baud,omitempty"`
	Hostname     string `yaml:"hostname,omitempty"`
	Port         string `yaml:"port,omitempty"`
}

// HTTPConfig holds the query surface listener settings.
type HTTPConfig struct {
	ListenAddr string `yaml:"listen-addr,omitempty"`
	Port       int    `yaml:"port,omitempty"`
}

// WeatherConfig holds the external weather API settings.
type WeatherConfig struct {
	APIKey      string        `yaml:"api-key,omitempty"`
	Location    string        `yaml:"location,omitempty"`
	APIEndpoint string        `yaml:"api-endpoint,omitempty"`
	Interval    time.Duration `yaml:"interval,omitempty"`
}

// ForecastConfig holds the forecast recomputation settings.
type ForecastConfig struct {
	Interval time.Duration `yaml:"interval,omitempty"`
}

// StorageConfig holds the configuration for the history backends.  More
// than one backend can be used simultaneously; the in-memory backend is
// always enabled.
type StorageConfig struct {
	MaxHistory  int               `yaml:"max-history,omitempty"`
	SQLite      SQLiteConfig      `yaml:"sqlite,omitempty"`
	TimescaleDB TimescaleDBConfig `yaml:"timescaledb,omitempty"`
}

type SQLiteConfig struct {
	Path string `yaml:"path,omitempty"`
}

type TimescaleDBConfig struct {
	ConnectionString string `yaml:"connection-string,omitempty"`
}

const (
	DefaultBaud             = 9600
	DefaultHTTPPort         = 8080
	DefaultWeatherInterval  = 10 * time.Minute
	DefaultForecastInterval = 30 * time.Minute
	DefaultMaxHistory       = 512
)

// NewConfig creates a new config object from the given filename.  A missing
// file is not an error when every required option is supplied via the
// environment.
func NewConfig(filename string) (Config, error) {
	cfg := Config{}

	if filename != "" {
		data, err := os.ReadFile(filename)
		if err != nil {
			if !os.IsNotExist(err) {
				return Config{}, fmt.Errorf("error reading config file: %v", err)
			}
		} else if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("error parsing config file: %v", err)
		}
	}

	cfg.applyEnvOverrides()
	cfg.applyDefaults()

	if err := cfg.validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

// applyEnvOverrides lets the environment take precedence over the file for
// secrets and the most commonly tuned options.
func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("PHOTONIQ_DEVICE_SERIAL"); v != "" {
		c.Device.SerialDevice = v
	}
	if v := os.Getenv("PHOTONIQ_DEVICE_HOST"); v != "" {
		c.Device.Hostname = v
	}
	if v := os.Getenv("PHOTONIQ_DEVICE_PORT"); v != "" {
		c.Device.Port = v
	}
	if v := os.Getenv("PHOTONIQ_DEVICE_BAUD"); v != "" {
		if baud, err := strconv.Atoi(v); err == nil {
			c.Device.Baud = baud
		}
	}
	if v := os.Getenv("PHOTONIQ_HTTP_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			c.HTTP.Port = port
		}
	}
	if v := os.Getenv("PHOTONIQ_WEATHER_API_KEY"); v != "" {
		c.Weather.APIKey = v
	}
	if v := os.Getenv("PHOTONIQ_WEATHER_LOCATION"); v != "" {
		c.Weather.Location = v
	}
	if v := os.Getenv("PHOTONIQ_WEATHER_INTERVAL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			c.Weather.Interval = d
		}
	}
	if v := os.Getenv("PHOTONIQ_FORECAST_INTERVAL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			c.Forecast.Interval = d
		}
	}
}

func (c *Config) applyDefaults() {
	if c.Device.Name == "" {
		c.Device.Name = "tracker"
	}
	if c.Device.Baud == 0 {
		c.Device.Baud = DefaultBaud
	}
	if c.HTTP.Port == 0 {
		c.HTTP.Port = DefaultHTTPPort
	}
	if c.Weather.Interval == 0 {
		c.Weather.Interval = DefaultWeatherInterval
	}
	if c.Forecast.Interval == 0 {
		c.Forecast.Interval = DefaultForecastInterval
	}
	if c.Storage.MaxHistory == 0 {
		c.Storage.MaxHistory = DefaultMaxHistory
	}
}

func (c *Config) validate() error {
	if c.Device.SerialDevice == "" && (c.Device.Hostname == "" || c.Device.Port == "") {
		return fmt.Errorf("device: must define either a serial device or hostname+port")
	}
	if c.HTTP.Port < 1 || c.HTTP.Port > 65535 {
		return fmt.Errorf("http: invalid port %d", c.HTTP.Port)
	}
	return nil
}
