// Package config holds the static configuration of the tracker. Values
// are fixed for the process lifetime: compiled-in defaults, optionally
// overlaid once at startup from a YAML file. There is no reload.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	APN      APNConfig      `yaml:"apn"`
	Endpoint EndpointConfig `yaml:"endpoint"`
	Streams  StreamsConfig  `yaml:"streams"`
	GPS      GPSConfig      `yaml:"gps"`
	Radio    RadioConfig    `yaml:"radio"`

	CycleInterval time.Duration `yaml:"cycle_interval"`
	TrackLog      string        `yaml:"track_log"`

	// Optional sinks; empty disables them.
	RedisURL  string `yaml:"redis_url"`
	HistoryDB string `yaml:"history_db"`

	Debug bool `yaml:"debug"`
}

type APNConfig struct {
	Name string `yaml:"name"`
	User string `yaml:"user"`
	Pass string `yaml:"pass"`
}

type EndpointConfig struct {
	Server      string `yaml:"server"`
	Path        string `yaml:"path"`
	Port        int    `yaml:"port"`
	Host        string `yaml:"host"`
	Token       string `yaml:"token"`
	ContentType string `yaml:"content_type"`
}

type StreamsConfig struct {
	Latitude  string `yaml:"latitude"`
	Longitude string `yaml:"longitude"`
}

type GPSConfig struct {
	Device         string        `yaml:"device"`
	Baud           int           `yaml:"baud"`
	AcquireTimeout time.Duration `yaml:"acquire_timeout"`
}

type RadioConfig struct {
	GPIOChip string `yaml:"gpio_chip"`
	GPIOLine int    `yaml:"gpio_line"`
	// InitialClock seeds the modem RTC once on the first power-up, in
	// the modem's "yy/MM/dd,hh:mm:ss±zz" layout. Empty skips the seed.
	InitialClock string `yaml:"initial_clock"`
}

// Default returns the build-time configuration.
func Default() *Config {
	return &Config{
		APN: APNConfig{Name: "internet"},
		Endpoint: EndpointConfig{
			Server:      "telemetry.example.com",
			Path:        "/v2/feeds/504.csv",
			Port:        80,
			Token:       "c8mEQfB6eYRCug0Zvtsevg",
			ContentType: "text/csv",
		},
		Streams: StreamsConfig{Latitude: "lat", Longitude: "lon"},
		GPS: GPSConfig{
			Device:         "/dev/ttyUSB1",
			Baud:           9600,
			AcquireTimeout: 2 * time.Second,
		},
		Radio: RadioConfig{
			GPIOChip: "gpiochip3",
			GPIOLine: 14,
		},
		CycleInterval: 60 * time.Second,
		TrackLog:      "/var/lib/tracker-service/track.log",
	}
}

// Load returns the defaults, overlaid with the YAML file at path when
// path is non-empty.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		if err := yaml.Unmarshal(b, cfg); err != nil {
			return nil, err
		}
	}

	if cfg.Endpoint.Server == "" {
		return nil, fmt.Errorf("endpoint.server is required")
	}
	if cfg.Endpoint.Path == "" {
		return nil, fmt.Errorf("endpoint.path is required")
	}
	if cfg.Endpoint.Port <= 0 {
		cfg.Endpoint.Port = 80
	}
	if cfg.Endpoint.Host == "" {
		cfg.Endpoint.Host = cfg.Endpoint.Server
	}
	if cfg.CycleInterval <= 0 {
		cfg.CycleInterval = 60 * time.Second
	}
	if cfg.GPS.AcquireTimeout <= 0 {
		cfg.GPS.AcquireTimeout = 2 * time.Second
	}
	if cfg.GPS.Baud <= 0 {
		cfg.GPS.Baud = 9600
	}
	if cfg.TrackLog == "" {
		return nil, fmt.Errorf("track_log is required")
	}

	return cfg, nil
}
