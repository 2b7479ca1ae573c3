package config

import (
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Server struct {
		Port string `yaml:"port"`
	} `yaml:"server"`
	Redis struct {
		Addr     string `yaml:"addr"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db"`
		TTL      string `yaml:"ttl"`
	} `yaml:"redis"`
	Mongo struct {
		URI              string `yaml:"uri"`
		Database         string `yaml:"database"`
		BrowseCollection string `yaml:"browseCollection"`
	} `yaml:"mongo"`
	Postgres struct {
		URL string `yaml:"url"`
	} `yaml:"postgres"`
	Quiz struct {
		TTL         string `yaml:"ttl"`
		TermsWindow string `yaml:"termsWindow"`
		Duration    string `yaml:"duration"`
	} `yaml:"quiz"`
	Submission struct {
		// Endpoint, when set, routes submissions to a remote persistence
		// deployment instead of the local document store.
		Endpoint string `yaml:"endpoint"`
	} `yaml:"submission"`
}

// Load reads YAML config from path.
func Load(path string) (Config, error) {
	cfg := Config{}
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Duration parses a duration string or returns the fallback if empty or invalid.
func Duration(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}
	if d, err := time.ParseDuration(raw); err == nil {
		return d
	}
	return fallback
}
