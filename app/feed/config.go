package feed

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

const (
	DefaultMaxItems = 1067
	DefaultMaxPages = 36
	DefaultTimeout  = 30
)

func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}

	var feedConfig Config
	if err := yaml.Unmarshal(data, &feedConfig); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	fileName := filepath.Base(path)
	feedConfig.Name = strings.TrimSuffix(fileName, filepath.Ext(fileName))

	applyDefaults(&feedConfig)

	if err := validateConfig(&feedConfig); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}

	return &feedConfig, nil
}

func applyDefaults(feedConfig *Config) {
	if feedConfig.Settings.MaxItems == 0 {
		feedConfig.Settings.MaxItems = DefaultMaxItems
	}
	if feedConfig.Settings.MaxPages == 0 {
		feedConfig.Settings.MaxPages = DefaultMaxPages
	}
	if feedConfig.Settings.Timeout == 0 {
		feedConfig.Settings.Timeout = DefaultTimeout
	}
	if feedConfig.Output == "" {
		feedConfig.Output = feedConfig.Name + ".xml"
	}
	if feedConfig.BaseURL == "" && feedConfig.ListingURL != "" {
		if u, err := url.Parse(feedConfig.ListingURL); err == nil && u.Host != "" {
			feedConfig.BaseURL = u.Scheme + "://" + u.Host
		}
	}
}

func validateConfig(feedConfig *Config) error {
	if feedConfig == nil {
		return fmt.Errorf("feedConfig is nil")
	}

	requiredFields := map[string]string{
		"listing URL": feedConfig.ListingURL,
		"base URL":    feedConfig.BaseURL,
	}

	for fieldName, fieldValue := range requiredFields {
		if fieldValue == "" {
			return fmt.Errorf("%s is required", fieldName)
		}
		u, err := url.Parse(fieldValue)
		if err != nil || u.Scheme == "" || u.Host == "" {
			return fmt.Errorf("%s must be an absolute URL: %q", fieldName, fieldValue)
		}
	}

	nonNegativeFields := map[string]int{
		"max items": feedConfig.Settings.MaxItems,
		"max pages": feedConfig.Settings.MaxPages,
		"timeout":   feedConfig.Settings.Timeout,
	}

	for fieldName, fieldValue := range nonNegativeFields {
		if fieldValue < 0 {
			return fmt.Errorf("%s must be non-negative", fieldName)
		}
	}

	return nil
}
