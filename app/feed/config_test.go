package feed

import (
	"os"
	"path/filepath"
	"testing"
)

func writeConfig(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadConfigValid(t *testing.T) {
	path := writeConfig(t, "dekudeals.yml", `
listing_url: "https://www.dekudeals.com/recent-drops?country=us"
base_url: "https://www.dekudeals.com"
self_link: "https://feeds.example.com/dekudeals.xml"
output: "out/dekudeals.xml"

settings:
  max_items: 500
  max_pages: 10
  timeout: 15
`)

	feedConfig, err := LoadConfig(path)
	if err != nil {
		t.Fatal(err)
	}

	if feedConfig.Name != "dekudeals" {
		t.Errorf("Expected name 'dekudeals', got '%s'", feedConfig.Name)
	}
	if feedConfig.ListingURL != "https://www.dekudeals.com/recent-drops?country=us" {
		t.Errorf("Unexpected listing URL '%s'", feedConfig.ListingURL)
	}
	if feedConfig.Output != "out/dekudeals.xml" {
		t.Errorf("Expected output 'out/dekudeals.xml', got '%s'", feedConfig.Output)
	}
	if feedConfig.Settings.MaxItems != 500 {
		t.Errorf("Expected max items 500, got %d", feedConfig.Settings.MaxItems)
	}
	if feedConfig.Settings.MaxPages != 10 {
		t.Errorf("Expected max pages 10, got %d", feedConfig.Settings.MaxPages)
	}
	if feedConfig.Settings.Timeout != 15 {
		t.Errorf("Expected timeout 15, got %d", feedConfig.Settings.Timeout)
	}
}

func TestLoadConfigWithDefaults(t *testing.T) {
	path := writeConfig(t, "deals.yaml", `
listing_url: "https://deals.example.com/recent-drops?country=us"
`)

	feedConfig, err := LoadConfig(path)
	if err != nil {
		t.Fatal(err)
	}

	if feedConfig.BaseURL != "https://deals.example.com" {
		t.Errorf("Expected base URL derived from listing URL, got '%s'", feedConfig.BaseURL)
	}
	if feedConfig.Output != "deals.xml" {
		t.Errorf("Expected default output 'deals.xml', got '%s'", feedConfig.Output)
	}
	if feedConfig.Settings.MaxItems != DefaultMaxItems {
		t.Errorf("Expected default max items %d, got %d", DefaultMaxItems, feedConfig.Settings.MaxItems)
	}
	if feedConfig.Settings.MaxPages != DefaultMaxPages {
		t.Errorf("Expected default max pages %d, got %d", DefaultMaxPages, feedConfig.Settings.MaxPages)
	}
	if feedConfig.Settings.Timeout != DefaultTimeout {
		t.Errorf("Expected default timeout %d, got %d", DefaultTimeout, feedConfig.Settings.Timeout)
	}
}

func TestLoadConfigInvalid(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"missing listing url", "self_link: \"https://feeds.example.com/x.xml\"\n"},
		{"relative listing url", "listing_url: \"/recent-drops\"\n"},
		{"negative max items", "listing_url: \"https://deals.example.com/\"\nsettings:\n  max_items: -1\n"},
		{"malformed yaml", "listing_url: [unterminated\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeConfig(t, "invalid.yml", tt.content)
			if _, err := LoadConfig(path); err == nil {
				t.Error("Expected error for invalid configuration")
			}
		})
	}
}

func TestLoadConfigMissingFile(t *testing.T) {
	if _, err := LoadConfig(filepath.Join(t.TempDir(), "nope.yml")); err == nil {
		t.Error("Expected error for missing file")
	}
}
