package feed

import (
	"time"
)

// Feed document types

type Document struct {
	Channel Channel
	Items   []Item // newest first
}

type Channel struct {
	Title         string
	Link          string
	Description   string
	PubDate       time.Time
	LastBuildDate time.Time
	SelfLink      string // atom:link rel="self"
}

type Item struct {
	Title       string
	Link        string // business key, unique within a document
	Description string // HTML fragment
	PubDate     time.Time
	GUID        string // opaque, never a permalink
	Enclosure   *Enclosure
}

type Enclosure struct {
	URL    string
	Length int64
	Type   string
}

// Configuration types

type Config struct {
	Name       string         // Derived from filename (without extension)
	ListingURL string         `yaml:"listing_url"`
	BaseURL    string         `yaml:"base_url"`
	SelfLink   string         `yaml:"self_link"`
	Output     string         `yaml:"output"`
	Settings   ConfigSettings `yaml:"settings"`
}

type ConfigSettings struct {
	MaxItems int `yaml:"max_items"`
	MaxPages int `yaml:"max_pages"`
	Timeout  int `yaml:"timeout"` // seconds
}
