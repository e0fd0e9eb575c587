package feed

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/mmcdole/gofeed/rss"
)

// ErrNotFound is returned by Store.Load when no feed has been persisted yet.
var ErrNotFound = errors.New("feed not found")

type Store interface {
	Load() (*Document, error)
	Save(doc *Document) error
}

var _ Store = (*FileStore)(nil)

// FileStore keeps the feed as an RSS 2.0 file on disk.
type FileStore struct {
	path      string
	parser    *rss.Parser
	generator *Generator
}

func NewFileStore(path string, generator *Generator) *FileStore {
	return &FileStore{
		path:      path,
		parser:    &rss.Parser{},
		generator: generator,
	}
}

func (s *FileStore) Path() string {
	return s.path
}

func (s *FileStore) Load() (*Document, error) {
	f, err := os.Open(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open feed file: %w", err)
	}
	defer f.Close()

	return s.decode(f)
}

func (s *FileStore) decode(r io.Reader) (*Document, error) {
	parsed, err := s.parser.Parse(r)
	if err != nil {
		return nil, fmt.Errorf("failed to parse feed: %w", err)
	}

	doc := &Document{
		Channel: Channel{
			Title:         parsed.Title,
			Link:          parsed.Link,
			Description:   parsed.Description,
			PubDate:       derefTime(parsed.PubDateParsed),
			LastBuildDate: derefTime(parsed.LastBuildDateParsed),
			SelfLink:      selfLink(parsed),
		},
		Items: make([]Item, 0, len(parsed.Items)),
	}

	for _, it := range parsed.Items {
		if it == nil {
			continue
		}

		item := Item{
			Title:       it.Title,
			Link:        it.Link,
			Description: it.Description,
			PubDate:     derefTime(it.PubDateParsed),
		}

		if it.GUID != nil {
			item.GUID = it.GUID.Value
		}

		if it.Enclosure != nil && it.Enclosure.URL != "" {
			item.Enclosure = &Enclosure{
				URL:  it.Enclosure.URL,
				Type: it.Enclosure.Type,
			}
			if it.Enclosure.Length != "" {
				if length, err := strconv.ParseInt(it.Enclosure.Length, 10, 64); err == nil {
					item.Enclosure.Length = length
				}
			}
		}

		doc.Items = append(doc.Items, item)
	}

	return doc, nil
}

// Save renders doc and replaces the feed file atomically.
func (s *FileStore) Save(doc *Document) error {
	content, err := s.generator.Run(doc)
	if err != nil {
		return fmt.Errorf("failed to generate feed: %w", err)
	}

	dir := filepath.Dir(s.path)
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(s.path)+".*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.WriteString(content); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write feed: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close temp file: %w", err)
	}
	if err := os.Chmod(tmpName, 0o644); err != nil {
		return fmt.Errorf("failed to chmod feed: %w", err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		return fmt.Errorf("failed to replace feed file: %w", err)
	}

	return nil
}

func derefTime(t *time.Time) time.Time {
	if t == nil {
		return time.Time{}
	}
	return t.UTC()
}

func selfLink(parsed *rss.Feed) string {
	for _, link := range parsed.Extensions["atom"]["link"] {
		if link.Attrs["rel"] == "self" {
			return link.Attrs["href"]
		}
	}
	return ""
}
