// Package merge reconciles extracted candidates with the persisted feed.
package merge

import (
	"context"
	"log/slog"

	"github.com/google/uuid"

	"github.com/lysyi3m/rssmaker/app/extract"
	"github.com/lysyi3m/rssmaker/app/feed"
)

// Engine applies candidates to a document in listing order. New and changed
// candidates are inserted at the cursor, which starts at the top of the item
// list; the first unchanged candidate ends the run.
type Engine struct {
	doc      *feed.Document
	maxItems int
	known    map[string]feed.Item
	cursor   int
	newGUID  func() string
	logger   *slog.Logger

	changed  bool
	inserted int
	replaced int
}

type Option func(*Engine)

func WithGUIDFunc(fn func() string) Option {
	return func(e *Engine) { e.newGUID = fn }
}

func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) { e.logger = l }
}

// NewEngine trims doc to maxItems and indexes the retained items by link.
// A maxItems of zero disables the ceiling.
func NewEngine(doc *feed.Document, maxItems int, opts ...Option) *Engine {
	e := &Engine{
		doc:      doc,
		maxItems: maxItems,
		known:    make(map[string]feed.Item, len(doc.Items)),
		newGUID:  uuid.NewString,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}

	e.trim()

	// Links are unique among retained items; a later duplicate is dropped.
	retained := doc.Items[:0]
	for _, item := range doc.Items {
		if _, ok := e.known[item.Link]; ok {
			continue
		}
		e.known[item.Link] = item
		retained = append(retained, item)
	}
	doc.Items = retained

	return e
}

// Accept implements extract.Sink.
func (e *Engine) Accept(_ context.Context, c *extract.Candidate) (bool, error) {
	var known *feed.Item
	if item, ok := e.known[c.Link]; ok {
		known = &item
	}

	classification := Classify(c, known)
	switch classification {
	case Unchanged:
		e.logger.Debug("Reached known item", "link", c.Link)
		return true, nil
	case Changed:
		e.evict(c.Link)
		e.replaced++
	case New:
		e.inserted++
	}

	item := feed.Item{
		Title:       c.Title,
		Link:        c.Link,
		Description: c.Description,
		PubDate:     c.PubDate,
		GUID:        e.newGUID(),
		Enclosure:   c.Enclosure,
	}
	e.insert(item)
	e.known[item.Link] = item
	e.changed = true

	e.logger.Debug("Merged item", "link", item.Link, "classification", classification.String(), "guid", item.GUID)
	return false, nil
}

func (e *Engine) evict(link string) {
	delete(e.known, link)
	for i, item := range e.doc.Items {
		if item.Link != link {
			continue
		}
		e.doc.Items = append(e.doc.Items[:i], e.doc.Items[i+1:]...)
		if i < e.cursor {
			e.cursor--
		}
		return
	}
}

func (e *Engine) insert(item feed.Item) {
	e.doc.Items = append(e.doc.Items, feed.Item{})
	copy(e.doc.Items[e.cursor+1:], e.doc.Items[e.cursor:])
	e.doc.Items[e.cursor] = item
	e.cursor++
}

func (e *Engine) trim() {
	if e.maxItems > 0 && len(e.doc.Items) > e.maxItems {
		e.doc.Items = e.doc.Items[:e.maxItems]
	}
}

// Finalize applies the retention ceiling to the merged document.
func (e *Engine) Finalize() *feed.Document {
	e.trim()
	return e.doc
}

func (e *Engine) Changed() bool {
	return e.changed
}

func (e *Engine) Inserted() int {
	return e.inserted
}

func (e *Engine) Replaced() int {
	return e.replaced
}

// NewItems is the number of items written at the top of the feed this run.
func (e *Engine) NewItems() int {
	return e.cursor
}
