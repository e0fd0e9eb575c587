// Package crawl drives the page-by-page crawl of the listing and decides what
// gets persisted when it ends.
package crawl

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"golang.org/x/net/html/charset"

	"github.com/lysyi3m/rssmaker/app/extract"
	"github.com/lysyi3m/rssmaker/app/feed"
	"github.com/lysyi3m/rssmaker/app/merge"
)

type Outcome string

const (
	// OutcomeDone means a known item was reached.
	OutcomeDone Outcome = "done"
	// OutcomeExhausted means the page budget ran out without reaching a known item.
	OutcomeExhausted Outcome = "exhausted"
	// OutcomeFailed means a page fetch failed. Earlier changes are still saved.
	OutcomeFailed Outcome = "failed"
	// OutcomeAborted means a fatal error; nothing was saved.
	OutcomeAborted Outcome = "aborted"
)

// Process exit codes.
const (
	ExitChanged        = 0
	ExitFatal          = 1
	ExitNothingNew     = 2
	ExitPartialChanged = 221
)

type Result struct {
	Outcome       Outcome
	Pages         int
	Records       int
	Inserted      int
	Replaced      int
	Skipped       int
	NewItems      int
	Changed       bool
	Saved         bool
	Err           error
	ReferenceTime time.Time
	StartedAt     time.Time
	FinishedAt    time.Time
}

func (r *Result) Duration() time.Duration {
	return r.FinishedAt.Sub(r.StartedAt)
}

// ExitCode maps the result to the process exit status the publish step
// expects.
func (r *Result) ExitCode() int {
	switch {
	case r.Outcome == OutcomeAborted:
		return ExitFatal
	case r.Outcome == OutcomeFailed && r.Saved:
		return ExitPartialChanged
	case r.Outcome == OutcomeFailed:
		return ExitFatal
	case r.Saved:
		return ExitChanged
	default:
		return ExitNothingNew
	}
}

// Session is the state of one crawl, created from the first successful
// response.
type Session struct {
	Page      int
	Reference time.Time
	Engine    *merge.Engine
	Machine   *extract.Machine
}

type Crawler struct {
	config  *feed.Config
	fetcher Fetcher
	store   feed.Store
	clock   func() time.Time
	logger  *slog.Logger
}

type Option func(*Crawler)

func WithClock(clock func() time.Time) Option {
	return func(c *Crawler) { c.clock = clock }
}

func WithLogger(l *slog.Logger) Option {
	return func(c *Crawler) { c.logger = l }
}

func NewCrawler(config *feed.Config, fetcher Fetcher, store feed.Store, opts ...Option) *Crawler {
	c := &Crawler{
		config:  config,
		fetcher: fetcher,
		store:   store,
		clock:   time.Now,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Run crawls pages sequentially until a known item is reached, the page
// budget is exhausted or a fetch fails, then saves the feed if anything
// changed. The returned error is non-nil only for fatal failures, in which
// case nothing was saved.
func (c *Crawler) Run(ctx context.Context) (*Result, error) {
	result := &Result{StartedAt: c.clock()}

	err := c.run(ctx, result)
	result.FinishedAt = c.clock()
	if err != nil {
		result.Outcome = OutcomeAborted
		result.Err = err
		return result, err
	}

	return result, nil
}

func (c *Crawler) run(ctx context.Context, result *Result) error {
	listing, err := url.Parse(c.config.ListingURL)
	if err != nil {
		return fmt.Errorf("invalid listing URL: %w", err)
	}
	base, err := url.Parse(c.config.BaseURL)
	if err != nil {
		return fmt.Errorf("invalid base URL: %w", err)
	}

	var session *Session
	result.Outcome = OutcomeExhausted

	for page := 1; page <= c.config.Settings.MaxPages; page++ {
		pageURL := PageURL(listing, page)

		resp, err := c.fetcher.Fetch(ctx, pageURL)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return ctxErr
			}
			c.logger.Warn("Failed to fetch page", "page", page, "url", pageURL, "error", err)
			result.Outcome = OutcomeFailed
			result.Err = err
			break
		}

		if session == nil {
			session, err = c.newSession(base, resp.Header)
			if err != nil {
				resp.Body.Close()
				return err
			}
			result.ReferenceTime = session.Reference
		}
		session.Page = page
		result.Pages++
		c.logger.Debug("Fetched page", "page", page, "status", resp.StatusCode, "url", pageURL)

		err = c.feedPage(ctx, session, resp, pageURL)
		resp.Body.Close()
		if err != nil {
			var transportErr *TransportError
			if errors.As(err, &transportErr) && ctx.Err() == nil {
				c.logger.Warn("Failed to read page", "page", session.Page, "url", pageURL, "error", err)
				result.Outcome = OutcomeFailed
				result.Err = err
				break
			}
			return err
		}

		if session.Machine.Done() {
			result.Outcome = OutcomeDone
			break
		}
	}

	if session == nil {
		c.logger.Info("Nothing new, no updates to file", "outcome", result.Outcome)
		return nil
	}

	result.Records = session.Machine.Records()
	result.Skipped = session.Machine.Skipped()
	result.Inserted = session.Engine.Inserted()
	result.Replaced = session.Engine.Replaced()
	result.NewItems = session.Engine.NewItems()
	result.Changed = session.Engine.Changed()

	if !result.Changed {
		c.logger.Info("Nothing new, no updates to file", "outcome", result.Outcome, "pages", result.Pages)
		return nil
	}

	if err := c.store.Save(session.Engine.Finalize()); err != nil {
		return fmt.Errorf("failed to save feed: %w", err)
	}
	result.Saved = true

	c.logger.Info("Feed updated",
		"new_items", result.NewItems,
		"inserted", result.Inserted,
		"replaced", result.Replaced,
		"skipped", result.Skipped,
		"pages", result.Pages,
		"outcome", result.Outcome)

	return nil
}

func (c *Crawler) newSession(base *url.URL, header http.Header) (*Session, error) {
	reference, err := http.ParseTime(header.Get("Date"))
	if err != nil {
		reference = c.clock()
		c.logger.Warn("Response has no usable Date header, using local clock", "date", header.Get("Date"))
	}
	reference = reference.UTC()

	doc, err := c.store.Load()
	switch {
	case errors.Is(err, feed.ErrNotFound):
		c.logger.Info("Creating new feed")
		doc = &feed.Document{}
	case err != nil:
		return nil, fmt.Errorf("failed to load feed: %w", err)
	default:
		c.logger.Info("Using existing feed", "items", len(doc.Items))
	}

	doc.Channel.Link = c.config.ListingURL
	doc.Channel.PubDate = reference
	doc.Channel.LastBuildDate = reference
	if c.config.SelfLink != "" {
		doc.Channel.SelfLink = c.config.SelfLink
	}

	engine := merge.NewEngine(doc, c.config.Settings.MaxItems, merge.WithLogger(c.logger))
	machine := extract.NewMachine(base, reference, &doc.Channel, engine,
		extract.WithEnclosureResolver(NewEnclosureResolver(c.fetcher)),
		extract.WithLogger(c.logger))

	c.logger.Info("Parsing update", "reference", reference.Format(http.TimeFormat), "known_items", len(doc.Items))

	return &Session{
		Reference: reference,
		Engine:    engine,
		Machine:   machine,
	}, nil
}

func (c *Crawler) feedPage(ctx context.Context, session *Session, resp *Response, pageURL string) error {
	body := &trackingReader{r: resp.Body}

	decoded, err := charset.NewReader(body, resp.Header.Get("Content-Type"))
	if errors.Is(err, io.EOF) {
		c.logger.Debug("Empty page", "page", session.Page, "url", pageURL)
		return nil
	}
	if err != nil {
		return &TransportError{Kind: KindRead, URL: pageURL, Cause: err}
	}

	err = session.Machine.Feed(ctx, decoded)
	if err != nil && body.err != nil {
		return &TransportError{Kind: KindRead, URL: pageURL, Cause: body.err}
	}
	return err
}

// PageURL returns the listing URL with its page query parameter set to n.
func PageURL(listing *url.URL, n int) string {
	u := *listing
	q := u.Query()
	q.Set("page", strconv.Itoa(n))
	u.RawQuery = q.Encode()
	return u.String()
}

// trackingReader remembers the first read error other than io.EOF so body
// failures can be told apart from extraction failures.
type trackingReader struct {
	r   io.Reader
	err error
}

func (t *trackingReader) Read(p []byte) (int, error) {
	n, err := t.r.Read(p)
	if err != nil && !errors.Is(err, io.EOF) && t.err == nil {
		t.err = err
	}
	return n, err
}
