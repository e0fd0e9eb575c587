// Package extract turns the listing page markup into deal candidates.
//
// A Machine consumes classified markup events (see Tokenizer) and keeps an
// explicit per-record Context. Only container boundaries (div) move the
// region depth; everything else nested deeper than the record's own level is
// replayed verbatim into the description as bare tags and text.
package extract

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"golang.org/x/text/unicode/norm"

	"github.com/lysyi3m/rssmaker/app/feed"
	"github.com/lysyi3m/rssmaker/app/recency"
)

type Mode int

const (
	ModeNone Mode = iota
	ModeTitle
	ModeName
	ModeRecency
)

// recencyDepth is the only region depth whose text feeds the recency buffer.
const recencyDepth = 3

// Candidate is an extracted record before identity classification.
type Candidate struct {
	Title       string
	Link        string
	Description string
	PubDate     time.Time
	Granularity time.Duration // one unit of the recency fragment
	Retailer    string
	Enclosure   *feed.Enclosure
}

// Context is the scratch state of the record being extracted.
type Context struct {
	RegionDepth int
	Mode        Mode
	Description strings.Builder
	Recency     strings.Builder
	Title       strings.Builder
	Candidate   *Candidate
}

func (c *Context) InlineCaptureActive() bool {
	return c.RegionDepth > 1
}

func (c *Context) reset() {
	c.RegionDepth = 0
	c.Mode = ModeNone
	c.Description.Reset()
	c.Recency.Reset()
	c.Title.Reset()
	c.Candidate = nil
}

// Sink receives finalized candidates and reports whether extraction should stop.
type Sink interface {
	Accept(ctx context.Context, c *Candidate) (stop bool, err error)
}

type EnclosureResolver interface {
	Resolve(ctx context.Context, url string) (*feed.Enclosure, error)
}

type Machine struct {
	base      *url.URL
	reference time.Time
	channel   *feed.Channel
	sink      Sink
	resolver  EnclosureResolver
	logger    *slog.Logger

	ctx     Context
	done    bool
	records int
	skipped int
}

type Option func(*Machine)

func WithEnclosureResolver(r EnclosureResolver) Option {
	return func(m *Machine) { m.resolver = r }
}

func WithLogger(l *slog.Logger) Option {
	return func(m *Machine) { m.logger = l }
}

// NewMachine creates a machine that resolves links against base, infers
// timestamps relative to reference and writes channel metadata to channel.
func NewMachine(base *url.URL, reference time.Time, channel *feed.Channel, sink Sink, opts ...Option) *Machine {
	m := &Machine{
		base:      base,
		reference: reference,
		channel:   channel,
		sink:      sink,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Done reports whether the sink requested a stop.
func (m *Machine) Done() bool {
	return m.done
}

func (m *Machine) Records() int {
	return m.records
}

func (m *Machine) Skipped() int {
	return m.skipped
}

// Feed streams a page through the machine. It returns when the stream ends
// or the sink requested a stop.
func (m *Machine) Feed(ctx context.Context, r io.Reader) error {
	tok := NewTokenizer(r)
	for !m.done {
		if err := ctx.Err(); err != nil {
			return err
		}

		ev, err := tok.Next()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("failed to read markup: %w", err)
		}

		if err := m.Handle(ctx, ev); err != nil {
			return err
		}
	}
	return nil
}

func (m *Machine) Handle(ctx context.Context, ev Event) error {
	if m.done {
		return nil
	}

	c := &m.ctx
	inRecord := c.Candidate != nil && c.RegionDepth > 0

	switch ev.Kind {
	case KindTitleOpen:
		c.Mode = ModeTitle
		if !inRecord {
			m.channel.Title = ""
		}

	case KindTitleClose:
		c.Mode = ModeNone

	case KindChannelDescription:
		m.channel.Description = ev.Data

	case KindRecordOpen:
		c.reset()
		c.Candidate = &Candidate{}
		c.RegionDepth = 1

	case KindNameOpen, KindRecencyOpen, KindContainerOpen:
		if !inRecord {
			return nil
		}
		c.RegionDepth++
		switch ev.Kind {
		case KindNameOpen:
			c.Mode = ModeName
		case KindRecencyOpen:
			c.Mode = ModeRecency
			c.Recency.Reset()
		}

	case KindContainerClose:
		return m.closeContainer(ctx)

	case KindLinkAnchor:
		if inRecord {
			c.Candidate.Link = m.resolve(ev.Data)
		}

	case KindImage:
		if inRecord {
			m.attachEnclosure(ctx, ev.Data)
		}

	case KindInlineOpen:
		if inRecord && c.InlineCaptureActive() {
			c.Description.WriteString("<" + ev.Tag + ">")
		}

	case KindInlineClose:
		if inRecord && c.InlineCaptureActive() {
			c.Description.WriteString("</" + ev.Tag + ">")
		}

	case KindText:
		m.handleText(ev.Data)
	}

	return nil
}

func (m *Machine) handleText(data string) {
	c := &m.ctx
	inRecord := c.Candidate != nil && c.RegionDepth > 0

	switch c.Mode {
	case ModeTitle:
		if inRecord {
			c.Title.WriteString(data)
		} else {
			m.channel.Title += data
			m.channel.Title = strings.TrimSpace(m.channel.Title)
		}
	case ModeName:
		if inRecord {
			c.Title.WriteString(data)
		}
	case ModeRecency:
		if c.RegionDepth == recencyDepth {
			c.Recency.WriteString(data)
		}
	default:
		if inRecord && c.InlineCaptureActive() {
			c.Description.WriteString(data)
		}
	}
}

func (m *Machine) closeContainer(ctx context.Context) error {
	c := &m.ctx
	if c.Candidate == nil || c.RegionDepth == 0 {
		return nil
	}

	if c.Mode == ModeRecency {
		decoded, err := recency.Decode(c.Recency.String(), m.reference)
		if err != nil {
			return err
		}
		c.Candidate.PubDate = decoded.At
		c.Candidate.Granularity = decoded.Granularity
		c.Candidate.Retailer = decoded.Retailer
		c.Description.WriteString(" at " + decoded.Retailer + " ")
	}

	c.Mode = ModeNone
	c.RegionDepth--
	if c.RegionDepth > 0 {
		return nil
	}

	return m.finalize(ctx)
}

func (m *Machine) finalize(ctx context.Context) error {
	c := &m.ctx
	candidate := c.Candidate
	candidate.Description = NormalizeSpace(c.Description.String())
	candidate.Title = NormalizeSpace(c.Title.String())
	c.reset()

	m.records++

	if candidate.Link == "" || candidate.PubDate.IsZero() {
		m.skipped++
		m.logger.Warn("Skipping record with missing structure",
			"title", candidate.Title,
			"has_link", candidate.Link != "",
			"has_recency", !candidate.PubDate.IsZero())
		return nil
	}

	stop, err := m.sink.Accept(ctx, candidate)
	if err != nil {
		return fmt.Errorf("failed to merge candidate %s: %w", candidate.Link, err)
	}
	if stop {
		m.done = true
	}
	return nil
}

func (m *Machine) attachEnclosure(ctx context.Context, src string) {
	if src == "" {
		return
	}
	if m.resolver == nil {
		return
	}

	imageURL := m.resolve(src)
	enclosure, err := m.resolver.Resolve(ctx, imageURL)
	if err != nil {
		m.logger.Warn("Skipping enclosure", "url", imageURL, "error", err)
		return
	}
	m.ctx.Candidate.Enclosure = enclosure
}

func (m *Machine) resolve(ref string) string {
	if m.base == nil {
		return ref
	}
	u, err := url.Parse(strings.TrimSpace(ref))
	if err != nil {
		return ref
	}
	return m.base.ResolveReference(u).String()
}

// NormalizeSpace collapses whitespace runs to a single space, trims the
// result and puts it in Unicode NFC form.
func NormalizeSpace(s string) string {
	return norm.NFC.String(strings.Join(strings.Fields(s), " "))
}
