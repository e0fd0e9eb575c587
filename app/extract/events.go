package extract

import (
	"io"
	"strings"

	"golang.org/x/net/html"
)

type Kind int

const (
	KindText Kind = iota
	KindTitleOpen
	KindTitleClose
	KindChannelDescription
	KindRecordOpen
	KindNameOpen
	KindRecencyOpen
	KindContainerOpen
	KindContainerClose
	KindLinkAnchor
	KindImage
	KindInlineOpen
	KindInlineClose
)

var kindNames = map[Kind]string{
	KindText:               "text",
	KindTitleOpen:          "title-open",
	KindTitleClose:         "title-close",
	KindChannelDescription: "channel-description",
	KindRecordOpen:         "record-open",
	KindNameOpen:           "name-open",
	KindRecencyOpen:        "recency-open",
	KindContainerOpen:      "container-open",
	KindContainerClose:     "container-close",
	KindLinkAnchor:         "link-anchor",
	KindImage:              "image",
	KindInlineOpen:         "inline-open",
	KindInlineClose:        "inline-close",
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return "unknown"
}

// Event is one classified markup event. Data carries the text for
// KindText, the href for KindLinkAnchor, the src for KindImage and the
// content attribute for KindChannelDescription.
type Event struct {
	Kind Kind
	Tag  string
	Data string
}

// Class signatures of the listing template.
const (
	recordClass       = "position-relative"
	nameClass         = "h6 name"
	recencyClass      = "w-100"
	linkClass         = "main-link"
	imageClassPrefix  = "responsive-img shadow-img"
	containerTag      = "div"
	descriptionMetaID = "description"
)

// Tokenizer turns a markup stream into classified events in document order.
type Tokenizer struct {
	z       *html.Tokenizer
	pending []Event
}

func NewTokenizer(r io.Reader) *Tokenizer {
	return &Tokenizer{z: html.NewTokenizer(r)}
}

// Next returns the next event, io.EOF at the end of the stream, or the
// underlying read error.
func (t *Tokenizer) Next() (Event, error) {
	for len(t.pending) == 0 {
		tt := t.z.Next()
		switch tt {
		case html.ErrorToken:
			return Event{}, t.z.Err()
		case html.TextToken:
			t.pending = append(t.pending, Event{Kind: KindText, Data: string(t.z.Text())})
		case html.StartTagToken:
			t.pending = append(t.pending, classifyStart(t.z.Token()))
		case html.SelfClosingTagToken:
			tok := t.z.Token()
			t.pending = append(t.pending, classifyStart(tok), classifyEnd(tok.Data))
		case html.EndTagToken:
			name, _ := t.z.TagName()
			t.pending = append(t.pending, classifyEnd(string(name)))
		}
	}

	ev := t.pending[0]
	t.pending = t.pending[1:]
	return ev, nil
}

func classifyStart(tok html.Token) Event {
	class := attr(tok, "class")

	switch tok.Data {
	case "title":
		return Event{Kind: KindTitleOpen, Tag: tok.Data}
	case "meta":
		if attr(tok, "name") == descriptionMetaID {
			return Event{Kind: KindChannelDescription, Tag: tok.Data, Data: attr(tok, "content")}
		}
	case containerTag:
		switch class {
		case recordClass:
			return Event{Kind: KindRecordOpen, Tag: tok.Data}
		case nameClass:
			return Event{Kind: KindNameOpen, Tag: tok.Data}
		case recencyClass:
			return Event{Kind: KindRecencyOpen, Tag: tok.Data}
		default:
			return Event{Kind: KindContainerOpen, Tag: tok.Data}
		}
	case "a":
		if class == linkClass {
			return Event{Kind: KindLinkAnchor, Tag: tok.Data, Data: attr(tok, "href")}
		}
	case "img":
		if strings.HasPrefix(class, imageClassPrefix) {
			return Event{Kind: KindImage, Tag: tok.Data, Data: attr(tok, "src")}
		}
	}

	return Event{Kind: KindInlineOpen, Tag: tok.Data}
}

func classifyEnd(name string) Event {
	switch name {
	case "title":
		return Event{Kind: KindTitleClose, Tag: name}
	case containerTag:
		return Event{Kind: KindContainerClose, Tag: name}
	default:
		return Event{Kind: KindInlineClose, Tag: name}
	}
}

func attr(tok html.Token, key string) string {
	for _, a := range tok.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}
