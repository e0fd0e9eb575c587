package feed

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"html"
	"net/http"
	"time"
)

type Generator struct {
	version string
}

func NewGenerator(version string) *Generator {
	return &Generator{version: version}
}

func (g *Generator) Run(doc *Document) (string, error) {
	if doc == nil {
		return "", fmt.Errorf("document is nil")
	}

	var buf bytes.Buffer

	buf.WriteString(`<?xml version="1.0" encoding="UTF-8"?>`)
	buf.WriteString("\n")
	buf.WriteString(`<rss version="2.0" xmlns:atom="http://www.w3.org/2005/Atom">`)
	buf.WriteString("\n  <channel>\n")

	ch := doc.Channel
	g.writeElement(&buf, "title", ch.Title, 4)
	g.writeElement(&buf, "description", ch.Description, 4)
	g.writeElement(&buf, "link", ch.Link, 4)

	if ch.SelfLink != "" {
		buf.WriteString(fmt.Sprintf("    <atom:link href=\"%s\" rel=\"self\" type=\"application/rss+xml\" />\n",
			html.EscapeString(ch.SelfLink)))
	}

	g.writeElement(&buf, "pubDate", formatDate(ch.PubDate), 4)
	g.writeElement(&buf, "lastBuildDate", formatDate(ch.LastBuildDate), 4)
	if g.version != "" {
		g.writeElement(&buf, "generator", fmt.Sprintf("rssmaker/%s", g.version), 4)
	}

	for _, item := range doc.Items {
		g.writeItem(&buf, item)
	}

	buf.WriteString("  </channel>\n</rss>\n")

	return buf.String(), nil
}

func (g *Generator) writeItem(buf *bytes.Buffer, item Item) {
	buf.WriteString("    <item>\n")

	g.writeElement(buf, "link", item.Link, 6)
	g.writeElement(buf, "title", item.Title, 6)
	g.writeElement(buf, "description", item.Description, 6)

	// RSS 2.0 requires url, length and type on enclosures
	if item.Enclosure != nil && item.Enclosure.URL != "" && item.Enclosure.Type != "" {
		buf.WriteString(fmt.Sprintf("      <enclosure url=\"%s\" length=\"%d\" type=\"%s\" />\n",
			html.EscapeString(item.Enclosure.URL),
			item.Enclosure.Length,
			html.EscapeString(item.Enclosure.Type)))
	}

	g.writeElement(buf, "pubDate", formatDate(item.PubDate), 6)

	if item.GUID != "" {
		buf.WriteString("      <guid isPermaLink=\"false\">")
		xml.EscapeText(buf, []byte(item.GUID))
		buf.WriteString("</guid>\n")
	}

	buf.WriteString("    </item>\n")
}

func (g *Generator) writeElement(buf *bytes.Buffer, tag, content string, indent int) {
	if content == "" {
		return
	}

	for i := 0; i < indent; i++ {
		buf.WriteByte(' ')
	}

	buf.WriteString("<")
	buf.WriteString(tag)
	buf.WriteString(">")
	xml.EscapeText(buf, []byte(content))
	buf.WriteString("</")
	buf.WriteString(tag)
	buf.WriteString(">\n")
}

// formatDate renders t the way HTTP Date headers are written ("... GMT").
func formatDate(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(http.TimeFormat)
}
