package feed

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"html"
	"strings"
	"time"
)

// Generator renders a Document as RSS 2.0. It is a pure function of the
// document: the same input produces byte-identical output, which keeps
// published diffs meaningful when nothing changed.
type Generator struct{}

func NewGenerator() *Generator {
	return &Generator{}
}

func (g *Generator) Run(doc Document) (string, error) {
	if doc.Title == "" {
		return "", fmt.Errorf("document has no title")
	}

	var buf bytes.Buffer

	buf.WriteString(`<?xml version="1.0" encoding="UTF-8"?>`)
	buf.WriteString("\n")
	buf.WriteString(`<rss version="2.0" xmlns:atom="http://www.w3.org/2005/Atom">`)
	buf.WriteString("\n  <channel>\n")

	g.writeElement(&buf, "title", doc.Title, 4)
	g.writeElement(&buf, "link", doc.Link, 4)
	g.writeElement(&buf, "description", doc.Description, 4)

	if doc.SelfURL != "" {
		buf.WriteString(fmt.Sprintf("    <atom:link href=\"%s\" rel=\"self\" type=\"application/rss+xml\" />\n",
			html.EscapeString(doc.SelfURL)))
	}

	g.writeElement(&buf, "lastBuildDate", doc.BuildTime.UTC().Format(time.RFC1123Z), 4)
	g.writeElement(&buf, "generator", "PulseFeed", 4)

	for _, item := range doc.Items {
		g.writeItem(&buf, item)
	}

	buf.WriteString("  </channel>\n</rss>\n")

	return buf.String(), nil
}

func (g *Generator) writeItem(buf *bytes.Buffer, item Item) {
	buf.WriteString("    <item>\n")

	g.writeElement(buf, "title", item.Title, 6)
	g.writeElement(buf, "link", item.Link, 6)

	buf.WriteString(`      <guid isPermaLink="false">`)
	xml.EscapeText(buf, []byte(item.ID))
	buf.WriteString("</guid>\n")

	g.writeElement(buf, "pubDate", item.PublishedAt.UTC().Format(time.RFC1123Z), 6)

	buf.WriteString("      <description><![CDATA[")
	buf.WriteString(g.description(item))
	buf.WriteString("]]></description>\n")

	buf.WriteString("    </item>\n")
}

// description carries the summary plus a link back to the source
// article, matching what readers expect from an aggregated feed.
func (g *Generator) description(item Item) string {
	var b strings.Builder
	if item.Summary != "" {
		// Escaping also prevents "]]>" from terminating the CDATA section.
		b.WriteString(html.EscapeString(item.Summary))
		b.WriteString("<br/><br/>\n")
	}
	b.WriteString(fmt.Sprintf(`<a href="%s" rel="noopener nofollow">Read original →</a>`,
		html.EscapeString(item.Link)))
	return b.String()
}

func (g *Generator) writeElement(buf *bytes.Buffer, tag, content string, indent int) {
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
